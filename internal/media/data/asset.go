package data

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/akuzmenko/blogpix/internal/media/biz"
	"github.com/akuzmenko/blogpix/internal/pkg/database"
)

// AssetPO represents the database model
type AssetPO struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	OwnerKind string    `gorm:"size:16;not null;index:idx_assets_owner"`
	OwnerID   int64     `gorm:"not null;index:idx_assets_owner"`
	Path      string    `gorm:"size:500;not null"`
	Format    string    `gorm:"size:8;not null"`
	SizeBytes int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}

func (AssetPO) TableName() string {
	return "assets"
}

// AssetRepo implements biz.AssetRepo
type AssetRepo struct {
	db *database.DB
}

func NewAssetRepo(db *database.DB) biz.AssetRepo {
	return &AssetRepo{db: db}
}

func (r *AssetRepo) Create(ctx context.Context, asset *biz.Asset) error {
	po := toPO(asset)
	if err := r.db.Conn(ctx).Create(po).Error; err != nil {
		return err
	}
	return nil
}

func (r *AssetRepo) GetByID(ctx context.Context, id string) (*biz.Asset, error) {
	var po AssetPO
	err := r.db.Conn(ctx).Where("id = ?", id).First(&po).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, biz.ErrAssetNotFound
	}
	if err != nil {
		return nil, err
	}
	return toAsset(&po), nil
}

func (r *AssetRepo) ListByOwner(ctx context.Context, kind biz.OwnerKind, ownerID int64) ([]*biz.Asset, error) {
	var pos []AssetPO
	err := r.db.Conn(ctx).
		Where("owner_kind = ? AND owner_id = ?", string(kind), ownerID).
		Order("created_at").
		Find(&pos).Error
	if err != nil {
		return nil, err
	}

	assets := make([]*biz.Asset, len(pos))
	for i := range pos {
		assets[i] = toAsset(&pos[i])
	}
	return assets, nil
}

func (r *AssetRepo) Delete(ctx context.Context, id string) error {
	res := r.db.Conn(ctx).Where("id = ?", id).Delete(&AssetPO{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return biz.ErrAssetNotFound
	}
	return nil
}

func (r *AssetRepo) DeleteByOwner(ctx context.Context, kind biz.OwnerKind, ownerID int64) error {
	return r.db.Conn(ctx).
		Where("owner_kind = ? AND owner_id = ?", string(kind), ownerID).
		Delete(&AssetPO{}).Error
}

func toPO(a *biz.Asset) *AssetPO {
	return &AssetPO{
		ID:        a.ID,
		OwnerKind: string(a.OwnerKind),
		OwnerID:   a.OwnerID,
		Path:      a.Path,
		Format:    string(a.Format),
		SizeBytes: a.SizeBytes,
		CreatedAt: a.CreatedAt,
	}
}

func toAsset(po *AssetPO) *biz.Asset {
	return &biz.Asset{
		ID:        po.ID,
		OwnerKind: biz.OwnerKind(po.OwnerKind),
		OwnerID:   po.OwnerID,
		Path:      po.Path,
		Format:    biz.Format(po.Format),
		SizeBytes: po.SizeBytes,
		CreatedAt: po.CreatedAt,
	}
}

// TxManager implements biz.TransactionManager over the database wrapper,
// making the commit boundary explicit for the upload coordinator
type TxManager struct {
	db *database.DB
}

func NewTxManager(db *database.DB) *TxManager {
	return &TxManager{db: db}
}

func (m *TxManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.Transaction(ctx, func(txCtx context.Context, tx *gorm.DB) error {
		return fn(database.ContextWithTransaction(txCtx, tx))
	})
}
