package data

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/akuzmenko/blogpix/internal/pkg/database"
	"github.com/akuzmenko/blogpix/internal/user/biz"
)

// UserPO is the persistent object for users
type UserPO struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Username     string    `gorm:"size:150;not null;uniqueIndex"`
	Email        string    `gorm:"size:254;not null;uniqueIndex"`
	FirstName    string    `gorm:"size:150"`
	LastName     string    `gorm:"size:150"`
	PasswordHash string    `gorm:"size:128;not null"`
	IsActive     bool      `gorm:"not null;default:true"`
	DateJoined   time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`

	Profile *ProfilePO `gorm:"foreignKey:UserID"`
}

func (UserPO) TableName() string {
	return "users"
}

// ProfilePO is the persistent object for profiles, one row per user
type ProfilePO struct {
	ID             int64 `gorm:"primaryKey;autoIncrement"`
	UserID         int64 `gorm:"not null;uniqueIndex"`
	Birthday       *time.Time
	FailedAttempts int `gorm:"not null;default:0"`
	BlockedUntil   *time.Time
	AvatarAssetID  *string   `gorm:"size:36"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (ProfilePO) TableName() string {
	return "profiles"
}

func (po *UserPO) toDomain() *biz.User {
	user := &biz.User{
		ID:           po.ID,
		Username:     po.Username,
		Email:        po.Email,
		FirstName:    po.FirstName,
		LastName:     po.LastName,
		PasswordHash: po.PasswordHash,
		IsActive:     po.IsActive,
		DateJoined:   po.DateJoined,
		UpdatedAt:    po.UpdatedAt,
	}
	if po.Profile != nil {
		user.Profile = po.Profile.toDomain()
	}
	return user
}

func (po *ProfilePO) toDomain() *biz.Profile {
	return &biz.Profile{
		ID:             po.ID,
		UserID:         po.UserID,
		Birthday:       po.Birthday,
		FailedAttempts: po.FailedAttempts,
		BlockedUntil:   po.BlockedUntil,
		AvatarAssetID:  po.AvatarAssetID,
		UpdatedAt:      po.UpdatedAt,
	}
}

// UserRepo implements biz.UserRepo backed by gorm
type UserRepo struct {
	db *database.DB
}

func NewUserRepo(db *database.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts the user and its profile in one transaction so a user
// without a profile is never observable
func (r *UserRepo) Create(ctx context.Context, user *biz.User) error {
	return r.db.Conn(ctx).Transaction(func(tx *gorm.DB) error {
		po := &UserPO{
			Username:     user.Username,
			Email:        user.Email,
			FirstName:    user.FirstName,
			LastName:     user.LastName,
			PasswordHash: user.PasswordHash,
			IsActive:     user.IsActive,
			DateJoined:   user.DateJoined,
			UpdatedAt:    user.UpdatedAt,
		}
		if err := tx.Create(po).Error; err != nil {
			return err
		}

		profile := &ProfilePO{
			UserID:    po.ID,
			UpdatedAt: user.UpdatedAt,
		}
		if err := tx.Create(profile).Error; err != nil {
			return err
		}

		user.ID = po.ID
		user.Profile.ID = profile.ID
		user.Profile.UserID = po.ID
		return nil
	})
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*biz.User, error) {
	var po UserPO
	err := r.db.Conn(ctx).Preload("Profile").First(&po, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, biz.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return po.toDomain(), nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*biz.User, error) {
	var po UserPO
	err := r.db.Conn(ctx).Preload("Profile").Where("username = ?", username).First(&po).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, biz.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return po.toDomain(), nil
}

func (r *UserRepo) List(ctx context.Context, offset, limit int) ([]*biz.User, int64, error) {
	conn := r.db.Conn(ctx)

	var total int64
	if err := conn.Model(&UserPO{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var pos []*UserPO
	err := conn.Preload("Profile").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&pos).Error
	if err != nil {
		return nil, 0, err
	}

	users := make([]*biz.User, len(pos))
	for i, po := range pos {
		users[i] = po.toDomain()
	}
	return users, total, nil
}

func (r *UserRepo) Update(ctx context.Context, id int64, update *biz.UserUpdate) error {
	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if update.Email != nil {
		updates["email"] = *update.Email
	}
	if update.FirstName != nil {
		updates["first_name"] = *update.FirstName
	}
	if update.LastName != nil {
		updates["last_name"] = *update.LastName
	}
	if update.IsActive != nil {
		updates["is_active"] = *update.IsActive
	}

	result := r.db.Conn(ctx).Model(&UserPO{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return biz.ErrUserNotFound
	}
	return nil
}

// Delete removes the user and its profile; asset rows are the caller's
// concern inside the same ambient transaction
func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	conn := r.db.Conn(ctx)

	if err := conn.Where("user_id = ?", id).Delete(&ProfilePO{}).Error; err != nil {
		return err
	}

	result := conn.Delete(&UserPO{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return biz.ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) UsernameExists(ctx context.Context, username string, excludeID int64) (bool, error) {
	var count int64
	err := r.db.Conn(ctx).Model(&UserPO{}).
		Scopes(database.WhereIf(excludeID > 0, "id <> ?", excludeID)).
		Where("username = ?", username).
		Count(&count).Error
	return count > 0, err
}

func (r *UserRepo) EmailExists(ctx context.Context, email string, excludeID int64) (bool, error) {
	var count int64
	err := r.db.Conn(ctx).Model(&UserPO{}).
		Scopes(database.WhereIf(excludeID > 0, "id <> ?", excludeID)).
		Where("email = ?", email).
		Count(&count).Error
	return count > 0, err
}

func (r *UserRepo) GetProfile(ctx context.Context, userID int64) (*biz.Profile, error) {
	var po ProfilePO
	err := r.db.Conn(ctx).Where("user_id = ?", userID).First(&po).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, biz.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return po.toDomain(), nil
}

func (r *UserRepo) UpdateProfile(ctx context.Context, userID int64, update *biz.ProfileUpdate) error {
	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if update.Birthday != nil {
		updates["birthday"] = *update.Birthday
	}
	if update.FailedAttempts != nil {
		updates["failed_attempts"] = *update.FailedAttempts
	}
	if update.BlockedUntil != nil {
		updates["blocked_until"] = *update.BlockedUntil
	}
	if update.AvatarAssetID != nil {
		updates["avatar_asset_id"] = *update.AvatarAssetID
	}

	result := r.db.Conn(ctx).Model(&ProfilePO{}).Where("user_id = ?", userID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return biz.ErrProfileNotFound
	}
	return nil
}
