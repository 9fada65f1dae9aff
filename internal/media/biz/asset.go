package biz

import (
	"context"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OwnerKind identifies the entity type an asset belongs to. The value is
// also the directory name under the storage root, so it is part of the
// persisted path layout and must not change.
type OwnerKind string

const (
	OwnerKindPost OwnerKind = "posts"
	OwnerKindUser OwnerKind = "users"
)

// Format is the declared codec of an asset, a closed set
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
)

// allowedExtensions maps claimed file extensions to formats
var allowedExtensions = map[string]Format{
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".png":  FormatPNG,
	".gif":  FormatGIF,
}

// FormatFromExtension resolves a filename extension (with leading dot,
// any case) to a supported format
func FormatFromExtension(ext string) (Format, bool) {
	f, ok := allowedExtensions[strings.ToLower(ext)]
	return f, ok
}

// Asset is an immutable stored original. Its bytes are never overwritten
// in place: replacement means a new asset and retargeting the owner.
type Asset struct {
	ID        string
	OwnerKind OwnerKind
	OwnerID   int64
	Path      string // relative to the storage root, slash-separated
	Format    Format
	SizeBytes int64
	CreatedAt time.Time
}

// Stem returns the asset file name without directory and extension
func (a *Asset) Stem() string {
	base := path.Base(a.Path)
	return strings.TrimSuffix(base, path.Ext(base))
}

// OwnerRef identifies an owning entity whose existence has already been
// validated by the calling service
type OwnerRef struct {
	Kind OwnerKind
	ID   int64
}

// Size is a derivative target dimension pair
type Size struct {
	Width  int
	Height int
}

// AssetRepo defines relational operations on asset records. Every method
// participates in a transaction bound to ctx when one is present.
type AssetRepo interface {
	Create(ctx context.Context, asset *Asset) error
	GetByID(ctx context.Context, id string) (*Asset, error)
	ListByOwner(ctx context.Context, kind OwnerKind, ownerID int64) ([]*Asset, error)
	Delete(ctx context.Context, id string) error
	DeleteByOwner(ctx context.Context, kind OwnerKind, ownerID int64) error
}

// BlobStore persists raw bytes under relative slash-separated paths.
// Implementations must publish atomically: a reader never observes a
// partially written file under its final name.
type BlobStore interface {
	// Put writes data under a fresh collision-free name in dir and
	// returns the relative path
	Put(ctx context.Context, dir, ext string, data []byte) (string, error)
	// PutAt writes data at exactly the given relative path
	PutAt(ctx context.Context, relPath string, data []byte) error
	Get(ctx context.Context, relPath string) ([]byte, error)
	Delete(ctx context.Context, relPath string) error
	Exists(ctx context.Context, relPath string) (bool, error)
	// RemoveMatching best-effort deletes files in dir matching a glob
	// pattern, returning the first error after attempting all
	RemoveMatching(ctx context.Context, dir, pattern string) error
}

// TransactionManager runs fn inside a relational transaction; the
// transaction is injected into the ctx passed to fn
type TransactionManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// OwnerMutation runs inside the upload transaction after the asset row
// exists. Owner services use it to retarget references so that record
// mutation and asset creation commit or roll back as one unit.
type OwnerMutation func(ctx context.Context, asset *Asset) error

// MaterializationPolicy decides when derivatives are produced
type MaterializationPolicy string

const (
	PolicyEager MaterializationPolicy = "eager" // at upload time
	PolicyLazy  MaterializationPolicy = "lazy"  // on first read demand
)

// KindPolicy is the per-owner-kind materialization configuration. Both
// policies run over the same cache contract; only the trigger differs.
type KindPolicy struct {
	Materialization MaterializationPolicy
	EagerSizes      []Size
}

// AssetUseCase coordinates validation, blob writes, record mutation and
// derivative materialization. The record transaction is the authoritative
// commit point: a blob with no committed record is an allowed transient
// leak, a record referencing a missing blob is never observable.
type AssetUseCase struct {
	repo      AssetRepo
	blobs     BlobStore
	cache     *DerivativeCache
	validator *Validator
	tm        TransactionManager
	policies  map[OwnerKind]KindPolicy
	baseURL   string
	logger    *zap.Logger
}

func NewAssetUseCase(
	repo AssetRepo,
	blobs BlobStore,
	cache *DerivativeCache,
	validator *Validator,
	tm TransactionManager,
	policies map[OwnerKind]KindPolicy,
	baseURL string,
	logger *zap.Logger,
) *AssetUseCase {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &AssetUseCase{
		repo:      repo,
		blobs:     blobs,
		cache:     cache,
		validator: validator,
		tm:        tm,
		policies:  policies,
		baseURL:   baseURL,
		logger:    logger,
	}
}

// Upload runs the full upload unit: validate, write the original blob,
// create the asset record and apply the owner mutation in one
// transaction. On any failure after the blob write the transaction is
// rolled back and the orphaned blob is deleted best-effort.
func (uc *AssetUseCase) Upload(ctx context.Context, owner OwnerRef, filename string, r io.Reader, mutate OwnerMutation) (*Asset, error) {
	data, format, err := uc.validator.Validate(filename, r)
	if err != nil {
		return nil, err
	}

	blobPath, err := uc.blobs.Put(ctx, string(owner.Kind), "."+extensionFor(filename, format), data)
	if err != nil {
		return nil, err
	}

	asset := &Asset{
		ID:        uuid.NewString(),
		OwnerKind: owner.Kind,
		OwnerID:   owner.ID,
		Path:      blobPath,
		Format:    format,
		SizeBytes: int64(len(data)),
		CreatedAt: time.Now().UTC(),
	}

	err = uc.tm.Transaction(ctx, func(txCtx context.Context) error {
		if err := uc.repo.Create(txCtx, asset); err != nil {
			return err
		}
		if mutate != nil {
			return mutate(txCtx, asset)
		}
		return nil
	})
	if err != nil {
		uc.cleanupOrphan(ctx, blobPath)
		return nil, err
	}

	uc.materializeEager(ctx, asset)

	return asset, nil
}

// extensionFor keeps the claimed extension spelling (jpg vs jpeg) so the
// stored name matches what the client uploaded
func extensionFor(filename string, format Format) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext != "" {
		return ext
	}
	return string(format)
}

// cleanupOrphan best-effort deletes a blob whose record was rolled back.
// A leaked file is recoverable, so failure is logged and never surfaced.
func (uc *AssetUseCase) cleanupOrphan(ctx context.Context, blobPath string) {
	// the upload ctx may already be cancelled, which is exactly when
	// cleanup matters most
	ctx = context.WithoutCancel(ctx)
	if err := uc.blobs.Delete(ctx, blobPath); err != nil && err != ErrBlobNotFound {
		uc.logger.Warn("orphaned blob cleanup failed",
			zap.String("path", blobPath),
			zap.Error(err),
		)
	}
}

// materializeEager pre-builds configured derivative sizes after the
// record has committed. Failures never affect the committed asset.
func (uc *AssetUseCase) materializeEager(ctx context.Context, asset *Asset) {
	policy, ok := uc.policies[asset.OwnerKind]
	if !ok || policy.Materialization != PolicyEager {
		return
	}

	for _, size := range policy.EagerSizes {
		if _, err := uc.cache.Resolve(ctx, asset, size.Width, size.Height); err != nil {
			uc.logger.Warn("eager derivative materialization failed",
				zap.String("asset_id", asset.ID),
				zap.Int("width", size.Width),
				zap.Int("height", size.Height),
				zap.Error(err),
			)
		}
	}
}

// Get returns an asset by id
func (uc *AssetUseCase) Get(ctx context.Context, id string) (*Asset, error) {
	return uc.repo.GetByID(ctx, id)
}

// ListByOwner returns the owner's assets ordered by creation
func (uc *AssetUseCase) ListByOwner(ctx context.Context, owner OwnerRef) ([]*Asset, error) {
	return uc.repo.ListByOwner(ctx, owner.Kind, owner.ID)
}

// ResolveDerivative returns the public URL of the derivative for the
// given asset and dimensions, materializing it on first demand
func (uc *AssetUseCase) ResolveDerivative(ctx context.Context, assetID string, width, height int) (string, error) {
	if width <= 0 || height <= 0 || width > maxDimension || height > maxDimension {
		return "", ErrInvalidDimensions
	}

	asset, err := uc.repo.GetByID(ctx, assetID)
	if err != nil {
		return "", err
	}

	thumbPath, err := uc.cache.Resolve(ctx, asset, width, height)
	if err != nil {
		return "", err
	}

	return uc.publicURL(thumbPath), nil
}

const maxDimension = 4096

// Delete removes the asset record and best-effort deletes the original
// blob together with every known derivative
func (uc *AssetUseCase) Delete(ctx context.Context, assetID string) error {
	asset, err := uc.repo.GetByID(ctx, assetID)
	if err != nil {
		return err
	}

	err = uc.tm.Transaction(ctx, func(txCtx context.Context) error {
		return uc.repo.Delete(txCtx, asset.ID)
	})
	if err != nil {
		return err
	}

	uc.CleanupBlobs(ctx, []*Asset{asset})
	return nil
}

// DeleteRecord removes a single asset row without touching blobs. It
// runs in the ambient transaction when ctx carries one; the caller owns
// blob cleanup after commit.
func (uc *AssetUseCase) DeleteRecord(ctx context.Context, assetID string) error {
	return uc.repo.Delete(ctx, assetID)
}

// DeleteByOwner removes the owner's asset rows. It runs in the ambient
// transaction when ctx carries one, so owner deletion cascades
// atomically; call CleanupBlobs with the previously listed assets after
// the transaction commits.
func (uc *AssetUseCase) DeleteByOwner(ctx context.Context, owner OwnerRef) error {
	return uc.repo.DeleteByOwner(ctx, owner.Kind, owner.ID)
}

// CleanupBlobs best-effort deletes originals and their derivatives for
// assets whose records are already gone. Failures are logged only.
func (uc *AssetUseCase) CleanupBlobs(ctx context.Context, assets []*Asset) {
	ctx = context.WithoutCancel(ctx)
	for _, asset := range assets {
		if err := uc.blobs.Delete(ctx, asset.Path); err != nil && err != ErrBlobNotFound {
			uc.logger.Warn("blob deletion failed",
				zap.String("path", asset.Path),
				zap.Error(err),
			)
		}

		thumbDir := path.Join(path.Dir(asset.Path), thumbnailDir)
		if err := uc.blobs.RemoveMatching(ctx, thumbDir, asset.Stem()+"_*"); err != nil {
			uc.logger.Warn("derivative cleanup failed",
				zap.String("asset_id", asset.ID),
				zap.Error(err),
			)
		}
	}
}

// AssetURL returns the public URL of the original
func (uc *AssetUseCase) AssetURL(asset *Asset) string {
	return uc.publicURL(asset.Path)
}

func (uc *AssetUseCase) publicURL(relPath string) string {
	u, err := url.JoinPath(uc.baseURL, relPath)
	if err != nil {
		return uc.baseURL + relPath
	}
	return u
}
