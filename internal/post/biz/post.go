package biz

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	mediabiz "github.com/akuzmenko/blogpix/internal/media/biz"
)

var (
	ErrPostNotFound      = errors.New("post not found")
	ErrPostNameTaken     = errors.New("post with the same name already exists")
	ErrPostNameTooLong   = errors.New("post name exceeds 150 characters")
	ErrPostImageNotFound = errors.New("post image not found")
)

const maxNameLength = 150

// Post represents the domain model
type Post struct {
	ID             int64
	Name           string
	NormalizedName string
	Text           string
	IsPublished    bool
	UserID         int64
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Images []*mediabiz.Asset
}

// PostFilter narrows post listings
type PostFilter struct {
	Search      string // matches name or text, case-insensitive
	IsPublished *bool
	UserID      int64
	DateFrom    *time.Time // matched from start of day
	DateTo      *time.Time // matched through end of day
}

// PostSort orders post listings
type PostSort struct {
	SortBy    string // created_at, updated_at, name
	SortOrder string // asc, desc
}

// MonthCount is a per-month post counter for stats
type MonthCount struct {
	Year  int   `json:"year"`
	Month int   `json:"month"`
	Count int64 `json:"count"`
}

// PostStats aggregates posting activity
type PostStats struct {
	TotalPosts     int64        `json:"total_posts"`
	PublishedPosts int64        `json:"published_posts"`
	PostsByMonth   []MonthCount `json:"posts_by_month"`
}

// PostRepo defines the interface for post data operations
type PostRepo interface {
	Create(ctx context.Context, post *Post) error
	GetByID(ctx context.Context, id int64) (*Post, error)
	Update(ctx context.Context, post *Post) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter *PostFilter, sort *PostSort, page, pageSize int) ([]*Post, error)
	Count(ctx context.Context, filter *PostFilter) (int64, error)
	NormalizedNameExists(ctx context.Context, normalizedName string, excludeID int64) (bool, error)
	CreateAll(ctx context.Context, posts []*Post) error
	UpdateAll(ctx context.Context, ids []int64, update *PostUpdate) (int64, error)
	DeleteAll(ctx context.Context, ids []int64) (int64, error)
	ExistingIDs(ctx context.Context, ids []int64) ([]int64, error)
	Stats(ctx context.Context, userID int64) (*PostStats, error)
}

// PostUpdate carries partial updates; nil fields are left untouched
type PostUpdate struct {
	Name        *string
	Text        *string
	IsPublished *bool

	// derived from Name when set
	NormalizedName *string
}

// PostUseCase contains business logic for posts and their images
type PostUseCase struct {
	repo   PostRepo
	media  *mediabiz.AssetUseCase
	tm     mediabiz.TransactionManager
	logger *zap.Logger
}

func NewPostUseCase(repo PostRepo, media *mediabiz.AssetUseCase, tm mediabiz.TransactionManager, logger *zap.Logger) *PostUseCase {
	return &PostUseCase{repo: repo, media: media, tm: tm, logger: logger}
}

func (uc *PostUseCase) validateName(ctx context.Context, name string, excludeID int64) (string, error) {
	if len([]rune(name)) > maxNameLength {
		return "", ErrPostNameTooLong
	}

	normalized := NormalizeName(name)
	taken, err := uc.repo.NormalizedNameExists(ctx, normalized, excludeID)
	if err != nil {
		return "", err
	}
	if taken {
		return "", ErrPostNameTaken
	}
	return normalized, nil
}

func (uc *PostUseCase) CreatePost(ctx context.Context, name, text string, userID int64) (*Post, error) {
	normalized, err := uc.validateName(ctx, name, 0)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	post := &Post{
		Name:           name,
		NormalizedName: normalized,
		Text:           text,
		IsPublished:    true,
		UserID:         userID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := uc.repo.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (uc *PostUseCase) GetPost(ctx context.Context, id int64) (*Post, error) {
	post, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	images, err := uc.media.ListByOwner(ctx, uc.ownerRef(id))
	if err != nil {
		return nil, err
	}
	post.Images = images

	return post, nil
}

func (uc *PostUseCase) UpdatePost(ctx context.Context, id int64, update *PostUpdate) (*Post, error) {
	post, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		normalized, err := uc.validateName(ctx, *update.Name, id)
		if err != nil {
			return nil, err
		}
		post.Name = *update.Name
		post.NormalizedName = normalized
	}
	if update.Text != nil {
		post.Text = *update.Text
	}
	if update.IsPublished != nil {
		post.IsPublished = *update.IsPublished
	}
	post.UpdatedAt = time.Now().UTC()

	if err := uc.repo.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// DeletePost removes the post and cascades its images: asset rows go in
// the same transaction as the post row, blobs are cleaned up best-effort
// after commit.
func (uc *PostUseCase) DeletePost(ctx context.Context, id int64) error {
	owner := uc.ownerRef(id)

	assets, err := uc.media.ListByOwner(ctx, owner)
	if err != nil {
		return err
	}

	err = uc.tm.Transaction(ctx, func(txCtx context.Context) error {
		if err := uc.media.DeleteByOwner(txCtx, owner); err != nil {
			return err
		}
		return uc.repo.Delete(txCtx, id)
	})
	if err != nil {
		return err
	}

	uc.media.CleanupBlobs(ctx, assets)
	return nil
}

func (uc *PostUseCase) ListPosts(ctx context.Context, filter *PostFilter, sort *PostSort, page, pageSize int) ([]*Post, int64, error) {
	posts, err := uc.repo.List(ctx, filter, sort, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	total, err := uc.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	for _, post := range posts {
		images, err := uc.media.ListByOwner(ctx, uc.ownerRef(post.ID))
		if err != nil {
			return nil, 0, err
		}
		post.Images = images
	}

	return posts, total, nil
}

// BulkCreate creates posts atomically; one duplicate name fails the batch
func (uc *PostUseCase) BulkCreate(ctx context.Context, inputs []*Post) ([]*Post, error) {
	now := time.Now().UTC()
	posts := make([]*Post, 0, len(inputs))

	err := uc.tm.Transaction(ctx, func(txCtx context.Context) error {
		seen := make(map[string]struct{}, len(inputs))
		for _, in := range inputs {
			normalized, err := uc.validateName(txCtx, in.Name, 0)
			if err != nil {
				return err
			}
			if _, dup := seen[normalized]; dup {
				return ErrPostNameTaken
			}
			seen[normalized] = struct{}{}
			posts = append(posts, &Post{
				Name:           in.Name,
				NormalizedName: normalized,
				Text:           in.Text,
				IsPublished:    true,
				UserID:         in.UserID,
				CreatedAt:      now,
				UpdatedAt:      now,
			})
		}
		return uc.repo.CreateAll(txCtx, posts)
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// BulkUpdate applies the update to every existing id, skipping unknown
// ones. Returns (matched, updated).
func (uc *PostUseCase) BulkUpdate(ctx context.Context, ids []int64, update *PostUpdate) (int64, int64, error) {
	if len(ids) == 0 {
		return 0, 0, nil
	}

	existing, err := uc.repo.ExistingIDs(ctx, ids)
	if err != nil {
		return 0, 0, err
	}
	if len(existing) == 0 {
		return 0, 0, nil
	}

	if update.Name != nil {
		normalized := NormalizeName(*update.Name)
		update.NormalizedName = &normalized
	}

	updated, err := uc.repo.UpdateAll(ctx, existing, update)
	if err != nil {
		return 0, 0, err
	}
	return int64(len(existing)), updated, nil
}

// BulkDelete removes the posts and cascades their images the same way
// DeletePost does: asset rows inside the transaction, blobs after commit.
func (uc *PostUseCase) BulkDelete(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	existing, err := uc.repo.ExistingIDs(ctx, ids)
	if err != nil {
		return 0, err
	}
	if len(existing) == 0 {
		return 0, nil
	}

	var orphaned []*mediabiz.Asset
	for _, id := range existing {
		assets, err := uc.media.ListByOwner(ctx, uc.ownerRef(id))
		if err != nil {
			return 0, err
		}
		orphaned = append(orphaned, assets...)
	}

	var deleted int64
	err = uc.tm.Transaction(ctx, func(txCtx context.Context) error {
		for _, id := range existing {
			if err := uc.media.DeleteByOwner(txCtx, uc.ownerRef(id)); err != nil {
				return err
			}
		}
		deleted, err = uc.repo.DeleteAll(txCtx, existing)
		return err
	})
	if err != nil {
		return 0, err
	}

	uc.media.CleanupBlobs(ctx, orphaned)
	return deleted, nil
}

func (uc *PostUseCase) Stats(ctx context.Context, userID int64) (*PostStats, error) {
	return uc.repo.Stats(ctx, userID)
}

// UploadImage attaches a new image to the post. Post images use the
// eager policy: configured thumbnail sizes are materialized right after
// the upload commits.
func (uc *PostUseCase) UploadImage(ctx context.Context, postID int64, filename string, r io.Reader) (*mediabiz.Asset, error) {
	if _, err := uc.repo.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	return uc.media.Upload(ctx, uc.ownerRef(postID), filename, r, nil)
}

func (uc *PostUseCase) ListImages(ctx context.Context, postID int64) ([]*mediabiz.Asset, error) {
	if _, err := uc.repo.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	return uc.media.ListByOwner(ctx, uc.ownerRef(postID))
}

// DeleteImage removes one image after verifying it belongs to the post
func (uc *PostUseCase) DeleteImage(ctx context.Context, postID int64, assetID string) error {
	asset, err := uc.media.Get(ctx, assetID)
	if err != nil {
		return err
	}
	if asset.OwnerKind != mediabiz.OwnerKindPost || asset.OwnerID != postID {
		return ErrPostImageNotFound
	}
	return uc.media.Delete(ctx, assetID)
}

// ImageURL returns the public URL of a post image original
func (uc *PostUseCase) ImageURL(asset *mediabiz.Asset) string {
	return uc.media.AssetURL(asset)
}

func (uc *PostUseCase) ownerRef(postID int64) mediabiz.OwnerRef {
	return mediabiz.OwnerRef{Kind: mediabiz.OwnerKindPost, ID: postID}
}
