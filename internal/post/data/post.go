package data

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/akuzmenko/blogpix/internal/pkg/database"
	"github.com/akuzmenko/blogpix/internal/post/biz"
)

// PostPO represents the database model
type PostPO struct {
	ID             int64     `gorm:"primaryKey"`
	Name           string    `gorm:"size:150;not null;index"`
	NormalizedName string    `gorm:"size:150;not null;uniqueIndex"`
	Text           string    `gorm:"type:text;not null"`
	IsPublished    bool      `gorm:"not null;default:false"`
	UserID         int64     `gorm:"not null;index"`
	CreatedAt      time.Time `gorm:"not null;index"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (PostPO) TableName() string {
	return "posts"
}

// PostRepo implements biz.PostRepo
type PostRepo struct {
	db *database.DB
}

func NewPostRepo(db *database.DB) biz.PostRepo {
	return &PostRepo{db: db}
}

func (r *PostRepo) Create(ctx context.Context, post *biz.Post) error {
	po := toPO(post)
	if err := r.db.Conn(ctx).Create(po).Error; err != nil {
		return err
	}
	post.ID = po.ID
	return nil
}

func (r *PostRepo) GetByID(ctx context.Context, id int64) (*biz.Post, error) {
	var po PostPO
	err := r.db.Conn(ctx).Where("id = ?", id).First(&po).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, biz.ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return toPost(&po), nil
}

func (r *PostRepo) Update(ctx context.Context, post *biz.Post) error {
	res := r.db.Conn(ctx).Model(&PostPO{}).Where("id = ?", post.ID).Updates(map[string]interface{}{
		"name":            post.Name,
		"normalized_name": post.NormalizedName,
		"text":            post.Text,
		"is_published":    post.IsPublished,
		"updated_at":      post.UpdatedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return biz.ErrPostNotFound
	}
	return nil
}

func (r *PostRepo) Delete(ctx context.Context, id int64) error {
	res := r.db.Conn(ctx).Where("id = ?", id).Delete(&PostPO{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return biz.ErrPostNotFound
	}
	return nil
}

// applyFilter translates a biz.PostFilter into query scopes
func applyFilter(q *gorm.DB, filter *biz.PostFilter) *gorm.DB {
	if filter == nil {
		return q
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + search + "%"
		q = q.Where("name ILIKE ? OR text ILIKE ?", pattern, pattern)
	}
	q = q.Scopes(
		database.WhereIf(filter.IsPublished != nil, "is_published = ?", derefBool(filter.IsPublished)),
		database.WhereIf(filter.UserID != 0, "user_id = ?", filter.UserID),
	)
	if filter.DateFrom != nil {
		from := startOfDay(*filter.DateFrom)
		q = q.Where("created_at >= ?", from)
	}
	if filter.DateTo != nil {
		q = q.Where("created_at < ?", dayUpperBound(*filter.DateTo))
	}
	return q
}

func derefBool(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// dayUpperBound is the exclusive range end for an inclusive date_to: the
// start of the following day, so sub-second timestamps in the last second
// of the day still match.
func dayUpperBound(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1)
}

var sortableFields = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"name":       "name",
}

func (r *PostRepo) List(ctx context.Context, filter *biz.PostFilter, sort *biz.PostSort, page, pageSize int) ([]*biz.Post, error) {
	q := applyFilter(r.db.Conn(ctx).Model(&PostPO{}), filter)

	field, desc := "created_at", true
	if sort != nil {
		if col, ok := sortableFields[sort.SortBy]; ok {
			field = col
			desc = sort.SortOrder == "desc"
		}
	}

	var pos []PostPO
	err := q.Scopes(
		database.OrderBy(field, desc),
		database.Paginate(page, pageSize),
	).Find(&pos).Error
	if err != nil {
		return nil, err
	}

	posts := make([]*biz.Post, len(pos))
	for i := range pos {
		posts[i] = toPost(&pos[i])
	}
	return posts, nil
}

func (r *PostRepo) Count(ctx context.Context, filter *biz.PostFilter) (int64, error) {
	var count int64
	err := applyFilter(r.db.Conn(ctx).Model(&PostPO{}), filter).Count(&count).Error
	return count, err
}

func (r *PostRepo) NormalizedNameExists(ctx context.Context, normalizedName string, excludeID int64) (bool, error) {
	q := r.db.Conn(ctx).Model(&PostPO{}).Where("normalized_name = ?", normalizedName)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostRepo) CreateAll(ctx context.Context, posts []*biz.Post) error {
	pos := make([]PostPO, len(posts))
	for i, post := range posts {
		pos[i] = *toPO(post)
	}

	if err := r.db.Conn(ctx).Create(&pos).Error; err != nil {
		return err
	}
	for i := range pos {
		posts[i].ID = pos[i].ID
	}
	return nil
}

func (r *PostRepo) UpdateAll(ctx context.Context, ids []int64, update *biz.PostUpdate) (int64, error) {
	values := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if update.Name != nil {
		values["name"] = *update.Name
	}
	if update.NormalizedName != nil {
		values["normalized_name"] = *update.NormalizedName
	}
	if update.Text != nil {
		values["text"] = *update.Text
	}
	if update.IsPublished != nil {
		values["is_published"] = *update.IsPublished
	}

	res := r.db.Conn(ctx).Model(&PostPO{}).Where("id IN ?", ids).Updates(values)
	return res.RowsAffected, res.Error
}

func (r *PostRepo) DeleteAll(ctx context.Context, ids []int64) (int64, error) {
	res := r.db.Conn(ctx).Where("id IN ?", ids).Delete(&PostPO{})
	return res.RowsAffected, res.Error
}

func (r *PostRepo) ExistingIDs(ctx context.Context, ids []int64) ([]int64, error) {
	var existing []int64
	err := r.db.Conn(ctx).Model(&PostPO{}).Where("id IN ?", ids).Pluck("id", &existing).Error
	return existing, err
}

func (r *PostRepo) Stats(ctx context.Context, userID int64) (*biz.PostStats, error) {
	stats := &biz.PostStats{}

	base := r.db.Conn(ctx).Model(&PostPO{}).Scopes(
		database.WhereIf(userID != 0, "user_id = ?", userID),
	)
	if err := base.Count(&stats.TotalPosts).Error; err != nil {
		return nil, err
	}

	published := r.db.Conn(ctx).Model(&PostPO{}).Where("is_published = ?", true).Scopes(
		database.WhereIf(userID != 0, "user_id = ?", userID),
	)
	if err := published.Count(&stats.PublishedPosts).Error; err != nil {
		return nil, err
	}

	rows := r.db.Conn(ctx).Model(&PostPO{}).
		Select("EXTRACT(YEAR FROM created_at)::int AS year, EXTRACT(MONTH FROM created_at)::int AS month, COUNT(id) AS count").
		Scopes(database.WhereIf(userID != 0, "user_id = ?", userID)).
		Group("year, month").
		Order("year, month")

	if err := rows.Scan(&stats.PostsByMonth).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

func toPO(p *biz.Post) *PostPO {
	return &PostPO{
		ID:             p.ID,
		Name:           p.Name,
		NormalizedName: p.NormalizedName,
		Text:           p.Text,
		IsPublished:    p.IsPublished,
		UserID:         p.UserID,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func toPost(po *PostPO) *biz.Post {
	return &biz.Post{
		ID:             po.ID,
		Name:           po.Name,
		NormalizedName: po.NormalizedName,
		Text:           po.Text,
		IsPublished:    po.IsPublished,
		UserID:         po.UserID,
		CreatedAt:      po.CreatedAt,
		UpdatedAt:      po.UpdatedAt,
	}
}
