package biz

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mediabiz "github.com/akuzmenko/blogpix/internal/media/biz"
)

type memPostRepo struct {
	mu     sync.Mutex
	posts  map[int64]*Post
	nextID int64
}

func newMemPostRepo() *memPostRepo {
	return &memPostRepo{posts: map[int64]*Post{}}
}

func (r *memPostRepo) Create(_ context.Context, post *Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	post.ID = r.nextID
	r.posts[post.ID] = post
	return nil
}

func (r *memPostRepo) GetByID(_ context.Context, id int64) (*Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	return post, nil
}

func (r *memPostRepo) Update(_ context.Context, post *Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[post.ID]; !ok {
		return ErrPostNotFound
	}
	r.posts[post.ID] = post
	return nil
}

func (r *memPostRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[id]; !ok {
		return ErrPostNotFound
	}
	delete(r.posts, id)
	return nil
}

func (r *memPostRepo) List(_ context.Context, _ *PostFilter, _ *PostSort, _, _ int) ([]*Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Post
	for _, post := range r.posts {
		out = append(out, post)
	}
	return out, nil
}

func (r *memPostRepo) Count(_ context.Context, _ *PostFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.posts)), nil
}

func (r *memPostRepo) NormalizedNameExists(_ context.Context, normalizedName string, excludeID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, post := range r.posts {
		if post.NormalizedName == normalizedName && post.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memPostRepo) CreateAll(ctx context.Context, posts []*Post) error {
	for _, post := range posts {
		if err := r.Create(ctx, post); err != nil {
			return err
		}
	}
	return nil
}

func (r *memPostRepo) UpdateAll(_ context.Context, ids []int64, update *PostUpdate) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var updated int64
	for _, id := range ids {
		post, ok := r.posts[id]
		if !ok {
			continue
		}
		if update.Text != nil {
			post.Text = *update.Text
		}
		if update.IsPublished != nil {
			post.IsPublished = *update.IsPublished
		}
		updated++
	}
	return updated, nil
}

func (r *memPostRepo) DeleteAll(_ context.Context, ids []int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for _, id := range ids {
		if _, ok := r.posts[id]; ok {
			delete(r.posts, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *memPostRepo) ExistingIDs(_ context.Context, ids []int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var existing []int64
	for _, id := range ids {
		if _, ok := r.posts[id]; ok {
			existing = append(existing, id)
		}
	}
	return existing, nil
}

func (r *memPostRepo) Stats(_ context.Context, _ int64) (*PostStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &PostStats{TotalPosts: int64(len(r.posts))}
	for _, post := range r.posts {
		if post.IsPublished {
			stats.PublishedPosts++
		}
	}
	return stats, nil
}

// passthroughTx runs fn directly; rollback behavior is covered by the
// media package tests
type passthroughTx struct{}

func (passthroughTx) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memAssetStore struct {
	mu     sync.Mutex
	assets map[string]*mediabiz.Asset
}

func newMemAssetStore() *memAssetStore {
	return &memAssetStore{assets: map[string]*mediabiz.Asset{}}
}

func (s *memAssetStore) Create(_ context.Context, asset *mediabiz.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *asset
	s.assets[asset.ID] = &stored
	return nil
}

func (s *memAssetStore) GetByID(_ context.Context, id string) (*mediabiz.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	asset, ok := s.assets[id]
	if !ok {
		return nil, mediabiz.ErrAssetNotFound
	}
	return asset, nil
}

func (s *memAssetStore) ListByOwner(_ context.Context, kind mediabiz.OwnerKind, ownerID int64) ([]*mediabiz.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*mediabiz.Asset
	for _, asset := range s.assets {
		if asset.OwnerKind == kind && asset.OwnerID == ownerID {
			out = append(out, asset)
		}
	}
	return out, nil
}

func (s *memAssetStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[id]; !ok {
		return mediabiz.ErrAssetNotFound
	}
	delete(s.assets, id)
	return nil
}

func (s *memAssetStore) DeleteByOwner(_ context.Context, kind mediabiz.OwnerKind, ownerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, asset := range s.assets {
		if asset.OwnerKind == kind && asset.OwnerID == ownerID {
			delete(s.assets, id)
		}
	}
	return nil
}

type memBlobs struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemBlobs() *memBlobs {
	return &memBlobs{files: map[string][]byte{}}
}

func (b *memBlobs) Put(_ context.Context, dir, ext string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rel := path.Join(dir, fmt.Sprintf("blob-%d%s", len(b.files)+1, ext))
	b.files[rel] = data
	return rel, nil
}

func (b *memBlobs) PutAt(_ context.Context, relPath string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[relPath] = data
	return nil
}

func (b *memBlobs) Get(_ context.Context, relPath string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.files[relPath]
	if !ok {
		return nil, mediabiz.ErrBlobNotFound
	}
	return data, nil
}

func (b *memBlobs) Delete(_ context.Context, relPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.files[relPath]; !ok {
		return mediabiz.ErrBlobNotFound
	}
	delete(b.files, relPath)
	return nil
}

func (b *memBlobs) Exists(_ context.Context, relPath string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.files[relPath]
	return ok, nil
}

func (b *memBlobs) RemoveMatching(_ context.Context, dir, pattern string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for rel := range b.files {
		if path.Dir(rel) != dir {
			continue
		}
		if ok, _ := path.Match(pattern, path.Base(rel)); ok {
			delete(b.files, rel)
		}
	}
	return nil
}

func (b *memBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.files)
}

type postFixture struct {
	uc     *PostUseCase
	repo   *memPostRepo
	assets *memAssetStore
	blobs  *memBlobs
}

func newPostFixture() *postFixture {
	repo := newMemPostRepo()
	assets := newMemAssetStore()
	blobs := newMemBlobs()
	media := mediabiz.NewAssetUseCase(assets, blobs, nil, nil, passthroughTx{}, nil, "/media/", zap.NewNop())
	return &postFixture{
		uc:     NewPostUseCase(repo, media, passthroughTx{}, zap.NewNop()),
		repo:   repo,
		assets: assets,
		blobs:  blobs,
	}
}

// seedAsset plants an asset row and its blobs for a post, bypassing the
// upload path
func (f *postFixture) seedAsset(t *testing.T, postID int64, stem string) *mediabiz.Asset {
	t.Helper()
	asset := &mediabiz.Asset{
		ID:        fmt.Sprintf("asset-%s", stem),
		OwnerKind: mediabiz.OwnerKindPost,
		OwnerID:   postID,
		Path:      path.Join("posts", stem+".jpg"),
		Format:    mediabiz.FormatJPEG,
		SizeBytes: 3,
	}
	require.NoError(t, f.assets.Create(context.Background(), asset))
	require.NoError(t, f.blobs.PutAt(context.Background(), asset.Path, []byte("img")))
	require.NoError(t, f.blobs.PutAt(context.Background(),
		path.Join("posts", "thumbnails", stem+"_300x300_deadbeef.jpg"), []byte("thumb")))
	return asset
}

func newTestPostUseCase() (*PostUseCase, *memPostRepo) {
	f := newPostFixture()
	return f.uc, f.repo
}

func TestCreatePost(t *testing.T) {
	uc, _ := newTestPostUseCase()

	post, err := uc.CreatePost(context.Background(), "My First Post", "hello", 1)
	require.NoError(t, err)

	assert.NotZero(t, post.ID)
	assert.Equal(t, "My First Post", post.Name)
	assert.Equal(t, "myfirstpost", post.NormalizedName)
	assert.True(t, post.IsPublished)
	assert.Equal(t, int64(1), post.UserID)
}

func TestCreatePost_NameTooLong(t *testing.T) {
	uc, _ := newTestPostUseCase()

	_, err := uc.CreatePost(context.Background(), strings.Repeat("a", 151), "text", 1)
	assert.ErrorIs(t, err, ErrPostNameTooLong)
}

func TestCreatePost_NameAtLimit(t *testing.T) {
	uc, _ := newTestPostUseCase()

	_, err := uc.CreatePost(context.Background(), strings.Repeat("a", 150), "text", 1)
	assert.NoError(t, err)
}

func TestCreatePost_DuplicateNormalizedName(t *testing.T) {
	uc, _ := newTestPostUseCase()
	ctx := context.Background()

	_, err := uc.CreatePost(ctx, "My Post", "text", 1)
	require.NoError(t, err)

	// different spelling, same normalized key
	_, err = uc.CreatePost(ctx, "my-post!", "text", 1)
	assert.ErrorIs(t, err, ErrPostNameTaken)

	// transliterated collision
	_, err = uc.CreatePost(ctx, "Май Пост", "text", 1)
	assert.NoError(t, err, "distinct normalized names must not collide")
}

func TestUpdatePost(t *testing.T) {
	uc, _ := newTestPostUseCase()
	ctx := context.Background()

	post, err := uc.CreatePost(ctx, "Original", "text", 1)
	require.NoError(t, err)

	newName := "Renamed"
	unpublish := false
	updated, err := uc.UpdatePost(ctx, post.ID, &PostUpdate{Name: &newName, IsPublished: &unpublish})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "renamed", updated.NormalizedName)
	assert.False(t, updated.IsPublished)
}

func TestUpdatePost_KeepOwnName(t *testing.T) {
	uc, _ := newTestPostUseCase()
	ctx := context.Background()

	post, err := uc.CreatePost(ctx, "Stable Name", "text", 1)
	require.NoError(t, err)

	// renaming to its own current name must not trip the uniqueness check
	name := "Stable Name"
	_, err = uc.UpdatePost(ctx, post.ID, &PostUpdate{Name: &name})
	assert.NoError(t, err)
}

func TestUpdatePost_RenameToTakenName(t *testing.T) {
	uc, _ := newTestPostUseCase()
	ctx := context.Background()

	_, err := uc.CreatePost(ctx, "First", "text", 1)
	require.NoError(t, err)
	second, err := uc.CreatePost(ctx, "Second", "text", 1)
	require.NoError(t, err)

	name := "FIRST"
	_, err = uc.UpdatePost(ctx, second.ID, &PostUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrPostNameTaken)
}

func TestUpdatePost_NotFound(t *testing.T) {
	uc, _ := newTestPostUseCase()

	text := "new"
	_, err := uc.UpdatePost(context.Background(), 999, &PostUpdate{Text: &text})
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestBulkCreate_DuplicateInBatchFails(t *testing.T) {
	uc, _ := newTestPostUseCase()

	_, err := uc.BulkCreate(context.Background(), []*Post{
		{Name: "Alpha", Text: "a", UserID: 1},
		{Name: "alpha!", Text: "b", UserID: 1},
	})
	assert.ErrorIs(t, err, ErrPostNameTaken)
}

func TestBulkCreate(t *testing.T) {
	uc, _ := newTestPostUseCase()

	posts, err := uc.BulkCreate(context.Background(), []*Post{
		{Name: "Alpha", Text: "a", UserID: 1},
		{Name: "Beta", Text: "b", UserID: 2},
	})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.NotZero(t, posts[0].ID)
	assert.NotZero(t, posts[1].ID)
	assert.True(t, posts[0].IsPublished)
}

func TestBulkUpdate_SkipsUnknownIDs(t *testing.T) {
	uc, _ := newTestPostUseCase()
	ctx := context.Background()

	first, err := uc.CreatePost(ctx, "First", "text", 1)
	require.NoError(t, err)
	second, err := uc.CreatePost(ctx, "Second", "text", 1)
	require.NoError(t, err)

	unpublish := false
	matched, updated, err := uc.BulkUpdate(ctx, []int64{first.ID, second.ID, 999}, &PostUpdate{IsPublished: &unpublish})
	require.NoError(t, err)

	assert.Equal(t, int64(2), matched)
	assert.Equal(t, int64(2), updated)
}

func TestBulkUpdate_EmptyInput(t *testing.T) {
	uc, _ := newTestPostUseCase()

	matched, updated, err := uc.BulkUpdate(context.Background(), nil, &PostUpdate{})
	require.NoError(t, err)
	assert.Zero(t, matched)
	assert.Zero(t, updated)
}

func TestBulkDelete(t *testing.T) {
	uc, _ := newTestPostUseCase()
	ctx := context.Background()

	first, err := uc.CreatePost(ctx, "First", "text", 1)
	require.NoError(t, err)

	deleted, err := uc.BulkDelete(ctx, []int64{first.ID, 999})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestBulkDelete_CascadesImages(t *testing.T) {
	f := newPostFixture()
	ctx := context.Background()

	first, err := f.uc.CreatePost(ctx, "First", "text", 1)
	require.NoError(t, err)
	second, err := f.uc.CreatePost(ctx, "Second", "text", 1)
	require.NoError(t, err)
	survivor, err := f.uc.CreatePost(ctx, "Survivor", "text", 1)
	require.NoError(t, err)

	firstAsset := f.seedAsset(t, first.ID, "one")
	f.seedAsset(t, second.ID, "two")
	kept := f.seedAsset(t, survivor.ID, "three")

	deleted, err := f.uc.BulkDelete(ctx, []int64{first.ID, second.ID, 999})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	// asset rows of the deleted posts are gone, blobs and derivatives too
	_, err = f.assets.GetByID(ctx, firstAsset.ID)
	assert.ErrorIs(t, err, mediabiz.ErrAssetNotFound)
	remaining, err := f.uc.ListImages(ctx, survivor.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, kept.ID, remaining[0].ID)

	// only the survivor's original and derivative remain on disk
	assert.Equal(t, 2, f.blobs.count())
	exists, err := f.blobs.Exists(ctx, kept.Path)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStats(t *testing.T) {
	uc, _ := newTestPostUseCase()
	ctx := context.Background()

	_, err := uc.CreatePost(ctx, "First", "text", 1)
	require.NoError(t, err)
	second, err := uc.CreatePost(ctx, "Second", "text", 1)
	require.NoError(t, err)

	unpublish := false
	_, _, err = uc.BulkUpdate(ctx, []int64{second.ID}, &PostUpdate{IsPublished: &unpublish})
	require.NoError(t, err)

	stats, err := uc.Stats(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalPosts)
	assert.Equal(t, int64(1), stats.PublishedPosts)
}
