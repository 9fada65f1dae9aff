package biz

import (
	"context"
	"fmt"
	"path"
	"sync"

	"github.com/google/uuid"
)

// memBlobStore is an in-memory BlobStore for tests
type memBlobStore struct {
	mu    sync.Mutex
	files map[string][]byte

	failPut bool
	failGet bool
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{files: map[string][]byte{}}
}

func (s *memBlobStore) Put(_ context.Context, dir, ext string, data []byte) (string, error) {
	if s.failPut {
		return "", ErrStorageFailure
	}
	relPath := path.Join(dir, uuid.NewString()+ext)
	s.mu.Lock()
	s.files[relPath] = data
	s.mu.Unlock()
	return relPath, nil
}

func (s *memBlobStore) PutAt(_ context.Context, relPath string, data []byte) error {
	if s.failPut {
		return ErrStorageFailure
	}
	s.mu.Lock()
	s.files[relPath] = data
	s.mu.Unlock()
	return nil
}

func (s *memBlobStore) Get(_ context.Context, relPath string) ([]byte, error) {
	if s.failGet {
		return nil, ErrStorageFailure
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[relPath]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return data, nil
}

func (s *memBlobStore) Delete(_ context.Context, relPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[relPath]; !ok {
		return ErrBlobNotFound
	}
	delete(s.files, relPath)
	return nil
}

func (s *memBlobStore) Exists(_ context.Context, relPath string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[relPath]
	return ok, nil
}

func (s *memBlobStore) RemoveMatching(_ context.Context, dir, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for relPath := range s.files {
		if path.Dir(relPath) != dir {
			continue
		}
		if ok, _ := path.Match(pattern, path.Base(relPath)); ok {
			delete(s.files, relPath)
		}
	}
	return nil
}

func (s *memBlobStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// memAssetRepo is an in-memory AssetRepo for tests
type memAssetRepo struct {
	mu     sync.Mutex
	assets map[string]*Asset

	failCreate bool
}

func newMemAssetRepo() *memAssetRepo {
	return &memAssetRepo{assets: map[string]*Asset{}}
}

func (r *memAssetRepo) Create(_ context.Context, asset *Asset) error {
	if r.failCreate {
		return fmt.Errorf("insert failed")
	}
	r.mu.Lock()
	r.assets[asset.ID] = asset
	r.mu.Unlock()
	return nil
}

func (r *memAssetRepo) GetByID(_ context.Context, id string) (*Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	asset, ok := r.assets[id]
	if !ok {
		return nil, ErrAssetNotFound
	}
	return asset, nil
}

func (r *memAssetRepo) ListByOwner(_ context.Context, kind OwnerKind, ownerID int64) ([]*Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Asset
	for _, asset := range r.assets {
		if asset.OwnerKind == kind && asset.OwnerID == ownerID {
			out = append(out, asset)
		}
	}
	return out, nil
}

func (r *memAssetRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assets[id]; !ok {
		return ErrAssetNotFound
	}
	delete(r.assets, id)
	return nil
}

func (r *memAssetRepo) DeleteByOwner(_ context.Context, kind OwnerKind, ownerID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, asset := range r.assets {
		if asset.OwnerKind == kind && asset.OwnerID == ownerID {
			delete(r.assets, id)
		}
	}
	return nil
}

func (r *memAssetRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.assets)
}

// memTxManager simulates transactional rollback by snapshotting the repo
// before fn and restoring it when fn fails
type memTxManager struct {
	repo *memAssetRepo
}

func (tm *memTxManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tm.repo.mu.Lock()
	snapshot := make(map[string]*Asset, len(tm.repo.assets))
	for id, asset := range tm.repo.assets {
		snapshot[id] = asset
	}
	tm.repo.mu.Unlock()

	if err := fn(ctx); err != nil {
		tm.repo.mu.Lock()
		tm.repo.assets = snapshot
		tm.repo.mu.Unlock()
		return err
	}
	return nil
}

// countingTransformer returns fixed bytes and counts invocations; it can
// fail the first n calls
type countingTransformer struct {
	mu       sync.Mutex
	calls    int
	failNext int
	output   []byte
}

func (t *countingTransformer) Derive(_ []byte, _ Format, width, height int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if t.failNext > 0 {
		t.failNext--
		return nil, fmt.Errorf("transform exploded")
	}
	if t.output != nil {
		return t.output, nil
	}
	return []byte(fmt.Sprintf("thumb-%dx%d", width, height)), nil
}

func (t *countingTransformer) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}
