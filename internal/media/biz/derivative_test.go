package biz

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akuzmenko/blogpix/internal/pkg/workerpool"
)

func newTestPool(t *testing.T) *workerpool.Pool {
	t.Helper()
	pool, err := workerpool.New(&workerpool.Config{Workers: 4, QueueDepth: 64}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pool.Shutdown)
	return pool
}

func testAsset() *Asset {
	return &Asset{
		ID:        "11111111-1111-1111-1111-111111111111",
		OwnerKind: OwnerKindPost,
		OwnerID:   1,
		Path:      "posts/source.jpg",
		Format:    FormatJPEG,
	}
}

func TestDerivativeCache_Hit(t *testing.T) {
	blobs := newMemBlobStore()
	transformer := &countingTransformer{}
	cache := NewDerivativeCache(blobs, transformer, newTestPool(t), zap.NewNop())

	asset := testAsset()
	thumbPath := DerivativePath(asset.Path, 300, 300)
	require.NoError(t, blobs.PutAt(context.Background(), thumbPath, []byte("existing")))

	got, err := cache.Resolve(context.Background(), asset, 300, 300)
	require.NoError(t, err)
	assert.Equal(t, thumbPath, got)
	assert.Equal(t, 0, transformer.callCount(), "existing derivative must not be regenerated")
}

func TestDerivativeCache_MissMaterializes(t *testing.T) {
	blobs := newMemBlobStore()
	transformer := &countingTransformer{output: []byte("fresh thumb")}
	cache := NewDerivativeCache(blobs, transformer, newTestPool(t), zap.NewNop())

	asset := testAsset()
	require.NoError(t, blobs.PutAt(context.Background(), asset.Path, []byte("source bytes")))

	got, err := cache.Resolve(context.Background(), asset, 300, 300)
	require.NoError(t, err)
	assert.Equal(t, DerivativePath(asset.Path, 300, 300), got)
	assert.Equal(t, 1, transformer.callCount())

	stored, err := blobs.Get(context.Background(), got)
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh thumb"), stored)
}

func TestDerivativeCache_ConcurrentResolvesSingleTransform(t *testing.T) {
	blobs := newMemBlobStore()
	transformer := &countingTransformer{output: []byte("thumb")}
	cache := NewDerivativeCache(blobs, transformer, newTestPool(t), zap.NewNop())

	asset := testAsset()
	require.NoError(t, blobs.PutAt(context.Background(), asset.Path, []byte("source")))

	const callers = 16
	var wg sync.WaitGroup
	paths := make([]string, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = cache.Resolve(context.Background(), asset, 300, 300)
		}(i)
	}
	wg.Wait()

	want := DerivativePath(asset.Path, 300, 300)
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, want, paths[i])
	}
	assert.Equal(t, 1, transformer.callCount(), "concurrent resolves must share one transform")
}

func TestDerivativeCache_FailureNotCached(t *testing.T) {
	blobs := newMemBlobStore()
	transformer := &countingTransformer{failNext: 1, output: []byte("thumb")}
	cache := NewDerivativeCache(blobs, transformer, newTestPool(t), zap.NewNop())

	asset := testAsset()
	require.NoError(t, blobs.PutAt(context.Background(), asset.Path, []byte("source")))

	_, err := cache.Resolve(context.Background(), asset, 300, 300)
	assert.ErrorIs(t, err, ErrDerivationFailed)

	// the failed attempt must not have published anything
	exists, _ := blobs.Exists(context.Background(), DerivativePath(asset.Path, 300, 300))
	assert.False(t, exists)

	// the next resolve retries and succeeds
	got, err := cache.Resolve(context.Background(), asset, 300, 300)
	require.NoError(t, err)
	assert.Equal(t, DerivativePath(asset.Path, 300, 300), got)
	assert.Equal(t, 2, transformer.callCount())
}

func TestDerivativeCache_SourceUnreadable(t *testing.T) {
	blobs := newMemBlobStore()
	transformer := &countingTransformer{}
	cache := NewDerivativeCache(blobs, transformer, newTestPool(t), zap.NewNop())

	// source blob missing entirely
	_, err := cache.Resolve(context.Background(), testAsset(), 300, 300)
	assert.ErrorIs(t, err, ErrDerivationFailed)
	assert.Equal(t, 0, transformer.callCount())
}

func TestDerivativeCache_DistinctSizesDistinctPaths(t *testing.T) {
	blobs := newMemBlobStore()
	transformer := &countingTransformer{}
	cache := NewDerivativeCache(blobs, transformer, newTestPool(t), zap.NewNop())

	asset := testAsset()
	require.NoError(t, blobs.PutAt(context.Background(), asset.Path, []byte("source")))

	large, err := cache.Resolve(context.Background(), asset, 300, 300)
	require.NoError(t, err)
	small, err := cache.Resolve(context.Background(), asset, 50, 50)
	require.NoError(t, err)

	assert.NotEqual(t, large, small)
	assert.Equal(t, 2, transformer.callCount())
}
