package workerpool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPool_SubmitRunsTask(t *testing.T) {
	pool, err := New(&Config{Workers: 2, QueueDepth: 4}, zap.NewNop())
	require.NoError(t, err)
	defer pool.Shutdown()

	done := make(chan struct{})
	require.NoError(t, pool.Submit(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestPool_DoReturnsResult(t *testing.T) {
	pool, err := New(&Config{Workers: 2, QueueDepth: 4}, zap.NewNop())
	require.NoError(t, err)
	defer pool.Shutdown()

	result, err := pool.Do(context.Background(), func() (interface{}, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestPool_DoPropagatesTaskError(t *testing.T) {
	pool, err := New(&Config{Workers: 2, QueueDepth: 4}, zap.NewNop())
	require.NoError(t, err)
	defer pool.Shutdown()

	_, err = pool.Do(context.Background(), func() (interface{}, error) {
		return nil, assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestPool_DoCancelledContext(t *testing.T) {
	pool, err := New(&Config{Workers: 1, QueueDepth: 4}, zap.NewNop())
	require.NoError(t, err)
	defer pool.Shutdown()

	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err = pool.Do(ctx, func() (interface{}, error) {
		<-release
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPool_OverloadRejection(t *testing.T) {
	pool, err := New(&Config{Workers: 1, QueueDepth: 1}, zap.NewNop())
	require.NoError(t, err)
	defer pool.Shutdown()

	release := make(chan struct{})

	// occupy the single worker
	started := make(chan struct{})
	require.NoError(t, pool.Submit(func() {
		close(started)
		<-release
	}))
	<-started

	// fill the single waiting slot with a blocked submitter
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pool.Submit(func() {}) //nolint:errcheck
	}()

	// give the waiter time to park in the queue
	time.Sleep(100 * time.Millisecond)

	// worker busy, queue full: immediate rejection
	err = pool.Submit(func() {})
	assert.ErrorIs(t, err, ErrOverloaded)

	close(release)
	wg.Wait()

	stats := pool.Stats()
	assert.Equal(t, int64(1), stats.Rejected)
}

func TestPool_ZeroQueueDepthStaysBounded(t *testing.T) {
	// A zero depth must fall back to the default bound, not become an
	// unlimited waiting queue that parks submitters forever.
	pool, err := New(&Config{Workers: 1, QueueDepth: 0}, zap.NewNop())
	require.NoError(t, err)
	defer pool.Shutdown()

	release := make(chan struct{})

	started := make(chan struct{})
	require.NoError(t, pool.Submit(func() {
		close(started)
		<-release
	}))
	<-started

	// More submitters than the default queue can hold; the overflow must
	// be rejected instead of waiting.
	depth := DefaultConfig().QueueDepth
	attempts := depth + 16

	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- pool.Submit(func() {})
		}()
	}

	// let the queue fill before freeing the worker
	time.Sleep(200 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	rejected := 0
	for err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrOverloaded)
			rejected++
		}
	}
	// worker held for the whole window, so the 16 submitters over the
	// bound have nowhere to wait
	assert.GreaterOrEqual(t, rejected, 1)
	assert.LessOrEqual(t, rejected, 16)
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	pool, err := New(&Config{Workers: 1, QueueDepth: 1}, zap.NewNop())
	require.NoError(t, err)
	pool.Shutdown()

	assert.ErrorIs(t, pool.Submit(func() {}), ErrPoolClosed)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Greater(t, cfg.Workers, 0)
	assert.Equal(t, 64, cfg.QueueDepth)
}
