package biz

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/akuzmenko/blogpix/internal/pkg/workerpool"
)

// Transformer performs the pixel-level derivation. Pure computation,
// no side effects.
type Transformer interface {
	Derive(src []byte, format Format, width, height int) ([]byte, error)
}

// DerivativeCache resolves derivative paths, materializing missing ones
// exactly once per process via single-flight. Across processes sharing
// the storage volume, concurrent first-readers may still race; that is
// safe because the transform is deterministic and publication is an
// atomic rename, so every racer converges to identical bytes. Failures
// are never cached: the next resolve retries.
type DerivativeCache struct {
	blobs     BlobStore
	transform Transformer
	pool      *workerpool.Pool
	group     singleflight.Group
	logger    *zap.Logger
}

func NewDerivativeCache(blobs BlobStore, transform Transformer, pool *workerpool.Pool, logger *zap.Logger) *DerivativeCache {
	return &DerivativeCache{
		blobs:     blobs,
		transform: transform,
		pool:      pool,
		logger:    logger,
	}
}

// Resolve returns the storage-relative path of the derivative for the
// asset and dimensions, producing it on a cache miss. The transform runs
// on the worker pool, never on the calling goroutine.
func (c *DerivativeCache) Resolve(ctx context.Context, asset *Asset, width, height int) (string, error) {
	thumbPath := DerivativePath(asset.Path, width, height)

	exists, err := c.blobs.Exists(ctx, thumbPath)
	if err != nil {
		return "", err
	}
	if exists {
		return thumbPath, nil
	}

	_, err, _ = c.group.Do(thumbPath, func() (interface{}, error) {
		// another in-process caller may have finished while we queued
		if exists, err := c.blobs.Exists(ctx, thumbPath); err == nil && exists {
			return nil, nil
		}
		return nil, c.materialize(ctx, asset, thumbPath, width, height)
	})
	if err != nil {
		return "", err
	}

	return thumbPath, nil
}

func (c *DerivativeCache) materialize(ctx context.Context, asset *Asset, thumbPath string, width, height int) error {
	src, err := c.blobs.Get(ctx, asset.Path)
	if err != nil {
		return fmt.Errorf("%w: source unreadable: %v", ErrDerivationFailed, err)
	}

	derived, err := c.pool.Do(ctx, func() (interface{}, error) {
		return c.transform.Derive(src, asset.Format, width, height)
	})
	if err != nil {
		if errors.Is(err, workerpool.ErrOverloaded) {
			return fmt.Errorf("%w: %w", ErrDerivationFailed, ErrOverloaded)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrDerivationFailed, err)
	}

	if err := c.blobs.PutAt(ctx, thumbPath, derived.([]byte)); err != nil {
		return err
	}

	c.logger.Debug("derivative materialized",
		zap.String("asset_id", asset.ID),
		zap.String("path", thumbPath),
	)
	return nil
}
