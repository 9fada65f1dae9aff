package data

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akuzmenko/blogpix/internal/media/biz"
)

// LocalStore implements biz.BlobStore on a local or network-mounted
// filesystem. Writes go to a temp file in the destination directory and
// are renamed into place, so a crash mid-write never leaves a truncated
// file visible under its final name. The atomic rename is the sole
// concurrency control and holds across process boundaries on a shared
// volume.
type LocalStore struct {
	root   string
	logger *zap.Logger
}

func NewLocalStore(root string, logger *zap.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", root, err)
	}
	return &LocalStore{root: root, logger: logger}, nil
}

// Root returns the storage root directory
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) abs(relPath string) string {
	return filepath.Join(s.root, filepath.FromSlash(relPath))
}

// Put writes data under a fresh random name in dir and returns the
// relative path. The uuid token makes collisions with existing blobs
// practically impossible.
func (s *LocalStore) Put(ctx context.Context, dir, ext string, data []byte) (string, error) {
	relPath := path.Join(dir, uuid.NewString()+ext)
	if err := s.PutAt(ctx, relPath, data); err != nil {
		return "", err
	}
	return relPath, nil
}

// PutAt writes data at exactly relPath, atomically
func (s *LocalStore) PutAt(_ context.Context, relPath string, data []byte) error {
	dst := s.abs(relPath)

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", biz.ErrStorageFailure, filepath.Dir(dst), err)
	}

	// temp file in the destination directory so the rename stays on one
	// filesystem and therefore atomic
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", biz.ErrStorageFailure, err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: write %s: %v", biz.ErrStorageFailure, relPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: close %s: %v", biz.ErrStorageFailure, relPath, err)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: publish %s: %v", biz.ErrStorageFailure, relPath, err)
	}

	return nil
}

func (s *LocalStore) Get(_ context.Context, relPath string) ([]byte, error) {
	data, err := os.ReadFile(s.abs(relPath))
	if os.IsNotExist(err) {
		return nil, biz.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", biz.ErrStorageFailure, relPath, err)
	}
	return data, nil
}

func (s *LocalStore) Delete(_ context.Context, relPath string) error {
	err := os.Remove(s.abs(relPath))
	if os.IsNotExist(err) {
		return biz.ErrBlobNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", biz.ErrStorageFailure, relPath, err)
	}
	return nil
}

func (s *LocalStore) Exists(_ context.Context, relPath string) (bool, error) {
	_, err := os.Stat(s.abs(relPath))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: stat %s: %v", biz.ErrStorageFailure, relPath, err)
	}
	return true, nil
}

// RemoveMatching deletes files in dir matching pattern. Every match is
// attempted; the first error is returned afterwards.
func (s *LocalStore) RemoveMatching(_ context.Context, dir, pattern string) error {
	matches, err := filepath.Glob(filepath.Join(s.abs(dir), pattern))
	if err != nil {
		return fmt.Errorf("%w: glob %s: %v", biz.ErrStorageFailure, pattern, err)
	}

	var firstErr error
	for _, match := range matches {
		if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove file", zap.String("path", match), zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: remove %s: %v", biz.ErrStorageFailure, match, err)
			}
		}
	}
	return firstErr
}
