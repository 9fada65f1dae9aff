package biz

// Derivative naming. The computed name is a pure function of the source
// path and target dimensions, stable across processes and instances,
// which is what makes the existence check in the cache valid no matter
// when or where a derivative was materialized.

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
)

const thumbnailDir = "thumbnails"

// DerivativeName computes the thumbnail file name for a source file name
// and target dimensions: {stem}_{W}x{H}_{hash8}{ext}, where hash8 is the
// first 8 hex chars of MD5 over "{stem}_{W}x{H}". The dimensions keep
// the name human-inspectable; the fingerprint guarantees uniqueness per
// (source, dimensions) pair even when stems share prefixes, and keeps
// the name distinct from the original's. The exact layout is persisted
// on shared volumes, so it must never change.
func DerivativeName(sourceName string, width, height int) string {
	ext := path.Ext(sourceName)
	stem := strings.TrimSuffix(sourceName, ext)

	key := fmt.Sprintf("%s_%dx%d", stem, width, height)
	sum := md5.Sum([]byte(key))
	hash8 := hex.EncodeToString(sum[:])[:8]

	return fmt.Sprintf("%s_%s%s", key, hash8, ext)
}

// DerivativePath computes the storage-relative path of the derivative
// for a source asset path: {dir}/thumbnails/{derivative name}
func DerivativePath(sourcePath string, width, height int) string {
	dir := path.Dir(sourcePath)
	return path.Join(dir, thumbnailDir, DerivativeName(path.Base(sourcePath), width, height))
}
