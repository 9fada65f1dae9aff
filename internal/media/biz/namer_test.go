package biz

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDerivativeName(t *testing.T) {
	tests := []struct {
		name   string
		source string
		width  int
		height int
	}{
		{"jpg source", "a1b2c3d4.jpg", 300, 300},
		{"png source", "photo.png", 50, 50},
		{"gif source", "banner.gif", 1200, 400},
		{"stem with underscores", "my_photo_final.jpeg", 300, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DerivativeName(tt.source, tt.width, tt.height)

			key := fmt.Sprintf("%s_%dx%d",
				tt.source[:len(tt.source)-len(pathExt(tt.source))],
				tt.width, tt.height)
			sum := md5.Sum([]byte(key))
			want := key + "_" + hex.EncodeToString(sum[:])[:8] + pathExt(tt.source)

			assert.Equal(t, want, got)
		})
	}
}

func pathExt(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i:]
		}
	}
	return ""
}

func TestDerivativeName_Deterministic(t *testing.T) {
	first := DerivativeName("photo.jpg", 300, 300)
	second := DerivativeName("photo.jpg", 300, 300)
	assert.Equal(t, first, second)
}

func TestDerivativeName_DistinctPerDimensions(t *testing.T) {
	names := map[string]bool{
		DerivativeName("photo.jpg", 300, 300): true,
		DerivativeName("photo.jpg", 300, 200): true,
		DerivativeName("photo.jpg", 200, 300): true,
		DerivativeName("photo.jpg", 50, 50):   true,
	}
	assert.Len(t, names, 4)
}

func TestDerivativeName_DistinctFromSource(t *testing.T) {
	assert.NotEqual(t, "photo.jpg", DerivativeName("photo.jpg", 300, 300))
}

func TestDerivativeName_KnownValue(t *testing.T) {
	// hash8 = md5("photo_300x300")[:8]
	sum := md5.Sum([]byte("photo_300x300"))
	want := "photo_300x300_" + hex.EncodeToString(sum[:])[:8] + ".jpg"
	assert.Equal(t, want, DerivativeName("photo.jpg", 300, 300))
}

func TestDerivativePath(t *testing.T) {
	got := DerivativePath("posts/abc.jpg", 300, 300)
	assert.Equal(t, "posts/thumbnails/"+DerivativeName("abc.jpg", 300, 300), got)
}
