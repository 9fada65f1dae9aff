package biz

import (
	"fmt"
	"io"
	"path"
)

// Validator checks inbound uploads against format and size policy before
// anything touches storage
type Validator struct {
	maxBytes int64
}

func NewValidator(maxBytes int64) *Validator {
	return &Validator{maxBytes: maxBytes}
}

// MaxBytes returns the configured size ceiling
func (v *Validator) MaxBytes() int64 {
	return v.maxBytes
}

// Validate checks the claimed filename against the extension allow-list
// and reads the entire stream, enforcing the size ceiling, before
// accepting. Nothing is handed to storage until the whole payload is in
// hand, so a truncated or oversized stream can never end up on disk.
// The extension is trusted as-is; pixel content is not sniffed against
// it. That is a deliberate simplification, not a security guarantee.
func (v *Validator) Validate(filename string, r io.Reader) ([]byte, Format, error) {
	format, ok := FormatFromExtension(path.Ext(filename))
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, path.Ext(filename))
	}

	data, err := io.ReadAll(io.LimitReader(r, v.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: reading upload: %v", ErrStorageFailure, err)
	}
	if int64(len(data)) > v.maxBytes {
		return nil, "", fmt.Errorf("%w: limit %d bytes", ErrPayloadTooLarge, v.maxBytes)
	}

	return data, format, nil
}
