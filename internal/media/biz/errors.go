package biz

import "errors"

// Validation errors: caller input, reported, never retried
var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrPayloadTooLarge   = errors.New("file size exceeds limit")
)

// Storage and lookup errors
var (
	ErrAssetNotFound  = errors.New("asset not found")
	ErrOwnerNotFound  = errors.New("asset owner not found")
	ErrBlobNotFound   = errors.New("blob not found")
	ErrStorageFailure = errors.New("storage operation failed")
)

// Derivation errors: local to a single resolve call, the source asset
// stays intact and usable
var (
	ErrDerivationFailed = errors.New("derivative generation failed")
	ErrOverloaded       = errors.New("transform workers overloaded")
)

var ErrInvalidDimensions = errors.New("invalid derivative dimensions")
