package manifest

import "errors"

var (
	// ErrIncompatibleVersion is returned when the image format version is not supported.
	ErrIncompatibleVersion = errors.New("incompatible manifest version")

	// ErrNotFound is returned when no image has been committed yet.
	ErrNotFound = errors.New("manifest not found")

	// ErrChecksumMismatch is returned when an image fails its integrity check.
	ErrChecksumMismatch = errors.New("manifest checksum mismatch")
)
