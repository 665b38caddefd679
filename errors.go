package polyalloc

import (
	"errors"

	"github.com/hupe1980/polyalloc/allocation"
	"github.com/hupe1980/polyalloc/blobstore"
	"github.com/hupe1980/polyalloc/blobstore/s3"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/ddl"
	"github.com/hupe1980/polyalloc/partition"
)

var (
	// ErrClosed is returned by operations on a closed DB.
	ErrClosed = errors.New("polyalloc: closed")

	ErrNotFound         = catalog.ErrNotFound
	ErrAlreadyExists    = catalog.ErrAlreadyExists
	ErrCommitConstraint = catalog.ErrCommitConstraint

	// ErrConstraintViolation is returned when a placement change would leave
	// a column without any full placement.
	ErrConstraintViolation  = allocation.ErrConstraintViolation
	ErrLastPlacement        = allocation.ErrLastPlacement
	ErrPrimaryKeyPlacement  = allocation.ErrPrimaryKeyPlacement
	ErrIndexPreventsRemoval = allocation.ErrIndexPreventsRemoval

	ErrNotNullWithoutDefault = ddl.ErrNotNullWithoutDefault
	ErrDependentView         = ddl.ErrDependentView
	ErrModelMismatch         = ddl.ErrModelMismatch
	ErrNotModifiable         = ddl.ErrNotModifiable

	ErrUnsupportedPartitionColumn = partition.ErrUnsupportedColumn
	ErrInvalidPartitionSetup      = partition.ErrInvalidSetup

	// ErrConcurrentModification is returned when another writer committed a
	// catalog image first.
	ErrConcurrentModification = s3.ErrConcurrentModification

	// ErrLocked is returned by Open when another DB holds the store.
	ErrLocked = blobstore.ErrLocked
)

// IsRejection reports whether err refused a statement to protect data or a
// placement rule, as opposed to a lookup or I/O failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrConstraintViolation) ||
		errors.Is(err, ErrLastPlacement) ||
		errors.Is(err, ErrPrimaryKeyPlacement) ||
		errors.Is(err, ErrIndexPreventsRemoval) ||
		errors.Is(err, ErrDependentView) ||
		errors.Is(err, allocation.ErrModelMismatch) ||
		errors.Is(err, ErrCommitConstraint)
}
