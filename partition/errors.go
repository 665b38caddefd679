package partition

import (
	"errors"
	"fmt"

	"github.com/hupe1980/polyalloc/model"
)

var (
	// ErrUnsupportedColumn is returned when a strategy cannot partition a
	// column of the given type.
	ErrUnsupportedColumn = errors.New("unsupported partition column")
	// ErrInvalidSetup is returned for malformed group names, counts or
	// qualifiers.
	ErrInvalidSetup = errors.New("invalid partition setup")
	// ErrUnknownType is returned by the factory for unregistered types.
	ErrUnknownType = errors.New("unknown partition type")
)

// SetupError describes why a partition setup was rejected.
type SetupError struct {
	Type   model.PartitionType
	Reason string
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("%s partitioning: %s", e.Type, e.Reason)
}

func (e *SetupError) Unwrap() error { return ErrInvalidSetup }

func setupErr(t model.PartitionType, format string, args ...any) error {
	return &SetupError{Type: t, Reason: fmt.Sprintf(format, args...)}
}

// ColumnError reports a partitioning column of an unsupported type.
type ColumnError struct {
	Type   model.PartitionType
	Column string
	Col    model.PolyType
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("partition function %s does not support column %q of type %s", e.Type, e.Column, e.Col)
}

func (e *ColumnError) Unwrap() error { return ErrUnsupportedColumn }
