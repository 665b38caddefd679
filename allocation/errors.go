package allocation

import (
	"errors"
	"fmt"

	"github.com/hupe1980/polyalloc/model"
)

var (
	// ErrConstraintViolation is returned when a removal would leave a
	// (column, partition) pair without any placement.
	ErrConstraintViolation = errors.New("placement constraint violated")
	// ErrLastPlacement is returned when a column placement is the last one
	// holding the column for some partition.
	ErrLastPlacement = errors.New("last placement of column")
	// ErrPrimaryKeyPlacement is returned when a primary key column would be
	// removed from a placement.
	ErrPrimaryKeyPlacement = errors.New("primary key column cannot be removed from placement")
	// ErrIndexPreventsRemoval is returned when an index on the adapter still
	// uses the column.
	ErrIndexPreventsRemoval = errors.New("index prevents removal of column placement")
	// ErrModelMismatch is returned when an adapter cannot store the entity's
	// data model.
	ErrModelMismatch = errors.New("adapter does not support data model")
	// ErrNotPlaceable is returned for entities that have no physical data,
	// such as plain views.
	ErrNotPlaceable = errors.New("entity cannot be placed")
	// ErrMissingKey is returned when rows from several placements must be
	// merged but the entity has no primary key.
	ErrMissingKey = errors.New("entity has no primary key")
)

// PlacementError adds the entity, adapter and column to a placement failure.
type PlacementError struct {
	Entity  model.EntityID
	Adapter model.AdapterID
	Column  model.ColumnID
	Err     error
}

func (e *PlacementError) Error() string {
	if e.Column != 0 {
		return fmt.Sprintf("entity %d, adapter %d, column %d: %v", e.Entity, e.Adapter, e.Column, e.Err)
	}
	return fmt.Sprintf("entity %d, adapter %d: %v", e.Entity, e.Adapter, e.Err)
}

func (e *PlacementError) Unwrap() error { return e.Err }
