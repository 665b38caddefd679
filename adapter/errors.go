package adapter

import (
	"errors"
	"fmt"

	"github.com/hupe1980/polyalloc/model"
)

var (
	// ErrUnknownAdapter is returned when no adapter is registered for an id.
	ErrUnknownAdapter = errors.New("unknown adapter")
	// ErrUnsupportedModel is returned when an adapter cannot store a data model.
	ErrUnsupportedModel = errors.New("data model not supported by adapter")
	// ErrReadOnly is returned when a write is sent to a data source.
	ErrReadOnly = errors.New("adapter is read-only")
	// ErrNoSuchAllocation is returned by adapters that do not hold the
	// physical entity of an allocation.
	ErrNoSuchAllocation = errors.New("no such physical entity")
	// ErrPhysicalExists is returned when the physical entity of an
	// allocation is created twice.
	ErrPhysicalExists = errors.New("physical entity already exists")
)

// Error wraps a failure of a physical operation.
type Error struct {
	Adapter model.AdapterID
	Op      string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("adapter %d: %s: %v", e.Adapter, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns nil for a nil err and an *Error otherwise.
func Wrap(a model.AdapterID, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Adapter: a, Op: op, Err: err}
}
