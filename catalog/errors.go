package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a lookup finds no record.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a name or key is already taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrStillReferenced is returned when a delete would leave dangling references.
	ErrStillReferenced = errors.New("still referenced")
	// ErrCommitConstraint is returned when a deferred commit constraint fails.
	ErrCommitConstraint = errors.New("commit constraint violated")
)

// Kind names a record kind in errors and journal entries.
type Kind string

const (
	KindNamespace   Kind = "namespace"
	KindEntity      Kind = "entity"
	KindColumn      Kind = "column"
	KindKey         Kind = "key"
	KindIndex       Kind = "index"
	KindConstraint  Kind = "constraint"
	KindPlacement   Kind = "placement"
	KindAllocColumn Kind = "allocation column"
	KindGroup       Kind = "partition group"
	KindPartition   Kind = "partition"
	KindProperty    Kind = "partition property"
	KindAllocation  Kind = "allocation"
)

// NotFoundError reports a missing record, by id or by name.
type NotFoundError struct {
	Kind Kind
	ID   int64
	Name string
}

func (e *NotFoundError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
	}
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFound[T ~int64](kind Kind, id T) error {
	return &NotFoundError{Kind: kind, ID: int64(id)}
}

func notFoundName(kind Kind, name string) error {
	return &NotFoundError{Kind: kind, Name: name}
}

// AlreadyExistsError reports a duplicate name or key.
type AlreadyExistsError struct {
	Kind Kind
	Name string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.Name)
}

func (e *AlreadyExistsError) Unwrap() error { return ErrAlreadyExists }

// ReferencedError reports a delete that was refused because other records
// still point at the target.
type ReferencedError struct {
	Kind Kind
	ID   int64
	By   Kind
}

func (e *ReferencedError) Error() string {
	return fmt.Sprintf("%s %d is still referenced by a %s", e.Kind, e.ID, e.By)
}

func (e *ReferencedError) Unwrap() error { return ErrStillReferenced }

func referenced[T ~int64](kind Kind, id T, by Kind) error {
	return &ReferencedError{Kind: kind, ID: int64(id), By: by}
}

// CommitConstraintError lists the messages of every failed commit constraint.
type CommitConstraintError struct {
	Messages []string
}

func (e *CommitConstraintError) Error() string {
	return "commit constraint violated: " + strings.Join(e.Messages, "; ")
}

func (e *CommitConstraintError) Unwrap() error { return ErrCommitConstraint }
