package ddl

import (
	"errors"
	"fmt"
)

var (
	// ErrNotNullWithoutDefault is returned when a NOT NULL column without a
	// default is added to an existing table.
	ErrNotNullWithoutDefault = errors.New("column is not nullable and has no default value")
	// ErrDependentView is returned when an entity that views read from is
	// dropped or altered.
	ErrDependentView = errors.New("entity has dependent views")
	// ErrNotModifiable is returned for structural changes of views and
	// sources.
	ErrNotModifiable = errors.New("entity is not modifiable")
	// ErrModelMismatch is returned when an entity does not match the data
	// model of its namespace or of the verb.
	ErrModelMismatch = errors.New("data model mismatch")
	// ErrForeignKeyReference is returned when a key that a foreign key of
	// another entity references would be dropped.
	ErrForeignKeyReference = errors.New("referenced by foreign key")
	// ErrAlreadyPartitioned is returned when a partitioned table is
	// partitioned again.
	ErrAlreadyPartitioned = errors.New("table is already partitioned")
	// ErrNotPartitioned is returned when an unpartitioned table is merged.
	ErrNotPartitioned = errors.New("table is not partitioned")
	// ErrKeyNotPlaced is returned when a primary key would cover columns
	// that some placement does not hold.
	ErrKeyNotPlaced = errors.New("primary key column missing on placement")
	// ErrNoMaterializer is returned when a materialized view is refreshed
	// without a configured Materializer.
	ErrNoMaterializer = errors.New("no materializer configured")
	// ErrInvalidDefinition is returned for malformed entity definitions.
	ErrInvalidDefinition = errors.New("invalid definition")
)

// VerbError ties a failure to the DDL verb and statement that caused it.
type VerbError struct {
	Verb      string
	Statement string
	Target    string
	Err       error
}

func (e *VerbError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s %s: %v", e.Verb, e.Target, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Verb, e.Err)
}

func (e *VerbError) Unwrap() error { return e.Err }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDefinition, fmt.Sprintf(format, args...))
}
