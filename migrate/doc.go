// Package migrate copies data between allocations.
//
// CopyData fills new allocations of a placement from the allocations of the
// same partition on other placements. When the requested columns are spread
// over several placements, rows are merged by primary key. CopyAllocationData
// moves data from the old allocations of a placement into new ones after a
// repartitioning, routing every row through the entity's partition manager.
//
// Copies are synchronous and best effort. A failure aborts the copy but does
// not undo rows that were already written.
package migrate
