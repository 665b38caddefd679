// Package index maintains polystore indexes.
//
// A polystore index is a LogicalIndex with no adapter location. Its entries
// live in memory and are rebuilt from the placements of the indexed entity
// whenever the allocation topology changes. Every entry maps the values of
// the index columns to the primary keys of the matching rows.
package index
