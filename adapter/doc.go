// Package adapter defines the contracts between the allocation layer and the
// storage engines that hold physical data.
//
// Every allocation entity is realized by exactly one adapter. Relational
// allocations are tables (DataStore), document allocations are collections
// (DocumentStore) and graph allocations are graph segments (GraphStore). An
// adapter implements the capabilities of the data models it supports.
// DataSource adapters expose external, read-only tables.
//
// Physical names are derived from catalog ids (alloc_<id>, col_<id>,
// idx_<index>_<alloc>), so renaming a logical object never touches an
// adapter.
//
// Registry resolves adapter ids to implementations. Implementations live in
// the subpackages memory, postgres, mysql, mongodb and neo4j.
package adapter
