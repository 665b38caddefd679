// Package allocation manages where the data of a logical entity lives.
//
// A placement gives an entity a footprint on one adapter. Each placement
// carries a subset of the entity's columns and one allocation per partition
// it holds. Manager adds and removes placements, column placements and
// partition placements, creating and dropping the physical tables,
// collections and graph segments through the adapter registry and filling
// new ones through a Migrator.
//
// Every removal is checked first by ValidatePlacementsConstraints, which
// proves that each (column, partition) pair of the entity stays covered by
// some placement. A rejected removal leaves the catalog untouched.
// CheckCoverage reports the pairs that are not covered at all.
//
// Manager writes into the catalog's working state only. Publishing a
// snapshot and resetting statement caches is left to the caller.
package allocation
