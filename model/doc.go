// Package model defines the identity and enumeration types shared by the
// catalog, the partition engine and the allocation layer.
//
// # Identity Types
//
//   - NamespaceID, EntityID, ColumnID: logical schema objects
//   - KeyID, IndexID, ConstraintID: logical schema metadata
//   - AdapterID: a registered storage engine
//   - PlacementID, GroupID, PartitionID, AllocationID: allocation records
//
// All identifiers are int64 and allocated by the catalog. The zero value of
// every identifier means "none".
//
// # Enumerations
//
//   - DataModel: relational, document or graph
//   - EntityType: entity, source, view or materialized view
//   - PlacementType: automatic, manual or static column placement
//   - PartitionType: none, hash, range, list or temperature
//   - PolyType: logical column type
//
// Every enumeration implements fmt.Stringer and has a Parse function that
// accepts the case-insensitive String form.
package model
