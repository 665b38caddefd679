// Package catalog stores the logical schema and its allocation topology.
//
// Every record kind lives in an id-keyed map. Records reference each other
// only through numeric ids, so there are no pointer cycles and a read view is
// a shallow copy of the maps.
//
// # Read and Write Views
//
// A Catalog has a single working state guarded by a mutex. Writers mutate it
// through Add/Update/Delete methods; readers use an immutable *Snapshot that
// is only replaced by UpdateSnapshot, Commit or Rollback. A Snapshot never
// changes after it is published.
//
// # Referential Integrity
//
// Deletes refuse to remove a record that is still referenced. Dropping a
// table therefore has to proceed from allocation entities up to the logical
// entity:
//
//	allocation -> allocation column -> placement -> partition -> group/property
//	  -> index -> constraint -> key -> column -> entity
//
// # Transactions
//
// Commit evaluates deferred commit constraints against the working state and,
// when a manifest store is configured, persists a new catalog image. Rollback
// discards every change since the last commit.
package catalog
