// Package ddl sequences catalog writes, physical adapter calls and data
// migration into complete DDL verbs.
//
// Every verb follows the same discipline:
//
//  1. validate names, data models and the current topology without writing
//  2. write the logical and allocation records to the working catalog
//  3. create, alter or drop the physical allocations on the adapters
//  4. copy existing data into new allocations
//  5. publish the working catalog with UpdateSnapshot
//  6. reset the statement caches
//
// A verb that fails in step 1 leaves the catalog untouched. Failures after
// the first write are not compensated; the caller discards the working
// state with catalog.Rollback.
package ddl
