// Package polyalloc maintains the catalog of a polystore: which logical
// tables, collections and graphs exist, and where their data physically
// lives across heterogeneous storage adapters.
//
// # Quick Start
//
//	ctx := context.Background()
//	db, _ := polyalloc.Open(ctx,
//	    polyalloc.WithAdapters(memory.New(1, "hot"), memory.New(2, "archive")),
//	    polyalloc.WithStore(blobstore.NewLocalStore("./catalog")),
//	)
//	defer db.Close()
//
//	err := db.Exec(ctx, func(o *ddl.Orchestrator) error {
//	    if _, err := o.CreateNamespace(ctx, "shop", model.Relational, false); err != nil {
//	        return err
//	    }
//	    _, err := o.CreateTable(ctx, ddl.TableSpec{
//	        Namespace:  "shop",
//	        Name:       "orders",
//	        Columns:    []ddl.ColumnSpec{{Name: "id", Type: model.TypeInteger}},
//	        PrimaryKey: []string{"id"},
//	    })
//	    return err
//	})
//
// # Placements and Partitions
//
// Every entity has one or more placements, one per adapter. A placement
// holds a subset of the entity's columns and a subset of its partitions.
// The catalog refuses any change that would leave a column or a partition
// without a full copy somewhere:
//
//	err := db.Exec(ctx, func(o *ddl.Orchestrator) error {
//	    return o.DropPlacement(ctx, "shop", "orders", 1)
//	})
//	errors.Is(err, polyalloc.ErrConstraintViolation) // true if adapter 2 lacks a column
//
// # Transactions
//
// Exec is the transaction boundary. Each verb is published to readers as
// soon as it succeeds and a failing verb leaves the catalog as it was
// before the verb. When fn returns an error, or a deferred commit
// constraint fails, the whole transaction rolls back. Data already moved
// between adapters is not moved back.
//
// # Durability
//
// With WithStore every commit writes a versioned catalog image
// (MANIFEST-NNNNNN.bin) and advances the CURRENT pointer. Any blobstore
// works: local disk, memory, S3 (blobstore/s3) or MinIO (blobstore/minio).
// A local store directory is locked while a DB is open, so a second Open on
// it fails with ErrLocked. On S3, blobstore/s3.DDBCommitStore turns CURRENT
// into a conditional DynamoDB write and reports lost races as
// ErrConcurrentModification.
package polyalloc
