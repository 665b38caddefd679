// Package blobstore provides the storage substrate for persisted catalog
// images.
//
// The catalog writes each committed image as an immutable blob and then
// swaps a small pointer blob. BlobStore therefore only needs whole-blob
// writes, range reads, deletion and prefix listing.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, used by tests and embedded catalogs
//   - LocalStore: local filesystem with atomic rename on Put
//   - s3.Store: Amazon S3
//   - s3.DDBCommitStore: S3 plus DynamoDB conditional writes for the pointer
//   - minio.Store: MinIO and other S3-compatible servers
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
