// Package s3 stores catalog images in Amazon S3.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket", s3.WithPrefix("catalog/"))
//
// S3 overwrites are strongly consistent, so a single writer can use Store
// directly. Deployments with more than one potential writer should wrap the
// store in a DDBCommitStore, which serializes pointer updates through a
// DynamoDB conditional write.
package s3
