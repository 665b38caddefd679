package main

import (
	"context"
	"errors"
	"fmt"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"

	"github.com/hupe1980/polyalloc/blobstore"
	"github.com/hupe1980/polyalloc/blobstore/minio"
	"github.com/hupe1980/polyalloc/blobstore/s3"
)

// openStore returns the blob store selected by the store.* settings.
func openStore(ctx context.Context, v *viper.Viper) (blobstore.BlobStore, error) {
	switch kind := v.GetString("store.kind"); kind {
	case "", "local":
		return blobstore.NewLocalStore(v.GetString("store.path")), nil
	case "s3":
		bucket := v.GetString("store.bucket")
		if bucket == "" {
			return nil, errors.New("s3 store: bucket is required")
		}
		opts := []s3.Option{s3.WithPrefix(v.GetString("store.prefix"))}
		if region := v.GetString("store.region"); region != "" {
			opts = append(opts, s3.WithRegion(region))
		}
		return s3.New(ctx, bucket, opts...)
	case "minio":
		bucket := v.GetString("store.bucket")
		endpoint := v.GetString("store.endpoint")
		if bucket == "" || endpoint == "" {
			return nil, errors.New("minio store: bucket and endpoint are required")
		}
		client, err := miniogo.New(endpoint, &miniogo.Options{
			Creds:  credentials.NewStaticV4(v.GetString("store.access_key"), v.GetString("store.secret_key"), ""),
			Secure: !v.GetBool("store.insecure"),
		})
		if err != nil {
			return nil, fmt.Errorf("minio store: %w", err)
		}
		return minio.NewStore(client, bucket, v.GetString("store.prefix")), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", kind)
	}
}
