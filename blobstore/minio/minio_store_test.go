package minio

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/hupe1980/polyalloc/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStore_Integration requires a running MinIO instance at MINIO_ENDPOINT.
func TestStore_Integration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT not set")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	require.NoError(t, err)

	ctx := context.Background()
	bucket := "polyalloc-test"
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "catalog/")

	image := []byte("catalog image v1")
	require.NoError(t, store.Put(ctx, "MANIFEST-000001.bin", image))
	require.NoError(t, store.Put(ctx, "CURRENT", []byte("MANIFEST-000001.bin")))

	got, err := blobstore.ReadAll(ctx, store, "MANIFEST-000001.bin")
	require.NoError(t, err)
	assert.Equal(t, image, got)

	names, err := store.List(ctx, "MANIFEST")
	require.NoError(t, err)
	assert.Contains(t, names, "MANIFEST-000001.bin")

	require.NoError(t, store.Delete(ctx, "MANIFEST-000001.bin"))
	require.NoError(t, store.Delete(ctx, "CURRENT"))

	_, err = store.Open(ctx, "MANIFEST-000001.bin")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(minio.ErrorResponse{Code: "NoSuchKey"}), blobstore.ErrNotFound)
	assert.ErrorIs(t, translate(minio.ErrorResponse{Code: "NotFound"}), blobstore.ErrNotFound)

	denied := minio.ErrorResponse{Code: "AccessDenied"}
	assert.Equal(t, error(denied), translate(denied))

	other := errors.New("connection reset")
	assert.Same(t, other, translate(other))
}
