package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_Lifecycle(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalStore(tmpDir)
	ctx := context.Background()

	data := []byte("catalog image payload")
	require.NoError(t, store.Put(ctx, "MANIFEST-000001.bin", data))

	_, err := os.Stat(filepath.Join(tmpDir, "MANIFEST-000001.bin"))
	require.NoError(t, err)

	blob, err := store.Open(ctx, "MANIFEST-000001.bin")
	require.NoError(t, err)
	defer blob.Close()
	assert.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 8)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "image", string(buf))

	got, err := ReadAll(ctx, store, "MANIFEST-000001.bin")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestLocalStore_ListAndDelete(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	for _, name := range []string{"MANIFEST-000002.bin", "MANIFEST-000001.bin", "CURRENT"} {
		require.NoError(t, store.Put(ctx, name, []byte(name)))
	}

	names, err := store.List(ctx, "MANIFEST")
	require.NoError(t, err)
	assert.Equal(t, []string{"MANIFEST-000001.bin", "MANIFEST-000002.bin"}, names)

	require.NoError(t, store.Delete(ctx, "MANIFEST-000001.bin"))
	require.NoError(t, store.Delete(ctx, "MANIFEST-000001.bin"))

	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"CURRENT", "MANIFEST-000002.bin"}, names)
}

func TestLocalStore_OpenMissing(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	_, err := store.Open(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Open(ctx, "CURRENT")
	require.ErrorIs(t, err, ErrNotFound)

	src := []byte("v1")
	require.NoError(t, store.Put(ctx, "CURRENT", src))
	src[0] = 'x'

	got, err := ReadAll(ctx, store, "CURRENT")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))

	require.NoError(t, store.Put(ctx, "a/1", nil))
	require.NoError(t, store.Put(ctx, "a/2", nil))
	names, err := store.List(ctx, "a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/1", "a/2"}, names)

	require.NoError(t, store.Delete(ctx, "a/1"))
	names, err = store.List(ctx, "a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/2"}, names)
	assert.Equal(t, 3, store.Puts())
}

func TestBytesBlob(t *testing.T) {
	ctx := context.Background()
	b := BytesBlob([]byte("manifest"))
	assert.Equal(t, int64(8), b.Size())

	p := make([]byte, 4)
	n, err := b.ReadAt(ctx, p, 6)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "st", string(p[:n]))

	n, err = b.ReadAt(ctx, p, 8)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, b.Close())
}

func TestLocalStore_Lock(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(dir)

	unlock, err := s.Lock()
	require.NoError(t, err)

	_, err = NewLocalStore(dir).Lock()
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, unlock())

	unlock, err = NewLocalStore(dir).Lock()
	require.NoError(t, err)
	require.NoError(t, unlock())
}
