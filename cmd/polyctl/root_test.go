package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/polyalloc"
	"github.com/hupe1980/polyalloc/adapter/memory"
	"github.com/hupe1980/polyalloc/blobstore"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/ddl"
	"github.com/hupe1980/polyalloc/model"
	"github.com/hupe1980/polyalloc/testutil"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append([]string{"--no-color"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// seed writes a catalog with one table on two adapters and returns its
// directory. Every extra column adds one catalog image.
func seed(t *testing.T, extraColumns ...string) string {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	db, err := polyalloc.Open(ctx,
		polyalloc.WithStore(blobstore.NewLocalStore(dir)),
		polyalloc.WithAdapters(memory.New(1, "a"), memory.New(2, "b")),
	)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Exec(ctx, func(o *ddl.Orchestrator) error {
		if _, err := o.CreateNamespace(ctx, "shop", model.Relational, false); err != nil {
			return err
		}
		_, err := o.CreateTable(ctx, ddl.TableSpec{
			Namespace: "shop",
			Name:      "orders",
			Columns: []ddl.ColumnSpec{
				{Name: "id", Type: model.TypeInteger},
				{Name: "customer", Type: model.TypeVarchar, Nullable: true},
			},
			PrimaryKey: []string{"id"},
			Adapters:   []model.AdapterID{1, 2},
		})
		return err
	}))
	for _, name := range extraColumns {
		require.NoError(t, db.Exec(ctx, func(o *ddl.Orchestrator) error {
			_, err := o.AddColumn(ctx, "shop", "orders", ddl.ColumnSpec{Name: name, Type: model.TypeVarchar, Nullable: true})
			return err
		}))
	}
	return dir
}

func TestInspect(t *testing.T) {
	dir := seed(t)

	t.Run("list", func(t *testing.T) {
		out, err := run(t, "--path", dir, "inspect")
		require.NoError(t, err)
		assert.Contains(t, out, "catalog image 1")
		assert.Contains(t, out, "shop")
		assert.Contains(t, out, "orders")
		assert.Contains(t, out, "1,2")
	})

	t.Run("entity", func(t *testing.T) {
		out, err := run(t, "--path", dir, "inspect", "shop.orders")
		require.NoError(t, err)
		assert.Contains(t, out, "PLACED ON")
		assert.Contains(t, out, "customer")
		assert.Contains(t, out, "ALLOCATIONS")
	})

	t.Run("unknown entity", func(t *testing.T) {
		_, err := run(t, "--path", dir, "inspect", "shop.missing")
		assert.ErrorIs(t, err, catalog.ErrNotFound)
	})

	t.Run("unqualified", func(t *testing.T) {
		_, err := run(t, "--path", dir, "inspect", "orders")
		assert.Error(t, err)
	})

	t.Run("empty store", func(t *testing.T) {
		_, err := run(t, "--path", t.TempDir(), "inspect")
		assert.ErrorContains(t, err, "no catalog image")
	})
}

func TestVerify(t *testing.T) {
	t.Run("fully placed", func(t *testing.T) {
		out, err := run(t, "--path", seed(t), "verify")
		require.NoError(t, err)
		assert.Contains(t, out, "ok: 1 entities fully placed")
	})

	t.Run("gaps", func(t *testing.T) {
		ctx := context.Background()
		dir := t.TempDir()
		cat, err := catalog.Open(ctx, blobstore.NewLocalStore(dir))
		require.NoError(t, err)
		f := testutil.NewFixtureOn(t, cat)
		f.Table(t, "unplaced", testutil.Int("id"), testutil.Varchar("name"))
		require.NoError(t, cat.Commit(ctx))

		out, err := run(t, "--path", dir, "verify")
		require.ErrorIs(t, err, errCoverage)
		assert.Contains(t, out, "public.unplaced")
		assert.Contains(t, out, "2 uncovered column partitions")
	})
}

func TestVersionsAndPrune(t *testing.T) {
	ctx := context.Background()
	dir := seed(t, "note", "status")

	out, err := run(t, "--path", dir, "versions")
	require.NoError(t, err)
	assert.Contains(t, out, "IMAGE")
	assert.Contains(t, out, "*")

	_, err = run(t, "--path", dir, "prune", "--keep", "0")
	assert.Error(t, err)

	out, err = run(t, "--path", dir, "prune", "--keep", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "pruned 2 images")

	images, err := catalog.ListImages(ctx, blobstore.NewLocalStore(dir))
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, uint64(3), images[0].ID)

	out, err = run(t, "--path", dir, "prune", "--keep", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to prune")
}

func TestConfig(t *testing.T) {
	dir := seed(t)

	t.Run("file", func(t *testing.T) {
		cfg := filepath.Join(t.TempDir(), "polyctl.yaml")
		require.NoError(t, os.WriteFile(cfg, []byte("store:\n  kind: local\n  path: "+dir+"\n"), 0o600))

		out, err := run(t, "--config", cfg, "inspect")
		require.NoError(t, err)
		assert.Contains(t, out, "orders")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := run(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "inspect")
		assert.Error(t, err)
	})

	t.Run("env", func(t *testing.T) {
		t.Setenv("POLYCTL_STORE_PATH", dir)
		out, err := run(t, "inspect")
		require.NoError(t, err)
		assert.Contains(t, out, "orders")
	})

	t.Run("unknown store", func(t *testing.T) {
		_, err := run(t, "--store", "ftp", "inspect")
		assert.ErrorContains(t, err, `unknown store kind "ftp"`)
	})

	t.Run("s3 without bucket", func(t *testing.T) {
		_, err := run(t, "--store", "s3", "versions")
		assert.ErrorContains(t, err, "bucket is required")
	})
}
