package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/polyalloc/blobstore"
	"github.com/hupe1980/polyalloc/codec"
	"github.com/hupe1980/polyalloc/internal/manifest"
)

// ImageInfo describes a persisted catalog image.
type ImageInfo = manifest.Info

// ErrNoImage is returned when a store holds no catalog image.
var ErrNoImage = manifest.ErrNotFound

// Open creates a catalog that persists to store and loads the image CURRENT
// points to. An empty store yields an empty catalog.
func Open(ctx context.Context, store blobstore.BlobStore, opts ...Option) (*Catalog, error) {
	c := New(append(opts, WithStore(store))...)

	m, err := c.manifests.Load(ctx)
	if errors.Is(err, manifest.ErrNotFound) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load catalog image: %w", err)
	}
	s, err := decodeImage(m)
	if err != nil {
		return nil, err
	}

	c.working = s
	c.committed = s.clone()
	c.imageID = m.ID
	c.version = m.ID - 1
	c.publish(c.committed)
	c.logger.Info("catalog opened", "image", m.ID, "codec", m.Codec, "compression", m.Compression.String())
	return c, nil
}

// LoadVersion reads image id from store as a read-only snapshot. Id 0
// selects the current image. The snapshot version is the image id.
func LoadVersion(ctx context.Context, store blobstore.BlobStore, id uint64) (*Snapshot, error) {
	m, err := manifest.NewStore(store).LoadVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	s, err := decodeImage(m)
	if err != nil {
		return nil, err
	}
	return &Snapshot{s: s, version: m.ID}, nil
}

// ListImages returns the images in store ordered by id.
func ListImages(ctx context.Context, store blobstore.BlobStore) ([]ImageInfo, error) {
	return manifest.NewStore(store).ListVersions(ctx)
}

// PruneImages deletes all but the newest keep images from store and returns
// the deleted ids.
func PruneImages(ctx context.Context, store blobstore.BlobStore, keep int) ([]uint64, error) {
	return manifest.NewStore(store).Prune(ctx, keep)
}

func (c *Catalog) persist(ctx context.Context) error {
	body, err := c.codec.Marshal(c.working)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	m := &manifest.Manifest{
		ID:          c.imageID,
		Codec:       c.codec.Name(),
		Compression: c.compression,
		Body:        body,
	}
	if err := c.manifests.Save(ctx, m); err != nil {
		return err
	}
	c.imageID = m.ID
	c.logger.Debug("catalog image saved", "image", m.ID, "bytes", len(body))
	return nil
}

func decodeImage(m *manifest.Manifest) (*state, error) {
	cd, ok := codec.ByName(m.Codec)
	if !ok {
		return nil, fmt.Errorf("catalog image %d: unknown codec %q", m.ID, m.Codec)
	}
	s := &state{}
	if err := cd.Unmarshal(m.Body, s); err != nil {
		return nil, fmt.Errorf("decode catalog image %d: %w", m.ID, err)
	}
	s.init()
	return s, nil
}
