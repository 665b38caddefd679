package catalog

import (
	"io"
	"log/slog"

	"github.com/hupe1980/polyalloc/blobstore"
	"github.com/hupe1980/polyalloc/codec"
	"github.com/hupe1980/polyalloc/internal/manifest"
)

// Compression selects how committed images are compressed.
type Compression = manifest.Compression

const (
	CompressionNone = manifest.CompressionNone
	CompressionLZ4  = manifest.CompressionLZ4
	CompressionZSTD = manifest.CompressionZSTD
)

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger for the catalog.
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStore persists every commit as a new image in store.
func WithStore(store blobstore.BlobStore) Option {
	return func(c *Catalog) {
		if store != nil {
			c.manifests = manifest.NewStore(store)
		}
	}
}

// WithCodec sets the codec used to encode committed images.
// Defaults to codec.Default.
func WithCodec(cd codec.Codec) Option {
	return func(c *Catalog) {
		if cd != nil {
			c.codec = cd
		}
	}
}

// WithCompression sets the compression of committed images.
func WithCompression(comp Compression) Option {
	return func(c *Catalog) {
		c.compression = comp
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
