package polyalloc

import (
	"log/slog"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/blobstore"
	"github.com/hupe1980/polyalloc/cache"
	"github.com/hupe1980/polyalloc/cache/redis"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/codec"
	"github.com/hupe1980/polyalloc/ddl"
	"github.com/hupe1980/polyalloc/resource"
	"github.com/hupe1980/polyalloc/route"
)

type options struct {
	store            blobstore.BlobStore
	adapters         []adapter.Adapter
	codec            codec.Codec
	compression      catalog.Compression
	metricsCollector MetricsCollector
	logger           *Logger
	router           route.Router
	materializer     ddl.Materializer
	resources        resource.Config
	batchSize        int
	cacheCapacity    int
	cacheClient      redis.Client
	cacheChannel     string
}

// Option configures Open.
type Option func(*options)

func defaultOptions() options {
	return options{
		codec:            codec.Default,
		compression:      catalog.CompressionZSTD,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		cacheCapacity:    cache.DefaultCapacity,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithStore persists committed catalog images to store. Without a store the
// catalog lives in memory only.
func WithStore(store blobstore.BlobStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithAdapters registers the storage adapters placements are realized on.
func WithAdapters(adapters ...adapter.Adapter) Option {
	return func(o *options) {
		o.adapters = append(o.adapters, adapters...)
	}
}

// WithCodec configures the codec used for catalog images.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression configures how catalog images are compressed.
func WithCompression(c catalog.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithLogLevel logs as text to stderr at level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithRouter sets the placement policy for new entities and columns.
// The default places on every registered data store supporting the model.
func WithRouter(r route.Router) Option {
	return func(o *options) {
		o.router = r
	}
}

// WithMaterializer sets the evaluator used to refresh materialized views.
func WithMaterializer(m ddl.Materializer) Option {
	return func(o *options) {
		o.materializer = m
	}
}

// WithResources bounds the memory, read parallelism and write rate of data
// migrations.
func WithResources(cfg resource.Config) Option {
	return func(o *options) {
		o.resources = cfg
	}
}

// WithBatchSize sets the number of rows written per batch when copying data.
func WithBatchSize(n int) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

// WithCacheCapacity sets the capacity of the plan and routing caches.
func WithCacheCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.cacheCapacity = n
		}
	}
}

// WithCacheBus broadcasts cache resets through Redis pub/sub so that other
// processes sharing the catalog drop their caches too. An empty channel
// selects redis.DefaultChannel.
func WithCacheBus(client redis.Client, channel string) Option {
	return func(o *options) {
		o.cacheClient = client
		o.cacheChannel = channel
	}
}
