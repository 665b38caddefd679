// Package redis broadcasts statement cache resets between processes that
// share a catalog image.
package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/hupe1980/polyalloc/cache"
)

// DefaultChannel is the pub/sub channel reset events are published on.
const DefaultChannel = "polyalloc:cache:reset"

// Event is the payload of a reset broadcast.
type Event struct {
	Origin  string `json:"origin"`
	Version uint64 `json:"version"`
}

// Client is the subset of the go-redis client used by the bus.
type Client interface {
	Publish(ctx context.Context, channel string, message any) *goredis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *goredis.PubSub
}

// Option configures a Bus.
type Option func(*Bus)

// WithChannel sets the pub/sub channel.
func WithChannel(name string) Option {
	return func(b *Bus) {
		if name != "" {
			b.channel = name
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithVersion sets the function reporting the catalog version attached to
// published events.
func WithVersion(fn func() uint64) Option {
	return func(b *Bus) {
		b.version = fn
	}
}

// Bus publishes local resets of a statement cache and drops the cache when
// another process publishes one.
type Bus struct {
	client  Client
	stmt    *cache.Statement
	channel string
	origin  string
	version func() uint64
	logger  *slog.Logger

	mu     sync.Mutex
	pubsub *goredis.PubSub
	wg     sync.WaitGroup
}

// New attaches a bus to stmt. Every stmt.Reset is published.
func New(client Client, stmt *cache.Statement, opts ...Option) *Bus {
	b := &Bus{
		client:  client,
		stmt:    stmt,
		channel: DefaultChannel,
		origin:  uuid.NewString(),
		version: func() uint64 { return 0 },
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	stmt.OnReset(func() {
		if err := b.Publish(context.Background()); err != nil {
			b.logger.Warn("cache reset not published", "error", err)
		}
	})
	return b
}

// Origin identifies this process in published events.
func (b *Bus) Origin() string { return b.origin }

// Publish broadcasts a reset event.
func (b *Bus) Publish(ctx context.Context) error {
	payload, err := json.Marshal(Event{Origin: b.origin, Version: b.version()})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Start subscribes to the channel and handles events until Close.
func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub != nil {
		return errors.New("bus already started")
	}
	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return err
	}
	b.pubsub = ps

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.consume(ps.Channel())
	}()
	return nil
}

// Close stops the subscription.
func (b *Bus) Close() error {
	b.mu.Lock()
	ps := b.pubsub
	b.pubsub = nil
	b.mu.Unlock()
	if ps == nil {
		return nil
	}
	err := ps.Close()
	b.wg.Wait()
	return err
}

func (b *Bus) consume(ch <-chan *goredis.Message) {
	for msg := range ch {
		b.handle(msg)
	}
}

// handle drops the local caches for events of other processes.
func (b *Bus) handle(msg *goredis.Message) bool {
	var ev Event
	if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
		b.logger.Warn("malformed cache reset event", "channel", msg.Channel, "error", err)
		return false
	}
	if ev.Origin == b.origin {
		return false
	}
	b.stmt.Drop()
	b.logger.Debug("statement caches dropped", "origin", ev.Origin, "version", ev.Version)
	return true
}
