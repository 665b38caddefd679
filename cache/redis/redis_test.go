package redis

import (
	"context"
	"testing"

	"github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/polyalloc/cache"
)

type fakeClient struct {
	published []published
}

type published struct {
	channel string
	payload []byte
}

func (c *fakeClient) Publish(_ context.Context, channel string, message any) *goredis.IntCmd {
	c.published = append(c.published, published{channel: channel, payload: message.([]byte)})
	return goredis.NewIntResult(1, nil)
}

func (c *fakeClient) Subscribe(context.Context, ...string) *goredis.PubSub {
	panic("not used")
}

func TestBus_PublishesLocalResets(t *testing.T) {
	client := &fakeClient{}
	stmt := cache.NewStatement(4)
	b := New(client, stmt, WithChannel("resets"), WithVersion(func() uint64 { return 7 }))

	stmt.Reset()
	require.Len(t, client.published, 1)
	assert.Equal(t, "resets", client.published[0].channel)

	var ev Event
	require.NoError(t, json.Unmarshal(client.published[0].payload, &ev))
	assert.Equal(t, b.Origin(), ev.Origin)
	assert.Equal(t, uint64(7), ev.Version)
}

func TestBus_HandlesRemoteResets(t *testing.T) {
	stmt := cache.NewStatement(4)
	b := New(&fakeClient{}, stmt)
	stmt.Plans().Set(cache.Key{Kind: cache.KindPlan, Entity: 1}, "plan")

	own, err := json.Marshal(Event{Origin: b.Origin()})
	require.NoError(t, err)
	assert.False(t, b.handle(&goredis.Message{Payload: string(own)}))
	assert.Equal(t, 1, stmt.Plans().Len())

	assert.False(t, b.handle(&goredis.Message{Payload: "{"}))

	remote, err := json.Marshal(Event{Origin: "other", Version: 3})
	require.NoError(t, err)

	ch := make(chan *goredis.Message, 1)
	ch <- &goredis.Message{Channel: DefaultChannel, Payload: string(remote)}
	close(ch)
	b.consume(ch)

	assert.Zero(t, stmt.Plans().Len())
	assert.Equal(t, int64(1), stmt.Resets())
}

func TestBus_CloseWithoutStart(t *testing.T) {
	b := New(&fakeClient{}, cache.NewStatement(1))
	assert.NoError(t, b.Close())
}
