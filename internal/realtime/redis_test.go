package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabhub/internal/config"
	"collabhub/internal/domain"
)

func setupRedisBus(t *testing.T) (*RedisBus, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	bus, err := NewRedisBus(&redis.Options{Addr: mr.Addr()}, "test")
	require.NoError(t, err)
	t.Cleanup(func() { bus.Close() })
	return bus, mr
}

func TestRedisBusRoundTrip(t *testing.T) {
	bus, _ := setupRedisBus(t)
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, ChannelCollaborationUpdated)
	require.NoError(t, err)
	defer sub.Close()

	ev := FromDomain(domain.Event{ID: 7, Type: "review.approved", HubID: "h1", EntityKind: "review", EntityID: "r1", ActorID: "owner", Payload: `{"comment":"ok"}`})
	require.NoError(t, bus.Publish(ctx, ChannelCollaborationUpdated, ev))

	got := receive(t, sub)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, "h1", got.HubID)
	assert.JSONEq(t, `{"comment":"ok"}`, string(got.Payload))
}

func TestRedisBusUsesPrefixedChannel(t *testing.T) {
	bus, mr := setupRedisBus(t)
	sub, err := bus.Subscribe(context.Background(), ChannelCollaborationUpdated)
	require.NoError(t, err)
	defer sub.Close()

	assert.Contains(t, mr.PubSubChannels(""), "test:"+ChannelCollaborationUpdated)

	payload, err := json.Marshal(Event{ID: 3, Type: "hub.updated"})
	require.NoError(t, err)
	mr.Publish("test:"+ChannelCollaborationUpdated, string(payload))
	assert.Equal(t, int64(3), receive(t, sub).ID)
}

func TestRedisBusReportsUndecodableMessages(t *testing.T) {
	bus, mr := setupRedisBus(t)
	sub, err := bus.Subscribe(context.Background(), ChannelCollaborationUpdated)
	require.NoError(t, err)
	defer sub.Close()

	mr.Publish("test:"+ChannelCollaborationUpdated, "not json")
	err = <-sub.Errors()
	assert.Error(t, err)
}

func TestOpenSelectsDriver(t *testing.T) {
	ps, err := Open(config.RealtimeConfig{Driver: "memory"})
	require.NoError(t, err)
	_, ok := ps.(*Bus)
	assert.True(t, ok)
	require.NoError(t, ps.Close())

	_, err = Open(config.RealtimeConfig{Driver: "kafka"})
	assert.Error(t, err)

	_, mr := setupRedisBus(t)
	ps, err = Open(config.RealtimeConfig{Driver: "redis", RedisAddr: mr.Addr(), ChannelPrefix: "x"})
	require.NoError(t, err)
	require.NoError(t, ps.Close())
}
