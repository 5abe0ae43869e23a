package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestBusDeliversToEverySubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	ctx := context.Background()

	a, err := bus.Subscribe(ctx, ChannelCollaborationUpdated)
	require.NoError(t, err)
	defer a.Close()
	b, err := bus.Subscribe(ctx, ChannelCollaborationUpdated)
	require.NoError(t, err)
	defer b.Close()
	other, err := bus.Subscribe(ctx, "other")
	require.NoError(t, err)
	defer other.Close()

	require.NoError(t, bus.Publish(ctx, ChannelCollaborationUpdated, Event{ID: 1, Type: "hub.created"}))
	assert.Equal(t, int64(1), receive(t, a).ID)
	assert.Equal(t, "hub.created", receive(t, b).Type)
	select {
	case ev := <-other.Events():
		t.Fatalf("unexpected event on other channel: %+v", ev)
	default:
	}
}

func TestBusSubscriptionCloseIsIdempotent(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	sub, err := bus.Subscribe(context.Background(), ChannelCollaborationUpdated)
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.Eventually(t, func() bool { return bus.SubscriptionCount(ChannelCollaborationUpdated) == 0 }, time.Second, 10*time.Millisecond)
}

func TestBusContextCancelUnsubscribes(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := bus.Subscribe(ctx, ChannelCollaborationUpdated)
	require.NoError(t, err)
	cancel()
	_, ok := <-sub.Events()
	assert.False(t, ok)
}

func TestBusCloseRejectsUse(t *testing.T) {
	bus := NewBus()
	sub, err := bus.Subscribe(context.Background(), ChannelCollaborationUpdated)
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.ErrorIs(t, bus.Publish(context.Background(), ChannelCollaborationUpdated, Event{}), ErrBusClosed)
	_, err = bus.Subscribe(context.Background(), ChannelCollaborationUpdated)
	assert.ErrorIs(t, err, ErrBusClosed)
	assert.NoError(t, sub.Close())
}
