// Package realtime carries collaboration change notifications between the
// server and connected clients over a pub/sub channel.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/redis/go-redis/v9"

	"collabhub/internal/config"
	"collabhub/internal/domain"
)

// ChannelCollaborationUpdated is the channel every collaboration change is published on.
const ChannelCollaborationUpdated = "collaboration_updated"

// Event is the wire form of one collaboration change.
type Event struct {
	ID         int64           `json:"id"`
	TS         string          `json:"ts"`
	Type       string          `json:"type"`
	HubID      string          `json:"hub_id,omitempty"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// FromDomain converts a stored event log row.
func FromDomain(ev domain.Event) Event {
	out := Event{
		ID:         ev.ID,
		TS:         ev.TS,
		Type:       ev.Type,
		HubID:      ev.HubID,
		EntityKind: ev.EntityKind,
		EntityID:   ev.EntityID,
		ActorID:    ev.ActorID,
	}
	if json.Valid([]byte(ev.Payload)) {
		out.Payload = json.RawMessage(ev.Payload)
	}
	return out
}

type Publisher interface {
	Publish(ctx context.Context, channel string, ev Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (*Subscription, error)
}

// PubSub is a bus that can both publish and subscribe.
type PubSub interface {
	Publisher
	Subscriber
	io.Closer
}

// Subscription represents an active subscription.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of events.
// The channel is closed when the subscription is closed or its context is cancelled.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Errors returns non-fatal delivery errors such as undecodable messages.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Open builds the bus selected by cfg.Driver.
func Open(cfg config.RealtimeConfig) (PubSub, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewBus(), nil
	case "redis":
		return NewRedisBus(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.ChannelPrefix)
	default:
		return nil, fmt.Errorf("unknown realtime driver %q", cfg.Driver)
	}
}
