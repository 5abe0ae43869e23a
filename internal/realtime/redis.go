package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBus publishes events through Redis pub/sub so several server
// processes and clients share one stream of changes.
type RedisBus struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisBus connects and pings Redis. Channels are namespaced by prefix.
func NewRedisBus(opts *redis.Options, prefix string) (*RedisBus, error) {
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return &RedisBus{rdb: rdb, prefix: prefix}, nil
}

func (b *RedisBus) channelKey(channel string) string {
	if b.prefix == "" {
		return channel
	}
	return b.prefix + ":" + channel
}

func (b *RedisBus) Publish(ctx context.Context, channel string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return b.rdb.Publish(ctx, b.channelKey(channel), data).Err()
}

// Subscribe waits for Redis to confirm the subscription before returning,
// so events published afterwards are delivered.
func (b *RedisBus) Subscribe(ctx context.Context, channel string) (*Subscription, error) {
	pubsub := b.rdb.Subscribe(ctx, b.channelKey(channel))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	eventsChan := make(chan Event, subscriberBuffer)
	errorsChan := make(chan error, 10)
	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					select {
					case errorsChan <- fmt.Errorf("decode event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}
				select {
				case eventsChan <- ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{events: eventsChan, errors: errorsChan, cancel: cancel}, nil
}

func (b *RedisBus) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

func (b *RedisBus) Close() error {
	return b.rdb.Close()
}
