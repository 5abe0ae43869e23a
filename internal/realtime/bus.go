package realtime

import (
	"context"
	"errors"
	"sync"
)

const subscriberBuffer = 64

var ErrBusClosed = errors.New("bus closed")

type memorySub struct {
	events chan Event
	errors chan error
	cancel context.CancelFunc
}

// Bus is an in-process pub/sub bus. Delivery is at-most-once: a subscriber
// whose buffer is full misses the event, as with Redis pub/sub.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]*memorySub
	nextID uint64
	closed bool
	wg     sync.WaitGroup
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[uint64]*memorySub)}
}

func (b *Bus) Publish(ctx context.Context, channel string, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	for _, sub := range b.subs[channel] {
		select {
		case sub.events <- ev:
		default:
		}
	}
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, channel string) (*Subscription, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	b.nextID++
	id := b.nextID
	subCtx, cancel := context.WithCancel(ctx)
	sub := &memorySub{
		events: make(chan Event, subscriberBuffer),
		errors: make(chan error),
		cancel: cancel,
	}
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[uint64]*memorySub)
	}
	b.subs[channel][id] = sub
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		<-subCtx.Done()
		b.remove(channel, id)
	}()
	return &Subscription{events: sub.events, errors: sub.errors, cancel: cancel}, nil
}

func (b *Bus) remove(channel string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[channel][id]
	if !ok {
		return
	}
	delete(b.subs[channel], id)
	if len(b.subs[channel]) == 0 {
		delete(b.subs, channel)
	}
	close(sub.events)
	close(sub.errors)
}

// SubscriptionCount returns the number of live subscriptions on channel.
func (b *Bus) SubscriptionCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}

// Close drops every subscription, waits for their watchers and rejects further use.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var cancels []context.CancelFunc
	for channel, subs := range b.subs {
		for id, sub := range subs {
			close(sub.events)
			close(sub.errors)
			cancels = append(cancels, sub.cancel)
			delete(subs, id)
		}
		delete(b.subs, channel)
	}
	b.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	b.wg.Wait()
	return nil
}
