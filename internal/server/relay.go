package server

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"collabhub/internal/realtime"
	"collabhub/internal/repo"
)

const (
	defaultRelayInterval = time.Second
	defaultRelayBatch    = 100
)

// RelayConfig configures the event relay.
type RelayConfig struct {
	Interval time.Duration
	Batch    int
	// Events limits relayed event types; empty relays everything.
	Events []string
	Logger *zap.Logger
}

// Relay tails the event log and publishes each new event on the
// collaboration_updated channel.
type Relay struct {
	repo      repo.Repo
	publisher realtime.Publisher
	interval  time.Duration
	batch     int
	filter    eventFilter
	logger    *zap.Logger
	cursor    int64
}

func NewRelay(r repo.Repo, pub realtime.Publisher, cfg RelayConfig) *Relay {
	rl := &Relay{
		repo:      r,
		publisher: pub,
		interval:  cfg.Interval,
		batch:     cfg.Batch,
		filter:    newEventFilter(cfg.Events),
		logger:    cfg.Logger,
		cursor:    -1,
	}
	if rl.interval <= 0 {
		rl.interval = defaultRelayInterval
	}
	if rl.batch <= 0 {
		rl.batch = defaultRelayBatch
	}
	if rl.logger == nil {
		rl.logger = zap.NewNop()
	}
	return rl
}

// Run relays events until ctx is cancelled. Events already in the log when
// Run starts are not relayed.
func (rl *Relay) Run(ctx context.Context) error {
	if err := rl.initCursor(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	ticker := time.NewTicker(rl.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rl.Flush(ctx)
		}
	}
}

func (rl *Relay) initCursor(ctx context.Context) error {
	if rl.cursor >= 0 {
		return nil
	}
	cur, err := rl.repo.LatestEventID(ctx)
	if err != nil {
		return err
	}
	rl.cursor = cur
	return nil
}

// Flush publishes every pending event and returns how many were published.
// A failed publish stops the pass; the event is retried on the next one.
func (rl *Relay) Flush(ctx context.Context) int {
	if err := rl.initCursor(ctx); err != nil {
		rl.logger.Warn("relay: init cursor failed", zap.Error(err))
		return 0
	}
	published := 0
	for {
		evts, err := rl.repo.EventsAfter(ctx, rl.cursor, rl.batch)
		if err != nil {
			if ctx.Err() == nil {
				rl.logger.Warn("relay: fetch events failed", zap.Error(err))
			}
			return published
		}
		for _, ev := range evts {
			if rl.filter.match(ev.Type) {
				if err := rl.publisher.Publish(ctx, realtime.ChannelCollaborationUpdated, realtime.FromDomain(ev)); err != nil {
					rl.logger.Warn("relay: publish failed", zap.Int64("event_id", ev.ID), zap.Error(err))
					return published
				}
				published++
			}
			rl.cursor = ev.ID
		}
		if len(evts) < rl.batch {
			if published > 0 {
				rl.logger.Debug("relay: published events", zap.Int("count", published), zap.Int64("cursor", rl.cursor))
			}
			return published
		}
	}
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	if len(events) == 0 {
		return eventFilter{all: true}
	}
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		key := strings.TrimSpace(evt)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
