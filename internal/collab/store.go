// Package collab holds client-side collaboration state. A Store is the only
// caller of the API client; it caches loads, retries transient failures and
// tracks server pushes.
package collab

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"collabhub/internal/domain"
	"collabhub/internal/realtime"
)

// Error slots.
const (
	SlotHubs          = "hubs"
	SlotMembers       = "members"
	SlotReviews       = "reviews"
	SlotComments      = "comments"
	SlotWorkflows     = "workflows"
	SlotExecution     = "execution"
	SlotKnowledge     = "knowledge"
	SlotConsultations = "consultations"
	SlotMetrics       = "metrics"
	SlotAnalytics     = "analytics"
	SlotActivity      = "activity"
	SlotNotifications = "notifications"
	SlotExport        = "export"
	SlotValidation    = "validation"
	SlotRealtime      = "realtime"
)

var (
	// ErrValidation marks input rejected before any API call.
	ErrValidation = errors.New("validation failed")
	ErrClosed     = errors.New("collab: store closed")
	ErrStarted    = errors.New("collab: store already started")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// State is a snapshot of everything the store knows.
type State struct {
	Hubs             []domain.Hub
	CurrentHub       *domain.Hub
	TeamMembers      []domain.TeamMember
	Reviews          []domain.Review
	CurrentReview    *domain.Review
	Comments         []domain.Comment
	Workflows        []domain.Workflow
	ActiveExecutions []domain.WorkflowExecution
	KnowledgeItems   []domain.KnowledgeItem
	SearchResults    []domain.KnowledgeItem
	Consultations    []domain.Consultation
	Notifications    []domain.Notification
	UnreadCount      int
	Metrics          *domain.Metrics
	Analytics        *domain.Analytics
	TeamActivity     []domain.ActivityEntry

	Errors  map[string]error
	Loading map[string]bool

	LastUpdate  time.Time
	UpdateCount int
	Connected   bool
}

func newState() State {
	return State{Errors: map[string]error{}, Loading: map[string]bool{}}
}

func (st State) clone() State {
	out := st
	out.Hubs = append([]domain.Hub(nil), st.Hubs...)
	out.TeamMembers = append([]domain.TeamMember(nil), st.TeamMembers...)
	out.Reviews = append([]domain.Review(nil), st.Reviews...)
	out.Comments = append([]domain.Comment(nil), st.Comments...)
	out.Workflows = append([]domain.Workflow(nil), st.Workflows...)
	out.ActiveExecutions = append([]domain.WorkflowExecution(nil), st.ActiveExecutions...)
	out.KnowledgeItems = append([]domain.KnowledgeItem(nil), st.KnowledgeItems...)
	out.SearchResults = append([]domain.KnowledgeItem(nil), st.SearchResults...)
	out.Consultations = append([]domain.Consultation(nil), st.Consultations...)
	out.Notifications = append([]domain.Notification(nil), st.Notifications...)
	out.TeamActivity = append([]domain.ActivityEntry(nil), st.TeamActivity...)
	if st.CurrentHub != nil {
		h := *st.CurrentHub
		out.CurrentHub = &h
	}
	if st.CurrentReview != nil {
		r := *st.CurrentReview
		out.CurrentReview = &r
	}
	if st.Metrics != nil {
		m := *st.Metrics
		out.Metrics = &m
	}
	if st.Analytics != nil {
		a := *st.Analytics
		out.Analytics = &a
	}
	out.Errors = make(map[string]error, len(st.Errors))
	for k, v := range st.Errors {
		out.Errors[k] = v
	}
	out.Loading = make(map[string]bool, len(st.Loading))
	for k, v := range st.Loading {
		out.Loading[k] = v
	}
	return out
}

// Stats counts API outcomes when metrics are enabled.
type Stats struct {
	Successful int64
	Failed     int64
}

type Store struct {
	api    API
	opts   Options
	clock  clockwork.Clock
	logger *zap.Logger
	cache  *Cache

	mu     sync.Mutex
	state  State
	epoch  uint64
	closed bool

	successful atomic.Int64
	failed     atomic.Int64

	bg        context.Context
	cancel    context.CancelFunc
	started   bool
	stopWatch func() bool
	sub       *realtime.Subscription
	wg        sync.WaitGroup
}

func New(api API, opts Options) *Store {
	opts = opts.withDefaults()
	bg, cancel := context.WithCancel(context.Background())
	return &Store{
		api:    api,
		opts:   opts,
		clock:  opts.Clock,
		logger: opts.Logger,
		cache:  NewCache(opts.Clock, opts.CacheTimeout),
		state:  newState(),
		bg:     bg,
		cancel: cancel,
	}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Err returns the error recorded in slot, if any.
func (s *Store) Err(slot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Errors[slot]
}

func (s *Store) Stats() Stats {
	return Stats{Successful: s.successful.Load(), Failed: s.failed.Load()}
}

// ClearCache drops every cached load.
func (s *Store) ClearCache() {
	s.cache.Clear()
}

// ResetState empties the state. Responses to calls started before the
// reset are discarded.
func (s *Store) ResetState() {
	s.mu.Lock()
	s.epoch++
	s.state = newState()
	s.mu.Unlock()
}

func (s *Store) epochIs(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch == epoch && !s.closed
}

func (s *Store) record(err error) {
	if !s.opts.EnableMetrics {
		return
	}
	if err != nil {
		s.failed.Add(1)
		return
	}
	s.successful.Add(1)
}

// begin marks slot loading and returns the epoch the call belongs to.
func (s *Store) begin(slot string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading[slot] = true
	return s.epoch
}

func (s *Store) fail(slot string, err error) error {
	s.mu.Lock()
	s.state.Errors[slot] = err
	s.mu.Unlock()
	return err
}

// finish applies the outcome of a call under the lock. It reports false when
// the epoch moved and the outcome was dropped.
func (s *Store) finish(slot string, epoch uint64, err error, apply func(*State)) bool {
	s.record(err)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.closed {
		return false
	}
	s.state.Loading[slot] = false
	if err != nil {
		s.state.Errors[slot] = err
		return true
	}
	delete(s.state.Errors, slot)
	if apply != nil {
		apply(&s.state)
	}
	s.state.UnreadCount = countUnread(s.state.Notifications)
	return true
}

// load runs a cached read. Transient failures are handed to the retry loop.
func load[T any](ctx context.Context, s *Store, slot, key string, fetch func(context.Context) (T, error), apply func(*State, T)) (T, error) {
	if s.opts.EnableCaching {
		if v, ok := s.cache.Get(key); ok {
			if cached, ok := v.(T); ok {
				s.mu.Lock()
				apply(&s.state, cached)
				s.state.UnreadCount = countUnread(s.state.Notifications)
				s.mu.Unlock()
				return cached, nil
			}
		}
	}
	epoch := s.begin(slot)
	attempt := func(ctx context.Context) (T, error) {
		v, err := fetch(ctx)
		applied := s.finish(slot, epoch, err, func(st *State) { apply(st, v) })
		if err == nil && applied && s.opts.EnableCaching {
			s.cache.Set(key, v)
		}
		return v, err
	}
	v, err := attempt(ctx)
	if err != nil {
		s.scheduleRetry(slot, epoch, err, func(ctx context.Context) error {
			_, err := attempt(ctx)
			return err
		})
	}
	return v, err
}

// mutate runs a write and drops the given cache keys on success.
func mutate[T any](ctx context.Context, s *Store, slot string, call func(context.Context) (T, error), apply func(*State, T), invalidate ...string) (T, error) {
	epoch := s.begin(slot)
	v, err := call(ctx)
	s.finish(slot, epoch, err, func(st *State) {
		if apply != nil {
			apply(st, v)
		}
		st.LastUpdate = s.clock.Now()
	})
	if err == nil && len(invalidate) > 0 {
		s.cache.Delete(invalidate...)
	}
	return v, err
}

// Refresh reloads every collection in parallel: hubs, notifications when
// enabled, and the collections of the current hub and review.
func (s *Store) Refresh(ctx context.Context) error {
	s.cache.Clear()
	st := s.State()
	// Siblings keep running when one load fails; Wait returns the first error.
	var g errgroup.Group
	g.Go(func() error { _, err := s.LoadHubs(ctx); return err })
	if s.opts.EnableNotifications {
		g.Go(func() error { _, err := s.LoadNotifications(ctx); return err })
	}
	if st.CurrentHub != nil {
		hubID := st.CurrentHub.ID
		g.Go(func() error { _, err := s.LoadTeamMembers(ctx, hubID); return err })
		g.Go(func() error { _, err := s.LoadReviews(ctx, hubID, ""); return err })
		g.Go(func() error { _, err := s.LoadWorkflows(ctx, hubID); return err })
		g.Go(func() error { _, err := s.LoadKnowledge(ctx, hubID); return err })
		g.Go(func() error { _, err := s.LoadConsultations(ctx, hubID, ""); return err })
		g.Go(func() error { _, err := s.LoadMetrics(ctx, hubID); return err })
		g.Go(func() error { _, err := s.LoadAnalytics(ctx, hubID, ""); return err })
		g.Go(func() error { _, err := s.LoadTeamActivity(ctx, hubID, 0); return err })
	}
	if st.CurrentReview != nil {
		reviewID := st.CurrentReview.ID
		g.Go(func() error { _, err := s.LoadComments(ctx, reviewID); return err })
	}
	return g.Wait()
}

// Start subscribes to collaboration_updated and starts auto-refresh, as
// enabled. Background work stops when ctx is done or the store closes.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return ErrClosed
	case s.started:
		return ErrStarted
	}

	var sub *realtime.Subscription
	if s.opts.EnableRealTime && s.opts.Subscriber != nil {
		var err error
		if sub, err = s.opts.Subscriber.Subscribe(s.bg, realtime.ChannelCollaborationUpdated); err != nil {
			s.state.Errors[SlotRealtime] = err
			s.record(err)
			return err
		}
	}
	s.started = true
	s.stopWatch = context.AfterFunc(ctx, s.cancel)
	if sub != nil {
		s.sub = sub
		s.wg.Add(1)
		go s.listen(sub)
	}
	if s.opts.AutoRefresh {
		ticker := s.clock.NewTicker(s.opts.RefreshInterval)
		s.wg.Add(1)
		go s.autoRefresh(ticker)
	}
	return nil
}

func (s *Store) listen(sub *realtime.Subscription) {
	defer s.wg.Done()
	errs := sub.Errors()
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				s.mu.Lock()
				s.state.Connected = false
				s.mu.Unlock()
				return
			}
			s.mu.Lock()
			s.state.LastUpdate = s.clock.Now()
			s.state.UpdateCount++
			s.state.Connected = true
			s.mu.Unlock()
			s.logger.Debug("collaboration updated", zap.String("type", ev.Type), zap.Int64("event_id", ev.ID))
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.logger.Warn("realtime delivery error", zap.Error(err))
		case <-s.bg.Done():
			return
		}
	}
}

func (s *Store) autoRefresh(ticker clockwork.Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()
	for {
		select {
		case <-ticker.Chan():
			if err := s.Refresh(s.bg); err != nil && s.bg.Err() == nil {
				s.logger.Debug("auto refresh failed", zap.Error(err))
			}
		case <-s.bg.Done():
			return
		}
	}
}

// Close unsubscribes, stops auto-refresh and pending retries, and waits for
// background goroutines. Late responses are discarded.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.epoch++
	s.state.Connected = false
	stopWatch, sub := s.stopWatch, s.sub
	s.mu.Unlock()

	if stopWatch != nil {
		stopWatch()
	}
	s.cancel()
	var err error
	if sub != nil {
		err = sub.Close()
	}
	s.wg.Wait()
	return err
}

func countUnread(items []domain.Notification) int {
	n := 0
	for _, it := range items {
		if !it.Read {
			n++
		}
	}
	return n
}
