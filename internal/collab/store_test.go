package collab

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"collabhub/internal/config"
	"collabhub/internal/domain"
	"collabhub/internal/realtime"
	collabsdk "collabhub/sdk/go"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	errUnavailable = &collabsdk.APIError{StatusCode: 503, Code: "internal", Message: "unavailable"}
	errMissing     = &collabsdk.APIError{StatusCode: 404, Code: "not_found", Message: "not found"}
)

func newTestStore(t *testing.T, api API, configure func(*Options)) (*Store, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	opts := DefaultOptions()
	opts.EnableRealTime = false
	opts.AutoRefresh = false
	opts.Clock = clock
	opts.ActorID = "alice"
	if configure != nil {
		configure(&opts)
	}
	s := New(api, opts)
	t.Cleanup(func() { _ = s.Close() })
	return s, clock
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestLoadIsServedFromCacheUntilTimeout(t *testing.T) {
	api := newFakeAPI()
	api.hubs = []domain.Hub{{ID: "h1", Name: "Design"}}
	s, clock := newTestStore(t, api, nil)
	ctx := context.Background()

	_, err := s.LoadHubs(ctx)
	require.NoError(t, err)
	clock.Advance(DefaultCacheTimeout / 2)
	hubs, err := s.LoadHubs(ctx)
	require.NoError(t, err)
	assert.Len(t, hubs, 1)
	assert.Equal(t, 1, api.count("ListHubs"))

	clock.Advance(DefaultCacheTimeout)
	_, err = s.LoadHubs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, api.count("ListHubs"))
}

func TestCachingDisabledAlwaysCalls(t *testing.T) {
	api := newFakeAPI()
	s, _ := newTestStore(t, api, func(o *Options) { o.EnableCaching = false })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.LoadHubs(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, api.count("ListHubs"))
}

func TestTransientFailureIsRetriedWithBackoff(t *testing.T) {
	api := newFakeAPI()
	api.fail("ListHubs", errUnavailable)
	s, clock := newTestStore(t, api, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.LoadHubs(ctx)
	require.Error(t, err)
	require.Equal(t, 1, api.count("ListHubs"))

	delay := DefaultErrorRetryDelay
	for i := 0; i < DefaultMaxRetries; i++ {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(delay - time.Millisecond)
		assert.Equal(t, i+1, api.count("ListHubs"), "retry %d fired early", i+1)
		clock.Advance(time.Millisecond)
		want := i + 2
		waitFor(t, func() bool { return api.count("ListHubs") == want })
		delay *= 2
	}

	clock.Advance(time.Hour)
	assert.Equal(t, DefaultMaxRetries+1, api.count("ListHubs"))
	var apiErr *collabsdk.APIError
	require.ErrorAs(t, s.Err(SlotHubs), &apiErr)
	assert.Equal(t, 503, apiErr.StatusCode)
}

func TestRetryRecoversAndClearsSlot(t *testing.T) {
	api := newFakeAPI()
	api.hubs = []domain.Hub{{ID: "h1", Name: "Design"}}
	api.fail("ListHubs", errUnavailable)
	s, clock := newTestStore(t, api, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.LoadHubs(ctx)
	require.Error(t, err)
	api.fail("ListHubs", nil)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(DefaultErrorRetryDelay)
	waitFor(t, func() bool { return len(s.State().Hubs) == 1 })
	assert.NoError(t, s.Err(SlotHubs))
	assert.Equal(t, 2, api.count("ListHubs"))
}

func TestPermanentFailureIsNotRetried(t *testing.T) {
	api := newFakeAPI()
	api.fail("ListHubs", errMissing)
	s, clock := newTestStore(t, api, nil)

	_, err := s.LoadHubs(context.Background())
	assert.True(t, collabsdk.IsStatus(err, 404))
	clock.Advance(time.Hour)
	assert.Equal(t, 1, api.count("ListHubs"))
	assert.Error(t, s.Err(SlotHubs))
}

func TestCloseStopsPendingRetries(t *testing.T) {
	api := newFakeAPI()
	api.fail("ListHubs", errUnavailable)
	s, clock := newTestStore(t, api, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.LoadHubs(ctx)
	require.Error(t, err)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	require.NoError(t, s.Close())
	clock.Advance(time.Hour)
	assert.Equal(t, 1, api.count("ListHubs"))
}

func TestCreateUpdateDeleteKeepsOneEntry(t *testing.T) {
	api := newFakeAPI()
	s, _ := newTestStore(t, api, nil)
	ctx := context.Background()

	_, err := s.CreateKnowledge(ctx, "h1", collabsdk.KnowledgeInput{ID: "k1", Title: "Tokens", Content: "Use design tokens"})
	require.NoError(t, err)
	_, err = s.CreateKnowledge(ctx, "h1", collabsdk.KnowledgeInput{ID: "k1", Title: "Tokens", Content: "Use design tokens"})
	require.NoError(t, err)
	require.Len(t, s.State().KnowledgeItems, 1)

	title := "Design tokens"
	_, err = s.UpdateKnowledge(ctx, "k1", collabsdk.UpdateKnowledgeInput{Title: &title})
	require.NoError(t, err)
	items := s.State().KnowledgeItems
	require.Len(t, items, 1)
	assert.Equal(t, "Design tokens", items[0].Title)

	require.NoError(t, s.DeleteKnowledge(ctx, "h1", "k1"))
	assert.Empty(t, s.State().KnowledgeItems)
}

func TestCreateHubSelectsIt(t *testing.T) {
	api := newFakeAPI()
	s, _ := newTestStore(t, api, nil)

	h, err := s.CreateHub(context.Background(), collabsdk.CreateHubInput{Name: "Design"})
	require.NoError(t, err)
	assert.Equal(t, "h1", h.ID)

	st := s.State()
	require.Len(t, st.Hubs, 1)
	assert.Equal(t, "h1", st.Hubs[0].ID)
	require.NotNil(t, st.CurrentHub)
	assert.Equal(t, h.ID, st.CurrentHub.ID)
	assert.False(t, st.LastUpdate.IsZero())
}

func TestMutationInvalidatesCachedList(t *testing.T) {
	api := newFakeAPI()
	api.hubs = []domain.Hub{{ID: "h1", Name: "Design"}}
	s, _ := newTestStore(t, api, nil)
	ctx := context.Background()

	_, err := s.LoadHubs(ctx)
	require.NoError(t, err)
	_, err = s.CreateHub(ctx, collabsdk.CreateHubInput{ID: "h2", Name: "Ops"})
	require.NoError(t, err)
	_, err = s.LoadHubs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, api.count("ListHubs"))
}

func TestApproveReviewAppliesServerCopy(t *testing.T) {
	api := newFakeAPI()
	api.reviews = []domain.Review{{ID: "r1", HubID: "h1", Title: "Button", Status: domain.ReviewSubmitted}}
	s, _ := newTestStore(t, api, nil)
	ctx := context.Background()

	_, err := s.LoadReviews(ctx, "h1", "")
	require.NoError(t, err)
	payload := map[string]any{"note": "ship it"}
	rv, err := s.ApproveReview(ctx, "r1", payload)
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewApproved, rv.Status)

	st := s.State()
	require.Len(t, st.Reviews, 1)
	assert.Equal(t, domain.ReviewApproved, st.Reviews[0].Status)
	assert.Equal(t, payload, st.Reviews[0].Approval)
}

func TestRejectedTransitionKeepsLocalState(t *testing.T) {
	api := newFakeAPI()
	api.reviews = []domain.Review{{ID: "r1", HubID: "h1", Status: domain.ReviewDraft}}
	s, _ := newTestStore(t, api, nil)
	ctx := context.Background()

	_, err := s.LoadReviews(ctx, "h1", "")
	require.NoError(t, err)
	_, err = s.ApproveReview(ctx, "r1", nil)
	assert.True(t, collabsdk.IsStatus(err, 409))
	assert.Equal(t, domain.ReviewDraft, s.State().Reviews[0].Status)
	assert.Error(t, s.Err(SlotReviews))
}

func TestUnreadCountTracksNotifications(t *testing.T) {
	api := newFakeAPI()
	api.notifications = []domain.Notification{
		{ID: "n1", RecipientID: "alice"},
		{ID: "n2", RecipientID: "alice"},
		{ID: "n3", RecipientID: "alice"},
		{ID: "n4", RecipientID: "alice", Read: true},
	}
	s, _ := newTestStore(t, api, nil)
	ctx := context.Background()

	check := func(want int) {
		t.Helper()
		st := s.State()
		assert.Equal(t, want, st.UnreadCount)
		assert.Equal(t, countUnread(st.Notifications), st.UnreadCount)
	}

	_, err := s.LoadNotifications(ctx)
	require.NoError(t, err)
	check(3)

	_, err = s.MarkNotificationRead(ctx, "n1")
	require.NoError(t, err)
	check(2)

	require.NoError(t, s.DeleteNotification(ctx, "n2"))
	check(1)
	require.NoError(t, s.DeleteNotification(ctx, "n4"))
	check(1)

	n, err := s.MarkAllNotificationsRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	check(0)
}

func TestUpdateResolvingAfterRemoveStaysRemoved(t *testing.T) {
	api := newFakeAPI()
	api.members = []domain.TeamMember{
		{ID: "m1", HubID: "h1", ActorID: "bob", Role: domain.RoleMember, Status: "active"},
		{ID: "m2", HubID: "h1", ActorID: "carol", Role: domain.RoleMember, Status: "active"},
	}
	s, _ := newTestStore(t, api, nil)
	ctx := context.Background()

	_, err := s.LoadTeamMembers(ctx, "h1")
	require.NoError(t, err)

	gate := api.gate("UpdateMember")
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		status := "inactive"
		_, _ = s.UpdateTeamMember(ctx, "m1", collabsdk.UpdateMemberInput{Status: &status})
	}()
	waitFor(t, func() bool { return api.count("UpdateMember") == 1 })

	require.NoError(t, s.RemoveTeamMember(ctx, "h1", "m1"))
	close(gate)
	wg.Wait()

	members := s.State().TeamMembers
	require.Len(t, members, 1)
	assert.Equal(t, "m2", members[0].ID)
}

func TestValidationFailsWithoutCallingAPI(t *testing.T) {
	api := newFakeAPI()
	s, _ := newTestStore(t, api, nil)
	ctx := context.Background()

	_, err := s.CreateHub(ctx, collabsdk.CreateHubInput{Name: "   "})
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, s.Err(SlotValidation), ErrValidation)
	assert.Equal(t, 0, api.count("CreateHub"))

	_, err = s.LoadTeamMembers(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 0, api.count("ListMembers"))
}

func TestResetStateDropsLateResponses(t *testing.T) {
	api := newFakeAPI()
	api.hubs = []domain.Hub{{ID: "h1", Name: "Design"}}
	s, _ := newTestStore(t, api, nil)

	gate := api.gate("ListHubs")
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.LoadHubs(context.Background())
	}()
	waitFor(t, func() bool { return api.count("ListHubs") == 1 })

	s.ResetState()
	close(gate)
	<-done

	st := s.State()
	assert.Empty(t, st.Hubs)
	assert.Empty(t, st.Errors)
	assert.False(t, st.Loading[SlotHubs])
}

func TestRealtimeEventsStampState(t *testing.T) {
	bus := realtime.NewBus()
	defer bus.Close()
	api := newFakeAPI()
	s, clock := newTestStore(t, api, func(o *Options) {
		o.EnableRealTime = true
		o.Subscriber = bus
	})
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	waitFor(t, func() bool { return bus.SubscriptionCount(realtime.ChannelCollaborationUpdated) == 1 })
	assert.False(t, s.State().Connected)

	ev := realtime.Event{ID: 1, Type: "review.approved", HubID: "h1", EntityKind: "review", EntityID: "r1", ActorID: "bob"}
	require.NoError(t, bus.Publish(ctx, realtime.ChannelCollaborationUpdated, ev))
	waitFor(t, func() bool { return s.State().UpdateCount == 1 })

	st := s.State()
	assert.True(t, st.Connected)
	assert.Equal(t, clock.Now(), st.LastUpdate)

	require.NoError(t, s.Close())
	assert.False(t, s.State().Connected)
	waitFor(t, func() bool { return bus.SubscriptionCount(realtime.ChannelCollaborationUpdated) == 0 })
}

func TestAutoRefreshRunsOnInterval(t *testing.T) {
	api := newFakeAPI()
	s, clock := newTestStore(t, api, func(o *Options) {
		o.AutoRefresh = true
		o.EnableNotifications = false
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, s.Start(ctx))
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(DefaultRefreshInterval)
	waitFor(t, func() bool { return api.count("ListHubs") == 1 })

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(DefaultRefreshInterval)
	waitFor(t, func() bool { return api.count("ListHubs") == 2 })
}

func TestStartStopsWhenContextEnds(t *testing.T) {
	api := newFakeAPI()
	s, clock := newTestStore(t, api, func(o *Options) { o.AutoRefresh = true })
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, s.Start(ctx))
	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	cancel()

	stopped := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("background work still running")
	}
	clock.Advance(DefaultRefreshInterval)
	assert.Equal(t, 0, api.count("ListHubs"))
}

func TestRefreshLoadsCurrentHubCollections(t *testing.T) {
	api := newFakeAPI()
	api.hubs = []domain.Hub{{ID: "h1", Name: "Design"}}
	s, _ := newTestStore(t, api, nil)
	ctx := context.Background()

	_, err := s.LoadHub(ctx, "h1")
	require.NoError(t, err)
	_, err = s.LoadHubs(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Refresh(ctx))
	assert.Equal(t, 2, api.count("ListHubs"))
	for _, method := range []string{"ListNotifications", "ListMembers", "ListReviews", "ListWorkflows", "ListKnowledge", "ListConsultations", "Metrics", "Analytics", "TeamActivity"} {
		assert.Equal(t, 1, api.count(method), method)
	}
	assert.Equal(t, 0, api.count("ListComments"))

	st := s.State()
	require.NotNil(t, st.Metrics)
	assert.Equal(t, "h1", st.Metrics.HubID)
}

func TestRefreshFinishesSiblingsWhenOneLoadFails(t *testing.T) {
	api := newFakeAPI()
	api.hubs = []domain.Hub{{ID: "h1", Name: "Design"}}
	api.members = []domain.TeamMember{{ID: "m1", HubID: "h1", ActorID: "bob"}}
	api.fail("Metrics", errMissing)
	s, _ := newTestStore(t, api, func(o *Options) { o.EnableNotifications = false })
	ctx := context.Background()
	_, err := s.LoadHub(ctx, "h1")
	require.NoError(t, err)

	release := api.gate("ListMembers")
	done := make(chan error, 1)
	go func() { done <- s.Refresh(ctx) }()
	waitFor(t, func() bool { return s.Err(SlotMetrics) != nil && api.count("ListMembers") == 1 })
	close(release)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errMissing)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not return")
	}
	st := s.State()
	require.Len(t, st.TeamMembers, 1)
	assert.NoError(t, s.Err(SlotMembers))
	assert.NoError(t, s.Err(SlotAnalytics))
	assert.NoError(t, s.Err(SlotActivity))
	assert.ErrorIs(t, s.Err(SlotMetrics), errMissing)
}

func TestInsightLoadsKeepSeparateErrorSlots(t *testing.T) {
	api := newFakeAPI()
	api.fail("Metrics", errMissing)
	s, _ := newTestStore(t, api, nil)
	ctx := context.Background()

	_, err := s.LoadMetrics(ctx, "h1")
	require.Error(t, err)
	_, err = s.LoadAnalytics(ctx, "h1", "")
	require.NoError(t, err)
	_, err = s.LoadTeamActivity(ctx, "h1", 10)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Err(SlotMetrics), errMissing)
	assert.NoError(t, s.Err(SlotAnalytics))
	st := s.State()
	assert.Nil(t, st.Metrics)
	assert.NotNil(t, st.Analytics)
	assert.False(t, st.Loading[SlotMetrics])
}

func TestStartTwiceIsRejected(t *testing.T) {
	bus := realtime.NewBus()
	defer bus.Close()
	s, _ := newTestStore(t, newFakeAPI(), func(o *Options) {
		o.EnableRealTime = true
		o.Subscriber = bus
	})
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	assert.ErrorIs(t, s.Start(ctx), ErrStarted)
	assert.Equal(t, 1, bus.SubscriptionCount(realtime.ChannelCollaborationUpdated))

	require.NoError(t, bus.Publish(ctx, realtime.ChannelCollaborationUpdated, realtime.Event{ID: 1, Type: "hub.updated", EntityKind: "hub", ActorID: "bob"}))
	waitFor(t, func() bool { return s.State().UpdateCount == 1 })
	require.NoError(t, s.Close())
	assert.Equal(t, 1, s.State().UpdateCount)
}

func TestStatsCountOnlyWhenEnabled(t *testing.T) {
	ctx := context.Background()

	api := newFakeAPI()
	s, _ := newTestStore(t, api, nil)
	_, err := s.LoadHubs(ctx)
	require.NoError(t, err)
	api.fail("GetHub", errMissing)
	_, err = s.LoadHub(ctx, "h9")
	require.Error(t, err)
	assert.Equal(t, Stats{Successful: 1, Failed: 1}, s.Stats())

	quiet, _ := newTestStore(t, newFakeAPI(), func(o *Options) { o.EnableMetrics = false })
	_, err = quiet.LoadHubs(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, quiet.Stats())
}

func TestOptionsFromConfigOverlaysDefaults(t *testing.T) {
	off := false
	zero := 0
	opts := OptionsFromConfig(config.ClientConfig{
		ActorID:         "alice",
		EnableRealTime:  &off,
		RefreshInterval: time.Minute,
		MaxRetries:      &zero,
	})
	assert.Equal(t, "alice", opts.ActorID)
	assert.False(t, opts.EnableRealTime)
	assert.True(t, opts.EnableCaching)
	assert.Equal(t, time.Minute, opts.RefreshInterval)
	assert.Equal(t, DefaultCacheTimeout, opts.CacheTimeout)
	assert.Equal(t, 0, opts.MaxRetries)
}

func TestCloseIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t, newFakeAPI(), nil)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Start(context.Background()), ErrClosed)
}
