package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabhub/internal/db"
	"collabhub/internal/domain"
	"collabhub/internal/engine"
	"collabhub/internal/engine/auth"
	"collabhub/internal/migrate"
	"collabhub/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Hub    domain.Hub
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	eng := engine.New(conn)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	hub, err := eng.CreateHub(ctx, engine.HubCreateOptions{Name: "Platform", ActorID: "owner"})
	require.NoError(t, err)
	return testEnv{Engine: eng, Ctx: ctx, Hub: hub}
}

func TestCreateHubMakesOwnerMember(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, 1, env.Hub.MemberCount)
	assert.Equal(t, "owner", env.Hub.OwnerID)

	members, err := env.Engine.ListMembers(env.Ctx, env.Hub.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, domain.RoleOwner, members[0].Role)

	_, err = env.Engine.CreateHub(env.Ctx, engine.HubCreateOptions{Name: "  ", ActorID: "owner"})
	assert.ErrorIs(t, err, engine.ErrInvalid)
}

func TestJoinLeaveMaintainsMemberCount(t *testing.T) {
	env := newTestEnv(t)
	m1, err := env.Engine.JoinHub(env.Ctx, env.Hub.ID, "alice", "Alice")
	require.NoError(t, err)
	m2, err := env.Engine.JoinHub(env.Ctx, env.Hub.ID, "alice", "Alice")
	require.NoError(t, err)
	assert.Equal(t, m1.ID, m2.ID)

	h, err := env.Engine.GetHub(env.Ctx, env.Hub.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, h.MemberCount)

	require.NoError(t, env.Engine.LeaveHub(env.Ctx, env.Hub.ID, "alice"))
	h, err = env.Engine.GetHub(env.Ctx, env.Hub.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, h.MemberCount)

	err = env.Engine.LeaveHub(env.Ctx, env.Hub.ID, "owner")
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)
}

func TestRoleAssignmentRequiresManager(t *testing.T) {
	env := newTestEnv(t)
	alice, err := env.Engine.JoinHub(env.Ctx, env.Hub.ID, "alice", "")
	require.NoError(t, err)
	bob, err := env.Engine.JoinHub(env.Ctx, env.Hub.ID, "bob", "")
	require.NoError(t, err)

	_, err = env.Engine.AssignRole(env.Ctx, bob.ID, domain.RoleAdmin, "alice")
	var forbidden auth.ForbiddenError
	assert.True(t, errors.As(err, &forbidden))

	updated, err := env.Engine.AssignRole(env.Ctx, alice.ID, domain.RoleAdmin, "owner")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, updated.Role)

	_, err = env.Engine.AssignRole(env.Ctx, bob.ID, domain.RoleViewer, "alice")
	require.NoError(t, err)

	notes, err := env.Engine.ListNotifications(env.Ctx, "bob", true)
	require.NoError(t, err)
	assert.Len(t, notes, 1)

	_, err = env.Engine.AssignRole(env.Ctx, bob.ID, "superuser", "owner")
	assert.ErrorIs(t, err, engine.ErrInvalid)
}

func TestOnlyOwnerDeletesHub(t *testing.T) {
	env := newTestEnv(t)
	alice, err := env.Engine.JoinHub(env.Ctx, env.Hub.ID, "alice", "")
	require.NoError(t, err)
	_, err = env.Engine.AssignRole(env.Ctx, alice.ID, domain.RoleAdmin, "owner")
	require.NoError(t, err)

	err = env.Engine.DeleteHub(env.Ctx, env.Hub.ID, "alice")
	var forbidden auth.ForbiddenError
	require.True(t, errors.As(err, &forbidden))

	require.NoError(t, env.Engine.DeleteHub(env.Ctx, env.Hub.ID, "owner"))
	_, err = env.Engine.GetHub(env.Ctx, env.Hub.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestReviewLifecycle(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.JoinHub(env.Ctx, env.Hub.ID, "alice", "")
	require.NoError(t, err)
	rv, err := env.Engine.CreateReview(env.Ctx, engine.ReviewCreateOptions{
		HubID:     env.Hub.ID,
		Title:     "Rule change",
		Reviewers: []string{"owner"},
		ActorID:   "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewDraft, rv.Status)

	// approving a draft is not allowed
	_, err = env.Engine.ApproveReview(env.Ctx, rv.ID, "owner", nil)
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)

	rv, err = env.Engine.SubmitReview(env.Ctx, rv.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewSubmitted, rv.Status)
	require.NotNil(t, rv.SubmittedAt)

	notes, err := env.Engine.ListNotifications(env.Ctx, "owner", true)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "review.submitted", notes[0].Type)

	// members cannot decide
	_, err = env.Engine.ApproveReview(env.Ctx, rv.ID, "alice", nil)
	var forbidden auth.ForbiddenError
	require.True(t, errors.As(err, &forbidden))

	payload := map[string]any{"comment": "ship it"}
	rv, err = env.Engine.ApproveReview(env.Ctx, rv.ID, "owner", payload)
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewApproved, rv.Status)
	assert.Equal(t, payload, rv.Approval)

	stored, err := env.Engine.GetReview(env.Ctx, rv.ID)
	require.NoError(t, err)
	assert.Equal(t, "ship it", stored.Approval["comment"])

	_, err = env.Engine.RejectReview(env.Ctx, rv.ID, "owner", nil)
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)
	_, err = env.Engine.SubmitReview(env.Ctx, rv.ID, "alice")
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)

	notes, err = env.Engine.ListNotifications(env.Ctx, "alice", true)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "review.approved", notes[0].Type)
}

func TestCommentsNotifyAuthorAndResolve(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.JoinHub(env.Ctx, env.Hub.ID, "alice", "")
	require.NoError(t, err)
	rv, err := env.Engine.CreateReview(env.Ctx, engine.ReviewCreateOptions{HubID: env.Hub.ID, Title: "T", ActorID: "owner"})
	require.NoError(t, err)

	c, err := env.Engine.AddComment(env.Ctx, rv.ID, "looks off", "alice")
	require.NoError(t, err)
	unread, err := env.Engine.ListNotifications(env.Ctx, "owner", true)
	require.NoError(t, err)
	assert.Len(t, unread, 1)

	_, err = env.Engine.UpdateComment(env.Ctx, c.ID, "edit", "owner")
	var forbidden auth.ForbiddenError
	assert.True(t, errors.As(err, &forbidden))

	c, err = env.Engine.ResolveComment(env.Ctx, c.ID, "owner")
	require.NoError(t, err)
	assert.True(t, c.Resolved)

	require.NoError(t, env.Engine.DeleteComment(env.Ctx, c.ID, "owner"))
	comments, err := env.Engine.ListComments(env.Ctx, rv.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestWorkflowExecution(t *testing.T) {
	env := newTestEnv(t)
	empty, err := env.Engine.CreateWorkflow(env.Ctx, engine.WorkflowCreateOptions{HubID: env.Hub.ID, Name: "noop", ActorID: "owner"})
	require.NoError(t, err)
	x, err := env.Engine.ExecuteWorkflow(env.Ctx, empty.ID, "owner", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionCompleted, x.Status)
	assert.NotNil(t, x.CompletedAt)

	staged, err := env.Engine.CreateWorkflow(env.Ctx, engine.WorkflowCreateOptions{
		HubID:   env.Hub.ID,
		Name:    "release",
		Steps:   []domain.WorkflowStep{{Name: "qa"}, {Name: "sign-off", Approvers: []string{"owner"}}},
		ActorID: "owner",
	})
	require.NoError(t, err)
	x, err = env.Engine.ExecuteWorkflow(env.Ctx, staged.ID, "owner", map[string]any{"version": "1.2"})
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionRunning, x.Status)

	got, err := env.Engine.GetExecution(env.Ctx, x.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.2", got.Input["version"])

	metrics, err := env.Engine.Metrics(env.Ctx, env.Hub.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, 2, metrics.Workflows)
	assert.Equal(t, 1, metrics.RunningExecutions)
}

func TestKnowledgeSearch(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateKnowledge(env.Ctx, engine.KnowledgeOptions{HubID: env.Hub.ID, Title: "Retry policy", Content: "exponential", ActorID: "owner"})
	require.NoError(t, err)
	_, err = env.Engine.CreateKnowledge(env.Ctx, engine.KnowledgeOptions{HubID: env.Hub.ID, Title: "Caching", Content: "ttl", Tags: []string{"perf"}, ActorID: "owner"})
	require.NoError(t, err)

	res, err := env.Engine.SearchKnowledge(env.Ctx, env.Hub.ID, "retry")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "Retry policy", res[0].Title)

	res, err = env.Engine.SearchKnowledge(env.Ctx, env.Hub.ID, "perf")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "Caching", res[0].Title)

	res, err = env.Engine.SearchKnowledge(env.Ctx, env.Hub.ID, "")
	require.NoError(t, err)
	assert.Len(t, res, 2)
}

func TestConsultationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.JoinHub(env.Ctx, env.Hub.ID, "expert", "")
	require.NoError(t, err)
	c, err := env.Engine.RequestConsultation(env.Ctx, engine.ConsultationOptions{
		HubID: env.Hub.ID, Topic: "sharding", Question: "how?", ExpertID: "expert", ActorID: "owner",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ConsultationOpen, c.Status)

	_, err = env.Engine.RespondConsultation(env.Ctx, c.ID, "like this", "owner")
	var forbidden auth.ForbiddenError
	require.True(t, errors.As(err, &forbidden))

	c, err = env.Engine.RespondConsultation(env.Ctx, c.ID, "like this", "expert")
	require.NoError(t, err)
	assert.Equal(t, domain.ConsultationAnswered, c.Status)

	c, err = env.Engine.CloseConsultation(env.Ctx, c.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, domain.ConsultationClosed, c.Status)

	_, err = env.Engine.CloseConsultation(env.Ctx, c.ID, "owner")
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)
}

func TestNotificationsReadAndDelete(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.JoinHub(env.Ctx, env.Hub.ID, "alice", "")
	require.NoError(t, err)
	rv, err := env.Engine.CreateReview(env.Ctx, engine.ReviewCreateOptions{HubID: env.Hub.ID, Title: "T", ActorID: "owner"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := env.Engine.AddComment(env.Ctx, rv.ID, "c", "alice")
		require.NoError(t, err)
	}
	notes, err := env.Engine.ListNotifications(env.Ctx, "owner", false)
	require.NoError(t, err)
	require.Len(t, notes, 3)

	_, err = env.Engine.MarkNotificationRead(env.Ctx, notes[0].ID, "alice")
	var forbidden auth.ForbiddenError
	require.True(t, errors.As(err, &forbidden))

	n, err := env.Engine.MarkNotificationRead(env.Ctx, notes[0].ID, "owner")
	require.NoError(t, err)
	assert.True(t, n.Read)

	changed, err := env.Engine.MarkAllNotificationsRead(env.Ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	require.NoError(t, env.Engine.DeleteNotification(env.Ctx, notes[1].ID, "owner"))
	notes, err = env.Engine.ListNotifications(env.Ctx, "owner", false)
	require.NoError(t, err)
	assert.Len(t, notes, 2)
}

func TestAnalyticsActivityAndExport(t *testing.T) {
	env := newTestEnv(t)
	rv, err := env.Engine.CreateReview(env.Ctx, engine.ReviewCreateOptions{HubID: env.Hub.ID, Title: "T", ActorID: "owner"})
	require.NoError(t, err)
	_, err = env.Engine.SubmitReview(env.Ctx, rv.ID, "owner")
	require.NoError(t, err)
	_, err = env.Engine.AddComment(env.Ctx, rv.ID, "note", "owner")
	require.NoError(t, err)

	a, err := env.Engine.Analytics(env.Ctx, env.Hub.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "7d", a.Window)
	assert.Equal(t, 1, a.ReviewsCreated)
	assert.Equal(t, 1, a.ReviewsSubmitted)
	assert.Equal(t, 1, a.CommentsAdded)
	assert.Equal(t, 1, a.ActiveActors)

	_, err = env.Engine.Analytics(env.Ctx, env.Hub.ID, "1y")
	assert.ErrorIs(t, err, engine.ErrInvalid)

	activity, err := env.Engine.TeamActivity(env.Ctx, env.Hub.ID, 2)
	require.NoError(t, err)
	require.Len(t, activity, 2)
	assert.Equal(t, "comment.added", activity[0].Type)

	bundle, err := env.Engine.ExportHub(env.Ctx, env.Hub.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, env.Hub.ID, bundle.Hub.ID)
	assert.Len(t, bundle.Reviews, 1)
	assert.Len(t, bundle.Comments, 1)
	assert.Len(t, bundle.Members, 1)

	_, err = env.Engine.ExportHub(env.Ctx, env.Hub.ID, "stranger")
	var forbidden auth.ForbiddenError
	assert.True(t, errors.As(err, &forbidden))
}
