package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"collabhub/internal/domain"
	"collabhub/internal/engine/auth"
	"collabhub/internal/events"
	"collabhub/internal/repo"
)

func (e Engine) ListNotifications(ctx context.Context, actorID string, unreadOnly bool) ([]domain.Notification, error) {
	return e.Repo.ListNotifications(ctx, actorID, unreadOnly)
}

func (e Engine) ownNotification(ctx context.Context, tx *sql.Tx, id, actorID string) (domain.Notification, error) {
	n, err := e.Repo.GetNotification(ctx, tx, id)
	if err != nil {
		return n, err
	}
	if n.RecipientID != actorID {
		return n, auth.ForbiddenError{Permission: "notification.recipient"}
	}
	return n, nil
}

func (e Engine) MarkNotificationRead(ctx context.Context, id, actorID string) (domain.Notification, error) {
	var n domain.Notification
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		n, err = e.ownNotification(ctx, tx, id, actorID)
		if err != nil {
			return err
		}
		if n.Read {
			return nil
		}
		if err := e.Repo.MarkNotificationRead(ctx, tx, id); err != nil {
			return err
		}
		n.Read = true
		return e.Events.Append(ctx, tx, "notification.read", n.HubID, "notification", n.ID, actorID, nil)
	})
	return n, err
}

// MarkAllNotificationsRead returns the number of notifications flipped to read.
func (e Engine) MarkAllNotificationsRead(ctx context.Context, actorID string) (int, error) {
	var changed int
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		changed, err = e.Repo.MarkAllNotificationsRead(ctx, tx, actorID)
		if err != nil || changed == 0 {
			return err
		}
		return e.Events.Append(ctx, tx, "notification.read_all", "", "notification", "", actorID, events.EventPayload{"count": changed})
	})
	return changed, err
}

func (e Engine) DeleteNotification(ctx context.Context, id, actorID string) error {
	return e.inTx(ctx, func(tx *sql.Tx) error {
		n, err := e.ownNotification(ctx, tx, id, actorID)
		if err != nil {
			return err
		}
		if err := e.Repo.DeleteNotification(ctx, tx, id); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "notification.deleted", n.HubID, "notification", n.ID, actorID, nil)
	})
}

// Metrics summarizes a hub. Unread notifications are the caller's.
func (e Engine) Metrics(ctx context.Context, hubID, actorID string) (domain.Metrics, error) {
	h, err := e.Repo.GetHub(ctx, nil, hubID)
	if err != nil {
		return domain.Metrics{}, err
	}
	m := domain.Metrics{HubID: hubID, Members: h.MemberCount}
	if m.ReviewsByStatus, err = e.Repo.CountReviewsByStatus(ctx, hubID); err != nil {
		return m, err
	}
	if m.OpenConsultations, err = e.Repo.CountRows(ctx, "consultations", hubID, "status=?", domain.ConsultationOpen); err != nil {
		return m, err
	}
	if m.KnowledgeItems, err = e.Repo.CountRows(ctx, "knowledge_items", hubID, ""); err != nil {
		return m, err
	}
	if m.Workflows, err = e.Repo.CountRows(ctx, "workflows", hubID, ""); err != nil {
		return m, err
	}
	if m.RunningExecutions, err = e.Repo.CountRunningExecutions(ctx, hubID); err != nil {
		return m, err
	}
	if m.UnreadNotifications, err = e.Repo.CountUnread(ctx, actorID); err != nil {
		return m, err
	}
	return m, nil
}

var analyticsWindows = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// Analytics counts hub events inside window (24h, 7d or 30d; 7d when empty).
func (e Engine) Analytics(ctx context.Context, hubID, window string) (domain.Analytics, error) {
	if window == "" {
		window = "7d"
	}
	d, ok := analyticsWindows[window]
	if !ok {
		return domain.Analytics{}, invalidf("unknown window %s", window)
	}
	if _, err := e.Repo.GetHub(ctx, nil, hubID); err != nil {
		return domain.Analytics{}, err
	}
	since := e.now().UTC().Add(-d).Format(time.RFC3339)
	counts, err := e.Repo.CountEventsSince(ctx, hubID, since)
	if err != nil {
		return domain.Analytics{}, err
	}
	a := domain.Analytics{
		HubID:            hubID,
		Window:           window,
		Since:            since,
		ReviewsCreated:   counts["review.created"],
		ReviewsSubmitted: counts["review.submitted"],
		ReviewsApproved:  counts["review.approved"],
		ReviewsRejected:  counts["review.rejected"],
		CommentsAdded:    counts["comment.added"],
		KnowledgeAdded:   counts["knowledge.created"],
	}
	if a.ActiveActors, err = e.Repo.CountActiveActorsSince(ctx, hubID, since); err != nil {
		return a, err
	}
	return a, nil
}

// TeamActivity returns the newest hub events, newest first.
func (e Engine) TeamActivity(ctx context.Context, hubID string, limit int) ([]domain.ActivityEntry, error) {
	if _, err := e.Repo.GetHub(ctx, nil, hubID); err != nil {
		return nil, err
	}
	evts, err := e.Repo.LatestHubEvents(ctx, hubID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ActivityEntry, 0, len(evts))
	for _, ev := range evts {
		out = append(out, domain.ActivityEntry{
			ID:         ev.ID,
			TS:         ev.TS,
			Type:       ev.Type,
			ActorID:    ev.ActorID,
			EntityKind: ev.EntityKind,
			EntityID:   ev.EntityID,
		})
	}
	return out, nil
}

// ExportHub bundles a hub with all of its collections. Only members may export.
func (e Engine) ExportHub(ctx context.Context, hubID, actorID string) (domain.ExportBundle, error) {
	var b domain.ExportBundle
	h, err := e.Repo.GetHub(ctx, nil, hubID)
	if err != nil {
		return b, err
	}
	if _, err := e.Auth.Require(ctx, nil, hubID, actorID, auth.PermHubRead); err != nil {
		return b, err
	}
	b.ExportedAt = e.stamp()
	b.Hub = h
	if b.Members, err = e.Repo.ListMembers(ctx, nil, hubID); err != nil {
		return b, err
	}
	if b.Reviews, err = e.Repo.ListReviews(ctx, repo.ReviewFilters{HubID: hubID}); err != nil {
		return b, err
	}
	if b.Comments, err = e.Repo.ListHubComments(ctx, hubID); err != nil {
		return b, err
	}
	if b.Workflows, err = e.Repo.ListWorkflows(ctx, hubID); err != nil {
		return b, err
	}
	if b.Knowledge, err = e.Repo.ListKnowledge(ctx, hubID, ""); err != nil {
		return b, err
	}
	if b.Consultations, err = e.Repo.ListConsultations(ctx, hubID, ""); err != nil {
		return b, err
	}
	return b, nil
}

// CreateAPIKey issues a key for actorID and returns the plaintext once.
func (e Engine) CreateAPIKey(ctx context.Context, actorID, name string) (domain.APIKey, string, error) {
	if actorID == "" {
		return domain.APIKey{}, "", invalidf("actor is required")
	}
	plain, err := repo.GenerateAPIKey()
	if err != nil {
		return domain.APIKey{}, "", err
	}
	key := domain.APIKey{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(plain),
		CreatedAt: e.stamp(),
	}
	if err := e.Repo.InsertAPIKey(ctx, nil, key); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, plain, nil
}
