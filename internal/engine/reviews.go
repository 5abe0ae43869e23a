package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"collabhub/internal/domain"
	"collabhub/internal/engine/auth"
	"collabhub/internal/events"
	"collabhub/internal/repo"
)

func ensureReviewTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case domain.ReviewDraft:
		if newStatus == domain.ReviewSubmitted {
			return nil
		}
	case domain.ReviewSubmitted:
		if newStatus == domain.ReviewApproved || newStatus == domain.ReviewRejected {
			return nil
		}
	}
	return transitionf("review status %s -> %s", oldStatus, newStatus)
}

type ReviewCreateOptions struct {
	ID          string
	HubID       string
	RuleID      string
	Title       string
	Description string
	Reviewers   []string
	ActorID     string
}

func (e Engine) CreateReview(ctx context.Context, opts ReviewCreateOptions) (domain.Review, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Review{}, invalidf("title is required")
	}
	if opts.HubID == "" {
		return domain.Review{}, invalidf("hub is required")
	}
	now := e.stamp()
	rv := domain.Review{
		ID:          newID(opts.ID),
		HubID:       opts.HubID,
		RuleID:      opts.RuleID,
		Title:       strings.TrimSpace(opts.Title),
		Description: opts.Description,
		AuthorID:    opts.ActorID,
		Status:      domain.ReviewDraft,
		Reviewers:   opts.Reviewers,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := e.Repo.GetHub(ctx, tx, opts.HubID); err != nil {
			return err
		}
		if _, err := e.Auth.Require(ctx, tx, opts.HubID, opts.ActorID, auth.PermHubWrite); err != nil {
			return err
		}
		if err := e.Repo.InsertReview(ctx, tx, rv); err != nil {
			return fmt.Errorf("insert review: %w", err)
		}
		return e.Events.Append(ctx, tx, "review.created", rv.HubID, "review", rv.ID, opts.ActorID, events.EventPayload{"title": rv.Title})
	})
	if err != nil {
		return domain.Review{}, err
	}
	return rv, nil
}

func (e Engine) GetReview(ctx context.Context, id string) (domain.Review, error) {
	return e.Repo.GetReview(ctx, nil, id)
}

func (e Engine) ListReviews(ctx context.Context, f repo.ReviewFilters) ([]domain.Review, error) {
	return e.Repo.ListReviews(ctx, f)
}

type ReviewUpdateOptions struct {
	ID          string
	Title       *string
	Description *string
	RuleID      *string
	Reviewers   []string
	ActorID     string
}

// UpdateReview edits a draft review.
func (e Engine) UpdateReview(ctx context.Context, opts ReviewUpdateOptions) (domain.Review, error) {
	var rv domain.Review
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		rv, err = e.Repo.GetReview(ctx, tx, opts.ID)
		if err != nil {
			return err
		}
		if err := e.Auth.RequireOwnerOr(ctx, tx, rv.HubID, opts.ActorID, rv.AuthorID, auth.PermHubManage); err != nil {
			return err
		}
		if rv.Status != domain.ReviewDraft {
			return transitionf("review %s is %s; only drafts can be edited", rv.ID, rv.Status)
		}
		if opts.Title != nil {
			if strings.TrimSpace(*opts.Title) == "" {
				return invalidf("title cannot be empty")
			}
			rv.Title = strings.TrimSpace(*opts.Title)
		}
		if opts.Description != nil {
			rv.Description = *opts.Description
		}
		if opts.RuleID != nil {
			rv.RuleID = *opts.RuleID
		}
		if opts.Reviewers != nil {
			rv.Reviewers = opts.Reviewers
		}
		rv.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateReview(ctx, tx, rv); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "review.updated", rv.HubID, "review", rv.ID, opts.ActorID, nil)
	})
	return rv, err
}

// SubmitReview moves a draft to submitted and notifies its reviewers.
func (e Engine) SubmitReview(ctx context.Context, id, actorID string) (domain.Review, error) {
	var rv domain.Review
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		rv, err = e.Repo.GetReview(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := e.Auth.RequireOwnerOr(ctx, tx, rv.HubID, actorID, rv.AuthorID, auth.PermHubManage); err != nil {
			return err
		}
		if err := ensureReviewTransition(rv.Status, domain.ReviewSubmitted); err != nil {
			return err
		}
		now := e.stamp()
		rv.Status = domain.ReviewSubmitted
		rv.SubmittedAt = &now
		rv.UpdatedAt = now
		if err := e.Repo.UpdateReview(ctx, tx, rv); err != nil {
			return err
		}
		for _, reviewer := range rv.Reviewers {
			if err := e.notify(ctx, tx, actorID, reviewer, rv.HubID, "review.submitted",
				fmt.Sprintf("Review %q awaits your decision", rv.Title), "review", rv.ID); err != nil {
				return err
			}
		}
		return e.Events.Append(ctx, tx, "review.submitted", rv.HubID, "review", rv.ID, actorID, nil)
	})
	return rv, err
}

func (e Engine) ApproveReview(ctx context.Context, id, actorID string, payload map[string]any) (domain.Review, error) {
	return e.decideReview(ctx, id, actorID, domain.ReviewApproved, payload)
}

func (e Engine) RejectReview(ctx context.Context, id, actorID string, payload map[string]any) (domain.Review, error) {
	return e.decideReview(ctx, id, actorID, domain.ReviewRejected, payload)
}

func (e Engine) decideReview(ctx context.Context, id, actorID, status string, payload map[string]any) (domain.Review, error) {
	var rv domain.Review
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		rv, err = e.Repo.GetReview(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := e.Auth.Require(ctx, tx, rv.HubID, actorID, auth.PermReviewDecide); err != nil {
			return err
		}
		if err := ensureReviewTransition(rv.Status, status); err != nil {
			return err
		}
		if payload == nil {
			payload = map[string]any{}
		}
		now := e.stamp()
		rv.Status = status
		rv.DecidedAt = &now
		rv.UpdatedAt = now
		if status == domain.ReviewApproved {
			rv.Approval = payload
		} else {
			rv.Rejection = payload
		}
		if err := e.Repo.UpdateReview(ctx, tx, rv); err != nil {
			return err
		}
		if err := e.notify(ctx, tx, actorID, rv.AuthorID, rv.HubID, "review."+status,
			fmt.Sprintf("Review %q was %s", rv.Title, status), "review", rv.ID); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "review."+status, rv.HubID, "review", rv.ID, actorID, events.EventPayload(payload))
	})
	return rv, err
}

func (e Engine) ListComments(ctx context.Context, reviewID string) ([]domain.Comment, error) {
	if _, err := e.Repo.GetReview(ctx, nil, reviewID); err != nil {
		return nil, err
	}
	return e.Repo.ListComments(ctx, reviewID)
}

// AddComment attaches a comment to a review and notifies the review author.
func (e Engine) AddComment(ctx context.Context, reviewID, body, actorID string) (domain.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return domain.Comment{}, invalidf("body is required")
	}
	var c domain.Comment
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		rv, err := e.Repo.GetReview(ctx, tx, reviewID)
		if err != nil {
			return err
		}
		if _, err := e.Auth.Require(ctx, tx, rv.HubID, actorID, auth.PermHubWrite); err != nil {
			return err
		}
		now := e.stamp()
		c = domain.Comment{
			ID:        uuid.NewString(),
			ReviewID:  reviewID,
			AuthorID:  actorID,
			Body:      body,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := e.Repo.InsertComment(ctx, tx, c); err != nil {
			return err
		}
		if err := e.notify(ctx, tx, actorID, rv.AuthorID, rv.HubID, "comment.added",
			fmt.Sprintf("New comment on %q", rv.Title), "review", rv.ID); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "comment.added", rv.HubID, "comment", c.ID, actorID, events.EventPayload{"review_id": reviewID})
	})
	return c, err
}

// UpdateComment edits the body. Only the comment author may do so.
func (e Engine) UpdateComment(ctx context.Context, id, body, actorID string) (domain.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return domain.Comment{}, invalidf("body is required")
	}
	var c domain.Comment
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		c, err = e.Repo.GetComment(ctx, tx, id)
		if err != nil {
			return err
		}
		if c.AuthorID != actorID {
			return auth.ForbiddenError{Permission: "comment.author"}
		}
		rv, err := e.Repo.GetReview(ctx, tx, c.ReviewID)
		if err != nil {
			return err
		}
		c.Body = body
		c.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateComment(ctx, tx, c); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "comment.updated", rv.HubID, "comment", c.ID, actorID, nil)
	})
	return c, err
}

func (e Engine) DeleteComment(ctx context.Context, id, actorID string) error {
	return e.inTx(ctx, func(tx *sql.Tx) error {
		c, err := e.Repo.GetComment(ctx, tx, id)
		if err != nil {
			return err
		}
		rv, err := e.Repo.GetReview(ctx, tx, c.ReviewID)
		if err != nil {
			return err
		}
		if err := e.Auth.RequireOwnerOr(ctx, tx, rv.HubID, actorID, c.AuthorID, auth.PermHubManage); err != nil {
			return err
		}
		if err := e.Repo.DeleteComment(ctx, tx, id); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "comment.deleted", rv.HubID, "comment", id, actorID, nil)
	})
}

func (e Engine) ResolveComment(ctx context.Context, id, actorID string) (domain.Comment, error) {
	var c domain.Comment
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		c, err = e.Repo.GetComment(ctx, tx, id)
		if err != nil {
			return err
		}
		rv, err := e.Repo.GetReview(ctx, tx, c.ReviewID)
		if err != nil {
			return err
		}
		if _, err := e.Auth.Require(ctx, tx, rv.HubID, actorID, auth.PermHubWrite); err != nil {
			return err
		}
		c.Resolved = true
		c.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateComment(ctx, tx, c); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "comment.resolved", rv.HubID, "comment", c.ID, actorID, nil)
	})
	return c, err
}
