package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"collabhub/internal/domain"
	"collabhub/internal/engine"
	"collabhub/internal/repo"
)

type reviewPath struct {
	ReviewID string `path:"review_id"`
}

type commentPath struct {
	CommentID string `path:"comment_id"`
}

func registerReviews(api huma.API, e engine.Engine) {
	huma.Register(api, operation("list-reviews", http.MethodGet, "/hubs/{hub_id}/reviews", "List reviews", false),
		func(ctx context.Context, input *struct {
			HubID  string `path:"hub_id"`
			Status string `query:"status" enum:"draft,submitted,approved,rejected"`
		}) (*envelopeOutput[[]domain.Review], error) {
			if _, authErr := actorIDFromContext(ctx); authErr != nil {
				return nil, authErr
			}
			items, err := e.ListReviews(ctx, repo.ReviewFilters{HubID: input.HubID, Status: input.Status})
			if err != nil {
				return nil, handleError(err)
			}
			return ok(nonNilSlice(items)), nil
		})

	huma.Register(api, operation("create-review", http.MethodPost, "/hubs/{hub_id}/reviews", "Create review", true),
		func(ctx context.Context, input *struct {
			HubID string              `path:"hub_id"`
			Body  CreateReviewRequest `json:"body"`
		}) (*envelopeOutput[domain.Review], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			rv, err := e.CreateReview(ctx, engine.ReviewCreateOptions{
				ID:          deref(input.Body.ID),
				HubID:       input.HubID,
				RuleID:      deref(input.Body.RuleID),
				Title:       input.Body.Title,
				Description: deref(input.Body.Description),
				Reviewers:   input.Body.Reviewers,
				ActorID:     actorID,
			})
			if err != nil {
				return nil, handleError(err)
			}
			return ok(rv), nil
		})

	huma.Register(api, operation("get-review", http.MethodGet, "/reviews/{review_id}", "Get review", false),
		func(ctx context.Context, input *reviewPath) (*envelopeOutput[domain.Review], error) {
			if _, authErr := actorIDFromContext(ctx); authErr != nil {
				return nil, authErr
			}
			rv, err := e.GetReview(ctx, input.ReviewID)
			if err != nil {
				return nil, handleError(err)
			}
			return ok(rv), nil
		})

	huma.Register(api, operation("update-review", http.MethodPatch, "/reviews/{review_id}", "Update draft review", false),
		func(ctx context.Context, input *struct {
			ReviewID string              `path:"review_id"`
			Body     UpdateReviewRequest `json:"body"`
		}) (*envelopeOutput[domain.Review], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			rv, err := e.UpdateReview(ctx, engine.ReviewUpdateOptions{
				ID:          input.ReviewID,
				Title:       input.Body.Title,
				Description: input.Body.Description,
				RuleID:      input.Body.RuleID,
				Reviewers:   input.Body.Reviewers,
				ActorID:     actorID,
			})
			if err != nil {
				return nil, handleError(err)
			}
			return ok(rv), nil
		})

	huma.Register(api, operation("submit-review", http.MethodPost, "/reviews/{review_id}/submit", "Submit review", false),
		func(ctx context.Context, input *reviewPath) (*envelopeOutput[domain.Review], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			rv, err := e.SubmitReview(ctx, input.ReviewID, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			return ok(rv), nil
		})

	decide := func(id, route, summary string, fn func(context.Context, string, string, map[string]any) (domain.Review, error)) {
		huma.Register(api, operation(id, http.MethodPost, route, summary, false),
			func(ctx context.Context, input *struct {
				ReviewID string          `path:"review_id"`
				Body     DecisionRequest `json:"body"`
			}) (*envelopeOutput[domain.Review], error) {
				actorID, authErr := actorIDFromContext(ctx)
				if authErr != nil {
					return nil, authErr
				}
				rv, err := fn(ctx, input.ReviewID, actorID, input.Body.Payload)
				if err != nil {
					return nil, handleError(err)
				}
				return ok(rv), nil
			})
	}
	decide("approve-review", "/reviews/{review_id}/approve", "Approve review", e.ApproveReview)
	decide("reject-review", "/reviews/{review_id}/reject", "Reject review", e.RejectReview)
}

func registerComments(api huma.API, e engine.Engine) {
	huma.Register(api, operation("list-comments", http.MethodGet, "/reviews/{review_id}/comments", "List comments", false),
		func(ctx context.Context, input *reviewPath) (*envelopeOutput[[]domain.Comment], error) {
			if _, authErr := actorIDFromContext(ctx); authErr != nil {
				return nil, authErr
			}
			items, err := e.ListComments(ctx, input.ReviewID)
			if err != nil {
				return nil, handleError(err)
			}
			return ok(nonNilSlice(items)), nil
		})

	huma.Register(api, operation("add-comment", http.MethodPost, "/reviews/{review_id}/comments", "Add comment", true),
		func(ctx context.Context, input *struct {
			ReviewID string         `path:"review_id"`
			Body     CommentRequest `json:"body"`
		}) (*envelopeOutput[domain.Comment], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			c, err := e.AddComment(ctx, input.ReviewID, input.Body.Body, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			return ok(c), nil
		})

	huma.Register(api, operation("update-comment", http.MethodPatch, "/comments/{comment_id}", "Update comment", false),
		func(ctx context.Context, input *struct {
			CommentID string         `path:"comment_id"`
			Body      CommentRequest `json:"body"`
		}) (*envelopeOutput[domain.Comment], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			c, err := e.UpdateComment(ctx, input.CommentID, input.Body.Body, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			return ok(c), nil
		})

	huma.Register(api, operation("delete-comment", http.MethodDelete, "/comments/{comment_id}", "Delete comment", false),
		func(ctx context.Context, input *commentPath) (*envelopeOutput[DeletedResponse], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			if err := e.DeleteComment(ctx, input.CommentID, actorID); err != nil {
				return nil, handleError(err)
			}
			return deleted(input.CommentID), nil
		})

	huma.Register(api, operation("resolve-comment", http.MethodPost, "/comments/{comment_id}/resolve", "Resolve comment", false),
		func(ctx context.Context, input *commentPath) (*envelopeOutput[domain.Comment], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			c, err := e.ResolveComment(ctx, input.CommentID, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			return ok(c), nil
		})
}
