package collab

import (
	"context"
	"strings"

	"collabhub/internal/domain"
	collabsdk "collabhub/sdk/go"
)

func reviewsKey(hubID, status string) string {
	return cacheKey("reviews", hubID, status)
}

// LoadReviews lists a hub's reviews, filtered by status when non-empty.
func (s *Store) LoadReviews(ctx context.Context, hubID, status string) ([]domain.Review, error) {
	if hubID == "" {
		return nil, s.fail(SlotValidation, validationf("hub id is required"))
	}
	return load(ctx, s, SlotReviews, reviewsKey(hubID, status), func(ctx context.Context) ([]domain.Review, error) {
		return s.api.ListReviews(ctx, hubID, status)
	}, func(st *State, items []domain.Review) {
		st.Reviews = items
	})
}

// LoadReview fetches one review and makes it the current selection.
func (s *Store) LoadReview(ctx context.Context, id string) (domain.Review, error) {
	if id == "" {
		return domain.Review{}, s.fail(SlotValidation, validationf("review id is required"))
	}
	return load(ctx, s, SlotReviews, cacheKey("review", id), func(ctx context.Context) (domain.Review, error) {
		return s.api.GetReview(ctx, id)
	}, func(st *State, rv domain.Review) {
		st.Reviews = replace(st.Reviews, rv, reviewKey)
		st.CurrentReview = &rv
	})
}

func (s *Store) CreateReview(ctx context.Context, hubID string, in collabsdk.CreateReviewInput) (domain.Review, error) {
	if hubID == "" || strings.TrimSpace(in.Title) == "" {
		return domain.Review{}, s.fail(SlotValidation, validationf("hub id and title are required"))
	}
	return mutate(ctx, s, SlotReviews, func(ctx context.Context) (domain.Review, error) {
		return s.api.CreateReview(ctx, hubID, in)
	}, func(st *State, rv domain.Review) {
		st.Reviews = upsert(st.Reviews, rv, reviewKey)
		st.CurrentReview = &rv
	}, reviewsKey(hubID, ""), reviewsKey(hubID, domain.ReviewDraft))
}

func (s *Store) UpdateReview(ctx context.Context, id string, in collabsdk.UpdateReviewInput) (domain.Review, error) {
	return s.reviewCall(ctx, id, func(ctx context.Context) (domain.Review, error) {
		return s.api.UpdateReview(ctx, id, in)
	})
}

func (s *Store) SubmitReview(ctx context.Context, id string) (domain.Review, error) {
	return s.reviewCall(ctx, id, func(ctx context.Context) (domain.Review, error) {
		return s.api.SubmitReview(ctx, id)
	})
}

// ApproveReview approves a submitted review; the server attaches payload
// as the approval.
func (s *Store) ApproveReview(ctx context.Context, id string, payload map[string]any) (domain.Review, error) {
	return s.reviewCall(ctx, id, func(ctx context.Context) (domain.Review, error) {
		return s.api.ApproveReview(ctx, id, payload)
	})
}

func (s *Store) RejectReview(ctx context.Context, id string, payload map[string]any) (domain.Review, error) {
	return s.reviewCall(ctx, id, func(ctx context.Context) (domain.Review, error) {
		return s.api.RejectReview(ctx, id, payload)
	})
}

// reviewCall replaces the local review with the server's copy. Concurrent
// calls on one review apply in arrival order.
func (s *Store) reviewCall(ctx context.Context, id string, call func(context.Context) (domain.Review, error)) (domain.Review, error) {
	if id == "" {
		return domain.Review{}, s.fail(SlotValidation, validationf("review id is required"))
	}
	rv, err := mutate(ctx, s, SlotReviews, call, func(st *State, rv domain.Review) {
		st.Reviews = replace(st.Reviews, rv, reviewKey)
		if st.CurrentReview != nil && st.CurrentReview.ID == rv.ID {
			st.CurrentReview = &rv
		}
	}, cacheKey("review", id))
	if err == nil {
		s.dropReviewLists(rv.HubID)
	}
	return rv, err
}

func (s *Store) dropReviewLists(hubID string) {
	keys := []string{reviewsKey(hubID, "")}
	for _, status := range []string{domain.ReviewDraft, domain.ReviewSubmitted, domain.ReviewApproved, domain.ReviewRejected} {
		keys = append(keys, reviewsKey(hubID, status))
	}
	s.cache.Delete(keys...)
}

func (s *Store) LoadComments(ctx context.Context, reviewID string) ([]domain.Comment, error) {
	if reviewID == "" {
		return nil, s.fail(SlotValidation, validationf("review id is required"))
	}
	return load(ctx, s, SlotComments, cacheKey("comments", reviewID), func(ctx context.Context) ([]domain.Comment, error) {
		return s.api.ListComments(ctx, reviewID)
	}, func(st *State, items []domain.Comment) {
		st.Comments = items
	})
}

func (s *Store) AddComment(ctx context.Context, reviewID, body string) (domain.Comment, error) {
	if reviewID == "" || strings.TrimSpace(body) == "" {
		return domain.Comment{}, s.fail(SlotValidation, validationf("review id and body are required"))
	}
	return mutate(ctx, s, SlotComments, func(ctx context.Context) (domain.Comment, error) {
		return s.api.AddComment(ctx, reviewID, body)
	}, func(st *State, c domain.Comment) {
		st.Comments = upsert(st.Comments, c, commentKey)
	}, cacheKey("comments", reviewID))
}

func (s *Store) UpdateComment(ctx context.Context, id, body string) (domain.Comment, error) {
	if id == "" || strings.TrimSpace(body) == "" {
		return domain.Comment{}, s.fail(SlotValidation, validationf("comment id and body are required"))
	}
	return s.commentCall(ctx, func(ctx context.Context) (domain.Comment, error) {
		return s.api.UpdateComment(ctx, id, body)
	})
}

func (s *Store) ResolveComment(ctx context.Context, id string) (domain.Comment, error) {
	if id == "" {
		return domain.Comment{}, s.fail(SlotValidation, validationf("comment id is required"))
	}
	return s.commentCall(ctx, func(ctx context.Context) (domain.Comment, error) {
		return s.api.ResolveComment(ctx, id)
	})
}

func (s *Store) commentCall(ctx context.Context, call func(context.Context) (domain.Comment, error)) (domain.Comment, error) {
	c, err := mutate(ctx, s, SlotComments, call, func(st *State, c domain.Comment) {
		st.Comments = replace(st.Comments, c, commentKey)
	})
	if err == nil {
		s.cache.Delete(cacheKey("comments", c.ReviewID))
	}
	return c, err
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	if id == "" {
		return s.fail(SlotValidation, validationf("comment id is required"))
	}
	var reviewID string
	s.mu.Lock()
	for _, c := range s.state.Comments {
		if c.ID == id {
			reviewID = c.ReviewID
		}
	}
	s.mu.Unlock()
	_, err := mutate(ctx, s, SlotComments, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.api.DeleteComment(ctx, id)
	}, func(st *State, _ struct{}) {
		st.Comments = without(st.Comments, id, commentKey)
	}, cacheKey("comments", reviewID))
	return err
}
