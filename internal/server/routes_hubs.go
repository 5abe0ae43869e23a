package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"collabhub/internal/domain"
	"collabhub/internal/engine"
)

type hubPath struct {
	HubID string `path:"hub_id"`
}

type memberPath struct {
	MemberID string `path:"member_id"`
}

func registerHubs(api huma.API, e engine.Engine) {
	huma.Register(api, operation("list-hubs", http.MethodGet, "/hubs", "List hubs", false),
		func(ctx context.Context, _ *struct{}) (*envelopeOutput[[]domain.Hub], error) {
			if _, authErr := actorIDFromContext(ctx); authErr != nil {
				return nil, authErr
			}
			hubs, err := e.ListHubs(ctx)
			if err != nil {
				return nil, handleError(err)
			}
			return ok(nonNilSlice(hubs)), nil
		})

	huma.Register(api, operation("create-hub", http.MethodPost, "/hubs", "Create hub", true),
		func(ctx context.Context, input *struct {
			Body CreateHubRequest `json:"body"`
		}) (*envelopeOutput[domain.Hub], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			h, err := e.CreateHub(ctx, engine.HubCreateOptions{
				ID:          deref(input.Body.ID),
				Name:        input.Body.Name,
				Description: deref(input.Body.Description),
				Metadata:    input.Body.Metadata,
				ActorID:     actorID,
			})
			if err != nil {
				return nil, handleError(err)
			}
			return ok(h), nil
		})

	huma.Register(api, operation("get-hub", http.MethodGet, "/hubs/{hub_id}", "Get hub", false),
		func(ctx context.Context, input *hubPath) (*envelopeOutput[domain.Hub], error) {
			if _, authErr := actorIDFromContext(ctx); authErr != nil {
				return nil, authErr
			}
			h, err := e.GetHub(ctx, input.HubID)
			if err != nil {
				return nil, handleError(err)
			}
			return ok(h), nil
		})

	huma.Register(api, operation("update-hub", http.MethodPatch, "/hubs/{hub_id}", "Update hub", false),
		func(ctx context.Context, input *struct {
			HubID string           `path:"hub_id"`
			Body  UpdateHubRequest `json:"body"`
		}) (*envelopeOutput[domain.Hub], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			h, err := e.UpdateHub(ctx, engine.HubUpdateOptions{
				ID:          input.HubID,
				Name:        input.Body.Name,
				Description: input.Body.Description,
				Metadata:    input.Body.Metadata,
				ActorID:     actorID,
			})
			if err != nil {
				return nil, handleError(err)
			}
			return ok(h), nil
		})

	huma.Register(api, operation("delete-hub", http.MethodDelete, "/hubs/{hub_id}", "Delete hub", false),
		func(ctx context.Context, input *hubPath) (*envelopeOutput[DeletedResponse], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			if err := e.DeleteHub(ctx, input.HubID, actorID); err != nil {
				return nil, handleError(err)
			}
			return deleted(input.HubID), nil
		})

	huma.Register(api, operation("join-hub", http.MethodPost, "/hubs/{hub_id}/join", "Join hub", false),
		func(ctx context.Context, input *hubPath) (*envelopeOutput[domain.TeamMember], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			m, err := e.JoinHub(ctx, input.HubID, actorID, "")
			if err != nil {
				return nil, handleError(err)
			}
			return ok(m), nil
		})

	huma.Register(api, operation("leave-hub", http.MethodPost, "/hubs/{hub_id}/leave", "Leave hub", false),
		func(ctx context.Context, input *hubPath) (*envelopeOutput[DeletedResponse], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			if err := e.LeaveHub(ctx, input.HubID, actorID); err != nil {
				return nil, handleError(err)
			}
			return deleted(input.HubID), nil
		})
}

func registerMembers(api huma.API, e engine.Engine) {
	huma.Register(api, operation("list-members", http.MethodGet, "/hubs/{hub_id}/members", "List team members", false),
		func(ctx context.Context, input *hubPath) (*envelopeOutput[[]domain.TeamMember], error) {
			if _, authErr := actorIDFromContext(ctx); authErr != nil {
				return nil, authErr
			}
			members, err := e.ListMembers(ctx, input.HubID)
			if err != nil {
				return nil, handleError(err)
			}
			return ok(nonNilSlice(members)), nil
		})

	huma.Register(api, operation("add-member", http.MethodPost, "/hubs/{hub_id}/members", "Add team member", true),
		func(ctx context.Context, input *struct {
			HubID string           `path:"hub_id"`
			Body  AddMemberRequest `json:"body"`
		}) (*envelopeOutput[domain.TeamMember], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			m, err := e.AddMember(ctx, engine.MemberAddOptions{
				HubID:    input.HubID,
				MemberID: input.Body.ActorID,
				Name:     deref(input.Body.Name),
				Role:     deref(input.Body.Role),
				Status:   deref(input.Body.Status),
				ActorID:  actorID,
			})
			if err != nil {
				return nil, handleError(err)
			}
			return ok(m), nil
		})

	huma.Register(api, operation("update-member", http.MethodPatch, "/members/{member_id}", "Update team member", false),
		func(ctx context.Context, input *struct {
			MemberID string              `path:"member_id"`
			Body     UpdateMemberRequest `json:"body"`
		}) (*envelopeOutput[domain.TeamMember], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			m, err := e.UpdateMember(ctx, engine.MemberUpdateOptions{
				ID:      input.MemberID,
				Name:    input.Body.Name,
				Status:  input.Body.Status,
				ActorID: actorID,
			})
			if err != nil {
				return nil, handleError(err)
			}
			return ok(m), nil
		})

	huma.Register(api, operation("remove-member", http.MethodDelete, "/members/{member_id}", "Remove team member", false),
		func(ctx context.Context, input *memberPath) (*envelopeOutput[DeletedResponse], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			if err := e.RemoveMember(ctx, input.MemberID, actorID); err != nil {
				return nil, handleError(err)
			}
			return deleted(input.MemberID), nil
		})

	huma.Register(api, operation("assign-role", http.MethodPut, "/members/{member_id}/role", "Assign member role", false),
		func(ctx context.Context, input *struct {
			MemberID string            `path:"member_id"`
			Body     AssignRoleRequest `json:"body"`
		}) (*envelopeOutput[domain.TeamMember], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			m, err := e.AssignRole(ctx, input.MemberID, input.Body.Role, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			return ok(m), nil
		})
}
