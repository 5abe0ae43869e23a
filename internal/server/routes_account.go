package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"collabhub/internal/engine"
	"collabhub/internal/repo"
)

const devTokenTTL = 24 * time.Hour

func registerAccount(api huma.API, e engine.Engine, cfg AuthConfig) {
	huma.Register(api, operation("whoami", http.MethodGet, "/me", "Current principal", false),
		func(ctx context.Context, _ *struct{}) (*envelopeOutput[WhoAmIResponse], error) {
			p, found := principalFromContext(ctx)
			if !found || p.ActorID == "" {
				return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
			}
			return ok(WhoAmIResponse{ActorID: p.ActorID, Source: p.Source}), nil
		})

	huma.Register(api, operation("create-api-key", http.MethodPost, "/api-keys", "Create API key", true),
		func(ctx context.Context, input *struct {
			Body CreateAPIKeyRequest `json:"body"`
		}) (*envelopeOutput[APIKeyResponse], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			key, plain, err := e.CreateAPIKey(ctx, actorID, deref(input.Body.Name))
			if err != nil {
				return nil, handleError(err)
			}
			return ok(apiKeyResponse(key, plain)), nil
		})

	huma.Register(api, operation("list-api-keys", http.MethodGet, "/api-keys", "List API keys", false),
		func(ctx context.Context, _ *struct{}) (*envelopeOutput[[]APIKeyResponse], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			keys, err := e.Repo.ListAPIKeys(ctx, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			out := make([]APIKeyResponse, 0, len(keys))
			for _, k := range keys {
				out = append(out, apiKeyResponse(k, ""))
			}
			return ok(out), nil
		})

	huma.Register(api, operation("delete-api-key", http.MethodDelete, "/api-keys/{key_id}", "Revoke API key", false),
		func(ctx context.Context, input *struct {
			KeyID string `path:"key_id"`
		}) (*envelopeOutput[DeletedResponse], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			keys, err := e.Repo.ListAPIKeys(ctx, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			owned := false
			for _, k := range keys {
				if k.ID == input.KeyID {
					owned = true
					break
				}
			}
			if !owned {
				return nil, handleError(repo.ErrNotFound)
			}
			if err := e.Repo.DeleteAPIKey(ctx, input.KeyID); err != nil {
				return nil, handleError(err)
			}
			return deleted(input.KeyID), nil
		})

	if !cfg.EnableDevLogin {
		return
	}
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "Mint a development token",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*envelopeOutput[DevLoginResponse], error) {
		token, err := SignToken(cfg.JWTSecret, input.Body.ActorID, devTokenTTL)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		return ok(DevLoginResponse{Token: token}), nil
	})
}
