package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"collabhub/internal/engine"
	"collabhub/internal/engine/auth"
	"collabhub/internal/migrate"
	"collabhub/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"not found"`
	Details map[string]any `json:"details,omitempty"`
}

// apiError models the error envelope.
type apiError struct {
	status  int
	Success bool         `json:"success"`
	Body    apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the collaboration API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			// request validation failures are reported as bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			msgs := make([]string, 0, len(errs))
			for _, err := range errs {
				msgs = append(msgs, err.Error())
			}
			details = map[string]any{"errors": msgs}
		}
		return newAPIError(status, "", msg, details)
	}

	public := publicRoutes(basePath, cfg.Auth.EnableDevLogin)
	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, public, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Collaboration Hub API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group, cfg.Engine)
	registerHubs(group, cfg.Engine)
	registerMembers(group, cfg.Engine)
	registerReviews(group, cfg.Engine)
	registerComments(group, cfg.Engine)
	registerWorkflows(group, cfg.Engine)
	registerKnowledge(group, cfg.Engine)
	registerConsultations(group, cfg.Engine)
	registerInsights(group, cfg.Engine)
	registerNotifications(group, cfg.Engine)
	registerAccount(group, cfg.Engine, cfg.Auth)
	registerOpenAPI(router, api, basePath, public)

	return router, nil
}

var statusCodes = map[int]string{
	http.StatusBadRequest:          "bad_request",
	http.StatusUnauthorized:        "unauthorized",
	http.StatusForbidden:           "forbidden",
	http.StatusNotFound:            "not_found",
	http.StatusConflict:            "conflict",
	http.StatusInternalServerError: "internal_error",
}

// codeFor derives an error code from the status, e.g. 429 -> too_many_requests.
func codeFor(status int) string {
	if c, ok := statusCodes[status]; ok {
		return c
	}
	return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = codeFor(status)
	}
	return &apiError{status: status, Body: apiErrorBody{Code: code, Message: message, Details: details}}
}

// handleError maps engine and repo errors onto the error envelope. Unknown
// errors become 500 with the cause in details.
func handleError(err error) huma.StatusError {
	var (
		se huma.StatusError
		fe auth.ForbiddenError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &se):
		return se
	case errors.As(err, &fe):
		return newAPIError(http.StatusForbidden, "", err.Error(), map[string]any{"permission": fe.Permission})
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "", err.Error(), nil)
	case errors.Is(err, engine.ErrInvalidTransition):
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), nil)
	case errors.Is(err, repo.ErrConflict):
		return newAPIError(http.StatusConflict, "", err.Error(), nil)
	case errors.Is(err, engine.ErrInvalid):
		return newAPIError(http.StatusBadRequest, "", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "", "internal error", map[string]any{"error": err.Error()})
}

func registerHealth(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*envelopeOutput[HealthResponse], error) {
		v, err := migrate.CurrentVersion(e.DB)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(HealthResponse{Status: "ok", SchemaVersion: v}), nil
	})
}

// operation builds an operation description; created marks POSTs answering 201.
func operation(id, method, route, summary string, created bool) huma.Operation {
	op := huma.Operation{
		OperationID: id,
		Method:      method,
		Path:        route,
		Summary:     summary,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}
	if created {
		op.DefaultStatus = http.StatusCreated
	}
	return op
}

func deleted(id string) *envelopeOutput[DeletedResponse] {
	return ok(DeletedResponse{ID: id, Deleted: true})
}
