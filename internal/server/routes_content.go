package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"collabhub/internal/domain"
	"collabhub/internal/engine"
)

func registerWorkflows(api huma.API, e engine.Engine) {
	huma.Register(api, operation("list-workflows", http.MethodGet, "/hubs/{hub_id}/workflows", "List workflows", false),
		func(ctx context.Context, input *hubPath) (*envelopeOutput[[]domain.Workflow], error) {
			if _, authErr := actorIDFromContext(ctx); authErr != nil {
				return nil, authErr
			}
			items, err := e.ListWorkflows(ctx, input.HubID)
			if err != nil {
				return nil, handleError(err)
			}
			return ok(nonNilSlice(items)), nil
		})

	huma.Register(api, operation("create-workflow", http.MethodPost, "/hubs/{hub_id}/workflows", "Create workflow", true),
		func(ctx context.Context, input *struct {
			HubID string                `path:"hub_id"`
			Body  CreateWorkflowRequest `json:"body"`
		}) (*envelopeOutput[domain.Workflow], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			wf, err := e.CreateWorkflow(ctx, engine.WorkflowCreateOptions{
				ID:          deref(input.Body.ID),
				HubID:       input.HubID,
				Name:        input.Body.Name,
				Description: deref(input.Body.Description),
				Steps:       input.Body.Steps,
				ActorID:     actorID,
			})
			if err != nil {
				return nil, handleError(err)
			}
			return ok(wf), nil
		})

	huma.Register(api, operation("execute-workflow", http.MethodPost, "/workflows/{workflow_id}/execute", "Execute workflow", true),
		func(ctx context.Context, input *struct {
			WorkflowID string                 `path:"workflow_id"`
			Body       ExecuteWorkflowRequest `json:"body"`
		}) (*envelopeOutput[domain.WorkflowExecution], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			ex, err := e.ExecuteWorkflow(ctx, input.WorkflowID, actorID, input.Body.Input)
			if err != nil {
				return nil, handleError(err)
			}
			return ok(ex), nil
		})

	huma.Register(api, operation("get-execution", http.MethodGet, "/executions/{execution_id}", "Monitor workflow execution", false),
		func(ctx context.Context, input *struct {
			ExecutionID string `path:"execution_id"`
		}) (*envelopeOutput[domain.WorkflowExecution], error) {
			if _, authErr := actorIDFromContext(ctx); authErr != nil {
				return nil, authErr
			}
			ex, err := e.GetExecution(ctx, input.ExecutionID)
			if err != nil {
				return nil, handleError(err)
			}
			return ok(ex), nil
		})
}

func registerKnowledge(api huma.API, e engine.Engine) {
	search := func(ctx context.Context, hubID, query string) (*envelopeOutput[[]domain.KnowledgeItem], error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.SearchKnowledge(ctx, hubID, query)
		if err != nil {
			return nil, handleError(err)
		}
		return ok(nonNilSlice(items)), nil
	}

	huma.Register(api, operation("list-knowledge", http.MethodGet, "/hubs/{hub_id}/knowledge", "List knowledge items", false),
		func(ctx context.Context, input *hubPath) (*envelopeOutput[[]domain.KnowledgeItem], error) {
			return search(ctx, input.HubID, "")
		})

	huma.Register(api, operation("search-knowledge", http.MethodGet, "/hubs/{hub_id}/knowledge/search", "Search knowledge items", false),
		func(ctx context.Context, input *struct {
			HubID string `path:"hub_id"`
			Query string `query:"q"`
		}) (*envelopeOutput[[]domain.KnowledgeItem], error) {
			return search(ctx, input.HubID, input.Query)
		})

	huma.Register(api, operation("create-knowledge", http.MethodPost, "/hubs/{hub_id}/knowledge", "Create knowledge item", true),
		func(ctx context.Context, input *struct {
			HubID string                 `path:"hub_id"`
			Body  CreateKnowledgeRequest `json:"body"`
		}) (*envelopeOutput[domain.KnowledgeItem], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			k, err := e.CreateKnowledge(ctx, engine.KnowledgeOptions{
				ID:      deref(input.Body.ID),
				HubID:   input.HubID,
				Title:   input.Body.Title,
				Content: input.Body.Content,
				Tags:    input.Body.Tags,
				ActorID: actorID,
			})
			if err != nil {
				return nil, handleError(err)
			}
			return ok(k), nil
		})

	huma.Register(api, operation("update-knowledge", http.MethodPatch, "/knowledge/{knowledge_id}", "Update knowledge item", false),
		func(ctx context.Context, input *struct {
			KnowledgeID string                 `path:"knowledge_id"`
			Body        UpdateKnowledgeRequest `json:"body"`
		}) (*envelopeOutput[domain.KnowledgeItem], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			k, err := e.UpdateKnowledge(ctx, engine.KnowledgeUpdateOptions{
				ID:      input.KnowledgeID,
				Title:   input.Body.Title,
				Content: input.Body.Content,
				Tags:    input.Body.Tags,
				ActorID: actorID,
			})
			if err != nil {
				return nil, handleError(err)
			}
			return ok(k), nil
		})

	huma.Register(api, operation("delete-knowledge", http.MethodDelete, "/knowledge/{knowledge_id}", "Delete knowledge item", false),
		func(ctx context.Context, input *struct {
			KnowledgeID string `path:"knowledge_id"`
		}) (*envelopeOutput[DeletedResponse], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			if err := e.DeleteKnowledge(ctx, input.KnowledgeID, actorID); err != nil {
				return nil, handleError(err)
			}
			return deleted(input.KnowledgeID), nil
		})
}

type consultationPath struct {
	ConsultationID string `path:"consultation_id"`
}

func registerConsultations(api huma.API, e engine.Engine) {
	huma.Register(api, operation("list-consultations", http.MethodGet, "/hubs/{hub_id}/consultations", "List consultations", false),
		func(ctx context.Context, input *struct {
			HubID  string `path:"hub_id"`
			Status string `query:"status" enum:"open,answered,closed"`
		}) (*envelopeOutput[[]domain.Consultation], error) {
			if _, authErr := actorIDFromContext(ctx); authErr != nil {
				return nil, authErr
			}
			items, err := e.ListConsultations(ctx, input.HubID, input.Status)
			if err != nil {
				return nil, handleError(err)
			}
			return ok(nonNilSlice(items)), nil
		})

	huma.Register(api, operation("request-consultation", http.MethodPost, "/hubs/{hub_id}/consultations", "Request expert consultation", true),
		func(ctx context.Context, input *struct {
			HubID string              `path:"hub_id"`
			Body  ConsultationRequest `json:"body"`
		}) (*envelopeOutput[domain.Consultation], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			c, err := e.RequestConsultation(ctx, engine.ConsultationOptions{
				HubID:    input.HubID,
				Topic:    input.Body.Topic,
				Question: input.Body.Question,
				ExpertID: deref(input.Body.ExpertID),
				ActorID:  actorID,
			})
			if err != nil {
				return nil, handleError(err)
			}
			return ok(c), nil
		})

	huma.Register(api, operation("respond-consultation", http.MethodPost, "/consultations/{consultation_id}/respond", "Respond to consultation", false),
		func(ctx context.Context, input *struct {
			ConsultationID string                     `path:"consultation_id"`
			Body           RespondConsultationRequest `json:"body"`
		}) (*envelopeOutput[domain.Consultation], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			c, err := e.RespondConsultation(ctx, input.ConsultationID, input.Body.Response, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			return ok(c), nil
		})

	huma.Register(api, operation("close-consultation", http.MethodPost, "/consultations/{consultation_id}/close", "Close consultation", false),
		func(ctx context.Context, input *consultationPath) (*envelopeOutput[domain.Consultation], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			c, err := e.CloseConsultation(ctx, input.ConsultationID, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			return ok(c), nil
		})
}
