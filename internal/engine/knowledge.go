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
)

type WorkflowCreateOptions struct {
	ID          string
	HubID       string
	Name        string
	Description string
	Steps       []domain.WorkflowStep
	ActorID     string
}

func (e Engine) CreateWorkflow(ctx context.Context, opts WorkflowCreateOptions) (domain.Workflow, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Workflow{}, invalidf("name is required")
	}
	for i, st := range opts.Steps {
		if strings.TrimSpace(st.Name) == "" {
			return domain.Workflow{}, invalidf("step %d has no name", i)
		}
	}
	steps := opts.Steps
	if steps == nil {
		steps = []domain.WorkflowStep{}
	}
	w := domain.Workflow{
		ID:          newID(opts.ID),
		HubID:       opts.HubID,
		Name:        strings.TrimSpace(opts.Name),
		Description: opts.Description,
		Steps:       steps,
		CreatedBy:   opts.ActorID,
		CreatedAt:   e.stamp(),
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := e.Repo.GetHub(ctx, tx, opts.HubID); err != nil {
			return err
		}
		if _, err := e.Auth.Require(ctx, tx, opts.HubID, opts.ActorID, auth.PermHubWrite); err != nil {
			return err
		}
		if err := e.Repo.InsertWorkflow(ctx, tx, w); err != nil {
			return fmt.Errorf("insert workflow: %w", err)
		}
		return e.Events.Append(ctx, tx, "workflow.created", w.HubID, "workflow", w.ID, opts.ActorID, events.EventPayload{"steps": len(w.Steps)})
	})
	if err != nil {
		return domain.Workflow{}, err
	}
	return w, nil
}

func (e Engine) ListWorkflows(ctx context.Context, hubID string) ([]domain.Workflow, error) {
	return e.Repo.ListWorkflows(ctx, hubID)
}

// ExecuteWorkflow starts a run. A workflow without steps completes immediately.
func (e Engine) ExecuteWorkflow(ctx context.Context, workflowID, actorID string, input map[string]any) (domain.WorkflowExecution, error) {
	var x domain.WorkflowExecution
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		w, err := e.Repo.GetWorkflow(ctx, tx, workflowID)
		if err != nil {
			return err
		}
		if _, err := e.Auth.Require(ctx, tx, w.HubID, actorID, auth.PermHubWrite); err != nil {
			return err
		}
		now := e.stamp()
		x = domain.WorkflowExecution{
			ID:         uuid.NewString(),
			WorkflowID: w.ID,
			HubID:      w.HubID,
			Status:     domain.ExecutionRunning,
			Input:      input,
			StartedBy:  actorID,
			StartedAt:  now,
			UpdatedAt:  now,
		}
		if len(w.Steps) == 0 {
			x.Status = domain.ExecutionCompleted
			x.CompletedAt = &now
		} else {
			for _, approver := range w.Steps[0].Approvers {
				if err := e.notify(ctx, tx, actorID, approver, w.HubID, "workflow.step",
					fmt.Sprintf("Workflow %q step %q needs you", w.Name, w.Steps[0].Name), "workflow_execution", x.ID); err != nil {
					return err
				}
			}
		}
		if err := e.Repo.InsertExecution(ctx, tx, x); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "workflow.executed", w.HubID, "workflow_execution", x.ID, actorID, events.EventPayload{"workflow_id": w.ID, "status": x.Status})
	})
	return x, err
}

func (e Engine) GetExecution(ctx context.Context, id string) (domain.WorkflowExecution, error) {
	return e.Repo.GetExecution(ctx, nil, id)
}

type KnowledgeOptions struct {
	ID      string
	HubID   string
	Title   string
	Content string
	Tags    []string
	ActorID string
}

func (e Engine) CreateKnowledge(ctx context.Context, opts KnowledgeOptions) (domain.KnowledgeItem, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.KnowledgeItem{}, invalidf("title is required")
	}
	now := e.stamp()
	k := domain.KnowledgeItem{
		ID:        newID(opts.ID),
		HubID:     opts.HubID,
		Title:     strings.TrimSpace(opts.Title),
		Content:   opts.Content,
		Tags:      opts.Tags,
		AuthorID:  opts.ActorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := e.Repo.GetHub(ctx, tx, opts.HubID); err != nil {
			return err
		}
		if _, err := e.Auth.Require(ctx, tx, opts.HubID, opts.ActorID, auth.PermHubWrite); err != nil {
			return err
		}
		if err := e.Repo.InsertKnowledge(ctx, tx, k); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "knowledge.created", k.HubID, "knowledge", k.ID, opts.ActorID, events.EventPayload{"title": k.Title})
	})
	if err != nil {
		return domain.KnowledgeItem{}, err
	}
	return k, nil
}

type KnowledgeUpdateOptions struct {
	ID      string
	Title   *string
	Content *string
	Tags    []string
	ActorID string
}

func (e Engine) UpdateKnowledge(ctx context.Context, opts KnowledgeUpdateOptions) (domain.KnowledgeItem, error) {
	var k domain.KnowledgeItem
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		k, err = e.Repo.GetKnowledge(ctx, tx, opts.ID)
		if err != nil {
			return err
		}
		if err := e.Auth.RequireOwnerOr(ctx, tx, k.HubID, opts.ActorID, k.AuthorID, auth.PermHubManage); err != nil {
			return err
		}
		if opts.Title != nil {
			if strings.TrimSpace(*opts.Title) == "" {
				return invalidf("title cannot be empty")
			}
			k.Title = strings.TrimSpace(*opts.Title)
		}
		if opts.Content != nil {
			k.Content = *opts.Content
		}
		if opts.Tags != nil {
			k.Tags = opts.Tags
		}
		k.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateKnowledge(ctx, tx, k); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "knowledge.updated", k.HubID, "knowledge", k.ID, opts.ActorID, nil)
	})
	return k, err
}

func (e Engine) DeleteKnowledge(ctx context.Context, id, actorID string) error {
	return e.inTx(ctx, func(tx *sql.Tx) error {
		k, err := e.Repo.GetKnowledge(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := e.Auth.RequireOwnerOr(ctx, tx, k.HubID, actorID, k.AuthorID, auth.PermHubManage); err != nil {
			return err
		}
		if err := e.Repo.DeleteKnowledge(ctx, tx, id); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "knowledge.deleted", k.HubID, "knowledge", id, actorID, nil)
	})
}

// SearchKnowledge lists hub items whose title, content or tags contain query. An empty query lists all.
func (e Engine) SearchKnowledge(ctx context.Context, hubID, query string) ([]domain.KnowledgeItem, error) {
	return e.Repo.ListKnowledge(ctx, hubID, strings.TrimSpace(query))
}

type ConsultationOptions struct {
	HubID    string
	Topic    string
	Question string
	ExpertID string
	ActorID  string
}

// RequestConsultation opens a consultation and notifies the expert, when one is named.
func (e Engine) RequestConsultation(ctx context.Context, opts ConsultationOptions) (domain.Consultation, error) {
	if strings.TrimSpace(opts.Topic) == "" || strings.TrimSpace(opts.Question) == "" {
		return domain.Consultation{}, invalidf("topic and question are required")
	}
	now := e.stamp()
	c := domain.Consultation{
		ID:          uuid.NewString(),
		HubID:       opts.HubID,
		Topic:       strings.TrimSpace(opts.Topic),
		Question:    opts.Question,
		RequesterID: opts.ActorID,
		ExpertID:    opts.ExpertID,
		Status:      domain.ConsultationOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := e.Repo.GetHub(ctx, tx, opts.HubID); err != nil {
			return err
		}
		if _, err := e.Auth.Require(ctx, tx, opts.HubID, opts.ActorID, auth.PermHubRead); err != nil {
			return err
		}
		if err := e.Repo.InsertConsultation(ctx, tx, c); err != nil {
			return err
		}
		if err := e.notify(ctx, tx, opts.ActorID, c.ExpertID, c.HubID, "consultation.requested",
			fmt.Sprintf("Consultation requested: %s", c.Topic), "consultation", c.ID); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "consultation.requested", c.HubID, "consultation", c.ID, opts.ActorID, events.EventPayload{"topic": c.Topic})
	})
	if err != nil {
		return domain.Consultation{}, err
	}
	return c, nil
}

func (e Engine) ListConsultations(ctx context.Context, hubID, status string) ([]domain.Consultation, error) {
	return e.Repo.ListConsultations(ctx, hubID, status)
}

// RespondConsultation answers an open consultation. A named expert is the only one who may answer.
func (e Engine) RespondConsultation(ctx context.Context, id, response, actorID string) (domain.Consultation, error) {
	if strings.TrimSpace(response) == "" {
		return domain.Consultation{}, invalidf("response is required")
	}
	var c domain.Consultation
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		c, err = e.Repo.GetConsultation(ctx, tx, id)
		if err != nil {
			return err
		}
		if c.ExpertID != "" && c.ExpertID != actorID {
			return auth.ForbiddenError{Permission: "consultation.expert"}
		}
		if c.ExpertID == "" {
			if _, err := e.Auth.Require(ctx, tx, c.HubID, actorID, auth.PermHubWrite); err != nil {
				return err
			}
			c.ExpertID = actorID
		}
		if c.Status != domain.ConsultationOpen {
			return transitionf("consultation %s is %s", c.ID, c.Status)
		}
		c.Status = domain.ConsultationAnswered
		c.Response = response
		c.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateConsultation(ctx, tx, c); err != nil {
			return err
		}
		if err := e.notify(ctx, tx, actorID, c.RequesterID, c.HubID, "consultation.answered",
			fmt.Sprintf("Consultation answered: %s", c.Topic), "consultation", c.ID); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "consultation.answered", c.HubID, "consultation", c.ID, actorID, nil)
	})
	return c, err
}

// CloseConsultation closes an open or answered consultation. Closing twice fails.
func (e Engine) CloseConsultation(ctx context.Context, id, actorID string) (domain.Consultation, error) {
	var c domain.Consultation
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		c, err = e.Repo.GetConsultation(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := e.Auth.RequireOwnerOr(ctx, tx, c.HubID, actorID, c.RequesterID, auth.PermHubManage); err != nil {
			return err
		}
		if c.Status == domain.ConsultationClosed {
			return transitionf("consultation %s already closed", c.ID)
		}
		now := e.stamp()
		c.Status = domain.ConsultationClosed
		c.ClosedAt = &now
		c.UpdatedAt = now
		if err := e.Repo.UpdateConsultation(ctx, tx, c); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "consultation.closed", c.HubID, "consultation", c.ID, actorID, nil)
	})
	return c, err
}
