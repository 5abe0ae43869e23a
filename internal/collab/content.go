package collab

import (
	"context"
	"strconv"
	"strings"

	"collabhub/internal/domain"
	collabsdk "collabhub/sdk/go"
)

// Workflows

func (s *Store) LoadWorkflows(ctx context.Context, hubID string) ([]domain.Workflow, error) {
	if hubID == "" {
		return nil, s.fail(SlotValidation, validationf("hub id is required"))
	}
	return load(ctx, s, SlotWorkflows, cacheKey("workflows", hubID), func(ctx context.Context) ([]domain.Workflow, error) {
		return s.api.ListWorkflows(ctx, hubID)
	}, func(st *State, items []domain.Workflow) {
		st.Workflows = items
	})
}

func (s *Store) CreateWorkflow(ctx context.Context, hubID string, in collabsdk.CreateWorkflowInput) (domain.Workflow, error) {
	if hubID == "" || strings.TrimSpace(in.Name) == "" {
		return domain.Workflow{}, s.fail(SlotValidation, validationf("hub id and workflow name are required"))
	}
	return mutate(ctx, s, SlotWorkflows, func(ctx context.Context) (domain.Workflow, error) {
		return s.api.CreateWorkflow(ctx, hubID, in)
	}, func(st *State, wf domain.Workflow) {
		st.Workflows = upsert(st.Workflows, wf, workflowKey)
	}, cacheKey("workflows", hubID))
}

// ExecuteWorkflow starts an execution and tracks it as active.
func (s *Store) ExecuteWorkflow(ctx context.Context, workflowID string, input map[string]any) (domain.WorkflowExecution, error) {
	if workflowID == "" {
		return domain.WorkflowExecution{}, s.fail(SlotValidation, validationf("workflow id is required"))
	}
	return mutate(ctx, s, SlotExecution, func(ctx context.Context) (domain.WorkflowExecution, error) {
		return s.api.ExecuteWorkflow(ctx, workflowID, input)
	}, func(st *State, ex domain.WorkflowExecution) {
		st.ActiveExecutions = upsert(st.ActiveExecutions, ex, executionKey)
	})
}

// MonitorExecution refreshes one execution. It is never cached.
func (s *Store) MonitorExecution(ctx context.Context, id string) (domain.WorkflowExecution, error) {
	if id == "" {
		return domain.WorkflowExecution{}, s.fail(SlotValidation, validationf("execution id is required"))
	}
	return mutate(ctx, s, SlotExecution, func(ctx context.Context) (domain.WorkflowExecution, error) {
		return s.api.GetExecution(ctx, id)
	}, func(st *State, ex domain.WorkflowExecution) {
		st.ActiveExecutions = upsert(st.ActiveExecutions, ex, executionKey)
	})
}

// Knowledge

func (s *Store) LoadKnowledge(ctx context.Context, hubID string) ([]domain.KnowledgeItem, error) {
	if hubID == "" {
		return nil, s.fail(SlotValidation, validationf("hub id is required"))
	}
	return load(ctx, s, SlotKnowledge, cacheKey("knowledge", hubID), func(ctx context.Context) ([]domain.KnowledgeItem, error) {
		return s.api.ListKnowledge(ctx, hubID)
	}, func(st *State, items []domain.KnowledgeItem) {
		st.KnowledgeItems = items
	})
}

func (s *Store) SearchKnowledge(ctx context.Context, hubID, query string) ([]domain.KnowledgeItem, error) {
	if hubID == "" {
		return nil, s.fail(SlotValidation, validationf("hub id is required"))
	}
	return load(ctx, s, SlotKnowledge, cacheKey("search", hubID, query), func(ctx context.Context) ([]domain.KnowledgeItem, error) {
		return s.api.SearchKnowledge(ctx, hubID, query)
	}, func(st *State, items []domain.KnowledgeItem) {
		st.SearchResults = items
	})
}

func (s *Store) CreateKnowledge(ctx context.Context, hubID string, in collabsdk.KnowledgeInput) (domain.KnowledgeItem, error) {
	if hubID == "" || strings.TrimSpace(in.Title) == "" {
		return domain.KnowledgeItem{}, s.fail(SlotValidation, validationf("hub id and title are required"))
	}
	k, err := mutate(ctx, s, SlotKnowledge, func(ctx context.Context) (domain.KnowledgeItem, error) {
		return s.api.CreateKnowledge(ctx, hubID, in)
	}, func(st *State, k domain.KnowledgeItem) {
		st.KnowledgeItems = upsert(st.KnowledgeItems, k, knowledgeKey)
	}, cacheKey("knowledge", hubID))
	if err == nil {
		s.dropSearches()
	}
	return k, err
}

func (s *Store) UpdateKnowledge(ctx context.Context, id string, in collabsdk.UpdateKnowledgeInput) (domain.KnowledgeItem, error) {
	if id == "" {
		return domain.KnowledgeItem{}, s.fail(SlotValidation, validationf("knowledge id is required"))
	}
	k, err := mutate(ctx, s, SlotKnowledge, func(ctx context.Context) (domain.KnowledgeItem, error) {
		return s.api.UpdateKnowledge(ctx, id, in)
	}, func(st *State, k domain.KnowledgeItem) {
		st.KnowledgeItems = replace(st.KnowledgeItems, k, knowledgeKey)
		st.SearchResults = replace(st.SearchResults, k, knowledgeKey)
	})
	if err == nil {
		s.cache.Delete(cacheKey("knowledge", k.HubID))
		s.dropSearches()
	}
	return k, err
}

func (s *Store) DeleteKnowledge(ctx context.Context, hubID, id string) error {
	if id == "" {
		return s.fail(SlotValidation, validationf("knowledge id is required"))
	}
	_, err := mutate(ctx, s, SlotKnowledge, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.api.DeleteKnowledge(ctx, id)
	}, func(st *State, _ struct{}) {
		st.KnowledgeItems = without(st.KnowledgeItems, id, knowledgeKey)
		st.SearchResults = without(st.SearchResults, id, knowledgeKey)
	}, cacheKey("knowledge", hubID))
	if err == nil {
		s.dropSearches()
	}
	return err
}

// dropSearches clears cached searches, which any knowledge write can change.
func (s *Store) dropSearches() {
	s.cache.DeletePrefix("search:")
}

// Consultations

func consultationsKey(hubID, status string) string {
	return cacheKey("consultations", hubID, status)
}

func (s *Store) LoadConsultations(ctx context.Context, hubID, status string) ([]domain.Consultation, error) {
	if hubID == "" {
		return nil, s.fail(SlotValidation, validationf("hub id is required"))
	}
	return load(ctx, s, SlotConsultations, consultationsKey(hubID, status), func(ctx context.Context) ([]domain.Consultation, error) {
		return s.api.ListConsultations(ctx, hubID, status)
	}, func(st *State, items []domain.Consultation) {
		st.Consultations = items
	})
}

func (s *Store) RequestConsultation(ctx context.Context, hubID string, in collabsdk.ConsultationInput) (domain.Consultation, error) {
	if hubID == "" || strings.TrimSpace(in.Topic) == "" || strings.TrimSpace(in.Question) == "" {
		return domain.Consultation{}, s.fail(SlotValidation, validationf("hub id, topic and question are required"))
	}
	return s.consultationCall(ctx, true, func(ctx context.Context) (domain.Consultation, error) {
		return s.api.RequestConsultation(ctx, hubID, in)
	})
}

func (s *Store) RespondConsultation(ctx context.Context, id, response string) (domain.Consultation, error) {
	if id == "" || strings.TrimSpace(response) == "" {
		return domain.Consultation{}, s.fail(SlotValidation, validationf("consultation id and response are required"))
	}
	return s.consultationCall(ctx, false, func(ctx context.Context) (domain.Consultation, error) {
		return s.api.RespondConsultation(ctx, id, response)
	})
}

func (s *Store) CloseConsultation(ctx context.Context, id string) (domain.Consultation, error) {
	if id == "" {
		return domain.Consultation{}, s.fail(SlotValidation, validationf("consultation id is required"))
	}
	return s.consultationCall(ctx, false, func(ctx context.Context) (domain.Consultation, error) {
		return s.api.CloseConsultation(ctx, id)
	})
}

func (s *Store) consultationCall(ctx context.Context, create bool, call func(context.Context) (domain.Consultation, error)) (domain.Consultation, error) {
	c, err := mutate(ctx, s, SlotConsultations, call, func(st *State, c domain.Consultation) {
		if create {
			st.Consultations = upsert(st.Consultations, c, consultationKey)
			return
		}
		st.Consultations = replace(st.Consultations, c, consultationKey)
	})
	if err == nil {
		keys := []string{consultationsKey(c.HubID, "")}
		for _, status := range []string{domain.ConsultationOpen, domain.ConsultationAnswered, domain.ConsultationClosed} {
			keys = append(keys, consultationsKey(c.HubID, status))
		}
		s.cache.Delete(keys...)
	}
	return c, err
}

// Insights

func (s *Store) LoadMetrics(ctx context.Context, hubID string) (domain.Metrics, error) {
	if hubID == "" {
		return domain.Metrics{}, s.fail(SlotValidation, validationf("hub id is required"))
	}
	return load(ctx, s, SlotMetrics, cacheKey("metrics", hubID), func(ctx context.Context) (domain.Metrics, error) {
		return s.api.Metrics(ctx, hubID)
	}, func(st *State, m domain.Metrics) {
		st.Metrics = &m
	})
}

func (s *Store) LoadAnalytics(ctx context.Context, hubID, window string) (domain.Analytics, error) {
	if hubID == "" {
		return domain.Analytics{}, s.fail(SlotValidation, validationf("hub id is required"))
	}
	return load(ctx, s, SlotAnalytics, cacheKey("analytics", hubID, window), func(ctx context.Context) (domain.Analytics, error) {
		return s.api.Analytics(ctx, hubID, window)
	}, func(st *State, a domain.Analytics) {
		st.Analytics = &a
	})
}

func (s *Store) LoadTeamActivity(ctx context.Context, hubID string, limit int) ([]domain.ActivityEntry, error) {
	if hubID == "" {
		return nil, s.fail(SlotValidation, validationf("hub id is required"))
	}
	return load(ctx, s, SlotActivity, cacheKey("activity", hubID, strconv.Itoa(limit)), func(ctx context.Context) ([]domain.ActivityEntry, error) {
		return s.api.TeamActivity(ctx, hubID, limit)
	}, func(st *State, entries []domain.ActivityEntry) {
		st.TeamActivity = entries
	})
}

// ExportHub fetches a full hub bundle. The state is not touched.
func (s *Store) ExportHub(ctx context.Context, hubID string) (domain.ExportBundle, error) {
	if hubID == "" {
		return domain.ExportBundle{}, s.fail(SlotValidation, validationf("hub id is required"))
	}
	return mutate(ctx, s, SlotExport, func(ctx context.Context) (domain.ExportBundle, error) {
		return s.api.ExportHub(ctx, hubID)
	}, nil)
}

// Notifications

const keyNotifications = "notifications"

func (s *Store) LoadNotifications(ctx context.Context) ([]domain.Notification, error) {
	return load(ctx, s, SlotNotifications, keyNotifications, func(ctx context.Context) ([]domain.Notification, error) {
		return s.api.ListNotifications(ctx, false)
	}, func(st *State, items []domain.Notification) {
		st.Notifications = items
	})
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) (domain.Notification, error) {
	if id == "" {
		return domain.Notification{}, s.fail(SlotValidation, validationf("notification id is required"))
	}
	return mutate(ctx, s, SlotNotifications, func(ctx context.Context) (domain.Notification, error) {
		return s.api.MarkNotificationRead(ctx, id)
	}, func(st *State, n domain.Notification) {
		st.Notifications = replace(st.Notifications, n, notificationKey)
	}, keyNotifications)
}

// MarkAllNotificationsRead returns how many notifications the server changed.
func (s *Store) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	return mutate(ctx, s, SlotNotifications, s.api.MarkAllNotificationsRead, func(st *State, _ int) {
		items := make([]domain.Notification, len(st.Notifications))
		for i, n := range st.Notifications {
			n.Read = true
			items[i] = n
		}
		st.Notifications = items
	}, keyNotifications)
}

func (s *Store) DeleteNotification(ctx context.Context, id string) error {
	if id == "" {
		return s.fail(SlotValidation, validationf("notification id is required"))
	}
	_, err := mutate(ctx, s, SlotNotifications, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.api.DeleteNotification(ctx, id)
	}, func(st *State, _ struct{}) {
		st.Notifications = without(st.Notifications, id, notificationKey)
	}, keyNotifications)
	return err
}
