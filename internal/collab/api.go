package collab

import (
	"context"

	"collabhub/internal/domain"
	collabsdk "collabhub/sdk/go"
)

// API is the slice of the REST client the store calls. *collabsdk.Client
// implements it.
type API interface {
	ListHubs(ctx context.Context) ([]domain.Hub, error)
	CreateHub(ctx context.Context, in collabsdk.CreateHubInput) (domain.Hub, error)
	GetHub(ctx context.Context, id string) (domain.Hub, error)
	UpdateHub(ctx context.Context, id string, in collabsdk.UpdateHubInput) (domain.Hub, error)
	DeleteHub(ctx context.Context, id string) error
	JoinHub(ctx context.Context, id string) (domain.TeamMember, error)
	LeaveHub(ctx context.Context, id string) error

	ListMembers(ctx context.Context, hubID string) ([]domain.TeamMember, error)
	AddMember(ctx context.Context, hubID string, in collabsdk.AddMemberInput) (domain.TeamMember, error)
	UpdateMember(ctx context.Context, id string, in collabsdk.UpdateMemberInput) (domain.TeamMember, error)
	RemoveMember(ctx context.Context, id string) error
	AssignRole(ctx context.Context, id, role string) (domain.TeamMember, error)

	ListReviews(ctx context.Context, hubID, status string) ([]domain.Review, error)
	CreateReview(ctx context.Context, hubID string, in collabsdk.CreateReviewInput) (domain.Review, error)
	GetReview(ctx context.Context, id string) (domain.Review, error)
	UpdateReview(ctx context.Context, id string, in collabsdk.UpdateReviewInput) (domain.Review, error)
	SubmitReview(ctx context.Context, id string) (domain.Review, error)
	ApproveReview(ctx context.Context, id string, payload map[string]any) (domain.Review, error)
	RejectReview(ctx context.Context, id string, payload map[string]any) (domain.Review, error)

	ListComments(ctx context.Context, reviewID string) ([]domain.Comment, error)
	AddComment(ctx context.Context, reviewID, body string) (domain.Comment, error)
	UpdateComment(ctx context.Context, id, body string) (domain.Comment, error)
	DeleteComment(ctx context.Context, id string) error
	ResolveComment(ctx context.Context, id string) (domain.Comment, error)

	ListWorkflows(ctx context.Context, hubID string) ([]domain.Workflow, error)
	CreateWorkflow(ctx context.Context, hubID string, in collabsdk.CreateWorkflowInput) (domain.Workflow, error)
	ExecuteWorkflow(ctx context.Context, workflowID string, input map[string]any) (domain.WorkflowExecution, error)
	GetExecution(ctx context.Context, id string) (domain.WorkflowExecution, error)

	ListKnowledge(ctx context.Context, hubID string) ([]domain.KnowledgeItem, error)
	CreateKnowledge(ctx context.Context, hubID string, in collabsdk.KnowledgeInput) (domain.KnowledgeItem, error)
	UpdateKnowledge(ctx context.Context, id string, in collabsdk.UpdateKnowledgeInput) (domain.KnowledgeItem, error)
	DeleteKnowledge(ctx context.Context, id string) error
	SearchKnowledge(ctx context.Context, hubID, query string) ([]domain.KnowledgeItem, error)

	ListConsultations(ctx context.Context, hubID, status string) ([]domain.Consultation, error)
	RequestConsultation(ctx context.Context, hubID string, in collabsdk.ConsultationInput) (domain.Consultation, error)
	RespondConsultation(ctx context.Context, id, response string) (domain.Consultation, error)
	CloseConsultation(ctx context.Context, id string) (domain.Consultation, error)

	Metrics(ctx context.Context, hubID string) (domain.Metrics, error)
	Analytics(ctx context.Context, hubID, window string) (domain.Analytics, error)
	TeamActivity(ctx context.Context, hubID string, limit int) ([]domain.ActivityEntry, error)
	ExportHub(ctx context.Context, hubID string) (domain.ExportBundle, error)

	ListNotifications(ctx context.Context, unreadOnly bool) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) (domain.Notification, error)
	MarkAllNotificationsRead(ctx context.Context) (int, error)
	DeleteNotification(ctx context.Context, id string) error
}

var _ API = (*collabsdk.Client)(nil)
