package server

import (
	"collabhub/internal/domain"
)

// Envelope wraps every successful response body.
type Envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

type envelopeOutput[T any] struct {
	Body Envelope[T] `json:"body"`
}

func ok[T any](data T) *envelopeOutput[T] {
	return &envelopeOutput[T]{Body: Envelope[T]{Success: true, Data: data}}
}

// Request payloads

type CreateHubRequest struct {
	ID          *string        `json:"id,omitempty"`
	Name        string         `json:"name" minLength:"1"`
	Description *string        `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type UpdateHubRequest struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type AddMemberRequest struct {
	ActorID string  `json:"actor_id" minLength:"1"`
	Name    *string `json:"name,omitempty"`
	Role    *string `json:"role,omitempty" enum:"admin,member,viewer"`
	Status  *string `json:"status,omitempty" enum:"active,invited,inactive"`
}

type UpdateMemberRequest struct {
	Name   *string `json:"name,omitempty"`
	Status *string `json:"status,omitempty" enum:"active,invited,inactive"`
}

type AssignRoleRequest struct {
	Role string `json:"role" enum:"admin,member,viewer"`
}

type CreateReviewRequest struct {
	ID          *string  `json:"id,omitempty"`
	RuleID      *string  `json:"rule_id,omitempty"`
	Title       string   `json:"title" minLength:"1"`
	Description *string  `json:"description,omitempty"`
	Reviewers   []string `json:"reviewers,omitempty"`
}

type UpdateReviewRequest struct {
	RuleID      *string  `json:"rule_id,omitempty"`
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Reviewers   []string `json:"reviewers,omitempty"`
}

type DecisionRequest struct {
	Payload map[string]any `json:"payload,omitempty"`
}

type CommentRequest struct {
	Body string `json:"body" minLength:"1"`
}

type CreateWorkflowRequest struct {
	ID          *string               `json:"id,omitempty"`
	Name        string                `json:"name" minLength:"1"`
	Description *string               `json:"description,omitempty"`
	Steps       []domain.WorkflowStep `json:"steps,omitempty"`
}

type ExecuteWorkflowRequest struct {
	Input map[string]any `json:"input,omitempty"`
}

type CreateKnowledgeRequest struct {
	ID      *string  `json:"id,omitempty"`
	Title   string   `json:"title" minLength:"1"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

type UpdateKnowledgeRequest struct {
	Title   *string  `json:"title,omitempty"`
	Content *string  `json:"content,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

type ConsultationRequest struct {
	Topic    string  `json:"topic" minLength:"1"`
	Question string  `json:"question" minLength:"1"`
	ExpertID *string `json:"expert_id,omitempty"`
}

type RespondConsultationRequest struct {
	Response string `json:"response" minLength:"1"`
}

type CreateAPIKeyRequest struct {
	Name *string `json:"name,omitempty"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id" minLength:"1"`
}

// Response payloads

type DeletedResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

type MarkAllReadResponse struct {
	Updated int `json:"updated"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	Key       string `json:"key,omitempty"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type WhoAmIResponse struct {
	ActorID string `json:"actor_id"`
	Source  string `json:"source"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	SchemaVersion int    `json:"schema_version"`
}

func apiKeyResponse(k domain.APIKey, plain string) APIKeyResponse {
	return APIKeyResponse{
		ID:        k.ID,
		ActorID:   k.ActorID,
		Name:      k.Name,
		CreatedAt: k.CreatedAt,
		Key:       plain,
	}
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
