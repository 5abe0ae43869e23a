package collabsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"collabhub/internal/domain"
)

// Client is a typed Collaboration Hub HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	// ActorID is sent as X-Actor-Id when no other credential is set.
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		Timeout:  10 * time.Second,
	}
}

type (
	Hub               = domain.Hub
	TeamMember        = domain.TeamMember
	Review            = domain.Review
	Comment           = domain.Comment
	Workflow          = domain.Workflow
	WorkflowStep      = domain.WorkflowStep
	WorkflowExecution = domain.WorkflowExecution
	KnowledgeItem     = domain.KnowledgeItem
	Consultation      = domain.Consultation
	Notification      = domain.Notification
	Metrics           = domain.Metrics
	Analytics         = domain.Analytics
	ActivityEntry     = domain.ActivityEntry
	ExportBundle      = domain.ExportBundle
)

// APIKey is an issued key. Key is only set on creation.
type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at"`
	Key       string `json:"key,omitempty"`
}

type WhoAmI struct {
	ActorID string `json:"actor_id"`
	Source  string `json:"source"`
}

type Health struct {
	Status        string `json:"status"`
	SchemaVersion int    `json:"schema_version"`
}

type CreateHubInput struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type UpdateHubInput struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type AddMemberInput struct {
	ActorID string `json:"actor_id"`
	Name    string `json:"name,omitempty"`
	Role    string `json:"role,omitempty"`
	Status  string `json:"status,omitempty"`
}

type UpdateMemberInput struct {
	Name   *string `json:"name,omitempty"`
	Status *string `json:"status,omitempty"`
}

type CreateReviewInput struct {
	ID          string   `json:"id,omitempty"`
	RuleID      string   `json:"rule_id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Reviewers   []string `json:"reviewers,omitempty"`
}

type UpdateReviewInput struct {
	RuleID      *string  `json:"rule_id,omitempty"`
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Reviewers   []string `json:"reviewers,omitempty"`
}

type CreateWorkflowInput struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Steps       []WorkflowStep `json:"steps,omitempty"`
}

type KnowledgeInput struct {
	ID      string   `json:"id,omitempty"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

type UpdateKnowledgeInput struct {
	Title   *string  `json:"title,omitempty"`
	Content *string  `json:"content,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

type ConsultationInput struct {
	Topic    string `json:"topic"`
	Question string `json:"question"`
	ExpertID string `json:"expert_id,omitempty"`
}

type deletedResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// Hubs

func (c *Client) ListHubs(ctx context.Context) ([]Hub, error) {
	var out []Hub
	err := c.do(ctx, http.MethodGet, "hubs", nil, nil, &out)
	return out, err
}

func (c *Client) CreateHub(ctx context.Context, in CreateHubInput) (Hub, error) {
	var out Hub
	err := c.do(ctx, http.MethodPost, "hubs", nil, in, &out)
	return out, err
}

func (c *Client) GetHub(ctx context.Context, id string) (Hub, error) {
	var out Hub
	err := c.do(ctx, http.MethodGet, pathf("hubs/%s", id), nil, nil, &out)
	return out, err
}

func (c *Client) UpdateHub(ctx context.Context, id string, in UpdateHubInput) (Hub, error) {
	var out Hub
	err := c.do(ctx, http.MethodPatch, pathf("hubs/%s", id), nil, in, &out)
	return out, err
}

func (c *Client) DeleteHub(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, pathf("hubs/%s", id), nil, nil, &deletedResponse{})
}

func (c *Client) JoinHub(ctx context.Context, id string) (TeamMember, error) {
	var out TeamMember
	err := c.do(ctx, http.MethodPost, pathf("hubs/%s/join", id), nil, nil, &out)
	return out, err
}

func (c *Client) LeaveHub(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, pathf("hubs/%s/leave", id), nil, nil, &deletedResponse{})
}

// Team members

func (c *Client) ListMembers(ctx context.Context, hubID string) ([]TeamMember, error) {
	var out []TeamMember
	err := c.do(ctx, http.MethodGet, pathf("hubs/%s/members", hubID), nil, nil, &out)
	return out, err
}

func (c *Client) AddMember(ctx context.Context, hubID string, in AddMemberInput) (TeamMember, error) {
	var out TeamMember
	err := c.do(ctx, http.MethodPost, pathf("hubs/%s/members", hubID), nil, in, &out)
	return out, err
}

func (c *Client) UpdateMember(ctx context.Context, id string, in UpdateMemberInput) (TeamMember, error) {
	var out TeamMember
	err := c.do(ctx, http.MethodPatch, pathf("members/%s", id), nil, in, &out)
	return out, err
}

func (c *Client) RemoveMember(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, pathf("members/%s", id), nil, nil, &deletedResponse{})
}

func (c *Client) AssignRole(ctx context.Context, id, role string) (TeamMember, error) {
	var out TeamMember
	err := c.do(ctx, http.MethodPut, pathf("members/%s/role", id), nil, map[string]string{"role": role}, &out)
	return out, err
}

// Reviews

// ListReviews lists hub reviews; status filters when non-empty.
func (c *Client) ListReviews(ctx context.Context, hubID, status string) ([]Review, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	var out []Review
	err := c.do(ctx, http.MethodGet, pathf("hubs/%s/reviews", hubID), q, nil, &out)
	return out, err
}

func (c *Client) CreateReview(ctx context.Context, hubID string, in CreateReviewInput) (Review, error) {
	var out Review
	err := c.do(ctx, http.MethodPost, pathf("hubs/%s/reviews", hubID), nil, in, &out)
	return out, err
}

func (c *Client) GetReview(ctx context.Context, id string) (Review, error) {
	var out Review
	err := c.do(ctx, http.MethodGet, pathf("reviews/%s", id), nil, nil, &out)
	return out, err
}

func (c *Client) UpdateReview(ctx context.Context, id string, in UpdateReviewInput) (Review, error) {
	var out Review
	err := c.do(ctx, http.MethodPatch, pathf("reviews/%s", id), nil, in, &out)
	return out, err
}

func (c *Client) SubmitReview(ctx context.Context, id string) (Review, error) {
	var out Review
	err := c.do(ctx, http.MethodPost, pathf("reviews/%s/submit", id), nil, nil, &out)
	return out, err
}

func (c *Client) ApproveReview(ctx context.Context, id string, payload map[string]any) (Review, error) {
	var out Review
	err := c.do(ctx, http.MethodPost, pathf("reviews/%s/approve", id), nil, decisionBody(payload), &out)
	return out, err
}

func (c *Client) RejectReview(ctx context.Context, id string, payload map[string]any) (Review, error) {
	var out Review
	err := c.do(ctx, http.MethodPost, pathf("reviews/%s/reject", id), nil, decisionBody(payload), &out)
	return out, err
}

func decisionBody(payload map[string]any) map[string]any {
	if payload == nil {
		return map[string]any{}
	}
	return map[string]any{"payload": payload}
}

// Comments

func (c *Client) ListComments(ctx context.Context, reviewID string) ([]Comment, error) {
	var out []Comment
	err := c.do(ctx, http.MethodGet, pathf("reviews/%s/comments", reviewID), nil, nil, &out)
	return out, err
}

func (c *Client) AddComment(ctx context.Context, reviewID, body string) (Comment, error) {
	var out Comment
	err := c.do(ctx, http.MethodPost, pathf("reviews/%s/comments", reviewID), nil, map[string]string{"body": body}, &out)
	return out, err
}

func (c *Client) UpdateComment(ctx context.Context, id, body string) (Comment, error) {
	var out Comment
	err := c.do(ctx, http.MethodPatch, pathf("comments/%s", id), nil, map[string]string{"body": body}, &out)
	return out, err
}

func (c *Client) DeleteComment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, pathf("comments/%s", id), nil, nil, &deletedResponse{})
}

func (c *Client) ResolveComment(ctx context.Context, id string) (Comment, error) {
	var out Comment
	err := c.do(ctx, http.MethodPost, pathf("comments/%s/resolve", id), nil, nil, &out)
	return out, err
}

// Workflows

func (c *Client) ListWorkflows(ctx context.Context, hubID string) ([]Workflow, error) {
	var out []Workflow
	err := c.do(ctx, http.MethodGet, pathf("hubs/%s/workflows", hubID), nil, nil, &out)
	return out, err
}

func (c *Client) CreateWorkflow(ctx context.Context, hubID string, in CreateWorkflowInput) (Workflow, error) {
	var out Workflow
	err := c.do(ctx, http.MethodPost, pathf("hubs/%s/workflows", hubID), nil, in, &out)
	return out, err
}

func (c *Client) ExecuteWorkflow(ctx context.Context, workflowID string, input map[string]any) (WorkflowExecution, error) {
	body := map[string]any{}
	if input != nil {
		body["input"] = input
	}
	var out WorkflowExecution
	err := c.do(ctx, http.MethodPost, pathf("workflows/%s/execute", workflowID), nil, body, &out)
	return out, err
}

// GetExecution monitors a workflow execution.
func (c *Client) GetExecution(ctx context.Context, id string) (WorkflowExecution, error) {
	var out WorkflowExecution
	err := c.do(ctx, http.MethodGet, pathf("executions/%s", id), nil, nil, &out)
	return out, err
}

// Knowledge

func (c *Client) ListKnowledge(ctx context.Context, hubID string) ([]KnowledgeItem, error) {
	var out []KnowledgeItem
	err := c.do(ctx, http.MethodGet, pathf("hubs/%s/knowledge", hubID), nil, nil, &out)
	return out, err
}

func (c *Client) CreateKnowledge(ctx context.Context, hubID string, in KnowledgeInput) (KnowledgeItem, error) {
	var out KnowledgeItem
	err := c.do(ctx, http.MethodPost, pathf("hubs/%s/knowledge", hubID), nil, in, &out)
	return out, err
}

func (c *Client) UpdateKnowledge(ctx context.Context, id string, in UpdateKnowledgeInput) (KnowledgeItem, error) {
	var out KnowledgeItem
	err := c.do(ctx, http.MethodPatch, pathf("knowledge/%s", id), nil, in, &out)
	return out, err
}

func (c *Client) DeleteKnowledge(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, pathf("knowledge/%s", id), nil, nil, &deletedResponse{})
}

func (c *Client) SearchKnowledge(ctx context.Context, hubID, query string) ([]KnowledgeItem, error) {
	var out []KnowledgeItem
	err := c.do(ctx, http.MethodGet, pathf("hubs/%s/knowledge/search", hubID), url.Values{"q": {query}}, nil, &out)
	return out, err
}

// Consultations

func (c *Client) ListConsultations(ctx context.Context, hubID, status string) ([]Consultation, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	var out []Consultation
	err := c.do(ctx, http.MethodGet, pathf("hubs/%s/consultations", hubID), q, nil, &out)
	return out, err
}

func (c *Client) RequestConsultation(ctx context.Context, hubID string, in ConsultationInput) (Consultation, error) {
	var out Consultation
	err := c.do(ctx, http.MethodPost, pathf("hubs/%s/consultations", hubID), nil, in, &out)
	return out, err
}

func (c *Client) RespondConsultation(ctx context.Context, id, response string) (Consultation, error) {
	var out Consultation
	err := c.do(ctx, http.MethodPost, pathf("consultations/%s/respond", id), nil, map[string]string{"response": response}, &out)
	return out, err
}

func (c *Client) CloseConsultation(ctx context.Context, id string) (Consultation, error) {
	var out Consultation
	err := c.do(ctx, http.MethodPost, pathf("consultations/%s/close", id), nil, nil, &out)
	return out, err
}

// Insights

func (c *Client) Metrics(ctx context.Context, hubID string) (Metrics, error) {
	var out Metrics
	err := c.do(ctx, http.MethodGet, pathf("hubs/%s/metrics", hubID), nil, nil, &out)
	return out, err
}

// Analytics fetches counts for window (24h, 7d or 30d; server default when empty).
func (c *Client) Analytics(ctx context.Context, hubID, window string) (Analytics, error) {
	q := url.Values{}
	if window != "" {
		q.Set("window", window)
	}
	var out Analytics
	err := c.do(ctx, http.MethodGet, pathf("hubs/%s/analytics", hubID), q, nil, &out)
	return out, err
}

func (c *Client) TeamActivity(ctx context.Context, hubID string, limit int) ([]ActivityEntry, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []ActivityEntry
	err := c.do(ctx, http.MethodGet, pathf("hubs/%s/activity", hubID), q, nil, &out)
	return out, err
}

func (c *Client) ExportHub(ctx context.Context, hubID string) (ExportBundle, error) {
	var out ExportBundle
	err := c.do(ctx, http.MethodGet, pathf("hubs/%s/export", hubID), nil, nil, &out)
	return out, err
}

// Notifications

func (c *Client) ListNotifications(ctx context.Context, unreadOnly bool) ([]Notification, error) {
	q := url.Values{}
	if unreadOnly {
		q.Set("unread", "true")
	}
	var out []Notification
	err := c.do(ctx, http.MethodGet, "notifications", q, nil, &out)
	return out, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) (Notification, error) {
	var out Notification
	err := c.do(ctx, http.MethodPost, pathf("notifications/%s/read", id), nil, nil, &out)
	return out, err
}

// MarkAllNotificationsRead returns how many notifications changed.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	var out struct {
		Updated int `json:"updated"`
	}
	err := c.do(ctx, http.MethodPost, "notifications/read-all", nil, nil, &out)
	return out.Updated, err
}

func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, pathf("notifications/%s", id), nil, nil, &deletedResponse{})
}

// Account

func (c *Client) WhoAmI(ctx context.Context) (WhoAmI, error) {
	var out WhoAmI
	err := c.do(ctx, http.MethodGet, "me", nil, nil, &out)
	return out, err
}

func (c *Client) CreateAPIKey(ctx context.Context, name string) (APIKey, error) {
	body := map[string]any{}
	if name != "" {
		body["name"] = name
	}
	var out APIKey
	err := c.do(ctx, http.MethodPost, "api-keys", nil, body, &out)
	return out, err
}

func (c *Client) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	var out []APIKey
	err := c.do(ctx, http.MethodGet, "api-keys", nil, nil, &out)
	return out, err
}

func (c *Client) DeleteAPIKey(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, pathf("api-keys/%s", id), nil, nil, &deletedResponse{})
}

// DevLogin mints a token on servers with development login enabled.
func (c *Client) DevLogin(ctx context.Context, actorID string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "auth/dev/login", nil, map[string]string{"actor_id": actorID}, &out)
	return out.Token, err
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.do(ctx, http.MethodGet, "health", nil, nil, &out)
	return out, err
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do sends one request and decodes the envelope's data into out.
// POST, PUT and PATCH always carry a JSON object body.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	u := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	if body == nil && method != http.MethodGet && method != http.MethodDelete {
		body = struct{}{}
	}
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &TransportError{Method: method, URL: u, Err: err, canceled: ctx.Err() != nil}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Method: method, URL: u, Err: err, canceled: ctx.Err() != nil}
	}
	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode >= 300 || (decodeErr == nil && !env.Success) {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		if decodeErr == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

func pathf(format string, ids ...string) string {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = url.PathEscape(id)
	}
	return fmt.Sprintf(format, args...)
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
