package domain

const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

const (
	ReviewDraft     = "draft"
	ReviewSubmitted = "submitted"
	ReviewApproved  = "approved"
	ReviewRejected  = "rejected"
)

const (
	ExecutionRunning   = "running"
	ExecutionCompleted = "completed"
	ExecutionFailed    = "failed"
)

const (
	ConsultationOpen     = "open"
	ConsultationAnswered = "answered"
	ConsultationClosed   = "closed"
)

type Hub struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	OwnerID     string         `json:"owner_id"`
	MemberCount int            `json:"member_count"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   string         `json:"created_at" format:"date-time"`
	UpdatedAt   string         `json:"updated_at" format:"date-time"`
}

type TeamMember struct {
	ID        string `json:"id"`
	HubID     string `json:"hub_id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role" enum:"owner,admin,member,viewer"`
	Status    string `json:"status" enum:"active,invited,inactive"`
	JoinedAt  string `json:"joined_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type Review struct {
	ID          string         `json:"id"`
	HubID       string         `json:"hub_id"`
	RuleID      string         `json:"rule_id,omitempty"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	AuthorID    string         `json:"author_id"`
	Status      string         `json:"status" enum:"draft,submitted,approved,rejected"`
	Reviewers   []string       `json:"reviewers,omitempty"`
	Approval    map[string]any `json:"approval,omitempty"`
	Rejection   map[string]any `json:"rejection,omitempty"`
	CreatedAt   string         `json:"created_at" format:"date-time"`
	UpdatedAt   string         `json:"updated_at" format:"date-time"`
	SubmittedAt *string        `json:"submitted_at,omitempty" format:"date-time"`
	DecidedAt   *string        `json:"decided_at,omitempty" format:"date-time"`
}

type Comment struct {
	ID        string `json:"id"`
	ReviewID  string `json:"review_id"`
	AuthorID  string `json:"author_id"`
	Body      string `json:"body"`
	Resolved  bool   `json:"resolved"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type WorkflowStep struct {
	Name      string   `json:"name"`
	Approvers []string `json:"approvers,omitempty"`
}

type Workflow struct {
	ID          string         `json:"id"`
	HubID       string         `json:"hub_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Steps       []WorkflowStep `json:"steps"`
	CreatedBy   string         `json:"created_by"`
	CreatedAt   string         `json:"created_at" format:"date-time"`
}

type WorkflowExecution struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflow_id"`
	HubID       string         `json:"hub_id"`
	Status      string         `json:"status" enum:"running,completed,failed"`
	CurrentStep int            `json:"current_step"`
	Input       map[string]any `json:"input,omitempty"`
	StartedBy   string         `json:"started_by"`
	StartedAt   string         `json:"started_at" format:"date-time"`
	UpdatedAt   string         `json:"updated_at" format:"date-time"`
	CompletedAt *string        `json:"completed_at,omitempty" format:"date-time"`
}

type KnowledgeItem struct {
	ID        string   `json:"id"`
	HubID     string   `json:"hub_id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags,omitempty"`
	AuthorID  string   `json:"author_id"`
	CreatedAt string   `json:"created_at" format:"date-time"`
	UpdatedAt string   `json:"updated_at" format:"date-time"`
}

type Consultation struct {
	ID          string  `json:"id"`
	HubID       string  `json:"hub_id"`
	Topic       string  `json:"topic"`
	Question    string  `json:"question"`
	RequesterID string  `json:"requester_id"`
	ExpertID    string  `json:"expert_id,omitempty"`
	Status      string  `json:"status" enum:"open,answered,closed"`
	Response    string  `json:"response,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
	ClosedAt    *string `json:"closed_at,omitempty" format:"date-time"`
}

type Notification struct {
	ID          string `json:"id"`
	RecipientID string `json:"recipient_id"`
	HubID       string `json:"hub_id,omitempty"`
	Type        string `json:"type"`
	Message     string `json:"message"`
	EntityKind  string `json:"entity_kind,omitempty"`
	EntityID    string `json:"entity_id,omitempty"`
	Read        bool   `json:"read"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	HubID      string `json:"hub_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Metrics is a point-in-time summary of one hub.
type Metrics struct {
	HubID               string         `json:"hub_id"`
	Members             int            `json:"members"`
	ReviewsByStatus     map[string]int `json:"reviews_by_status"`
	OpenConsultations   int            `json:"open_consultations"`
	KnowledgeItems      int            `json:"knowledge_items"`
	Workflows           int            `json:"workflows"`
	RunningExecutions   int            `json:"running_executions"`
	UnreadNotifications int            `json:"unread_notifications"`
}

// Analytics counts hub events of interest inside a time window.
type Analytics struct {
	HubID            string `json:"hub_id"`
	Window           string `json:"window"`
	Since            string `json:"since" format:"date-time"`
	ReviewsCreated   int    `json:"reviews_created"`
	ReviewsSubmitted int    `json:"reviews_submitted"`
	ReviewsApproved  int    `json:"reviews_approved"`
	ReviewsRejected  int    `json:"reviews_rejected"`
	CommentsAdded    int    `json:"comments_added"`
	KnowledgeAdded   int    `json:"knowledge_added"`
	ActiveActors     int    `json:"active_actors"`
}

type ActivityEntry struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ActorID    string `json:"actor_id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
}

type ExportBundle struct {
	ExportedAt    string          `json:"exported_at" format:"date-time"`
	Hub           Hub             `json:"hub"`
	Members       []TeamMember    `json:"members"`
	Reviews       []Review        `json:"reviews"`
	Comments      []Comment       `json:"comments"`
	Workflows     []Workflow      `json:"workflows"`
	Knowledge     []KnowledgeItem `json:"knowledge"`
	Consultations []Consultation  `json:"consultations"`
}
