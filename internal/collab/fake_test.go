package collab

import (
	"context"
	"fmt"
	"sync"

	"collabhub/internal/domain"
	collabsdk "collabhub/sdk/go"
)

// fakeAPI records calls per method. Methods it does not override panic
// through the nil embedded API.
type fakeAPI struct {
	API

	mu    sync.Mutex
	calls map[string]int
	gates map[string]chan struct{}
	errs  map[string]error
	seq   int

	hubs          []domain.Hub
	members       []domain.TeamMember
	reviews       []domain.Review
	knowledge     []domain.KnowledgeItem
	notifications []domain.Notification
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		calls: map[string]int{},
		gates: map[string]chan struct{}{},
		errs:  map[string]error{},
	}
}

// hit counts a call, blocks while the method is gated and returns its scripted error.
func (f *fakeAPI) hit(method string) error {
	return f.hitCtx(context.Background(), method)
}

// hitCtx is hit for calls that give up when ctx ends, like a real transport.
func (f *fakeAPI) hitCtx(ctx context.Context, method string) error {
	f.mu.Lock()
	f.calls[method]++
	gate := f.gates[method]
	err := f.errs[method]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}
	if ctx.Err() != nil {
		return &collabsdk.TransportError{Method: "GET", URL: method, Err: ctx.Err()}
	}
	return err
}

func (f *fakeAPI) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeAPI) gate(method string) chan struct{} {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[method] = ch
	f.mu.Unlock()
	return ch
}

func (f *fakeAPI) fail(method string, err error) {
	f.mu.Lock()
	f.errs[method] = err
	f.mu.Unlock()
}

func (f *fakeAPI) nextID(prefix string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return fmt.Sprintf("%s%d", prefix, f.seq)
}

func (f *fakeAPI) ListHubs(ctx context.Context) ([]domain.Hub, error) {
	if err := f.hit("ListHubs"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Hub(nil), f.hubs...), nil
}

func (f *fakeAPI) CreateHub(ctx context.Context, in collabsdk.CreateHubInput) (domain.Hub, error) {
	if err := f.hit("CreateHub"); err != nil {
		return domain.Hub{}, err
	}
	id := in.ID
	if id == "" {
		id = f.nextID("h")
	}
	return domain.Hub{ID: id, Name: in.Name, MemberCount: 1}, nil
}

func (f *fakeAPI) GetHub(ctx context.Context, id string) (domain.Hub, error) {
	if err := f.hit("GetHub"); err != nil {
		return domain.Hub{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.hubs {
		if h.ID == id {
			return h, nil
		}
	}
	return domain.Hub{}, &collabsdk.APIError{StatusCode: 404, Code: "not_found", Message: "hub not found"}
}

func (f *fakeAPI) UpdateHub(ctx context.Context, id string, in collabsdk.UpdateHubInput) (domain.Hub, error) {
	if err := f.hit("UpdateHub"); err != nil {
		return domain.Hub{}, err
	}
	h := domain.Hub{ID: id}
	if in.Name != nil {
		h.Name = *in.Name
	}
	return h, nil
}

func (f *fakeAPI) DeleteHub(ctx context.Context, id string) error {
	return f.hit("DeleteHub")
}

func (f *fakeAPI) ListMembers(ctx context.Context, hubID string) ([]domain.TeamMember, error) {
	if err := f.hitCtx(ctx, "ListMembers"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TeamMember(nil), f.members...), nil
}

func (f *fakeAPI) UpdateMember(ctx context.Context, id string, in collabsdk.UpdateMemberInput) (domain.TeamMember, error) {
	if err := f.hit("UpdateMember"); err != nil {
		return domain.TeamMember{}, err
	}
	m := domain.TeamMember{ID: id, Role: domain.RoleMember, Status: "active"}
	if in.Status != nil {
		m.Status = *in.Status
	}
	return m, nil
}

func (f *fakeAPI) AssignRole(ctx context.Context, id, role string) (domain.TeamMember, error) {
	if err := f.hit("AssignRole"); err != nil {
		return domain.TeamMember{}, err
	}
	return domain.TeamMember{ID: id, Role: role, Status: "active"}, nil
}

func (f *fakeAPI) RemoveMember(ctx context.Context, id string) error {
	return f.hit("RemoveMember")
}

func (f *fakeAPI) ListReviews(ctx context.Context, hubID, status string) ([]domain.Review, error) {
	if err := f.hit("ListReviews"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Review(nil), f.reviews...), nil
}

func (f *fakeAPI) decide(method, id, status string, payload map[string]any) (domain.Review, error) {
	if err := f.hit(method); err != nil {
		return domain.Review{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rv := range f.reviews {
		if rv.ID != id {
			continue
		}
		if rv.Status != domain.ReviewSubmitted {
			return domain.Review{}, &collabsdk.APIError{StatusCode: 409, Code: "invalid_transition"}
		}
		rv.Status = status
		if status == domain.ReviewApproved {
			rv.Approval = payload
		} else {
			rv.Rejection = payload
		}
		return rv, nil
	}
	return domain.Review{}, &collabsdk.APIError{StatusCode: 404, Code: "not_found"}
}

func (f *fakeAPI) ApproveReview(ctx context.Context, id string, payload map[string]any) (domain.Review, error) {
	return f.decide("ApproveReview", id, domain.ReviewApproved, payload)
}

func (f *fakeAPI) RejectReview(ctx context.Context, id string, payload map[string]any) (domain.Review, error) {
	return f.decide("RejectReview", id, domain.ReviewRejected, payload)
}

func (f *fakeAPI) ListComments(ctx context.Context, reviewID string) ([]domain.Comment, error) {
	return nil, f.hit("ListComments")
}

func (f *fakeAPI) ListWorkflows(ctx context.Context, hubID string) ([]domain.Workflow, error) {
	return nil, f.hit("ListWorkflows")
}

func (f *fakeAPI) ListKnowledge(ctx context.Context, hubID string) ([]domain.KnowledgeItem, error) {
	if err := f.hit("ListKnowledge"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.KnowledgeItem(nil), f.knowledge...), nil
}

func (f *fakeAPI) CreateKnowledge(ctx context.Context, hubID string, in collabsdk.KnowledgeInput) (domain.KnowledgeItem, error) {
	if err := f.hit("CreateKnowledge"); err != nil {
		return domain.KnowledgeItem{}, err
	}
	id := in.ID
	if id == "" {
		id = f.nextID("k")
	}
	return domain.KnowledgeItem{ID: id, HubID: hubID, Title: in.Title, Content: in.Content, Tags: in.Tags}, nil
}

func (f *fakeAPI) UpdateKnowledge(ctx context.Context, id string, in collabsdk.UpdateKnowledgeInput) (domain.KnowledgeItem, error) {
	if err := f.hit("UpdateKnowledge"); err != nil {
		return domain.KnowledgeItem{}, err
	}
	k := domain.KnowledgeItem{ID: id, HubID: "h1"}
	if in.Title != nil {
		k.Title = *in.Title
	}
	return k, nil
}

func (f *fakeAPI) DeleteKnowledge(ctx context.Context, id string) error {
	return f.hit("DeleteKnowledge")
}

func (f *fakeAPI) ListConsultations(ctx context.Context, hubID, status string) ([]domain.Consultation, error) {
	return nil, f.hit("ListConsultations")
}

func (f *fakeAPI) Metrics(ctx context.Context, hubID string) (domain.Metrics, error) {
	return domain.Metrics{HubID: hubID}, f.hit("Metrics")
}

func (f *fakeAPI) Analytics(ctx context.Context, hubID, window string) (domain.Analytics, error) {
	return domain.Analytics{HubID: hubID, Window: "7d"}, f.hit("Analytics")
}

func (f *fakeAPI) TeamActivity(ctx context.Context, hubID string, limit int) ([]domain.ActivityEntry, error) {
	return nil, f.hit("TeamActivity")
}

func (f *fakeAPI) ListNotifications(ctx context.Context, unreadOnly bool) ([]domain.Notification, error) {
	if err := f.hit("ListNotifications"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Notification(nil), f.notifications...), nil
}

func (f *fakeAPI) MarkNotificationRead(ctx context.Context, id string) (domain.Notification, error) {
	if err := f.hit("MarkNotificationRead"); err != nil {
		return domain.Notification{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.notifications {
		if n.ID == id {
			f.notifications[i].Read = true
			n.Read = true
			return n, nil
		}
	}
	return domain.Notification{}, &collabsdk.APIError{StatusCode: 404, Code: "not_found"}
}

func (f *fakeAPI) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	if err := f.hit("MarkAllNotificationsRead"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	changed := 0
	for i := range f.notifications {
		if !f.notifications[i].Read {
			f.notifications[i].Read = true
			changed++
		}
	}
	return changed, nil
}

func (f *fakeAPI) DeleteNotification(ctx context.Context, id string) error {
	if err := f.hit("DeleteNotification"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.notifications[:0]
	for _, n := range f.notifications {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	f.notifications = kept
	return nil
}
