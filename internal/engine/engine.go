package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"collabhub/internal/domain"
	"collabhub/internal/engine/auth"
	"collabhub/internal/events"
	"collabhub/internal/repo"
)

var (
	// ErrInvalid marks rejected input.
	ErrInvalid = errors.New("invalid input")
	// ErrInvalidTransition marks a state change not allowed from the current status.
	ErrInvalidTransition = errors.New("invalid transition")
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Auth   auth.Service
	Now    func() time.Time
}

func New(db *sql.DB) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:     db,
		Repo:   r,
		Events: events.Writer{DB: db},
		Auth:   auth.Service{Repo: r},
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func transitionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}

func newID(id string) string {
	if strings.TrimSpace(id) != "" {
		return id
	}
	return uuid.NewString()
}

// inTx runs fn in a transaction and commits when it returns nil.
func (e Engine) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) notify(ctx context.Context, tx *sql.Tx, actorID, recipientID, hubID, typ, msg, kind, entityID string) error {
	if recipientID == "" || recipientID == actorID {
		return nil
	}
	return e.Repo.InsertNotification(ctx, tx, domain.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		HubID:       hubID,
		Type:        typ,
		Message:     msg,
		EntityKind:  kind,
		EntityID:    entityID,
		CreatedAt:   e.stamp(),
	})
}

type HubCreateOptions struct {
	ID          string
	Name        string
	Description string
	Metadata    map[string]any
	ActorID     string
	ActorName   string
}

// CreateHub inserts a hub and makes the creator its owner.
func (e Engine) CreateHub(ctx context.Context, opts HubCreateOptions) (domain.Hub, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Hub{}, invalidf("name is required")
	}
	if opts.ActorID == "" {
		return domain.Hub{}, invalidf("actor is required")
	}
	now := e.stamp()
	h := domain.Hub{
		ID:          newID(opts.ID),
		Name:        strings.TrimSpace(opts.Name),
		Description: opts.Description,
		OwnerID:     opts.ActorID,
		MemberCount: 1,
		Metadata:    opts.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertHub(ctx, tx, h); err != nil {
			return fmt.Errorf("insert hub: %w", err)
		}
		owner := domain.TeamMember{
			ID:        uuid.NewString(),
			HubID:     h.ID,
			ActorID:   opts.ActorID,
			Name:      opts.ActorName,
			Role:      domain.RoleOwner,
			Status:    "active",
			JoinedAt:  now,
			UpdatedAt: now,
		}
		if err := e.Repo.InsertMember(ctx, tx, owner); err != nil {
			return fmt.Errorf("insert owner: %w", err)
		}
		return e.Events.Append(ctx, tx, "hub.created", h.ID, "hub", h.ID, opts.ActorID, events.EventPayload{"name": h.Name})
	})
	if err != nil {
		return domain.Hub{}, err
	}
	return h, nil
}

func (e Engine) GetHub(ctx context.Context, id string) (domain.Hub, error) {
	return e.Repo.GetHub(ctx, nil, id)
}

func (e Engine) ListHubs(ctx context.Context) ([]domain.Hub, error) {
	return e.Repo.ListHubs(ctx)
}

type HubUpdateOptions struct {
	ID          string
	Name        *string
	Description *string
	Metadata    map[string]any
	ActorID     string
}

func (e Engine) UpdateHub(ctx context.Context, opts HubUpdateOptions) (domain.Hub, error) {
	var h domain.Hub
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		h, err = e.Repo.GetHub(ctx, tx, opts.ID)
		if err != nil {
			return err
		}
		if _, err := e.Auth.Require(ctx, tx, h.ID, opts.ActorID, auth.PermHubManage); err != nil {
			return err
		}
		if opts.Name != nil {
			if strings.TrimSpace(*opts.Name) == "" {
				return invalidf("name cannot be empty")
			}
			h.Name = strings.TrimSpace(*opts.Name)
		}
		if opts.Description != nil {
			h.Description = *opts.Description
		}
		if opts.Metadata != nil {
			h.Metadata = opts.Metadata
		}
		h.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateHub(ctx, tx, h); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "hub.updated", h.ID, "hub", h.ID, opts.ActorID, events.EventPayload{"name": h.Name})
	})
	return h, err
}

// DeleteHub removes the hub and, through cascades, everything scoped to it.
func (e Engine) DeleteHub(ctx context.Context, id, actorID string) error {
	return e.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := e.Repo.GetHub(ctx, tx, id); err != nil {
			return err
		}
		if _, err := e.Auth.Require(ctx, tx, id, actorID, auth.PermHubDelete); err != nil {
			return err
		}
		if err := e.Repo.DeleteHub(ctx, tx, id); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "hub.deleted", id, "hub", id, actorID, nil)
	})
}

// JoinHub adds the actor as an active member. Joining twice returns the existing membership.
func (e Engine) JoinHub(ctx context.Context, hubID, actorID, name string) (domain.TeamMember, error) {
	var m domain.TeamMember
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := e.Repo.GetHub(ctx, tx, hubID); err != nil {
			return err
		}
		existing, err := e.Repo.GetMemberByActor(ctx, tx, hubID, actorID)
		if err == nil && existing.Status == "active" {
			m = existing
			return nil
		}
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		now := e.stamp()
		if err == nil {
			existing.Status = "active"
			existing.UpdatedAt = now
			if name != "" {
				existing.Name = name
			}
			if err := e.Repo.UpdateMember(ctx, tx, existing); err != nil {
				return err
			}
			m = existing
		} else {
			m = domain.TeamMember{
				ID:        uuid.NewString(),
				HubID:     hubID,
				ActorID:   actorID,
				Name:      name,
				Role:      domain.RoleMember,
				Status:    "active",
				JoinedAt:  now,
				UpdatedAt: now,
			}
			if err := e.Repo.InsertMember(ctx, tx, m); err != nil {
				return err
			}
		}
		if err := e.Repo.SyncMemberCount(ctx, tx, hubID, now); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "member.joined", hubID, "member", m.ID, actorID, nil)
	})
	return m, err
}

// LeaveHub removes the caller's membership. The hub owner cannot leave.
func (e Engine) LeaveHub(ctx context.Context, hubID, actorID string) error {
	return e.inTx(ctx, func(tx *sql.Tx) error {
		h, err := e.Repo.GetHub(ctx, tx, hubID)
		if err != nil {
			return err
		}
		if h.OwnerID == actorID {
			return transitionf("hub owner cannot leave hub %s", hubID)
		}
		m, err := e.Repo.GetMemberByActor(ctx, tx, hubID, actorID)
		if err != nil {
			return err
		}
		if err := e.Repo.DeleteMember(ctx, tx, m.ID); err != nil {
			return err
		}
		if err := e.Repo.SyncMemberCount(ctx, tx, hubID, e.stamp()); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "member.left", hubID, "member", m.ID, actorID, nil)
	})
}

func validStatus(status string) bool {
	switch status {
	case "active", "invited", "inactive":
		return true
	}
	return false
}

func (e Engine) ListMembers(ctx context.Context, hubID string) ([]domain.TeamMember, error) {
	if _, err := e.Repo.GetHub(ctx, nil, hubID); err != nil {
		return nil, err
	}
	return e.Repo.ListMembers(ctx, nil, hubID)
}

type MemberAddOptions struct {
	HubID    string
	MemberID string
	Name     string
	Role     string
	Status   string
	ActorID  string
}

func (e Engine) AddMember(ctx context.Context, opts MemberAddOptions) (domain.TeamMember, error) {
	if opts.MemberID == "" {
		return domain.TeamMember{}, invalidf("actor_id of the new member is required")
	}
	if opts.Role == "" {
		opts.Role = domain.RoleMember
	}
	if !auth.ValidRole(opts.Role) {
		return domain.TeamMember{}, invalidf("unknown role %s", opts.Role)
	}
	if opts.Status == "" {
		opts.Status = "active"
	}
	if !validStatus(opts.Status) {
		return domain.TeamMember{}, invalidf("unknown status %s", opts.Status)
	}
	var m domain.TeamMember
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := e.Repo.GetHub(ctx, tx, opts.HubID); err != nil {
			return err
		}
		if _, err := e.Auth.Require(ctx, tx, opts.HubID, opts.ActorID, auth.PermHubManage); err != nil {
			return err
		}
		if opts.Role == domain.RoleOwner {
			return invalidf("a hub has a single owner")
		}
		now := e.stamp()
		m = domain.TeamMember{
			ID:        uuid.NewString(),
			HubID:     opts.HubID,
			ActorID:   opts.MemberID,
			Name:      opts.Name,
			Role:      opts.Role,
			Status:    opts.Status,
			JoinedAt:  now,
			UpdatedAt: now,
		}
		if err := e.Repo.InsertMember(ctx, tx, m); err != nil {
			return err
		}
		if err := e.Repo.SyncMemberCount(ctx, tx, opts.HubID, now); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "member.added", opts.HubID, "member", m.ID, opts.ActorID, events.EventPayload{"actor_id": m.ActorID, "role": m.Role})
	})
	return m, err
}

type MemberUpdateOptions struct {
	ID      string
	Name    *string
	Status  *string
	ActorID string
}

// UpdateMember edits name or status. Members may edit themselves; managers may edit anyone.
func (e Engine) UpdateMember(ctx context.Context, opts MemberUpdateOptions) (domain.TeamMember, error) {
	var m domain.TeamMember
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		m, err = e.Repo.GetMember(ctx, tx, opts.ID)
		if err != nil {
			return err
		}
		if err := e.Auth.RequireOwnerOr(ctx, tx, m.HubID, opts.ActorID, m.ActorID, auth.PermHubManage); err != nil {
			return err
		}
		if opts.Name != nil {
			m.Name = *opts.Name
		}
		if opts.Status != nil {
			if !validStatus(*opts.Status) {
				return invalidf("unknown status %s", *opts.Status)
			}
			m.Status = *opts.Status
		}
		now := e.stamp()
		m.UpdatedAt = now
		if err := e.Repo.UpdateMember(ctx, tx, m); err != nil {
			return err
		}
		if err := e.Repo.SyncMemberCount(ctx, tx, m.HubID, now); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "member.updated", m.HubID, "member", m.ID, opts.ActorID, events.EventPayload{"status": m.Status})
	})
	return m, err
}

func (e Engine) RemoveMember(ctx context.Context, id, actorID string) error {
	return e.inTx(ctx, func(tx *sql.Tx) error {
		m, err := e.Repo.GetMember(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := e.Auth.Require(ctx, tx, m.HubID, actorID, auth.PermHubManage); err != nil {
			return err
		}
		if m.Role == domain.RoleOwner {
			return transitionf("hub owner cannot be removed")
		}
		if err := e.Repo.DeleteMember(ctx, tx, id); err != nil {
			return err
		}
		if err := e.Repo.SyncMemberCount(ctx, tx, m.HubID, e.stamp()); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "member.removed", m.HubID, "member", m.ID, actorID, events.EventPayload{"actor_id": m.ActorID})
	})
}

// AssignRole reassigns a member role. Only owners and admins may do so and ownership is not transferable here.
func (e Engine) AssignRole(ctx context.Context, id, role, actorID string) (domain.TeamMember, error) {
	if !auth.ValidRole(role) {
		return domain.TeamMember{}, invalidf("unknown role %s", role)
	}
	if role == domain.RoleOwner {
		return domain.TeamMember{}, invalidf("a hub has a single owner")
	}
	var m domain.TeamMember
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		m, err = e.Repo.GetMember(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := e.Auth.Require(ctx, tx, m.HubID, actorID, auth.PermHubManage); err != nil {
			return err
		}
		if m.Role == domain.RoleOwner {
			return transitionf("owner role cannot be reassigned")
		}
		previous := m.Role
		m.Role = role
		m.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateMember(ctx, tx, m); err != nil {
			return err
		}
		if err := e.notify(ctx, tx, actorID, m.ActorID, m.HubID, "member.role_assigned",
			fmt.Sprintf("Your role changed from %s to %s", previous, role), "member", m.ID); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, "member.role_assigned", m.HubID, "member", m.ID, actorID, events.EventPayload{"from": previous, "to": role})
	})
	return m, err
}
