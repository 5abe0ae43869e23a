package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"collabhub/internal/domain"
	"collabhub/internal/repo"
)

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Permission string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s required", e.Permission)
}

// Hub permissions checked by the engine.
const (
	PermHubRead      = "hub.read"
	PermHubWrite     = "hub.write"
	PermHubManage    = "hub.manage"
	PermHubDelete    = "hub.delete"
	PermReviewDecide = "review.decide"
)

var rolePermissions = map[string][]string{
	domain.RoleOwner:  {PermHubRead, PermHubWrite, PermHubManage, PermHubDelete, PermReviewDecide},
	domain.RoleAdmin:  {PermHubRead, PermHubWrite, PermHubManage, PermReviewDecide},
	domain.RoleMember: {PermHubRead, PermHubWrite},
	domain.RoleViewer: {PermHubRead},
}

// ValidRole reports whether role is one of the known hub roles.
func ValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// RoleHas reports whether role grants perm.
func RoleHas(role, perm string) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// Service resolves hub membership roles backed by SQL.
type Service struct {
	Repo repo.Repo
}

// MemberRole returns the actor's role in the hub, or "" when the actor is not an active member.
func (s Service) MemberRole(ctx context.Context, tx *sql.Tx, hubID, actorID string) (string, error) {
	if strings.TrimSpace(actorID) == "" {
		return "", errors.New("actor_id required")
	}
	m, err := s.Repo.GetMemberByActor(ctx, tx, hubID, actorID)
	if errors.Is(err, repo.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if m.Status != "active" {
		return "", nil
	}
	return m.Role, nil
}

// Require returns a ForbiddenError unless the actor's hub role grants perm.
func (s Service) Require(ctx context.Context, tx *sql.Tx, hubID, actorID, perm string) (string, error) {
	role, err := s.MemberRole(ctx, tx, hubID, actorID)
	if err != nil {
		return "", err
	}
	if !RoleHas(role, perm) {
		return role, ForbiddenError{Permission: perm}
	}
	return role, nil
}

// RequireOwnerOr passes when the actor owns the resource or holds perm in the hub.
func (s Service) RequireOwnerOr(ctx context.Context, tx *sql.Tx, hubID, actorID, ownerID, perm string) error {
	if actorID != "" && actorID == ownerID {
		return nil
	}
	_, err := s.Require(ctx, tx, hubID, actorID, perm)
	return err
}
