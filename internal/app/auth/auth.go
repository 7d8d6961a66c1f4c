// Package auth provides the actor and authorization boundary contract. The
// engine only consumes Authorizer; identity verification itself lives at the
// HTTP edge.
package auth

import (
	"context"
	"errors"
	"strings"
)

// Role is the privilege level an actor holds.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ErrForbidden is returned when an actor lacks the required privilege.
var ErrForbidden = errors.New("forbidden")

// Actor identifies the caller of an operation.
type Actor struct {
	ID   string
	Role Role
}

// Authorizer decides whether an actor may perform operations that require a
// given role.
type Authorizer interface {
	Authorize(ctx context.Context, actor Actor, required Role) error
}

// RoleAuthorizer grants by role, with an optional allowlist that promotes
// named user ids to admin (operator override via ADMIN_USER_IDS).
type RoleAuthorizer struct {
	adminIDs map[string]struct{}
}

// NewRoleAuthorizer builds an authorizer. adminIDs may be nil.
func NewRoleAuthorizer(adminIDs []string) *RoleAuthorizer {
	set := make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		trimmed := strings.TrimSpace(id)
		if trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	return &RoleAuthorizer{adminIDs: set}
}

func (a *RoleAuthorizer) Authorize(_ context.Context, actor Actor, required Role) error {
	if required == RoleUser {
		if actor.ID == "" {
			return ErrForbidden
		}
		return nil
	}

	if actor.Role == RoleAdmin {
		return nil
	}
	if _, ok := a.adminIDs[actor.ID]; ok {
		return nil
	}
	return ErrForbidden
}
