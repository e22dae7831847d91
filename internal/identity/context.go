// Package identity carries the authenticated principal through request
// contexts. Authentication middleware populates it; handlers and the
// authorization layer read it back.
package identity

import (
	"context"
	"errors"

	"github.com/custodian-sh/custodian/internal/models"
)

type contextKey string

const (
	PrincipalIDKey contextKey = "principal_id"
	RoleKey        contextKey = "principal_role"
)

var ErrNoPrincipalInContext = errors.New("no principal in context")

// WithPrincipal adds the principal ID and role to the context.
func WithPrincipal(ctx context.Context, id string, role models.Role) context.Context {
	ctx = context.WithValue(ctx, PrincipalIDKey, id)
	ctx = context.WithValue(ctx, RoleKey, role)
	return ctx
}

// PrincipalID extracts the authenticated principal ID from the context.
func PrincipalID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(PrincipalIDKey).(string)
	if !ok || id == "" {
		return "", ErrNoPrincipalInContext
	}
	return id, nil
}

// Role extracts the principal role from the context. It returns an empty
// role when the request was not authenticated.
func Role(ctx context.Context) models.Role {
	role, _ := ctx.Value(RoleKey).(models.Role)
	return role
}
