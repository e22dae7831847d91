// Package rbac enforces role-based permissions on API routes. Roles and
// their permission grants live in the models package; this package only
// checks the authenticated principal against them.
package rbac

import (
	"context"
	"errors"
	"net/http"

	"github.com/custodian-sh/custodian/internal/identity"
	"github.com/custodian-sh/custodian/internal/models"
)

var ErrPermissionDenied = errors.New("permission denied")

// HasPermission checks whether the principal in the context holds a
// specific permission.
func HasPermission(ctx context.Context, perm models.Permission) bool {
	role := identity.Role(ctx)
	if role == "" {
		return false
	}
	return role.HasPermission(perm)
}

// CheckPermission is a helper for permission checks inside handlers.
func CheckPermission(ctx context.Context, perm models.Permission) error {
	if !HasPermission(ctx, perm) {
		return ErrPermissionDenied
	}
	return nil
}

// RequirePermission wraps a handler with a permission check.
func RequirePermission(perm models.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasPermission(r.Context(), perm) {
				forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyPermission passes when the principal holds at least one of the
// given permissions.
func RequireAnyPermission(perms ...models.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, perm := range perms {
				if HasPermission(r.Context(), perm) {
					next.ServeHTTP(w, r)
					return
				}
			}
			forbidden(w)
		})
	}
}

// RequireRole wraps a handler with an exact role check.
func RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if identity.Role(r.Context()) != role {
				forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminOnly allows only admin principals.
func AdminOnly(next http.Handler) http.Handler {
	return RequireRole(models.RoleAdmin)(next)
}

// Permissions returns all permissions of the principal in the context.
func Permissions(ctx context.Context) []models.Permission {
	role := identity.Role(ctx)
	if role == "" {
		return nil
	}
	return role.GetPermissions()
}

func forbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	w.Write([]byte(`{"error":"insufficient permissions"}`))
}
