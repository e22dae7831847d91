package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/custodian-sh/custodian/internal/identity"
	"github.com/custodian-sh/custodian/internal/models"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name string
		role models.Role
		perm models.Permission
		want bool
	}{
		{"AdminRevokesPrincipals", models.RoleAdmin, models.PermPrincipalRevoke, true},
		{"OperatorUpdatesOwners", models.RoleOperator, models.PermOwnerUpdate, true},
		{"OperatorCannotCreatePrincipals", models.RoleOperator, models.PermPrincipalCreate, false},
		{"ViewerReadsOwners", models.RoleViewer, models.PermOwnerRead, true},
		{"ViewerCannotInit", models.RoleViewer, models.PermResourceInit, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := identity.WithPrincipal(context.Background(), "someone", tt.role)
			if got := HasPermission(ctx, tt.perm); got != tt.want {
				t.Errorf("HasPermission(%s, %s) = %v, want %v", tt.role, tt.perm, got, tt.want)
			}
		})
	}

	if HasPermission(context.Background(), models.PermOwnerRead) {
		t.Error("Expected no permissions without a principal in context")
	}
}

func TestCheckPermission(t *testing.T) {
	ctx := identity.WithPrincipal(context.Background(), "viewer-1", models.RoleViewer)
	if err := CheckPermission(ctx, models.PermOwnerRead); err != nil {
		t.Errorf("Expected viewer to read owners, got %v", err)
	}
	if err := CheckPermission(ctx, models.PermOwnerUpdate); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied, got %v", err)
	}
}

func TestRequirePermission(t *testing.T) {
	handler := RequirePermission(models.PermOwnerUpdate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("Allowed", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/resources/app/owner/update", nil)
		req = req.WithContext(identity.WithPrincipal(req.Context(), "ops", models.RoleOperator))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", w.Code)
		}
	})

	t.Run("Denied", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/resources/app/owner/update", nil)
		req = req.WithContext(identity.WithPrincipal(req.Context(), "watcher", models.RoleViewer))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", w.Code)
		}
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/resources/app/owner/update", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", w.Code)
		}
	})
}

func TestAdminOnly(t *testing.T) {
	handler := AdminOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("DELETE", "/api/v1/principals/ops", nil)
	req = req.WithContext(identity.WithPrincipal(req.Context(), "ops", models.RoleOperator))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for operator, got %d", w.Code)
	}

	req = httptest.NewRequest("DELETE", "/api/v1/principals/ops", nil)
	req = req.WithContext(identity.WithPrincipal(req.Context(), "root", models.RoleAdmin))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for admin, got %d", w.Code)
	}
}
