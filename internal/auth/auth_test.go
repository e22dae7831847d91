package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/custodian-sh/custodian/internal/identity"
	"github.com/custodian-sh/custodian/internal/models"
	"github.com/custodian-sh/custodian/internal/store"
)

func TestGenerateKey(t *testing.T) {
	key1, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	key2, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	if !strings.HasPrefix(key1, KeyPrefix) {
		t.Errorf("Expected %s prefix, got %s", KeyPrefix, key1)
	}
	if key1 == key2 {
		t.Error("Expected unique keys")
	}
	if !HasKeyShape(key1) {
		t.Errorf("Generated key rejected by HasKeyShape: %s", key1)
	}
	if HasKeyShape("Bearer something") || HasKeyShape("") || HasKeyShape("cst_") {
		t.Error("HasKeyShape accepted malformed input")
	}
}

func TestHashAndVerifyKey(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	hash, err := HashKey(key)
	if err != nil {
		t.Fatalf("HashKey failed: %v", err)
	}
	if hash == key {
		t.Error("Hash must not equal the key")
	}
	if !VerifyKey(hash, key) {
		t.Error("VerifyKey rejected the matching key")
	}
	if VerifyKey(hash, key+"x") {
		t.Error("VerifyKey accepted a non-matching key")
	}
}

func TestSecureCompare(t *testing.T) {
	if !SecureCompare("cst_abc", "cst_abc") {
		t.Error("SecureCompare rejected equal strings")
	}
	if SecureCompare("cst_abc", "cst_abd") {
		t.Error("SecureCompare accepted different strings")
	}
	if SecureCompare("cst_abc", "cst_ab") {
		t.Error("SecureCompare accepted different lengths")
	}
}

func newTestAuthenticator(t *testing.T) (*Authenticator, store.Store, string) {
	t.Helper()

	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })

	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	hash, err := HashKey(key)
	if err != nil {
		t.Fatalf("HashKey failed: %v", err)
	}
	principal := &models.Principal{
		ID:        "ops",
		Role:      models.RoleOperator,
		KeyHash:   hash,
		CreatedAt: time.Now(),
	}
	if err := s.CreatePrincipal(context.Background(), principal); err != nil {
		t.Fatalf("CreatePrincipal failed: %v", err)
	}

	bootstrap := []BootstrapKey{
		{ID: "root", Role: models.RoleAdmin, Key: "cst_bootstrap-admin-key"},
	}
	return NewAuthenticator(s, bootstrap), s, key
}

func TestAuthenticate(t *testing.T) {
	a, s, key := newTestAuthenticator(t)
	ctx := context.Background()

	t.Run("BootstrapKey", func(t *testing.T) {
		id, role, err := a.Authenticate(ctx, "cst_bootstrap-admin-key")
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
		if id != "root" || role != models.RoleAdmin {
			t.Errorf("Expected root/admin, got %s/%s", id, role)
		}
	})

	t.Run("StoreKey", func(t *testing.T) {
		id, role, err := a.Authenticate(ctx, key)
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
		if id != "ops" || role != models.RoleOperator {
			t.Errorf("Expected ops/operator, got %s/%s", id, role)
		}

		// Second call takes the cached path.
		id, _, err = a.Authenticate(ctx, key)
		if err != nil || id != "ops" {
			t.Errorf("Cached authenticate failed: %s, %v", id, err)
		}
	})

	t.Run("UnknownKey", func(t *testing.T) {
		unknown, _ := GenerateKey()
		if _, _, err := a.Authenticate(ctx, unknown); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Expected ErrInvalidKey, got %v", err)
		}
	})

	t.Run("MalformedKey", func(t *testing.T) {
		if _, _, err := a.Authenticate(ctx, "not-a-key"); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Expected ErrInvalidKey, got %v", err)
		}
	})

	t.Run("RevokedPrincipal", func(t *testing.T) {
		if err := s.DeletePrincipal(ctx, "ops"); err != nil {
			t.Fatalf("DeletePrincipal failed: %v", err)
		}
		if _, _, err := a.Authenticate(ctx, key); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Expected ErrInvalidKey after revocation, got %v", err)
		}
	})
}

func TestMiddleware(t *testing.T) {
	a, _, key := newTestAuthenticator(t)

	var gotID string
	var gotRole models.Role
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = identity.PrincipalID(r.Context())
		gotRole = identity.Role(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("MissingHeader", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/resources", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", w.Code)
		}
	})

	t.Run("NonBearerHeader", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/resources", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", w.Code)
		}
	})

	t.Run("InvalidKey", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/resources", nil)
		req.Header.Set("Authorization", "Bearer cst_wrong")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "invalid API key") {
			t.Errorf("Expected error body, got %s", w.Body.String())
		}
	})

	t.Run("ValidKey", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/resources", nil)
		req.Header.Set("Authorization", "Bearer "+key)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}
		if gotID != "ops" || gotRole != models.RoleOperator {
			t.Errorf("Expected ops/operator in context, got %s/%s", gotID, gotRole)
		}
	})

	t.Run("HealthExempt", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/health", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("Expected 200 for health without credentials, got %d", w.Code)
		}
	})
}
