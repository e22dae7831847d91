// Package auth authenticates API requests with bearer keys. Keys are either
// bootstrap keys from the server configuration, compared in constant time,
// or principal keys stored bcrypt-hashed in the backing store.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/custodian-sh/custodian/internal/identity"
	"github.com/custodian-sh/custodian/internal/models"
	"github.com/custodian-sh/custodian/internal/store"
)

var ErrInvalidKey = errors.New("invalid API key")

// BootstrapKey is a statically configured credential, used to create the
// first principals before any exist in the store.
type BootstrapKey struct {
	ID   string
	Role models.Role
	Key  string
}

// Authenticator resolves bearer keys to principals.
type Authenticator struct {
	store     store.Store
	bootstrap []BootstrapKey

	// Verified store keys are cached so repeated requests skip the bcrypt
	// scan. Entries are confirmed against the store on every hit, so a
	// revoked principal is rejected immediately.
	mu    sync.RWMutex
	cache map[string]string // key -> principal ID
}

func NewAuthenticator(s store.Store, bootstrap []BootstrapKey) *Authenticator {
	return &Authenticator{
		store:     s,
		bootstrap: bootstrap,
		cache:     make(map[string]string),
	}
}

// Authenticate resolves a bearer key to a principal ID and role.
func (a *Authenticator) Authenticate(ctx context.Context, key string) (string, models.Role, error) {
	if !HasKeyShape(key) {
		return "", "", ErrInvalidKey
	}

	// Bootstrap keys are checked against every entry so the comparison
	// count does not depend on the presented key.
	for _, bk := range a.bootstrap {
		if SecureCompare(bk.Key, key) {
			return bk.ID, bk.Role, nil
		}
	}

	a.mu.RLock()
	id, ok := a.cache[key]
	a.mu.RUnlock()
	if ok {
		principal, err := a.store.GetPrincipal(ctx, id)
		if err == nil && VerifyKey(principal.KeyHash, key) {
			return principal.ID, principal.Role, nil
		}
		a.mu.Lock()
		delete(a.cache, key)
		a.mu.Unlock()
		return "", "", ErrInvalidKey
	}

	principals, err := a.store.ListPrincipals(ctx)
	if err != nil {
		return "", "", err
	}
	for _, principal := range principals {
		if VerifyKey(principal.KeyHash, key) {
			a.mu.Lock()
			a.cache[key] = principal.ID
			a.mu.Unlock()
			return principal.ID, principal.Role, nil
		}
	}
	return "", "", ErrInvalidKey
}

// Invalidate drops any cached keys for a principal, typically after the
// principal was revoked.
func (a *Authenticator) Invalidate(principalID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, id := range a.cache {
		if id == principalID {
			delete(a.cache, key)
		}
	}
}

// Middleware authenticates requests and adds the principal to the request
// context. Health checks stay open so load balancers can probe the server.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		key := strings.TrimPrefix(header, "Bearer ")
		if header == "" || key == header {
			unauthorized(w, "missing bearer credentials")
			return
		}

		id, role, err := a.Authenticate(r.Context(), key)
		if err != nil {
			unauthorized(w, "invalid API key")
			return
		}

		ctx := identity.WithPrincipal(r.Context(), id, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
