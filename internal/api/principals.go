package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/custodian-sh/custodian/internal/auth"
	"github.com/custodian-sh/custodian/internal/identity"
	"github.com/custodian-sh/custodian/internal/models"
	"github.com/custodian-sh/custodian/pkg/ownership"
)

// KeyInvalidator drops cached credentials when a principal is revoked.
type KeyInvalidator interface {
	Invalidate(principalID string)
}

// SetKeyInvalidator wires the authenticator's cache into revocation.
func (h *Handler) SetKeyInvalidator(inv KeyInvalidator) {
	h.invalidator = inv
}

// CreatePrincipal registers an API principal and returns its key. The key
// is shown exactly once; only its hash is stored.
func (h *Handler) CreatePrincipal(w http.ResponseWriter, r *http.Request) {
	var req models.PrincipalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := ownership.ValidatePrincipal(req.ID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	if !req.Role.IsValid() {
		h.writeError(w, http.StatusBadRequest, "unknown role")
		return
	}

	key, err := auth.GenerateKey()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	hash, err := auth.HashKey(key)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	principal := &models.Principal{
		ID:        req.ID,
		Role:      req.Role,
		KeyHash:   hash,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.CreatePrincipal(r.Context(), principal); err != nil {
		h.writeDomainError(w, err)
		return
	}

	creator, _ := identity.PrincipalID(r.Context())
	h.logger.Info("Principal created", map[string]interface{}{
		"principal": principal.ID,
		"role":      string(principal.Role),
		"by":        creator,
	})

	h.writeJSON(w, http.StatusCreated, models.PrincipalCreated{
		Principal: *principal,
		APIKey:    key,
	})
}

// ListPrincipals lists registered principals. Key hashes never leave the
// store layer's JSON encoding.
func (h *Handler) ListPrincipals(w http.ResponseWriter, r *http.Request) {
	principals, err := h.store.ListPrincipals(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if principals == nil {
		principals = []*models.Principal{}
	}
	h.writeJSON(w, http.StatusOK, principals)
}

// DeletePrincipal revokes a principal and invalidates its cached keys.
func (h *Handler) DeletePrincipal(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.store.DeletePrincipal(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	if h.invalidator != nil {
		h.invalidator.Invalidate(id)
	}

	revoker, _ := identity.PrincipalID(r.Context())
	h.logger.Info("Principal revoked", map[string]interface{}{
		"principal": id,
		"by":        revoker,
	})

	w.WriteHeader(http.StatusNoContent)
}
