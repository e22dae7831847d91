package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/custodian-sh/custodian/internal/identity"
	"github.com/custodian-sh/custodian/internal/models"
	"github.com/custodian-sh/custodian/pkg/ownership"
)

// InitRequest starts a resource's ownership lifecycle.
type InitRequest struct {
	Action string `json:"action"`
	Owner  string `json:"owner,omitempty"`
}

// UpdateRequest applies one ownership transition.
type UpdateRequest struct {
	Action         string `json:"action"`
	Proposed       string `json:"proposed,omitempty"`
	EmergencyOwner string `json:"emergency_owner,omitempty"`
}

// UpdateAttributes mirrors the applied transition in the response.
type UpdateAttributes struct {
	Action   string `json:"action"`
	Owner    string `json:"owner,omitempty"`
	Proposed string `json:"proposed,omitempty"`
	Sender   string `json:"sender"`
}

// OwnershipResponse is returned by the mutation endpoints.
type OwnershipResponse struct {
	Resource   string             `json:"resource"`
	Attributes *UpdateAttributes  `json:"attributes,omitempty"`
	State      ownership.Snapshot `json:"state"`
}

// ResourceResponse is one entry in the resource listing.
type ResourceResponse struct {
	Name      string             `json:"name"`
	State     ownership.Snapshot `json:"state"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// InitOwnership starts the ownership lifecycle for a resource.
func (h *Handler) InitOwnership(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := models.ValidateResourceName(name); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req InitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	action, err := ownership.ParseInitAction(req.Action)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	sender, err := identity.PrincipalID(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "no principal in context")
		return
	}

	state, err := h.store.InitializeOwnership(r.Context(), name, sender, ownership.Init{Action: action, Owner: req.Owner})
	h.recordTransition(string(action), err == nil)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.logger.Info("Ownership initialized", map[string]interface{}{
		"resource": name,
		"action":   string(action),
		"sender":   sender,
	})

	h.writeJSON(w, http.StatusCreated, OwnershipResponse{
		Resource: name,
		State:    h.snapshotFor(state),
	})
}

// UpdateOwnership applies a transition to a resource's ownership.
func (h *Handler) UpdateOwnership(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := models.ValidateResourceName(name); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	action, err := ownership.ParseUpdateAction(req.Action)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if !h.options.EmergencyOwner && isEmergencyAction(action) {
		h.writeDomainError(w, fmt.Errorf("%w: %q", ownership.ErrUnknownAction, req.Action))
		return
	}

	sender, err := identity.PrincipalID(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "no principal in context")
		return
	}

	update := ownership.Update{
		Action:         action,
		Proposed:       req.Proposed,
		EmergencyOwner: req.EmergencyOwner,
	}
	state, err := h.store.UpdateOwnership(r.Context(), name, sender, update)
	h.recordTransition(string(action), err == nil)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	snap := h.snapshotFor(state)
	h.logger.Info("Ownership updated", map[string]interface{}{
		"resource": name,
		"action":   string(action),
		"sender":   sender,
	})

	h.writeJSON(w, http.StatusOK, OwnershipResponse{
		Resource: name,
		Attributes: &UpdateAttributes{
			Action:   "update_owner",
			Owner:    snap.Owner,
			Proposed: snap.Proposed,
			Sender:   sender,
		},
		State: snap,
	})
}

func isEmergencyAction(action ownership.UpdateAction) bool {
	return action == ownership.ActionSetEmergencyOwner || action == ownership.ActionClearEmergencyOwner
}

// GetOwnership reports a resource's current ownership. Unknown resources
// read as uninitialized rather than missing.
func (h *Handler) GetOwnership(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	state, err := h.store.GetOwnership(r.Context(), name)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.snapshotFor(state))
}

// ListResources lists every registered resource with its current state.
func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	resources, err := h.store.ListResources(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	response := make([]ResourceResponse, len(resources))
	for i, res := range resources {
		response[i] = ResourceResponse{
			Name:      res.Name,
			State:     h.snapshotFor(res.State),
			CreatedAt: res.CreatedAt,
			UpdatedAt: res.UpdatedAt,
		}
	}
	h.writeJSON(w, http.StatusOK, response)
}

// ListTransitions returns a resource's transition history, newest first.
func (h *Handler) ListTransitions(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	recs, err := h.store.ListTransitions(r.Context(), name, limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if recs == nil {
		recs = []models.TransitionRecord{}
	}
	h.writeJSON(w, http.StatusOK, recs)
}
