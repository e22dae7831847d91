// Package api implements the registry's HTTP interface. Handlers decode a
// request, dispatch it through the store, and map domain errors onto HTTP
// status codes; all authorization beyond the ownership rules themselves is
// enforced by the rbac middleware at registration time.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/custodian-sh/custodian/internal/logging"
	"github.com/custodian-sh/custodian/internal/models"
	"github.com/custodian-sh/custodian/internal/rbac"
	"github.com/custodian-sh/custodian/internal/store"
	"github.com/custodian-sh/custodian/pkg/ownership"
)

// TransitionRecorder is an interface for counting transition attempts.
type TransitionRecorder interface {
	RecordTransition(action string, applied bool)
}

// Options carries handler configuration that is not a collaborator.
type Options struct {
	Version        string
	StoreType      string
	EmergencyOwner bool
}

// Handler handles registry API requests.
type Handler struct {
	store       store.Store
	logger      *logging.Logger
	options     Options
	recorder    TransitionRecorder
	invalidator KeyInvalidator
	startedAt   time.Time
}

// NewHandler creates a registry API handler.
func NewHandler(s store.Store, logger *logging.Logger, options Options) *Handler {
	return &Handler{
		store:     s,
		logger:    logger,
		options:   options,
		startedAt: time.Now(),
	}
}

// StartedAt reports when this handler was created, which stands in for the
// daemon start time in status responses.
func (h *Handler) StartedAt() time.Time {
	return h.startedAt
}

// SetTransitionRecorder sets the metrics recorder for transition attempts.
func (h *Handler) SetTransitionRecorder(recorder TransitionRecorder) {
	h.recorder = recorder
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Resource and ownership routes
	api.Handle("/resources",
		rbac.RequirePermission(models.PermOwnerRead)(http.HandlerFunc(h.ListResources))).Methods("GET")
	api.Handle("/resources/{name}/owner/init",
		rbac.RequirePermission(models.PermResourceInit)(http.HandlerFunc(h.InitOwnership))).Methods("POST")
	api.Handle("/resources/{name}/owner/update",
		rbac.RequirePermission(models.PermOwnerUpdate)(http.HandlerFunc(h.UpdateOwnership))).Methods("POST")
	api.Handle("/resources/{name}/owner",
		rbac.RequirePermission(models.PermOwnerRead)(http.HandlerFunc(h.GetOwnership))).Methods("GET")
	api.Handle("/resources/{name}/transitions",
		rbac.RequirePermission(models.PermAuditRead)(http.HandlerFunc(h.ListTransitions))).Methods("GET")

	// Principal routes
	api.Handle("/principals",
		rbac.RequirePermission(models.PermPrincipalCreate)(http.HandlerFunc(h.CreatePrincipal))).Methods("POST")
	api.Handle("/principals",
		rbac.RequirePermission(models.PermPrincipalRead)(http.HandlerFunc(h.ListPrincipals))).Methods("GET")
	api.Handle("/principals/{id}",
		rbac.RequirePermission(models.PermPrincipalRevoke)(http.HandlerFunc(h.DeletePrincipal))).Methods("DELETE")

	// System routes
	api.Handle("/system/status",
		rbac.RequirePermission(models.PermSystemRead)(http.HandlerFunc(h.SystemStatus))).Methods("GET")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps ownership and store errors onto HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ownership.ErrStateTransition):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ownership.ErrNotOwner),
		errors.Is(err, ownership.ErrNotProposedOwner),
		errors.Is(err, ownership.ErrNotEmergencyOwner):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ownership.ErrInvalidPrincipal),
		errors.Is(err, ownership.ErrUnknownAction):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrPrincipalNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrPrincipalExists):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("Request failed", map[string]interface{}{"error": err.Error()})
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) recordTransition(action string, applied bool) {
	if h.recorder != nil {
		h.recorder.RecordTransition(action, applied)
	}
}

// snapshotFor renders a state for responses, hiding the emergency owner
// when that capability is turned off.
func (h *Handler) snapshotFor(state ownership.State) ownership.Snapshot {
	snap := state.Snapshot()
	if !h.options.EmergencyOwner {
		snap.EmergencyOwner = ""
	}
	return snap
}
