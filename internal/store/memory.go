package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/custodian-sh/custodian/internal/models"
	"github.com/custodian-sh/custodian/pkg/ownership"
)

var (
	ErrPrincipalNotFound = errors.New("principal not found")
	ErrPrincipalExists   = errors.New("principal already exists")
)

// MemoryStore is an in-memory implementation of the registry store
type MemoryStore struct {
	resources   map[string]*models.Resource
	transitions map[string][]models.TransitionRecord
	principals  map[string]*models.Principal
	mu          sync.RWMutex
	principalMu sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		resources:   make(map[string]*models.Resource),
		transitions: make(map[string][]models.TransitionRecord),
		principals:  make(map[string]*models.Principal),
	}
}

// GetOwnership returns the ownership state for a resource. Unknown names
// yield the zero (uninitialized) state.
func (s *MemoryStore) GetOwnership(_ context.Context, resource string) (ownership.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.resources[resource]
	if !ok {
		return ownership.State{}, nil
	}
	return res.State, nil
}

// InitializeOwnership applies an init event and records it.
func (s *MemoryStore) InitializeOwnership(_ context.Context, resource, sender string, init ownership.Init) (ownership.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current ownership.State
	if res, ok := s.resources[resource]; ok {
		current = res.State
	}

	next, err := ownership.Initialize(current, init)
	if err != nil {
		return ownership.State{}, err
	}

	now := time.Now().UTC()
	res, ok := s.resources[resource]
	if !ok {
		res = &models.Resource{Name: resource, CreatedAt: now}
		s.resources[resource] = res
	}
	res.State = next
	res.UpdatedAt = now

	rec := newTransitionRecord(resource, sender, string(init.Action), current, next)
	s.transitions[resource] = append(s.transitions[resource], rec)

	return next, nil
}

// UpdateOwnership applies an update event and records it.
func (s *MemoryStore) UpdateOwnership(_ context.Context, resource, sender string, update ownership.Update) (ownership.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current ownership.State
	if res, ok := s.resources[resource]; ok {
		current = res.State
	}

	next, err := ownership.Transition(current, sender, update)
	if err != nil {
		return ownership.State{}, err
	}

	now := time.Now().UTC()
	res, ok := s.resources[resource]
	if !ok {
		res = &models.Resource{Name: resource, CreatedAt: now}
		s.resources[resource] = res
	}
	res.State = next
	res.UpdatedAt = now

	rec := newTransitionRecord(resource, sender, string(update.Action), current, next)
	s.transitions[resource] = append(s.transitions[resource], rec)

	return next, nil
}

// ListResources returns all known resources, sorted by name
func (s *MemoryStore) ListResources(_ context.Context) ([]*models.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resources := make([]*models.Resource, 0, len(s.resources))
	for _, res := range s.resources {
		clone := *res
		resources = append(resources, &clone)
	}
	sort.Slice(resources, func(i, j int) bool {
		return resources[i].Name < resources[j].Name
	})
	return resources, nil
}

// CountResourcesByKind aggregates resources by their state kind
func (s *MemoryStore) CountResourcesByKind(_ context.Context) (map[ownership.Kind]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[ownership.Kind]int)
	for _, res := range s.resources {
		counts[res.State.Kind]++
	}
	return counts, nil
}

// ListTransitions returns the audit trail for a resource, newest first
func (s *MemoryStore) ListTransitions(_ context.Context, resource string, limit int) ([]models.TransitionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.transitions[resource]
	out := make([]models.TransitionRecord, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		out = append(out, recs[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// PruneTransitions drops audit records older than the cutoff
func (s *MemoryStore) PruneTransitions(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pruned int64
	for resource, recs := range s.transitions {
		kept := recs[:0]
		for _, rec := range recs {
			if rec.OccurredAt.Before(olderThan) {
				pruned++
				continue
			}
			kept = append(kept, rec)
		}
		if len(kept) == 0 {
			delete(s.transitions, resource)
			continue
		}
		s.transitions[resource] = kept
	}
	return pruned, nil
}

// Principal operations

// CreatePrincipal stores a new principal
func (s *MemoryStore) CreatePrincipal(_ context.Context, principal *models.Principal) error {
	s.principalMu.Lock()
	defer s.principalMu.Unlock()

	if _, ok := s.principals[principal.ID]; ok {
		return ErrPrincipalExists
	}
	clone := *principal
	s.principals[principal.ID] = &clone
	return nil
}

// GetPrincipal retrieves a principal by ID
func (s *MemoryStore) GetPrincipal(_ context.Context, id string) (*models.Principal, error) {
	s.principalMu.RLock()
	defer s.principalMu.RUnlock()

	principal, ok := s.principals[id]
	if !ok {
		return nil, ErrPrincipalNotFound
	}
	clone := *principal
	return &clone, nil
}

// ListPrincipals returns all principals, sorted by ID
func (s *MemoryStore) ListPrincipals(_ context.Context) ([]*models.Principal, error) {
	s.principalMu.RLock()
	defer s.principalMu.RUnlock()

	principals := make([]*models.Principal, 0, len(s.principals))
	for _, principal := range s.principals {
		clone := *principal
		principals = append(principals, &clone)
	}
	sort.Slice(principals, func(i, j int) bool {
		return principals[i].ID < principals[j].ID
	})
	return principals, nil
}

// DeletePrincipal removes a principal
func (s *MemoryStore) DeletePrincipal(_ context.Context, id string) error {
	s.principalMu.Lock()
	defer s.principalMu.Unlock()

	if _, ok := s.principals[id]; !ok {
		return ErrPrincipalNotFound
	}
	delete(s.principals, id)
	return nil
}

// HealthCheck always succeeds for the in-memory store
func (s *MemoryStore) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	return nil
}
