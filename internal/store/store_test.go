package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/custodian-sh/custodian/internal/models"
	"github.com/custodian-sh/custodian/pkg/ownership"
)

func TestNewStoreUnsupportedType(t *testing.T) {
	_, err := NewStore(Config{Type: "etcd"})
	if !errors.Is(err, ErrUnsupportedStore) {
		t.Errorf("Expected ErrUnsupportedStore, got %v", err)
	}
}

func TestNewStoreMemory(t *testing.T) {
	s, err := NewStore(Config{Type: "memory"})
	if err != nil {
		t.Fatalf("Failed to create memory store: %v", err)
	}
	defer s.Close()

	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("Expected *MemoryStore, got %T", s)
	}
}

// testOwnershipOperations drives a full two-step handover against a store.
// Resource names are prefixed so the suite can run against shared databases.
func testOwnershipOperations(t *testing.T, s Store, prefix string) {
	ctx := context.Background()
	resource := prefix + "-app"

	// Unknown names read as uninitialized.
	state, err := s.GetOwnership(ctx, resource)
	if err != nil {
		t.Fatalf("GetOwnership failed: %v", err)
	}
	if state.Initialized() {
		t.Fatalf("Expected uninitialized state, got %v", state)
	}

	// Updates before initialization fail with the FSM error, unwrapped.
	_, err = s.UpdateOwnership(ctx, resource, "alice", ownership.ProposeNewOwner("bob"))
	if !errors.Is(err, ownership.ErrStateTransition) {
		t.Fatalf("Expected ErrStateTransition, got %v", err)
	}

	// Initialize.
	state, err = s.InitializeOwnership(ctx, resource, "alice", ownership.InitOwner("alice"))
	if err != nil {
		t.Fatalf("InitializeOwnership failed: %v", err)
	}
	if !state.IsOwner("alice") {
		t.Errorf("Expected alice as owner, got %v", state)
	}

	// Double initialization is rejected.
	_, err = s.InitializeOwnership(ctx, resource, "bob", ownership.InitOwner("bob"))
	if !errors.Is(err, ownership.ErrStateTransition) {
		t.Errorf("Expected ErrStateTransition on re-init, got %v", err)
	}

	// Only the owner can propose.
	_, err = s.UpdateOwnership(ctx, resource, "mallory", ownership.ProposeNewOwner("mallory"))
	if !errors.Is(err, ownership.ErrNotOwner) {
		t.Errorf("Expected ErrNotOwner, got %v", err)
	}

	// Propose, then the successor accepts.
	state, err = s.UpdateOwnership(ctx, resource, "alice", ownership.ProposeNewOwner("bob"))
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	if proposed, _ := state.ProposedOwner(); proposed != "bob" {
		t.Errorf("Expected bob proposed, got %v", state)
	}

	_, err = s.UpdateOwnership(ctx, resource, "alice", ownership.AcceptProposed())
	if !errors.Is(err, ownership.ErrNotProposedOwner) {
		t.Errorf("Expected ErrNotProposedOwner for owner accepting, got %v", err)
	}

	state, err = s.UpdateOwnership(ctx, resource, "bob", ownership.AcceptProposed())
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if !state.IsOwner("bob") {
		t.Errorf("Expected bob as owner after accept, got %v", state)
	}

	// Reads see the committed state.
	state, err = s.GetOwnership(ctx, resource)
	if err != nil {
		t.Fatalf("GetOwnership failed: %v", err)
	}
	if !state.IsOwner("bob") {
		t.Errorf("Expected bob as owner on re-read, got %v", state)
	}

	// The resource shows up in listings with its current state.
	resources, err := s.ListResources(ctx)
	if err != nil {
		t.Fatalf("ListResources failed: %v", err)
	}
	found := false
	for _, res := range resources {
		if res.Name == resource {
			found = true
			if !res.State.IsOwner("bob") {
				t.Errorf("Listed state out of date: %v", res.State)
			}
			if res.CreatedAt.IsZero() || res.UpdatedAt.IsZero() {
				t.Errorf("Expected timestamps on resource, got %+v", res)
			}
		}
	}
	if !found {
		t.Errorf("Resource %s missing from listing", resource)
	}

	counts, err := s.CountResourcesByKind(ctx)
	if err != nil {
		t.Fatalf("CountResourcesByKind failed: %v", err)
	}
	if counts[ownership.KindStd] < 1 {
		t.Errorf("Expected at least one std resource, got %v", counts)
	}

	// Abolish is terminal.
	abolished := prefix + "-legacy"
	if _, err := s.InitializeOwnership(ctx, abolished, "alice", ownership.InitAbolished()); err != nil {
		t.Fatalf("Abolish init failed: %v", err)
	}
	_, err = s.UpdateOwnership(ctx, abolished, "alice", ownership.ProposeNewOwner("bob"))
	if !errors.Is(err, ownership.ErrStateTransition) {
		t.Errorf("Expected ErrStateTransition on abolished resource, got %v", err)
	}
}

// testAuditOperations verifies the per-resource transition trail.
func testAuditOperations(t *testing.T, s Store, prefix string) {
	ctx := context.Background()
	resource := prefix + "-audited"

	if _, err := s.InitializeOwnership(ctx, resource, "alice", ownership.InitOwner("alice")); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if _, err := s.UpdateOwnership(ctx, resource, "alice", ownership.ProposeNewOwner("bob")); err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	if _, err := s.UpdateOwnership(ctx, resource, "bob", ownership.AcceptProposed()); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	// Failed events leave no trail.
	if _, err := s.UpdateOwnership(ctx, resource, "mallory", ownership.AbolishOwnerRole()); err == nil {
		t.Fatalf("Expected abolish by stranger to fail")
	}

	recs, err := s.ListTransitions(ctx, resource, 0)
	if err != nil {
		t.Fatalf("ListTransitions failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("Expected 3 transitions, got %d", len(recs))
	}

	// Newest first.
	if recs[0].Action != string(ownership.ActionAcceptProposed) {
		t.Errorf("Expected accept_proposed first, got %s", recs[0].Action)
	}
	if recs[2].Action != string(ownership.InitSetInitialOwner) {
		t.Errorf("Expected set_initial_owner last, got %s", recs[2].Action)
	}

	// Records carry the post-transition view.
	if recs[1].Action != string(ownership.ActionProposeNewOwner) {
		t.Errorf("Expected propose_new_owner, got %s", recs[1].Action)
	}
	if recs[1].Owner != "alice" || recs[1].Proposed != "bob" || recs[1].Sender != "alice" {
		t.Errorf("Unexpected propose record: %+v", recs[1])
	}
	if recs[0].FromKind != ownership.KindProposed || recs[0].ToKind != ownership.KindStd {
		t.Errorf("Unexpected accept kinds: %+v", recs[0])
	}
	for _, rec := range recs {
		if rec.ID == "" || rec.Resource != resource || rec.OccurredAt.IsZero() {
			t.Errorf("Incomplete transition record: %+v", rec)
		}
	}

	// Limit applies from the newest end.
	limited, err := s.ListTransitions(ctx, resource, 2)
	if err != nil {
		t.Fatalf("ListTransitions with limit failed: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("Expected 2 transitions, got %d", len(limited))
	}
	if limited[0].Action != string(ownership.ActionAcceptProposed) {
		t.Errorf("Expected newest record under limit, got %s", limited[0].Action)
	}

	// Unknown resources have an empty trail.
	empty, err := s.ListTransitions(ctx, prefix+"-nonexistent", 0)
	if err != nil {
		t.Fatalf("ListTransitions on unknown resource failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected empty trail, got %d records", len(empty))
	}
}

// testPruneTransitions is only run against disposable stores; it deletes
// every record older than the cutoff.
func testPruneTransitions(t *testing.T, s Store, prefix string) {
	ctx := context.Background()
	resource := prefix + "-pruned"

	if _, err := s.InitializeOwnership(ctx, resource, "alice", ownership.InitOwner("alice")); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if _, err := s.UpdateOwnership(ctx, resource, "alice", ownership.ProposeNewOwner("bob")); err != nil {
		t.Fatalf("Propose failed: %v", err)
	}

	// Nothing is older than a cutoff in the past.
	pruned, err := s.PruneTransitions(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("PruneTransitions failed: %v", err)
	}
	if pruned != 0 {
		t.Errorf("Expected 0 pruned with past cutoff, got %d", pruned)
	}

	// Everything is older than a cutoff in the future.
	pruned, err = s.PruneTransitions(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("PruneTransitions failed: %v", err)
	}
	if pruned < 2 {
		t.Errorf("Expected at least 2 pruned, got %d", pruned)
	}

	recs, err := s.ListTransitions(ctx, resource, 0)
	if err != nil {
		t.Fatalf("ListTransitions failed: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("Expected empty trail after prune, got %d", len(recs))
	}
}

// testPrincipalOperations verifies principal CRUD and its sentinel errors.
func testPrincipalOperations(t *testing.T, s Store, prefix string) {
	ctx := context.Background()
	id := prefix + "-operator"

	principal := &models.Principal{
		ID:        id,
		Role:      models.RoleOperator,
		KeyHash:   "$2a$10$fakehashfakehashfakehash",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.CreatePrincipal(ctx, principal); err != nil {
		t.Fatalf("CreatePrincipal failed: %v", err)
	}

	if err := s.CreatePrincipal(ctx, principal); !errors.Is(err, ErrPrincipalExists) {
		t.Errorf("Expected ErrPrincipalExists, got %v", err)
	}

	got, err := s.GetPrincipal(ctx, id)
	if err != nil {
		t.Fatalf("GetPrincipal failed: %v", err)
	}
	if got.ID != id || got.Role != models.RoleOperator || got.KeyHash != principal.KeyHash {
		t.Errorf("Principal round trip mismatch: %+v", got)
	}

	principals, err := s.ListPrincipals(ctx)
	if err != nil {
		t.Fatalf("ListPrincipals failed: %v", err)
	}
	found := false
	for _, p := range principals {
		if p.ID == id {
			found = true
		}
	}
	if !found {
		t.Errorf("Principal %s missing from listing", id)
	}

	if err := s.DeletePrincipal(ctx, id); err != nil {
		t.Fatalf("DeletePrincipal failed: %v", err)
	}
	if err := s.DeletePrincipal(ctx, id); !errors.Is(err, ErrPrincipalNotFound) {
		t.Errorf("Expected ErrPrincipalNotFound, got %v", err)
	}
	if _, err := s.GetPrincipal(ctx, id); !errors.Is(err, ErrPrincipalNotFound) {
		t.Errorf("Expected ErrPrincipalNotFound after delete, got %v", err)
	}
}

// uniquePrefix keeps test records apart when the suite runs against a shared
// database.
func uniquePrefix() string {
	return fmt.Sprintf("t%d", time.Now().UnixNano())
}
