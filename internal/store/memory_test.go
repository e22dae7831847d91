package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/custodian-sh/custodian/pkg/ownership"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	if err := s.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}

	t.Run("Ownership", func(t *testing.T) {
		testOwnershipOperations(t, s, "mem")
	})
	t.Run("Audit", func(t *testing.T) {
		testAuditOperations(t, s, "mem")
	})
	t.Run("Prune", func(t *testing.T) {
		testPruneTransitions(t, s, "mem")
	})
	t.Run("Principals", func(t *testing.T) {
		testPrincipalOperations(t, s, "mem")
	})
}

func TestMemoryStoreConcurrentProposals(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	ctx := context.Background()
	resource := "contended-app"

	if _, err := s.InitializeOwnership(ctx, resource, "alice", ownership.InitOwner("alice")); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	// Many concurrent proposals from the owner; the state machine admits
	// exactly one before the resource leaves the std state.
	numWorkers := 20
	var wg sync.WaitGroup
	results := make(chan error, numWorkers)

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdateOwnership(ctx, resource, "alice", ownership.ProposeNewOwner("bob"))
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ownership.ErrStateTransition) {
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("Expected exactly 1 successful proposal, got %d", succeeded)
	}

	state, err := s.GetOwnership(ctx, resource)
	if err != nil {
		t.Fatalf("GetOwnership failed: %v", err)
	}
	if proposed, ok := state.ProposedOwner(); !ok || proposed != "bob" {
		t.Errorf("Expected bob proposed after race, got %v", state)
	}

	recs, err := s.ListTransitions(ctx, resource, 0)
	if err != nil {
		t.Fatalf("ListTransitions failed: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("Expected 2 transitions (init + one propose), got %d", len(recs))
	}
}

func TestMemoryStoreIsolation(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	ctx := context.Background()

	if _, err := s.InitializeOwnership(ctx, "iso-app", "alice", ownership.InitOwner("alice")); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	// Listings hand out copies; mutating one must not leak into the store.
	resources, err := s.ListResources(ctx)
	if err != nil {
		t.Fatalf("ListResources failed: %v", err)
	}
	if len(resources) != 1 {
		t.Fatalf("Expected 1 resource, got %d", len(resources))
	}
	resources[0].State.Owner = "mallory"

	fresh, err := s.GetOwnership(ctx, "iso-app")
	if err != nil {
		t.Fatalf("GetOwnership failed: %v", err)
	}
	if !fresh.IsOwner("alice") {
		t.Errorf("Store state mutated through listed copy: %v", fresh)
	}
}
