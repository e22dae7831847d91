package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodian-sh/custodian/pkg/ownership"
)

// snapshotConcurrency caps parallel reads in Snapshots.
const snapshotConcurrency = 8

// InitOwnership starts the ownership lifecycle for a resource.
func (c *Client) InitOwnership(ctx context.Context, resource string, init ownership.Init) (*OwnershipResult, error) {
	var result OwnershipResult
	path := fmt.Sprintf("%s/resources/%s/owner/init", apiPrefix, url.PathEscape(resource))
	if err := c.doJSON(ctx, http.MethodPost, path, init, http.StatusCreated, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateOwnership applies one ownership transition to a resource.
func (c *Client) UpdateOwnership(ctx context.Context, resource string, update ownership.Update) (*OwnershipResult, error) {
	var result OwnershipResult
	path := fmt.Sprintf("%s/resources/%s/owner/update", apiPrefix, url.PathEscape(resource))
	if err := c.doJSON(ctx, http.MethodPost, path, update, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SetInitialOwner initializes a resource with its first owner.
func (c *Client) SetInitialOwner(ctx context.Context, resource, owner string) (*OwnershipResult, error) {
	return c.InitOwnership(ctx, resource, ownership.InitOwner(owner))
}

// InitAbolished initializes a resource with the owner role already abolished.
func (c *Client) InitAbolished(ctx context.Context, resource string) (*OwnershipResult, error) {
	return c.InitOwnership(ctx, resource, ownership.InitAbolished())
}

// ProposeNewOwner proposes a successor. The authenticated principal must be
// the current owner.
func (c *Client) ProposeNewOwner(ctx context.Context, resource, proposed string) (*OwnershipResult, error) {
	return c.UpdateOwnership(ctx, resource, ownership.ProposeNewOwner(proposed))
}

// ClearProposed withdraws the pending proposal.
func (c *Client) ClearProposed(ctx context.Context, resource string) (*OwnershipResult, error) {
	return c.UpdateOwnership(ctx, resource, ownership.ClearProposed())
}

// AcceptProposed accepts the pending proposal. The authenticated principal
// must be the proposed owner.
func (c *Client) AcceptProposed(ctx context.Context, resource string) (*OwnershipResult, error) {
	return c.UpdateOwnership(ctx, resource, ownership.AcceptProposed())
}

// AbolishOwnerRole abolishes the owner role forever.
func (c *Client) AbolishOwnerRole(ctx context.Context, resource string) (*OwnershipResult, error) {
	return c.UpdateOwnership(ctx, resource, ownership.AbolishOwnerRole())
}

// SetEmergencyOwner grants the emergency owner role.
func (c *Client) SetEmergencyOwner(ctx context.Context, resource, principal string) (*OwnershipResult, error) {
	return c.UpdateOwnership(ctx, resource, ownership.SetEmergencyOwner(principal))
}

// ClearEmergencyOwner revokes the emergency owner role.
func (c *Client) ClearEmergencyOwner(ctx context.Context, resource string) (*OwnershipResult, error) {
	return c.UpdateOwnership(ctx, resource, ownership.ClearEmergencyOwner())
}

// GetOwnership reads a resource's current ownership snapshot. Resources the
// registry has never seen read as uninitialized.
func (c *Client) GetOwnership(ctx context.Context, resource string) (*ownership.Snapshot, error) {
	var snap ownership.Snapshot
	path := fmt.Sprintf("%s/resources/%s/owner", apiPrefix, url.PathEscape(resource))
	if err := c.getJSON(ctx, path, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ListResources lists every resource registered with the registry.
func (c *Client) ListResources(ctx context.Context) ([]Resource, error) {
	var resources []Resource
	if err := c.getJSON(ctx, apiPrefix+"/resources", &resources); err != nil {
		return nil, err
	}
	return resources, nil
}

// ListTransitions returns a resource's transition history, newest first. A
// limit of zero returns the full trail.
func (c *Client) ListTransitions(ctx context.Context, resource string, limit int) ([]Transition, error) {
	path := fmt.Sprintf("%s/resources/%s/transitions", apiPrefix, url.PathEscape(resource))
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}

	var transitions []Transition
	if err := c.getJSON(ctx, path, &transitions); err != nil {
		return nil, err
	}
	return transitions, nil
}

// Snapshots fetches ownership snapshots for several resources concurrently.
func (c *Client) Snapshots(ctx context.Context, resources []string) (map[string]ownership.Snapshot, error) {
	var mu sync.Mutex
	snapshots := make(map[string]ownership.Snapshot, len(resources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(snapshotConcurrency)
	for _, name := range resources {
		g.Go(func() error {
			snap, err := c.GetOwnership(ctx, name)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			mu.Lock()
			snapshots[name] = *snap
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snapshots, nil
}

// WaitForOwner polls until the resource reports the given owner, the role is
// abolished, or the context expires.
func (c *Client) WaitForOwner(ctx context.Context, resource, owner string, interval time.Duration) (*ownership.Snapshot, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snap, err := c.GetOwnership(ctx, resource)
		if err != nil {
			return nil, err
		}
		if snap.Initialized && snap.Owner == owner {
			return snap, nil
		}
		if snap.Abolished {
			return snap, fmt.Errorf("owner role for %q was abolished", resource)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
