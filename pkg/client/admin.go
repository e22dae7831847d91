package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// CreatePrincipal registers a new API principal. The returned key is shown
// exactly once; store it somewhere safe.
func (c *Client) CreatePrincipal(ctx context.Context, id, role string) (*PrincipalCreated, error) {
	payload := map[string]string{"id": id, "role": role}

	var created PrincipalCreated
	if err := c.doJSON(ctx, http.MethodPost, apiPrefix+"/principals", payload, http.StatusCreated, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListPrincipals lists every API principal.
func (c *Client) ListPrincipals(ctx context.Context) ([]Principal, error) {
	var principals []Principal
	if err := c.getJSON(ctx, apiPrefix+"/principals", &principals); err != nil {
		return nil, err
	}
	return principals, nil
}

// DeletePrincipal revokes a principal and its API key.
func (c *Client) DeletePrincipal(ctx context.Context, id string) error {
	path := fmt.Sprintf("%s/principals/%s", apiPrefix, url.PathEscape(id))
	return c.doJSON(ctx, http.MethodDelete, path, nil, http.StatusNoContent, nil)
}

// SystemStatus fetches the registry's status report.
func (c *Client) SystemStatus(ctx context.Context) (*SystemStatus, error) {
	var status SystemStatus
	if err := c.getJSON(ctx, apiPrefix+"/system/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Health checks the registry's liveness endpoint. It requires no API key.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/health", nil, http.StatusOK, nil)
}
