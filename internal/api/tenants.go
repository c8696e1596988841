package api

import (
	"context"
	"fmt"
)

// GetTenants lists the tenants visible to the current user.
func (c *Client) GetTenants(ctx context.Context) ([]Tenant, error) {
	var resp []Tenant
	if err := c.get(ctx, "/api/v1/tenants", nil, &resp); err != nil {
		return nil, fmt.Errorf("get tenants: %w", err)
	}

	return resp, nil
}

// GetTenant fetches a single tenant.
func (c *Client) GetTenant(ctx context.Context, tenantID int) (*Tenant, error) {
	var resp Tenant
	path := fmt.Sprintf("/api/v1/tenants/%d", tenantID)
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get tenant %d: %w", tenantID, err)
	}

	return &resp, nil
}
