package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// GetSymbolsOptions filters the symbols listing.
type GetSymbolsOptions struct {
	Skip       int
	Limit      int
	Search     string
	FOEligible bool
}

// GetSymbols fetches the tenant's symbol list.
func (c *Client) GetSymbols(ctx context.Context, opts GetSymbolsOptions) (*SymbolList, error) {
	query := url.Values{}

	if opts.Skip > 0 {
		query.Set("skip", strconv.Itoa(opts.Skip))
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Search != "" {
		query.Set("search", opts.Search)
	}
	if opts.FOEligible {
		query.Set("fo_eligible", "true")
	}

	var resp SymbolList
	if err := c.get(ctx, "/api/v1/symbols", query, &resp); err != nil {
		return nil, fmt.Errorf("get symbols: %w", err)
	}

	return &resp, nil
}

// GetSymbol fetches a single symbol by id.
func (c *Client) GetSymbol(ctx context.Context, symbolID int) (*Symbol, error) {
	var resp Symbol
	path := fmt.Sprintf("/api/v1/symbols/%d", symbolID)
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get symbol %d: %w", symbolID, err)
	}

	return &resp, nil
}
