package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// GetPredictionsOptions filters the predictions listing.
type GetPredictionsOptions struct {
	Date          string // YYYY-MM-DD
	SymbolID      int
	Verified      *bool
	Direction     string
	MinConfidence float64
}

// GetPredictions fetches predictions for the tenant.
func (c *Client) GetPredictions(ctx context.Context, opts GetPredictionsOptions) (*PredictionList, error) {
	query := url.Values{}

	if opts.Date != "" {
		query.Set("date", opts.Date)
	}
	if opts.SymbolID > 0 {
		query.Set("symbol_id", strconv.Itoa(opts.SymbolID))
	}
	if opts.Verified != nil {
		query.Set("verified", strconv.FormatBool(*opts.Verified))
	}
	if opts.Direction != "" {
		query.Set("direction", opts.Direction)
	}
	if opts.MinConfidence > 0 {
		query.Set("min_confidence", strconv.FormatFloat(opts.MinConfidence, 'f', -1, 64))
	}

	var resp PredictionList
	if err := c.get(ctx, "/api/v1/predictions", query, &resp); err != nil {
		return nil, fmt.Errorf("get predictions: %w", err)
	}

	return &resp, nil
}

// GetPredictionForSymbol fetches the latest prediction for one symbol.
func (c *Client) GetPredictionForSymbol(ctx context.Context, symbolID int) (*Prediction, error) {
	var resp Prediction
	path := fmt.Sprintf("/api/v1/predictions/symbol/%d", symbolID)
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get prediction for symbol %d: %w", symbolID, err)
	}

	return &resp, nil
}

// GetPredictionStats fetches accuracy statistics for the tenant.
func (c *Client) GetPredictionStats(ctx context.Context) (*PredictionStats, error) {
	var resp PredictionStats
	if err := c.get(ctx, "/api/v1/predictions/stats", nil, &resp); err != nil {
		return nil, fmt.Errorf("get prediction stats: %w", err)
	}

	return &resp, nil
}

// GeneratePredictions asks the server to regenerate predictions. The work
// is asynchronous; progress arrives on the predictions stream.
func (c *Client) GeneratePredictions(ctx context.Context, symbolIDs []int) error {
	payload := map[string]any{}
	if len(symbolIDs) > 0 {
		payload["symbols"] = symbolIDs
	}

	if err := c.postJSON(ctx, "/api/v1/predictions/generate", payload, nil); err != nil {
		return fmt.Errorf("generate predictions: %w", err)
	}

	return nil
}
