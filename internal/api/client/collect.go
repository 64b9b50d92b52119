package client

import (
	"context"

	domain "github.com/pricewatch/price-collector/pkg/types"
)

// CollectRequest identifies the item to collect, either by URL or by an
// explicit (store, item_id) pair.
type CollectRequest struct {
	URL         string `json:"url,omitempty"`
	Store       string `json:"store,omitempty"`
	ItemID      string `json:"item_id,omitempty"`
	UseFallback *bool  `json:"use_fallback,omitempty"`
	Save        *bool  `json:"save,omitempty"`
}

// Collect triggers an on-demand price collection.
func (c *Client) Collect(ctx context.Context, req CollectRequest) (*domain.CollectionResult, error) {
	var result domain.CollectionResult
	if err := c.post(ctx, "/api/v1/collect", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
