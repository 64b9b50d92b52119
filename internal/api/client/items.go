package client

import (
	"context"
	"fmt"
	"net/url"

	domain "github.com/pricewatch/price-collector/pkg/types"
)

// ListItems returns tracked items.
func (c *Client) ListItems(ctx context.Context, activeOnly bool) ([]domain.TrackedItem, error) {
	path := "/api/v1/items"
	if activeOnly {
		path += "?active=true"
	}
	var items []domain.TrackedItem
	if err := c.get(ctx, path, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetItem returns one tracked item.
func (c *Client) GetItem(ctx context.Context, store, itemID string) (*domain.TrackedItem, error) {
	var item domain.TrackedItem
	path := fmt.Sprintf("/api/v1/items/%s/%s", url.PathEscape(store), url.PathEscape(itemID))
	if err := c.get(ctx, path, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// SetItemActive activates or deactivates a tracked item.
func (c *Client) SetItemActive(ctx context.Context, store, itemID string, active bool) error {
	body := map[string]bool{"active": active}
	path := fmt.Sprintf("/api/v1/items/%s/%s/active",
		url.PathEscape(store), url.PathEscape(itemID))
	return c.put(ctx, path, body, nil)
}

// GetHistory returns price history statistics for an item.
func (c *Client) GetHistory(
	ctx context.Context,
	store, itemID string,
	days, limit int,
) (*domain.PriceHistoryStats, error) {
	var stats domain.PriceHistoryStats
	path := fmt.Sprintf("/api/v1/items/%s/%s/history?days=%d&limit=%d",
		url.PathEscape(store), url.PathEscape(itemID), days, limit)
	if err := c.get(ctx, path, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
