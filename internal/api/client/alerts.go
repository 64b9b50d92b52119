package client

import (
	"context"

	domain "github.com/pricewatch/price-collector/pkg/types"
)

// alertRequest contains only the fields the API accepts for creation.
type alertRequest struct {
	Store               domain.StoreType `json:"store"`
	ItemID              string           `json:"item_id"`
	TargetPrice         *float64         `json:"target_price,omitempty"`
	PriceDropPercentage *float64         `json:"price_drop_percentage,omitempty"`
	NotificationTarget  string           `json:"notification_target,omitempty"`
}

// CreateAlert creates a new price alert.
func (c *Client) CreateAlert(ctx context.Context, a *domain.PriceAlert) (*domain.PriceAlert, error) {
	var created domain.PriceAlert
	req := alertRequest{
		Store:               a.Store,
		ItemID:              a.ItemID,
		TargetPrice:         a.TargetPrice,
		PriceDropPercentage: a.PriceDropPercentage,
		NotificationTarget:  a.NotificationTarget,
	}
	if err := c.post(ctx, "/api/v1/alerts", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}
