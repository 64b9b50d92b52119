// Package notify defines the notification interface and implementations
// for alert delivery.
package notify

import (
	"context"

	domain "github.com/pricewatch/price-collector/pkg/types"
)

// AlertPayload contains the data needed to deliver a price alert.
type AlertPayload struct {
	Alert        domain.PriceAlert
	ItemTitle    string
	ItemURL      string
	ImageURL     string
	CurrentPrice float64
	Currency     string
	TriggeredBy  string
}

// Trigger reasons carried in AlertPayload.TriggeredBy.
const (
	TriggerTargetPrice = "target_price"
	TriggerPriceDrop   = "price_drop"
)

// Notifier defines the interface for delivering triggered price alerts.
type Notifier interface {
	SendAlert(ctx context.Context, alert *AlertPayload) error
	SendBatchAlert(ctx context.Context, alerts []AlertPayload) error
}
