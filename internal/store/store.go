// Package store defines the datastore abstraction for the price collector.
// Business logic depends on the Store interface, never on concrete
// implementations, so it can be tested without a running database.
package store

import (
	"context"
	"errors"
	"time"

	domain "github.com/pricewatch/price-collector/pkg/types"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrorDeactivationThreshold is the consecutive-error count at which a
// tracked item is deactivated.
const ErrorDeactivationThreshold = 5

// Store defines all data access operations for the price collector.
type Store interface {
	// Tracked items
	//
	// UpsertTrackedItem inserts or refreshes the summary row for
	// (store, item_id). A successful collection resets the error count,
	// reactivates the item, and stamps last_collected_at.
	UpsertTrackedItem(ctx context.Context, item *domain.TrackedItem) error
	GetTrackedItem(ctx context.Context, store domain.StoreType, itemID string) (*domain.TrackedItem, error)
	ListTrackedItems(ctx context.Context, activeOnly bool, limit, offset int) ([]domain.TrackedItem, error)
	SetTrackedItemActive(ctx context.Context, store domain.StoreType, itemID string, active bool) error

	// MarkCollectionError atomically increments the item's error count and
	// deactivates it when the count reaches the threshold. Returns whether
	// this call deactivated the item.
	MarkCollectionError(ctx context.Context, store domain.StoreType, itemID string) (bool, error)

	// ListItemsToCollect returns active items whose last collection is
	// missing or older than staleBefore, never-collected items first.
	ListItemsToCollect(ctx context.Context, staleBefore time.Time, limit int) ([]domain.TrackedItem, error)

	// Price history (append-only)
	InsertPriceHistory(ctx context.Context, rec *domain.PriceHistoryRecord) error
	ListPriceHistory(ctx context.Context, store domain.StoreType, itemID string, since time.Time, limit int) ([]domain.PriceHistoryRecord, error)
	GetFirstPrice(ctx context.Context, store domain.StoreType, itemID string) (*domain.PriceHistoryRecord, error)

	// Alerts
	CreateAlert(ctx context.Context, a *domain.PriceAlert) error
	ListActiveAlertsForItem(ctx context.Context, store domain.StoreType, itemID string) ([]domain.PriceAlert, error)

	// TriggerAlert deactivates an alert and stamps triggered_at, but only
	// if it is still active. Returns whether this call won the trigger.
	TriggerAlert(ctx context.Context, alertID int64, at time.Time) (bool, error)

	// Keyword cohorts
	ListKeywordCohorts(ctx context.Context) ([]domain.KeywordCohort, error)

	// Migrations
	Migrate(ctx context.Context) error

	// Health
	Ping(ctx context.Context) error
}
