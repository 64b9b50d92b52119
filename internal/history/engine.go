// Package history manages tracked items, the append-only price history,
// windowed statistics, and one-shot price alerts.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/pricewatch/price-collector/internal/metrics"
	"github.com/pricewatch/price-collector/internal/store"
	domain "github.com/pricewatch/price-collector/pkg/types"
)

// ErrUnsuccessfulResult is returned when a failed collection result is
// passed to SavePrice.
var ErrUnsuccessfulResult = errors.New("cannot save unsuccessful collection result")

// Engine is the price-history service. All writes go through the Store;
// the engine adds the domain rules on top.
type Engine struct {
	store              store.Store
	collectionInterval time.Duration
	logger             *slog.Logger
	nowFunc            func() time.Time
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithCollectionInterval sets how old a collection must be before the item
// is due again.
func WithCollectionInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.collectionInterval = d
	}
}

// WithNowFunc overrides the time function for testing.
func WithNowFunc(f func() time.Time) EngineOption {
	return func(e *Engine) {
		e.nowFunc = f
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates a history engine backed by the given store.
func NewEngine(s store.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:              s,
		collectionInterval: 30 * time.Minute,
		logger:             slog.Default(),
		nowFunc:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SavePrice records a successful collection: the tracked item summary is
// upserted (resetting error state) and one history row is appended.
// Failed results are rejected; use MarkCollectionError for those.
func (e *Engine) SavePrice(
	ctx context.Context,
	result *domain.CollectionResult,
	itemURL string,
) (*domain.PriceHistoryRecord, error) {
	if !result.Success || result.PriceData == nil {
		return nil, ErrUnsuccessfulResult
	}

	if err := e.upsertTrackedItem(ctx, result, itemURL); err != nil {
		return nil, fmt.Errorf("upserting tracked item: %w", err)
	}

	rec := buildHistoryRecord(result)
	if err := e.store.InsertPriceHistory(ctx, rec); err != nil {
		return nil, fmt.Errorf("inserting price history: %w", err)
	}

	e.logger.Info("price saved to history",
		"store", result.Store,
		"item_id", result.ItemID,
		"price", result.PriceData.Price,
	)

	return rec, nil
}

func (e *Engine) upsertTrackedItem(
	ctx context.Context,
	result *domain.CollectionResult,
	itemURL string,
) error {
	item := &domain.TrackedItem{
		Store:       result.Store,
		ItemID:      result.ItemID,
		Condition:   domain.ConditionUnknown,
		ListingType: domain.ListingBuyItNow,
		ItemURL:     itemURL,
	}
	if meta := result.Metadata; meta != nil {
		item.Title = meta.Title
		item.SellerID = meta.SellerID
		item.SellerName = meta.SellerName
		item.Condition = meta.Condition
		item.ListingType = meta.ListingType
		item.ImageURL = meta.ImageURL
	}

	return e.store.UpsertTrackedItem(ctx, item)
}

func buildHistoryRecord(result *domain.CollectionResult) *domain.PriceHistoryRecord {
	pd := result.PriceData

	rec := &domain.PriceHistoryRecord{
		Store:              result.Store,
		ItemID:             result.ItemID,
		Price:              pd.Price,
		ShippingFee:        pd.ShippingFee,
		Currency:           pd.Currency,
		NormalizedPrice:    pd.Price,
		NormalizedTotal:    pd.TotalPrice,
		NormalizedCurrency: pd.Currency,
		IsSalePrice:        result.IsSalePrice,
		OriginalPrice:      result.OriginalPrice,
		BidCount:           result.BidCount,
		AuctionEndTime:     result.AuctionEndTime,
		CollectedAt:        result.CollectedAt,
		CollectionMethod:   result.CollectionMethod,
	}
	if np := result.NormalizedPrice; np != nil {
		rec.NormalizedPrice = np.NormalizedPrice
		rec.NormalizedTotal = np.NormalizedTotal
		rec.NormalizedCurrency = np.Currency
		rec.IncludesShipping = np.IncludesShipping
		rec.IncludesTax = np.IncludesTax
	}
	return rec
}

// MarkCollectionError records a failed collection attempt. Returns whether
// the item was deactivated by this failure.
func (e *Engine) MarkCollectionError(
	ctx context.Context,
	storeType domain.StoreType,
	itemID string,
) (bool, error) {
	deactivated, err := e.store.MarkCollectionError(ctx, storeType, itemID)
	if err != nil {
		return false, err
	}
	if deactivated {
		e.logger.Warn("item deactivated after repeated collection errors",
			"store", storeType, "item_id", itemID)
	}
	return deactivated, nil
}

// GetPriceHistory returns history rows for the last `days` days, newest
// first, with summary statistics over the normalized totals.
func (e *Engine) GetPriceHistory(
	ctx context.Context,
	storeType domain.StoreType,
	itemID string,
	days, limit int,
) (*domain.PriceHistoryStats, error) {
	if days <= 0 {
		days = 30
	}
	now := e.nowFunc()
	since := now.Add(-time.Duration(days) * 24 * time.Hour)

	records, err := e.store.ListPriceHistory(ctx, storeType, itemID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("listing price history: %w", err)
	}

	stats := &domain.PriceHistoryStats{
		Store:        storeType,
		ItemID:       itemID,
		TotalRecords: len(records),
	}
	if len(records) == 0 {
		return stats, nil
	}

	if item, err := e.store.GetTrackedItem(ctx, storeType, itemID); err == nil {
		stats.Title = item.Title
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("getting tracked item: %w", err)
	}

	current := records[0]
	lowest, highest := records[0], records[0]
	var sum float64
	for _, rec := range records {
		sum += rec.NormalizedTotal
		if rec.NormalizedTotal < lowest.NormalizedTotal {
			lowest = rec
		}
		if rec.NormalizedTotal > highest.NormalizedTotal {
			highest = rec
		}
	}

	stats.CurrentPrice = priceDataOf(current)
	stats.LowestPrice = priceDataOf(lowest)
	stats.HighestPrice = priceDataOf(highest)
	stats.AveragePrice = round2(sum / float64(len(records)))
	stats.History = records

	// 24h delta compares against the newest record at least 24 hours old.
	cutoff := now.Add(-24 * time.Hour)
	for _, rec := range records {
		if !rec.CollectedAt.After(cutoff) {
			ref := rec.NormalizedTotal
			change := current.NormalizedTotal - ref
			stats.PriceChange24h = &change
			if ref > 0 {
				pct := round2(change / ref * 100)
				stats.PriceChangePct24h = &pct
			}
			break
		}
	}

	return stats, nil
}

func priceDataOf(rec domain.PriceHistoryRecord) *domain.PriceData {
	pd := domain.NewPriceData(rec.Price, rec.ShippingFee, rec.Currency)
	return &pd
}

// CreatePriceAlert stores a new alert. At least one trigger criterion is
// required.
func (e *Engine) CreatePriceAlert(ctx context.Context, alert *domain.PriceAlert) error {
	if alert.TargetPrice == nil && alert.PriceDropPercentage == nil {
		return errors.New("alert requires a target price or a drop percentage")
	}
	if err := e.store.CreateAlert(ctx, alert); err != nil {
		return fmt.Errorf("creating alert: %w", err)
	}
	return nil
}

// CheckPriceAlerts evaluates the item's active alerts against the current
// normalized price and returns those that fired. An alert fires when the
// price reaches its target, or when the drop from the first price ever
// recorded reaches its percentage. Triggering is atomic in the store, so
// an alert fires at most once even under concurrent checks.
func (e *Engine) CheckPriceAlerts(
	ctx context.Context,
	storeType domain.StoreType,
	itemID string,
	currentPrice float64,
) ([]domain.PriceAlert, error) {
	alerts, err := e.store.ListActiveAlertsForItem(ctx, storeType, itemID)
	if err != nil {
		return nil, fmt.Errorf("listing active alerts: %w", err)
	}
	if len(alerts) == 0 {
		return nil, nil
	}

	// The baseline for percentage drops is the first price ever recorded,
	// not the window minimum. Fetched once per check.
	var firstPrice float64
	var haveFirst bool
	for _, alert := range alerts {
		if alert.PriceDropPercentage != nil {
			first, err := e.store.GetFirstPrice(ctx, storeType, itemID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("getting first price: %w", err)
			}
			if err == nil {
				firstPrice = first.NormalizedTotal
				haveFirst = true
			}
			break
		}
	}

	var triggered []domain.PriceAlert
	now := e.nowFunc()

	for _, alert := range alerts {
		if !shouldTrigger(&alert, currentPrice, firstPrice, haveFirst) {
			continue
		}

		fired, err := e.store.TriggerAlert(ctx, alert.ID, now)
		if err != nil {
			return nil, fmt.Errorf("triggering alert %d: %w", alert.ID, err)
		}
		if !fired {
			continue
		}

		metrics.AlertsTriggeredTotal.Inc()
		alert.IsActive = false
		alert.TriggeredAt = &now
		triggered = append(triggered, alert)

		e.logger.Info("price alert triggered",
			"alert_id", alert.ID,
			"store", storeType,
			"item_id", itemID,
			"current_price", currentPrice,
		)
	}

	return triggered, nil
}

func shouldTrigger(
	alert *domain.PriceAlert,
	currentPrice, firstPrice float64,
	haveFirst bool,
) bool {
	if alert.TargetPrice != nil && currentPrice <= *alert.TargetPrice {
		return true
	}
	if alert.PriceDropPercentage != nil && haveFirst && firstPrice > 0 {
		dropPct := (firstPrice - currentPrice) / firstPrice * 100
		if dropPct >= *alert.PriceDropPercentage {
			return true
		}
	}
	return false
}

// ItemsToCollect returns active items due for collection, never-collected
// items first.
func (e *Engine) ItemsToCollect(ctx context.Context, limit int) ([]domain.TrackedItem, error) {
	staleBefore := e.nowFunc().Add(-e.collectionInterval)
	return e.store.ListItemsToCollect(ctx, staleBefore, limit)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
