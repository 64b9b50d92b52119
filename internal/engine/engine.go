// Package engine orchestrates batch price collection: due items are
// dispatched to their store collectors, results are normalized and saved,
// and triggered alerts are delivered.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pricewatch/price-collector/internal/collector"
	"github.com/pricewatch/price-collector/internal/metrics"
	"github.com/pricewatch/price-collector/internal/notify"
	domain "github.com/pricewatch/price-collector/pkg/types"
)

const defaultBatchLimit = 50

// History is the slice of the price-history engine the collection cycle
// needs.
type History interface {
	ItemsToCollect(ctx context.Context, limit int) ([]domain.TrackedItem, error)
	SavePrice(ctx context.Context, result *domain.CollectionResult, itemURL string) (*domain.PriceHistoryRecord, error)
	MarkCollectionError(ctx context.Context, store domain.StoreType, itemID string) (bool, error)
	CheckPriceAlerts(ctx context.Context, store domain.StoreType, itemID string, currentPrice float64) ([]domain.PriceAlert, error)
}

// Normalizer converts a raw price observation into the target currency.
type Normalizer interface {
	NormalizePrice(ctx context.Context, pd domain.PriceData) domain.NormalizedPrice
}

// KeywordSource supplies per-customer keyword cohorts that seed item
// discovery. The store's keyword_lookup table is the usual source.
type KeywordSource interface {
	ListKeywordCohorts(ctx context.Context) ([]domain.KeywordCohort, error)
}

// Engine runs the periodic collection cycle.
type Engine struct {
	registry   *collector.Registry
	history    History
	normalizer Normalizer
	notifier   notify.Notifier
	keywords   KeywordSource
	log        *slog.Logger

	batchLimit    int
	staggerOffset time.Duration
	useFallback   bool
	tracer        trace.Tracer
}

// NewEngine creates a new Engine with injected dependencies.
func NewEngine(
	reg *collector.Registry,
	hist History,
	norm Normalizer,
	n notify.Notifier,
	opts ...EngineOption,
) *Engine {
	eng := &Engine{
		registry:      reg,
		history:       hist,
		normalizer:    norm,
		notifier:      n,
		log:           slog.Default(),
		batchLimit:    defaultBatchLimit,
		staggerOffset: 30 * time.Second,
		useFallback:   true,
		tracer:        otel.Tracer("pricecollector/engine"),
	}
	for _, opt := range opts {
		opt(eng)
	}
	return eng
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// WithBatchLimit sets the maximum items collected per cycle.
func WithBatchLimit(n int) EngineOption {
	return func(e *Engine) {
		e.batchLimit = n
	}
}

// WithStaggerOffset sets the delay between collecting each item.
func WithStaggerOffset(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.staggerOffset = d
	}
}

// WithFallback controls whether collectors may fall back to scraping when
// the API path fails.
func WithFallback(enabled bool) EngineOption {
	return func(e *Engine) {
		e.useFallback = enabled
	}
}

// WithKeywordSource sets the keyword cohort source.
func WithKeywordSource(src KeywordSource) EngineOption {
	return func(e *Engine) {
		e.keywords = src
	}
}

// RunCollection executes one collection cycle over all due items.
func (eng *Engine) RunCollection(ctx context.Context) error {
	ctx, span := eng.tracer.Start(ctx, "collection.cycle")
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}()

	eng.logKeywordCohorts(ctx)

	items, err := eng.history.ItemsToCollect(ctx, eng.batchLimit)
	if err != nil {
		return fmt.Errorf("listing items to collect: %w", err)
	}

	span.SetAttributes(attribute.Int("items.due", len(items)))
	eng.log.Info("collection cycle starting", "items", len(items))

	for i := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		item := &items[i]
		if err := eng.collectItem(ctx, item); err != nil {
			eng.log.Error("item collection failed",
				"store", item.Store,
				"item_id", item.ItemID,
				"error", err,
			)
			metrics.CycleErrorsTotal.Inc()
		}

		// Stagger between items to avoid API bursts.
		if i < len(items)-1 && eng.staggerOffset > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(eng.staggerOffset):
			}
		}
	}

	eng.log.Info("collection cycle finished",
		"items", len(items),
		"duration", time.Since(start),
	)
	return nil
}

func (eng *Engine) logKeywordCohorts(ctx context.Context) {
	if eng.keywords == nil {
		return
	}
	cohorts, err := eng.keywords.ListKeywordCohorts(ctx)
	if err != nil {
		eng.log.Error("listing keyword cohorts failed", "error", err)
		return
	}
	keywords := 0
	for _, c := range cohorts {
		keywords += len(c.Keywords)
	}
	eng.log.Info("keyword cohorts loaded", "cohorts", len(cohorts), "keywords", keywords)
}

// urlCollector is implemented by collectors that can derive the regional
// site from a listing URL instead of assuming a default region.
type urlCollector interface {
	CollectPriceFromURL(ctx context.Context, url string, useFallback bool) domain.CollectionResult
}

func (eng *Engine) collectItem(ctx context.Context, item *domain.TrackedItem) error {
	col, ok := eng.registry.Get(item.Store)
	if !ok {
		return fmt.Errorf("no collector registered for store %q", item.Store)
	}

	var result domain.CollectionResult
	if uc, ok := col.(urlCollector); ok && item.ItemURL != "" {
		result = uc.CollectPriceFromURL(ctx, item.ItemURL, eng.useFallback)
	} else {
		id := domain.StoreIdentifier{Store: item.Store, ItemID: item.ItemID}
		result = col.CollectPrice(ctx, id, eng.useFallback)
	}

	if !result.Success {
		deactivated, err := eng.history.MarkCollectionError(ctx, item.Store, item.ItemID)
		if err != nil {
			return fmt.Errorf("marking collection error: %w", err)
		}
		if deactivated {
			eng.log.Warn("item deactivated", "store", item.Store, "item_id", item.ItemID)
		}
		return fmt.Errorf("collection failed: %s: %s", result.ErrorCode, result.ErrorMessage)
	}

	if result.NormalizedPrice == nil && result.PriceData != nil {
		np := eng.normalizer.NormalizePrice(ctx, *result.PriceData)
		result.NormalizedPrice = &np
	}

	rec, err := eng.history.SavePrice(ctx, &result, item.ItemURL)
	if err != nil {
		return fmt.Errorf("saving price: %w", err)
	}

	eng.checkAlerts(ctx, item, rec)
	return nil
}

func (eng *Engine) checkAlerts(
	ctx context.Context,
	item *domain.TrackedItem,
	rec *domain.PriceHistoryRecord,
) {
	triggered, err := eng.history.CheckPriceAlerts(
		ctx, item.Store, item.ItemID, rec.NormalizedTotal)
	if err != nil {
		eng.log.Error("alert check failed",
			"store", item.Store, "item_id", item.ItemID, "error", err)
		return
	}
	if len(triggered) == 0 {
		return
	}

	payloads := make([]notify.AlertPayload, 0, len(triggered))
	for _, alert := range triggered {
		payloads = append(payloads, notify.AlertPayload{
			Alert:        alert,
			ItemTitle:    item.Title,
			ItemURL:      item.ItemURL,
			ImageURL:     item.ImageURL,
			CurrentPrice: rec.NormalizedTotal,
			Currency:     rec.NormalizedCurrency,
			TriggeredBy:  triggerReason(&alert, rec.NormalizedTotal),
		})
	}

	if err := eng.notifier.SendBatchAlert(ctx, payloads); err != nil {
		eng.log.Error("alert delivery failed",
			"store", item.Store, "item_id", item.ItemID, "error", err)
	}
}

func triggerReason(alert *domain.PriceAlert, currentPrice float64) string {
	if alert.TargetPrice != nil && currentPrice <= *alert.TargetPrice {
		return notify.TriggerTargetPrice
	}
	return notify.TriggerPriceDrop
}
