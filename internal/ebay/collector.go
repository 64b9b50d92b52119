package ebay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pricewatch/price-collector/internal/metrics"
	domain "github.com/pricewatch/price-collector/pkg/types"
)

// apiClient is the API collection surface the collector depends on.
type apiClient interface {
	CollectPrice(ctx context.Context, itemID string) domain.CollectionResult
	ValidateItemExists(ctx context.Context, itemID string) (bool, error)
}

// pageScraper is the scraping surface the collector depends on.
type pageScraper interface {
	CollectPrice(ctx context.Context, itemID, region string) domain.CollectionResult
}

// Collector implements price collection for eBay listings: Browse API
// first, HTML scraping as fallback.
type Collector struct {
	api     apiClient
	scraper pageScraper
	logger  *slog.Logger
}

// NewCollector creates an eBay collector. api may be nil when credentials
// are not configured; collection then goes straight to the fallback path.
func NewCollector(api apiClient, scraper pageScraper, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{api: api, scraper: scraper, logger: logger}
}

// StoreType identifies the marketplace this collector serves.
func (c *Collector) StoreType() domain.StoreType {
	return domain.StoreEbay
}

// SupportedDomains lists the eBay domains whose URLs this collector parses.
func (c *Collector) SupportedDomains() []string {
	return supportedDomains
}

// ParseURL extracts a store identifier from an eBay product URL.
func (c *Collector) ParseURL(url string) domain.URLParseResult {
	return ParseURL(url)
}

// CollectPrice retrieves the current price for an item. The API result is
// returned as-is on success. On API failure with useFallback set, the
// scraper runs exactly once and its result is returned unchanged, success
// or not. With fallback disabled an API failure becomes COLLECTION_FAILED.
func (c *Collector) CollectPrice(
	ctx context.Context,
	id domain.StoreIdentifier,
	useFallback bool,
) domain.CollectionResult {
	return c.collect(ctx, id, "US", useFallback)
}

func (c *Collector) collect(
	ctx context.Context,
	id domain.StoreIdentifier,
	region string,
	useFallback bool,
) domain.CollectionResult {
	start := time.Now()
	defer func() {
		metrics.CollectionDuration.Observe(time.Since(start).Seconds())
	}()

	if id.Store != domain.StoreEbay {
		return domain.NewFailureResult(
			id.Store, id.ItemID, "",
			domain.ErrCodeInvalidStore,
			fmt.Sprintf("expected eBay store, got %s", id.Store),
		)
	}

	if !ValidateItemID(id.ItemID) {
		return domain.NewFailureResult(
			domain.StoreEbay, id.ItemID, "",
			domain.ErrCodeInvalidItemID,
			fmt.Sprintf("invalid eBay item id format: %s", id.ItemID),
		)
	}

	log := c.logger.With("item_id", id.ItemID, "store", "ebay")
	log.Info("starting price collection")

	if c.api != nil {
		result := c.api.CollectPrice(ctx, id.ItemID)
		if result.Success {
			log.Info("API collection successful", "price", result.PriceData.Price)
			metrics.CollectionsTotal.WithLabelValues("ebay", "api", "success").Inc()
			return result
		}

		log.Warn("API collection failed",
			"error_code", result.ErrorCode,
			"error_message", result.ErrorMessage,
		)
		metrics.CollectionsTotal.WithLabelValues("ebay", "api", "failure").Inc()
	} else {
		log.Debug("API not configured, skipping")
	}

	if useFallback {
		metrics.FallbacksTotal.Inc()
		result := c.scraper.CollectPrice(ctx, id.ItemID, region)
		if result.Success {
			log.Info("scraper collection successful", "price", result.PriceData.Price)
			metrics.CollectionsTotal.WithLabelValues("ebay", "scraping", "success").Inc()
		} else {
			log.Error("scraper collection failed",
				"error_code", result.ErrorCode,
				"error_message", result.ErrorMessage,
			)
			metrics.CollectionsTotal.WithLabelValues("ebay", "scraping", "failure").Inc()
		}
		return result
	}

	return domain.NewFailureResult(
		domain.StoreEbay, id.ItemID, domain.MethodAPI,
		domain.ErrCodeCollectionFailed,
		"API collection failed and fallback is disabled",
	)
}

// CollectPriceFromURL parses a product URL and collects its price. The
// URL's regional domain selects which eBay site the scraper fallback hits.
func (c *Collector) CollectPriceFromURL(
	ctx context.Context,
	url string,
	useFallback bool,
) domain.CollectionResult {
	parsed := c.ParseURL(url)
	if !parsed.Success {
		return domain.NewFailureResult(
			domain.StoreEbay, "", "",
			parsed.ErrorCode, parsed.Error,
		)
	}
	return c.collect(ctx,
		domain.NewEbayIdentifier(parsed.ItemID), Region(url), useFallback)
}

// ValidateItemExists checks the API first, then falls back to scraping.
func (c *Collector) ValidateItemExists(
	ctx context.Context,
	id domain.StoreIdentifier,
) (bool, error) {
	if id.Store != domain.StoreEbay {
		return false, nil
	}

	if c.api != nil {
		ok, err := c.api.ValidateItemExists(ctx, id.ItemID)
		if err == nil {
			return ok, nil
		}
		c.logger.Warn("API validation failed, trying scraper",
			"item_id", id.ItemID, "error", err)
	}

	result := c.scraper.CollectPrice(ctx, id.ItemID, "US")
	return result.Success, nil
}
