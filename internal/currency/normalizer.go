// Package currency converts observed prices into a single comparison
// currency using cached exchange rates with a static fallback table.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"github.com/pricewatch/price-collector/internal/metrics"
	domain "github.com/pricewatch/price-collector/pkg/types"
)

const defaultAPIURL = "https://api.exchangerate-api.com/v4/latest"

// Approximate USD values per unit, used when the rate API is unreachable
// or does not know a currency. Stale rates beat failed collections here;
// the stored exchange_rate_date records what was actually used.
var fallbackRates = map[string]float64{
	"USD": 1.0,
	"EUR": 1.10,
	"GBP": 1.27,
	"CAD": 0.74,
	"AUD": 0.66,
	"JPY": 0.0067,
}

// Normalizer converts prices to a target currency. Rate tables are cached
// per source currency for the configured TTL; concurrent cache misses for
// the same currency share one fetch.
type Normalizer struct {
	apiURL   string
	target   string
	cacheTTL time.Duration
	client   *http.Client
	logger   *slog.Logger
	nowFunc  func() time.Time

	mu      sync.RWMutex
	rates   map[string]map[string]float64
	updated map[string]time.Time

	group singleflight.Group
}

// Option configures the Normalizer.
type Option func(*Normalizer)

// WithAPIURL overrides the exchange-rate API base URL.
func WithAPIURL(u string) Option {
	return func(n *Normalizer) {
		n.apiURL = u
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Normalizer) {
		n.client = c
	}
}

// WithCacheTTL overrides the one-hour rate cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(n *Normalizer) {
		n.cacheTTL = ttl
	}
}

// WithNowFunc overrides the time function for testing.
func WithNowFunc(f func() time.Time) Option {
	return func(n *Normalizer) {
		n.nowFunc = f
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Normalizer) {
		n.logger = l
	}
}

// NewNormalizer creates a normalizer targeting the given currency.
func NewNormalizer(target string, opts ...Option) *Normalizer {
	n := &Normalizer{
		apiURL:   defaultAPIURL,
		target:   strings.ToUpper(target),
		cacheTTL: time.Hour,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   slog.Default(),
		nowFunc:  time.Now,
		rates:    make(map[string]map[string]float64),
		updated:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Target returns the comparison currency.
func (n *Normalizer) Target() string {
	return n.target
}

// Rate returns the exchange rate between two currencies and the time the
// rate table was obtained. It never fails: when the API is unreachable or
// the currency unknown, an approximate fallback rate is returned.
func (n *Normalizer) Rate(ctx context.Context, from, to string) (float64, time.Time) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)

	if from == to {
		return 1.0, n.nowFunc()
	}

	table, fetchedAt, ok := n.cachedRates(from)
	if !ok {
		var err error
		table, fetchedAt, err = n.refreshRates(ctx, from)
		if err != nil {
			n.logger.Warn("failed to fetch exchange rates, using fallback",
				"from_currency", from, "error", err)
			metrics.RateFetchesTotal.WithLabelValues("fallback").Inc()
			return fallbackRate(from, to), n.nowFunc()
		}
	}

	rate, ok := table[to]
	if !ok {
		n.logger.Warn("rate not found, using fallback",
			"from_currency", from, "to_currency", to)
		metrics.RateFetchesTotal.WithLabelValues("fallback").Inc()
		return fallbackRate(from, to), n.nowFunc()
	}

	return rate, fetchedAt
}

// Convert converts an amount between currencies, rounded to two decimals.
func (n *Normalizer) Convert(
	ctx context.Context,
	amount float64,
	from, to string,
) (float64, float64, time.Time) {
	rate, fetchedAt := n.Rate(ctx, from, to)
	return round2(amount * rate), rate, fetchedAt
}

// NormalizePrice converts a price observation into the target currency.
// Same-currency observations keep their values and carry no exchange rate.
func (n *Normalizer) NormalizePrice(
	ctx context.Context,
	pd domain.PriceData,
) domain.NormalizedPrice {
	price, rate, fetchedAt := n.Convert(ctx, pd.Price, pd.Currency, n.target)
	shipping, _, _ := n.Convert(ctx, pd.ShippingFee, pd.Currency, n.target)

	np := domain.NormalizedPrice{
		NormalizedPrice: price,
		NormalizedTotal: round2(price + shipping),
		Currency:        n.target,
	}
	if !strings.EqualFold(pd.Currency, n.target) {
		np.ExchangeRate = &rate
		np.ExchangeRateDate = &fetchedAt
	}
	return np
}

func (n *Normalizer) cachedRates(from string) (map[string]float64, time.Time, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	fetchedAt, ok := n.updated[from]
	if !ok || n.nowFunc().Sub(fetchedAt) >= n.cacheTTL {
		return nil, time.Time{}, false
	}
	return n.rates[from], fetchedAt, true
}

// refreshRates fetches the rate table for a currency, deduplicating
// concurrent fetches for the same currency.
func (n *Normalizer) refreshRates(
	ctx context.Context,
	from string,
) (map[string]float64, time.Time, error) {
	type fetched struct {
		table map[string]float64
		at    time.Time
	}

	v, err, _ := n.group.Do(from, func() (any, error) {
		// Another caller may have filled the cache while we queued.
		if table, fetchedAt, ok := n.cachedRates(from); ok {
			return fetched{table: table, at: fetchedAt}, nil
		}

		table, err := n.fetchRates(ctx, from)
		if err != nil {
			return nil, err
		}

		now := n.nowFunc()
		n.mu.Lock()
		n.rates[from] = table
		n.updated[from] = now
		n.mu.Unlock()

		metrics.RateFetchesTotal.WithLabelValues("success").Inc()
		return fetched{table: table, at: now}, nil
	})
	if err != nil {
		return nil, time.Time{}, err
	}

	f := v.(fetched)
	return f.table, f.at, nil
}

func (n *Normalizer) fetchRates(ctx context.Context, from string) (map[string]float64, error) {
	var table map[string]float64

	operation := func() error {
		req, err := http.NewRequestWithContext(
			ctx, http.MethodGet, n.apiURL+"/"+from, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating rates request: %w", err))
		}

		resp, err := n.client.Do(req)
		if err != nil {
			return fmt.Errorf("fetching exchange rates: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("fetching exchange rates: HTTP %d", resp.StatusCode)
			if resp.StatusCode >= 500 {
				return err
			}
			return backoff.Permanent(err)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading rates response: %w", err)
		}

		var payload struct {
			Rates map[string]float64 `json:"rates"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return backoff.Permanent(fmt.Errorf("parsing rates response: %w", err))
		}
		if len(payload.Rates) == 0 {
			return backoff.Permanent(fmt.Errorf("rates response empty for %s", from))
		}

		table = payload.Rates
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 5 * time.Second
	if err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, 2), ctx)); err != nil {
		return nil, err
	}
	return table, nil
}

// fallbackRate triangulates through USD using the static table. Unknown
// currencies are treated as parity with USD.
func fallbackRate(from, to string) float64 {
	fromUSD, ok := fallbackRates[from]
	if !ok {
		fromUSD = 1.0
	}
	toUSD, ok := fallbackRates[to]
	if !ok {
		toUSD = 1.0
	}
	return fromUSD / toUSD
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
