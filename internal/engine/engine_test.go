package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricewatch/price-collector/internal/collector"
	"github.com/pricewatch/price-collector/internal/notify"
	domain "github.com/pricewatch/price-collector/pkg/types"
)

// stubCollector returns a canned result per item id.
type stubCollector struct {
	results map[string]domain.CollectionResult
	calls   int
}

func (s *stubCollector) StoreType() domain.StoreType { return domain.StoreEbay }

func (s *stubCollector) SupportedDomains() []string { return []string{"ebay.com"} }

func (s *stubCollector) ParseURL(string) domain.URLParseResult {
	return domain.URLParseResult{}
}

func (s *stubCollector) CollectPrice(
	_ context.Context,
	id domain.StoreIdentifier,
	_ bool,
) domain.CollectionResult {
	s.calls++
	if r, ok := s.results[id.ItemID]; ok {
		return r
	}
	return domain.NewFailureResult(
		id.Store, id.ItemID, domain.MethodAPI,
		domain.ErrCodeItemNotFound, "not found")
}

func (s *stubCollector) ValidateItemExists(context.Context, domain.StoreIdentifier) (bool, error) {
	return true, nil
}

// fakeHistory records the engine's interactions.
type fakeHistory struct {
	mu         sync.Mutex
	due        []domain.TrackedItem
	dueErr     error
	saved      []domain.CollectionResult
	errMarks   []string
	alerts     map[string][]domain.PriceAlert
	alertCalls int
}

func (f *fakeHistory) ItemsToCollect(context.Context, int) ([]domain.TrackedItem, error) {
	return f.due, f.dueErr
}

func (f *fakeHistory) SavePrice(
	_ context.Context,
	result *domain.CollectionResult,
	_ string,
) (*domain.PriceHistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, *result)

	rec := &domain.PriceHistoryRecord{
		Store:              result.Store,
		ItemID:             result.ItemID,
		NormalizedTotal:    result.PriceData.TotalPrice,
		NormalizedCurrency: "USD",
	}
	if result.NormalizedPrice != nil {
		rec.NormalizedTotal = result.NormalizedPrice.NormalizedTotal
		rec.NormalizedCurrency = result.NormalizedPrice.Currency
	}
	return rec, nil
}

func (f *fakeHistory) MarkCollectionError(
	_ context.Context,
	_ domain.StoreType,
	itemID string,
) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errMarks = append(f.errMarks, itemID)
	return false, nil
}

func (f *fakeHistory) CheckPriceAlerts(
	_ context.Context,
	_ domain.StoreType,
	itemID string,
	_ float64,
) ([]domain.PriceAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alertCalls++
	return f.alerts[itemID], nil
}

// fakeNormalizer marks prices as normalized without conversion.
type fakeNormalizer struct {
	calls int
}

func (f *fakeNormalizer) NormalizePrice(
	_ context.Context,
	pd domain.PriceData,
) domain.NormalizedPrice {
	f.calls++
	return domain.NormalizedPrice{
		NormalizedPrice:  pd.Price,
		NormalizedTotal:  pd.TotalPrice,
		Currency:         "USD",
		IncludesShipping: pd.ShippingFee > 0,
	}
}

// captureNotifier records delivered batches.
type captureNotifier struct {
	mu      sync.Mutex
	batches [][]notify.AlertPayload
	err     error
}

func (c *captureNotifier) SendAlert(_ context.Context, alert *notify.AlertPayload) error {
	return c.SendBatchAlert(context.Background(), []notify.AlertPayload{*alert})
}

func (c *captureNotifier) SendBatchAlert(_ context.Context, alerts []notify.AlertPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, alerts)
	return c.err
}

func successResult(itemID string, price float64) domain.CollectionResult {
	pd := domain.NewPriceData(price, 0, "USD")
	return domain.CollectionResult{
		Success:          true,
		Store:            domain.StoreEbay,
		ItemID:           itemID,
		PriceData:        &pd,
		CollectedAt:      time.Now(),
		CollectionMethod: domain.MethodAPI,
	}
}

func trackedItem(itemID string) domain.TrackedItem {
	return domain.TrackedItem{
		Store:   domain.StoreEbay,
		ItemID:  itemID,
		Title:   "Dell PowerEdge R740",
		ItemURL: "https://www.ebay.com/itm/" + itemID,
	}
}

func newTestEngine(
	col *stubCollector,
	hist *fakeHistory,
	notifier notify.Notifier,
	opts ...EngineOption,
) *Engine {
	reg := collector.NewRegistry()
	reg.Register(col)

	base := []EngineOption{
		WithStaggerOffset(0),
		WithLogger(slog.New(slog.DiscardHandler)),
	}
	return NewEngine(reg, hist, &fakeNormalizer{}, notifier, append(base, opts...)...)
}

// urlStubCollector additionally records URL-based collection calls.
type urlStubCollector struct {
	stubCollector
	urls []string
}

func (s *urlStubCollector) CollectPriceFromURL(
	ctx context.Context,
	url string,
	useFallback bool,
) domain.CollectionResult {
	s.urls = append(s.urls, url)
	return s.CollectPrice(ctx,
		domain.NewEbayIdentifier(url[len(url)-12:]), useFallback)
}

func TestEngine_CollectsThroughItemURL(t *testing.T) {
	t.Parallel()

	col := &urlStubCollector{stubCollector: stubCollector{
		results: map[string]domain.CollectionResult{
			"195123456789": successResult("195123456789", 89.90),
			"256000000001": successResult("256000000001", 10),
		},
	}}

	withURL := trackedItem("195123456789")
	withURL.ItemURL = "https://www.ebay.de/itm/195123456789"
	withoutURL := trackedItem("256000000001")
	withoutURL.ItemURL = ""

	hist := &fakeHistory{due: []domain.TrackedItem{withURL, withoutURL}}

	reg := collector.NewRegistry()
	reg.Register(col)
	eng := NewEngine(reg, hist, &fakeNormalizer{}, notify.NewNoopNotifier(),
		WithStaggerOffset(0),
		WithLogger(slog.New(slog.DiscardHandler)),
	)
	require.NoError(t, eng.RunCollection(context.Background()))

	// The stored URL drives collection when present; otherwise the plain
	// identifier path is used.
	assert.Equal(t, []string{"https://www.ebay.de/itm/195123456789"}, col.urls)
	assert.Len(t, hist.saved, 2)
}

func TestEngine_RunCollection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("collects and saves due items", func(t *testing.T) {
		t.Parallel()

		col := &stubCollector{results: map[string]domain.CollectionResult{
			"256000000001": successResult("256000000001", 499.99),
			"256000000002": successResult("256000000002", 120.50),
		}}
		hist := &fakeHistory{due: []domain.TrackedItem{
			trackedItem("256000000001"),
			trackedItem("256000000002"),
		}}

		eng := newTestEngine(col, hist, notify.NewNoopNotifier())
		require.NoError(t, eng.RunCollection(ctx))

		assert.Equal(t, 2, col.calls)
		require.Len(t, hist.saved, 2)
		assert.Empty(t, hist.errMarks)
		assert.Equal(t, 2, hist.alertCalls)

		// Results are normalized before saving.
		for _, saved := range hist.saved {
			assert.NotNil(t, saved.NormalizedPrice)
			assert.Equal(t, "USD", saved.NormalizedPrice.Currency)
		}
	})

	t.Run("failed collection marks the error", func(t *testing.T) {
		t.Parallel()

		col := &stubCollector{results: map[string]domain.CollectionResult{
			"256000000010": successResult("256000000010", 100),
		}}
		hist := &fakeHistory{due: []domain.TrackedItem{
			trackedItem("256000000010"),
			trackedItem("256000000099"), // no canned result: fails
		}}

		eng := newTestEngine(col, hist, notify.NewNoopNotifier())
		require.NoError(t, eng.RunCollection(ctx))

		assert.Len(t, hist.saved, 1)
		assert.Equal(t, []string{"256000000099"}, hist.errMarks)
	})

	t.Run("delivers triggered alerts", func(t *testing.T) {
		t.Parallel()

		target := 500.0
		col := &stubCollector{results: map[string]domain.CollectionResult{
			"256000000020": successResult("256000000020", 450),
		}}
		hist := &fakeHistory{
			due: []domain.TrackedItem{trackedItem("256000000020")},
			alerts: map[string][]domain.PriceAlert{
				"256000000020": {{
					ID:          1,
					Store:       domain.StoreEbay,
					ItemID:      "256000000020",
					TargetPrice: &target,
				}},
			},
		}
		notifier := &captureNotifier{}

		eng := newTestEngine(col, hist, notifier)
		require.NoError(t, eng.RunCollection(ctx))

		require.Len(t, notifier.batches, 1)
		require.Len(t, notifier.batches[0], 1)

		payload := notifier.batches[0][0]
		assert.Equal(t, int64(1), payload.Alert.ID)
		assert.Equal(t, "Dell PowerEdge R740", payload.ItemTitle)
		assert.InDelta(t, 450, payload.CurrentPrice, 1e-9)
		assert.Equal(t, notify.TriggerTargetPrice, payload.TriggeredBy)
	})

	t.Run("notifier failure does not fail the cycle", func(t *testing.T) {
		t.Parallel()

		target := 500.0
		col := &stubCollector{results: map[string]domain.CollectionResult{
			"256000000021": successResult("256000000021", 450),
		}}
		hist := &fakeHistory{
			due: []domain.TrackedItem{trackedItem("256000000021")},
			alerts: map[string][]domain.PriceAlert{
				"256000000021": {{ID: 2, TargetPrice: &target}},
			},
		}
		notifier := &captureNotifier{err: errors.New("webhook down")}

		eng := newTestEngine(col, hist, notifier)
		require.NoError(t, eng.RunCollection(ctx))
		assert.Len(t, hist.saved, 1)
	})

	t.Run("propagates listing errors", func(t *testing.T) {
		t.Parallel()

		hist := &fakeHistory{dueErr: errors.New("db down")}
		eng := newTestEngine(&stubCollector{}, hist, notify.NewNoopNotifier())

		err := eng.RunCollection(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "listing items to collect")
	})

	t.Run("unregistered store counts as cycle error", func(t *testing.T) {
		t.Parallel()

		hist := &fakeHistory{due: []domain.TrackedItem{
			{Store: domain.StoreType("amazon"), ItemID: "B000000001"},
		}}
		eng := newTestEngine(&stubCollector{}, hist, notify.NewNoopNotifier())

		require.NoError(t, eng.RunCollection(ctx))
		assert.Empty(t, hist.saved)
		assert.Empty(t, hist.errMarks)
	})

	t.Run("honors context cancellation", func(t *testing.T) {
		t.Parallel()

		col := &stubCollector{results: map[string]domain.CollectionResult{
			"256000000030": successResult("256000000030", 100),
			"256000000031": successResult("256000000031", 100),
		}}
		hist := &fakeHistory{due: []domain.TrackedItem{
			trackedItem("256000000030"),
			trackedItem("256000000031"),
		}}

		eng := newTestEngine(col, hist, notify.NewNoopNotifier(),
			WithStaggerOffset(time.Hour))

		cancelCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			done <- eng.RunCollection(cancelCtx)
		}()

		// Let the first item be collected, then cancel during the stagger.
		require.Eventually(t, func() bool {
			hist.mu.Lock()
			defer hist.mu.Unlock()
			return len(hist.saved) == 1
		}, 2*time.Second, 10*time.Millisecond)
		cancel()

		err := <-done
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestEngine_KeywordCohorts(t *testing.T) {
	t.Parallel()

	src := &stubKeywordSource{cohorts: []domain.KeywordCohort{
		{CustomerID: 1, Keywords: []string{"poweredge r740", "rtx 4090"}},
	}}
	hist := &fakeHistory{}

	eng := newTestEngine(&stubCollector{}, hist, notify.NewNoopNotifier(),
		WithKeywordSource(src))

	require.NoError(t, eng.RunCollection(context.Background()))
	assert.Equal(t, 1, src.calls)
}

type stubKeywordSource struct {
	cohorts []domain.KeywordCohort
	calls   int
}

func (s *stubKeywordSource) ListKeywordCohorts(context.Context) ([]domain.KeywordCohort, error) {
	s.calls++
	return s.cohorts, nil
}
