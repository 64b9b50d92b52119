//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pricewatch/price-collector/internal/store"
	domain "github.com/pricewatch/price-collector/pkg/types"
)

func setupPostgres(t *testing.T) *store.PostgresStore {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("pricewatch_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := store.NewPostgresStore(ctx, connStr)
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Close()
	})

	require.NoError(t, s.Migrate(ctx))

	return s
}

func testTrackedItem(itemID string) *domain.TrackedItem {
	return &domain.TrackedItem{
		Store:       domain.StoreEbay,
		ItemID:      itemID,
		Title:       "Dell PowerEdge R740 2x Gold 6140",
		SellerID:    "serverdeals",
		SellerName:  "Server Deals Store",
		Condition:   domain.ConditionUsed,
		ListingType: domain.ListingBuyItNow,
		ItemURL:     "https://www.ebay.com/itm/" + itemID,
	}
}

func testHistoryRecord(itemID string, total float64, at time.Time) *domain.PriceHistoryRecord {
	return &domain.PriceHistoryRecord{
		Store:              domain.StoreEbay,
		ItemID:             itemID,
		Price:              total,
		Currency:           "USD",
		NormalizedPrice:    total,
		NormalizedTotal:    total,
		NormalizedCurrency: "USD",
		CollectedAt:        at,
		CollectionMethod:   domain.MethodAPI,
	}
}

func TestPostgresStore_Ping(t *testing.T) {
	s := setupPostgres(t)
	require.NoError(t, s.Ping(context.Background()))
}

func TestPostgresStore_UpsertTrackedItem(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	t.Run("insert new item", func(t *testing.T) {
		item := testTrackedItem("256000000001")
		require.NoError(t, s.UpsertTrackedItem(ctx, item))
		assert.NotZero(t, item.ID)
		assert.True(t, item.IsActive)
		assert.NotNil(t, item.LastCollectedAt)
		assert.Zero(t, item.CollectionErrorCount)
	})

	t.Run("upsert resets error state", func(t *testing.T) {
		item := testTrackedItem("256000000002")
		require.NoError(t, s.UpsertTrackedItem(ctx, item))
		firstID := item.ID
		createdAt := item.CreatedAt

		for range 2 {
			_, err := s.MarkCollectionError(ctx, domain.StoreEbay, item.ItemID)
			require.NoError(t, err)
		}

		again := testTrackedItem("256000000002")
		again.Title = "Dell PowerEdge R740 updated title"
		require.NoError(t, s.UpsertTrackedItem(ctx, again))

		assert.Equal(t, firstID, again.ID)
		assert.Equal(t, createdAt, again.CreatedAt)
		assert.True(t, again.IsActive)
		assert.Zero(t, again.CollectionErrorCount)

		got, err := s.GetTrackedItem(ctx, domain.StoreEbay, "256000000002")
		require.NoError(t, err)
		assert.Equal(t, "Dell PowerEdge R740 updated title", got.Title)
	})

	t.Run("get missing item", func(t *testing.T) {
		_, err := s.GetTrackedItem(ctx, domain.StoreEbay, "256999999999")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestPostgresStore_MarkCollectionError(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	item := testTrackedItem("256000000003")
	require.NoError(t, s.UpsertTrackedItem(ctx, item))

	for i := 1; i < store.ErrorDeactivationThreshold; i++ {
		deactivated, err := s.MarkCollectionError(ctx, domain.StoreEbay, item.ItemID)
		require.NoError(t, err)
		assert.False(t, deactivated, "error %d must not deactivate", i)
	}

	deactivated, err := s.MarkCollectionError(ctx, domain.StoreEbay, item.ItemID)
	require.NoError(t, err)
	assert.True(t, deactivated)

	got, err := s.GetTrackedItem(ctx, domain.StoreEbay, item.ItemID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, store.ErrorDeactivationThreshold, got.CollectionErrorCount)

	// Further errors on a deactivated item do not re-report deactivation.
	deactivated, err = s.MarkCollectionError(ctx, domain.StoreEbay, item.ItemID)
	require.NoError(t, err)
	assert.False(t, deactivated)

	_, err = s.MarkCollectionError(ctx, domain.StoreEbay, "256999999999")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgresStore_ListItemsToCollect(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	// Collected just now: not due.
	fresh := testTrackedItem("256000000010")
	require.NoError(t, s.UpsertTrackedItem(ctx, fresh))

	// Collected, then deactivated: never due.
	inactive := testTrackedItem("256000000011")
	require.NoError(t, s.UpsertTrackedItem(ctx, inactive))
	require.NoError(t, s.SetTrackedItemActive(ctx, domain.StoreEbay, inactive.ItemID, false))

	// Stale: due.
	stale := testTrackedItem("256000000012")
	require.NoError(t, s.UpsertTrackedItem(ctx, stale))

	time.Sleep(10 * time.Millisecond)
	cutoff := time.Now()

	due, err := s.ListItemsToCollect(ctx, cutoff, 10)
	require.NoError(t, err)

	ids := make([]string, 0, len(due))
	for _, item := range due {
		ids = append(ids, item.ItemID)
	}
	assert.Contains(t, ids, fresh.ItemID)
	assert.Contains(t, ids, stale.ItemID)
	assert.NotContains(t, ids, inactive.ItemID)
}

func TestPostgresStore_PriceHistory(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	base := time.Now().Add(-72 * time.Hour).Truncate(time.Microsecond)
	for i, total := range []float64{100, 90, 95} {
		rec := testHistoryRecord("256000000020", total, base.Add(time.Duration(i)*24*time.Hour))
		require.NoError(t, s.InsertPriceHistory(ctx, rec))
		assert.NotZero(t, rec.ID)
	}

	t.Run("list newest first", func(t *testing.T) {
		records, err := s.ListPriceHistory(
			ctx, domain.StoreEbay, "256000000020", base.Add(-time.Hour), 100)
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.InDelta(t, 95, records[0].NormalizedTotal, 1e-9)
		assert.InDelta(t, 100, records[2].NormalizedTotal, 1e-9)
	})

	t.Run("since filter", func(t *testing.T) {
		records, err := s.ListPriceHistory(
			ctx, domain.StoreEbay, "256000000020", base.Add(12*time.Hour), 100)
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("first price", func(t *testing.T) {
		first, err := s.GetFirstPrice(ctx, domain.StoreEbay, "256000000020")
		require.NoError(t, err)
		assert.InDelta(t, 100, first.NormalizedTotal, 1e-9)
	})

	t.Run("first price missing item", func(t *testing.T) {
		_, err := s.GetFirstPrice(ctx, domain.StoreEbay, "256999999999")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestPostgresStore_Alerts(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	target := 500.0
	alert := &domain.PriceAlert{
		Store:       domain.StoreEbay,
		ItemID:      "256000000030",
		TargetPrice: &target,
	}
	require.NoError(t, s.CreateAlert(ctx, alert))
	assert.NotZero(t, alert.ID)
	assert.True(t, alert.IsActive)

	active, err := s.ListActiveAlertsForItem(ctx, domain.StoreEbay, "256000000030")
	require.NoError(t, err)
	require.Len(t, active, 1)

	now := time.Now().Truncate(time.Microsecond)
	fired, err := s.TriggerAlert(ctx, alert.ID, now)
	require.NoError(t, err)
	assert.True(t, fired)

	// A second trigger must lose.
	fired, err = s.TriggerAlert(ctx, alert.ID, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, fired)

	active, err = s.ListActiveAlertsForItem(ctx, domain.StoreEbay, "256000000030")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestPostgresStore_KeywordCohorts(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	_, err := s.Pool().Exec(ctx, `
		INSERT INTO keyword_lookup (customer_id, keyword) VALUES
			(1, 'rtx 4090'), (1, 'poweredge r740'), (2, 'thinksystem sr650')
	`)
	require.NoError(t, err)

	cohorts, err := s.ListKeywordCohorts(ctx)
	require.NoError(t, err)
	require.Len(t, cohorts, 2)
	assert.Equal(t, int64(1), cohorts[0].CustomerID)
	assert.Equal(t, []string{"poweredge r740", "rtx 4090"}, cohorts[0].Keywords)
	assert.Equal(t, []string{"thinksystem sr650"}, cohorts[1].Keywords)
}
