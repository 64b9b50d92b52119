package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/pricewatch/price-collector/pkg/types"
)

const defaultPoolSize = 10

// PostgresStore implements Store using pgxpool (connection-pooled PostgreSQL).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore with connection pooling.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	cfg.MaxConns = defaultPoolSize

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close gracefully shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Pool exposes the underlying connection pool for test seeding.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending SQL schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, s.pool)
}

// UpsertTrackedItem inserts or refreshes the summary row for (store, item_id).
func (s *PostgresStore) UpsertTrackedItem(ctx context.Context, item *domain.TrackedItem) error {
	args := pgx.NamedArgs{
		"store":        string(item.Store),
		"item_id":      item.ItemID,
		"title":        item.Title,
		"seller_id":    item.SellerID,
		"seller_name":  item.SellerName,
		"condition":    string(item.Condition),
		"listing_type": string(item.ListingType),
		"item_url":     item.ItemURL,
		"image_url":    item.ImageURL,
	}

	return s.pool.QueryRow(ctx, queryUpsertTrackedItem, args).Scan(
		&item.ID, &item.IsActive, &item.LastCollectedAt,
		&item.CollectionErrorCount, &item.CreatedAt, &item.UpdatedAt,
	)
}

// GetTrackedItem retrieves a tracked item by its store identifier.
func (s *PostgresStore) GetTrackedItem(
	ctx context.Context,
	store domain.StoreType,
	itemID string,
) (*domain.TrackedItem, error) {
	item := &domain.TrackedItem{}
	err := scanTrackedItem(
		s.pool.QueryRow(ctx, queryGetTrackedItem, string(store), itemID), item)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListTrackedItems returns tracked items, newest first.
func (s *PostgresStore) ListTrackedItems(
	ctx context.Context,
	activeOnly bool,
	limit, offset int,
) ([]domain.TrackedItem, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, queryListTrackedItems, activeOnly, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying tracked items: %w", err)
	}
	defer rows.Close()

	return collectTrackedItems(rows)
}

// SetTrackedItemActive flips the item's active flag.
func (s *PostgresStore) SetTrackedItemActive(
	ctx context.Context,
	store domain.StoreType,
	itemID string,
	active bool,
) error {
	tag, err := s.pool.Exec(ctx, querySetTrackedItemActive, string(store), itemID, active)
	if err != nil {
		return fmt.Errorf("updating tracked item active flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkCollectionError increments the error count and deactivates the item
// once it reaches the threshold. The increment and the deactivation check
// happen in one statement so concurrent markers cannot race past the
// threshold.
func (s *PostgresStore) MarkCollectionError(
	ctx context.Context,
	store domain.StoreType,
	itemID string,
) (bool, error) {
	var count int
	var active bool
	err := s.pool.QueryRow(ctx, queryMarkCollectionError,
		string(store), itemID, ErrorDeactivationThreshold,
	).Scan(&count, &active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("marking collection error: %w", err)
	}

	return !active && count == ErrorDeactivationThreshold, nil
}

// ListItemsToCollect returns active items due for collection, ordered so
// never-collected items come first.
func (s *PostgresStore) ListItemsToCollect(
	ctx context.Context,
	staleBefore time.Time,
	limit int,
) ([]domain.TrackedItem, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, queryListItemsToCollect, staleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("querying items to collect: %w", err)
	}
	defer rows.Close()

	return collectTrackedItems(rows)
}

// InsertPriceHistory appends one successful price observation.
func (s *PostgresStore) InsertPriceHistory(
	ctx context.Context,
	rec *domain.PriceHistoryRecord,
) error {
	args := pgx.NamedArgs{
		"store":               string(rec.Store),
		"item_id":             rec.ItemID,
		"price":               rec.Price,
		"shipping_fee":        rec.ShippingFee,
		"currency":            rec.Currency,
		"normalized_price":    rec.NormalizedPrice,
		"normalized_total":    rec.NormalizedTotal,
		"normalized_currency": rec.NormalizedCurrency,
		"includes_shipping":   rec.IncludesShipping,
		"includes_tax":        rec.IncludesTax,
		"is_sale_price":       rec.IsSalePrice,
		"original_price":      rec.OriginalPrice,
		"bid_count":           rec.BidCount,
		"auction_end_time":    rec.AuctionEndTime,
		"collected_at":        rec.CollectedAt,
		"collection_method":   string(rec.CollectionMethod),
	}

	return s.pool.QueryRow(ctx, queryInsertPriceHistory, args).Scan(&rec.ID)
}

// ListPriceHistory returns history rows since the given time, newest first.
func (s *PostgresStore) ListPriceHistory(
	ctx context.Context,
	store domain.StoreType,
	itemID string,
	since time.Time,
	limit int,
) ([]domain.PriceHistoryRecord, error) {
	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.pool.Query(ctx, queryListPriceHistory,
		string(store), itemID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("querying price history: %w", err)
	}
	defer rows.Close()

	var records []domain.PriceHistoryRecord
	for rows.Next() {
		var rec domain.PriceHistoryRecord
		if err := scanPriceHistoryRow(rows, &rec); err != nil {
			return nil, fmt.Errorf("scanning price history: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating price history: %w", err)
	}

	return records, nil
}

// GetFirstPrice returns the oldest history row for an item.
func (s *PostgresStore) GetFirstPrice(
	ctx context.Context,
	store domain.StoreType,
	itemID string,
) (*domain.PriceHistoryRecord, error) {
	rec := &domain.PriceHistoryRecord{}
	err := scanPriceHistory(
		s.pool.QueryRow(ctx, queryGetFirstPrice, string(store), itemID), rec)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// CreateAlert inserts a new active price alert.
func (s *PostgresStore) CreateAlert(ctx context.Context, a *domain.PriceAlert) error {
	args := pgx.NamedArgs{
		"store":                 string(a.Store),
		"item_id":               a.ItemID,
		"target_price":          a.TargetPrice,
		"price_drop_percentage": a.PriceDropPercentage,
		"notification_target":   a.NotificationTarget,
	}

	return s.pool.QueryRow(ctx, queryCreateAlert, args).Scan(
		&a.ID, &a.IsActive, &a.CreatedAt,
	)
}

// ListActiveAlertsForItem returns the item's active alerts, oldest first.
func (s *PostgresStore) ListActiveAlertsForItem(
	ctx context.Context,
	store domain.StoreType,
	itemID string,
) ([]domain.PriceAlert, error) {
	rows, err := s.pool.Query(ctx, queryListActiveAlertsForItem, string(store), itemID)
	if err != nil {
		return nil, fmt.Errorf("querying active alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.PriceAlert
	for rows.Next() {
		var a domain.PriceAlert
		if err := rows.Scan(
			&a.ID, &a.Store, &a.ItemID, &a.TargetPrice, &a.PriceDropPercentage,
			&a.NotificationTarget, &a.IsActive, &a.TriggeredAt, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alerts: %w", err)
	}

	return alerts, nil
}

// TriggerAlert atomically claims an active alert. The WHERE clause only
// matches while is_active, so of N concurrent triggers exactly one sees an
// affected row.
func (s *PostgresStore) TriggerAlert(ctx context.Context, alertID int64, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, queryTriggerAlert, alertID, at)
	if err != nil {
		return false, fmt.Errorf("triggering alert: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListKeywordCohorts returns per-customer keyword seed lists.
func (s *PostgresStore) ListKeywordCohorts(ctx context.Context) ([]domain.KeywordCohort, error) {
	rows, err := s.pool.Query(ctx, queryListKeywordCohorts)
	if err != nil {
		return nil, fmt.Errorf("querying keyword cohorts: %w", err)
	}
	defer rows.Close()

	var cohorts []domain.KeywordCohort
	for rows.Next() {
		var c domain.KeywordCohort
		if err := rows.Scan(&c.CustomerID, &c.Keywords); err != nil {
			return nil, fmt.Errorf("scanning keyword cohort: %w", err)
		}
		cohorts = append(cohorts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating keyword cohorts: %w", err)
	}

	return cohorts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrackedItem(row rowScanner, item *domain.TrackedItem) error {
	err := row.Scan(
		&item.ID, &item.Store, &item.ItemID, &item.Title, &item.SellerID,
		&item.SellerName, &item.Condition, &item.ListingType,
		&item.ItemURL, &item.ImageURL,
		&item.IsActive, &item.LastCollectedAt, &item.CollectionErrorCount,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func collectTrackedItems(rows pgx.Rows) ([]domain.TrackedItem, error) {
	var items []domain.TrackedItem
	for rows.Next() {
		var item domain.TrackedItem
		if err := scanTrackedItem(rows, &item); err != nil {
			return nil, fmt.Errorf("scanning tracked item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tracked items: %w", err)
	}
	return items, nil
}

func scanPriceHistory(row rowScanner, rec *domain.PriceHistoryRecord) error {
	err := scanPriceHistoryRow(row, rec)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func scanPriceHistoryRow(row rowScanner, rec *domain.PriceHistoryRecord) error {
	return row.Scan(
		&rec.ID, &rec.Store, &rec.ItemID,
		&rec.Price, &rec.ShippingFee, &rec.Currency,
		&rec.NormalizedPrice, &rec.NormalizedTotal, &rec.NormalizedCurrency,
		&rec.IncludesShipping, &rec.IncludesTax, &rec.IsSalePrice, &rec.OriginalPrice,
		&rec.BidCount, &rec.AuctionEndTime,
		&rec.CollectedAt, &rec.CollectionMethod,
	)
}
