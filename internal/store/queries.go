package store

// SQL query constants organized by entity.
// All SQL lives here; PostgresStore methods reference these constants.

// Tracked item queries.
const (
	queryUpsertTrackedItem = `
		INSERT INTO tracked_items (
			store, item_id, title, seller_id, seller_name,
			condition, listing_type, item_url, image_url,
			is_active, last_collected_at, collection_error_count,
			created_at, updated_at
		) VALUES (
			@store, @item_id, @title, @seller_id, @seller_name,
			@condition, @listing_type, @item_url, @image_url,
			TRUE, now(), 0, now(), now()
		)
		ON CONFLICT (store, item_id) DO UPDATE SET
			title = EXCLUDED.title,
			seller_id = EXCLUDED.seller_id,
			seller_name = EXCLUDED.seller_name,
			condition = EXCLUDED.condition,
			listing_type = EXCLUDED.listing_type,
			item_url = EXCLUDED.item_url,
			image_url = EXCLUDED.image_url,
			is_active = TRUE,
			last_collected_at = now(),
			collection_error_count = 0,
			updated_at = now()
		RETURNING id, is_active, last_collected_at, collection_error_count, created_at, updated_at`

	queryGetTrackedItem = `
		SELECT id, store, item_id, COALESCE(title, ''), COALESCE(seller_id, ''),
			COALESCE(seller_name, ''), condition, listing_type,
			COALESCE(item_url, ''), COALESCE(image_url, ''),
			is_active, last_collected_at, collection_error_count,
			created_at, updated_at
		FROM tracked_items
		WHERE store = $1 AND item_id = $2`

	queryListTrackedItems = `
		SELECT id, store, item_id, COALESCE(title, ''), COALESCE(seller_id, ''),
			COALESCE(seller_name, ''), condition, listing_type,
			COALESCE(item_url, ''), COALESCE(image_url, ''),
			is_active, last_collected_at, collection_error_count,
			created_at, updated_at
		FROM tracked_items
		WHERE ($1 = FALSE OR is_active)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	querySetTrackedItemActive = `
		UPDATE tracked_items SET
			is_active = $3,
			updated_at = now()
		WHERE store = $1 AND item_id = $2`

	queryMarkCollectionError = `
		UPDATE tracked_items SET
			collection_error_count = collection_error_count + 1,
			is_active = is_active AND (collection_error_count + 1 < $3),
			updated_at = now()
		WHERE store = $1 AND item_id = $2
		RETURNING collection_error_count, is_active`

	queryListItemsToCollect = `
		SELECT id, store, item_id, COALESCE(title, ''), COALESCE(seller_id, ''),
			COALESCE(seller_name, ''), condition, listing_type,
			COALESCE(item_url, ''), COALESCE(image_url, ''),
			is_active, last_collected_at, collection_error_count,
			created_at, updated_at
		FROM tracked_items
		WHERE is_active
			AND (last_collected_at IS NULL OR last_collected_at < $1)
		ORDER BY last_collected_at ASC NULLS FIRST
		LIMIT $2`
)

// Price history queries.
const (
	queryInsertPriceHistory = `
		INSERT INTO price_history (
			store, item_id,
			price, shipping_fee, currency,
			normalized_price, normalized_total, normalized_currency,
			includes_shipping, includes_tax, is_sale_price, original_price,
			bid_count, auction_end_time,
			collected_at, collection_method
		) VALUES (
			@store, @item_id,
			@price, @shipping_fee, @currency,
			@normalized_price, @normalized_total, @normalized_currency,
			@includes_shipping, @includes_tax, @is_sale_price, @original_price,
			@bid_count, @auction_end_time,
			@collected_at, @collection_method
		)
		RETURNING id`

	queryListPriceHistory = `
		SELECT id, store, item_id,
			price, shipping_fee, currency,
			normalized_price, normalized_total, normalized_currency,
			includes_shipping, includes_tax, is_sale_price, original_price,
			bid_count, auction_end_time,
			collected_at, collection_method
		FROM price_history
		WHERE store = $1 AND item_id = $2 AND collected_at >= $3
		ORDER BY collected_at DESC
		LIMIT $4`

	queryGetFirstPrice = `
		SELECT id, store, item_id,
			price, shipping_fee, currency,
			normalized_price, normalized_total, normalized_currency,
			includes_shipping, includes_tax, is_sale_price, original_price,
			bid_count, auction_end_time,
			collected_at, collection_method
		FROM price_history
		WHERE store = $1 AND item_id = $2
		ORDER BY collected_at ASC
		LIMIT 1`
)

// Alert queries.
const (
	queryCreateAlert = `
		INSERT INTO price_alerts (
			store, item_id, target_price, price_drop_percentage,
			notification_target, is_active, created_at
		) VALUES (
			@store, @item_id, @target_price, @price_drop_percentage,
			@notification_target, TRUE, now()
		)
		RETURNING id, is_active, created_at`

	queryListActiveAlertsForItem = `
		SELECT id, store, item_id, target_price, price_drop_percentage,
			COALESCE(notification_target, ''), is_active, triggered_at, created_at
		FROM price_alerts
		WHERE store = $1 AND item_id = $2 AND is_active
		ORDER BY created_at ASC`

	queryTriggerAlert = `
		UPDATE price_alerts SET
			is_active = FALSE,
			triggered_at = $2
		WHERE id = $1 AND is_active`
)

// Keyword cohort queries.
const (
	queryListKeywordCohorts = `
		SELECT customer_id, array_agg(keyword ORDER BY keyword)
		FROM keyword_lookup
		GROUP BY customer_id
		ORDER BY customer_id`
)
