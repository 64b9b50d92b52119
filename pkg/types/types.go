// Package domain defines the core business types for the price collector.
package domain

import (
	"time"
)

// StoreType identifies a supported marketplace.
type StoreType string

// Store type constants.
const (
	StoreEbay    StoreType = "ebay"
	StoreAmazon  StoreType = "amazon"
	StoreWalmart StoreType = "walmart"
)

// ItemCondition represents normalized item condition.
type ItemCondition string

// Condition constants.
const (
	ConditionNew         ItemCondition = "new"
	ConditionUsed        ItemCondition = "used"
	ConditionRefurbished ItemCondition = "refurbished"
	ConditionForParts    ItemCondition = "for_parts"
	ConditionUnknown     ItemCondition = "unknown"
)

// ListingType represents the marketplace listing format.
type ListingType string

// Listing type constants.
const (
	ListingBuyItNow       ListingType = "buy_it_now"
	ListingAuction        ListingType = "auction"
	ListingAuctionWithBIN ListingType = "auction_with_bin"
)

// CollectionMethod records which path produced a result.
type CollectionMethod string

// Collection method constants.
const (
	MethodAPI      CollectionMethod = "api"
	MethodScraping CollectionMethod = "scraping"
)

// Canonical error codes carried by failed collection results. Every
// component-level failure maps to one of these; nothing else crosses a
// component boundary.
const (
	ErrCodeAuthNotConfigured  = "AUTH_NOT_CONFIGURED"
	ErrCodeAuthFailed         = "AUTH_FAILED"
	ErrCodeItemNotFound       = "ITEM_NOT_FOUND"
	ErrCodeAPIError           = "API_ERROR"
	ErrCodeParseError         = "PARSE_ERROR"
	ErrCodeItemUnavailable    = "ITEM_UNAVAILABLE"
	ErrCodePriceNotFound      = "PRICE_NOT_FOUND"
	ErrCodeInvalidItemID      = "INVALID_ITEM_ID"
	ErrCodeInvalidStore       = "INVALID_STORE"
	ErrCodeCollectionFailed   = "COLLECTION_FAILED"
	ErrCodeNotSupportedDomain = "NOT_SUPPORTED_DOMAIN"
	ErrCodeIDNotFound         = "ID_NOT_FOUND"
	ErrCodeUnknown            = "UNKNOWN_ERROR"
)

// StoreIdentifier is the canonical (store, item id) pair. Treat values as
// immutable once constructed; item id format is store-specific and is
// validated by the owning collector before use.
type StoreIdentifier struct {
	Store  StoreType `json:"store"`
	ItemID string    `json:"item_id"`
}

// NewEbayIdentifier builds an identifier for an eBay item.
func NewEbayIdentifier(itemID string) StoreIdentifier {
	return StoreIdentifier{Store: StoreEbay, ItemID: itemID}
}

// ItemMetadata holds descriptive listing fields common to all stores.
type ItemMetadata struct {
	Title       string        `json:"title"`
	SellerID    string        `json:"seller_id,omitempty"`
	SellerName  string        `json:"seller_name,omitempty"`
	Condition   ItemCondition `json:"condition"`
	ListingType ListingType   `json:"listing_type"`
	ImageURL    string        `json:"image_url,omitempty"`
	Category    string        `json:"category,omitempty"`
}

// PriceData is a raw price observation in its original currency.
// TotalPrice is computed exactly once by NewPriceData and never mutated
// independently of its components.
type PriceData struct {
	Price       float64 `json:"price"`
	ShippingFee float64 `json:"shipping_fee"`
	Currency    string  `json:"currency"`
	TotalPrice  float64 `json:"total_price"`
}

// NewPriceData builds a PriceData with the total derived from its parts.
func NewPriceData(price, shippingFee float64, currency string) PriceData {
	return PriceData{
		Price:       price,
		ShippingFee: shippingFee,
		Currency:    currency,
		TotalPrice:  price + shippingFee,
	}
}

// NormalizedPrice is a price converted into the comparison currency.
// ExchangeRate and ExchangeRateDate are set only when the source currency
// differed from the target; same-currency conversion leaves them nil.
type NormalizedPrice struct {
	NormalizedPrice  float64    `json:"normalized_price"`
	NormalizedTotal  float64    `json:"normalized_total"`
	Currency         string     `json:"currency"`
	IncludesShipping bool       `json:"includes_shipping"`
	IncludesTax      bool       `json:"includes_tax"`
	ExchangeRate     *float64   `json:"exchange_rate,omitempty"`
	ExchangeRateDate *time.Time `json:"exchange_rate_date,omitempty"`
}

// CollectionResult is the tagged outcome of one collection attempt.
// Exactly one of the success payload (Metadata/PriceData) and the error
// payload (ErrorCode/ErrorMessage) is populated; Success discriminates.
type CollectionResult struct {
	Success bool      `json:"success"`
	Store   StoreType `json:"store"`
	ItemID  string    `json:"item_id"`

	// Success payload.
	Metadata        *ItemMetadata    `json:"metadata,omitempty"`
	PriceData       *PriceData       `json:"price_data,omitempty"`
	NormalizedPrice *NormalizedPrice `json:"normalized_price,omitempty"`
	BidCount        *int             `json:"bid_count,omitempty"`
	AuctionEndTime  *time.Time       `json:"auction_end_time,omitempty"`
	IsSalePrice     bool             `json:"is_sale_price,omitempty"`
	OriginalPrice   *float64         `json:"original_price,omitempty"`

	// Error payload.
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	CollectedAt      time.Time        `json:"collected_at"`
	CollectionMethod CollectionMethod `json:"collection_method"`
}

// NewFailureResult builds a failed result for the given identifier.
func NewFailureResult(
	store StoreType,
	itemID string,
	method CollectionMethod,
	code, message string,
) CollectionResult {
	return CollectionResult{
		Success:          false,
		Store:            store,
		ItemID:           itemID,
		ErrorCode:        code,
		ErrorMessage:     message,
		CollectedAt:      time.Now().UTC(),
		CollectionMethod: method,
	}
}

// URLParseResult is the structured outcome of product URL parsing.
// Parsing never raises for malformed input.
type URLParseResult struct {
	Success      bool      `json:"success"`
	Store        StoreType `json:"store,omitempty"`
	ItemID       string    `json:"item_id,omitempty"`
	OriginalURL  string    `json:"original_url"`
	CanonicalURL string    `json:"canonical_url,omitempty"`
	ErrorCode    string    `json:"error_code,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// TrackedItem is the latest-known summary row for a monitored listing,
// one per (store, item_id).
type TrackedItem struct {
	ID                   int64         `json:"id"                          db:"id"`
	Store                StoreType     `json:"store"                       db:"store"`
	ItemID               string        `json:"item_id"                     db:"item_id"`
	Title                string        `json:"title,omitempty"             db:"title"`
	SellerID             string        `json:"seller_id,omitempty"         db:"seller_id"`
	SellerName           string        `json:"seller_name,omitempty"       db:"seller_name"`
	Condition            ItemCondition `json:"condition"                   db:"condition"`
	ListingType          ListingType   `json:"listing_type"                db:"listing_type"`
	ItemURL              string        `json:"item_url"                    db:"item_url"`
	ImageURL             string        `json:"image_url,omitempty"         db:"image_url"`
	IsActive             bool          `json:"is_active"                   db:"is_active"`
	LastCollectedAt      *time.Time    `json:"last_collected_at,omitempty" db:"last_collected_at"`
	CollectionErrorCount int           `json:"collection_error_count"      db:"collection_error_count"`
	CreatedAt            time.Time     `json:"created_at"                  db:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"                  db:"updated_at"`
}

// PriceHistoryRecord is one successful collection attempt. Rows are
// append-only and never updated after insert.
type PriceHistoryRecord struct {
	ID     int64     `json:"id"      db:"id"`
	Store  StoreType `json:"store"   db:"store"`
	ItemID string    `json:"item_id" db:"item_id"`

	Price       float64 `json:"price"        db:"price"`
	ShippingFee float64 `json:"shipping_fee" db:"shipping_fee"`
	Currency    string  `json:"currency"     db:"currency"`

	NormalizedPrice    float64 `json:"normalized_price"    db:"normalized_price"`
	NormalizedTotal    float64 `json:"normalized_total"    db:"normalized_total"`
	NormalizedCurrency string  `json:"normalized_currency" db:"normalized_currency"`

	IncludesShipping bool     `json:"includes_shipping"        db:"includes_shipping"`
	IncludesTax      bool     `json:"includes_tax"             db:"includes_tax"`
	IsSalePrice      bool     `json:"is_sale_price"            db:"is_sale_price"`
	OriginalPrice    *float64 `json:"original_price,omitempty" db:"original_price"`

	BidCount       *int       `json:"bid_count,omitempty"        db:"bid_count"`
	AuctionEndTime *time.Time `json:"auction_end_time,omitempty" db:"auction_end_time"`

	CollectedAt      time.Time        `json:"collected_at"      db:"collected_at"`
	CollectionMethod CollectionMethod `json:"collection_method" db:"collection_method"`
}

// PriceAlert is a one-shot notification rule. Once triggered, IsActive
// becomes false and TriggeredAt is set; an alert fires at most once.
type PriceAlert struct {
	ID                  int64      `json:"id"                              db:"id"`
	Store               StoreType  `json:"store"                           db:"store"`
	ItemID              string     `json:"item_id"                         db:"item_id"`
	TargetPrice         *float64   `json:"target_price,omitempty"          db:"target_price"`
	PriceDropPercentage *float64   `json:"price_drop_percentage,omitempty" db:"price_drop_percentage"`
	NotificationTarget  string     `json:"notification_target,omitempty"   db:"notification_target"`
	IsActive            bool       `json:"is_active"                       db:"is_active"`
	TriggeredAt         *time.Time `json:"triggered_at,omitempty"          db:"triggered_at"`
	CreatedAt           time.Time  `json:"created_at"                      db:"created_at"`
}

// PriceHistoryStats summarizes a time window of history rows. All
// comparisons use NormalizedTotal so cross-currency rows stay comparable.
type PriceHistoryStats struct {
	Store        StoreType `json:"store"`
	ItemID       string    `json:"item_id"`
	Title        string    `json:"title,omitempty"`
	TotalRecords int       `json:"total_records"`

	CurrentPrice *PriceData `json:"current_price,omitempty"`
	LowestPrice  *PriceData `json:"lowest_price,omitempty"`
	HighestPrice *PriceData `json:"highest_price,omitempty"`
	AveragePrice float64    `json:"average_price,omitempty"`

	PriceChange24h    *float64 `json:"price_change_24h,omitempty"`
	PriceChangePct24h *float64 `json:"price_change_percentage_24h,omitempty"`

	History []PriceHistoryRecord `json:"history,omitempty"`
}

// KeywordCohort is one customer's crawl seed from the keyword-lookup
// source that drives batch collection.
type KeywordCohort struct {
	CustomerID int64    `json:"customer_id"`
	Keywords   []string `json:"keywords"`
}
