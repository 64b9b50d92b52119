package ebay

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	domain "github.com/pricewatch/price-collector/pkg/types"
)

// conditionMap translates eBay condition enums into the normalized
// vocabulary. Unlisted enums map to unknown.
var conditionMap = map[string]domain.ItemCondition{
	"NEW":        domain.ConditionNew,
	"LIKE_NEW":   domain.ConditionRefurbished,
	"VERY_GOOD":  domain.ConditionUsed,
	"GOOD":       domain.ConditionUsed,
	"ACCEPTABLE": domain.ConditionUsed,
	"FOR_PARTS":  domain.ConditionForParts,
}

func mapCondition(s string) domain.ItemCondition {
	if c, ok := conditionMap[s]; ok {
		return c
	}
	return domain.ConditionUnknown
}

// mapListingType derives the listing format from the buyingOptions set.
// AUCTION alone is a pure auction; AUCTION with FIXED_PRICE is an auction
// with a buy-it-now option; anything else is fixed price.
func mapListingType(buyingOptions []string) domain.ListingType {
	if slices.Contains(buyingOptions, "AUCTION") {
		if slices.Contains(buyingOptions, "FIXED_PRICE") {
			return domain.ListingAuctionWithBIN
		}
		return domain.ListingAuction
	}
	return domain.ListingBuyItNow
}

// parseItemResponse converts a Browse API item payload into a collection
// result. Any malformed field yields a PARSE_ERROR failure rather than a
// partial success.
func parseItemResponse(item *itemResponse, itemID string) domain.CollectionResult {
	price, err := parseMoney(item.Price.Value)
	if err != nil {
		return domain.NewFailureResult(
			domain.StoreEbay, itemID, domain.MethodAPI,
			domain.ErrCodeParseError,
			fmt.Sprintf("parsing price %q: %v", item.Price.Value, err),
		)
	}
	currency := item.Price.Currency
	if currency == "" {
		currency = "USD"
	}

	var shipping float64
	if len(item.ShippingOptions) > 0 && item.ShippingOptions[0].ShippingCost != nil {
		shipping, err = parseMoney(item.ShippingOptions[0].ShippingCost.Value)
		if err != nil {
			return domain.NewFailureResult(
				domain.StoreEbay, itemID, domain.MethodAPI,
				domain.ErrCodeParseError,
				fmt.Sprintf("parsing shipping cost: %v", err),
			)
		}
	}

	priceData := domain.NewPriceData(price, shipping, currency)

	listingType := mapListingType(item.BuyingOptions)

	meta := &domain.ItemMetadata{
		Title:       titleOrUnknown(item.Title),
		Condition:   mapCondition(item.Condition),
		ListingType: listingType,
		Category:    item.CategoryPath,
	}
	if item.Seller != nil {
		meta.SellerID = item.Seller.Username
		meta.SellerName = item.Seller.Username
	}
	if item.Image != nil {
		meta.ImageURL = item.Image.ImageURL
	}

	isSale, originalPrice := item.IsSale()

	result := domain.CollectionResult{
		Success:          true,
		Store:            domain.StoreEbay,
		ItemID:           itemID,
		Metadata:         meta,
		PriceData:        &priceData,
		IsSalePrice:      isSale,
		OriginalPrice:    originalPrice,
		CollectedAt:      time.Now().UTC(),
		CollectionMethod: domain.MethodAPI,
	}

	// Auction listings carry bid count and end time.
	if listingType == domain.ListingAuction || listingType == domain.ListingAuctionWithBIN {
		bidCount := item.BidCount
		result.BidCount = &bidCount
		if item.ItemEndDate != "" {
			if end, err := time.Parse(time.RFC3339, item.ItemEndDate); err == nil {
				result.AuctionEndTime = &end
			}
		}
	}

	return result
}

// IsSale reports whether the listing advertises a marked-down price, along
// with the original price when it does.
func (r *itemResponse) IsSale() (bool, *float64) {
	if r.MarketingPrice == nil || r.MarketingPrice.OriginalPrice == nil {
		return false, nil
	}
	original, err := parseMoney(r.MarketingPrice.OriginalPrice.Value)
	if err != nil {
		return false, nil
	}
	current, err := parseMoney(r.Price.Value)
	if err != nil {
		return false, nil
	}
	if original > current {
		return true, &original
	}
	return false, nil
}

func parseMoney(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func titleOrUnknown(title string) string {
	if title == "" {
		return "Unknown"
	}
	return title
}
