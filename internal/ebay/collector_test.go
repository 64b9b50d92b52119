package ebay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/pricewatch/price-collector/pkg/types"
)

type stubAPI struct {
	result domain.CollectionResult
	calls  int
}

func (s *stubAPI) CollectPrice(context.Context, string) domain.CollectionResult {
	s.calls++
	return s.result
}

func (s *stubAPI) ValidateItemExists(context.Context, string) (bool, error) {
	return s.result.Success, nil
}

type stubScraper struct {
	result     domain.CollectionResult
	calls      int
	lastRegion string
}

func (s *stubScraper) CollectPrice(
	_ context.Context, _ string, region string,
) domain.CollectionResult {
	s.calls++
	s.lastRegion = region
	return s.result
}

func successResult(method domain.CollectionMethod) domain.CollectionResult {
	pd := domain.NewPriceData(99.95, 0, "USD")
	return domain.CollectionResult{
		Success:          true,
		Store:            domain.StoreEbay,
		ItemID:           "256123456789",
		PriceData:        &pd,
		Metadata:         &domain.ItemMetadata{Title: "Test Item"},
		CollectionMethod: method,
	}
}

func TestCollector_InvalidStore(t *testing.T) {
	t.Parallel()

	c := NewCollector(nil, &stubScraper{}, nil)
	result := c.CollectPrice(context.Background(),
		domain.StoreIdentifier{Store: domain.StoreAmazon, ItemID: "256123456789"}, true)

	require.False(t, result.Success)
	assert.Equal(t, domain.ErrCodeInvalidStore, result.ErrorCode)
	assert.Equal(t, domain.StoreAmazon, result.Store)
}

func TestCollector_InvalidItemID(t *testing.T) {
	t.Parallel()

	api := &stubAPI{}
	scraper := &stubScraper{}
	c := NewCollector(api, scraper, nil)

	result := c.CollectPrice(context.Background(),
		domain.NewEbayIdentifier("abc"), true)

	require.False(t, result.Success)
	assert.Equal(t, domain.ErrCodeInvalidItemID, result.ErrorCode)
	assert.Zero(t, api.calls)
	assert.Zero(t, scraper.calls)
}

func TestCollector_APISuccessSkipsScraper(t *testing.T) {
	t.Parallel()

	api := &stubAPI{result: successResult(domain.MethodAPI)}
	scraper := &stubScraper{}
	c := NewCollector(api, scraper, nil)

	result := c.CollectPrice(context.Background(),
		domain.NewEbayIdentifier("256123456789"), true)

	require.True(t, result.Success)
	assert.Equal(t, domain.MethodAPI, result.CollectionMethod)
	assert.Equal(t, 1, api.calls)
	assert.Zero(t, scraper.calls)
}

func TestCollector_APIFailureFallsBackOnce(t *testing.T) {
	t.Parallel()

	api := &stubAPI{result: domain.NewFailureResult(
		domain.StoreEbay, "256123456789", domain.MethodAPI,
		domain.ErrCodeAPIError, "server error")}
	scraper := &stubScraper{result: successResult(domain.MethodScraping)}
	c := NewCollector(api, scraper, nil)

	result := c.CollectPrice(context.Background(),
		domain.NewEbayIdentifier("256123456789"), true)

	require.True(t, result.Success)
	assert.Equal(t, domain.MethodScraping, result.CollectionMethod)
	assert.Equal(t, 1, api.calls)
	assert.Equal(t, 1, scraper.calls)
}

func TestCollector_ScraperFailureReturnedUnchanged(t *testing.T) {
	t.Parallel()

	api := &stubAPI{result: domain.NewFailureResult(
		domain.StoreEbay, "256123456789", domain.MethodAPI,
		domain.ErrCodeAPIError, "server error")}
	scraper := &stubScraper{result: domain.NewFailureResult(
		domain.StoreEbay, "256123456789", domain.MethodScraping,
		domain.ErrCodePriceNotFound, "could not extract price from page")}
	c := NewCollector(api, scraper, nil)

	result := c.CollectPrice(context.Background(),
		domain.NewEbayIdentifier("256123456789"), true)

	require.False(t, result.Success)
	assert.Equal(t, domain.ErrCodePriceNotFound, result.ErrorCode)
	assert.Equal(t, domain.MethodScraping, result.CollectionMethod)
	assert.Equal(t, 1, scraper.calls)
}

func TestCollector_FallbackDisabled(t *testing.T) {
	t.Parallel()

	api := &stubAPI{result: domain.NewFailureResult(
		domain.StoreEbay, "256123456789", domain.MethodAPI,
		domain.ErrCodeAPIError, "server error")}
	scraper := &stubScraper{}
	c := NewCollector(api, scraper, nil)

	result := c.CollectPrice(context.Background(),
		domain.NewEbayIdentifier("256123456789"), false)

	require.False(t, result.Success)
	assert.Equal(t, domain.ErrCodeCollectionFailed, result.ErrorCode)
	assert.Zero(t, scraper.calls)
}

func TestCollector_NoAPIGoesStraightToScraper(t *testing.T) {
	t.Parallel()

	scraper := &stubScraper{result: successResult(domain.MethodScraping)}
	c := NewCollector(nil, scraper, nil)

	result := c.CollectPrice(context.Background(),
		domain.NewEbayIdentifier("256123456789"), true)

	require.True(t, result.Success)
	assert.Equal(t, 1, scraper.calls)
}

func TestCollector_CollectPriceFromURL(t *testing.T) {
	t.Parallel()

	api := &stubAPI{result: successResult(domain.MethodAPI)}
	c := NewCollector(api, &stubScraper{}, nil)

	result := c.CollectPriceFromURL(context.Background(),
		"https://www.ebay.com/itm/Some-Title/256123456789?x=1", true)
	require.True(t, result.Success)
	assert.Equal(t, "256123456789", result.ItemID)

	bad := c.CollectPriceFromURL(context.Background(), "https://example.com/x", true)
	require.False(t, bad.Success)
	assert.Equal(t, domain.ErrCodeNotSupportedDomain, bad.ErrorCode)

	noID := c.CollectPriceFromURL(context.Background(),
		"https://www.ebay.com/sch/i.html?_nkw=rtx+4090", true)
	require.False(t, noID.Success)
	assert.Equal(t, domain.ErrCodeIDNotFound, noID.ErrorCode)
}

func TestCollector_ScraperRegionFromURL(t *testing.T) {
	t.Parallel()

	scraper := &stubScraper{result: successResult(domain.MethodScraping)}
	c := NewCollector(nil, scraper, nil)

	result := c.CollectPriceFromURL(context.Background(),
		"https://www.ebay.de/itm/195123456789", true)
	require.True(t, result.Success)
	assert.Equal(t, "DE", scraper.lastRegion)

	// Without a URL the default region applies.
	c.CollectPrice(context.Background(),
		domain.NewEbayIdentifier("256123456789"), true)
	assert.Equal(t, "US", scraper.lastRegion)
}
