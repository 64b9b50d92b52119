package ebay

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	domain "github.com/pricewatch/price-collector/pkg/types"
)

// Scraper extracts listing data from eBay product page HTML. It is the
// fallback collection path when the Browse API is unavailable or fails.
type Scraper struct {
	fetcher PageFetcher
}

// NewScraper creates a scraper using the given page fetcher. A nil fetcher
// gets the default HTTP implementation.
func NewScraper(fetcher PageFetcher) *Scraper {
	if fetcher == nil {
		fetcher = NewHTTPFetcher(nil)
	}
	return &Scraper{fetcher: fetcher}
}

var (
	// Primary page-text pattern for the main price block.
	usPricePattern = regexp.MustCompile(`US\s*\$\s*([\d,]+\.\d{2})`)

	bidCountPattern = regexp.MustCompile(`(\d+)`)

	detailsAboutPattern = regexp.MustCompile(`(?i)^Details about\s*`)

	nonPriceChars = regexp.MustCompile(`[^\d.,]`)
)

// Price selectors in preference order. Current page structure first, then
// legacy ids still served on some regional pages.
var priceSelectors = []string{
	`div[data-testid="x-price-primary"] span`,
	`div[data-testid="x-bin-price"] span`,
	`span.x-price-primary`,
	`div.x-price-primary span`,
	`span[itemprop="price"]`,
	`#prcIsum`,
	`#mm-saleDscPrc`,
	`span.notranslate`,
}

var shippingSelectors = []string{
	`div[data-testid="x-shipping-primary"] span`,
	`span.ux-labels-values--shipping span.ux-textspans--BOLD`,
	`span[id*="shippingCost"]`,
	`#fshippingCost`,
	`div.vim-fulfillment-pane span.ux-textspans`,
}

var titleSelectors = []string{
	`h1.x-item-title__mainTitle span.ux-textspans`,
	`h1.x-item-title__mainTitle`,
	`h1[itemprop="name"]`,
	`h1.product-title`,
	`#itemTitle`,
	`title`,
}

var conditionSelectors = []string{
	`div[data-testid="x-item-condition"] span`,
	`span.ux-labels-values--condition span.ux-textspans`,
	`div.x-item-condition span`,
	`#vi-itm-cond`,
}

var imageSelectors = []string{
	`div.ux-image-carousel-item img`,
	`img[itemprop="image"]`,
	`#icImg`,
}

// CollectPrice scrapes the listing page for itemID in the given region.
func (s *Scraper) CollectPrice(ctx context.Context, itemID, region string) domain.CollectionResult {
	url := CanonicalURL(itemID, region)

	html, err := s.fetcher.FetchPage(ctx, url)
	if err != nil {
		var scrapeErr *scrapeError
		if errors.As(err, &scrapeErr) {
			return domain.NewFailureResult(
				domain.StoreEbay, itemID, domain.MethodScraping,
				scrapeErr.code, scrapeErr.message,
			)
		}
		return domain.NewFailureResult(
			domain.StoreEbay, itemID, domain.MethodScraping,
			domain.ErrCodeUnknown, err.Error(),
		)
	}

	return s.ParsePage(html, itemID)
}

// ParsePage parses listing page HTML into a collection result.
func (s *Scraper) ParsePage(html, itemID string) domain.CollectionResult {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return domain.NewFailureResult(
			domain.StoreEbay, itemID, domain.MethodScraping,
			domain.ErrCodeParseError, "parsing page HTML: "+err.Error(),
		)
	}

	// Ended listings short-circuit before any extraction.
	if unavailableBanner(doc) {
		return domain.NewFailureResult(
			domain.StoreEbay, itemID, domain.MethodScraping,
			domain.ErrCodeItemUnavailable,
			"this listing has ended or is no longer available",
		)
	}

	price, currency, ok := extractPrice(doc)
	if !ok {
		return domain.NewFailureResult(
			domain.StoreEbay, itemID, domain.MethodScraping,
			domain.ErrCodePriceNotFound, "could not extract price from page",
		)
	}

	shippingFee, _ := extractShipping(doc)
	priceData := domain.NewPriceData(price, shippingFee, currency)

	meta := &domain.ItemMetadata{
		Title:       extractTitle(doc),
		Condition:   extractCondition(doc),
		ListingType: extractListingType(doc),
		ImageURL:    extractImage(doc),
	}
	meta.SellerID, meta.SellerName = extractSeller(doc)

	result := domain.CollectionResult{
		Success:          true,
		Store:            domain.StoreEbay,
		ItemID:           itemID,
		Metadata:         meta,
		PriceData:        &priceData,
		CollectedAt:      time.Now().UTC(),
		CollectionMethod: domain.MethodScraping,
	}

	if meta.ListingType != domain.ListingBuyItNow {
		if bids, ok := extractBidCount(doc); ok {
			result.BidCount = &bids
		}
	}

	return result
}

func unavailableBanner(doc *goquery.Document) bool {
	banner := doc.Find(`div.error__title, span.vi-err`).First()
	if banner.Length() == 0 {
		return false
	}
	return strings.Contains(strings.ToLower(strings.TrimSpace(banner.Text())), "no longer available")
}

// extractPrice tries the raw page text for the main "US $X.XX" price block
// first, then the selector chain, then microdata meta tags.
func extractPrice(doc *goquery.Document) (float64, string, bool) {
	if m := usPricePattern.FindStringSubmatch(doc.Text()); m != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil {
			return v, "USD", true
		}
	}

	for _, selector := range priceSelectors {
		var price float64
		var currency string
		found := false
		doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			v, cur, ok := parsePriceText(strings.TrimSpace(sel.Text()))
			if ok && v > 0 {
				price, currency, found = v, cur, true
				return false
			}
			return true
		})
		if found {
			return price, currency, true
		}
	}

	if meta := doc.Find(`meta[itemprop="price"]`).First(); meta.Length() > 0 {
		content, _ := meta.Attr("content")
		if v, err := strconv.ParseFloat(content, 64); err == nil {
			currency := "USD"
			if cm := doc.Find(`meta[itemprop="priceCurrency"]`).First(); cm.Length() > 0 {
				if c, ok := cm.Attr("content"); ok && c != "" {
					currency = c
				}
			}
			return v, currency, true
		}
	}

	return 0, "USD", false
}

// parsePriceText extracts an amount and currency from a price string like
// "US $636.58" or "£1.234,56". Currency is inferred from the symbol,
// defaulting to USD.
func parsePriceText(text string) (float64, string, bool) {
	currency := "USD"
	switch {
	case strings.Contains(text, "£") || strings.Contains(text, "GBP"):
		currency = "GBP"
	case strings.Contains(text, "€") || strings.Contains(text, "EUR"):
		currency = "EUR"
	case strings.Contains(text, "C$") || strings.Contains(text, "CAD"):
		currency = "CAD"
	case strings.Contains(text, "AU$") || strings.Contains(text, "AUD"):
		currency = "AUD"
	}

	cleaned := nonPriceChars.ReplaceAllString(text, "")

	switch {
	case strings.Contains(cleaned, ",") && strings.Contains(cleaned, "."):
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case strings.Contains(cleaned, ","):
		// A trailing two-digit group after a comma reads as a European
		// decimal separator; anything else as thousands grouping.
		parts := strings.Split(cleaned, ",")
		if len(parts[len(parts)-1]) == 2 {
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, currency, false
	}
	return v, currency, true
}

// extractShipping returns the shipping fee and whether shipping is free.
// Free-shipping phrases anywhere on the page win before selector lookups.
func extractShipping(doc *goquery.Document) (float64, bool) {
	pageText := strings.ToLower(doc.Text())
	for _, phrase := range []string{"free shipping", "free 2-3 day", "free delivery"} {
		if strings.Contains(pageText, phrase) {
			return 0, true
		}
	}

	for _, selector := range shippingSelectors {
		var fee float64
		free, found := false, false
		doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			text := strings.ToLower(strings.TrimSpace(sel.Text()))
			if strings.Contains(text, "free") {
				free, found = true, true
				return false
			}
			if v, _, ok := parsePriceText(text); ok && v > 0 {
				fee, found = v, true
				return false
			}
			return true
		})
		if found {
			if free {
				return 0, true
			}
			return fee, false
		}
	}

	return 0, false
}

func extractTitle(doc *goquery.Document) string {
	for _, selector := range titleSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		title := strings.TrimSpace(sel.Text())
		if selector == "title" {
			title = strings.TrimSpace(strings.ReplaceAll(title, " | eBay", ""))
		}
		title = detailsAboutPattern.ReplaceAllString(title, "")
		if len(title) > 5 {
			return title
		}
	}
	return "Unknown Item"
}

// extractSeller looks for storefront links first, then the seller card.
func extractSeller(doc *goquery.Document) (string, string) {
	var sellerID, sellerName string

	doc.Find(`a[href*="/str/"]`).EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		_, after, ok := strings.Cut(href, "/str/")
		if !ok {
			return true
		}
		id := strings.SplitN(strings.SplitN(after, "?", 2)[0], "/", 2)[0]
		name := strings.TrimSpace(link.Text())
		if name == "" {
			name = id
		}
		if len(name) > 1 {
			sellerID, sellerName = id, name
			return false
		}
		return true
	})
	if sellerID != "" {
		return sellerID, sellerName
	}

	fallbacks := []string{
		`a.ux-seller-section__item--link`,
		`a[data-testid="x-sellercard-atf__info__about-seller"]`,
		`span.ux-seller-section__item--seller`,
	}
	for _, selector := range fallbacks {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		name := strings.TrimSpace(sel.Text())
		href, _ := sel.Attr("href")
		var id string
		if _, after, ok := strings.Cut(href, "/usr/"); ok {
			id = strings.SplitN(after, "?", 2)[0]
		} else if _, after, ok := strings.Cut(href, "/str/"); ok {
			id = strings.SplitN(after, "?", 2)[0]
		}
		if name != "" {
			return id, name
		}
	}

	return "", ""
}

// extractCondition checks coarse page-text phrases first, then the
// condition selectors.
func extractCondition(doc *goquery.Document) domain.ItemCondition {
	pageText := strings.ToLower(doc.Text())
	switch {
	case strings.Contains(pageText, "brand new") || strings.Contains(pageText, "condition: new"):
		return domain.ConditionNew
	case strings.Contains(pageText, "refurbished"):
		return domain.ConditionRefurbished
	case strings.Contains(pageText, "pre-owned") || strings.Contains(pageText, "used"):
		return domain.ConditionUsed
	case strings.Contains(pageText, "for parts"):
		return domain.ConditionForParts
	}

	var condition = domain.ConditionUnknown
	for _, selector := range conditionSelectors {
		doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			text := strings.ToLower(strings.TrimSpace(sel.Text()))
			switch {
			case strings.Contains(text, "new") && !strings.Contains(text, "like") &&
				!strings.Contains(text, "renew"):
				condition = domain.ConditionNew
			case strings.Contains(text, "refurbished") || strings.Contains(text, "like new") ||
				strings.Contains(text, "renewed"):
				condition = domain.ConditionRefurbished
			case strings.Contains(text, "used") || strings.Contains(text, "pre-owned") ||
				strings.Contains(text, "very good") || strings.Contains(text, "good"):
				condition = domain.ConditionUsed
			case strings.Contains(text, "parts"):
				condition = domain.ConditionForParts
			default:
				return true
			}
			return false
		})
		if condition != domain.ConditionUnknown {
			return condition
		}
	}
	return condition
}

func extractListingType(doc *goquery.Document) domain.ListingType {
	bid := doc.Find(`span[id*="bidCount"], span.vi-VR-bid-count`).First()
	if bid.Length() == 0 {
		return domain.ListingBuyItNow
	}
	bin := doc.Find(`span.x-buybox__cta-text`).First()
	if bin.Length() > 0 && strings.Contains(strings.ToLower(bin.Text()), "buy it now") {
		return domain.ListingAuctionWithBIN
	}
	return domain.ListingAuction
}

func extractImage(doc *goquery.Document) string {
	for _, selector := range imageSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		src, ok := sel.Attr("src")
		if !ok || src == "" {
			src, _ = sel.Attr("data-src")
		}
		if src != "" && !strings.HasPrefix(src, "data:") {
			return src
		}
	}
	return ""
}

func extractBidCount(doc *goquery.Document) (int, bool) {
	sel := doc.Find(`span[id*="bidCount"]`).First()
	if sel.Length() == 0 {
		return 0, false
	}
	m := bidCountPattern.FindStringSubmatch(sel.Text())
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
