package ebay

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	domain "github.com/pricewatch/price-collector/pkg/types"
)

// Regional eBay domains recognized by the URL parser.
var supportedDomains = []string{
	"ebay.com",
	"ebay.co.uk",
	"ebay.de",
	"ebay.fr",
	"ebay.ca",
	"ebay.com.au",
	"ebay.it",
	"ebay.es",
	"ebay.nl",
	"ebay.be",
	"ebay.at",
	"ebay.ch",
	"ebay.ie",
	"ebay.pl",
	"ebay.ph",
	"ebay.com.sg",
	"ebay.com.my",
	"ebay.co.jp",
}

var regionByDomain = map[string]string{
	"ebay.com":    "US",
	"ebay.co.uk":  "UK",
	"ebay.de":     "DE",
	"ebay.fr":     "FR",
	"ebay.ca":     "CA",
	"ebay.com.au": "AU",
	"ebay.it":     "IT",
	"ebay.es":     "ES",
	"ebay.nl":     "NL",
	"ebay.be":     "BE",
	"ebay.at":     "AT",
	"ebay.ch":     "CH",
	"ebay.ie":     "IE",
	"ebay.pl":     "PL",
	"ebay.ph":     "PH",
	"ebay.com.sg": "SG",
	"ebay.com.my": "MY",
	"ebay.co.jp":  "JP",
}

var canonicalDomainByRegion = map[string]string{
	"US": "www.ebay.com",
	"UK": "www.ebay.co.uk",
	"DE": "www.ebay.de",
	"FR": "www.ebay.fr",
	"CA": "www.ebay.ca",
	"AU": "www.ebay.com.au",
	"IT": "www.ebay.it",
	"ES": "www.ebay.es",
}

var (
	// Matches /itm/256123456789 and /itm/some-title/256123456789, with the
	// id terminated by query, fragment or end of path.
	itemPathPattern = regexp.MustCompile(`(?i)/itm/(?:[^/]+/)?(\d{9,15})(?:\?|$|#)`)

	// Product pages use a different path prefix and looser ids.
	productPathPattern = regexp.MustCompile(`(?i)/p/(\d+)`)

	itemIDPattern = regexp.MustCompile(`^\d{9,15}$`)
)

// IsEbayURL reports whether the URL points at a recognized eBay domain.
func IsEbayURL(rawURL string) bool {
	return matchDomain(rawURL) != ""
}

// matchDomain returns the matched registrable eBay domain, or "".
func matchDomain(rawURL string) string {
	parsed, err := url.Parse(strings.ToLower(rawURL))
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(parsed.Host, "www.")
	for _, d := range supportedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return d
		}
	}
	return ""
}

// ExtractItemID pulls the item id out of an eBay URL. It tries the /itm/
// path first, then /p/ product paths, then item id query parameters.
// Returns "" when nothing usable is found.
func ExtractItemID(rawURL string) string {
	if m := itemPathPattern.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	if m := productPathPattern.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	query := parsed.Query()
	for _, param := range []string{"item", "itemId", "itemid"} {
		if v := query.Get(param); v != "" && itemIDPattern.MatchString(v) {
			return v
		}
	}
	return ""
}

// Region returns the marketplace region code for the URL's domain,
// defaulting to US.
func Region(rawURL string) string {
	if d := matchDomain(rawURL); d != "" {
		if region, ok := regionByDomain[d]; ok {
			return region
		}
	}
	return "US"
}

// CanonicalURL builds the canonical listing URL for an item in a region.
// Regions without a mapped domain fall back to ebay.com.
func CanonicalURL(itemID, region string) string {
	d, ok := canonicalDomainByRegion[region]
	if !ok {
		d = "www.ebay.com"
	}
	return fmt.Sprintf("https://%s/itm/%s", d, itemID)
}

// ValidateItemID reports whether itemID is a well-formed eBay item id.
func ValidateItemID(itemID string) bool {
	return itemIDPattern.MatchString(itemID)
}

// ParseURL parses any supported eBay product URL into a structured result.
// Malformed input yields a failed result, never an error.
func ParseURL(rawURL string) domain.URLParseResult {
	if !IsEbayURL(rawURL) {
		return domain.URLParseResult{
			Success:     false,
			OriginalURL: rawURL,
			ErrorCode:   domain.ErrCodeNotSupportedDomain,
			Error:       "not a recognized eBay domain",
		}
	}

	itemID := ExtractItemID(rawURL)
	if itemID == "" {
		return domain.URLParseResult{
			Success:     false,
			OriginalURL: rawURL,
			ErrorCode:   domain.ErrCodeIDNotFound,
			Error:       "could not extract item id from URL",
		}
	}

	return domain.URLParseResult{
		Success:      true,
		Store:        domain.StoreEbay,
		ItemID:       itemID,
		OriginalURL:  rawURL,
		CanonicalURL: CanonicalURL(itemID, Region(rawURL)),
	}
}
