package ebay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	domain "github.com/pricewatch/price-collector/pkg/types"
)

// PageFetcher retrieves the rendered HTML of a listing page. The default
// implementation does a plain GET; deployments that need a headless
// browser plug in their own.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (string, error)
}

// scrapeError classifies a scraping failure with a canonical error code.
type scrapeError struct {
	code    string
	message string
}

func (e *scrapeError) Error() string {
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

// Listing pages served to non-browser agents get blocked or degraded, so
// requests carry ordinary browser headers.
var browserHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"DNT":                       "1",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

// HTTPFetcher is the default PageFetcher backed by a plain HTTP client.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a page fetcher with a 30 second timeout.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPFetcher{client: client}
}

// FetchPage retrieves the page HTML. Transport failures and 5xx responses
// retry up to three attempts with backoff between two and ten seconds.
// A 404 fails immediately with an item-not-found scrape error.
func (f *HTTPFetcher) FetchPage(ctx context.Context, url string) (string, error) {
	var html string

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating page request: %w", err))
		}
		for k, v := range browserHeaders {
			req.Header.Set(k, v)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("fetching page: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(&scrapeError{
				code:    domain.ErrCodeItemNotFound,
				message: "item page not found",
			})
		}
		if resp.StatusCode != http.StatusOK {
			err := &scrapeError{
				code:    domain.ErrCodeCollectionFailed,
				message: fmt.Sprintf("fetching page: HTTP %d", resp.StatusCode),
			}
			if resp.StatusCode >= 500 {
				return err
			}
			return backoff.Permanent(err)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading page body: %w", err)
		}
		html = string(body)
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = 10 * time.Second
	if err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, 2), ctx)); err != nil {
		return "", err
	}
	return html, nil
}
