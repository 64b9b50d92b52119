package ebay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	domain "github.com/pricewatch/price-collector/pkg/types"
)

const (
	defaultBrowseURL = "https://api.ebay.com/buy/browse/v1"

	// Error response bodies are truncated before being stored on results.
	maxErrorBodyLen = 512
)

// apiError is a classified Browse API failure. Code is one of the canonical
// error codes and flows unchanged onto the collection result.
type apiError struct {
	code       string
	statusCode int
	message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s (status %d): %s", e.code, e.statusCode, e.message)
}

// ItemClient fetches single-item listings from the eBay Browse API.
type ItemClient struct {
	tokens      TokenProvider
	limiter     *RateLimiter
	client      *http.Client
	apiURL      string
	marketplace string
}

// ItemClientOption configures the ItemClient.
type ItemClientOption func(*ItemClient)

// WithAPIURL overrides the default Browse API base URL.
func WithAPIURL(u string) ItemClientOption {
	return func(c *ItemClient) {
		c.apiURL = u
	}
}

// WithItemHTTPClient overrides the default HTTP client.
func WithItemHTTPClient(hc *http.Client) ItemClientOption {
	return func(c *ItemClient) {
		c.client = hc
	}
}

// WithMarketplace sets the X-EBAY-C-MARKETPLACE-ID header value.
func WithMarketplace(id string) ItemClientOption {
	return func(c *ItemClient) {
		c.marketplace = id
	}
}

// WithRateLimiter attaches a rate limiter that gates every API call.
func WithRateLimiter(rl *RateLimiter) ItemClientOption {
	return func(c *ItemClient) {
		c.limiter = rl
	}
}

// NewItemClient creates a Browse API client. tokens may be nil when API
// credentials are not configured; CollectPrice then reports
// AUTH_NOT_CONFIGURED without making any network calls.
func NewItemClient(tokens TokenProvider, opts ...ItemClientOption) *ItemClient {
	c := &ItemClient{
		tokens:      tokens,
		client:      &http.Client{Timeout: 30 * time.Second},
		apiURL:      defaultBrowseURL,
		marketplace: "EBAY_US",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CollectPrice fetches and parses the listing for itemID. Failures are
// reported as failed results carrying a canonical error code; the error
// return is reserved for context cancellation.
func (c *ItemClient) CollectPrice(ctx context.Context, itemID string) domain.CollectionResult {
	item, err := c.getItem(ctx, itemID)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			return domain.NewFailureResult(
				domain.StoreEbay, itemID, domain.MethodAPI,
				apiErr.code, apiErr.message,
			)
		}
		return domain.NewFailureResult(
			domain.StoreEbay, itemID, domain.MethodAPI,
			domain.ErrCodeUnknown, err.Error(),
		)
	}

	return parseItemResponse(item, itemID)
}

// ValidateItemExists reports whether the item is retrievable via the API.
func (c *ItemClient) ValidateItemExists(ctx context.Context, itemID string) (bool, error) {
	_, err := c.getItem(ctx, itemID)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.code == domain.ErrCodeItemNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// getItem performs the Browse API getItem call using the legacy id format
// v1|{itemId}|0. Transport failures and 5xx responses retry up to three
// attempts with exponential backoff between one and ten seconds. A 401 is
// handled once per call by invalidating the cached token and retrying.
func (c *ItemClient) getItem(ctx context.Context, itemID string) (*itemResponse, error) {
	if c.tokens == nil {
		return nil, &apiError{
			code:    domain.ErrCodeAuthNotConfigured,
			message: "eBay API credentials not configured",
		}
	}

	var item *itemResponse
	retriedAuth := false

	operation := func() error {
		resp, err := c.doGetItem(ctx, itemID)
		if err == nil {
			item = resp
			return nil
		}

		var apiErr *apiError
		if errors.As(err, &apiErr) {
			switch {
			case apiErr.statusCode == http.StatusUnauthorized && !retriedAuth:
				retriedAuth = true
				c.tokens.Invalidate()
				return err
			case apiErr.statusCode >= 500:
				return err
			default:
				return backoff.Permanent(err)
			}
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 10 * time.Second
	if err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, 2), ctx)); err != nil {
		return nil, err
	}
	return item, nil
}

func (c *ItemClient) doGetItem(ctx context.Context, itemID string) (*itemResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if errors.Is(err, ErrDailyLimitReached) {
				return nil, backoff.Permanent(&apiError{
					code:    domain.ErrCodeAPIError,
					message: err.Error(),
				})
			}
			return nil, backoff.Permanent(err)
		}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, backoff.Permanent(&apiError{
			code:    domain.ErrCodeAuthFailed,
			message: fmt.Sprintf("acquiring access token: %v", err),
		})
	}

	legacyID := fmt.Sprintf("v1|%s|0", itemID)
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.apiURL+"/item/"+legacyID, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating item request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-EBAY-C-MARKETPLACE-ID", c.marketplace)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing item request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading item response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &apiError{
			code:       domain.ErrCodeItemNotFound,
			statusCode: resp.StatusCode,
			message:    "item not found: " + itemID,
		}
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &apiError{
			code:       domain.ErrCodeAuthFailed,
			statusCode: resp.StatusCode,
			message:    "unauthorized: " + truncate(string(body)),
		}
	case resp.StatusCode != http.StatusOK:
		return nil, &apiError{
			code:       domain.ErrCodeAPIError,
			statusCode: resp.StatusCode,
			message: fmt.Sprintf(
				"API request failed (status %d): %s",
				resp.StatusCode, truncate(string(body)),
			),
		}
	}

	var item itemResponse
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, backoff.Permanent(&apiError{
			code:       domain.ErrCodeParseError,
			statusCode: resp.StatusCode,
			message:    fmt.Sprintf("decoding item response: %v", err),
		})
	}
	return &item, nil
}

func truncate(s string) string {
	if len(s) > maxErrorBodyLen {
		return s[:maxErrorBodyLen] + "..."
	}
	return s
}
