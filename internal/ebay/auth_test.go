package ebay_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricewatch/price-collector/internal/ebay"
)

func newTokenServer(t *testing.T, calls *atomic.Int32, expiresIn int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w,
			`{"access_token":"token-%d","expires_in":%d,"token_type":"Bearer"}`,
			n, expiresIn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOAuthTokenProvider_CachesToken(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := newTokenServer(t, &calls, 7200)

	p := ebay.NewOAuthTokenProvider("app", "cert", ebay.WithTokenURL(srv.URL))

	tok1, err := p.Token(context.Background())
	require.NoError(t, err)
	tok2, err := p.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, tok1, tok2)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOAuthTokenProvider_RefreshesWithinSkew(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := newTokenServer(t, &calls, 3600)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := ebay.NewOAuthTokenProvider(
		"app", "cert",
		ebay.WithTokenURL(srv.URL),
		ebay.WithNowFunc(func() time.Time { return now }),
	)

	_, err := p.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(1), calls.Load())

	// 56 minutes in: inside the five-minute window before the one-hour
	// expiry, so the cached token is no longer trusted.
	now = now.Add(56 * time.Minute)
	_, err = p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOAuthTokenProvider_ConcurrentCallersSingleRefresh(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":7200,"token_type":"Bearer"}`))
	}))
	defer srv.Close()

	p := ebay.NewOAuthTokenProvider("app", "cert", ebay.WithTokenURL(srv.URL))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := p.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "tok", tok)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestOAuthTokenProvider_Invalidate(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := newTokenServer(t, &calls, 7200)

	p := ebay.NewOAuthTokenProvider("app", "cert", ebay.WithTokenURL(srv.URL))

	_, err := p.Token(context.Background())
	require.NoError(t, err)
	p.Invalidate()
	_, err = p.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestOAuthTokenProvider_BadCredentialsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"client auth failed"}`))
	}))
	defer srv.Close()

	p := ebay.NewOAuthTokenProvider("app", "bad-cert", ebay.WithTokenURL(srv.URL))

	_, err := p.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_client")
	assert.Equal(t, int32(1), calls.Load())
}

func TestOAuthTokenProvider_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":7200,"token_type":"Bearer"}`))
	}))
	defer srv.Close()

	p := ebay.NewOAuthTokenProvider("app", "cert", ebay.WithTokenURL(srv.URL))

	tok, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}
