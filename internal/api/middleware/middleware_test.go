package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T, method, path string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRequestLog(t *testing.T) {
	t.Parallel()

	t.Run("generates request id when absent", func(t *testing.T) {
		t.Parallel()

		var buf strings.Builder
		log := slog.New(slog.NewTextHandler(&buf, nil))

		c, rec := newTestContext(t, http.MethodGet, "/api/v1/items")

		handler := RequestLog(log)(func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		})
		require.NoError(t, handler(c))

		reqID := rec.Header().Get("X-Request-ID")
		assert.NotEmpty(t, reqID)
		assert.Equal(t, reqID, c.Get("request_id"))
		assert.Contains(t, buf.String(), "request_id="+reqID)
		assert.Contains(t, buf.String(), "path=/api/v1/items")
	})

	t.Run("includes item fields when the route has them", func(t *testing.T) {
		t.Parallel()

		var buf strings.Builder
		log := slog.New(slog.NewTextHandler(&buf, nil))

		c, _ := newTestContext(t, http.MethodGet, "/api/v1/items/ebay/256123456789")
		c.SetPath("/api/v1/items/:store/:id")
		c.SetParamNames("store", "id")
		c.SetParamValues("ebay", "256123456789")

		handler := RequestLog(log)(func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		})
		require.NoError(t, handler(c))

		assert.Contains(t, buf.String(), "store=ebay")
		assert.Contains(t, buf.String(), "item_id=256123456789")
	})

	t.Run("logs server errors at error level", func(t *testing.T) {
		t.Parallel()

		var buf strings.Builder
		log := slog.New(slog.NewTextHandler(&buf, nil))

		c, _ := newTestContext(t, http.MethodGet, "/api/v1/items")

		handler := RequestLog(log)(func(c echo.Context) error {
			return c.NoContent(http.StatusInternalServerError)
		})
		require.NoError(t, handler(c))

		assert.Contains(t, buf.String(), "level=ERROR")
		assert.Contains(t, buf.String(), "status=500")
	})

	t.Run("propagates provided request id", func(t *testing.T) {
		t.Parallel()

		log := slog.New(slog.DiscardHandler)

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "req-123")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		handler := RequestLog(log)(func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		})
		require.NoError(t, handler(c))

		assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
	})
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	log := slog.New(slog.NewTextHandler(&buf, nil))

	c, rec := newTestContext(t, http.MethodGet, "/panic")

	handler := Recovery(log)(func(echo.Context) error {
		panic("boom")
	})

	err := handler(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "boom")
}

func TestRecovery_PassesThroughNormalRequests(t *testing.T) {
	t.Parallel()

	c, rec := newTestContext(t, http.MethodGet, "/ok")

	handler := Recovery(slog.New(slog.DiscardHandler))(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})
	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMetrics_SkipsOperationalPaths(t *testing.T) {
	t.Parallel()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/healthz")

	handler := Metrics()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
}

func TestMetrics_RecordsAPIRequests(t *testing.T) {
	t.Parallel()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/items")

	handler := Metrics()(func(c echo.Context) error {
		return c.JSON(http.StatusOK, []string{})
	})
	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
