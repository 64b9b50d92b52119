package middleware

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const requestIDHeader = "X-Request-ID"

// RequestLog returns echo middleware that assigns each request an id and
// logs it with method, path, status and timing after the handler runs.
// Requests addressing a tracked item also carry store and item_id fields.
func RequestLog(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			reqID := c.Request().Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			c.Set("request_id", reqID)
			c.Response().Header().Set(requestIDHeader, reqID)

			err := next(c)

			attrs := []any{
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"bytes_out", c.Response().Size,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", reqID,
			}
			if store := c.Param("store"); store != "" {
				attrs = append(attrs, "store", store, "item_id", c.Param("id"))
			}

			if c.Response().Status >= 500 {
				log.Error("request", attrs...)
			} else {
				log.Info("request", attrs...)
			}

			return err
		}
	}
}
