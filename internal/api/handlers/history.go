package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	domain "github.com/pricewatch/price-collector/pkg/types"
)

const (
	defaultHistoryDays  = 30
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// HistoryReader serves price history statistics.
type HistoryReader interface {
	GetPriceHistory(ctx context.Context, store domain.StoreType, itemID string, days, limit int) (*domain.PriceHistoryStats, error)
}

// HistoryHandler serves price history queries.
type HistoryHandler struct {
	history HistoryReader
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(h HistoryReader) *HistoryHandler {
	return &HistoryHandler{history: h}
}

// Get handles GET /api/v1/items/:store/:id/history.
//
// @Summary Get price history
// @Description Returns history rows and summary statistics for an item.
// @Tags history
// @Produce json
// @Param store path string true "Store type" Enums(ebay)
// @Param id path string true "Item ID"
// @Param days query int false "Window in days" default(30)
// @Param limit query int false "Maximum rows" default(100)
// @Success 200 {object} domain.PriceHistoryStats
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/items/{store}/{id}/history [get]
func (h *HistoryHandler) Get(c echo.Context) error {
	storeType := domain.StoreType(c.Param("store"))
	itemID := c.Param("id")

	days, err := intQueryParam(c, "days", defaultHistoryDays)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid days parameter",
		})
	}

	limit, err := intQueryParam(c, "limit", defaultHistoryLimit)
	if err != nil || limit < 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid limit parameter",
		})
	}
	limit = min(limit, maxHistoryLimit)

	stats, err := h.history.GetPriceHistory(
		c.Request().Context(), storeType, itemID, days, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "getting price history: " + err.Error(),
		})
	}

	return c.JSON(http.StatusOK, stats)
}

func intQueryParam(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
