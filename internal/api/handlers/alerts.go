package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	domain "github.com/pricewatch/price-collector/pkg/types"
)

// AlertCreator stores new price alerts.
type AlertCreator interface {
	CreatePriceAlert(ctx context.Context, alert *domain.PriceAlert) error
}

// AlertHandler handles price alert creation.
type AlertHandler struct {
	alerts AlertCreator
}

// NewAlertHandler creates a new AlertHandler.
func NewAlertHandler(a AlertCreator) *AlertHandler {
	return &AlertHandler{alerts: a}
}

// Create handles POST /api/v1/alerts.
//
// @Summary Create a price alert
// @Description Creates an alert that fires when the price reaches a target
// @Description or drops by a percentage from the first recorded price.
// @Tags alerts
// @Accept json
// @Produce json
// @Param alert body domain.PriceAlert true "Alert to create"
// @Success 201 {object} domain.PriceAlert
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/alerts [post]
func (h *AlertHandler) Create(c echo.Context) error {
	var alert domain.PriceAlert
	if err := c.Bind(&alert); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body: " + err.Error(),
		})
	}

	if alert.Store == "" || alert.ItemID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "store and item_id are required",
		})
	}
	if alert.TargetPrice == nil && alert.PriceDropPercentage == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "target_price or price_drop_percentage is required",
		})
	}

	if err := h.alerts.CreatePriceAlert(c.Request().Context(), &alert); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "creating alert: " + err.Error(),
		})
	}

	return c.JSON(http.StatusCreated, alert)
}
