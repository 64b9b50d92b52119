package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pricewatch/price-collector/internal/store"
	domain "github.com/pricewatch/price-collector/pkg/types"
)

// ItemStore is the slice of the datastore the item handler needs.
type ItemStore interface {
	GetTrackedItem(ctx context.Context, store domain.StoreType, itemID string) (*domain.TrackedItem, error)
	ListTrackedItems(ctx context.Context, activeOnly bool, limit, offset int) ([]domain.TrackedItem, error)
	SetTrackedItemActive(ctx context.Context, store domain.StoreType, itemID string, active bool) error
}

// ItemHandler handles tracked item queries.
type ItemHandler struct {
	store ItemStore
}

// NewItemHandler creates a new ItemHandler.
func NewItemHandler(s ItemStore) *ItemHandler {
	return &ItemHandler{store: s}
}

// List handles GET /api/v1/items.
//
// @Summary List tracked items
// @Description Returns tracked items, optionally only active ones.
// @Tags items
// @Produce json
// @Param active query string false "Only active items" Enums(true, false)
// @Param limit query int false "Maximum rows" default(100)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} domain.TrackedItem
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/items [get]
func (h *ItemHandler) List(c echo.Context) error {
	activeOnly := c.QueryParam("active") == "true"

	limit, err := intQueryParam(c, "limit", 100)
	if err != nil || limit < 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid limit parameter",
		})
	}
	offset, err := intQueryParam(c, "offset", 0)
	if err != nil || offset < 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid offset parameter",
		})
	}

	items, err := h.store.ListTrackedItems(c.Request().Context(), activeOnly, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "listing items: " + err.Error(),
		})
	}

	if items == nil {
		items = []domain.TrackedItem{}
	}
	return c.JSON(http.StatusOK, items)
}

// Get handles GET /api/v1/items/:store/:id.
//
// @Summary Get a tracked item
// @Description Returns the latest-known summary for one item.
// @Tags items
// @Produce json
// @Param store path string true "Store type" Enums(ebay)
// @Param id path string true "Item ID"
// @Success 200 {object} domain.TrackedItem
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/items/{store}/{id} [get]
func (h *ItemHandler) Get(c echo.Context) error {
	item, err := h.store.GetTrackedItem(
		c.Request().Context(),
		domain.StoreType(c.Param("store")),
		c.Param("id"),
	)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "item not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "getting item: " + err.Error(),
		})
	}
	return c.JSON(http.StatusOK, item)
}

type setActiveRequest struct {
	Active bool `json:"active" example:"true"`
}

// SetActive handles PUT /api/v1/items/:store/:id/active.
//
// @Summary Activate or deactivate a tracked item
// @Description Sets whether the item participates in batch collection.
// @Tags items
// @Accept json
// @Produce json
// @Param store path string true "Store type" Enums(ebay)
// @Param id path string true "Item ID"
// @Param body body setActiveRequest true "Active status"
// @Success 200 {object} StatusResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/items/{store}/{id}/active [put]
func (h *ItemHandler) SetActive(c echo.Context) error {
	var req setActiveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body: " + err.Error(),
		})
	}

	err := h.store.SetTrackedItemActive(
		c.Request().Context(),
		domain.StoreType(c.Param("store")),
		c.Param("id"),
		req.Active,
	)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "item not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "setting item active: " + err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "updated"})
}
