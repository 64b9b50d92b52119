package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pricewatch/price-collector/internal/collector"
	domain "github.com/pricewatch/price-collector/pkg/types"
)

// PriceSaver persists successful collection results.
type PriceSaver interface {
	SavePrice(ctx context.Context, result *domain.CollectionResult, itemURL string) (*domain.PriceHistoryRecord, error)
}

// PriceNormalizer converts raw prices into the target currency.
type PriceNormalizer interface {
	NormalizePrice(ctx context.Context, pd domain.PriceData) domain.NormalizedPrice
}

// CollectHandler handles on-demand price collection.
type CollectHandler struct {
	registry   *collector.Registry
	normalizer PriceNormalizer
	saver      PriceSaver
}

// NewCollectHandler creates a new CollectHandler.
func NewCollectHandler(
	reg *collector.Registry,
	norm PriceNormalizer,
	saver PriceSaver,
) *CollectHandler {
	return &CollectHandler{registry: reg, normalizer: norm, saver: saver}
}

type collectRequest struct {
	URL         string `json:"url,omitempty"         example:"https://www.ebay.com/itm/256123456789"`
	Store       string `json:"store,omitempty"       example:"ebay"`
	ItemID      string `json:"item_id,omitempty"     example:"256123456789"`
	UseFallback *bool  `json:"use_fallback,omitempty" example:"true"`
	Save        *bool  `json:"save,omitempty"         example:"true"`
}

// Collect handles POST /api/v1/collect.
//
// The item can be given either as a product URL or as an explicit
// (store, item_id) pair. On success the result is normalized and, unless
// save=false, recorded in the price history.
//
// @Summary Collect a price now
// @Description Collects the current price for an item by URL or identifier.
// @Tags collect
// @Accept json
// @Produce json
// @Param request body collectRequest true "Item to collect"
// @Success 200 {object} domain.CollectionResult
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} domain.CollectionResult
// @Router /api/v1/collect [post]
func (h *CollectHandler) Collect(c echo.Context) error {
	var req collectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body: " + err.Error(),
		})
	}

	id, itemURL, errResp := h.resolveItem(&req)
	if errResp != nil {
		return c.JSON(http.StatusBadRequest, errResp)
	}

	col, ok := h.registry.Get(id.Store)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "unsupported store: " + string(id.Store),
		})
	}

	useFallback := req.UseFallback == nil || *req.UseFallback
	ctx := c.Request().Context()

	result := col.CollectPrice(ctx, id, useFallback)
	if !result.Success {
		return c.JSON(http.StatusUnprocessableEntity, result)
	}

	if result.NormalizedPrice == nil && result.PriceData != nil {
		np := h.normalizer.NormalizePrice(ctx, *result.PriceData)
		result.NormalizedPrice = &np
	}

	if req.Save == nil || *req.Save {
		if _, err := h.saver.SavePrice(ctx, &result, itemURL); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "saving price: " + err.Error(),
			})
		}
	}

	return c.JSON(http.StatusOK, result)
}

func (h *CollectHandler) resolveItem(
	req *collectRequest,
) (domain.StoreIdentifier, string, map[string]string) {
	if req.URL != "" {
		col, ok := h.registry.GetForURL(req.URL)
		if !ok {
			return domain.StoreIdentifier{}, "", map[string]string{
				"error": "no collector supports this URL",
			}
		}
		parsed := col.ParseURL(req.URL)
		if !parsed.Success {
			return domain.StoreIdentifier{}, "", map[string]string{
				"error": "parsing URL: " + parsed.Error,
			}
		}
		id := domain.StoreIdentifier{Store: parsed.Store, ItemID: parsed.ItemID}
		return id, parsed.CanonicalURL, nil
	}

	if req.Store == "" || req.ItemID == "" {
		return domain.StoreIdentifier{}, "", map[string]string{
			"error": "either url or store and item_id are required",
		}
	}

	id := domain.StoreIdentifier{
		Store:  domain.StoreType(req.Store),
		ItemID: req.ItemID,
	}
	return id, "", nil
}
