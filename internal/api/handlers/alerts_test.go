package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/pricewatch/price-collector/pkg/types"
)

type stubAlertCreator struct {
	created []domain.PriceAlert
	err     error
}

func (s *stubAlertCreator) CreatePriceAlert(_ context.Context, alert *domain.PriceAlert) error {
	if s.err != nil {
		return s.err
	}
	alert.ID = 1
	alert.IsActive = true
	s.created = append(s.created, *alert)
	return nil
}

func TestAlertHandler_Create(t *testing.T) {
	t.Parallel()

	t.Run("creates target price alert", func(t *testing.T) {
		t.Parallel()

		creator := &stubAlertCreator{}
		h := NewAlertHandler(creator)

		c, rec := postJSON(t, "/api/v1/alerts",
			`{"store": "ebay", "item_id": "256123456789", "target_price": 450}`)
		require.NoError(t, h.Create(c))

		assert.Equal(t, http.StatusCreated, rec.Code)
		require.Len(t, creator.created, 1)
		require.NotNil(t, creator.created[0].TargetPrice)
		assert.InDelta(t, 450, *creator.created[0].TargetPrice, 1e-9)
		assert.Contains(t, rec.Body.String(), `"is_active":true`)
	})

	t.Run("creates drop percentage alert", func(t *testing.T) {
		t.Parallel()

		creator := &stubAlertCreator{}
		h := NewAlertHandler(creator)

		c, rec := postJSON(t, "/api/v1/alerts",
			`{"store": "ebay", "item_id": "256123456789", "price_drop_percentage": 15}`)
		require.NoError(t, h.Create(c))

		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("missing identifier returns 400", func(t *testing.T) {
		t.Parallel()

		h := NewAlertHandler(&stubAlertCreator{})

		c, rec := postJSON(t, "/api/v1/alerts", `{"target_price": 450}`)
		require.NoError(t, h.Create(c))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "store and item_id are required")
	})

	t.Run("missing criterion returns 400", func(t *testing.T) {
		t.Parallel()

		h := NewAlertHandler(&stubAlertCreator{})

		c, rec := postJSON(t, "/api/v1/alerts",
			`{"store": "ebay", "item_id": "256123456789"}`)
		require.NoError(t, h.Create(c))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "target_price or price_drop_percentage")
	})

	t.Run("store error returns 500", func(t *testing.T) {
		t.Parallel()

		h := NewAlertHandler(&stubAlertCreator{err: errors.New("db down")})

		c, rec := postJSON(t, "/api/v1/alerts",
			`{"store": "ebay", "item_id": "256123456789", "target_price": 450}`)
		require.NoError(t, h.Create(c))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
