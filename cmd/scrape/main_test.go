package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricepilot/basket-scraper/internal/models"
)

func TestParseItems(t *testing.T) {
	t.Run("names with quantities", func(t *testing.T) {
		request, err := parseItems("coca-cola:2, queijo:1")
		require.NoError(t, err)
		assert.Equal(t, models.SearchRequest{
			{Name: "coca-cola", Quantity: 2},
			{Name: "queijo", Quantity: 1},
		}, request)
	})

	t.Run("missing quantity defaults to one", func(t *testing.T) {
		request, err := parseItems("arroz")
		require.NoError(t, err)
		assert.Equal(t, models.SearchRequest{{Name: "arroz", Quantity: 1}}, request)
	})

	t.Run("empty list rejected", func(t *testing.T) {
		_, err := parseItems("  ")
		assert.Error(t, err)
	})

	t.Run("non-numeric quantity rejected", func(t *testing.T) {
		_, err := parseItems("leite:muitos")
		assert.Error(t, err)
	})

	t.Run("zero quantity rejected", func(t *testing.T) {
		_, err := parseItems("leite:0")
		assert.Error(t, err)
	})
}
