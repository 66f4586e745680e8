package selectors

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDoc = `urls:
  markets: https://www.ifood.com.br/mercados
  pharmacies: https://www.ifood.com.br/farmacias
selectors:
  location_button: address-button
  markets:
    card: merchant-list-v2__item-wrapper
    name: merchant-v2__name
    rating: merchant-v2__rating
    info: merchant-v2__info
    footer: merchant-v2__footer
    image: merchant-v2__logo
  products:
    card: product-card
    name: product-card__description
    price: product-card__price
    details: product-card__details
    image: product-card__image
    search_field: search-input
    total_records: search-results__total
`

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeDoc(t, validDoc))
	require.NoError(t, err)

	assert.Equal(t, "address-button", cfg.LocationButton)
	assert.Equal(t, "merchant-list-v2__item-wrapper", cfg.Markets.Card)
	assert.Equal(t, "search-input", cfg.Products.SearchField)
	assert.Equal(t, "https://www.ifood.com.br/mercados", cfg.ListingURL(SearchMarkets))
	assert.Equal(t, "https://www.ifood.com.br/farmacias", cfg.ListingURL(SearchPharmacies))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadMissingKey(t *testing.T) {
	doc := `urls:
  markets: https://example.com
  pharmacies: https://example.com
selectors:
  location_button: address-button
`
	_, err := Load(writeDoc(t, doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selectors.markets.card")
}

func TestCSS(t *testing.T) {
	assert.Equal(t, ".product-card", CSS("product-card"))
}
