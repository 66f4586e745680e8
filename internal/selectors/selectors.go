// Package selectors loads the external document that keeps CSS class names
// and listing URLs out of the binary, so the target site's markup can change
// without a rebuild. A missing file or missing key is a fatal configuration
// error at load time, never discovered mid-run.
package selectors

import (
	"fmt"

	"github.com/spf13/viper"
)

// SearchType selects which listing page a run starts from.
type SearchType string

const (
	SearchMarkets    SearchType = "M"
	SearchPharmacies SearchType = "F"
)

// Config is the parsed selector document. All selector values are CSS class
// names as they appear in the target site's markup, without a leading dot.
type Config struct {
	URLs           URLs             `mapstructure:"urls"`
	LocationButton string           `mapstructure:"-"`
	Markets        MarketSelectors  `mapstructure:"-"`
	Products       ProductSelectors `mapstructure:"-"`
}

type URLs struct {
	Markets    string `mapstructure:"markets"`
	Pharmacies string `mapstructure:"pharmacies"`
}

type MarketSelectors struct {
	Card   string `mapstructure:"card"`
	Name   string `mapstructure:"name"`
	Rating string `mapstructure:"rating"`
	Info   string `mapstructure:"info"`
	Footer string `mapstructure:"footer"`
	Image  string `mapstructure:"image"`
}

type ProductSelectors struct {
	Card         string `mapstructure:"card"`
	Name         string `mapstructure:"name"`
	Price        string `mapstructure:"price"`
	Details      string `mapstructure:"details"`
	Image        string `mapstructure:"image"`
	SearchField  string `mapstructure:"search_field"`
	TotalRecords string `mapstructure:"total_records"`
}

// ListingURL returns the listing page for the given search type. Anything
// other than markets falls back to pharmacies, matching the scraper's
// two-surface behavior.
func (c *Config) ListingURL(t SearchType) string {
	if t == SearchMarkets {
		return c.URLs.Markets
	}
	return c.URLs.Pharmacies
}

var requiredKeys = []string{
	"urls.markets",
	"urls.pharmacies",
	"selectors.location_button",
	"selectors.markets.card",
	"selectors.markets.name",
	"selectors.markets.rating",
	"selectors.markets.info",
	"selectors.markets.footer",
	"selectors.markets.image",
	"selectors.products.card",
	"selectors.products.name",
	"selectors.products.price",
	"selectors.products.details",
	"selectors.products.image",
	"selectors.products.search_field",
	"selectors.products.total_records",
}

// Load reads and validates the selector document at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read selector config %s: %w", path, err)
	}

	for _, key := range requiredKeys {
		if !v.IsSet(key) || v.GetString(key) == "" {
			return nil, fmt.Errorf("selector config %s: required key %q is missing", path, key)
		}
	}

	cfg := &Config{
		LocationButton: v.GetString("selectors.location_button"),
	}
	if err := v.UnmarshalKey("urls", &cfg.URLs); err != nil {
		return nil, fmt.Errorf("failed to decode urls section: %w", err)
	}
	if err := v.UnmarshalKey("selectors.markets", &cfg.Markets); err != nil {
		return nil, fmt.Errorf("failed to decode markets selectors: %w", err)
	}
	if err := v.UnmarshalKey("selectors.products", &cfg.Products); err != nil {
		return nil, fmt.Errorf("failed to decode products selectors: %w", err)
	}
	return cfg, nil
}

// CSS turns a configured class name into a CSS selector.
func CSS(class string) string {
	return "." + class
}
