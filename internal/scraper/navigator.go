package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pricepilot/basket-scraper/internal/browser"
	"github.com/pricepilot/basket-scraper/internal/models"
	"github.com/pricepilot/basket-scraper/internal/retry"
	"github.com/pricepilot/basket-scraper/internal/selectors"
)

const (
	validateTimeout = 5 * time.Second
	waitTimeout     = 10 * time.Second
	shortWait       = 2 * time.Second
	scrollStep      = 500
	scrollPause     = 100 * time.Millisecond
)

// Navigator drives one browser session through the fixed interaction
// protocol of a storefront listing site. All CSS class names come from the
// selector document; nothing is hard-coded here.
type Navigator struct {
	session browser.Session
	cfg     *selectors.Config
	logger  *slog.Logger
	retry   retry.Policy
}

func NewNavigator(session browser.Session, cfg *selectors.Config, logger *slog.Logger) *Navigator {
	n := &Navigator{
		session: session,
		cfg:     cfg,
		logger:  logger.With("component", "navigator"),
	}
	n.retry = retry.Default(browser.IsTransient)
	n.retry.OnRetry = func(attempt int, err error) {
		n.logger.Info("attempt failed, retrying", "attempt", attempt, "error", err)
	}
	return n
}

// ValidateSelectors is a fast fail-fast precondition check: the listing page
// must show the known location-button anchor within a short timeout,
// otherwise the selector document is stale.
func (n *Navigator) ValidateSelectors(ctx context.Context, searchType selectors.SearchType) error {
	if err := n.session.Navigate(ctx, n.cfg.ListingURL(searchType)); err != nil {
		return err
	}
	if err := n.session.WaitVisible(ctx, selectors.CSS(n.cfg.LocationButton), validateTimeout); err != nil {
		// Deliberately not wrapped as transient: a stale selector document
		// is a configuration error, retrying cannot fix it.
		return fmt.Errorf("selector validation failed, check the selector config: %v", err)
	}
	n.logger.Info("selectors validated")
	return nil
}

// AcquireLocation opens the listing page, grants the site the browser
// geolocation by clicking the "use my location" control, and waits until the
// storefront list has loaded. Transient failures are retried.
func (n *Navigator) AcquireLocation(ctx context.Context, searchType selectors.SearchType) error {
	return n.retry.Do(ctx, func(ctx context.Context) error {
		if err := n.session.Navigate(ctx, n.cfg.ListingURL(searchType)); err != nil {
			return err
		}
		n.logger.Info("waiting for the location button")
		if err := n.session.Click(ctx, selectors.CSS(n.cfg.LocationButton), waitTimeout); err != nil {
			return err
		}
		n.logger.Info("waiting for the storefront list")
		if err := n.session.WaitVisible(ctx, selectors.CSS(n.cfg.Markets.Card), waitTimeout); err != nil {
			return err
		}
		n.logger.Info("location set, storefront list loaded")
		return nil
	})
}

// collectByScrolling scrolls the lazy-loaded listing forward until either
// maxCount matching cards exist or the document stops growing, and returns
// the cards' outer HTML. May return fewer than maxCount.
func (n *Navigator) collectByScrolling(ctx context.Context, cardClass string, maxCount int) ([]string, error) {
	sel := selectors.CSS(cardClass)
	scrolled := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cards, err := n.session.ElementsHTML(ctx, sel)
		if err != nil {
			return nil, err
		}
		if len(cards) >= maxCount {
			n.logger.Info("enough cards loaded", "count", len(cards), "wanted", maxCount)
			return cards[:maxCount], nil
		}

		height, err := n.session.PageHeight(ctx)
		if err != nil {
			return nil, err
		}
		if scrolled >= height {
			n.logger.Info("end of page reached", "count", len(cards))
			return cards, nil
		}

		if err := n.session.ScrollBy(ctx, scrollStep); err != nil {
			return nil, err
		}
		scrolled += scrollStep

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(scrollPause):
		}
	}
}

// DiscoverStorefronts enumerates up to maxCount storefront cards from the
// already-loaded listing page. A card that cannot be parsed is skipped; it
// never aborts the sibling cards. onListing, if set, is invoked once with the
// collected card count before any card is parsed; onCard, if set, after each
// successfully parsed card. Progress accounting relies on that ordering.
func (n *Navigator) DiscoverStorefronts(ctx context.Context, maxCount int, onListing func(total int), onCard func(i, total int, name string)) ([]*models.Storefront, error) {
	cards, err := n.collectByScrolling(ctx, n.cfg.Markets.Card, maxCount)
	if err != nil {
		return nil, err
	}
	n.logger.Info("storefronts found", "count", len(cards))
	if onListing != nil {
		onListing(len(cards))
	}

	storefronts := make([]*models.Storefront, 0, len(cards))
	for i, html := range cards {
		sf, err := parseStorefrontCard(html, i+1, n.cfg.Markets)
		if err != nil {
			n.logger.Warn("skipping unparseable storefront card", "index", i+1, "error", err)
			continue
		}
		storefronts = append(storefronts, sf)
		n.logger.Info("storefront collected", "index", i+1, "name", sf.Name)
		if onCard != nil {
			onCard(len(storefronts), len(cards), sf.Name)
		}
	}
	return storefronts, nil
}

// SearchProducts navigates to a storefront, searches for itemQuery, and
// extracts up to maxProducts candidates. The query's embedded numeric token,
// when present, filters candidates by a permissive unit match on the name.
// Transient interaction failures are retried; a "zero results" indicator
// short-circuits with an empty set.
func (n *Navigator) SearchProducts(ctx context.Context, storefrontName, storefrontURL, itemQuery string, maxProducts int) ([]models.Product, error) {
	var products []models.Product
	err := n.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		products, err = n.searchProductsOnce(ctx, storefrontName, storefrontURL, itemQuery, maxProducts)
		return err
	})
	return products, err
}

func (n *Navigator) searchProductsOnce(ctx context.Context, storefrontName, storefrontURL, itemQuery string, maxProducts int) ([]models.Product, error) {
	n.logger.Info("opening storefront", "url", storefrontURL)
	if err := n.session.Navigate(ctx, storefrontURL); err != nil {
		return nil, err
	}

	term, numericFilter := splitQuery(itemQuery)
	n.logger.Info("searching", "term", term, "storefront", storefrontName, "numeric_filter", numericFilter)

	searchField := selectors.CSS(n.cfg.Products.SearchField)
	if err := n.session.WaitVisible(ctx, searchField, waitTimeout); err != nil {
		return nil, err
	}
	if err := n.session.TypeAndSubmit(ctx, searchField, term, shortWait); err != nil {
		return nil, err
	}

	// The results counter renders before the cards; a zero total means the
	// search legitimately matched nothing and is not an error.
	if total, err := n.session.ElementText(ctx, selectors.CSS(n.cfg.Products.TotalRecords), waitTimeout); err == nil {
		if indicatesZeroResults(total) {
			n.logger.Info("no results", "term", term, "storefront", storefrontName)
			return []models.Product{}, nil
		}
	}

	if err := n.session.WaitVisible(ctx, selectors.CSS(n.cfg.Products.Card), waitTimeout); err != nil {
		return nil, err
	}

	cards, err := n.collectByScrolling(ctx, n.cfg.Products.Card, maxProducts)
	if err != nil {
		return nil, err
	}
	n.logger.Info("product cards found", "term", term, "count", len(cards))

	products := make([]models.Product, 0, len(cards))
	for i, html := range cards {
		p := parseProductCard(html, i+1, n.cfg.Products)
		if numericFilter != "" && !matchesNumericFilter(p.Name, numericFilter) {
			continue
		}
		if len(products) >= maxProducts {
			break
		}
		products = append(products, p)
		n.logger.Info("product collected", "index", len(products), "name", p.Name)
	}
	return products, nil
}

func indicatesZeroResults(message string) bool {
	return strings.Contains(message, " 0 ") ||
		strings.HasPrefix(message, "0 ") ||
		strings.HasSuffix(message, " 0")
}
