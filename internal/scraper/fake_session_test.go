package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pricepilot/basket-scraper/internal/browser"
	"github.com/pricepilot/basket-scraper/internal/selectors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePage models the state of one rendered page: which selectors are
// present, the outer HTML of repeated cards, counter texts, and the page a
// search submission transitions to.
type fakePage struct {
	visible       map[string]bool
	cardHTML      map[string][]string
	texts         map[string]string
	searchResults map[string]*fakePage
	// waitErr, when set, fails every wait on this page with exactly this
	// error instead of the usual timeout.
	waitErr error
}

func (p *fakePage) has(sel string) bool {
	if p == nil {
		return false
	}
	return p.visible[sel]
}

// fakeSession drives the navigator against scripted pages keyed by URL.
// height and onScroll let a test simulate a lazy-loaded listing that grows
// as the page scrolls.
type fakeSession struct {
	pages       map[string]*fakePage
	current     *fakePage
	currentURL  string
	navigations []string
	searches    []string
	scrolls     int
	height      int
	onScroll    func(s *fakeSession)
	closeCount  int
	closeErr    error
	navErr      error
}

func newFakeSession(pages map[string]*fakePage) *fakeSession {
	return &fakeSession{pages: pages}
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	if s.navErr != nil {
		return s.navErr
	}
	s.navigations = append(s.navigations, url)
	s.currentURL = url
	s.current = s.pages[url]
	return nil
}

func (s *fakeSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if s.current != nil && s.current.waitErr != nil {
		return s.current.waitErr
	}
	if !s.current.has(selector) {
		return fmt.Errorf("%w: waiting for %s", browser.ErrInteractionTimeout, selector)
	}
	return nil
}

func (s *fakeSession) Click(ctx context.Context, selector string, timeout time.Duration) error {
	if !s.current.has(selector) {
		return fmt.Errorf("%w: clicking %s", browser.ErrInteractionTimeout, selector)
	}
	return nil
}

func (s *fakeSession) TypeAndSubmit(ctx context.Context, selector, text string, timeout time.Duration) error {
	if !s.current.has(selector) {
		return fmt.Errorf("%w: filling %s", browser.ErrInteractionTimeout, selector)
	}
	s.searches = append(s.searches, text)
	if next, ok := s.current.searchResults[text]; ok {
		s.current = next
	} else {
		s.current = &fakePage{}
	}
	return nil
}

func (s *fakeSession) ElementsHTML(ctx context.Context, selector string) ([]string, error) {
	if s.current == nil {
		return nil, nil
	}
	return s.current.cardHTML[selector], nil
}

func (s *fakeSession) ElementText(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	if s.current != nil {
		if text, ok := s.current.texts[selector]; ok {
			return text, nil
		}
	}
	return "", fmt.Errorf("%w: waiting for %s", browser.ErrInteractionTimeout, selector)
}

func (s *fakeSession) ScrollBy(ctx context.Context, pixels int) error {
	s.scrolls++
	if s.onScroll != nil {
		s.onScroll(s)
	}
	return nil
}

// PageHeight defaults to zero so scrolling collection settles after the
// first query unless a test scripts a taller page.
func (s *fakeSession) PageHeight(ctx context.Context) (int, error) { return s.height, nil }

func (s *fakeSession) Close() error {
	s.closeCount++
	return s.closeErr
}

// testSelectors is the selector document used by all scraper tests.
func testSelectors() *selectors.Config {
	return &selectors.Config{
		URLs: selectors.URLs{
			Markets:    "https://www.ifood.com.br/mercados",
			Pharmacies: "https://www.ifood.com.br/farmacias",
		},
		LocationButton: "address-button",
		Markets: selectors.MarketSelectors{
			Card:   "merchant-card",
			Name:   "merchant-name",
			Rating: "merchant-rating",
			Info:   "merchant-info",
			Footer: "merchant-footer",
			Image:  "merchant-logo",
		},
		Products: selectors.ProductSelectors{
			Card:         "product-card",
			Name:         "product-name",
			Price:        "product-price",
			Details:      "product-details",
			Image:        "product-image",
			SearchField:  "search-input",
			TotalRecords: "search-total",
		},
	}
}

// fakeImageURI decodes locally, so tests never touch the network.
const fakeImageURI = "data:image/png;base64,aW1n"

func marketCardHTML(name, distance, estimate, fee, href string) string {
	return fmt.Sprintf(`<a class="merchant-card" href="%s">
		<img class="merchant-logo" src="%s"/>
		<span class="merchant-name">%s</span>
		<span class="merchant-rating">4.7</span>
		<div class="merchant-info">4.7 • %s • Mercado</div>
		<div class="merchant-footer"><span>%s</span><span>•</span><span>%s</span></div>
	</a>`, href, fakeImageURI, name, distance, estimate, fee)
}

func productCardHTML(name, price, details string) string {
	return fmt.Sprintf(`<div class="product-card">
		<h3 class="product-name">%s</h3>
		<span class="product-price">%s</span>
		<span class="product-details">%s</span>
	</div>`, name, price, details)
}
