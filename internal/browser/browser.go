package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Locale         string
	TimezoneID     string
	// Geolocation is reported to pages that ask for the user's position;
	// the listing page needs it to resolve nearby storefronts.
	Latitude  float64
	Longitude float64
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
		ViewportWidth:  1280,
		ViewportHeight: 720,
		Locale:         "pt-BR",
		TimezoneID:     "America/Sao_Paulo",
		Latitude:       -23.5505,
		Longitude:      -46.6333,
	}
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--ignore-certificate-errors",
			"--disable-web-security",
			"--user-agent=" + opts.UserAgent,
		},
	}

	b, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:  &opts.UserAgent,
		Locale:     &opts.Locale,
		TimezoneId: &opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		Permissions: []string{"geolocation"},
		Geolocation: &playwright.Geolocation{
			Latitude:  opts.Latitude,
			Longitude: opts.Longitude,
		},
	}

	bctx, err := b.NewContext(contextOpts)
	if err != nil {
		b.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: b,
		context: bctx,
		logger:  slog.Default().With("component", "browser"),
	}, nil
}

// NewSession opens a fresh page. The caller owns the session and must Close
// it; one session is not safe for concurrent use.
func (b *Browser) NewSession() (Session, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create page: %v", ErrSession, err)
	}
	page.SetDefaultTimeout(float64(DefaultOptions().Timeout.Milliseconds()))
	return &playwrightSession{page: page, logger: b.logger}, nil
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}

// playwrightSession adapts one playwright page to the Session interface.
// Failures of bounded waits map to ErrInteractionTimeout; everything else the
// driver refuses maps to ErrSession.
type playwrightSession struct {
	page   playwright.Page
	logger *slog.Logger
	closed bool
}

func (s *playwrightSession) Navigate(ctx context.Context, url string) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(30000),
	})
	if err != nil {
		return fmt.Errorf("%w: goto %s: %v", ErrSession, url, err)
	}
	return nil
}

func (s *playwrightSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	err := s.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("%w: waiting for %s: %v", ErrInteractionTimeout, selector, err)
	}
	return nil
}

func (s *playwrightSession) Click(ctx context.Context, selector string, timeout time.Duration) error {
	err := s.page.Locator(selector).First().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("%w: clicking %s: %v", ErrInteractionTimeout, selector, err)
	}
	return nil
}

func (s *playwrightSession) TypeAndSubmit(ctx context.Context, selector, text string, timeout time.Duration) error {
	loc := s.page.Locator(selector).First()
	ms := playwright.Float(float64(timeout.Milliseconds()))
	if err := loc.Fill(text, playwright.LocatorFillOptions{Timeout: ms}); err != nil {
		return fmt.Errorf("%w: filling %s: %v", ErrInteractionTimeout, selector, err)
	}
	if err := loc.Press("Enter", playwright.LocatorPressOptions{Timeout: ms}); err != nil {
		return fmt.Errorf("%w: submitting %s: %v", ErrInteractionTimeout, selector, err)
	}
	return nil
}

func (s *playwrightSession) ElementsHTML(ctx context.Context, selector string) ([]string, error) {
	locators, err := s.page.Locator(selector).All()
	if err != nil {
		return nil, fmt.Errorf("%w: querying %s: %v", ErrSession, selector, err)
	}

	htmls := make([]string, 0, len(locators))
	for _, loc := range locators {
		raw, err := loc.Evaluate("el => el.outerHTML", nil)
		if err != nil {
			// The element may have been detached by a re-render; skip it.
			s.logger.Warn("failed to snapshot element", "selector", selector, "error", err)
			continue
		}
		if html, ok := raw.(string); ok {
			htmls = append(htmls, html)
		}
	}
	return htmls, nil
}

func (s *playwrightSession) ElementText(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	loc := s.page.Locator(selector).First()
	err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return "", fmt.Errorf("%w: waiting for %s: %v", ErrInteractionTimeout, selector, err)
	}
	text, err := loc.TextContent()
	if err != nil {
		return "", fmt.Errorf("%w: reading text of %s: %v", ErrElementMissing, selector, err)
	}
	return text, nil
}

func (s *playwrightSession) ScrollBy(ctx context.Context, pixels int) error {
	if _, err := s.page.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", pixels)); err != nil {
		return fmt.Errorf("%w: scrolling: %v", ErrSession, err)
	}
	return nil
}

func (s *playwrightSession) PageHeight(ctx context.Context) (int, error) {
	raw, err := s.page.Evaluate("document.body.scrollHeight")
	if err != nil {
		return 0, fmt.Errorf("%w: reading page height: %v", ErrSession, err)
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("%w: unexpected page height type %T", ErrSession, raw)
	}
}

func (s *playwrightSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.page.Close(); err != nil {
		return fmt.Errorf("failed to close page: %w", err)
	}
	return nil
}
