package browser

import (
	"context"
	"time"
)

// Session is the narrow capability the scrape pipeline needs from a browser:
// load a URL, wait for and interact with elements by CSS selector, snapshot
// matching elements as HTML, and scroll. Keeping the surface this small lets
// the navigator and orchestrator run against a fake in tests.
//
// Implementations map their native failures onto the package error kinds:
// bounded waits that expire return ErrInteractionTimeout, transport or
// process-level failures return ErrSession.
type Session interface {
	// Navigate loads url and waits for the DOM to be ready.
	Navigate(ctx context.Context, url string) error

	// WaitVisible blocks until at least one element matching selector is
	// visible, or the timeout expires.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string, timeout time.Duration) error

	// TypeAndSubmit fills the first element matching selector with text and
	// presses Enter.
	TypeAndSubmit(ctx context.Context, selector string, text string, timeout time.Duration) error

	// ElementsHTML returns the outer HTML of every element currently
	// matching selector, in document order. An empty result is not an error.
	ElementsHTML(ctx context.Context, selector string) ([]string, error)

	// ElementText returns the visible text of the first element matching
	// selector, waiting up to timeout for it to appear.
	ElementText(ctx context.Context, selector string, timeout time.Duration) (string, error)

	// ScrollBy scrolls the viewport forward by pixels.
	ScrollBy(ctx context.Context, pixels int) error

	// PageHeight returns the current document height, used to detect the
	// end of lazy-loaded listings.
	PageHeight(ctx context.Context) (int, error)

	// Close releases the page. Safe to call more than once.
	Close() error
}
