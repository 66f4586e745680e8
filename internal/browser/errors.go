package browser

import "errors"

// The scrape pipeline classifies interaction failures into three kinds:
// timeouts and session/transport failures are transient and eligible for
// retry; a missing optional element is structural and absorbed per-field by
// the caller.
var (
	ErrInteractionTimeout = errors.New("interaction timed out")
	ErrSession            = errors.New("browser session failure")
	ErrElementMissing     = errors.New("element not found")
)

// IsTransient reports whether err should be retried by the navigation retry
// policy.
func IsTransient(err error) bool {
	return errors.Is(err, ErrInteractionTimeout) || errors.Is(err, ErrSession)
}
