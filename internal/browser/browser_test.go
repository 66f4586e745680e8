package browser

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.True(t, opts.Headless)
	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.Equal(t, 1280, opts.ViewportWidth)
	assert.Equal(t, 720, opts.ViewportHeight)
	assert.Equal(t, "pt-BR", opts.Locale)
	assert.Equal(t, "America/Sao_Paulo", opts.TimezoneID)

	// Listing pages resolve storefronts by the reported position, so the
	// defaults must point somewhere with actual coverage.
	assert.InDelta(t, -23.5505, opts.Latitude, 0.001)
	assert.InDelta(t, -46.6333, opts.Longitude, 0.001)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(ErrInteractionTimeout))
	assert.True(t, IsTransient(ErrSession))
	assert.False(t, IsTransient(ErrElementMissing))
	assert.False(t, IsTransient(errors.New("selector config invalid")))
	assert.False(t, IsTransient(nil))

	// Wrapped kinds keep their classification.
	wrapped := fmt.Errorf("%w: waiting for .card", ErrInteractionTimeout)
	assert.True(t, IsTransient(wrapped))
}
