package capture

import (
	"context"
	"errors"
)

// Noop implements the capturer surface but always returns an error, for
// deployments where headless browsing is not available.
type Noop struct{}

// NewNoop creates a new Noop capturer.
func NewNoop() *Noop {
	return &Noop{}
}

// Capture returns an error since this is a stub implementation.
func (Noop) Capture(_ context.Context, _ string) ([]byte, error) {
	return nil, errors.New("screenshot capturer not configured")
}
