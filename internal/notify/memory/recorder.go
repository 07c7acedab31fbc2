// Package memory provides an in-process notifier for tests and
// single-node runs.
package memory

import (
	"context"
	"sync"

	"github.com/tipline/videoreports/internal/report"
)

// Recorder keeps delivered events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []report.CreatedEvent
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Notify records the event.
func (r *Recorder) Notify(_ context.Context, event report.CreatedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of everything delivered so far.
func (r *Recorder) Events() []report.CreatedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]report.CreatedEvent, len(r.events))
	copy(out, r.events)
	return out
}
