package report

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when no report matches the given id.
var ErrNotFound = errors.New("report not found")

// Store persists the append-only report log. Create must serialize id
// assignment so that ids stay unique and monotonic under concurrent
// callers.
type Store interface {
	Create(ctx context.Context, rec NewReport) (Report, error)
	List(ctx context.Context, order ListOrder) ([]Report, error)
	Recent(ctx context.Context, limit int) ([]Report, error)
	Get(ctx context.Context, id int64) (Report, error)
}

// BlobStore writes raw artifacts and returns a resolvable URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Capturer renders a page in an isolated browser session and returns the
// screenshot bytes. Implementations must tear the session down on every
// exit path and never outlive the context deadline.
type Capturer interface {
	Capture(ctx context.Context, videoURL string) ([]byte, error)
}

// Prober checks that a page answers plain HTTP before a browser session
// is spent on it.
type Prober interface {
	Probe(ctx context.Context, videoURL string) (ProbeResult, error)
}

// Notifier delivers report-created events to an external channel. Errors
// are logged by the pipeline, never surfaced to the submitter.
type Notifier interface {
	Notify(ctx context.Context, event CreatedEvent) error
}

// Hasher computes digests for artifact integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces collision-resistant tokens for artifact names.
type IDGenerator interface {
	NewID() (string, error)
}
