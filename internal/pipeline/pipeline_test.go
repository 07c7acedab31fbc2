package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tipline/videoreports/internal/metrics"
	"github.com/tipline/videoreports/internal/report"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

type harness struct {
	store    *fakeStore
	blobs    *fakeBlobStore
	capturer *fakeCapturer
	prober   *fakeProber
	notifier *fakeNotifier
}

func newHarness() *harness {
	return &harness{
		store:    &fakeStore{},
		blobs:    newFakeBlobStore(),
		capturer: &fakeCapturer{shot: []byte("png-bytes")},
		prober:   &fakeProber{result: report.ProbeResult{StatusCode: 200, Title: "Some Video"}},
		notifier: &fakeNotifier{},
	}
}

func (h *harness) build(cfg Config) *Pipeline {
	return New(
		h.store,
		h.blobs,
		h.capturer,
		h.prober,
		h.notifier,
		&fakeHasher{hash: "abc123"},
		&fakeIDs{},
		cfg,
		zap.NewNop(),
	)
}

func TestSubmitPersistsValidReport(t *testing.T) {
	t.Parallel()

	h := newHarness()
	p := h.build(Config{})

	res := p.Submit(context.Background(), report.Submission{
		VideoURL: "https://youtu.be/dQw4w9WgXcQ",
		Category: "spam",
		Details:  "repost farm",
	})

	require.Equal(t, report.StatusSucceeded, res.Status)
	require.Empty(t, res.FieldErrors)
	require.NotNil(t, res.Report)
	require.Equal(t, int64(1), res.Report.ID)
	require.Equal(t, report.CategorySpam, res.Report.Category)
	require.Equal(t, "repost farm", res.Report.Details)
	require.Equal(t, "memory://screenshots/dQw4w9WgXcQ-uid1.png", res.Report.ScreenshotPath)

	require.Equal(t, "screenshots/dQw4w9WgXcQ-uid1.png", h.blobs.lastPath)
	require.Equal(t, "image/png", h.blobs.lastContentType)

	events := h.notifier.delivered()
	require.Len(t, events, 1)
	require.Equal(t, "Spam or misleading", events[0].CategoryLabel)
	require.Equal(t, "abc123", events[0].Checksum)
	require.Equal(t, "Some Video", events[0].PageTitle)
}

func TestSubmitRejectsMalformedURL(t *testing.T) {
	t.Parallel()

	h := newHarness()
	p := h.build(Config{})

	res := p.Submit(context.Background(), report.Submission{
		VideoURL: "https://youtu.be/short",
		Category: "spam",
	})

	require.Equal(t, report.StatusRejected, res.Status)
	require.Contains(t, res.FieldErrors, report.FieldVideoURL)
	require.Nil(t, res.Report)
	require.Zero(t, h.capturer.callCount(), "capture must not run for rejected input")
	require.Empty(t, h.store.all())
}

func TestSubmitRejectsUnknownCategory(t *testing.T) {
	t.Parallel()

	h := newHarness()
	p := h.build(Config{})

	res := p.Submit(context.Background(), report.Submission{
		VideoURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Category: "SPAM",
	})

	require.Equal(t, report.StatusRejected, res.Status)
	require.Contains(t, res.FieldErrors, report.FieldCategory)
	require.Zero(t, h.capturer.callCount())
	require.Empty(t, h.store.all())
}

func TestSubmitCaptureFailureStillPersists(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.capturer.err = errors.New("browser crashed")
	p := h.build(Config{})

	res := p.Submit(context.Background(), report.Submission{
		VideoURL: "https://youtu.be/dQw4w9WgXcQ",
		Category: "violent",
	})

	require.Equal(t, report.StatusSucceeded, res.Status)
	require.NotNil(t, res.Report)
	require.Empty(t, res.Report.ScreenshotPath)

	stored := h.store.all()
	require.Len(t, stored, 1)
	require.Empty(t, stored[0].ScreenshotPath)

	events := h.notifier.delivered()
	require.Len(t, events, 1)
	require.Empty(t, events[0].Checksum)
}

func TestSubmitProbeFailureSkipsBrowser(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.prober.err = errors.New("connection refused")
	p := h.build(Config{})

	res := p.Submit(context.Background(), report.Submission{
		VideoURL: "https://youtu.be/dQw4w9WgXcQ",
		Category: "harmful",
	})

	require.Equal(t, report.StatusSucceeded, res.Status)
	require.Zero(t, h.capturer.callCount(), "browser must not launch when the probe fails")
	require.Empty(t, res.Report.ScreenshotPath)
}

func TestSubmitBlobWriteFailureStillPersists(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.blobs.err = errors.New("bucket unavailable")
	p := h.build(Config{})

	res := p.Submit(context.Background(), report.Submission{
		VideoURL: "https://youtu.be/dQw4w9WgXcQ",
		Category: "spam",
	})

	require.Equal(t, report.StatusSucceeded, res.Status)
	require.Empty(t, res.Report.ScreenshotPath)
	require.Len(t, h.store.all(), 1)
}

func TestSubmitStorageFailureIsTerminal(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.store.err = errors.New("db down")
	p := h.build(Config{})

	res := p.Submit(context.Background(), report.Submission{
		VideoURL: "https://youtu.be/dQw4w9WgXcQ",
		Category: "spam",
	})

	require.Equal(t, report.StatusFailed, res.Status)
	require.NotEmpty(t, res.FailureReason)
	require.Nil(t, res.Report)
	require.Empty(t, h.notifier.delivered(), "no notification for a run that failed to persist")
}

func TestSubmitHangingCaptureIsBounded(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.capturer.hang = true
	p := h.build(Config{CaptureTimeout: 50 * time.Millisecond})

	start := time.Now()
	res := p.Submit(context.Background(), report.Submission{
		VideoURL: "https://youtu.be/dQw4w9WgXcQ",
		Category: "spam",
	})

	require.Less(t, time.Since(start), 5*time.Second, "a stuck capture must not hold the submission open")
	require.Equal(t, report.StatusSucceeded, res.Status)
	require.Empty(t, res.Report.ScreenshotPath)
	require.Len(t, h.store.all(), 1)
}

func TestSubmitNotifierFailureDoesNotChangeOutcome(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.notifier.err = errors.New("topic gone")
	p := h.build(Config{})

	res := p.Submit(context.Background(), report.Submission{
		VideoURL: "https://youtu.be/dQw4w9WgXcQ",
		Category: "spam",
	})
	require.Equal(t, report.StatusSucceeded, res.Status)
}

func TestSubmitTrimsURLWhitespace(t *testing.T) {
	t.Parallel()

	h := newHarness()
	p := h.build(Config{})

	res := p.Submit(context.Background(), report.Submission{
		VideoURL: "  https://youtu.be/dQw4w9WgXcQ  ",
		Category: "spam",
	})

	require.Equal(t, report.StatusSucceeded, res.Status)
	require.Equal(t, "https://youtu.be/dQw4w9WgXcQ", res.Report.VideoURL)
}

func TestSubmitConcurrentRunsAssignDistinctIDs(t *testing.T) {
	t.Parallel()

	h := newHarness()
	p := h.build(Config{})

	const runs = 16
	var wg sync.WaitGroup
	results := make([]report.Result, runs)
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results[slot] = p.Submit(context.Background(), report.Submission{
				VideoURL: "https://youtu.be/dQw4w9WgXcQ",
				Category: "spam",
			})
		}(i)
	}
	wg.Wait()

	seen := map[int64]bool{}
	for _, res := range results {
		require.Equal(t, report.StatusSucceeded, res.Status)
		require.NotNil(t, res.Report)
		require.False(t, seen[res.Report.ID], "id %d assigned twice", res.Report.ID)
		seen[res.Report.ID] = true
	}
	require.Len(t, h.store.all(), runs)
}

// --- fakes ---

type fakeStore struct {
	mu      sync.Mutex
	nextID  int64
	reports []report.Report
	err     error
}

func (s *fakeStore) Create(_ context.Context, rec report.NewReport) (report.Report, error) {
	if s.err != nil {
		return report.Report{}, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	stored := report.Report{
		ID:             s.nextID,
		VideoURL:       rec.VideoURL,
		Category:       rec.Category,
		Details:        rec.Details,
		Timestamp:      time.Unix(100, 0).UTC(),
		ScreenshotPath: rec.ScreenshotPath,
	}
	s.reports = append(s.reports, stored)
	return stored, nil
}

func (s *fakeStore) List(_ context.Context, _ report.ListOrder) ([]report.Report, error) {
	return s.all(), nil
}

func (s *fakeStore) Recent(_ context.Context, _ int) ([]report.Report, error) {
	return nil, nil
}

func (s *fakeStore) Get(_ context.Context, _ int64) (report.Report, error) {
	return report.Report{}, report.ErrNotFound
}

func (s *fakeStore) all() []report.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]report.Report, len(s.reports))
	copy(out, s.reports)
	return out
}

type fakeBlobStore struct {
	mu              sync.Mutex
	objects         map[string][]byte
	lastPath        string
	lastContentType string
	err             error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (b *fakeBlobStore) PutObject(_ context.Context, path, contentType string, data []byte) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[path] = append([]byte(nil), data...)
	b.lastPath = path
	b.lastContentType = contentType
	return "memory://" + path, nil
}

type fakeCapturer struct {
	mu    sync.Mutex
	calls int
	shot  []byte
	err   error
	hang  bool
}

func (c *fakeCapturer) Capture(ctx context.Context, _ string) ([]byte, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.hang {
		<-ctx.Done()
		return nil, fmt.Errorf("capture canceled: %w", ctx.Err())
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.shot, nil
}

func (c *fakeCapturer) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeProber struct {
	result report.ProbeResult
	err    error
}

func (p *fakeProber) Probe(_ context.Context, _ string) (report.ProbeResult, error) {
	if p.err != nil {
		return report.ProbeResult{}, p.err
	}
	return p.result, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []report.CreatedEvent
	err    error
}

func (n *fakeNotifier) Notify(_ context.Context, event report.CreatedEvent) error {
	if n.err != nil {
		return n.err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *fakeNotifier) delivered() []report.CreatedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]report.CreatedEvent, len(n.events))
	copy(out, n.events)
	return out
}

type fakeHasher struct {
	hash string
	err  error
}

func (h *fakeHasher) Hash(data []byte) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	if h.hash != "" {
		return h.hash, nil
	}
	return string(data), nil
}

type fakeIDs struct {
	mu sync.Mutex
	n  int
}

func (g *fakeIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("uid%d", g.n), nil
}
