package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tipline/videoreports/internal/report"
)

// ReportStore provides an in-memory report log for development/testing.
// Ids are assigned from a counter guarded by the write lock, so they stay
// unique and monotonic under concurrent Create calls.
type ReportStore struct {
	mu      sync.RWMutex
	nextID  int64
	reports []report.Report
	clock   report.Clock
}

// NewReportStore constructs a ReportStore. A nil clock falls back to the
// wall clock.
func NewReportStore(clock report.Clock) *ReportStore {
	return &ReportStore{clock: clock}
}

// Create appends a record, assigning the next id and the creation time
// under the write lock.
func (s *ReportStore) Create(_ context.Context, rec report.NewReport) (report.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	stored := report.Report{
		ID:             s.nextID,
		VideoURL:       rec.VideoURL,
		Category:       rec.Category,
		Details:        rec.Details,
		Timestamp:      s.now(),
		ScreenshotPath: rec.ScreenshotPath,
	}
	s.reports = append(s.reports, stored)
	return stored, nil
}

// List returns every stored report, ascending by id unless descending
// order is requested.
func (s *ReportStore) List(_ context.Context, order report.ListOrder) ([]report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]report.Report, len(s.reports))
	copy(out, s.reports)
	if order == report.OrderDescending {
		reverse(out)
	}
	return out, nil
}

// Recent returns the newest limit reports, newest first.
func (s *ReportStore) Recent(_ context.Context, limit int) ([]report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		return []report.Report{}, nil
	}
	if limit > len(s.reports) {
		limit = len(s.reports)
	}
	out := make([]report.Report, limit)
	copy(out, s.reports[len(s.reports)-limit:])
	reverse(out)
	return out, nil
}

// Get fetches a report by id. The log is append-only and ids are
// contiguous from 1, so the id doubles as a slice position.
func (s *ReportStore) Get(_ context.Context, id int64) (report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id < 1 || id > int64(len(s.reports)) {
		return report.Report{}, report.ErrNotFound
	}
	return s.reports[id-1], nil
}

func (s *ReportStore) now() time.Time {
	if s.clock != nil {
		return s.clock.Now()
	}
	return time.Now().UTC()
}

func reverse(reports []report.Report) {
	for i, j := 0, len(reports)-1; i < j; i, j = i+1, j-1 {
		reports[i], reports[j] = reports[j], reports[i]
	}
}
