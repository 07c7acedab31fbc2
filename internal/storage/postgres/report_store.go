// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tipline/videoreports/internal/report"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ReportStoreConfig controls the Postgres connection pool used for report rows.
type ReportStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// querier is the narrow pool surface the store needs. pgxmock satisfies
// it in tests.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// ReportStore persists the append-only report log in Postgres. Id
// assignment is delegated to the table's BIGSERIAL column, which keeps
// ids unique and monotonic under concurrent writers without any locking
// in this process.
type ReportStore struct {
	pool  querier
	table string
	clock report.Clock
}

// NewReportStore creates a Postgres-backed ReportStore using the provided config.
func NewReportStore(ctx context.Context, cfg ReportStoreConfig, clock report.Clock) (*ReportStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "reports"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ReportStore{
		pool:  pool,
		table: table,
		clock: clock,
	}, nil
}

// NewReportStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewReportStoreWithPool(pool querier, table string, clock report.Clock) (*ReportStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "reports"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ReportStore{pool: pool, table: table, clock: clock}, nil
}

// Close releases the underlying pool resources.
func (s *ReportStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping verifies database connectivity for readiness checks.
func (s *ReportStore) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("report store is not configured")
	}
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// EnsureSchema creates the report table and its listing index when they
// do not exist yet.
func (s *ReportStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("report store is not configured")
	}
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	video_url TEXT NOT NULL,
	report_category TEXT NOT NULL,
	report_details TEXT,
	screenshot_path TEXT,
	created_at TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create report table: %w", err)
	}
	index := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s_created_at_idx ON %s (created_at)`,
		s.table, s.table,
	)
	if _, err := s.pool.Exec(ctx, index); err != nil {
		return fmt.Errorf("create report index: %w", err)
	}
	return nil
}

// Create inserts a report row and returns the stored entity with its
// database-assigned id.
func (s *ReportStore) Create(ctx context.Context, rec report.NewReport) (report.Report, error) {
	if s == nil || s.pool == nil {
		return report.Report{}, fmt.Errorf("report store is not configured")
	}
	if rec.VideoURL == "" {
		return report.Report{}, fmt.Errorf("video url is required")
	}
	if !rec.Category.Valid() {
		return report.Report{}, fmt.Errorf("invalid report category %q", rec.Category)
	}

	now := s.now()
	query := fmt.Sprintf(`
INSERT INTO %s (
	video_url,
	report_category,
	report_details,
	screenshot_path,
	created_at
) VALUES (
	$1,$2,$3,$4,$5
) RETURNING id`, s.table)

	var id int64
	err := s.pool.QueryRow(
		ctx,
		query,
		rec.VideoURL,
		string(rec.Category),
		nullable(rec.Details),
		nullable(rec.ScreenshotPath),
		now,
	).Scan(&id)
	if err != nil {
		return report.Report{}, fmt.Errorf("insert report: %w", err)
	}

	return report.Report{
		ID:             id,
		VideoURL:       rec.VideoURL,
		Category:       rec.Category,
		Details:        rec.Details,
		Timestamp:      now,
		ScreenshotPath: rec.ScreenshotPath,
	}, nil
}

// List returns every report row, ascending by id unless descending order
// is requested.
func (s *ReportStore) List(ctx context.Context, order report.ListOrder) ([]report.Report, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("report store is not configured")
	}
	direction := "ASC"
	if order == report.OrderDescending {
		direction = "DESC"
	}
	query := fmt.Sprintf(`
SELECT id, video_url, report_category, COALESCE(report_details, ''), COALESCE(screenshot_path, ''), created_at
FROM %s
ORDER BY id %s`, s.table, direction)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	return scanReports(rows)
}

// Recent returns the newest limit reports, newest first.
func (s *ReportStore) Recent(ctx context.Context, limit int) ([]report.Report, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("report store is not configured")
	}
	if limit <= 0 {
		return []report.Report{}, nil
	}
	query := fmt.Sprintf(`
SELECT id, video_url, report_category, COALESCE(report_details, ''), COALESCE(screenshot_path, ''), created_at
FROM %s
ORDER BY id DESC
LIMIT $1`, s.table)

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent reports: %w", err)
	}
	defer rows.Close()

	return scanReports(rows)
}

// Get fetches a report by id, mapping missing rows to report.ErrNotFound.
func (s *ReportStore) Get(ctx context.Context, id int64) (report.Report, error) {
	if s == nil || s.pool == nil {
		return report.Report{}, fmt.Errorf("report store is not configured")
	}
	query := fmt.Sprintf(`
SELECT id, video_url, report_category, COALESCE(report_details, ''), COALESCE(screenshot_path, ''), created_at
FROM %s
WHERE id = $1`, s.table)

	rec, err := scanReport(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return report.Report{}, report.ErrNotFound
		}
		return report.Report{}, fmt.Errorf("get report: %w", err)
	}
	return rec, nil
}

func (s *ReportStore) now() time.Time {
	if s.clock != nil {
		return s.clock.Now()
	}
	return time.Now().UTC()
}

func scanReports(rows pgx.Rows) ([]report.Report, error) {
	out := []report.Report{}
	for rows.Next() {
		rec, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate report rows: %w", err)
	}
	return out, nil
}

func scanReport(row pgx.Row) (report.Report, error) {
	var (
		rec      report.Report
		category string
	)
	err := row.Scan(
		&rec.ID,
		&rec.VideoURL,
		&category,
		&rec.Details,
		&rec.ScreenshotPath,
		&rec.Timestamp,
	)
	if err != nil {
		return report.Report{}, err
	}
	rec.Category = report.Category(category)
	return rec, nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
