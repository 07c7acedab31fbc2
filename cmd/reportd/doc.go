// Package main hosts the report intake service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, category, and report endpoints. Submissions are decoded
//     into report.Submission and handed to the pipeline; listings read straight from the report store.
//   - Intake pipeline: internal/pipeline.Pipeline runs each submission through validate, capture, persist. Validation
//     failures reject without side effects; capture failures are recorded and the report is persisted without an
//     artifact; only a store write failure surfaces to the submitter.
//   - Screenshot capture: an optional Colly probe confirms the page answers plain HTTP, then a Chromedp session loads
//     it headless and screenshots the viewport. Every session is isolated (fresh browser, throwaway profile) and
//     bounded by the configured navigation timeout; a semaphore caps parallel browsers.
//   - Persistence & fanout: report rows go to Postgres (BIGSERIAL ids) or an in-memory store when no DSN is set.
//     Screenshot bytes are written to the configured BlobStore (memory/local/GCS); the local backend is served back
//     under /screenshots/. When configured, a persisted report is announced over SMTP and Pub/Sub, best effort.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured logging; Prometheus
//     counters/histograms are exported via the metrics middleware and /metrics handler. The service holds no
//     per-request state outside the store, suitable for Cloud Run scale-out.
//
// Operational notes:
//   - Concurrency model: one pipeline run per request; the report store serializes id assignment (mutex or BIGSERIAL)
//     and the Chromedp capturer has its own semaphore. Shutdown is coordinated via context cancellation from main.
//   - Retries/backoff: none. A capture timeout is terminal for that run; the report is still saved without a
//     screenshot. Submitters retry storage failures themselves.
//   - Observability: zap logs carry report ids and URLs at key transitions; Prometheus tracks submissions by terminal
//     status, capture durations and failures by stage, and notification failures by channel.
//   - Cloud Run: the HTTP server listens on the configured port. Health endpoints (/healthz, /readyz) remain
//     lightweight; the process reacts to SIGTERM for graceful drain with in-flight captures bounded by their timeout.
//
// Quick checklist:
//   - Configure env vars: REPORTD_SERVER_PORT, REPORTD_DATABASE_DSN (empty keeps the in-memory store),
//     REPORTD_STORAGE_BACKEND=memory/local/gcs plus REPORTD_STORAGE_LOCAL_DIR or REPORTD_STORAGE_GCS_BUCKET,
//     REPORTD_CAPTURE_ENABLED and REPORTD_CAPTURE_NAVIGATION_TIMEOUT_SECONDS, and the REPORTD_NOTIFY_* settings
//     when SMTP or Pub/Sub announcements are wanted.
//   - Run locally: go run ./cmd/reportd -config reportd.yaml (or rely solely on env overrides).
//   - Headless Chrome must be present on the host for captures; without it reports are saved without screenshots.
package main
