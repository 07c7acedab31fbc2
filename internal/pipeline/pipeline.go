// Package pipeline sequences validation, capture, and persistence for
// one report submission.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tipline/videoreports/internal/capture"
	"github.com/tipline/videoreports/internal/metrics"
	"github.com/tipline/videoreports/internal/report"
)

// Config controls Pipeline behavior.
type Config struct {
	ContentType    string
	BlobPrefix     string
	CaptureTimeout time.Duration
}

// Pipeline runs each submission through validate, capture, persist.
// Capture is best effort: a submission with a valid URL and category is
// persisted even when no screenshot could be taken. Only a store write
// failure surfaces to the submitter.
type Pipeline struct {
	store     report.Store
	blobStore report.BlobStore
	capturer  report.Capturer
	prober    report.Prober
	notifier  report.Notifier
	hasher    report.Hasher
	ids       report.IDGenerator
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Pipeline. Prober, notifier, and capturer may be nil;
// a nil capturer records every capture as failed.
func New(
	store report.Store,
	blobStore report.BlobStore,
	capturer report.Capturer,
	prober report.Prober,
	notifier report.Notifier,
	hasher report.Hasher,
	ids report.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "image/png"
	}
	if cfg.BlobPrefix == "" {
		cfg.BlobPrefix = "screenshots"
	}
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = 15 * time.Second
	}
	return &Pipeline{
		store:     store,
		blobStore: blobStore,
		capturer:  capturer,
		prober:    prober,
		notifier:  notifier,
		hasher:    hasher,
		ids:       ids,
		cfg:       cfg,
		logger:    logger,
	}
}

// Submit runs one submission to a terminal state. It never returns an
// error: every outcome, including internal failures, is expressed in
// the Result status.
func (p *Pipeline) Submit(ctx context.Context, sub report.Submission) report.Result {
	validation := report.Validate(sub.VideoURL, sub.Category)
	if !validation.OK {
		p.logger.Info("submission rejected",
			zap.String("video_url", sub.VideoURL),
			zap.Int("field_errors", len(validation.FieldErrors)),
		)
		metrics.ObserveSubmission(string(report.StatusRejected))
		return report.Result{Status: report.StatusRejected, FieldErrors: validation.FieldErrors}
	}

	videoURL := strings.TrimSpace(sub.VideoURL)
	captured, probe := p.captureArtifact(ctx, videoURL)

	if p.store == nil {
		metrics.ObserveSubmission(string(report.StatusFailed))
		return report.Result{Status: report.StatusFailed, FailureReason: "the report could not be saved"}
	}
	rec, err := p.store.Create(ctx, report.NewReport{
		VideoURL:       videoURL,
		Category:       report.Category(sub.Category),
		Details:        sub.Details,
		ScreenshotPath: captured.ArtifactPath,
	})
	if err != nil {
		p.logger.Error("report persist failed",
			zap.String("video_url", videoURL),
			zap.Error(err),
		)
		metrics.ObserveSubmission(string(report.StatusFailed))
		return report.Result{Status: report.StatusFailed, FailureReason: "the report could not be saved"}
	}

	if !captured.OK {
		p.logger.Warn("report saved without screenshot",
			zap.Int64("report_id", rec.ID),
			zap.String("reason", captured.FailureReason),
		)
	} else {
		p.logger.Info("report saved",
			zap.Int64("report_id", rec.ID),
			zap.String("screenshot", rec.ScreenshotPath),
		)
	}

	p.notifyCreated(ctx, rec, captured, probe)
	metrics.ObserveSubmission(string(report.StatusSucceeded))
	return report.Result{Status: report.StatusSucceeded, Report: &rec}
}

// captureArtifact runs the capturing phase: probe, browser session,
// checksum, blob write. The whole phase shares one deadline so a stuck
// step cannot hold the submission open.
func (p *Pipeline) captureArtifact(parent context.Context, videoURL string) (report.CaptureResult, report.ProbeResult) {
	var probe report.ProbeResult
	if p.capturer == nil {
		return report.CaptureResult{FailureReason: "screenshot capture is not configured"}, probe
	}

	ctx, cancel := context.WithTimeout(parent, p.cfg.CaptureTimeout)
	defer cancel()

	metrics.IncCapturesInflight()
	defer metrics.DecCapturesInflight()

	if p.prober != nil {
		res, err := p.prober.Probe(ctx, videoURL)
		if err != nil {
			p.logger.Warn("page probe failed",
				zap.String("video_url", videoURL),
				zap.Error(err),
			)
			metrics.ObserveCaptureFailure(metrics.CaptureStageProbe)
			return report.CaptureResult{FailureReason: fmt.Sprintf("page probe failed: %v", err)}, probe
		}
		probe = res
	}

	start := time.Now()
	shot, err := p.capturer.Capture(ctx, videoURL)
	if err != nil {
		p.logger.Warn("screenshot capture failed",
			zap.String("video_url", videoURL),
			zap.Error(err),
		)
		metrics.ObserveCaptureFailure(metrics.CaptureStageBrowser)
		return report.CaptureResult{FailureReason: fmt.Sprintf("screenshot capture failed: %v", err)}, probe
	}
	metrics.ObserveCaptureDuration(time.Since(start))

	checksum, err := p.hasher.Hash(shot)
	if err != nil {
		metrics.ObserveCaptureFailure(metrics.CaptureStageArtifact)
		return report.CaptureResult{FailureReason: fmt.Sprintf("hash screenshot: %v", err)}, probe
	}
	uniqueID, err := p.ids.NewID()
	if err != nil {
		metrics.ObserveCaptureFailure(metrics.CaptureStageArtifact)
		return report.CaptureResult{FailureReason: fmt.Sprintf("derive artifact name: %v", err)}, probe
	}

	if p.blobStore == nil {
		metrics.ObserveCaptureFailure(metrics.CaptureStageArtifact)
		return report.CaptureResult{FailureReason: "screenshot storage is not configured"}, probe
	}
	uri, err := p.blobStore.PutObject(ctx, p.buildBlobPath(videoURL, uniqueID), p.cfg.ContentType, shot)
	if err != nil {
		p.logger.Warn("screenshot store failed",
			zap.String("video_url", videoURL),
			zap.Error(err),
		)
		metrics.ObserveCaptureFailure(metrics.CaptureStageArtifact)
		return report.CaptureResult{FailureReason: fmt.Sprintf("store screenshot: %v", err)}, probe
	}

	return report.CaptureResult{OK: true, ArtifactPath: uri, Checksum: checksum}, probe
}

func (p *Pipeline) buildBlobPath(videoURL, uniqueID string) string {
	prefix := strings.Trim(p.cfg.BlobPrefix, "/")
	name := capture.FileName(videoURL, uniqueID)
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func (p *Pipeline) notifyCreated(
	ctx context.Context,
	rec report.Report,
	captured report.CaptureResult,
	probe report.ProbeResult,
) {
	if p.notifier == nil {
		return
	}
	event := report.CreatedEvent{
		Report:        rec,
		CategoryLabel: rec.Category.Label(),
		Checksum:      captured.Checksum,
		PageTitle:     probe.Title,
	}
	if err := p.notifier.Notify(ctx, event); err != nil {
		p.logger.Warn("report notification failed",
			zap.Int64("report_id", rec.ID),
			zap.Error(err),
		)
	}
}
