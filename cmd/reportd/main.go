package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/tipline/videoreports/internal/api"
	"github.com/tipline/videoreports/internal/capture"
	"github.com/tipline/videoreports/internal/clock/system"
	"github.com/tipline/videoreports/internal/config"
	"github.com/tipline/videoreports/internal/hash/sha256"
	"github.com/tipline/videoreports/internal/id/uuid"
	"github.com/tipline/videoreports/internal/logging"
	"github.com/tipline/videoreports/internal/metrics"
	"github.com/tipline/videoreports/internal/notify"
	pubsubnotify "github.com/tipline/videoreports/internal/notify/pubsub"
	smtpnotify "github.com/tipline/videoreports/internal/notify/smtp"
	"github.com/tipline/videoreports/internal/pipeline"
	"github.com/tipline/videoreports/internal/probe"
	"github.com/tipline/videoreports/internal/report"
	"github.com/tipline/videoreports/internal/storage/gcs"
	"github.com/tipline/videoreports/internal/storage/local"
	"github.com/tipline/videoreports/internal/storage/memory"
	"github.com/tipline/videoreports/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	err = run(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("reportd failed", zap.Error(err))
	}
	if syncErr := logger.Sync(); syncErr != nil {
		fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
	}
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	hasher := sha256.New()
	idGen := uuid.New()

	store, ready, closeStore, err := setupStore(ctx, cfg, clock, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	blobStore, screenshotsDir, closeBlobs, err := setupBlobStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBlobs()

	capturer, closeCapturer := setupCapturer(cfg, logger)
	defer closeCapturer()

	var prober report.Prober
	if cfg.Probe.Enabled {
		prober = probe.New(probe.Config{
			UserAgent: cfg.Probe.UserAgent,
			Timeout:   cfg.ProbeTimeout(),
		})
		logger.Info("page probe enabled", zap.Duration("timeout", cfg.ProbeTimeout()))
	}

	notifier, closeNotify, err := setupNotifier(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotify()

	pl := pipeline.New(
		store,
		blobStore,
		capturer,
		prober,
		notifier,
		hasher,
		idGen,
		pipeline.Config{
			ContentType:    cfg.Storage.ContentType,
			BlobPrefix:     cfg.Storage.Prefix,
			CaptureTimeout: cfg.CaptureBudget(),
		},
		logger.Named("pipeline"),
	)

	apiServer := api.NewServer(pl, store, ready, api.Config{
		RequestTimeout: cfg.RequestTimeout(),
		ScreenshotsDir: screenshotsDir,
		RecentLimit:    cfg.Listing.RecentLimit,
	}, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}

// setupStore selects the report store: Postgres when a DSN is configured,
// in-memory otherwise. The returned ReadyFunc backs /readyz.
func setupStore(
	ctx context.Context,
	cfg config.Config,
	clock report.Clock,
	logger *zap.Logger,
) (report.Store, api.ReadyFunc, func(), error) {
	if cfg.Database.DSN == "" {
		logger.Warn("no database DSN configured, using in-memory report store")
		return memory.NewReportStore(clock), nil, func() {}, nil
	}

	pg, err := postgres.NewReportStore(ctx, postgres.ReportStoreConfig{
		DSN:      cfg.Database.DSN,
		Table:    cfg.Database.Table,
		MaxConns: int32(cfg.Database.MaxConns),
		MinConns: int32(cfg.Database.MinConns),
	}, clock)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("report store init failed: %w", err)
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, nil, nil, fmt.Errorf("report schema init failed: %w", err)
	}
	logger.Info("postgres report store initialized", zap.String("table", cfg.Database.Table))
	return pg, pg.Ping, pg.Close, nil
}

// setupBlobStore selects the screenshot sink. The returned directory is
// non-empty only for the local backend, where the API serves it under
// /screenshots/.
func setupBlobStore(
	ctx context.Context,
	cfg config.Config,
	logger *zap.Logger,
) (report.BlobStore, string, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, "", nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		blobStore, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			_ = client.Close()
			return nil, "", nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		logger.Info("using GCS storage backend", zap.String("bucket", cfg.Storage.GCSBucket))
		cleanup := func() {
			if err := client.Close(); err != nil {
				logger.Warn("gcs client close failed", zap.Error(err))
			}
		}
		return blobStore, "", cleanup, nil
	case config.BackendLocal:
		blobStore, err := local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
		if err != nil {
			return nil, "", nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		logger.Info("using local storage backend", zap.String("path", blobStore.BaseDir()))
		return blobStore, blobStore.BaseDir(), func() {}, nil
	default:
		logger.Info("using in-memory storage backend")
		return memory.NewBlobStore(), "", func() {}, nil
	}
}

// setupCapturer builds the Chromedp capturer, falling back to the noop
// capturer when capture is disabled or the browser cannot be launched.
// Reports are then persisted without screenshots.
func setupCapturer(cfg config.Config, logger *zap.Logger) (report.Capturer, func()) {
	if !cfg.Capture.Enabled {
		logger.Info("screenshot capture disabled")
		return capture.NewNoop(), func() {}
	}

	var cookies []capture.Cookie
	if cfg.Capture.CookiesFile != "" {
		loaded, err := capture.LoadCookies(cfg.Capture.CookiesFile)
		if err != nil {
			logger.Warn("cookies file rejected",
				zap.String("path", cfg.Capture.CookiesFile),
				zap.Error(err),
			)
		} else {
			cookies = loaded
			logger.Info("capture cookies loaded", zap.Int("count", len(cookies)))
		}
	}

	capturer, err := capture.NewChromedp(capture.Config{
		MaxParallel:       cfg.Capture.MaxParallel,
		UserAgent:         cfg.Capture.UserAgent,
		NavigationTimeout: cfg.NavigationTimeout(),
		SettleDelay:       cfg.SettleDelay(),
		WindowWidth:       int64(cfg.Capture.WindowWidth),
		WindowHeight:      int64(cfg.Capture.WindowHeight),
		Cookies:           cookies,
	})
	if err != nil {
		logger.Warn("headless capturer init failed", zap.Error(err))
		return capture.NewNoop(), func() {}
	}
	logger.Info("headless capturer initialized",
		zap.Int("max_parallel", cfg.Capture.MaxParallel),
		zap.Duration("navigation_timeout", cfg.NavigationTimeout()),
	)
	return capturer, capturer.Close
}

// setupNotifier builds the report-created fanout from the configured
// channels. With no channels configured, notification is skipped
// entirely.
func setupNotifier(
	ctx context.Context,
	cfg config.Config,
	logger *zap.Logger,
) (report.Notifier, func(), error) {
	var (
		channels []notify.Channel
		cleanups []func()
	)
	cleanup := func() {
		for _, fn := range cleanups {
			fn()
		}
	}

	if cfg.Notify.SMTP.Host != "" {
		channels = append(channels, notify.Channel{
			Name: "smtp",
			Notifier: smtpnotify.New(smtpnotify.Config{
				Host:     cfg.Notify.SMTP.Host,
				Port:     cfg.Notify.SMTP.Port,
				Username: cfg.Notify.SMTP.Username,
				Password: cfg.Notify.SMTP.Password,
				From:     cfg.Notify.SMTP.From,
				To:       cfg.Notify.SMTP.To,
			}),
		})
		logger.Info("smtp notifier enabled", zap.String("host", cfg.Notify.SMTP.Host))
	}

	if cfg.Notify.PubSub.ProjectID != "" && cfg.Notify.PubSub.Topic != "" {
		publisher, stopPublisher, err := pubsubnotify.Connect(ctx, cfg.Notify.PubSub.ProjectID, cfg.Notify.PubSub.Topic)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("pubsub notifier init failed: %w", err)
		}
		cleanups = append(cleanups, stopPublisher)
		channels = append(channels, notify.Channel{Name: "pubsub", Notifier: publisher})
		logger.Info("pubsub notifier enabled",
			zap.String("project", cfg.Notify.PubSub.ProjectID),
			zap.String("topic", cfg.Notify.PubSub.Topic),
		)
	}

	if len(channels) == 0 {
		return nil, cleanup, nil
	}
	return notify.NewFanout(logger.Named("notify"), channels...), cleanup, nil
}
