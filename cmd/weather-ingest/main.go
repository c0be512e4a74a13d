package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/weather-lake-ingest/internal/api/http"
	"github.com/i474232898/weather-lake-ingest/internal/archive"
	"github.com/i474232898/weather-lake-ingest/internal/config"
	"github.com/i474232898/weather-lake-ingest/internal/logging"
	"github.com/i474232898/weather-lake-ingest/internal/metrics"
	"github.com/i474232898/weather-lake-ingest/internal/notify"
	"github.com/i474232898/weather-lake-ingest/internal/scheduler"
	"github.com/i474232898/weather-lake-ingest/internal/store"
	"github.com/i474232898/weather-lake-ingest/internal/telemetry"
	"github.com/i474232898/weather-lake-ingest/internal/weather"
	"github.com/i474232898/weather-lake-ingest/internal/weather/providers"
)

const serviceName = "weather-ingest"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Fetch current weather, land it locally and archive it to S3",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context())
		},
	}

	cmd.AddCommand(newServeCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Trigger runs on a schedule and expose run status over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

// app holds everything both commands share.
type app struct {
	cfg       *config.AppConfig
	logger    *zap.Logger
	collector *metrics.Collector
	service   *weather.Service
	history   *store.MemoryStore
	closers   []func(context.Context)
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
	_ = a.logger.Sync()
}

func setup(ctx context.Context) (*app, error) {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	shutdownTracing, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(ctx context.Context) {
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	})

	// Shared HTTP client for outbound calls.
	httpClient := telemetry.HTTPClient(&http.Client{Timeout: cfg.HTTPTimeout})

	a.collector = metrics.NewCollector("weather_ingest")
	observers := []weather.Observer{a.collector}

	if cfg.NATSURL != "" {
		pub, err := notify.NewPublisher(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			// Notifications are optional; the run itself does not depend on them.
			logger.Warn("nats unavailable, run notifications disabled", zap.String("url", cfg.NATSURL), zap.Error(err))
		} else {
			observers = append(observers, pub)
			a.closers = append(a.closers, func(context.Context) { pub.Close() })
		}
	}

	s3cfg := cfg.S3
	s3cfg.HTTPClient = httpClient

	fetcher := providers.NewOpenMeteoProvider(httpClient, cfg.APIBaseURL)
	writer := store.NewLandingWriter(cfg.StagingDir, cfg.FilePrefix, nil)
	uploader := archive.NewUploader(cfg.Archive(), s3cfg.ClientFactory(), logger, nil)

	a.history = store.NewMemoryStore(cfg.RunHistoryMax, cfg.RunHistoryMaxAge)

	a.service = weather.NewService(cfg.Location(), fetcher, writer, uploader,
		weather.WithRetryPolicy(cfg.RetryPolicy()),
		weather.WithLogger(logger),
		weather.WithHistory(a.history),
		weather.WithObservers(observers...),
	)
	return a, nil
}

func runOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	report, runErr := a.service.Run(ctx)

	if a.cfg.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.collector.Push(pushCtx, a.cfg.PushgatewayURL); err != nil {
			a.logger.Warn("metrics push failed", zap.Error(err))
		}
		cancel()
	}

	if runErr != nil {
		return fmt.Errorf("run %s ended in %s: %w", report.RunID, report.State, runErr)
	}
	return nil
}

func serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	// Scheduler that periodically runs the pipeline.
	sched := scheduler.New(a.cfg.FetchInterval, a.cfg.FetchSchedule, a.service, a.logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	server := httpapi.NewApp()
	httpapi.RegisterRoutes(server, a.history, a.collector.Registry())

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("status api listening", zap.String("port", a.cfg.Port))
		errCh <- server.Listen(":" + a.cfg.Port)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("status api stopped: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		a.logger.Warn("error during shutdown", zap.Error(err))
	}
	return nil
}
