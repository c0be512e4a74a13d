package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/weather-lake-ingest/internal/weather"
)

// Runner performs one ingestion run.
type Runner interface {
	Run(ctx context.Context) (weather.RunReport, error)
}

// Scheduler periodically triggers ingestion runs.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	interval  time.Duration
	cronExpr  string
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Scheduler. When cronExpr is set it takes precedence over interval.
func New(interval time.Duration, cronExpr string, runner Runner, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := gocron.NewScheduler(time.UTC)
	// A run may spend minutes in fetch retries; never start a second one on top of it.
	s.SingletonModeAll()

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		interval:  interval,
		cronExpr:  cronExpr,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	interval := s.interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	var job *gocron.Scheduler
	if s.cronExpr != "" {
		job = s.scheduler.Cron(s.cronExpr)
	} else {
		job = s.scheduler.Every(interval)
	}

	if _, err := job.Do(s.runOnce); err != nil {
		return err
	}

	s.logger.Info("scheduler started",
		zap.Duration("interval", interval),
		zap.String("cron", s.cronExpr),
	)
	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) runOnce() {
	s.logger.Info("scheduler: running weather ingestion job")
	report, err := s.runner.Run(s.ctx)
	if err != nil {
		s.logger.Error("scheduler: ingestion run failed",
			zap.String("run_id", report.RunID.String()),
			zap.String("state", string(report.State)),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("scheduler: completed weather ingestion job",
		zap.String("run_id", report.RunID.String()),
	)
}

// Stop cancels in-flight runs and stops the scheduler.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
