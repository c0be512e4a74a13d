package weather

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/i474232898/weather-lake-ingest/internal/weather"

// Service orchestrates one fetch, persist and upload cycle per Run.
type Service struct {
	loc       Location
	fetcher   Fetcher
	writer    LandingWriter
	uploader  Uploader
	retry     RetryPolicy
	history   HistoryStore
	observers []Observer
	logger    *zap.Logger
	now       func() time.Time
	tracer    trace.Tracer
}

// Option customises a Service.
type Option func(*Service)

// WithRetryPolicy overrides DefaultRetryPolicy for the fetch stage.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Service) { s.retry = p }
}

// WithLogger sets the logger used for stage status lines.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHistory records every finished run in h.
func WithHistory(h HistoryStore) Option {
	return func(s *Service) { s.history = h }
}

// WithObservers registers observers called after every run.
func WithObservers(obs ...Observer) Option {
	return func(s *Service) { s.observers = append(s.observers, obs...) }
}

// WithClock replaces time.Now for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a new Service.
func NewService(loc Location, fetcher Fetcher, writer LandingWriter, uploader Uploader, opts ...Option) *Service {
	s := &Service{
		loc:      loc,
		fetcher:  fetcher,
		writer:   writer,
		uploader: uploader,
		retry:    DefaultRetryPolicy,
		logger:   zap.NewNop(),
		now:      time.Now,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs exactly one cycle. The returned report is always populated;
// the error is non-nil when the run ended in a failure state.
func (s *Service) Run(ctx context.Context) (RunReport, error) {
	report := RunReport{
		RunID:     uuid.New(),
		State:     StatePending,
		StartedAt: s.now(),
	}
	logger := s.logger.With(zap.String("run_id", report.RunID.String()))

	ctx = ContextWithRunID(ctx, report.RunID)
	ctx, span := s.tracer.Start(ctx, "weather.run", trace.WithAttributes(
		attribute.String("run.id", report.RunID.String()),
		attribute.Float64("location.latitude", s.loc.Latitude),
		attribute.Float64("location.longitude", s.loc.Longitude),
	))
	defer span.End()

	err := s.run(ctx, &report, logger)

	report.FinishedAt = s.now()
	span.SetAttributes(
		attribute.String("run.state", string(report.State)),
		attribute.Int("run.fetch_attempts", report.FetchAttempts),
	)
	if err != nil {
		report.Error = err.Error()
		report.ErrorKind = ErrorKind(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(report.State))
		logger.Error("weather ingestion run failed",
			zap.String("state", string(report.State)),
			zap.Duration("duration", report.Duration()),
			zap.Error(err),
		)
	} else {
		logger.Info("weather ingestion run completed",
			zap.String("landing_path", report.LandingPath),
			zap.String("upload", report.Upload.String()),
			zap.Duration("duration", report.Duration()),
		)
	}

	if s.history != nil {
		s.history.SaveRun(report)
	}
	for _, o := range s.observers {
		o.ObserveRun(ctx, report)
	}
	return report, err
}

func (s *Service) run(ctx context.Context, report *RunReport, logger *zap.Logger) error {
	report.State = StateFetching
	logger.Info("fetching weather observation",
		zap.Float64("latitude", s.loc.Latitude),
		zap.Float64("longitude", s.loc.Longitude),
	)

	fetcher := WithRetry(s.fetcher, s.retry, logger)
	stageCtx, span := s.tracer.Start(ctx, "weather.fetch")
	obs, err := fetcher.Fetch(stageCtx, s.loc)
	report.FetchAttempts = fetcher.Attempts()
	endStage(span, err)
	if err != nil {
		report.State = StateFetchFailed
		return err
	}
	report.State = StateFetched
	logger.Info("weather observation fetched", zap.Int("attempts", report.FetchAttempts))

	report.State = StatePersisting
	stageCtx, span = s.tracer.Start(ctx, "weather.persist")
	path, err := s.writer.Write(stageCtx, obs)
	endStage(span, err)
	if err != nil {
		report.State = StatePersistFailed
		return err
	}
	report.LandingPath = path
	report.State = StatePersisted
	logger.Info("observation saved locally", zap.String("path", path))

	report.State = StateUploading
	stageCtx, span = s.tracer.Start(ctx, "weather.upload", trace.WithAttributes(
		attribute.String("landing.path", path),
	))
	result, err := s.uploader.Upload(stageCtx, path)
	if err == nil {
		span.SetAttributes(attribute.String("upload.result", result.String()))
	}
	endStage(span, err)
	if err != nil {
		report.State = StateUploadFailed
		return err
	}
	report.Upload = result
	report.State = StateDone
	return nil
}

func endStage(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorKind(err))
	}
	span.End()
}

// ErrorKind classifies err into the taxonomy used for logs, spans and metrics.
func ErrorKind(err error) string {
	var (
		fe *FetchError
		pe *PersistError
		ae *AuthError
		ue *UploadError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ae):
		return "auth"
	case errors.As(err, &ue):
		return "upload"
	case errors.As(err, &pe):
		return "persist"
	case errors.As(err, &fe):
		return "fetch"
	default:
		return "error"
	}
}
