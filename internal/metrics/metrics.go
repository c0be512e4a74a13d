package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/i474232898/weather-lake-ingest/internal/weather"
)

const jobName = "weather_ingest"

// Collector holds the ingestion metrics and implements weather.Observer.
type Collector struct {
	registry *prometheus.Registry

	RunsTotal            *prometheus.CounterVec
	RunDuration          prometheus.Histogram
	FetchAttemptsTotal   prometheus.Counter
	UploadsTotal         *prometheus.CounterVec
	ErrorsTotal          *prometheus.CounterVec
	LastSuccessTimestamp prometheus.Gauge
}

// NewCollector registers the ingestion metrics on a dedicated registry.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of ingestion runs by terminal state",
			},
			[]string{"state"},
		),

		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of ingestion runs in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
			},
		),

		FetchAttemptsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_attempts_total",
				Help:      "Total number of weather API calls, retries included",
			},
		),

		UploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploads_total",
				Help:      "Archive upload outcomes",
			},
			[]string{"result"}, // "uploaded", "skipped_local", "skipped_unconfigured"
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of failed runs by error type",
			},
			[]string{"error_type"},
		),

		LastSuccessTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last run that reached DONE",
			},
		),
	}
}

// Registry exposes the registry for HTTP handlers and tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveRun records a finished run.
func (c *Collector) ObserveRun(_ context.Context, report weather.RunReport) {
	c.RunsTotal.WithLabelValues(string(report.State)).Inc()
	c.RunDuration.Observe(report.Duration().Seconds())
	c.FetchAttemptsTotal.Add(float64(report.FetchAttempts))

	if report.State.Failed() {
		kind := report.ErrorKind
		if kind == "" {
			kind = "unknown"
		}
		c.ErrorsTotal.WithLabelValues(kind).Inc()
		return
	}

	switch report.Upload.Skipped {
	case weather.SkipLocalMode:
		c.UploadsTotal.WithLabelValues("skipped_local").Inc()
	case weather.SkipNotConfigured:
		c.UploadsTotal.WithLabelValues("skipped_unconfigured").Inc()
	default:
		if report.Upload.Uploaded() {
			c.UploadsTotal.WithLabelValues("uploaded").Inc()
		}
	}
	if report.State == weather.StateDone && !report.FinishedAt.IsZero() {
		c.LastSuccessTimestamp.Set(float64(report.FinishedAt.Unix()))
	}
}

// Push sends the current metric values to a Prometheus pushgateway.
func (c *Collector) Push(ctx context.Context, gatewayURL string) error {
	if err := push.New(gatewayURL, jobName).Gatherer(c.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
