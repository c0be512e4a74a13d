package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/i474232898/weather-lake-ingest/internal/weather"
)

const flushTimeout = 5 * time.Second

// RunFinishedEvent is published once per run.
type RunFinishedEvent struct {
	RunID         string    `json:"run_id"`
	State         string    `json:"state"`
	FetchAttempts int       `json:"fetch_attempts"`
	LandingPath   string    `json:"landing_path,omitempty"`
	Bucket        string    `json:"bucket,omitempty"`
	ObjectKey     string    `json:"object_key,omitempty"`
	UploadStatus  string    `json:"upload_status"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Error         string    `json:"error,omitempty"`
}

// NewRunFinishedEvent converts a report into the published payload.
func NewRunFinishedEvent(r weather.RunReport) RunFinishedEvent {
	return RunFinishedEvent{
		RunID:         r.RunID.String(),
		State:         string(r.State),
		FetchAttempts: r.FetchAttempts,
		LandingPath:   r.LandingPath,
		Bucket:        r.Upload.Bucket,
		ObjectKey:     r.Upload.Key,
		UploadStatus:  r.Upload.String(),
		StartedAt:     r.StartedAt.UTC(),
		FinishedAt:    r.FinishedAt.UTC(),
		Error:         r.Error,
	}
}

// Publisher sends run notifications over NATS. Delivery is best effort;
// a failed publish never fails the run.
type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewPublisher connects to the NATS server at url.
func NewPublisher(url, subject string, logger *zap.Logger, opts ...nats.Option) (*Publisher, error) {
	if subject == "" {
		return nil, errors.New("nats subject is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]nats.Option{nats.Name("weather-ingest")}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: nc, subject: subject, logger: logger}, nil
}

// ObserveRun publishes the report and flushes so one-shot processes do not drop it.
func (p *Publisher) ObserveRun(ctx context.Context, report weather.RunReport) {
	if err := p.Publish(ctx, NewRunFinishedEvent(report)); err != nil {
		p.logger.Warn("failed to publish run notification",
			zap.String("subject", p.subject),
			zap.String("run_id", report.RunID.String()),
			zap.Error(err),
		)
	}
}

// Publish encodes evt as JSON and publishes it.
func (p *Publisher) Publish(ctx context.Context, evt RunFinishedEvent) error {
	if p == nil {
		return errors.New("nil publisher")
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return err
	}

	// FlushWithContext rejects contexts without a deadline.
	flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	return p.conn.FlushWithContext(flushCtx)
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
