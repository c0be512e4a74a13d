package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-lake-ingest/internal/weather"
)

type signalRunner struct {
	calls chan context.Context
}

func (r *signalRunner) Run(ctx context.Context) (weather.RunReport, error) {
	r.calls <- ctx
	return weather.RunReport{RunID: uuid.New(), State: weather.StateDone}, nil
}

func TestSchedulerRunsImmediately(t *testing.T) {
	runner := &signalRunner{calls: make(chan context.Context, 4)}
	s := New(time.Hour, "", runner, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var ctx context.Context
	select {
	case ctx = <-runner.calls:
	case <-time.After(5 * time.Second):
		t.Fatal("expected an immediate run")
	}

	s.Stop()
	if ctx.Err() == nil {
		t.Fatal("expected run context to be cancelled on stop")
	}
}

func TestSchedulerRejectsBadCron(t *testing.T) {
	s := New(0, "not a cron", &signalRunner{calls: make(chan context.Context, 1)}, nil)
	defer s.Stop()
	if err := s.Start(); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}
