package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/i474232898/weather-lake-ingest/internal/weather"
)

func TestCollectorObserveRun(t *testing.T) {
	c := NewCollector("test")
	finished := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	c.ObserveRun(context.Background(), weather.RunReport{
		State:         weather.StateDone,
		FetchAttempts: 3,
		Upload:        weather.UploadResult{Bucket: "lake", Key: "raw/weather/2025/05/01/x.json"},
		StartedAt:     finished.Add(-2 * time.Second),
		FinishedAt:    finished,
	})
	c.ObserveRun(context.Background(), weather.RunReport{
		State:         weather.StateDone,
		FetchAttempts: 1,
		Upload:        weather.UploadResult{Skipped: weather.SkipLocalMode},
	})
	c.ObserveRun(context.Background(), weather.RunReport{
		State:         weather.StateUploadFailed,
		FetchAttempts: 1,
		ErrorKind:     "auth",
	})

	if got := testutil.ToFloat64(c.RunsTotal.WithLabelValues(string(weather.StateDone))); got != 2 {
		t.Fatalf("expected 2 DONE runs, got %v", got)
	}
	if got := testutil.ToFloat64(c.FetchAttemptsTotal); got != 5 {
		t.Fatalf("expected 5 fetch attempts, got %v", got)
	}
	if got := testutil.ToFloat64(c.UploadsTotal.WithLabelValues("uploaded")); got != 1 {
		t.Fatalf("expected 1 upload, got %v", got)
	}
	if got := testutil.ToFloat64(c.UploadsTotal.WithLabelValues("skipped_local")); got != 1 {
		t.Fatalf("expected 1 local skip, got %v", got)
	}
	if got := testutil.ToFloat64(c.ErrorsTotal.WithLabelValues("auth")); got != 1 {
		t.Fatalf("expected 1 auth error, got %v", got)
	}
	if got := testutil.ToFloat64(c.LastSuccessTimestamp); got == 0 {
		t.Fatal("expected last success timestamp to be set")
	}
}

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector("test")
	b := NewCollector("test")

	a.ObserveRun(context.Background(), weather.RunReport{State: weather.StateFetchFailed, ErrorKind: "fetch"})

	if got := testutil.ToFloat64(b.ErrorsTotal.WithLabelValues("fetch")); got != 0 {
		t.Fatalf("expected separate registries, got %v", got)
	}
}
