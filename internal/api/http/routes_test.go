package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/i474232898/weather-lake-ingest/internal/store"
	"github.com/i474232898/weather-lake-ingest/internal/weather"
)

var base = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func seededApp(t *testing.T, n int) (*store.MemoryStore, *prometheus.Registry) {
	t.Helper()
	history := store.NewMemoryStore(10, 0)
	for i := 0; i < n; i++ {
		started := base.Add(time.Duration(i) * 15 * time.Minute)
		history.SaveRun(weather.RunReport{
			RunID:      uuid.New(),
			State:      weather.StateDone,
			StartedAt:  started,
			FinishedAt: started.Add(time.Second),
			Upload:     weather.UploadResult{Skipped: weather.SkipLocalMode},
		})
	}
	return history, prometheus.NewRegistry()
}

func TestHealth(t *testing.T) {
	app := NewApp()
	history, reg := seededApp(t, 0)
	RegisterRoutes(app, history, reg)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
}

func TestLatestRun(t *testing.T) {
	app := NewApp()
	history, reg := seededApp(t, 0)
	RegisterRoutes(app, history, reg)

	// No runs yet should return 404.
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/runs/latest", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}

	history.SaveRun(weather.RunReport{RunID: uuid.New(), State: weather.StateUploadFailed, StartedAt: base, ErrorKind: "auth"})

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/runs/latest", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var got weather.RunReport
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.State != weather.StateUploadFailed || got.ErrorKind != "auth" {
		t.Fatalf("unexpected report %+v", got)
	}
}

// TestRunHistoryValidation verifies that the history endpoint enforces
// required and ordered from/to parameters.
func TestRunHistoryValidation(t *testing.T) {
	app := NewApp()
	history, reg := seededApp(t, 3)
	RegisterRoutes(app, history, reg)

	cases := []string{
		"/api/v1/runs",
		"/api/v1/runs?from=2025-01-01T12:00:00Z",
		"/api/v1/runs?from=yesterday&to=today",
		"/api/v1/runs?from=2025-01-02T00:00:00Z&to=2025-01-01T00:00:00Z",
	}
	for _, target := range cases {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected status %d, got %d", target, http.StatusBadRequest, resp.StatusCode)
		}
	}
}

func TestRunHistoryRange(t *testing.T) {
	app := NewApp()
	history, reg := seededApp(t, 4)
	RegisterRoutes(app, history, reg)

	// from as RFC3339, to as unix seconds
	from := base.Format(time.RFC3339)
	to := strconv.FormatInt(base.Add(15*time.Minute).Unix(), 10)
	target := "/api/v1/runs?from=" + from + "&to=" + to

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, resp.StatusCode, body)
	}

	var payload struct {
		Runs []weather.RunReport `json:"runs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(payload.Runs))
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/runs?from=0&to=1", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d for empty range, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app := NewApp()
	history, reg := seededApp(t, 0)
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_runs_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()
	RegisterRoutes(app, history, reg)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "test_runs_total 1") {
		t.Fatalf("expected metrics output, got %d: %s", resp.StatusCode, body)
	}
}
