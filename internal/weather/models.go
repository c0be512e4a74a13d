package weather

import (
	"time"

	"github.com/google/uuid"
)

// IngestedAtKey is the single key the pipeline adds to an observation.
const IngestedAtKey = "ingested_at"

// Variables requested from the weather API for the current conditions.
var Variables = []string{
	"temperature_2m",
	"relative_humidity_2m",
	"precipitation",
	"wind_speed_10m",
}

// Observation is the raw JSON object returned by the weather API.
// The pipeline never inspects its fields.
type Observation map[string]any

// Location is the fixed coordinate pair the pipeline tracks.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
}

// RunState is a step of the per-run state machine.
type RunState string

const (
	StatePending       RunState = "PENDING"
	StateFetching      RunState = "FETCHING"
	StateFetched       RunState = "FETCHED"
	StateFetchFailed   RunState = "FETCH_FAILED"
	StatePersisting    RunState = "PERSISTING"
	StatePersisted     RunState = "PERSISTED"
	StatePersistFailed RunState = "PERSIST_FAILED"
	StateUploading     RunState = "UPLOADING"
	StateDone          RunState = "DONE"
	StateUploadFailed  RunState = "UPLOAD_FAILED"
)

// Terminal reports whether no further transition can happen in this run.
func (s RunState) Terminal() bool {
	switch s {
	case StateDone, StateFetchFailed, StatePersistFailed, StateUploadFailed:
		return true
	default:
		return false
	}
}

// Failed reports whether s is one of the failure states.
func (s RunState) Failed() bool {
	return s == StateFetchFailed || s == StatePersistFailed || s == StateUploadFailed
}

// SkipReason explains why the uploader deliberately did nothing.
type SkipReason string

const (
	SkipNone          SkipReason = ""
	SkipLocalMode     SkipReason = "skipped - local mode"
	SkipNotConfigured SkipReason = "skipped - not configured"
)

// UploadResult is what the archive stage reports back.
// Key is set only when an object was written.
type UploadResult struct {
	Bucket  string     `json:"bucket,omitempty"`
	Key     string     `json:"key,omitempty"`
	Skipped SkipReason `json:"skipped,omitempty"`
}

// Uploaded reports whether an archive object was created.
func (r UploadResult) Uploaded() bool {
	return r.Skipped == SkipNone && r.Key != ""
}

// String returns the human readable status of the upload.
func (r UploadResult) String() string {
	if r.Skipped != SkipNone {
		return string(r.Skipped)
	}
	if r.Key == "" {
		return "not attempted"
	}
	return "s3://" + r.Bucket + "/" + r.Key
}

// RunReport summarises one fetch-persist-upload cycle.
type RunReport struct {
	RunID         uuid.UUID    `json:"runId"`
	State         RunState     `json:"state"`
	FetchAttempts int          `json:"fetchAttempts"`
	LandingPath   string       `json:"landingPath,omitempty"`
	Upload        UploadResult `json:"upload"`
	StartedAt     time.Time    `json:"startedAt"`
	FinishedAt    time.Time    `json:"finishedAt"`
	Error         string       `json:"error,omitempty"`
	ErrorKind     string       `json:"errorKind,omitempty"`
}

// Duration is the wall time between start and finish of the run.
func (r RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
