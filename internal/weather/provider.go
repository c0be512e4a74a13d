package weather

import (
	"context"
	"time"
)

// Fetcher retrieves one observation for a location (e.g. Open-Meteo).
type Fetcher interface {
	Fetch(ctx context.Context, loc Location) (Observation, error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, loc Location) (Observation, error)

func (f FetcherFunc) Fetch(ctx context.Context, loc Location) (Observation, error) {
	return f(ctx, loc)
}

// LandingWriter stamps and persists an observation, returning the local path.
type LandingWriter interface {
	Write(ctx context.Context, obs Observation) (string, error)
}

// Uploader replicates a landing artifact into object storage.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (UploadResult, error)
}

// HistoryStore is the contract the in-memory run history must satisfy.
type HistoryStore interface {
	SaveRun(report RunReport)
	GetLatest() (RunReport, error)
	GetRange(from, to time.Time) ([]RunReport, error)
}

// Observer is notified once per run with the final report.
type Observer interface {
	ObserveRun(ctx context.Context, report RunReport)
}
