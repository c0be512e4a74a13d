package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/weather-lake-ingest/internal/weather"
)

var (
	// ErrNotFound is returned when no run matches the query.
	ErrNotFound = errors.New("no ingestion runs recorded")
)

// MemoryStore is a concurrency-safe in-memory history of run reports.
type MemoryStore struct {
	mu sync.RWMutex

	// ordered by StartedAt, oldest first
	runs []weather.RunReport

	// retention configuration
	maxHistory int           // max number of reports kept
	maxAge     time.Duration // optional max age for reports

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SaveRun appends a report and enforces retention.
func (s *MemoryStore) SaveRun(report weather.RunReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = append(s.runs, report)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(s.runs) > s.maxHistory {
		over := len(s.runs) - s.maxHistory
		s.runs = append([]weather.RunReport(nil), s.runs[over:]...)
	}

	// Enforce retention by age. The newest report is always kept.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(s.runs)-1; i++ {
			if !s.runs[i].StartedAt.Before(cutoff) {
				break
			}
		}
		if i > 0 {
			s.runs = s.runs[i:]
		}
	}
}

// GetLatest returns the most recent report.
func (s *MemoryStore) GetLatest() (weather.RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.runs) == 0 {
		return weather.RunReport{}, ErrNotFound
	}
	return s.runs[len(s.runs)-1], nil
}

// GetRange returns all reports started between from and to (inclusive).
func (s *MemoryStore) GetRange(from, to time.Time) ([]weather.RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []weather.RunReport
	for _, r := range s.runs {
		if !r.StartedAt.Before(from) && !r.StartedAt.After(to) {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}
