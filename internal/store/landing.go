package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/i474232898/weather-lake-ingest/internal/weather"
)

const (
	// DefaultStagingDir is where landing artifacts are written, relative to the working directory.
	DefaultStagingDir = "data_lake/raw_weather"
	// DefaultFilePrefix prefixes every landing artifact name.
	DefaultFilePrefix = "billings_weather"

	fileStampLayout  = "20060102_1504"
	ingestedAtLayout = "2006-01-02T15:04:05.000000Z07:00"
)

// LandingWriter persists observations as JSON files under a staging directory.
type LandingWriter struct {
	dir    string
	prefix string
	now    func() time.Time
}

// NewLandingWriter creates a writer rooted at dir. A nil clock means time.Now.
func NewLandingWriter(dir, prefix string, now func() time.Time) *LandingWriter {
	if dir == "" {
		dir = DefaultStagingDir
	}
	if prefix == "" {
		prefix = DefaultFilePrefix
	}
	if now == nil {
		now = time.Now
	}
	return &LandingWriter{dir: dir, prefix: prefix, now: now}
}

// FileName returns the landing artifact name for t, truncated to the minute.
func (w *LandingWriter) FileName(t time.Time) string {
	return fmt.Sprintf("%s_%s.json", w.prefix, t.Format(fileStampLayout))
}

// Write stamps obs with ingested_at and writes it to <dir>/<prefix>_<YYYYMMDD_HHMM>.json.
// The caller's map is not modified. An existing file for the same minute is replaced.
func (w *LandingWriter) Write(ctx context.Context, obs weather.Observation) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &weather.PersistError{Op: "write", Path: w.dir, Err: err}
	}

	now := w.now()
	record := make(weather.Observation, len(obs)+1)
	for k, v := range obs {
		record[k] = v
	}
	record[weather.IngestedAtKey] = now.Format(ingestedAtLayout)

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", &weather.PersistError{Op: "mkdir", Path: w.dir, Err: err}
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", &weather.PersistError{Op: "encode", Path: w.dir, Err: err}
	}

	path := filepath.Join(w.dir, w.FileName(now))
	if err := writeFileAtomic(path, data); err != nil {
		return "", &weather.PersistError{Op: "write", Path: path, Err: err}
	}
	return path, nil
}

// writeFileAtomic writes data to a temp file in the target directory, syncs it
// and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()

	cleanup := func(err error) error {
		f.Close()
		os.Remove(tmp)
		return err
	}

	if _, err := f.Write(data); err != nil {
		return cleanup(err)
	}
	if err := f.Sync(); err != nil {
		return cleanup(err)
	}
	if err := f.Chmod(0o644); err != nil {
		return cleanup(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
