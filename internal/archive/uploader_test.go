package archive

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/i474232898/weather-lake-ingest/internal/weather"
)

type putCall struct {
	bucket, key, path string
	metadata          map[string]string
}

type fakeStore struct {
	calls []putCall
	err   error
}

func (f *fakeStore) PutFile(ctx context.Context, bucket, key, localPath string, metadata map[string]string) error {
	f.calls = append(f.calls, putCall{bucket, key, localPath, metadata})
	return f.err
}

// countingFactory records how often the client is built.
func countingFactory(store ObjectStore, n *int) ClientFactory {
	return func(context.Context) (ObjectStore, error) {
		*n++
		return store, nil
	}
}

var uploadDay = time.Date(2025, 7, 4, 23, 59, 0, 0, time.UTC)

func clock() time.Time { return uploadDay }

const landing = "data_lake/raw_weather/billings_weather_20250704_2359.json"

func TestObjectKey(t *testing.T) {
	got := NewObjectKey("", uploadDay, landing).String()
	want := "raw/weather/2025/07/04/billings_weather_20250704_2359.json"
	if got != want {
		t.Fatalf("expected key %s, got %s", want, got)
	}

	got = NewObjectKey("/archive/", time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), "/abs/path/f.json").String()
	if got != "archive/2024/12/01/f.json" {
		t.Fatalf("unexpected key %s", got)
	}
}

func TestUploaderLocalModeNeverTouchesClient(t *testing.T) {
	store := &fakeStore{}
	built := 0
	u := NewUploader(Config{Bucket: "lake", RunMode: ModeLocal}, countingFactory(store, &built), nil, clock)

	res, err := u.Upload(context.Background(), landing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Skipped != weather.SkipLocalMode {
		t.Fatalf("expected %q, got %+v", weather.SkipLocalMode, res)
	}
	if built != 0 || len(store.calls) != 0 {
		t.Fatalf("expected no client use in local mode, built=%d calls=%d", built, len(store.calls))
	}
}

func TestUploaderMissingBucketIsWarning(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	store := &fakeStore{}
	built := 0

	for _, mode := range []RunMode{"", ModeCloud} {
		u := NewUploader(Config{Bucket: "  ", RunMode: mode}, countingFactory(store, &built), zap.New(core), clock)

		res, err := u.Upload(context.Background(), landing)
		if err != nil {
			t.Fatalf("mode %q: unexpected error: %v", mode, err)
		}
		if res.Skipped != weather.SkipNotConfigured {
			t.Fatalf("mode %q: expected %q, got %+v", mode, weather.SkipNotConfigured, res)
		}
	}

	if built != 0 || len(store.calls) != 0 {
		t.Fatalf("expected no client use without a bucket, built=%d calls=%d", built, len(store.calls))
	}
	warns := logs.FilterLevelExact(zapcore.WarnLevel).Len()
	if warns != 2 {
		t.Fatalf("expected 2 warnings, got %d", warns)
	}
}

func TestUploaderUploads(t *testing.T) {
	store := &fakeStore{}
	built := 0
	u := NewUploader(Config{Bucket: "lake", RunMode: ModeCloud}, countingFactory(store, &built), nil, clock)

	runID := uuid.New()
	ctx := weather.ContextWithRunID(context.Background(), runID)

	for i := 0; i < 2; i++ {
		res, err := u.Upload(ctx, landing)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := "raw/weather/2025/07/04/billings_weather_20250704_2359.json"
		if res.Key != want || res.Bucket != "lake" || !res.Uploaded() {
			t.Fatalf("unexpected result %+v", res)
		}
	}

	if built != 1 {
		t.Fatalf("expected client to be built once, got %d", built)
	}
	if len(store.calls) != 2 {
		t.Fatalf("expected 2 puts, got %d", len(store.calls))
	}
	call := store.calls[0]
	if call.bucket != "lake" || call.path != landing {
		t.Fatalf("unexpected put %+v", call)
	}
	if call.metadata["run-id"] != runID.String() {
		t.Fatalf("expected run-id metadata %s, got %v", runID, call.metadata)
	}
}

func TestUploaderClassifiesFailures(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantAuth bool
	}{
		{"missing credentials", fmt.Errorf("%w: no EC2 IMDS role found", ErrMissingCredentials), true},
		{"invalid key", &smithy.GenericAPIError{Code: "InvalidAccessKeyId", Message: "bad key"}, true},
		{"bad signature", fmt.Errorf("operation error S3: PutObject: %w", &smithy.GenericAPIError{Code: "SignatureDoesNotMatch"}), true},
		{"expired", &smithy.GenericAPIError{Code: "ExpiredToken"}, true},
		{"no bucket", &smithy.GenericAPIError{Code: "NoSuchBucket"}, false},
		{"network", errors.New("dial tcp: connection refused"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeStore{err: tc.err}
			u := NewUploader(Config{Bucket: "lake"}, StaticClient(store), nil, clock)

			res, err := u.Upload(context.Background(), landing)
			if res.Uploaded() {
				t.Fatalf("expected no archive object, got %+v", res)
			}

			var ae *weather.AuthError
			var ue *weather.UploadError
			switch {
			case tc.wantAuth && !errors.As(err, &ae):
				t.Fatalf("expected *weather.AuthError, got %v", err)
			case !tc.wantAuth && !errors.As(err, &ue):
				t.Fatalf("expected *weather.UploadError, got %v", err)
			}
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected cause to be preserved, got %v", err)
			}
		})
	}
}

func TestUploaderClientFactoryFailure(t *testing.T) {
	factory := func(context.Context) (ObjectStore, error) {
		return nil, errors.New("load aws config: bad profile")
	}
	u := NewUploader(Config{Bucket: "lake"}, factory, nil, clock)

	_, err := u.Upload(context.Background(), landing)
	var ue *weather.UploadError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *weather.UploadError, got %v", err)
	}
	if ue.Key != "raw/weather/2025/07/04/billings_weather_20250704_2359.json" {
		t.Fatalf("unexpected key in error: %s", ue.Key)
	}
}

func TestParseRunMode(t *testing.T) {
	cases := map[string]RunMode{
		"":        ModeCloud,
		"cloud":   ModeCloud,
		" LOCAL ": ModeLocal,
		"local":   ModeLocal,
	}
	for in, want := range cases {
		got, err := ParseRunMode(in)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: expected %s, got %s", in, want, got)
		}
	}
	if _, err := ParseRunMode("hybrid"); err == nil {
		t.Fatal("expected error for unknown run mode")
	}
}
