package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/i474232898/weather-lake-ingest/internal/weather"
)

// RunMode gates whether the uploader talks to object storage at all.
type RunMode string

const (
	ModeLocal RunMode = "local"
	ModeCloud RunMode = "cloud"
)

// ParseRunMode normalises s; an empty string means ModeCloud.
func ParseRunMode(s string) (RunMode, error) {
	switch m := RunMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeCloud, nil
	case ModeLocal, ModeCloud:
		return m, nil
	default:
		return "", fmt.Errorf("unknown run mode %q (want %q or %q)", s, ModeLocal, ModeCloud)
	}
}

// ErrMissingCredentials means no usable object storage credentials were found.
var ErrMissingCredentials = errors.New("object storage credentials not found")

// Error codes returned by S3 when the caller's credentials are missing, invalid or expired.
var authErrorCodes = map[string]bool{
	"AccessDenied":               true,
	"ExpiredToken":               true,
	"InvalidAccessKeyId":         true,
	"InvalidToken":               true,
	"MissingAuthenticationToken": true,
	"SignatureDoesNotMatch":      true,
	"TokenRefreshRequired":       true,
}

// IsAuthFailure reports whether err stems from missing or rejected credentials.
func IsAuthFailure(err error) bool {
	if errors.Is(err, ErrMissingCredentials) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return authErrorCodes[apiErr.ErrorCode()]
	}
	return false
}

// ObjectStore uploads a local file to bucket/key.
type ObjectStore interface {
	PutFile(ctx context.Context, bucket, key, localPath string, metadata map[string]string) error
}

// ClientFactory builds the ObjectStore on first use, so local runs never create one.
type ClientFactory func(ctx context.Context) (ObjectStore, error)

// StaticClient returns a ClientFactory that always yields store.
func StaticClient(store ObjectStore) ClientFactory {
	return func(context.Context) (ObjectStore, error) { return store, nil }
}

// Config is the archive part of the application configuration.
type Config struct {
	Bucket    string
	RunMode   RunMode
	KeyPrefix string
}

// Uploader implements weather.Uploader on top of an ObjectStore.
type Uploader struct {
	cfg       Config
	newClient ClientFactory
	logger    *zap.Logger
	now       func() time.Time

	mu     sync.Mutex
	client ObjectStore
}

// NewUploader creates an Uploader. A nil clock means time.Now.
func NewUploader(cfg Config, newClient ClientFactory, logger *zap.Logger, now func() time.Time) *Uploader {
	if cfg.RunMode == "" {
		cfg.RunMode = ModeCloud
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Uploader{cfg: cfg, newClient: newClient, logger: logger, now: now}
}

// Upload copies localPath to <prefix>/<YYYY>/<MM>/<DD>/<base name>.
// Local mode and a missing bucket are skips, not errors.
func (u *Uploader) Upload(ctx context.Context, localPath string) (weather.UploadResult, error) {
	if u.cfg.RunMode == ModeLocal {
		u.logger.Info("running in local mode, skipping object storage upload", zap.String("path", localPath))
		return weather.UploadResult{Skipped: weather.SkipLocalMode}, nil
	}

	bucket := strings.TrimSpace(u.cfg.Bucket)
	if bucket == "" {
		u.logger.Warn("S3_BUCKET_NAME not set, skipping object storage upload", zap.String("path", localPath))
		return weather.UploadResult{Skipped: weather.SkipNotConfigured}, nil
	}

	key := NewObjectKey(u.cfg.KeyPrefix, u.now(), localPath).String()

	client, err := u.clientFor(ctx)
	if err != nil {
		return weather.UploadResult{}, u.classify(bucket, key, fmt.Errorf("create client: %w", err))
	}

	metadata := map[string]string{}
	if id, ok := weather.RunIDFromContext(ctx); ok {
		metadata["run-id"] = id.String()
	}

	if err := client.PutFile(ctx, bucket, key, localPath, metadata); err != nil {
		return weather.UploadResult{}, u.classify(bucket, key, err)
	}

	u.logger.Info("uploaded landing artifact",
		zap.String("bucket", bucket),
		zap.String("key", key),
	)
	return weather.UploadResult{Bucket: bucket, Key: key}, nil
}

func (u *Uploader) clientFor(ctx context.Context) (ObjectStore, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.client != nil {
		return u.client, nil
	}
	if u.newClient == nil {
		return nil, errors.New("object storage client not configured")
	}
	c, err := u.newClient(ctx)
	if err != nil {
		return nil, err
	}
	u.client = c
	return c, nil
}

func (u *Uploader) classify(bucket, key string, err error) error {
	if IsAuthFailure(err) {
		u.logger.Error("object storage credentials missing or invalid",
			zap.String("bucket", bucket),
			zap.String("key", key),
			zap.Error(err),
		)
		return &weather.AuthError{Bucket: bucket, Key: key, Err: err}
	}
	u.logger.Error("object storage upload failed",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Error(err),
	)
	return &weather.UploadError{Bucket: bucket, Key: key, Err: err}
}
