package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/weather-lake-ingest/internal/archive"
	"github.com/i474232898/weather-lake-ingest/internal/store"
	"github.com/i474232898/weather-lake-ingest/internal/weather"
	"github.com/i474232898/weather-lake-ingest/internal/weather/providers"
)

// Billings, MT.
const (
	defaultLatitude  = 45.7833
	defaultLongitude = -108.5007
	defaultTimezone  = "America/Denver"
)

var validate = validator.New()

// LookupFunc reads one key from an environment source.
type LookupFunc func(key string) (string, bool)

type AppConfig struct {
	Latitude   float64 `validate:"gte=-90,lte=90"`
	Longitude  float64 `validate:"gte=-180,lte=180"`
	Timezone   string  `validate:"required"`
	APIBaseURL string  `validate:"required,url"`

	StagingDir string `validate:"required"`
	FilePrefix string `validate:"required"`

	// Bucket may be empty; the uploader then skips with a warning.
	Bucket    string
	RunMode   archive.RunMode  `validate:"oneof=local cloud"`
	KeyPrefix string           `validate:"required"`
	S3        archive.S3Config `validate:"-"`

	FetchMaxAttempts int           `validate:"gte=1"`
	FetchRetryDelay  time.Duration `validate:"gt=0"`
	HTTPTimeout      time.Duration `validate:"gte=0"`

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json console"`

	PushgatewayURL string `validate:"omitempty,url"`
	NATSURL        string
	NATSSubject    string `validate:"required"`
	OTLPEndpoint   string

	// serve mode
	FetchInterval    time.Duration `validate:"gte=1m"`
	FetchSchedule    string
	Port             string `validate:"required,numeric"`
	RunHistoryMax    int
	RunHistoryMaxAge time.Duration
}

// Location returns the fixed coordinate pair the pipeline fetches.
func (c *AppConfig) Location() weather.Location {
	return weather.Location{
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
		Timezone:  c.Timezone,
	}
}

// RetryPolicy returns the fetch retry schedule.
func (c *AppConfig) RetryPolicy() weather.RetryPolicy {
	return weather.RetryPolicy{MaxAttempts: c.FetchMaxAttempts, Delay: c.FetchRetryDelay}
}

// Archive returns the uploader configuration.
func (c *AppConfig) Archive() archive.Config {
	return archive.Config{Bucket: c.Bucket, RunMode: c.RunMode, KeyPrefix: c.KeyPrefix}
}

// Load reads configuration from .env and the process environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads configuration from lookup and validates it.
func LoadFrom(lookup LookupFunc) (*AppConfig, error) {
	env := source{lookup: lookup}
	cfg := &AppConfig{}
	var err error

	if cfg.Latitude, err = env.floatVal("WEATHER_LATITUDE", defaultLatitude); err != nil {
		return nil, err
	}
	if cfg.Longitude, err = env.floatVal("WEATHER_LONGITUDE", defaultLongitude); err != nil {
		return nil, err
	}
	cfg.Timezone = env.str("WEATHER_TIMEZONE", defaultTimezone)
	cfg.APIBaseURL = env.str("WEATHER_API_URL", providers.DefaultOpenMeteoURL)

	cfg.StagingDir = env.str("STAGING_DIR", store.DefaultStagingDir)
	cfg.FilePrefix = env.str("LANDING_FILE_PREFIX", store.DefaultFilePrefix)

	cfg.Bucket = strings.TrimSpace(env.str("S3_BUCKET_NAME", ""))
	if cfg.RunMode, err = archive.ParseRunMode(env.str("RUN_MODE", string(archive.ModeCloud))); err != nil {
		return nil, fmt.Errorf("invalid RUN_MODE: %w", err)
	}
	cfg.KeyPrefix = env.str("S3_KEY_PREFIX", archive.DefaultKeyPrefix)
	cfg.S3 = archive.S3Config{
		Endpoint:  env.str("S3_ENDPOINT", ""),
		Region:    env.str("S3_REGION", ""),
		AccessKey: env.str("S3_ACCESS_KEY", ""),
		SecretKey: env.str("S3_SECRET_KEY", ""),
	}
	if cfg.S3.ForcePathStyle, err = env.boolVal("S3_FORCE_PATH_STYLE", false); err != nil {
		return nil, err
	}

	if cfg.FetchMaxAttempts, err = env.intVal("FETCH_MAX_ATTEMPTS", weather.DefaultRetryPolicy.MaxAttempts); err != nil {
		return nil, err
	}
	if cfg.FetchRetryDelay, err = env.durationVal("FETCH_RETRY_DELAY", weather.DefaultRetryPolicy.Delay); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = env.durationVal("HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	cfg.LogLevel = strings.ToLower(env.str("LOG_LEVEL", "info"))
	cfg.LogFormat = strings.ToLower(env.str("LOG_FORMAT", "json"))

	cfg.PushgatewayURL = env.str("PUSHGATEWAY_URL", "")
	cfg.NATSURL = env.str("NATS_URL", "")
	cfg.NATSSubject = env.str("NATS_SUBJECT", "weather.ingest.runs.finished")
	cfg.OTLPEndpoint = env.str("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	// Scheduler interval: default 15 minutes.
	if cfg.FetchInterval, err = env.durationVal("FETCH_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}
	cfg.FetchSchedule = env.str("FETCH_SCHEDULE", "")
	cfg.Port = env.str("PORT", "8080")

	// Run history retention.
	if cfg.RunHistoryMax, err = env.intVal("RUN_HISTORY_MAX", 96); err != nil { // roughly 24h at 15-minute intervals
		return nil, err
	}
	if cfg.RunHistoryMaxAge, err = env.durationVal("RUN_HISTORY_MAX_AGE", 24*time.Hour); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

type source struct {
	lookup LookupFunc
}

func (s source) str(key, def string) string {
	if s.lookup == nil {
		return def
	}
	if v, ok := s.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (s source) intVal(key string, def int) (int, error) {
	v := s.str(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func (s source) floatVal(key string, def float64) (float64, error) {
	v := s.str(key, "")
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func (s source) boolVal(key string, def bool) (bool, error) {
	v := s.str(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func (s source) durationVal(key string, def time.Duration) (time.Duration, error) {
	v := s.str(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
