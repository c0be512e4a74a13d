package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// RetryPolicy is a bounded, fixed-delay retry schedule.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy is three attempts, one minute apart.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Delay: time.Minute}

func (p RetryPolicy) backoff() (retry.Backoff, error) {
	if p.MaxAttempts < 1 {
		return nil, fmt.Errorf("retry: max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.Delay <= 0 {
		return nil, fmt.Errorf("retry: delay must be positive, got %s", p.Delay)
	}
	return retry.WithMaxRetries(uint64(p.MaxAttempts-1), retry.NewConstant(p.Delay)), nil
}

// RetryFetcher decorates a Fetcher with a RetryPolicy. Only *FetchError is retried.
// A RetryFetcher is not safe for concurrent use; build one per run.
type RetryFetcher struct {
	next     Fetcher
	policy   RetryPolicy
	logger   *zap.Logger
	attempts int
}

// WithRetry wraps next so that transient fetch failures are retried per policy.
func WithRetry(next Fetcher, policy RetryPolicy, logger *zap.Logger) *RetryFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryFetcher{next: next, policy: policy, logger: logger}
}

// Attempts returns how many times the wrapped fetcher was called by the last Fetch.
func (r *RetryFetcher) Attempts() int {
	return r.attempts
}

// Fetch calls the wrapped fetcher until it succeeds, a non-retryable error occurs,
// or the attempt bound is reached.
func (r *RetryFetcher) Fetch(ctx context.Context, loc Location) (Observation, error) {
	r.attempts = 0

	b, err := r.policy.backoff()
	if err != nil {
		return nil, err
	}

	var (
		obs     Observation
		lastErr error
	)
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		r.attempts++
		attempt := r.attempts

		result, fetchErr := r.next.Fetch(ctx, loc)
		if fetchErr == nil {
			obs = result
			return nil
		}
		lastErr = fetchErr

		var fe *FetchError
		if !errors.As(fetchErr, &fe) || ctx.Err() != nil {
			return fetchErr
		}

		if attempt < r.policy.MaxAttempts {
			r.logger.Warn("weather fetch failed, will retry",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", r.policy.MaxAttempts),
				zap.Duration("delay", r.policy.Delay),
				zap.Error(fetchErr),
			)
		}
		return retry.RetryableError(fetchErr)
	})
	if err == nil {
		return obs, nil
	}

	var fe *FetchError
	if ctx.Err() == nil && errors.As(err, &fe) && r.attempts >= r.policy.MaxAttempts {
		return nil, errors.Join(ErrFetchExhausted, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil && lastErr != nil {
		return nil, fmt.Errorf("%w (last error: %v)", ctxErr, lastErr)
	}
	return nil, err
}
