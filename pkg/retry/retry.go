package retry

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

// Config defines retry behavior driven by an explicit delay schedule.
// The number of attempts equals len(Schedule); Schedule[k-1] is waited
// after failed attempt k. No wait follows the final attempt; its failure
// is returned immediately.
type Config struct {
	Schedule     []time.Duration
	JitterFactor float64 // 0.0-1.0, fraction of +/- jitter applied to each wait
	// OnRetry, if set, is called after each failed attempt that will be
	// retried, before the wait. attempt is 1-based.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns sensible defaults for infrastructure operations
// (database connects and the like): three quick attempts with jitter.
func DefaultConfig() *Config {
	return &Config{
		Schedule:     []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond},
		JitterFactor: 0.1,
	}
}

// MaxAttempts reports how many attempts the schedule allows.
func (c *Config) MaxAttempts() int {
	if len(c.Schedule) == 0 {
		return 1
	}
	return len(c.Schedule)
}

// applyJitter adds random jitter to a delay to prevent thundering herd.
// Jitter is calculated as: delay +/- (delay * jitterFactor * random(-1 to +1))
func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}

// Do executes fn until it succeeds or the schedule is exhausted.
// Returns nil on success, or the last error. Errors that are definitively
// non-retryable (see IsRetryable) abort the loop immediately. Waits
// respect context cancellation.
func Do(ctx context.Context, cfg *Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult executes fn and returns both result and error, retrying on
// the same terms as Do.
func DoWithResult[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var result T
	var lastErr error
	attempts := cfg.MaxAttempts()

	for attempt := 1; attempt <= attempts; attempt++ {
		r, err := fn()
		if err == nil {
			return r, nil
		}

		lastErr = err
		result = r

		if !IsRetryable(err) {
			return result, lastErr
		}
		if attempt == attempts {
			break
		}

		delay := cfg.Schedule[attempt-1]
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		select {
		case <-time.After(applyJitter(delay, cfg.JitterFactor)):
		case <-ctx.Done():
			return result, ctx.Err()
		}
	}

	return result, lastErr
}

// RetryableError is an interface for errors that explicitly declare their
// retryability. Generation-backend errors implement this to distinguish
// transient failures (rate limits, overload) from permanent ones (bad API
// key, invalid request).
type RetryableError interface {
	error
	IsRetryable() bool
}

// IsRetryable determines if an error is transient and worth retrying.
//
// The function checks errors in this order:
// 1. If the error implements RetryableError, use its IsRetryable() method
// 2. Otherwise, pattern-match against known transient error strings
//
// Unknown errors are treated as retryable: a backend that answers with
// something unrecognized is more likely hiccuping than rejecting us.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if r, ok := err.(RetryableError); ok {
		return r.IsRetryable()
	}

	errStr := strings.ToLower(err.Error())

	permanentPatterns := []string{
		"invalid api key",
		"incorrect api key",
		"authentication",
		"unauthorized",
		"401",
		"403",
		"invalid_request_error",
	}
	for _, pattern := range permanentPatterns {
		if strings.Contains(errStr, pattern) {
			return false
		}
	}

	return true
}
