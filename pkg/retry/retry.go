// Package retry provides exponential-backoff retry helpers used for
// database connection attempts and AI advisory calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Config defines retry behavior with exponential backoff.
type Config struct {
	MaxRetries       int
	InitialDelay     time.Duration
	MaxDelay         time.Duration
	Multiplier       float64
	JitterFactor     float64 // 0.0-1.0; +/- fraction of each delay, spreads out synchronized retries
	MaxSameErrorType int     // consecutive same-kind failures before escalating to permanent (0 disables)
}

// DefaultConfig returns the defaults used for database connections and
// advisory calls: 3 retries starting at 100ms, doubling up to a 5s cap,
// with 10% jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:       3,
		InitialDelay:     100 * time.Millisecond,
		MaxDelay:         5 * time.Second,
		Multiplier:       2.0,
		JitterFactor:     0.1,
		MaxSameErrorType: 5,
	}
}

// backoff tracks the growing delay between attempts.
type backoff struct {
	cfg   *Config
	delay time.Duration
}

func newBackoff(cfg *Config) *backoff {
	return &backoff{cfg: cfg, delay: cfg.InitialDelay}
}

// wait sleeps for the current delay (with jitter applied) and then grows the
// delay for the next round. Cancelling ctx cuts the sleep short and returns
// the context's error.
func (b *backoff) wait(ctx context.Context) error {
	d := b.delay
	if f := b.cfg.JitterFactor; f > 0 {
		d = time.Duration(float64(d) * (1 + f*(rand.Float64()*2-1)))
	}

	select {
	case <-time.After(d):
	case <-ctx.Done():
		return ctx.Err()
	}

	b.delay = time.Duration(float64(b.delay) * b.cfg.Multiplier)
	if b.delay > b.cfg.MaxDelay {
		b.delay = b.cfg.MaxDelay
	}
	return nil
}

// Do runs fn up to MaxRetries+1 times, backing off between attempts.
// Returns nil on the first success, otherwise the last error. Cancelling ctx
// aborts a pending wait, never a call already in flight.
func Do(ctx context.Context, cfg *Config, fn func() error) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	b := newBackoff(cfg)
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == cfg.MaxRetries {
			break
		}
		if werr := b.wait(ctx); werr != nil {
			return werr
		}
	}
	return lastErr
}

// DoWithResult is Do for functions that return a value, such as pgxpool.New.
// On failure it returns the last attempt's result alongside the error.
func DoWithResult[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	b := newBackoff(cfg)
	var (
		result  T
		lastErr error
	)
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		r, err := fn()
		if err == nil {
			return r, nil
		}
		result, lastErr = r, err

		if attempt == cfg.MaxRetries {
			break
		}
		if werr := b.wait(ctx); werr != nil {
			return result, werr
		}
	}
	return result, lastErr
}

// RetryableError lets an error declare its own retryability instead of being
// string-matched. LLM errors implement it.
type RetryableError interface {
	error
	IsRetryable() bool
}

// transientPatterns is matched against lowercased error text when the error
// doesn't declare its own retryability. Drawn from the PostgreSQL and HTTP
// failure modes this engine actually sees.
var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"connection timed out",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"i/o timeout",
	"timeout",
	"timed out",
	"temporary failure",
	"too many connections",
	"deadlock",
	"429",
	"500",
	"502",
	"503",
	"504",
	"rate limit",
	"too many requests",
	"service unavailable",
	"service busy",
}

// IsRetryable reports whether an error is transient and worth retrying, so
// permanent failures (bad credentials, malformed requests) don't burn the
// retry budget. Errors implementing RetryableError anywhere in their unwrap
// chain decide for themselves; everything else is pattern-matched.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var re RetryableError
	if errors.As(err, &re) {
		return re.IsRetryable()
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// errorKind buckets an error for streak detection. Status codes win over
// text so two differently worded 503s still count as the same failing
// dependency.
func errorKind(err error) string {
	if err == nil {
		return "nil"
	}

	msg := strings.ToLower(err.Error())
	for _, code := range []string{"503", "502", "504", "500", "429", "404", "403", "401", "400"} {
		if strings.Contains(msg, code) {
			return code
		}
	}

	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection reset"):
		return "connection"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return "timeout"
	case strings.Contains(msg, "broken pipe"):
		return "broken_pipe"
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many requests"):
		return "rate_limit"
	}
	return "unknown"
}

// DoIfRetryable retries only transient failures; permanent errors return
// immediately. A streak of MaxSameErrorType identical failure kinds is
// escalated to a permanent error, since a dependency that keeps failing the
// same way isn't coming back within the retry budget.
func DoIfRetryable(ctx context.Context, cfg *Config, fn func() error) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	b := newBackoff(cfg)
	var (
		lastErr    error
		streakKind string
		streak     int
	)
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}

		kind := errorKind(err)
		if kind == streakKind {
			streak++
			if cfg.MaxSameErrorType > 0 && streak >= cfg.MaxSameErrorType {
				return fmt.Errorf("repeated error (%d times, type=%s): %w", streak, kind, err)
			}
		} else {
			streakKind, streak = kind, 1
		}

		if attempt == cfg.MaxRetries {
			break
		}
		if werr := b.wait(ctx); werr != nil {
			return werr
		}
	}
	return lastErr
}
