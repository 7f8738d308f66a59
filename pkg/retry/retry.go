// Package retry provides exponential backoff for transient failures.
// Errors classified as invalid or fatal by the errors package stop the
// retry loop immediately; everything else is retried up to the
// configured attempt count. All operations respect context cancellation,
// both during the attempt and during the backoff sleep.
package retry

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/skyward-er/segs-sub000/errors"
)

var (
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Config controls the backoff schedule.
type Config struct {
	MaxAttempts  int           // 0 or 1 means run once without retry
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	AddJitter    bool // randomize delays to avoid thundering herds
}

// DefaultConfig suits ordinary operations: 3 attempts, 100ms to 5s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Quick suits startup paths that should converge fast.
func Quick() Config {
	return Config{
		MaxAttempts:  10,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   1.5,
		AddJitter:    true,
	}
}

// Persistent suits resources worth waiting for, like the relay broker
// coming up after the ground station.
func Persistent() Config {
	return Config{
		MaxAttempts:  30,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Do runs fn until it succeeds, the attempts are exhausted, the context
// is cancelled, or fn returns a non-retryable error.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		sleep := delay
		if cfg.AddJitter && sleep > 0 {
			randMu.Lock()
			sleep += time.Duration(randSource.Int63n(int64(sleep)/2 + 1))
			randMu.Unlock()
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		next := float64(delay) * cfg.Multiplier
		if next > float64(cfg.MaxDelay) {
			delay = cfg.MaxDelay
		} else {
			delay = time.Duration(next)
		}
	}

	return fmt.Errorf("retry: %d attempts failed: %w", attempts, lastErr)
}

// DoWithResult is Do for operations that produce a value.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}

// NonRetryableError marks an error the retry loop must not retry, for
// callers outside the classified error taxonomy.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable wraps an error so Do gives up on it immediately.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// retryable rejects explicitly marked errors, configuration mistakes and
// fatal link errors; retrying any of those cannot help.
func retryable(err error) bool {
	var nre *NonRetryableError
	if stderrors.As(err, &nre) {
		return false
	}
	return !errors.IsInvalid(err) && !errors.IsFatal(err)
}

func (c Config) validate() error {
	if c.InitialDelay < 0 || c.MaxDelay < 0 {
		return stderrors.New("retry: delays cannot be negative")
	}
	if c.Multiplier < 0 {
		return stderrors.New("retry: multiplier cannot be negative")
	}
	return nil
}
