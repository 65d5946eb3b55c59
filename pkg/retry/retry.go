package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dycrawler/pkg/config"
	errs "dycrawler/pkg/errors"
	"dycrawler/pkg/logger"
)

// Operation is one attempt of a retried call
type Operation func(ctx context.Context) error

// OperationWithResult is an attempt that also yields a value
type OperationWithResult[T any] func(ctx context.Context) (T, error)

// Config holds retry configuration
type Config struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int
	// Backoff strategy to use
	Backoff BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry wait
	OnRetry func(retry int, err error, delay time.Duration)
	// Logger for retry attempts
	Logger logger.Logger
}

// ErrExhausted marks an error returned after every retry was spent
var ErrExhausted = errors.New("retries exhausted")

// DefaultConfig returns three retries with 1s, 2s, 4s waits
func DefaultConfig() *Config {
	return &Config{
		MaxRetries: 3,
		Backoff:    DefaultExponentialBackoff(),
		RetryIf:    errs.IsRetryableError,
	}
}

// FromSettings builds a Config from the retry section of the application config
func FromSettings(s config.RetryConfig, log logger.Logger) *Config {
	return &Config{
		MaxRetries: s.MaxRetries,
		Backoff: &ExponentialBackoff{
			BaseDelay:    s.BaseDelay,
			MaxDelay:     s.MaxDelay,
			Multiplier:   s.Multiplier,
			JitterFactor: s.JitterFactor,
		},
		RetryIf: errs.IsRetryableError,
		Logger:  log,
	}
}

// Do runs op until it succeeds, fails with a non-retryable error,
// ctx is done, or MaxRetries retries have been spent.
// Context cancellation is never retried.
func Do(ctx context.Context, op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = errs.IsRetryableError
	}
	backoff := cfg.Backoff
	if backoff == nil {
		backoff = DefaultExponentialBackoff()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			if attempt > 0 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"retries": attempt,
				})
			}
			return nil
		}

		if ctx.Err() != nil || errs.IsCancelled(err) {
			return err
		}
		if !retryIf(err) {
			return err
		}
		if attempt >= cfg.MaxRetries {
			log.WarnWithFields("retry budget exhausted", map[string]interface{}{
				"retries": cfg.MaxRetries,
				"error":   err.Error(),
			})
			return fmt.Errorf("%w after %d retries: %w", ErrExhausted, cfg.MaxRetries, err)
		}

		retry := attempt + 1
		delay := backoff.NextDelay(retry)
		if cfg.OnRetry != nil {
			cfg.OnRetry(retry, err, delay)
		}
		log.WarnWithFields("retrying operation", map[string]interface{}{
			"retry":       retry,
			"max_retries": cfg.MaxRetries,
			"delay_ms":    delay.Milliseconds(),
			"error":       err.Error(),
		})

		if werr := Wait(ctx, delay); werr != nil {
			return werr
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op OperationWithResult[T], cfg *Config) (T, error) {
	var result T
	err := Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	}, cfg)
	return result, err
}
