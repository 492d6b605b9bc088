package fetcher

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// RetryOptions bound upstream retries.
type RetryOptions struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

// DefaultRetryOptions tries four times, waiting 0.5s growing to 8s with jitter.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{MaxAttempts: 4, InitialInterval: 500 * time.Millisecond, MaxInterval: 8 * time.Second}
}

func (o RetryOptions) withDefaults() RetryOptions {
	d := DefaultRetryOptions()
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = d.InitialInterval
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = d.MaxInterval
	}
	return o
}

// withRetry runs op until it succeeds, returns a permanent error, the attempt
// budget is spent or ctx ends.
func withRetry(ctx context.Context, opts RetryOptions, logger zerolog.Logger, what string, op func() error) error {
	opts = opts.withDefaults()

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = opts.InitialInterval
	exp.MaxInterval = opts.MaxInterval
	exp.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(opts.MaxAttempts-1)), ctx)

	attempt := func() error {
		err := op()
		if err == nil {
			return nil
		}
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return err
		}
		if apiErr, ok := IsAPIError(err); ok && !apiErr.Retryable() {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn().Err(err).Str("call", what).Dur("retry_in", wait).Msg("upstream call failed, retrying")
	}
	return backoff.RetryNotify(attempt, policy, notify)
}

func backoffPermanent(err error) error {
	return backoff.Permanent(err)
}
