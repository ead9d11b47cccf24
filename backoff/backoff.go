package backoff

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
)

// BackoffWrapper wraps cenkalti/backoff's exponential retrier for the
// call sites that retry transient Redis and carrier errors (spec §5
// "exponential backoff with full jitter" / §7 "transient Redis error").
type BackoffWrapper struct {
	ctx       context.Context
	operation backoff.Operation[any]
	options   []backoff.RetryOption
}

func NewBackoff(ctx context.Context, initialInterval time.Duration, randomizationFactor float64, multiplier float64, maxTries uint) *BackoffWrapper {
	exponentialBackOff := backoff.NewExponentialBackOff()
	exponentialBackOff.InitialInterval = initialInterval
	exponentialBackOff.RandomizationFactor = randomizationFactor
	exponentialBackOff.Multiplier = multiplier

	// v5 runs maxTries-1 retries after the first attempt.
	options := []backoff.RetryOption{backoff.WithBackOff(exponentialBackOff), backoff.WithMaxTries(maxTries)}

	return &BackoffWrapper{
		ctx:     ctx,
		options: options,
	}
}

// Permanent marks err as non-retryable: Exec returns it immediately
// instead of continuing through the remaining attempts.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

func (b *BackoffWrapper) SetDoOperation(o backoff.Operation[any]) {
	b.operation = o
}

func (b *BackoffWrapper) SetNotify(n backoff.Notify) {
	b.options = append(b.options, backoff.WithNotify(n))
}

// Exec runs the configured operation under retry and returns the final
// error, if any, instead of merely logging it.
func (b *BackoffWrapper) Exec() error {
	_, err := backoff.Retry(b.ctx, b.operation, b.options...)
	if err != nil {
		logrus.WithError(err).Debug("backoff retry exhausted")
	}
	return err
}
