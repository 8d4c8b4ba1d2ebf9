// Package retry runs an operation until it succeeds, waiting between
// attempts with exponential backoff and random jitter.
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	backoff "github.com/sethvargo/go-retry"
)

// Defaults applied by Do when no option overrides them.
const (
	DefaultAttempts   = 5
	DefaultDelay      = 2 * time.Second
	DefaultMultiplier = 2.0
	DefaultMaxJitter  = 3 * time.Second
)

type options struct {
	attempts   int
	delay      time.Duration
	multiplier float64
	maxJitter  time.Duration
	retryable  func(error) bool
	notify     func(err error, next time.Duration)
}

// Option adjusts retry behaviour.
type Option func(*options)

// WithAttempts sets the total number of attempts, including the first.
func WithAttempts(n int) Option {
	return func(o *options) { o.attempts = n }
}

// WithDelay sets the wait before the first retry.
func WithDelay(d time.Duration) Option {
	return func(o *options) { o.delay = d }
}

// WithMultiplier scales the wait after every retry. A multiplier of 1
// gives a constant wait.
func WithMultiplier(m float64) Option {
	return func(o *options) { o.multiplier = m }
}

// WithMaxJitter bounds the random pad added to each wait. Zero
// disables jitter.
func WithMaxJitter(d time.Duration) Option {
	return func(o *options) { o.maxJitter = d }
}

// WithRetryable restricts retries to errors accepted by fn. Any other
// error stops the loop and is returned as-is to the caller.
func WithRetryable(fn func(error) bool) Option {
	return func(o *options) { o.retryable = fn }
}

// WithNotify registers a callback invoked before each wait with the
// failure that caused it and the length of the coming wait.
func WithNotify(fn func(err error, next time.Duration)) Option {
	return func(o *options) { o.notify = fn }
}

// Do runs fn until it succeeds, the attempt budget is spent, fn fails
// with an error rejected by the retryable classifier, or ctx is done.
// When more than one attempt ran, the returned error wraps fn's last
// error with the attempt count.
func Do(ctx context.Context, fn func(context.Context) error, opts ...Option) error {
	o := options{
		attempts:   DefaultAttempts,
		delay:      DefaultDelay,
		multiplier: DefaultMultiplier,
		maxJitter:  DefaultMaxJitter,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.attempts < 1 {
		o.attempts = 1
	}

	var (
		attempt int
		lastErr error
		next    = o.delay
	)
	b := backoff.BackoffFunc(func() (time.Duration, bool) {
		d := next
		next = time.Duration(float64(next) * o.multiplier)
		if o.maxJitter > 0 {
			d += rand.N(o.maxJitter)
		}
		if o.notify != nil {
			o.notify(lastErr, d)
		}
		return d, false
	})

	err := backoff.Do(ctx, backoff.WithMaxRetries(uint64(o.attempts-1), b), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if o.retryable != nil && !o.retryable(err) {
			return err
		}
		return backoff.RetryableError(err)
	})
	if err != nil {
		if attempt > 1 {
			return fmt.Errorf("attempt %d: %w", attempt, err)
		}
		return err
	}
	return nil
}
