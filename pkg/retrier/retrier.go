// Package retrier runs an operation until it succeeds, waiting a doubling
// delay between attempts.
package retrier

import (
	"context"
	"errors"
	"time"
)

const (
	defaultAttempts     = 3
	defaultInitialDelay = time.Second
	defaultMaxDelay     = 30 * time.Second
)

// Retrier implements exponential backoff: the n-th retry waits initialDelay * 2^(n-1), capped at maxDelay.
type Retrier struct {
	attempts     int
	initialDelay time.Duration
	maxDelay     time.Duration
	onRetry      func(attempt int, err error)
	after        func(time.Duration) <-chan time.Time
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithAttempts sets the total number of attempts, the first one included.
func WithAttempts(n int) Option {
	return func(r *Retrier) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithInitialDelay sets the wait before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(r *Retrier) {
		r.initialDelay = d
	}
}

// WithMaxDelay caps the wait between two attempts.
func WithMaxDelay(d time.Duration) Option {
	return func(r *Retrier) {
		r.maxDelay = d
	}
}

// WithOnRetry registers a callback invoked after every failed attempt
// that is going to be retried.
func WithOnRetry(fn func(attempt int, err error)) Option {
	return func(r *Retrier) {
		r.onRetry = fn
	}
}

// New creates a Retrier: 3 attempts, 1s initial delay.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		attempts:     defaultAttempts,
		initialDelay: defaultInitialDelay,
		maxDelay:     defaultMaxDelay,
		after:        time.After,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attempts returns the total number of attempts Do makes before giving up.
func (r *Retrier) Attempts() int {
	return r.attempts
}

// delay returns the wait before retry n (1-based).
func (r *Retrier) delay(n int) time.Duration {
	d := r.initialDelay
	for i := 1; i < n; i++ {
		d *= 2
		if d >= r.maxDelay {
			return r.maxDelay
		}
	}
	return min(d, r.maxDelay)
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so that Do returns it immediately without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do calls fn until it succeeds, the attempts run out or ctx is done.
// Errors wrapped with Permanent stop the loop and are returned unwrapped.
// The error of the last attempt is returned on exhaustion.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.after(r.delay(attempt - 1)):
			}
		}

		if err = fn(ctx); err == nil {
			return nil
		}

		var p *permanentError
		if errors.As(err, &p) {
			return p.err
		}
		if attempt < r.attempts && r.onRetry != nil {
			r.onRetry(attempt, err)
		}
	}
	return err
}

// DoWithData is Do for operations that produce a value.
func DoWithData[T any](r *Retrier, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var e error
		result, e = fn(ctx)
		return e
	})
	return result, err
}
