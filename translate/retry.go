package translate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ---------------------------------------------------------------------------
// Retry policy
// ---------------------------------------------------------------------------

// RetryPolicy decides whether and how long to wait between attempts.
type RetryPolicy struct {
	// MaxAttempts is the total attempt count, including the first call.
	MaxAttempts int
	// RateLimitDelay is the fixed wait after a 429 when the provider
	// supplied no retry delay. Tuned to typical provider rate-limit windows.
	RateLimitDelay time.Duration
	// BaseBackoff is the first exponential-backoff wait for transient
	// failures; it doubles per attempt.
	BaseBackoff time.Duration
	// OnWait, when non-nil, is called with the upcoming delay before
	// each retry wait, so callers can surface the stall to the user.
	OnWait func(delay time.Duration)
}

// DefaultRetryPolicy matches the documented defaults: 3 attempts, 60s
// rate-limit wait, exponential backoff starting at 1s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		RateLimitDelay: 60 * time.Second,
		BaseBackoff:    time.Second,
	}
}

func (p RetryPolicy) effective() RetryPolicy {
	out := p
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 3
	}
	if out.RateLimitDelay <= 0 {
		out.RateLimitDelay = 60 * time.Second
	}
	if out.BaseBackoff <= 0 {
		out.BaseBackoff = time.Second
	}
	return out
}

// delayFor returns the wait before retry attempt number attempt (0-based)
// after a failure of the given kind.
func (p RetryPolicy) delayFor(err error, attempt int) time.Duration {
	kind := Classify(err)
	if kind == KindRateLimited {
		var te *Error
		if errors.As(err, &te) && te.RetryAfter > 0 {
			return te.RetryAfter
		}
		return p.RateLimitDelay
	}
	return p.BaseBackoff << attempt
}

// WithRetry runs op up to p.MaxAttempts times. Non-retryable failures and
// cancellation propagate immediately; retryable ones wait according to the
// policy, re-checking cancellation before every attempt. After the attempts
// are exhausted the last classified error is returned.
func WithRetry[T any](ctx context.Context, p RetryPolicy, op func() (T, error)) (T, error) {
	p = p.effective()

	var zero T
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, &Error{Kind: KindCancelled, Err: err}
		}

		out, err := op()
		if err == nil {
			return out, nil
		}
		lastErr = err

		kind := Classify(err)
		if !kind.Retryable() || attempt == p.MaxAttempts-1 {
			break
		}

		delay := p.delayFor(err, attempt)
		if p.OnWait != nil {
			p.OnWait(delay)
		}
		select {
		case <-ctx.Done():
			return zero, &Error{Kind: KindCancelled, Err: ctx.Err()}
		case <-time.After(delay):
		}
	}
	return zero, lastErr
}

// ---------------------------------------------------------------------------
// Shared rate-limit pause
// ---------------------------------------------------------------------------

// RateLimitState coordinates a global pause across concurrent workers:
// when one call hits a 429, every worker waits out the same window instead
// of each burning its own retries against a closed door.
type RateLimitState struct {
	mu       sync.Mutex
	paused   int32 // atomic: 1 = paused
	pauseEnd time.Time
}

func (r *RateLimitState) isPaused() bool {
	return atomic.LoadInt32(&r.paused) == 1
}

// Pause blocks all workers for the given duration.
func (r *RateLimitState) Pause(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pauseEnd = time.Now().Add(d)
	atomic.StoreInt32(&r.paused, 1)
}

func (r *RateLimitState) unpause() {
	atomic.StoreInt32(&r.paused, 0)
}

// Wait blocks until any active pause is over or ctx is cancelled.
func (r *RateLimitState) Wait(ctx context.Context) error {
	for r.isPaused() {
		r.mu.Lock()
		remaining := time.Until(r.pauseEnd)
		r.mu.Unlock()
		if remaining <= 0 {
			r.unpause()
			return nil
		}
		if remaining > 100*time.Millisecond {
			remaining = 100 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return &Error{Kind: KindCancelled, Err: ctx.Err()}
		case <-time.After(remaining):
		}
	}
	return nil
}
