package translate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------
//
// Every failure crossing the provider boundary is classified into a Kind.
// The retry policy keys off the kind: transient kinds are retried locally,
// fatal kinds surface immediately, and cancellation is reported as a
// distinct outcome rather than a failure.

// Kind classifies a translation failure.
type Kind int

const (
	// KindUnknown covers unclassified failures. Retryable: the
	// conservative default favors availability over fast-fail.
	KindUnknown Kind = iota
	// KindNetwork covers transport failures and 5xx responses. Retryable
	// with exponential backoff.
	KindNetwork
	// KindRateLimited covers 429 responses. Retryable after a long fixed
	// delay (provider-supplied when parseable).
	KindRateLimited
	// KindAuth covers 401/403 responses and missing credentials. Fatal.
	KindAuth
	// KindInvalidResponse covers malformed or empty provider output. Fatal.
	KindInvalidResponse
	// KindCancelled covers context cancellation. Never retried, and
	// distinguished from failure by callers.
	KindCancelled
	// KindTooLarge covers documents over the token ceiling, rejected
	// before dispatch. Fatal.
	KindTooLarge
	// KindUnavailable covers a provider whose circuit breaker is open.
	// Not retried: retrying would burn the backoff schedule against a
	// breaker that stays open for its full timeout.
	KindUnavailable
)

// String returns the kind name used in error messages.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRateLimited:
		return "rate-limited"
	case KindAuth:
		return "auth"
	case KindInvalidResponse:
		return "invalid-response"
	case KindCancelled:
		return "cancelled"
	case KindTooLarge:
		return "too-large"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Retryable reports whether a failure of this kind may be retried.
func (k Kind) Retryable() bool {
	switch k {
	case KindNetwork, KindRateLimited, KindUnknown:
		return true
	default:
		return false
	}
}

// Error is the typed failure returned by provider clients.
type Error struct {
	// Kind is the classification.
	Kind Kind
	// RetryAfter is the provider-requested wait for rate limits
	// (zero when the provider gave none).
	RetryAfter time.Duration
	// Err is the underlying cause.
	Err error
}

// Errorf builds a classified error with a formatted cause.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify returns the kind of any failure. Already-classified errors keep
// their kind; context cancellation and net errors are recognized; anything
// else is KindUnknown.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return KindNetwork
	}
	return KindUnknown
}

// IsCancelled reports whether err is a cancellation outcome.
func IsCancelled(err error) bool {
	return Classify(err) == KindCancelled
}
