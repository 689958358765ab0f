package translate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Classification tests
// ---------------------------------------------------------------------------

func TestClassify_TypedError(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{Errorf(KindAuth, "bad key"), KindAuth},
		{Errorf(KindRateLimited, "429"), KindRateLimited},
		{Errorf(KindTooLarge, "over ceiling"), KindTooLarge},
		{fmt.Errorf("wrapped: %w", Errorf(KindNetwork, "dial failed")), KindNetwork},
	}
	for _, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Errorf("Classify(%v): got %s, want %s", c.err, got, c.want)
		}
	}
}

func TestClassify_Cancellation(t *testing.T) {
	if got := Classify(context.Canceled); got != KindCancelled {
		t.Errorf("context.Canceled: got %s", got)
	}
	if got := Classify(context.DeadlineExceeded); got != KindCancelled {
		t.Errorf("DeadlineExceeded: got %s", got)
	}
	if !IsCancelled(fmt.Errorf("op: %w", context.Canceled)) {
		t.Error("wrapped cancellation not recognized")
	}
}

func TestClassify_NetError(t *testing.T) {
	var ne net.Error = &net.DNSError{Err: "no such host", IsTimeout: true}
	if got := Classify(ne); got != KindNetwork {
		t.Errorf("net.Error: got %s", got)
	}
}

func TestClassify_Unknown(t *testing.T) {
	if got := Classify(errors.New("mystery")); got != KindUnknown {
		t.Errorf("plain error: got %s", got)
	}
}

func TestKind_Retryable(t *testing.T) {
	retryable := []Kind{KindNetwork, KindRateLimited, KindUnknown}
	fatal := []Kind{KindAuth, KindInvalidResponse, KindCancelled, KindTooLarge, KindUnavailable}

	for _, k := range retryable {
		if !k.Retryable() {
			t.Errorf("%s should be retryable", k)
		}
	}
	for _, k := range fatal {
		if k.Retryable() {
			t.Errorf("%s should not be retryable", k)
		}
	}
}

func TestError_MessageAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &Error{Kind: KindNetwork, Err: cause}
	if err.Error() != "network: boom" {
		t.Errorf("message: %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap does not reach the cause")
	}

	bare := &Error{Kind: KindAuth}
	if bare.Error() != "auth" {
		t.Errorf("bare message: %q", bare.Error())
	}
}

// ---------------------------------------------------------------------------
// Retry policy tests
// ---------------------------------------------------------------------------

func TestDelayFor_RateLimitUsesProviderHint(t *testing.T) {
	p := DefaultRetryPolicy()

	hinted := &Error{Kind: KindRateLimited, RetryAfter: 7 * time.Second}
	if d := p.delayFor(hinted, 0); d != 7*time.Second {
		t.Errorf("hinted delay: got %v", d)
	}

	bare := &Error{Kind: KindRateLimited}
	if d := p.delayFor(bare, 0); d != 60*time.Second {
		t.Errorf("default rate-limit delay: got %v", d)
	}
}

func TestDelayFor_ExponentialBackoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseBackoff: time.Second, RateLimitDelay: time.Minute}
	err := Errorf(KindNetwork, "flaky")

	for attempt, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		if d := p.delayFor(err, attempt); d != want {
			t.Errorf("attempt %d: got %v, want %v", attempt, d, want)
		}
	}
}
