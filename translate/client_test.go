package translate

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// HTTPClient tests
// ---------------------------------------------------------------------------

func newTestHTTPClient(t *testing.T, handler http.HandlerFunc) (*HTTPClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	prov := Provider{
		ID:      ProviderGroq, // openai-chat wire format
		Name:    "Test",
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "test-model",
		Timeout: 5 * time.Second,
	}
	return &HTTPClient{
		Provider: prov,
		http:     makeHTTPClient("", prov.Timeout),
		limits:   &RateLimitState{},
	}, srv
}

func chatResponse(text string) string {
	return `{"choices":[{"message":{"content":"` + text + `"}}],` +
		`"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`
}

func TestHTTPClient_Translate(t *testing.T) {
	var gotAuth string
	client, _ := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(chatResponse("Bonjour le monde")))
	})

	res, err := client.Translate(context.Background(), Request{
		Text:           "Hello world",
		TargetLanguage: "fr",
		SystemPrompt:   "translate",
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if res.Text != "Bonjour le monde" {
		t.Errorf("text: %q", res.Text)
	}
	if res.Usage.Total != 7 {
		t.Errorf("usage: %+v", res.Usage)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header: %q", gotAuth)
	}
}

func TestHTTPClient_RateLimited(t *testing.T) {
	client, _ := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"details":[{"@type":"RetryInfo","retryDelay":"1s"}]}}`))
	})

	_, err := client.Translate(context.Background(), Request{Text: "x"})
	if Classify(err) != KindRateLimited {
		t.Fatalf("expected rate-limited, got %v", err)
	}
	var te *Error
	if !errors.As(err, &te) || te.RetryAfter != 6*time.Second {
		t.Errorf("retry-after not propagated: %+v", te)
	}
	if !client.limits.isPaused() {
		t.Error("rate limit did not pause shared state")
	}
}

func TestHTTPClient_AuthFailure(t *testing.T) {
	client, _ := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	})

	_, err := client.Translate(context.Background(), Request{Text: "x"})
	if Classify(err) != KindAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestHTTPClient_ServerError(t *testing.T) {
	client, _ := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Translate(context.Background(), Request{Text: "x"})
	if Classify(err) != KindNetwork {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestHTTPClient_EmptyTranslation(t *testing.T) {
	client, _ := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatResponse("   ")))
	})

	_, err := client.Translate(context.Background(), Request{Text: "x"})
	if Classify(err) != KindInvalidResponse {
		t.Fatalf("expected invalid-response, got %v", err)
	}
}

func TestHTTPClient_Cancellation(t *testing.T) {
	client, _ := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		// The server only notices a client disconnect (and cancels the
		// request context) after the body has been consumed.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Translate(ctx, Request{Text: "x"})
	if !IsCancelled(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Circuit breaker tests
// ---------------------------------------------------------------------------

// failingClient always fails with the configured error.
type failingClient struct {
	err   error
	calls int
}

func (f *failingClient) Translate(ctx context.Context, req Request) (Result, error) {
	f.calls++
	return Result{}, f.err
}

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	inner := &failingClient{err: Errorf(KindNetwork, "dead provider")}
	client := withBreaker("test", inner)

	for i := 0; i < 8; i++ {
		client.Translate(context.Background(), Request{Text: "x"})
	}
	if inner.calls >= 8 {
		t.Errorf("breaker never opened: %d calls reached provider", inner.calls)
	}

	_, err := client.Translate(context.Background(), Request{Text: "x"})
	if Classify(err) != KindUnavailable {
		t.Errorf("open breaker should classify as unavailable: %v", err)
	}
	if Classify(err).Retryable() {
		t.Error("open-breaker failures must not be retried")
	}
}

func TestBreaker_RateLimitDoesNotTrip(t *testing.T) {
	inner := &failingClient{err: &Error{Kind: KindRateLimited}}
	client := withBreaker("test", inner)

	for i := 0; i < 10; i++ {
		client.Translate(context.Background(), Request{Text: "x"})
	}
	if inner.calls != 10 {
		t.Errorf("rate limits tripped the breaker: %d calls reached provider", inner.calls)
	}
}
