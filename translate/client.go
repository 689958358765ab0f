// Package translate provides the abstract translate capability the engine
// dispatches against: a narrow "text in, text plus token usage out"
// contract backed by HTTP AI providers (OpenAI native via go-openai;
// Gemini, Anthropic, and OpenAI-compatible endpoints via raw HTTP), with
// failure classification, retry/backoff, a shared rate-limit pause, and a
// circuit breaker around repeated hard failures.
package translate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"github.com/seewhyme/rosetta-mark/mapping"
)

// ---------------------------------------------------------------------------
// Client contract
// ---------------------------------------------------------------------------

// Request is one translation call.
type Request struct {
	// Text is the (already masked) text to translate.
	Text string
	// TargetLanguage is the target language code (e.g. "fr").
	TargetLanguage string
	// SystemPrompt carries the resolved system instructions.
	SystemPrompt string
}

// Result is the outcome of one translation call.
type Result struct {
	// Text is the translated text.
	Text string
	// Usage is the provider-reported token consumption (zero if absent).
	Usage mapping.TokenUsage
}

// Client is the abstract translate capability. Implementations must honor
// context cancellation and return classified *Error failures.
type Client interface {
	Translate(ctx context.Context, req Request) (Result, error)
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

// NewClient builds a Client for the given provider, wrapped in a circuit
// breaker. The OpenAI provider uses the native SDK; everything else goes
// through the multi-format HTTP client.
func NewClient(prov Provider) Client {
	var inner Client
	switch prov.ID {
	case ProviderOpenAI:
		cfg := openai.DefaultConfig(prov.APIKey)
		if prov.BaseURL != "" {
			cfg.BaseURL = prov.BaseURL
		}
		inner = &OpenAIClient{
			client: openai.NewClientWithConfig(cfg),
			model:  prov.Model,
		}
	default:
		inner = &HTTPClient{
			Provider: prov,
			http:     makeHTTPClient(prov.Proxy, prov.Timeout),
			limits:   &RateLimitState{},
		}
	}
	return withBreaker(prov.Name, inner)
}

// ---------------------------------------------------------------------------
// Multi-format HTTP client (Gemini, Anthropic, Groq, Ollama, custom)
// ---------------------------------------------------------------------------

// HTTPClient calls a provider over raw HTTP using its native wire format.
type HTTPClient struct {
	Provider Provider
	http     *http.Client
	limits   *RateLimitState
}

// Translate performs one translation call. Failures come back classified;
// retrying is the caller's concern (see WithRetry).
func (c *HTTPClient) Translate(ctx context.Context, req Request) (Result, error) {
	// Honor a pause set by a parallel worker that was rate limited.
	if c.limits != nil {
		if err := c.limits.Wait(ctx); err != nil {
			return Result{}, err
		}
	}

	format := formatFor(c.Provider.ID)
	endpoint, headers, body, err := buildHTTPRequest(c.Provider, req.SystemPrompt, req.Text, format)
	if err != nil {
		return Result{}, Errorf(KindUnknown, "building request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, Errorf(KindUnknown, "creating request: %w", err)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, &Error{Kind: KindCancelled, Err: ctx.Err()}
		}
		return Result{}, &Error{Kind: KindNetwork, Err: err}
	}
	respBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		delay := parseRetryDelay(respBody)
		if c.limits != nil && delay > 0 {
			c.limits.Pause(delay)
		}
		return Result{}, &Error{
			Kind:       KindRateLimited,
			RetryAfter: delay,
			Err:        fmt.Errorf("%s returned 429", c.Provider.Name),
		}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Result{}, Errorf(KindAuth, "%s returned status %d: %s",
			c.Provider.Name, resp.StatusCode, truncate(string(respBody), 200))
	case resp.StatusCode >= 500:
		return Result{}, Errorf(KindNetwork, "%s returned status %d: %s",
			c.Provider.Name, resp.StatusCode, truncate(string(respBody), 200))
	case resp.StatusCode != http.StatusOK:
		return Result{}, Errorf(KindUnknown, "%s returned status %d: %s",
			c.Provider.Name, resp.StatusCode, truncate(string(respBody), 500))
	}

	text, usage, err := extractResponse(respBody)
	if err != nil {
		return Result{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, Errorf(KindInvalidResponse, "%s returned empty translation", c.Provider.Name)
	}
	return Result{Text: text, Usage: usage}, nil
}

// ---------------------------------------------------------------------------
// Native OpenAI client
// ---------------------------------------------------------------------------

// OpenAIClient backs the translate capability with the official-style
// go-openai SDK.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// Translate performs one chat-completion call.
func (c *OpenAIClient) Translate(ctx context.Context, req Request) (Result, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.Text},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return Result{}, classifyOpenAIError(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, Errorf(KindInvalidResponse, "no choices returned")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return Result{}, Errorf(KindInvalidResponse, "empty translation returned")
	}
	return Result{
		Text: text,
		Usage: mapping.TokenUsage{
			Prompt:     resp.Usage.PromptTokens,
			Completion: resp.Usage.CompletionTokens,
			Total:      resp.Usage.TotalTokens,
		},
	}, nil
}

func classifyOpenAIError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return &Error{Kind: KindCancelled, Err: ctx.Err()}
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return &Error{Kind: KindRateLimited, Err: err}
		case apiErr.HTTPStatusCode == http.StatusUnauthorized,
			apiErr.HTTPStatusCode == http.StatusForbidden:
			return &Error{Kind: KindAuth, Err: err}
		case apiErr.HTTPStatusCode >= 500:
			return &Error{Kind: KindNetwork, Err: err}
		}
		return &Error{Kind: KindUnknown, Err: err}
	}
	return &Error{Kind: KindNetwork, Err: err}
}

// ---------------------------------------------------------------------------
// Circuit breaker
// ---------------------------------------------------------------------------

// breakerClient trips after repeated hard failures so a dead provider
// surfaces immediately instead of burning a full retry schedule per unit.
// Rate limits and cancellation do not count toward tripping.
type breakerClient struct {
	inner Client
	cb    *gobreaker.CircuitBreaker
}

func withBreaker(name string, inner Client) Client {
	return &breakerClient{
		inner: inner,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				if err == nil {
					return true
				}
				switch Classify(err) {
				case KindRateLimited, KindCancelled:
					return true
				default:
					return false
				}
			},
		}),
	}
}

func (b *breakerClient) Translate(ctx context.Context, req Request) (Result, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.inner.Translate(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Result{}, &Error{Kind: KindUnavailable, Err: err}
		}
		return Result{}, err
	}
	return out.(Result), nil
}

// truncate shortens a string for error messages.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
