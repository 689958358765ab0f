package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seewhyme/rosetta-mark/mapping"
	"github.com/seewhyme/rosetta-mark/translate"
)

// ---------------------------------------------------------------------------
// Test double
// ---------------------------------------------------------------------------

// echoClient "translates" by bracketing the input with the target language
// and records every request it sees.
type echoClient struct {
	mu   sync.Mutex
	reqs []translate.Request
	err  error
}

func (c *echoClient) Translate(ctx context.Context, req translate.Request) (translate.Result, error) {
	c.mu.Lock()
	c.reqs = append(c.reqs, req)
	c.mu.Unlock()
	if c.err != nil {
		return translate.Result{}, c.err
	}
	return translate.Result{
		Text:  "[" + req.TargetLanguage + "]" + req.Text,
		Usage: mapping.TokenUsage{Prompt: 4, Completion: 4, Total: 8},
	}, nil
}

func (c *echoClient) requests() []translate.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]translate.Request(nil), c.reqs...)
}

// rateLimitOnceClient fails its first call with a rate limit, then echoes.
type rateLimitOnceClient struct {
	echoClient
	tripped int32
}

func (c *rateLimitOnceClient) Translate(ctx context.Context, req translate.Request) (translate.Result, error) {
	if atomic.CompareAndSwapInt32(&c.tripped, 0, 1) {
		return translate.Result{}, &translate.Error{Kind: translate.KindRateLimited, Err: errors.New("429")}
	}
	return c.echoClient.Translate(ctx, req)
}

func newTestEngine(client translate.Client) *Engine {
	return New(Config{
		Client: client,
		Retry:  translate.RetryPolicy{MaxAttempts: 1, BaseBackoff: time.Millisecond, RateLimitDelay: time.Millisecond},
	})
}

// ---------------------------------------------------------------------------
// Forward pass tests
// ---------------------------------------------------------------------------

func TestTranslate_FirstRun(t *testing.T) {
	client := &echoClient{}
	eng := newTestEngine(client)

	res, err := eng.Translate(context.Background(), Task{
		Document:       "Hello\n\nWorld",
		SourcePath:     "doc.md",
		TargetLanguage: "fr",
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if res.Output != "[fr]Hello\n\n[fr]World" {
		t.Errorf("output: %q", res.Output)
	}
	if res.DispatchedCount != 2 || res.ReusedCount != 0 {
		t.Errorf("dispatched=%d reused=%d", res.DispatchedCount, res.ReusedCount)
	}
	if res.Usage.Total != 16 {
		t.Errorf("usage: %+v", res.Usage)
	}
	if res.Mapping.TargetLanguage != "fr" || res.Mapping.SourcePath != "doc.md" {
		t.Errorf("mapping metadata: %+v", res.Mapping)
	}
	if len(res.Mapping.Paragraphs) != 2 {
		t.Errorf("paragraphs: %d", len(res.Mapping.Paragraphs))
	}
}

func TestTranslate_UnchangedDocumentCostsNothing(t *testing.T) {
	client := &echoClient{}
	eng := newTestEngine(client)

	first, err := eng.Translate(context.Background(), Task{
		Document:       "Hello\n\nWorld",
		TargetLanguage: "fr",
	})
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}

	second, err := eng.Translate(context.Background(), Task{
		Document:       "Hello\n\nWorld",
		Prior:          first.Mapping,
		TargetLanguage: "fr",
	})
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if second.DispatchedCount != 0 {
		t.Errorf("unchanged document dispatched %d units", second.DispatchedCount)
	}
	if !second.Usage.IsZero() {
		t.Errorf("unchanged document consumed tokens: %+v", second.Usage)
	}
	if second.Output != first.Output {
		t.Errorf("output drifted: %q vs %q", second.Output, first.Output)
	}
	if got := len(client.requests()); got != 2 {
		t.Errorf("provider called %d times total, want 2", got)
	}
}

func TestTranslate_OnlyEditedParagraphDispatched(t *testing.T) {
	client := &echoClient{}
	eng := newTestEngine(client)

	first, _ := eng.Translate(context.Background(), Task{
		Document:       "alpha\n\nbeta\n\ngamma",
		TargetLanguage: "de",
	})

	res, err := eng.Translate(context.Background(), Task{
		Document:       "alpha\n\nbeta CHANGED\n\ngamma",
		Prior:          first.Mapping,
		TargetLanguage: "de",
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if res.DispatchedCount != 1 || res.ReusedCount != 2 {
		t.Errorf("dispatched=%d reused=%d", res.DispatchedCount, res.ReusedCount)
	}
	if res.Output != "[de]alpha\n\n[de]beta CHANGED\n\n[de]gamma" {
		t.Errorf("output: %q", res.Output)
	}
}

func TestTranslate_CodeNeverReachesProvider(t *testing.T) {
	client := &echoClient{}
	eng := newTestEngine(client)

	res, err := eng.Translate(context.Background(), Task{
		Document:       "# Title\n\nHello\n\n```js\nconsole.log(1)\n```",
		TargetLanguage: "fr",
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	reqs := client.requests()
	if len(reqs) != 2 {
		t.Errorf("expected 2 dispatched units, got %d", len(reqs))
	}
	for _, req := range reqs {
		if strings.Contains(req.Text, "console.log") {
			t.Errorf("code block sent to provider: %q", req.Text)
		}
	}
	if !strings.Contains(res.Output, "```js\nconsole.log(1)\n```") {
		t.Errorf("code block missing from output: %q", res.Output)
	}
}

func TestTranslate_InlineCodeMasked(t *testing.T) {
	client := &echoClient{}
	eng := newTestEngine(client)

	res, err := eng.Translate(context.Background(), Task{
		Document:       "Call `fooBar()` to start.",
		TargetLanguage: "fr",
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	reqs := client.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	if strings.Contains(reqs[0].Text, "fooBar") {
		t.Errorf("inline code leaked to provider: %q", reqs[0].Text)
	}
	if !strings.Contains(res.Output, "`fooBar()`") {
		t.Errorf("inline code not restored: %q", res.Output)
	}
}

func TestTranslate_TooLargeRejectedBeforeDispatch(t *testing.T) {
	client := &echoClient{}
	eng := New(Config{Client: client, MaxTokens: 10})

	_, err := eng.Translate(context.Background(), Task{
		Document:       strings.Repeat("word ", 100),
		TargetLanguage: "fr",
	})
	if translate.Classify(err) != translate.KindTooLarge {
		t.Fatalf("expected too-large, got %v", err)
	}
	if len(client.requests()) != 0 {
		t.Error("oversized document still reached the provider")
	}
}

func TestTranslate_ProviderFailureSurfaces(t *testing.T) {
	client := &echoClient{err: translate.Errorf(translate.KindAuth, "no key")}
	eng := newTestEngine(client)

	_, err := eng.Translate(context.Background(), Task{
		Document:       "Hello",
		TargetLanguage: "fr",
	})
	if translate.Classify(err) != translate.KindAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestTranslate_CarriesDetectionTimestamp(t *testing.T) {
	client := &echoClient{}
	eng := newTestEngine(client)

	stamp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	prior := &mapping.Document{
		SourceLanguage: "en",
		DetectedAt:     stamp,
		Paragraphs:     []mapping.Paragraph{mapping.NewParagraph("Hello", "[fr]Hello")},
	}

	res, err := eng.Translate(context.Background(), Task{
		Document:       "Hello",
		Prior:          prior,
		SourceLanguage: "en",
		SourceDetected: true,
		TargetLanguage: "fr",
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if !res.Mapping.DetectedAt.Equal(stamp) {
		t.Errorf("detection timestamp not carried: %v", res.Mapping.DetectedAt)
	}
}

func TestTranslate_RetryWaitReportedAsEvent(t *testing.T) {
	events := make(chan Event, 16)
	client := &rateLimitOnceClient{}
	eng := New(Config{
		Client: client,
		Retry:  translate.RetryPolicy{MaxAttempts: 2, RateLimitDelay: time.Millisecond, BaseBackoff: time.Millisecond},
		Events: events,
	})

	res, err := eng.Translate(context.Background(), Task{
		Document:       "Hello",
		TargetLanguage: "fr",
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if res.Output != "[fr]Hello" {
		t.Errorf("output: %q", res.Output)
	}
	close(events)

	var waits int
	for ev := range events {
		if ev.Kind == EventRetryWait {
			waits++
			if ev.Delay != time.Millisecond {
				t.Errorf("retry wait delay: %v", ev.Delay)
			}
		}
	}
	if waits != 1 {
		t.Errorf("expected 1 retry-wait event, got %d", waits)
	}
}

func TestTranslate_ConfiguredLanguageNotStamped(t *testing.T) {
	client := &echoClient{}
	eng := newTestEngine(client)

	res, err := eng.Translate(context.Background(), Task{
		Document:       "Hello",
		SourceLanguage: "en", // from configuration, not detection
		TargetLanguage: "fr",
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if !res.Mapping.DetectedAt.IsZero() {
		t.Errorf("configured language stamped a detection time: %v", res.Mapping.DetectedAt)
	}
}
