// Package engine implements the incremental translation core: it plans
// which paragraphs of a segmented document need translation against a
// prior content-addressed mapping, dispatches only those through a
// concurrency-bounded translate capability with retry, and reassembles
// the result in document order. The reverse path routes hand-edited
// translated paragraphs back into the source language.
//
// The engine never owns persisted state: it takes the prior mapping as an
// immutable snapshot and returns a new one for the caller to store. No
// internal locks are needed because each reconciliation cycle owns its
// unit list and result buffer exclusively.
package engine

import (
	"time"

	"github.com/seewhyme/rosetta-mark/translate"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

const (
	// DefaultConcurrency bounds in-flight translation calls.
	DefaultConcurrency = 3
	// MaxConcurrency is the user-configurable ceiling.
	MaxConcurrency = 10
)

// Config is the explicit per-operation configuration; there is no
// process-wide engine or client state.
type Config struct {
	// Client is the translate capability.
	Client translate.Client
	// Concurrency caps in-flight calls (default 3, clamped to 1–10).
	Concurrency int
	// Retry governs per-unit retry/backoff.
	Retry translate.RetryPolicy
	// SystemPrompt overrides the default document prompt when non-empty.
	// {{targetLang}} is substituted before dispatch.
	SystemPrompt string
	// MaxTokens is the size-guard ceiling (default 100000).
	MaxTokens int
	// Events receives progress events when non-nil. Sends never block:
	// a slow consumer drops events rather than stalling dispatch.
	Events chan<- Event
}

// Engine runs forward and reverse reconciliation cycles.
type Engine struct {
	cfg Config
}

// New returns an engine with defaults applied.
func New(cfg Config) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Concurrency > MaxConcurrency {
		cfg.Concurrency = MaxConcurrency
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &Engine{cfg: cfg}
}

// ---------------------------------------------------------------------------
// Progress events
// ---------------------------------------------------------------------------

// EventKind tags a progress event.
type EventKind int

const (
	// EventUnitDone fires once per completed translation unit.
	EventUnitDone EventKind = iota
	// EventBatchDone fires after each dispatch batch completes.
	EventBatchDone
	// EventRetryWait fires before a retry backoff wait, carrying the
	// delay, so a rate-limit pause does not look like a stall.
	EventRetryWait
)

// Event is one progress notification. Ordering across a batch is not
// guaranteed; Completed is monotonic.
type Event struct {
	Kind      EventKind
	Completed int
	Total     int
	// Delay is the upcoming wait; set on EventRetryWait only.
	Delay time.Duration
}

// emit sends without blocking.
func (e *Engine) emit(ev Event) {
	if e.cfg.Events == nil {
		return
	}
	select {
	case e.cfg.Events <- ev:
	default:
	}
}

func (e *Engine) systemPrompt() string {
	if e.cfg.SystemPrompt != "" {
		return e.cfg.SystemPrompt
	}
	return translate.DocumentSystemPrompt
}
