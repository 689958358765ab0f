package engine

import (
	"context"
	"time"

	"github.com/seewhyme/rosetta-mark/mapping"
	"github.com/seewhyme/rosetta-mark/segment"
)

// ---------------------------------------------------------------------------
// Forward pass: translate-and-cache
// ---------------------------------------------------------------------------

// Task describes one forward translation pass.
type Task struct {
	// Document is the raw source document text.
	Document string
	// Prior is the mapping snapshot from the last save (nil on first run).
	// It is treated as immutable for the duration of the pass.
	Prior *mapping.Document
	// SourcePath is recorded in the returned mapping.
	SourcePath string
	// SourceLanguage is the detected or configured source language code.
	SourceLanguage string
	// SourceDetected marks SourceLanguage as the product of detection
	// rather than configuration; only then is DetectedAt stamped.
	SourceDetected bool
	// TargetLanguage is the translation target language code.
	TargetLanguage string
}

// Result is the outcome of a forward pass. Mapping is a fresh snapshot for
// the caller to persist; the engine never mutates Prior.
type Result struct {
	Mapping *mapping.Document
	// Output is the reassembled translated document.
	Output string
	// Usage is the summed token consumption of all dispatched units;
	// zero on a full cache hit.
	Usage mapping.TokenUsage
	// ReusedCount and DispatchedCount partition the segments.
	ReusedCount     int
	DispatchedCount int
}

// Translate runs one forward reconciliation+dispatch cycle: segment,
// plan against the prior mapping, dispatch only the cache misses, and
// rebuild the translated document in order.
func (e *Engine) Translate(ctx context.Context, task Task) (*Result, error) {
	if err := CheckSize(task.Document, e.cfg.MaxTokens); err != nil {
		return nil, err
	}

	segs := segment.Split(task.Document)
	plan := BuildPlan(segs, task.Prior)

	var usage mapping.TokenUsage
	if len(plan.Pending) > 0 {
		results, total, err := e.Dispatch(ctx, plan.Pending, e.translateUnit(task.TargetLanguage))
		if err != nil {
			return nil, err
		}
		usage = total
		for i, u := range plan.Pending {
			plan.Paragraphs[u.Index].TranslatedContent = results[i].Text
		}
	}

	doc := &mapping.Document{
		SourceHash:     segment.Hash(task.Document),
		SourcePath:     task.SourcePath,
		SourceLanguage: task.SourceLanguage,
		TargetLanguage: task.TargetLanguage,
		Paragraphs:     plan.Paragraphs,
	}
	if task.SourceLanguage != "" && task.SourceDetected {
		doc.DetectedAt = detectedAt(task.Prior)
	}

	return &Result{
		Mapping:         doc,
		Output:          doc.TranslatedText(),
		Usage:           usage,
		ReusedCount:     plan.ReusedCount,
		DispatchedCount: plan.PendingCount,
	}, nil
}

// detectedAt carries the prior detection timestamp forward, or stamps now
// on first detection.
func detectedAt(prior *mapping.Document) time.Time {
	if prior != nil && !prior.DetectedAt.IsZero() {
		return prior.DetectedAt
	}
	return time.Now()
}
