package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seewhyme/rosetta-mark/mapping"
	"github.com/seewhyme/rosetta-mark/segment"
	"github.com/seewhyme/rosetta-mark/translate"
)

// ---------------------------------------------------------------------------
// Bounded concurrent dispatcher
// ---------------------------------------------------------------------------

// TranslateFunc translates one unit of text. Implementations must honor
// context cancellation.
type TranslateFunc func(ctx context.Context, text string) (string, mapping.TokenUsage, error)

// UnitResult is the outcome of one dispatched unit.
type UnitResult struct {
	Text  string
	Usage mapping.TokenUsage
}

// Dispatch runs every unit through translateOne and returns one result per
// input unit, in original input order regardless of completion order.
//
// Units are partitioned into consecutive batches of the configured
// concurrency; within a batch all calls run concurrently and the whole
// batch is awaited before the next starts. That bounds peak in-flight
// calls exactly, at the cost of a short straggler wait per batch —
// acceptable because the calls are latency-similar network requests.
//
// Cancellation is checked before each batch; once cancelled, no further
// batches start and a cancellation outcome is returned. A unit failure
// aborts the dispatch: in-flight units in the same batch finish but their
// results are discarded.
func (e *Engine) Dispatch(ctx context.Context, units []Unit, translateOne TranslateFunc) ([]UnitResult, mapping.TokenUsage, error) {
	results := make([]UnitResult, len(units))
	var completed int64

	for start := 0; start < len(units); start += e.cfg.Concurrency {
		if err := ctx.Err(); err != nil {
			return nil, mapping.TokenUsage{}, &translate.Error{Kind: translate.KindCancelled, Err: err}
		}

		end := start + e.cfg.Concurrency
		if end > len(units) {
			end = len(units)
		}
		batch := units[start:end]
		errs := make([]error, len(batch))

		var wg sync.WaitGroup
		for bi := range batch {
			wg.Add(1)
			go func(bi int, u Unit) {
				defer wg.Done()
				text, usage, err := translateOne(ctx, u.Text)
				if err != nil {
					errs[bi] = err
					return
				}
				results[start+bi] = UnitResult{Text: text, Usage: usage}
				done := atomic.AddInt64(&completed, 1)
				e.emit(Event{Kind: EventUnitDone, Completed: int(done), Total: len(units)})
			}(bi, batch[bi])
		}
		wg.Wait()

		for _, err := range errs {
			if err != nil {
				return nil, mapping.TokenUsage{}, err
			}
		}
		e.emit(Event{Kind: EventBatchDone, Completed: int(atomic.LoadInt64(&completed)), Total: len(units)})
	}

	var total mapping.TokenUsage
	for _, r := range results {
		total.Add(r.Usage)
	}
	return results, total, nil
}

// translateUnit builds the per-unit TranslateFunc for a target language:
// protected spans are masked before the call, the call is wrapped in the
// retry policy, and placeholders are restored afterwards.
func (e *Engine) translateUnit(targetLang string) TranslateFunc {
	prompt := translate.ResolvePrompt(e.systemPrompt(), targetLang)
	retry := e.cfg.Retry
	retry.OnWait = func(delay time.Duration) {
		e.emit(Event{Kind: EventRetryWait, Delay: delay})
	}
	return func(ctx context.Context, text string) (string, mapping.TokenUsage, error) {
		masked, rm := segment.MaskProtected(text)
		res, err := translate.WithRetry(ctx, retry, func() (translate.Result, error) {
			return e.cfg.Client.Translate(ctx, translate.Request{
				Text:           masked,
				TargetLanguage: targetLang,
				SystemPrompt:   prompt,
			})
		})
		if err != nil {
			return "", mapping.TokenUsage{}, err
		}
		return segment.Restore(res.Text, rm), res.Usage, nil
	}
}
