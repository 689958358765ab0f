package engine

import (
	"github.com/seewhyme/rosetta-mark/mapping"
	"github.com/seewhyme/rosetta-mark/segment"
)

// ---------------------------------------------------------------------------
// Reconciliation planner
// ---------------------------------------------------------------------------

// Unit is one segment queued for an actual translation call (a cache
// miss). Index is the segment's position in the ordered sequence: the
// dispatcher reorders completion but must restore original order.
type Unit struct {
	Index int
	Text  string
}

// Plan classifies each current segment as reusable or needing translation.
// Paragraphs is aligned 1:1 with Segments by position; pending positions
// hold a placeholder entry whose TranslatedContent the dispatcher fills.
type Plan struct {
	Segments     []segment.Segment
	Paragraphs   []mapping.Paragraph
	Pending      []Unit
	ReusedCount  int
	PendingCount int
}

// BuildPlan compares the current segmentation against the prior mapping.
//
// Code and front-matter segments are never translated: their entry is the
// pass-through identity (translated == source) at zero cost. Text segments
// whose hash matches a prior entry reuse its translation verbatim. The
// rest become pending units, so an unchanged document costs zero dispatch
// calls and zero tokens.
//
// Identical content in two positions hashes identically and both reuse
// the same cached translation — content-addressing, not
// position-addressing.
func BuildPlan(segs []segment.Segment, prior *mapping.Document) Plan {
	plan := Plan{
		Segments:   segs,
		Paragraphs: make([]mapping.Paragraph, len(segs)),
	}
	index := prior.Index()

	for i, seg := range segs {
		if seg.Kind != segment.Text {
			plan.Paragraphs[i] = mapping.Paragraph{
				SourceContent:     seg.Content,
				TranslatedContent: seg.Content,
				SourceHash:        seg.Hash,
			}
			plan.ReusedCount++
			continue
		}

		if p, ok := index[seg.Hash]; ok {
			plan.Paragraphs[i] = mapping.Paragraph{
				SourceContent:     seg.Content,
				TranslatedContent: p.TranslatedContent,
				SourceHash:        seg.Hash,
			}
			plan.ReusedCount++
			continue
		}

		plan.Paragraphs[i] = mapping.Paragraph{
			SourceContent: seg.Content,
			SourceHash:    seg.Hash,
		}
		plan.Pending = append(plan.Pending, Unit{Index: i, Text: seg.Content})
		plan.PendingCount++
	}

	return plan
}
