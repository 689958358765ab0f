package engine

import (
	"context"

	"github.com/seewhyme/rosetta-mark/mapping"
	"github.com/seewhyme/rosetta-mark/segment"
)

// ---------------------------------------------------------------------------
// Reverse pass: translate edits back to the source language
// ---------------------------------------------------------------------------

// ReverseResult is the outcome of a reverse reconciliation.
type ReverseResult struct {
	// ModifiedIndices lists the 0-based positions whose translated text
	// was hand-edited since the last save.
	ModifiedIndices []int
	// NewSource is the rebuilt source document.
	NewSource string
	// Mapping is the updated snapshot for the caller to persist. When no
	// edits were found it is the prior mapping unchanged.
	Mapping *mapping.Document
	// Usage is the summed token consumption; zero when nothing was edited.
	Usage mapping.TokenUsage
}

// ReconcileReverse detects which translated paragraphs were hand-edited,
// routes only those back through translation into sourceLang, and rebuilds
// a consistent source document plus updated mapping.
//
// Alignment between edited paragraphs and prior entries is purely
// positional (array index), not content- or hash-based: the edited
// document is split on blank lines only, and position i is compared to
// prior.Paragraphs[i].TranslatedContent. A hand edit that inserts or
// removes a paragraph break therefore shifts every subsequent index and
// marks the tail modified. This is a documented limitation of the
// positional scheme, kept deliberately.
func (e *Engine) ReconcileReverse(ctx context.Context, edited string, prior *mapping.Document, sourceLang string) (*ReverseResult, error) {
	if err := CheckSize(edited, e.cfg.MaxTokens); err != nil {
		return nil, err
	}

	paras := segment.SplitParagraphs(edited)

	var priorParas []mapping.Paragraph
	if prior != nil {
		priorParas = prior.Paragraphs
	}

	var modified []int
	for i, p := range paras {
		if i >= len(priorParas) || p != priorParas[i].TranslatedContent {
			modified = append(modified, i)
		}
	}

	if len(modified) == 0 {
		return &ReverseResult{
			ModifiedIndices: []int{},
			NewSource:       prior.SourceText(),
			Mapping:         prior,
		}, nil
	}

	units := make([]Unit, len(modified))
	for u, idx := range modified {
		units[u] = Unit{Index: idx, Text: paras[idx]}
	}

	results, usage, err := e.Dispatch(ctx, units, e.translateUnit(sourceLang))
	if err != nil {
		return nil, err
	}

	// Rebuild: modified positions get the freshly back-translated source;
	// untouched positions carry over unchanged.
	newParas := make([]mapping.Paragraph, len(paras))
	for i := range paras {
		if i < len(priorParas) {
			newParas[i] = priorParas[i]
		}
	}
	for u, idx := range modified {
		newParas[idx] = mapping.NewParagraph(results[u].Text, "")
		newParas[idx].TranslatedContent = paras[idx]
	}

	doc := &mapping.Document{
		SourcePath: "",
		Paragraphs: newParas,
	}
	if prior != nil {
		doc.SourcePath = prior.SourcePath
		doc.SourceLanguage = prior.SourceLanguage
		doc.TargetLanguage = prior.TargetLanguage
		doc.DetectedAt = prior.DetectedAt
	}
	doc.SourceHash = segment.Hash(doc.SourceText())

	return &ReverseResult{
		ModifiedIndices: modified,
		NewSource:       doc.SourceText(),
		Mapping:         doc,
		Usage:           usage,
	}, nil
}
