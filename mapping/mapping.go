// Package mapping defines the persisted translation state of one document:
// a per-paragraph record joining source text, translated text, and the
// source content hash that serves as the cache key across edits.
//
// The engine never owns this state. It receives a snapshot of the prior
// DocumentMapping, treats it as immutable for the duration of one
// reconciliation cycle, and returns a new mapping for the caller to
// persist (see Store).
package mapping

import (
	"time"

	"github.com/seewhyme/rosetta-mark/segment"
)

// ---------------------------------------------------------------------------
// Persisted types
// ---------------------------------------------------------------------------

// Paragraph is the persisted unit: exactly one entry per segment, in
// document order. SourceHash always equals segment.Hash(SourceContent);
// it is the join key between cache snapshots across edits.
type Paragraph struct {
	SourceContent     string `yaml:"source"`
	TranslatedContent string `yaml:"translated"`
	SourceHash        string `yaml:"source_hash"`
}

// Document is the persisted state for one translated artifact.
type Document struct {
	// SourceHash is the whole-document content hash at last save.
	SourceHash string `yaml:"source_hash"`
	// SourcePath is the path of the source document.
	SourcePath string `yaml:"source_path"`
	// SourceLanguage is the detected or configured source language code.
	SourceLanguage string `yaml:"source_language,omitempty"`
	// TargetLanguage is the translation target language code.
	TargetLanguage string `yaml:"target_language,omitempty"`
	// Paragraphs holds one entry per segment, in document order.
	Paragraphs []Paragraph `yaml:"paragraphs"`
	// DetectedAt records when SourceLanguage was last detected.
	DetectedAt time.Time `yaml:"detected_at,omitempty"`
}

// NewParagraph builds a Paragraph with the hash derived from the source.
func NewParagraph(source, translated string) Paragraph {
	return Paragraph{
		SourceContent:     source,
		TranslatedContent: translated,
		SourceHash:        segment.Hash(source),
	}
}

// Index returns a lookup from source hash to paragraph. When identical
// content appears in two positions both map to the same entry, which is
// intended: caching is content-addressed, not position-addressed.
func (d *Document) Index() map[string]Paragraph {
	if d == nil {
		return nil
	}
	idx := make(map[string]Paragraph, len(d.Paragraphs))
	for _, p := range d.Paragraphs {
		idx[p.SourceHash] = p
	}
	return idx
}

// SourceText rejoins all source paragraphs into a document.
func (d *Document) SourceText() string {
	if d == nil {
		return ""
	}
	contents := make([]string, len(d.Paragraphs))
	for i, p := range d.Paragraphs {
		contents[i] = p.SourceContent
	}
	return segment.JoinContents(contents)
}

// TranslatedText rejoins all translated paragraphs into a document.
func (d *Document) TranslatedText() string {
	if d == nil {
		return ""
	}
	contents := make([]string, len(d.Paragraphs))
	for i, p := range d.Paragraphs {
		contents[i] = p.TranslatedContent
	}
	return segment.JoinContents(contents)
}

// Clone returns a deep copy, used when a reconciliation pass must return
// a new snapshot without mutating caller-owned state.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Paragraphs = make([]Paragraph, len(d.Paragraphs))
	copy(out.Paragraphs, d.Paragraphs)
	return &out
}

// ---------------------------------------------------------------------------
// Token usage
// ---------------------------------------------------------------------------

// TokenUsage is the fixed numeric triple accumulated across all dispatched
// units in a batch. A full cache hit leaves it at its zero value.
type TokenUsage struct {
	Prompt     int `yaml:"prompt"`
	Completion int `yaml:"completion"`
	Total      int `yaml:"total"`
}

// Add accumulates another usage record.
func (u *TokenUsage) Add(other TokenUsage) {
	u.Prompt += other.Prompt
	u.Completion += other.Completion
	u.Total += other.Total
}

// IsZero reports whether no tokens were consumed.
func (u TokenUsage) IsZero() bool {
	return u.Prompt == 0 && u.Completion == 0 && u.Total == 0
}
