// Package segment splits raw document text into an ordered sequence of
// typed, content-hashed segments.
//
// Three segment kinds exist:
//
//   - Text: one paragraph, delimited by one or more blank lines.
//
//   - Code: a fenced code block (``` or ~~~). Blank lines inside a fence
//     do NOT split it; the fence lines themselves belong to the segment.
//
//   - Frontmatter: a leading YAML block between --- markers, extracted
//     once before paragraph splitting.
//
// Each segment carries a SHA-256 digest of its exact content, which serves
// as the cache key for incremental translation: unchanged paragraphs hash
// identically across edits and are never re-sent to a provider.
//
// Joining all segments in order with a blank-line separator reproduces the
// document modulo whitespace normalization at segment boundaries.
package segment

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ---------------------------------------------------------------------------
// Segment model
// ---------------------------------------------------------------------------

// Kind classifies a segment.
type Kind int

const (
	// Text is a translatable paragraph.
	Text Kind = iota
	// Code is a fenced code block, never translated.
	Code
	// Frontmatter is a leading YAML metadata block, never translated.
	Frontmatter
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Code:
		return "code"
	case Frontmatter:
		return "frontmatter"
	default:
		return "unknown"
	}
}

// Segment is the smallest cache/translation unit derived from a document.
type Segment struct {
	// Content is the exact captured text, whitespace included.
	Content string
	// Kind classifies the segment.
	Kind Kind
	// Hash is the SHA-256 hex digest of Content.
	Hash string
	// StartLine and EndLine are 1-based inclusive line numbers in the
	// original document.
	StartLine int
	EndLine   int
}

// Hash computes the SHA-256 hex digest of a string. Distinct content
// yields distinct digests; identical content in different positions
// hashes identically (content-addressing, not position-addressing).
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ---------------------------------------------------------------------------
// Splitting
// ---------------------------------------------------------------------------

// fenceMarker returns the fence marker ("```" or "~~~") opening or closing
// a fenced code block on this line, or "" if the line is not a fence.
func fenceMarker(line string) string {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "```") {
		return "```"
	}
	if strings.HasPrefix(trimmed, "~~~") {
		return "~~~"
	}
	return ""
}

// isBlank reports whether a line contains only whitespace.
func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// Split scans a document line by line and returns its ordered segments.
//
// A document consisting solely of blank lines yields zero segments.
// An unterminated code fence consumes the remainder of the document as
// one Code segment. Inline code spans (single-backtick pairs) are NOT
// separate segments; they stay inside their paragraph and are protected
// from translation by MaskProtected before dispatch.
func Split(doc string) []Segment {
	if doc == "" {
		return nil
	}
	lines := strings.Split(doc, "\n")

	var segs []Segment
	start := 0

	// Leading front matter: a "---" pair before any other content.
	if len(lines) > 0 && strings.TrimRight(lines[0], "\r") == "---" {
		for i := 1; i < len(lines); i++ {
			if strings.TrimRight(lines[i], "\r") == "---" {
				content := strings.Join(lines[:i+1], "\n")
				segs = append(segs, Segment{
					Content:   content,
					Kind:      Frontmatter,
					Hash:      Hash(content),
					StartLine: 1,
					EndLine:   i + 1,
				})
				start = i + 1
				break
			}
		}
	}

	var (
		cur      []string // lines of the segment being accumulated
		curStart int      // 0-based index of its first line
		inCode   bool
		marker   string // fence marker that opened the current code block
	)

	flush := func(kind Kind, endIdx int) {
		if len(cur) == 0 {
			return
		}
		content := strings.Join(cur, "\n")
		if kind == Text && strings.TrimSpace(content) == "" {
			cur = nil
			return
		}
		segs = append(segs, Segment{
			Content:   content,
			Kind:      kind,
			Hash:      Hash(content),
			StartLine: curStart + 1,
			EndLine:   endIdx + 1,
		})
		cur = nil
	}

	for i := start; i < len(lines); i++ {
		line := lines[i]

		if inCode {
			cur = append(cur, line)
			if m := fenceMarker(line); m == marker {
				flush(Code, i)
				inCode = false
			}
			continue
		}

		if m := fenceMarker(line); m != "" {
			// A fence terminates any open paragraph first.
			flush(Text, i-1)
			curStart = i
			cur = append(cur, line)
			inCode = true
			marker = m
			continue
		}

		if isBlank(line) {
			flush(Text, i-1)
			continue
		}

		if len(cur) == 0 {
			curStart = i
		}
		cur = append(cur, line)
	}

	// Unterminated fence: the remainder of the document is one Code segment.
	if inCode {
		flush(Code, len(lines)-1)
	} else {
		flush(Text, len(lines)-1)
	}

	return segs
}

// SplitParagraphs splits text on blank lines only, without deriving code
// or front-matter segments. The reverse reconciliation path uses this
// rule because the prior mapping's positional structure is assumed stable
// across hand edits of the translated document.
func SplitParagraphs(text string) []string {
	lines := strings.Split(text, "\n")

	var paras []string
	var cur []string
	flush := func() {
		if len(cur) == 0 {
			return
		}
		p := strings.Join(cur, "\n")
		if strings.TrimSpace(p) != "" {
			paras = append(paras, p)
		}
		cur = nil
	}

	for _, line := range lines {
		if isBlank(line) {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return paras
}

// Join reassembles segments into a document, separating them with one
// blank line. Whitespace at segment boundaries is normalized; interior
// whitespace is preserved byte for byte.
func Join(segs []Segment) string {
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = strings.TrimRight(s.Content, "\n")
	}
	return strings.Join(parts, "\n\n")
}

// JoinContents is Join over bare strings, used when reassembling
// translated paragraph text that has no Segment wrapper.
func JoinContents(contents []string) string {
	parts := make([]string, len(contents))
	for i, c := range contents {
		parts[i] = strings.TrimRight(c, "\n")
	}
	return strings.Join(parts, "\n\n")
}
