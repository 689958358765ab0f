package segment

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Protected-span masking
// ---------------------------------------------------------------------------
//
// Before any text is handed to a translation provider, regions that must
// survive byte for byte — fenced code, inline code spans, front matter —
// are replaced with opaque placeholder tokens. After the provider returns,
// Restore swaps the originals back in.
//
// Placeholders embed a fresh UUID per call, so they are unique and masking
// is idempotent: restoring already-restored text is a no-op because its
// placeholders no longer occur.

// fencedBlock matches fenced code blocks (``` or ~~~).
var fencedBlock = regexp.MustCompile("(?s)```.*?```|~~~.*?~~~")

// inlineCode matches single-backtick inline code spans on one line.
var inlineCode = regexp.MustCompile("`[^`\n]+`")

// frontmatterHead matches a YAML front matter block at the start of text.
var frontmatterHead = regexp.MustCompile(`(?s)^---\r?\n.*?\r?\n---(\r?\n|$)`)

// RestoreMap records placeholder → original substitutions for one
// MaskProtected call.
type RestoreMap struct {
	spans map[string]string
}

// Len returns the number of masked spans.
func (m *RestoreMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.spans)
}

// MaskProtected replaces every protected span in text with a unique
// placeholder and returns the masked text plus the map needed to undo it.
func MaskProtected(text string) (string, *RestoreMap) {
	rm := &RestoreMap{spans: make(map[string]string)}

	mask := func(s string) string {
		ph := "⟦ph:" + uuid.NewString() + "⟧"
		rm.spans[ph] = s
		return ph
	}

	masked := frontmatterHead.ReplaceAllStringFunc(text, mask)
	masked = fencedBlock.ReplaceAllStringFunc(masked, mask)
	masked = inlineCode.ReplaceAllStringFunc(masked, mask)
	return masked, rm
}

// Restore substitutes the original spans back into masked text. Text that
// contains none of the map's placeholders is returned unchanged.
func Restore(masked string, rm *RestoreMap) string {
	if rm == nil || len(rm.spans) == 0 {
		return masked
	}
	out := masked
	for ph, original := range rm.spans {
		out = strings.ReplaceAll(out, ph, original)
	}
	return out
}
