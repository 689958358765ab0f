package engine

import (
	"github.com/seewhyme/rosetta-mark/translate"
)

// ---------------------------------------------------------------------------
// Size guard
// ---------------------------------------------------------------------------

// charsPerToken is the character-count heuristic used to estimate tokens
// without a tokenizer round trip.
const charsPerToken = 4

// DefaultMaxTokens is the document size ceiling checked before dispatch.
const DefaultMaxTokens = 100000

// EstimateTokens approximates the token count of text (~4 chars/token,
// rounded up).
func EstimateTokens(text string) int {
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// CheckSize fails fast on documents whose estimated token count exceeds
// maxTokens (DefaultMaxTokens when maxTokens <= 0).
func CheckSize(text string, maxTokens int) error {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if n := EstimateTokens(text); n > maxTokens {
		return translate.Errorf(translate.KindTooLarge,
			"document is ~%d tokens, limit is %d", n, maxTokens)
	}
	return nil
}
