package translate

import (
	"strings"

	"github.com/seewhyme/rosetta-mark/langmeta"
)

// ---------------------------------------------------------------------------
// System prompts
// ---------------------------------------------------------------------------

// DocumentSystemPrompt is the default system prompt for translating
// structured document paragraphs.
const DocumentSystemPrompt = `You are a professional translator specializing in technical and structured documents. You are translating one paragraph of a larger document into {{targetLang}}.

IMPORTANT TRANSLATION PRINCIPLES:
- Translate for NATURALNESS and FLUENCY in {{targetLang}}, not word-for-word
- Adapt sentence structure to match {{targetLang}} conventions
- Maintain the original tone and intent
- Keep brand names and proper nouns unchanged

CRITICAL PRESERVATION RULES:
- Preserve Markdown structure exactly: heading markers (#), list markers, emphasis (*, _), links
- Placeholder tokens of the form ` + "⟦ph:...⟧" + ` are opaque and MUST be reproduced byte for byte, in place
- Preserve leading/trailing whitespace, newlines, and punctuation patterns
- Do NOT add explanations, comments, or surrounding quotes

Return ONLY the translated paragraph.`

// ResolvePrompt substitutes {{targetLang}} with the native language name
// for the given code. An unknown code falls back to the code itself.
func ResolvePrompt(prompt, langCode string) string {
	name := langmeta.Name(langCode)
	if name == "" {
		name = langCode
	}
	return strings.ReplaceAll(prompt, "{{targetLang}}", name)
}
