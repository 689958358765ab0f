// Package langmeta provides a small language metadata registry (native
// names) used when resolving prompt templates and rendering CLI output.
package langmeta

import "strings"

// registry contains canonical native language names keyed by ISO 639-1
// code. Locale variants fall back to their base language in Resolve.
var registry = map[string]string{
	"ar": "العربية",
	"bg": "Български",
	"cs": "Čeština",
	"da": "Dansk",
	"de": "Deutsch",
	"el": "Ελληνικά",
	"en": "English",
	"es": "Español",
	"et": "Eesti",
	"fa": "فارسی",
	"fi": "Suomi",
	"fr": "Français",
	"he": "עברית",
	"hi": "हिन्दी",
	"hr": "Hrvatski",
	"hu": "Magyar",
	"id": "Bahasa Indonesia",
	"it": "Italiano",
	"ja": "日本語",
	"ko": "한국어",
	"lt": "Lietuvių",
	"lv": "Latviešu",
	"nl": "Nederlands",
	"no": "Norsk",
	"pl": "Polski",
	"pt": "Português",
	"ro": "Română",
	"ru": "Русский",
	"sk": "Slovenčina",
	"sl": "Slovenščina",
	"sr": "Српски",
	"sv": "Svenska",
	"th": "ไทย",
	"tr": "Türkçe",
	"uk": "Українська",
	"vi": "Tiếng Việt",
	"zh": "中文",
}

// Name returns the native name for a language code, or "" if unknown.
// Locale variants like "pt-BR" resolve to the base language name.
func Name(code string) string {
	return registry[Resolve(code)]
}

// Known reports whether the code (or its base language) is registered.
func Known(code string) bool {
	_, ok := registry[Resolve(code)]
	return ok
}

// Resolve normalizes a language code to its registry key: lowercase, and
// falling back from a locale variant ("pt_BR", "pt-BR") to the base
// language when the variant itself is not registered.
func Resolve(code string) string {
	code = strings.ReplaceAll(strings.TrimSpace(code), "_", "-")
	lower := strings.ToLower(code)
	if _, ok := registry[lower]; ok {
		return lower
	}
	if base, _, found := strings.Cut(lower, "-"); found {
		return base
	}
	return lower
}
