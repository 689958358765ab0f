package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/seewhyme/rosetta-mark/segment"
)

// ---------------------------------------------------------------------------
// Language detection with a bounded-TTL cache
// ---------------------------------------------------------------------------

// DetectTTL is how long a detected language stays valid for the same
// sample content.
const DetectTTL = 24 * time.Hour

// detectSampleLimit caps how much text is sent for detection.
const detectSampleLimit = 500

const detectPrompt = `Identify the language of the user's text. Respond with ONLY the ISO 639-1 language code (e.g. "en", "fr", "zh"), nothing else.`

// langCode validates detector output.
var langCode = regexp.MustCompile(`^[a-z]{2,3}(-[A-Za-z]{2,4})?$`)

// detectEntry is one cached detection result.
type detectEntry struct {
	Code       string    `json:"code"`
	DetectedAt time.Time `json:"detected_at"`
}

// Detector resolves the language of sample text via the provider, caching
// results by content hash in a JSON file so repeated runs on the same
// document stay local.
type Detector struct {
	client    Client
	cachePath string
	ttl       time.Duration
}

// NewDetector returns a detector caching into cachePath (empty disables
// caching).
func NewDetector(client Client, cachePath string) *Detector {
	return &Detector{client: client, cachePath: cachePath, ttl: DetectTTL}
}

// Detect returns the language code of sample, best-effort.
func (d *Detector) Detect(ctx context.Context, sample string) (string, error) {
	sample = strings.TrimSpace(sample)
	if sample == "" {
		return "", Errorf(KindInvalidResponse, "empty sample")
	}
	if len(sample) > detectSampleLimit {
		// Back up to a rune boundary so a multi-byte character is not
		// split mid-sequence.
		cut := detectSampleLimit
		for cut > 0 && !utf8.RuneStart(sample[cut]) {
			cut--
		}
		sample = sample[:cut]
	}
	key := segment.Hash(sample)

	if code, ok := d.cached(key); ok {
		return code, nil
	}

	res, err := d.client.Translate(ctx, Request{
		Text:         sample,
		SystemPrompt: detectPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("detecting language: %w", err)
	}

	code := strings.ToLower(strings.Trim(strings.TrimSpace(res.Text), `"'.`))
	if !langCode.MatchString(code) {
		return "", Errorf(KindInvalidResponse, "unexpected detector output %q", res.Text)
	}

	d.store(key, code)
	return code, nil
}

// cached returns a non-expired cache hit.
func (d *Detector) cached(key string) (string, bool) {
	entries := d.load()
	e, ok := entries[key]
	if !ok || time.Since(e.DetectedAt) > d.ttl {
		return "", false
	}
	return e.Code, true
}

func (d *Detector) load() map[string]detectEntry {
	entries := make(map[string]detectEntry)
	if d.cachePath == "" {
		return entries
	}
	data, err := os.ReadFile(d.cachePath)
	if err != nil {
		return entries
	}
	// A corrupt cache is discarded, not fatal.
	_ = json.Unmarshal(data, &entries)
	return entries
}

func (d *Detector) store(key, code string) {
	if d.cachePath == "" {
		return
	}
	entries := d.load()
	entries[key] = detectEntry{Code: code, DetectedAt: time.Now()}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(d.cachePath), 0700); err != nil {
		return
	}
	_ = os.WriteFile(d.cachePath, data, 0644)
}
