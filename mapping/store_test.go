package mapping

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Store tests
// ---------------------------------------------------------------------------

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	doc := &Document{
		SourceHash:     "deadbeef",
		SourcePath:     "docs/readme.md",
		SourceLanguage: "en",
		TargetLanguage: "fr",
		Paragraphs: []Paragraph{
			NewParagraph("Hello", "Bonjour"),
			NewParagraph("World", "Monde"),
		},
	}
	if err := store.Save("docs/readme.md", "fr", doc); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	got, err := store.Load("docs/readme.md", "fr")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got == nil {
		t.Fatal("Load returned nil after Save")
	}
	if got.SourceHash != doc.SourceHash || got.TargetLanguage != "fr" {
		t.Errorf("metadata mismatch: %+v", got)
	}
	if len(got.Paragraphs) != 2 || got.Paragraphs[0].TranslatedContent != "Bonjour" {
		t.Errorf("paragraphs mismatch: %+v", got.Paragraphs)
	}
}

func TestStore_LoadMissingIsNotError(t *testing.T) {
	store := NewStore(t.TempDir())

	doc, err := store.Load("never-saved.md", "de")
	if err != nil {
		t.Fatalf("missing mapping should not error: %v", err)
	}
	if doc != nil {
		t.Errorf("expected nil document, got %+v", doc)
	}
}

func TestStore_DistinctLanguagesDistinctFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	if err := store.Save("a.md", "fr", &Document{SourceHash: "fr-hash"}); err != nil {
		t.Fatalf("Save fr: %v", err)
	}
	if err := store.Save("a.md", "de", &Document{SourceHash: "de-hash"}); err != nil {
		t.Fatalf("Save de: %v", err)
	}

	fr, _ := store.Load("a.md", "fr")
	de, _ := store.Load("a.md", "de")
	if fr.SourceHash != "fr-hash" || de.SourceHash != "de-hash" {
		t.Errorf("languages collided: fr=%+v de=%+v", fr, de)
	}
}

func TestStore_NestedSourcePathStaysInSidecar(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	if err := store.Save("deep/nested/path.md", "es", &Document{}); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, StoreDirName))
	if err != nil {
		t.Fatalf("sidecar dir not created: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one mapping file, got %d", len(entries))
	}
	if !strings.HasSuffix(entries[0].Name(), ".es.yaml") {
		t.Errorf("unexpected file name: %s", entries[0].Name())
	}
}

func TestStore_CorruptFileErrors(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	if err := store.Save("b.md", "it", &Document{}); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	entries, _ := os.ReadDir(store.Dir())
	path := filepath.Join(store.Dir(), entries[0].Name())
	if err := os.WriteFile(path, []byte("{not yaml: ["), 0644); err != nil {
		t.Fatalf("corrupting file: %v", err)
	}

	if _, err := store.Load("b.md", "it"); err == nil {
		t.Error("expected parse error for corrupt mapping file")
	}
}
