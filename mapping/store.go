package mapping

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/seewhyme/rosetta-mark/segment"
)

// ---------------------------------------------------------------------------
// Sidecar store
// ---------------------------------------------------------------------------

// StoreDirName is the sidecar directory holding mapping files, created
// next to the documents it tracks.
const StoreDirName = ".rosetta"

// storeVersion is the mapping file format version.
const storeVersion = 1

// storeFile is the on-disk envelope around a Document.
type storeFile struct {
	Version  int       `yaml:"version"`
	Document *Document `yaml:"document"`
}

// Store persists document mappings as YAML sidecar files under
// <root>/.rosetta/, one file per (source path, target language) pair.
// The engine serializes its own read-modify-write per document, so the
// store only guarantees last-write-wins.
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore returns a store rooted at dir (typically the project root).
func NewStore(dir string) *Store {
	return &Store{dir: filepath.Join(dir, StoreDirName)}
}

// Dir returns the sidecar directory path.
func (s *Store) Dir() string {
	return s.dir
}

// key derives a stable file name from the source path and target language.
// The path is hashed so nested sources never escape the sidecar directory.
func (s *Store) key(sourcePath, targetLang string) string {
	h := segment.Hash(filepath.ToSlash(sourcePath))
	name := fmt.Sprintf("%s.%s.yaml", h[:16], targetLang)
	return filepath.Join(s.dir, name)
}

// Load reads the mapping for a document. A missing file is not an error:
// it returns (nil, nil), meaning no prior translation exists.
func (s *Store) Load(sourcePath, targetLang string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.key(sourcePath, targetLang)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var sf storeFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return sf.Document, nil
}

// Save writes the mapping for a document, creating the sidecar directory
// on first use.
func (s *Store) Save(sourcePath, targetLang string, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", s.dir, err)
	}

	data, err := yaml.Marshal(storeFile{Version: storeVersion, Document: doc})
	if err != nil {
		return fmt.Errorf("marshaling mapping: %w", err)
	}

	path := s.key(sourcePath, targetLang)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
