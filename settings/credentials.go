// Package settings stores user credentials for AI providers.
//
// All settings live in the XDG data directory:
//
//	$XDG_DATA_HOME/rosetta-mark/  (default: ~/.local/share/rosetta-mark/)
//
// Files stored:
//   - auth.json    — API keys, keyed by provider ID (permissions 0600)
//   - detect.json  — language-detection cache
//
// Lookup order for API keys:
//  1. --api-key flag (highest priority)
//  2. ROSETTA_API_KEY / <PROVIDER>_API_KEY environment variables
//  3. This credential store
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	dataDirName = "rosetta-mark"
	authFile    = "auth.json"
	detectFile  = "detect.json"
)

// ---------------------------------------------------------------------------
// Credential entries
// ---------------------------------------------------------------------------

// Info is one provider's stored credentials.
type Info struct {
	// Key is the API key.
	Key string `json:"key"`
	// BaseURL is the custom endpoint URL (custom-openai).
	BaseURL string `json:"baseUrl,omitempty"`
}

// Store holds all provider credentials, keyed by provider ID.
type Store map[string]*Info

// ---------------------------------------------------------------------------
// File paths
// ---------------------------------------------------------------------------

// DataDir returns the data directory, respecting $XDG_DATA_HOME and
// falling back to ~/.local/share.
func DataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

// AuthFilePath returns the auth.json path for display purposes.
func AuthFilePath() string {
	dir, err := DataDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, authFile)
}

// DetectCachePath returns the language-detection cache path.
func DetectCachePath() string {
	dir, err := DataDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, detectFile)
}

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

// Load reads the credential store from disk. A missing or invalid file
// yields an empty store.
func Load() Store {
	path := AuthFilePath()
	if path == "" {
		return make(Store)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return make(Store)
	}
	var store Store
	if err := json.Unmarshal(data, &store); err != nil || store == nil {
		return make(Store)
	}
	return store
}

// Save writes the credential store to disk with 0600 permissions.
func Save(store Store) error {
	path := AuthFilePath()
	if path == "" {
		return fmt.Errorf("cannot determine auth file path")
	}

	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing auth file: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Key lookup
// ---------------------------------------------------------------------------

// APIKey resolves the key for a provider: flag value first, then the
// ROSETTA_API_KEY and <PROVIDER>_API_KEY environment variables, then the
// credential store.
func APIKey(providerID, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if key := os.Getenv("ROSETTA_API_KEY"); key != "" {
		return key
	}
	envName := strings.ToUpper(strings.ReplaceAll(providerID, "-", "_")) + "_API_KEY"
	if key := os.Getenv(envName); key != "" {
		return key
	}
	if info := Load()[providerID]; info != nil {
		return info.Key
	}
	return ""
}

// SetAPIKey stores an API key for a provider (upsert).
func SetAPIKey(providerID, key string) error {
	store := Load()
	info := store[providerID]
	if info == nil {
		info = &Info{}
	}
	info.Key = key
	store[providerID] = info
	return Save(store)
}

// SetBaseURL stores a custom endpoint for a provider (upsert).
func SetBaseURL(providerID, baseURL string) error {
	store := Load()
	info := store[providerID]
	if info == nil {
		info = &Info{}
	}
	info.BaseURL = baseURL
	store[providerID] = info
	return Save(store)
}

// BaseURL returns the stored endpoint for a provider, or "".
func BaseURL(providerID string) string {
	if info := Load()[providerID]; info != nil {
		return info.BaseURL
	}
	return ""
}

// Remove deletes credentials for a provider.
func Remove(providerID string) error {
	store := Load()
	if _, ok := store[providerID]; !ok {
		return nil
	}
	delete(store, providerID)
	return Save(store)
}

// MaskKey returns a masked version of a key for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
