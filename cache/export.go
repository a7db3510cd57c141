package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// ExportFormat is the JSON structure for cache backup/restore.
type ExportFormat struct {
	Version    string            `json:"version"`
	ExportedAt string            `json:"exported_at"`
	Entries    []ExportEntry     `json:"entries"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ExportEntry is a single exported cache entry, envelope included.
type ExportEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ImportError indicates a malformed import payload. The store is left
// untouched when one is raised.
type ImportError struct {
	Message string
	Cause   error
}

func (e *ImportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cache import: %s: %v", e.Message, e.Cause)
	}
	return "cache import: " + e.Message
}

func (e *ImportError) Unwrap() error {
	return e.Cause
}

// ImportResult contains statistics about an import operation.
type ImportResult struct {
	Version  string
	Metadata map[string]string
	Imported int
}

// Export writes the full rustle namespace to w as one JSON blob.
func (s *Store) Export(w io.Writer, metadata map[string]string) error {
	s.mu.Lock()
	var entries []ExportEntry
	for _, key := range s.adapter.Keys() {
		if !strings.HasPrefix(key, Namespace) {
			continue
		}
		if raw, ok := s.adapter.Get(key); ok {
			entries = append(entries, ExportEntry{Key: key, Value: raw})
		}
	}
	s.mu.Unlock()

	export := ExportFormat{
		Version:    fmt.Sprintf("%d", SchemaVersion),
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Entries:    entries,
		Metadata:   metadata,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(export); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

// ExportToFile exports the cache to a file.
// The path is provided by the caller and is intentionally user-controlled.
func (s *Store) ExportToFile(path string, metadata map[string]string) error {
	f, err := os.Create(path) // #nosec G304 - path is intentionally user-provided
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	return s.Export(f, metadata)
}

// Import loads a previously exported blob. The payload is fully validated
// before any write: a malformed blob raises an ImportError and leaves the
// store unchanged.
func (s *Store) Import(r io.Reader) (*ImportResult, error) {
	var export ExportFormat
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&export); err != nil {
		return nil, &ImportError{Message: "decoding JSON", Cause: err}
	}
	if export.Version == "" {
		return nil, &ImportError{Message: "missing version"}
	}
	for i, entry := range export.Entries {
		if entry.Key == "" {
			return nil, &ImportError{Message: fmt.Sprintf("entry %d has empty key", i)}
		}
		if !strings.HasPrefix(entry.Key, Namespace) {
			return nil, &ImportError{Message: fmt.Sprintf("entry %d outside the %s namespace", i, Namespace)}
		}
		var env envelope
		if err := json.Unmarshal([]byte(entry.Value), &env); err != nil {
			return nil, &ImportError{Message: fmt.Sprintf("entry %d has a malformed envelope", i), Cause: err}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := &ImportResult{Version: export.Version, Metadata: export.Metadata}
	for _, entry := range export.Entries {
		if err := s.adapter.Set(entry.Key, entry.Value); err != nil {
			return result, &ImportError{Message: "writing entry", Cause: err}
		}
		result.Imported++
	}
	return result, nil
}

// ImportFromFile imports cache entries from a file.
// The path is provided by the caller and is intentionally user-controlled.
func (s *Store) ImportFromFile(path string) (*ImportResult, error) {
	f, err := os.Open(path) // #nosec G304 - path is intentionally user-provided
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return s.Import(f)
}
