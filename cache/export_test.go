package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestExportImport_RoundTrip(t *testing.T) {
	src, _, _ := newTestStore()
	src.CacheTranslation("Hello", "en", "es", "Hola")
	src.CacheTranslation("World", "en", "es", "Mundo")
	src.CacheLocaleData("es", map[string]string{"abc": "Hola"})

	var buf bytes.Buffer
	if err := src.Export(&buf, map[string]string{"source": "test"}); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	dst, _, _ := newTestStore()
	result, err := dst.Import(&buf)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.Imported != 3 {
		t.Errorf("Imported = %d, want 3", result.Imported)
	}
	if result.Metadata["source"] != "test" {
		t.Errorf("Metadata = %v", result.Metadata)
	}

	got, ok := dst.GetCachedTranslation("Hello", "en", "es", time.Hour)
	if !ok || got != "Hola" {
		t.Errorf("restored translation = %q, %v", got, ok)
	}
	if _, ok := dst.GetCachedLocaleData("es", time.Hour); !ok {
		t.Error("restored locale data should hit")
	}
}

func TestImport_MalformedJSON(t *testing.T) {
	store, adapter, _ := newTestStore()

	_, err := store.Import(strings.NewReader("{not json"))
	var impErr *ImportError
	if !errors.As(err, &impErr) {
		t.Fatalf("expected ImportError, got %v", err)
	}
	if adapter.Len() != 0 {
		t.Error("failed import must not mutate the store")
	}
}

func TestImport_MissingVersion(t *testing.T) {
	store, adapter, _ := newTestStore()

	blob, _ := json.Marshal(ExportFormat{Entries: []ExportEntry{}})
	_, err := store.Import(bytes.NewReader(blob))
	var impErr *ImportError
	if !errors.As(err, &impErr) {
		t.Fatalf("expected ImportError for missing version, got %v", err)
	}
	if adapter.Len() != 0 {
		t.Error("failed import must not mutate the store")
	}
}

func TestImport_ForeignKeyRejected(t *testing.T) {
	store, adapter, _ := newTestStore()

	blob, _ := json.Marshal(ExportFormat{
		Version: "1",
		Entries: []ExportEntry{{Key: "evil:key", Value: `{"data":"x","timestamp":1,"version":1}`}},
	})
	if _, err := store.Import(bytes.NewReader(blob)); err == nil {
		t.Fatal("entries outside the namespace should be rejected")
	}
	if adapter.Len() != 0 {
		t.Error("failed import must not mutate the store")
	}
}

func TestImport_MalformedEnvelopeRejectedBeforeWrite(t *testing.T) {
	store, adapter, _ := newTestStore()

	blob, _ := json.Marshal(ExportFormat{
		Version: "1",
		Entries: []ExportEntry{
			{Key: Namespace + "good", Value: `{"data":"x","timestamp":1,"version":1}`},
			{Key: Namespace + "bad", Value: "not an envelope"},
		},
	})
	if _, err := store.Import(bytes.NewReader(blob)); err == nil {
		t.Fatal("malformed envelope should be rejected")
	}
	// Validation happens before any write, so even the good entry is absent.
	if adapter.Len() != 0 {
		t.Error("partial import must not happen")
	}
}
