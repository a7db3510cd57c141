// Package extract implements the source-code extraction pipeline: it scans a
// project tree for translatable text fragments, maintains the master record
// of every known fragment across runs, and emits per-language locale files.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rustledotdev/rustle"
)

// MasterFileName is the master record's file name inside the output directory.
const MasterFileName = "rustle-master.json"

// LoadMasterRecord reads a prior master record from dir. A missing or corrupt
// file is not fatal: extraction starts from an empty record, and the second
// return value reports whether a prior record was actually loaded.
func LoadMasterRecord(dir, sourceLang string, targetLangs []string) (*rustle.MasterRecord, bool, error) {
	path := filepath.Join(dir, MasterFileName)

	data, err := os.ReadFile(path) // #nosec G304 -- path is operator-supplied
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return rustle.NewMasterRecord(sourceLang, targetLangs), false, nil
		}
		return rustle.NewMasterRecord(sourceLang, targetLangs), false, err
	}

	var record rustle.MasterRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return rustle.NewMasterRecord(sourceLang, targetLangs), false, fmt.Errorf("corrupt master record %s: %w", path, err)
	}
	if record.Entries == nil {
		record.Entries = make(map[string]*rustle.TranslationEntry)
	}
	record.Metadata.SourceLanguage = sourceLang
	record.Metadata.TargetLanguages = targetLangs
	return &record, true, nil
}

// WriteMasterRecord writes the record to dir, refreshing its metadata.
func WriteMasterRecord(dir string, record *rustle.MasterRecord, lastUpdated string) error {
	record.Metadata.Version = rustle.MasterSchemaVersion
	record.Metadata.LastUpdated = lastUpdated
	record.Metadata.TotalEntries = len(record.Entries)

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode master record: %w", err)
	}
	return writeFileAtomic(filepath.Join(dir, MasterFileName), data)
}

// WriteLocaleFile writes one flat fingerprint-to-text locale file, e.g.
// es.json. encoding/json marshals map keys sorted, so the output diffs
// stably across runs.
func WriteLocaleFile(dir, locale string, data map[string]string) error {
	if !rustle.ValidLocale(locale) {
		return &rustle.ValidationError{Field: "locale", Message: "malformed locale " + locale}
	}

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode locale file %s: %w", locale, err)
	}
	return writeFileAtomic(filepath.Join(dir, locale+".json"), encoded)
}

// writeFileAtomic writes via a temp file and rename so a crashed run never
// leaves a truncated record behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
