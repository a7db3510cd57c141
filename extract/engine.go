package extract

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rustledotdev/rustle"
)

// ScanError wraps a per-file scan failure. Scan failures are logged and the
// run continues with the remaining files.
type ScanError struct {
	File  string
	Cause error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.File, e.Cause)
}

func (e *ScanError) Unwrap() error {
	return e.Cause
}

// DefaultInclude is the file glob set scanned when none is configured.
var DefaultInclude = []string{
	"*.html", "*.htm", "*.jsx", "*.tsx", "*.js", "*.ts", "*.vue", "*.svelte",
}

// DefaultExclude lists directory names skipped during enumeration.
var DefaultExclude = []string{
	"node_modules", ".git", "dist", "build", ".next", "vendor", "coverage",
}

// Config controls one extraction run.
type Config struct {
	SrcDir      string
	OutputDir   string
	SourceLang  string
	TargetLangs []string
	Include     []string // file name globs; DefaultInclude when empty
	Exclude     []string // directory names to skip; DefaultExclude when empty
	Model       string
	Debug       bool
	Logf        func(format string, args ...any)
	// Progress, when set, receives cumulative per-language translation
	// progress as batch chunks complete.
	Progress func(lang string, done, total int)
}

// Summary reports what one run did.
type Summary struct {
	FilesScanned int
	New          int
	Updated      int
	Unchanged    int
	Translated   map[string]int // per target language, live translations applied
	Fallbacks    map[string]int // per target language, source-text fallbacks written
}

// Engine drives the extraction pipeline end to end: scan, version, persist,
// translate, emit locale files.
type Engine struct {
	cfg        Config
	translator rustle.BatchTranslator
	now        func() time.Time
}

// NewEngine creates an extraction engine. The translator may be nil, in which
// case every target-language value falls back to source text.
func NewEngine(cfg Config, translator rustle.BatchTranslator) (*Engine, error) {
	if cfg.SrcDir == "" {
		return nil, &rustle.ValidationError{Field: "srcDir", Message: "source directory is required"}
	}
	if cfg.OutputDir == "" {
		return nil, &rustle.ValidationError{Field: "outputDir", Message: "output directory is required"}
	}
	if !rustle.ValidLocale(cfg.SourceLang) {
		return nil, &rustle.ValidationError{Field: "sourceLang", Message: "malformed locale " + cfg.SourceLang}
	}
	for _, lang := range cfg.TargetLangs {
		if !rustle.ValidLocale(lang) {
			return nil, &rustle.ValidationError{Field: "targetLangs", Message: "malformed locale " + lang}
		}
	}
	if len(cfg.Include) == 0 {
		cfg.Include = DefaultInclude
	}
	if len(cfg.Exclude) == 0 {
		cfg.Exclude = DefaultExclude
	}
	if cfg.Logf == nil {
		cfg.Logf = func(string, ...any) {}
	}
	return &Engine{cfg: cfg, translator: translator, now: time.Now}, nil
}

func (e *Engine) logf(format string, args ...any) {
	e.cfg.Logf(format, args...)
}

func (e *Engine) debugf(format string, args ...any) {
	if e.cfg.Debug {
		e.cfg.Logf(format, args...)
	}
}

// Run executes one extraction pass. It returns an error only for
// unrecoverable failures (unreadable source tree, unwritable output);
// per-file and per-locale failures are logged and worked around.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	record, loaded, err := LoadMasterRecord(e.cfg.OutputDir, e.cfg.SourceLang, e.cfg.TargetLangs)
	if err != nil {
		e.logf("warning: %v (starting from an empty record)", err)
	} else if loaded {
		e.debugf("loaded master record with %d entries", len(record.Entries))
	}

	files, err := e.enumerate()
	if err != nil {
		return nil, err
	}
	e.debugf("scanning %d files under %s", len(files), e.cfg.SrcDir)

	summary := &Summary{
		Translated: make(map[string]int),
		Fallbacks:  make(map[string]int),
	}

	seen := make(map[string]bool)
	for _, path := range files {
		fragments, err := e.scanOne(path)
		if err != nil {
			e.logf("warning: %v (skipped)", err)
			continue
		}
		summary.FilesScanned++
		for _, frag := range fragments {
			e.apply(record, frag, seen, summary)
		}
	}

	now := e.now().UTC().Format(time.RFC3339)
	if err := WriteMasterRecord(e.cfg.OutputDir, record, now); err != nil {
		return nil, fmt.Errorf("write master record: %w", err)
	}

	sourceData := make(map[string]string, len(record.Entries))
	for fp, entry := range record.Entries {
		sourceData[fp] = entry.Source
	}
	if err := WriteLocaleFile(e.cfg.OutputDir, e.cfg.SourceLang, sourceData); err != nil {
		return nil, fmt.Errorf("write source locale file: %w", err)
	}

	failed := make(map[string]bool)
	for _, lang := range e.cfg.TargetLangs {
		if rustle.SameLanguage(lang, e.cfg.SourceLang) {
			continue
		}
		e.translateLocale(ctx, record, lang, now, summary, failed)
		data := make(map[string]string, len(record.Entries))
		for fp, entry := range record.Entries {
			if value, ok := entry.Translations[lang]; ok && value != "" {
				data[fp] = value
			} else {
				// Source text stands in so the locale file never has a
				// missing key.
				data[fp] = entry.Source
			}
		}
		if err := WriteLocaleFile(e.cfg.OutputDir, lang, data); err != nil {
			return nil, fmt.Errorf("write locale file %s: %w", lang, err)
		}
	}

	// Entries whose stale translations were refreshed in every target
	// language graduate back to translated. Fresh entries keep their "new"
	// status until a later run sees them unchanged.
	for fp, entry := range record.Entries {
		if entry.Status != rustle.StatusUpdated || failed[fp] {
			continue
		}
		complete := true
		for _, target := range e.cfg.TargetLangs {
			if rustle.SameLanguage(target, e.cfg.SourceLang) {
				continue
			}
			if entry.Translations[target] == "" {
				complete = false
				break
			}
		}
		if complete {
			entry.Status = rustle.StatusTranslated
		}
	}
	if err := WriteMasterRecord(e.cfg.OutputDir, record, now); err != nil {
		return nil, fmt.Errorf("write master record: %w", err)
	}

	return summary, nil
}

// enumerate walks the source tree and collects files matching the include
// globs, skipping excluded directories.
func (e *Engine) enumerate() ([]string, error) {
	excluded := make(map[string]bool, len(e.cfg.Exclude))
	for _, name := range e.cfg.Exclude {
		excluded[name] = true
	}

	var files []string
	err := filepath.WalkDir(e.cfg.SrcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != e.cfg.SrcDir && excluded[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		for _, pattern := range e.cfg.Include {
			if ok, _ := filepath.Match(pattern, d.Name()); ok {
				files = append(files, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", e.cfg.SrcDir, err)
	}
	sort.Strings(files)
	return files, nil
}

func (e *Engine) scanOne(path string) ([]Fragment, error) {
	content, err := os.ReadFile(path) // #nosec G304 -- path comes from the walked source tree
	if err != nil {
		return nil, &ScanError{File: path, Cause: err}
	}

	rel, err := filepath.Rel(e.cfg.SrcDir, path)
	if err != nil {
		rel = path
	}
	return ScanFile(filepath.ToSlash(rel), string(content))
}

// apply merges one fragment into the master record under the versioning
// rules: new entries start at version 1, content changes bump the version and
// keep the now-stale translations, unchanged entries carry over untouched.
func (e *Engine) apply(record *rustle.MasterRecord, frag Fragment, seen map[string]bool, summary *Summary) {
	fp := rustle.Fingerprint(frag.Text)
	if seen[fp] {
		return
	}
	seen[fp] = true

	hash := rustle.ContentHash(frag.Text)
	entry, ok := record.Entries[fp]
	if !ok {
		record.Entries[fp] = &rustle.TranslationEntry{
			Fingerprint:  fp,
			Source:       frag.Text,
			File:         frag.File,
			Start:        frag.Start,
			End:          frag.End,
			ContentHash:  hash,
			Version:      1,
			Translations: make(map[string]string),
			Tags:         frag.Tags,
			Status:       rustle.StatusNew,
		}
		summary.New++
		e.debugf("new entry %s: %q (%s)", fp, frag.Text, frag.File)
		return
	}

	entry.File = frag.File
	entry.Start = frag.Start
	entry.End = frag.End
	if len(frag.Tags) > 0 {
		entry.Tags = frag.Tags
	}
	if entry.Translations == nil {
		entry.Translations = make(map[string]string)
	}

	if entry.ContentHash != hash {
		entry.Source = frag.Text
		entry.ContentHash = hash
		entry.Version++
		entry.Status = rustle.StatusUpdated
		summary.Updated++
		e.debugf("updated entry %s to v%d: %q", fp, entry.Version, frag.Text)
		return
	}

	// Unchanged entry seen again with a full translation set settles into
	// the translated state.
	if entry.Status == rustle.StatusNew || entry.Status == rustle.StatusMissing {
		complete := true
		for _, target := range e.cfg.TargetLangs {
			if rustle.SameLanguage(target, e.cfg.SourceLang) {
				continue
			}
			if entry.Translations[target] == "" {
				complete = false
				break
			}
		}
		if complete {
			entry.Status = rustle.StatusTranslated
		}
	}
	summary.Unchanged++
}

// translateLocale fills the missing translations for one target language with
// a single batched call (chunked at the batch size cap). A failed chunk falls
// back to source text for its entries; the locale file stays complete either
// way.
func (e *Engine) translateLocale(ctx context.Context, record *rustle.MasterRecord, lang, now string, summary *Summary, failed map[string]bool) {
	var missing []*rustle.TranslationEntry
	for _, entry := range record.Entries {
		// Stale (updated) entries are re-translated even when an old value
		// exists.
		if entry.Status == rustle.StatusUpdated || entry.Translations[lang] == "" {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return
	}
	sort.Slice(missing, func(i, j int) bool {
		return missing[i].Fingerprint < missing[j].Fingerprint
	})

	if e.translator == nil {
		summary.Fallbacks[lang] += len(missing)
		e.logf("no translator configured; %s falls back to source text for %d entries", lang, len(missing))
		return
	}

	progress := func(done int) {
		if e.cfg.Progress != nil {
			e.cfg.Progress(lang, done, len(missing))
		}
	}
	progress(0)

	for start := 0; start < len(missing); start += rustle.MaxBatchSize {
		end := start + rustle.MaxBatchSize
		if end > len(missing) {
			end = len(missing)
		}
		chunk := missing[start:end]

		entries := make([]rustle.BatchEntry, len(chunk))
		for i, entry := range chunk {
			entries[i] = rustle.BatchEntry{
				ID:   entry.Fingerprint,
				Text: entry.Source,
				Tags: entry.Tags,
				File: entry.File,
			}
		}

		results, err := e.translator.TranslateBatch(ctx, rustle.BatchRequest{
			Entries:    entries,
			SourceLang: e.cfg.SourceLang,
			TargetLang: lang,
			Model:      e.cfg.Model,
		})
		if err != nil {
			summary.Fallbacks[lang] += len(chunk)
			for _, entry := range chunk {
				failed[entry.Fingerprint] = true
				if entry.Translations[lang] == "" {
					entry.Status = rustle.StatusMissing
				}
			}
			e.logf("warning: translate batch for %s failed: %v (falling back to source text)", lang, err)
			progress(end)
			continue
		}

		cleaned := rustle.CleanBatch(results)
		for _, entry := range chunk {
			value, ok := cleaned[entry.Fingerprint]
			if !ok || value == "" {
				summary.Fallbacks[lang]++
				failed[entry.Fingerprint] = true
				if entry.Translations[lang] == "" {
					entry.Status = rustle.StatusMissing
				}
				continue
			}
			entry.Translations[lang] = value
			entry.LastTranslated = now
			summary.Translated[lang]++
		}
		progress(end)
	}
}

// LocaleFilePath returns where one locale file lands for a given output dir.
func LocaleFilePath(outputDir, locale string) string {
	return filepath.Join(outputDir, locale+".json")
}
