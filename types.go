package rustle

import "context"

// MasterSchemaVersion is the schema version written into master records.
const MasterSchemaVersion = "1.0"

// EntryStatus is the lifecycle state of a translation entry.
type EntryStatus string

const (
	// StatusNew marks an entry seen for the first time in the latest
	// extraction.
	StatusNew EntryStatus = "new"
	// StatusTranslated marks an entry with up-to-date translations.
	StatusTranslated EntryStatus = "translated"
	// StatusUpdated marks an entry whose source text changed since its
	// translations were produced; the stale translations are retained.
	StatusUpdated EntryStatus = "updated"
	// StatusMissing marks an entry whose translations could not be produced.
	StatusMissing EntryStatus = "missing"
)

// TranslationEntry is the master record's view of one translatable fragment.
type TranslationEntry struct {
	Fingerprint    string            `json:"fingerprint"`
	Source         string            `json:"source"`
	File           string            `json:"file"`
	Start          int               `json:"start"`
	End            int               `json:"end"`
	ContentHash    string            `json:"contentHash"`
	Version        int               `json:"version"`
	Translations   map[string]string `json:"translations"`
	LastTranslated string            `json:"lastTranslated,omitempty"`
	Tags           []string          `json:"tags,omitempty"`
	Status         EntryStatus       `json:"status"`
}

// MasterMetadata is the master record header.
type MasterMetadata struct {
	Version         string   `json:"version"`
	SourceLanguage  string   `json:"sourceLanguage"`
	TargetLanguages []string `json:"targetLanguages"`
	LastUpdated     string   `json:"lastUpdated"`
	TotalEntries    int      `json:"totalEntries"`
}

// MasterRecord is the canonical store of every known translatable fragment.
// It is owned and exclusively written by the extraction engine; runtime
// consumers treat it as read-only.
type MasterRecord struct {
	Metadata MasterMetadata               `json:"metadata"`
	Entries  map[string]*TranslationEntry `json:"entries"`
}

// NewMasterRecord creates an empty master record for the given languages.
func NewMasterRecord(sourceLang string, targetLangs []string) *MasterRecord {
	return &MasterRecord{
		Metadata: MasterMetadata{
			Version:         MasterSchemaVersion,
			SourceLanguage:  sourceLang,
			TargetLanguages: targetLangs,
		},
		Entries: make(map[string]*TranslationEntry),
	}
}

// BatchEntry is one item of a batch translation request.
type BatchEntry struct {
	ID   string   // Caller-chosen identifier, echoed in the response map
	Text string   // Source text
	Tags []string // Contextual hints (enclosing tag names)
	File string   // Originating file, for context
}

// BatchRequest is a batch translation request handed to a BatchTranslator.
type BatchRequest struct {
	Entries    []BatchEntry
	SourceLang string
	TargetLang string
	Model      string // Optional model override
	RequestKey string // Optional cancellation key; a new request under the same key aborts the prior one
}

// BatchTranslator is the interface for batch translation backends: the rustle
// API client and the direct provider implementations.
type BatchTranslator interface {
	// TranslateBatch translates every entry and returns a map from entry ID
	// to translated text. It does not retry; retry policy lives in the
	// Resolver.
	TranslateBatch(ctx context.Context, req BatchRequest) (map[string]string, error)
}

// MaxBatchSize caps how many entries one batch request may carry.
const MaxBatchSize = 100

// MaxTextLength caps how many runes one batch entry's text may carry.
const MaxTextLength = 5000
