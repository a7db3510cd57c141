// Package cache provides the persistent translation cache: a key/value store
// with TTL and schema-version invalidation over a pluggable backing adapter.
package cache

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// SchemaVersion is stamped into every stored envelope. Bump it to invalidate
// all previously cached values at once; mismatched entries read as misses and
// are evicted lazily.
const SchemaVersion = 1

// Namespace prefixes every key the store writes, so a shared backend can be
// enumerated, exported, and cleared without touching foreign keys.
const Namespace = "rustle:"

const (
	typeTranslation = "t"
	typeLocale      = "l"
)

// keySep separates key segments. NUL cannot appear in locale codes and is
// vanishingly rare in source text, so composite keys stay unambiguous.
const keySep = "\x00"

// Adapter is the backing key/value store. Implementations need not expire or
// version entries; the Store owns both. In a multi-process deployment the
// adapter owns atomicity of individual reads and writes.
type Adapter interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string)
	// Keys returns every stored key in the rustle namespace.
	Keys() []string
}

// envelope wraps every cached value with its capture time and schema version.
type envelope struct {
	Data      string `json:"data"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
	Version   int    `json:"version"`
}

// Stats summarizes cache contents.
type Stats struct {
	ItemCount  int
	ApproxSize int // bytes of stored envelopes
}

// Store is the translation cache. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	adapter Adapter
	now     func() time.Time
}

// NewStore creates a Store over the given adapter.
func NewStore(adapter Adapter) *Store {
	return &Store{adapter: adapter, now: time.Now}
}

// translationKey derives the composite key for one cached translation. It is
// keyed by literal text, not fingerprint, so ad-hoc runtime translations the
// extractor never saw are cacheable too.
func translationKey(text, sourceLang, targetLang string) string {
	return Namespace + typeTranslation + keySep + sourceLang + keySep + targetLang + keySep + text
}

func localeKey(locale string) string {
	return Namespace + typeLocale + keySep + locale
}

// CacheTranslation stores one translated string.
func (s *Store) CacheTranslation(text, sourceLang, targetLang, value string) error {
	return s.put(translationKey(text, sourceLang, targetLang), value)
}

// GetCachedTranslation retrieves a cached translation. Entries older than
// maxAge (when positive) or written under another schema version read as
// absent and are evicted.
func (s *Store) GetCachedTranslation(text, sourceLang, targetLang string, maxAge time.Duration) (string, bool) {
	return s.get(translationKey(text, sourceLang, targetLang), maxAge)
}

// CacheLocaleData stores a full locale map as one entry.
func (s *Store) CacheLocaleData(locale string, data map[string]string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.put(localeKey(locale), string(raw))
}

// GetCachedLocaleData retrieves a cached locale map.
func (s *Store) GetCachedLocaleData(locale string, maxAge time.Duration) (map[string]string, bool) {
	raw, ok := s.get(localeKey(locale), maxAge)
	if !ok {
		return nil, false
	}
	var data map[string]string
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		s.mu.Lock()
		s.adapter.Delete(localeKey(locale))
		s.mu.Unlock()
		return nil, false
	}
	return data, true
}

// Clear removes every entry in the rustle namespace.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range s.adapter.Keys() {
		if strings.HasPrefix(key, Namespace) {
			s.adapter.Delete(key)
		}
	}
}

// Stats reports entry count and approximate byte size of the namespace.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Stats
	for _, key := range s.adapter.Keys() {
		if !strings.HasPrefix(key, Namespace) {
			continue
		}
		st.ItemCount++
		if raw, ok := s.adapter.Get(key); ok {
			st.ApproxSize += len(key) + len(raw)
		}
	}
	return st
}

func (s *Store) put(key, value string) error {
	env := envelope{
		Data:      value,
		Timestamp: s.now().UnixMilli(),
		Version:   SchemaVersion,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adapter.Set(key, string(raw))
}

func (s *Store) get(key string, maxAge time.Duration) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.adapter.Get(key)
	if !ok {
		return "", false
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		s.adapter.Delete(key)
		return "", false
	}
	if env.Version != SchemaVersion {
		s.adapter.Delete(key)
		return "", false
	}
	if maxAge > 0 {
		age := s.now().Sub(time.UnixMilli(env.Timestamp))
		if age > maxAge {
			s.adapter.Delete(key)
			return "", false
		}
	}
	return env.Data, true
}
