// Package offline tracks connectivity, queues translation requests that
// cannot be served while disconnected, and primes the cache for offline
// readiness.
package offline

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rustledotdev/rustle/cache"
)

// Resolver re-resolves queued translations once connectivity returns. The
// runtime resolution engine satisfies this.
type Resolver interface {
	Resolve(ctx context.Context, text, targetLang string) (string, error)
}

// Pending is one queued translation request.
type Pending struct {
	Text       string
	SourceLang string
	TargetLang string
	Timestamp  time.Time
}

type pendingKey struct {
	text       string
	sourceLang string
	targetLang string
}

// Manager tracks online/offline state and the pending-translation queue.
// Safe for concurrent use.
type Manager struct {
	store *cache.Store

	mu        sync.Mutex
	online    bool
	onOnline  []func()
	onOffline []func()
	pending   map[pendingKey]Pending
	resolver  Resolver
	now       func() time.Time
}

// NewManager creates a Manager over the given cache store, initially online.
func NewManager(store *cache.Store) *Manager {
	return &Manager{
		store:   store,
		online:  true,
		pending: make(map[pendingKey]Pending),
		now:     time.Now,
	}
}

// IsOnline reports the current connectivity state.
func (m *Manager) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnOnline registers a callback fired on each transition to online.
func (m *Manager) OnOnline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOnline = append(m.onOnline, fn)
}

// OnOffline registers a callback fired on each transition to offline.
func (m *Manager) OnOffline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOffline = append(m.onOffline, fn)
}

// BindResolver attaches the resolution engine used to flush the queue on
// reconnect.
func (m *Manager) BindResolver(r Resolver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolver = r
}

// SetOnline records a connectivity transition. Going online fires the online
// callbacks and then flushes the pending queue through the bound resolver;
// items are evicted only once they resolve successfully. Going offline fires
// the offline callbacks.
func (m *Manager) SetOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	var callbacks []func()
	if online {
		callbacks = append(callbacks, m.onOnline...)
	} else {
		callbacks = append(callbacks, m.onOffline...)
	}
	m.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}

	if online {
		m.flush(ctx)
	}
}

// Enqueue queues a translation that missed every offline source. At most one
// pending item exists per (text, source, target).
func (m *Manager) Enqueue(text, sourceLang, targetLang string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pendingKey{text: text, sourceLang: sourceLang, targetLang: targetLang}
	if _, exists := m.pending[key]; exists {
		return
	}
	m.pending[key] = Pending{
		Text:       text,
		SourceLang: sourceLang,
		TargetLang: targetLang,
		Timestamp:  m.now(),
	}
}

// PendingCount returns the number of queued translations.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// PendingList returns a snapshot of the queue.
func (m *Manager) PendingList() []Pending {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Pending, 0, len(m.pending))
	for _, p := range m.pending {
		out = append(out, p)
	}
	return out
}

// flush re-resolves every pending item, evicting only successes. Failures
// stay queued for the next reconnect and surface through the resolver's
// normal error path.
func (m *Manager) flush(ctx context.Context) {
	m.mu.Lock()
	resolver := m.resolver
	items := make(map[pendingKey]Pending, len(m.pending))
	for k, v := range m.pending {
		items[k] = v
	}
	m.mu.Unlock()

	if resolver == nil {
		return
	}

	for key, item := range items {
		if _, err := resolver.Resolve(ctx, item.Text, item.TargetLang); err != nil {
			continue
		}
		m.mu.Lock()
		delete(m.pending, key)
		m.mu.Unlock()
	}
}

// PreloadTranslations primes the cache with static locale data so resolution
// hits the cache before ever reaching the API: the offline-readiness
// bootstrap invoked at startup. sourceByFP maps fingerprint to source text
// (the source-language locale file); translated maps fingerprint to the
// translated string.
func (m *Manager) PreloadTranslations(sourceByFP, translated map[string]string, sourceLang, targetLang string) error {
	if err := m.store.CacheLocaleData(targetLang, translated); err != nil {
		return err
	}
	for fp, value := range translated {
		src, ok := sourceByFP[fp]
		if !ok {
			continue
		}
		if err := m.store.CacheTranslation(src, sourceLang, targetLang, value); err != nil {
			return err
		}
	}
	return nil
}

// ExportCache serializes the full cache namespace as one JSON blob.
func (m *Manager) ExportCache(w io.Writer) error {
	return m.store.Export(w, map[string]string{"exported_by": "offline-manager"})
}

// ImportCache restores a previously exported blob. Malformed input raises a
// typed error without partially mutating the store.
func (m *Manager) ImportCache(r io.Reader) (*cache.ImportResult, error) {
	return m.store.Import(r)
}
