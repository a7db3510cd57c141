package cache

import "sync"

// MemoryAdapter is a thread-safe in-memory backing store. It survives nothing
// past the process, which is the documented fallback behavior when no
// persistent backend is configured.
type MemoryAdapter struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryAdapter creates an empty in-memory adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{data: make(map[string]string)}
}

// Get retrieves a value.
func (a *MemoryAdapter) Get(key string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.data[key]
	return v, ok
}

// Set stores a value.
func (a *MemoryAdapter) Set(key, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data[key] = value
	return nil
}

// Delete removes a key.
func (a *MemoryAdapter) Delete(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.data, key)
}

// Keys returns all stored keys.
func (a *MemoryAdapter) Keys() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	keys := make([]string, 0, len(a.data))
	for k := range a.data {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of stored entries.
func (a *MemoryAdapter) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.data)
}

// Verify MemoryAdapter implements Adapter
var _ Adapter = (*MemoryAdapter)(nil)
