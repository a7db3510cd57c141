package provider

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider is a mock translation backend for testing.
type MockProvider struct {
	Translations map[string]string // Map of source text to translation
	Err          error             // Returned by every call when set

	mu          sync.Mutex
	callCount   int
	lastRequest *BatchRequest
}

// NewMockProvider creates a new mock provider with default translations.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Translations: map[string]string{
			"Hello":                "Hola",
			"World":                "Mundo",
			"Hello World":          "Hola Mundo",
			"Welcome":              "Bienvenido",
			"Welcome to our site.": "Bienvenido a nuestro sitio.",
		},
	}
}

// TranslateBatch returns mock translations keyed by entry ID.
func (m *MockProvider) TranslateBatch(_ context.Context, req BatchRequest) (map[string]string, error) {
	m.mu.Lock()
	m.callCount++
	reqCopy := req
	m.lastRequest = &reqCopy
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	results := make(map[string]string, len(req.Entries))
	for _, entry := range req.Entries {
		if translation, ok := m.Translations[entry.Text]; ok {
			results[entry.ID] = translation
		} else {
			// Bracketed text for unknown translations.
			results[entry.ID] = fmt.Sprintf("[%s]", entry.Text)
		}
	}

	return results, nil
}

// CallCount returns how many times TranslateBatch ran.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastRequest returns the most recent request received.
func (m *MockProvider) LastRequest() *BatchRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}

// Reset clears the call count and last request.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.lastRequest = nil
}

// Verify MockProvider implements BatchTranslator
var _ BatchTranslator = (*MockProvider)(nil)
