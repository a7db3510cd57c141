package rustle

import (
	"fmt"
	"sync"
)

// HookKind identifies a resolution lifecycle event.
type HookKind int

const (
	// HookBeforeTranslate fires before a live API call; handlers may rewrite
	// Event.Text to pre-process the outgoing content.
	HookBeforeTranslate HookKind = iota
	// HookAfterTranslate fires after a successful live translation; handlers
	// may rewrite Event.Translated.
	HookAfterTranslate
	// HookCacheHit fires when the waterfall is satisfied from the cache.
	HookCacheHit
	// HookCacheMiss fires when the cache lookup comes back empty.
	HookCacheMiss
	// HookLocaleChange fires when the active target locale switches.
	HookLocaleChange
	// HookError fires when a resolution or another hook fails.
	HookError
)

// HookEvent carries the context of a lifecycle event. BeforeTranslate and
// AfterTranslate handlers may mutate Text and Translated respectively.
type HookEvent struct {
	Kind       HookKind
	Text       string
	Translated string
	SourceLang string
	TargetLang string
	Err        error
}

// HookFunc handles a lifecycle event.
type HookFunc func(*HookEvent)

// HookRegistry holds ordered handler lists per hook kind. Handler failures
// (panics) are caught and reported through HookError handlers; they never
// abort the resolution that triggered them.
type HookRegistry struct {
	mu       sync.RWMutex
	handlers map[HookKind][]HookFunc
}

// NewHookRegistry creates an empty registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{handlers: make(map[HookKind][]HookFunc)}
}

// Register appends fn to the handler list for kind. Handlers run in
// registration order.
func (r *HookRegistry) Register(kind HookKind, fn HookFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = append(r.handlers[kind], fn)
}

// Emit dispatches ev to every handler registered for ev.Kind.
func (r *HookRegistry) Emit(ev *HookEvent) {
	r.mu.RLock()
	handlers := r.handlers[ev.Kind]
	r.mu.RUnlock()

	for _, fn := range handlers {
		r.call(fn, ev)
	}
}

func (r *HookRegistry) call(fn HookFunc, ev *HookEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			// Error handlers that fail are swallowed to stop recursion.
			if ev.Kind != HookError {
				r.Emit(&HookEvent{
					Kind:       HookError,
					Text:       ev.Text,
					SourceLang: ev.SourceLang,
					TargetLang: ev.TargetLang,
					Err:        fmt.Errorf("hook panic: %v", rec),
				})
			}
		}
	}()
	fn(ev)
}
