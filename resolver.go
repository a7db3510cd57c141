package rustle

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rustledotdev/rustle/cache"
	"github.com/rustledotdev/rustle/offline"
)

const (
	// DefaultBatchWindow is how long a resolution waits for concurrent
	// requests to join the same outbound batch.
	DefaultBatchWindow = 100 * time.Millisecond

	// DefaultCacheMaxAge bounds how old a cached translation may be before it
	// reads as a miss.
	DefaultCacheMaxAge = 24 * time.Hour
)

// flightKey identifies one logical resolution. At most one live API call is
// in flight per key; concurrent callers share the same flight.
type flightKey struct {
	text       string
	sourceLang string
	targetLang string
}

// flight is the shared outcome of one in-flight resolution.
type flight struct {
	done   chan struct{}
	result string
	err    error
}

// Resolver walks the translation waterfall for each request: static locale
// data, then the cache, then the in-flight map, then the offline queue, then
// a batched live API call with retry and fallback.
type Resolver struct {
	client     BatchTranslator
	cache      *cache.Store
	offline    *offline.Manager
	hooks      *HookRegistry
	retry      RetryConfig
	window     time.Duration
	maxAge     time.Duration
	fallback   bool
	sourceLang string
	model      string

	mu       sync.Mutex
	static   map[string]map[string]string // target -> (fingerprint or text) -> translation
	inflight map[flightKey]*flight
	batchers map[string]*batcher // target -> pending batch window

	cancelMu sync.Mutex
	cancels  map[string]map[*batchRun]context.CancelFunc // cancellation key -> live batches
}

type batchRun struct{}

// ResolverOption is a functional option for configuring the Resolver.
type ResolverOption func(*Resolver)

// WithCache sets the persistent cache store.
func WithCache(store *cache.Store) ResolverOption {
	return func(r *Resolver) {
		r.cache = store
	}
}

// WithOfflineManager sets the connectivity manager. The resolver binds
// itself to it so queued translations are re-resolved on reconnect.
func WithOfflineManager(m *offline.Manager) ResolverOption {
	return func(r *Resolver) {
		r.offline = m
	}
}

// WithHooks sets the lifecycle hook registry.
func WithHooks(hooks *HookRegistry) ResolverOption {
	return func(r *Resolver) {
		r.hooks = hooks
	}
}

// WithSourceLang sets the source language (default: "en").
func WithSourceLang(lang string) ResolverOption {
	return func(r *Resolver) {
		r.sourceLang = lang
	}
}

// WithRetryConfig sets the retry policy for live API calls.
func WithRetryConfig(cfg RetryConfig) ResolverOption {
	return func(r *Resolver) {
		r.retry = cfg
	}
}

// WithBatchWindow sets the debounce window during which concurrent requests
// join one outbound batch.
func WithBatchWindow(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.window = d
	}
}

// WithCacheMaxAge sets how old a cached translation may be. Zero disables
// the age check.
func WithCacheMaxAge(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.maxAge = d
	}
}

// WithoutSourceFallback makes exhausted resolutions propagate a typed error
// instead of returning the original text.
func WithoutSourceFallback() ResolverOption {
	return func(r *Resolver) {
		r.fallback = false
	}
}

// WithModel sets a model override sent with every API call.
func WithModel(model string) ResolverOption {
	return func(r *Resolver) {
		r.model = model
	}
}

// WithStaticLocale loads static locale data (generated by the extractor) for
// one target language. Keys may be fingerprints or literal source text.
func WithStaticLocale(locale string, data map[string]string) ResolverOption {
	return func(r *Resolver) {
		r.static[locale] = data
	}
}

// NewResolver creates a Resolver over the given translation backend.
func NewResolver(client BatchTranslator, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client:     client,
		retry:      DefaultRetryConfig(),
		window:     DefaultBatchWindow,
		maxAge:     DefaultCacheMaxAge,
		fallback:   true,
		sourceLang: "en",
		static:     make(map[string]map[string]string),
		inflight:   make(map[flightKey]*flight),
		batchers:   make(map[string]*batcher),
		cancels:    make(map[string]map[*batchRun]context.CancelFunc),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.offline != nil {
		r.offline.BindResolver(r)
	}

	return r
}

// SetStaticLocale replaces the static data for one locale at runtime, e.g.
// after fetching a newer locale file.
func (r *Resolver) SetStaticLocale(locale string, data map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.static[locale] = data
}

// SourceLang returns the configured source language.
func (r *Resolver) SourceLang() string {
	return r.sourceLang
}

// Resolve translates text into targetLang through the resolution waterfall.
// It never blocks waiting for connectivity: offline misses return the source
// text immediately and queue the request for reconnect.
func (r *Resolver) Resolve(ctx context.Context, text, targetLang string) (string, error) {
	return r.resolve(ctx, text, targetLang, "")
}

// ResolveBatch resolves many texts toward one target locale. Texts sharing
// the batch window go out as one API call. A non-empty requestKey lets the
// caller abort the whole batch via CancelRequest; cancelled waiters receive
// a distinguishable cancelled error.
func (r *Resolver) ResolveBatch(ctx context.Context, texts []string, targetLang, requestKey string) (map[string]string, error) {
	results := make(map[string]string, len(texts))
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, text := range texts {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			value, err := r.resolve(ctx, text, targetLang, requestKey)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			results[text] = value
		}(text)
	}
	wg.Wait()

	return results, errors.Join(errs...)
}

func (r *Resolver) resolve(ctx context.Context, text, targetLang, requestKey string) (string, error) {
	if !ValidLocale(targetLang) {
		return "", &ValidationError{Field: "targetLang", Message: "malformed locale " + targetLang}
	}
	if SameLanguage(r.sourceLang, targetLang) {
		return text, nil
	}

	if value, ok := r.staticLookup(text, targetLang); ok {
		return value, nil
	}

	if r.cache != nil {
		if value, ok := r.cache.GetCachedTranslation(text, r.sourceLang, targetLang, r.maxAge); ok {
			r.emit(&HookEvent{Kind: HookCacheHit, Text: text, Translated: value, SourceLang: r.sourceLang, TargetLang: targetLang})
			return value, nil
		}
		r.emit(&HookEvent{Kind: HookCacheMiss, Text: text, SourceLang: r.sourceLang, TargetLang: targetLang})
	}

	key := flightKey{text: text, sourceLang: r.sourceLang, targetLang: targetLang}

	r.mu.Lock()
	if fl, ok := r.inflight[key]; ok {
		r.mu.Unlock()
		return r.await(ctx, fl)
	}

	if r.offline != nil && !r.offline.IsOnline() {
		r.mu.Unlock()
		r.offline.Enqueue(text, r.sourceLang, targetLang)
		return text, nil
	}

	fl := &flight{done: make(chan struct{})}
	r.inflight[key] = fl
	r.mu.Unlock()

	ev := &HookEvent{Kind: HookBeforeTranslate, Text: text, SourceLang: r.sourceLang, TargetLang: targetLang}
	r.emit(ev)

	r.batcherFor(targetLang).enqueue(batchItem{
		key:        key,
		fl:         fl,
		text:       ev.Text,
		requestKey: requestKey,
	})

	return r.await(ctx, fl)
}

// await blocks until the flight completes or the caller's context ends.
// Abandoning a flight does not cancel it; other waiters may still need it.
func (r *Resolver) await(ctx context.Context, fl *flight) (string, error) {
	select {
	case <-ctx.Done():
		return "", &CancelledError{Cause: ctx.Err()}
	case <-fl.done:
	}
	return fl.result, fl.err
}

func (r *Resolver) staticLookup(text, targetLang string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.static[targetLang]
	if !ok {
		return "", false
	}
	if value, ok := data[Fingerprint(text)]; ok {
		return value, true
	}
	value, ok := data[text]
	return value, ok
}

func (r *Resolver) emit(ev *HookEvent) {
	if r.hooks != nil {
		r.hooks.Emit(ev)
	}
}

// batching

type batchItem struct {
	key        flightKey
	fl         *flight
	text       string // possibly rewritten by a BeforeTranslate hook
	requestKey string
}

type batcher struct {
	r          *Resolver
	targetLang string

	mu       sync.Mutex
	items    []batchItem
	timerSet bool
}

func (r *Resolver) batcherFor(targetLang string) *batcher {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batchers[targetLang]
	if !ok {
		b = &batcher{r: r, targetLang: targetLang}
		r.batchers[targetLang] = b
	}
	return b
}

// enqueue holds item for the batch window so concurrent requests share one
// outbound call. A full batch fires immediately.
func (b *batcher) enqueue(item batchItem) {
	b.mu.Lock()
	b.items = append(b.items, item)
	full := len(b.items) >= MaxBatchSize
	shouldArm := !b.timerSet && !full
	if shouldArm {
		b.timerSet = true
	}
	b.mu.Unlock()

	if full {
		go b.fire()
		return
	}
	if shouldArm {
		time.AfterFunc(b.r.window, b.fire)
	}
}

// fire drains the pending items and executes them as one batch.
func (b *batcher) fire() {
	items := b.drain()
	if len(items) == 0 {
		return
	}
	b.r.executeBatch(items, b.targetLang)
}

func (b *batcher) drain() []batchItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.items
	b.items = nil
	b.timerSet = false
	return items
}

// executeBatch issues one live API call (with retry) for items and completes
// every constituent flight.
func (r *Resolver) executeBatch(items []batchItem, targetLang string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	run := &batchRun{}
	keys := []string{localeCancelKey(targetLang)}
	// Every distinct caller key gets a handle on the merged batch: any of
	// them may abort it.
	seenKeys := make(map[string]bool)
	for _, item := range items {
		if item.requestKey != "" && !seenKeys[item.requestKey] {
			seenKeys[item.requestKey] = true
			keys = append(keys, item.requestKey)
		}
	}
	r.registerCancel(keys, run, cancel)
	defer r.unregisterCancel(keys, run)

	entries := make([]BatchEntry, len(items))
	for i, item := range items {
		entries[i] = BatchEntry{ID: strconv.Itoa(i), Text: item.text}
	}

	results, err := WithRetry(ctx, r.retry, func() (map[string]string, error) {
		return r.client.TranslateBatch(ctx, BatchRequest{
			Entries:    entries,
			SourceLang: items[0].key.sourceLang,
			TargetLang: targetLang,
			Model:      r.model,
		})
	})

	for i, item := range items {
		if err != nil {
			r.completeWithError(item, err)
			continue
		}
		value, ok := results[strconv.Itoa(i)]
		if !ok {
			r.completeWithError(item, &APIError{Message: "response missing translation", Code: "missing_translation"})
			continue
		}
		r.completeWithValue(item, value)
	}
}

func (r *Resolver) completeWithValue(item batchItem, value string) {
	ev := &HookEvent{
		Kind:       HookAfterTranslate,
		Text:       item.key.text,
		Translated: value,
		SourceLang: item.key.sourceLang,
		TargetLang: item.key.targetLang,
	}
	r.emit(ev)
	value = ev.Translated

	if r.cache != nil {
		_ = r.cache.CacheTranslation(item.key.text, item.key.sourceLang, item.key.targetLang, value)
	}

	item.fl.result = value
	r.finish(item)
}

// completeWithError settles a flight after the live call failed: cancelled
// batches reject their waiters with the cancelled error; other failures fall
// back to static data or the source text when fallback is enabled.
func (r *Resolver) completeWithError(item batchItem, err error) {
	r.emit(&HookEvent{
		Kind:       HookError,
		Text:       item.key.text,
		SourceLang: item.key.sourceLang,
		TargetLang: item.key.targetLang,
		Err:        err,
	})

	switch {
	case IsCancelled(err):
		item.fl.err = err
	default:
		if value, ok := r.staticLookup(item.key.text, item.key.targetLang); ok {
			item.fl.result = value
		} else if r.fallback {
			item.fl.result = item.key.text
		} else {
			item.fl.err = &ResolutionError{Text: item.key.text, TargetLang: item.key.targetLang, Cause: err}
		}
	}
	r.finish(item)
}

// finish removes the flight from the in-flight map and releases its waiters.
// Runs on every outcome so the map never leaks entries.
func (r *Resolver) finish(item batchItem) {
	r.mu.Lock()
	delete(r.inflight, item.key)
	r.mu.Unlock()
	close(item.fl.done)
}

// cancellation

func localeCancelKey(targetLang string) string {
	return "locale\x00" + targetLang
}

func (r *Resolver) registerCancel(keys []string, run *batchRun, cancel context.CancelFunc) {
	r.cancelMu.Lock()
	defer r.cancelMu.Unlock()
	for _, key := range keys {
		m, ok := r.cancels[key]
		if !ok {
			m = make(map[*batchRun]context.CancelFunc)
			r.cancels[key] = m
		}
		m[run] = cancel
	}
}

func (r *Resolver) unregisterCancel(keys []string, run *batchRun) {
	r.cancelMu.Lock()
	defer r.cancelMu.Unlock()
	for _, key := range keys {
		if m, ok := r.cancels[key]; ok {
			delete(m, run)
			if len(m) == 0 {
				delete(r.cancels, key)
			}
		}
	}
}

// CancelRequest aborts every live batch registered under requestKey. Waiters
// receive a cancelled error and may fall back to source text themselves.
func (r *Resolver) CancelRequest(requestKey string) {
	r.cancelByKey(requestKey)
}

func (r *Resolver) cancelByKey(key string) {
	r.cancelMu.Lock()
	cancels := make([]context.CancelFunc, 0, len(r.cancels[key]))
	for _, cancel := range r.cancels[key] {
		cancels = append(cancels, cancel)
	}
	r.cancelMu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// ChangeLocale announces a locale switch: it fires the locale-change hook and
// bulk-cancels live and queued batch work for every other target locale,
// since a fast locale switch makes that work stale.
func (r *Resolver) ChangeLocale(newLocale string) {
	r.emit(&HookEvent{Kind: HookLocaleChange, TargetLang: newLocale})

	r.mu.Lock()
	var stale []*batcher
	for target, b := range r.batchers {
		if target != newLocale {
			stale = append(stale, b)
		}
	}
	r.mu.Unlock()

	// Reject queued items that have not fired yet.
	for _, b := range stale {
		for _, item := range b.drain() {
			item.fl.err = &CancelledError{RequestKey: localeCancelKey(b.targetLang)}
			r.finish(item)
		}
	}

	// Abort batches already on the wire.
	r.cancelMu.Lock()
	var cancels []context.CancelFunc
	for key, m := range r.cancels {
		if strings.HasPrefix(key, "locale\x00") && key != localeCancelKey(newLocale) {
			for _, cancel := range m {
				cancels = append(cancels, cancel)
			}
		}
	}
	r.cancelMu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// Verify Resolver satisfies the offline manager's view of a resolver.
var _ offline.Resolver = (*Resolver)(nil)
