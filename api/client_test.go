package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rustledotdev/rustle"
)

const testKey = "rk_0123456789abcdef0123456789abcdef"

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{APIKey: testKey, BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client, srv
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing key", cfg: Config{}},
		{name: "short key", cfg: Config{APIKey: "short"}},
		{name: "key with whitespace", cfg: Config{APIKey: "rk_0123456789abc def0123456789abcdef"}},
		{name: "bad scheme", cfg: Config{APIKey: testKey, BaseURL: "ftp://api.rustle.dev"}},
		{name: "unparseable url", cfg: Config{APIKey: testKey, BaseURL: "http://[::1"}},
		{name: "missing host", cfg: Config{APIKey: testKey, BaseURL: "https://"}},
		{name: "private host in strict mode", cfg: Config{APIKey: testKey, BaseURL: "http://192.168.1.10", StrictHosts: true}},
		{name: "localhost in strict mode", cfg: Config{APIKey: testKey, BaseURL: "http://localhost:8080", StrictHosts: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg)
			var vErr *rustle.ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestNewClient_PrivateHostAllowedByDefault(t *testing.T) {
	if _, err := NewClient(Config{APIKey: testKey, BaseURL: "http://127.0.0.1:9999"}); err != nil {
		t.Errorf("loopback hosts should pass outside strict mode: %v", err)
	}
}

func TestTranslateBatch_Success(t *testing.T) {
	var gotAuth, gotRequestID string
	var gotBody batchRequestBody

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		if r.URL.Path != "/translate/batch" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(batchResponseBody{
			Success:      true,
			Translations: map[string]string{"a": `"Hola"`, "b": "Translation: Mundo"},
		})
	}))

	translations, err := client.TranslateBatch(context.Background(), rustle.BatchRequest{
		Entries: []rustle.BatchEntry{
			{ID: "a", Text: "Hello", Tags: []string{"h1"}},
			{ID: "b", Text: "World"},
		},
		SourceLang: "en",
		TargetLang: "es",
	})
	if err != nil {
		t.Fatalf("TranslateBatch failed: %v", err)
	}

	// Values pass through the cleaner.
	if translations["a"] != "Hola" || translations["b"] != "Mundo" {
		t.Errorf("translations = %v", translations)
	}
	if gotAuth != "Bearer "+testKey {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotRequestID == "" {
		t.Error("X-Request-ID header missing")
	}
	if gotBody.SourceLanguage != "en" || gotBody.TargetLanguage != "es" {
		t.Errorf("body languages = %s/%s", gotBody.SourceLanguage, gotBody.TargetLanguage)
	}
	if gotBody.Entries[0].Context == nil || gotBody.Entries[0].Context.Tags[0] != "h1" {
		t.Error("entry context tags should be forwarded")
	}
}

func TestTranslateBatch_Validation(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("validation failures must not reach the network")
	}))

	oversized := make([]rustle.BatchEntry, rustle.MaxBatchSize+1)
	for i := range oversized {
		oversized[i] = rustle.BatchEntry{ID: "x", Text: "y"}
	}
	longText := strings.Repeat("a", rustle.MaxTextLength+1)

	tests := []struct {
		name string
		req  rustle.BatchRequest
	}{
		{name: "empty batch", req: rustle.BatchRequest{SourceLang: "en", TargetLang: "es"}},
		{name: "oversized batch", req: rustle.BatchRequest{Entries: oversized, SourceLang: "en", TargetLang: "es"}},
		{name: "oversized text", req: rustle.BatchRequest{Entries: []rustle.BatchEntry{{ID: "a", Text: longText}}, SourceLang: "en", TargetLang: "es"}},
		{name: "bad source locale", req: rustle.BatchRequest{Entries: []rustle.BatchEntry{{ID: "a", Text: "x"}}, SourceLang: "english", TargetLang: "es"}},
		{name: "bad target locale", req: rustle.BatchRequest{Entries: []rustle.BatchEntry{{ID: "a", Text: "x"}}, SourceLang: "en", TargetLang: "ES!"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.TranslateBatch(context.Background(), tt.req)
			var vErr *rustle.ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestTranslateBatch_QuotaDistinguished(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(errorResponseBody{
			Error: "monthly quota exhausted",
			Code:  "quota_exceeded",
			Quota: &rustle.QuotaDetail{Limit: 10000, Used: 10000, ResetDate: "2025-07-01"},
		})
	}))

	_, err := client.TranslateBatch(context.Background(), rustle.BatchRequest{
		Entries:    []rustle.BatchEntry{{ID: "a", Text: "Hello"}},
		SourceLang: "en",
		TargetLang: "es",
	})

	var apiErr *rustle.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !apiErr.QuotaExceeded {
		t.Error("429 should be tagged QuotaExceeded")
	}
	if apiErr.Quota == nil || apiErr.Quota.Limit != 10000 {
		t.Errorf("Quota detail = %+v", apiErr.Quota)
	}
	if rustle.IsRetryable(err) {
		t.Error("quota errors must not be retryable")
	}
}

func TestTranslateBatch_ServerErrorRetryable(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.TranslateBatch(context.Background(), rustle.BatchRequest{
		Entries:    []rustle.BatchEntry{{ID: "a", Text: "Hello"}},
		SourceLang: "en",
		TargetLang: "es",
	})

	var apiErr *rustle.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
	if !rustle.IsRetryable(err) {
		t.Error("5xx should be retryable")
	}
}

func TestTranslateBatch_ClientErrorNotRetryable(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errorResponseBody{Error: "bad entry", Code: "invalid_entry"})
	}))

	_, err := client.TranslateBatch(context.Background(), rustle.BatchRequest{
		Entries:    []rustle.BatchEntry{{ID: "a", Text: "Hello"}},
		SourceLang: "en",
		TargetLang: "es",
	})
	if rustle.IsRetryable(err) {
		t.Error("4xx should not be retryable")
	}
}

func TestTranslateBatch_LocalRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(batchResponseBody{Success: true, Translations: map[string]string{"a": "Hola"}})
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		APIKey:    testKey,
		BaseURL:   srv.URL,
		RateLimit: rustle.RateLimitConfig{Requests: 1, Window: time.Minute},
	})
	if err != nil {
		t.Fatal(err)
	}

	req := rustle.BatchRequest{
		Entries:    []rustle.BatchEntry{{ID: "a", Text: "Hello"}},
		SourceLang: "en",
		TargetLang: "es",
	}

	if _, err := client.TranslateBatch(context.Background(), req); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}
	_, err = client.TranslateBatch(context.Background(), req)
	if !rustle.IsQuotaExceeded(err) {
		t.Errorf("second call should hit the local limiter, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("server calls = %d, want 1 (limiter rejects before the network)", calls)
	}
}

func TestTranslateBatch_RequestKeyCancelsPrior(t *testing.T) {
	release := make(chan struct{})
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		json.NewEncoder(w).Encode(batchResponseBody{Success: true, Translations: map[string]string{"a": "Hola"}})
	}))

	req := rustle.BatchRequest{
		Entries:    []rustle.BatchEntry{{ID: "a", Text: "Hello"}},
		SourceLang: "en",
		TargetLang: "es",
		RequestKey: "nav",
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := client.TranslateBatch(context.Background(), req)
		errCh <- err
	}()

	// Let the first request reach the server, then supersede it.
	time.Sleep(50 * time.Millisecond)
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()
	if _, err := client.TranslateBatch(context.Background(), req); err != nil {
		t.Fatalf("superseding request failed: %v", err)
	}

	select {
	case err := <-errCh:
		if !rustle.IsCancelled(err) {
			t.Errorf("superseded request should report cancellation, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first request never finished")
	}
}

func TestTranslateSingle(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body batchRequestBody
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(batchResponseBody{
			Success:      true,
			Translations: map[string]string{body.Entries[0].ID: "Hola"},
		})
	}))

	got, err := client.TranslateSingle(context.Background(), "Hello", "en", "es", nil)
	if err != nil {
		t.Fatalf("TranslateSingle failed: %v", err)
	}
	if got != "Hola" {
		t.Errorf("got %q", got)
	}
}

func TestTranslateSingle_MissingTranslation(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(batchResponseBody{Success: true, Translations: map[string]string{}})
	}))

	_, err := client.TranslateSingle(context.Background(), "Hello", "en", "es", nil)
	var apiErr *rustle.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "missing_translation" {
		t.Errorf("expected missing_translation APIError, got %v", err)
	}
}

func TestTranslateBatch_SanitizesOutgoingText(t *testing.T) {
	var sent string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body batchRequestBody
		json.NewDecoder(r.Body).Decode(&body)
		sent = body.Entries[0].Text
		json.NewEncoder(w).Encode(batchResponseBody{Success: true, Translations: map[string]string{"a": "x"}})
	}))

	_, err := client.TranslateBatch(context.Background(), rustle.BatchRequest{
		Entries:    []rustle.BatchEntry{{ID: "a", Text: `Hello<script>alert(1)</script>`}},
		SourceLang: "en",
		TargetLang: "es",
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(sent, "<script") {
		t.Errorf("outgoing text should be sanitized, sent %q", sent)
	}
}

func TestHealth(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(HealthStatus{Status: "ok", Version: "2.1.0"})
	}))

	status, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if status.Status != "ok" {
		t.Errorf("Status = %q", status.Status)
	}
}

func TestModels(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string][]string{"models": {"fast", "quality"}})
	}))

	models, err := client.Models(context.Background())
	if err != nil {
		t.Fatalf("Models failed: %v", err)
	}
	if len(models) != 2 || models[0] != "fast" {
		t.Errorf("models = %v", models)
	}
}
