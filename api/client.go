// Package api implements the HTTP client for the remote rustle translation
// service.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/rustledotdev/rustle"
)

const (
	// DefaultBaseURL is the production translation service endpoint.
	DefaultBaseURL = "https://api.rustle.dev"

	// DefaultTimeout is the hard per-request timeout, enforced independently
	// of retry/backoff which operate above the client.
	DefaultTimeout = 30 * time.Second

	minKeyLength = 16
	maxKeyLength = 256
)

// Config holds construction parameters for the Client.
type Config struct {
	APIKey    string
	BaseURL   string        // Defaults to DefaultBaseURL
	Timeout   time.Duration // Defaults to DefaultTimeout
	Model     string        // Default model sent with requests
	RateLimit rustle.RateLimitConfig
	// StrictHosts rejects private-IP and loopback hosts at construction, for
	// hardened deployments where the base URL comes from untrusted config.
	StrictHosts bool
}

// Client talks to the rustle translation service. It validates and sanitizes
// requests, rate-limits locally, and classifies failures into typed errors;
// it never retries on its own.
type Client struct {
	http    *resty.Client
	apiKey  string
	baseURL string
	model   string
	limiter *rustle.RateLimiter

	mu       sync.Mutex
	inflight map[string]*inflightRequest // request key -> abort handle
}

type inflightRequest struct {
	cancel context.CancelFunc
}

// NewClient validates cfg and builds a Client. Construction failure is a
// ValidationError and is fatal, not retried.
func NewClient(cfg Config) (*Client, error) {
	if err := validateAPIKey(cfg.APIKey); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if err := validateBaseURL(baseURL, cfg.StrictHosts); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	limit := cfg.RateLimit
	if limit.Requests == 0 {
		limit = rustle.DefaultRateLimitConfig()
	}

	httpClient := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", rustle.UserAgent())

	return &Client{
		http:     httpClient,
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		model:    cfg.Model,
		limiter:  rustle.NewRateLimiter(limit),
		inflight: make(map[string]*inflightRequest),
	}, nil
}

func validateAPIKey(key string) error {
	if key == "" {
		return &rustle.ValidationError{Field: "apiKey", Message: "missing"}
	}
	if len(key) < minKeyLength {
		return &rustle.ValidationError{Field: "apiKey", Message: fmt.Sprintf("shorter than %d characters", minKeyLength)}
	}
	if len(key) > maxKeyLength {
		return &rustle.ValidationError{Field: "apiKey", Message: fmt.Sprintf("longer than %d characters", maxKeyLength)}
	}
	if strings.ContainsAny(key, " \t\r\n") {
		return &rustle.ValidationError{Field: "apiKey", Message: "contains whitespace"}
	}
	return nil
}

func validateBaseURL(raw string, strictHosts bool) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &rustle.ValidationError{Field: "baseURL", Message: "unparseable"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &rustle.ValidationError{Field: "baseURL", Message: "scheme must be http or https"}
	}
	host := u.Hostname()
	if host == "" {
		return &rustle.ValidationError{Field: "baseURL", Message: "missing host"}
	}
	if strictHosts {
		if host == "localhost" {
			return &rustle.ValidationError{Field: "baseURL", Message: "localhost not allowed"}
		}
		if ip := net.ParseIP(host); ip != nil && (ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()) {
			return &rustle.ValidationError{Field: "baseURL", Message: "private address not allowed"}
		}
	}
	return nil
}

// wire types for the /translate/batch endpoint

type batchEntryBody struct {
	ID      string            `json:"id"`
	Text    string            `json:"text"`
	Context *entryContextBody `json:"context,omitempty"`
}

type entryContextBody struct {
	Tags []string `json:"tags,omitempty"`
	File string   `json:"file,omitempty"`
}

type batchRequestBody struct {
	Entries        []batchEntryBody `json:"entries"`
	SourceLanguage string           `json:"sourceLanguage"`
	TargetLanguage string           `json:"targetLanguage"`
	Model          string           `json:"model,omitempty"`
}

type batchResponseBody struct {
	Success      bool              `json:"success"`
	Translations map[string]string `json:"translations"`
	Error        string            `json:"error,omitempty"`
}

type errorResponseBody struct {
	Error string              `json:"error"`
	Code  string              `json:"code"`
	Quota *rustle.QuotaDetail `json:"quota,omitempty"`
}

// TranslateBatch translates a batch of entries in one call. Every returned
// value has passed through the translation cleaner. Quota conditions (HTTP
// 429 or a quota error code) are tagged on the returned APIError.
func (c *Client) TranslateBatch(ctx context.Context, req rustle.BatchRequest) (map[string]string, error) {
	if len(req.Entries) == 0 {
		return nil, &rustle.ValidationError{Field: "entries", Message: "empty batch"}
	}
	if len(req.Entries) > rustle.MaxBatchSize {
		return nil, &rustle.ValidationError{Field: "entries", Message: fmt.Sprintf("batch exceeds %d entries", rustle.MaxBatchSize)}
	}
	for _, entry := range req.Entries {
		if utf8.RuneCountInString(entry.Text) > rustle.MaxTextLength {
			return nil, &rustle.ValidationError{
				Field:   "entries",
				Message: fmt.Sprintf("entry %s text exceeds %d characters", entry.ID, rustle.MaxTextLength),
			}
		}
	}
	if !rustle.ValidLocale(req.SourceLang) {
		return nil, &rustle.ValidationError{Field: "sourceLang", Message: "malformed locale " + req.SourceLang}
	}
	if !rustle.ValidLocale(req.TargetLang) {
		return nil, &rustle.ValidationError{Field: "targetLang", Message: "malformed locale " + req.TargetLang}
	}

	if !c.limiter.Allow(c.apiKey) {
		return nil, &rustle.APIError{
			Message:       "local rate limit exceeded",
			Code:          "rate_limited",
			QuotaExceeded: true,
		}
	}

	if req.RequestKey != "" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		handle := c.registerRequest(req.RequestKey, cancel)
		defer c.releaseRequest(req.RequestKey, handle)
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	body := batchRequestBody{
		Entries:        make([]batchEntryBody, len(req.Entries)),
		SourceLanguage: req.SourceLang,
		TargetLanguage: req.TargetLang,
		Model:          model,
	}
	for i, entry := range req.Entries {
		e := batchEntryBody{ID: entry.ID, Text: rustle.SanitizeHTML(entry.Text)}
		if len(entry.Tags) > 0 || entry.File != "" {
			e.Context = &entryContextBody{Tags: entry.Tags, File: entry.File}
		}
		body.Entries[i] = e
	}

	var result batchResponseBody
	var apiErr errorResponseBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetHeader("X-Request-ID", uuid.New().String()).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&result).
		SetError(&apiErr).
		Post(c.baseURL + "/translate/batch")
	if err != nil {
		return nil, classifyTransportError(err, req.RequestKey)
	}

	if resp.IsError() {
		return nil, classifyHTTPError(resp.StatusCode(), apiErr)
	}

	if !result.Success {
		return nil, &rustle.APIError{
			Message:    "service reported failure: " + result.Error,
			StatusCode: resp.StatusCode(),
			Code:       "service_failure",
		}
	}

	return rustle.CleanBatch(result.Translations), nil
}

// TranslateSingle translates one text via a one-entry batch.
func (c *Client) TranslateSingle(ctx context.Context, text, sourceLang, targetLang string, tags []string) (string, error) {
	const id = "single"
	translations, err := c.TranslateBatch(ctx, rustle.BatchRequest{
		Entries:    []rustle.BatchEntry{{ID: id, Text: text, Tags: tags}},
		SourceLang: sourceLang,
		TargetLang: targetLang,
	})
	if err != nil {
		return "", err
	}
	value, ok := translations[id]
	if !ok {
		return "", &rustle.APIError{Message: "response missing requested translation", Code: "missing_translation"}
	}
	return value, nil
}

// CancelRequest aborts the in-flight request registered under key, if any.
func (c *Client) CancelRequest(key string) {
	c.mu.Lock()
	handle := c.inflight[key]
	delete(c.inflight, key)
	c.mu.Unlock()
	if handle != nil {
		handle.cancel()
	}
}

// registerRequest stores the abort handle for key, aborting any prior request
// still running under the same key.
func (c *Client) registerRequest(key string, cancel context.CancelFunc) *inflightRequest {
	handle := &inflightRequest{cancel: cancel}
	c.mu.Lock()
	prior := c.inflight[key]
	c.inflight[key] = handle
	c.mu.Unlock()
	if prior != nil {
		prior.cancel()
	}
	return handle
}

func (c *Client) releaseRequest(key string, handle *inflightRequest) {
	c.mu.Lock()
	// Only clear the slot if it still belongs to this request.
	if c.inflight[key] == handle {
		delete(c.inflight, key)
	}
	c.mu.Unlock()
	handle.cancel()
}

func classifyTransportError(err error, requestKey string) error {
	if errors.Is(err, context.Canceled) {
		return &rustle.CancelledError{RequestKey: requestKey, Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &rustle.APIError{Message: "request timed out", Code: "timeout", Retryable: true, Cause: err}
	}
	return &rustle.APIError{Message: "network failure", Code: "network", Retryable: true, Cause: err}
}

func classifyHTTPError(status int, body errorResponseBody) error {
	msg := body.Error
	if msg == "" {
		msg = "request failed"
	}
	if status == 429 || body.Code == "quota_exceeded" {
		return &rustle.APIError{
			Message:       msg,
			StatusCode:    status,
			Code:          body.Code,
			QuotaExceeded: true,
			Quota:         body.Quota,
		}
	}
	return &rustle.APIError{
		Message:    msg,
		StatusCode: status,
		Code:       body.Code,
		Retryable:  status >= 500,
	}
}

// HealthStatus is the /health response.
type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// Health checks the service health endpoint. Auxiliary; failures are
// informational only.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&status).
		Get(c.baseURL + "/health")
	if err != nil {
		return nil, classifyTransportError(err, "")
	}
	if resp.IsError() {
		return nil, &rustle.APIError{Message: "health check failed", StatusCode: resp.StatusCode()}
	}
	return &status, nil
}

// Models lists the translation models the service offers.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	var result struct {
		Models []string `json:"models"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetResult(&result).
		Get(c.baseURL + "/models")
	if err != nil {
		return nil, classifyTransportError(err, "")
	}
	if resp.IsError() {
		return nil, &rustle.APIError{Message: "listing models failed", StatusCode: resp.StatusCode()}
	}
	return result.Models, nil
}

// Verify Client implements BatchTranslator
var _ rustle.BatchTranslator = (*Client)(nil)
