package rustle

import (
	"errors"
	"fmt"
)

// ValidationError indicates malformed input (API key, URL, locale, oversized
// batch). Validation failures happen before any network call and are never
// retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// QuotaDetail carries the structured quota payload an error response may
// include.
type QuotaDetail struct {
	Limit     int    `json:"limit"`
	Used      int    `json:"used"`
	ResetDate string `json:"resetDate"`
}

// APIError is the single error type for translation API failures: transport
// errors, timeouts, non-2xx responses, and quota exhaustion. Callers decide
// retry policy from the Retryable and QuotaExceeded flags; the client itself
// never retries.
type APIError struct {
	Message       string
	StatusCode    int
	Code          string
	QuotaExceeded bool
	Quota         *QuotaDetail
	Retryable     bool
	Cause         error
}

func (e *APIError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.QuotaExceeded {
		msg = "quota exceeded: " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("api error: %s: %v", msg, e.Cause)
	}
	return "api error: " + msg
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// CancelledError marks a deliberate cancellation, distinguished from failure
// so callers can fall back to source text instead of surfacing an error.
type CancelledError struct {
	RequestKey string
	Cause      error
}

func (e *CancelledError) Error() string {
	if e.RequestKey != "" {
		return fmt.Sprintf("translation cancelled (request %s)", e.RequestKey)
	}
	return "translation cancelled"
}

func (e *CancelledError) Unwrap() error {
	return e.Cause
}

// ResolutionError is returned when the resolution waterfall is exhausted and
// source-text fallback is disabled.
type ResolutionError struct {
	Text       string
	TargetLang string
	Cause      error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving %q to %s: %v", e.Text, e.TargetLang, e.Cause)
}

func (e *ResolutionError) Unwrap() error {
	return e.Cause
}

// IsQuotaExceeded reports whether err is an APIError tagged as a quota or
// rate-limit condition.
func IsQuotaExceeded(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.QuotaExceeded
}

// IsCancelled reports whether err marks a deliberate cancellation.
func IsCancelled(err error) bool {
	var cancelled *CancelledError
	return errors.As(err, &cancelled)
}

// IsRetryable reports whether the resolution engine should retry after err.
// Quota errors and cancellations are excluded: retrying into a quota wall is
// pointless and cancellation is intentional.
func IsRetryable(err error) bool {
	if err == nil || IsCancelled(err) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable && !apiErr.QuotaExceeded
	}
	return false
}
