package rustle

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Message: "translate batch failed", StatusCode: 500}
	if got := err.Error(); got != "api error: translate batch failed (status 500)" {
		t.Errorf("Error() = %q", got)
	}

	quota := &APIError{Message: "monthly limit reached", StatusCode: 429, QuotaExceeded: true}
	if got := quota.Error(); got != "api error: quota exceeded: monthly limit reached (status 429)" {
		t.Errorf("Error() = %q", got)
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &APIError{Message: "network failure", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause through Unwrap")
	}
}

func TestIsQuotaExceeded(t *testing.T) {
	if !IsQuotaExceeded(&APIError{Message: "x", QuotaExceeded: true}) {
		t.Error("quota-tagged APIError should report quota exceeded")
	}
	if IsQuotaExceeded(&APIError{Message: "x"}) {
		t.Error("plain APIError should not report quota exceeded")
	}
	if IsQuotaExceeded(errors.New("other")) {
		t.Error("unrelated error should not report quota exceeded")
	}
	// Wrapped errors still classify.
	wrapped := fmt.Errorf("batch: %w", &APIError{Message: "x", QuotaExceeded: true})
	if !IsQuotaExceeded(wrapped) {
		t.Error("wrapped quota error should still classify")
	}
}

func TestIsCancelled(t *testing.T) {
	if !IsCancelled(&CancelledError{RequestKey: "nav-1"}) {
		t.Error("CancelledError should classify as cancelled")
	}
	if IsCancelled(&APIError{Message: "x"}) {
		t.Error("APIError should not classify as cancelled")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "retryable api error", err: &APIError{Message: "timeout", Retryable: true}, want: true},
		{name: "non-retryable api error", err: &APIError{Message: "bad request"}, want: false},
		{name: "quota never retryable", err: &APIError{Message: "quota", Retryable: true, QuotaExceeded: true}, want: false},
		{name: "cancellation not retryable", err: &CancelledError{}, want: false},
		{name: "validation not retryable", err: &ValidationError{Field: "apiKey", Message: "too short"}, want: false},
		{name: "generic error not retryable", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
