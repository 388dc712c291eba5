package client

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		errorClass ErrorClass
		expected   bool
	}{
		{
			name:       "client error should not retry",
			errorClass: ErrorClassClient,
			expected:   false,
		},
		{
			name:       "server error should retry",
			errorClass: ErrorClassServer,
			expected:   true,
		},
		{
			name:       "rate limit should retry",
			errorClass: ErrorClassRateLimit,
			expected:   true,
		},
		{
			name:       "network error should not retry",
			errorClass: ErrorClassNetwork,
			expected:   false,
		},
		{
			name:       "empty error class should not retry",
			errorClass: "",
			expected:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := shouldRetry(tt.errorClass)
			if result != tt.expected {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.errorClass, result, tt.expected)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	retryAfter := http.Header{}
	retryAfter.Set("Retry-After", "2.0")

	tests := []struct {
		name     string
		status   int
		header   http.Header
		expected ErrorClass
	}{
		{name: "429 with Retry-After", status: 429, header: retryAfter, expected: ErrorClassRateLimit},
		{name: "429 without Retry-After", status: 429, header: http.Header{}, expected: ErrorClassClient},
		{name: "403 with Retry-After", status: 403, header: retryAfter, expected: ErrorClassRateLimit},
		{name: "404", status: 404, header: http.Header{}, expected: ErrorClassClient},
		{name: "401", status: 401, header: http.Header{}, expected: ErrorClassClient},
		{name: "500 ignores Retry-After", status: 500, header: retryAfter, expected: ErrorClassServer},
		{name: "503", status: 503, header: http.Header{}, expected: ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyStatus(tt.status, tt.header); got != tt.expected {
				t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.expected)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		apiError *APIError
		expected string
	}{
		{
			name: "error with wrapped error",
			apiError: &APIError{
				ErrorClass: ErrorClassNetwork,
				Message:    "GET products.json",
				Err:        errors.New("connection refused"),
			},
			expected: "API network error (status 0): GET products.json: connection refused",
		},
		{
			name: "error without wrapped error",
			apiError: &APIError{
				StatusCode: 404,
				ErrorClass: ErrorClassClient,
				Message:    "404 Not Found",
			},
			expected: "API client error (status 404): 404 Not Found",
		},
		{
			name: "rate limit error",
			apiError: &APIError{
				StatusCode: 429,
				ErrorClass: ErrorClassRateLimit,
				Message:    "429 Too Many Requests",
			},
			expected: "API rate_limit error (status 429): 429 Too Many Requests",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.apiError.Error()
			if result != tt.expected {
				t.Errorf("Error() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	wrappedErr := errors.New("wrapped error")
	apiError := &APIError{
		ErrorClass: ErrorClassNetwork,
		Message:    "network",
		Err:        wrappedErr,
	}

	if apiError.Unwrap() != wrappedErr {
		t.Errorf("Unwrap() = %v, want %v", apiError.Unwrap(), wrappedErr)
	}
	if !errors.Is(apiError, wrappedErr) {
		t.Error("errors.Is should work with wrapped error")
	}
}

func TestAPIError_RetryAfter(t *testing.T) {
	tests := []struct {
		name        string
		value       string
		present     bool
		expected    time.Duration
		shouldError bool
	}{
		{name: "integer seconds", value: "3", present: true, expected: 3 * time.Second},
		{name: "fractional seconds", value: "2.0", present: true, expected: 2 * time.Second},
		{name: "half second", value: "0.5", present: true, expected: 500 * time.Millisecond},
		{name: "unparsable", value: "soon", present: true, shouldError: true},
		{name: "negative", value: "-1", present: true, shouldError: true},
		{name: "not a number", value: "NaN", present: true, shouldError: true},
		{name: "infinite", value: "+Inf", present: true, shouldError: true},
		{name: "too large", value: "1e300", present: true, shouldError: true},
		{name: "one hour", value: "3600", present: true, expected: time.Hour},
		{name: "absent", present: false, shouldError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.present {
				header.Set("Retry-After", tt.value)
			}
			apiErr := &APIError{StatusCode: 429, ErrorClass: ErrorClassRateLimit, Header: header}

			got, err := apiErr.RetryAfter()
			if tt.shouldError {
				if err == nil {
					t.Errorf("RetryAfter() expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("RetryAfter() error = %v", err)
			}
			if got != tt.expected {
				t.Errorf("RetryAfter() = %v, want %v", got, tt.expected)
			}
		})
	}
}
