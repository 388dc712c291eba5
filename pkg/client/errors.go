package client

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"
)

// Common errors returned by the client.
var (
	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrUnknownClass is returned for object class names without a REST resource.
	ErrUnknownClass = errors.New("unknown object class")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors without a Retry-After hint.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassRateLimit represents 4xx client errors carrying a Retry-After header.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures and undecodable responses.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError represents a failed API call with additional context.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	// Header holds the response headers; nil for network errors.
	Header http.Header
	Err    error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("API %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("API %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// maxRetryAfter is the largest accepted Retry-After in seconds. The scaled
// pause stays well inside time.Duration even after float rounding.
const maxRetryAfter = float64(math.MaxInt64/(2*RateLimitFactor)) / float64(time.Second)

// RetryAfter parses the Retry-After header as a number of seconds.
// Fractional values such as "2.0" are accepted. NaN, infinities and values
// too large for a pause are rejected.
func (e *APIError) RetryAfter() (time.Duration, error) {
	values, ok := e.Header[http.CanonicalHeaderKey("Retry-After")]
	if !ok || len(values) == 0 {
		return 0, errors.New("no Retry-After header")
	}
	seconds, err := strconv.ParseFloat(values[0], 64)
	if err != nil {
		return 0, fmt.Errorf("parse Retry-After %q: %w", values[0], err)
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, fmt.Errorf("non-finite Retry-After %q", values[0])
	}
	if seconds < 0 {
		return 0, fmt.Errorf("negative Retry-After %q", values[0])
	}
	if seconds > maxRetryAfter {
		return 0, fmt.Errorf("Retry-After %q out of range", values[0])
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// classifyStatus categorizes an HTTP error response.
func classifyStatus(statusCode int, header http.Header) ErrorClass {
	switch {
	case statusCode >= 400 && statusCode < 500:
		if _, ok := header[http.CanonicalHeaderKey("Retry-After")]; ok {
			return ErrorClassRateLimit
		}
		return ErrorClassClient
	case statusCode >= 500 && statusCode < 600:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch transitions[errorClass] {
	case StateRateLimitBackoff, StateServerErrorBackoff:
		return true
	default:
		return false
	}
}
