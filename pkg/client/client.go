// Package client provides the store Admin REST API session used by the
// exporter: authentication, error classification, resource resolution,
// paginated listings and the resilient call executor.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/metafield-export/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for API client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metafield_export_requests_total",
		Help: "Total API requests by operation and status",
	}, []string{"operation", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "metafield_export_request_duration_seconds",
		Help:    "API request duration in seconds by operation",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"operation"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metafield_export_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})
)

const (
	// DefaultAPIVersion is the Admin API version requested by default.
	DefaultAPIVersion = "2020-07"

	// MaxPageSize is the largest page the REST API returns.
	MaxPageSize = 250

	// DefaultUserAgent identifies the exporter to the store.
	DefaultUserAgent = "metafield-export/1.0"
)

// Session is an authenticated connection to one store.
type Session struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.Tracker
	baseURL     string
	config      Config
	logger      zerolog.Logger
}

// Config holds the session configuration.
type Config struct {
	// Store is the shop hostname, e.g. "example.myshopify.com".
	Store string

	// Private app credentials, sent as HTTP basic auth.
	APIKey   string
	Password string

	// APIVersion selects /admin/api/{version}.
	APIVersion string

	// PageSize is the listing page size (1..MaxPageSize).
	PageSize int

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	UserAgent string

	// BaseURL overrides https://{Store}/admin/api/{APIVersion}.
	BaseURL string

	// RateLimiter records the call-limit bucket; nil keeps it in memory.
	RateLimiter *ratelimit.Tracker
}

// DefaultConfig returns a default configuration for the given credentials.
func DefaultConfig(store, apiKey, password string) Config {
	return Config{
		Store:      store,
		APIKey:     apiKey,
		Password:   password,
		APIVersion: DefaultAPIVersion,
		PageSize:   MaxPageSize,
		Timeout:    30 * time.Second,
		UserAgent:  DefaultUserAgent,
	}
}

// BuildSession creates a session with the default configuration.
func BuildSession(store, apiKey, password string) (*Session, error) {
	return New(DefaultConfig(store, apiKey, password))
}

// New creates a new session.
func New(cfg Config) (*Session, error) {
	if cfg.Store == "" {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Password == "" {
		return nil, fmt.Errorf("password is required")
	}
	if cfg.PageSize < 1 || cfg.PageSize > MaxPageSize {
		return nil, fmt.Errorf("page size must be between 1 and %d (got %d)", MaxPageSize, cfg.PageSize)
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "shop-client").Logger()

	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimiter = ratelimit.NewTracker(nil, logger)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s/admin/api/%s", cfg.Store, cfg.APIVersion)
	}

	logger.Info().Str("store", cfg.Store).Msg("auth: finished for store")

	return &Session{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: rateLimiter,
		baseURL:     strings.TrimRight(baseURL, "/"),
		config:      cfg,
		logger:      logger,
	}, nil
}

// Store returns the shop hostname of the session.
func (s *Session) Store() string {
	return s.config.Store
}

// Do performs an authenticated request. Responses with status >= 400 are
// consumed and returned as *APIError; transport failures are returned as
// *APIError of class network.
func (s *Session) Do(req *http.Request, operation string) (*http.Response, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(operation).Observe(time.Since(startTime).Seconds())
	}()

	req.SetBasicAuth(s.config.APIKey, s.config.Password)
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	s.logger.Debug().
		Str("operation", operation).
		Str("url", req.URL.Redacted()).
		Msg("Executing API request")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(operation, "network_error").Inc()
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    fmt.Sprintf("%s %s", req.Method, req.URL.Path),
			Err:        err,
		}
	}

	requestsTotal.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()

	if err := s.rateLimiter.UpdateFromHeaders(req.Context(), resp.Header); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to update call limit from headers")
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		errClass := classifyStatus(resp.StatusCode, resp.Header)
		errorsTotal.WithLabelValues(string(errClass)).Inc()

		message := resp.Status
		if body, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil && len(body) > 0 {
			message = fmt.Sprintf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
		}

		s.logger.Debug().
			Str("operation", operation).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Bool("retryable", shouldRetry(errClass)).
			Msg("API request error")

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    message,
			Header:     resp.Header.Clone(),
		}
	}

	return resp, nil
}

// get fetches rawURL and returns the body and headers of a successful response.
func (s *Session) get(ctx context.Context, rawURL, operation string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.Do(req, operation)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}
	return body, resp.Header, nil
}

// endpoint builds an absolute URL below the API base.
func (s *Session) endpoint(path string, query url.Values) string {
	u := s.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Close releases idle connections.
func (s *Session) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (s *Session) SetHTTPClient(client *http.Client) {
	s.httpClient = client
}

// errDecode wraps a malformed response body.
func errDecode(operation string, err error) error {
	return &APIError{
		StatusCode: http.StatusOK,
		ErrorClass: ErrorClassNetwork,
		Message:    "decode " + operation + " response",
		Err:        err,
	}
}
