package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metafield_export_retries_total",
		Help: "Total number of retry attempts by backoff state",
	}, []string{"state"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "metafield_export_retry_backoff_seconds",
		Help:    "Backoff duration for retries by backoff state",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"state"})
)

const (
	// RateLimitFactor multiplies the server-declared Retry-After window.
	RateLimitFactor = 2

	// ServerErrorDelay is the fixed pause after a 5xx response.
	ServerErrorDelay = 5 * time.Second
)

// State is a state of the call executor.
type State int

const (
	// StateAttempting invokes the operation.
	StateAttempting State = iota

	// StateRateLimitBackoff pauses for RateLimitFactor x Retry-After.
	StateRateLimitBackoff

	// StateServerErrorBackoff pauses for ServerErrorDelay.
	StateServerErrorBackoff

	// StateFailed is terminal; the error is returned to the caller.
	StateFailed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateRateLimitBackoff:
		return "rate_limit_backoff"
	case StateServerErrorBackoff:
		return "server_error_backoff"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// transitions maps a failed attempt's error class to the next state.
// Classes missing from the table fail.
var transitions = map[ErrorClass]State{
	ErrorClassRateLimit: StateRateLimitBackoff,
	ErrorClassServer:    StateServerErrorBackoff,
	ErrorClassClient:    StateFailed,
	ErrorClassNetwork:   StateFailed,
}

// Transition returns the state that follows a failed attempt and the pause
// before the next attempt. For StateFailed the returned error is the one to
// propagate.
func Transition(err error) (State, time.Duration, error) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return StateFailed, 0, err
	}

	next, ok := transitions[apiErr.ErrorClass]
	if !ok {
		return StateFailed, 0, err
	}

	switch next {
	case StateRateLimitBackoff:
		retryAfter, perr := apiErr.RetryAfter()
		if perr != nil {
			return StateFailed, 0, fmt.Errorf("%w: %v", err, perr)
		}
		return next, RateLimitFactor * retryAfter, nil
	case StateServerErrorBackoff:
		return next, ServerErrorDelay, nil
	default:
		return StateFailed, 0, err
	}
}

// Sleeper blocks for d. It returns an error if ctx ends first.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper backed by a timer.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Executor retries remote calls on rate limiting and server errors.
// There is no attempt limit: an operation is retried until it succeeds or
// fails with a non-retryable error.
type Executor struct {
	sleep  Sleeper
	logger zerolog.Logger
}

// NewExecutor creates an executor. A nil sleep uses SleepContext.
func NewExecutor(logger zerolog.Logger, sleep Sleeper) *Executor {
	if sleep == nil {
		sleep = SleepContext
	}
	return &Executor{
		sleep:  sleep,
		logger: logger,
	}
}

// Execute runs op through the executor's retry loop. name describes the
// call in logs.
func Execute[T any](ctx context.Context, e *Executor, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempt := 0

	for {
		attempt++
		e.logger.Debug().
			Str("operation", name).
			Int("attempt", attempt).
			Msg("Calling API")

		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				e.logger.Debug().
					Str("operation", name).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return result, nil
		}

		state, pause, cause := Transition(err)
		switch state {
		case StateRateLimitBackoff:
			e.logger.Debug().
				Str("operation", name).
				Dur("pause", pause).
				Msgf("API rate limit reached; pausing %.0f secs", pause.Seconds())
		case StateServerErrorBackoff:
			e.logger.Error().
				Err(err).
				Str("operation", name).
				Msgf("Server error; continuing after %.0f secs", pause.Seconds())
		default:
			return zero, cause
		}

		retriesTotal.WithLabelValues(state.String()).Inc()
		retryBackoffSeconds.WithLabelValues(state.String()).Observe(pause.Seconds())

		if err := e.sleep(ctx, pause); err != nil {
			e.logger.Warn().
				Str("operation", name).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return zero, fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}
	}
}
