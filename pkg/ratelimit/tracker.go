package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for call-limit tracking.
var (
	callLimitUsed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "metafield_export_call_limit_used",
		Help: "Calls in the store's API bucket as of the last response",
	})

	callLimitSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "metafield_export_call_limit_size",
		Help: "Size of the store's API bucket as of the last response",
	})

	callLimitFullTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "metafield_export_call_limit_full_total",
		Help: "Total number of responses that reported a full API bucket",
	})
)

// Store persists the last observed bucket state.
type Store interface {
	// Load returns the stored state, or nil if nothing was stored yet.
	Load(ctx context.Context) (*BucketState, error)
	Save(ctx context.Context, state *BucketState) error
}

// MemoryStore keeps bucket state within the process.
type MemoryStore struct {
	mu    sync.Mutex
	state *BucketState
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (m *MemoryStore) Load(ctx context.Context) (*BucketState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, nil
	}
	s := *m.state
	return &s, nil
}

// Save implements Store.
func (m *MemoryStore) Save(ctx context.Context, state *BucketState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := *state
	m.state = &s
	return nil
}

// Tracker observes call-limit headers and records the bucket state.
type Tracker struct {
	store  Store
	logger zerolog.Logger
}

// NewTracker creates a new call-limit tracker. A nil store keeps state in
// memory.
func NewTracker(store Store, logger zerolog.Logger) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{
		store:  store,
		logger: logger,
	}
}

// Resume loads the bucket left by an earlier run and seeds the gauges
// from it. It returns nil when nothing was stored or the stored state is
// older than maxAge, since the bucket has leaked in the meantime.
func (t *Tracker) Resume(ctx context.Context, maxAge time.Duration) (*BucketState, error) {
	state, err := t.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load bucket state: %w", err)
	}
	if state == nil || state.IsStale(maxAge) {
		t.logger.Debug().Msg("No recent call limit state, starting with an empty bucket")
		return nil, nil
	}

	callLimitUsed.Set(float64(state.Used))
	callLimitSize.Set(float64(state.Limit))

	if state.NeedsWarning() {
		t.logger.Warn().
			Int("used", state.Used).
			Int("limit", state.Limit).
			Time("last_update", state.LastUpdate).
			Msg("API call bucket was nearly full at the end of a recent run")
	}
	return state, nil
}

// UpdateFromHeaders parses the call-limit header and stores the state.
// Responses without the header are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	value := headers.Get(HeaderCallLimit)
	if value == "" {
		return nil
	}

	used, limit, err := ParseCallLimit(value)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderCallLimit, err)
	}

	state := &BucketState{
		Used:       used,
		Limit:      limit,
		LastUpdate: time.Now(),
	}
	if err := t.store.Save(ctx, state); err != nil {
		return fmt.Errorf("store bucket state: %w", err)
	}

	callLimitUsed.Set(float64(used))
	callLimitSize.Set(float64(limit))

	switch {
	case state.IsFull():
		callLimitFullTotal.Inc()
		t.logger.Warn().
			Int("used", used).
			Int("limit", limit).
			Msg("API call bucket full - next calls will be throttled")
	case state.NeedsWarning():
		t.logger.Warn().
			Int("used", used).
			Int("limit", limit).
			Int("remaining", state.Remaining()).
			Msg("API call bucket nearly full")
	default:
		t.logger.Debug().
			Int("used", used).
			Int("limit", limit).
			Msg("API call bucket state updated")
	}

	return nil
}
