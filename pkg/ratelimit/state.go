// Package ratelimit tracks the store's API call-limit bucket.
// It monitors the X-Shopify-Shop-Api-Call-Limit response header so that
// operators can see how close a run is to being throttled.
package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HeaderCallLimit carries the leaky bucket fill level as "used/limit".
const HeaderCallLimit = "X-Shopify-Shop-Api-Call-Limit"

// Redis key suffixes for bucket state storage.
const (
	RedisKeyUsed       = "call_limit:used"
	RedisKeyLimit      = "call_limit:limit"
	RedisKeyLastUpdate = "call_limit:last_update"
)

const (
	// DefaultBucketSize is the REST bucket size of a standard store.
	DefaultBucketSize = 40

	// WarningFill is the bucket fill ratio from which updates are logged
	// at warning level.
	WarningFill = 0.8

	// LeakRate is the number of calls per second the bucket drains.
	LeakRate = 2

	// DrainTime is how long a full standard bucket takes to leak empty.
	// Older state says nothing about the bucket now.
	DrainTime = DefaultBucketSize / LeakRate * time.Second
)

// BucketState represents the last observed call-limit bucket.
type BucketState struct {
	// Used is the number of calls currently in the bucket.
	Used int `json:"used"`

	// Limit is the bucket size.
	Limit int `json:"limit"`

	// LastUpdate is when the header was last observed.
	LastUpdate time.Time `json:"last_update"`
}

// ParseCallLimit parses a header value such as "32/40".
func ParseCallLimit(value string) (used, limit int, err error) {
	usedStr, limitStr, ok := strings.Cut(strings.TrimSpace(value), "/")
	if !ok {
		return 0, 0, fmt.Errorf("malformed call limit %q", value)
	}

	used, err = strconv.Atoi(strings.TrimSpace(usedStr))
	if err != nil {
		return 0, 0, fmt.Errorf("parse used calls: %w", err)
	}
	limit, err = strconv.Atoi(strings.TrimSpace(limitStr))
	if err != nil {
		return 0, 0, fmt.Errorf("parse call limit: %w", err)
	}
	if limit <= 0 || used < 0 {
		return 0, 0, fmt.Errorf("invalid call limit %q", value)
	}
	return used, limit, nil
}

// Fill returns the bucket fill ratio in [0, 1].
func (s *BucketState) Fill() float64 {
	if s.Limit <= 0 {
		return 0
	}
	fill := float64(s.Used) / float64(s.Limit)
	if fill > 1 {
		return 1
	}
	return fill
}

// IsFull returns true if the next call is expected to be rejected.
func (s *BucketState) IsFull() bool {
	return s.Limit > 0 && s.Used >= s.Limit
}

// NeedsWarning returns true if the bucket is filled beyond WarningFill.
func (s *BucketState) NeedsWarning() bool {
	return s.Fill() >= WarningFill
}

// IsStale returns true if the state data is older than the given duration.
// The bucket leaks continuously, so stale state overstates the fill level.
func (s *BucketState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// Remaining returns the number of calls left before the bucket is full.
func (s *BucketState) Remaining() int {
	if s.Used >= s.Limit {
		return 0
	}
	return s.Limit - s.Used
}
