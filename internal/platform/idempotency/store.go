// Package idempotency deduplicates retried checkout requests by replaying the
// result produced for the same key within the retention window.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is the default duration that replay records are retained.
const DefaultTTL = 24 * time.Hour

// Key derives a stable idempotency key from the request parts.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

type record[T any] struct {
	value     T
	expiresAt time.Time
}

// ReplayStore is an in-memory TTL-bound cache of completed results keyed by
// idempotency key. Expired records are dropped on access.
type ReplayStore[T any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	records map[string]record[T]
}

// NewReplayStore constructs an empty store. A non-positive ttl falls back to
// DefaultTTL and a nil clock falls back to time.Now.
func NewReplayStore[T any](ttl time.Duration, clock func() time.Time) *ReplayStore[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &ReplayStore[T]{
		ttl:     ttl,
		now:     func() time.Time { return clock().UTC() },
		records: make(map[string]record[T]),
	}
}

// Get returns the stored result for key when it has not expired.
func (s *ReplayStore[T]) Get(key string) (T, bool) {
	var zero T
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return zero, false
	}
	if !s.now().Before(rec.expiresAt) {
		delete(s.records, key)
		return zero, false
	}
	return rec.value, true
}

// Put stores the result for key, resetting its retention window.
func (s *ReplayStore[T]) Put(key string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = record[T]{value: value, expiresAt: s.now().Add(s.ttl)}
}
