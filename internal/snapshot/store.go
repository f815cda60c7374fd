// Package snapshot stores timestamped copies of successful provider results
// so scoring can fall back to them when a provider is down. Records are
// append-only: a new result for the same key is appended, never overwritten,
// and a record older than the caller's max age is treated as absent.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pathwise/mri-engine/internal/metrics"
)

// ErrNoSnapshot means no record for the key is within the requested max age.
var ErrNoSnapshot = errors.New("no valid snapshot")

// Records kept per (source kind, cache key). Older records are logically
// invalid anyway, so only a recent window has to survive.
const historyPerKey = 8

// Record is one stored provider result. Immutable once written.
type Record struct {
	ID         string          `json:"id"`
	SourceKind string          `json:"source_kind"`
	CacheKey   string          `json:"cache_key"`
	CapturedAt time.Time       `json:"captured_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Age returns how old the record is relative to now.
func (r *Record) Age(now time.Time) time.Duration {
	return now.Sub(r.CapturedAt)
}

// Decode unmarshals the record payload into target.
func (r *Record) Decode(target any) error {
	if err := json.Unmarshal(r.Payload, target); err != nil {
		return fmt.Errorf("decoding %s snapshot payload: %w", r.SourceKind, err)
	}
	return nil
}

// Store is the snapshot persistence contract.
type Store interface {
	// Put appends a timestamped record for (sourceKind, key).
	Put(ctx context.Context, sourceKind, key string, payload any) (*Record, error)
	// Get returns the most recent record for (sourceKind, key) whose age is
	// at most maxAge, or ErrNoSnapshot.
	Get(ctx context.Context, sourceKind, key string, maxAge time.Duration) (*Record, error)
}

// MemoryStore keeps snapshot records in memory, indexed by
// (source kind, cache key). Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]*Record
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]*Record),
		now:     time.Now,
	}
}

// WithClock overrides the store's time source. Intended for tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func indexKey(sourceKind, key string) string {
	return sourceKind + "\x00" + key
}

func newRecord(sourceKind, key string, capturedAt time.Time, payload any) (*Record, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s snapshot payload: %w", sourceKind, err)
	}
	return &Record{
		ID:         uuid.NewString(),
		SourceKind: sourceKind,
		CacheKey:   key,
		CapturedAt: capturedAt,
		Payload:    raw,
	}, nil
}

// Put appends a record for (sourceKind, key), trimming history past the
// per-key window.
func (s *MemoryStore) Put(_ context.Context, sourceKind, key string, payload any) (*Record, error) {
	rec, err := newRecord(sourceKind, key, s.now().UTC(), payload)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := indexKey(sourceKind, key)
	history := append(s.records[idx], rec)
	if len(history) > historyPerKey {
		history = history[len(history)-historyPerKey:]
	}
	s.records[idx] = history

	return rec, nil
}

// Get returns the freshest record within maxAge for (sourceKind, key).
func (s *MemoryStore) Get(_ context.Context, sourceKind, key string, maxAge time.Duration) (*Record, error) {
	s.mu.RLock()
	history := s.records[indexKey(sourceKind, key)]
	s.mu.RUnlock()

	now := s.now()
	for i := len(history) - 1; i >= 0; i-- {
		rec := history[i]
		if rec.Age(now) <= maxAge {
			metrics.SnapshotLookup(sourceKind, "hit")
			return rec, nil
		}
	}

	if len(history) > 0 {
		metrics.SnapshotLookup(sourceKind, "expired")
	} else {
		metrics.SnapshotLookup(sourceKind, "miss")
	}
	return nil, fmt.Errorf("%s/%s within %s: %w", sourceKind, key, maxAge, ErrNoSnapshot)
}
