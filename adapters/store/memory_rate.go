package store

import (
	"context"
	"sync"
	"time"

	"github.com/handyhub/identity/ports"
)

type rateBucket struct {
	count   int64
	resetAt time.Time
}

// MemoryRateStore is an in-memory implementation of the RateStore
// port, intended for tests and single-process demos.
type MemoryRateStore struct {
	buckets map[string]*rateBucket
	mu      sync.Mutex

	// Now is overridable so window-boundary behavior can be tested
	// without sleeping.
	Now func() time.Time
}

// NewMemoryRateStore creates an in-memory rate store.
func NewMemoryRateStore() *MemoryRateStore {
	return &MemoryRateStore{
		buckets: make(map[string]*rateBucket),
		Now:     time.Now,
	}
}

// Incr bumps the bucket and returns count and window reset time.
func (s *MemoryRateStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	bucket, ok := s.buckets[key]
	if !ok || !now.Before(bucket.resetAt) {
		bucket = &rateBucket{resetAt: now.Add(window)}
		s.buckets[key] = bucket
	}

	bucket.count++
	return bucket.count, bucket.resetAt, nil
}

var _ ports.RateStore = (*MemoryRateStore)(nil)
