// Package ratelimit implements ports.RateLimiter with per-key token buckets.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sophialabs/clientmock/internal/infrastructure/ports"
)

var _ ports.RateLimiter = (*TokenBucketStore)(nil)

const defaultTTL = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	rate     float64
	burst    int
	lastUsed time.Time
}

// TokenBucketStore keeps one token bucket per key and evicts buckets idle
// for longer than the TTL.
type TokenBucketStore struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewTokenBucketStore creates a store and starts its eviction goroutine.
// Call Stop to terminate it.
func NewTokenBucketStore(ttl time.Duration) *TokenBucketStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	s := &TokenBucketStore{
		buckets: make(map[string]*bucket),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go s.evictLoop()
	return s
}

// Stop terminates the eviction goroutine. It is safe to call more than once.
func (s *TokenBucketStore) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *TokenBucketStore) evictLoop() {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Evict()
		case <-s.stop:
			return
		}
	}
}

// Allow takes a token from the bucket for key. A bucket whose rate or burst
// changed since it was created (after a reload) is retuned in place.
func (s *TokenBucketStore) Allow(_ context.Context, key string, r float64, burst int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	switch {
	case !ok:
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(r), burst), rate: r, burst: burst}
		s.buckets[key] = b
	case b.rate != r || b.burst != burst:
		b.limiter.SetLimit(rate.Limit(r))
		b.limiter.SetBurst(burst)
		b.rate, b.burst = r, burst
	}

	b.lastUsed = time.Now()
	return b.limiter.Allow()
}

// Reset forgets every bucket, refilling all of them.
func (s *TokenBucketStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.buckets)
}

// Evict removes buckets idle for longer than the TTL.
func (s *TokenBucketStore) Evict() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.ttl)
	for key, b := range s.buckets {
		if b.lastUsed.Before(cutoff) {
			delete(s.buckets, key)
		}
	}
}

// Len returns the number of live buckets.
func (s *TokenBucketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}
