// Package cache holds the small in-process caches used on the ingest
// path.
package cache

import (
	"sync"
	"time"
)

// sweepThreshold triggers an expired-entry sweep on Add so keys that
// are never probed again still get reclaimed.
const sweepThreshold = 4096

// TTLSet remembers string keys for a bounded window. The ingest
// deduper uses it as a recency filter in front of the item store.
type TTLSet struct {
	mu sync.Mutex
	m  map[string]time.Time
}

func NewTTLSet() *TTLSet {
	return &TTLSet{m: make(map[string]time.Time)}
}

// Add records key until ttl elapses. A zero ttl keeps the key
// indefinitely.
func (s *TTLSet) Add(key string, ttl time.Duration) {
	var exp time.Time
	if ttl != 0 {
		exp = time.Now().Add(ttl)
	}
	s.mu.Lock()
	s.m[key] = exp
	if len(s.m) > sweepThreshold {
		s.sweepLocked(time.Now())
	}
	s.mu.Unlock()
}

// Has reports whether key is present and fresh. Expired keys are
// dropped on the way out.
func (s *TTLSet) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.m[key]
	if !ok {
		return false
	}
	if !exp.IsZero() && time.Now().After(exp) {
		delete(s.m, key)
		return false
	}
	return true
}

// Len returns the current entry count, expired or not.
func (s *TTLSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

func (s *TTLSet) sweepLocked(now time.Time) {
	for k, exp := range s.m {
		if !exp.IsZero() && now.After(exp) {
			delete(s.m, k)
		}
	}
}
