// Package memory provides an in-process TTL key-value store. It is meant for
// single-instance deployments and tests; entries do not survive a restart and
// are not shared between replicas.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-otp-stream/internal/domain"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// DefaultSweepInterval is how often a write also purges expired entries.
const DefaultSweepInterval = time.Minute

// Store is a mutex-guarded map with lazy expiry on read. Writes purge expired
// entries at most once per sweep interval, so the cost of a full scan is
// amortised over every write in that window.
type Store struct {
	mu         sync.Mutex
	entries    map[string]entry
	now        func() time.Time
	sweepEvery time.Duration
	lastSweep  time.Time
}

type Option func(*Store)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSweepInterval sets how often writes purge expired entries.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.sweepEvery = d
		}
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{entries: make(map[string]entry), now: time.Now, sweepEvery: DefaultSweepInterval}
	for _, o := range opts {
		o(s)
	}
	s.lastSweep = s.now()
	return s
}

func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive: %w", domain.ErrBadRequest)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if now.Sub(s.lastSweep) >= s.sweepEvery {
		s.sweep(now)
		s.lastSweep = now
	}
	s.entries[key] = entry{value: value, expiresAt: now.Add(ttl)}
	return nil
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	if !ok {
		return "", fmt.Errorf("key %q: %w", key, domain.ErrNotFound)
	}
	return e.value, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *Store) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	if !ok || e.value != expected {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

// Len reports the number of stored entries, expired ones included until swept.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// live must be called with mu held.
func (s *Store) live(key string) (entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return entry{}, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return entry{}, false
	}
	return e, true
}

func (s *Store) sweep(now time.Time) {
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}
