package eventbus

import (
	"sync"

	"github.com/go-otp-stream/internal/domain"
)

// registry is the set of live subscriptions indexed by principal. Mutations
// take the write lock, publish snapshots take the read lock, so a publish
// never observes a half-added or half-removed subscription.
type registry struct {
	mu          sync.RWMutex
	closed      bool
	byPrincipal map[string]map[uint64]*Subscription
	size        int
}

func newRegistry() *registry {
	return &registry{byPrincipal: make(map[string]map[uint64]*Subscription)}
}

func (r *registry) add(s *Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.ErrBusClosed
	}
	set, ok := r.byPrincipal[s.principalID]
	if !ok {
		set = make(map[uint64]*Subscription)
		r.byPrincipal[s.principalID] = set
	}
	set[s.id] = s
	r.size++
	return nil
}

// remove reports whether s was still registered.
func (r *registry) remove(s *Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.byPrincipal[s.principalID]
	if !ok {
		return false
	}
	if _, ok := set[s.id]; !ok {
		return false
	}
	delete(set, s.id)
	if len(set) == 0 {
		delete(r.byPrincipal, s.principalID)
	}
	r.size--
	return true
}

func (r *registry) snapshot(principalID string) ([]*Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, domain.ErrBusClosed
	}
	set := r.byPrincipal[principalID]
	if len(set) == 0 {
		return nil, nil
	}
	out := make([]*Subscription, 0, len(set))
	for _, s := range set {
		out = append(out, s)
	}
	return out, nil
}

// closeAll marks the registry closed and hands back every subscription it held.
func (r *registry) closeAll() []*Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	out := make([]*Subscription, 0, r.size)
	for _, set := range r.byPrincipal {
		for _, s := range set {
			out = append(out, s)
		}
	}
	r.byPrincipal = nil
	r.size = 0
	return out
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}
