package eventbus

import (
	"sync"

	"github.com/go-otp-stream/internal/domain"
)

// Subscription is a live, non-restartable stream of one principal's events.
// Events is closed when the subscription ends; Err then tells why.
type Subscription struct {
	id          uint64
	principalID string
	bus         *Bus

	mu     sync.Mutex
	ch     chan domain.NotificationEvent
	closed bool
	err    error
	done   chan struct{}
}

func (s *Subscription) PrincipalID() string { return s.principalID }

// Events yields matching events in publish order until the subscription ends.
func (s *Subscription) Events() <-chan domain.NotificationEvent { return s.ch }

// Done is closed when the subscription ends, by any path.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err is nil while the subscription is live or after an explicit unsubscribe,
// domain.ErrSubscriptionOverflow if the consumer fell behind, and
// domain.ErrBusClosed after shutdown.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() { s.bus.Unsubscribe(s) }

// deliver pushes ev without blocking. It reports whether ev was buffered and
// whether the subscription overflowed and was terminated.
func (s *Subscription) deliver(ev domain.NotificationEvent, policy OverflowPolicy) (buffered, overflowed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, false
	}
	select {
	case s.ch <- ev:
		return true, false
	default:
	}
	if policy == OverflowDropOldest {
		select {
		case <-s.ch:
			eventsDropped.Inc()
		default:
		}
		select {
		case s.ch <- ev:
			return true, false
		default:
			eventsDropped.Inc()
			return false, false
		}
	}
	s.terminateLocked(domain.ErrSubscriptionOverflow)
	return false, true
}

// terminate ends the subscription with err. It reports whether this call ended it.
func (s *Subscription) terminate(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminateLocked(err)
}

// terminateLocked discards anything still buffered so a cancelled consumer
// sees the channel close instead of stale items.
func (s *Subscription) terminateLocked(err error) bool {
	if s.closed {
		return false
	}
	s.closed = true
	s.err = err
drain:
	for {
		select {
		case <-s.ch:
		default:
			break drain
		}
	}
	close(s.ch)
	close(s.done)
	return true
}
