// Package eventbus is the in-process broadcast point for live notification
// events. Each subscription is filtered to one principal and drains its own
// bounded buffer, so a slow consumer never blocks a publisher or its peers.
// Delivery is at-most-once with no replay.
package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/go-otp-stream/internal/domain"
)

// OverflowPolicy decides what happens when a subscriber's buffer is full.
type OverflowPolicy int

const (
	// OverflowClose ends the subscription with domain.ErrSubscriptionOverflow
	// so the client reconnects instead of silently losing events.
	OverflowClose OverflowPolicy = iota
	// OverflowDropOldest evicts the oldest buffered event to make room.
	OverflowDropOldest
)

// ParseOverflowPolicy maps "close" (or empty) and "drop_oldest" to a policy.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch s {
	case "", "close":
		return OverflowClose, nil
	case "drop_oldest":
		return OverflowDropOldest, nil
	}
	return 0, fmt.Errorf("unknown overflow policy %q: %w", s, domain.ErrBadRequest)
}

// DefaultBufferSize is the per-subscription capacity when Options leaves it unset.
const DefaultBufferSize = 16

// Options sizes subscription buffers and picks the overflow policy.
type Options struct {
	BufferSize int
	Overflow   OverflowPolicy
}

// Bus fans events out to per-principal subscriptions. It is safe for concurrent use.
type Bus struct {
	reg        *registry
	bufferSize int
	overflow   OverflowPolicy
	nextID     atomic.Uint64
}

// New returns an open bus; a non-positive BufferSize means DefaultBufferSize.
func New(opts Options) *Bus {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	return &Bus{reg: newRegistry(), bufferSize: opts.BufferSize, overflow: opts.Overflow}
}

// Publish offers ev to every live subscription of ev.PrincipalID. It never
// blocks on a consumer.
func (b *Bus) Publish(ev domain.NotificationEvent) error {
	if ev.PrincipalID == "" {
		return fmt.Errorf("event without principal: %w", domain.ErrBadRequest)
	}
	subs, err := b.reg.snapshot(ev.PrincipalID)
	if err != nil {
		return err
	}
	eventsPublished.Inc()
	for _, s := range subs {
		buffered, overflowed := s.deliver(ev, b.overflow)
		if buffered {
			eventsDelivered.Inc()
		}
		if overflowed {
			subscriptionOverflows.Inc()
			if b.reg.remove(s) {
				activeSubscriptions.Dec()
			}
			slog.Warn("subscription closed on overflow", "principal_id", s.principalID, "subscription_id", s.id)
		}
	}
	return nil
}

// Subscribe registers a new subscription for principalID. Only events
// published after Subscribe returns are guaranteed to be seen.
func (b *Bus) Subscribe(principalID string) (*Subscription, error) {
	if principalID == "" {
		return nil, fmt.Errorf("principal id required: %w", domain.ErrBadRequest)
	}
	s := &Subscription{
		id:          b.nextID.Add(1),
		principalID: principalID,
		bus:         b,
		ch:          make(chan domain.NotificationEvent, b.bufferSize),
		done:        make(chan struct{}),
	}
	if err := b.reg.add(s); err != nil {
		return nil, err
	}
	activeSubscriptions.Inc()
	return s, nil
}

// Stream subscribes for the lifetime of ctx.
func (b *Bus) Stream(ctx context.Context, principalID string) (*Subscription, error) {
	s, err := b.Subscribe(principalID)
	if err != nil {
		return nil, err
	}
	go func() {
		select {
		case <-ctx.Done():
			b.Unsubscribe(s)
		case <-s.done:
		}
	}()
	return s, nil
}

// Unsubscribe ends s, discarding buffered events. Idempotent.
func (b *Bus) Unsubscribe(s *Subscription) {
	if s == nil {
		return
	}
	s.terminate(nil)
	if b.reg.remove(s) {
		activeSubscriptions.Dec()
	}
}

// Close ends every subscription with domain.ErrBusClosed and rejects further
// publishes and subscriptions.
func (b *Bus) Close() {
	subs := b.reg.closeAll()
	for _, s := range subs {
		s.terminate(domain.ErrBusClosed)
	}
	activeSubscriptions.Sub(float64(len(subs)))
}

// SubscriberCount is the number of live subscriptions.
func (b *Bus) SubscriberCount() int { return b.reg.len() }
