package events

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the per-subscription queue length.
const DefaultBuffer = 256

// Hub is an in-process Publisher. Subscriptions register for one or more
// audiences; Publish never blocks on a slow subscriber.
type Hub struct {
	mu     sync.RWMutex
	routes map[Audience]map[*Subscription]struct{}
	buffer int

	dropped atomic.Int64
}

// NewHub returns a Hub whose subscriptions queue up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		routes: make(map[Audience]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscription receives the events published to its audiences.
type Subscription struct {
	audiences []Audience
	ch        chan Event

	mu          sync.Mutex
	closed      bool
	lastVersion map[string]int64

	dropped atomic.Int64
	stale   atomic.Int64
}

// Events returns the delivery channel. It is closed on Unsubscribe.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Dropped counts events discarded because the queue was full.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Stale counts events discarded because a newer version of the same session
// had already been delivered.
func (s *Subscription) Stale() int64 { return s.stale.Load() }

func (s *Subscription) offer(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if ev.SessionID != "" && ev.Version > 0 {
		if ev.Version < s.lastVersion[ev.SessionID] {
			s.stale.Add(1)
			return true
		}
		s.lastVersion[ev.SessionID] = ev.Version
	}
	select {
	case s.ch <- ev:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

func (h *Hub) Subscribe(audiences ...Audience) *Subscription {
	sub := &Subscription{
		audiences:   append([]Audience(nil), audiences...),
		ch:          make(chan Event, h.buffer),
		lastVersion: make(map[string]int64),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, a := range sub.audiences {
		set, ok := h.routes[a]
		if !ok {
			set = make(map[*Subscription]struct{})
			h.routes[a] = set
		}
		set[sub] = struct{}{}
	}
	return sub
}

// Unsubscribe removes sub from every audience and closes its channel.
// Calling it twice is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	for _, a := range sub.audiences {
		if set, ok := h.routes[a]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(h.routes, a)
			}
		}
	}
	h.mu.Unlock()

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

func (h *Hub) Publish(ctx context.Context, to Audience, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.RLock()
	targets := make([]*Subscription, 0, len(h.routes[to]))
	for sub := range h.routes[to] {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		if !sub.offer(ev) {
			h.dropped.Add(1)
		}
	}
	return nil
}

// Subscribers returns the number of distinct live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[*Subscription]struct{})
	for _, set := range h.routes {
		for sub := range set {
			seen[sub] = struct{}{}
		}
	}
	return len(seen)
}

// Dropped counts deliveries lost to full queues across all subscriptions.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }
