package events

import (
	"context"
	"sync"
)

// Published is one recorded delivery.
type Published struct {
	To    Audience
	Event Event
}

// Recorder is a Publisher that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Published
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Publish(_ context.Context, to Audience, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Published{To: to, Event: ev})
	return nil
}

func (r *Recorder) All() []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Published(nil), r.events...)
}

// Named returns the recorded deliveries of one event name, in order.
func (r *Recorder) Named(name Name) []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Published
	for _, p := range r.events {
		if p.Event.Name == name {
			out = append(out, p)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Failing is a Publisher whose every call fails with Err.
type Failing struct {
	Err error
}

func (f Failing) Publish(context.Context, Audience, Event) error { return f.Err }

// Fanout publishes to several publishers, returning the first error.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, to Audience, ev Event) error {
	var first error
	for _, p := range f {
		if err := p.Publish(ctx, to, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
