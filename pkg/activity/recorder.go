package activity

import (
	"context"
	"sync"
)

// Recorder keeps every event it is notified with. It returns Err from Notify
// when set.
type Recorder struct {
	Err error

	mu     sync.Mutex
	events []Event
}

// Notify implements Hook.
func (r *Recorder) Notify(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.Err
}

// Events returns the recorded events in order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Verbs returns the verb of each recorded event in order.
func (r *Recorder) Verbs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	verbs := make([]string, 0, len(r.events))
	for _, event := range r.events {
		verbs = append(verbs, event.Verb)
	}
	return verbs
}
