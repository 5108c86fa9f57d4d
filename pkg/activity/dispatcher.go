package activity

import (
	"context"
	"time"
)

// DefaultChannel is used when neither the dispatcher nor the event sets one.
const DefaultChannel = "modkit"

// Dispatcher normalizes events before handing them to its hooks. Invalid
// events are dropped.
type Dispatcher struct {
	hooks   Hooks
	channel string
	now     func() time.Time
}

// NewDispatcher builds a dispatcher for hooks that fills in channel on events
// without one.
func NewDispatcher(channel string, hooks Hooks) *Dispatcher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Dispatcher{
		hooks:   hooks.Compact(),
		channel: channel,
		now:     time.Now,
	}
}

// Enabled reports whether any hook would be notified.
func (d *Dispatcher) Enabled() bool {
	return d != nil && len(d.hooks) > 0
}

// Dispatch normalizes event and notifies every hook.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	if !d.Enabled() {
		return nil
	}
	event = event.normalize(d.now)
	if !event.Valid() {
		return nil
	}
	if event.Channel == "" {
		event.Channel = d.channel
	}
	return d.hooks.Notify(ctx, event)
}
