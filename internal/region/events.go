// internal/region/events.go
package region

// EventRing keeps the last N failover events in insertion order, evicting
// the oldest first. It is not safe for concurrent use; callers serialize
// access under their own lock.
type EventRing struct {
	events []FailoverEvent
	max    int
}

// NewEventRing creates a ring bounded to max events.
func NewEventRing(max int) *EventRing {
	if max <= 0 {
		max = 10
	}
	return &EventRing{
		events: make([]FailoverEvent, 0, max),
		max:    max,
	}
}

// Append adds an event, evicting the oldest when the ring is full.
func (r *EventRing) Append(event FailoverEvent) {
	r.events = append(r.events, event)
	if len(r.events) > r.max {
		r.events = r.events[len(r.events)-r.max:]
	}
}

// Events returns a copy of the retained events, oldest first.
func (r *EventRing) Events() []FailoverEvent {
	out := make([]FailoverEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of retained events.
func (r *EventRing) Len() int {
	return len(r.events)
}
