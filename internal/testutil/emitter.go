package testutil

import "sync"

type Event struct {
	Channel string
	Name    string
	Payload any
}

// Emitter records every emitted event in order.
type Emitter struct {
	mu     sync.Mutex
	events []Event
}

func (e *Emitter) Emit(channel, event string, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, Event{Channel: channel, Name: event, Payload: payload})
}

func (e *Emitter) Events() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Event, len(e.events))
	copy(out, e.events)
	return out
}

// Named returns the events with the given name.
func (e *Emitter) Named(name string) []Event {
	var out []Event
	for _, ev := range e.Events() {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}
