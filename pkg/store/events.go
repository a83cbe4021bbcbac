package store

import (
	"sync"
	"time"
)

// EventKind is the type of a store event.
type EventKind string

const (
	EventSet      EventKind = "set"
	EventDelete   EventKind = "delete"
	EventArray    EventKind = "array"
	EventFlush    EventKind = "flush"
	EventOverflow EventKind = "overflow"
	EventConsumer EventKind = "consumer"
)

// Event describes a write, a flush or a consumer lifecycle change. Events
// never carry state values.
type Event struct {
	Kind  EventKind `json:"kind"`
	Store string    `json:"store"`

	// Key is the written key for set and delete events.
	Key string `json:"key,omitempty"`

	// Method is the compound operation for array events, or "created" and
	// "destroyed" for consumer events.
	Method string `json:"method,omitempty"`

	// Consumers lists the consumers scheduled (write events), notified
	// (flush) or dropped (overflow), or the consumer concerned.
	Consumers []uint64 `json:"consumers,omitempty"`

	// Suppressed counts readers skipped because their observed value was
	// unchanged.
	Suppressed int `json:"suppressed,omitempty"`

	// Duration is the flush duration.
	Duration time.Duration `json:"duration,omitempty"`

	Time time.Time `json:"time"`
}

// observers is the store's list of event callbacks.
type observers struct {
	mu     sync.RWMutex
	nextID uint64
	fns    map[uint64]func(Event)
}

func (o *observers) add(fn func(Event)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fns == nil {
		o.fns = make(map[uint64]func(Event))
	}
	o.nextID++
	id := o.nextID
	o.fns[id] = fn
	return func() {
		o.mu.Lock()
		delete(o.fns, id)
		o.mu.Unlock()
	}
}

func (o *observers) active() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.fns) > 0
}

// emit delivers ev to a copy of the observer list, outside the lock.
func (o *observers) emit(ev Event) {
	o.mu.RLock()
	if len(o.fns) == 0 {
		o.mu.RUnlock()
		return
	}
	fns := make([]func(Event), 0, len(o.fns))
	for _, fn := range o.fns {
		fns = append(fns, fn)
	}
	o.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
