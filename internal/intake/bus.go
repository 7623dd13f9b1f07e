// Package intake carries transient intake workflow state to interested
// parties: an in-process broker for UI surfaces polling the same workflow,
// and a NATS notifier for everything out of process.
package intake

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Workflow phases published on the bus
const (
	PhaseReceived = "received"
	PhaseRouting  = "routing"
	PhaseRouted   = "routed"
	PhaseFailed   = "failed"
)

// State is the last-known intake workflow state
type State struct {
	ItemID   uuid.UUID  `json:"itemId"`
	Phase    string     `json:"phase"`
	TenantID *uuid.UUID `json:"tenantId,omitempty"`
	Message  string     `json:"message,omitempty"`
	At       time.Time  `json:"at"`
}

// Bus is a process-wide broker: independently mounted consumers react to
// the same workflow without a shared parent. It must be Reset between
// workflow runs so a new run does not start from a stale state.
type Bus struct {
	mu   sync.Mutex
	subs map[int]func(State)
	next int
	last *State
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(State))}
}

// Publish stores state as current and notifies all subscribers
func (b *Bus) Publish(state State) {
	if state.At.IsZero() {
		state.At = time.Now()
	}

	b.mu.Lock()
	cp := state
	b.last = &cp
	fns := make([]func(State), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	// Callbacks run outside the lock so a subscriber may publish or
	// unsubscribe without deadlocking
	for _, fn := range fns {
		fn(state)
	}
}

// Subscribe registers a callback and returns its unsubscribe function.
// A subscriber joining mid-run immediately receives the current state.
func (b *Bus) Subscribe(fn func(State)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	last := b.last
	b.mu.Unlock()

	if last != nil {
		fn(*last)
	}

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Current returns the last published state, or nil before the first publish
// or after a Reset
func (b *Bus) Current() *State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.last == nil {
		return nil
	}
	cp := *b.last
	return &cp
}

// Reset clears the current state. Subscribers stay registered.
func (b *Bus) Reset() {
	b.mu.Lock()
	b.last = nil
	b.mu.Unlock()
}
