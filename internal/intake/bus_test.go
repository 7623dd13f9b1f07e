package intake

import (
	"testing"

	"github.com/google/uuid"
)

func TestBus_PublishAndCurrent(t *testing.T) {
	bus := NewBus()

	if bus.Current() != nil {
		t.Fatalf("expected no state before first publish")
	}

	itemID := uuid.New()
	bus.Publish(State{ItemID: itemID, Phase: PhaseReceived})

	got := bus.Current()
	if got == nil {
		t.Fatalf("expected current state")
	}
	if got.ItemID != itemID || got.Phase != PhaseReceived {
		t.Fatalf("unexpected state %+v", got)
	}
	if got.At.IsZero() {
		t.Fatalf("expected publish to stamp the state")
	}
}

func TestBus_NotifiesSubscribers(t *testing.T) {
	bus := NewBus()

	var seen []string
	unsubscribe := bus.Subscribe(func(s State) {
		seen = append(seen, s.Phase)
	})

	bus.Publish(State{ItemID: uuid.New(), Phase: PhaseReceived})
	bus.Publish(State{ItemID: uuid.New(), Phase: PhaseRouted})

	if len(seen) != 2 || seen[0] != PhaseReceived || seen[1] != PhaseRouted {
		t.Fatalf("unexpected phases %v", seen)
	}

	unsubscribe()
	bus.Publish(State{ItemID: uuid.New(), Phase: PhaseFailed})

	if len(seen) != 2 {
		t.Fatalf("expected no delivery after unsubscribe, got %v", seen)
	}
}

func TestBus_LateSubscriberGetsCurrentState(t *testing.T) {
	bus := NewBus()

	itemID := uuid.New()
	bus.Publish(State{ItemID: itemID, Phase: PhaseRouting})

	var got *State
	bus.Subscribe(func(s State) {
		cp := s
		got = &cp
	})

	if got == nil {
		t.Fatalf("expected immediate replay of current state")
	}
	if got.ItemID != itemID || got.Phase != PhaseRouting {
		t.Fatalf("unexpected replayed state %+v", got)
	}
}

func TestBus_ResetClearsStateKeepsSubscribers(t *testing.T) {
	bus := NewBus()

	calls := 0
	bus.Subscribe(func(State) { calls++ })

	bus.Publish(State{ItemID: uuid.New(), Phase: PhaseReceived})
	bus.Reset()

	if bus.Current() != nil {
		t.Fatalf("expected no current state after reset")
	}

	bus.Publish(State{ItemID: uuid.New(), Phase: PhaseReceived})
	if calls != 2 {
		t.Fatalf("expected subscriber to survive reset, got %d calls", calls)
	}
}

func TestBus_SubscriberMayUnsubscribeDuringPublish(t *testing.T) {
	bus := NewBus()

	var unsubscribe func()
	calls := 0
	unsubscribe = bus.Subscribe(func(State) {
		calls++
		unsubscribe()
	})

	bus.Publish(State{ItemID: uuid.New(), Phase: PhaseReceived})
	bus.Publish(State{ItemID: uuid.New(), Phase: PhaseRouted})

	if calls != 1 {
		t.Fatalf("expected exactly one delivery, got %d", calls)
	}
}
