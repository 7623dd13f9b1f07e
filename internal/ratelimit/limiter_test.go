package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

// memCounterStore is an in-memory CounterStore for tests
type memCounterStore struct {
	entries []Entry
}

func (s *memCounterStore) CountSince(ctx context.Context, key string, since time.Time) (int, error) {
	count := 0
	for _, e := range s.entries {
		if e.Key == key && !e.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *memCounterStore) Record(ctx context.Context, entry Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

// failingCounterStore fails on demand
type failingCounterStore struct {
	failCount  bool
	failRecord bool
	recorded   int
}

func (s *failingCounterStore) CountSince(ctx context.Context, key string, since time.Time) (int, error) {
	if s.failCount {
		return 0, errors.New("connection refused")
	}
	return 0, nil
}

func (s *failingCounterStore) Record(ctx context.Context, entry Entry) error {
	if s.failRecord {
		return errors.New("connection refused")
	}
	s.recorded++
	return nil
}

func TestBuildKey(t *testing.T) {
	if got := BuildKey("t1", "u1", "fn"); got != "t1:u1:fn" {
		t.Fatalf("expected t1:u1:fn, got %s", got)
	}
	if got := BuildKey("t1", "", "fn"); got != "t1:fn" {
		t.Fatalf("expected t1:fn, got %s", got)
	}
}

func TestCheck_AllowsUpToLimit(t *testing.T) {
	ctx := context.Background()
	store := &memCounterStore{}
	req := Request{TenantID: "t1", UserID: "u1", FunctionName: "fn", MaxPerWindow: 3, WindowSeconds: 60}

	for i := 0; i < 3; i++ {
		result, err := Check(ctx, store, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.Allowed {
			t.Fatalf("call %d: expected allowed", i+1)
		}
		if result.CurrentCount != i {
			t.Fatalf("call %d: expected current count %d, got %d", i+1, i, result.CurrentCount)
		}
		if result.Remaining != 3-i-1 {
			t.Fatalf("call %d: expected remaining %d, got %d", i+1, 3-i-1, result.Remaining)
		}
	}

	result, err := Check(ctx, store, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Allowed {
		t.Fatalf("call 4: expected blocked")
	}
	if result.Remaining != 0 {
		t.Fatalf("call 4: expected remaining 0, got %d", result.Remaining)
	}
	if result.CurrentCount != 3 {
		t.Fatalf("call 4: expected current count 3, got %d", result.CurrentCount)
	}

	// Blocked calls are not recorded
	if len(store.entries) != 3 {
		t.Fatalf("expected 3 recorded entries, got %d", len(store.entries))
	}
}

func TestCheck_SlidingWindowExpiry(t *testing.T) {
	ctx := context.Background()
	store := &memCounterStore{}
	req := Request{TenantID: "t1", FunctionName: "fn", MaxPerWindow: 1, WindowSeconds: 60}

	if result, _ := Check(ctx, store, req); !result.Allowed {
		t.Fatalf("first call: expected allowed")
	}
	if result, _ := Check(ctx, store, req); result.Allowed {
		t.Fatalf("second call: expected blocked")
	}

	// Age the recorded entry past the window
	store.entries[0].CreatedAt = time.Now().Add(-61 * time.Second)

	result, err := Check(ctx, store, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("expected allowed after window expiry")
	}
}

func TestCheck_KeyIsolation(t *testing.T) {
	ctx := context.Background()
	store := &memCounterStore{}

	base := Request{FunctionName: "fn", MaxPerWindow: 1, WindowSeconds: 60}

	exhaust := base
	exhaust.TenantID = "t1"
	exhaust.UserID = "u1"
	if result, _ := Check(ctx, store, exhaust); !result.Allowed {
		t.Fatalf("expected first call allowed")
	}
	if result, _ := Check(ctx, store, exhaust); result.Allowed {
		t.Fatalf("expected t1:u1 exhausted")
	}

	// Another user in the same tenant has a fresh window
	otherUser := exhaust
	otherUser.UserID = "u2"
	if result, _ := Check(ctx, store, otherUser); !result.Allowed {
		t.Fatalf("expected t1:u2 allowed")
	}

	// Another tenant has a fresh window
	otherTenant := exhaust
	otherTenant.TenantID = "t2"
	if result, _ := Check(ctx, store, otherTenant); !result.Allowed {
		t.Fatalf("expected t2:u1 allowed")
	}

	// Another function has a fresh window
	otherFn := exhaust
	otherFn.FunctionName = "other"
	if result, _ := Check(ctx, store, otherFn); !result.Allowed {
		t.Fatalf("expected other function allowed")
	}

	// The tenant-wide key (no user) is separate from per-user keys
	tenantWide := exhaust
	tenantWide.UserID = ""
	if result, _ := Check(ctx, store, tenantWide); !result.Allowed {
		t.Fatalf("expected tenant-wide key allowed")
	}
}

func TestCheck_Defaults(t *testing.T) {
	ctx := context.Background()
	store := &memCounterStore{}

	result, err := Check(ctx, store, Request{TenantID: "t1", FunctionName: "fn"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("expected allowed")
	}
	if result.Remaining != DefaultMaxPerWindow-1 {
		t.Fatalf("expected remaining %d, got %d", DefaultMaxPerWindow-1, result.Remaining)
	}

	wantReset := time.Now().Add(DefaultWindowSeconds * time.Second)
	if result.ResetAt.Before(wantReset.Add(-2*time.Second)) || result.ResetAt.After(wantReset.Add(2*time.Second)) {
		t.Fatalf("reset time %s not within default window of %s", result.ResetAt, wantReset)
	}
}

func TestCheck_InvalidRequest(t *testing.T) {
	ctx := context.Background()
	store := &memCounterStore{}

	if _, err := Check(ctx, store, Request{FunctionName: "fn"}); err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest for missing tenant, got %v", err)
	}
	if _, err := Check(ctx, store, Request{TenantID: "t1"}); err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest for missing function, got %v", err)
	}
	if len(store.entries) != 0 {
		t.Fatalf("invalid requests must not record entries")
	}
}

func TestCheck_FailsOpenOnCountError(t *testing.T) {
	ctx := context.Background()
	store := &failingCounterStore{failCount: true}

	result, err := Check(ctx, store, Request{TenantID: "t1", FunctionName: "fn", MaxPerWindow: 5})
	if err != nil {
		t.Fatalf("store failure must not surface as error, got %v", err)
	}
	if !result.Allowed {
		t.Fatalf("expected fail-open allow")
	}
	if result.Remaining != 5 {
		t.Fatalf("expected full window remaining, got %d", result.Remaining)
	}
	if result.CurrentCount != 0 {
		t.Fatalf("expected current count 0, got %d", result.CurrentCount)
	}
}

func TestCheck_FailsOpenOnRecordError(t *testing.T) {
	ctx := context.Background()
	store := &failingCounterStore{failRecord: true}

	result, err := Check(ctx, store, Request{TenantID: "t1", FunctionName: "fn", MaxPerWindow: 5})
	if err != nil {
		t.Fatalf("store failure must not surface as error, got %v", err)
	}
	if !result.Allowed {
		t.Fatalf("expected fail-open allow")
	}
	if result.Remaining != 5 {
		t.Fatalf("expected full window remaining, got %d", result.Remaining)
	}
}
