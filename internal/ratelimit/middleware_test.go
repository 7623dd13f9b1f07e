package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func okHandler() (http.Handler, *int) {
	calls := 0
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}), &calls
}

func staticKeyFn(tenantID, userID string) KeyFunc {
	return func(r *http.Request) (string, string) {
		return tenantID, userID
	}
}

func TestMiddleware_AllowsAndBlocks(t *testing.T) {
	store := &memCounterStore{}
	next, calls := okHandler()

	handler := Middleware(store, Options{
		FunctionName:  "fn",
		MaxPerWindow:  2,
		WindowSeconds: 60,
		KeyFn:         staticKeyFn("t1", "u1"),
	})(next)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("call %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if *calls != 2 {
		t.Fatalf("expected handler invoked twice, got %d", *calls)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("expected X-RateLimit-Remaining 0, got %q", got)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("expected Retry-After 60, got %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected json content type, got %q", got)
	}
	if _, err := time.Parse(time.RFC3339, rec.Header().Get("X-RateLimit-Reset")); err != nil {
		t.Fatalf("X-RateLimit-Reset not RFC3339: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "rate limit exceeded") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestMiddleware_SkipsWithoutTenant(t *testing.T) {
	store := &failingCounterStore{failCount: true}
	next, calls := okHandler()

	handler := Middleware(store, Options{
		FunctionName: "fn",
		KeyFn:        staticKeyFn("", ""),
	})(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if *calls != 1 {
		t.Fatalf("expected handler invoked, got %d calls", *calls)
	}
}

func TestMiddleware_FailsOpenOnStoreError(t *testing.T) {
	store := &failingCounterStore{failCount: true}
	next, calls := okHandler()

	handler := Middleware(store, Options{
		FunctionName: "fn",
		KeyFn:        staticKeyFn("t1", "u1"),
	})(next)

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("call %d: expected fail-open 200, got %d", i+1, rec.Code)
		}
	}
	if *calls != 5 {
		t.Fatalf("expected 5 handler calls, got %d", *calls)
	}
}
