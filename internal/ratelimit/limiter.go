// Package ratelimit implements the tenant- and function-scoped request gate
// used by the API layer. State lives entirely in an external counter store;
// each check is a single synchronous count-and-record with no retries.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Defaults per call when the request does not override them
const (
	DefaultMaxPerWindow  = 60
	DefaultWindowSeconds = 60
)

// ErrInvalidRequest is returned when required request fields are missing
var ErrInvalidRequest = errors.New("ratelimit: tenant id and function name are required")

// Entry is one accepted call, recorded for future windows
type Entry struct {
	Key          string
	TenantID     string
	UserID       *string
	FunctionName string
	CreatedAt    time.Time
}

// CounterStore is the persistent, append-only call counter
type CounterStore interface {
	// CountSince returns the number of recorded calls for key with a
	// creation timestamp >= since.
	CountSince(ctx context.Context, key string, since time.Time) (int, error)

	// Record appends one call. Rows are never updated or deleted here;
	// expiry is the store's concern.
	Record(ctx context.Context, entry Entry) error
}

// Request describes one rate-limit check
type Request struct {
	TenantID     string
	UserID       string
	FunctionName string

	// MaxPerWindow and WindowSeconds fall back to the defaults when <= 0
	MaxPerWindow  int
	WindowSeconds int
}

// Result is the decision for one call
type Result struct {
	Allowed      bool      `json:"allowed"`
	Remaining    int       `json:"remaining"`
	ResetAt      time.Time `json:"resetAt"`
	CurrentCount int       `json:"currentCount"`
}

// BuildKey builds the composite counter key. The user id segment is only
// present when a user is known, so tenant-wide and per-user limits use
// distinct keys.
func BuildKey(tenantID, userID, functionName string) string {
	if userID != "" {
		return fmt.Sprintf("%s:%s:%s", tenantID, userID, functionName)
	}
	return fmt.Sprintf("%s:%s", tenantID, functionName)
}

// Check decides whether one more call for the request's key may proceed
// within the sliding window, and records the call when admitted.
//
// Store failures never block the caller: the check fails open with a full
// window and a warning log. An abuse guard losing its counter store must not
// turn into an outage of the guarded endpoint.
func Check(ctx context.Context, store CounterStore, req Request) (Result, error) {
	if req.TenantID == "" || req.FunctionName == "" {
		return Result{}, ErrInvalidRequest
	}

	maxPerWindow := req.MaxPerWindow
	if maxPerWindow < 1 {
		maxPerWindow = DefaultMaxPerWindow
	}
	windowSeconds := req.WindowSeconds
	if windowSeconds < 1 {
		windowSeconds = DefaultWindowSeconds
	}

	now := time.Now()
	window := time.Duration(windowSeconds) * time.Second
	windowStart := now.Add(-window)
	resetAt := now.Add(window)

	key := BuildKey(req.TenantID, req.UserID, req.FunctionName)

	currentCount, err := store.CountSince(ctx, key, windowStart)
	if err != nil {
		log.Warn().Err(err).
			Str("key", key).
			Str("function", req.FunctionName).
			Msg("Rate limit count failed, failing open")
		return failOpen(maxPerWindow, resetAt), nil
	}

	allowed := currentCount < maxPerWindow

	if allowed {
		entry := Entry{
			Key:          key,
			TenantID:     req.TenantID,
			FunctionName: req.FunctionName,
			CreatedAt:    now,
		}
		if req.UserID != "" {
			userID := req.UserID
			entry.UserID = &userID
		}

		if err := store.Record(ctx, entry); err != nil {
			log.Warn().Err(err).
				Str("key", key).
				Str("function", req.FunctionName).
				Msg("Rate limit record failed, failing open")
			return failOpen(maxPerWindow, resetAt), nil
		}
	}

	remaining := maxPerWindow - currentCount
	if allowed {
		remaining--
	}
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:      allowed,
		Remaining:    remaining,
		ResetAt:      resetAt,
		CurrentCount: currentCount,
	}, nil
}

func failOpen(maxPerWindow int, resetAt time.Time) Result {
	return Result{
		Allowed:      true,
		Remaining:    maxPerWindow,
		ResetAt:      resetAt,
		CurrentCount: 0,
	}
}
