package ratelimit

import (
	"context"
	"time"

	"github.com/systemofatown/intake-server/internal/models"
	"github.com/systemofatown/intake-server/internal/storage"
)

// DBCounterStore backs the rate limiter with the rate_limit_counters table
type DBCounterStore struct {
	store storage.Store
}

// NewDBCounterStore creates a database-backed counter store
func NewDBCounterStore(store storage.Store) *DBCounterStore {
	return &DBCounterStore{store: store}
}

// CountSince implements CounterStore
func (s *DBCounterStore) CountSince(ctx context.Context, key string, since time.Time) (int, error) {
	return s.store.CountRateLimitCounters(ctx, key, since)
}

// Record implements CounterStore
func (s *DBCounterStore) Record(ctx context.Context, entry Entry) error {
	return s.store.CreateRateLimitCounter(ctx, &models.RateLimitCounter{
		CreatedAt:    entry.CreatedAt,
		CounterKey:   entry.Key,
		TenantID:     entry.TenantID,
		UserID:       entry.UserID,
		FunctionName: entry.FunctionName,
	})
}
