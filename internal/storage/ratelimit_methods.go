package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/systemofatown/intake-server/internal/models"
)

// CountRateLimitCounters counts accepted calls for a key since the window
// start. Counters are append-only; no row is ever updated in place.
func (s *PostgresStore) CountRateLimitCounters(ctx context.Context, key string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM rate_limit_counters
		WHERE counter_key = $1 AND created_at >= $2`

	var count int
	err := s.getDB().QueryRowContext(ctx, query, key, since).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// CreateRateLimitCounter records one accepted call
func (s *PostgresStore) CreateRateLimitCounter(ctx context.Context, counter *models.RateLimitCounter) error {
	if counter.ID == uuid.Nil {
		counter.ID = uuid.New()
	}

	if counter.CreatedAt.IsZero() {
		counter.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO rate_limit_counters (
			id, created_at, counter_key, tenant_id, user_id, function_name
		) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.getDB().ExecContext(ctx, query,
		counter.ID, counter.CreatedAt, counter.CounterKey, counter.TenantID,
		counter.UserID, counter.FunctionName,
	)

	return err
}
