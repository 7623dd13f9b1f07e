package models

import (
	"time"

	"github.com/google/uuid"
)

// RateLimitCounter represents one accepted call against a rate-limit key.
// Rows are append-only: counts are derived by range-querying created_at,
// never by mutating a row in place. Expiry is an external concern.
type RateLimitCounter struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	CounterKey   string  `json:"counterKey" db:"counter_key"`
	TenantID     string  `json:"tenantId" db:"tenant_id"`
	UserID       *string `json:"userId,omitempty" db:"user_id"`
	FunctionName string  `json:"functionName" db:"function_name"`
}
