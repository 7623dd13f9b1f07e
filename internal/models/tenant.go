package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant represents a customer organization. All documents, inbound
// assignments and rate-limit quotas are scoped to a tenant.
type Tenant struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`

	// Limits
	MaxUserCount     int `json:"maxUserCount" db:"max_user_count"`
	MaxStorageMB     int `json:"maxStorageMb" db:"max_storage_mb"`
	MaxDocumentCount int `json:"maxDocumentCount" db:"max_document_count"`

	// Billing
	BillingEmail string `json:"billingEmail,omitempty" db:"billing_email"`
	BillingPlan  string `json:"billingPlan,omitempty" db:"billing_plan"`

	// Status
	IsActive    bool       `json:"isActive" db:"is_active"`
	SuspendedAt *time.Time `json:"suspendedAt,omitempty" db:"suspended_at"`
}
