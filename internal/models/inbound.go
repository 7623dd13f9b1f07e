package models

import (
	"time"

	"github.com/google/uuid"
)

// InboundSource represents where an inbound item was captured from
type InboundSource string

const (
	InboundSourceCaya   InboundSource = "caya"
	InboundSourceEmail  InboundSource = "email"
	InboundSourceUpload InboundSource = "upload"
	InboundSourceAPI    InboundSource = "api"
)

// InboundStatus represents the lifecycle state of an inbound item
type InboundStatus string

const (
	InboundStatusPending  InboundStatus = "pending"
	InboundStatusAssigned InboundStatus = "assigned"
	InboundStatusArchived InboundStatus = "archived"
	InboundStatusRejected InboundStatus = "rejected"
)

// InboundItem represents a captured external artifact (scanned postal mail,
// an email attachment, an upload) waiting in the shared intake area until it
// is assigned to a tenant's document space.
//
// RoutedToZone2At is set exactly once, by the router, and doubles as the
// idempotency guard: an item with a non-nil routed timestamp is never
// routed again.
type InboundItem struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Source     InboundSource `json:"source" db:"source"`
	ExternalID *string       `json:"externalId,omitempty" db:"external_id"`

	SenderInfo    Variables `json:"senderInfo,omitempty" db:"sender_info"`
	RecipientInfo Variables `json:"recipientInfo,omitempty" db:"recipient_info"`

	// Raw file reference
	FileName      *string `json:"fileName,omitempty" db:"file_name"`
	FilePath      *string `json:"filePath,omitempty" db:"file_path"`
	MimeType      *string `json:"mimeType,omitempty" db:"mime_type"`
	FileSizeBytes *int64  `json:"fileSizeBytes,omitempty" db:"file_size_bytes"`

	Metadata Variables `json:"metadata,omitempty" db:"metadata"`

	Status InboundStatus `json:"status" db:"status"`

	AssignedTenantID *uuid.UUID `json:"assignedTenantId,omitempty" db:"assigned_tenant_id"`
	AssignedBy       *uuid.UUID `json:"assignedBy,omitempty" db:"assigned_by"`
	AssignedAt       *time.Time `json:"assignedAt,omitempty" db:"assigned_at"`

	MandateID       *uuid.UUID `json:"mandateId,omitempty" db:"mandate_id"`
	RoutedToZone2At *time.Time `json:"routedToZone2At,omitempty" db:"routed_to_zone2_at"`

	Notes *string `json:"notes,omitempty" db:"notes"`
}

// RoutingRule maps inbound items to a destination tenant. Among active rules
// targeting the same tenant, the highest priority wins.
type RoutingRule struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`

	IsActive bool `json:"isActive" db:"is_active"`
	Priority int  `json:"priority" db:"priority"`

	TargetTenantID uuid.UUID  `json:"targetTenantId" db:"target_tenant_id"`
	MandateID      *uuid.UUID `json:"mandateId,omitempty" db:"mandate_id"`

	MatchConditions Variables `json:"matchConditions,omitempty" db:"match_conditions"`
}

// PostserviceMandate represents a tenant's postal forwarding mandate
type PostserviceMandate struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	TenantID uuid.UUID `json:"tenantId" db:"tenant_id"`
	Type     string    `json:"type" db:"type"`
	Status   string    `json:"status" db:"status"`

	RevokedAt *time.Time `json:"revokedAt,omitempty" db:"revoked_at"`
}
