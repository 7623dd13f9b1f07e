package models

import (
	"time"

	"github.com/google/uuid"
)

// EventLog represents an event log entry
type EventLog struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	TenantID      *uuid.UUID `json:"tenantId,omitempty" db:"tenant_id"`
	InboundItemID *uuid.UUID `json:"inboundItemId,omitempty" db:"inbound_item_id"`
	DocumentID    *uuid.UUID `json:"documentId,omitempty" db:"document_id"`

	Type        EventType  `json:"type" db:"type"`
	Level       EventLevel `json:"level" db:"level"`
	Code        string     `json:"code" db:"code"`
	Description string     `json:"description" db:"description"`

	Details Variables `json:"details,omitempty" db:"details"`
}

// EventType represents event types
type EventType string

const (
	// Intake events
	EventTypeItemReceived EventType = "ITEM_RECEIVED"
	EventTypeItemRouted   EventType = "ITEM_ROUTED"
	EventTypeItemArchived EventType = "ITEM_ARCHIVED"
	EventTypeItemRejected EventType = "ITEM_REJECTED"
	EventTypeLinkFailed   EventType = "LINK_FAILED"

	// System events
	EventTypeAPICall     EventType = "API_CALL"
	EventTypeRateLimited EventType = "RATE_LIMITED"
	EventTypeError       EventType = "ERROR"
)

// EventLevel represents event severity levels
type EventLevel string

const (
	EventLevelDebug   EventLevel = "DEBUG"
	EventLevelInfo    EventLevel = "INFO"
	EventLevelWarning EventLevel = "WARNING"
	EventLevelError   EventLevel = "ERROR"
)
