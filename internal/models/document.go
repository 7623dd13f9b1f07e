package models

import (
	"time"

	"github.com/google/uuid"
)

// Document source tags
const (
	DocumentSourcePostservice = "postservice"
	DocumentSourceUpload      = "upload"
	DocumentSourceEmail       = "email"
)

// Document link object types and statuses
const (
	LinkTypePostserviceDelivery = "postservice_delivery"
	LinkTypeInboundEmail        = "inbound_email"

	LinkStatusCurrent  = "current"
	LinkStatusArchived = "archived"
)

// Document represents a file owned by a tenant
type Document struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	TenantID uuid.UUID `json:"tenantId" db:"tenant_id"`

	Name          string `json:"name" db:"name"`
	FilePath      string `json:"filePath" db:"file_path"`
	MimeType      string `json:"mimeType" db:"mime_type"`
	FileSizeBytes int64  `json:"fileSizeBytes" db:"file_size_bytes"`

	// Provenance tag, e.g. "postservice" for routed postal mail
	Source string `json:"source" db:"source"`

	// Human-readable identifier, unique without a central sequence
	PublicID string `json:"publicId" db:"public_id"`
}

// DocumentLink associates a document with another object (for routed post:
// the inbound item it was delivered from), making the document visible in
// the tenant's organizational views. A document created by routing is never
// linked to more than one tenant.
type DocumentLink struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	TenantID   uuid.UUID `json:"tenantId" db:"tenant_id"`
	DocumentID uuid.UUID `json:"documentId" db:"document_id"`

	ObjectType string    `json:"objectType" db:"object_type"`
	ObjectID   uuid.UUID `json:"objectId" db:"object_id"`

	Status string `json:"status" db:"status"`
}
