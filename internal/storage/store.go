package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/systemofatown/intake-server/internal/models"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

// Store defines the storage interface
type Store interface {
	// Transaction support
	BeginTx(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error

	// User methods
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	ListUsers(ctx context.Context, tenantID *uuid.UUID, limit, offset int) ([]*models.User, int64, error)

	// Tenant methods
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	UpdateTenant(ctx context.Context, tenant *models.Tenant) error
	ListTenants(ctx context.Context, limit, offset int) ([]*models.Tenant, int64, error)

	// Inbound item methods
	CreateInboundItem(ctx context.Context, item *models.InboundItem) error
	GetInboundItem(ctx context.Context, id uuid.UUID) (*models.InboundItem, error)
	UpdateInboundItemStatus(ctx context.Context, id uuid.UUID, status models.InboundStatus) error
	ListInboundItems(ctx context.Context, filters InboundItemFilters, limit, offset int) ([]*models.InboundItem, int64, error)

	// ClaimInboundItem atomically marks an unrouted item as assigned to
	// tenantID and stamps routed_to_zone2_at. Returns false when the item
	// exists but was already routed; only the caller that observes true may
	// proceed to deliver the document.
	ClaimInboundItem(ctx context.Context, id, tenantID uuid.UUID, mandateID *uuid.UUID, routedAt time.Time) (bool, error)

	// Routing rule methods
	CreateRoutingRule(ctx context.Context, rule *models.RoutingRule) error
	GetRoutingRule(ctx context.Context, id uuid.UUID) (*models.RoutingRule, error)
	UpdateRoutingRule(ctx context.Context, rule *models.RoutingRule) error
	DeleteRoutingRule(ctx context.Context, id uuid.UUID) error
	ListRoutingRules(ctx context.Context, activeOnly bool) ([]*models.RoutingRule, error)

	// Postservice mandate methods
	CreatePostserviceMandate(ctx context.Context, mandate *models.PostserviceMandate) error
	GetActiveMandate(ctx context.Context, tenantID uuid.UUID) (*models.PostserviceMandate, error)
	RevokePostserviceMandate(ctx context.Context, id uuid.UUID) error

	// Document methods
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error)
	ListDocuments(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Document, int64, error)

	// Document link methods
	CreateDocumentLink(ctx context.Context, link *models.DocumentLink) error
	ListDocumentLinks(ctx context.Context, objectType string, objectID uuid.UUID) ([]*models.DocumentLink, error)

	// Rate limit counter methods
	CountRateLimitCounters(ctx context.Context, key string, since time.Time) (int, error)
	CreateRateLimitCounter(ctx context.Context, counter *models.RateLimitCounter) error

	// Event log methods
	CreateEventLog(ctx context.Context, event *models.EventLog) error
	ListEventLogs(ctx context.Context, filters EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error)

	// Close the store
	Close() error
}

// InboundItemFilters represents filters for inbound item listings
type InboundItemFilters struct {
	Status   *models.InboundStatus
	Source   *models.InboundSource
	TenantID *uuid.UUID
}

// EventLogFilters represents filters for event logs
type EventLogFilters struct {
	TenantID      *uuid.UUID
	InboundItemID *uuid.UUID
	Type          *models.EventType
	Level         *models.EventLevel
	StartTime     *time.Time
	EndTime       *time.Time
}
