package routing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/systemofatown/intake-server/internal/models"
	"github.com/systemofatown/intake-server/internal/storage"
)

// Operator-facing result messages. The portal surfaces these verbatim.
const (
	msgItemNotFound   = "Inbound item nicht gefunden"
	msgAlreadyRouted  = "Bereits zugestellt"
	msgDocumentFailed = "Dokument-Erstellung fehlgeschlagen"
	msgStatusFailed   = "Status-Update fehlgeschlagen"
)

// DefaultDocumentName names routed postal mail without a source filename
const DefaultDocumentName = "Zugestellte Post"

// RouteResult is the outcome of a routing attempt. Routing never returns a
// Go error to its caller; every failure path lands here.
type RouteResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// NotFound reports whether the attempt failed because the item does not exist
func (r RouteResult) NotFound() bool {
	return r.Error == msgItemNotFound
}

// AlreadyRouted reports whether the attempt failed because the item was
// delivered before
func (r RouteResult) AlreadyRouted() bool {
	return r.Error == msgAlreadyRouted
}

// Notifier is told about successful deliveries
type Notifier interface {
	ItemRouted(ctx context.Context, item *models.InboundItem, doc *models.Document)
}

// Router moves inbound items from the shared intake area into a tenant's
// document space exactly once.
//
// The routed timestamp is the idempotency guard, and the unrouted ->
// assigned transition is claimed atomically (conditional update on
// routed_to_zone2_at IS NULL) before the document is written, inside one
// transaction. Concurrent calls for the same item therefore cannot deliver
// twice: the losing caller's claim updates zero rows and it reports
// "Bereits zugestellt".
type Router struct {
	store    storage.Store
	notifier Notifier
}

// NewRouter creates a router. notifier may be nil.
func NewRouter(store storage.Store, notifier Notifier) *Router {
	return &Router{store: store, notifier: notifier}
}

// RouteToZone2 delivers an inbound item into targetTenantID's document
// space: claim the item, create the document, commit, then link. The link
// write is deliberately outside the transaction and non-fatal — a missing
// link is operator-repairable, a duplicate document is not.
func (r *Router) RouteToZone2(ctx context.Context, itemID, targetTenantID uuid.UUID, mandateID *uuid.UUID) RouteResult {
	now := time.Now()

	tx, err := r.store.BeginTx(ctx)
	if err != nil {
		log.Error().Err(err).Str("item", itemID.String()).Msg("Route: begin transaction failed")
		return RouteResult{Success: false, Error: err.Error()}
	}

	item, err := tx.GetInboundItem(ctx, itemID)
	if err == storage.ErrNotFound {
		tx.Rollback()
		return RouteResult{Success: false, Error: msgItemNotFound}
	}
	if err != nil {
		tx.Rollback()
		log.Error().Err(err).Str("item", itemID.String()).Msg("Route: load inbound item failed")
		return RouteResult{Success: false, Error: err.Error()}
	}

	if item.RoutedToZone2At != nil {
		tx.Rollback()
		return RouteResult{Success: false, Error: msgAlreadyRouted}
	}

	claimed, err := tx.ClaimInboundItem(ctx, itemID, targetTenantID, mandateID, now)
	if err != nil {
		tx.Rollback()
		log.Error().Err(err).Str("item", itemID.String()).Msg("Route: claim failed")
		return RouteResult{Success: false, Error: msgStatusFailed}
	}
	if !claimed {
		// Lost the race to a concurrent caller
		tx.Rollback()
		return RouteResult{Success: false, Error: msgAlreadyRouted}
	}

	doc := buildDocument(item, targetTenantID, now)
	if err := tx.CreateDocument(ctx, doc); err != nil {
		// Rolling back undoes the claim, so the item stays unrouted and a
		// retry is safe
		tx.Rollback()
		log.Error().Err(err).
			Str("item", itemID.String()).
			Str("tenant", targetTenantID.String()).
			Msg("Route: document creation failed")
		return RouteResult{Success: false, Error: msgDocumentFailed}
	}

	if err := tx.Commit(); err != nil {
		log.Error().Err(err).Str("item", itemID.String()).Msg("Route: commit failed")
		return RouteResult{Success: false, Error: msgStatusFailed}
	}

	link := &models.DocumentLink{
		TenantID:   targetTenantID,
		DocumentID: doc.ID,
		ObjectType: models.LinkTypePostserviceDelivery,
		ObjectID:   item.ID,
		Status:     models.LinkStatusCurrent,
	}
	if err := r.store.CreateDocumentLink(ctx, link); err != nil {
		// The document is delivered; surface the broken link in the logs
		// and event trail only
		log.Error().Err(err).
			Str("item", itemID.String()).
			Str("document", doc.ID.String()).
			Msg("Route: document delivered but link creation failed")

		r.logLinkFailure(ctx, item, doc, err)
	}

	item.Status = models.InboundStatusAssigned
	item.AssignedTenantID = &targetTenantID
	item.AssignedAt = &now
	item.RoutedToZone2At = &now
	if mandateID != nil {
		item.MandateID = mandateID
	}

	if r.notifier != nil {
		r.notifier.ItemRouted(ctx, item, doc)
	}

	return RouteResult{Success: true}
}

func (r *Router) logLinkFailure(ctx context.Context, item *models.InboundItem, doc *models.Document, cause error) {
	tenantID := doc.TenantID
	event := &models.EventLog{
		TenantID:      &tenantID,
		InboundItemID: &item.ID,
		DocumentID:    &doc.ID,
		Type:          models.EventTypeLinkFailed,
		Level:         models.EventLevelError,
		Code:          "link_failed",
		Description:   "Dokument zugestellt, Verknüpfung fehlgeschlagen",
		Details:       models.Variables{"error": cause.Error()},
	}
	if err := r.store.CreateEventLog(ctx, event); err != nil {
		log.Warn().Err(err).Str("item", item.ID.String()).Msg("Route: link failure event not recorded")
	}
}

func buildDocument(item *models.InboundItem, tenantID uuid.UUID, now time.Time) *models.Document {
	doc := &models.Document{
		TenantID:      tenantID,
		Name:          DefaultDocumentName,
		MimeType:      "application/pdf",
		FileSizeBytes: 0,
		Source:        models.DocumentSourcePostservice,
		PublicID:      buildPublicID(item.ID, now),
	}

	if item.FileName != nil && *item.FileName != "" {
		doc.Name = *item.FileName
	}
	if item.FilePath != nil {
		doc.FilePath = *item.FilePath
	}
	if item.MimeType != nil && *item.MimeType != "" {
		doc.MimeType = *item.MimeType
	}
	if item.FileSizeBytes != nil {
		doc.FileSizeBytes = *item.FileSizeBytes
	}

	return doc
}

// buildPublicID derives a traceable, collision-free identifier from the item
// id prefix and the routing time, without a central sequence
func buildPublicID(itemID uuid.UUID, now time.Time) string {
	prefix := strings.SplitN(itemID.String(), "-", 2)[0]
	return fmt.Sprintf("POST-%s-%d", prefix, now.Unix())
}
