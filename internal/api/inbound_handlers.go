package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/systemofatown/intake-server/internal/models"
	"github.com/systemofatown/intake-server/internal/routing"
	"github.com/systemofatown/intake-server/internal/storage"
)

// ========== Inbound item handlers ==========

// HandleListInboundItems lists items in the shared intake area
func (s *RESTServer) HandleListInboundItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, offset := parsePagination(r)

	var filters storage.InboundItemFilters
	if v := r.URL.Query().Get("status"); v != "" {
		status := models.InboundStatus(v)
		filters.Status = &status
	}
	if v := r.URL.Query().Get("source"); v != "" {
		source := models.InboundSource(v)
		filters.Source = &source
	}
	if v := r.URL.Query().Get("tenant_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid tenant_id")
			return
		}
		filters.TenantID = &id
	}

	items, total, err := s.store.ListInboundItems(ctx, filters, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
	})
}

// HandleCaptureInboundItem captures a new item into the intake area
func (s *RESTServer) HandleCaptureInboundItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source        string           `json:"source" validate:"required,oneof=caya email upload api"`
		ExternalID    *string          `json:"external_id"`
		SenderInfo    models.Variables `json:"sender_info"`
		RecipientInfo models.Variables `json:"recipient_info"`
		FileName      *string          `json:"file_name"`
		FilePath      *string          `json:"file_path"`
		MimeType      *string          `json:"mime_type"`
		FileSizeBytes *int64           `json:"file_size_bytes"`
		Metadata      models.Variables `json:"metadata"`
		Notes         *string          `json:"notes"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	item := &models.InboundItem{
		Source:        models.InboundSource(req.Source),
		ExternalID:    req.ExternalID,
		SenderInfo:    req.SenderInfo,
		RecipientInfo: req.RecipientInfo,
		FileName:      req.FileName,
		FilePath:      req.FilePath,
		MimeType:      req.MimeType,
		FileSizeBytes: req.FileSizeBytes,
		Metadata:      req.Metadata,
		Status:        models.InboundStatusPending,
		Notes:         req.Notes,
	}

	if err := s.store.CreateInboundItem(r.Context(), item); err != nil {
		if err == storage.ErrDuplicateKey {
			s.respondError(w, http.StatusConflict, "external_id already captured")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.notifier != nil {
		s.notifier.ItemReceived(r.Context(), item)
	}

	s.respondJSON(w, http.StatusCreated, item)
}

// HandleGetInboundItem gets an inbound item by ID
func (s *RESTServer) HandleGetInboundItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := s.store.GetInboundItem(r.Context(), id)
	if err == storage.ErrNotFound {
		s.respondError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, item)
}

// HandleRouteInboundItem delivers an item into a tenant's document space
func (s *RESTServer) HandleRouteInboundItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req struct {
		TargetTenantID uuid.UUID  `json:"target_tenant_id"`
		MandateID      *uuid.UUID `json:"mandate_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TargetTenantID == uuid.Nil {
		s.respondError(w, http.StatusBadRequest, "target_tenant_id is required")
		return
	}

	// Refuse delivery into suspended tenants
	tenant, err := s.store.GetTenant(ctx, req.TargetTenantID)
	if err == storage.ErrNotFound {
		s.respondError(w, http.StatusNotFound, "tenant not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !tenant.IsActive {
		s.respondError(w, http.StatusConflict, "tenant is suspended")
		return
	}

	mandateID := req.MandateID
	if mandateID == nil {
		mandateID = s.resolveMandate(ctx, req.TargetTenantID)
	}

	result := s.itemRouter.RouteToZone2(ctx, id, req.TargetTenantID, mandateID)
	switch {
	case result.Success:
		s.respondJSON(w, http.StatusOK, result)
	case result.NotFound():
		s.respondJSON(w, http.StatusNotFound, result)
	case result.AlreadyRouted():
		s.respondJSON(w, http.StatusConflict, result)
	default:
		s.respondJSON(w, http.StatusInternalServerError, result)
	}
}

// resolveMandate picks the mandate for a delivery when the caller names
// none: the matching routing rule's mandate first, then the tenant's active
// mandate. A delivery without a mandate is still legal.
func (s *RESTServer) resolveMandate(ctx context.Context, tenantID uuid.UUID) *uuid.UUID {
	rules, err := s.store.ListRoutingRules(ctx, true)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load routing rules for mandate lookup")
	} else if rule := routing.MatchRoutingRule(tenantID, rules); rule != nil && rule.MandateID != nil {
		return rule.MandateID
	}

	mandate, err := s.store.GetActiveMandate(ctx, tenantID)
	if err != nil {
		if err != storage.ErrNotFound {
			log.Warn().Err(err).Str("tenant", tenantID.String()).Msg("Failed to load active mandate")
		}
		return nil
	}
	return &mandate.ID
}

// HandleUpdateInboundItemStatus archives or rejects an item
func (s *RESTServer) HandleUpdateInboundItemStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req struct {
		Status string `json:"status" validate:"required,oneof=archived rejected"`
		Reason string `json:"reason"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := s.store.GetInboundItem(ctx, id)
	if err == storage.ErrNotFound {
		s.respondError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Routed items are no longer in the intake area
	if item.RoutedToZone2At != nil {
		s.respondError(w, http.StatusConflict, "item already routed")
		return
	}

	status := models.InboundStatus(req.Status)
	if err := s.store.UpdateInboundItemStatus(ctx, id, status); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	eventType := models.EventTypeItemArchived
	if status == models.InboundStatusRejected {
		eventType = models.EventTypeItemRejected
	}
	event := &models.EventLog{
		InboundItemID: &item.ID,
		Type:          eventType,
		Level:         models.EventLevelInfo,
		Code:          string(status),
		Description:   "Inbound item " + req.Status,
	}
	if req.Reason != "" {
		event.Details = models.Variables{"reason": req.Reason}
	}
	if err := s.store.CreateEventLog(ctx, event); err != nil {
		log.Warn().Err(err).Str("item", id.String()).Msg("Failed to record status event")
	}

	item.Status = status
	s.respondJSON(w, http.StatusOK, item)
}

// HandleGetMailbox returns a tenant's inbound mailbox address. Addresses
// are derived from the tenant id under the configured intake domain, so no
// provisioning state is kept: the first lookup is the provisioning.
func (s *RESTServer) HandleGetMailbox(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := claimsFromContext(ctx)

	var tenantID uuid.UUID
	if claims != nil && !claims.IsPlatformAdmin {
		if claims.TenantID == nil {
			s.respondError(w, http.StatusForbidden, "no active tenant")
			return
		}
		tenantID = *claims.TenantID
	} else {
		id, err := uuid.Parse(r.URL.Query().Get("tenant_id"))
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid tenant_id")
			return
		}
		tenantID = id
	}

	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err == storage.ErrNotFound {
		s.respondError(w, http.StatusNotFound, "tenant not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"tenant_id": tenant.ID,
		"address":   mailboxAddress(tenant.ID, s.config.Intake.AddressDomain),
		"domain":    s.config.Intake.AddressDomain,
	})
}

// mailboxAddress derives the stable inbound address for a tenant
func mailboxAddress(tenantID uuid.UUID, domain string) string {
	prefix := strings.SplitN(tenantID.String(), "-", 2)[0]
	return fmt.Sprintf("post-%s@%s", prefix, domain)
}

// HandleListInboundItemLinks lists the delivery links created for an item
func (s *RESTServer) HandleListInboundItemLinks(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	links, err := s.store.ListDocumentLinks(r.Context(), models.LinkTypePostserviceDelivery, id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"links": links,
		"total": len(links),
	})
}
