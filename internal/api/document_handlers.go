package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/systemofatown/intake-server/internal/models"
	"github.com/systemofatown/intake-server/internal/storage"
)

// ========== Document handlers ==========

// HandleListDocuments lists a tenant's documents
func (s *RESTServer) HandleListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := claimsFromContext(ctx)

	limit, offset := parsePagination(r)

	// Tenant users see their own document space; admins pass tenant_id
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

	docs, total, err := s.store.ListDocuments(ctx, tenantID, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"total":     total,
	})
}

// HandleGetDocument gets a document by ID
func (s *RESTServer) HandleGetDocument(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	doc, err := s.store.GetDocument(r.Context(), id)
	if err == storage.ErrNotFound {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Documents never cross tenant boundaries
	if claims != nil && !claims.IsPlatformAdmin {
		if claims.TenantID == nil || *claims.TenantID != doc.TenantID {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
	}

	s.respondJSON(w, http.StatusOK, doc)
}

// ========== Event handlers ==========

// HandleListEvents lists event logs
func (s *RESTServer) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := claimsFromContext(ctx)

	limit, offset := parsePagination(r)

	var filters storage.EventLogFilters
	if claims != nil && !claims.IsPlatformAdmin {
		if claims.TenantID == nil {
			s.respondError(w, http.StatusForbidden, "no active tenant")
			return
		}
		filters.TenantID = claims.TenantID
	} else if v := r.URL.Query().Get("tenant_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid tenant_id")
			return
		}
		filters.TenantID = &id
	}

	if v := r.URL.Query().Get("item_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid item_id")
			return
		}
		filters.InboundItemID = &id
	}
	if v := r.URL.Query().Get("type"); v != "" {
		eventType := models.EventType(v)
		filters.Type = &eventType
	}
	if v := r.URL.Query().Get("level"); v != "" {
		level := models.EventLevel(v)
		filters.Level = &level
	}
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid start time")
			return
		}
		filters.StartTime = &t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid end time")
			return
		}
		filters.EndTime = &t
	}

	events, total, err := s.store.ListEventLogs(ctx, filters, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
	})
}

// ========== Intake state handlers ==========

// HandleGetIntakeState returns the most recent intake pipeline state
func (s *RESTServer) HandleGetIntakeState(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		s.respondError(w, http.StatusServiceUnavailable, "intake bus not configured")
		return
	}

	state := s.bus.Current()
	if state == nil {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"state": nil})
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{"state": state})
}

// HandleResetIntakeState clears the retained intake pipeline state
func (s *RESTServer) HandleResetIntakeState(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		s.respondError(w, http.StatusServiceUnavailable, "intake bus not configured")
		return
	}

	s.bus.Reset()
	w.WriteHeader(http.StatusNoContent)
}
