package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/systemofatown/intake-server/internal/models"
	"github.com/systemofatown/intake-server/internal/storage"
)

// ========== Routing rule handlers ==========

// HandleListRoutingRules lists routing rules
func (s *RESTServer) HandleListRoutingRules(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	rules, err := s.store.ListRoutingRules(r.Context(), activeOnly)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"total": len(rules),
	})
}

// HandleCreateRoutingRule creates a routing rule
func (s *RESTServer) HandleCreateRoutingRule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name            string           `json:"name" validate:"required,min=3,max=100"`
		Description     string           `json:"description"`
		Priority        int              `json:"priority"`
		TargetTenantID  uuid.UUID        `json:"target_tenant_id"`
		MandateID       *uuid.UUID       `json:"mandate_id"`
		MatchConditions models.Variables `json:"match_conditions"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TargetTenantID == uuid.Nil {
		s.respondError(w, http.StatusBadRequest, "target_tenant_id is required")
		return
	}

	// The target tenant must exist
	if _, err := s.store.GetTenant(r.Context(), req.TargetTenantID); err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusBadRequest, "target tenant not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rule := &models.RoutingRule{
		Name:            req.Name,
		Description:     req.Description,
		IsActive:        true,
		Priority:        req.Priority,
		TargetTenantID:  req.TargetTenantID,
		MandateID:       req.MandateID,
		MatchConditions: req.MatchConditions,
	}

	if err := s.store.CreateRoutingRule(r.Context(), rule); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, rule)
}

// HandleGetRoutingRule gets a routing rule by ID
func (s *RESTServer) HandleGetRoutingRule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	rule, err := s.store.GetRoutingRule(r.Context(), id)
	if err == storage.ErrNotFound {
		s.respondError(w, http.StatusNotFound, "rule not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, rule)
}

// HandleUpdateRoutingRule updates a routing rule
func (s *RESTServer) HandleUpdateRoutingRule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	rule, err := s.store.GetRoutingRule(r.Context(), id)
	if err == storage.ErrNotFound {
		s.respondError(w, http.StatusNotFound, "rule not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var req struct {
		Name            *string          `json:"name"`
		Description     *string          `json:"description"`
		IsActive        *bool            `json:"is_active"`
		Priority        *int             `json:"priority"`
		MandateID       *uuid.UUID       `json:"mandate_id"`
		MatchConditions models.Variables `json:"match_conditions"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.Description != nil {
		rule.Description = *req.Description
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.MandateID != nil {
		rule.MandateID = req.MandateID
	}
	if req.MatchConditions != nil {
		rule.MatchConditions = req.MatchConditions
	}

	if err := s.store.UpdateRoutingRule(r.Context(), rule); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, rule)
}

// HandleDeleteRoutingRule deletes a routing rule
func (s *RESTServer) HandleDeleteRoutingRule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	if err := s.store.DeleteRoutingRule(r.Context(), id); err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "rule not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ========== Postservice mandate handlers ==========

// HandleCreateMandate registers a postal forwarding mandate for a tenant
func (s *RESTServer) HandleCreateMandate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID uuid.UUID `json:"tenant_id"`
		Type     string    `json:"type" validate:"required,oneof=postservice caya"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TenantID == uuid.Nil {
		s.respondError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	mandate := &models.PostserviceMandate{
		TenantID: req.TenantID,
		Type:     req.Type,
		Status:   "active",
	}

	if err := s.store.CreatePostserviceMandate(r.Context(), mandate); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, mandate)
}

// HandleGetActiveMandate gets the active mandate for a tenant
func (s *RESTServer) HandleGetActiveMandate(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(r.URL.Query().Get("tenant_id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid tenant_id")
		return
	}

	mandate, err := s.store.GetActiveMandate(r.Context(), tenantID)
	if err == storage.ErrNotFound {
		s.respondError(w, http.StatusNotFound, "no active mandate")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, mandate)
}

// HandleRevokeMandate revokes a mandate
func (s *RESTServer) HandleRevokeMandate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid mandate id")
		return
	}

	if err := s.store.RevokePostserviceMandate(r.Context(), id); err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "mandate not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
