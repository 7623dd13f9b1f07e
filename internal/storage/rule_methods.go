package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/systemofatown/intake-server/internal/models"
)

// ========== Routing Rule Methods ==========

// CreateRoutingRule creates a routing rule
func (s *PostgresStore) CreateRoutingRule(ctx context.Context, rule *models.RoutingRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}

	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	query := `
		INSERT INTO inbound_routing_rules (
			id, created_at, updated_at, name, description, is_active,
			priority, target_tenant_id, mandate_id, match_conditions
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.getDB().ExecContext(ctx, query,
		rule.ID, rule.CreatedAt, rule.UpdatedAt, rule.Name, rule.Description,
		rule.IsActive, rule.Priority, rule.TargetTenantID, rule.MandateID,
		rule.MatchConditions,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetRoutingRule gets a routing rule by ID
func (s *PostgresStore) GetRoutingRule(ctx context.Context, id uuid.UUID) (*models.RoutingRule, error) {
	query := `
		SELECT id, created_at, updated_at, name, description, is_active,
		       priority, target_tenant_id, mandate_id, match_conditions
		FROM inbound_routing_rules
		WHERE id = $1`

	rule := &models.RoutingRule{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&rule.ID, &rule.CreatedAt, &rule.UpdatedAt, &rule.Name,
		&rule.Description, &rule.IsActive, &rule.Priority,
		&rule.TargetTenantID, &rule.MandateID, &rule.MatchConditions,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return rule, err
}

// UpdateRoutingRule updates a routing rule
func (s *PostgresStore) UpdateRoutingRule(ctx context.Context, rule *models.RoutingRule) error {
	rule.UpdatedAt = time.Now()

	query := `
		UPDATE inbound_routing_rules SET
			updated_at = $2, name = $3, description = $4, is_active = $5,
			priority = $6, target_tenant_id = $7, mandate_id = $8,
			match_conditions = $9
		WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		rule.ID, rule.UpdatedAt, rule.Name, rule.Description, rule.IsActive,
		rule.Priority, rule.TargetTenantID, rule.MandateID,
		rule.MatchConditions,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteRoutingRule deletes a routing rule
func (s *PostgresStore) DeleteRoutingRule(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx,
		"DELETE FROM inbound_routing_rules WHERE id = $1", id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ListRoutingRules lists routing rules, highest priority first
func (s *PostgresStore) ListRoutingRules(ctx context.Context, activeOnly bool) ([]*models.RoutingRule, error) {
	query := `
		SELECT id, created_at, updated_at, name, description, is_active,
		       priority, target_tenant_id, mandate_id, match_conditions
		FROM inbound_routing_rules`

	if activeOnly {
		query += " WHERE is_active = true"
	}
	query += " ORDER BY priority DESC, created_at"

	rows, err := s.getDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*models.RoutingRule
	for rows.Next() {
		rule := &models.RoutingRule{}
		err := rows.Scan(
			&rule.ID, &rule.CreatedAt, &rule.UpdatedAt, &rule.Name,
			&rule.Description, &rule.IsActive, &rule.Priority,
			&rule.TargetTenantID, &rule.MandateID, &rule.MatchConditions,
		)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

// ========== Postservice Mandate Methods ==========

// CreatePostserviceMandate creates a postal forwarding mandate
func (s *PostgresStore) CreatePostserviceMandate(ctx context.Context, mandate *models.PostserviceMandate) error {
	if mandate.ID == uuid.Nil {
		mandate.ID = uuid.New()
	}

	now := time.Now()
	mandate.CreatedAt = now
	mandate.UpdatedAt = now

	if mandate.Type == "" {
		mandate.Type = "postservice_forwarding"
	}
	if mandate.Status == "" {
		mandate.Status = "active"
	}

	query := `
		INSERT INTO postservice_mandates (
			id, created_at, updated_at, tenant_id, type, status
		) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.getDB().ExecContext(ctx, query,
		mandate.ID, mandate.CreatedAt, mandate.UpdatedAt, mandate.TenantID,
		mandate.Type, mandate.Status,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetActiveMandate gets a tenant's active mandate
func (s *PostgresStore) GetActiveMandate(ctx context.Context, tenantID uuid.UUID) (*models.PostserviceMandate, error) {
	query := `
		SELECT id, created_at, updated_at, tenant_id, type, status, revoked_at
		FROM postservice_mandates
		WHERE tenant_id = $1 AND status = 'active'
		ORDER BY created_at DESC
		LIMIT 1`

	mandate := &models.PostserviceMandate{}
	err := s.getDB().QueryRowContext(ctx, query, tenantID).Scan(
		&mandate.ID, &mandate.CreatedAt, &mandate.UpdatedAt,
		&mandate.TenantID, &mandate.Type, &mandate.Status, &mandate.RevokedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return mandate, err
}

// RevokePostserviceMandate revokes a mandate
func (s *PostgresStore) RevokePostserviceMandate(ctx context.Context, id uuid.UUID) error {
	now := time.Now()

	query := `
		UPDATE postservice_mandates SET
			status = 'revoked', revoked_at = $2, updated_at = $2
		WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query, id, now)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
