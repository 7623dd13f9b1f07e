package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/systemofatown/intake-server/internal/models"
)

const inboundItemColumns = `
	id, created_at, updated_at, source, external_id, sender_info,
	recipient_info, file_name, file_path, mime_type, file_size_bytes,
	metadata, status, assigned_tenant_id, assigned_by, assigned_at,
	mandate_id, routed_to_zone2_at, notes`

// CreateInboundItem creates an inbound item in the shared intake area
func (s *PostgresStore) CreateInboundItem(ctx context.Context, item *models.InboundItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}

	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	if item.Status == "" {
		item.Status = models.InboundStatusPending
	}

	query := `
		INSERT INTO inbound_items (` + inboundItemColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := s.getDB().ExecContext(ctx, query,
		item.ID, item.CreatedAt, item.UpdatedAt, item.Source, item.ExternalID,
		item.SenderInfo, item.RecipientInfo, item.FileName, item.FilePath,
		item.MimeType, item.FileSizeBytes, item.Metadata, item.Status,
		item.AssignedTenantID, item.AssignedBy, item.AssignedAt,
		item.MandateID, item.RoutedToZone2At, item.Notes,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetInboundItem gets an inbound item by ID
func (s *PostgresStore) GetInboundItem(ctx context.Context, id uuid.UUID) (*models.InboundItem, error) {
	query := `SELECT ` + inboundItemColumns + ` FROM inbound_items WHERE id = $1`

	item := &models.InboundItem{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&item.ID, &item.CreatedAt, &item.UpdatedAt, &item.Source,
		&item.ExternalID, &item.SenderInfo, &item.RecipientInfo,
		&item.FileName, &item.FilePath, &item.MimeType, &item.FileSizeBytes,
		&item.Metadata, &item.Status, &item.AssignedTenantID,
		&item.AssignedBy, &item.AssignedAt, &item.MandateID,
		&item.RoutedToZone2At, &item.Notes,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return item, err
}

// UpdateInboundItemStatus updates the status of an inbound item
func (s *PostgresStore) UpdateInboundItemStatus(ctx context.Context, id uuid.UUID, status models.InboundStatus) error {
	query := `UPDATE inbound_items SET status = $2, updated_at = $3 WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query, id, status, time.Now())
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

// ClaimInboundItem performs the atomic unrouted -> assigned transition.
// The WHERE clause on routed_to_zone2_at IS NULL makes the claim a
// compare-and-swap: of any number of concurrent callers, exactly one sees
// a row updated.
func (s *PostgresStore) ClaimInboundItem(ctx context.Context, id, tenantID uuid.UUID, mandateID *uuid.UUID, routedAt time.Time) (bool, error) {
	query := `
		UPDATE inbound_items SET
			status = $2,
			assigned_tenant_id = $3,
			assigned_at = $4,
			mandate_id = COALESCE($5, mandate_id),
			routed_to_zone2_at = $4,
			updated_at = $4
		WHERE id = $1 AND routed_to_zone2_at IS NULL`

	result, err := s.getDB().ExecContext(ctx, query,
		id, models.InboundStatusAssigned, tenantID, routedAt, mandateID,
	)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

// ListInboundItems lists inbound items with filters
func (s *PostgresStore) ListInboundItems(ctx context.Context, filters InboundItemFilters, limit, offset int) ([]*models.InboundItem, int64, error) {
	query := "SELECT COUNT(*) FROM inbound_items WHERE 1=1"
	args := []interface{}{}
	argCount := 0

	if filters.Status != nil {
		argCount++
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, *filters.Status)
	}

	if filters.Source != nil {
		argCount++
		query += fmt.Sprintf(" AND source = $%d", argCount)
		args = append(args, *filters.Source)
	}

	if filters.TenantID != nil {
		argCount++
		query += fmt.Sprintf(" AND assigned_tenant_id = $%d", argCount)
		args = append(args, *filters.TenantID)
	}

	var count int64
	err := s.getDB().QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	selectQuery := strings.Replace(query, "SELECT COUNT(*)",
		"SELECT "+inboundItemColumns, 1)

	argCount++
	selectQuery += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argCount)
	args = append(args, limit)

	argCount++
	selectQuery += fmt.Sprintf(" OFFSET $%d", argCount)
	args = append(args, offset)

	rows, err := s.getDB().QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*models.InboundItem
	for rows.Next() {
		item := &models.InboundItem{}
		err := rows.Scan(
			&item.ID, &item.CreatedAt, &item.UpdatedAt, &item.Source,
			&item.ExternalID, &item.SenderInfo, &item.RecipientInfo,
			&item.FileName, &item.FilePath, &item.MimeType,
			&item.FileSizeBytes, &item.Metadata, &item.Status,
			&item.AssignedTenantID, &item.AssignedBy, &item.AssignedAt,
			&item.MandateID, &item.RoutedToZone2At, &item.Notes,
		)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}

	return items, count, nil
}
