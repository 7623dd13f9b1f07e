package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/systemofatown/intake-server/internal/models"
)

// ========== Document Methods ==========

// CreateDocument creates a document owned by a tenant
func (s *PostgresStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}

	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	query := `
		INSERT INTO documents (
			id, created_at, updated_at, tenant_id, name, file_path,
			mime_type, file_size_bytes, source, public_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.getDB().ExecContext(ctx, query,
		doc.ID, doc.CreatedAt, doc.UpdatedAt, doc.TenantID, doc.Name,
		doc.FilePath, doc.MimeType, doc.FileSizeBytes, doc.Source,
		doc.PublicID,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetDocument gets a document by ID
func (s *PostgresStore) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	query := `
		SELECT id, created_at, updated_at, tenant_id, name, file_path,
		       mime_type, file_size_bytes, source, public_id
		FROM documents
		WHERE id = $1`

	doc := &models.Document{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&doc.ID, &doc.CreatedAt, &doc.UpdatedAt, &doc.TenantID, &doc.Name,
		&doc.FilePath, &doc.MimeType, &doc.FileSizeBytes, &doc.Source,
		&doc.PublicID,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return doc, err
}

// ListDocuments lists a tenant's documents
func (s *PostgresStore) ListDocuments(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Document, int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE tenant_id = $1", tenantID,
	).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, created_at, updated_at, tenant_id, name, file_path,
		       mime_type, file_size_bytes, source, public_id
		FROM documents
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.getDB().QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc := &models.Document{}
		err := rows.Scan(
			&doc.ID, &doc.CreatedAt, &doc.UpdatedAt, &doc.TenantID,
			&doc.Name, &doc.FilePath, &doc.MimeType, &doc.FileSizeBytes,
			&doc.Source, &doc.PublicID,
		)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}

	return docs, count, nil
}

// ========== Document Link Methods ==========

// CreateDocumentLink creates a document link
func (s *PostgresStore) CreateDocumentLink(ctx context.Context, link *models.DocumentLink) error {
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}

	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO document_links (
			id, created_at, tenant_id, document_id, object_type, object_id, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.getDB().ExecContext(ctx, query,
		link.ID, link.CreatedAt, link.TenantID, link.DocumentID,
		link.ObjectType, link.ObjectID, link.Status,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// ListDocumentLinks lists links by linked object
func (s *PostgresStore) ListDocumentLinks(ctx context.Context, objectType string, objectID uuid.UUID) ([]*models.DocumentLink, error) {
	query := `
		SELECT id, created_at, tenant_id, document_id, object_type, object_id, status
		FROM document_links
		WHERE object_type = $1 AND object_id = $2
		ORDER BY created_at`

	rows, err := s.getDB().QueryContext(ctx, query, objectType, objectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*models.DocumentLink
	for rows.Next() {
		link := &models.DocumentLink{}
		err := rows.Scan(
			&link.ID, &link.CreatedAt, &link.TenantID, &link.DocumentID,
			&link.ObjectType, &link.ObjectID, &link.Status,
		)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}

	return links, nil
}
