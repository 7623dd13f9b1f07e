package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/systemofatown/intake-server/internal/models"
	"github.com/systemofatown/intake-server/internal/storage"
)

type recordingNotifier struct {
	items []uuid.UUID
	docs  []uuid.UUID
}

func (n *recordingNotifier) ItemRouted(ctx context.Context, item *models.InboundItem, doc *models.Document) {
	n.items = append(n.items, item.ID)
	n.docs = append(n.docs, doc.ID)
}

// docFailStore wraps a Store and fails every document insert
type docFailStore struct {
	storage.Store
}

func (s *docFailStore) BeginTx(ctx context.Context) (storage.Store, error) {
	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &docFailStore{Store: tx}, nil
}

func (s *docFailStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	return errors.New("disk full")
}

func captureItem(t *testing.T, store storage.Store, fileName string) *models.InboundItem {
	t.Helper()

	item := &models.InboundItem{
		Source: models.InboundSourceCaya,
		Status: models.InboundStatusPending,
	}
	if fileName != "" {
		item.FileName = &fileName
	}
	if err := store.CreateInboundItem(context.Background(), item); err != nil {
		t.Fatalf("capture item: %v", err)
	}
	return item
}

func TestRouteToZone2_DeliversDocument(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	notifier := &recordingNotifier{}
	router := NewRouter(store, notifier)

	tenantID := uuid.New()
	mandateID := uuid.New()
	item := captureItem(t, store, "Mietvertrag.pdf")

	result := router.RouteToZone2(ctx, item.ID, tenantID, &mandateID)
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}

	// The item left the intake area
	routed, err := store.GetInboundItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if routed.Status != models.InboundStatusAssigned {
		t.Fatalf("expected status assigned, got %s", routed.Status)
	}
	if routed.AssignedTenantID == nil || *routed.AssignedTenantID != tenantID {
		t.Fatalf("expected item assigned to tenant %s", tenantID)
	}
	if routed.RoutedToZone2At == nil {
		t.Fatalf("expected routed timestamp set")
	}
	if routed.MandateID == nil || *routed.MandateID != mandateID {
		t.Fatalf("expected mandate recorded")
	}

	// Exactly one document in the tenant's space
	docs, total, err := store.ListDocuments(ctx, tenantID, 10, 0)
	if err != nil {
		t.Fatalf("list documents: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected 1 document, got %d", total)
	}
	doc := docs[0]
	if doc.Name != "Mietvertrag.pdf" {
		t.Fatalf("expected document named after file, got %q", doc.Name)
	}
	if doc.Source != models.DocumentSourcePostservice {
		t.Fatalf("expected source postservice, got %q", doc.Source)
	}
	if doc.TenantID != tenantID {
		t.Fatalf("document landed in wrong tenant")
	}
	if doc.PublicID == "" {
		t.Fatalf("expected a public id")
	}

	// Exactly one delivery link back to the item
	links, err := store.ListDocumentLinks(ctx, models.LinkTypePostserviceDelivery, item.ID)
	if err != nil {
		t.Fatalf("list links: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	if links[0].DocumentID != doc.ID {
		t.Fatalf("link points at wrong document")
	}
	if links[0].Status != models.LinkStatusCurrent {
		t.Fatalf("expected link status current, got %q", links[0].Status)
	}

	if len(notifier.items) != 1 || notifier.items[0] != item.ID {
		t.Fatalf("expected one routed notification for the item")
	}
}

func TestRouteToZone2_DefaultDocumentName(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	router := NewRouter(store, nil)

	tenantID := uuid.New()
	item := captureItem(t, store, "")

	result := router.RouteToZone2(ctx, item.ID, tenantID, nil)
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}

	docs, _, err := store.ListDocuments(ctx, tenantID, 10, 0)
	if err != nil || len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d (err %v)", len(docs), err)
	}
	if docs[0].Name != DefaultDocumentName {
		t.Fatalf("expected default name %q, got %q", DefaultDocumentName, docs[0].Name)
	}
	if docs[0].MimeType != "application/pdf" {
		t.Fatalf("expected default mime type, got %q", docs[0].MimeType)
	}
}

func TestRouteToZone2_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	router := NewRouter(store, nil)

	tenantID := uuid.New()
	item := captureItem(t, store, "Mietvertrag.pdf")

	if result := router.RouteToZone2(ctx, item.ID, tenantID, nil); !result.Success {
		t.Fatalf("first call: expected success, got %q", result.Error)
	}

	second := router.RouteToZone2(ctx, item.ID, tenantID, nil)
	if second.Success {
		t.Fatalf("second call: expected failure")
	}
	if !second.AlreadyRouted() {
		t.Fatalf("second call: expected already-routed error, got %q", second.Error)
	}
	if second.Error != "Bereits zugestellt" {
		t.Fatalf("second call: expected verbatim message, got %q", second.Error)
	}

	// Still exactly one document and one link
	_, total, err := store.ListDocuments(ctx, tenantID, 10, 0)
	if err != nil {
		t.Fatalf("list documents: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected 1 document after repeat, got %d", total)
	}
	links, err := store.ListDocumentLinks(ctx, models.LinkTypePostserviceDelivery, item.ID)
	if err != nil {
		t.Fatalf("list links: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("expected 1 link after repeat, got %d", len(links))
	}
}

func TestRouteToZone2_ItemNotFound(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	router := NewRouter(store, nil)

	tenantID := uuid.New()

	result := router.RouteToZone2(ctx, uuid.New(), tenantID, nil)
	if result.Success {
		t.Fatalf("expected failure for unknown item")
	}
	if !result.NotFound() {
		t.Fatalf("expected not-found error, got %q", result.Error)
	}
	if result.Error != "Inbound item nicht gefunden" {
		t.Fatalf("expected verbatim message, got %q", result.Error)
	}

	// Nothing was written
	_, total, err := store.ListDocuments(ctx, tenantID, 10, 0)
	if err != nil {
		t.Fatalf("list documents: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected no documents, got %d", total)
	}
}

func TestRouteToZone2_DocumentFailureKeepsItemUnrouted(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore()
	failing := &docFailStore{Store: mem}
	router := NewRouter(failing, nil)

	tenantID := uuid.New()
	item := captureItem(t, mem, "Mietvertrag.pdf")

	result := router.RouteToZone2(ctx, item.ID, tenantID, nil)
	if result.Success {
		t.Fatalf("expected failure when document insert fails")
	}
	if result.Error != "Dokument-Erstellung fehlgeschlagen" {
		t.Fatalf("expected document failure message, got %q", result.Error)
	}

	// The claim rolled back with the document, so a retry can succeed
	after, err := mem.GetInboundItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if after.RoutedToZone2At != nil {
		t.Fatalf("expected item still unrouted after rollback")
	}
	if after.Status != models.InboundStatusPending {
		t.Fatalf("expected status pending after rollback, got %s", after.Status)
	}

	retry := NewRouter(mem, nil).RouteToZone2(ctx, item.ID, tenantID, nil)
	if !retry.Success {
		t.Fatalf("expected retry to succeed, got %q", retry.Error)
	}
}

func TestRouteToZone2_LinkFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore()
	failing := &linkFailStore{Store: mem}
	router := NewRouter(failing, nil)

	tenantID := uuid.New()
	item := captureItem(t, mem, "Mietvertrag.pdf")

	result := router.RouteToZone2(ctx, item.ID, tenantID, nil)
	if !result.Success {
		t.Fatalf("link failure must not fail the delivery, got %q", result.Error)
	}

	// The document was still delivered
	_, total, err := mem.ListDocuments(ctx, tenantID, 10, 0)
	if err != nil {
		t.Fatalf("list documents: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected 1 document, got %d", total)
	}

	// And the failure landed in the event trail
	eventType := models.EventTypeLinkFailed
	events, _, err := mem.ListEventLogs(ctx, storage.EventLogFilters{Type: &eventType}, 10, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 link-failure event, got %d", len(events))
	}
}

// linkFailStore wraps a Store and fails every link insert
type linkFailStore struct {
	storage.Store
}

func (s *linkFailStore) BeginTx(ctx context.Context) (storage.Store, error) {
	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &linkFailStore{Store: tx}, nil
}

func (s *linkFailStore) CreateDocumentLink(ctx context.Context, link *models.DocumentLink) error {
	return errors.New("disk full")
}
