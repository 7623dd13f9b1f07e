package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/systemofatown/intake-server/internal/models"
	"github.com/systemofatown/intake-server/pkg/crypto"
)

// MemoryStore implements Store in memory. Used in tests and for local
// development without a database. Entries are stored as copies and never
// mutated in place, so a transaction can be modelled as a snapshot of the
// maps that is adopted on Commit and discarded on Rollback.
type MemoryStore struct {
	mu sync.Mutex

	parent *MemoryStore

	users     map[uuid.UUID]*models.User
	tenants   map[uuid.UUID]*models.Tenant
	items     map[uuid.UUID]*models.InboundItem
	rules     map[uuid.UUID]*models.RoutingRule
	mandates  map[uuid.UUID]*models.PostserviceMandate
	documents map[uuid.UUID]*models.Document
	links     map[uuid.UUID]*models.DocumentLink
	counters  []*models.RateLimitCounter
	events    []*models.EventLog
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[uuid.UUID]*models.User),
		tenants:   make(map[uuid.UUID]*models.Tenant),
		items:     make(map[uuid.UUID]*models.InboundItem),
		rules:     make(map[uuid.UUID]*models.RoutingRule),
		mandates:  make(map[uuid.UUID]*models.PostserviceMandate),
		documents: make(map[uuid.UUID]*models.Document),
		links:     make(map[uuid.UUID]*models.DocumentLink),
	}
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

// BeginTx snapshots the store
func (s *MemoryStore) BeginTx(ctx context.Context) (Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := NewMemoryStore()
	tx.parent = s
	for k, v := range s.users {
		tx.users[k] = v
	}
	for k, v := range s.tenants {
		tx.tenants[k] = v
	}
	for k, v := range s.items {
		tx.items[k] = v
	}
	for k, v := range s.rules {
		tx.rules[k] = v
	}
	for k, v := range s.mandates {
		tx.mandates[k] = v
	}
	for k, v := range s.documents {
		tx.documents[k] = v
	}
	for k, v := range s.links {
		tx.links[k] = v
	}
	tx.counters = append(tx.counters, s.counters...)
	tx.events = append(tx.events, s.events...)

	return tx, nil
}

// Commit adopts the snapshot into the parent store
func (s *MemoryStore) Commit() error {
	if s.parent == nil {
		return nil
	}

	p := s.parent
	p.mu.Lock()
	defer p.mu.Unlock()

	p.users = s.users
	p.tenants = s.tenants
	p.items = s.items
	p.rules = s.rules
	p.mandates = s.mandates
	p.documents = s.documents
	p.links = s.links
	p.counters = s.counters
	p.events = s.events

	return nil
}

// Rollback discards the snapshot
func (s *MemoryStore) Rollback() error {
	return nil
}

// ========== User Methods ==========

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	// Hash password if provided in settings
	if pwd, ok := user.Settings["password"].(string); ok && pwd != "" {
		hash, err := crypto.HashPassword(pwd)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
		delete(user.Settings, "password")
	}

	for _, u := range s.users {
		if u.Email == user.Email {
			return ErrDuplicateKey
		}
	}

	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return ErrNotFound
	}
	user.UpdatedAt = time.Now()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *MemoryStore) ListUsers(ctx context.Context, tenantID *uuid.UUID, limit, offset int) ([]*models.User, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*models.User
	for _, user := range s.users {
		if tenantID != nil && (user.TenantID == nil || *user.TenantID != *tenantID) {
			continue
		}
		cp := *user
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })

	return paginate(all, limit, offset), int64(len(all)), nil
}

// ========== Tenant Methods ==========

func (s *MemoryStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}
	now := time.Now()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now

	cp := *tenant
	s.tenants[tenant.ID] = &cp
	return nil
}

func (s *MemoryStore) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenant, ok := s.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tenant
	return &cp, nil
}

func (s *MemoryStore) UpdateTenant(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[tenant.ID]; !ok {
		return ErrNotFound
	}
	tenant.UpdatedAt = time.Now()
	cp := *tenant
	s.tenants[tenant.ID] = &cp
	return nil
}

func (s *MemoryStore) ListTenants(ctx context.Context, limit, offset int) ([]*models.Tenant, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*models.Tenant
	for _, tenant := range s.tenants {
		cp := *tenant
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	return paginate(all, limit, offset), int64(len(all)), nil
}

// ========== Inbound Item Methods ==========

func (s *MemoryStore) CreateInboundItem(ctx context.Context, item *models.InboundItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now
	if item.Status == "" {
		item.Status = models.InboundStatusPending
	}

	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *MemoryStore) GetInboundItem(ctx context.Context, id uuid.UUID) (*models.InboundItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *MemoryStore) UpdateInboundItemStatus(ctx context.Context, id uuid.UUID, status models.InboundStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	cp := *item
	cp.Status = status
	cp.UpdatedAt = time.Now()
	s.items[id] = &cp
	return nil
}

func (s *MemoryStore) ClaimInboundItem(ctx context.Context, id, tenantID uuid.UUID, mandateID *uuid.UUID, routedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return false, nil
	}
	if item.RoutedToZone2At != nil {
		return false, nil
	}

	cp := *item
	cp.Status = models.InboundStatusAssigned
	cp.AssignedTenantID = &tenantID
	cp.AssignedAt = &routedAt
	if mandateID != nil {
		cp.MandateID = mandateID
	}
	cp.RoutedToZone2At = &routedAt
	cp.UpdatedAt = routedAt
	s.items[id] = &cp

	return true, nil
}

func (s *MemoryStore) ListInboundItems(ctx context.Context, filters InboundItemFilters, limit, offset int) ([]*models.InboundItem, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*models.InboundItem
	for _, item := range s.items {
		if filters.Status != nil && item.Status != *filters.Status {
			continue
		}
		if filters.Source != nil && item.Source != *filters.Source {
			continue
		}
		if filters.TenantID != nil && (item.AssignedTenantID == nil || *item.AssignedTenantID != *filters.TenantID) {
			continue
		}
		cp := *item
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	return paginate(all, limit, offset), int64(len(all)), nil
}

// ========== Routing Rule Methods ==========

func (s *MemoryStore) CreateRoutingRule(ctx context.Context, rule *models.RoutingRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	cp := *rule
	s.rules[rule.ID] = &cp
	return nil
}

func (s *MemoryStore) GetRoutingRule(ctx context.Context, id uuid.UUID) (*models.RoutingRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.rules[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rule
	return &cp, nil
}

func (s *MemoryStore) UpdateRoutingRule(ctx context.Context, rule *models.RoutingRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[rule.ID]; !ok {
		return ErrNotFound
	}
	rule.UpdatedAt = time.Now()
	cp := *rule
	s.rules[rule.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteRoutingRule(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return ErrNotFound
	}
	delete(s.rules, id)
	return nil
}

func (s *MemoryStore) ListRoutingRules(ctx context.Context, activeOnly bool) ([]*models.RoutingRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*models.RoutingRule
	for _, rule := range s.rules {
		if activeOnly && !rule.IsActive {
			continue
		}
		cp := *rule
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Priority != all[j].Priority {
			return all[i].Priority > all[j].Priority
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	return all, nil
}

// ========== Postservice Mandate Methods ==========

func (s *MemoryStore) CreatePostserviceMandate(ctx context.Context, mandate *models.PostserviceMandate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

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

	cp := *mandate
	s.mandates[mandate.ID] = &cp
	return nil
}

func (s *MemoryStore) GetActiveMandate(ctx context.Context, tenantID uuid.UUID) (*models.PostserviceMandate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *models.PostserviceMandate
	for _, mandate := range s.mandates {
		if mandate.TenantID != tenantID || mandate.Status != "active" {
			continue
		}
		if latest == nil || mandate.CreatedAt.After(latest.CreatedAt) {
			latest = mandate
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *MemoryStore) RevokePostserviceMandate(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mandate, ok := s.mandates[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	cp := *mandate
	cp.Status = "revoked"
	cp.RevokedAt = &now
	cp.UpdatedAt = now
	s.mandates[id] = &cp
	return nil
}

// ========== Document Methods ==========

func (s *MemoryStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	for _, d := range s.documents {
		if d.PublicID == doc.PublicID {
			return ErrDuplicateKey
		}
	}

	cp := *doc
	s.documents[doc.ID] = &cp
	return nil
}

func (s *MemoryStore) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *MemoryStore) ListDocuments(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Document, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*models.Document
	for _, doc := range s.documents {
		if doc.TenantID != tenantID {
			continue
		}
		cp := *doc
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	return paginate(all, limit, offset), int64(len(all)), nil
}

// ========== Document Link Methods ==========

func (s *MemoryStore) CreateDocumentLink(ctx context.Context, link *models.DocumentLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}

	cp := *link
	s.links[link.ID] = &cp
	return nil
}

func (s *MemoryStore) ListDocumentLinks(ctx context.Context, objectType string, objectID uuid.UUID) ([]*models.DocumentLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*models.DocumentLink
	for _, link := range s.links {
		if link.ObjectType != objectType || link.ObjectID != objectID {
			continue
		}
		cp := *link
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })

	return all, nil
}

// ========== Rate Limit Counter Methods ==========

func (s *MemoryStore) CountRateLimitCounters(ctx context.Context, key string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, c := range s.counters {
		if c.CounterKey == key && !c.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) CreateRateLimitCounter(ctx context.Context, counter *models.RateLimitCounter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if counter.ID == uuid.Nil {
		counter.ID = uuid.New()
	}
	if counter.CreatedAt.IsZero() {
		counter.CreatedAt = time.Now()
	}

	cp := *counter
	s.counters = append(s.counters, &cp)
	return nil
}

// ========== Event Log Methods ==========

func (s *MemoryStore) CreateEventLog(ctx context.Context, event *models.EventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	cp := *event
	s.events = append(s.events, &cp)
	return nil
}

func (s *MemoryStore) ListEventLogs(ctx context.Context, filters EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*models.EventLog
	for _, event := range s.events {
		if filters.TenantID != nil && (event.TenantID == nil || *event.TenantID != *filters.TenantID) {
			continue
		}
		if filters.InboundItemID != nil && (event.InboundItemID == nil || *event.InboundItemID != *filters.InboundItemID) {
			continue
		}
		if filters.Type != nil && event.Type != *filters.Type {
			continue
		}
		if filters.Level != nil && event.Level != *filters.Level {
			continue
		}
		if filters.StartTime != nil && event.CreatedAt.Before(*filters.StartTime) {
			continue
		}
		if filters.EndTime != nil && event.CreatedAt.After(*filters.EndTime) {
			continue
		}
		cp := *event
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	return paginate(all, limit, offset), int64(len(all)), nil
}

func paginate[T any](all []*T, limit, offset int) []*T {
	if offset >= len(all) {
		return nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}
