package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/systemofatown/intake-server/internal/models"
	"github.com/systemofatown/intake-server/pkg/crypto"
)

func TestMemoryStore_CreateUserHashesPassword(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	user := &models.User{
		Email:    "mieterin@example.com",
		IsActive: true,
		Settings: models.Variables{"password": "super-geheim"},
	}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	if _, ok := user.Settings["password"]; ok {
		t.Fatalf("plaintext password left in settings")
	}
	if user.PasswordHash == "" || user.PasswordHash == "super-geheim" {
		t.Fatalf("expected a password hash, got %q", user.PasswordHash)
	}
	if !crypto.VerifyPassword("super-geheim", user.PasswordHash) {
		t.Fatalf("stored hash does not verify the password")
	}

	got, err := store.GetUserByEmail(ctx, "mieterin@example.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if _, ok := got.Settings["password"]; ok {
		t.Fatalf("plaintext password persisted in settings")
	}
	if !crypto.VerifyPassword("super-geheim", got.PasswordHash) {
		t.Fatalf("persisted hash does not verify the password")
	}
}

func TestMemoryStore_ClaimInboundItemOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	item := &models.InboundItem{Source: models.InboundSourceCaya}
	if err := store.CreateInboundItem(ctx, item); err != nil {
		t.Fatalf("create item: %v", err)
	}

	tenantID := uuid.New()
	now := time.Now()

	claimed, err := store.ClaimInboundItem(ctx, item.ID, tenantID, nil, now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !claimed {
		t.Fatalf("expected first claim to succeed")
	}

	// A second claim finds the routed timestamp already set
	claimed, err = store.ClaimInboundItem(ctx, item.ID, tenantID, nil, time.Now())
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed {
		t.Fatalf("expected second claim to lose")
	}

	got, err := store.GetInboundItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Status != models.InboundStatusAssigned {
		t.Fatalf("expected assigned, got %s", got.Status)
	}
	if got.RoutedToZone2At == nil || !got.RoutedToZone2At.Equal(now) {
		t.Fatalf("expected routed timestamp from the winning claim")
	}
}

func TestMemoryStore_ClaimUnknownItem(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	claimed, err := store.ClaimInboundItem(ctx, uuid.New(), uuid.New(), nil, time.Now())
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed {
		t.Fatalf("expected claim of unknown item to fail")
	}
}

func TestMemoryStore_TransactionCommitAndRollback(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	item := &models.InboundItem{Source: models.InboundSourceUpload}
	if err := store.CreateInboundItem(ctx, item); err != nil {
		t.Fatalf("create item: %v", err)
	}

	// Rollback: writes inside the tx never reach the parent
	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.ClaimInboundItem(ctx, item.ID, uuid.New(), nil, time.Now()); err != nil {
		t.Fatalf("tx claim: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	got, err := store.GetInboundItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.RoutedToZone2At != nil {
		t.Fatalf("rollback leaked the claim into the parent store")
	}

	// Commit: writes inside the tx become visible
	tx, err = store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	tenantID := uuid.New()
	if _, err := tx.ClaimInboundItem(ctx, item.ID, tenantID, nil, time.Now()); err != nil {
		t.Fatalf("tx claim: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err = store.GetInboundItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.RoutedToZone2At == nil {
		t.Fatalf("commit did not publish the claim")
	}
	if got.AssignedTenantID == nil || *got.AssignedTenantID != tenantID {
		t.Fatalf("commit did not publish the assignment")
	}
}

func TestMemoryStore_RateLimitCounters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	now := time.Now()
	for i := 0; i < 3; i++ {
		counter := &models.RateLimitCounter{
			CounterKey:   "t1:u1:fn",
			TenantID:     "t1",
			FunctionName: "fn",
			CreatedAt:    now.Add(time.Duration(-i) * time.Minute),
		}
		if err := store.CreateRateLimitCounter(ctx, counter); err != nil {
			t.Fatalf("create counter: %v", err)
		}
	}

	// Only the entries inside the window count
	count, err := store.CountRateLimitCounters(ctx, "t1:u1:fn", now.Add(-90*time.Second))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 entries in window, got %d", count)
	}

	// Other keys are untouched
	count, err = store.CountRateLimitCounters(ctx, "t2:u1:fn", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 entries for other key, got %d", count)
	}
}

func TestMemoryStore_ActiveMandateLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	tenantID := uuid.New()
	mandate := &models.PostserviceMandate{TenantID: tenantID}
	if err := store.CreatePostserviceMandate(ctx, mandate); err != nil {
		t.Fatalf("create mandate: %v", err)
	}

	got, err := store.GetActiveMandate(ctx, tenantID)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if got.ID != mandate.ID {
		t.Fatalf("expected the created mandate")
	}

	if err := store.RevokePostserviceMandate(ctx, mandate.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	if _, err := store.GetActiveMandate(ctx, tenantID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after revoke, got %v", err)
	}
}
