package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/systemofatown/intake-server/internal/auth"
	"github.com/systemofatown/intake-server/internal/config"
	"github.com/systemofatown/intake-server/internal/intake"
	"github.com/systemofatown/intake-server/internal/models"
	"github.com/systemofatown/intake-server/internal/ratelimit"
	"github.com/systemofatown/intake-server/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:          "test-secret",
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
		},
		RateLimit: config.RateLimitConfig{
			Enabled:       true,
			MaxPerWindow:  60,
			WindowSeconds: 60,
		},
		Intake: config.IntakeConfig{
			AddressDomain: "inbound.example.com",
		},
	}
}

type testEnv struct {
	server *RESTServer
	store  *storage.MemoryStore
	bus    *intake.Bus
	admin  string // bearer token
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()

	store := storage.NewMemoryStore()
	bus := intake.NewBus()
	notifier := intake.NewNotifier(nil, bus)
	counters := ratelimit.NewDBCounterStore(store)

	server := NewRESTServer(cfg, store, counters, notifier, bus)

	admin := &models.User{
		ID:              uuid.New(),
		Email:           "admin@example.com",
		IsPlatformAdmin: true,
		IsActive:        true,
	}
	if err := store.CreateUser(context.Background(), admin); err != nil {
		t.Fatalf("create admin: %v", err)
	}

	token, _, err := auth.NewJWTManager(&cfg.JWT).GenerateTokenPair(admin)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	return &testEnv{server: server, store: store, bus: bus, admin: token}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+e.admin)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	e.server.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createTenant(t *testing.T) uuid.UUID {
	t.Helper()

	tenant := &models.Tenant{Name: "Stadtwerke Musterstadt", IsActive: true}
	if err := e.store.CreateTenant(context.Background(), tenant); err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	return tenant.ID
}

func (e *testEnv) captureItem(t *testing.T) uuid.UUID {
	t.Helper()

	rec := e.do(t, "POST", "/api/v1/inbound/items", map[string]interface{}{
		"source":    "caya",
		"file_name": "Mietvertrag.pdf",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("capture: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	var item models.InboundItem
	if err := json.Unmarshal(rec.Body.Bytes(), &item); err != nil {
		t.Fatalf("decode item: %v", err)
	}
	return item.ID
}

func TestAPI_RequiresAuth(t *testing.T) {
	env := newTestEnv(t, testConfig())

	req := httptest.NewRequest("GET", "/api/v1/inbound/items", nil)
	rec := httptest.NewRecorder()
	env.server.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestAPI_CaptureAndRouteItem(t *testing.T) {
	env := newTestEnv(t, testConfig())
	tenantID := env.createTenant(t)
	itemID := env.captureItem(t)

	// Capture publishes the received phase on the bus
	state := env.bus.Current()
	if state == nil || state.Phase != intake.PhaseReceived {
		t.Fatalf("expected received phase on bus, got %+v", state)
	}

	rec := env.do(t, "POST", fmt.Sprintf("/api/v1/inbound/items/%s/route", itemID), map[string]interface{}{
		"target_tenant_id": tenantID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("route: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	// The delivery is visible in the tenant's document space
	docs, total, err := env.store.ListDocuments(context.Background(), tenantID, 10, 0)
	if err != nil {
		t.Fatalf("list documents: %v", err)
	}
	if total != 1 || docs[0].Name != "Mietvertrag.pdf" {
		t.Fatalf("expected the routed document, got total=%d", total)
	}

	// A repeat delivery is refused
	rec = env.do(t, "POST", fmt.Sprintf("/api/v1/inbound/items/%s/route", itemID), map[string]interface{}{
		"target_tenant_id": tenantID,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("repeat route: expected 409, got %d", rec.Code)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result["error"] != "Bereits zugestellt" {
		t.Fatalf("expected verbatim message, got %v", result["error"])
	}
}

func TestAPI_RouteUnknownItem(t *testing.T) {
	env := newTestEnv(t, testConfig())
	tenantID := env.createTenant(t)

	rec := env.do(t, "POST", fmt.Sprintf("/api/v1/inbound/items/%s/route", uuid.New()), map[string]interface{}{
		"target_tenant_id": tenantID,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestAPI_RouteToSuspendedTenant(t *testing.T) {
	env := newTestEnv(t, testConfig())
	itemID := env.captureItem(t)

	tenant := &models.Tenant{Name: "Suspended GmbH", IsActive: false}
	if err := env.store.CreateTenant(context.Background(), tenant); err != nil {
		t.Fatalf("create tenant: %v", err)
	}

	rec := env.do(t, "POST", fmt.Sprintf("/api/v1/inbound/items/%s/route", itemID), map[string]interface{}{
		"target_tenant_id": tenant.ID,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for suspended tenant, got %d", rec.Code)
	}
}

func TestAPI_CaptureRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.MaxPerWindow = 2
	env := newTestEnv(t, cfg)

	for i := 0; i < 2; i++ {
		rec := env.do(t, "POST", "/api/v1/inbound/items", map[string]interface{}{"source": "api"})
		if rec.Code != http.StatusCreated {
			t.Fatalf("capture %d: expected 201, got %d", i+1, rec.Code)
		}
	}

	rec := env.do(t, "POST", "/api/v1/inbound/items", map[string]interface{}{"source": "api"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("expected Retry-After 60, got %q", got)
	}

	// Only the capture function is exhausted; other endpoints still work
	list := env.do(t, "GET", "/api/v1/inbound/items", nil)
	if list.Code != http.StatusOK {
		t.Fatalf("expected list unaffected, got %d", list.Code)
	}
}

func TestAPI_IntakeStateLifecycle(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.captureItem(t)

	rec := env.do(t, "GET", "/api/v1/intake/state", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		State *intake.State `json:"state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if payload.State == nil || payload.State.Phase != intake.PhaseReceived {
		t.Fatalf("expected received state, got %+v", payload.State)
	}

	if rec := env.do(t, "POST", "/api/v1/intake/reset", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on reset, got %d", rec.Code)
	}

	rec = env.do(t, "GET", "/api/v1/intake/state", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if payload.State != nil {
		t.Fatalf("expected empty state after reset, got %+v", payload.State)
	}
}

func TestAPI_MailboxAddress(t *testing.T) {
	env := newTestEnv(t, testConfig())
	tenantID := env.createTenant(t)

	rec := env.do(t, "GET", "/api/v1/inbound/mailbox?tenant_id="+tenantID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var payload struct {
		Address string `json:"address"`
		Domain  string `json:"domain"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode mailbox: %v", err)
	}
	if payload.Domain != "inbound.example.com" {
		t.Fatalf("expected configured domain, got %q", payload.Domain)
	}
	want := "post-" + tenantID.String()[:8] + "@inbound.example.com"
	if payload.Address != want {
		t.Fatalf("expected address %q, got %q", want, payload.Address)
	}

	// Lookups are stable: the same tenant always gets the same address
	again := env.do(t, "GET", "/api/v1/inbound/mailbox?tenant_id="+tenantID.String(), nil)
	if !bytes.Equal(again.Body.Bytes(), rec.Body.Bytes()) {
		t.Fatalf("expected stable mailbox address")
	}

	// Unknown tenants have no mailbox
	missing := env.do(t, "GET", "/api/v1/inbound/mailbox?tenant_id="+uuid.NewString(), nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown tenant, got %d", missing.Code)
	}
}

func TestAPI_CreateUserThenLogin(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(t, "POST", "/api/v1/users", map[string]interface{}{
		"email":    "mieterin@example.com",
		"password": "super-geheim",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("super-geheim")) {
		t.Fatalf("plaintext password echoed in response: %s", rec.Body.String())
	}

	// The created account must be able to log in
	login := env.do(t, "POST", "/api/v1/auth/login", map[string]interface{}{
		"email":    "mieterin@example.com",
		"password": "super-geheim",
	})
	if login.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (%s)", login.Code, login.Body.String())
	}

	var tokens map[string]interface{}
	if err := json.Unmarshal(login.Body.Bytes(), &tokens); err != nil {
		t.Fatalf("decode tokens: %v", err)
	}
	if tokens["access_token"] == "" || tokens["access_token"] == nil {
		t.Fatalf("expected an access token, got %v", tokens)
	}

	// A wrong password still fails
	bad := env.do(t, "POST", "/api/v1/auth/login", map[string]interface{}{
		"email":    "mieterin@example.com",
		"password": "falsch",
	})
	if bad.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", bad.Code)
	}
}

func TestAPI_ArchiveItem(t *testing.T) {
	env := newTestEnv(t, testConfig())
	itemID := env.captureItem(t)

	rec := env.do(t, "POST", fmt.Sprintf("/api/v1/inbound/items/%s/status", itemID), map[string]interface{}{
		"status": "archived",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	item, err := env.store.GetInboundItem(context.Background(), itemID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.Status != models.InboundStatusArchived {
		t.Fatalf("expected archived, got %s", item.Status)
	}

	// Bad status values are rejected
	rec = env.do(t, "POST", fmt.Sprintf("/api/v1/inbound/items/%s/status", itemID), map[string]interface{}{
		"status": "pending",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid status, got %d", rec.Code)
	}
}
