package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/models"
	"github.com/mmdatafocus/kitchen_backend/realtime"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "server.db")), config.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	prev := config.GetDB()
	config.SetDB(db)
	t.Cleanup(func() {
		config.SetDB(prev)
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestRouter(t *testing.T) (*app, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	a := newApp()
	t.Cleanup(a.notifier.Wait)
	return a, newRouter(a, config.Settings{})
}

func tokenFor(t *testing.T, roles ...string) string {
	t.Helper()
	token, err := utils.JwtGenerate(utils.JwtCustomClaim{ID: "user-1", Email: "staff@kitchen.local", FirstName: "Staff", Roles: roles}, time.Hour)
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	return token
}

func do(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

type recordingSocket struct {
	mu   sync.Mutex
	sent []any
}

func (s *recordingSocket) Send(msg any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSocket) Close(int, string) error { return nil }

func (s *recordingSocket) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestReadinessGate(t *testing.T) {
	prev := config.GetDB()
	config.SetDB(nil)
	t.Cleanup(func() { config.SetDB(prev) })
	_, r := newTestRouter(t)

	if w := do(t, r, http.MethodGet, "/healthz", "", nil); w.Code != http.StatusNoContent {
		t.Fatalf("healthz: expected 204, got %d", w.Code)
	}
	w := do(t, r, http.MethodGet, "/api/orders", tokenFor(t, models.RoleAdmin), nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before the database is connected, got %d", w.Code)
	}
	if w.Header().Get("x-correlation-id") == "" {
		t.Fatalf("expected a correlation id on every response")
	}
}

func TestAuthAndRoles(t *testing.T) {
	openTestDB(t)
	_, r := newTestRouter(t)

	if w := do(t, r, http.MethodGet, "/api/orders", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", w.Code)
	}
	if w := do(t, r, http.MethodGet, "/api/orders", "garbage", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: expected 401, got %d", w.Code)
	}

	member := tokenFor(t, models.RoleMember)
	if w := do(t, r, http.MethodGet, "/api/orders", member, nil); w.Code != http.StatusOK {
		t.Fatalf("member listing orders: expected 200, got %d", w.Code)
	}
	report := "/api/reports/sales-consumption?from=2026-01-01&to=2026-01-02"
	if w := do(t, r, http.MethodGet, report, member, nil); w.Code != http.StatusForbidden {
		t.Fatalf("member reading reports: expected 403, got %d", w.Code)
	}
	if w := do(t, r, http.MethodGet, "/internal/ops/order-events", member, nil); w.Code != http.StatusForbidden {
		t.Fatalf("member reading the outbox: expected 403, got %d", w.Code)
	}

	admin := tokenFor(t, models.RoleAdmin)
	if w := do(t, r, http.MethodGet, report, admin, nil); w.Code != http.StatusOK {
		t.Fatalf("admin reading reports: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := do(t, r, http.MethodGet, "/api/reports/sales-consumption?from=2026-01-02&to=2026-01-01", admin, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("reversed window: expected 400, got %d", w.Code)
	}
	var backlog map[string]int64
	w := do(t, r, http.MethodGet, "/internal/ops/order-events", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin reading the outbox: expected 200, got %d", w.Code)
	}
	decode(t, w, &backlog)
	if _, ok := backlog[models.OutboxPublishStatusDead]; !ok {
		t.Fatalf("expected every status in the backlog, got %v", backlog)
	}

	if w := do(t, r, http.MethodGet, "/nowhere", admin, nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown route: expected 404, got %d", w.Code)
	}
}

func TestOrderConfirmationReachesAdminSockets(t *testing.T) {
	openTestDB(t)
	a, r := newTestRouter(t)
	token := tokenFor(t, models.RoleAdmin)

	adminSocket := &recordingSocket{}
	memberSocket := &recordingSocket{}
	a.registry.Add(realtime.User{Id: "admin-1", Roles: []string{models.RoleAdmin}}, adminSocket, "10.0.0.1", "tablet")
	a.registry.Add(realtime.User{Id: "member-1", Roles: []string{models.RoleMember}}, memberSocket, "10.0.0.2", "phone")

	w := do(t, r, http.MethodPost, "/api/eating-tables", token, map[string]any{"name": "T1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create table: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var table models.EatingTable
	decode(t, w, &table)

	w = do(t, r, http.MethodPost, "/api/orders", token, map[string]any{"eatingTableId": table.ID})
	if w.Code != http.StatusCreated {
		t.Fatalf("create order: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var order models.Order
	decode(t, w, &order)

	if w := do(t, r, http.MethodPost, "/api/orders", token, map[string]any{}); w.Code != http.StatusBadRequest {
		t.Fatalf("order without a table: expected 400, got %d", w.Code)
	}
	if w := do(t, r, http.MethodPut, "/api/orders/"+order.ID, token, map[string]any{"status": "COOKING"}); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown status: expected 400, got %d", w.Code)
	}

	w = do(t, r, http.MethodPut, "/api/orders/"+order.ID, token, map[string]any{"status": "CONFIRMED"})
	if w.Code != http.StatusOK {
		t.Fatalf("confirm order: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var confirmed models.Order
	decode(t, w, &confirmed)
	if confirmed.Status != models.OrderStatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", confirmed.Status)
	}

	a.notifier.Wait()
	if n := adminSocket.count(); n != 1 {
		t.Fatalf("expected the admin socket to get 1 notice, got %d", n)
	}
	if n := memberSocket.count(); n != 0 {
		t.Fatalf("members must not be notified, got %d", n)
	}

	if w := do(t, r, http.MethodGet, "/api/orders/missing", token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown order: expected 404, got %d", w.Code)
	}
}

func TestListOrdersCursor(t *testing.T) {
	openTestDB(t)
	_, r := newTestRouter(t)
	token := tokenFor(t, models.RoleMember)

	w := do(t, r, http.MethodPost, "/api/eating-tables", token, map[string]any{"name": "T1"})
	var table models.EatingTable
	decode(t, w, &table)
	for i := 0; i < 3; i++ {
		if w := do(t, r, http.MethodPost, "/api/orders", token, map[string]any{"eatingTableId": table.ID}); w.Code != http.StatusCreated {
			t.Fatalf("create order %d: %d", i, w.Code)
		}
	}

	seen := map[string]bool{}
	path := "/api/orders?limit=2"
	for page := 0; page < 3; page++ {
		w := do(t, r, http.MethodGet, path, token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("page %d: expected 200, got %d", page, w.Code)
		}
		var orders []models.Order
		decode(t, w, &orders)
		for _, o := range orders {
			if seen[o.ID] {
				t.Fatalf("order %s returned twice", o.ID)
			}
			seen[o.ID] = true
		}
		next := w.Header().Get("x-next-cursor")
		if next == "" {
			break
		}
		path = "/api/orders?limit=2&after=" + next
	}
	if len(seen) != 3 {
		t.Fatalf("expected to page through 3 orders, saw %d", len(seen))
	}

	if w := do(t, r, http.MethodGet, "/api/orders?after=%21%21", token, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("garbage cursor: expected 400, got %d", w.Code)
	}
}

func TestMenuItemRawMaterials(t *testing.T) {
	openTestDB(t)
	_, r := newTestRouter(t)
	token := tokenFor(t, models.RoleMember)

	kg := models.UnitKg
	flour, err := models.CreateMenuItem(context.Background(), &models.NewMenuItem{Name: "Flour", Tags: []models.ItemTag{models.ItemTagRawMaterial}, Unit: &kg})
	if err != nil {
		t.Fatalf("CreateMenuItem flour: %v", err)
	}
	bread, err := models.CreateMenuItem(context.Background(), &models.NewMenuItem{Name: "Bread", Tags: []models.ItemTag{models.ItemTagPrimaryItem}})
	if err != nil {
		t.Fatalf("CreateMenuItem bread: %v", err)
	}
	w := do(t, r, http.MethodPost, "/api/menu-item-links", token, map[string]any{
		"parentMenuItemId": bread.ID, "subMenuItemId": flour.ID, "quantity": "0.5",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create link: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodGet, "/api/menu-items/"+bread.ID+"/raw-materials?quantity=4", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("raw materials: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var rows []struct {
		MenuItemId string `json:"menuItemId"`
		Quantity   string `json:"quantity"`
	}
	decode(t, w, &rows)
	if len(rows) != 1 || rows[0].MenuItemId != flour.ID || rows[0].Quantity != "2" {
		t.Fatalf("expected 2 flour, got %+v", rows)
	}

	if w := do(t, r, http.MethodGet, "/api/menu-items/"+bread.ID+"/raw-materials?quantity=abc", token, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad quantity: expected 400, got %d", w.Code)
	}
	if w := do(t, r, http.MethodGet, "/api/menu-items/missing/raw-materials", token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown item: expected 404, got %d", w.Code)
	}
}
