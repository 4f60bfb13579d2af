package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hotel-billing/models"
	"hotel-billing/queue"
	"hotel-billing/services"
	"hotel-billing/store"
	"hotel-billing/tenants"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	table, err := tenants.Default()
	if err != nil {
		t.Fatal(err)
	}
	logger := zap.NewNop().Sugar()
	s := store.NewMemory()
	resolver := services.ContextResolver{}
	menu := services.NewMenuCatalog(s, table, resolver, logger)
	tables := services.NewTableOrders(s, menu, resolver, logger, nil)
	ledger, err := services.NewBillLedger(s, resolver, queue.NewMemory(), logger, services.LedgerConfig{Location: time.UTC})
	if err != nil {
		t.Fatal(err)
	}
	return New(Deps{
		Auth:      services.NewAuthenticator(table, services.NewLoginThrottle(s, nil), logger, nil),
		Menu:      menu,
		Tables:    tables,
		Ledger:    ledger,
		Checkout:  services.NewCheckout(tables, menu, ledger, table, resolver, logger),
		Tenants:   table,
		Store:     s,
		Logger:    logger,
		Location:  time.UTC,
		JWTSecret: "test-secret",
		JWTTTL:    time.Hour,
	}).Handler()
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler, username, password string) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/v1/login", "", loginRequest{Username: username, Password: password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d: %s", username, rec.Code, rec.Body)
	}
	var resp loginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	return resp.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	h := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/api/v1/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestLogin(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/v1/login", "", loginRequest{Username: "sai_staff", Password: "nope"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: status %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/api/v1/login", "", loginRequest{Username: "sai_staff", Password: "sai@2024"})
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Errorf("during cooldown: status %d, Retry-After %q", rec.Code, rec.Header().Get("Retry-After"))
	}

	token := login(t, h, "anna_admin", "annaadmin#1")
	if token == "" {
		t.Fatal("empty token")
	}
}

func TestAuthenticationRequired(t *testing.T) {
	h := newTestServer(t)
	tests := []struct {
		name  string
		token string
	}{
		{"no token", ""},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, http.MethodGet, "/api/v1/menu", tt.token, nil); rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d", rec.Code)
			}
		})
	}

	// a token signed with another secret
	other := tokenIssuer{secret: []byte("other"), ttl: time.Hour, now: time.Now}
	forged, _, err := other.issue(services.Session{TenantID: "hotel_sai", IsAdmin: true})
	if err != nil {
		t.Fatal(err)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/menu", forged, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("forged token: status = %d", rec.Code)
	}
}

func TestTokenExpiry(t *testing.T) {
	now := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	issuer := tokenIssuer{secret: []byte("k"), ttl: time.Hour, now: func() time.Time { return now }}
	token, expires, err := issuer.issue(services.Session{TenantID: "hotel_sai", Username: "sai_staff"})
	if err != nil {
		t.Fatal(err)
	}
	if !expires.Equal(now.Add(time.Hour)) {
		t.Errorf("expires = %v", expires)
	}
	sess, err := issuer.parse(token)
	if err != nil || sess.TenantID != "hotel_sai" || sess.Username != "sai_staff" {
		t.Fatalf("parse = %+v, %v", sess, err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := issuer.parse(token); err == nil {
		t.Error("expired token accepted")
	}
}

func TestTableCheckoutFlow(t *testing.T) {
	h := newTestServer(t)
	token := login(t, h, "sai_staff", "sai@2024")

	rec := do(t, h, http.MethodPost, "/api/v1/tables/t5/items", token, addItemRequest{Code: "101", Quantity: 1})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: %d %s", rec.Code, rec.Body)
	}
	rec = do(t, h, http.MethodPost, "/api/v1/tables/T5/items", token, addItemRequest{Code: "201", Quantity: 2})
	table := decode[tableResponse](t, rec)
	if table.Summary.ItemCount != 3 || !table.Summary.Total.Equal(decimal.NewFromInt(740)) {
		t.Errorf("summary = %+v", table.Summary)
	}

	if rec := do(t, h, http.MethodPost, "/api/v1/tables/T5/items", token, addItemRequest{Code: "999"}); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown code: status %d", rec.Code)
	}

	name := "Ravi"
	rec = do(t, h, http.MethodPatch, "/api/v1/tables/T5/customer", token, models.CustomerPatch{Name: &name})
	if rec.Code != http.StatusOK {
		t.Errorf("customer: status %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/tables", token, nil)
	if !strings.Contains(rec.Body.String(), `"tableId":"T5"`) {
		t.Errorf("tables = %s", rec.Body)
	}

	gst := true
	rec = do(t, h, http.MethodPost, "/api/v1/tables/T5/checkout", token, checkoutRequest{IncludeGST: &gst})
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout: %d %s", rec.Code, rec.Body)
	}
	bill := decode[models.BillRecord](t, rec)
	if !bill.Total.Equal(decimal.NewFromInt(874)) || bill.CustomerInfo.Name != "Ravi" {
		t.Errorf("bill = %+v", bill)
	}

	if rec := do(t, h, http.MethodGet, "/api/v1/tables/T5", token, nil); rec.Code != http.StatusNotFound {
		t.Errorf("table after checkout: status %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/tables/T5/checkout", token, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second checkout: status %d", rec.Code)
	}

	jama := decimal.NewFromInt(500)
	rec = do(t, h, http.MethodPatch, "/api/v1/bills/"+bill.ID+"/payment", token, paymentRequest{Jama: &jama})
	paid := decode[models.BillRecord](t, rec)
	if !paid.PaymentInfo.Baki.Equal(decimal.NewFromInt(374)) {
		t.Errorf("baki = %s", paid.PaymentInfo.Baki)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/bills/"+bill.BillNumber+"/receipt.pdf", token, nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/pdf" || !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Errorf("receipt: status %d type %q", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = do(t, h, http.MethodGet, "/api/v1/bills/stats", token, nil)
	stats := decode[models.BillStatistics](t, rec)
	if stats.TotalBills != 1 || !stats.TotalRevenue.Equal(decimal.NewFromInt(874)) {
		t.Errorf("stats = %+v", stats)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/bills?search=ravi", token, nil)
	list := decode[map[string][]models.BillRecord](t, rec)
	if len(list["bills"]) != 1 {
		t.Errorf("search = %d bills", len(list["bills"]))
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/bills?from=yesterday", token, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad date: status %d", rec.Code)
	}
}

func TestTableItemRoutes(t *testing.T) {
	h := newTestServer(t)
	token := login(t, h, "udupi", "udupi@2024")
	do(t, h, http.MethodPost, "/api/v1/tables/1/items", token, addItemRequest{Code: "U1", Quantity: 1})

	rec := do(t, h, http.MethodPatch, "/api/v1/tables/1/items/1", token, updateQuantityRequest{Quantity: 3})
	if rec.Code != http.StatusOK {
		t.Fatalf("qty: %d %s", rec.Code, rec.Body)
	}
	if rec := do(t, h, http.MethodPatch, "/api/v1/tables/1/items/5", token, updateQuantityRequest{Quantity: 3}); rec.Code != http.StatusNotFound {
		t.Errorf("bad index: status %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/v1/tables/1/items/x", token, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("non-numeric index: status %d", rec.Code)
	}
}

func TestParcelAndAdminRoutes(t *testing.T) {
	h := newTestServer(t)
	staff := login(t, h, "anna_staff", "anna@2024")
	admin := login(t, h, "anna_admin", "annaadmin#1")

	rec := do(t, h, http.MethodPost, "/api/v1/parcel", staff, map[string]any{
		"items":    []services.ParcelLine{{Code: "10", Quantity: 1}},
		"customer": models.CustomerInfo{Name: "Meera"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("parcel: %d %s", rec.Code, rec.Body)
	}
	bill := decode[models.BillRecord](t, rec)
	// tenant default includes GST: 220 * 1.18 = 259.6 -> 260
	if !bill.IncludeGST || !bill.Total.Equal(decimal.NewFromInt(260)) {
		t.Errorf("parcel bill = %+v", bill)
	}

	item := menuItemRequest{Name: "Poha", Rate: decimal.NewFromInt(60), Category: "Snacks"}
	if rec := do(t, h, http.MethodPut, "/api/v1/menu/5", staff, item); rec.Code != http.StatusForbidden {
		t.Errorf("staff menu edit: status %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPut, "/api/v1/menu/5", admin, item); rec.Code != http.StatusOK {
		t.Errorf("admin menu edit: status %d %s", rec.Code, rec.Body)
	}
	rec = do(t, h, http.MethodGet, "/api/v1/menu", staff, nil)
	menu := decode[menuResponse](t, rec)
	found := false
	for _, it := range menu.Items {
		if it.Code == "5" && it.Name == "Poha" {
			found = true
		}
	}
	if !found {
		t.Errorf("new item missing from menu: %+v", menu.Items)
	}

	if rec := do(t, h, http.MethodDelete, "/api/v1/bills/"+bill.ID, staff, nil); rec.Code != http.StatusForbidden {
		t.Errorf("staff bill delete: status %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/v1/bills/"+bill.ID, admin, nil); rec.Code != http.StatusNoContent {
		t.Errorf("admin bill delete: status %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/bills/"+bill.ID, staff, nil); rec.Code != http.StatusNotFound {
		t.Errorf("deleted bill: status %d", rec.Code)
	}

	if rec := do(t, h, http.MethodPost, "/api/v1/menu/reset", admin, nil); rec.Code != http.StatusNoContent {
		t.Errorf("reset: status %d", rec.Code)
	}

	// tenants never see each other's data
	sai := login(t, h, "sai_staff", "sai@2024")
	rec = do(t, h, http.MethodGet, "/api/v1/bills/stats", sai, nil)
	if stats := decode[models.BillStatistics](t, rec); stats.TotalBills != 0 {
		t.Errorf("cross-tenant stats = %+v", stats)
	}
}
