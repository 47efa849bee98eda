package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"washouse/backend/internal/cache"
	"washouse/backend/internal/directory"
	"washouse/backend/internal/domain"
	"washouse/backend/internal/service"
	"washouse/backend/internal/store/memory"
)

func newTestAPI(t *testing.T) (*API, http.Handler) {
	t.Helper()
	repo := memory.NewSeeded()
	dir := directory.NewEngine(cache.NoopDirectoryCache{}, 5*time.Second, nil)
	svc := service.New(repo, dir, "main")
	auth := NewAuthManager("test-secret-key-that-is-long-enough", time.Hour, "654321", repo)
	api := New(svc, auth, "*")
	return api, api.Handler()
}

func loginAs(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login as %s failed: %d %s", username, rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

func csrfToken(t *testing.T, handler http.Handler) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("csrf token fetch failed: %d", rec.Code)
	}
	var resp struct {
		Token string `json:"csrf_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode csrf response: %v", err)
	}
	return resp.Token
}

func doJSON(handler http.Handler, method, path, token, csrf string, payload any) *httptest.ResponseRecorder {
	var body *bytes.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	_, handler := newTestAPI(t)

	rec := doJSON(handler, http.MethodGet, "/healthz", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	_, handler := newTestAPI(t)

	rec := doJSON(handler, http.MethodPost, "/api/v1/auth/login", "", "", domain.LoginRequest{
		Username: "admin",
		Password: "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	_, handler := newTestAPI(t)

	bad := domain.LoginRequest{Username: "admin", Password: "wrong"}
	for i := 0; i < 5; i++ {
		rec := doJSON(handler, http.MethodPost, "/api/v1/auth/login", "", "", bad)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i, rec.Code)
		}
	}
	rec := doJSON(handler, http.MethodPost, "/api/v1/auth/login", "", "", bad)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	_, handler := newTestAPI(t)

	rec := doJSON(handler, http.MethodGet, "/api/v1/orders", "", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = doJSON(handler, http.MethodGet, "/api/v1/orders", "garbage-token", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", rec.Code)
	}
}

func TestMutationsRequireCSRFToken(t *testing.T) {
	_, handler := newTestAPI(t)
	token := loginAs(t, handler, "host", "host123")

	rec := doJSON(handler, http.MethodPost, "/api/v1/orders", token, "", domain.OrderCreateRequest{
		CustomerName: "Sin CSRF",
		TotalCents:   1000,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without csrf token, got %d", rec.Code)
	}

	csrf := csrfToken(t, handler)
	rec = doJSON(handler, http.MethodPost, "/api/v1/orders", token, csrf, domain.OrderCreateRequest{
		CustomerName: "Con CSRF",
		TotalCents:   1000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 with csrf token, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestHostCannotManageUsers(t *testing.T) {
	_, handler := newTestAPI(t)
	token := loginAs(t, handler, "host", "host123")

	rec := doJSON(handler, http.MethodGet, "/api/v1/users/hosts", token, "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for host role, got %d", rec.Code)
	}
}

func TestAdminCreatesHostAccount(t *testing.T) {
	_, handler := newTestAPI(t)
	token := loginAs(t, handler, "admin", "admin123")
	csrf := csrfToken(t, handler)

	rec := doJSON(handler, http.MethodPost, "/api/v1/users/hosts", token, csrf, domain.HostCreateRequest{
		Username: "turno2",
		Password: "secreto99",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}

	// The new account can log in right away.
	loginAs(t, handler, "turno2", "secreto99")
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	_, handler := newTestAPI(t)
	token := loginAs(t, handler, "host", "host123")
	csrf := csrfToken(t, handler)

	rec := doJSON(handler, http.MethodPost, "/api/v1/orders", token, csrf, domain.OrderCreateRequest{
		CustomerName:  "Cliente Web",
		CustomerPhone: "5550909",
		TotalCents:    10000,
		AdvanceCents:  4000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order: %d %s", rec.Code, rec.Body.String())
	}
	var created domain.OrderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	orderID := created.Order.ID

	for i := 0; i < 4; i++ {
		rec = doJSON(handler, http.MethodPost, "/api/v1/orders/"+orderID+"/advance", token, csrf, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("advance %d: %d %s", i, rec.Code, rec.Body.String())
		}
	}

	// Delivery is blocked while a balance remains.
	rec = doJSON(handler, http.MethodPost, "/api/v1/orders/"+orderID+"/advance", token, csrf, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on unpaid delivery, got %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(handler, http.MethodPost, "/api/v1/orders/"+orderID+"/payments", token, csrf, domain.OrderPaymentRequest{
		AmountCents: 6000,
		Method:      domain.PaymentMethodCash,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("pay balance: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(handler, http.MethodPost, "/api/v1/orders/"+orderID+"/advance", token, csrf, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("deliver: %d %s", rec.Code, rec.Body.String())
	}
	var delivered domain.OrderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &delivered); err != nil {
		t.Fatalf("decode delivered: %v", err)
	}
	if delivered.Order.Status != domain.OrderStatusDelivered {
		t.Fatalf("expected DELIVERED, got %s", delivered.Order.Status)
	}
}

func TestExcessPaymentReturnsConflict(t *testing.T) {
	_, handler := newTestAPI(t)
	token := loginAs(t, handler, "host", "host123")
	csrf := csrfToken(t, handler)

	rec := doJSON(handler, http.MethodPost, "/api/v1/orders", token, csrf, domain.OrderCreateRequest{
		CustomerName: "Sobrepago",
		TotalCents:   5000,
		AdvanceCents: 1000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order: %d", rec.Code)
	}
	var created domain.OrderResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	rec = doJSON(handler, http.MethodPost, "/api/v1/orders/"+created.Order.ID+"/payments", token, csrf, domain.OrderPaymentRequest{
		AmountCents: 9000,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for excess payment, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestDirectSalesRejectRefundType(t *testing.T) {
	_, handler := newTestAPI(t)
	token := loginAs(t, handler, "host", "host123")
	csrf := csrfToken(t, handler)

	rec := doJSON(handler, http.MethodPost, "/api/v1/sales", token, csrf, domain.SaleRecord{
		Type:        domain.SaleTypeRefund,
		Description: "Atajo",
		AmountCents: -100,
		Method:      domain.PaymentMethodCash,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRefundRequiresManagerPIN(t *testing.T) {
	_, handler := newTestAPI(t)
	token := loginAs(t, handler, "host", "host123")
	csrf := csrfToken(t, handler)

	refund := domain.RefundRequest{
		Description: "Prenda danada",
		AmountCents: 1500,
		Method:      domain.PaymentMethodCash,
		ManagerPIN:  "000000",
	}
	rec := doJSON(handler, http.MethodPost, "/api/v1/refunds", token, csrf, refund)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for bad pin, got %d %s", rec.Code, rec.Body.String())
	}

	refund.ManagerPIN = "654321"
	rec = doJSON(handler, http.MethodPost, "/api/v1/refunds", token, csrf, refund)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 with manager pin, got %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Sale domain.SaleRecord `json:"sale"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode refund: %v", err)
	}
	if resp.Sale.AmountCents != -1500 || resp.Sale.Type != domain.SaleTypeRefund {
		t.Fatalf("unexpected refund entry: %+v", resp.Sale)
	}
}

func TestShiftTicketFormats(t *testing.T) {
	_, handler := newTestAPI(t)
	token := loginAs(t, handler, "host", "host123")
	csrf := csrfToken(t, handler)

	rec := doJSON(handler, http.MethodPost, "/api/v1/shifts/open", token, csrf, domain.ShiftOpenRequest{
		InitialCashCents: 50000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("open shift: %d %s", rec.Code, rec.Body.String())
	}
	var opened domain.ShiftResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &opened)

	rec = doJSON(handler, http.MethodPost, "/api/v1/shifts/close", token, csrf, domain.ShiftCloseRequest{
		DeclaredCashCents: 50000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("close shift: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(handler, http.MethodGet, "/api/v1/shifts/"+opened.Shift.ID+"/ticket?format=csv", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("csv ticket: %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/csv") {
		t.Fatalf("expected csv content type, got %q", got)
	}
	if !strings.Contains(rec.Body.String(), "difference_cents,0") {
		t.Fatalf("csv ticket missing reconciliation line:\n%s", rec.Body.String())
	}

	rec = doJSON(handler, http.MethodGet, "/api/v1/shifts/"+opened.Shift.ID+"/ticket?format=html", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("html ticket: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Corte de Caja") {
		t.Fatalf("html ticket missing title:\n%s", rec.Body.String())
	}
}

func TestUnknownOrderReturnsNotFound(t *testing.T) {
	_, handler := newTestAPI(t)
	token := loginAs(t, handler, "host", "host123")

	rec := doJSON(handler, http.MethodGet, "/api/v1/orders/ord_missing", token, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSecurityHeadersPresent(t *testing.T) {
	_, handler := newTestAPI(t)

	rec := doJSON(handler, http.MethodGet, "/healthz", "", "", nil)
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff header")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("missing frame options header")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS origin header")
	}
}
