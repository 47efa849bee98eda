// Package httpapi exposes the engine over a JSON HTTP surface. Routing
// uses the standard mux with method dispatch inside each handler; auth
// is a bearer JWT checked per route with role allowlists.
package httpapi

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"washouse/backend/internal/domain"
	"washouse/backend/internal/service"
	"washouse/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	pinLimiter    *attemptLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		// Deterministic fallback, crypto/rand failing here means the host
		// is broken anyway.
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		pinLimiter:    newAttemptLimiter(8, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour
// bucket, expressed as Unix time truncated to the hour.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	now := time.Now().UTC()
	bucket := now.Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken accepts the current or previous hour bucket, giving
// a 2-hour validity window.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	now := time.Now().UTC()
	currentBucket := now.Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	expected1 := a.csrfTokenForHour(currentBucket)
	expected2 := a.csrfTokenForHour(prevBucket)

	return hmac.Equal([]byte(token), []byte(expected1)) ||
		hmac.Equal([]byte(token), []byte(expected2))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/csrf-token", a.handleCSRFToken)

	mux.HandleFunc("/api/v1/branches", a.requireAuth(a.handleBranches, "host", "admin"))
	mux.HandleFunc("/api/v1/branches/", a.requireAuth(a.handleBranchActions, "host", "admin"))
	mux.HandleFunc("/api/v1/machines/", a.requireAuth(a.handleMachineActions, "host", "admin"))

	mux.HandleFunc("/api/v1/orders", a.requireAuth(a.handleOrders, "host", "admin"))
	mux.HandleFunc("/api/v1/orders/", a.requireAuth(a.handleOrderActions, "host", "admin"))

	mux.HandleFunc("/api/v1/sales", a.requireAuth(a.handleSales, "host", "admin"))
	mux.HandleFunc("/api/v1/counter-sales", a.requireAuth(a.handleCounterSales, "host", "admin"))
	mux.HandleFunc("/api/v1/refunds", a.requireAuth(a.handleRefunds, "host", "admin"))
	mux.HandleFunc("/api/v1/expenses", a.requireAuth(a.handleExpenses, "host", "admin"))

	mux.HandleFunc("/api/v1/shifts", a.requireAuth(a.handleShifts, "host", "admin"))
	mux.HandleFunc("/api/v1/shifts/open", a.requireAuth(a.handleShiftOpen, "host", "admin"))
	mux.HandleFunc("/api/v1/shifts/close", a.requireAuth(a.handleShiftClose, "host", "admin"))
	mux.HandleFunc("/api/v1/shifts/active", a.requireAuth(a.handleShiftActive, "host", "admin"))
	mux.HandleFunc("/api/v1/shifts/", a.requireAuth(a.handleShiftActions, "host", "admin"))

	mux.HandleFunc("/api/v1/inventory", a.requireAuth(a.handleInventory, "host", "admin"))
	mux.HandleFunc("/api/v1/inventory/", a.requireAuth(a.handleInventoryActions, "host", "admin"))

	mux.HandleFunc("/api/v1/customers", a.requireAuth(a.handleCustomers, "host", "admin"))
	mux.HandleFunc("/api/v1/customers/", a.requireAuth(a.handleCustomerActions, "host", "admin"))

	mux.HandleFunc("/api/v1/activity-logs", a.requireAuth(a.handleActivityLogs, "host", "admin"))
	mux.HandleFunc("/api/v1/users/hosts", a.requireAuth(a.handleHosts, "admin"))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless token clients must send back in
// the X-CSRF-Token header on mutating requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

// Login is exempt because it is called before any CSRF token fetch.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	method := r.Method
	if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch && method != http.MethodDelete {
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func statusForServiceError(err error, fallback int) int {
	status := fallback
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrPaymentRequired):
		status = http.StatusConflict
	case errors.Is(err, store.ErrExcessPayment):
		status = http.StatusConflict
	case errors.Is(err, store.ErrShiftAlreadyOpen):
		status = http.StatusConflict
	case errors.Is(err, store.ErrInvalidOperation):
		status = http.StatusBadRequest
	}
	if strings.Contains(strings.ToLower(err.Error()), "admin role required") {
		status = http.StatusForbidden
	}
	return status
}

func (a *API) handleBranches(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		branches, err := a.service.ListBranches(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"branches": branches})
	case http.MethodPost:
		var req domain.BranchCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		branch, err := a.service.CreateBranch(r.Context(), req)
		if err != nil {
			writeError(w, statusForServiceError(err, http.StatusUnprocessableEntity), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"branch": branch})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleBranchActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/branches/"
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("branch id required"))
		return
	}

	if strings.HasSuffix(tail, "/machines") {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		branchID := strings.Trim(strings.TrimSuffix(tail, "/machines"), "/")
		machines, err := a.service.ListMachines(r.Context(), branchID)
		if err != nil {
			writeError(w, statusForServiceError(err, http.StatusUnprocessableEntity), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"machines": machines})
		return
	}

	if strings.HasSuffix(tail, "/standard-catalog") {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		branchID := strings.Trim(strings.TrimSuffix(tail, "/standard-catalog"), "/")
		items, err := a.service.LoadStandardCatalog(r.Context(), branchID)
		if err != nil {
			writeError(w, statusForServiceError(err, http.StatusUnprocessableEntity), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
		return
	}

	switch r.Method {
	case http.MethodGet:
		branch, err := a.service.GetBranch(r.Context(), tail)
		if err != nil {
			writeError(w, statusForServiceError(err, http.StatusUnprocessableEntity), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"branch": branch})
	case http.MethodPatch:
		var req domain.BranchUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		branch, err := a.service.UpdateBranch(r.Context(), tail, req)
		if err != nil {
			writeError(w, statusForServiceError(err, http.StatusUnprocessableEntity), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"branch": branch})
	case http.MethodDelete:
		if err := a.service.DeleteBranch(r.Context(), tail); err != nil {
			writeError(w, statusForServiceError(err, http.StatusUnprocessableEntity), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleMachineActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/machines/"
	if !strings.HasSuffix(r.URL.Path, "/status") {
		writeError(w, http.StatusBadRequest, errors.New("invalid machine action path"))
		return
	}
	if r.Method != http.MethodPatch {
		writeMethodNotAllowed(w)
		return
	}
	machineID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, prefix), "/status")
	machineID = strings.TrimSpace(strings.Trim(machineID, "/"))
	if machineID == "" {
		writeError(w, http.StatusBadRequest, errors.New("machine id required"))
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	machine, err := a.service.SetMachineStatus(r.Context(), machineID, req.Status)
	if err != nil {
		writeError(w, statusForServiceError(err, http.StatusUnprocessableEntity), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"machine": machine})
}

func (a *API) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		branchID := r.URL.Query().Get("branch_id")
		orders, err := a.service.ListOrders(r.Context(), branchID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
	case http.MethodPost:
		var req domain.OrderCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		order, err := a.service.CreateOrder(r.Context(), req)
		if err != nil {
			writeError(w, statusForServiceError(err, http.StatusUnprocessableEntity), err)
			return
		}
		writeJSON(w, http.StatusCreated, domain.OrderResponse{Order: order})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleOrderActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/orders/"
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("order id required"))
		return
	}

	if strings.HasSuffix(tail, "/advance") {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		orderID := strings.Trim(strings.TrimSuffix(tail, "/advance"), "/")
		order, err := a.service.AdvanceOrderStatus(r.Context(), orderID)
		if err != nil {
			writeError(w, statusForServiceError(err, http.StatusUnprocessableEntity), err)
			return
		}
		writeJSON(w, http.StatusOK, domain.OrderResponse{Order: order})
		return
	}

	if strings.HasSuffix(tail, "/payments") {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		orderID := strings.Trim(strings.TrimSuffix(tail, "/payments"), "/")

		var req domain.OrderPaymentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		order, err := a.service.ApplyOrderPayment(r.Context(), orderID, req)
		if err != nil {
			writeError(w, statusForServiceError(err, http.StatusUnprocessableEntity), err)
			return
		}
		writeJSON(w, http.StatusOK, domain.OrderResponse{Order: order})
		return
	}

	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	order, err := a.service.GetOrder(r.Context(), tail)
	if err != nil {
		writeError(w, statusForServiceError(err, http.StatusUnprocessableEntity), err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OrderResponse{Order: order})
}

func parseTimeParam(raw string) time.Time {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return ts.UTC()
	}
	if day, err := time.Parse("2006-01-02", trimmed); err == nil {
		return day.UTC()
	}
	return time.Time{}
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		branchID := r.URL.Query().Get("branch_id")
		from := parseTimeParam(r.URL.Query().Get("from"))
		to := parseTimeParam(r.URL.Query().Get("to"))
		sales, err := a.service.ListSales(r.Context(), branchID, from, to)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
	case http.MethodPost:
		var req domain.SaleRecord
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if req.Type == domain.SaleTypeRefund {
			writeError(w, http.StatusBadRequest, errors.New("refunds go through /api/v1/refunds"))
			return
		}

		sale, err := a.service.RecordSale(r.Context(), req)
		if err != nil {
			writeError(w, statusForServiceError(err, http.StatusUnprocessableEntity), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"sale": sale})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCounterSales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.CounterSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sale, err := a.service.RecordCounterSale(r.Context(), req)
	if err != nil {
		writeError(w, statusForServiceError(err, http.StatusUnprocessableEntity), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"sale": sale})
}

func (a *API) handleRefunds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.RefundRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.AmountCents <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("refund amount must be positive"))
		return
	}
	if !a.pinLimiter.Allow("pin:refund:" + clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many manager pin attempts"))
		return
	}
	if !a.auth.ValidateManagerPIN(req.ManagerPIN) {
		writeError(w, http.StatusForbidden, errors.New("invalid manager pin"))
		return
	}

	sale, err := a.service.RecordSale(r.Context(), domain.SaleRecord{
		BranchID:    req.BranchID,
		Type:        domain.SaleTypeRefund,
		Description: req.Description,
		AmountCents: -req.AmountCents,
		Method:      req.Method,
		OrderID:     req.OrderID,
	})
	if err != nil {
		writeError(w, statusForServiceError(err, http.StatusUnprocessableEntity), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"sale": sale})
}

func (a *API) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		branchID := r.URL.Query().Get("branch_id")
		from := parseTimeParam(r.URL.Query().Get("from"))
		to := parseTimeParam(r.URL.Query().Get("to"))
		expenses, err := a.service.ListExpenses(r.Context(), branchID, from, to)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
	case http.MethodPost:
		var req domain.ExpenseCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		expense, err := a.service.RecordExpense(r.Context(), req)
		if err != nil {
			writeError(w, statusForServiceError(err, http.StatusUnprocessableEntity), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"expense": expense})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleShifts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	branchID := r.URL.Query().Get("branch_id")
	shifts, err := a.service.ListShifts(r.Context(), branchID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shifts": shifts})
}

func (a *API) handleShiftOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.ShiftOpenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	shift, err := a.service.OpenShift(r.Context(), req)
	if err != nil {
		writeError(w, statusForServiceError(err, http.StatusUnprocessableEntity), err)
		return
	}
	writeJSON(w, http.StatusCreated, domain.ShiftResponse{Shift: shift})
}

func (a *API) handleShiftClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.ShiftCloseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	shift, err := a.service.CloseShift(r.Context(), req)
	if err != nil {
		writeError(w, statusForServiceError(err, http.StatusUnprocessableEntity), err)
		return
	}
	writeJSON(w, http.StatusOK, domain.ShiftResponse{Shift: shift})
}

func (a *API) handleShiftActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	branchID := r.URL.Query().Get("branch_id")
	shift, err := a.service.GetActiveShift(r.Context(), branchID)
	if err != nil {
		writeError(w, statusForServiceError(err, http.StatusUnprocessableEntity), err)
		return
	}
	writeJSON(w, http.StatusOK, domain.ShiftResponse{Shift: shift})
}

// handleShiftActions renders the close-out ticket for a shift, as JSON,
// CSV, or printable HTML.
func (a *API) handleShiftActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/shifts/"
	if !strings.HasSuffix(r.URL.Path, "/ticket") {
		writeError(w, http.StatusBadRequest, errors.New("invalid shift action path"))
		return
	}
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	shiftID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, prefix), "/ticket")
	shiftID = strings.TrimSpace(strings.Trim(shiftID, "/"))
	if shiftID == "" {
		writeError(w, http.StatusBadRequest, errors.New("shift id required"))
		return
	}

	shifts, err := a.service.ListShifts(r.Context(), "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	var found *domain.Shift
	for i := range shifts {
		if shifts[i].ID == shiftID {
			found = &shifts[i]
			break
		}
	}
	if found == nil {
		writeError(w, http.StatusNotFound, errors.New("shift not found"))
		return
	}

	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"shift-%s.csv\"", found.ID))
		_, _ = w.Write([]byte(shiftTicketToCSV(*found)))
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(shiftTicketToPrintableHTML(*found)))
	default:
		writeJSON(w, http.StatusOK, domain.ShiftResponse{Shift: *found})
	}
}

func (a *API) handleInventory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		branchID := r.URL.Query().Get("branch_id")
		items, err := a.service.ListInventory(r.Context(), branchID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		var req domain.InventoryItemCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		item, err := a.service.CreateInventoryItem(r.Context(), req)
		if err != nil {
			writeError(w, statusForServiceError(err, http.StatusUnprocessableEntity), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"item": item})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleInventoryActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/inventory/"
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("item id required"))
		return
	}
	branchID := r.URL.Query().Get("branch_id")

	if strings.HasSuffix(tail, "/adjust-stock") {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		itemID := strings.Trim(strings.TrimSuffix(tail, "/adjust-stock"), "/")

		var req domain.StockAdjustRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if req.BranchID != "" {
			branchID = req.BranchID
		}

		item, err := a.service.AdjustStock(r.Context(), itemID, branchID, req)
		if err != nil {
			writeError(w, statusForServiceError(err, http.StatusUnprocessableEntity), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"item": item})
		return
	}

	switch r.Method {
	case http.MethodGet:
		item, err := a.service.GetInventoryItem(r.Context(), tail, branchID)
		if err != nil {
			writeError(w, statusForServiceError(err, http.StatusUnprocessableEntity), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"item": item})
	case http.MethodPatch:
		var req domain.InventoryItemUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		item, err := a.service.UpdateInventoryItem(r.Context(), tail, branchID, req)
		if err != nil {
			writeError(w, statusForServiceError(err, http.StatusUnprocessableEntity), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"item": item})
	case http.MethodDelete:
		if err := a.service.DeleteInventoryItem(r.Context(), tail, branchID); err != nil {
			writeError(w, statusForServiceError(err, http.StatusUnprocessableEntity), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	branchID := r.URL.Query().Get("branch_id")
	customers, err := a.service.ListCustomers(r.Context(), branchID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (a *API) handleCustomerActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/customers/"
	phone := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if phone == "" {
		writeError(w, http.StatusBadRequest, errors.New("customer phone required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		customer, err := a.service.GetCustomer(r.Context(), phone)
		if err != nil {
			writeError(w, statusForServiceError(err, http.StatusUnprocessableEntity), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
	case http.MethodPatch:
		var req domain.CustomerOverrideRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		customer, err := a.service.UpdateCustomerOverride(r.Context(), phone, req)
		if err != nil {
			writeError(w, statusForServiceError(err, http.StatusUnprocessableEntity), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleActivityLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	branchID := r.URL.Query().Get("branch_id")
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	logs, err := a.service.ListActivity(r.Context(), branchID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (a *API) handleHosts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		hosts := a.auth.ListHosts()
		writeJSON(w, http.StatusOK, map[string]any{"hosts": hosts})
	case http.MethodPost:
		var req domain.HostCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		host, err := a.auth.CreateHost(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{"host": host})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func shiftTicketToCSV(shift domain.Shift) string {
	lines := []string{
		"key,value",
		fmt.Sprintf("shift_id,%s", shift.ID),
		fmt.Sprintf("branch_id,%s", shift.BranchID),
		fmt.Sprintf("opened_by,%s", shift.OpenedBy),
		fmt.Sprintf("start_time,%s", shift.StartTime.Format(time.RFC3339)),
		fmt.Sprintf("status,%s", shift.Status),
		fmt.Sprintf("initial_cash_cents,%d", shift.InitialCashCents),
		fmt.Sprintf("total_sales_cents,%d", shift.TotalSalesCents),
		fmt.Sprintf("cash_sales_cents,%d", shift.CashSalesCents),
		fmt.Sprintf("card_sales_cents,%d", shift.CardSalesCents),
		fmt.Sprintf("transfer_sales_cents,%d", shift.TransferSalesCents),
		fmt.Sprintf("sale_count,%d", shift.SaleCount),
		fmt.Sprintf("total_expenses_cents,%d", shift.TotalExpensesCents),
		fmt.Sprintf("expected_drawer_cents,%d", shift.ExpectedDrawerCents),
		fmt.Sprintf("final_cash_cents,%d", shift.FinalCashCents),
		fmt.Sprintf("difference_cents,%d", shift.DifferenceCents),
	}
	if shift.EndedAt != nil {
		lines = append(lines, fmt.Sprintf("ended_at,%s", shift.EndedAt.Format(time.RFC3339)))
	}
	if shift.ClosedBy != "" {
		lines = append(lines, fmt.Sprintf("closed_by,%s", shift.ClosedBy))
	}
	return strings.Join(lines, "\n") + "\n"
}

// shiftTicketHTMLTmpl renders the printable close-out ticket.
// User-controlled fields are auto-escaped by html/template.
var shiftTicketHTMLTmpl = template.Must(template.New("shift-ticket").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Corte de Caja {{.ID}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    h2 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>Corte de Caja</h2>
  <p>Turno: {{.ID}} | Sucursal: {{.BranchID}} | Abierto por: {{.OpenedBy}}</p>
  <table>
    <tbody>
      <tr><td>Fondo inicial</td><td style="text-align:right;">{{.InitialCashCents}}</td></tr>
      <tr><td>Ventas totales</td><td style="text-align:right;">{{.TotalSalesCents}}</td></tr>
      <tr><td>Efectivo</td><td style="text-align:right;">{{.CashSalesCents}}</td></tr>
      <tr><td>Tarjeta</td><td style="text-align:right;">{{.CardSalesCents}}</td></tr>
      <tr><td>Transferencia</td><td style="text-align:right;">{{.TransferSalesCents}}</td></tr>
      <tr><td>Gastos</td><td style="text-align:right;">{{.TotalExpensesCents}}</td></tr>
      <tr><td>Efectivo esperado</td><td style="text-align:right;">{{.ExpectedDrawerCents}}</td></tr>
      <tr><td>Efectivo declarado</td><td style="text-align:right;">{{.FinalCashCents}}</td></tr>
      <tr><td>Diferencia</td><td style="text-align:right;">{{.DifferenceCents}}</td></tr>
    </tbody>
  </table>
</body>
</html>
`))

func shiftTicketToPrintableHTML(shift domain.Shift) string {
	var buf bytes.Buffer
	if err := shiftTicketHTMLTmpl.Execute(&buf, shift); err != nil {
		return "<!doctype html><html><body><p>Ticket rendering error.</p></body></html>"
	}
	return buf.String()
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 4xx messages are user-facing; 5xx bodies stay generic so internal
	// details never leak.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
