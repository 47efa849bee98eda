package httpapi

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestCSRFTokenWindow(t *testing.T) {
	api, _ := newTestAPI(t)

	token := api.generateCSRFToken()
	if !api.validateCSRFToken(token) {
		t.Fatalf("freshly generated token must validate")
	}

	// Previous hour bucket stays valid for clients that fetched a token
	// just before the hour rolled over.
	prev := time.Now().UTC().Truncate(time.Hour).Unix() - 3600
	if !api.validateCSRFToken(api.csrfTokenForHour(prev)) {
		t.Fatalf("previous-hour token must validate")
	}

	stale := prev - 3600
	if api.validateCSRFToken(api.csrfTokenForHour(stale)) {
		t.Fatalf("two-hour-old token must be rejected")
	}

	if api.validateCSRFToken("") || api.validateCSRFToken("bogus") {
		t.Fatalf("garbage tokens must be rejected")
	}
}

func TestAttemptLimiter(t *testing.T) {
	limiter := newAttemptLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("10.0.0.1") {
			t.Fatalf("attempt %d should be allowed", i)
		}
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatalf("fourth attempt should be denied")
	}
	// Other keys are tracked independently.
	if !limiter.Allow("10.0.0.2") {
		t.Fatalf("separate key should be allowed")
	}

	var nilLimiter *attemptLimiter
	if !nilLimiter.Allow("anything") {
		t.Fatalf("nil limiter must allow")
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest("GET", "/healthz", nil)
	req.RemoteAddr = "192.0.2.7:51234"
	if got := clientKey(req); got != "192.0.2.7" {
		t.Fatalf("expected ip without port, got %q", got)
	}

	req.RemoteAddr = "[2001:db8::1]:443"
	if got := clientKey(req); got != "2001:db8::1" {
		t.Fatalf("expected bare ipv6, got %q", got)
	}

	req.RemoteAddr = ""
	if got := clientKey(req); got != "unknown" {
		t.Fatalf("expected unknown for empty addr, got %q", got)
	}
}

func TestParseTimeParam(t *testing.T) {
	if ts := parseTimeParam("2026-03-10"); ts.IsZero() {
		t.Fatalf("date-only form must parse")
	}
	if ts := parseTimeParam("2026-03-10T09:00:00Z"); ts.IsZero() {
		t.Fatalf("RFC3339 form must parse")
	}
	if ts := parseTimeParam("not a date"); !ts.IsZero() {
		t.Fatalf("garbage must come back zero")
	}
	if ts := parseTimeParam(""); !ts.IsZero() {
		t.Fatalf("empty must come back zero")
	}
}

func TestParsePositiveLimit(t *testing.T) {
	if got := parsePositiveLimit("", 100, 500); got != 100 {
		t.Fatalf("expected fallback, got %d", got)
	}
	if got := parsePositiveLimit("25", 100, 500); got != 25 {
		t.Fatalf("expected 25, got %d", got)
	}
	if got := parsePositiveLimit("9999", 100, 500); got != 500 {
		t.Fatalf("expected cap 500, got %d", got)
	}
	if got := parsePositiveLimit("-3", 100, 500); got != 100 {
		t.Fatalf("negative must fall back, got %d", got)
	}
}
