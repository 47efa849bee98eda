package httpapi

import (
	"strings"
	"testing"
	"time"

	"washouse/backend/internal/domain"
)

func newTestAuth() *AuthManager {
	return NewAuthManager("test-secret-key-that-is-long-enough", time.Hour, "654321", nil)
}

func TestTokenRoundTrip(t *testing.T) {
	auth := newTestAuth()

	token, err := auth.sign("cajero1", "host", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	actor, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if actor.Username != "cajero1" || actor.Role != "host" {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	auth := newTestAuth()

	token, err := auth.sign("cajero1", "host", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := auth.ParseToken(tampered); err == nil {
		t.Fatalf("expected tampered token rejected")
	}

	other := NewAuthManager("a-completely-different-secret-key!!", time.Hour, "654321", nil)
	if _, err := other.ParseToken(token); err == nil {
		t.Fatalf("expected cross-secret token rejected")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	auth := newTestAuth()

	token, err := auth.sign("cajero1", "host", time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatalf("expected expired token rejected")
	}
}

func TestCreateHostValidation(t *testing.T) {
	auth := newTestAuth()

	cases := []struct {
		name string
		req  domain.HostCreateRequest
		want string
	}{
		{"short username", domain.HostCreateRequest{Username: "ab", Password: "secreto99"}, "at least 4 characters"},
		{"spaced username", domain.HostCreateRequest{Username: "dos palabras", Password: "secreto99"}, "spaces"},
		{"short password", domain.HostCreateRequest{Username: "cajero2", Password: "abc"}, "at least 6 characters"},
	}
	for _, tc := range cases {
		_, err := auth.CreateHost(tc.req)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: expected error containing %q, got %v", tc.name, tc.want, err)
		}
	}

	if _, err := auth.CreateHost(domain.HostCreateRequest{Username: "cajero3", Password: "secreto99"}); err != nil {
		t.Fatalf("valid host rejected: %v", err)
	}
	if _, err := auth.CreateHost(domain.HostCreateRequest{Username: "CAJERO3", Password: "secreto99"}); err == nil {
		t.Fatalf("expected duplicate username rejected case-insensitively")
	}

	hosts := auth.ListHosts()
	if len(hosts) != 1 || hosts[0].Username != "cajero3" {
		t.Fatalf("unexpected host list: %+v", hosts)
	}
}

func TestValidateManagerPIN(t *testing.T) {
	auth := newTestAuth()

	if !auth.ValidateManagerPIN("654321") {
		t.Fatalf("expected configured pin accepted")
	}
	if auth.ValidateManagerPIN("123456") {
		t.Fatalf("expected wrong pin rejected")
	}
	if auth.ValidateManagerPIN("") {
		t.Fatalf("expected empty pin rejected")
	}
	if auth.ValidateManagerPIN(" 654321 ") != true {
		t.Fatalf("expected trimmed pin accepted")
	}
}

func TestLoginWithoutStoreFails(t *testing.T) {
	auth := newTestAuth()

	if _, err := auth.Login(domain.LoginRequest{Username: "nadie", Password: "x"}); err == nil {
		t.Fatalf("expected unknown user rejected")
	}
}
