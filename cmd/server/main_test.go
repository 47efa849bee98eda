package main

import (
	"strings"
	"testing"

	"washouse/backend/internal/config"
)

func TestValidateSecurityConfig(t *testing.T) {
	strongSecret := strings.Repeat("s", 32)

	cases := []struct {
		name    string
		cfg     config.Config
		wantErr string
	}{
		{"missing secret", config.Config{ManagerPIN: "847291"}, "AUTH_SECRET"},
		{"short secret", config.Config{AuthSecret: "short", ManagerPIN: "847291"}, "AUTH_SECRET"},
		{"missing pin", config.Config{AuthSecret: strongSecret}, "MANAGER_PIN"},
		{"short pin", config.Config{AuthSecret: strongSecret, ManagerPIN: "12345"}, "MANAGER_PIN"},
		{"weak pin", config.Config{AuthSecret: strongSecret, ManagerPIN: "123456"}, "too weak"},
		{"valid", config.Config{AuthSecret: strongSecret, ManagerPIN: "847291"}, ""},
	}

	for _, tc := range cases {
		err := validateSecurityConfig(tc.cfg)
		if tc.wantErr == "" {
			if err != nil {
				t.Errorf("%s: unexpected error %v", tc.name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
			t.Errorf("%s: expected error containing %q, got %v", tc.name, tc.wantErr, err)
		}
	}
}

func TestValidatePINStrength(t *testing.T) {
	weak := []string{
		"123456", "654321", "000000", "999999", "112233",
		"111111", "123456789", "987654", "222222",
	}
	for _, pin := range weak {
		if err := validatePINStrength(pin); err == nil {
			t.Errorf("expected %q rejected", pin)
		}
	}

	strong := []string{"847291", "308572", "194753"}
	for _, pin := range strong {
		if err := validatePINStrength(pin); err != nil {
			t.Errorf("expected %q accepted, got %v", pin, err)
		}
	}
}
