package service

import (
	"errors"
	"testing"

	"github.com/emarket-next/internal/config"
)

func TestValidatePassword(t *testing.T) {
	policy := config.PasswordPolicyConfig{MinLength: 8, RequireUpper: true, RequireNumber: true}
	cases := []struct {
		password string
		key      string
	}{
		{"Ab1", "error.password_min_length"},
		{"abcdefg1", "error.password_require_upper"},
		{"Abcdefgh", "error.password_require_number"},
		{"Abcdefg1", ""},
	}
	for _, tc := range cases {
		err := validatePassword(policy, tc.password)
		if tc.key == "" {
			if err != nil {
				t.Fatalf("%q should pass, got %v", tc.password, err)
			}
			continue
		}
		if !errors.Is(err, ErrWeakPassword) {
			t.Fatalf("%q want ErrWeakPassword, got %v", tc.password, err)
		}
		var policyErr passwordPolicyError
		if !errors.As(err, &policyErr) || policyErr.Key() != tc.key {
			t.Fatalf("%q want key %s, got %v", tc.password, tc.key, err)
		}
	}
}
