package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hashing failed: %v", err)
	}

	if !VerifyPassword("correct horse battery staple", hash) {
		t.Error("correct password rejected")
	}
	if VerifyPassword("wrong", hash) {
		t.Error("wrong password accepted")
	}
	if VerifyPassword("correct horse battery staple", "not-a-hash") {
		t.Error("garbage hash accepted")
	}

	if _, err := HashPassword(strings.Repeat("x", MaxPasswordLength+1)); err == nil {
		t.Error("oversized password accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)

	token, err := m.GenerateToken("operator")
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if claims.Username != "operator" {
		t.Errorf("username = %q, want operator", claims.Username)
	}

	if m.TokenDuration() != 3600 {
		t.Errorf("token duration = %d, want 3600", m.TokenDuration())
	}
}

func TestTokenValidationFailures(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTManager("other-secret", time.Hour)
		token, _ := other.GenerateToken("operator")

		if _, err := m.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		expired := NewJWTManager("test-secret", -time.Minute)
		token, _ := expired.GenerateToken("operator")

		if _, err := m.ValidateToken(token); !errors.Is(err, ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
	})

	t.Run("malformed token", func(t *testing.T) {
		if _, err := m.ValidateToken("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})
}
