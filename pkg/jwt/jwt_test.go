package jwt

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndVerify(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	token, err := m.GenerateToken("u1", "Helen Owner", "homeowner")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := m.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if claims.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", claims.UserID)
	}
	if claims.DisplayName != "Helen Owner" {
		t.Errorf("DisplayName = %q", claims.DisplayName)
	}
	if claims.Role != "homeowner" {
		t.Errorf("Role = %q, want homeowner", claims.Role)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewManager("secret-a", time.Hour)
	verifier := NewManager("secret-b", time.Hour)

	token, err := issuer.GenerateToken("u1", "", "contractor")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := verifier.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := NewManager("test-secret", -time.Minute)

	token, err := m.GenerateToken("u1", "", "contractor")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := m.VerifyToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	if _, err := m.VerifyToken("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}
