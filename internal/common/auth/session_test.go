package auth

import (
	"testing"
	"time"

	"github.com/VCRTS/VCRTS/internal/common/config"
)

func TestIssueAndVerifySessionToken(t *testing.T) {
	cfg := config.AuthConfig{
		JWTSecret: "test-secret",
		Issuer:    "vcrts",
		Audience:  "vcrts",
		TTLHours:  1,
	}

	token, exp, err := IssueSessionToken(cfg, "alice", "CarOwner")
	if err != nil {
		t.Fatalf("IssueSessionToken: %v", err)
	}
	if token == "" {
		t.Fatalf("expected token")
	}
	if exp.Before(time.Now()) {
		t.Fatalf("expected exp in future")
	}

	sess, err := VerifySessionToken(cfg, token)
	if err != nil {
		t.Fatalf("VerifySessionToken: %v", err)
	}
	if sess.Username != "alice" {
		t.Fatalf("username mismatch: %s", sess.Username)
	}
	if sess.Role != "CarOwner" {
		t.Fatalf("role mismatch: %s", sess.Role)
	}
}

func TestVerifySessionTokenRejectsWrongSecret(t *testing.T) {
	cfg := config.AuthConfig{JWTSecret: "secret-a", Issuer: "vcrts", Audience: "vcrts"}

	token, _, err := IssueSessionToken(cfg, "bob", "JobSubmitter")
	if err != nil {
		t.Fatalf("IssueSessionToken: %v", err)
	}

	other := config.AuthConfig{JWTSecret: "secret-b", Issuer: "vcrts", Audience: "vcrts"}
	if _, err := VerifySessionToken(other, token); err == nil {
		t.Fatalf("expected verify to fail with wrong secret")
	}
}

func TestVerifySessionTokenRejectsWrongIssuer(t *testing.T) {
	cfg := config.AuthConfig{JWTSecret: "secret", Issuer: "vcrts", Audience: "vcrts"}
	token, _, err := IssueSessionToken(cfg, "bob", "JobSubmitter")
	if err != nil {
		t.Fatalf("IssueSessionToken: %v", err)
	}

	other := cfg
	other.Issuer = "someone-else"
	if _, err := VerifySessionToken(other, token); err == nil {
		t.Fatalf("expected verify to fail with wrong issuer")
	}
}
