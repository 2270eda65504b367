// Package auth provides unit tests for password hashing and session tokens.
package auth

import (
	"testing"
	"time"
)

// TestPasswordHashRoundTrip verifies hashing and verification.
func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if !VerifyPassword(hash, "correct horse battery") {
		t.Error("VerifyPassword rejected the correct password")
	}
	if VerifyPassword(hash, "wrong password") {
		t.Error("VerifyPassword accepted a wrong password")
	}
}

// TestTokenRoundTrip verifies that an issued token verifies back to the same
// user and session ids.
func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", "test-issuer", "test-audience")

	token, err := tm.Issue("u1", "s1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	userID, sessionID, err := tm.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if userID != "u1" || sessionID != "s1" {
		t.Errorf("Verify() = (%q, %q), want (u1, s1)", userID, sessionID)
	}
}

// TestTokenExpired verifies that an expired token is rejected.
func TestTokenExpired(t *testing.T) {
	tm := NewTokenManager("test-secret", "test-issuer", "test-audience")

	token, err := tm.Issue("u1", "s1", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, _, err := tm.Verify(token); err != ErrExpiredToken {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}

// TestTokenWrongSecret verifies that a token signed with another secret is
// rejected as forged.
func TestTokenWrongSecret(t *testing.T) {
	issue := NewTokenManager("secret-a", "test-issuer", "test-audience")
	verify := NewTokenManager("secret-b", "test-issuer", "test-audience")

	token, err := issue.Issue("u1", "s1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, _, err := verify.Verify(token); err != ErrInvalidToken {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

// TestTokenWrongAudience verifies audience validation.
func TestTokenWrongAudience(t *testing.T) {
	issue := NewTokenManager("test-secret", "test-issuer", "other-audience")
	verify := NewTokenManager("test-secret", "test-issuer", "test-audience")

	token, err := issue.Issue("u1", "s1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, _, err := verify.Verify(token); err != ErrInvalidToken {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

// TestTokenGarbage verifies that an arbitrary string is rejected.
func TestTokenGarbage(t *testing.T) {
	tm := NewTokenManager("test-secret", "test-issuer", "test-audience")
	if _, _, err := tm.Verify("not-a-token"); err != ErrInvalidToken {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}
