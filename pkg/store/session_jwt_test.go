package store

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func TestJWTSessionStoreRoundTrip(t *testing.T) {
	s, err := NewJWTSessionStore("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if token == "" {
		t.Fatalf("expected token")
	}
	userID, ok, err := s.GetUserIDByToken(token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if !ok || userID != "user-1" {
		t.Fatalf("unexpected verify result: ok=%v userID=%q", ok, userID)
	}
}

func TestJWTSessionStoreRejectsExpiredToken(t *testing.T) {
	s, err := NewJWTSessionStore("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	past := time.Now().UTC().Add(-2 * time.Minute)
	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		IssuedAt:  jwt.NewNumericDate(past),
		ExpiresAt: jwt.NewNumericDate(past.Add(time.Minute)),
		ID:        "jti-expired",
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, ok, err := s.GetUserIDByToken(expired); err == nil || ok {
		t.Fatalf("expected expired token to fail, ok=%v err=%v", ok, err)
	}
}

func TestJWTSessionStoreRejectsWrongSecret(t *testing.T) {
	signer, err := NewJWTSessionStore("secret-a", time.Minute)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	verifier, err := NewJWTSessionStore("secret-b", time.Minute)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	token, err := signer.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, ok, err := verifier.GetUserIDByToken(token); err == nil || ok {
		t.Fatalf("expected signature mismatch to fail, ok=%v err=%v", ok, err)
	}
}

func TestJWTSessionStoreRejectsUnsignedToken(t *testing.T) {
	s, err := NewJWTSessionStore("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}
	if _, ok, err := s.GetUserIDByToken(unsigned); err == nil || ok {
		t.Fatalf("expected alg=none token to fail, ok=%v err=%v", ok, err)
	}
}

func TestJWTSessionStoreRequiresSecret(t *testing.T) {
	if _, err := NewJWTSessionStore("   ", time.Minute); err == nil {
		t.Fatalf("expected constructor error for empty secret")
	}
}
