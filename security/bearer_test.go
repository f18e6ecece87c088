package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agentmesh/engine/types"
)

func TestIssueAndVerifyBearer(t *testing.T) {
	secret := "bearer-secret"
	token, err := IssueBearer("agentmesh-worker", "agentmesh-api", 30*time.Second, secret)
	if err != nil {
		t.Fatalf("IssueBearer: %v", err)
	}

	claims, err := VerifyBearer(token, "agentmesh-api", secret)
	if err != nil {
		t.Fatalf("VerifyBearer: %v", err)
	}
	if claims.Issuer != "agentmesh-worker" {
		t.Fatalf("unexpected issuer: %q", claims.Issuer)
	}
}

func TestIssueBearerCapsTTL(t *testing.T) {
	secret := "bearer-secret"
	token, err := IssueBearer("svc", "api", 10*time.Minute, secret)
	if err != nil {
		t.Fatalf("IssueBearer: %v", err)
	}
	claims, err := VerifyBearer(token, "api", secret)
	if err != nil {
		t.Fatalf("VerifyBearer: %v", err)
	}
	if claims.ExpiresAt.Sub(claims.IssuedAt.Time) > MaxBearerTTL {
		t.Fatalf("expected TTL capped at %v, got %v", MaxBearerTTL, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
	}
}

func TestVerifyBearerRejectsExpired(t *testing.T) {
	secret := "bearer-secret"

	// Mint directly rather than via IssueBearer so the expiry can sit
	// well outside the leeway window without sleeping in the test.
	past := time.Now().Add(-1 * time.Hour)
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "svc",
		Audience:  jwt.ClaimStrings{"api"},
		IssuedAt:  jwt.NewNumericDate(past),
		NotBefore: jwt.NewNumericDate(past),
		ExpiresAt: jwt.NewNumericDate(past.Add(time.Second)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	_, err = VerifyBearer(token, "api", secret)
	if err == nil {
		t.Fatal("expected expired token to fail verification")
	}
	terr, ok := err.(*types.Error)
	if !ok {
		t.Fatalf("expected *types.Error, got %T", err)
	}
	if terr.Code != types.ErrUnauthorized || terr.Message != "expired" {
		t.Fatalf("unexpected error: %+v", terr)
	}
}

func TestVerifyBearerRejectsWrongAudience(t *testing.T) {
	secret := "bearer-secret"
	token, err := IssueBearer("svc", "api-a", 30*time.Second, secret)
	if err != nil {
		t.Fatalf("IssueBearer: %v", err)
	}
	_, err = VerifyBearer(token, "api-b", secret)
	if err == nil {
		t.Fatal("expected wrong-audience token to fail verification")
	}
	terr := err.(*types.Error)
	if terr.Message != "bad_audience" {
		t.Fatalf("expected bad_audience, got %q", terr.Message)
	}
}

func TestVerifyBearerRejectsWrongSecret(t *testing.T) {
	token, err := IssueBearer("svc", "api", 30*time.Second, "secret-a")
	if err != nil {
		t.Fatalf("IssueBearer: %v", err)
	}
	_, err = VerifyBearer(token, "api", "secret-b")
	if err == nil {
		t.Fatal("expected wrong-secret token to fail verification")
	}
	terr := err.(*types.Error)
	if terr.Message != "bad_signature" {
		t.Fatalf("expected bad_signature, got %q", terr.Message)
	}
}
