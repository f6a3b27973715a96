package jwtkit

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func TestSignAssertionClaims(t *testing.T) {
	signer, err := NewRSASigner(2048, "test-kid")
	if err != nil {
		t.Fatalf("NewRSASigner: %v", err)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	raw, err := SignAssertion(context.Background(), signer, "svc@demo.example", Assertion{
		Audience: "https://oauth2.googleapis.com/token",
		Scope:    "scope-a scope-b",
		Lifetime: time.Hour,
	}, now)
	if err != nil {
		t.Fatalf("SignAssertion: %v", err)
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (any, error) {
		return signer.PublicKey(), nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !parsed.Valid {
		t.Fatal("expected valid token")
	}

	if claims["iss"] != "svc@demo.example" || claims["sub"] != "svc@demo.example" {
		t.Errorf("iss/sub = %v/%v", claims["iss"], claims["sub"])
	}
	if claims["aud"] != "https://oauth2.googleapis.com/token" {
		t.Errorf("aud = %v", claims["aud"])
	}
	if claims["scope"] != "scope-a scope-b" {
		t.Errorf("scope = %v", claims["scope"])
	}
	if int64(claims["iat"].(float64)) != now.Unix() {
		t.Errorf("iat = %v, want %d", claims["iat"], now.Unix())
	}
	if int64(claims["exp"].(float64)) != now.Add(time.Hour).Unix() {
		t.Errorf("exp = %v, want %d", claims["exp"], now.Add(time.Hour).Unix())
	}
	if kid, _ := parsed.Header["kid"].(string); kid != "test-kid" {
		t.Errorf("kid = %q", kid)
	}
}

func TestSignAssertionValidation(t *testing.T) {
	signer, err := NewRSASigner(2048, "")
	if err != nil {
		t.Fatalf("NewRSASigner: %v", err)
	}
	now := time.Now()

	if _, err := SignAssertion(context.Background(), signer, "", Assertion{Audience: "aud"}, now); err == nil {
		t.Error("expected error for missing client email")
	}
	if _, err := SignAssertion(context.Background(), signer, "svc@demo.example", Assertion{}, now); err == nil {
		t.Error("expected error for missing audience")
	}
}

func TestNoKidHeaderWhenEmpty(t *testing.T) {
	signer, err := NewRSASigner(2048, "")
	if err != nil {
		t.Fatalf("NewRSASigner: %v", err)
	}
	raw, err := signer.Sign(context.Background(), jwt.MapClaims{"iss": "x"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	parsed, _, err := new(jwt.Parser).ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, present := parsed.Header["kid"]; present {
		t.Error("kid header should be absent when unset")
	}
}

func TestNewRSASignerFromPEM(t *testing.T) {
	src, err := NewRSASigner(2048, "src")
	if err != nil {
		t.Fatalf("NewRSASigner: %v", err)
	}

	pkcs1 := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(src.PrivateKey()),
	})
	if _, err := NewRSASignerFromPEM("k1", pkcs1); err != nil {
		t.Errorf("pkcs1: %v", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(src.PrivateKey())
	if err != nil {
		t.Fatalf("marshal pkcs8: %v", err)
	}
	pkcs8 := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	if _, err := NewRSASignerFromPEM("k2", pkcs8); err != nil {
		t.Errorf("pkcs8: %v", err)
	}

	if _, err := NewRSASignerFromPEM("k3", []byte("junk")); err == nil {
		t.Error("expected error for junk pem")
	}
	if _, err := NewRSASignerFromPEM("k4", nil); err == nil {
		t.Error("expected error for empty pem")
	}
}
