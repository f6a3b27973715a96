// Package testing provides fakes for exercising the trust core without
// real Google endpoints: an attestation issuer that serves JWKS and mints
// tokens validating against it, and an OAuth token endpoint that counts
// exchanges.
//
// Example usage:
//
//	attestor := testing.NewFakeAttestor("123456")
//	defer attestor.Close()
//
//	v := appcheckkit.NewVerifier("demo-project",
//		appcheckkit.WithProjectNumber("123456"),
//		appcheckkit.WithKeyCache(appcheckkit.NewKeyCache(
//			appcheckkit.WithJWKSURL(attestor.JWKSURL()))))
//
//	token := attestor.CreateToken("1:123456:web:abcd", []string{"projects/demo-project"})
package testing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	jwtkit "github.com/open-rails/firetrust/jwt"
)

// FakeAttestor is a stand-in for the App Check issuer. It runs an HTTP
// server publishing JWKS at /v1/jwks and signs attestation tokens with the
// matching private key.
type FakeAttestor struct {
	server        *httptest.Server
	signer        *jwtkit.RSASigner
	forgedSigner  *jwtkit.RSASigner
	projectNumber string
	jwksHits      atomic.Int64
}

// NewFakeAttestor creates an attestor for the given project number.
// Call Close when done.
func NewFakeAttestor(projectNumber string) *FakeAttestor {
	kid := "test-" + uuid.NewString()
	signer, err := jwtkit.NewRSASigner(2048, kid)
	if err != nil {
		panic("failed to create RSA signer: " + err.Error())
	}
	// Same kid, different key: signatures resolve to the published key
	// but fail verification.
	forged, err := jwtkit.NewRSASigner(2048, kid)
	if err != nil {
		panic("failed to create forged RSA signer: " + err.Error())
	}

	fa := &FakeAttestor{
		signer:        signer,
		forgedSigner:  forged,
		projectNumber: projectNumber,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/jwks", fa.handleJWKS)

	fa.server = httptest.NewServer(mux)
	return fa
}

// URL returns the base URL of the attestor server.
func (fa *FakeAttestor) URL() string { return fa.server.URL }

// JWKSURL returns the key set URL for configuring a verifier's key cache.
func (fa *FakeAttestor) JWKSURL() string { return fa.server.URL + "/v1/jwks" }

// Issuer returns the issuer claim the attestor signs with.
func (fa *FakeAttestor) Issuer() string {
	return "https://firebaseappcheck.googleapis.com/" + fa.projectNumber
}

// FetchCount reports how many JWKS requests the server has answered.
func (fa *FakeAttestor) FetchCount() int {
	return int(fa.jwksHits.Load())
}

// Close shuts down the attestor server.
func (fa *FakeAttestor) Close() {
	if fa.server != nil {
		fa.server.Close()
	}
}

func (fa *FakeAttestor) handleJWKS(w http.ResponseWriter, r *http.Request) {
	fa.jwksHits.Add(1)
	jwk := jwtkit.RSAPublicToJWK(fa.signer.PublicKey(), fa.signer.KID(), fa.signer.Algorithm())
	ks := jwtkit.JWKS{Keys: []jwtkit.JWK{jwk}}
	jwtkit.ServeJWKS(w, r, ks)
}

// CreateToken mints an attestation token for the app id with the given
// audiences, issued now and valid for one hour.
func (fa *FakeAttestor) CreateToken(appID string, audiences []string) string {
	return fa.CreateTokenWithClaims(appID, audiences, nil)
}

// CreateTokenWithClaims mints a token with extra or overriding claims.
// Standard claims (iss, sub, aud, exp, iat) are set first; extraClaims may
// replace any of them.
func (fa *FakeAttestor) CreateTokenWithClaims(appID string, audiences []string, extraClaims map[string]any) string {
	return fa.sign(fa.signer, appID, audiences, extraClaims)
}

// CreateExpiredToken mints a validly-signed token whose exp is in the past.
func (fa *FakeAttestor) CreateExpiredToken(appID string, audiences []string) string {
	return fa.CreateTokenWithClaims(appID, audiences, map[string]any{
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
}

// CreateForgedToken mints a token that carries the published kid but is
// signed with a different key, so signature verification must fail.
func (fa *FakeAttestor) CreateForgedToken(appID string, audiences []string) string {
	return fa.sign(fa.forgedSigner, appID, audiences, nil)
}

func (fa *FakeAttestor) sign(s *jwtkit.RSASigner, appID string, audiences []string, extraClaims map[string]any) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": fa.Issuer(),
		"sub": appID,
		"aud": audiences,
		"exp": now.Add(time.Hour).Unix(),
		"iat": now.Unix(),
	}
	for k, v := range extraClaims {
		claims[k] = v
	}
	token, err := s.Sign(context.Background(), claims)
	if err != nil {
		panic("failed to sign token: " + err.Error())
	}
	return token
}

// FakeTokenEndpoint is a stand-in OAuth2 token endpoint. It validates the
// jwt-bearer form shape, returns sequenced access tokens, and counts
// exchanges so tests can assert cache behavior.
type FakeTokenEndpoint struct {
	server    *httptest.Server
	exchanges atomic.Int64

	// FailWithStatus, when non-zero, makes the endpoint answer with that
	// HTTP status and no token.
	FailWithStatus int
	// OmitAccessToken, when true, returns a 200 JSON body with no
	// access_token field.
	OmitAccessToken bool
}

// NewFakeTokenEndpoint starts the endpoint. Call Close when done.
func NewFakeTokenEndpoint() *FakeTokenEndpoint {
	fe := &FakeTokenEndpoint{}
	fe.server = httptest.NewServer(http.HandlerFunc(fe.handle))
	return fe
}

// URL returns the endpoint URL for credkit.WithTokenURL.
func (fe *FakeTokenEndpoint) URL() string { return fe.server.URL }

// ExchangeCount reports how many exchange requests reached the endpoint.
func (fe *FakeTokenEndpoint) ExchangeCount() int {
	return int(fe.exchanges.Load())
}

// Close shuts down the endpoint server.
func (fe *FakeTokenEndpoint) Close() {
	if fe.server != nil {
		fe.server.Close()
	}
}

func (fe *FakeTokenEndpoint) handle(w http.ResponseWriter, r *http.Request) {
	n := fe.exchanges.Add(1)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	if r.PostFormValue("grant_type") != "urn:ietf:params:oauth:grant-type:jwt-bearer" {
		http.Error(w, "unsupported grant_type", http.StatusBadRequest)
		return
	}
	if r.PostFormValue("assertion") == "" {
		http.Error(w, "missing assertion", http.StatusBadRequest)
		return
	}

	if fe.FailWithStatus != 0 {
		http.Error(w, "upstream failure", fe.FailWithStatus)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if fe.OmitAccessToken {
		_ = json.NewEncoder(w).Encode(map[string]any{"token_type": "Bearer"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": fmt.Sprintf("test-access-token-%d", n),
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}
