// Package appcheckkit verifies App Check attestation tokens against the
// issuer's published key set.
package appcheckkit

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// issuerBase prefixes the expected issuer claim; the project number
// completes it.
const issuerBase = "https://firebaseappcheck.googleapis.com/"

// Payload holds the decoded claims of a successfully verified attestation
// token. It is only ever constructed after signature and claim checks pass.
type Payload struct {
	Issuer    string
	Subject   string
	Audience  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// AppID returns the attested application identifier (the subject claim).
func (p *Payload) AppID() string { return p.Subject }

// Verifier validates attestation tokens for one project. It keeps no
// state beyond its key cache, which may be shared across verifiers.
type Verifier struct {
	projectID     string
	projectNumber string
	keys          *KeyCache
	log           logrus.FieldLogger
}

// VerifierOpt configures a Verifier.
type VerifierOpt func(*Verifier)

// WithProjectNumber enables strict issuer checking against
// https://firebaseappcheck.googleapis.com/<projectNumber> and accepts
// projects/<projectNumber> as an audience.
func WithProjectNumber(n string) VerifierOpt {
	return func(v *Verifier) { v.projectNumber = n }
}

// WithKeyCache installs a shared key cache. Without it the verifier owns
// a cache with default URL and TTL.
func WithKeyCache(kc *KeyCache) VerifierOpt {
	return func(v *Verifier) { v.keys = kc }
}

// WithLogger sets the logger for verification failures.
func WithLogger(log logrus.FieldLogger) VerifierOpt {
	return func(v *Verifier) { v.log = log }
}

// NewVerifier builds a verifier for the given project id.
func NewVerifier(projectID string, opts ...VerifierOpt) *Verifier {
	v := &Verifier{
		projectID: projectID,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.keys == nil {
		v.keys = NewKeyCache()
	}
	return v
}

// ClearCache drops the cached key set, forcing a re-fetch on next use.
func (v *Verifier) ClearCache() { v.keys.Clear() }

type tokenHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	Typ string `json:"typ"`
}

// Verify validates the raw compact JWT and returns its trusted payload.
//
// The failure mapping is deliberate: structural problems and unknown key
// ids are ErrInvalidToken, transport problems fetching keys are
// ErrJWKSFetch, a bad signature is ErrVerificationFailed, an expired but
// validly-signed token is ErrTokenExpired, and claim mismatches surface as
// *IssuerError / *AudienceError carrying expected and actual values.
// Structurally invalid input is rejected before any network I/O.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Payload, error) {
	hdr, err := parseHeader(raw)
	if err != nil {
		return nil, err
	}

	set, err := v.keys.Keys(ctx)
	if err != nil {
		return nil, err
	}
	key, ok := set.LookupKeyID(hdr.Kid)
	if !ok {
		return nil, fmt.Errorf("%w: unknown key id %q", ErrInvalidToken, hdr.Kid)
	}
	var pub rsa.PublicKey
	if err := key.Raw(&pub); err != nil {
		return nil, fmt.Errorf("%w: key %q is not an RSA public key", ErrInvalidToken, hdr.Kid)
	}

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) { return &pub, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			v.log.WithField("project_id", v.projectID).Warn("app check signature mismatch")
			return nil, ErrVerificationFailed
		default:
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}

	if v.projectNumber != "" {
		expected := issuerBase + v.projectNumber
		if claims.Issuer != expected {
			return nil, &IssuerError{Expected: expected, Actual: claims.Issuer}
		}
	}

	want := []string{"projects/" + v.projectID}
	if v.projectNumber != "" {
		want = append(want, "projects/"+v.projectNumber)
	}
	if !audienceMatches(claims.Audience, want) {
		return nil, &AudienceError{Expected: want, Actual: claims.Audience}
	}

	p := &Payload{
		Issuer:   claims.Issuer,
		Subject:  claims.Subject,
		Audience: claims.Audience,
	}
	if claims.IssuedAt != nil {
		p.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

// parseHeader performs the pre-network structural checks: segment count,
// header decode, algorithm, and key id presence.
func parseHeader(raw string) (*tokenHeader, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrInvalidToken, len(parts))
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: empty segment", ErrInvalidToken)
		}
	}
	hdrBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable header", ErrInvalidToken)
	}
	var hdr tokenHeader
	if err := json.Unmarshal(hdrBytes, &hdr); err != nil {
		return nil, fmt.Errorf("%w: malformed header", ErrInvalidToken)
	}
	if hdr.Alg != jwt.SigningMethodRS256.Alg() {
		return nil, fmt.Errorf("%w: unexpected algorithm %q", ErrInvalidToken, hdr.Alg)
	}
	if hdr.Kid == "" {
		return nil, fmt.Errorf("%w: missing key id", ErrInvalidToken)
	}
	return &hdr, nil
}

func audienceMatches(actual, want []string) bool {
	for _, a := range actual {
		for _, w := range want {
			if a == w {
				return true
			}
		}
	}
	return false
}
