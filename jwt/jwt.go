package jwtkit

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Signer issues asymmetric JWTs.
type Signer interface {
	// Algorithm returns the JWS algorithm (e.g., RS256).
	Algorithm() string
	// KID returns the current key id. May be empty.
	KID() string
	// Sign creates a signed JWT with provided claims.
	Sign(ctx context.Context, claims jwt.MapClaims) (token string, err error)
}

// RSASigner signs with an in-memory RSA private key.
type RSASigner struct {
	key *rsa.PrivateKey
	kid string
}

// NewRSASigner generates a fresh RSA key pair. Intended for tests and
// local development; production keys come from a service-account credential.
func NewRSASigner(bits int, kid string) (*RSASigner, error) {
	if bits == 0 {
		bits = 2048
	}
	k, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, err
	}
	return &RSASigner{key: k, kid: kid}, nil
}

func (s *RSASigner) Algorithm() string           { return jwt.SigningMethodRS256.Alg() }
func (s *RSASigner) KID() string                 { return s.kid }
func (s *RSASigner) PublicKey() *rsa.PublicKey   { return &s.key.PublicKey }
func (s *RSASigner) PrivateKey() *rsa.PrivateKey { return s.key }

func (s *RSASigner) Sign(_ context.Context, claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if s.kid != "" {
		token.Header["kid"] = s.kid
	}
	return token.SignedString(s.key)
}

// NewRSASignerFromPEM constructs an RSASigner from a PEM-encoded private key.
// Both PKCS#1 ("RSA PRIVATE KEY") and PKCS#8 blocks are accepted.
func NewRSASignerFromPEM(kid string, pemBytes []byte) (*RSASigner, error) {
	if len(pemBytes) == 0 {
		return nil, errors.New("empty RSA private key pem")
	}
	blk, _ := pem.Decode(pemBytes)
	if blk == nil {
		return nil, errors.New("failed to decode RSA private key pem")
	}
	var parsed *rsa.PrivateKey
	var err error
	switch blk.Type {
	case "RSA PRIVATE KEY":
		parsed, err = x509.ParsePKCS1PrivateKey(blk.Bytes)
	default:
		var key any
		key, err = x509.ParsePKCS8PrivateKey(blk.Bytes)
		if err == nil {
			var ok bool
			if parsed, ok = key.(*rsa.PrivateKey); !ok {
				err = errors.New("pkcs8 key is not RSA private key")
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return &RSASigner{key: parsed, kid: kid}, nil
}

// Assertion describes a self-signed JWT-bearer assertion for an OAuth2
// token exchange (RFC 7523).
type Assertion struct {
	// Audience is the token endpoint the assertion is addressed to.
	Audience string
	// Scope is the space-delimited OAuth scope string being requested.
	Scope string
	// Lifetime bounds the assertion validity (exp = iat + Lifetime).
	Lifetime time.Duration
}

// SignAssertion builds and signs the assertion claim set for the given
// service-account identity: iss = sub = clientEmail, aud, iat = now,
// exp = now + Lifetime, plus the scope claim. CPU-bound only; no I/O.
func SignAssertion(ctx context.Context, s Signer, clientEmail string, a Assertion, now time.Time) (string, error) {
	if clientEmail == "" {
		return "", errors.New("jwtkit: assertion requires a client email")
	}
	if a.Audience == "" {
		return "", errors.New("jwtkit: assertion requires an audience")
	}
	claims := jwt.MapClaims{
		"iss":   clientEmail,
		"sub":   clientEmail,
		"aud":   a.Audience,
		"iat":   now.Unix(),
		"exp":   now.Add(a.Lifetime).Unix(),
		"scope": a.Scope,
	}
	return s.Sign(ctx, claims)
}
