package appcheckkit

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrJWKSFetch reports a transport or parse failure retrieving the
	// published key set. Retryable.
	ErrJWKSFetch = errors.New("appcheck: jwks fetch failed")
	// ErrInvalidToken reports a structurally malformed token or an unknown
	// key id. Not retryable for the same token.
	ErrInvalidToken = errors.New("appcheck: invalid token")
	// ErrVerificationFailed reports a signature mismatch. Treat as a
	// potential forgery attempt.
	ErrVerificationFailed = errors.New("appcheck: token signature verification failed")
	// ErrTokenExpired reports a validly-signed token whose exp has passed.
	ErrTokenExpired = errors.New("appcheck: token expired")
)

// IssuerError reports an issuer claim that does not match the expected
// App Check issuer for the configured project number.
type IssuerError struct {
	Expected string
	Actual   string
}

func (e *IssuerError) Error() string {
	return fmt.Sprintf("appcheck: invalid issuer: expected %q, got %q", e.Expected, e.Actual)
}

// AudienceError reports an audience claim that names none of the expected
// project identifiers.
type AudienceError struct {
	Expected []string
	Actual   []string
}

func (e *AudienceError) Error() string {
	return fmt.Sprintf("appcheck: invalid audience: expected one of [%s], got [%s]",
		strings.Join(e.Expected, ", "), strings.Join(e.Actual, ", "))
}
