// Package credkit models the service-account credential that every
// outbound token exchange signs with. A Credential is immutable once
// constructed; the private key is parsed exactly once and never exposed.
package credkit

import (
	"errors"
	"fmt"

	jwtkit "github.com/open-rails/firetrust/jwt"
)

// DefaultTokenURL is the Google OAuth2 token endpoint assertions are
// exchanged against unless overridden.
const DefaultTokenURL = "https://oauth2.googleapis.com/token"

// ErrInvalidKeyMaterial reports a private key that could not be parsed as
// an RSA key. Fatal for any operation using the credential; not retryable.
var ErrInvalidKeyMaterial = errors.New("credkit: invalid private key material")

// Credential is a service-account identity plus its signing key.
type Credential struct {
	projectID    string
	clientEmail  string
	privateKeyID string
	tokenURL     string
	signer       *jwtkit.RSASigner
}

// Option configures a Credential during construction.
type Option func(*Credential)

// WithPrivateKeyID sets the key id carried as the kid header on assertions.
func WithPrivateKeyID(kid string) Option {
	return func(c *Credential) { c.privateKeyID = kid }
}

// WithTokenURL overrides the token endpoint (e.g., for emulators or tests).
func WithTokenURL(url string) Option {
	return func(c *Credential) { c.tokenURL = url }
}

// New parses the PEM-encoded RSA private key and builds an immutable
// Credential. PKCS#1 and PKCS#8 blocks are accepted; anything else fails
// with ErrInvalidKeyMaterial.
func New(projectID, clientEmail string, privateKeyPEM []byte, opts ...Option) (*Credential, error) {
	if projectID == "" {
		return nil, errors.New("credkit: project id is required")
	}
	if clientEmail == "" {
		return nil, errors.New("credkit: client email is required")
	}
	c := &Credential{
		projectID:   projectID,
		clientEmail: clientEmail,
		tokenURL:    DefaultTokenURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	signer, err := jwtkit.NewRSASignerFromPEM(c.privateKeyID, privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}
	c.signer = signer
	return c, nil
}

// ProjectID returns the Firebase/GCP project id.
func (c *Credential) ProjectID() string { return c.projectID }

// ClientEmail returns the service-account email (iss/sub of assertions).
func (c *Credential) ClientEmail() string { return c.clientEmail }

// TokenURL returns the OAuth2 token endpoint for this credential.
func (c *Credential) TokenURL() string { return c.tokenURL }

// Signer returns a JWT signer bound to the credential's private key.
func (c *Credential) Signer() jwtkit.Signer { return c.signer }
