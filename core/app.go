// Package core ties a service-account credential to the token source and
// attestation verifier that serve it, and keeps a host-owned registry of
// named app instances. There is no ambient global state: the host
// constructs a Registry at startup and passes it to whatever needs it.
package core

import (
	appcheckkit "github.com/open-rails/firetrust/appcheck"
	credkit "github.com/open-rails/firetrust/credential"
	oauthkit "github.com/open-rails/firetrust/oauth"
)

// DefaultAppName names the app used when the host configures only one.
const DefaultAppName = "[DEFAULT]"

// App is one credential context: a token source for outbound calls and an
// attestation verifier for inbound ones. Both are lazily shared by all
// callers of the App; one token cache exists per credential identity.
type App struct {
	name     string
	cred     *credkit.Credential
	tokens   *oauthkit.Source
	appCheck *appcheckkit.Verifier
}

// AppOption configures an App during construction.
type AppOption func(*appOptions)

type appOptions struct {
	projectNumber string
	keyCache      *appcheckkit.KeyCache
	sourceOpts    []oauthkit.SourceOption
}

// WithProjectNumber enables strict issuer validation on the app's verifier.
func WithProjectNumber(n string) AppOption {
	return func(o *appOptions) { o.projectNumber = n }
}

// WithSharedKeyCache lets several apps verify against one JWKS cache.
// The key set is issuer-wide, not credential-specific.
func WithSharedKeyCache(kc *appcheckkit.KeyCache) AppOption {
	return func(o *appOptions) { o.keyCache = kc }
}

// WithTokenOptions forwards options to the app's token source.
func WithTokenOptions(opts ...oauthkit.SourceOption) AppOption {
	return func(o *appOptions) { o.sourceOpts = opts }
}

// NewApp binds a credential to its token source and verifier.
func NewApp(name string, cred *credkit.Credential, opts ...AppOption) *App {
	if name == "" {
		name = DefaultAppName
	}
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	verifierOpts := []appcheckkit.VerifierOpt{}
	if o.projectNumber != "" {
		verifierOpts = append(verifierOpts, appcheckkit.WithProjectNumber(o.projectNumber))
	}
	if o.keyCache != nil {
		verifierOpts = append(verifierOpts, appcheckkit.WithKeyCache(o.keyCache))
	}

	return &App{
		name:     name,
		cred:     cred,
		tokens:   oauthkit.NewSource(cred, o.sourceOpts...),
		appCheck: appcheckkit.NewVerifier(cred.ProjectID(), verifierOpts...),
	}
}

// Name returns the registry name of the app.
func (a *App) Name() string { return a.name }

// Credential returns the app's service-account credential.
func (a *App) Credential() *credkit.Credential { return a.cred }

// Tokens returns the app's access-token source.
func (a *App) Tokens() *oauthkit.Source { return a.tokens }

// AppCheck returns the app's attestation verifier.
func (a *App) AppCheck() *appcheckkit.Verifier { return a.appCheck }
