package oauthkit

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	credkit "github.com/open-rails/firetrust/credential"
	jwtkit "github.com/open-rails/firetrust/jwt"
)

// DefaultScopes are the OAuth scopes requested for Firebase service access.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/datastore",
	"https://www.googleapis.com/auth/firebase.messaging",
	"https://www.googleapis.com/auth/identitytoolkit",
	"https://www.googleapis.com/auth/userinfo.email",
}

// DefaultLifetime bounds both the assertion validity and the cached token
// lifetime. Google caps assertion lifetimes at one hour.
const DefaultLifetime = time.Hour

// Source hands out bearer tokens for one credential, minting a new one
// only when the cached token has expired.
//
// Refreshes are serialized: the mutex is held across the network exchange,
// so exactly one exchange happens per expiry window and concurrent callers
// block until the fresh token is stored. A failed refresh leaves the
// previous entry untouched.
type Source struct {
	cred      *credkit.Credential
	exchanger *Exchanger
	scopes    []string
	lifetime  time.Duration
	log       logrus.FieldLogger

	mu    sync.Mutex
	token *oauth2.Token

	now func() time.Time
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithHTTPClient sets the HTTP client used for exchanges. The client's
// timeout is the exchange timeout.
func WithHTTPClient(c *http.Client) SourceOption {
	return func(s *Source) { s.exchanger = NewExchanger(s.cred.TokenURL(), c) }
}

// WithScopes overrides the requested OAuth scopes.
func WithScopes(scopes ...string) SourceOption {
	return func(s *Source) { s.scopes = scopes }
}

// WithLifetime sets the validity window for minted tokens.
func WithLifetime(d time.Duration) SourceOption {
	return func(s *Source) { s.lifetime = d }
}

// WithLogger sets the logger for refresh events.
func WithLogger(log logrus.FieldLogger) SourceOption {
	return func(s *Source) { s.log = log }
}

// NewSource builds a token source for the credential. One Source per
// credential identity; it is safe for concurrent use.
func NewSource(cred *credkit.Credential, opts ...SourceOption) *Source {
	s := &Source{
		cred:      cred,
		exchanger: NewExchanger(cred.TokenURL(), nil),
		scopes:    DefaultScopes,
		lifetime:  DefaultLifetime,
		log:       logrus.StandardLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token returns a valid bearer token, refreshing over the network only
// when the cached entry has expired. The fast path does no I/O.
func (s *Source) Token(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != nil && s.now().Before(s.token.Expiry) {
		return s.token, nil
	}

	issued := s.now()
	assertion, err := jwtkit.SignAssertion(ctx, s.cred.Signer(), s.cred.ClientEmail(), jwtkit.Assertion{
		Audience: s.cred.TokenURL(),
		Scope:    strings.Join(s.scopes, " "),
		Lifetime: s.lifetime,
	}, issued)
	if err != nil {
		return nil, err
	}

	access, err := s.exchanger.Exchange(ctx, assertion)
	if err != nil {
		return nil, err
	}

	tok := &oauth2.Token{
		AccessToken: access,
		TokenType:   "Bearer",
		Expiry:      issued.Add(s.lifetime),
	}
	s.token = tok
	s.log.WithFields(logrus.Fields{
		"client_email": s.cred.ClientEmail(),
		"expiry":       tok.Expiry.UTC().Format(time.RFC3339),
	}).Debug("access token refreshed")
	return tok, nil
}

// AsTokenSource adapts the Source to the oauth2.TokenSource interface,
// binding the given context to every Token call.
func (s *Source) AsTokenSource(ctx context.Context) oauth2.TokenSource {
	return ctxSource{ctx: ctx, s: s}
}

type ctxSource struct {
	ctx context.Context
	s   *Source
}

func (c ctxSource) Token() (*oauth2.Token, error) { return c.s.Token(c.ctx) }
