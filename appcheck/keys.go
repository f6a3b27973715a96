package appcheckkit

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/sirupsen/logrus"
)

// DefaultJWKSURL is the published key set for the App Check issuer.
const DefaultJWKSURL = "https://firebaseappcheck.googleapis.com/v1/jwks"

// DefaultKeyTTL is how long a fetched key set is served without refresh.
const DefaultKeyTTL = 6 * time.Hour

// KeyCache memoizes the issuer's JWKS for a fixed TTL. Fetches are
// serialized under the cache mutex: with a cold cache and N concurrent
// callers, exactly one fetch hits the network. A failed fetch leaves the
// previous entry untouched; callers holding a previously returned set are
// unaffected by Clear or refresh.
type KeyCache struct {
	url    string
	ttl    time.Duration
	client *http.Client
	log    logrus.FieldLogger

	mu        sync.Mutex
	keys      jwk.Set
	fetchedAt time.Time

	now func() time.Time
}

// KeyCacheOption configures a KeyCache.
type KeyCacheOption func(*KeyCache)

// WithJWKSURL overrides the key set URL (emulators, tests).
func WithJWKSURL(url string) KeyCacheOption {
	return func(kc *KeyCache) { kc.url = url }
}

// WithKeyTTL overrides the cache TTL. The TTL is fixed for the cache's
// lifetime.
func WithKeyTTL(ttl time.Duration) KeyCacheOption {
	return func(kc *KeyCache) { kc.ttl = ttl }
}

// WithKeyHTTPClient sets the HTTP client used to fetch keys. The client's
// timeout is the fetch timeout.
func WithKeyHTTPClient(c *http.Client) KeyCacheOption {
	return func(kc *KeyCache) { kc.client = c }
}

// WithKeyLogger sets the logger for fetch events.
func WithKeyLogger(log logrus.FieldLogger) KeyCacheOption {
	return func(kc *KeyCache) { kc.log = log }
}

// NewKeyCache builds a key cache for the App Check issuer. A single
// KeyCache may be shared by any number of verifiers.
func NewKeyCache(opts ...KeyCacheOption) *KeyCache {
	kc := &KeyCache{
		url:    DefaultJWKSURL,
		ttl:    DefaultKeyTTL,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logrus.StandardLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(kc)
	}
	return kc
}

// Keys returns the cached key set, fetching it first if absent or if the
// TTL has elapsed (now >= fetchedAt + ttl).
func (kc *KeyCache) Keys(ctx context.Context) (jwk.Set, error) {
	kc.mu.Lock()
	defer kc.mu.Unlock()

	if kc.keys != nil && kc.now().Before(kc.fetchedAt.Add(kc.ttl)) {
		return kc.keys, nil
	}

	set, err := jwk.Fetch(ctx, kc.url, jwk.WithHTTPClient(kc.client))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJWKSFetch, err)
	}

	kc.keys = set
	kc.fetchedAt = kc.now()
	kc.log.WithFields(logrus.Fields{
		"jwks_url": kc.url,
		"keys":     set.Len(),
	}).Debug("app check key set refreshed")
	return set, nil
}

// Clear drops the cached key set, forcing the next access to re-fetch.
// Safe to call concurrently with in-flight verifications.
func (kc *KeyCache) Clear() {
	kc.mu.Lock()
	defer kc.mu.Unlock()
	kc.keys = nil
	kc.fetchedAt = time.Time{}
}
