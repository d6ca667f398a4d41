// Package keys implements the key-acquisition stage of the resolution
// pipeline: a process-lifetime cache of issuer signing keys, populated
// lazily through an injected fetch capability.
//
// The provider owns the only side-channel network call in the engine.
// Concurrent misses on the same previously-unseen key identifier coalesce
// into a single outbound fetch; concurrent misses on different identifiers
// proceed independently. Once cached, a key is effectively immutable and
// reads require no synchronization beyond the provider's read lock — keys
// are superseded via [Provider.Invalidate] and a refetch, never edited.
package keys

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	iderr "github.com/StricklySoft/edge-identity/pkg/errors"
)

// DefaultFetchTimeout bounds a single outbound key fetch when the caller's
// context carries no tighter deadline.
const DefaultFetchTimeout = 10 * time.Second

// Key is the result of a fetch: raw key material plus the metadata the
// verifier needs. Material holds a verification key in the shape the
// algorithm's signing method expects (*rsa.PublicKey, *ecdsa.PublicKey,
// ed25519.PublicKey, or []byte for HMAC secrets).
type Key struct {
	// KeyID is the identifier of the fetched key. A fetcher may leave it
	// empty to mean "the requested identifier"; a non-empty value that
	// differs from the request is rejected.
	KeyID string

	// Material is the verification key material.
	Material any

	// Algorithm is the signing algorithm the key is for (e.g., "RS256").
	Algorithm string
}

// FetchFunc is the injected key fetch capability: the network call to the
// issuer's key distribution endpoint. The engine does not implement it;
// [JWKSFetcher] and [StaticKeys] are stock implementations callers can
// wire in. A FetchFunc must be safe for concurrent use.
type FetchFunc func(ctx context.Context, keyID string) (Key, error)

// SigningKey is a fetched, cached signing key. SigningKey values are never
// mutated after creation; rotation supersedes them with a fresh fetch.
type SigningKey struct {
	KeyID     string
	Material  any
	Algorithm string
	FetchedAt time.Time
}

// SupportedAlgorithm reports whether the signature verifier can handle the
// given algorithm: any method registered with the jwt library except the
// unauthenticated "none".
func SupportedAlgorithm(alg string) bool {
	if alg == "" || strings.EqualFold(alg, "none") {
		return false
	}
	return jwt.GetSigningMethod(alg) != nil
}

// Provider maintains the key-identifier to signing-key mapping. It is an
// explicitly constructed component — there is no process-wide singleton,
// so independent engine instances never share key state unless wired to
// the same Provider.
//
// Provider is safe for concurrent use by multiple goroutines.
type Provider struct {
	fetch   FetchFunc
	timeout time.Duration

	mu   sync.RWMutex
	keys map[string]SigningKey

	flight singleflight.Group
}

// ProviderOption customizes a Provider.
type ProviderOption func(*Provider)

// WithFetchTimeout sets the per-fetch timeout applied when the caller's
// context has no deadline of its own.
func WithFetchTimeout(d time.Duration) ProviderOption {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewProvider creates a Provider over the given fetch capability.
// Returns a validation error when fetch is nil.
func NewProvider(fetch FetchFunc, opts ...ProviderOption) (*Provider, error) {
	if fetch == nil {
		return nil, iderr.Validation("keys: fetch capability must not be nil")
	}
	p := &Provider{
		fetch:   fetch,
		timeout: DefaultFetchTimeout,
		keys:    make(map[string]SigningKey),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// GetKey returns the signing key for the given key identifier, fetching it
// through the injected capability on first use. Keys are cached for the
// process lifetime.
//
// Error codes returned:
//   - [iderr.CodeKeyFetch]: empty identifier, fetch failure or timeout, or
//     a fetched key whose identifier does not match the request
//   - [iderr.CodeUnsupportedAlgorithm]: the fetched key's algorithm is not
//     one the signature verifier supports
func (p *Provider) GetKey(ctx context.Context, keyID string) (SigningKey, error) {
	if strings.TrimSpace(keyID) == "" {
		return SigningKey{}, iderr.New(iderr.CodeKeyFetch,
			"keys: key identifier must not be empty")
	}

	p.mu.RLock()
	cached, ok := p.keys[keyID]
	p.mu.RUnlock()
	if ok {
		return cached, nil
	}

	// Coalesce concurrent fetches for the same identifier into one
	// outbound call. Fetches for different identifiers run independently.
	v, err, _ := p.flight.Do(keyID, func() (any, error) {
		// A previous flight may have populated the cache between the
		// miss above and this call.
		p.mu.RLock()
		cached, ok := p.keys[keyID]
		p.mu.RUnlock()
		if ok {
			return cached, nil
		}
		return p.fetchAndStore(ctx, keyID)
	})
	if err != nil {
		if resErr, ok := iderr.AsError(err); ok {
			return SigningKey{}, resErr
		}
		return SigningKey{}, iderr.Wrapf(err, iderr.CodeKeyFetch,
			"keys: fetching key %q failed", keyID)
	}
	return v.(SigningKey), nil
}

// fetchAndStore performs the outbound fetch for keyID, validates the
// result, and publishes it to the cache.
func (p *Provider) fetchAndStore(ctx context.Context, keyID string) (SigningKey, error) {
	fctx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	fetched, err := p.fetch(fctx, keyID)
	if err != nil {
		return SigningKey{}, iderr.Wrapf(err, iderr.CodeKeyFetch,
			"keys: fetching key %q failed", keyID)
	}
	if fetched.KeyID != "" && fetched.KeyID != keyID {
		return SigningKey{}, iderr.Newf(iderr.CodeKeyFetch,
			"keys: fetch returned key %q for requested key %q", fetched.KeyID, keyID)
	}
	if fetched.Material == nil {
		return SigningKey{}, iderr.Newf(iderr.CodeKeyFetch,
			"keys: fetch returned no material for key %q", keyID)
	}
	if !SupportedAlgorithm(fetched.Algorithm) {
		return SigningKey{}, iderr.Newf(iderr.CodeUnsupportedAlgorithm,
			"keys: key %q declares unsupported algorithm %q", keyID, fetched.Algorithm)
	}

	sk := SigningKey{
		KeyID:     keyID,
		Material:  fetched.Material,
		Algorithm: fetched.Algorithm,
		FetchedAt: time.Now(),
	}

	p.mu.Lock()
	p.keys[keyID] = sk
	p.mu.Unlock()

	return sk, nil
}

// Invalidate removes a cached key so the next GetKey refetches it. This is
// the explicit rotation hook; the provider itself never expires keys.
func (p *Provider) Invalidate(keyID string) {
	p.mu.Lock()
	delete(p.keys, keyID)
	p.mu.Unlock()
}

// Len returns the number of cached keys.
func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.keys)
}

// StaticKeys returns a FetchFunc serving a fixed key set, for deployments
// whose verification keys are configured rather than fetched (shared HMAC
// secrets, pinned public keys) and for tests.
func StaticKeys(set ...Key) FetchFunc {
	byID := make(map[string]Key, len(set))
	for _, k := range set {
		byID[k.KeyID] = k
	}
	return func(_ context.Context, keyID string) (Key, error) {
		k, ok := byID[keyID]
		if !ok {
			return Key{}, iderr.Newf(iderr.CodeKeyFetch,
				"keys: no static key with identifier %q", keyID)
		}
		return k, nil
	}
}
