package resolver

import (
	"time"

	"github.com/StricklySoft/edge-identity/pkg/cache"
	"github.com/StricklySoft/edge-identity/pkg/identity"
)

// Cache defaults applied by [DefaultOptions].
const (
	// DefaultMaxCacheSizeBytes is the identity cache byte budget: 100 MiB.
	DefaultMaxCacheSizeBytes = int64(100 << 20)

	// DefaultMaxCacheLifetime bounds how long a cached identity may be
	// served without re-verification, independent of token expiry.
	DefaultMaxCacheLifetime = 5 * time.Minute
)

// Options configures a Resolver. The zero value is not useful; start from
// [DefaultOptions] and override.
type Options struct {
	// ValidateSignature controls whether token signatures are verified
	// against issuer key material. Disabling it is only sound when a
	// trusted fronting proxy has already verified the token.
	ValidateSignature bool

	// ValidateLifetime controls whether the exp and nbf claims are
	// enforced against the current time.
	ValidateLifetime bool

	// RoleClaim names the claim roles are read from. Empty selects
	// [identity.DefaultRoleClaim].
	RoleClaim string

	// MaxCacheSizeBytes is the identity cache byte budget. Nil disables
	// caching entirely; every request then pays full verification cost.
	MaxCacheSizeBytes *int64

	// MaxCacheLifetime bounds the age of a cached identity. Zero means
	// entries live until evicted or until the token expires.
	MaxCacheLifetime time.Duration

	// CacheCompactionPercentage is the share of entries an eviction pass
	// removes. Out-of-range values fall back to the default silently.
	CacheCompactionPercentage int
}

// DefaultOptions returns the production defaults: full verification, the
// standard role claim, and a bounded cache.
func DefaultOptions() Options {
	size := DefaultMaxCacheSizeBytes
	return Options{
		ValidateSignature:         true,
		ValidateLifetime:          true,
		RoleClaim:                 identity.DefaultRoleClaim,
		MaxCacheSizeBytes:         &size,
		MaxCacheLifetime:          DefaultMaxCacheLifetime,
		CacheCompactionPercentage: cache.DefaultCompactionPercentage,
	}
}

// normalize fills defaulted fields in place.
func (o *Options) normalize() {
	if o.RoleClaim == "" {
		o.RoleClaim = identity.DefaultRoleClaim
	}
	o.CacheCompactionPercentage = cache.ClampCompactionPercentage(o.CacheCompactionPercentage)
}

// buildCache constructs the in-memory identity cache the options
// describe. A nil byte budget yields the disabled cache.
func (o *Options) buildCache() cache.Store {
	if o.MaxCacheSizeBytes == nil {
		return cache.Disabled()
	}
	return cache.NewMemory(*o.MaxCacheSizeBytes, o.MaxCacheLifetime, o.CacheCompactionPercentage)
}
