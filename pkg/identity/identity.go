// Package identity defines the portable identity representation the
// resolution engine produces, and the mapping from validated claims into
// it. An identity is a principal name plus a flat role set — enforcement
// decisions over those roles belong to the caller, not to this engine.
package identity

import (
	"time"

	"github.com/StricklySoft/edge-identity/pkg/token"
)

// DefaultRoleClaim is the claim the mapper reads role strings from when
// the caller does not configure another name.
const DefaultRoleClaim = "group"

// ResolvedIdentity is the externally visible result of resolving a token:
// the principal name, the role set, the token's expiry, and the size the
// identity is accounted at in the cache.
//
// ResolvedIdentity is immutable after construction and safe for concurrent
// use; cache updates replace the wrapping entry, never the identity.
type ResolvedIdentity struct {
	principal string
	roles     []string
	expiresAt time.Time
	size      int
}

// New constructs a ResolvedIdentity. The role slice is defensively copied
// so later mutation by the caller cannot reach the identity.
//
// size is the cache-accounting size in bytes — by convention the byte
// length of the base64-encoded payload segment of the originating token,
// not the in-memory footprint of the struct.
func New(principal string, roles []string, expiresAt time.Time, size int) *ResolvedIdentity {
	copied := make([]string, len(roles))
	copy(copied, roles)
	return &ResolvedIdentity{
		principal: principal,
		roles:     copied,
		expiresAt: expiresAt,
		size:      size,
	}
}

// Map converts validated claims into a ResolvedIdentity. The principal is
// the subject claim; roles come from the claim named roleClaim (falling
// back to [DefaultRoleClaim] when roleClaim is empty).
//
// Map never fails: an absent role claim, or one of an unsupported shape,
// degrades to an empty role set — a role-less caller is a valid business
// state, not an error. A scalar role claim is treated as a singleton set.
// Subject presence is the claims validator's responsibility, so a missing
// subject here simply yields an empty principal.
func Map(claims *token.Claims, roleClaim string, size int) *ResolvedIdentity {
	if roleClaim == "" {
		roleClaim = DefaultRoleClaim
	}
	principal, _ := claims.Subject()

	roles := claims.Get(roleClaim).AsStrings()
	if roles == nil {
		roles = []string{}
	}

	expiresAt, _ := claims.ExpiresAt()

	return &ResolvedIdentity{
		principal: principal,
		roles:     roles,
		expiresAt: expiresAt,
		size:      size,
	}
}

// Principal returns the principal name (the token's subject claim).
func (r *ResolvedIdentity) Principal() string { return r.principal }

// Roles returns a copy of the role set. Callers may modify the returned
// slice without affecting the identity.
func (r *ResolvedIdentity) Roles() []string {
	copied := make([]string, len(r.roles))
	copy(copied, r.roles)
	return copied
}

// HasRole reports whether the role set contains the given role.
func (r *ResolvedIdentity) HasRole(role string) bool {
	for _, have := range r.roles {
		if have == role {
			return true
		}
	}
	return false
}

// ExpiresAt returns the expiry copied from the token's expiry claim, or
// the zero time when the token carried none.
func (r *ResolvedIdentity) ExpiresAt() time.Time { return r.expiresAt }

// Size returns the cache-accounting size in bytes.
func (r *ResolvedIdentity) Size() int { return r.size }
