package token

import (
	"time"

	iderr "github.com/StricklySoft/edge-identity/pkg/errors"
)

// Validate checks the structural and time-bound validity of decoded
// claims against the supplied reference time.
//
// A non-empty subject claim is always required; its absence yields
// CodeMissingClaim. When lifetime is true, the time-bound claims are
// additionally enforced: CodeNotYetValid when now precedes the not-before
// claim, and CodeExpiredToken when now is at or after the expiry claim.
// Both comparisons are strict — the engine introduces no clock-skew
// allowance; callers needing leeway must adjust the reference time they
// pass.
//
// Absent exp and nbf claims are not errors: a token without time bounds
// is valid indefinitely as far as this stage is concerned.
func Validate(claims *Claims, now time.Time, lifetime bool) *iderr.Error {
	if _, ok := claims.Subject(); !ok {
		return iderr.New(iderr.CodeMissingClaim, "token has no subject claim")
	}

	if !lifetime {
		return nil
	}

	if nbf, ok := claims.NotBefore(); ok && now.Before(nbf) {
		return iderr.Newf(iderr.CodeNotYetValid,
			"token is not valid before %s", nbf.UTC().Format(time.RFC3339))
	}
	if exp, ok := claims.ExpiresAt(); ok && !now.Before(exp) {
		return iderr.Newf(iderr.CodeExpiredToken,
			"token expired at %s", exp.UTC().Format(time.RFC3339))
	}
	return nil
}
