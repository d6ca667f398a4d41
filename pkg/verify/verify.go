// Package verify implements the signature-verification stage of the
// resolution pipeline: confirming that a token's signature segment is
// authentic for the algorithm declared in its header, using key material
// obtained from the key provider.
//
// Verification delegates to the jwt library's registered signing methods.
// The HMAC comparison inside the library is constant-time (hmac.Equal),
// which is a correctness requirement here, not an optimization; the
// asymmetric methods verify mathematically rather than by comparison.
package verify

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"

	iderr "github.com/StricklySoft/edge-identity/pkg/errors"
	"github.com/StricklySoft/edge-identity/pkg/keys"
	"github.com/StricklySoft/edge-identity/pkg/token"
)

// Verify checks the token's signature against the given signing key.
//
// The algorithm is taken from the token header and must match the
// algorithm the key was fetched for — accepting a header-declared
// algorithm that differs from the key's would open the classic confusion
// attack where an RSA public key is presented as an HMAC secret. The
// unauthenticated "none" algorithm is always rejected.
//
// Error codes returned:
//   - [iderr.CodeSignatureInvalid]: missing/mismatched algorithm or a
//     signature that does not verify
//   - [iderr.CodeUnsupportedAlgorithm]: the header declares an algorithm
//     no registered signing method implements
func Verify(raw *token.RawToken, key keys.SigningKey) *iderr.Error {
	alg := raw.Algorithm()
	if alg == "" {
		return iderr.New(iderr.CodeSignatureInvalid,
			"verify: token header declares no algorithm")
	}
	if strings.EqualFold(alg, "none") {
		return iderr.New(iderr.CodeSignatureInvalid,
			"verify: algorithm 'none' is not permitted")
	}
	if key.Algorithm != "" && alg != key.Algorithm {
		return iderr.Newf(iderr.CodeSignatureInvalid,
			"verify: token algorithm %q does not match key algorithm %q",
			alg, key.Algorithm)
	}

	method := jwt.GetSigningMethod(alg)
	if method == nil {
		return iderr.Newf(iderr.CodeUnsupportedAlgorithm,
			"verify: no signing method registered for algorithm %q", alg)
	}

	if err := method.Verify(raw.SigningString(), raw.Signature(), key.Material); err != nil {
		return iderr.Wrap(err, iderr.CodeSignatureInvalid,
			"verify: token signature is invalid")
	}
	return nil
}
