package errors

// Code represents a machine-readable error code identifying the resolution
// stage at which a failure occurred. Codes follow the pattern CATEGORY_XXX
// where CATEGORY is the stage identifier (TOKEN, KEY, SIG, CLAIMS, VAL,
// INT) and XXX is a three-digit numeric code.
//
// Error codes are designed to be:
//   - Stable: Codes do not change once assigned
//   - Unique: Each failure condition has a distinct code
//   - Machine-readable: Suitable for automated error handling and metrics
type Code string

// Error code categories and their ranges:
//
//	TOKEN_xxx  - Decode-stage errors (401 Unauthorized)
//	KEY_xxx    - Key-acquisition errors (401 Unauthorized)
//	SIG_xxx    - Signature-verification errors (401 Unauthorized)
//	CLAIMS_xxx - Claims-validation errors (401 Unauthorized)
//	VAL_xxx    - Validation errors (400 Bad Request)
//	INT_xxx    - Internal errors (500 Internal Server Error)
const (
	// Decode-stage errors (TOKEN_xxx).
	// The presented token is structurally unusable. No trust decision has
	// been made at this point; the token simply cannot be read.

	// CodeMalformedToken indicates the compact token does not consist of
	// three non-empty base64url segments.
	CodeMalformedToken Code = "TOKEN_001"

	// CodeInvalidPayload indicates the payload segment decoded but does
	// not contain a JSON claim mapping.
	CodeInvalidPayload Code = "TOKEN_002"

	// Key-acquisition errors (KEY_xxx).
	// The signing key needed to verify the token could not be obtained.

	// CodeKeyFetch indicates the key fetch failed, timed out, or returned
	// a key whose identifier does not match the request.
	CodeKeyFetch Code = "KEY_001"

	// CodeUnsupportedAlgorithm indicates the fetched key declares an
	// algorithm the signature verifier does not support.
	CodeUnsupportedAlgorithm Code = "KEY_002"

	// Verification errors (SIG_xxx).
	// The token is structurally valid but its signature is untrusted.

	// CodeSignatureInvalid indicates the token signature did not verify
	// against the signing key.
	CodeSignatureInvalid Code = "SIG_001"

	// Claims-validation errors (CLAIMS_xxx).
	// The token is trusted but not currently usable.

	// CodeExpiredToken indicates the current time is at or after the
	// token's expiry claim.
	CodeExpiredToken Code = "CLAIMS_001"

	// CodeNotYetValid indicates the current time precedes the token's
	// not-before claim.
	CodeNotYetValid Code = "CLAIMS_002"

	// CodeMissingClaim indicates a required claim (the subject) is absent
	// from the payload.
	CodeMissingClaim Code = "CLAIMS_003"

	// Validation errors (VAL_xxx) - HTTP 400.
	// Used when configuration or input fails validation rules.

	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRange indicates a configured value is outside its
	// acceptable range.
	CodeValidationRange Code = "VAL_002"

	// Internal errors (INT_xxx) - HTTP 500.
	// Used for unexpected internal failures.

	// CodeInternal indicates a general internal error.
	CodeInternal Code = "INT_001"

	// CodeInternalConfiguration indicates a configuration loading error.
	CodeInternalConfiguration Code = "INT_002"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the category prefix of the error code (e.g., "TOKEN",
// "CLAIMS").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
