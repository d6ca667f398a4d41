package errors

import (
	"errors"
)

// AsError extracts an *Error from an error chain. Returns the *Error and
// true if err (or any error it wraps) is an *Error, or nil and false
// otherwise.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the Code carried by err, or the empty Code if err is not
// an *Error. Useful for switch-based error handling and metrics labels.
func CodeOf(err error) Code {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// hasCode reports whether err carries the given code.
func hasCode(err error, code Code) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}

// hasCategory reports whether err carries a code in the given category.
func hasCategory(err error, category string) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == category
}

// IsMalformedToken reports whether err indicates a token that does not
// consist of three non-empty base64url segments.
func IsMalformedToken(err error) bool {
	return hasCode(err, CodeMalformedToken)
}

// IsInvalidPayload reports whether err indicates a payload segment that is
// not a JSON claim mapping.
func IsInvalidPayload(err error) bool {
	return hasCode(err, CodeInvalidPayload)
}

// IsKeyFetch reports whether err indicates a signing key fetch failure.
func IsKeyFetch(err error) bool {
	return hasCode(err, CodeKeyFetch)
}

// IsUnsupportedAlgorithm reports whether err indicates a signing key with
// an algorithm the verifier does not support.
func IsUnsupportedAlgorithm(err error) bool {
	return hasCode(err, CodeUnsupportedAlgorithm)
}

// IsSignatureInvalid reports whether err indicates a failed signature
// verification.
func IsSignatureInvalid(err error) bool {
	return hasCode(err, CodeSignatureInvalid)
}

// IsExpiredToken reports whether err indicates a token past its expiry
// claim.
func IsExpiredToken(err error) bool {
	return hasCode(err, CodeExpiredToken)
}

// IsNotYetValid reports whether err indicates a token presented before its
// not-before claim.
func IsNotYetValid(err error) bool {
	return hasCode(err, CodeNotYetValid)
}

// IsMissingClaim reports whether err indicates an absent required claim.
func IsMissingClaim(err error) bool {
	return hasCode(err, CodeMissingClaim)
}

// IsDecodeFailure reports whether err belongs to the decode stage
// (TOKEN_xxx codes).
func IsDecodeFailure(err error) bool {
	return hasCategory(err, "TOKEN")
}

// IsValidation reports whether err is a configuration or input validation
// failure (VAL_xxx codes).
func IsValidation(err error) bool {
	return hasCategory(err, "VAL")
}
