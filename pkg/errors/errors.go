// Package errors provides the structured error types used throughout the
// edge-identity resolution engine. Every failure the engine can surface is
// represented as an *Error carrying a stable, machine-readable code that
// identifies the pipeline stage where resolution stopped.
//
// # Error Categories
//
// Codes are grouped by resolution stage:
//
//   - TOKEN_xxx: decode-stage failures — the token is structurally unusable
//   - KEY_xxx: key-acquisition failures — signing key missing or unusable
//   - SIG_xxx: verification failures — structurally valid but untrusted
//   - CLAIMS_xxx: validation failures — trusted but not currently usable
//   - VAL_xxx: configuration/input validation failures
//   - INT_xxx: unexpected internal failures
//
// # Usage
//
// Create a new error with context:
//
//	err := errors.New(errors.CodeExpiredToken, "token has expired")
//
// Wrap an underlying cause:
//
//	err := errors.Wrap(err, errors.CodeKeyFetch, "fetching signing key failed")
//
// Check the stage that failed:
//
//	if errors.IsExpiredToken(err) {
//	    // re-authenticate
//	}
//
// Callers that translate resolution failures into transport responses can
// use [Error.HTTPStatus]; every resolution-stage code maps to 401 so the
// caller-facing behavior is uniformly "unauthenticated" while the code
// itself stays distinguishable for diagnostics.
package errors
