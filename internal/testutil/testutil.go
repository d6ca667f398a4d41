// Package testutil provides shared test helpers for the edge-identity
// engine: error-code assertions, environment manipulation with cleanup,
// and builders for signed tokens and issuer key material.
//
// All helpers accept [testing.TB] for compatibility with both tests and
// benchmarks, and call t.Helper() so failures report the caller's line.
package testutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	iderr "github.com/StricklySoft/edge-identity/pkg/errors"
)

// RequireErrorCode halts the test if err is nil, is not an *iderr.Error,
// or does not carry the expected error code.
func RequireErrorCode(t testing.TB, err error, code iderr.Code, msgAndArgs ...any) {
	t.Helper()
	require.Error(t, err, msgAndArgs...)
	idErr, ok := iderr.AsError(err)
	require.True(t, ok, "expected *iderr.Error, got %T: %v", err, err)
	require.Equal(t, code, idErr.Code,
		"error code mismatch: got %q, want %q (message: %s)",
		idErr.Code, code, idErr.Message)
}

// AssertErrorCode records a test failure (without halting) if err is nil,
// is not an *iderr.Error, or does not carry the expected error code.
// Use this in table-driven tests where you want to check all rows.
func AssertErrorCode(t testing.TB, err error, code iderr.Code, msgAndArgs ...any) bool {
	t.Helper()
	if !assert.Error(t, err, msgAndArgs...) {
		return false
	}
	idErr, ok := iderr.AsError(err)
	if !assert.True(t, ok, "expected *iderr.Error, got %T: %v", err, err) {
		return false
	}
	return assert.Equal(t, code, idErr.Code,
		"error code mismatch: got %q, want %q (message: %s)",
		idErr.Code, code, idErr.Message)
}

// SetEnv sets an environment variable and registers a cleanup function
// that restores the original value (or unsets it if it was not set)
// when the test completes.
func SetEnv(t testing.TB, key, value string) {
	t.Helper()
	prev, existed := os.LookupEnv(key)
	err := os.Setenv(key, value)
	require.NoError(t, err, "failed to set env var %s", key)
	t.Cleanup(func() {
		if existed {
			_ = os.Setenv(key, prev)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

// TempConfigFile creates a temporary file with the given content and
// extension (e.g., ".yaml") inside t.TempDir(), cleaned up with the test.
func TempConfigFile(t testing.TB, content, ext string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config"+ext)
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err, "failed to write temp config file %s", path)
	return path
}

// NewKeyID returns a fresh random key identifier.
func NewKeyID(t testing.TB) string {
	t.Helper()
	return uuid.NewString()
}

// NewRSAKey generates a 2048-bit RSA key pair for signing test tokens.
func NewRSAKey(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "rsa key generation failed")
	return key
}

// NewECDSAKey generates a P-256 key pair for signing test tokens.
func NewECDSAKey(t testing.TB) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err, "ecdsa key generation failed")
	return key
}

// SignHS256 returns a compact HS256 token over the given claims with the
// kid header set.
func SignHS256(t testing.TB, secret []byte, kid string, claims jwt.MapClaims) string {
	t.Helper()
	return sign(t, jwt.SigningMethodHS256, secret, kid, claims)
}

// SignRS256 returns a compact RS256 token over the given claims with the
// kid header set.
func SignRS256(t testing.TB, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	return sign(t, jwt.SigningMethodRS256, key, kid, claims)
}

// SignES256 returns a compact ES256 token over the given claims with the
// kid header set.
func SignES256(t testing.TB, key *ecdsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	return sign(t, jwt.SigningMethodES256, key, kid, claims)
}

func sign(t testing.TB, method jwt.SigningMethod, key any, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(method, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	signed, err := tok.SignedString(key)
	require.NoError(t, err, "token signing failed")
	return signed
}
