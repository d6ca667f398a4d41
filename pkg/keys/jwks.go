package keys

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
)

// HTTPClient abstracts the HTTP client used to fetch JWKS documents,
// allowing callers to provide clients with custom timeouts, transports,
// or middleware. The standard [http.Client] satisfies this interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// maxJWKSResponseSize caps a JWKS response body at 1 MB to prevent
// resource exhaustion from a misbehaving endpoint.
const maxJWKSResponseSize = 1 << 20

// jwksDocument represents the JSON structure of a JWKS endpoint response.
type jwksDocument struct {
	Keys []jwkEntry `json:"keys"`
}

// jwkEntry represents a single key in a JWKS response. Only the fields
// needed for key reconstruction are included.
type jwkEntry struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	// RSA fields
	N string `json:"n"`
	E string `json:"e"`
	// EC / OKP fields
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
	// Symmetric field
	K string `json:"k"`
}

// JWKSFetcher returns a FetchFunc that resolves key identifiers against
// the JWKS document at jwksURL. Each invocation fetches the document
// fresh; caching and coalescing are the [Provider]'s responsibility, so
// the fetcher stays a plain capability.
//
// If client is nil, a default [http.Client] with [DefaultFetchTimeout] is
// used. Supported key types are RSA, EC (P-256/P-384/P-521), OKP
// (Ed25519), and oct (HMAC secrets); entries of other types are skipped.
func JWKSFetcher(jwksURL string, client HTTPClient) FetchFunc {
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	return func(ctx context.Context, keyID string) (Key, error) {
		doc, err := fetchJWKS(ctx, jwksURL, client)
		if err != nil {
			return Key{}, err
		}
		for _, entry := range doc.Keys {
			if entry.Kid != keyID {
				continue
			}
			material, alg, err := buildKey(entry)
			if err != nil {
				return Key{}, err
			}
			return Key{KeyID: entry.Kid, Material: material, Algorithm: alg}, nil
		}
		return Key{}, fmt.Errorf("keys: key %q not found in JWKS from %s", keyID, jwksURL)
	}
}

// fetchJWKS performs the HTTP GET against the JWKS URL and parses the
// response document.
func fetchJWKS(ctx context.Context, jwksURL string, client HTTPClient) (*jwksDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("keys: failed to create JWKS request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("keys: JWKS request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("keys: JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSResponseSize))
	if err != nil {
		return nil, fmt.Errorf("keys: failed to read JWKS response: %w", err)
	}

	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("keys: failed to parse JWKS JSON: %w", err)
	}
	return &doc, nil
}

// buildKey reconstructs the verification key material for a JWKS entry and
// resolves its algorithm, inferring a default when the entry declares none.
func buildKey(entry jwkEntry) (any, string, error) {
	switch entry.Kty {
	case "RSA":
		pub, err := parseRSAPublicKey(entry.N, entry.E)
		if err != nil {
			return nil, "", err
		}
		return pub, algOrDefault(entry.Alg, "RS256"), nil
	case "EC":
		pub, err := parseECPublicKey(entry.Crv, entry.X, entry.Y)
		if err != nil {
			return nil, "", err
		}
		return pub, algOrDefault(entry.Alg, defaultECAlg(entry.Crv)), nil
	case "OKP":
		if entry.Crv != "Ed25519" {
			return nil, "", fmt.Errorf("keys: unsupported OKP curve %q", entry.Crv)
		}
		raw, err := base64.RawURLEncoding.DecodeString(entry.X)
		if err != nil {
			return nil, "", fmt.Errorf("keys: failed to decode Ed25519 public key: %w", err)
		}
		if len(raw) != ed25519.PublicKeySize {
			return nil, "", fmt.Errorf("keys: Ed25519 public key has %d bytes, want %d",
				len(raw), ed25519.PublicKeySize)
		}
		return ed25519.PublicKey(raw), algOrDefault(entry.Alg, "EdDSA"), nil
	case "oct":
		raw, err := base64.RawURLEncoding.DecodeString(entry.K)
		if err != nil {
			return nil, "", fmt.Errorf("keys: failed to decode symmetric key: %w", err)
		}
		return raw, algOrDefault(entry.Alg, "HS256"), nil
	default:
		return nil, "", fmt.Errorf("keys: unsupported key type %q", entry.Kty)
	}
}

// algOrDefault returns the declared algorithm, falling back to the key
// type's conventional default when the JWKS entry omits it.
func algOrDefault(declared, fallback string) string {
	if declared != "" {
		return declared
	}
	return fallback
}

// defaultECAlg maps an EC curve name to its conventional signing
// algorithm.
func defaultECAlg(crv string) string {
	switch crv {
	case "P-384":
		return "ES384"
	case "P-521":
		return "ES512"
	default:
		return "ES256"
	}
}

// parseRSAPublicKey constructs an *rsa.PublicKey from base64url-encoded
// modulus (n) and exponent (e) values.
func parseRSAPublicKey(nBase64, eBase64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nBase64)
	if err != nil {
		return nil, fmt.Errorf("keys: failed to decode RSA modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eBase64)
	if err != nil {
		return nil, fmt.Errorf("keys: failed to decode RSA exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)

	return &rsa.PublicKey{
		N: n,
		E: int(e.Int64()),
	}, nil
}

// parseECPublicKey constructs an *ecdsa.PublicKey from a curve name and
// base64url-encoded x and y coordinates.
func parseECPublicKey(crv, xBase64, yBase64 string) (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("keys: unsupported EC curve %q", crv)
	}

	xBytes, err := base64.RawURLEncoding.DecodeString(xBase64)
	if err != nil {
		return nil, fmt.Errorf("keys: failed to decode EC x coordinate: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(yBase64)
	if err != nil {
		return nil, fmt.Errorf("keys: failed to decode EC y coordinate: %w", err)
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}
