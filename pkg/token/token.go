// Package token implements the decode and claims-validation stages of the
// resolution pipeline. Decoding is a pure function: it splits the compact
// three-segment token, base64url-decodes each segment, and parses the
// payload into a claim mapping. No trust decision is made here — signature
// verification and time-bound validation are separate stages.
package token

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"

	iderr "github.com/StricklySoft/edge-identity/pkg/errors"
)

// segmentCount is the number of dot-separated segments in a compact token:
// header, payload, signature.
const segmentCount = 3

// RawToken holds the parsed segments of a compact token. It retains the
// encoded segment strings (the signing input and the cache accounting
// currency) alongside the decoded signature and the header fields the
// pipeline routes on. RawToken is immutable once parsed and request-scoped.
type RawToken struct {
	compact    string
	headerSeg  string
	payloadSeg string
	signature  []byte
	alg        string
	kid        string
}

// tokenHeader is the subset of the token header the pipeline reads.
type tokenHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

// Decode parses a compact token string into its raw segments and decoded
// claims. It returns CodeMalformedToken when the token does not consist of
// exactly three non-empty segments, a segment is not valid base64url, or
// the header is not a JSON object; it returns CodeInvalidPayload when the
// payload segment decodes but is not a JSON claim mapping.
//
// Decode performs no I/O and makes no trust decisions.
func Decode(raw string) (*RawToken, *Claims, *iderr.Error) {
	parts := strings.Split(raw, ".")
	if len(parts) != segmentCount {
		return nil, nil, iderr.Newf(iderr.CodeMalformedToken,
			"token must have %d segments, got %d", segmentCount, len(parts))
	}
	for _, p := range parts {
		if p == "" {
			return nil, nil, iderr.New(iderr.CodeMalformedToken,
				"token contains an empty segment")
		}
	}

	headerBytes, err := decodeSegment(parts[0])
	if err != nil {
		return nil, nil, iderr.Wrap(err, iderr.CodeMalformedToken,
			"token header segment is not valid base64url")
	}
	payloadBytes, err := decodeSegment(parts[1])
	if err != nil {
		return nil, nil, iderr.Wrap(err, iderr.CodeMalformedToken,
			"token payload segment is not valid base64url")
	}
	signature, err := decodeSegment(parts[2])
	if err != nil {
		return nil, nil, iderr.Wrap(err, iderr.CodeMalformedToken,
			"token signature segment is not valid base64url")
	}

	var header tokenHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, nil, iderr.Wrap(err, iderr.CodeMalformedToken,
			"token header is not a JSON object")
	}

	var payload map[string]any
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, nil, iderr.Wrap(err, iderr.CodeInvalidPayload,
			"token payload is not a JSON claim mapping")
	}
	if payload == nil {
		return nil, nil, iderr.New(iderr.CodeInvalidPayload,
			"token payload is null")
	}

	rt := &RawToken{
		compact:    raw,
		headerSeg:  parts[0],
		payloadSeg: parts[1],
		signature:  signature,
		alg:        header.Alg,
		kid:        header.Kid,
	}
	return rt, FromMap(payload), nil
}

// decodeSegment decodes a base64url token segment. Unpadded encoding is
// the wire format; padded input is accepted for interoperability with
// issuers that emit it.
func decodeSegment(seg string) ([]byte, error) {
	if strings.ContainsRune(seg, '=') {
		return base64.URLEncoding.DecodeString(seg)
	}
	return base64.RawURLEncoding.DecodeString(seg)
}

// Compact returns the original compact token string.
func (t *RawToken) Compact() string { return t.compact }

// SigningString returns the portion of the token the signature covers:
// the encoded header and payload segments joined by a dot.
func (t *RawToken) SigningString() string {
	return t.headerSeg + "." + t.payloadSeg
}

// Signature returns a copy of the decoded signature bytes.
func (t *RawToken) Signature() []byte {
	out := make([]byte, len(t.signature))
	copy(out, t.signature)
	return out
}

// Algorithm returns the signing algorithm declared in the token header,
// or "" when the header carries none.
func (t *RawToken) Algorithm() string { return t.alg }

// KeyID returns the key identifier declared in the token header, or ""
// when the header carries none.
func (t *RawToken) KeyID() string { return t.kid }

// PayloadSize returns the byte length of the base64-encoded payload
// segment. This is the size a resolved identity is accounted at in the
// identity cache.
func (t *RawToken) PayloadSize() int { return len(t.payloadSeg) }

// Fingerprint derives the cache key for a raw compact token string: the
// hex-encoded SHA-256 of the string. Identical tokens map to identical
// fingerprints, and raw token material is never retained as a map key.
func Fingerprint(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
