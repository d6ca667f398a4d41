package token

import (
	"time"
)

// Claim names the engine interprets directly. All other claims are carried
// verbatim and only consulted by the identity mapper.
const (
	// ClaimSubject is the subject claim carrying the principal name.
	ClaimSubject = "sub"

	// ClaimExpiry is the expiry claim (seconds since the Unix epoch).
	ClaimExpiry = "exp"

	// ClaimNotBefore is the not-before claim (seconds since the Unix epoch).
	ClaimNotBefore = "nbf"
)

// Kind identifies the shape of a claim value. A claim can be absent, a
// scalar string, a number, or a set of strings; modeling the shape as a
// tagged variant lets consumers pattern-match instead of type-asserting
// against a loosely-typed map.
type Kind int

const (
	// KindAbsent means the claim is missing or has an unsupported shape.
	KindAbsent Kind = iota

	// KindString means the claim is a single string value.
	KindString

	// KindNumber means the claim is a numeric value.
	KindNumber

	// KindStringSet means the claim is a set of string values.
	KindStringSet
)

// Value is an immutable tagged variant holding one claim value.
// The zero Value is absent.
type Value struct {
	kind Kind
	str  string
	num  float64
	set  []string
}

// Kind returns the shape of the value.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether the claim is missing or unsupported.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// AsString returns the scalar string value and true when the value is a
// string, or "" and false otherwise.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsNumber returns the numeric value and true when the value is a number,
// or 0 and false otherwise.
func (v Value) AsNumber() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// AsStrings returns the value widened to a string set: a string set is
// copied, a scalar string becomes a singleton set, and anything else
// (absent, numeric) yields nil. This widening is what lets role extraction
// degrade to "no roles" instead of failing on claim-shape differences.
func (v Value) AsStrings() []string {
	switch v.kind {
	case KindString:
		return []string{v.str}
	case KindStringSet:
		out := make([]string, len(v.set))
		copy(out, v.set)
		return out
	default:
		return nil
	}
}

// Claims is the decoded claim mapping of a token payload. Claims values
// are request-scoped: they are produced by [Decode], inspected by the
// validator and the identity mapper, and discarded after resolution.
//
// Claims is immutable after construction and safe for concurrent reads.
type Claims struct {
	values map[string]Value
}

// FromMap builds a Claims mapping from a decoded JSON object. Supported
// value shapes are strings, numbers, and arrays of strings; array elements
// that are not strings are dropped, and values of any other shape are
// treated as absent.
func FromMap(m map[string]any) *Claims {
	values := make(map[string]Value, len(m))
	for name, raw := range m {
		switch v := raw.(type) {
		case string:
			values[name] = Value{kind: KindString, str: v}
		case float64:
			values[name] = Value{kind: KindNumber, num: v}
		case []any:
			set := make([]string, 0, len(v))
			for _, elem := range v {
				if s, ok := elem.(string); ok {
					set = append(set, s)
				}
			}
			values[name] = Value{kind: KindStringSet, set: set}
		}
	}
	return &Claims{values: values}
}

// Get returns the value of the named claim. Missing claims yield an
// absent Value, never an error.
func (c *Claims) Get(name string) Value {
	return c.values[name]
}

// Len returns the number of claims with a supported shape.
func (c *Claims) Len() int {
	return len(c.values)
}

// Subject returns the subject claim and true when present as a non-empty
// string.
func (c *Claims) Subject() (string, bool) {
	s, ok := c.Get(ClaimSubject).AsString()
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// ExpiresAt returns the expiry claim as a time and true when present as a
// number.
func (c *Claims) ExpiresAt() (time.Time, bool) {
	return c.numericDate(ClaimExpiry)
}

// NotBefore returns the not-before claim as a time and true when present
// as a number.
func (c *Claims) NotBefore() (time.Time, bool) {
	return c.numericDate(ClaimNotBefore)
}

// numericDate interprets a numeric claim as seconds since the Unix epoch,
// preserving fractional seconds. Whole seconds and the fractional part are
// converted separately; multiplying the full value into nanoseconds first
// would overflow int64 for timestamps past the year 2262, folding
// far-future dates like exp 9999999999 into the distant past.
func (c *Claims) numericDate(name string) (time.Time, bool) {
	n, ok := c.Get(name).AsNumber()
	if !ok {
		return time.Time{}, false
	}
	sec := int64(n)
	nsec := int64((n - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec), true
}
