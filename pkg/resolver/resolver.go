// Package resolver implements the identity resolution engine: the
// pipeline that turns a compact token from an authenticating load
// balancer into a cached, portable identity.
//
// Resolution runs the stages in a fixed order — fingerprint and cache
// lookup, decode, signature verification against issuer keys, time-bound
// claim validation, claims-to-identity mapping, cache store — and stops
// at the first failing stage. The cache is strictly best-effort: a
// degraded cache slows resolution down but never fails or falsifies it.
package resolver

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/StricklySoft/edge-identity/pkg/cache"
	iderr "github.com/StricklySoft/edge-identity/pkg/errors"
	"github.com/StricklySoft/edge-identity/pkg/identity"
	"github.com/StricklySoft/edge-identity/pkg/keys"
	"github.com/StricklySoft/edge-identity/pkg/token"
	"github.com/StricklySoft/edge-identity/pkg/verify"
)

// tracerName identifies this package's OpenTelemetry tracer.
const tracerName = "github.com/StricklySoft/edge-identity/pkg/resolver"

// maxTokenSize rejects pathological inputs before any parsing. An AWS ALB
// forwards up to ~11 KB of claims in x-amzn-oidc-data, so the cap sits at
// 16 KiB to admit the largest token a fronting balancer will deliver.
const maxTokenSize = 16384

// Resolver is the resolution engine. It is safe for concurrent use by
// multiple request-handling goroutines.
type Resolver struct {
	opts   Options
	keys   *keys.Provider
	cache  cache.Store
	tracer trace.Tracer
	now    func() time.Time
}

// New constructs a Resolver.
//
// provider supplies issuer key material and is required when signature
// validation is enabled. store may be nil, in which case an in-memory
// cache is built from the options (disabled when the byte budget is nil).
func New(opts Options, provider *keys.Provider, store cache.Store) (*Resolver, error) {
	opts.normalize()
	if opts.ValidateSignature && provider == nil {
		return nil, iderr.Validation(
			"resolver: signature validation requires a key provider")
	}
	if store == nil {
		store = opts.buildCache()
	}
	return &Resolver{
		opts:   opts,
		keys:   provider,
		cache:  store,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}, nil
}

// Resolve turns a compact token into a resolved identity, serving from
// the cache when the same token was resolved recently.
//
// On failure the returned error is an *[iderr.Error] whose code names
// the stage that rejected the token; every resolution failure maps to
// HTTP 401 via [iderr.Error.HTTPStatus]. The error message is for
// operators — callers should surface only the status to clients.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*identity.ResolvedIdentity, error) {
	ctx, span := r.tracer.Start(ctx, "resolver.Resolve")
	defer span.End()

	if raw == "" {
		return nil, r.fail(span, iderr.New(iderr.CodeMalformedToken,
			"resolver: token must not be empty"))
	}
	if len(raw) > maxTokenSize {
		return nil, r.fail(span, iderr.New(iderr.CodeMalformedToken,
			"resolver: token exceeds maximum size"))
	}

	fingerprint := token.Fingerprint(raw)

	if id, ok := r.cacheGet(ctx, span, fingerprint); ok {
		span.SetAttributes(attribute.Bool("resolver.cache_hit", true))
		return id, nil
	}
	span.SetAttributes(attribute.Bool("resolver.cache_hit", false))

	rt, claims, derr := token.Decode(raw)
	if derr != nil {
		return nil, r.fail(span, derr)
	}
	span.SetAttributes(attribute.String("resolver.algorithm", rt.Algorithm()))

	if r.opts.ValidateSignature {
		if verr := r.verifySignature(ctx, rt); verr != nil {
			return nil, r.fail(span, verr)
		}
	}

	if verr := token.Validate(claims, r.now(), r.opts.ValidateLifetime); verr != nil {
		return nil, r.fail(span, verr)
	}

	id := identity.Map(claims, r.opts.RoleClaim, rt.PayloadSize())
	span.SetAttributes(
		attribute.String("resolver.principal", id.Principal()),
		attribute.Int("resolver.role_count", len(id.Roles())),
	)

	if err := r.cache.Put(ctx, fingerprint, id); err != nil {
		// Best-effort: a failed store costs the next request a full
		// verification, nothing more.
		span.RecordError(err)
	}
	return id, nil
}

// verifySignature resolves the token's key and checks the signature.
func (r *Resolver) verifySignature(ctx context.Context, rt *token.RawToken) *iderr.Error {
	kid := rt.KeyID()
	if kid == "" {
		return iderr.New(iderr.CodeKeyFetch,
			"resolver: token header carries no key id")
	}
	key, err := r.keys.GetKey(ctx, kid)
	if err != nil {
		if idErr, ok := iderr.AsError(err); ok {
			return idErr
		}
		return iderr.Wrap(err, iderr.CodeKeyFetch, "resolver: key fetch failed")
	}
	return verify.Verify(rt, key)
}

// cacheGet looks the fingerprint up, downgrading any backend error to a
// miss after recording it on the span.
func (r *Resolver) cacheGet(ctx context.Context, span trace.Span, fingerprint string) (*identity.ResolvedIdentity, bool) {
	id, ok, err := r.cache.Get(ctx, fingerprint)
	if err != nil {
		span.RecordError(err)
		return nil, false
	}
	return id, ok
}

// fail records the error on the span and sets the error status.
func (r *Resolver) fail(span trace.Span, err *iderr.Error) *iderr.Error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
