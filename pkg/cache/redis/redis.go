// Package redis provides a Redis-backed implementation of the identity
// cache Store, for deployments where several resolver instances should
// share one cache rather than each warming its own.
//
// Unlike the in-memory store, entry lifetime is delegated to Redis TTLs
// and the byte budget to Redis' own maxmemory policy; this package only
// handles serialization and key namespacing.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/StricklySoft/edge-identity/pkg/cache"
	iderr "github.com/StricklySoft/edge-identity/pkg/errors"
	"github.com/StricklySoft/edge-identity/pkg/identity"
)

// Default connection behavior.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
	DefaultNamespace    = "edge-identity"
)

// Cmdable is the subset of the go-redis client the store uses. It exists
// so tests can substitute a fake without a running server.
type Cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Config holds the connection and behavior settings for the store.
type Config struct {
	// Addr is the host:port of the Redis server.
	Addr string `yaml:"addr"`

	// Password is the optional AUTH password.
	Password string `yaml:"password"`

	// DB selects the logical database.
	DB int `yaml:"db"`

	// Namespace prefixes every cache key so multiple applications can
	// share one Redis instance. Defaults to [DefaultNamespace].
	Namespace string `yaml:"namespace"`

	// MaxLifetime bounds how long an entry may live regardless of the
	// identity's own expiry. Zero means only the identity expiry bounds
	// the TTL.
	MaxLifetime time.Duration `yaml:"max_lifetime"`

	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Namespace == "" {
		out.Namespace = DefaultNamespace
	}
	if out.DialTimeout <= 0 {
		out.DialTimeout = DefaultDialTimeout
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = DefaultReadTimeout
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = DefaultWriteTimeout
	}
	return out
}

// Store is the Redis-backed identity cache.
type Store struct {
	client      Cmdable
	namespace   string
	maxLifetime time.Duration
	now         func() time.Time
}

var _ cache.Store = (*Store)(nil)

// snapshot is the wire form of a cached identity. It mirrors the fields
// of identity.ResolvedIdentity, which deliberately exposes no exported
// fields of its own.
type snapshot struct {
	Principal string    `json:"principal"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	Size      int       `json:"size"`
}

// New connects to Redis and verifies the connection with a ping before
// returning the store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()
	if cfg.Addr == "" {
		return nil, iderr.Validation("redis cache requires an address")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, iderr.Wrapf(err, iderr.CodeInternal,
			"redis cache: ping %s failed", cfg.Addr)
	}
	return newFromClient(client, cfg), nil
}

// NewFromClient wraps an existing client. Used by tests and by callers
// that manage the client lifecycle themselves.
func NewFromClient(client Cmdable, cfg Config) *Store {
	return newFromClient(client, cfg.withDefaults())
}

func newFromClient(client Cmdable, cfg Config) *Store {
	return &Store{
		client:      client,
		namespace:   cfg.Namespace,
		maxLifetime: cfg.MaxLifetime,
		now:         time.Now,
	}
}

func (s *Store) key(fingerprint string) string {
	return fmt.Sprintf("%s:identity:%s", s.namespace, fingerprint)
}

// Get fetches and decodes the identity stored under a fingerprint. A
// corrupt value is deleted and reported as a miss so one bad entry
// cannot wedge a fingerprint permanently.
func (s *Store) Get(ctx context.Context, fingerprint string) (*identity.ResolvedIdentity, bool, error) {
	payload, err := s.client.Get(ctx, s.key(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, iderr.Wrap(err, iderr.CodeInternal,
			"redis cache: get failed")
	}

	var snap snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		_ = s.client.Del(ctx, s.key(fingerprint)).Err()
		return nil, false, nil
	}
	return identity.New(snap.Principal, snap.Roles, snap.ExpiresAt, snap.Size), true, nil
}

// Put stores an identity with a TTL bounded by both the configured
// maximum lifetime and the identity's own expiry. An identity that is
// already expired, or expires before Redis could serve it, is not
// stored.
func (s *Store) Put(ctx context.Context, fingerprint string, id *identity.ResolvedIdentity) error {
	if id == nil {
		return nil
	}
	ttl, storable := s.ttlFor(id)
	if !storable {
		return nil
	}

	snap := snapshot{
		Principal: id.Principal(),
		Roles:     id.Roles(),
		ExpiresAt: id.ExpiresAt(),
		Size:      id.Size(),
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return iderr.Wrap(err, iderr.CodeInternal,
			"redis cache: encode identity failed")
	}
	if err := s.client.Set(ctx, s.key(fingerprint), payload, ttl).Err(); err != nil {
		return iderr.Wrap(err, iderr.CodeInternal,
			"redis cache: set failed")
	}
	return nil
}

// ttlFor computes the entry TTL: the configured maximum lifetime, capped
// by time remaining until the identity expires. A zero TTL means no bound
// on either side, which Redis expresses as no expiration. The boolean is
// false when the identity has already expired and must not be stored.
func (s *Store) ttlFor(id *identity.ResolvedIdentity) (time.Duration, bool) {
	ttl := s.maxLifetime
	if exp := id.ExpiresAt(); !exp.IsZero() {
		remaining := exp.Sub(s.now())
		if remaining <= 0 {
			return 0, false
		}
		if ttl == 0 || remaining < ttl {
			ttl = remaining
		}
	}
	return ttl, true
}

// Close releases the underlying client connection.
func (s *Store) Close() error {
	return s.client.Close()
}
