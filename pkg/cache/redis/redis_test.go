package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/edge-identity/pkg/identity"
)

func newTestStore(t *testing.T, cfg Config) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewFromClient(client, cfg), mr
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, Config{MaxLifetime: time.Minute})

	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	id := identity.New("alice", []string{"admins", "ops"}, exp, 256)
	require.NoError(t, store.Put(ctx, "fp-1", id))

	got, ok, err := store.Get(ctx, "fp-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", got.Principal())
	assert.Equal(t, []string{"admins", "ops"}, got.Roles())
	assert.True(t, got.ExpiresAt().Equal(exp))
	assert.Equal(t, 256, got.Size())
}

func TestStore_MissOnUnknownFingerprint(t *testing.T) {
	store, _ := newTestStore(t, Config{})

	_, ok, err := store.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_KeysAreNamespaced(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, Config{Namespace: "tenant-a"})

	id := identity.New("alice", nil, time.Time{}, 10)
	require.NoError(t, store.Put(ctx, "fp-1", id))

	assert.True(t, mr.Exists("tenant-a:identity:fp-1"))
	assert.False(t, mr.Exists("edge-identity:identity:fp-1"))
}

func TestStore_TTLBoundedByMaxLifetime(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, Config{MaxLifetime: time.Minute})

	// Identity expiry far beyond MaxLifetime: the configured lifetime wins.
	id := identity.New("alice", nil, time.Now().Add(time.Hour), 10)
	require.NoError(t, store.Put(ctx, "fp-1", id))

	ttl := mr.TTL(store.key("fp-1"))
	assert.Equal(t, time.Minute, ttl)
}

func TestStore_TTLBoundedByIdentityExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, Config{MaxLifetime: time.Hour})
	store.now = func() time.Time { return time.Unix(1700000000, 0) }

	id := identity.New("alice", nil, time.Unix(1700000000, 0).Add(30*time.Second), 10)
	require.NoError(t, store.Put(ctx, "fp-1", id))

	ttl := mr.TTL(store.key("fp-1"))
	assert.Equal(t, 30*time.Second, ttl)
}

func TestStore_ExpiredIdentityNotStored(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, Config{MaxLifetime: time.Minute})

	id := identity.New("alice", nil, time.Now().Add(-time.Second), 10)
	require.NoError(t, store.Put(ctx, "fp-1", id))

	assert.False(t, mr.Exists(store.key("fp-1")))
}

func TestStore_EntryExpiresWithServerClock(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, Config{MaxLifetime: time.Minute})

	id := identity.New("alice", nil, time.Time{}, 10)
	require.NoError(t, store.Put(ctx, "fp-1", id))

	mr.FastForward(2 * time.Minute)

	_, ok, err := store.Get(ctx, "fp-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_CorruptEntrySelfHeals(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, Config{})

	require.NoError(t, mr.Set(store.key("fp-1"), "not json"))

	_, ok, err := store.Get(ctx, "fp-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(store.key("fp-1")), "corrupt entry should be deleted")
}

func TestStore_GetErrorSurfacesForEngineToTreatAsMiss(t *testing.T) {
	store, mr := newTestStore(t, Config{})
	mr.Close()

	_, ok, err := store.Get(context.Background(), "fp-1")
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestNew_RequiresAddr(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}
