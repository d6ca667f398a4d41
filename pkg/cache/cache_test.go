package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/edge-identity/pkg/identity"
)

func testIdentity(principal string, size int) *identity.ResolvedIdentity {
	return identity.New(principal, []string{"users"}, time.Time{}, size)
}

// fakeClock advances manually so insertion order and lifetimes are
// deterministic regardless of scheduler timing.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMemory(maxSize int64, lifetime time.Duration, pct int) (*Memory, *fakeClock) {
	m := NewMemory(maxSize, lifetime, pct)
	clock := newFakeClock()
	m.now = clock.Now
	return m, clock
}

func TestMemory_PutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(1024, 0, 10)

	id := testIdentity("alice", 100)
	require.NoError(t, m.Put(ctx, "fp-1", id))

	got, ok, err := m.Get(ctx, "fp-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", got.Principal())
	assert.Equal(t, int64(100), m.SizeBytes())
	assert.Equal(t, 1, m.Len())
}

func TestMemory_MissOnUnknownFingerprint(t *testing.T) {
	m, _ := newTestMemory(1024, 0, 10)

	_, ok, err := m.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	stats := m.Stats()
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(0), stats.Hits)
}

func TestMemory_ReplaceExistingEntry(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(1024, 0, 10)

	require.NoError(t, m.Put(ctx, "fp-1", testIdentity("alice", 100)))
	require.NoError(t, m.Put(ctx, "fp-1", testIdentity("alice", 300)))

	assert.Equal(t, 1, m.Len())
	assert.Equal(t, int64(300), m.SizeBytes())
}

func TestMemory_EvictionRemovesCompactionShareOldestFirst(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory(1000, 0, 20)

	// Ten 100-byte entries fill the budget exactly; each insert happens at
	// a distinct instant so insertion order is unambiguous.
	for i := 0; i < 10; i++ {
		require.NoError(t, m.Put(ctx, fmt.Sprintf("fp-%d", i), testIdentity(fmt.Sprintf("p%d", i), 100)))
		clock.Advance(time.Second)
	}
	require.Equal(t, 10, m.Len())
	require.Equal(t, int64(1000), m.SizeBytes())

	// The eleventh insert exceeds the budget and must trigger eviction of
	// at least 20% of the ten pre-existing entries, oldest first.
	require.NoError(t, m.Put(ctx, "fp-10", testIdentity("p10", 100)))

	assert.Equal(t, 9, m.Len())
	assert.LessOrEqual(t, m.SizeBytes(), int64(1000))
	assert.Equal(t, uint64(2), m.Stats().Evictions)

	// The two oldest are gone, the rest survive.
	for i := 0; i < 2; i++ {
		_, ok, err := m.Get(ctx, fmt.Sprintf("fp-%d", i))
		require.NoError(t, err)
		assert.False(t, ok, "fp-%d should have been evicted", i)
	}
	for i := 2; i <= 10; i++ {
		_, ok, err := m.Get(ctx, fmt.Sprintf("fp-%d", i))
		require.NoError(t, err)
		assert.True(t, ok, "fp-%d should have survived", i)
	}
}

func TestMemory_LargeEvictionPassKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	const entries = 10_000
	m, clock := newTestMemory(entries, 0, 10)

	// Fill the budget with one-byte entries at strictly increasing
	// insertion times, then trigger a single pass over the full snapshot.
	for i := 0; i < entries; i++ {
		require.NoError(t, m.Put(ctx, fmt.Sprintf("fp-%d", i), testIdentity("p", 1)))
		clock.Advance(time.Millisecond)
	}
	require.NoError(t, m.Put(ctx, "trigger", testIdentity("trigger", 1)))

	evicted := int(m.Stats().Evictions)
	assert.Equal(t, entries/10, evicted)

	// Exactly the oldest tenth is gone.
	for i := 0; i < evicted; i++ {
		_, ok, err := m.Get(ctx, fmt.Sprintf("fp-%d", i))
		require.NoError(t, err)
		require.False(t, ok, "fp-%d should have been evicted", i)
	}
	_, ok, err := m.Get(ctx, fmt.Sprintf("fp-%d", evicted))
	require.NoError(t, err)
	assert.True(t, ok, "fp-%d should have survived", evicted)
}

func TestMemory_EvictionContinuesUntilInsertFits(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory(1000, 0, 1)

	for i := 0; i < 10; i++ {
		require.NoError(t, m.Put(ctx, fmt.Sprintf("fp-%d", i), testIdentity(fmt.Sprintf("p%d", i), 100)))
		clock.Advance(time.Second)
	}

	// A 500-byte insert needs five evictions even though 1% of ten entries
	// rounds up to a single-entry target.
	require.NoError(t, m.Put(ctx, "big", testIdentity("big", 500)))

	assert.Equal(t, 6, m.Len())
	assert.LessOrEqual(t, m.SizeBytes(), int64(1000))
	assert.Equal(t, uint64(5), m.Stats().Evictions)
}

func TestMemory_OversizeIdentityNotStored(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(100, 0, 10)

	require.NoError(t, m.Put(ctx, "fp-1", testIdentity("huge", 101)))
	assert.Equal(t, 0, m.Len())

	_, ok, err := m.Get(ctx, "fp-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_LifetimeExpiryIsLazy(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory(1024, time.Minute, 10)

	require.NoError(t, m.Put(ctx, "fp-1", testIdentity("alice", 100)))

	clock.Advance(30 * time.Second)
	_, ok, err := m.Get(ctx, "fp-1")
	require.NoError(t, err)
	assert.True(t, ok)

	clock.Advance(31 * time.Second)
	_, ok, err = m.Get(ctx, "fp-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// The entry stays resident until an eviction pass reclaims it.
	assert.Equal(t, 1, m.Len())

	stats := m.Stats()
	assert.Equal(t, uint64(1), stats.Expirations)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestMemory_EvictionReclaimsExpiredEntriesFirst(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory(1000, time.Minute, 10)

	// Five entries that will be expired by the time eviction runs, then
	// five fresh ones.
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Put(ctx, fmt.Sprintf("old-%d", i), testIdentity("old", 100)))
	}
	clock.Advance(2 * time.Minute)
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Put(ctx, fmt.Sprintf("new-%d", i), testIdentity("new", 100)))
		clock.Advance(time.Second)
	}
	require.Equal(t, 10, m.Len())

	require.NoError(t, m.Put(ctx, "trigger", testIdentity("trigger", 100)))

	// All five expired entries are reclaimed; no fresh entry is evicted
	// because removing the expired ones both met the compaction target and
	// made room.
	assert.Equal(t, 6, m.Len())
	assert.Equal(t, uint64(5), m.Stats().Expirations)
	assert.Equal(t, uint64(0), m.Stats().Evictions)
	for i := 0; i < 5; i++ {
		_, ok, err := m.Get(ctx, fmt.Sprintf("new-%d", i))
		require.NoError(t, err)
		assert.True(t, ok, "new-%d should have survived", i)
	}
}

func TestMemory_ZeroLifetimeNeverExpires(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestMemory(1024, 0, 10)

	require.NoError(t, m.Put(ctx, "fp-1", testIdentity("alice", 100)))
	clock.Advance(24 * time.Hour)

	_, ok, err := m.Get(ctx, "fp-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDisabled_AlwaysMissesAndSkipsStores(t *testing.T) {
	ctx := context.Background()
	m := Disabled()

	require.NoError(t, m.Put(ctx, "fp-1", testIdentity("alice", 100)))
	_, ok, err := m.Get(ctx, "fp-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, int64(0), m.SizeBytes())
}

func TestNewMemory_NonPositiveBudgetDisables(t *testing.T) {
	ctx := context.Background()
	for _, budget := range []int64{0, -1} {
		m := NewMemory(budget, time.Minute, 10)
		require.NoError(t, m.Put(ctx, "fp-1", testIdentity("alice", 10)))
		_, ok, err := m.Get(ctx, "fp-1")
		require.NoError(t, err)
		assert.False(t, ok, "budget=%d", budget)
	}
}

func TestClampCompactionPercentage(t *testing.T) {
	tests := []struct {
		name string
		pct  int
		want int
	}{
		{name: "below minimum", pct: 0, want: DefaultCompactionPercentage},
		{name: "negative", pct: -5, want: DefaultCompactionPercentage},
		{name: "above maximum", pct: 51, want: DefaultCompactionPercentage},
		{name: "minimum", pct: 1, want: 1},
		{name: "maximum", pct: 50, want: 50},
		{name: "in range", pct: 25, want: 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampCompactionPercentage(tt.pct))
		})
	}
}

func TestMemory_StatsCounters(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(1024, 0, 10)

	require.NoError(t, m.Put(ctx, "fp-1", testIdentity("alice", 100)))
	m.Get(ctx, "fp-1")
	m.Get(ctx, "fp-1")
	m.Get(ctx, "absent")

	stats := m.Stats()
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(100), stats.SizeBytes)
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(10_000, 0, 10)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				fp := fmt.Sprintf("fp-%d", i%50)
				if i%3 == 0 {
					_ = m.Put(ctx, fp, testIdentity("p", 64))
				} else {
					m.Get(ctx, fp)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, m.SizeBytes(), int64(10_000))
	assert.LessOrEqual(t, m.Len(), 50)
}
