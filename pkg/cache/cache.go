// Package cache provides the bounded, time-aware identity cache that lets
// repeated presentations of the same token skip the cryptographic stages
// of resolution.
//
// Entries are keyed by token fingerprint and accounted in bytes. Two
// independent policies govern an entry's life: a byte budget enforced by
// batch eviction in oldest-insertion-first order, and a maximum lifetime
// enforced lazily at lookup. The policies are deliberately separate so
// each stays independently testable.
package cache

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/StricklySoft/edge-identity/pkg/identity"
)

// Compaction percentage bounds. An eviction pass removes at least this
// percentage of the entry count present when the pass was triggered;
// values outside [Min, Max] silently fall back to the default rather than
// being rejected.
const (
	MinCompactionPercentage     = 1
	MaxCompactionPercentage     = 50
	DefaultCompactionPercentage = 10
)

// ClampCompactionPercentage returns pct when it lies within
// [MinCompactionPercentage, MaxCompactionPercentage] and
// DefaultCompactionPercentage otherwise.
func ClampCompactionPercentage(pct int) int {
	if pct < MinCompactionPercentage || pct > MaxCompactionPercentage {
		return DefaultCompactionPercentage
	}
	return pct
}

// Store is the identity cache contract the resolution engine depends on.
// Implementations must be safe for concurrent use by multiple
// request-handling goroutines.
//
// A Store is best-effort: the engine treats a Get error as a miss and a
// Put error as a skipped store, so a degraded cache backend slows
// resolution down but never fails it.
type Store interface {
	// Get returns the cached identity for a token fingerprint, or false
	// when the fingerprint is unknown or its entry has outlived the
	// maximum entry lifetime.
	Get(ctx context.Context, fingerprint string) (*identity.ResolvedIdentity, bool, error)

	// Put stores a resolved identity under a token fingerprint, evicting
	// older entries first if the insert would exceed the byte budget.
	Put(ctx context.Context, fingerprint string, id *identity.ResolvedIdentity) error
}

// Stats is a point-in-time snapshot of cache activity counters.
type Stats struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Expirations uint64
	Entries     int
	SizeBytes   int64
}

// entry wraps a cached identity with its bookkeeping times. The identity
// itself is immutable; an update replaces the whole entry.
type entry struct {
	id         *identity.ResolvedIdentity
	insertedAt time.Time
	lastAccess atomic.Int64 // unix nanoseconds, refreshed lock-free on hit
}

// Memory is the in-process Store implementation. Reads take a shared lock
// and never block other reads; inserts and eviction passes serialize on
// the write lock.
type Memory struct {
	maxSize     int64
	maxLifetime time.Duration
	compaction  int
	disabled    bool

	mu      sync.RWMutex
	entries map[string]*entry
	size    int64

	hits        atomic.Uint64
	misses      atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64

	now func() time.Time
}

// Compile-time assertion that Memory implements Store.
var _ Store = (*Memory)(nil)

// NewMemory creates an in-memory identity cache bounded by maxSizeBytes.
// A maxSizeBytes of zero or less disables caching entirely, equivalent to
// [Disabled]. A maxLifetime of zero means entries never expire by age.
// compactionPercentage is clamped per [ClampCompactionPercentage].
func NewMemory(maxSizeBytes int64, maxLifetime time.Duration, compactionPercentage int) *Memory {
	if maxSizeBytes <= 0 {
		return Disabled()
	}
	return &Memory{
		maxSize:     maxSizeBytes,
		maxLifetime: maxLifetime,
		compaction:  ClampCompactionPercentage(compactionPercentage),
		entries:     make(map[string]*entry),
		now:         time.Now,
	}
}

// Disabled returns a cache on which Get always misses and Put is a no-op.
// The engine still functions correctly against it, just without
// amortizing verification cost across repeated requests.
func Disabled() *Memory {
	return &Memory{
		disabled: true,
		entries:  make(map[string]*entry),
		now:      time.Now,
	}
}

// Get implements [Store]. An entry older than the maximum lifetime is
// treated as absent; its memory is reclaimed opportunistically by the
// next eviction pass rather than here, keeping the lookup path read-only.
func (m *Memory) Get(_ context.Context, fingerprint string) (*identity.ResolvedIdentity, bool, error) {
	if m.disabled {
		return nil, false, nil
	}

	m.mu.RLock()
	e, ok := m.entries[fingerprint]
	m.mu.RUnlock()

	if !ok {
		m.misses.Add(1)
		return nil, false, nil
	}

	now := m.now()
	if m.expired(e, now) {
		m.expirations.Add(1)
		m.misses.Add(1)
		return nil, false, nil
	}

	e.lastAccess.Store(now.UnixNano())
	m.hits.Add(1)
	return e.id, true, nil
}

// Put implements [Store]. When the insert would push the tracked size
// over the byte budget, an eviction pass runs first; an identity that
// cannot fit even in an empty cache is not stored.
func (m *Memory) Put(_ context.Context, fingerprint string, id *identity.ResolvedIdentity) error {
	if m.disabled || id == nil {
		return nil
	}
	incoming := int64(id.Size())
	if incoming > m.maxSize {
		return nil
	}

	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Replacing an entry frees its accounted size before the budget check.
	if old, ok := m.entries[fingerprint]; ok {
		m.size -= int64(old.id.Size())
		delete(m.entries, fingerprint)
	}

	if m.size+incoming > m.maxSize {
		m.evictLocked(incoming, now)
	}

	e := &entry{id: id, insertedAt: now}
	e.lastAccess.Store(now.UnixNano())
	m.entries[fingerprint] = e
	m.size += incoming
	return nil
}

// expired reports whether an entry has outlived the maximum lifetime.
func (m *Memory) expired(e *entry, now time.Time) bool {
	return m.maxLifetime > 0 && now.Sub(e.insertedAt) > m.maxLifetime
}

// evictLocked frees room for an insert of the given size. It removes all
// lifetime-expired entries, then continues in oldest-insertion-first
// order until at least the compaction percentage of the entry count at
// trigger time has been removed and the insert fits. Caller must hold the
// write lock.
func (m *Memory) evictLocked(incoming int64, now time.Time) {
	count := len(m.entries)
	if count == 0 {
		return
	}

	// At least compaction% of the current entry count, rounded up, and
	// never more entries than are present.
	target := (count*m.compaction + 99) / 100
	if target < 1 {
		target = 1
	}

	type aged struct {
		fingerprint string
		e           *entry
	}
	snapshot := make([]aged, 0, count)
	for fp, e := range m.entries {
		snapshot = append(snapshot, aged{fingerprint: fp, e: e})
	}
	// The pass runs under the write lock, so the sort must stay
	// O(n log n) even when the snapshot covers the whole cache.
	slices.SortFunc(snapshot, func(a, b aged) int {
		return a.e.insertedAt.Compare(b.e.insertedAt)
	})

	removed := 0
	for _, a := range snapshot {
		stale := m.expired(a.e, now)
		if !stale && removed >= target && m.size+incoming <= m.maxSize {
			break
		}
		delete(m.entries, a.fingerprint)
		m.size -= int64(a.e.id.Size())
		removed++
		if stale {
			m.expirations.Add(1)
		} else {
			m.evictions.Add(1)
		}
	}
}

// Len returns the current entry count, including entries that have
// expired but not yet been reclaimed.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// SizeBytes returns the tracked size of all entries.
func (m *Memory) SizeBytes() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// Stats returns a snapshot of the cache's activity counters.
func (m *Memory) Stats() Stats {
	m.mu.RLock()
	entries := len(m.entries)
	size := m.size
	m.mu.RUnlock()

	return Stats{
		Hits:        m.hits.Load(),
		Misses:      m.misses.Load(),
		Evictions:   m.evictions.Load(),
		Expirations: m.expirations.Load(),
		Entries:     entries,
		SizeBytes:   size,
	}
}
