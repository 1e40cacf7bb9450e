package intern

import (
	"fmt"
	"iter"
	"math/bits"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/stringpool/pkg/intern/arena"
)

// shardFactor scales GOMAXPROCS to the default shard count, which is
// then rounded up to a power of two.
const shardFactor = 4

// shard pairs a hash-by-key table with its lock. Reads on the interning
// path take the read side; only insertions take the write side.
type shard[K Key] struct {
	mu    sync.RWMutex
	index table[K]
}

// ThreadedInterner is the concurrent flavor. Any number of goroutines
// may intern and resolve simultaneously: the string→key index is sharded
// by hash prefix, the key→string vector and the arena are lock-free, and
// resolution never takes a lock.
type ThreadedInterner[K Key] struct {
	arena     *arena.Concurrent
	vec       *conVec
	shards    []shard[K]
	shardMask uint64
	hasher    Hasher

	next      atomic.Uint64 // next index to hand out.
	published atomic.Uint64 // entries visible through vector and map.

	hits     atomic.Uint64
	misses   atomic.Uint64
	orphaned atomic.Uint64
}

// NewThreaded creates a concurrent interner. It accepts the same options
// as New plus WithShards.
func NewThreaded[K Key](opts ...Option) *ThreadedInterner[K] {
	o := newOptions(opts)

	numShards := o.shards
	if numShards <= 0 {
		numShards = runtime.GOMAXPROCS(0) * shardFactor
	}

	numShards = 1 << bits.Len(uint(numShards-1))

	t := &ThreadedInterner[K]{
		arena:     arena.NewConcurrent(o.arenaOptions()...),
		vec:       newConVec(o.capacity.Strings),
		shards:    make([]shard[K], numShards),
		shardMask: uint64(numShards - 1),
		hasher:    o.hasher,
	}

	perShard := o.capacity.Strings / numShards

	for s := range t.shards {
		t.shards[s].index = newTable[K](perShard)
	}

	return t
}

// shardFor selects a shard from the upper hash bits, leaving the lower
// bits for slot selection inside the shard's table.
func (t *ThreadedInterner[K]) shardFor(hash uint64) *shard[K] {
	const shardShift = 48

	return &t.shards[(hash>>shardShift)&t.shardMask]
}

// resolveIdx reads the vector entry for a dense index.
func (t *ThreadedInterner[K]) resolveIdx(idx uint64) (string, bool) {
	return t.vec.get(idx)
}

// resolveKey is the hash-by-key comparator. Keys stored in a shard table
// are always published in the vector first, so the entry is present.
func (t *ThreadedInterner[K]) resolveKey(k K) string {
	s, _ := t.vec.get(IntoIndex(k))

	return s
}

// hashKey recomputes the hash of a stored key for table rehashing.
func (t *ThreadedInterner[K]) hashKey(k K) uint64 {
	return t.hasher.Sum64String(t.resolveKey(k))
}

// Get returns the key of an already interned string.
func (t *ThreadedInterner[K]) Get(s string) (K, bool) {
	hash := t.hasher.Sum64String(s)
	sh := t.shardFor(hash)

	sh.mu.RLock()
	k, ok := sh.index.lookup(hash, s, t.resolveKey)
	sh.mu.RUnlock()

	return k, ok
}

// GetOrIntern returns the key for s, interning it first if absent. Safe
// for concurrent use; equal strings racing from many goroutines receive
// a single key.
func (t *ThreadedInterner[K]) GetOrIntern(s string) (K, error) {
	return t.intern(s, true)
}

// GetOrInternStatic behaves like GetOrIntern but records the caller's
// string without an arena copy and without charging the memory limit.
func (t *ThreadedInterner[K]) GetOrInternStatic(s string) (K, error) {
	return t.intern(s, false)
}

// intern implements the race-free insertion protocol: optimistic read
// lock, arena copy and tentative key reservation outside any lock, then
// a write-locked recheck. Losers of the recheck discard their tentative
// key; the orphaned arena copy is bounded by the number of racers.
// Publish order is vector first, shard table second, so any key
// observable through the table resolves through the vector.
func (t *ThreadedInterner[K]) intern(s string, copyToArena bool) (K, error) {
	var zero K

	hash := t.hasher.Sum64String(s)
	sh := t.shardFor(hash)

	sh.mu.RLock()
	k, ok := sh.index.lookup(hash, s, t.resolveKey)
	sh.mu.RUnlock()

	if ok {
		t.hits.Add(1)

		return k, nil
	}

	stored := s

	if copyToArena {
		var err error

		stored, err = t.arena.Store(s)
		if err != nil {
			return zero, fmt.Errorf("intern: %w", err)
		}
	}

	idx, err := t.reserveIndex()
	if err != nil {
		return zero, err
	}

	k, _ = TryFromIndex[K](idx)

	sh.mu.Lock()

	if existing, found := sh.index.lookup(hash, s, t.resolveKey); found {
		sh.mu.Unlock()
		t.hits.Add(1)
		t.orphaned.Add(1)

		return existing, nil
	}

	t.vec.set(idx, stored)
	sh.index.reserve(t.hashKey)
	sh.index.insert(hash, k)

	sh.mu.Unlock()

	t.published.Add(1)
	t.misses.Add(1)

	return k, nil
}

// reserveIndex atomically hands out the next dense index, refusing once
// the key flavor is exhausted.
func (t *ThreadedInterner[K]) reserveIndex() (uint64, error) {
	for {
		n := t.next.Load()
		if n >= KeySpace[K]() {
			return 0, ErrKeySpaceExhausted
		}

		if t.next.CompareAndSwap(n, n+1) {
			return n, nil
		}
	}
}

// MustIntern is the infallible variant of GetOrIntern. It panics on any
// interning error.
func (t *ThreadedInterner[K]) MustIntern(s string) K {
	k, err := t.GetOrIntern(s)
	if err != nil {
		panic(err)
	}

	return k
}

// Resolve returns the string behind a key. It is lock-free. It panics
// when the key was never published.
func (t *ThreadedInterner[K]) Resolve(k K) string {
	s, ok := t.TryResolve(k)
	if !ok {
		panic(fmt.Sprintf("intern: resolve of absent key %d", k))
	}

	return s
}

// TryResolve returns the string behind a key, reporting false for the
// sentinel, for keys never issued, and for tentative keys discarded by
// racing inserts. It is lock-free.
func (t *ThreadedInterner[K]) TryResolve(k K) (string, bool) {
	if IsNil(k) {
		return "", false
	}

	return t.resolveIdx(IntoIndex(k))
}

// Contains reports whether s has been interned.
func (t *ThreadedInterner[K]) Contains(s string) bool {
	_, ok := t.Get(s)

	return ok
}

// ContainsKey reports whether k resolves.
func (t *ThreadedInterner[K]) ContainsKey(k K) bool {
	_, ok := t.TryResolve(k)

	return ok
}

// Len returns the number of published (key, string) pairs.
func (t *ThreadedInterner[K]) Len() int {
	return int(t.published.Load())
}

// IsEmpty reports whether nothing has been interned.
func (t *ThreadedInterner[K]) IsEmpty() bool {
	return t.Len() == 0
}

// Capacity returns the number of strings the key→string vector can hold
// before its outer array grows.
func (t *ThreadedInterner[K]) Capacity() int {
	return len(*t.vec.blocks.Load()) * vecBlockSize
}

// All iterates pairs in ascending key order. Each pair reflects the
// vector at the moment it is visited; no global snapshot is taken, so
// pairs interned concurrently may or may not appear.
func (t *ThreadedInterner[K]) All() iter.Seq2[K, string] {
	return func(yield func(K, string) bool) {
		bound := t.next.Load()

		for idx := uint64(0); idx < bound; idx++ {
			s, ok := t.resolveIdx(idx)
			if !ok {
				// Reserved but unpublished or discarded index.
				continue
			}

			k, _ := TryFromIndex[K](idx)
			if !yield(k, s) {
				return
			}
		}
	}
}

// MemoryUsage returns the arena's current byte footprint.
func (t *ThreadedInterner[K]) MemoryUsage() int64 {
	return t.arena.MemoryUsage()
}

// MaxMemoryUsage returns the arena's configured byte cap.
func (t *ThreadedInterner[K]) MaxMemoryUsage() int64 {
	return t.arena.MaxMemoryUsage()
}

// SetMemoryLimit changes the arena's byte cap at runtime.
func (t *ThreadedInterner[K]) SetMemoryLimit(maxBytes int64) {
	t.arena.SetMemoryLimit(maxBytes)
}

// Stats is a point-in-time snapshot of interning activity.
type Stats struct {
	// Strings is the number of published distinct strings.
	Strings int

	// Hits counts interning calls answered from the index.
	Hits uint64

	// Misses counts interning calls that published a new string.
	Misses uint64

	// Orphaned counts tentative keys discarded by racing inserts.
	Orphaned uint64

	// MemoryBytes is the arena footprint.
	MemoryBytes int64

	// MemoryLimitBytes is the arena cap.
	MemoryLimitBytes int64
}

// Stats returns current counters. Individual fields are read atomically;
// the snapshot as a whole is not.
func (t *ThreadedInterner[K]) Stats() Stats {
	return Stats{
		Strings:          t.Len(),
		Hits:             t.hits.Load(),
		Misses:           t.misses.Load(),
		Orphaned:         t.orphaned.Load(),
		MemoryBytes:      t.MemoryUsage(),
		MemoryLimitBytes: t.MaxMemoryUsage(),
	}
}

// String renders the snapshot with humanized sizes.
func (s Stats) String() string {
	limit := "unlimited"
	if s.MemoryLimitBytes != arena.NoLimit {
		limit = humanize.IBytes(uint64(s.MemoryLimitBytes))
	}

	return fmt.Sprintf("strings=%s hits=%s misses=%s orphaned=%d memory=%s limit=%s",
		humanize.Comma(int64(s.Strings)),
		humanize.Comma(int64(s.Hits)),
		humanize.Comma(int64(s.Misses)),
		s.Orphaned,
		humanize.IBytes(uint64(s.MemoryBytes)),
		limit)
}
