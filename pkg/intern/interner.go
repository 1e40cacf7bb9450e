// Package intern provides string interning: it maps arbitrary strings to
// small, densely packed integer keys and resolves keys back to their
// original bytes in O(1).
//
// Equal strings always receive the same key within an interner instance,
// and every issued key resolves for the interner's whole lifetime. Bytes
// live in a bump-style slab arena and never move; the string→key index
// stores keys only and compares candidates through the key→string vector
// ("hash-by-key"), so each entry costs one key of overhead.
//
// Four entity families are provided: the single-owner Interner, the
// lock-free ThreadedInterner for concurrent use, and the immutable Reader
// and Resolver projections derived from either.
package intern

import (
	"fmt"
	"iter"

	"github.com/Sumatoshi-tech/stringpool/pkg/intern/arena"
)

// Interner is the single-owner flavor: mutation requires exclusive
// access. Use ThreadedInterner when multiple goroutines intern
// concurrently.
type Interner[K Key] struct {
	arena   *arena.Arena
	index   table[K]
	strings []string
	hasher  Hasher
}

// New creates an interner. Constructors compose through options:
// default, with capacity, with capacity and memory limits, with a custom
// hasher, or any combination.
func New[K Key](opts ...Option) *Interner[K] {
	o := newOptions(opts)

	return &Interner[K]{
		arena:   arena.New(o.arenaOptions()...),
		index:   newTable[K](o.capacity.Strings),
		strings: make([]string, 0, o.capacity.Strings),
		hasher:  o.hasher,
	}
}

// resolveKey is the hash-by-key comparator: stored key to stored string.
func (i *Interner[K]) resolveKey(k K) string {
	return i.strings[IntoIndex(k)]
}

// hashKey recomputes the hash of a stored key for table rehashing.
func (i *Interner[K]) hashKey(k K) uint64 {
	return i.hasher.Sum64String(i.resolveKey(k))
}

// Get returns the key of an already interned string.
func (i *Interner[K]) Get(s string) (K, bool) {
	return i.index.lookup(i.hasher.Sum64String(s), s, i.resolveKey)
}

// GetOrIntern returns the key for s, interning it first if absent.
// Fails with ErrMemoryLimitReached, ErrFailedAllocation, or
// ErrKeySpaceExhausted; a failed call leaves the interner unchanged.
func (i *Interner[K]) GetOrIntern(s string) (K, error) {
	return i.intern(s, true)
}

// GetOrInternStatic behaves like GetOrIntern but records the caller's
// string directly instead of copying it into the arena. The memory limit
// is not charged. Go strings are immutable and garbage collected, so
// unlike manual-memory ports there is no lifetime obligation on the
// caller; the copy is skipped purely to save arena bytes.
func (i *Interner[K]) GetOrInternStatic(s string) (K, error) {
	return i.intern(s, false)
}

// intern implements both interning paths.
func (i *Interner[K]) intern(s string, copyToArena bool) (K, error) {
	var zero K

	hash := i.hasher.Sum64String(s)

	if k, ok := i.index.lookup(hash, s, i.resolveKey); ok {
		return k, nil
	}

	k, ok := TryFromIndex[K](uint64(len(i.strings)))
	if !ok {
		return zero, ErrKeySpaceExhausted
	}

	stored := s

	if copyToArena {
		var err error

		stored, err = i.arena.Store(s)
		if err != nil {
			return zero, fmt.Errorf("intern: %w", err)
		}
	}

	i.strings = append(i.strings, stored)
	i.index.reserve(i.hashKey)
	i.index.insert(hash, k)

	return k, nil
}

// MustIntern is the infallible variant of GetOrIntern. It panics on any
// interning error; calling it asserts that limits cannot be hit.
func (i *Interner[K]) MustIntern(s string) K {
	k, err := i.GetOrIntern(s)
	if err != nil {
		panic(err)
	}

	return k
}

// Resolve returns the string behind a key issued by this interner.
// It panics when the key was never issued.
func (i *Interner[K]) Resolve(k K) string {
	s, ok := i.TryResolve(k)
	if !ok {
		panic(fmt.Sprintf("intern: resolve of absent key %d", k))
	}

	return s
}

// TryResolve returns the string behind a key, reporting false for the
// sentinel and for keys never issued.
func (i *Interner[K]) TryResolve(k K) (string, bool) {
	if IsNil(k) || IntoIndex(k) >= uint64(len(i.strings)) {
		return "", false
	}

	return i.resolveKey(k), true
}

// Contains reports whether s has been interned.
func (i *Interner[K]) Contains(s string) bool {
	_, ok := i.Get(s)

	return ok
}

// ContainsKey reports whether k was issued by this interner.
func (i *Interner[K]) ContainsKey(k K) bool {
	_, ok := i.TryResolve(k)

	return ok
}

// Len returns the number of distinct interned strings.
func (i *Interner[K]) Len() int {
	return len(i.strings)
}

// IsEmpty reports whether nothing has been interned.
func (i *Interner[K]) IsEmpty() bool {
	return i.Len() == 0
}

// Capacity returns the number of strings the key→string vector can hold
// before growing.
func (i *Interner[K]) Capacity() int {
	return cap(i.strings)
}

// All iterates (key, string) pairs in ascending key order, which equals
// the insertion order of distinct strings.
func (i *Interner[K]) All() iter.Seq2[K, string] {
	return func(yield func(K, string) bool) {
		for idx, s := range i.strings {
			k, _ := TryFromIndex[K](uint64(idx))
			if !yield(k, s) {
				return
			}
		}
	}
}

// MemoryUsage returns the arena's current byte footprint.
func (i *Interner[K]) MemoryUsage() int64 {
	return i.arena.MemoryUsage()
}

// MaxMemoryUsage returns the arena's configured byte cap.
func (i *Interner[K]) MaxMemoryUsage() int64 {
	return i.arena.MaxMemoryUsage()
}

// SetMemoryLimit changes the arena's byte cap. Stored strings are never
// invalidated; only future stores observe the new limit.
func (i *Interner[K]) SetMemoryLimit(maxBytes int64) {
	i.arena.SetMemoryLimit(maxBytes)
}

// TryClone deep-copies the interner: a fresh arena receives a copy of
// every string and the index is rebuilt against it. Keys are preserved.
func (i *Interner[K]) TryClone() (*Interner[K], error) {
	clone := &Interner[K]{
		arena:   arena.New(arena.WithInitialSlabSize(int(i.arena.MemoryUsage())), arena.WithMemoryLimit(i.arena.MaxMemoryUsage())),
		index:   newTable[K](len(i.strings)),
		strings: make([]string, 0, len(i.strings)),
		hasher:  i.hasher,
	}

	for _, s := range i.strings {
		stored, err := clone.arena.Store(s)
		if err != nil {
			return nil, fmt.Errorf("clone: %w", err)
		}

		clone.strings = append(clone.strings, stored)
	}

	for idx, s := range clone.strings {
		k, _ := TryFromIndex[K](uint64(idx))
		clone.index.reserve(clone.hashKey)
		clone.index.insert(clone.hasher.Sum64String(s), k)
	}

	return clone, nil
}

// Clone is the infallible variant of TryClone; it panics when the copy
// cannot be allocated.
func (i *Interner[K]) Clone() *Interner[K] {
	clone, err := i.TryClone()
	if err != nil {
		panic(err)
	}

	return clone
}

// Equal reports whether both interners hold the same strings under the
// same keys.
func (i *Interner[K]) Equal(other *Interner[K]) bool {
	if i.Len() != other.Len() {
		return false
	}

	for idx, s := range i.strings {
		if other.strings[idx] != s {
			return false
		}
	}

	return true
}
