package intern

import (
	"fmt"
	"iter"
)

// memUsage is the introspection surface shared by both arena flavors.
type memUsage interface {
	MemoryUsage() int64
	MaxMemoryUsage() int64
}

// Reader is an immutable projection of an interner holding both index
// directions. It is safe to share by reference across goroutines without
// any synchronization, because nothing ever mutates it. A Reader can be
// stripped further into a Resolver; there is no way back to an interner.
type Reader[K Key] struct {
	index   table[K]
	strings []string
	holes   map[uint64]struct{}
	hasher  Hasher
	mem     memUsage
}

// IntoReader freezes the interner into a Reader. The interner must not
// be used afterwards; the Reader takes over the arena and the indexes.
func (i *Interner[K]) IntoReader() *Reader[K] {
	return &Reader[K]{
		index:   i.index,
		strings: i.strings,
		hasher:  i.hasher,
		mem:     i.arena,
	}
}

// IntoReader freezes the concurrent interner into a Reader. The caller
// must guarantee that no goroutine mutates the interner during or after
// the call. Indexes reserved by racing inserts that never published
// remain unresolvable in the Reader, exactly as in the parent.
func (t *ThreadedInterner[K]) IntoReader() *Reader[K] {
	bound := t.next.Load()

	r := &Reader[K]{
		index:   newTable[K](int(t.published.Load())),
		strings: make([]string, bound),
		hasher:  t.hasher,
		mem:     t.arena,
	}

	resolve := func(k K) string { return r.strings[IntoIndex(k)] }

	for idx := uint64(0); idx < bound; idx++ {
		s, ok := t.resolveIdx(idx)
		if !ok {
			if r.holes == nil {
				r.holes = make(map[uint64]struct{})
			}

			r.holes[idx] = struct{}{}

			continue
		}

		r.strings[idx] = s

		k, _ := TryFromIndex[K](idx)
		r.index.reserve(func(k K) uint64 { return r.hasher.Sum64String(resolve(k)) })
		r.index.insert(r.hasher.Sum64String(s), k)
	}

	return r
}

// resolveKey is the hash-by-key comparator over the frozen vector.
func (r *Reader[K]) resolveKey(k K) string {
	return r.strings[IntoIndex(k)]
}

// Get returns the key of an interned string.
func (r *Reader[K]) Get(s string) (K, bool) {
	return r.index.lookup(r.hasher.Sum64String(s), s, r.resolveKey)
}

// Resolve returns the string behind a key, panicking when the key was
// never issued by the parent interner.
func (r *Reader[K]) Resolve(k K) string {
	s, ok := r.TryResolve(k)
	if !ok {
		panic(fmt.Sprintf("intern: resolve of absent key %d", k))
	}

	return s
}

// TryResolve returns the string behind a key, reporting false for the
// sentinel, out-of-range keys, and discarded tentative keys.
func (r *Reader[K]) TryResolve(k K) (string, bool) {
	if IsNil(k) {
		return "", false
	}

	idx := IntoIndex(k)
	if idx >= uint64(len(r.strings)) {
		return "", false
	}

	if _, hole := r.holes[idx]; hole {
		return "", false
	}

	return r.strings[idx], true
}

// Contains reports whether s was interned by the parent.
func (r *Reader[K]) Contains(s string) bool {
	_, ok := r.Get(s)

	return ok
}

// ContainsKey reports whether k resolves.
func (r *Reader[K]) ContainsKey(k K) bool {
	_, ok := r.TryResolve(k)

	return ok
}

// Len returns the number of resolvable (key, string) pairs.
func (r *Reader[K]) Len() int {
	return len(r.strings) - len(r.holes)
}

// IsEmpty reports whether the Reader holds no strings.
func (r *Reader[K]) IsEmpty() bool {
	return r.Len() == 0
}

// Capacity returns the size of the frozen key→string vector.
func (r *Reader[K]) Capacity() int {
	return cap(r.strings)
}

// All iterates pairs in ascending key order.
func (r *Reader[K]) All() iter.Seq2[K, string] {
	return func(yield func(K, string) bool) {
		for idx, s := range r.strings {
			if _, hole := r.holes[uint64(idx)]; hole {
				continue
			}

			k, _ := TryFromIndex[K](uint64(idx))
			if !yield(k, s) {
				return
			}
		}
	}
}

// MemoryUsage returns the frozen arena's byte footprint.
func (r *Reader[K]) MemoryUsage() int64 {
	return r.mem.MemoryUsage()
}

// MaxMemoryUsage returns the frozen arena's configured cap.
func (r *Reader[K]) MaxMemoryUsage() int64 {
	return r.mem.MaxMemoryUsage()
}

// IntoResolver strips the string→key index, leaving the minimum
// footprint needed for resolution. The Reader must not be used after the
// call.
func (r *Reader[K]) IntoResolver() *Resolver[K] {
	return &Resolver[K]{
		strings: r.strings,
		holes:   r.holes,
	}
}
