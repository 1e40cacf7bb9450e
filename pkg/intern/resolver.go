package intern

import (
	"fmt"
	"iter"
)

// Resolver is the smallest immutable projection: key→string only. The
// string→key index is gone, so Get and Contains(string) do not exist on
// it. Safe to share by reference across goroutines.
type Resolver[K Key] struct {
	strings []string
	holes   map[uint64]struct{}
}

// IntoResolver freezes the interner directly into a Resolver, skipping
// the Reader stage. The interner must not be used afterwards.
func (i *Interner[K]) IntoResolver() *Resolver[K] {
	return &Resolver[K]{strings: i.strings}
}

// IntoResolver freezes the concurrent interner directly into a Resolver.
// The caller must guarantee that no goroutine mutates the interner
// during or after the call.
func (t *ThreadedInterner[K]) IntoResolver() *Resolver[K] {
	bound := t.next.Load()

	r := &Resolver[K]{strings: make([]string, bound)}

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
	}

	return r
}

// Resolve returns the string behind a key, panicking when the key was
// never issued by the parent interner.
func (r *Resolver[K]) Resolve(k K) string {
	s, ok := r.TryResolve(k)
	if !ok {
		panic(fmt.Sprintf("intern: resolve of absent key %d", k))
	}

	return s
}

// TryResolve returns the string behind a key, reporting false for the
// sentinel, out-of-range keys, and discarded tentative keys.
func (r *Resolver[K]) TryResolve(k K) (string, bool) {
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

// ContainsKey reports whether k resolves.
func (r *Resolver[K]) ContainsKey(k K) bool {
	_, ok := r.TryResolve(k)

	return ok
}

// Len returns the number of resolvable (key, string) pairs.
func (r *Resolver[K]) Len() int {
	return len(r.strings) - len(r.holes)
}

// IsEmpty reports whether the Resolver holds no strings.
func (r *Resolver[K]) IsEmpty() bool {
	return r.Len() == 0
}

// All iterates pairs in ascending key order.
func (r *Resolver[K]) All() iter.Seq2[K, string] {
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
