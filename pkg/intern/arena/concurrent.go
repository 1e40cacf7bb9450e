package arena

import (
	"sync"
	"sync/atomic"
)

// slab is a fixed-capacity buffer with an atomic fill cursor. Writers
// reserve disjoint ranges via fetch-and-add, so copies into a slab never
// overlap. A cursor past len(buf) means the slab is exhausted; the
// overshoot is never rolled back.
type slab struct {
	buf  []byte
	used atomic.Int64
}

// Concurrent is the lock-free arena flavor. Store may be called from any
// number of goroutines; slab growth takes a short mutex, stores into an
// existing slab are a single fetch-and-add plus a copy.
type Concurrent struct {
	mu      sync.Mutex // guards growth and the retired list.
	current atomic.Pointer[slab]
	retired [][]byte
	total   atomic.Int64
	limit   atomic.Int64
	minSlab int
	maxSlab int
}

// NewConcurrent creates a concurrent arena.
func NewConcurrent(opts ...Option) *Concurrent {
	c := newConfig(opts)

	a := &Concurrent{
		minSlab: c.minSlab,
		maxSlab: c.maxSlab,
	}
	a.limit.Store(c.limit)

	return a
}

// Store copies s into the arena and returns a stable view of the copy.
// Safe for concurrent use.
func (a *Concurrent) Store(s string) (string, error) {
	if len(s) == 0 {
		return "", nil
	}

	n := int64(len(s))

	for {
		cur := a.current.Load()
		if cur != nil {
			end := cur.used.Add(n)
			if end <= int64(len(cur.buf)) {
				dst := cur.buf[end-n : end]
				copy(dst, s)

				return view(dst), nil
			}
		}

		err := a.grow(len(s))
		if err != nil {
			return "", err
		}
	}
}

// grow installs a slab with room for at least need bytes. Concurrent
// growers serialize on the mutex; whichever one installed a usable slab
// first wins and the rest retry their reservation.
func (a *Concurrent) grow(need int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	cur := a.current.Load()
	if cur != nil && cur.used.Load()+int64(need) <= int64(len(cur.buf)) {
		// Another goroutine grew the arena while we waited on the lock.
		return nil
	}

	curCap := 0
	if cur != nil {
		curCap = len(cur.buf)
	}

	size, err := nextSlabSize(curCap, need, a.minSlab, a.maxSlab, a.total.Load(), a.limit.Load())
	if err != nil {
		return err
	}

	if cur != nil {
		a.retired = append(a.retired, cur.buf)
	}

	a.current.Store(&slab{buf: make([]byte, size)})
	a.total.Add(int64(size))

	return nil
}

// MemoryUsage returns the sum of all slab capacities.
func (a *Concurrent) MemoryUsage() int64 {
	return a.total.Load()
}

// MaxMemoryUsage returns the configured memory limit.
func (a *Concurrent) MaxMemoryUsage() int64 {
	return a.limit.Load()
}

// SetMemoryLimit changes the memory limit. Stored data is never
// invalidated; only future slab allocations observe the new limit.
func (a *Concurrent) SetMemoryLimit(maxBytes int64) {
	a.limit.Store(maxBytes)
}
