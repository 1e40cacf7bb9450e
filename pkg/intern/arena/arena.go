// Package arena provides bump-style slab storage for interned strings.
//
// An arena owns a sequence of byte slabs. Stored bytes are copied into the
// current slab and exposed as string views that remain valid for the whole
// arena lifetime: slabs are never compacted, freed, or reallocated, only new
// slabs are appended. Slab sizes follow a doubling strategy to amortize
// allocation cost.
package arena

import (
	"errors"
	"math"
	"sync/atomic"
	"unsafe"
)

// Slab sizing defaults.
const (
	// DefaultMinSlabSize is the capacity of the first slab, allocated
	// lazily on the first non-empty store.
	DefaultMinSlabSize = 4 << 10

	// DefaultMaxSlabSize caps the slab doubling strategy. A single store
	// larger than the cap still gets a slab of exactly its own size.
	DefaultMaxSlabSize = 4 << 20

	// growthFactor is the slab capacity multiplier.
	growthFactor = 2

	// NoLimit disables memory accounting checks.
	NoLimit = int64(math.MaxInt64)
)

// Sentinel errors shared by both arena flavors.
var (
	// ErrMemoryLimitReached is returned when a store would push the total
	// slab footprint past the configured limit.
	ErrMemoryLimitReached = errors.New("arena: memory limit reached")

	// ErrFailedAllocation is returned when a slab size cannot be
	// represented by the host allocator.
	ErrFailedAllocation = errors.New("arena: allocation failed")
)

// config holds construction parameters shared by both arena flavors.
type config struct {
	minSlab int
	maxSlab int
	limit   int64
}

// Option configures an arena at construction time.
type Option func(*config)

// WithMemoryLimit caps the total slab footprint at maxBytes.
func WithMemoryLimit(maxBytes int64) Option {
	return func(c *config) {
		c.limit = maxBytes
	}
}

// WithInitialSlabSize sets the capacity of the first slab. Useful when the
// caller knows the expected total byte volume up front.
func WithInitialSlabSize(bytes int) Option {
	return func(c *config) {
		if bytes > 0 {
			c.minSlab = bytes
		}
	}
}

// newConfig applies opts over the defaults.
func newConfig(opts []Option) config {
	c := config{
		minSlab: DefaultMinSlabSize,
		maxSlab: DefaultMaxSlabSize,
		limit:   NoLimit,
	}

	for _, opt := range opts {
		opt(&c)
	}

	c.maxSlab = max(c.maxSlab, c.minSlab)

	return c
}

// Arena is the single-owner flavor. Callers must not invoke Store
// concurrently; SetMemoryLimit and MaxMemoryUsage are safe at any time.
// MemoryUsage reads an unsynchronized counter and must not run
// concurrently with Store.
type Arena struct {
	retired [][]byte
	current []byte // len is the fill cursor, cap the slab size.
	total   int64
	limit   atomic.Int64
	minSlab int
	maxSlab int
}

// New creates a single-owner arena.
func New(opts ...Option) *Arena {
	c := newConfig(opts)

	a := &Arena{
		minSlab: c.minSlab,
		maxSlab: c.maxSlab,
	}
	a.limit.Store(c.limit)

	return a
}

// Store copies s into the arena and returns a stable view of the copy.
// The empty string is returned as-is without allocating or accounting.
func (a *Arena) Store(s string) (string, error) {
	if len(s) == 0 {
		return "", nil
	}

	if len(s) > cap(a.current)-len(a.current) {
		err := a.grow(len(s))
		if err != nil {
			return "", err
		}
	}

	off := len(a.current)
	a.current = a.current[:off+len(s)]
	copy(a.current[off:], s)

	return view(a.current[off : off+len(s)]), nil
}

// grow retires the current slab and allocates the next one, sized to hold
// at least need bytes.
func (a *Arena) grow(need int) error {
	size, err := nextSlabSize(cap(a.current), need, a.minSlab, a.maxSlab, a.total, a.limit.Load())
	if err != nil {
		return err
	}

	if a.current != nil {
		a.retired = append(a.retired, a.current)
	}

	a.current = make([]byte, 0, size)
	a.total += int64(size)

	return nil
}

// MemoryUsage returns the sum of all slab capacities.
func (a *Arena) MemoryUsage() int64 {
	return a.total
}

// MaxMemoryUsage returns the configured memory limit.
func (a *Arena) MaxMemoryUsage() int64 {
	return a.limit.Load()
}

// SetMemoryLimit changes the memory limit. Lowering it below the current
// usage does not invalidate stored data; it only refuses future slab
// allocations.
func (a *Arena) SetMemoryLimit(maxBytes int64) {
	a.limit.Store(maxBytes)
}

// nextSlabSize computes the capacity of the slab following one of curCap
// bytes, large enough for need and within the remaining memory budget.
// Doubling is capped at maxSlab unless need itself is larger; when the
// budget cannot fit that size, the slab shrinks to the remaining budget,
// and the allocation is refused only when need itself exceeds it.
func nextSlabSize(curCap, need, minSlab, maxSlab int, total, limit int64) (int, error) {
	if need < 0 || need > math.MaxInt64/growthFactor {
		return 0, ErrFailedAllocation
	}

	size := max(curCap*growthFactor, minSlab)
	size = min(size, maxSlab)
	size = max(size, need)

	if remaining := limit - total; int64(size) > remaining {
		if int64(need) > remaining {
			return 0, ErrMemoryLimitReached
		}

		size = int(remaining)
	}

	return size, nil
}

// view reinterprets a slab sub-slice as a string without copying. The
// backing array is never reused or moved, which is what makes the view
// stable.
func view(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}
