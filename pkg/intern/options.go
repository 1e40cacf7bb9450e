package intern

import (
	"sync/atomic"

	"github.com/Sumatoshi-tech/stringpool/pkg/intern/arena"
	"github.com/Sumatoshi-tech/stringpool/pkg/intern/internal/hashutil"
)

// Default capacity, matching the cost of a small interner that has never
// been tuned.
const (
	// DefaultCapacityStrings is the default expected distinct-string count.
	DefaultCapacityStrings = 50

	// DefaultCapacityBytes is the default expected total byte volume.
	DefaultCapacityBytes = 4096
)

// Capacity describes the expected final size of an interner so that the
// index and the arena can be provisioned up front.
type Capacity struct {
	// Strings is the expected number of distinct strings.
	Strings int

	// Bytes is the expected total volume of interned bytes.
	Bytes int
}

// DefaultCapacity returns the capacity used when none is configured.
func DefaultCapacity() Capacity {
	return Capacity{Strings: DefaultCapacityStrings, Bytes: DefaultCapacityBytes}
}

// MemoryLimits caps the bytes the arena may allocate. Overhead of the
// index structures is not counted.
type MemoryLimits struct {
	// MaxBytes is the arena byte cap. Zero or negative means unlimited.
	MaxBytes int64
}

// Hasher computes a 64-bit hash of a string. Implementations must be
// pure: equal inputs yield equal outputs for the lifetime of the
// interner using them.
type Hasher interface {
	Sum64String(s string) uint64
}

// seededHasher is the default Hasher: xxHash64 perturbed by a
// per-interner seed.
type seededHasher struct {
	seed uint64
}

// Sum64String implements Hasher.
func (h seededHasher) Sum64String(s string) uint64 {
	return hashutil.SumString(h.seed, s)
}

// seedState drives per-instance default hash seeds. Each constructed
// interner advances the chain, so two interners in the same process
// disagree on slot placement.
var seedState atomic.Uint64

// defaultHasher returns a fresh seeded hasher.
func defaultHasher() Hasher {
	return seededHasher{seed: hashutil.NextSeed(seedState.Add(1))}
}

// options collects construction parameters common to both interner
// flavors.
type options struct {
	capacity Capacity
	limits   MemoryLimits
	hasher   Hasher
	shards   int
}

// Option configures an interner at construction time.
type Option func(*options)

// WithCapacity provisions the index and arena for the expected size.
func WithCapacity(c Capacity) Option {
	return func(o *options) {
		o.capacity = c
	}
}

// WithMemoryLimits caps the arena byte footprint.
func WithMemoryLimits(l MemoryLimits) Option {
	return func(o *options) {
		o.limits = l
	}
}

// WithHasher replaces the default seeded xxHash64 hasher. Supplying a
// deterministically seeded hasher makes key assignment reproducible
// across runs for a fixed insertion order.
func WithHasher(h Hasher) Option {
	return func(o *options) {
		if h != nil {
			o.hasher = h
		}
	}
}

// WithShards sets the shard count of a ThreadedInterner. The value is
// rounded up to a power of two. Single-owner interners ignore it.
func WithShards(n int) Option {
	return func(o *options) {
		o.shards = n
	}
}

// newOptions applies opts over the defaults.
func newOptions(opts []Option) options {
	o := options{
		capacity: DefaultCapacity(),
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.hasher == nil {
		o.hasher = defaultHasher()
	}

	return o
}

// arenaOptions translates interner options to arena options.
func (o options) arenaOptions() []arena.Option {
	aopts := []arena.Option{arena.WithInitialSlabSize(o.capacity.Bytes)}

	if o.limits.MaxBytes > 0 {
		aopts = append(aopts, arena.WithMemoryLimit(o.limits.MaxBytes))
	}

	return aopts
}
