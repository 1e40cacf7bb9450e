// Package pool builds and serves named interner pools from
// configuration. It is the embedding layer: applications declare pools
// in a config file and look them up here by name, without caring which
// key width backs each one.
package pool

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Sumatoshi-tech/stringpool/pkg/config"
	"github.com/Sumatoshi-tech/stringpool/pkg/intern"
	"github.com/Sumatoshi-tech/stringpool/pkg/safeconv"
)

// Pool is the width-erased surface of one named interner. Keys travel as
// their stored uint64 form; zero is "no key".
type Pool interface {
	// Intern returns the key for s, interning it if absent.
	Intern(s string) (uint64, error)

	// Lookup returns the key of an already interned string.
	Lookup(s string) (uint64, bool)

	// Resolve returns the string behind a key.
	Resolve(key uint64) (string, bool)

	// Len returns the number of distinct interned strings.
	Len() int

	// MemoryUsage returns the arena byte footprint.
	MemoryUsage() int64

	// MaxMemoryUsage returns the configured arena cap.
	MaxMemoryUsage() int64

	// Stats returns interning activity counters.
	Stats() intern.Stats
}

// adapter erases the key type parameter of a ThreadedInterner.
type adapter[K intern.Key] struct {
	interner *intern.ThreadedInterner[K]
}

// Intern implements Pool.
func (a adapter[K]) Intern(s string) (uint64, error) {
	k, err := a.interner.GetOrIntern(s)
	if err != nil {
		return 0, err
	}

	return uint64(k), nil
}

// Lookup implements Pool.
func (a adapter[K]) Lookup(s string) (uint64, bool) {
	k, ok := a.interner.Get(s)

	return uint64(k), ok
}

// Resolve implements Pool.
func (a adapter[K]) Resolve(key uint64) (string, bool) {
	if key > intern.KeySpace[K]() {
		return "", false
	}

	return a.interner.TryResolve(K(key))
}

// Len implements Pool.
func (a adapter[K]) Len() int { return a.interner.Len() }

// MemoryUsage implements Pool.
func (a adapter[K]) MemoryUsage() int64 { return a.interner.MemoryUsage() }

// MaxMemoryUsage implements Pool.
func (a adapter[K]) MaxMemoryUsage() int64 { return a.interner.MaxMemoryUsage() }

// Stats implements Pool.
func (a adapter[K]) Stats() intern.Stats { return a.interner.Stats() }

// Registry holds the pools of a process, keyed by name. Lookups are
// concurrent-safe; the pool set is fixed at construction.
type Registry struct {
	mu     sync.RWMutex
	pools  map[string]Pool
	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger attaches a logger; pool construction is reported at Info.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New builds one interner pool per configured definition.
func New(cfg *config.Config, opts ...Option) (*Registry, error) {
	r := &Registry{
		pools:  make(map[string]Pool, len(cfg.Pools)),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	for name := range cfg.Pools {
		settings, err := cfg.PoolSettings(name)
		if err != nil {
			return nil, fmt.Errorf("pool %q: %w", name, err)
		}

		built, err := build(settings)
		if err != nil {
			return nil, fmt.Errorf("pool %q: %w", name, err)
		}

		r.pools[name] = built

		limit := "unlimited"
		if settings.MaxMemory > 0 {
			limit = humanize.IBytes(uint64(settings.MaxMemory))
		}

		r.logger.Info("interner pool ready",
			slog.String("pool", name),
			slog.String("key_width", settings.KeyWidth),
			slog.Int("expected_strings", settings.ExpectedStrings),
			slog.String("memory_limit", limit))
	}

	return r, nil
}

// build constructs the interner behind one pool definition.
func build(settings config.Settings) (Pool, error) {
	opts := []intern.Option{
		intern.WithCapacity(intern.Capacity{
			Strings: settings.ExpectedStrings,
			Bytes:   safeconv.MustInt64ToInt(settings.ExpectedBytes),
		}),
		intern.WithShards(settings.Shards),
	}

	if settings.MaxMemory > 0 {
		opts = append(opts, intern.WithMemoryLimits(intern.MemoryLimits{MaxBytes: settings.MaxMemory}))
	}

	switch settings.KeyWidth {
	case config.KeyWidthMicro:
		return adapter[intern.MicroKey]{interner: intern.NewThreaded[intern.MicroKey](opts...)}, nil
	case config.KeyWidthMini:
		return adapter[intern.MiniKey]{interner: intern.NewThreaded[intern.MiniKey](opts...)}, nil
	case config.KeyWidthDefault:
		return adapter[intern.DefaultKey]{interner: intern.NewThreaded[intern.DefaultKey](opts...)}, nil
	case config.KeyWidthLarge:
		return adapter[intern.LargeKey]{interner: intern.NewThreaded[intern.LargeKey](opts...)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidKeyWidth, settings.KeyWidth)
	}
}

// Get returns a pool by name.
func (r *Registry) Get(name string) (Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pools[name]

	return p, ok
}

// Names returns the configured pool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.pools))
	for name := range r.pools {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Stats returns activity counters for every pool.
func (r *Registry) Stats() map[string]intern.Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]intern.Stats, len(r.pools))
	for name, p := range r.pools {
		stats[name] = p.Stats()
	}

	return stats
}

// RegisterMetrics registers one Prometheus collector per pool.
func (r *Registry) RegisterMetrics(reg prometheus.Registerer) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, p := range r.pools {
		err := reg.Register(intern.NewCollector(p, name))
		if err != nil {
			return fmt.Errorf("register collector for pool %q: %w", name, err)
		}
	}

	return nil
}
