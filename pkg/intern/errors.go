package intern

import (
	"errors"

	"github.com/Sumatoshi-tech/stringpool/pkg/intern/arena"
)

// Sentinel errors surfaced by all fallible interning operations. The two
// arena conditions are re-exported so callers can match them without
// importing the arena package.
var (
	// ErrMemoryLimitReached is returned when storing a string would push
	// the arena past its configured byte cap.
	ErrMemoryLimitReached = arena.ErrMemoryLimitReached

	// ErrFailedAllocation is returned when the host allocator cannot
	// satisfy a slab request.
	ErrFailedAllocation = arena.ErrFailedAllocation

	// ErrKeySpaceExhausted is returned when the key flavor cannot
	// represent the next index.
	ErrKeySpaceExhausted = errors.New("intern: key space exhausted")
)
