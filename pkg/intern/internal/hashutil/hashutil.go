// Package hashutil provides seeded string hashing for the interning
// data structures.
//
// The base hash is xxHash64; per-instance seeds are folded in with the
// splitmix64 finalizer by Vigna (2014), which provides full-avalanche
// mixing across all 64 bits. Two interners with different seeds therefore
// disagree on slot placement even for identical inputs.
package hashutil

import "github.com/cespare/xxhash/v2"

// Splitmix64 finalizer constants.
const (
	// mixShift1 is the first right-shift in the splitmix64 finalizer.
	mixShift1 = 30

	// mixMul1 is the first multiplier in the splitmix64 finalizer.
	mixMul1 = 0xbf58476d1ce4e5b9

	// mixShift2 is the second right-shift in the splitmix64 finalizer.
	mixShift2 = 27

	// mixMul2 is the second multiplier in the splitmix64 finalizer.
	mixMul2 = 0x94d049bb133111eb

	// mixShift3 is the third right-shift in the splitmix64 finalizer.
	mixShift3 = 31

	// seedIncrement is the golden-ratio-derived increment used to derive
	// successive instance seeds.
	seedIncrement = 0x9e3779b97f4a7c15
)

// Mix64 applies the splitmix64 finalizer for full-avalanche mixing.
// This is a pure output function; it does not advance any state.
func Mix64(v uint64) uint64 {
	v ^= v >> mixShift1
	v *= mixMul1
	v ^= v >> mixShift2
	v *= mixMul2
	v ^= v >> mixShift3

	return v
}

// NextSeed derives the seed following state: a full splitmix64 step.
// Used to give each interner instance its own hash seed.
func NextSeed(state uint64) uint64 {
	return Mix64(state + seedIncrement)
}

// SumString hashes s under the given seed. The base xxHash64 value is
// combined with the seed through the splitmix64 finalizer so that the
// seed perturbs every output bit.
func SumString(seed uint64, s string) uint64 {
	return Mix64(xxhash.Sum64String(s) ^ seed)
}

// SumBytes hashes b under the given seed without converting to a string.
func SumBytes(seed uint64, b []byte) uint64 {
	return Mix64(xxhash.Sum64(b) ^ seed)
}
