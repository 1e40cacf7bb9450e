// Package safeconv provides bounds-checked integer conversions that
// panic on overflow. Use only where a violation is logically impossible
// and indicates a bug, never for validating external input.
package safeconv

// MaxInt is the maximum value of int on the host platform.
const MaxInt = int(^uint(0) >> 1)

// MustUint64ToInt converts uint64 to int, panicking on overflow.
func MustUint64ToInt(v uint64) int {
	if v > uint64(MaxInt) {
		panic("safeconv: uint64 to int overflow")
	}

	return int(v)
}

// MustInt64ToInt converts int64 to int, panicking on overflow. Only
// relevant on 32-bit platforms, where int is narrower than int64.
func MustInt64ToInt(v int64) int {
	if v > int64(MaxInt) || v < -int64(MaxInt)-1 {
		panic("safeconv: int64 to int overflow")
	}

	return int(v)
}
