package intern_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/stringpool/pkg/intern"
)

const (
	// testBulkCount forces several index growths and arena slabs.
	testBulkCount = 10_000

	// testTinyMemoryLimit fits one seven-byte string with one byte to
	// spare, so a two-byte string after it does not fit.
	testTinyMemoryLimit = int64(8)
)

// fixedHasher is a deterministic test hasher: a constant seed makes key
// placement reproducible across interner instances.
type fixedHasher struct{}

// Sum64String implements intern.Hasher with FNV-1a.
func (fixedHasher) Sum64String(s string) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)

	h := uint64(offset64)
	for i := range len(s) {
		h ^= uint64(s[i])
		h *= prime64
	}

	return h
}

func TestInterner_EmptyState(t *testing.T) {
	t.Parallel()

	in := intern.New[intern.DefaultKey]()

	_, ok := in.Get("hello")
	assert.False(t, ok)
	assert.False(t, in.Contains("hello"))
	assert.True(t, in.IsEmpty())
	assert.Zero(t, in.Len())

	for range in.All() {
		t.Fatal("iteration over an empty interner must yield nothing")
	}
}

func TestInterner_SingleInsert(t *testing.T) {
	t.Parallel()

	in := intern.New[intern.DefaultKey]()

	k1, err := in.GetOrIntern("hello")
	require.NoError(t, err)

	assert.Equal(t, "hello", in.Resolve(k1))

	got, ok := in.Get("hello")
	require.True(t, ok)
	assert.Equal(t, k1, got)

	assert.Equal(t, 1, in.Len())
	assert.False(t, in.IsEmpty())
}

func TestInterner_Deduplication(t *testing.T) {
	t.Parallel()

	in := intern.New[intern.DefaultKey]()

	k1, err := in.GetOrIntern("x")
	require.NoError(t, err)

	k2, err := in.GetOrIntern("x")
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.Equal(t, 1, in.Len())
}

func TestInterner_DistinctStringsGetAscendingIndices(t *testing.T) {
	t.Parallel()

	in := intern.New[intern.DefaultKey]()

	k1, err := in.GetOrIntern("a")
	require.NoError(t, err)

	k2, err := in.GetOrIntern("b")
	require.NoError(t, err)

	assert.NotEqual(t, k1, k2)
	assert.Equal(t, uint64(0), intern.IntoIndex(k1))
	assert.Equal(t, uint64(1), intern.IntoIndex(k2))
}

func TestInterner_ResolveIsInverse(t *testing.T) {
	t.Parallel()

	in := intern.New[intern.DefaultKey]()

	for i := range testBulkCount {
		s := fmt.Sprintf("value-%d", i)

		k, err := in.GetOrIntern(s)
		require.NoError(t, err)
		require.Equal(t, s, in.Resolve(k))
	}

	// Round-trip closure: every issued key maps back through Get.
	for k, s := range in.All() {
		got, ok := in.Get(s)
		require.True(t, ok)
		require.Equal(t, k, got)
	}
}

func TestInterner_EmptyStringInterns(t *testing.T) {
	t.Parallel()

	in := intern.New[intern.DefaultKey]()

	before := in.MemoryUsage()

	k, err := in.GetOrIntern("")
	require.NoError(t, err)

	assert.Empty(t, in.Resolve(k))
	assert.Equal(t, before, in.MemoryUsage(), "empty string must not consume arena bytes")
	assert.True(t, in.Contains(""))
}

func TestInterner_TryResolve(t *testing.T) {
	t.Parallel()

	in := intern.New[intern.DefaultKey]()

	k, err := in.GetOrIntern("present")
	require.NoError(t, err)

	s, ok := in.TryResolve(k)
	require.True(t, ok)
	assert.Equal(t, "present", s)

	_, ok = in.TryResolve(intern.DefaultKey(0))
	assert.False(t, ok, "sentinel never resolves")

	_, ok = in.TryResolve(intern.DefaultKey(42))
	assert.False(t, ok, "unissued keys never resolve")

	assert.Panics(t, func() { in.Resolve(intern.DefaultKey(42)) })
}

func TestInterner_IterationOrder(t *testing.T) {
	t.Parallel()

	in := intern.New[intern.DefaultKey]()

	inputs := []string{"c", "a", "b", "d"}
	for _, s := range inputs {
		_, err := in.GetOrIntern(s)
		require.NoError(t, err)
	}

	var (
		keys    []intern.DefaultKey
		strings []string
	)

	for k, s := range in.All() {
		keys = append(keys, k)
		strings = append(strings, s)
	}

	assert.Equal(t, inputs, strings, "iteration follows insertion order")
	assert.IsIncreasing(t, keys)
}

func TestInterner_MemoryLimit(t *testing.T) {
	t.Parallel()

	in := intern.New[intern.DefaultKey](
		intern.WithMemoryLimits(intern.MemoryLimits{MaxBytes: testTinyMemoryLimit}))

	k1, err := in.GetOrIntern("1234567")
	require.NoError(t, err)

	_, err = in.GetOrIntern("XY")
	require.ErrorIs(t, err, intern.ErrMemoryLimitReached)

	// The failed insert left no partial state behind.
	assert.Equal(t, 1, in.Len())
	assert.False(t, in.Contains("XY"))

	// The original entry still interns to its original key.
	again, err := in.GetOrIntern("1234567")
	require.NoError(t, err)
	assert.Equal(t, k1, again)

	assert.LessOrEqual(t, in.MemoryUsage(), in.MaxMemoryUsage())
}

func TestInterner_KeySpaceExhaustion(t *testing.T) {
	t.Parallel()

	in := intern.New[intern.MicroKey]()

	keys := make([]intern.MicroKey, 0, 255)

	for i := range 255 {
		k, err := in.GetOrIntern(fmt.Sprintf("s%d", i))
		require.NoError(t, err)

		keys = append(keys, k)
	}

	_, err := in.GetOrIntern("s255")
	require.ErrorIs(t, err, intern.ErrKeySpaceExhausted)

	// Existing keys still resolve after the failure.
	assert.Equal(t, 255, in.Len())

	for i, k := range keys {
		assert.Equal(t, fmt.Sprintf("s%d", i), in.Resolve(k))
	}
}

func TestInterner_GetOrInternStatic(t *testing.T) {
	t.Parallel()

	in := intern.New[intern.DefaultKey]()

	before := in.MemoryUsage()

	k, err := in.GetOrInternStatic("static-value")
	require.NoError(t, err)

	assert.Equal(t, before, in.MemoryUsage(), "static interning bypasses the arena")
	assert.Equal(t, "static-value", in.Resolve(k))

	// The key is indistinguishable from a normal one.
	again, err := in.GetOrIntern("static-value")
	require.NoError(t, err)
	assert.Equal(t, k, again)
}

func TestInterner_MustInternPanicsOnExhaustion(t *testing.T) {
	t.Parallel()

	in := intern.New[intern.MicroKey]()

	for i := range 255 {
		in.MustIntern(fmt.Sprintf("s%d", i))
	}

	assert.Panics(t, func() { in.MustIntern("s255") })
}

func TestInterner_Clone(t *testing.T) {
	t.Parallel()

	in := intern.New[intern.DefaultKey]()

	keys := map[string]intern.DefaultKey{}
	for _, s := range []string{"a", "b", "c"} {
		k, err := in.GetOrIntern(s)
		require.NoError(t, err)

		keys[s] = k
	}

	clone, err := in.TryClone()
	require.NoError(t, err)
	require.True(t, in.Equal(clone))

	// Keys carry over unchanged.
	for s, k := range keys {
		assert.Equal(t, s, clone.Resolve(k))

		got, ok := clone.Get(s)
		require.True(t, ok)
		assert.Equal(t, k, got)
	}

	// The clone is independent: new inserts do not leak across.
	_, err = clone.GetOrIntern("clone-only")
	require.NoError(t, err)
	assert.False(t, in.Contains("clone-only"))
}

func TestInterner_CustomHasher(t *testing.T) {
	t.Parallel()

	first := intern.New[intern.DefaultKey](intern.WithHasher(fixedHasher{}))
	second := intern.New[intern.DefaultKey](intern.WithHasher(fixedHasher{}))

	for i := range 100 {
		s := fmt.Sprintf("det-%d", i)

		k1, err := first.GetOrIntern(s)
		require.NoError(t, err)

		k2, err := second.GetOrIntern(s)
		require.NoError(t, err)

		assert.Equal(t, k1, k2, "deterministic hasher and order give identical keys")
	}
}

func TestInterner_WithCapacityPreallocates(t *testing.T) {
	t.Parallel()

	in := intern.New[intern.DefaultKey](
		intern.WithCapacity(intern.Capacity{Strings: 1000, Bytes: 1 << 16}))

	assert.GreaterOrEqual(t, in.Capacity(), 1000)
}
