package intern_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/stringpool/pkg/intern"
)

func TestReader_FromInterner(t *testing.T) {
	t.Parallel()

	in := intern.New[intern.DefaultKey]()

	keys := map[string]intern.DefaultKey{}
	for _, s := range []string{"a", "b", "c"} {
		k, err := in.GetOrIntern(s)
		require.NoError(t, err)

		keys[s] = k
	}

	reader := in.IntoReader()

	// Both directions survive the freeze.
	got, ok := reader.Get("b")
	require.True(t, ok)
	assert.Equal(t, keys["b"], got)

	for s, k := range keys {
		assert.Equal(t, s, reader.Resolve(k))
		assert.True(t, reader.ContainsKey(k))
	}

	assert.True(t, reader.Contains("a"))
	assert.False(t, reader.Contains("absent"))
	assert.Equal(t, 3, reader.Len())
	assert.False(t, reader.IsEmpty())
}

func TestReader_FromThreaded(t *testing.T) {
	t.Parallel()

	in := intern.NewThreaded[intern.DefaultKey]()

	keys := map[string]intern.DefaultKey{}
	for i := range 100 {
		s := fmt.Sprintf("v%d", i)

		k, err := in.GetOrIntern(s)
		require.NoError(t, err)

		keys[s] = k
	}

	reader := in.IntoReader()

	require.Equal(t, 100, reader.Len())

	// The reader reproduces the parent's resolutions exactly.
	for s, k := range keys {
		assert.Equal(t, s, reader.Resolve(k))

		got, ok := reader.Get(s)
		require.True(t, ok)
		assert.Equal(t, k, got)
	}
}

func TestReader_SharedAcrossGoroutines(t *testing.T) {
	t.Parallel()

	in := intern.New[intern.DefaultKey]()

	for i := range 1000 {
		_, err := in.GetOrIntern(fmt.Sprintf("v%d", i))
		require.NoError(t, err)
	}

	reader := in.IntoReader()

	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range 1000 {
				s := fmt.Sprintf("v%d", i)

				k, ok := reader.Get(s)
				if !ok {
					t.Errorf("reader.Get(%q) missed", s)

					return
				}

				if got := reader.Resolve(k); got != s {
					t.Errorf("resolve mismatch: %q != %q", got, s)

					return
				}
			}
		}()
	}

	wg.Wait()
}

func TestReader_Iteration(t *testing.T) {
	t.Parallel()

	in := intern.New[intern.DefaultKey]()

	inputs := []string{"x", "y", "z"}
	for _, s := range inputs {
		_, err := in.GetOrIntern(s)
		require.NoError(t, err)
	}

	reader := in.IntoReader()

	var seen []string
	for _, s := range reader.All() {
		seen = append(seen, s)
	}

	assert.Equal(t, inputs, seen)
}

func TestReader_MemoryIntrospection(t *testing.T) {
	t.Parallel()

	in := intern.New[intern.DefaultKey]()

	_, err := in.GetOrIntern("something")
	require.NoError(t, err)

	usage := in.MemoryUsage()
	reader := in.IntoReader()

	assert.Equal(t, usage, reader.MemoryUsage())
	assert.LessOrEqual(t, reader.MemoryUsage(), reader.MaxMemoryUsage())
}

func TestReader_TryResolveRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	in := intern.New[intern.DefaultKey]()

	_, err := in.GetOrIntern("only")
	require.NoError(t, err)

	reader := in.IntoReader()

	_, ok := reader.TryResolve(intern.DefaultKey(0))
	assert.False(t, ok)

	_, ok = reader.TryResolve(intern.DefaultKey(99))
	assert.False(t, ok)

	assert.Panics(t, func() { reader.Resolve(intern.DefaultKey(99)) })
}
