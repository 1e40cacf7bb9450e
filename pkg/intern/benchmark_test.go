package intern_test

import (
	"fmt"
	"testing"

	"github.com/Sumatoshi-tech/stringpool/pkg/intern"
)

const (
	// benchDistinct is the working-set size for lookup benchmarks.
	benchDistinct = 100_000
)

// benchStrings generates the benchmark working set once.
func benchStrings(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("bench-string-%d", i)
	}

	return out
}

// BenchmarkGetOrIntern_Miss measures cold insertion throughput.
func BenchmarkGetOrIntern_Miss(b *testing.B) {
	inputs := benchStrings(b.N)
	in := intern.New[intern.DefaultKey]()

	b.ResetTimer()

	for i := range b.N {
		_, _ = in.GetOrIntern(inputs[i])
	}
}

// BenchmarkGetOrIntern_Hit measures warm interning throughput.
func BenchmarkGetOrIntern_Hit(b *testing.B) {
	inputs := benchStrings(benchDistinct)
	in := intern.New[intern.DefaultKey]()

	for _, s := range inputs {
		_, _ = in.GetOrIntern(s)
	}

	b.ResetTimer()

	for i := range b.N {
		_, _ = in.GetOrIntern(inputs[i%benchDistinct])
	}
}

// BenchmarkResolve measures key-to-string throughput.
func BenchmarkResolve(b *testing.B) {
	inputs := benchStrings(benchDistinct)
	in := intern.New[intern.DefaultKey]()

	keys := make([]intern.DefaultKey, benchDistinct)
	for i, s := range inputs {
		keys[i], _ = in.GetOrIntern(s)
	}

	b.ResetTimer()

	for i := range b.N {
		_ = in.Resolve(keys[i%benchDistinct])
	}
}

// BenchmarkThreaded_GetOrIntern_Parallel measures contended interning.
func BenchmarkThreaded_GetOrIntern_Parallel(b *testing.B) {
	inputs := benchStrings(benchDistinct)
	in := intern.NewThreaded[intern.DefaultKey]()

	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = in.GetOrIntern(inputs[i%benchDistinct])
			i++
		}
	})
}

// BenchmarkThreaded_Resolve_Parallel measures lock-free resolution under
// concurrent readers.
func BenchmarkThreaded_Resolve_Parallel(b *testing.B) {
	inputs := benchStrings(benchDistinct)
	in := intern.NewThreaded[intern.DefaultKey]()

	keys := make([]intern.DefaultKey, benchDistinct)
	for i, s := range inputs {
		keys[i], _ = in.GetOrIntern(s)
	}

	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_ = in.Resolve(keys[i%benchDistinct])
			i++
		}
	})
}

// BenchmarkReader_Get measures frozen-view lookup throughput.
func BenchmarkReader_Get(b *testing.B) {
	inputs := benchStrings(benchDistinct)
	in := intern.New[intern.DefaultKey]()

	for _, s := range inputs {
		_, _ = in.GetOrIntern(s)
	}

	reader := in.IntoReader()

	b.ResetTimer()

	for i := range b.N {
		_, _ = reader.Get(inputs[i%benchDistinct])
	}
}
