package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// performance benchmark
func BenchmarkHash(b *testing.B) {
	n := uint32(0)
	s := uint32(0)
	for i := 0; i < b.N; i++ {
		n = Hash(n, s, uint32(i)|1)
		s++
	}
}

func TestHashBounds(t *testing.T) {
	for _, max := range []uint32{1, 2, 3, 7, 1 << 16, 1<<31 + 11} {
		for n := uint32(0); n < 2000; n++ {
			out := Hash(n*2654435761, n, max)
			require.Less(t, out, max, "Hash(%d, %d, %d)", n*2654435761, n, max)
		}
	}
	assert.Equal(t, uint32(0), Hash(12345, 678, 0))
}

func TestHashSaltChangesOutput(t *testing.T) {
	var differ int
	for n := uint32(0); n < 256; n++ {
		if Hash(n, 1, 1<<20) != Hash(n, 2, 1<<20) {
			differ++
		}
	}
	assert.Greater(t, differ, 250)
}

// sanity check fuzz
func FuzzHash(f *testing.F) {
	f.Add(uint32(0), uint32(0), uint32(0))
	f.Fuzz(func(t *testing.T, n, s, max uint32) {
		out := Hash(n, s, max)
		if max == 0 && out != 0 {
			t.Errorf("Hash(%d, %d, 0) == %d (max=0 should be 0)", n, s, out)
		}
		if max > 0 && out >= max {
			t.Errorf("Hash(%d, %d, %d) == %d (output bigger or equal than max)", n, s, max, out)
		}
	})
}

func TestHashVectorized(t *testing.T) {
	testCases := []struct {
		name string
		size int
	}{
		{"single", 1},
		{"small", 8},
		{"medium", 16},
		{"large", 64},
		{"odd", 17},
		{"prime", 31},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			n := make([]uint32, tc.size)
			s := make([]uint32, tc.size)
			out := make([]uint32, tc.size)
			outSalt := make([]uint32, tc.size)
			for i := 0; i < tc.size; i++ {
				n[i] = uint32(i*123 + 456)
				s[i] = uint32(i*789 + 101112)
			}
			const max = uint32(1000000)

			HashVectorized(out, n, s, max)
			HashVectorizedSalt(outSalt, n, 77, max)

			for i := 0; i < tc.size; i++ {
				assert.Equal(t, Hash(n[i], s[i], max), out[i], "index %d", i)
				assert.Equal(t, Hash(n[i], 77, max), outSalt[i], "index %d", i)
			}
		})
	}
}

func TestHashVectorizedParallelism(t *testing.T) {
	assert.GreaterOrEqual(t, HashVectorizedParallelism(), 1)
}
