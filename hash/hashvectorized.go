package hash

import "github.com/klauspost/cpuid/v2"

// HashVectorized computes out[i] = Hash(n[i], s[i], max) for every i.
var HashVectorized func(out []uint32, n []uint32, s []uint32, max uint32) = hashNotVectorized

// HashVectorizedSalt computes out[i] = Hash(n[i], s, max) for every i.
var HashVectorizedSalt func(out []uint32, n []uint32, s uint32, max uint32) = hashNotVectorizedSalt

var hashVectorizedParallelism int = 1

func init() {
	switch {
	case cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ):
		hashVectorizedParallelism = 16
	case cpuid.CPU.Supports(cpuid.AVX2):
		hashVectorizedParallelism = 8
	default:
		hashVectorizedParallelism = 1
	}
	if hashVectorizedParallelism > 1 {
		HashVectorized = hashUnrolled
		HashVectorizedSalt = hashUnrolledSalt
	}
}

// HashVectorizedParallelism reports the recommended number of hashes to compute
// in one batch on this platform. Can't return 0.
func HashVectorizedParallelism() int {
	return hashVectorizedParallelism
}

func hashNotVectorized(out []uint32, n []uint32, s []uint32, max uint32) {
	for i := range out {
		out[i] = Hash(n[i], s[i], max)
	}
}

func hashNotVectorizedSalt(out []uint32, n []uint32, s uint32, max uint32) {
	for i := range out {
		out[i] = Hash(n[i], s, max)
	}
}

// hashUnrolled works in lanes of four so the compiler can keep the
// independent xor shift chains in flight together.
func hashUnrolled(out []uint32, n []uint32, s []uint32, max uint32) {
	i := 0
	for ; i+4 <= len(out); i += 4 {
		out[i] = Hash(n[i], s[i], max)
		out[i+1] = Hash(n[i+1], s[i+1], max)
		out[i+2] = Hash(n[i+2], s[i+2], max)
		out[i+3] = Hash(n[i+3], s[i+3], max)
	}
	for ; i < len(out); i++ {
		out[i] = Hash(n[i], s[i], max)
	}
}

func hashUnrolledSalt(out []uint32, n []uint32, s uint32, max uint32) {
	i := 0
	for ; i+4 <= len(out); i += 4 {
		out[i] = Hash(n[i], s, max)
		out[i+1] = Hash(n[i+1], s, max)
		out[i+2] = Hash(n[i+2], s, max)
		out[i+3] = Hash(n[i+3], s, max)
	}
	for ; i < len(out); i++ {
		out[i] = Hash(n[i], s, max)
	}
}
