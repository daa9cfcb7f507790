package trainer

import (
	"math"

	"github.com/neurlang/automl/parallel"
)

// SampleSize returns the statistically sufficient sample size for a
// population of n at the given significance level (0-100).
func SampleSize(n int, significance byte) int {
	if n <= 0 {
		return 0
	}
	if significance >= 100 {
		return n
	}
	z := zScoreFromAlpha(100 - significance)

	// worst case proportion
	p := 0.5
	e := float64(100-significance) * 0.01

	ss := math.Pow(z, 2) * p * (1 - p) / math.Pow(e, 2)

	// finite population correction
	corrected := ss * float64(n) / (float64(n) - 1 + ss)
	if int(math.Ceil(corrected)) > n {
		return n
	}
	return int(math.Ceil(corrected))
}

// zScoreFromAlpha returns the Z-score for a given alpha level.
// Common: 90% => 1.645, 95% => 1.96, 99% => 2.576
func zScoreFromAlpha(alpha byte) float64 {
	switch {
	case alpha <= 1:
		return 2.576
	case alpha <= 5:
		return 1.96
	case alpha <= 10:
		return 1.645
	default:
		return 1.96
	}
}

// Evaluate runs predict for indices 0..n-1 on threads goroutines and returns
// the predictions along with a digest that only depends on their values.
func Evaluate(n, threads int, predict func(i int) uint16) ([]uint16, [32]byte) {
	out := make([]uint16, n)
	h := parallel.NewUint16Hasher(n)
	parallel.ForEach(n, threads, func(i int) {
		out[i] = predict(i)
		h.MustPutUint16(i, out[i])
	})
	return out, h.Sum()
}
