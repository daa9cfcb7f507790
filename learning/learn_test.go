package learning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurlang/automl/datasets"
	"github.com/neurlang/automl/hashtron"
)

func accuracy(program [][2]uint32, d datasets.Dataset) float64 {
	var ok int
	for k, v := range d {
		if hashtron.Eval(program, k) == v {
			ok++
		}
	}
	return float64(ok) / float64(len(d))
}

func TestSolveSeparatesSmallSet(t *testing.T) {
	d := datasets.Dataset{
		1: true, 2: false, 3: true, 4: false,
		100: true, 200: false, 300: false, 400: true,
	}
	h := HyperParameters{Threads: 4, Seed: 7}

	program, err := h.Solve(context.Background(), d, nil)
	require.NoError(t, err)
	require.NotEmpty(t, program)
	assert.Equal(t, 1.0, accuracy(program, d))
	assert.Equal(t, uint32(2), program[len(program)-1][1])
}

func TestSolveDeterministic(t *testing.T) {
	d := datasets.Dataset{}
	for i := uint32(0); i < 12; i++ {
		d[i*977] = i%3 == 0
	}
	a := HyperParameters{Threads: 1, Seed: 3}
	b := HyperParameters{Threads: 8, Seed: 3}

	pa, err := a.Solve(context.Background(), d, nil)
	require.NoError(t, err)
	pb, err := b.Solve(context.Background(), d, nil)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestSolveSingleClass(t *testing.T) {
	for _, want := range []bool{false, true} {
		d := datasets.Dataset{5: want, 6: want, 99: want}
		var h HyperParameters
		program, err := h.Solve(context.Background(), d, nil)
		require.NoError(t, err)
		assert.Equal(t, 1.0, accuracy(program, d))
		for k := uint32(1000); k < 1100; k++ {
			assert.Equal(t, want, hashtron.Eval(program, k))
		}
	}
}

func TestSolveEmpty(t *testing.T) {
	var h HyperParameters
	program, err := h.Solve(context.Background(), datasets.Dataset{}, nil)
	require.NoError(t, err)
	assert.Len(t, program, 2)
}

func TestSolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := HyperParameters{Threads: 2}
	_, err := h.Solve(ctx, datasets.Dataset{1: true, 2: false}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrainingTallyMultiBit(t *testing.T) {
	var tally datasets.Tally
	tally.Init()
	// feature -> 2 bit class code
	codes := map[uint32]uint16{10: 0, 20: 1, 30: 2, 40: 3}
	for feature, code := range codes {
		for j := byte(0); j < 2; j++ {
			vote := int8(-1)
			if code&(1<<j) != 0 {
				vote = 1
			}
			tally.AddToCorrect(hashtron.Key(feature, j), vote)
		}
	}
	h := HyperParameters{Threads: 2, Seed: 11}

	htron, err := h.TrainingTally(context.Background(), &tally, 2)
	require.NoError(t, err)
	for feature, code := range codes {
		assert.Equal(t, code, htron.Forward(feature), "feature %d", feature)
	}
}

func TestNextPrime(t *testing.T) {
	assert.Equal(t, uint32(2), nextPrime(0))
	assert.Equal(t, uint32(17), nextPrime(14))
	assert.Equal(t, uint32(97), nextPrime(90))
}

func TestWithDefaults(t *testing.T) {
	h := HyperParameters{Numerator: 5, Denominator: 4}.WithDefaults()
	assert.Equal(t, uint32(DefaultNumerator), h.Numerator)
	assert.Equal(t, uint32(DefaultDenominator), h.Denominator)
	assert.Equal(t, uint32(DefaultAttempts), h.Attempts)
	assert.GreaterOrEqual(t, h.Threads, 1)
	assert.NotNil(t, h.Logger)
}
