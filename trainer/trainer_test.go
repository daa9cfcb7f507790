package trainer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var space = Space{
	{Name: "grid_size", Values: []int{4, 8, 12}},
	{Name: "levels", Values: []int{2, 4}},
}

var defaults = Point{"grid_size": 8, "levels": 4}

func TestPointsStartWithDefaults(t *testing.T) {
	for _, strategy := range []Strategy{Random, Grid} {
		points := space.Points(defaults, 4, strategy, 1)
		require.Len(t, points, 4, strategy)
		assert.Equal(t, defaults, points[0])
		seen := map[string]bool{}
		for _, p := range points {
			assert.False(t, seen[p.Key()], "duplicate %s", p.Key())
			seen[p.Key()] = true
		}
	}
}

func TestPointsExhaustSpace(t *testing.T) {
	points := space.Points(defaults, 100, Grid, 1)
	assert.Len(t, points, space.Size())

	points = space.Points(defaults, 100, Random, 1)
	assert.Len(t, points, space.Size())

	assert.Empty(t, space.Points(defaults, 0, Grid, 1))
}

func TestGridOrder(t *testing.T) {
	points := space.Points(Point{"grid_size": 4, "levels": 2}, 3, Grid, 0)
	assert.Equal(t, []Point{
		{"grid_size": 4, "levels": 2},
		{"grid_size": 4, "levels": 4},
		{"grid_size": 8, "levels": 2},
	}, points)
}

func TestPointKey(t *testing.T) {
	assert.Equal(t, "grid_size=8,levels=4", defaults.Key())
}

func TestStrategyValid(t *testing.T) {
	assert.True(t, Random.Valid())
	assert.True(t, Grid.Valid())
	assert.False(t, Strategy("bayes").Valid())
}

func TestSearchPicksBest(t *testing.T) {
	var (
		mu     sync.Mutex
		called []int
	)
	s := &Search{Space: space, Defaults: defaults, Strategy: Grid, NumTrials: 4, Parallel: 2,
		OnTrial: func(tr *Trial) {
			mu.Lock()
			called = append(called, tr.Number)
			mu.Unlock()
		}}
	best, trials, err := s.Run(context.Background(), func(ctx context.Context, tr *Trial) (float64, error) {
		if tr.Number == 2 {
			return 0, errors.New("boom")
		}
		return float64(tr.Params["levels"]), nil
	})
	require.NoError(t, err)
	require.Len(t, trials, 4)
	assert.Len(t, called, 4)
	assert.Equal(t, 0, best.Number)
	assert.Equal(t, 4.0, best.Metric)
	assert.Equal(t, "failed", trials[2].Status())
	assert.NotEmpty(t, best.ID)
	assert.NotEqual(t, trials[0].ID, trials[1].ID)
}

func TestSearchSingleTrial(t *testing.T) {
	s := &Search{Space: space, Defaults: defaults, NumTrials: 1}
	var runs int
	best, trials, err := s.Run(context.Background(), func(ctx context.Context, tr *Trial) (float64, error) {
		runs++
		assert.Equal(t, defaults, tr.Params)
		return 0.5, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, runs)
	assert.Len(t, trials, 1)
	assert.Equal(t, 0.5, best.Metric)
}

func TestSearchAllFailed(t *testing.T) {
	s := &Search{Space: space, Defaults: defaults, NumTrials: 2}
	_, _, err := s.Run(context.Background(), func(ctx context.Context, tr *Trial) (float64, error) {
		return 0, errors.New("boom")
	})
	assert.ErrorIs(t, err, ErrNoTrials)
	assert.ErrorContains(t, err, "boom")
}

func TestSearchCancelledSkips(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &Search{Space: space, Defaults: defaults, NumTrials: 3}
	_, trials, err := s.Run(ctx, func(ctx context.Context, tr *Trial) (float64, error) {
		t.Error("objective must not run")
		return 0, nil
	})
	assert.ErrorIs(t, err, ErrNoTrials)
	for _, tr := range trials {
		assert.Equal(t, "skipped", tr.Status())
	}
}

func TestSampleSize(t *testing.T) {
	assert.Equal(t, 0, SampleSize(0, 95))
	assert.Equal(t, 10, SampleSize(10, 95))
	assert.Equal(t, 50, SampleSize(50, 100))
	ss := SampleSize(100000, 95)
	assert.InDelta(t, 383, ss, 2)
	assert.Less(t, SampleSize(1000, 95), 1000)
}

func TestEvaluate(t *testing.T) {
	preds, sum := Evaluate(100, 4, func(i int) uint16 { return uint16(i % 3) })
	require.Len(t, preds, 100)
	assert.Equal(t, uint16(2), preds[5])

	_, again := Evaluate(100, 1, func(i int) uint16 { return uint16(i % 3) })
	assert.Equal(t, sum, again)

	_, other := Evaluate(100, 1, func(i int) uint16 { return uint16(i % 2) })
	assert.NotEqual(t, sum, other)
}
