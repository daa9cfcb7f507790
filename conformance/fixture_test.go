package conformance

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixtureInitializesOnce(t *testing.T) {
	var calls atomic.Int32
	f := NewFixture(func(ctx context.Context) ([]int, error) {
		calls.Add(1)
		return []int{1, 2, 3}, nil
	})

	var wg sync.WaitGroup
	results := make([][]int, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := f.Get(context.Background())
			if err != nil {
				t.Error(err)
			}
			results[i] = v
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		require.Len(t, v, 3)
		assert.Same(t, &results[0][0], &v[0])
	}
}

func TestFixtureCachesError(t *testing.T) {
	boom := errors.New("boom")
	var calls int
	f := NewFixture(func(ctx context.Context) (string, error) {
		calls++
		return "", boom
	})

	_, err := f.Get(context.Background())
	assert.ErrorIs(t, err, boom)
	_, err = f.Get(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
