package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForEachVisitsAll(t *testing.T) {
	var seen [50]atomic.Int32
	ForEach(len(seen), 4, func(i int) {
		seen[i].Add(1)
	})
	for i := range seen {
		assert.Equal(t, int32(1), seen[i].Load(), "index %d", i)
	}
}

func TestForEachZeroLength(t *testing.T) {
	ForEach(0, 0, func(i int) {
		t.Fatal("body must not run")
	})
}

func TestLoopUntilStops(t *testing.T) {
	var calls atomic.Int64
	Loop(4).LoopUntil(func(i uint32, ender LoopStopper) bool {
		calls.Add(1)
		return i >= 99
	})
	assert.GreaterOrEqual(t, calls.Load(), int64(100))
	assert.Less(t, calls.Load(), int64(200))
}

func TestForEachBoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	ForEach(64, 3, func(i int) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		running.Add(-1)
	})
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestLoopUntilYieldsPrefix(t *testing.T) {
	var seen [64]atomic.Bool
	Loop(8).LoopUntil(func(i uint32, ender LoopStopper) bool {
		if i < uint32(len(seen)) {
			seen[i].Store(true)
		}
		return i == 40
	})
	for i := 0; i <= 40; i++ {
		assert.True(t, seen[i].Load(), "index %d", i)
	}
}
