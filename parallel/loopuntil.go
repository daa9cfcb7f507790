// Package parallel holds the concurrency primitives of the training engine.
package parallel

import (
	"math"
	"sync"
	"sync/atomic"
)

// LoopStopper reports whether a loop has been stopped.
type LoopStopper interface {
	Load() bool
}

// Loop is the number of goroutines of a LoopUntil.
type Loop int

// LoopUntil hands out the indices 0, 1, 2... to l goroutines calling yield
// until one call returns true or the indices run out. Indices are handed out
// in order and every started call completes before LoopUntil returns, so when
// yield(i) stops the loop every index below i has been yielded.
func (l Loop) LoopUntil(yield func(i uint32, ender LoopStopper) bool) {
	var (
		next atomic.Uint32
		done atomic.Bool
		wg   sync.WaitGroup
	)
	workers := max(int(l), 1)
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for !done.Load() {
				i := next.Add(1) - 1
				if i == math.MaxUint32 || yield(i, &done) {
					done.Store(true)
					return
				}
			}
		}()
	}
	wg.Wait()
}
