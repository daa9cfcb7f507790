package parallel

import (
	"sync"
	"sync/atomic"
)

// ForEach calls body for every i in [0, length) from at most limit goroutines
// and returns when all calls are done.
func ForEach(length, limit int, body func(i int)) {
	if length <= 0 {
		return
	}
	workers := min(max(limit, 1), length)

	var (
		next atomic.Int64
		wg   sync.WaitGroup
	)
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1) - 1)
				if i >= length {
					return
				}
				body(i)
			}
		}()
	}
	wg.Wait()
}
