package parallel

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// DefaultThreads reports the number of logical cores, falling back to the
// number of CPUs visible to the Go runtime.
func DefaultThreads() int {
	if n := cpuid.CPU.LogicalCores; n > 0 {
		if m := runtime.GOMAXPROCS(0); m < n {
			return m
		}
		return n
	}
	return runtime.NumCPU()
}
