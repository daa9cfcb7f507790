package learning

import (
	"math"

	"github.com/jbarham/primegen"
)

// nextPrime returns the smallest prime not below n.
func nextPrime(n uint32) uint32 {
	if n <= 2 {
		return 2
	}
	pg := primegen.New()
	pg.SkipTo(uint64(n))
	p := pg.Next()
	if p < uint64(n) || p > math.MaxUint32 {
		return n | 1
	}
	return uint32(p)
}
