package parallel

import (
	"crypto/sha256"
	"encoding/binary"
	"hash"
	"sync"
)

// Hasher computes a sha256 digest over n uint16 values written by many
// goroutines in any order. The digest depends only on the values and their
// positions. The contiguous written prefix is hashed as it grows.
type Hasher struct {
	mut     sync.Mutex
	sha     hash.Hash
	values  []uint16
	written []bool
	next    int // values below next are hashed
}

// NewUint16Hasher creates a hasher for n uint16 values.
func NewUint16Hasher(n int) *Hasher {
	return &Hasher{
		sha:     sha256.New(),
		values:  make([]uint16, n),
		written: make([]bool, n),
	}
}

// MustPutUint16 stores value at position n. It panics when n is out of range
// or was already written.
func (h *Hasher) MustPutUint16(n int, value uint16) {
	h.mut.Lock()
	defer h.mut.Unlock()
	if n < 0 || n >= len(h.values) {
		panic("position out of range")
	}
	if h.written[n] {
		panic("duplicate write")
	}
	h.values[n], h.written[n] = value, true
	for h.next < len(h.values) && h.written[h.next] {
		h.eat()
	}
}

func (h *Hasher) eat() {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], h.values[h.next])
	h.sha.Write(buf[:])
	h.next++
}

// Sum hashes the remaining values, unwritten ones as zero, and returns the
// digest. The hasher can't be written to afterwards.
func (h *Hasher) Sum() (ret [32]byte) {
	h.mut.Lock()
	defer h.mut.Unlock()
	for h.next < len(h.values) {
		h.eat()
	}
	for i := range h.written {
		h.written[i] = true
	}
	copy(ret[:], h.sha.Sum(nil))
	return
}
