// Package hashtron implements a hashtron, the hash based classifier unit.
//
// A hashtron is a short program of (salt, modulo) hashing commands. The input is
// passed through every command in order and the parity of the final value is the
// predicted bit. A hashtron with more than one output bit mixes the bit index into
// the input above bit 16, so inputs are expected to fit into 16 bits.
package hashtron

// MaxBits is the largest number of output bits of a single hashtron.
const MaxBits = 16

// Hashtron represents individual hashtron (classifier) in memory
type Hashtron struct {
	program [][2]uint32
	bits    byte
}

// Push pushes the hashing command to position 0
func (h *Hashtron) Push(data [2]uint32) {
	h.program = append([][2]uint32{data}, h.program...)
}

// Get gets the hashing command at position n
func (h Hashtron) Get(n int) (s uint32, max uint32) {
	return h.program[n][0], h.program[n][1]
}

// Len gets the number of hashing commands (size of hashtron program)
func (h Hashtron) Len() int {
	return len(h.program)
}

// Bits determines the number of output bits returned by hashtron using Forward
func (h Hashtron) Bits() byte {
	return h.bits
}

// Program returns a copy of the hashing commands.
func (h Hashtron) Program() [][2]uint32 {
	return append([][2]uint32(nil), h.program...)
}
