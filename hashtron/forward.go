package hashtron

import "github.com/neurlang/automl/hash"

// Forward runs the hashtron on command and returns Bits() output bits.
func (h Hashtron) Forward(command uint32) (out uint16) {
	if h.Len() == 0 {
		return
	}
	for j := byte(0); j < h.Bits(); j++ {
		if Eval(h.program, Key(command, j)) {
			out |= 1 << j
		}
	}
	return
}

// Key combines a 16 bit input with the index of the output bit.
func Key(command uint32, bit byte) uint32 {
	return (command & 0xffff) | uint32(bit)<<16
}

// Eval runs a program on a single key and reports the parity of the result.
func Eval(program [][2]uint32, input uint32) bool {
	for _, cmd := range program {
		input = hash.Hash(input, cmd[0], cmd[1])
	}
	return input&1 != 0
}
