package hashtron

import (
	"math/rand"

	"github.com/pkg/errors"
)

// New creates a hashtron from a program, returning bits bits from Forward.
// A nil program creates an untrained hashtron with one random command.
func New(program [][2]uint32, bits byte) (h *Hashtron, err error) {
	if bits == 0 {
		bits = 1
	}
	if bits > MaxBits {
		return nil, errors.Errorf("hashtron: %d bits requested, at most %d supported", bits, MaxBits)
	}
	for i, cmd := range program {
		if cmd[1] == 0 {
			return nil, errors.Errorf("hashtron: command %d has zero modulo", i)
		}
	}
	h = new(Hashtron)
	if program == nil {
		h.program = [][2]uint32{{rand.Uint32() >> 1, 2}}
	} else {
		h.program = append([][2]uint32(nil), program...)
	}
	h.bits = bits
	return
}
