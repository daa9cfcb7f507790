package hashtron

import (
	"encoding/json"

	"github.com/pkg/errors"
)

type jsonHashtron struct {
	Bits    byte        `json:"bits"`
	Program [][2]uint32 `json:"program"`
}

// MarshalJSON encodes the hashtron as its bit count and program.
func (h Hashtron) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonHashtron{Bits: h.bits, Program: h.program})
}

// UnmarshalJSON decodes a hashtron written by MarshalJSON.
func (h *Hashtron) UnmarshalJSON(data []byte) error {
	var j jsonHashtron
	if err := json.Unmarshal(data, &j); err != nil {
		return errors.Wrap(err, "hashtron: decode")
	}
	if j.Program == nil {
		j.Program = [][2]uint32{}
	}
	decoded, err := New(j.Program, j.Bits)
	if err != nil {
		return err
	}
	*h = *decoded
	return nil
}
