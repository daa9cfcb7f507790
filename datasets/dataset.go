// Package datasets implements the hashtron training set types and the dataset
// loaders in its sub-packages.
package datasets

import "sort"

// Dataset maps a hashtron input key to the bit it should produce.
type Dataset map[uint32]bool

// Init makes d an empty dataset.
func (d *Dataset) Init() {
	*d = make(map[uint32]bool)
}

// Alphabet returns the false and true keys of d in ascending order.
func (d Dataset) Alphabet() (alphabet [2][]uint32) {
	for k, v := range d {
		if v {
			alphabet[1] = append(alphabet[1], k)
		} else {
			alphabet[0] = append(alphabet[0], k)
		}
	}
	for i := range alphabet {
		sort.Slice(alphabet[i], func(a, b int) bool { return alphabet[i][a] < alphabet[i][b] })
	}
	return
}
