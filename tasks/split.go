package tasks

import (
	"math"
	"math/rand"
	"sort"
)

// holdout splits the sample indices into training and validation indices,
// stratified by label. Every label keeps at least one training sample. The
// validation part is empty only when no label has two samples.
func holdout(labels []int, fraction float64, seed int64) (train, valid []int) {
	rng := rand.New(rand.NewSource(seed))
	byLabel := make(map[int][]int)
	for i, l := range labels {
		byLabel[l] = append(byLabel[l], i)
	}
	keys := make([]int, 0, len(byLabel))
	for l := range byLabel {
		keys = append(keys, l)
	}
	sort.Ints(keys)

	take := make(map[int]int, len(keys))
	total := 0
	for _, l := range keys {
		n := len(byLabel[l])
		k := int(math.Round(float64(n) * fraction))
		if k > n-1 {
			k = n - 1
		}
		take[l] = k
		total += k
	}
	if total == 0 && len(keys) > 0 {
		// borrow one sample from the largest label if it can spare one
		largest := keys[0]
		for _, l := range keys {
			if len(byLabel[l]) > len(byLabel[largest]) {
				largest = l
			}
		}
		if len(byLabel[largest]) > 1 {
			take[largest] = 1
		}
	}

	for _, l := range keys {
		idx := byLabel[l]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		valid = append(valid, idx[:take[l]]...)
		train = append(train, idx[take[l]:]...)
	}
	sort.Ints(valid)
	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	return train, valid
}
