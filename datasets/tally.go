package datasets

import "sync"

// ballot counts the votes on one key: sum is the signed balance, total the
// number of votes cast.
type ballot struct {
	sum   int64
	total int64
}

// Tally collects votes on the bit each key should map to and materializes the
// majority. It is safe for concurrent use.
type Tally struct {
	mut   sync.Mutex
	votes map[uint32]*ballot
}

// Init resets the tally.
func (t *Tally) Init() {
	t.mut.Lock()
	t.votes = make(map[uint32]*ballot)
	t.mut.Unlock()
}

// Free drops the collected votes.
func (t *Tally) Free() {
	t.mut.Lock()
	t.votes = nil
	t.mut.Unlock()
}

// AddToCorrect votes vote times for key mapping to true (positive vote) or
// false (negative vote).
func (t *Tally) AddToCorrect(key uint32, vote int8) {
	if vote == 0 {
		return
	}
	t.mut.Lock()
	b := t.votes[key]
	if b == nil {
		b = new(ballot)
		t.votes[key] = b
	}
	b.sum += int64(vote)
	b.total += max(int64(vote), -int64(vote))
	t.mut.Unlock()
}

// Len reports the number of keys voted on.
func (t *Tally) Len() int {
	t.mut.Lock()
	defer t.mut.Unlock()
	return len(t.votes)
}

// Dataset returns the majority bit of every key. Ties are dropped.
func (t *Tally) Dataset() Dataset {
	t.mut.Lock()
	defer t.mut.Unlock()
	d := make(Dataset, len(t.votes))
	for key, b := range t.votes {
		if b.sum != 0 {
			d[key] = b.sum > 0
		}
	}
	return d
}

// Weights returns the number of votes cast on every key kept by Dataset.
func (t *Tally) Weights() map[uint32]int64 {
	t.mut.Lock()
	defer t.mut.Unlock()
	w := make(map[uint32]int64, len(t.votes))
	for key, b := range t.votes {
		if b.sum != 0 {
			w[key] = b.total
		}
	}
	return w
}
