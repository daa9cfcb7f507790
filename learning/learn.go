// Package learning implements the learning stage of hashtrons.
//
// The solver turns a key→bit dataset into a hashtron program. Reduction steps
// look for a salt that hashes the false keys and the true keys into disjoint
// buckets modulo a prime, so the sets shrink without losing the separation. A
// final step with modulo 2 picks the salt whose parity agrees with the most
// (weighted) keys, stopping early at a perfect separation.
package learning

import (
	"context"
	"sort"
	"sync"

	"github.com/neurlang/automl/datasets"
	"github.com/neurlang/automl/hash"
	"github.com/neurlang/automl/hashtron"
	"github.com/neurlang/automl/parallel"
)

// Training solves d and returns a hashtron with bits output bits. The keys of
// d are expected to be built with hashtron.Key.
func (h *HyperParameters) Training(ctx context.Context, d datasets.Dataset, bits byte) (*hashtron.Hashtron, error) {
	program, err := h.Solve(ctx, d, nil)
	if err != nil {
		return nil, err
	}
	return hashtron.New(program, bits)
}

// TrainingTally solves the majority votes of t, weighting every key by the
// number of votes it received.
func (h *HyperParameters) TrainingTally(ctx context.Context, t *datasets.Tally, bits byte) (*hashtron.Hashtron, error) {
	program, err := h.Solve(ctx, t.Dataset(), t.Weights())
	if err != nil {
		return nil, err
	}
	return hashtron.New(program, bits)
}

// Solve returns a program mapping the keys of d to their bits. Keys missing
// from weights weigh 1. Only context cancellation makes it fail; when no
// perfect program is found within the attempt budget the best one is returned.
func (h *HyperParameters) Solve(ctx context.Context, d datasets.Dataset, weights map[uint32]int64) ([][2]uint32, error) {
	hp := h.WithDefaults()
	s := newState(d, weights)
	base := uint32(hp.Seed) ^ uint32(hp.Seed>>32)

	if len(s.keys[0]) == 0 || len(s.keys[1]) == 0 {
		return constantProgram(base, len(s.keys[1]) > 0), nil
	}

	var program [][2]uint32
	var last uint32 // last modulo that reduced successfully
	modulo := initialModulo(hp.Factor, len(s.keys[0]), len(s.keys[1]))
	for step := 0; step < hp.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		salt, ok := hp.reduce(ctx, s, stepBase(base, step), modulo)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !ok {
			// back off halfway to the last modulo that worked
			retry := uint32(0)
			if last > modulo {
				retry = nextPrime(modulo + (last-modulo)/2)
			}
			if retry <= modulo || retry >= last {
				hp.Logger.Debug("reduction stalled", "step", step, "modulo", modulo,
					"false", len(s.keys[0]), "true", len(s.keys[1]))
				break
			}
			modulo = retry
			continue
		}
		program = append(program, [2]uint32{salt, modulo})
		s = s.apply(salt, modulo)
		last = modulo
		if len(s.keys[0]) == 1 && len(s.keys[1]) == 1 {
			break
		}
		next := uint64(modulo) * uint64(hp.Numerator) / uint64(hp.Denominator)
		if next <= uint64(hp.Subtractor)+1 {
			break
		}
		nm := nextPrime(uint32(next - uint64(hp.Subtractor)))
		if nm >= modulo {
			break
		}
		modulo = nm
	}

	salt, score, err := hp.finalize(ctx, s, stepBase(base, hp.MaxSteps))
	if err != nil {
		return nil, err
	}
	hp.Logger.Debug("hashtron solved", "commands", len(program)+1, "score", score, "total", s.total())
	return append(program, [2]uint32{salt, 2}), nil
}

func stepBase(base uint32, step int) uint32 {
	return hash.Hash(base, uint32(step)+1, ^uint32(0)) << 8
}

func initialModulo(factor uint32, n0, n1 int) uint32 {
	const limit = 1 << 31
	m := uint64(factor) * uint64(n0) * uint64(n1)
	if floor := uint64(2 * (n0 + n1)); m < floor {
		m = floor
	}
	if m < 16 {
		m = 16
	}
	if m > limit {
		m = limit
	}
	return nextPrime(uint32(m))
}

// constantProgram maps every input to want: modulo 1 collapses all inputs to 0
// and the second command picks the parity of 0.
func constantProgram(base uint32, want bool) [][2]uint32 {
	salt := base
	for (hash.Hash(0, salt, 2)&1 == 1) != want {
		salt++
	}
	return [][2]uint32{{base, 1}, {salt, 2}}
}

// state is the current false (0) and true (1) key sets with their weights.
type state struct {
	keys    [2][]uint32
	weights [2][]int64
}

func newState(d datasets.Dataset, weights map[uint32]int64) *state {
	s := new(state)
	alphabet := d.Alphabet()
	for c := range alphabet {
		s.keys[c] = alphabet[c]
		s.weights[c] = make([]int64, len(alphabet[c]))
		for i, k := range alphabet[c] {
			s.weights[c][i] = 1
			if w, ok := weights[k]; ok && w > 0 {
				s.weights[c][i] = w
			}
		}
	}
	return s
}

func (s *state) total() (t int64) {
	for c := range s.weights {
		for _, w := range s.weights[c] {
			t += w
		}
	}
	return
}

type scratch struct {
	set map[uint32]struct{}
	buf []uint32
}

var scratchPool = sync.Pool{New: func() any {
	return &scratch{set: make(map[uint32]struct{})}
}}

func (sc *scratch) buffer(n int) []uint32 {
	if cap(sc.buf) < n {
		sc.buf = make([]uint32, n)
	}
	return sc.buf[:n]
}

// disjoint reports whether no false key shares a bucket with a true key.
func (s *state) disjoint(salt, modulo uint32, sc *scratch) bool {
	clear(sc.set)
	buf := sc.buffer(len(s.keys[0]))
	hash.HashVectorizedSalt(buf, s.keys[0], salt, modulo)
	for _, v := range buf {
		sc.set[v] = struct{}{}
	}
	buf = sc.buffer(len(s.keys[1]))
	hash.HashVectorizedSalt(buf, s.keys[1], salt, modulo)
	for _, v := range buf {
		if _, ok := sc.set[v]; ok {
			return false
		}
	}
	return true
}

// apply maps both sets through one command, merging the weights of keys
// that land in the same bucket.
func (s *state) apply(salt, modulo uint32) *state {
	out := new(state)
	for c := range s.keys {
		merged := make(map[uint32]int64, len(s.keys[c]))
		for i, k := range s.keys[c] {
			merged[hash.Hash(k, salt, modulo)] += s.weights[c][i]
		}
		out.keys[c] = make([]uint32, 0, len(merged))
		for k := range merged {
			out.keys[c] = append(out.keys[c], k)
		}
		sort.Slice(out.keys[c], func(a, b int) bool { return out.keys[c][a] < out.keys[c][b] })
		out.weights[c] = make([]int64, len(out.keys[c]))
		for i, k := range out.keys[c] {
			out.weights[c][i] = merged[k]
		}
	}
	return out
}

// score sums the weights of keys whose parity under (salt, 2) matches their set.
func (s *state) score(salt uint32) (score int64) {
	for c := range s.keys {
		for i, k := range s.keys[c] {
			if int(hash.Hash(k, salt, 2)&1) == c {
				score += s.weights[c][i]
			}
		}
	}
	return
}

// reduce returns the smallest nonce salt keeping the sets disjoint. Every
// nonce below a successful one has been evaluated before the loop stops, so
// the result doesn't depend on thread scheduling.
func (h *HyperParameters) reduce(ctx context.Context, s *state, base, modulo uint32) (uint32, bool) {
	var (
		mut   sync.Mutex
		best  uint32
		found bool
	)
	parallel.Loop(h.Threads).LoopUntil(func(i uint32, ender parallel.LoopStopper) bool {
		if i >= h.Attempts || ctx.Err() != nil {
			return true
		}
		sc := scratchPool.Get().(*scratch)
		ok := s.disjoint(base+i, modulo, sc)
		scratchPool.Put(sc)
		if !ok {
			return false
		}
		mut.Lock()
		if !found || i < best {
			best, found = i, true
		}
		mut.Unlock()
		return true
	})
	return base + best, found
}

// finalize searches the parity salt with the best score.
func (h *HyperParameters) finalize(ctx context.Context, s *state, base uint32) (uint32, int64, error) {
	var (
		mut       sync.Mutex
		best      uint32
		bestScore int64 = -1
		total           = s.total()
	)
	parallel.Loop(h.Threads).LoopUntil(func(i uint32, ender parallel.LoopStopper) bool {
		if i >= h.Attempts || ctx.Err() != nil {
			return true
		}
		score := s.score(base + i)
		mut.Lock()
		if score > bestScore || (score == bestScore && i < best) {
			best, bestScore = i, score
		}
		mut.Unlock()
		return score == total
	})
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	return base + best, bestScore, nil
}
