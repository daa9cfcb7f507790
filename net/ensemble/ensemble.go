// Package ensemble implements a position voting ensemble of hashtrons.
//
// Every feature position of the input has its own multi-bit hashtron. The
// feature found at a position is premodulo hashed to 16 bits together with
// the position number and fed to that hashtron, which outputs a class code.
// The class named by most positions wins.
package ensemble

import (
	"context"
	"encoding/json"
	"math/bits"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/neurlang/automl/datasets"
	"github.com/neurlang/automl/hash"
	"github.com/neurlang/automl/hashtron"
	"github.com/neurlang/automl/learning"
	"github.com/neurlang/automl/parallel"
)

// Premodulo is the size of the hashed feature space.
const Premodulo = 1 << 16

// Input is one input to the ensemble.
type Input interface {
	Feature(n int) uint32
}

// Sample is one training sample with its expected class.
type Sample interface {
	Feature(n int) uint32
	Output() uint16
}

// Ensemble is a trained or untrained ensemble.
type Ensemble struct {
	classes   int
	hashtrons []*hashtron.Hashtron
}

// New creates an untrained ensemble over positions feature positions.
func New(classes, positions int) (*Ensemble, error) {
	if classes < 1 || classes > 1<<hashtron.MaxBits {
		return nil, errors.Errorf("ensemble: %d classes not supported", classes)
	}
	if positions < 1 {
		return nil, errors.Errorf("ensemble: %d positions", positions)
	}
	e := &Ensemble{classes: classes, hashtrons: make([]*hashtron.Hashtron, positions)}
	for i := range e.hashtrons {
		h, err := hashtron.New(nil, e.Bits())
		if err != nil {
			return nil, err
		}
		e.hashtrons[i] = h
	}
	return e, nil
}

// Bits returns the number of bits of a class code.
func (e *Ensemble) Bits() byte {
	if e.classes <= 1 {
		return 1
	}
	return byte(bits.Len(uint(e.classes - 1)))
}

// Classes returns the number of classes.
func (e *Ensemble) Classes() int { return e.classes }

// Len returns the number of positions.
func (e *Ensemble) Len() int { return len(e.hashtrons) }

func key(feature uint32, position int) uint32 {
	return hash.Hash(feature, uint32(position), Premodulo)
}

// Train trains the hashtron of every position on the majority class code
// voted for by the samples. Positions train concurrently, hp.Threads at a time.
func (e *Ensemble) Train(ctx context.Context, hp learning.HyperParameters, samples []Sample) error {
	if len(samples) == 0 {
		return errors.New("ensemble: no samples")
	}
	hp = hp.WithDefaults()
	inner := hp
	inner.Threads = max(1, hp.Threads/len(e.hashtrons))
	width := e.Bits()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(hp.Threads)
	for p := range e.hashtrons {
		g.Go(func() error {
			var tally datasets.Tally
			tally.Init()
			defer tally.Free()
			parallel.ForEach(len(samples), inner.Threads, func(i int) {
				cmd := key(samples[i].Feature(p), p)
				code := samples[i].Output()
				for j := byte(0); j < width; j++ {
					vote := int8(-1)
					if code&(1<<j) != 0 {
						vote = 1
					}
					tally.AddToCorrect(hashtron.Key(cmd, j), vote)
				}
			})
			hpp := inner
			hpp.Seed = hp.Seed + int64(p)
			h, err := hpp.TrainingTally(ctx, &tally, width)
			if err != nil {
				return errors.Wrapf(err, "training position %d", p)
			}
			e.hashtrons[p] = h
			return nil
		})
	}
	return g.Wait()
}

// Votes returns how many positions voted for each class.
func (e *Ensemble) Votes(in Input) []int {
	votes := make([]int, e.classes)
	for p, h := range e.hashtrons {
		code := int(h.Forward(key(in.Feature(p), p)))
		if code < e.classes {
			votes[code]++
		}
	}
	return votes
}

// Predict returns the winning class and the share of positions voting for it.
// Ties go to the lower class.
func (e *Ensemble) Predict(in Input) (class int, confidence float64) {
	votes := e.Votes(in)
	for c, v := range votes {
		if v > votes[class] {
			class = c
		}
	}
	return class, float64(votes[class]) / float64(len(e.hashtrons))
}

type ensembleJSON struct {
	Classes   int                  `json:"classes"`
	Hashtrons []*hashtron.Hashtron `json:"hashtrons"`
}

// MarshalJSON encodes the ensemble.
func (e *Ensemble) MarshalJSON() ([]byte, error) {
	return json.Marshal(ensembleJSON{Classes: e.classes, Hashtrons: e.hashtrons})
}

// UnmarshalJSON decodes an ensemble written by MarshalJSON.
func (e *Ensemble) UnmarshalJSON(data []byte) error {
	var v ensembleJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return errors.WithStack(err)
	}
	if v.Classes < 1 || len(v.Hashtrons) == 0 {
		return errors.New("ensemble: empty model")
	}
	for i, h := range v.Hashtrons {
		if h == nil {
			return errors.Errorf("ensemble: missing hashtron %d", i)
		}
	}
	e.classes, e.hashtrons = v.Classes, v.Hashtrons
	return nil
}
