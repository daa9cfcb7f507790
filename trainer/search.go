package trainer

import (
	"context"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ErrNoTrials is returned when no trial completed.
var ErrNoTrials = errors.New("no trial completed")

// Trial is one evaluated point of the search.
type Trial struct {
	ID          string
	Number      int
	Params      Point
	Metric      float64
	Err         error
	Skipped     bool
	Duration    time.Duration
	Fingerprint [32]byte // digest of the trial's validation predictions
}

// Status returns "ok", "failed" or "skipped".
func (t *Trial) Status() string {
	switch {
	case t.Skipped:
		return "skipped"
	case t.Err != nil:
		return "failed"
	}
	return "ok"
}

// Objective trains and validates the model of a trial and returns its
// validation metric. It may set the trial's Fingerprint.
type Objective func(ctx context.Context, trial *Trial) (float64, error)

// Search runs trials over a space.
type Search struct {
	Space     Space
	Defaults  Point
	Strategy  Strategy
	NumTrials int
	Parallel  int
	Seed      int64
	Logger    *slog.Logger

	// OnTrial is called after every trial, from the goroutine that ran it.
	OnTrial func(*Trial)
}

// Run evaluates the trials and returns the best one, by highest metric and
// then lowest number, along with all trials in order. Failed trials don't
// stop the search; the search fails with ErrNoTrials when none succeeds.
// Trials not started before ctx is done are skipped.
func (s *Search) Run(ctx context.Context, objective Objective) (*Trial, []*Trial, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	points := s.Space.Points(s.Defaults, max(1, s.NumTrials), s.Strategy, s.Seed)
	trials := make([]*Trial, len(points))
	for i, p := range points {
		trials[i] = &Trial{ID: uuid.NewString(), Number: i, Params: p}
	}

	var g errgroup.Group
	g.SetLimit(max(1, s.Parallel))
	for _, trial := range trials {
		g.Go(func() error {
			if ctx.Err() != nil {
				trial.Skipped = true
			} else {
				start := time.Now()
				trial.Metric, trial.Err = objective(ctx, trial)
				trial.Duration = time.Since(start)
			}
			s.log(logger, trial)
			if s.OnTrial != nil {
				s.OnTrial(trial)
			}
			return nil
		})
	}
	g.Wait()

	var best *Trial
	for _, t := range trials {
		if t.Skipped || t.Err != nil {
			continue
		}
		if best == nil || t.Metric > best.Metric {
			best = t
		}
	}
	if best == nil {
		if err := ctx.Err(); err != nil {
			return nil, trials, errors.Wrap(ErrNoTrials, err.Error())
		}
		for _, t := range trials {
			if t.Err != nil {
				return nil, trials, errors.Wrapf(ErrNoTrials, "trial %d: %v", t.Number, t.Err)
			}
		}
		return nil, trials, ErrNoTrials
	}
	return best, trials, nil
}

func (s *Search) log(logger *slog.Logger, t *Trial) {
	attrs := []any{
		"trial", t.Number,
		"id", t.ID,
		"params", t.Params.Key(),
		"status", t.Status(),
	}
	switch t.Status() {
	case "ok":
		logger.Info("trial finished", append(attrs,
			"metric", t.Metric,
			"duration", t.Duration,
			"fingerprint", hex.EncodeToString(t.Fingerprint[:8]))...)
	case "failed":
		logger.Warn("trial failed", append(attrs, "error", t.Err)...)
	default:
		logger.Info("trial skipped", attrs...)
	}
}
