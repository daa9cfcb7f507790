package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/neurlang/automl/trainer"
)

var (
	// ErrEmptyDataset is returned when a dataset has fewer than two usable samples.
	ErrEmptyDataset = errors.New("dataset has too few samples")

	// ErrNoTrials is returned when no trial of a fit completed.
	ErrNoTrials = trainer.ErrNoTrials
)

// Runner is a configured task that can be fitted on datasets of type D,
// producing models of type M.
type Runner[D any, M any] interface {
	// Fit trains on dataset and returns the best model. It replaces the
	// summary of any earlier fit.
	Fit(ctx context.Context, dataset D) (M, error)

	// Summary returns the metrics of the last successful fit.
	Summary() Summary
}

// Option customizes a runner.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *Metrics
}

// WithLogger sets the logger of a runner.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics makes a runner record Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Hyperparameters of a trial.
type Hyperparameters struct {
	GridSize int // side of the quantized image grid
	Levels   int // quantization levels per colour channel
	Cells    int // detection cells per image side
}

// DefaultHyperparameters are used by the first trial of every fit.
var DefaultHyperparameters = Hyperparameters{GridSize: 8, Levels: 4, Cells: 4}

const (
	paramGridSize = "grid_size"
	paramLevels   = "levels"
	paramCells    = "cells"
)

var classificationSpace = trainer.Space{
	{Name: paramGridSize, Values: []int{4, 6, 8, 10, 12, 16}},
	{Name: paramLevels, Values: []int{2, 3, 4, 5, 6}},
}

var detectionSpace = append(trainer.Space{
	{Name: paramCells, Values: []int{2, 3, 4, 6, 8}},
}, classificationSpace...)

func (h Hyperparameters) point(cells bool) trainer.Point {
	p := trainer.Point{paramGridSize: h.GridSize, paramLevels: h.Levels}
	if cells {
		p[paramCells] = h.Cells
	}
	return p
}

func hyperparametersOf(p trainer.Point) Hyperparameters {
	h := DefaultHyperparameters
	if v, ok := p[paramGridSize]; ok {
		h.GridSize = v
	}
	if v, ok := p[paramLevels]; ok {
		h.Levels = v
	}
	if v, ok := p[paramCells]; ok {
		h.Cells = v
	}
	return h
}

// runner holds what both tasks share.
type runner struct {
	task string
	cfg  Config
	opts options

	mu      sync.Mutex
	summary Summary
}

func newRunner(task string, cfg Config, opts []Option) (*runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &runner{task: task, cfg: cfg.WithDefaults(), summary: Summary{}}
	for _, o := range opts {
		o(&r.opts)
	}
	if r.opts.logger == nil {
		r.opts.logger = slog.New(slog.DiscardHandler)
	}
	return r, nil
}

// Config returns the effective configuration.
func (r *runner) Config() Config {
	return r.cfg
}

// Summary returns a copy of the summary of the last successful fit.
func (r *runner) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary.Clone()
}

func (r *runner) setSummary(s Summary) {
	r.mu.Lock()
	r.summary = s
	r.mu.Unlock()
}

// begin starts a fit: it clears the summary and applies the time limit.
func (r *runner) begin(ctx context.Context) (context.Context, context.CancelFunc, *slog.Logger) {
	r.setSummary(Summary{})
	logger := r.opts.logger.With("task", r.task, "fit", uuid.NewString())
	if r.cfg.TimeLimit > 0 {
		ctx, cancel := context.WithTimeout(ctx, r.cfg.TimeLimit)
		return ctx, cancel, logger
	}
	ctx, cancel := context.WithCancel(ctx)
	return ctx, cancel, logger
}

// search runs the trials of a fit.
func (r *runner) search(ctx context.Context, logger *slog.Logger, space trainer.Space, defaults trainer.Point,
	objective trainer.Objective) (*trainer.Trial, []*trainer.Trial, error) {
	s := &trainer.Search{
		Space:     space,
		Defaults:  defaults,
		Strategy:  r.cfg.SearchStrategy,
		NumTrials: r.cfg.NumTrials,
		Parallel:  r.cfg.ParallelTrials,
		Seed:      r.cfg.Seed,
		Logger:    logger,
		OnTrial: func(t *trainer.Trial) {
			r.opts.metrics.observeTrial(r.task, t)
		},
	}
	return s.Run(ctx, objective)
}

// finish stores the summary of a successful fit.
func (r *runner) finish(logger *slog.Logger, start time.Time, best *trainer.Trial, trials []*trainer.Trial,
	metric string, summary Summary) {
	var completed int
	for _, t := range trials {
		if t.Status() == "ok" {
			completed++
		}
	}
	summary[KeyTotalTime] = time.Since(start).Seconds()
	summary[KeyNumTrials] = float64(completed)
	summary[KeyBestTrial] = float64(best.Number)
	r.setSummary(summary)
	r.opts.metrics.setBest(r.task, metric, summary[metric])
	logger.Info("fit finished", "best_trial", best.Number, "params", best.Params.Key(),
		metric, summary[metric], "trials", completed, "total_time", summary[KeyTotalTime])
}
