package conformance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/neurlang/automl/datasets/folders"
	"github.com/neurlang/automl/datasets/voc"
	"github.com/neurlang/automl/tasks"
)

// Fetcher resolves dataset locations to local directories.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (string, error)
}

// Harness runs scenarios, sharing dataset fixtures between them.
type Harness struct {
	fetcher Fetcher
	logger  *slog.Logger
	metrics *tasks.Metrics

	mu             sync.Mutex
	classification map[string]*Fixture[*folders.Dataset]
	detection      map[string]*Fixture[*voc.Dataset]
}

// Option customizes a Harness.
type Option func(*Harness)

// WithLogger sets the logger of the harness and of the runners it creates.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithMetrics makes the runners record Prometheus metrics.
func WithMetrics(m *tasks.Metrics) Option {
	return func(h *Harness) { h.metrics = m }
}

// New returns a harness fetching datasets with f.
func New(f Fetcher, opts ...Option) *Harness {
	h := &Harness{
		fetcher:        f,
		logger:         slog.New(slog.DiscardHandler),
		classification: make(map[string]*Fixture[*folders.Dataset]),
		detection:      make(map[string]*Fixture[*voc.Dataset]),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// ClassificationDataset returns the train split of the folder dataset at
// location, loading it on first use.
func (h *Harness) ClassificationDataset(ctx context.Context, location string) (*folders.Dataset, error) {
	h.mu.Lock()
	f, ok := h.classification[location]
	if !ok {
		f = NewFixture(func(ctx context.Context) (*folders.Dataset, error) {
			train, _, _, err := folders.FromFolders(ctx, h.fetcher, location)
			return train, err
		})
		h.classification[location] = f
	}
	h.mu.Unlock()
	return f.Get(ctx)
}

// DetectionDataset returns the VOC dataset at location, loading it on first use.
func (h *Harness) DetectionDataset(ctx context.Context, location string) (*voc.Dataset, error) {
	h.mu.Lock()
	f, ok := h.detection[location]
	if !ok {
		f = NewFixture(func(ctx context.Context) (*voc.Dataset, error) {
			return voc.FromVOC(ctx, h.fetcher, location)
		})
		h.detection[location] = f
	}
	h.mu.Unlock()
	return f.Get(ctx)
}

// Run executes s. Invalid scenarios and dataset setup failures are returned
// as errors; fit failures and metrics not above the threshold fail the result.
func (h *Harness) Run(ctx context.Context, s Scenario) (*Result, error) {
	if err := validateScenario(&s); err != nil {
		return nil, errors.Wrap(err, "invalid scenario")
	}
	start := time.Now()
	logger := h.logger.With("scenario", s.Name)
	result := NewResult(&s)

	opts := []tasks.Option{tasks.WithLogger(logger), tasks.WithMetrics(h.metrics)}
	var (
		summary tasks.Summary
		fitErr  error
	)
	switch s.Task {
	case ImageClassification:
		d, err := h.ClassificationDataset(ctx, s.Dataset)
		if err != nil {
			return nil, errors.Wrapf(err, "setup %s", s.Name)
		}
		task, err := tasks.NewImageClassification(s.Config, opts...)
		if err != nil {
			return nil, err
		}
		_, fitErr = task.Fit(ctx, d)
		summary = task.Summary()
	case ObjectDetection:
		d, err := h.DetectionDataset(ctx, s.Dataset)
		if err != nil {
			return nil, errors.Wrapf(err, "setup %s", s.Name)
		}
		task, err := tasks.NewObjectDetection(s.Config, opts...)
		if err != nil {
			return nil, err
		}
		_, fitErr = task.Fit(ctx, d)
		summary = task.Summary()
	}

	result.Summary = summary
	result.Value = summary.Get(result.Metric, 0)
	if fitErr != nil {
		result.AddError(fmt.Sprintf("fit: %v", fitErr))
	}
	if !(result.Value > s.Threshold) {
		result.AddError(fmt.Sprintf("%s = %v, want > %v", result.Metric, result.Value, s.Threshold))
	}
	result.Duration = time.Since(start)

	logger.Info("scenario finished", "pass", result.Pass, result.Metric, result.Value, "duration", result.Duration)
	return result, nil
}
