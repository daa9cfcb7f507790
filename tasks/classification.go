package tasks

import (
	"context"
	"encoding/json"
	"image"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/neurlang/automl/datasets/folders"
	"github.com/neurlang/automl/metrics"
	"github.com/neurlang/automl/net/ensemble"
	"github.com/neurlang/automl/parallel"
	"github.com/neurlang/automl/trainer"
	"github.com/neurlang/automl/vision"
)

const classificationTask = "image_classification"

// ImageClassification fits image classifiers on folder datasets.
type ImageClassification struct {
	*runner
}

var _ Runner[*folders.Dataset, *ImageClassifier] = (*ImageClassification)(nil)

// NewImageClassification returns a runner configured by cfg.
func NewImageClassification(cfg Config, opts ...Option) (*ImageClassification, error) {
	r, err := newRunner(classificationTask, cfg, opts)
	if err != nil {
		return nil, err
	}
	return &ImageClassification{runner: r}, nil
}

// Fit trains on the labeled images of d. Part of d is held out for
// validation; the summary reports train_acc and valid_acc of the best trial.
func (t *ImageClassification) Fit(ctx context.Context, d *folders.Dataset) (*ImageClassifier, error) {
	start := time.Now()
	ctx, cancel, logger := t.begin(ctx)
	defer cancel()

	if d == nil || len(d.Classes) == 0 {
		return nil, errors.Wrap(ErrEmptyDataset, "no classes")
	}
	var keep []int
	for i, it := range d.Items {
		if it.Label != folders.Unlabeled {
			keep = append(keep, i)
		}
	}
	labeled := d.Subset(keep)
	if labeled.Len() < 2 {
		return nil, errors.Wrapf(ErrEmptyDataset, "%d labeled images", labeled.Len())
	}
	labels := labeled.Labels()
	paths := make([]string, len(labeled.Items))
	for i, it := range labeled.Items {
		paths[i] = it.Path
	}

	trainIdx, validIdx := holdout(labels, t.cfg.ValidFraction, t.cfg.Seed)
	if len(validIdx) == 0 {
		return nil, errors.Wrap(ErrEmptyDataset, "no class has two labeled images to hold one out")
	}
	logger.Info("fit started", "images", len(paths), "classes", len(d.Classes),
		"train", len(trainIdx), "valid", len(validIdx), "num_trials", t.cfg.NumTrials)

	pictures, err := loadPictures(ctx, paths, classificationThumbSide, t.cfg.Threads)
	if err != nil {
		return nil, err
	}

	models := make([]*ImageClassifier, max(1, t.cfg.NumTrials))
	trainAcc := make([]float64, len(models))
	objective := func(ctx context.Context, trial *trainer.Trial) (float64, error) {
		hp := hyperparametersOf(trial.Params)
		grids := make([]*vision.Grid, len(pictures))
		parallel.ForEach(len(pictures), t.cfg.Threads, func(i int) {
			grids[i] = vision.Quantize(pictures[i].thumb, hp.GridSize, hp.Levels)
		})

		samples := make([]ensemble.Sample, len(trainIdx))
		for i, idx := range trainIdx {
			samples[i] = gridSample{Grid: grids[idx], label: uint16(labels[idx])}
		}
		e, err := ensemble.New(len(d.Classes), vision.Positions(hp.GridSize))
		if err != nil {
			return 0, err
		}
		if err := e.Train(ctx, t.cfg.hyperParameters(t.cfg.Seed+int64(trial.Number), logger), samples); err != nil {
			return 0, err
		}
		m := &ImageClassifier{Classes: d.Classes, GridSize: hp.GridSize, Levels: hp.Levels, Ensemble: e}

		preds, sum := trainer.Evaluate(len(validIdx), t.cfg.Threads, func(i int) uint16 {
			return uint16(m.classify(grids[validIdx[i]]))
		})
		trial.Fingerprint = sum
		valid := make([]int, len(validIdx))
		for i, idx := range validIdx {
			valid[i] = labels[idx]
		}

		n := trainer.SampleSize(len(trainIdx), 95)
		trainPreds, _ := trainer.Evaluate(n, t.cfg.Threads, func(i int) uint16 {
			return uint16(m.classify(grids[trainIdx[i]]))
		})
		trained := make([]int, n)
		for i := range trained {
			trained[i] = labels[trainIdx[i]]
		}

		models[trial.Number] = m
		trainAcc[trial.Number] = metrics.Accuracy(toInts(trainPreds), trained)
		return metrics.Accuracy(toInts(preds), valid), nil
	}

	best, trials, err := t.search(ctx, logger, classificationSpace, DefaultHyperparameters.point(false), objective)
	if err != nil {
		return nil, err
	}
	t.finish(logger, start, best, trials, KeyValidAcc, Summary{
		KeyTrainAcc: trainAcc[best.Number],
		KeyValidAcc: best.Metric,
	})
	return models[best.Number], nil
}

func toInts(v []uint16) []int {
	out := make([]int, len(v))
	for i, x := range v {
		out[i] = int(x)
	}
	return out
}

// ImageClassifier is a fitted image classifier.
type ImageClassifier struct {
	Classes  []string           `json:"classes"`
	GridSize int                `json:"grid_size"`
	Levels   int                `json:"levels"`
	Ensemble *ensemble.Ensemble `json:"ensemble"`
}

func (m *ImageClassifier) classify(g *vision.Grid) int {
	class, _ := m.Ensemble.Predict(g)
	return class
}

// PredictImage returns the class index of img and the share of votes it got.
func (m *ImageClassifier) PredictImage(img image.Image) (int, float64) {
	g := vision.Quantize(vision.Thumbnail(img, classificationThumbSide), m.GridSize, m.Levels)
	return m.Ensemble.Predict(g)
}

// Predict classifies the image file at path.
func (m *ImageClassifier) Predict(path string) (class string, confidence float64, err error) {
	img, err := vision.Load(path)
	if err != nil {
		return "", 0, err
	}
	c, confidence := m.PredictImage(img)
	return m.Classes[c], confidence, nil
}

// Evaluate returns the accuracy of m on the labeled images of d. Class names
// are matched by name, so d may order its classes differently.
func (m *ImageClassifier) Evaluate(ctx context.Context, d *folders.Dataset, threads int) (float64, error) {
	index := make(map[string]int, len(m.Classes))
	for i, c := range m.Classes {
		index[c] = i
	}
	var paths []string
	var labels []int
	for _, it := range d.Items {
		if it.Label < 0 {
			continue
		}
		l, ok := index[d.Classes[it.Label]]
		if !ok {
			l = len(m.Classes) // never predicted
		}
		paths = append(paths, it.Path)
		labels = append(labels, l)
	}
	pictures, err := loadPictures(ctx, paths, classificationThumbSide, max(1, threads))
	if err != nil {
		return 0, err
	}
	preds := make([]int, len(pictures))
	parallel.ForEach(len(pictures), max(1, threads), func(i int) {
		preds[i] = m.classify(vision.Quantize(pictures[i].thumb, m.GridSize, m.Levels))
	})
	return metrics.Accuracy(preds, labels), nil
}

// Save writes m to path as JSON.
func (m *ImageClassifier) Save(path string) error {
	return saveJSON(path, m)
}

// LoadImageClassifier reads a classifier written by Save.
func LoadImageClassifier(path string) (*ImageClassifier, error) {
	m := new(ImageClassifier)
	if err := loadJSON(path, m); err != nil {
		return nil, err
	}
	if m.Ensemble == nil || len(m.Classes) != m.Ensemble.Classes() {
		return nil, errors.Errorf("%s: inconsistent classifier", path)
	}
	return m, nil
}

func saveJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.WriteFile(path, data, 0o644))
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.Wrapf(json.Unmarshal(data, v), "decoding %s", path)
}
