package tasks

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurlang/automl/datasets/folders"
	"github.com/neurlang/automl/datasets/synthetic"
	"github.com/neurlang/automl/datasets/voc"
)

func classificationData(t *testing.T) (train, test *folders.Dataset) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, synthetic.WriteFolders(dir, synthetic.FoldersOptions{PerClass: 10}))
	train, _, test, err := folders.Load(dir)
	require.NoError(t, err)
	return train, test
}

func detectionData(t *testing.T) *voc.Dataset {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, synthetic.WriteVOC(dir, synthetic.VOCOptions{Images: 16}))
	d, err := voc.Load(dir)
	require.NoError(t, err)
	return d
}

func TestImageClassificationFit(t *testing.T) {
	train, test := classificationData(t)
	m := NewMetrics(prometheus.NewRegistry())
	task, err := NewImageClassification(Config{NumTrials: 1, Threads: 4}, WithMetrics(m))
	require.NoError(t, err)
	assert.Equal(t, 0.0, task.Summary().Get(KeyValidAcc, 0))

	model, err := task.Fit(context.Background(), train)
	require.NoError(t, err)

	summary := task.Summary()
	assert.Greater(t, summary.Get(KeyValidAcc, 0), 0.0)
	assert.Equal(t, 1.0, summary.Get(KeyNumTrials, 0))
	assert.Equal(t, 0.0, summary.Get(KeyBestTrial, -1))
	assert.Contains(t, summary, KeyTrainAcc)
	assert.Contains(t, summary, KeyTotalTime)
	assert.Equal(t, DefaultHyperparameters.GridSize, model.GridSize)

	acc, err := model.Evaluate(context.Background(), test, 2)
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc)

	class, confidence, err := model.Predict(test.Items[0].Path)
	require.NoError(t, err)
	assert.Equal(t, test.Classes[test.Items[0].Label], class)
	assert.Greater(t, confidence, 0.0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.trials.WithLabelValues(classificationTask, "ok")))
	assert.Equal(t, summary.Get(KeyValidAcc, 0), testutil.ToFloat64(m.best.WithLabelValues(classificationTask, KeyValidAcc)))
}

func TestImageClassificationSaveLoad(t *testing.T) {
	train, test := classificationData(t)
	task, err := NewImageClassification(Config{Threads: 2})
	require.NoError(t, err)
	model, err := task.Fit(context.Background(), train)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, model.Save(path))
	loaded, err := LoadImageClassifier(path)
	require.NoError(t, err)
	for _, it := range test.Items {
		a, _, err := model.Predict(it.Path)
		require.NoError(t, err)
		b, _, err := loaded.Predict(it.Path)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

func TestImageClassificationSeveralTrials(t *testing.T) {
	train, _ := classificationData(t)
	task, err := NewImageClassification(Config{NumTrials: 3, ParallelTrials: 2, Threads: 2, SearchStrategy: "grid"})
	require.NoError(t, err)
	_, err = task.Fit(context.Background(), train)
	require.NoError(t, err)
	assert.Equal(t, 3.0, task.Summary().Get(KeyNumTrials, 0))
	assert.Greater(t, task.Summary().Get(KeyValidAcc, 0), 0.0)
}

func TestImageClassificationEmpty(t *testing.T) {
	task, err := NewImageClassification(Config{})
	require.NoError(t, err)

	_, err = task.Fit(context.Background(), &folders.Dataset{})
	assert.ErrorIs(t, err, ErrEmptyDataset)

	_, err = task.Fit(context.Background(), &folders.Dataset{Classes: []string{"a"}, Items: []folders.Item{{Path: "x.png"}}})
	assert.ErrorIs(t, err, ErrEmptyDataset)
	assert.Empty(t, task.Summary())
}

func TestImageClassificationSingletonClasses(t *testing.T) {
	task, err := NewImageClassification(Config{})
	require.NoError(t, err)

	d := &folders.Dataset{
		Classes: []string{"a", "b"},
		Items:   []folders.Item{{Path: "a.png", Label: 0}, {Path: "b.png", Label: 1}},
	}
	_, err = task.Fit(context.Background(), d)
	assert.ErrorIs(t, err, ErrEmptyDataset)
	assert.Empty(t, task.Summary())
}

func TestImageClassificationCancelled(t *testing.T) {
	train, _ := classificationData(t)
	task, err := NewImageClassification(Config{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = task.Fit(ctx, train)
	assert.Error(t, err)
	assert.Empty(t, task.Summary())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := NewImageClassification(Config{NumTrials: -1})
	assert.Error(t, err)
	_, err = NewObjectDetection(Config{SearchStrategy: "nope"})
	assert.Error(t, err)
}

func TestObjectDetectionFit(t *testing.T) {
	d := detectionData(t)
	task, err := NewObjectDetection(Config{NumTrials: 1, Threads: 4, ValidFraction: 0.25})
	require.NoError(t, err)

	model, err := task.Fit(context.Background(), d)
	require.NoError(t, err)

	summary := task.Summary()
	assert.Greater(t, summary.Get(KeyValidMAP, 0), 0.0)
	assert.Contains(t, summary, KeyTrainMAP)
	assert.Equal(t, 1.0, summary.Get(KeyNumTrials, 0))
	assert.Equal(t, DefaultHyperparameters.Cells, model.Cells)

	mAP, err := model.Evaluate(context.Background(), d, 2)
	require.NoError(t, err)
	assert.Greater(t, mAP, 0.5)

	dets, err := model.Detect(d.Items[0].ImagePath)
	require.NoError(t, err)
	require.NotEmpty(t, dets)
	assert.Equal(t, "motorbike", dets[0].Class)

	path := filepath.Join(t.TempDir(), "detector.json")
	require.NoError(t, model.Save(path))
	loaded, err := LoadObjectDetector(path)
	require.NoError(t, err)
	again, err := loaded.Detect(d.Items[0].ImagePath)
	require.NoError(t, err)
	assert.Equal(t, dets, again)
}

func TestObjectDetectionEmpty(t *testing.T) {
	task, err := NewObjectDetection(Config{})
	require.NoError(t, err)
	_, err = task.Fit(context.Background(), &voc.Dataset{})
	assert.ErrorIs(t, err, ErrEmptyDataset)
	_, err = task.Fit(context.Background(), &voc.Dataset{Classes: []string{"a"}, Items: []voc.Item{{ID: "1"}}})
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestCellLabel(t *testing.T) {
	d := detectionData(t)
	p, err := loadPicture(d.Items[0].ImagePath, detectionThumbSide)
	require.NoError(t, err)
	obj := d.Items[0].Objects[0]

	var positives int
	for _, s := range cellSamples(p, d.Items[0].Objects, DefaultHyperparameters) {
		if s.Output() != 0 {
			positives++
			assert.Equal(t, uint16(obj.Class+1), s.Output())
		}
	}
	assert.Equal(t, 1, positives)
}
