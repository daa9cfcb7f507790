package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neurlang/automl/datasets/voc"
)

func TestAccuracy(t *testing.T) {
	assert.Equal(t, 0.5, Accuracy([]int{1, 0, 2, 2}, []int{1, 1, 2, 0}))
	assert.Equal(t, 1.0, Accuracy([]int{3, 9}, []int{3, -1}))
	assert.Equal(t, 0.0, Accuracy(nil, nil))
	assert.Equal(t, 0.0, Accuracy([]int{1}, []int{-1}))
}

func TestIoU(t *testing.T) {
	a := voc.Box{XMin: 0, YMin: 0, XMax: 10, YMax: 10}
	assert.Equal(t, 1.0, IoU(a, a))
	assert.InDelta(t, 25.0/175.0, IoU(a, voc.Box{XMin: 5, YMin: 5, XMax: 15, YMax: 15}), 1e-9)
	assert.Equal(t, 0.0, IoU(a, voc.Box{XMin: 20, YMin: 20, XMax: 30, YMax: 30}))
	assert.Equal(t, 0.0, IoU(voc.Box{}, voc.Box{}))
}

func TestAP(t *testing.T) {
	// two positives, detections TP, FP, TP
	recall := []float64{0.5, 0.5, 1}
	precision := []float64{1, 0.5, 2.0 / 3}
	assert.InDelta(t, 0.5+0.5*2.0/3, AP(recall, precision, false), 1e-9)
	// 0.0..0.5 -> 1 (6 points), 0.6..1.0 -> 2/3 (5 points)
	assert.InDelta(t, (6+5*2.0/3)/11, AP(recall, precision, true), 1e-9)
	assert.Equal(t, 0.0, AP(nil, nil, false))
}

func TestMeanAP(t *testing.T) {
	box := voc.Box{XMin: 0, YMin: 0, XMax: 10, YMax: 10}
	far := voc.Box{XMin: 50, YMin: 50, XMax: 60, YMax: 60}
	truth := [][]voc.Object{
		{{Class: 0, Box: box}},
		{{Class: 0, Box: box}, {Class: 1, Box: far, Difficult: true}},
	}
	dets := []Detection{
		{Image: 0, Class: 0, Score: 0.9, Box: box},
		{Image: 1, Class: 0, Score: 0.8, Box: far},
		{Image: 1, Class: 0, Score: 0.7, Box: box},
		{Image: 1, Class: 1, Score: 0.9, Box: far},
	}
	mean, perClass := MeanAP(dets, truth, 2, 0.5, false)
	assert.InDelta(t, 0.5+0.5*2.0/3, perClass[0], 1e-9)
	assert.True(t, math.IsNaN(perClass[1]))
	assert.InDelta(t, perClass[0], mean, 1e-9)
}

func TestMeanAPDuplicateIsFalsePositive(t *testing.T) {
	box := voc.Box{XMin: 0, YMin: 0, XMax: 10, YMax: 10}
	truth := [][]voc.Object{{{Class: 0, Box: box}}}
	dets := []Detection{
		{Image: 0, Class: 0, Score: 0.9, Box: box},
		{Image: 0, Class: 0, Score: 0.8, Box: box},
	}
	mean, _ := MeanAP(dets, truth, 1, 0.5, false)
	assert.Equal(t, 1.0, mean)

	mean, _ = MeanAP(nil, truth, 1, 0.5, false)
	assert.Equal(t, 0.0, mean)

	mean, _ = MeanAP(dets, [][]voc.Object{{}}, 1, 0.5, false)
	assert.Equal(t, 0.0, mean)
}
