// Package metrics computes classification accuracy and Pascal VOC mean
// average precision.
package metrics

import (
	"math"
	"sort"

	"github.com/neurlang/automl/datasets/voc"
)

// Accuracy returns the share of labels predicted correctly. Negative labels
// are unlabeled and skipped. Zero is returned when nothing is labeled.
func Accuracy(predicted, labels []int) float64 {
	var correct, total int
	for i, l := range labels {
		if l < 0 || i >= len(predicted) {
			continue
		}
		total++
		if predicted[i] == l {
			correct++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}

// IoU returns the intersection over union of two boxes.
func IoU(a, b voc.Box) float64 {
	inter := voc.Box{
		XMin: math.Max(a.XMin, b.XMin),
		YMin: math.Max(a.YMin, b.YMin),
		XMax: math.Min(a.XMax, b.XMax),
		YMax: math.Min(a.YMax, b.YMax),
	}.Area()
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Detection is one predicted box on image Image.
type Detection struct {
	Image int
	Class int
	Score float64
	Box   voc.Box
}

// AP returns the average precision of a precision/recall curve ordered by
// decreasing score. With elevenPoint the VOC2007 11-point interpolation is
// used, otherwise the area under the interpolated curve.
func AP(recall, precision []float64, elevenPoint bool) float64 {
	if elevenPoint {
		var ap float64
		for i := 0; i <= 10; i++ {
			t := float64(i) / 10
			var p float64
			for j, r := range recall {
				if r >= t && precision[j] > p {
					p = precision[j]
				}
			}
			ap += p / 11
		}
		return ap
	}

	mrec := append(append([]float64{0}, recall...), 1)
	mpre := append(append([]float64{0}, precision...), 0)
	for i := len(mpre) - 2; i >= 0; i-- {
		mpre[i] = math.Max(mpre[i], mpre[i+1])
	}
	var ap float64
	for i := 1; i < len(mrec); i++ {
		if mrec[i] != mrec[i-1] {
			ap += (mrec[i] - mrec[i-1]) * mpre[i]
		}
	}
	return ap
}

// MeanAP evaluates detections against the ground truth objects of every image
// at the given IoU threshold. Difficult objects are neither required nor
// penalized. Classes without non-difficult objects are NaN in perClass and
// left out of the mean; the mean is 0 when no class can be evaluated.
func MeanAP(detections []Detection, truth [][]voc.Object, classes int, threshold float64, elevenPoint bool) (mean float64, perClass []float64) {
	perClass = make([]float64, classes)
	var n int
	for c := 0; c < classes; c++ {
		perClass[c] = classAP(detections, truth, c, threshold, elevenPoint)
		if !math.IsNaN(perClass[c]) {
			mean += perClass[c]
			n++
		}
	}
	if n == 0 {
		return 0, perClass
	}
	return mean / float64(n), perClass
}

func classAP(detections []Detection, truth [][]voc.Object, class int, threshold float64, elevenPoint bool) float64 {
	var positives int
	matched := make([][]bool, len(truth))
	for i, objects := range truth {
		matched[i] = make([]bool, len(objects))
		for _, o := range objects {
			if o.Class == class && !o.Difficult {
				positives++
			}
		}
	}
	if positives == 0 {
		return math.NaN()
	}

	var dets []Detection
	for _, d := range detections {
		if d.Class == class && d.Image >= 0 && d.Image < len(truth) {
			dets = append(dets, d)
		}
	}
	sort.SliceStable(dets, func(i, j int) bool { return dets[i].Score > dets[j].Score })

	var tp, fp float64
	recall := make([]float64, 0, len(dets))
	precision := make([]float64, 0, len(dets))
	for _, d := range dets {
		best, bestIoU := -1, threshold
		for j, o := range truth[d.Image] {
			if o.Class != class {
				continue
			}
			if iou := IoU(d.Box, o.Box); iou >= bestIoU {
				best, bestIoU = j, iou
			}
		}
		switch {
		case best < 0:
			fp++
		case truth[d.Image][best].Difficult:
			continue
		case matched[d.Image][best]:
			fp++
		default:
			matched[d.Image][best] = true
			tp++
		}
		recall = append(recall, tp/float64(positives))
		precision = append(precision, tp/(tp+fp))
	}
	return AP(recall, precision, elevenPoint)
}
