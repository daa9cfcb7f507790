package tasks

import (
	"context"
	"image"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/neurlang/automl/datasets/voc"
	"github.com/neurlang/automl/metrics"
	"github.com/neurlang/automl/net/ensemble"
	"github.com/neurlang/automl/trainer"
	"github.com/neurlang/automl/vision"
)

const detectionTask = "object_detection"

// IoUThreshold is the overlap a detection needs to match an object.
const IoUThreshold = 0.5

// defaultBoxSize is the relative box size of classes without training objects.
const defaultBoxSize = 0.25

// ObjectDetection fits object detectors on VOC datasets.
type ObjectDetection struct {
	*runner
}

var _ Runner[*voc.Dataset, *ObjectDetector] = (*ObjectDetection)(nil)

// NewObjectDetection returns a runner configured by cfg.
func NewObjectDetection(cfg Config, opts ...Option) (*ObjectDetection, error) {
	r, err := newRunner(detectionTask, cfg, opts)
	if err != nil {
		return nil, err
	}
	return &ObjectDetection{runner: r}, nil
}

// Fit trains on the annotated images of d. Part of d is held out for
// validation; the summary reports train_map and valid_map of the best trial.
func (t *ObjectDetection) Fit(ctx context.Context, d *voc.Dataset) (*ObjectDetector, error) {
	start := time.Now()
	ctx, cancel, logger := t.begin(ctx)
	defer cancel()

	if d == nil || len(d.Classes) == 0 {
		return nil, errors.Wrap(ErrEmptyDataset, "no annotated objects")
	}
	if len(d.Items) < 2 {
		return nil, errors.Wrapf(ErrEmptyDataset, "%d images", len(d.Items))
	}

	paths := make([]string, len(d.Items))
	labels := make([]int, len(d.Items))
	truth := make([][]voc.Object, len(d.Items))
	for i, it := range d.Items {
		paths[i] = it.ImagePath
		truth[i] = it.Objects
		labels[i] = -1
		if len(it.Objects) > 0 {
			labels[i] = it.Objects[0].Class
		}
	}
	trainIdx, validIdx := holdout(labels, t.cfg.ValidFraction, t.cfg.Seed)
	if len(validIdx) == 0 {
		return nil, errors.Wrap(ErrEmptyDataset, "no class has two images to hold one out")
	}
	logger.Info("fit started", "images", len(d.Items), "classes", len(d.Classes),
		"train", len(trainIdx), "valid", len(validIdx), "num_trials", t.cfg.NumTrials)

	pictures, err := loadPictures(ctx, paths, detectionThumbSide, t.cfg.Threads)
	if err != nil {
		return nil, err
	}
	boxSizes := meanBoxSizes(len(d.Classes), pictures, truth, trainIdx)

	subset := func(idx []int) ([]picture, [][]voc.Object) {
		pics := make([]picture, len(idx))
		objs := make([][]voc.Object, len(idx))
		for i, j := range idx {
			pics[i], objs[i] = pictures[j], truth[j]
		}
		return pics, objs
	}
	validPics, validTruth := subset(validIdx)
	trainPics, trainTruth := subset(trainIdx[:trainer.SampleSize(len(trainIdx), 95)])

	models := make([]*ObjectDetector, max(1, t.cfg.NumTrials))
	trainMAP := make([]float64, len(models))
	objective := func(ctx context.Context, trial *trainer.Trial) (float64, error) {
		hp := hyperparametersOf(trial.Params)
		var samples []ensemble.Sample
		for _, idx := range trainIdx {
			samples = append(samples, cellSamples(pictures[idx], truth[idx], hp)...)
		}
		e, err := ensemble.New(len(d.Classes)+1, vision.Positions(hp.GridSize))
		if err != nil {
			return 0, err
		}
		if err := e.Train(ctx, t.cfg.hyperParameters(t.cfg.Seed+int64(trial.Number), logger), samples); err != nil {
			return 0, err
		}
		m := &ObjectDetector{
			Classes:  d.Classes,
			GridSize: hp.GridSize,
			Levels:   hp.Levels,
			Cells:    hp.Cells,
			BoxSizes: boxSizes,
			Ensemble: e,
		}

		dets, sum := m.detectAll(validPics, t.cfg.Threads)
		trial.Fingerprint = sum
		validMAP, _ := metrics.MeanAP(dets, validTruth, len(d.Classes), IoUThreshold, false)

		dets, _ = m.detectAll(trainPics, t.cfg.Threads)
		trainMAP[trial.Number], _ = metrics.MeanAP(dets, trainTruth, len(d.Classes), IoUThreshold, false)
		models[trial.Number] = m
		return validMAP, nil
	}

	best, trials, err := t.search(ctx, logger, detectionSpace, DefaultHyperparameters.point(true), objective)
	if err != nil {
		return nil, err
	}
	t.finish(logger, start, best, trials, KeyValidMAP, Summary{
		KeyTrainMAP: trainMAP[best.Number],
		KeyValidMAP: best.Metric,
	})
	return models[best.Number], nil
}

// meanBoxSizes returns the mean object width and height of every class,
// relative to the image size.
func meanBoxSizes(classes int, pictures []picture, truth [][]voc.Object, idx []int) [][2]float64 {
	sums := make([][2]float64, classes)
	counts := make([]int, classes)
	for _, i := range idx {
		size := pictures[i].size
		for _, o := range truth[i] {
			sums[o.Class][0] += o.Box.Width() / float64(size.X)
			sums[o.Class][1] += o.Box.Height() / float64(size.Y)
			counts[o.Class]++
		}
	}
	out := make([][2]float64, classes)
	for c := range out {
		if counts[c] == 0 {
			out[c] = [2]float64{defaultBoxSize, defaultBoxSize}
			continue
		}
		out[c] = [2]float64{sums[c][0] / float64(counts[c]), sums[c][1] / float64(counts[c])}
	}
	return out
}

// cellLabel returns 1 + the class of the largest object centred in cell, or
// 0 for background. cell is in thumbnail coordinates.
func cellLabel(p picture, objects []voc.Object, cell image.Rectangle) uint16 {
	sx, sy := p.scale()
	label, area := uint16(0), -1.0
	for _, o := range objects {
		cx := (o.Box.XMin + o.Box.XMax) / 2 / sx
		cy := (o.Box.YMin + o.Box.YMax) / 2 / sy
		inside := cx >= float64(cell.Min.X) && cx < float64(cell.Max.X) &&
			cy >= float64(cell.Min.Y) && cy < float64(cell.Max.Y)
		if inside && o.Box.Area() > area {
			label, area = uint16(o.Class+1), o.Box.Area()
		}
	}
	return label
}

func cellSamples(p picture, objects []voc.Object, hp Hyperparameters) []ensemble.Sample {
	cells := vision.Cells(p.thumb.Bounds(), hp.Cells)
	out := make([]ensemble.Sample, len(cells))
	for i, cell := range cells {
		out[i] = gridSample{
			Grid:  vision.Quantize(vision.Crop(p.thumb, cell), hp.GridSize, hp.Levels),
			label: cellLabel(p, objects, cell),
		}
	}
	return out
}

// Detection is one detected object.
type Detection struct {
	Class string
	Score float64
	Box   voc.Box
}

// ObjectDetector is a fitted object detector. Every image is divided into
// Cells x Cells cells and each cell is classified as background or as the
// class of an object centred in it.
type ObjectDetector struct {
	Classes  []string           `json:"classes"`
	GridSize int                `json:"grid_size"`
	Levels   int                `json:"levels"`
	Cells    int                `json:"cells"`
	BoxSizes [][2]float64       `json:"box_sizes"` // per class, relative to the image
	Ensemble *ensemble.Ensemble `json:"ensemble"`
}

// box returns the box of class centred on cell, in original image pixels.
func (m *ObjectDetector) box(class int, p picture, cell image.Rectangle) voc.Box {
	sx, sy := p.scale()
	cx := float64(cell.Min.X+cell.Max.X) / 2 * sx
	cy := float64(cell.Min.Y+cell.Max.Y) / 2 * sy
	w := m.BoxSizes[class][0] * float64(p.size.X)
	h := m.BoxSizes[class][1] * float64(p.size.Y)
	maxX, maxY := float64(p.size.X-1), float64(p.size.Y-1)
	return voc.Box{
		XMin: math.Max(0, cx-w/2),
		YMin: math.Max(0, cy-h/2),
		XMax: math.Min(maxX, cx+w/2),
		YMax: math.Min(maxY, cy+h/2),
	}
}

// detectAll detects objects on every picture. Detection.Image is the index
// into pics. The digest covers the class of every cell.
func (m *ObjectDetector) detectAll(pics []picture, threads int) ([]metrics.Detection, [32]byte) {
	per := m.Cells * m.Cells
	cells := make([][]image.Rectangle, len(pics))
	for i, p := range pics {
		cells[i] = vision.Cells(p.thumb.Bounds(), m.Cells)
	}
	scores := make([]float64, len(pics)*per)
	classes, sum := trainer.Evaluate(len(scores), threads, func(i int) uint16 {
		p, cell := pics[i/per], cells[i/per][i%per]
		g := vision.Quantize(vision.Crop(p.thumb, cell), m.GridSize, m.Levels)
		class, score := m.Ensemble.Predict(g)
		scores[i] = score
		return uint16(class)
	})

	var out []metrics.Detection
	for i, class := range classes {
		if class == 0 {
			continue
		}
		out = append(out, metrics.Detection{
			Image: i / per,
			Class: int(class) - 1,
			Score: scores[i],
			Box:   m.box(int(class)-1, pics[i/per], cells[i/per][i%per]),
		})
	}
	return out, sum
}

// DetectImage returns the objects found on img.
func (m *ObjectDetector) DetectImage(img image.Image) []Detection {
	dets, _ := m.detectAll([]picture{newPicture(img, detectionThumbSide)}, 1)
	out := make([]Detection, len(dets))
	for i, d := range dets {
		out[i] = Detection{Class: m.Classes[d.Class], Score: d.Score, Box: d.Box}
	}
	return out
}

// Detect returns the objects found on the image file at path.
func (m *ObjectDetector) Detect(path string) ([]Detection, error) {
	img, err := vision.Load(path)
	if err != nil {
		return nil, err
	}
	return m.DetectImage(img), nil
}

// Evaluate returns the VOC mean average precision of m on d. Classes are
// matched by name.
func (m *ObjectDetector) Evaluate(ctx context.Context, d *voc.Dataset, threads int) (float64, error) {
	index := make(map[string]int, len(m.Classes))
	for i, c := range m.Classes {
		index[c] = i
	}
	paths := make([]string, len(d.Items))
	truth := make([][]voc.Object, len(d.Items))
	for i, it := range d.Items {
		paths[i] = it.ImagePath
		for _, o := range it.Objects {
			c, ok := index[o.Name]
			if !ok {
				continue
			}
			o.Class = c
			truth[i] = append(truth[i], o)
		}
	}
	pics, err := loadPictures(ctx, paths, detectionThumbSide, max(1, threads))
	if err != nil {
		return 0, err
	}
	dets, _ := m.detectAll(pics, max(1, threads))
	mean, _ := metrics.MeanAP(dets, truth, len(m.Classes), IoUThreshold, false)
	return mean, nil
}

// Save writes m to path as JSON.
func (m *ObjectDetector) Save(path string) error {
	return saveJSON(path, m)
}

// LoadObjectDetector reads a detector written by Save.
func LoadObjectDetector(path string) (*ObjectDetector, error) {
	m := new(ObjectDetector)
	if err := loadJSON(path, m); err != nil {
		return nil, err
	}
	if m.Ensemble == nil || len(m.Classes)+1 != m.Ensemble.Classes() || len(m.BoxSizes) != len(m.Classes) || m.Cells < 1 {
		return nil, errors.Errorf("%s: inconsistent detector", path)
	}
	return m, nil
}
