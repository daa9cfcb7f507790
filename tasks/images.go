package tasks

import (
	"context"
	"image"

	"golang.org/x/sync/errgroup"

	"github.com/neurlang/automl/vision"
)

// thumbSide bounds the longer side of the images kept in memory during a fit.
const (
	classificationThumbSide = vision.MaxGridSize
	detectionThumbSide      = 2 * vision.MaxGridSize
)

// picture is a decoded and shrunk image with the size of the original.
type picture struct {
	thumb *image.RGBA
	size  image.Point
}

// scale returns the factors mapping thumbnail coordinates to the original.
func (p picture) scale() (float64, float64) {
	b := p.thumb.Bounds()
	return float64(p.size.X) / float64(b.Dx()), float64(p.size.Y) / float64(b.Dy())
}

func loadPicture(path string, side int) (picture, error) {
	img, err := vision.Load(path)
	if err != nil {
		return picture{}, err
	}
	return newPicture(img, side), nil
}

func newPicture(img image.Image, side int) picture {
	return picture{thumb: vision.Thumbnail(img, side), size: img.Bounds().Size()}
}

// loadPictures decodes the images at paths, threads at a time.
func loadPictures(ctx context.Context, paths []string, side, threads int) ([]picture, error) {
	out := make([]picture, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := loadPicture(path, side)
			if err != nil {
				return err
			}
			out[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// gridSample is a quantized image with its expected class code.
type gridSample struct {
	*vision.Grid
	label uint16
}

func (s gridSample) Output() uint16 { return s.label }
