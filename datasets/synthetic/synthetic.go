// Package synthetic writes small deterministic datasets in the folder and
// VOC layouts. Every class has its own solid colour, so the datasets can be
// learned exactly, which makes them suitable for end to end tests.
package synthetic

import (
	"archive/zip"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Palette holds the class colours. Every channel is 0 or 255, so colours stay
// distinct at any quantization level.
var Palette = []color.RGBA{
	{255, 0, 0, 255},
	{0, 255, 0, 255},
	{0, 0, 255, 255},
	{255, 255, 0, 255},
	{255, 0, 255, 255},
	{0, 255, 255, 255},
	{255, 255, 255, 255},
}

// Background is the colour behind detection objects.
var Background = color.RGBA{0, 0, 0, 255}

// FoldersOptions configure WriteFolders.
type FoldersOptions struct {
	Classes  []string
	PerClass int // images per class and split
	Size     int // image width and height
}

func (o FoldersOptions) withDefaults() FoldersOptions {
	if len(o.Classes) == 0 {
		o.Classes = []string{"bags", "shoes", "watches", "tops"}
	}
	if o.PerClass <= 0 {
		o.PerClass = 4
	}
	if o.Size <= 0 {
		o.Size = 32
	}
	return o
}

// WriteFolders writes train, val and test splits below dir.
func WriteFolders(dir string, opts FoldersOptions) error {
	opts = opts.withDefaults()
	if len(opts.Classes) > len(Palette) {
		return errors.Errorf("at most %d classes supported", len(Palette))
	}
	for _, split := range []string{"train", "val", "test"} {
		for c, class := range opts.Classes {
			for i := 0; i < opts.PerClass; i++ {
				img := solid(opts.Size, opts.Size, Palette[c])
				path := filepath.Join(dir, split, class, fmt.Sprintf("%s_%03d.png", split, i))
				if err := writePNG(path, img); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// VOCOptions configure WriteVOC.
type VOCOptions struct {
	Classes []string
	Images  int // total number of images
	Cells   int // objects are aligned to a Cells x Cells grid
	Size    int // image width and height, a multiple of Cells
	Seed    int64
}

func (o VOCOptions) withDefaults() VOCOptions {
	if len(o.Classes) == 0 {
		o.Classes = []string{"motorbike"}
	}
	if o.Images <= 0 {
		o.Images = 20
	}
	if o.Cells <= 0 {
		o.Cells = 4
	}
	if o.Size <= 0 {
		o.Size = 16 * o.Cells
	}
	if o.Seed == 0 {
		o.Seed = 1
	}
	return o
}

// WriteVOC writes a VOC dataset below dir. Every image holds one object per
// class, each filling exactly one grid cell. The first three quarters of the
// images are listed in the train split, the rest in val.
func WriteVOC(dir string, opts VOCOptions) error {
	opts = opts.withDefaults()
	if len(opts.Classes) > len(Palette) {
		return errors.Errorf("at most %d classes supported", len(Palette))
	}
	if len(opts.Classes) > opts.Cells*opts.Cells {
		return errors.Errorf("%d classes do not fit %d cells", len(opts.Classes), opts.Cells*opts.Cells)
	}
	cell := opts.Size / opts.Cells
	rng := rand.New(rand.NewSource(opts.Seed))
	var train, val []string

	for i := 0; i < opts.Images; i++ {
		id := fmt.Sprintf("%06d", i+1)
		img := solid(opts.Size, opts.Size, Background)
		var objects strings.Builder
		cells := rng.Perm(opts.Cells * opts.Cells)
		for c, class := range opts.Classes {
			x0 := (cells[c] % opts.Cells) * cell
			y0 := (cells[c] / opts.Cells) * cell
			fill(img, image.Rect(x0, y0, x0+cell, y0+cell), Palette[c])
			fmt.Fprintf(&objects, objectXML, class, x0+1, y0+1, x0+cell, y0+cell)
		}
		if err := writePNG(filepath.Join(dir, "JPEGImages", id+".png"), img); err != nil {
			return err
		}
		xml := fmt.Sprintf(annotationXML, id+".png", opts.Size, opts.Size, objects.String())
		if err := writeFile(filepath.Join(dir, "Annotations", id+".xml"), xml); err != nil {
			return err
		}
		if i < opts.Images*3/4 {
			train = append(train, id)
		} else {
			val = append(val, id)
		}
	}
	sets := filepath.Join(dir, "ImageSets", "Main")
	if err := writeFile(filepath.Join(sets, "train.txt"), strings.Join(train, "\n")+"\n"); err != nil {
		return err
	}
	return writeFile(filepath.Join(sets, "val.txt"), strings.Join(val, "\n")+"\n")
}

const annotationXML = `<annotation>
	<folder>JPEGImages</folder>
	<filename>%s</filename>
	<size>
		<width>%d</width>
		<height>%d</height>
		<depth>3</depth>
	</size>
%s</annotation>
`

const objectXML = `	<object>
		<name>%s</name>
		<difficult>0</difficult>
		<bndbox>
			<xmin>%d</xmin>
			<ymin>%d</ymin>
			<xmax>%d</xmax>
			<ymax>%d</ymax>
		</bndbox>
	</object>
`

// Zip packs dir into w. Entry names are prefixed with the base name of dir,
// the way published dataset archives are laid out.
func Zip(w io.Writer, dir string) error {
	zw := zip.NewWriter(w)
	prefix := filepath.Base(dir)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(filepath.Join(prefix, rel))
		if info.IsDir() {
			_, err = zw.Create(name + "/")
			return err
		}
		out, err := zw.Create(name)
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(out, in)
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "packing %s", dir)
	}
	return errors.WithStack(zw.Close())
}

// ZipFile packs dir into the file at path.
func ZipFile(path, dir string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := Zip(f, dir); err != nil {
		f.Close()
		return err
	}
	return errors.WithStack(f.Close())
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill(img, img.Bounds(), c)
	return img
}

func fill(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func writePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WithStack(err)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return errors.Wrapf(err, "encoding %s", path)
	}
	return errors.WithStack(f.Close())
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.WriteFile(path, []byte(content), 0o644))
}
