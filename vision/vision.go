// Package vision turns images into hashtron features.
//
// An image is resized to a small square grid and every pixel is quantized to
// a few levels per colour channel. Feature n packs the 2x2 patch whose top
// left corner is the n-th pixel of the grid (excluding the last row and
// column) into one uint32, one byte per pixel.
package vision

import (
	"image"
	_ "image/gif" // decoders
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Limits of the quantization parameters.
const (
	MinGridSize = 2
	MaxGridSize = 64
	MinLevels   = 2
	MaxLevels   = 6 // 6*6*6 colours still fit into a byte
)

var extensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".bmp": {}, ".webp": {},
}

// IsImage reports whether the file name has a supported image extension.
func IsImage(name string) bool {
	_, ok := extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Load decodes the image stored at path.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return img, nil
}

// Grid is a quantized square image.
type Grid struct {
	Size   int
	Levels int
	Pix    []byte
}

// Quantize resizes img to size x size and quantizes every channel to levels
// values. Out of range parameters are clamped.
func Quantize(img image.Image, size, levels int) *Grid {
	size = clamp(size, MinGridSize, MaxGridSize)
	levels = clamp(levels, MinLevels, MaxLevels)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	g := &Grid{Size: size, Levels: levels, Pix: make([]byte, size*size)}
	for i := range g.Pix {
		r, gr, b := dst.Pix[4*i], dst.Pix[4*i+1], dst.Pix[4*i+2]
		g.Pix[i] = byte((level(r, levels)*levels+level(gr, levels))*levels + level(b, levels))
	}
	return g
}

func level(v byte, levels int) int {
	return int(v) * levels / 256
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Positions returns the number of distinct features of a grid of the given size.
func Positions(size int) int {
	size = clamp(size, MinGridSize, MaxGridSize)
	return (size - 1) * (size - 1)
}

// Positions returns the number of features of g.
func (g *Grid) Positions() int {
	return (g.Size - 1) * (g.Size - 1)
}

// Feature returns the n-th 2x2 patch of g.
func (g *Grid) Feature(n int) uint32 {
	n %= g.Positions()
	x, y := n%(g.Size-1), n/(g.Size-1)
	i := y*g.Size + x
	return uint32(g.Pix[i]) | uint32(g.Pix[i+1])<<8 | uint32(g.Pix[i+g.Size])<<16 | uint32(g.Pix[i+g.Size+1])<<24
}

// Thumbnail returns a copy of img whose longer side is at most maxSide,
// keeping the aspect ratio. Images already small enough are copied unscaled.
// The result's origin is (0, 0).
func Thumbnail(img image.Image, maxSide int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if s := max(w, h); maxSide > 0 && s > maxSide {
		w = max(1, w*maxSide/s)
		h = max(1, h*maxSide/s)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	}
	return dst
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Crop returns the part of img inside r. The result may share pixels with img.
func Crop(img image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(img.Bounds())
	if s, ok := img.(subImager); ok {
		return s.SubImage(r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

// Cells splits bounds into an n x n grid of rectangles, row by row. The last
// row and column absorb the remainder.
func Cells(bounds image.Rectangle, n int) []image.Rectangle {
	if n < 1 {
		n = 1
	}
	w, h := bounds.Dx(), bounds.Dy()
	out := make([]image.Rectangle, 0, n*n)
	for cy := 0; cy < n; cy++ {
		for cx := 0; cx < n; cx++ {
			out = append(out, image.Rect(
				bounds.Min.X+cx*w/n, bounds.Min.Y+cy*h/n,
				bounds.Min.X+(cx+1)*w/n, bounds.Min.Y+(cy+1)*h/n,
			))
		}
	}
	return out
}
