// Package voc loads object detection datasets in the Pascal VOC layout:
//
//	root/Annotations/<id>.xml
//	root/JPEGImages/<image>
//	root/ImageSets/Main/<split>.txt
//
// Boxes are converted to 0-based pixel coordinates.
package voc

import (
	"bufio"
	"context"
	"encoding/xml"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrNoAnnotations is returned when a dataset holds no annotated image.
var ErrNoAnnotations = errors.New("dataset has no annotations")

// Fetcher resolves a location to a local directory.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (string, error)
}

// Box is an axis aligned rectangle in pixels, corners inclusive.
type Box struct {
	XMin, YMin, XMax, YMax float64
}

// Width of b.
func (b Box) Width() float64 { return b.XMax - b.XMin }

// Height of b.
func (b Box) Height() float64 { return b.YMax - b.YMin }

// Area of b, zero for degenerate boxes.
func (b Box) Area() float64 {
	if b.XMax <= b.XMin || b.YMax <= b.YMin {
		return 0
	}
	return b.Width() * b.Height()
}

// Object is one annotated object.
type Object struct {
	Class     int
	Name      string
	Box       Box
	Difficult bool
}

// Item is one annotated image.
type Item struct {
	ID        string
	ImagePath string
	Width     int
	Height    int
	Objects   []Object
}

// Dataset is a loaded VOC dataset. It is not modified after loading.
type Dataset struct {
	Root    string
	Classes []string
	Items   []Item
}

// Len returns the number of images.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Items)
}

type annotation struct {
	Filename string `xml:"filename"`
	Size     struct {
		Width  int `xml:"width"`
		Height int `xml:"height"`
	} `xml:"size"`
	Objects []struct {
		Name      string `xml:"name"`
		Difficult int    `xml:"difficult"`
		Box       struct {
			XMin float64 `xml:"xmin"`
			YMin float64 `xml:"ymin"`
			XMax float64 `xml:"xmax"`
			YMax float64 `xml:"ymax"`
		} `xml:"bndbox"`
	} `xml:"object"`
}

// FromVOC fetches location and loads the images listed in the given splits.
func FromVOC(ctx context.Context, f Fetcher, location string, splits ...string) (*Dataset, error) {
	root, err := f.Fetch(ctx, location)
	if err != nil {
		return nil, err
	}
	return Load(root, splits...)
}

// Load reads the dataset below root. Without splits every split file whose
// name has no underscore is used; without split files every annotation is.
func Load(root string, splits ...string) (*Dataset, error) {
	annotations := filepath.Join(root, "Annotations")
	if info, err := os.Stat(annotations); err != nil || !info.IsDir() {
		return nil, errors.Wrapf(ErrNoAnnotations, "%s", root)
	}
	ids, err := listIDs(root, splits)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, errors.Wrapf(ErrNoAnnotations, "%s", root)
	}

	d := &Dataset{Root: root}
	names := make(map[string]struct{})
	for _, id := range ids {
		item, err := loadItem(root, id)
		if err != nil {
			return nil, err
		}
		for _, o := range item.Objects {
			names[o.Name] = struct{}{}
		}
		d.Items = append(d.Items, item)
	}
	for n := range names {
		d.Classes = append(d.Classes, n)
	}
	sort.Strings(d.Classes)
	index := make(map[string]int, len(d.Classes))
	for i, c := range d.Classes {
		index[c] = i
	}
	for i := range d.Items {
		for j := range d.Items[i].Objects {
			d.Items[i].Objects[j].Class = index[d.Items[i].Objects[j].Name]
		}
	}
	return d, nil
}

func listIDs(root string, splits []string) ([]string, error) {
	sets := filepath.Join(root, "ImageSets", "Main")
	if len(splits) == 0 {
		matches, _ := filepath.Glob(filepath.Join(sets, "*.txt"))
		for _, m := range matches {
			name := strings.TrimSuffix(filepath.Base(m), ".txt")
			if !strings.Contains(name, "_") {
				splits = append(splits, name)
			}
		}
	}
	if len(splits) == 0 {
		matches, err := filepath.Glob(filepath.Join(root, "Annotations", "*.xml"))
		if err != nil {
			return nil, errors.WithStack(err)
		}
		ids := make([]string, 0, len(matches))
		for _, m := range matches {
			ids = append(ids, strings.TrimSuffix(filepath.Base(m), ".xml"))
		}
		sort.Strings(ids)
		return ids, nil
	}

	seen := make(map[string]struct{})
	for _, split := range splits {
		path := filepath.Join(sets, split+".txt")
		if err := readSplit(path, seen); err != nil {
			return nil, err
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func readSplit(path string, into map[string]struct{}) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "reading split")
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) > 0 {
			into[fields[0]] = struct{}{}
		}
	}
	return errors.Wrapf(sc.Err(), "reading %s", path)
}

func loadItem(root, id string) (Item, error) {
	path := filepath.Join(root, "Annotations", id+".xml")
	data, err := os.ReadFile(path)
	if err != nil {
		return Item{}, errors.WithStack(err)
	}
	var a annotation
	if err := xml.Unmarshal(data, &a); err != nil {
		return Item{}, errors.Wrapf(err, "parsing %s", path)
	}
	item := Item{
		ID:        id,
		ImagePath: imagePath(root, id, a.Filename),
		Width:     a.Size.Width,
		Height:    a.Size.Height,
	}
	for _, o := range a.Objects {
		name := strings.TrimSpace(o.Name)
		if name == "" {
			return Item{}, errors.Errorf("%s: object without name", path)
		}
		item.Objects = append(item.Objects, Object{
			Name:      name,
			Difficult: o.Difficult != 0,
			Box: Box{
				XMin: o.Box.XMin - 1,
				YMin: o.Box.YMin - 1,
				XMax: o.Box.XMax - 1,
				YMax: o.Box.YMax - 1,
			},
		})
	}
	return item, nil
}

func imagePath(root, id, filename string) string {
	dir := filepath.Join(root, "JPEGImages")
	if filename != "" {
		p := filepath.Join(dir, filepath.Base(filename))
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, ext := range []string{".jpg", ".jpeg", ".png"} {
		p := filepath.Join(dir, id+ext)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(dir, id+".jpg")
}
