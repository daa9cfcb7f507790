// Package folders loads image classification datasets stored as one
// directory per class:
//
//	root/train/<class>/<image>
//	root/val/<class>/<image>
//	root/test/<class>/<image>
//
// Images placed directly inside a split directory are unlabeled.
package folders

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/neurlang/automl/vision"
)

// Unlabeled is the label of images without a class directory.
const Unlabeled = -1

// ErrNoTrainSplit is returned when the dataset has no train directory.
var ErrNoTrainSplit = errors.New("dataset has no train split")

// Fetcher resolves a location to a local directory.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (string, error)
}

// Item is one image and its class index.
type Item struct {
	Path  string
	Label int
}

// Dataset is one split of a folder dataset. It is not modified after loading.
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

// Subset returns a dataset holding the items at the given indices.
func (d *Dataset) Subset(indices []int) *Dataset {
	out := &Dataset{Root: d.Root, Classes: d.Classes, Items: make([]Item, 0, len(indices))}
	for _, i := range indices {
		out.Items = append(out.Items, d.Items[i])
	}
	return out
}

// Labels returns the class index of every item.
func (d *Dataset) Labels() []int {
	out := make([]int, len(d.Items))
	for i, it := range d.Items {
		out[i] = it.Label
	}
	return out
}

var splitNames = map[string][]string{
	"train": {"train"},
	"val":   {"val", "valid", "validation"},
	"test":  {"test"},
}

// FromFolders fetches location and loads its train, validation and test
// splits. Missing validation or test directories give empty datasets.
func FromFolders(ctx context.Context, f Fetcher, location string) (train, val, test *Dataset, err error) {
	root, err := f.Fetch(ctx, location)
	if err != nil {
		return nil, nil, nil, err
	}
	return Load(root)
}

// Load reads the splits below root.
func Load(root string) (train, val, test *Dataset, err error) {
	dir := findSplit(root, "train")
	if dir == "" {
		return nil, nil, nil, errors.Wrapf(ErrNoTrainSplit, "%s", root)
	}
	classes, err := classDirs(dir)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(classes) == 0 {
		return nil, nil, nil, errors.Errorf("%s: no class directories", dir)
	}
	if train, err = LoadSplit(dir, classes); err != nil {
		return nil, nil, nil, err
	}
	if val, err = loadOptional(root, "val", classes); err != nil {
		return nil, nil, nil, err
	}
	if test, err = loadOptional(root, "test", classes); err != nil {
		return nil, nil, nil, err
	}
	return train, val, test, nil
}

func loadOptional(root, split string, classes []string) (*Dataset, error) {
	dir := findSplit(root, split)
	if dir == "" {
		return &Dataset{Classes: classes}, nil
	}
	return LoadSplit(dir, classes)
}

func findSplit(root, split string) string {
	for _, name := range splitNames[split] {
		dir := filepath.Join(root, name)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}

func classDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var classes []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			classes = append(classes, e.Name())
		}
	}
	sort.Strings(classes)
	return classes, nil
}

// LoadSplit reads one split directory using the given class index. Class
// directories missing from classes are an error.
func LoadSplit(dir string, classes []string) (*Dataset, error) {
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	d := &Dataset{Root: dir, Classes: classes}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if !e.IsDir() {
			if vision.IsImage(name) {
				d.Items = append(d.Items, Item{Path: filepath.Join(dir, name), Label: Unlabeled})
			}
			continue
		}
		label, ok := index[name]
		if !ok {
			return nil, errors.Errorf("%s: unknown class %q", dir, name)
		}
		images, err := listImages(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		for _, p := range images {
			d.Items = append(d.Items, Item{Path: p, Label: label})
		}
	}
	return d, nil
}

func listImages(dir string) (out []string, err error) {
	err = filepath.WalkDir(dir, func(path string, e os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !e.IsDir() && vision.IsImage(e.Name()) && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, path)
		}
		return nil
	})
	return out, errors.WithStack(err)
}
