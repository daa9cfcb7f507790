package trainer

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

// Strategy selects how trial points beyond the first are chosen.
type Strategy string

// Search strategies.
const (
	Random Strategy = "random"
	Grid   Strategy = "grid"
)

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	return s == Random || s == Grid
}

// Param is one searched hyperparameter and its candidate values.
type Param struct {
	Name   string
	Values []int
}

// Space is an ordered list of searched hyperparameters.
type Space []Param

// Point assigns a value to every hyperparameter of a space.
type Point map[string]int

// Key returns a canonical string form of p.
func (p Point) Key() string {
	names := make([]string, 0, len(p))
	for n := range p {
		names = append(names, n)
	}
	sort.Strings(names)
	var b strings.Builder
	for i, n := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%d", n, p[n])
	}
	return b.String()
}

// Size returns the number of distinct points of the space.
func (s Space) Size() int {
	n := 1
	for _, p := range s {
		n *= len(p.Values)
	}
	return n
}

// at returns the i-th point of the grid, the first parameter varying slowest.
func (s Space) at(i int) Point {
	p := make(Point, len(s))
	for j := len(s) - 1; j >= 0; j-- {
		values := s[j].Values
		p[s[j].Name] = values[i%len(values)]
		i /= len(values)
	}
	return p
}

func (s Space) sample(rng *rand.Rand) Point {
	p := make(Point, len(s))
	for _, param := range s {
		p[param.Name] = param.Values[rng.Intn(len(param.Values))]
	}
	return p
}

// Points returns up to n distinct points. The first point is defaults; the
// rest are chosen by strategy. Fewer points are returned when the space is
// exhausted.
func (s Space) Points(defaults Point, n int, strategy Strategy, seed int64) []Point {
	if n <= 0 {
		return nil
	}
	points := []Point{defaults}
	seen := map[string]struct{}{defaults.Key(): {}}
	add := func(p Point) {
		if _, ok := seen[p.Key()]; !ok {
			seen[p.Key()] = struct{}{}
			points = append(points, p)
		}
	}

	size := s.Size()
	if size == 0 {
		return points
	}
	switch strategy {
	case Grid:
		for i := 0; i < size && len(points) < n; i++ {
			add(s.at(i))
		}
	default:
		rng := rand.New(rand.NewSource(seed))
		for tries := 0; tries < 64*n && len(points) < n; tries++ {
			add(s.sample(rng))
		}
	}
	return points
}
