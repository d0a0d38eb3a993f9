package reconstruction

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/edgeplan/rimage"
	"go.viam.com/edgeplan/vision/keypoints"
)

// Pair is an unordered pair of image IDs with I < J. The image with ID I is the left image.
type Pair struct {
	I, J int
}

// String returns the pair resource name: the two IDs concatenated.
func (p Pair) String() string {
	return fmt.Sprintf("%d%d", p.I, p.J)
}

// EnumeratePairs returns every pair of n images in lexicographic order.
func EnumeratePairs(n int) []Pair {
	if n < 2 {
		return nil
	}
	pairs := make([]Pair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, Pair{I: i, J: j})
		}
	}
	return pairs
}

// Correspondences are matched pixel locations of a left and a right image with the sample taken in
// the left image. The three slices always have the same length.
type Correspondences struct {
	Left    []r2.Point
	Right   []r2.Point
	Samples []rimage.Sample
}

// NewCorrespondences gathers the locations and samples of the given matches, with the left image
// as query. Locations are rounded to whole pixels.
func NewCorrespondences(left, right *ImageModel, matches []keypoints.Match) *Correspondences {
	c := &Correspondences{
		Left:    make([]r2.Point, len(matches)),
		Right:   make([]r2.Point, len(matches)),
		Samples: make([]rimage.Sample, len(matches)),
	}
	for i, m := range matches {
		c.Left[i] = roundPoint(left.KeyPoints[m.QueryIdx].Point())
		c.Right[i] = roundPoint(right.KeyPoints[m.TrainIdx].Point())
		c.Samples[i] = left.Samples[m.QueryIdx]
	}
	return c
}

func roundPoint(p r2.Point) r2.Point {
	return r2.Point{X: math.Round(p.X), Y: math.Round(p.Y)}
}

// Len returns the number of correspondences.
func (c *Correspondences) Len() int {
	return len(c.Left)
}

// Apply keeps the correspondences whose mask entry is true, in all three slices at once.
func (c *Correspondences) Apply(mask []bool) (*Correspondences, error) {
	if len(mask) != c.Len() {
		return nil, errors.Errorf("mask has %d entries for %d correspondences", len(mask), c.Len())
	}
	keep := func(i int) bool { return mask[i] }
	return &Correspondences{
		Left:    lo.Filter(c.Left, func(_ r2.Point, i int) bool { return keep(i) }),
		Right:   lo.Filter(c.Right, func(_ r2.Point, i int) bool { return keep(i) }),
		Samples: lo.Filter(c.Samples, func(_ rimage.Sample, i int) bool { return keep(i) }),
	}, nil
}
