// Package pointcloud defines the append-only point cloud produced by pairwise triangulation,
// its text, PLY and LAS encodings, the output store and the label classifier.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
)

// MaxLabel is the label value of a point sampled on a fully labelled pixel.
const MaxLabel = 255

// NoPair is the PairID of a point that was not produced by a pair (e.g. read back from text).
const NoPair = -1

// Point is a triangulated 3D point with the colour and label sampled in the left image of its pair.
type Point struct {
	Position r3.Vector
	R, G, B  uint8
	Label    uint8
	PairID   int
}

// MetaData is data about what's stored in the point cloud.
type MetaData struct {
	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64

	// Labelled counts points with the maximum label.
	Labelled int
}

// NewMetaData creates an empty MetaData.
func NewMetaData() MetaData {
	return MetaData{
		MinX: math.MaxFloat64,
		MinY: math.MaxFloat64,
		MinZ: math.MaxFloat64,
		MaxX: -math.MaxFloat64,
		MaxY: -math.MaxFloat64,
		MaxZ: -math.MaxFloat64,
	}
}

// Merge updates the bounds and counters with p.
func (meta *MetaData) Merge(p Point) {
	v := p.Position
	meta.MaxX = math.Max(meta.MaxX, v.X)
	meta.MaxY = math.Max(meta.MaxY, v.Y)
	meta.MaxZ = math.Max(meta.MaxZ, v.Z)
	meta.MinX = math.Min(meta.MinX, v.X)
	meta.MinY = math.Min(meta.MinY, v.Y)
	meta.MinZ = math.Min(meta.MinZ, v.Z)
	if p.Label == MaxLabel {
		meta.Labelled++
	}
}

// Cloud is an ordered, append-only set of points. Points are never mutated or removed once
// appended; readers get copies.
type Cloud struct {
	points []Point
	meta   MetaData
}

// New returns an empty Cloud.
func New() *Cloud {
	return NewWithPrealloc(0)
}

// NewWithPrealloc returns an empty, preallocated Cloud.
func NewWithPrealloc(size int) *Cloud {
	return &Cloud{points: make([]Point, 0, size), meta: NewMetaData()}
}

// Append adds points to the end of the cloud.
func (cloud *Cloud) Append(pts ...Point) {
	for _, p := range pts {
		cloud.points = append(cloud.points, p)
		cloud.meta.Merge(p)
	}
}

// Size returns the number of points in the cloud.
func (cloud *Cloud) Size() int {
	return len(cloud.points)
}

// MetaData returns the bounds of the cloud.
func (cloud *Cloud) MetaData() MetaData {
	return cloud.meta
}

// At returns the i-th appended point.
func (cloud *Cloud) At(i int) Point {
	return cloud.points[i]
}

// Points returns a copy of the points in append order.
func (cloud *Cloud) Points() []Point {
	out := make([]Point, len(cloud.points))
	copy(out, cloud.points)
	return out
}

// Positions returns the coordinates of the points in append order.
func (cloud *Cloud) Positions() []r3.Vector {
	out := make([]r3.Vector, len(cloud.points))
	for i, p := range cloud.points {
		out[i] = p.Position
	}
	return out
}

// Iterate calls fn for every point in order until fn returns false.
func (cloud *Cloud) Iterate(fn func(i int, p Point) bool) {
	for i, p := range cloud.points {
		if !fn(i, p) {
			return
		}
	}
}

// FilterByLabel returns a new cloud holding the points whose label is at least threshold.
func FilterByLabel(cloud *Cloud, threshold int) *Cloud {
	out := New()
	cloud.Iterate(func(_ int, p Point) bool {
		if int(p.Label) >= threshold {
			out.Append(p)
		}
		return true
	})
	return out
}
