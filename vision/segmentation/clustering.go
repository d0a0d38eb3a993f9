package segmentation

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"

	rutils "go.viam.com/edgeplan/utils"
)

// DBSCANResult is the outcome of a density clustering run.
type DBSCANResult struct {
	// Labels holds a cluster ID per input point, or Noise.
	Labels      []int
	Core        []bool
	NumClusters int
	NumNoise    int
}

// DBSCAN partitions points by density-reachability. A point is core when at least minSamples
// other points lie within eps of it. Clusters are the maximal sets of density-connected core
// points plus the border points they reach; a border point reachable from two clusters joins
// the one discovered first. Everything else is noise.
func DBSCAN(points []r3.Vector, eps float64, minSamples int) (*DBSCANResult, error) {
	if eps <= 0 {
		return nil, rutils.NewConfigurationError("eps should be > 0, got %v", eps)
	}
	if minSamples < 0 {
		return nil, rutils.NewConfigurationError("min_samples should be >= 0, got %d", minSamples)
	}
	res := &DBSCANResult{
		Labels: make([]int, len(points)),
		Core:   make([]bool, len(points)),
	}
	for i := range res.Labels {
		res.Labels[i] = Noise
	}
	if len(points) == 0 {
		return res, nil
	}

	neighborhoods := RadiusNeighbors(points, eps)
	for i, nn := range neighborhoods {
		res.Core[i] = len(nn) >= minSamples
	}

	for i := range points {
		if res.Labels[i] != Noise || !res.Core[i] {
			continue
		}
		label := res.NumClusters
		res.NumClusters++
		res.Labels[i] = label
		stack := []int{i}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, nb := range neighborhoods[cur] {
				if res.Labels[nb] != Noise {
					continue
				}
				res.Labels[nb] = label
				if res.Core[nb] {
					stack = append(stack, nb)
				}
			}
		}
	}
	for _, l := range res.Labels {
		if l == Noise {
			res.NumNoise++
		}
	}
	return res, nil
}

// RadiusNeighbors returns, for every point, the indices of the other points within radius
// (inclusive) in increasing order of distance.
func RadiusNeighbors(points []r3.Vector, radius float64) [][]int {
	indexed := make(indexedPoints, len(points))
	for i, p := range points {
		indexed[i] = indexedPoint{Vector: p, idx: i}
	}
	tree := kdtree.New(indexed, false)
	out := make([][]int, len(points))
	for i, p := range points {
		keeper := kdtree.NewDistKeeper(radius * radius)
		tree.NearestSet(keeper, indexedPoint{Vector: p, idx: -1})
		heap := keeper.Heap
		sortByDist(heap)
		nn := make([]int, 0, len(heap))
		for _, cd := range heap {
			if cd.Comparable == nil {
				continue
			}
			if idx := cd.Comparable.(indexedPoint).idx; idx != i {
				nn = append(nn, idx)
			}
		}
		out[i] = nn
	}
	return out
}

func sortByDist(h kdtree.Heap) {
	// insertion sort, neighbourhoods are small
	for i := 1; i < len(h); i++ {
		for j := i; j > 0 && h[j].Dist < h[j-1].Dist; j-- {
			h[j], h[j-1] = h[j-1], h[j]
		}
	}
}

// indexedPoint is a 3D point that remembers its input position.
type indexedPoint struct {
	r3.Vector
	idx int
}

func (p indexedPoint) coord(d kdtree.Dim) float64 {
	switch d {
	case 0:
		return p.X
	case 1:
		return p.Y
	default:
		return p.Z
	}
}

// Compare returns the signed distance of p from the plane passing through c and
// perpendicular to the dimension d.
func (p indexedPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.coord(d) - c.(indexedPoint).coord(d)
}

// Dims returns the number of dimensions described by the receiver.
func (p indexedPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between c and the receiver.
func (p indexedPoint) Distance(c kdtree.Comparable) float64 {
	return p.Sub(c.(indexedPoint).Vector).Norm2()
}

type indexedPoints []indexedPoint

func (p indexedPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p indexedPoints) Len() int                      { return len(p) }
func (p indexedPoints) Pivot(d kdtree.Dim) int {
	return indexedPlane{Dim: d, indexedPoints: p}.Pivot()
}
func (p indexedPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// indexedPlane is required to help indexedPoints.
type indexedPlane struct {
	kdtree.Dim
	indexedPoints
}

func (p indexedPlane) Less(i, j int) bool {
	return p.indexedPoints[i].coord(p.Dim) < p.indexedPoints[j].coord(p.Dim)
}
func (p indexedPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p indexedPlane) Slice(start, end int) kdtree.SortSlicer {
	return indexedPlane{Dim: p.Dim, indexedPoints: p.indexedPoints[start:end]}
}
func (p indexedPlane) Swap(i, j int) {
	p.indexedPoints[i], p.indexedPoints[j] = p.indexedPoints[j], p.indexedPoints[i]
}
