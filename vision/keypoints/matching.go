package keypoints

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// Match is a correspondence between a query (left) descriptor and its nearest train (right)
// descriptor, with the distance to the second nearest train descriptor.
type Match struct {
	QueryIdx       int
	TrainIdx       int
	Distance       float64
	SecondDistance float64
}

// KNNMatch finds, for every query descriptor, its two nearest train descriptors. Queries are
// skipped when the train set has fewer than two descriptors.
func KNNMatch(query, train *Descriptors) ([]Match, error) {
	if query.Kind != train.Kind {
		return nil, errors.Errorf("cannot match %s descriptors against %s descriptors", query.Kind, train.Kind)
	}
	if train.Len() < 2 || query.Len() == 0 {
		return nil, nil
	}
	if query.Kind == Float {
		return knnFloat(query.Values, train.Values)
	}
	return knnHamming(query.Bits, train.Bits)
}

// knnHamming is a brute force search, binary descriptors have no useful kd-tree split.
func knnHamming(query, train [][]uint64) ([]Match, error) {
	matches := make([]Match, 0, len(query))
	for qi, q := range query {
		best, second := -1, -1
		bestDist, secondDist := math.MaxInt, math.MaxInt
		for ti, d := range train {
			dist, err := HammingDistance(q, d)
			if err != nil {
				return nil, err
			}
			switch {
			case dist < bestDist:
				second, secondDist = best, bestDist
				best, bestDist = ti, dist
			case dist < secondDist:
				second, secondDist = ti, dist
			}
		}
		if second < 0 {
			continue
		}
		matches = append(matches, Match{
			QueryIdx:       qi,
			TrainIdx:       best,
			Distance:       float64(bestDist),
			SecondDistance: float64(secondDist),
		})
	}
	return matches, nil
}

func knnFloat(query, train [][]float64) ([]Match, error) {
	dims := len(train[0])
	points := make(descriptorPoints, len(train))
	for i, d := range train {
		if len(d) != dims {
			return nil, errors.New("descriptors must have same length")
		}
		points[i] = descriptorPoint{vec: d, idx: i}
	}
	tree := kdtree.New(points, false)
	matches := make([]Match, 0, len(query))
	for qi, q := range query {
		if len(q) != dims {
			return nil, errors.New("descriptors must have same length")
		}
		keeper := kdtree.NewNKeeper(2)
		tree.NearestSet(keeper, descriptorPoint{vec: q, idx: -1})
		found := make([]kdtree.ComparableDist, 0, 2)
		for _, cd := range keeper.Heap {
			if cd.Comparable != nil {
				found = append(found, cd)
			}
		}
		if len(found) < 2 {
			continue
		}
		sort.Slice(found, func(i, j int) bool { return found[i].Dist < found[j].Dist })
		matches = append(matches, Match{
			QueryIdx:       qi,
			TrainIdx:       found[0].Comparable.(descriptorPoint).idx,
			Distance:       math.Sqrt(found[0].Dist),
			SecondDistance: math.Sqrt(found[1].Dist),
		})
	}
	return matches, nil
}

// RatioTest keeps the matches whose nearest distance is below ratio times the second nearest one.
func RatioTest(matches []Match, ratio float64) []Match {
	good := make([]Match, 0, len(matches))
	for _, m := range matches {
		if m.Distance < ratio*m.SecondDistance {
			good = append(good, m)
		}
	}
	return good
}

// MatchDescriptors runs the k=2 nearest neighbour search followed by the ratio test. It also returns
// the number of candidate matches before the ratio test.
func MatchDescriptors(query, train *Descriptors, ratio float64) ([]Match, int, error) {
	knn, err := KNNMatch(query, train)
	if err != nil {
		return nil, 0, err
	}
	return RatioTest(knn, ratio), len(knn), nil
}

// descriptorPoint is a float descriptor that remembers its position in the train set.
type descriptorPoint struct {
	vec []float64
	idx int
}

// Compare returns the signed distance of p from the plane passing through c and
// perpendicular to the dimension d.
func (p descriptorPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(descriptorPoint)
	return p.vec[d] - q.vec[d]
}

// Dims returns the number of dimensions described by the receiver.
func (p descriptorPoint) Dims() int { return len(p.vec) }

// Distance returns the squared Euclidean distance between c and the receiver.
func (p descriptorPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(descriptorPoint)
	var sum float64
	for dim, v := range p.vec {
		diff := v - q.vec[dim]
		sum += diff * diff
	}
	return sum
}

type descriptorPoints []descriptorPoint

func (p descriptorPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p descriptorPoints) Len() int                      { return len(p) }
func (p descriptorPoints) Pivot(d kdtree.Dim) int {
	return descriptorPlane{Dim: d, descriptorPoints: p}.Pivot()
}
func (p descriptorPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// descriptorPlane is required to help descriptorPoints.
type descriptorPlane struct {
	kdtree.Dim
	descriptorPoints
}

func (p descriptorPlane) Less(i, j int) bool {
	return p.descriptorPoints[i].vec[p.Dim] < p.descriptorPoints[j].vec[p.Dim]
}
func (p descriptorPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p descriptorPlane) Slice(start, end int) kdtree.SortSlicer {
	return descriptorPlane{Dim: p.Dim, descriptorPoints: p.descriptorPoints[start:end]}
}
func (p descriptorPlane) Swap(i, j int) {
	p.descriptorPoints[i], p.descriptorPoints[j] = p.descriptorPoints[j], p.descriptorPoints[i]
}
