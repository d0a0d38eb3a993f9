package keypoints

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"go.viam.com/test"
)

func TestHammingDistance(t *testing.T) {
	d, err := HammingDistance([]uint64{0b1011, 0}, []uint64{0b0001, 1 << 63})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d, test.ShouldEqual, 3)
	_, err = HammingDistance([]uint64{0}, []uint64{0, 0})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestKNNMatchBinary(t *testing.T) {
	query := NewBinaryDescriptors([][]uint64{{0}, {0xFF}})
	train := NewBinaryDescriptors([][]uint64{{0b111}, {0b1}, {0xFF}})
	matches, err := KNNMatch(query, train)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, matches, test.ShouldResemble, []Match{
		{QueryIdx: 0, TrainIdx: 1, Distance: 1, SecondDistance: 3},
		{QueryIdx: 1, TrainIdx: 2, Distance: 0, SecondDistance: 5},
	})

	// a single train descriptor has no second neighbour
	matches, err = KNNMatch(query, NewBinaryDescriptors([][]uint64{{0}}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, matches, test.ShouldBeEmpty)

	_, err = KNNMatch(query, NewFloatDescriptors([][]float64{{0}, {1}}))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestKNNMatchFloatAgainstBruteForce(t *testing.T) {
	//nolint:gosec
	rng := rand.New(rand.NewSource(7))
	randomVectors := func(n int) [][]float64 {
		out := make([][]float64, n)
		for i := range out {
			out[i] = make([]float64, 8)
			for j := range out[i] {
				out[i][j] = rng.Float64()
			}
		}
		return out
	}
	train := randomVectors(200)
	query := randomVectors(50)
	matches, err := KNNMatch(NewFloatDescriptors(query), NewFloatDescriptors(train))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(matches), test.ShouldEqual, 50)

	for _, m := range matches {
		dists := make([]float64, len(train))
		for i, d := range train {
			dists[i], err = EuclideanDistance(query[m.QueryIdx], d)
			test.That(t, err, test.ShouldBeNil)
		}
		best := 0
		for i := range dists {
			if dists[i] < dists[best] {
				best = i
			}
		}
		sort.Float64s(dists)
		test.That(t, m.TrainIdx, test.ShouldEqual, best)
		test.That(t, m.Distance, test.ShouldAlmostEqual, dists[0])
		test.That(t, m.SecondDistance, test.ShouldAlmostEqual, dists[1])
	}
}

func TestRatioTest(t *testing.T) {
	matches := []Match{
		{QueryIdx: 0, Distance: 1, SecondDistance: 3},
		{QueryIdx: 1, Distance: 2, SecondDistance: 2},
		{QueryIdx: 2, Distance: 0, SecondDistance: 0},
		{QueryIdx: 3, Distance: 7, SecondDistance: 8},
	}
	test.That(t, RatioTest(matches, 0), test.ShouldBeEmpty)

	// r = 1 keeps exactly the strictly closer nearest neighbours
	kept := RatioTest(matches, 1)
	test.That(t, len(kept), test.ShouldEqual, 2)
	test.That(t, kept[0].QueryIdx, test.ShouldEqual, 0)
	test.That(t, kept[1].QueryIdx, test.ShouldEqual, 3)

	kept = RatioTest(matches, 0.8)
	test.That(t, len(kept), test.ShouldEqual, 1)
	test.That(t, kept[0].QueryIdx, test.ShouldEqual, 0)
	test.That(t, math.IsNaN(kept[0].Distance), test.ShouldBeFalse)
}

func TestDescriptorsSubset(t *testing.T) {
	d := NewFloatDescriptors([][]float64{{0}, {1}, {2}})
	sub := d.Subset([]int{2, 0})
	test.That(t, sub.Len(), test.ShouldEqual, 2)
	test.That(t, sub.Values, test.ShouldResemble, [][]float64{{2}, {0}})
	var none *Descriptors
	test.That(t, none.Len(), test.ShouldEqual, 0)
}
