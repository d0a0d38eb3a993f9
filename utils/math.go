package utils

import (
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
)

// Median returns the median of the values without modifying them. For an even
// number of values the upper middle element is returned.
func Median(values ...float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return sorted[int(math.Floor(float64(len(sorted))/2))]
}

// SampleRandomIntRange samples a random integer within a range given by [min, max]
// using the given rand.Rand.
func SampleRandomIntRange(min, max int, r *rand.Rand) int {
	return r.Intn(max-min+1) + min
}

// SampleDistinctInts draws k distinct integers in [0, n). Small draws use rejection
// sampling, large ones a partial Fisher-Yates shuffle. It returns nil when k > n.
func SampleDistinctInts(n, k int, r *rand.Rand) []int {
	if k > n || k < 0 {
		return nil
	}
	if 4*k <= n {
		out := make([]int, 0, k)
		for len(out) < k {
			candidate := r.Intn(n)
			seen := false
			for _, v := range out {
				if v == candidate {
					seen = true
					break
				}
			}
			if !seen {
				out = append(out, candidate)
			}
		}
		return out
	}
	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}
	for i := 0; i < k; i++ {
		j := SampleRandomIntRange(i, n-1, r)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FormatFloat renders v with the fewest digits that parse back to the same value.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// FormatVector renders v as space separated `x y z` coordinates in FormatFloat precision.
func FormatVector(v r3.Vector) string {
	return strings.Join([]string{FormatFloat(v.X), FormatFloat(v.Y), FormatFloat(v.Z)}, " ")
}
