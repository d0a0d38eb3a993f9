package keypoints

import (
	"image"
	"sort"
)

// FASTConfig holds the parameters necessary to compute the FAST keypoints.
type FASTConfig struct {
	// NMatchesCircle is the number of contiguous circle pixels that must be all brighter or all darker.
	NMatchesCircle int `json:"n_matches_circle"`
	// NMSWinSize is the side of the non maximum suppression window.
	NMSWinSize int `json:"nms_win_size"`
	// Threshold is the absolute intensity difference to the center pixel.
	Threshold int  `json:"threshold"`
	Oriented  bool `json:"oriented"`
}

var (
	// CrossIdx contains the neighbors coordinates in a 3-cross neighborhood.
	CrossIdx = []image.Point{{0, 3}, {3, 0}, {0, -3}, {-3, 0}}
	// CircleIdx contains the neighbors coordinates in a circle of radius 3 neighborhood.
	CircleIdx = []image.Point{
		{0, -3},
		{1, -3},
		{2, -2},
		{3, -1},
		{3, 0},
		{3, 1},
		{2, 2},
		{1, 3},
		{0, 3},
		{-1, 3},
		{-2, 2},
		{-3, 1},
		{-3, 0},
		{-3, -1},
		{-2, -2},
		{-1, -3},
	}
)

// fastRadius is the radius of the Bresenham circle.
const fastRadius = 3

// FASTPoint is a corner with its score.
type FASTPoint struct {
	Point image.Point
	Score float64
}

// GetPointValuesInNeighborhood returns a slice of floats containing the values of neighborhood pixels in image img.
func GetPointValuesInNeighborhood(img *image.Gray, coords image.Point, neighborhood []image.Point) []float64 {
	vals := make([]float64, len(neighborhood))
	for i := 0; i < len(neighborhood); i++ {
		c := img.GrayAt(coords.X+neighborhood[i].X, coords.Y+neighborhood[i].Y).Y
		vals[i] = float64(c)
	}
	return vals
}

// isValidSliceVals reports whether s holds n contiguous positive values, wrapping around the end.
func isValidSliceVals(s []float64, n int) bool {
	if n <= 0 || n > len(s) {
		return false
	}
	count := 0
	for i := 0; i < len(s)+n-1; i++ {
		if s[i%len(s)] > 0 {
			count++
			if count >= n {
				return true
			}
		} else {
			count = 0
		}
	}
	return false
}

func sumOfPositiveValuesSlice(s []float64) float64 {
	sum := 0.
	for _, v := range s {
		if v > 0 {
			sum += v
		}
	}
	return sum
}

func sumOfNegativeValuesSlice(s []float64) float64 {
	sum := 0.
	for _, v := range s {
		if v < 0 {
			sum += v
		}
	}
	return sum
}

func getBrighterValues(s []float64, t float64) []float64 {
	brighterValues := make([]float64, len(s))
	for i, v := range s {
		if v > t {
			brighterValues[i] = 1
		}
	}
	return brighterValues
}

func getDarkerValues(s []float64, t float64) []float64 {
	darkerValues := make([]float64, len(s))
	for i, v := range s {
		if v < t {
			darkerValues[i] = 1
		}
	}
	return darkerValues
}

func shiftSlice(s []float64, offset float64) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = v + offset
	}
	return out
}

// cornerScore is the summed absolute difference beyond the threshold on the dominant side.
func cornerScore(vals []float64, center, t float64) float64 {
	diffs := shiftSlice(vals, -center)
	bright := sumOfPositiveValuesSlice(shiftSlice(diffs, -t))
	dark := -sumOfNegativeValuesSlice(shiftSlice(diffs, t))
	if bright > dark {
		return bright
	}
	return dark
}

// ComputeFAST computes the location of FAST keypoints, after non maximum suppression, in scan order.
func ComputeFAST(img *image.Gray, cfg *FASTConfig) []FASTPoint {
	bnd := img.Bounds()
	w := bnd.Dx()
	scores := make(map[int]float64)
	candidates := make([]image.Point, 0)
	t := float64(cfg.Threshold)
	for y := bnd.Min.Y + fastRadius; y < bnd.Max.Y-fastRadius; y++ {
		for x := bnd.Min.X + fastRadius; x < bnd.Max.X-fastRadius; x++ {
			p := image.Point{x, y}
			center := float64(img.GrayAt(x, y).Y)
			// high-speed test on the cross first
			cross := GetPointValuesInNeighborhood(img, p, CrossIdx)
			if cfg.NMatchesCircle >= 9 {
				nBright := sumOfPositiveValuesSlice(getBrighterValues(cross, center+t))
				nDark := sumOfPositiveValuesSlice(getDarkerValues(cross, center-t))
				if nBright < 2 && nDark < 2 {
					continue
				}
			}
			vals := GetPointValuesInNeighborhood(img, p, CircleIdx)
			if isValidSliceVals(getBrighterValues(vals, center+t), cfg.NMatchesCircle) ||
				isValidSliceVals(getDarkerValues(vals, center-t), cfg.NMatchesCircle) {
				scores[(y-bnd.Min.Y)*w+(x-bnd.Min.X)] = cornerScore(vals, center, t)
				candidates = append(candidates, p)
			}
		}
	}
	return nonMaxSuppression(candidates, scores, bnd, cfg.NMSWinSize)
}

// nonMaxSuppression keeps the candidates with the best score in their window. Ties go to the
// candidate first in scan order.
func nonMaxSuppression(candidates []image.Point, scores map[int]float64, bnd image.Rectangle, winSize int) []FASTPoint {
	w := bnd.Dx()
	half := winSize / 2
	key := func(p image.Point) int { return (p.Y-bnd.Min.Y)*w + (p.X - bnd.Min.X) }
	out := make([]FASTPoint, 0, len(candidates))
	for _, p := range candidates {
		own := scores[key(p)]
		keep := true
		for dy := -half; dy <= half && keep; dy++ {
			for dx := -half; dx <= half; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				q := image.Point{p.X + dx, p.Y + dy}
				if !q.In(bnd) {
					continue
				}
				other, ok := scores[key(q)]
				if !ok {
					continue
				}
				if other > own || (other == own && key(q) < key(p)) {
					keep = false
					break
				}
			}
		}
		if keep {
			out = append(out, FASTPoint{Point: p, Score: own})
		}
	}
	return out
}

// FASTKeypoints stores keypoint locations and orientations (nil if not oriented).
type FASTKeypoints struct {
	Points       []FASTPoint
	Orientations []float64
}

// NewFASTKeypointsFromImage returns a pointer to a FASTKeypoints struct containing keypoints locations and
// orientations.
func NewFASTKeypointsFromImage(img *image.Gray, cfg *FASTConfig) *FASTKeypoints {
	kps := ComputeFAST(img, cfg)
	var orientations []float64
	if cfg.Oriented {
		pts := make([]image.Point, len(kps))
		for i, kp := range kps {
			pts[i] = kp.Point
		}
		orientations = computeKeypointsOrientations(img, pts)
	}
	return &FASTKeypoints{
		Points:       kps,
		Orientations: orientations,
	}
}

// IsOriented returns a boolean to indicate whether or not the keypoints are oriented.
func (kps *FASTKeypoints) IsOriented() bool {
	return kps.Orientations != nil
}

// strongest returns the indices of the n highest scores, ties in input order.
func strongest(scores []float64, n int) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	if n > 0 && n < len(idx) {
		idx = idx[:n]
	}
	return idx
}
