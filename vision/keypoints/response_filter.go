package keypoints

import (
	"image"
	"math"
)

// siftOctaveLayers is the number of layers per octave of the OpenCV SIFT detector. Its
// contrast threshold is applied per layer.
const siftOctaveLayers = 3

// keypointFilter reports whether a detected keypoint is kept.
type keypointFilter func(img *image.Gray, kp KeyPoint) bool

// minResponse keeps keypoints whose detector response is at least threshold.
func minResponse(threshold float64) keypointFilter {
	return func(_ *image.Gray, kp KeyPoint) bool {
		return kp.Response >= threshold
	}
}

// maxCurvatureRatio drops edge like keypoints: those whose ratio of principal curvatures,
// measured on the image at the keypoint scale, reaches ratio.
func maxCurvatureRatio(ratio float64) keypointFilter {
	limit := (ratio + 1) * (ratio + 1) / ratio
	return func(img *image.Gray, kp KeyPoint) bool {
		dxx, dyy, dxy := hessianAt(img, kp)
		tr := dxx + dyy
		det := dxx*dyy - dxy*dxy
		if det <= 0 {
			return false
		}
		return tr*tr/det < limit
	}
}

// hessianAt estimates the second derivatives of img around kp with a step of half its size.
func hessianAt(img *image.Gray, kp KeyPoint) (dxx, dyy, dxy float64) {
	b := img.Bounds()
	at := func(x, y int) float64 {
		x = clampInt(x, b.Min.X, b.Max.X-1)
		y = clampInt(y, b.Min.Y, b.Max.Y-1)
		return float64(img.GrayAt(x, y).Y)
	}
	x, y := int(math.Round(kp.X)), int(math.Round(kp.Y))
	s := int(math.Round(kp.Size / 2))
	if s < 1 {
		s = 1
	}
	c := at(x, y)
	dxx = at(x+s, y) + at(x-s, y) - 2*c
	dyy = at(x, y+s) + at(x, y-s) - 2*c
	dxy = (at(x+s, y+s) - at(x+s, y-s) - at(x-s, y+s) + at(x-s, y-s)) / 4
	return dxx, dyy, dxy
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// akazeFilters turns the AKAZE knobs into keypoint filters.
func akazeFilters(cfg *AKAZEConfig) []keypointFilter {
	var filters []keypointFilter
	if cfg.Threshold > 0 {
		filters = append(filters, minResponse(cfg.Threshold))
	}
	return filters
}

// siftFilters turns the SIFT knobs into keypoint filters. The peak threshold is split over the
// octave layers the same way OpenCV splits its contrast threshold.
func siftFilters(cfg *SIFTConfig) []keypointFilter {
	var filters []keypointFilter
	if cfg.PeakThreshold > 0 {
		filters = append(filters, minResponse(cfg.PeakThreshold/siftOctaveLayers))
	}
	if cfg.EdgeThreshold > 0 {
		filters = append(filters, maxCurvatureRatio(cfg.EdgeThreshold))
	}
	return filters
}

// filterKeyPoints returns the keypoints accepted by every filter, in order.
func filterKeyPoints(img *image.Gray, kps KeyPoints, filters []keypointFilter) KeyPoints {
	if len(filters) == 0 {
		return kps
	}
	out := make(KeyPoints, 0, len(kps))
next:
	for _, kp := range kps {
		for _, keep := range filters {
			if !keep(img, kp) {
				continue next
			}
		}
		out = append(out, kp)
	}
	return out
}
