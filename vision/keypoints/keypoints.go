// Package keypoints contains feature detection, description and matching:
// - FAST keypoints with intensity-centroid orientation
// - rotated BRIEF descriptors on an image pyramid (ORB)
// - OpenCV backed AKAZE and SIFT when built with the opencv tag
// - k-nearest-neighbour matching with Lowe's ratio test.
package keypoints

import (
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"
)

// KeyPoint is a detected location in level-0 image coordinates.
type KeyPoint struct {
	X, Y float64
	// Size is the diameter of the described neighborhood.
	Size float64
	// Angle is the orientation in degrees, in [0, 360), or -1 when not computed.
	Angle float64
	// Response is the detector score, higher is stronger.
	Response float64
	// Octave is the pyramid level the keypoint was found in.
	Octave int
}

// Point returns the keypoint location.
func (kp KeyPoint) Point() r2.Point {
	return r2.Point{X: kp.X, Y: kp.Y}
}

// KeyPoints is an ordered list of keypoints.
type KeyPoints []KeyPoint

// Points returns the keypoint locations.
func (kps KeyPoints) Points() []r2.Point {
	pts := make([]r2.Point, len(kps))
	for i, kp := range kps {
		pts[i] = kp.Point()
	}
	return pts
}

// computeMaskOrientationFAST creates the mask used to compute orientations of corners.
func computeMaskOrientationFAST() *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, 31, 31))
	indices := []int{15, 15, 15, 15, 14, 14, 14, 13, 13, 12, 11, 10, 9, 8, 6, 3}
	for i := -15; i < 16; i++ {
		for j := -indices[int(math.Abs(float64(i)))]; j < indices[int(math.Abs(float64(i)))]+1; j++ {
			mask.Set(j+15, i+15, color.Gray{1})
		}
	}
	return mask
}

var orientationMask = computeMaskOrientationFAST()

// computeKeypointsOrientations returns the intensity centroid angle, in radians, of each point.
// Pixels outside the image count as 0.
func computeKeypointsOrientations(img *image.Gray, kps []image.Point) []float64 {
	nRows, nCols := 31, 31
	nRows2 := (nRows - 1) / 2
	nCols2 := (nCols - 1) / 2
	bnd := img.Bounds()
	orientations := make([]float64, len(kps))
	for i, kp := range kps {
		m01, m10 := 0, 0
		for y := 0; y < nRows; y++ {
			m01Temp := 0
			for x := 0; x < nCols; x++ {
				if orientationMask.GrayAt(x, y).Y == 0 {
					continue
				}
				p := image.Point{kp.X + x - nCols2, kp.Y + y - nRows2}
				if !p.In(bnd) {
					continue
				}
				pixVal := int(img.GrayAt(p.X, p.Y).Y)
				m10 += pixVal * (x - nCols2)
				m01Temp += pixVal
			}
			m01 += m01Temp * (y - nRows2)
		}
		orientations[i] = math.Atan2(float64(m01), float64(m10))
	}
	return orientations
}

// radiansToDegrees maps an angle to [0, 360).
func radiansToDegrees(angle float64) float64 {
	deg := angle * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

// PlotKeypoints plots keypoints on image.
func PlotKeypoints(img image.Image, kps KeyPoints, outName string) error {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	dc := gg.NewContext(w, h)
	dc.DrawImage(img, 0, 0)

	// draw keypoints on image
	dc.SetRGBA(0, 0, 1, 0.5)
	for _, p := range kps {
		dc.DrawCircle(p.X, p.Y, 3.0)
		dc.Fill()
	}
	return dc.SavePNG(outName)
}
