package keypoints

import (
	"image"
	"testing"

	"go.viam.com/test"
)

// blockValue is a deterministic pseudo random gray level for the 10x10 block (bx, by).
func blockValue(bx, by int) uint8 {
	h := uint32(bx*73856093) ^ uint32(by*19349663)
	h ^= h >> 13
	h *= 0x5bd1e995
	h ^= h >> 15
	return uint8(h)
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}

// blockImage renders the block texture shifted by (dx, dy).
func blockImage(w, h, dx, dy int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Pix[img.PixOffset(x, y)] = blockValue(floorDiv(x-dx, 10), floorDiv(y-dy, 10))
		}
	}
	return img
}

func TestGetImagePyramid(t *testing.T) {
	img := blockImage(200, 160, 0, 0)
	pyramid, err := GetImagePyramid(img, 4, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(pyramid.Images), test.ShouldEqual, 3)
	test.That(t, pyramid.Scales, test.ShouldResemble, []float64{1, 2, 4})
	test.That(t, pyramid.Images[2].Bounds().Dx(), test.ShouldEqual, 50)
	test.That(t, pyramid.Images[2].Bounds().Dy(), test.ShouldEqual, 40)

	_, err = GetImagePyramid(img, 0, 2)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = GetImagePyramid(img, 2, 1)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestGenerateSamplePairs(t *testing.T) {
	for _, sampling := range []SamplingType{uniform, normal, fixed} {
		sp := GenerateSamplePairs(sampling, 256, 31)
		test.That(t, sp.N, test.ShouldEqual, 256)
		test.That(t, len(sp.P0), test.ShouldEqual, 256)
		test.That(t, len(sp.P1), test.ShouldEqual, 256)
		for i := range sp.P0 {
			test.That(t, sp.P0[i].X, test.ShouldBeBetweenOrEqual, -16, 16)
			test.That(t, sp.P1[i].Y, test.ShouldBeBetweenOrEqual, -16, 16)
		}
		// pairs are reproducible
		test.That(t, GenerateSamplePairs(sampling, 256, 31), test.ShouldResemble, sp)
	}
}

func TestORBMatchesTranslatedImage(t *testing.T) {
	ext, err := NewExtractor("ORB", map[string]interface{}{"n_layers": 1, "max_features": 500})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ext.Name(), test.ShouldEqual, MethodORB)

	left := blockImage(240, 200, 0, 0)
	right := blockImage(240, 200, 7, 5)
	kpsL, descL, err := DetectAndDescribe(ext, left)
	test.That(t, err, test.ShouldBeNil)
	kpsR, descR, err := DetectAndDescribe(ext, right)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(kpsL), test.ShouldBeGreaterThan, 20)
	test.That(t, len(kpsL), test.ShouldBeLessThanOrEqualTo, 500)
	test.That(t, descL.Len(), test.ShouldEqual, len(kpsL))
	test.That(t, descL.Kind, test.ShouldEqual, Binary)
	test.That(t, len(descL.Bits[0]), test.ShouldEqual, 4)

	good, candidates, err := MatchDescriptors(descL, descR, 0.8)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, candidates, test.ShouldEqual, len(kpsL))
	test.That(t, len(good), test.ShouldBeGreaterThan, 20)
	consistent := 0
	for _, m := range good {
		dx := kpsR[m.TrainIdx].X - kpsL[m.QueryIdx].X
		dy := kpsR[m.TrainIdx].Y - kpsL[m.QueryIdx].Y
		if dx == 7 && dy == 5 {
			consistent++
		}
	}
	test.That(t, float64(consistent)/float64(len(good)), test.ShouldBeGreaterThan, 0.9)
}

func TestORBDescribeDropsBorderKeypoints(t *testing.T) {
	ext, err := NewExtractor(MethodORB, nil)
	test.That(t, err, test.ShouldBeNil)
	img := blockImage(120, 120, 0, 0)
	kps, descs, err := ext.Describe(img, KeyPoints{{X: 60, Y: 60, Angle: 0}, {X: 3, Y: 3, Angle: 45}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(kps), test.ShouldEqual, 1)
	test.That(t, kps[0].X, test.ShouldEqual, 60)
	test.That(t, descs.Len(), test.ShouldEqual, 1)

	_, _, err = ext.Describe(img, KeyPoints{{X: 60, Y: 60, Octave: 9}})
	test.That(t, err, test.ShouldNotBeNil)
}
