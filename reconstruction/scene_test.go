package reconstruction

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/edgeplan/rimage"
	"go.viam.com/edgeplan/rimage/transform"
	"go.viam.com/edgeplan/vision/keypoints"
)

// camera maps world points into its frame with x = R·w + t.
type camera struct {
	rotation *mat.Dense
	t        r3.Vector
}

func rotY(theta float64) *mat.Dense {
	c, s := math.Cos(theta), math.Sin(theta)
	return mat.NewDense(3, 3, []float64{
		c, 0, s,
		0, 1, 0,
		-s, 0, c,
	})
}

func rotate(m mat.Matrix, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
	}
}

// cameraAt places a camera with the given rotation at the world position center.
func cameraAt(rotation *mat.Dense, center r3.Vector) camera {
	return camera{rotation: rotation, t: rotate(rotation, center).Mul(-1)}
}

func (c camera) toCamera(w r3.Vector) r3.Vector {
	return rotate(c.rotation, w).Add(c.t)
}

func sceneIntrinsics() *transform.PinholeCameraIntrinsics {
	return &transform.PinholeCameraIntrinsics{
		Width: 1000, Height: 800,
		Fx: 1000, Fy: 1000,
		Ppx: 500, Ppy: 400,
	}
}

func scenePoints(n int, seed int64) []r3.Vector {
	//nolint:gosec
	rng := rand.New(rand.NewSource(seed))
	pts := make([]r3.Vector, n)
	for i := range pts {
		pts[i] = r3.Vector{
			X: rng.Float64()*4 - 2,
			Y: rng.Float64()*3 - 1.5,
			Z: 5 + rng.Float64()*4,
		}
	}
	return pts
}

// sceneLabel marks every third point as fully labelled.
func sceneLabel(i int) uint8 {
	if i%3 == 0 {
		return 255
	}
	return uint8(i % 200)
}

// sceneImage renders the world points through cam as an image model. Descriptor i identifies point i
// and the red channel of its sample carries i.
func sceneImage(id int, cam camera, world []r3.Vector) *ImageModel {
	params := sceneIntrinsics()
	kps := make(keypoints.KeyPoints, len(world))
	desc := make([][]float64, len(world))
	samples := make([]rimage.Sample, len(world))
	for i, w := range world {
		c := cam.toCamera(w)
		x, y := params.PointToPixel(c.X, c.Y, c.Z)
		kps[i] = keypoints.KeyPoint{X: x, Y: y, Angle: -1}
		desc[i] = []float64{float64(i) * 10, 0, 0, 0}
		samples[i] = rimage.Sample{R: uint8(i), G: 1, B: 2, Label: sceneLabel(i)}
	}
	return &ImageModel{
		ID:          id,
		Name:        "scene",
		Metadata:    rimage.Metadata{FocalLength: 1000, Width: 1000, Height: 800},
		Intrinsics:  params,
		KeyPoints:   kps,
		Descriptors: keypoints.NewFloatDescriptors(desc),
		Samples:     samples,
	}
}

// blankImage has descriptors that never pass the ratio test.
func blankImage(id, n int) *ImageModel {
	im := sceneImage(id, cameraAt(rotY(0), r3.Vector{}), scenePoints(n, 99))
	desc := make([][]float64, n)
	for i := range desc {
		desc[i] = []float64{1, 1, 1, 1}
	}
	im.Descriptors = keypoints.NewFloatDescriptors(desc)
	return im
}

func threeCameras() []camera {
	return []camera{
		cameraAt(rotY(0), r3.Vector{}),
		cameraAt(rotY(-0.08), r3.Vector{X: 1}),
		cameraAt(rotY(0.08), r3.Vector{X: -1, Y: 0.2}),
	}
}

func r2Points(xs ...float64) []r2.Point {
	pts := make([]r2.Point, 0, len(xs)/2)
	for i := 0; i+1 < len(xs); i += 2 {
		pts = append(pts, r2.Point{X: xs[i], Y: xs[i+1]})
	}
	return pts
}
