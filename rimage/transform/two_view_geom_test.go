package transform

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	rutils "go.viam.com/edgeplan/utils"
)

// twoViewScene is a synthetic calibrated pair: x_right = R·x_left + t.
type twoViewScene struct {
	params   *PinholeCameraIntrinsics
	rotation *mat.Dense
	t        r3.Vector
	points   []r3.Vector
	left     []r2.Point
	right    []r2.Point
}

func rotationY(theta float64) *mat.Dense {
	c, s := math.Cos(theta), math.Sin(theta)
	return mat.NewDense(3, 3, []float64{
		c, 0, s,
		0, 1, 0,
		-s, 0, c,
	})
}

func rotate(r mat.Matrix, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: r.At(0, 0)*v.X + r.At(0, 1)*v.Y + r.At(0, 2)*v.Z,
		Y: r.At(1, 0)*v.X + r.At(1, 1)*v.Y + r.At(1, 2)*v.Z,
		Z: r.At(2, 0)*v.X + r.At(2, 1)*v.Y + r.At(2, 2)*v.Z,
	}
}

func newTwoViewScene(n int, seed int64) *twoViewScene {
	scene := &twoViewScene{
		params:   &PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 800, Fy: 800, Ppx: 320, Ppy: 240},
		rotation: rotationY(0.1),
		t:        r3.Vector{X: -1, Y: 0.1, Z: 0.05},
	}
	//nolint:gosec
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < n; i++ {
		pt := r3.Vector{X: rng.Float64()*4 - 2, Y: rng.Float64()*3 - 1.5, Z: 4 + rng.Float64()*4}
		scene.points = append(scene.points, pt)
		lx, ly := scene.params.PointToPixel(pt.X, pt.Y, pt.Z)
		pr := rotate(scene.rotation, pt).Add(scene.t)
		rx, ry := scene.params.PointToPixel(pr.X, pr.Y, pr.Z)
		scene.left = append(scene.left, r2.Point{X: lx, Y: ly})
		scene.right = append(scene.right, r2.Point{X: rx, Y: ry})
	}
	return scene
}

func TestNumTrials(t *testing.T) {
	test.That(t, DefaultLMedSConfig().NumTrials(), test.ShouldEqual, 822)
	test.That(t, LMedSConfig{Confidence: 0.999, MaxTrials: 100}.NumTrials(), test.ShouldEqual, 100)
	test.That(t, LMedSConfig{}.NumTrials(), test.ShouldEqual, 822)
}

func TestSampsonDistance(t *testing.T) {
	scene := newTwoViewScene(20, 3)
	essMat := trueEssential(scene)
	norm1, norm2 := scene.params.Normalize(scene.left), scene.params.Normalize(scene.right)
	for i := range norm1 {
		test.That(t, SampsonDistance(essMat, norm1[i], norm2[i]), test.ShouldBeLessThan, 1e-20)
	}
	moved := r2.Point{X: norm2[0].X + 0.01, Y: norm2[0].Y}
	test.That(t, SampsonDistance(essMat, norm1[0], moved), test.ShouldBeGreaterThan, 1e-8)
}

// trueEssential builds E = [t]x·R.
func trueEssential(scene *twoViewScene) *mat.Dense {
	tx := mat.NewDense(3, 3, []float64{
		0, -scene.t.Z, scene.t.Y,
		scene.t.Z, 0, -scene.t.X,
		-scene.t.Y, scene.t.X, 0,
	})
	var e mat.Dense
	e.Mul(tx, scene.rotation)
	return &e
}

func TestEstimateEssentialMatrixLMedS(t *testing.T) {
	scene := newTwoViewScene(50, 1)
	//nolint:gosec
	rng := rand.New(rand.NewSource(42))
	left := append([]r2.Point{}, scene.left...)
	right := append([]r2.Point{}, scene.right...)
	for i := 0; i < 10; i++ {
		left = append(left, r2.Point{X: rng.Float64() * 640, Y: rng.Float64() * 480})
		right = append(right, r2.Point{X: rng.Float64() * 640, Y: rng.Float64() * 480})
	}

	estimate, err := EstimateEssentialMatrixLMedS(left, right, scene.params, DefaultLMedSConfig())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, estimate.Mask, test.ShouldHaveLength, 60)
	for i := 0; i < 50; i++ {
		test.That(t, estimate.Mask[i], test.ShouldBeTrue)
	}
	test.That(t, estimate.NumInliers, test.ShouldBeGreaterThanOrEqualTo, 50)
	test.That(t, estimate.NumInliers, test.ShouldBeLessThan, 55)
	test.That(t, mat.Norm(estimate.Matrix, 2), test.ShouldAlmostEqual, 1)

	pose, mask, err := RecoverPose(estimate.Matrix, scene.left, scene.right, scene.params, DefaultDistanceThreshold)
	test.That(t, err, test.ShouldBeNil)
	for i := range mask {
		test.That(t, mask[i], test.ShouldBeTrue)
	}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			test.That(t, pose.Rotation.At(r, c), test.ShouldAlmostEqual, scene.rotation.At(r, c), 1e-3)
		}
	}
	dir := scene.t.Normalize()
	test.That(t, pose.Translation.X, test.ShouldAlmostEqual, dir.X, 1e-3)
	test.That(t, pose.Translation.Y, test.ShouldAlmostEqual, dir.Y, 1e-3)
	test.That(t, pose.Translation.Z, test.ShouldAlmostEqual, dir.Z, 1e-3)
}

func TestEstimateEssentialMatrixTooFewPoints(t *testing.T) {
	scene := newTwoViewScene(7, 1)
	_, err := EstimateEssentialMatrixLMedS(scene.left, scene.right, scene.params, DefaultLMedSConfig())
	test.That(t, errors.Is(err, rutils.ErrInsufficientData), test.ShouldBeTrue)

	_, err = EstimateEssentialMatrixLMedS(scene.left, scene.right[:3], scene.params, DefaultLMedSConfig())
	test.That(t, err, test.ShouldNotBeNil)
}

func TestEstimateEssentialMatrixDeterministic(t *testing.T) {
	scene := newTwoViewScene(30, 5)
	a, err := EstimateEssentialMatrixLMedS(scene.left, scene.right, scene.params, DefaultLMedSConfig())
	test.That(t, err, test.ShouldBeNil)
	b, err := EstimateEssentialMatrixLMedS(scene.left, scene.right, scene.params, DefaultLMedSConfig())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mat.Equal(a.Matrix, b.Matrix), test.ShouldBeTrue)
	test.That(t, a.Mask, test.ShouldResemble, b.Mask)
}

func TestEstimateFundamentalMatrixLMedS(t *testing.T) {
	scene := newTwoViewScene(40, 9)
	estimate, err := EstimateFundamentalMatrixLMedS(scene.left, scene.right, DefaultLMedSConfig())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, estimate.NumInliers, test.ShouldEqual, 40)
	for i := range scene.left {
		test.That(t, SampsonDistance(estimate.Matrix, scene.left[i], scene.right[i]), test.ShouldBeLessThan, 1e-6)
	}

	k := scene.params.GetCameraMatrix()
	essMat, err := GetEssentialMatrixFromFundamental(k, k, estimate.Matrix)
	test.That(t, err, test.ShouldBeNil)
	pose, _, err := RecoverPose(essMat, scene.left, scene.right, scene.params, DefaultDistanceThreshold)
	test.That(t, err, test.ShouldBeNil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			test.That(t, pose.Rotation.At(r, c), test.ShouldAlmostEqual, scene.rotation.At(r, c), 1e-3)
		}
	}
}

func TestComputeFundamentalMatrixDegenerate(t *testing.T) {
	same := make([]r2.Point, 8)
	for i := range same {
		same[i] = r2.Point{X: 3, Y: 4}
	}
	_, err := ComputeFundamentalMatrixAllPoints(same, same, true)
	test.That(t, err, test.ShouldNotBeNil)
}
