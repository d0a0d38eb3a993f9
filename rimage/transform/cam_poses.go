package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	rutils "go.viam.com/edgeplan/utils"
)

// DefaultDistanceThreshold is the cheirality depth bound, in baseline units, past which a
// triangulated point is treated as lying at infinity.
const DefaultDistanceThreshold = 50.

// RelativePose is the pose of the second camera with respect to the first one:
// x2 = Rotation·x1 + Translation, with a unit-length translation.
type RelativePose struct {
	Rotation    *mat.Dense
	Translation r3.Vector
	Essential   *mat.Dense
	// Fundamental is set when the essential matrix was derived from a fundamental matrix.
	Fundamental *mat.Dense
}

// Pose returns the 3x4 matrix [R | t].
func (rp *RelativePose) Pose() *mat.Dense {
	t := mat.NewDense(3, 1, []float64{rp.Translation.X, rp.Translation.Y, rp.Translation.Z})
	var pose mat.Dense
	pose.Augment(rp.Rotation, t)
	return &pose
}

// GetPossibleCameraPoses computes all 4 possible [R | t] poses from the essential matrix.
func GetPossibleCameraPoses(essMat *mat.Dense) ([]*RelativePose, error) {
	R1, R2, t, err := DecomposeEssentialMatrix(essMat)
	if err != nil {
		return nil, err
	}
	tOpp := t.Mul(-1)
	return []*RelativePose{
		{Rotation: R1, Translation: t, Essential: essMat},
		{Rotation: R1, Translation: tOpp, Essential: essMat},
		{Rotation: R2, Translation: t, Essential: essMat},
		{Rotation: R2, Translation: tOpp, Essential: essMat},
	}, nil
}

// cheiralityMask flags the correspondences whose triangulation lies in front of both cameras and
// closer than distanceThresh.
func cheiralityMask(pose *RelativePose, norm1, norm2 []r2.Point, distanceThresh float64) ([]bool, int, error) {
	P0 := eye(3)
	var identity mat.Dense
	identity.Augment(P0, mat.NewDense(3, 1, nil))
	P1 := pose.Pose()
	hom, err := TriangulatePoints(&identity, P1, norm1, norm2)
	if err != nil {
		return nil, 0, err
	}
	mask := make([]bool, len(norm1))
	count := 0
	for i := range norm1 {
		w := hom.At(3, i)
		if hom.At(2, i)*w <= 0 {
			continue
		}
		pt := r3.Vector{X: hom.At(0, i) / w, Y: hom.At(1, i) / w, Z: hom.At(2, i) / w}
		if pt.Z >= distanceThresh {
			continue
		}
		depth2 := pose.Rotation.At(2, 0)*pt.X + pose.Rotation.At(2, 1)*pt.Y + pose.Rotation.At(2, 2)*pt.Z + pose.Translation.Z
		if depth2 <= 0 || depth2 >= distanceThresh {
			continue
		}
		mask[i] = true
		count++
	}
	return mask, count, nil
}

// RecoverPose picks, among the four decompositions of the essential matrix, the pose that puts the
// most correspondences in front of both cameras. pts1 and pts2 are pixel coordinates of the first
// and second image. The returned mask flags the correspondences that pass the cheirality check.
func RecoverPose(
	essMat *mat.Dense,
	pts1, pts2 []r2.Point,
	params *PinholeCameraIntrinsics,
	distanceThresh float64,
) (*RelativePose, []bool, error) {
	if len(pts1) != len(pts2) {
		return nil, nil, errors.New("the 2 sets of points don't have the same number of elements")
	}
	if err := params.CheckValid(); err != nil {
		return nil, nil, err
	}
	if distanceThresh <= 0 {
		distanceThresh = DefaultDistanceThreshold
	}
	poses, err := GetPossibleCameraPoses(essMat)
	if err != nil {
		return nil, nil, err
	}
	norm1, norm2 := params.Normalize(pts1), params.Normalize(pts2)

	var bestPose *RelativePose
	var bestMask []bool
	bestCount := -1
	for _, pose := range poses {
		mask, count, err := cheiralityMask(pose, norm1, norm2, distanceThresh)
		if err != nil {
			return nil, nil, err
		}
		if count > bestCount {
			bestPose, bestMask, bestCount = pose, mask, count
		}
	}
	if bestCount <= 0 {
		return nil, nil, rutils.NewInsufficientDataError("no correspondence in front of both cameras out of %d", len(pts1))
	}
	return bestPose, bestMask, nil
}

// ProjectionMatrices returns the 3x4 projection matrices of a calibrated pair in the frame of the
// second camera: first = K·[Rᵀ | −Rᵀt], second = K·[I | 0].
func ProjectionMatrices(params *PinholeCameraIntrinsics, pose *RelativePose) (*mat.Dense, *mat.Dense) {
	k := params.GetCameraMatrix()
	rt := transposeDense(pose.Rotation)
	t := mat.NewVecDense(3, []float64{pose.Translation.X, pose.Translation.Y, pose.Translation.Z})
	var rtt mat.VecDense
	rtt.MulVec(rt, t)
	rtt.ScaleVec(-1, &rtt)

	var extrinsics mat.Dense
	extrinsics.Augment(rt, &rtt)
	first := mat.NewDense(3, 4, nil)
	first.Mul(k, &extrinsics)

	second := mat.NewDense(3, 4, nil)
	second.Augment(k, mat.NewDense(3, 1, nil))
	return first, second
}

// TriangulatePoints computes the homogeneous 3D point of every correspondence with the direct
// linear method. It returns a 4xN matrix with one column per correspondence.
func TriangulatePoints(p1, p2 *mat.Dense, pts1, pts2 []r2.Point) (*mat.Dense, error) {
	if len(pts1) != len(pts2) {
		return nil, errors.New("the 2 sets of points don't have the same number of elements")
	}
	if r, c := p1.Dims(); r != 3 || c != 4 {
		return nil, errors.Errorf("projection matrix must be 3x4, got %dx%d", r, c)
	}
	if r, c := p2.Dims(); r != 3 || c != 4 {
		return nil, errors.Errorf("projection matrix must be 3x4, got %dx%d", r, c)
	}
	if len(pts1) == 0 {
		return &mat.Dense{}, nil
	}
	out := mat.NewDense(4, len(pts1), nil)
	A := mat.NewDense(4, 4, nil)
	row := make([]float64, 4)
	setRows := func(offset int, p *mat.Dense, pt r2.Point) {
		for c := 0; c < 4; c++ {
			row[c] = pt.X*p.At(2, c) - p.At(0, c)
		}
		A.SetRow(offset, row)
		for c := 0; c < 4; c++ {
			row[c] = pt.Y*p.At(2, c) - p.At(1, c)
		}
		A.SetRow(offset+1, row)
	}
	var svd mat.SVD
	var V mat.Dense
	for i := range pts1 {
		setRows(0, p1, pts1[i])
		setRows(2, p2, pts2[i])
		if ok := svd.Factorize(A, mat.SVDFull); !ok {
			return nil, errors.New("failed to factorize A")
		}
		svd.VTo(&V)
		// the solution is the right singular vector of the smallest singular value
		for r := 0; r < 4; r++ {
			out.Set(r, i, V.At(r, 3))
		}
	}
	return out, nil
}

// Dehomogenize divides each column of a 4xN homogeneous matrix by its fourth coordinate.
// Points at infinity come out with non finite coordinates.
func Dehomogenize(hom *mat.Dense) []r3.Vector {
	if hom.IsEmpty() {
		return nil
	}
	_, n := hom.Dims()
	pts := make([]r3.Vector, n)
	for i := 0; i < n; i++ {
		w := hom.At(3, i)
		pts[i] = r3.Vector{X: hom.At(0, i) / w, Y: hom.At(1, i) / w, Z: hom.At(2, i) / w}
	}
	return pts
}

// IsFinite reports whether every coordinate of v is a finite number.
func IsFinite(v r3.Vector) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsNaN(v.Z) &&
		!math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0) && !math.IsInf(v.Z, 0)
}
