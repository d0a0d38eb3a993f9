package transform

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	rutils "go.viam.com/edgeplan/utils"
)

const (
	// eightPointSamples is the number of correspondences in a minimal linear epipolar sample.
	eightPointSamples = 8
	// lmedsOutlierRatio is the outlier ratio assumed when sizing the least-median search.
	lmedsOutlierRatio = 0.45
)

// LMedSConfig controls the least-median-of-squares epipolar estimators.
type LMedSConfig struct {
	// Confidence is the probability that at least one sample is outlier free.
	Confidence float64 `json:"confidence"`
	// MaxTrials caps the number of sampled hypotheses.
	MaxTrials int `json:"max_trials"`
	// Seed makes the sampling reproducible.
	Seed int64 `json:"seed"`
}

// DefaultLMedSConfig returns the estimator settings used by the reconstruction pipeline.
func DefaultLMedSConfig() LMedSConfig {
	return LMedSConfig{Confidence: 0.999, MaxTrials: 1000, Seed: 1}
}

// NumTrials returns how many hypotheses are drawn.
func (cfg LMedSConfig) NumTrials() int {
	maxTrials := cfg.MaxTrials
	if maxTrials <= 0 {
		maxTrials = DefaultLMedSConfig().MaxTrials
	}
	conf := cfg.Confidence
	if conf <= 0 || conf >= 1 {
		conf = DefaultLMedSConfig().Confidence
	}
	num := math.Log(1 - conf)
	denom := math.Log(1 - math.Pow(1-lmedsOutlierRatio, eightPointSamples))
	if denom >= 0 || -num >= float64(maxTrials)*(-denom) {
		return maxTrials
	}
	return int(math.Round(num / denom))
}

// EpipolarEstimate is the result of a robust epipolar estimation.
type EpipolarEstimate struct {
	// Matrix is the 3x3 essential or fundamental matrix, x2ᵀ·M·x1 = 0.
	Matrix *mat.Dense
	// Mask flags the correspondences consistent with Matrix.
	Mask []bool
	// NumInliers is the number of true entries in Mask.
	NumInliers int
	// Median is the least median of the squared Sampson residuals.
	Median float64
}

type epipolarSolver func(pts1, pts2 []r2.Point) (*mat.Dense, error)

// EstimateEssentialMatrixLMedS estimates the essential matrix relating the pixel correspondences
// pts1 (left) and pts2 (right) taken by cameras with the given intrinsics. Hypotheses come from the
// normalized 8-point algorithm and are ranked by the median squared Sampson residual.
func EstimateEssentialMatrixLMedS(
	pts1, pts2 []r2.Point,
	params *PinholeCameraIntrinsics,
	cfg LMedSConfig,
) (*EpipolarEstimate, error) {
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	return runLMedS(params.Normalize(pts1), params.Normalize(pts2), essentialFromPoints, cfg)
}

// EstimateFundamentalMatrixLMedS estimates the fundamental matrix of uncalibrated pixel correspondences.
func EstimateFundamentalMatrixLMedS(pts1, pts2 []r2.Point, cfg LMedSConfig) (*EpipolarEstimate, error) {
	return runLMedS(pts1, pts2, func(p1, p2 []r2.Point) (*mat.Dense, error) {
		return ComputeFundamentalMatrixAllPoints(p1, p2, true)
	}, cfg)
}

func runLMedS(pts1, pts2 []r2.Point, solve epipolarSolver, cfg LMedSConfig) (*EpipolarEstimate, error) {
	if len(pts1) != len(pts2) {
		return nil, errors.New("sets of points pts1 and pts2 must have the same number of elements")
	}
	n := len(pts1)
	if n < eightPointSamples {
		return nil, rutils.NewInsufficientDataError("need at least %d correspondences, got %d", eightPointSamples, n)
	}
	//nolint:gosec
	rng := rand.New(rand.NewSource(cfg.Seed))
	trials := cfg.NumTrials()
	if n == eightPointSamples {
		trials = 1
	}

	residuals := make([]float64, n)
	var best *mat.Dense
	bestMedian := math.Inf(1)
	sample1 := make([]r2.Point, eightPointSamples)
	sample2 := make([]r2.Point, eightPointSamples)
	for trial := 0; trial < trials; trial++ {
		for i, idx := range rutils.SampleDistinctInts(n, eightPointSamples, rng) {
			sample1[i] = pts1[idx]
			sample2[i] = pts2[idx]
		}
		model, err := solve(sample1, sample2)
		if err != nil {
			continue
		}
		sampsonResiduals(model, pts1, pts2, residuals)
		if median := rutils.Median(residuals...); median < bestMedian {
			bestMedian = median
			best = model
		}
	}
	if best == nil {
		return nil, rutils.NewInsufficientDataError("every sample of %d correspondences was degenerate", n)
	}

	// robust standard deviation of the residuals around the best model
	dof := float64(n - eightPointSamples)
	if dof < 1 {
		dof = 1
	}
	sigma := 2.5 * 1.4826 * (1 + 5/dof) * math.Sqrt(bestMedian)
	sigma = math.Max(sigma, 0.001)
	threshold := sigma * sigma

	sampsonResiduals(best, pts1, pts2, residuals)
	mask, count := inlierMask(residuals, threshold)
	estimate := &EpipolarEstimate{Matrix: best, Mask: mask, NumInliers: count, Median: bestMedian}

	// refit on the consensus set
	if count > eightPointSamples {
		in1, in2 := applyMask(pts1, mask), applyMask(pts2, mask)
		if refined, err := solve(in1, in2); err == nil {
			sampsonResiduals(refined, pts1, pts2, residuals)
			if refinedMask, refinedCount := inlierMask(residuals, threshold); refinedCount >= count {
				estimate.Matrix = refined
				estimate.Mask = refinedMask
				estimate.NumInliers = refinedCount
			}
		}
	}
	if estimate.NumInliers == 0 {
		return nil, rutils.NewInsufficientDataError("no inliers among %d correspondences", n)
	}
	return estimate, nil
}

func inlierMask(residuals []float64, threshold float64) ([]bool, int) {
	mask := make([]bool, len(residuals))
	count := 0
	for i, r := range residuals {
		if r <= threshold {
			mask[i] = true
			count++
		}
	}
	return mask, count
}

func applyMask(pts []r2.Point, mask []bool) []r2.Point {
	out := make([]r2.Point, 0, len(pts))
	for i, pt := range pts {
		if mask[i] {
			out = append(out, pt)
		}
	}
	return out
}

// sampsonResiduals writes the squared Sampson distance of every correspondence to out.
func sampsonResiduals(m *mat.Dense, pts1, pts2 []r2.Point, out []float64) {
	for i := range pts1 {
		out[i] = SampsonDistance(m, pts1[i], pts2[i])
	}
}

// SampsonDistance returns the squared first-order geometric error of x2ᵀ·M·x1 = 0.
func SampsonDistance(m mat.Matrix, p1, p2 r2.Point) float64 {
	x1 := [3]float64{p1.X, p1.Y, 1}
	x2 := [3]float64{p2.X, p2.Y, 1}
	var mx1, mtx2 [3]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			mx1[r] += m.At(r, c) * x1[c]
			mtx2[c] += m.At(r, c) * x2[r]
		}
	}
	num := x2[0]*mx1[0] + x2[1]*mx1[1] + x2[2]*mx1[2]
	denom := mx1[0]*mx1[0] + mx1[1]*mx1[1] + mtx2[0]*mtx2[0] + mtx2[1]*mtx2[1]
	if denom == 0 {
		if num == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return num * num / denom
}

// essentialFromPoints fits an essential matrix to normalized correspondences and projects it
// onto the essential manifold (two equal singular values, one zero).
func essentialFromPoints(pts1, pts2 []r2.Point) (*mat.Dense, error) {
	f, err := ComputeFundamentalMatrixAllPoints(pts1, pts2, true)
	if err != nil {
		return nil, err
	}
	mats := performSVD(f)
	if mats == nil {
		return nil, errors.New("failed to factorize essential matrix")
	}
	s := (mats.S.At(0, 0) + mats.S.At(1, 1)) / 2
	S := mat.NewDense(3, 3, []float64{s, 0, 0, 0, s, 0, 0, 0, 0})
	var essMat mat.Dense
	essMat.Mul(mats.U, S)
	essMat.Mul(&essMat, mats.VT)
	if err := frobeniusNormalize(&essMat); err != nil {
		return nil, err
	}
	return &essMat, nil
}

// GetEssentialMatrixFromFundamental returns the essential matrix from the fundamental matrix and intrinsics parameters.
func GetEssentialMatrixFromFundamental(k1, k2, f *mat.Dense) (*mat.Dense, error) {
	var essMat, tmp mat.Dense
	tmp.Mul(transposeDense(k2), f)
	essMat.Mul(&tmp, k1)
	// enforce rank 2
	mats := performSVD(&essMat)
	if mats == nil {
		return nil, errors.New("failed to factorize essential matrix")
	}
	S := eye(3)
	S.Set(2, 2, 0)

	essMat.Mul(mats.U, S)
	essMat.Mul(&essMat, mats.VT)
	return &essMat, nil
}

// DecomposeEssentialMatrix decomposes the Essential matrix into 2 possible 3D rotations and a 3D translation.
func DecomposeEssentialMatrix(essMat *mat.Dense) (*mat.Dense, *mat.Dense, r3.Vector, error) {
	// svd
	mats := performSVD(essMat)
	if mats == nil {
		return nil, nil, r3.Vector{}, errors.New("failed to factorize essential matrix")
	}
	// check determinant sign of U and V
	if mat.Det(mats.U) < 0 {
		mats.U.Scale(-1, mats.U)
	}
	if mat.Det(mats.VT) < 0 {
		mats.VT.Scale(-1, mats.VT)
	}
	// create matrix W
	W := mat.NewDense(3, 3, nil)
	W.Set(0, 1, 1)
	W.Set(1, 0, -1)
	W.Set(2, 2, 1)
	// compute possible poses
	var R1, R2 mat.Dense
	// UWV^T
	R1.Mul(mats.U, W)
	R1.Mul(&R1, mats.VT)
	U3 := mats.U.ColView(2)
	t := r3.Vector{X: U3.AtVec(0), Y: U3.AtVec(1), Z: U3.AtVec(2)}
	// UW^TV^T
	R2.Mul(mats.U, transposeDense(W))
	R2.Mul(&R2, mats.VT)
	return &R1, &R2, t, nil
}

// ComputeFundamentalMatrixAllPoints compute the fundamental matrix from all points.
func ComputeFundamentalMatrixAllPoints(pts1, pts2 []r2.Point, normalize bool) (*mat.Dense, error) {
	if len(pts1) != len(pts2) {
		return nil, errors.New("sets of points pts1 and pts2 must have the same number of elements")
	}
	if len(pts1) < eightPointSamples {
		return nil, errors.New("sets of points must have at least 8 elements")
	}
	nPoints := len(pts1)

	var points1, points2 []r2.Point
	var T1, T2 *mat.Dense

	// if normalize, normalize points and get transform
	if normalize {
		var err error
		if points1, T1, err = normalizePoints(pts1); err != nil {
			return nil, err
		}
		if points2, T2, err = normalizePoints(pts2); err != nil {
			return nil, err
		}
	} else {
		points1 = make([]r2.Point, nPoints)
		copy(points1, pts1)
		points2 = make([]r2.Point, nPoints)
		copy(points2, pts2)
		T1 = eye(3)
		T2 = eye(3)
	}

	// a full SVD needs at least as many rows as columns, extra zero rows leave the null space unchanged
	rows := nPoints
	if rows < 9 {
		rows = 9
	}
	m := mat.NewDense(rows, 9, nil)
	for i := range points1 {
		v1 := points1[i]
		v2 := points2[i]
		row := []float64{
			v2.X * v1.X, v2.X * v1.Y, v2.X,
			v2.Y * v1.X, v2.Y * v1.Y, v2.Y,
			v1.X, v1.Y, 1,
		}
		m.SetRow(i, row)
	}

	// perform SVD on m
	mats1 := performSVD(m)
	if mats1 == nil {
		return nil, errors.New("failed to factorize the 8-point system")
	}
	V := mats1.V
	lastColV := V.ColView(8)

	// reshape into F
	lastColVdata := make([]float64, 9)
	for i := range lastColVdata {
		lastColVdata[i] = lastColV.AtVec(i)
	}
	F := mat.NewDense(3, 3, lastColVdata)

	// enforce rank 2 of F
	mats2 := performSVD(F)
	if mats2 == nil {
		return nil, errors.New("failed to factorize the fundamental matrix")
	}
	S := mats2.S
	S.Set(2, 2, 0)

	// get refined F: U@S@V2^T
	Fhat := mat.NewDense(3, 3, nil)
	Fhat.Mul(mats2.U, S)
	F.Mul(Fhat, mats2.VT)
	// rescale F: T2^T @ F @ T1
	T2T := transposeDense(T2)
	F.Mul(T2T, F)
	F.Mul(F, T1)

	if err := frobeniusNormalize(F); err != nil {
		return nil, err
	}
	return F, nil
}

// helpers

// frobeniusNormalize scales m to unit Frobenius norm. F(2,2) can vanish for calibrated
// coordinates, so it is not used as the scale.
func frobeniusNormalize(m *mat.Dense) error {
	norm := mat.Norm(m, 2)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return errors.New("degenerate epipolar matrix")
	}
	m.Scale(1/norm, m)
	return nil
}

// normalizePoints normalizes points as described in Multiple View Geometry, Alg 11.1.
func normalizePoints(pts []r2.Point) ([]r2.Point, *mat.Dense, error) {
	nPoints := len(pts)
	// computer centroid of points
	mu := r2.Point{X: 0, Y: 0}

	for _, pt := range pts {
		mu.X += pt.X
		mu.Y += pt.Y
	}
	mu = mu.Mul(1. / float64(nPoints))
	// compute scale factor
	d := 0.0
	for _, pt := range pts {
		x2 := (pt.X - mu.X) * (pt.X - mu.X)
		y2 := (pt.Y - mu.Y) * (pt.Y - mu.Y)
		d += math.Sqrt(x2+y2) / float64(nPoints)
	}
	if d == 0 {
		return nil, nil, errors.New("all points are coincident")
	}
	scale := math.Sqrt(2) / d
	transformData := []float64{
		scale, 0, -scale * mu.X,
		0, scale, -scale * mu.Y,
		0, 0, 1,
	}
	T := mat.NewDense(3, 3, transformData)
	// apply transform to points
	pointsTransformed := make([]r2.Point, nPoints)
	for i := range pointsTransformed {
		pointsTransformed[i] = r2.Point{X: scale * (pts[i].X - mu.X), Y: scale * (pts[i].Y - mu.Y)}
	}
	return pointsTransformed, T, nil
}

// mat.Dense utils.
func transposeDense(m *mat.Dense) *mat.Dense {
	nRows, nCols := m.Dims()
	m2 := mat.NewDense(nCols, nRows, nil)
	m3 := m.T()
	m2.Copy(m3)
	return m2
}

// eye create an identity matrix of size nxn.
func eye(n int) *mat.Dense {
	if n <= 0 {
		return nil
	}
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// matsSVD stores the matrices from SVD decomposition.
type matsSVD struct {
	U  *mat.Dense
	V  *mat.Dense
	VT *mat.Dense
	S  *mat.Dense
}

// performSVD performs SVD on inputMatrix and returns matrices U, Sigma and V from the decomposition.
func performSVD(inputMatrix *mat.Dense) *matsSVD {
	var svd mat.SVD
	ok := svd.Factorize(inputMatrix, mat.SVDFull)
	if !ok {
		return nil
	}

	u, v, sigma, vt := &mat.Dense{}, &mat.Dense{}, &mat.Dense{}, &mat.Dense{}

	svd.UTo(u)
	svd.VTo(v)
	vt.CloneFrom(v.T())

	singularValues := svd.Values(nil)
	// firstly create diag matrix. Next fill new sigma matrix with zeros
	sigma.CloneFrom(mat.NewDiagDense(len(singularValues), singularValues))

	return &matsSVD{u, v, vt, sigma}
}
