package reconstruction

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/edgeplan/config"
	"go.viam.com/edgeplan/logging"
	"go.viam.com/edgeplan/pointcloud"
	"go.viam.com/edgeplan/rimage/transform"
	rutils "go.viam.com/edgeplan/utils"
	"go.viam.com/edgeplan/vision/keypoints"
)

// Settings are the knobs of the per pair reconstruction.
type Settings struct {
	Matching config.MatchingConfig
	Pose     config.PoseConfig
	Capture  config.CaptureConfig
	// Trace names the pairs ("01", "12", ...) whose intermediate matrices are logged whatever the
	// log level is.
	Trace []string
}

// Validate resolves the capture mode aliases. An unknown capture mode is a configuration error.
func (s *Settings) Validate() error {
	mode, err := config.ParseCaptureMode(string(s.Capture.Mode))
	if err != nil {
		return err
	}
	s.Capture.Mode = mode
	return nil
}

// SettingsFromConfig extracts the per pair settings of a run configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{Matching: cfg.Matching, Pose: cfg.Pose, Capture: cfg.Capture, Trace: cfg.TracePairs}
}

// Pose is the recovered relative pose of a pair and the projection matrices used to triangulate it,
// both expressed in the frame of the right camera.
type Pose struct {
	Relative        *transform.RelativePose
	LeftProjection  *mat.Dense
	RightProjection *mat.Dense
}

// PairResult is what one pair contributes to the run, with the support left after every stage.
type PairResult struct {
	Pair   Pair
	PairID int
	Pose   Pose
	Points []pointcloud.Point

	Candidates       int
	GoodMatches      int
	EssentialInliers int
	PoseInliers      int
	// Discarded counts triangulated points at infinity or outside the frontal bound.
	Discarded int
}

// Labelled returns the points sampled on fully labelled pixels.
func (pr *PairResult) Labelled() []pointcloud.Point {
	var out []pointcloud.Point
	for _, p := range pr.Points {
		if p.Label == pointcloud.MaxLabel {
			out = append(out, p)
		}
	}
	return out
}

// pairState carries a single pair through the stages. It is created fresh for every pair and
// never shared.
type pairState struct {
	//nolint:containedctx
	ctx         context.Context
	left, right *ImageModel
	settings    Settings
	logger      logging.Logger

	corr   *Correspondences
	result *PairResult
}

// ReconstructPair matches the left and right images, recovers their relative pose and triangulates
// the surviving correspondences. Stages that run out of support return an insufficient data error.
func ReconstructPair(
	ctx context.Context,
	left, right *ImageModel,
	pairID int,
	settings Settings,
	logger logging.Logger,
) (*PairResult, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	ps := &pairState{
		ctx:      ctx,
		left:     left,
		right:    right,
		settings: settings,
		logger:   logger,
		result:   &PairResult{Pair: Pair{I: left.ID, J: right.ID}, PairID: pairID},
	}
	stages := []func() error{ps.match, ps.estimateEssential, ps.recoverPose, ps.triangulate}
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stage(); err != nil {
			return nil, err
		}
	}
	return ps.result, nil
}

func (ps *pairState) match() error {
	ps.logger.Infof("matching image %d with image %d", ps.left.ID, ps.right.ID)
	matches, candidates, err := keypoints.MatchDescriptors(
		ps.left.Descriptors, ps.right.Descriptors, ps.settings.Matching.LowesRatio)
	if err != nil {
		return rutils.NewConfigurationError("pair %s: %v", ps.result.Pair, err)
	}
	ps.result.Candidates = candidates
	ps.result.GoodMatches = len(matches)
	ps.logger.Infof("%d good matches out of %d", len(matches), candidates)
	if len(matches) == 0 {
		return rutils.NewInsufficientDataError("pair %s: no good matches out of %d", ps.result.Pair, candidates)
	}
	ps.corr = NewCorrespondences(ps.left, ps.right, matches)
	return nil
}

func (ps *pairState) estimateEssential() error {
	before := ps.corr.Len()
	params := ps.left.Intrinsics
	var estimate *transform.EpipolarEstimate
	var essential, fundamental *mat.Dense
	var err error
	if ps.settings.Pose.UseFundamental {
		estimate, err = transform.EstimateFundamentalMatrixLMedS(ps.corr.Left, ps.corr.Right, ps.settings.Pose.LMedS)
		if err == nil {
			k := params.GetCameraMatrix()
			fundamental = estimate.Matrix
			essential, err = transform.GetEssentialMatrixFromFundamental(k, k, fundamental)
		}
	} else {
		estimate, err = transform.EstimateEssentialMatrixLMedS(ps.corr.Left, ps.corr.Right, params, ps.settings.Pose.LMedS)
		if err == nil {
			essential = estimate.Matrix
		}
	}
	if err != nil {
		return ps.insufficient("essential matrix", err)
	}
	if ps.corr, err = ps.corr.Apply(estimate.Mask); err != nil {
		return err
	}
	ps.result.EssentialInliers = ps.corr.Len()
	ps.result.Pose.Relative = &transform.RelativePose{Essential: essential, Fundamental: fundamental}
	ps.logger.Infof("essential matrix keeps %d out of %d", ps.corr.Len(), before)
	ps.logger.CDebugf(ps.ctx, "essential matrix (least median %g):\n%v", estimate.Median, mat.Formatted(essential))
	return nil
}

func (ps *pairState) recoverPose() error {
	before := ps.corr.Len()
	rel := ps.result.Pose.Relative
	pose, mask, err := transform.RecoverPose(
		rel.Essential, ps.corr.Left, ps.corr.Right, ps.left.Intrinsics, ps.settings.Pose.DepthThreshold)
	if err != nil {
		return ps.insufficient("pose", err)
	}
	pose.Fundamental = rel.Fundamental
	if ps.corr, err = ps.corr.Apply(mask); err != nil {
		return err
	}
	ps.result.PoseInliers = ps.corr.Len()
	ps.result.Pose.Relative = pose
	ps.logger.Infof("pose keeps %d out of %d", ps.corr.Len(), before)
	ps.logger.CDebugf(ps.ctx, "rotation:\n%v\ntranslation: %v", mat.Formatted(pose.Rotation), pose.Translation)
	return nil
}

func (ps *pairState) triangulate() error {
	left, right := transform.ProjectionMatrices(ps.left.Intrinsics, ps.result.Pose.Relative)
	ps.result.Pose.LeftProjection = left
	ps.result.Pose.RightProjection = right
	hom, err := transform.TriangulatePoints(right, left, ps.corr.Right, ps.corr.Left)
	if err != nil {
		return ps.insufficient("triangulation", err)
	}
	positions := transform.Dehomogenize(hom)
	ps.result.Points = make([]pointcloud.Point, 0, len(positions))
	for i, v := range positions {
		if !transform.IsFinite(v) {
			ps.result.Discarded++
			continue
		}
		out, ok, err := RemapPoint(v, ps.settings.Capture)
		if err != nil {
			return err
		}
		if !ok {
			ps.result.Discarded++
			continue
		}
		s := ps.corr.Samples[i]
		ps.result.Points = append(ps.result.Points, pointcloud.Point{
			Position: out,
			R:        s.R,
			G:        s.G,
			B:        s.B,
			Label:    s.Label,
			PairID:   ps.result.PairID,
		})
	}
	ps.logger.CDebugf(ps.ctx, "pair %s: %d points, %d discarded", ps.result.Pair, len(ps.result.Points), ps.result.Discarded)
	return nil
}

// insufficient classifies a failed estimation stage as recoverable for the pair.
func (ps *pairState) insufficient(stage string, err error) error {
	if rutils.IsRecoverable(err) {
		return errors.Wrapf(err, "pair %s: %s", ps.result.Pair, stage)
	}
	return rutils.NewInsufficientDataError("pair %s: %s failed: %v", ps.result.Pair, stage, err)
}

// RemapPoint maps a triangulated point to the output frame of the capture mode. Frontal captures
// become (-X, Z*s, Y) and are rejected when either of the first two coordinates exceeds the bound.
// An unknown mode is a configuration error.
func RemapPoint(v r3.Vector, capture config.CaptureConfig) (r3.Vector, bool, error) {
	switch capture.Mode {
	case config.CaptureOverhead:
		return r3.Vector{X: v.X, Y: v.Y, Z: v.Z * capture.ZScale}, true, nil
	case config.CaptureFrontal:
		out := r3.Vector{X: -v.X, Y: v.Z * capture.ZScale, Z: v.Y}
		if out.X > capture.Bound || out.Y > capture.Bound {
			return r3.Vector{}, false, nil
		}
		return out, true, nil
	default:
		return r3.Vector{}, false, rutils.NewConfigurationError("unknown capture mode %q", capture.Mode)
	}
}
