package segmentation

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	rutils "go.viam.com/edgeplan/utils"
)

// LineModel is an infinite 3D line through Origin along the unit vector Direction.
type LineModel struct {
	Origin    r3.Vector
	Direction r3.Vector
}

// Residual returns the orthogonal distance of p to the line.
func (l LineModel) Residual(p r3.Vector) float64 {
	v := p.Sub(l.Origin)
	return v.Sub(l.Direction.Mul(v.Dot(l.Direction))).Norm()
}

// Project returns the point of the line closest to p.
func (l LineModel) Project(p r3.Vector) r3.Vector {
	return l.Origin.Add(l.Direction.Mul(p.Sub(l.Origin).Dot(l.Direction)))
}

// EstimateLine fits a line to the points. Two points define the line through them; more
// points are fit in the least squares sense through their centroid along the first
// principal component. It returns false when the points do not span a direction.
func EstimateLine(points []r3.Vector) (LineModel, bool) {
	if len(points) < 2 {
		return LineModel{}, false
	}
	if len(points) == 2 {
		dir := points[1].Sub(points[0])
		if dir.Norm() == 0 {
			return LineModel{}, false
		}
		return LineModel{Origin: points[0], Direction: dir.Normalize()}, true
	}
	data := mat.NewDense(len(points), 3, nil)
	var centroid r3.Vector
	for i, p := range points {
		data.SetRow(i, []float64{p.X, p.Y, p.Z})
		centroid = centroid.Add(p)
	}
	centroid = centroid.Mul(1 / float64(len(points)))

	var pc stat.PC
	if ok := pc.PrincipalComponents(data, nil); !ok {
		return LineModel{}, false
	}
	vars := pc.VarsTo(nil)
	if len(vars) == 0 || vars[0] == 0 {
		return LineModel{}, false
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	dir := r3.Vector{X: vecs.At(0, 0), Y: vecs.At(1, 0), Z: vecs.At(2, 0)}
	return LineModel{Origin: centroid, Direction: dir.Normalize()}, true
}

// LineFitConfig bounds the random sample consensus search of FitLineRANSAC.
type LineFitConfig struct {
	MinSamples        int     `json:"min_samples"`
	ResidualThreshold float64 `json:"residual_threshold"`
	MaxTrials         int     `json:"max_trials"`
	StopProbability   float64 `json:"stop_probability"`
	Seed              int64   `json:"seed"`
}

// DefaultLineFitConfig returns the fit settings paired with a clustering radius eps: the
// residual threshold is eps - eps/10, tighter than the radius.
func DefaultLineFitConfig(eps float64) LineFitConfig {
	return LineFitConfig{
		MinSamples:        2,
		ResidualThreshold: eps - eps/10,
		MaxTrials:         1000,
		StopProbability:   1,
		Seed:              1,
	}
}

// Validate checks the fit settings.
func (cfg LineFitConfig) Validate() error {
	if cfg.MinSamples < 2 {
		return rutils.NewConfigurationError("min_samples should be >= 2, got %d", cfg.MinSamples)
	}
	if cfg.ResidualThreshold <= 0 {
		return rutils.NewConfigurationError("residual_threshold should be > 0, got %v", cfg.ResidualThreshold)
	}
	if cfg.MaxTrials < 1 {
		return rutils.NewConfigurationError("max_trials should be >= 1, got %d", cfg.MaxTrials)
	}
	if cfg.StopProbability < 0 || cfg.StopProbability > 1 {
		return rutils.NewConfigurationError("stop_probability should be in [0, 1], got %v", cfg.StopProbability)
	}
	return nil
}

// LineFit is the consensus line of a point set.
type LineFit struct {
	Model LineModel
	// Inliers flags the points within the residual threshold of the best sampled model.
	Inliers    []bool
	NumInliers int
	// Trials is the number of samples drawn.
	Trials int
	// Start and End are the first and last inlier in input order.
	Start, End r3.Vector
}

// dynamicMaxTrials is the number of samples after which an all-inlier sample has been drawn
// with the given probability.
func dynamicMaxTrials(nInliers, nSamples, minSamples int, probability float64) float64 {
	if probability == 1 || nInliers == 0 {
		return math.Inf(1)
	}
	const eps = 1e-12
	ratio := float64(nInliers) / float64(nSamples)
	nom := math.Max(eps, 1-probability)
	denom := math.Max(eps, 1-math.Pow(ratio, float64(minSamples)))
	return math.Ceil(math.Log(nom) / math.Log(denom))
}

// FitLineRANSAC finds the line supported by the most points within cfg.ResidualThreshold.
// Ties in inlier count go to the lower sum of squared residuals. The search stops after
// cfg.MaxTrials samples, or earlier once an all-inlier sample has been drawn with
// cfg.StopProbability. The returned model is refit on the inliers of the best sample.
func FitLineRANSAC(points []r3.Vector, cfg LineFitConfig) (*LineFit, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := len(points)
	if n < cfg.MinSamples {
		return nil, rutils.NewInsufficientDataError("%d points cannot support a %d point line sample", n, cfg.MinSamples)
	}
	//nolint:gosec
	rng := rand.New(rand.NewSource(cfg.Seed))

	var best *LineFit
	bestScore := math.Inf(1)
	sample := make([]r3.Vector, cfg.MinSamples)
	trials := 0
	for trials < cfg.MaxTrials {
		trials++
		for i, idx := range rutils.SampleDistinctInts(n, cfg.MinSamples, rng) {
			sample[i] = points[idx]
		}
		model, ok := EstimateLine(sample)
		if !ok {
			continue
		}
		mask := make([]bool, n)
		count := 0
		score := 0.
		for i, p := range points {
			r := model.Residual(p)
			score += r * r
			if r < cfg.ResidualThreshold {
				mask[i] = true
				count++
			}
		}
		if best == nil || count > best.NumInliers || (count == best.NumInliers && score < bestScore) {
			best = &LineFit{Model: model, Inliers: mask, NumInliers: count}
			bestScore = score
			if count == n || float64(trials) >= dynamicMaxTrials(count, n, cfg.MinSamples, cfg.StopProbability) {
				break
			}
		}
	}
	if best == nil || best.NumInliers == 0 {
		return nil, rutils.NewInsufficientDataError("no line supported by any of %d points after %d trials", n, trials)
	}
	best.Trials = trials

	inliers := make([]r3.Vector, 0, best.NumInliers)
	for i, in := range best.Inliers {
		if in {
			inliers = append(inliers, points[i])
		}
	}
	if refit, ok := EstimateLine(inliers); ok {
		best.Model = refit
	}
	best.Start = inliers[0]
	best.End = inliers[len(inliers)-1]
	return best, nil
}
