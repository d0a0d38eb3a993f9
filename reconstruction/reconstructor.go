package reconstruction

import (
	"context"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/edgeplan/config"
	"go.viam.com/edgeplan/logging"
	"go.viam.com/edgeplan/pointcloud"
	rutils "go.viam.com/edgeplan/utils"
)

// Resource names written to the point store.
const (
	MergedResource  = "merged"
	LabeledResource = "labeled"
	labeledSuffix   = "_labeled"
)

// LabeledResourceName returns where the labelled points of pair p go under the given policy.
func LabeledResourceName(policy config.AccumulationPolicy, p Pair, numPairs int) string {
	switch policy {
	case config.AccumulateMerged:
		return LabeledResource
	case config.AccumulatePerPair:
		return p.String() + labeledSuffix
	default:
		if numPairs == 1 {
			return LabeledResource
		}
		return p.String() + labeledSuffix
	}
}

// Reconstructor runs every pair of a set of image models and writes the triangulated points.
type Reconstructor struct {
	images   []*ImageModel
	settings Settings
	store    pointcloud.Store
	policy   config.AccumulationPolicy
	workers  int
	logger   logging.Logger
}

// NewReconstructor returns a reconstructor over images. The ID of every image must be its index. An
// unknown capture mode is a configuration error.
func NewReconstructor(
	images []*ImageModel,
	settings Settings,
	store pointcloud.Store,
	policy config.AccumulationPolicy,
	workers int,
	logger logging.Logger,
) (*Reconstructor, error) {
	if len(images) == 0 {
		return nil, rutils.NewDataError("empty image set")
	}
	for i, im := range images {
		if im.ID != i {
			return nil, errors.Errorf("image %q has ID %d at index %d", im.Name, im.ID, i)
		}
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if policy == "" {
		policy = config.AccumulateAuto
	}
	return &Reconstructor{
		images:   images,
		settings: settings,
		store:    store,
		policy:   policy,
		workers:  workers,
		logger:   logger,
	}, nil
}

// RunResult is the outcome of a reconstruction run.
type RunResult struct {
	// Merged holds the points of every pair in pair order.
	Merged *pointcloud.Cloud
	// Pairs are the reconstructed pairs in pair order.
	Pairs []*PairResult
	// Skipped are the pairs that ran out of support.
	Skipped []Pair
}

// Run reconstructs every pair on the worker pool, then merges and stores the results in pair order.
// Pairs that run out of support are logged and skipped. Any other failure aborts the run.
func (r *Reconstructor) Run(ctx context.Context) (*RunResult, error) {
	pairs := EnumeratePairs(len(r.images))
	if len(pairs) == 0 {
		r.logger.Warn("a single image yields no pair")
	}
	r.logger.Infof("reconstructing %d pairs of %d images", len(pairs), len(r.images))

	results, err := rutils.RunIndexedParallel(ctx, len(pairs), r.workers, func(ctx context.Context, i int) (*PairResult, error) {
		p := pairs[i]
		logger := r.logger.Sublogger("pair" + p.String())
		if lo.Contains(r.settings.Trace, p.String()) {
			ctx = logging.WithTrace(ctx, "pair"+p.String())
		}
		res, err := ReconstructPair(ctx, r.images[p.I], r.images[p.J], i, r.settings, logger)
		if err != nil {
			if rutils.IsRecoverable(err) {
				logger.Warnw("skipping pair", "pair", p.String(), "error", err)
				return nil, nil
			}
			return nil, err
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}

	out := &RunResult{Merged: pointcloud.New()}
	for i, res := range results {
		if res == nil {
			out.Skipped = append(out.Skipped, pairs[i])
			continue
		}
		out.Pairs = append(out.Pairs, res)
		out.Merged.Append(res.Points...)
	}
	if err := r.write(out, pairs); err != nil {
		return nil, err
	}
	md := out.Merged.MetaData()
	r.logger.Infof("merged %d points from %d pairs, %d labelled, %d pairs skipped",
		out.Merged.Size(), len(out.Pairs), md.Labelled, len(out.Skipped))
	return out, nil
}

// write is the single writer of the store. The resources of every enumerated pair are reset, so
// that a skipped pair leaves no points of an earlier run behind.
func (r *Reconstructor) write(res *RunResult, pairs []Pair) error {
	if err := r.store.Reset(MergedResource); err != nil {
		return err
	}
	if err := r.store.Append(MergedResource, res.Merged.Points()); err != nil {
		return err
	}
	reset := map[string]bool{}
	for _, p := range pairs {
		for _, name := range []string{p.String(), LabeledResourceName(r.policy, p, len(pairs))} {
			if reset[name] {
				continue
			}
			if err := r.store.Reset(name); err != nil {
				return err
			}
			reset[name] = true
		}
	}
	for _, pr := range res.Pairs {
		if err := r.store.Append(pr.Pair.String(), pr.Points); err != nil {
			return err
		}
		if err := r.store.Append(LabeledResourceName(r.policy, pr.Pair, len(pairs)), pr.Labelled()); err != nil {
			return err
		}
	}
	return nil
}
