package segmentation

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/golang/geo/r3"

	"go.viam.com/edgeplan/logging"
	rutils "go.viam.com/edgeplan/utils"
)

// LineSegment is the representative segment of one cluster.
type LineSegment struct {
	Start     r3.Vector
	End       r3.Vector
	ClusterID int
}

// Length returns the distance between the endpoints.
func (s LineSegment) Length() float64 {
	return s.Start.Distance(s.End)
}

// ExtractLines fits one segment per cluster, in cluster ID order. Clusters of more than two
// points go through FitLineRANSAC, clusters of exactly two points are used verbatim and
// smaller ones are dropped. A cluster whose fit finds no support is skipped and logged.
func ExtractLines(
	ctx context.Context,
	points []r3.Vector,
	labels []int,
	cfg LineFitConfig,
	logger logging.Logger,
) ([]LineSegment, error) {
	if len(points) != len(labels) {
		return nil, rutils.NewDataError("%d points but %d labels", len(points), len(labels))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clusters := GroupClusters(labels)
	segments := make([]LineSegment, 0, len(clusters))
	for _, c := range clusters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		members := c.Points(points)
		switch {
		case len(members) > 2:
			fitCfg := cfg
			fitCfg.Seed = cfg.Seed + int64(c.ID)
			fit, err := FitLineRANSAC(members, fitCfg)
			if err != nil {
				if rutils.IsRecoverable(err) {
					logger.Warnw("skipping cluster", "cluster", c.ID, "points", len(members), "error", err)
					continue
				}
				return nil, err
			}
			logger.Debugf("cluster %d: %d inliers out of %d points after %d trials", c.ID, fit.NumInliers, len(members), fit.Trials)
			segments = append(segments, LineSegment{Start: fit.Start, End: fit.End, ClusterID: c.ID})
		case len(members) == 2:
			segments = append(segments, LineSegment{Start: members[0], End: members[1], ClusterID: c.ID})
		default:
			logger.Debugf("dropping cluster %d with %d point(s)", c.ID, len(members))
		}
	}
	return segments, nil
}

// WriteClusterLabels writes one `x y z label` line per point, clustered points to clustered
// and noise points to noise.
func WriteClusterLabels(clustered, noise io.Writer, points []r3.Vector, labels []int) error {
	if len(points) != len(labels) {
		return rutils.NewDataError("%d points but %d labels", len(points), len(labels))
	}
	cw := bufio.NewWriter(clustered)
	nw := bufio.NewWriter(noise)
	for i, p := range points {
		w := cw
		if labels[i] == Noise {
			w = nw
		}
		if _, err := fmt.Fprintf(w, "%s %d\n", rutils.FormatVector(p), labels[i]); err != nil {
			return err
		}
	}
	if err := cw.Flush(); err != nil {
		return err
	}
	return nw.Flush()
}
