// Package pipeline chains the reconstruction stages of a run: image models, pairwise
// triangulation, label classification, density clustering, line fitting and export.
package pipeline

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"

	"go.viam.com/edgeplan/config"
	"go.viam.com/edgeplan/export"
	"go.viam.com/edgeplan/logging"
	"go.viam.com/edgeplan/pointcloud"
	"go.viam.com/edgeplan/reconstruction"
	rutils "go.viam.com/edgeplan/utils"
	"go.viam.com/edgeplan/vision/keypoints"
	"go.viam.com/edgeplan/vision/segmentation"
)

// EdgesResource is the store resource holding the points kept by the label classifier.
const EdgesResource = "edges"

// Pipeline runs the stages of a configuration against a point store and an exporter.
type Pipeline struct {
	cfg      *config.Config
	store    pointcloud.Store
	exporter export.Exporter
	// outputDir receives the cluster files. They are skipped when it is empty.
	outputDir string
	logger    logging.Logger
}

// New returns a pipeline. outputDir may be empty to skip the cluster files.
func New(
	cfg *config.Config,
	store pointcloud.Store,
	exporter export.Exporter,
	outputDir string,
	logger logging.Logger,
) *Pipeline {
	return &Pipeline{cfg: cfg, store: store, exporter: exporter, outputDir: outputDir, logger: logger}
}

// NewFromConfig returns a pipeline writing every output into the configured output directory.
func NewFromConfig(cfg *config.Config, logger logging.Logger) (*Pipeline, error) {
	store, err := pointcloud.NewDirStore(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	return New(cfg, store, export.NewTextExporter(resolvePath(cfg.OutputDir, cfg.Export.Path)), cfg.OutputDir, logger), nil
}

func resolvePath(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// Result is everything a run produced.
type Result struct {
	Reconstruction *reconstruction.RunResult
	Edges          *pointcloud.Cloud
	Vector         *VectorResult
}

// VectorResult is the outcome of clustering and line fitting.
type VectorResult struct {
	Clusters *segmentation.DBSCANResult
	Segments []segmentation.LineSegment
}

// ImagePaths returns the configured images, or every image of the image directory with the
// configured extension.
func (p *Pipeline) ImagePaths() ([]string, error) {
	var paths []string
	if len(p.cfg.Images) > 0 {
		for _, img := range p.cfg.Images {
			paths = append(paths, resolvePath(p.cfg.ImageDir, img))
		}
	} else {
		found, err := reconstruction.FindImages(p.cfg.ImageDir, p.cfg.ImageExt)
		if err != nil {
			return nil, err
		}
		paths = found
	}
	if len(paths) == 0 {
		return nil, rutils.NewDataError("no %s images in %q", p.cfg.ImageExt, p.cfg.ImageDir)
	}
	return paths, nil
}

// LoadImages builds the image models with the configured feature extractor.
func (p *Pipeline) LoadImages(ctx context.Context) ([]*reconstruction.ImageModel, error) {
	ext, err := keypoints.NewExtractor(p.cfg.Features.Method, p.cfg.Features.Attributes)
	if err != nil {
		return nil, err
	}
	paths, err := p.ImagePaths()
	if err != nil {
		return nil, err
	}
	p.logger.Infof("found %d images, extracting %s features", len(paths), ext.Name())
	return reconstruction.LoadImages(ctx, paths, ext, p.cfg.CameraTable(), p.cfg.Workers,
		p.cfg.Features.PlotDir, p.logger.Sublogger("images"))
}

// Run loads the configured images and runs every stage.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	images, err := p.LoadImages(ctx)
	if err != nil {
		return nil, err
	}
	return p.RunImages(ctx, images)
}

// RunImages runs every stage on already built image models.
func (p *Pipeline) RunImages(ctx context.Context, images []*reconstruction.ImageModel) (*Result, error) {
	rec, err := reconstruction.NewReconstructor(
		images,
		reconstruction.SettingsFromConfig(p.cfg),
		p.store,
		p.cfg.Accumulation,
		p.cfg.Workers,
		p.logger.Sublogger("reconstruction"),
	)
	if err != nil {
		return nil, err
	}
	run, err := rec.Run(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := p.Classify(run.Merged)
	if err != nil {
		return nil, err
	}
	vec, err := p.Vectorize(ctx, edges)
	if err != nil {
		return nil, err
	}
	return &Result{Reconstruction: run, Edges: edges, Vector: vec}, nil
}

// Classify keeps the merged points whose label reaches the configured threshold and stores them.
func (p *Pipeline) Classify(merged *pointcloud.Cloud) (*pointcloud.Cloud, error) {
	edges := pointcloud.FilterByLabel(merged, p.cfg.Classify.Threshold)
	if err := p.store.Reset(EdgesResource); err != nil {
		return nil, err
	}
	if err := p.store.Append(EdgesResource, edges.Points()); err != nil {
		return nil, err
	}
	p.logger.Infof("%d of %d points have a label of at least %d", edges.Size(), merged.Size(), p.cfg.Classify.Threshold)
	return edges, nil
}

// Vectorize clusters the edge points, fits one segment per cluster and exports the segments.
func (p *Pipeline) Vectorize(ctx context.Context, edges *pointcloud.Cloud) (*VectorResult, error) {
	positions := edges.Positions()
	clusters, err := segmentation.DBSCAN(positions, p.cfg.Cluster.Eps, p.cfg.Cluster.MinSamples)
	if err != nil {
		return nil, err
	}
	p.logger.Infof("%d clusters and %d noise points out of %d points",
		clusters.NumClusters, clusters.NumNoise, len(positions))
	if p.outputDir != "" {
		if err := writeClusterFiles(p.outputDir, positions, clusters.Labels); err != nil {
			return nil, errors.Wrap(err, "cannot write cluster files")
		}
	}

	segments, err := segmentation.ExtractLines(ctx, positions, clusters.Labels, p.cfg.Cluster.LineFit(),
		p.logger.Sublogger("lines"))
	if err != nil {
		return nil, err
	}
	layer := export.Layer{Name: p.cfg.Export.LayerName, Color: p.cfg.Export.LayerColor}
	if err := p.exporter.Export(ctx, segments, layer); err != nil {
		return nil, errors.Wrap(err, "cannot export segments")
	}
	p.logger.Infof("exported %d segments on layer %q", len(segments), layer.Name)
	return &VectorResult{Clusters: clusters, Segments: segments}, nil
}
