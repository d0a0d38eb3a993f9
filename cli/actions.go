package cli

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"go.viam.com/edgeplan/config"
	"go.viam.com/edgeplan/export"
	"go.viam.com/edgeplan/logging"
	"go.viam.com/edgeplan/pipeline"
	"go.viam.com/edgeplan/pointcloud"
	"go.viam.com/edgeplan/reconstruction"
	"go.viam.com/edgeplan/vision/tuning"
)

// loadConfig reads the --config file, or the defaults when none is given.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Read(path); err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if c.Bool(flagDebug) {
		cfg.Debug = true
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) logging.Logger {
	logger := logging.NewLogger("edgeplan")
	logger.SetLevel(cfg.Level())
	return logger
}

// pathOrDefault returns the flag value, or name inside the output directory.
func pathOrDefault(c *cli.Context, flag string, cfg *config.Config, name string) string {
	if v := c.String(flag); v != "" {
		return v
	}
	return filepath.Join(cfg.OutputDir, name)
}

func intOrDefault(c *cli.Context, flag string, def int) int {
	if v := c.Int(flag); v >= 0 {
		return v
	}
	return def
}

// RunAction is the corresponding action for 'run'.
func RunAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer utils.UncheckedErrorFunc(logger.Sync)

	p, err := pipeline.NewFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	res, err := p.Run(c.Context)
	if err != nil {
		return err
	}
	rec := res.Reconstruction
	infof(c.App.Writer, "Reconstructed %d of %d pairs into %d points",
		len(rec.Pairs), len(rec.Pairs)+len(rec.Skipped), rec.Merged.Size())
	if len(rec.Pairs) > 0 {
		printf(c.App.Writer, "%s", pairTable(rec.Pairs))
	}
	for _, skipped := range rec.Skipped {
		warningf(c.App.ErrWriter, "Pair %s was skipped", skipped)
	}
	printf(c.App.Writer, "%d edge points, %d clusters, %d segments written to %s",
		res.Edges.Size(), res.Vector.Clusters.NumClusters, len(res.Vector.Segments), cfg.OutputDir)
	return nil
}

// ClassifyAction is the corresponding action for 'classify'.
func ClassifyAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	opts := pointcloud.ClassifyOptions{
		Threshold:   intOrDefault(c, flagThreshold, cfg.Classify.Threshold),
		HeaderLines: intOrDefault(c, flagHeaderLines, cfg.Classify.HeaderLines),
		LabelField:  pointcloud.LabelFieldForMethod(intOrDefault(c, flagMethod, cfg.Classify.Method)),
	}
	src := pathOrDefault(c, flagInput, cfg, reconstruction.MergedResource+".txt")
	dst := pathOrDefault(c, flagOutput, cfg, pipeline.EdgesResource+".txt")
	count, err := pointcloud.ClassifyFile(src, dst, opts)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%d points with a label of at least %d written to %s", count, opts.Threshold, dst)
	return nil
}

// readCloud reads a LAS file, or a text point file without header through readText.
func readCloud(
	path string,
	readText func(io.Reader, int) (*pointcloud.Cloud, error),
	logger logging.Logger,
) (*pointcloud.Cloud, error) {
	if strings.EqualFold(filepath.Ext(path), ".las") {
		return pointcloud.NewFromLASFile(path, logger)
	}
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %q", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)
	return readText(f, 0)
}

// ClusterAction is the corresponding action for 'cluster'.
func ClusterAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer utils.UncheckedErrorFunc(logger.Sync)

	edgesPath := pathOrDefault(c, flagInput, cfg, pipeline.EdgesResource+".txt")
	edges, err := readCloud(edgesPath, pointcloud.ReadCoordinates, logger)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o750); err != nil {
		return errors.WithStack(err)
	}
	exportPath := cfg.Export.Path
	if !filepath.IsAbs(exportPath) {
		exportPath = filepath.Join(cfg.OutputDir, exportPath)
	}
	p := pipeline.New(cfg, pointcloud.NewMemoryStore(), export.NewTextExporter(exportPath), cfg.OutputDir, logger)
	res, err := p.Vectorize(c.Context, edges)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%d clusters, %d noise points, %d segments written to %s",
		res.Clusters.NumClusters, res.Clusters.NumNoise, len(res.Segments), exportPath)
	return nil
}

// TuneAction is the corresponding action for 'tune'.
func TuneAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer utils.UncheckedErrorFunc(logger.Sync)

	cloudPath := pathOrDefault(c, flagInput, cfg, reconstruction.MergedResource+".txt")
	cloud, err := readCloud(cloudPath, pointcloud.ReadText, logger)
	if err != nil {
		return err
	}
	labels := make([]uint8, 0, cloud.Size())
	cloud.Iterate(func(_ int, p pointcloud.Point) bool {
		labels = append(labels, p.Label)
		return true
	})
	plotPath := pathOrDefault(c, flagPlot, cfg, "tuning.png")
	redraw := tuning.HistogramRedraw(labels, plotPath, func(inRange int) {
		printf(c.App.Writer, "%d of %d points in range", inRange, len(labels))
	})
	session, err := tuning.NewSession(tuning.Knobs{Min: c.Int(flagMin), Max: c.Int(flagMax)}, tuning.DefaultLimit, redraw)
	if err != nil {
		return err
	}
	if err := session.Refresh(c.Context); err != nil {
		return err
	}
	if !c.Bool(flagInteractive) {
		return nil
	}

	scanner := bufio.NewScanner(c.App.Reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "q" || line == "quit" {
			break
		}
		knobs, err := parseKnobs(line)
		if err == nil {
			err = session.Set(c.Context, knobs)
		}
		if err != nil {
			warningf(c.App.ErrWriter, "%v", err)
			continue
		}
	}
	final := session.Knobs()
	infof(c.App.Writer, "Final thresholds: min %d, max %d", final.Min, final.Max)
	return scanner.Err()
}
