// Package config defines the JSON configuration of a reconstruction run.
package config

import (
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/edgeplan/logging"
	"go.viam.com/edgeplan/pointcloud"
	"go.viam.com/edgeplan/rimage/transform"
	rutils "go.viam.com/edgeplan/utils"
	"go.viam.com/edgeplan/vision/keypoints"
	"go.viam.com/edgeplan/vision/segmentation"
)

// CaptureMode describes how the photographs were taken and so how triangulated axes map to
// the output frame.
type CaptureMode string

const (
	// CaptureOverhead keeps (X, Y, Z*s).
	CaptureOverhead = CaptureMode("overhead")
	// CaptureFrontal maps to (-X, Z*s, Y) and bounds the result.
	CaptureFrontal = CaptureMode("frontal")
)

// ParseCaptureMode accepts the mode names and their short aliases "above" and "front".
func ParseCaptureMode(s string) (CaptureMode, error) {
	switch strings.ToLower(s) {
	case "overhead", "above":
		return CaptureOverhead, nil
	case "frontal", "front":
		return CaptureFrontal, nil
	default:
		return "", rutils.NewConfigurationError("capture mode must be overhead or frontal, got %q", s)
	}
}

// AccumulationPolicy decides where the fully labelled points of a run are accumulated.
type AccumulationPolicy string

const (
	// AccumulateAuto merges labelled points into one resource for a single pair run and keeps one
	// resource per pair otherwise.
	AccumulateAuto = AccumulationPolicy("auto")
	// AccumulatePerPair always keeps one labelled resource per pair.
	AccumulatePerPair = AccumulationPolicy("per_pair")
	// AccumulateMerged always merges labelled points into one resource.
	AccumulateMerged = AccumulationPolicy("merged")
)

// AttributeMap is a free-form set of knobs.
type AttributeMap map[string]interface{}

// Has returns whether the attribute is set.
func (am AttributeMap) Has(name string) bool {
	_, has := am[name]
	return has
}

// FeatureConfig selects the feature extractor.
type FeatureConfig struct {
	Method     string       `json:"method"`
	Attributes AttributeMap `json:"attributes,omitempty"`
	// PlotDir, when set, receives one keypoint plot per image.
	PlotDir string `json:"plot_dir,omitempty"`
}

// MatchingConfig configures descriptor matching.
type MatchingConfig struct {
	LowesRatio float64 `json:"lowes_ratio"`
}

// PoseConfig configures the relative pose estimation.
type PoseConfig struct {
	UseFundamental bool                  `json:"use_fundamental"`
	LMedS          transform.LMedSConfig `json:"lmeds"`
	DepthThreshold float64               `json:"depth_threshold"`
}

// CaptureConfig configures the output frame of the triangulated points.
type CaptureConfig struct {
	Mode   CaptureMode `json:"mode"`
	ZScale float64     `json:"z_scale"`
	Bound  float64     `json:"bound"`
}

// ClassifyConfig configures the label classifier.
type ClassifyConfig struct {
	Threshold   int `json:"threshold"`
	HeaderLines int `json:"header_lines"`
	// Method is the upstream reconstruction method number; it picks the label field.
	Method int `json:"method"`
}

// Options returns the classifier options.
func (cc ClassifyConfig) Options() pointcloud.ClassifyOptions {
	return pointcloud.ClassifyOptions{
		Threshold:   cc.Threshold,
		HeaderLines: cc.HeaderLines,
		LabelField:  pointcloud.LabelFieldForMethod(cc.Method),
	}
}

// ClusterConfig configures density clustering and line fitting.
type ClusterConfig struct {
	Eps        float64 `json:"eps"`
	MinSamples int     `json:"min_samples"`
	// ResidualThreshold defaults to eps - eps/10 when zero.
	ResidualThreshold float64 `json:"residual_threshold,omitempty"`
	MaxTrials         int     `json:"max_trials"`
	StopProbability   float64 `json:"stop_probability"`
	Seed              int64   `json:"seed"`
}

// LineFit returns the line fitting settings.
func (cc ClusterConfig) LineFit() segmentation.LineFitConfig {
	cfg := segmentation.DefaultLineFitConfig(cc.Eps)
	if cc.ResidualThreshold > 0 {
		cfg.ResidualThreshold = cc.ResidualThreshold
	}
	cfg.MaxTrials = cc.MaxTrials
	cfg.StopProbability = cc.StopProbability
	cfg.Seed = cc.Seed
	return cfg
}

// ExportConfig configures the segment export.
type ExportConfig struct {
	Path       string `json:"path"`
	LayerName  string `json:"layer_name"`
	LayerColor int    `json:"layer_color"`
}

// Config is a full reconstruction run.
type Config struct {
	ConfigFilePath string `json:"-"`

	ImageDir  string   `json:"image_dir"`
	ImageExt  string   `json:"image_ext"`
	Images    []string `json:"images,omitempty"`
	OutputDir string   `json:"output_dir"`
	Workers   int      `json:"workers"`
	Debug     bool     `json:"debug"`
	LogLevel  string   `json:"log_level"`

	// TracePairs names pairs ("01", "12", ...) whose matrices are logged at any log level.
	TracePairs []string `json:"trace_pairs,omitempty"`

	Features     FeatureConfig                       `json:"features"`
	Matching     MatchingConfig                      `json:"matching"`
	Pose         PoseConfig                          `json:"pose"`
	Capture      CaptureConfig                       `json:"capture"`
	Accumulation AccumulationPolicy                  `json:"accumulation"`
	Cameras      map[string]transform.PrincipalPoint `json:"cameras,omitempty"`
	Classify     ClassifyConfig                      `json:"classify"`
	Cluster      ClusterConfig                       `json:"cluster"`
	Export       ExportConfig                        `json:"export"`
}

// Default returns the configuration used for every field a file leaves out.
func Default() *Config {
	return &Config{
		ImageDir:  "images",
		ImageExt:  ".tiff",
		OutputDir: "Lines",
		Workers:   runtime.GOMAXPROCS(0),
		LogLevel:  "info",
		Features: FeatureConfig{
			Method: keypoints.MethodORB,
		},
		Matching: MatchingConfig{LowesRatio: 0.8},
		Pose: PoseConfig{
			LMedS:          transform.DefaultLMedSConfig(),
			DepthThreshold: transform.DefaultDistanceThreshold,
		},
		Capture: CaptureConfig{
			Mode:   CaptureFrontal,
			ZScale: 100,
			Bound:  10,
		},
		Accumulation: AccumulateAuto,
		Classify: ClassifyConfig{
			Threshold:   230,
			HeaderLines: pointcloud.DefaultHeaderLines,
			Method:      2,
		},
		Cluster: ClusterConfig{
			Eps:             0.01,
			MinSamples:      10,
			MaxTrials:       1000,
			StopProbability: 1,
			Seed:            1,
		},
		Export: ExportConfig{
			Path:       "segments.txt",
			LayerName:  "lines",
			LayerColor: 255,
		},
	}
}

// CameraTable returns the known cameras merged with the configured ones.
func (c *Config) CameraTable() transform.CameraTable {
	return transform.DefaultCameraTable().Merge(c.Cameras)
}

// Level returns the configured log level, debug when Debug is set.
func (c *Config) Level() logging.Level {
	if c.Debug {
		return logging.DEBUG
	}
	level, err := logging.LevelFromString(c.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return level
}

// Validate ensures all parts of the config are valid and normalises the capture mode aliases. Every
// failure is a configuration error.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return errors.Wrap(rutils.ErrConfiguration, err.Error())
	}
	return nil
}

func (c *Config) validate() error {
	if c.OutputDir == "" {
		return utils.NewConfigValidationFieldRequiredError("", "output_dir")
	}
	if c.ImageDir == "" && len(c.Images) == 0 {
		return utils.NewConfigValidationFieldRequiredError("", "image_dir")
	}
	if c.Workers < 0 {
		return utils.NewConfigValidationError("", errors.Errorf("workers should be >= 0, got %d", c.Workers))
	}
	if _, err := logging.LevelFromString(c.LogLevel); err != nil {
		return utils.NewConfigValidationError("", err)
	}
	if c.Features.Method == "" {
		return utils.NewConfigValidationFieldRequiredError("features", "method")
	}
	if c.Matching.LowesRatio < 0 || c.Matching.LowesRatio > 1 {
		return utils.NewConfigValidationError("matching",
			errors.Errorf("lowes_ratio should be in [0, 1], got %v", c.Matching.LowesRatio))
	}
	lm := c.Pose.LMedS
	if lm.Confidence <= 0 || lm.Confidence >= 1 {
		return utils.NewConfigValidationError("pose.lmeds",
			errors.Errorf("confidence should be in (0, 1), got %v", lm.Confidence))
	}
	if lm.MaxTrials < 1 {
		return utils.NewConfigValidationError("pose.lmeds", errors.Errorf("max_trials should be >= 1, got %d", lm.MaxTrials))
	}
	mode, err := ParseCaptureMode(string(c.Capture.Mode))
	if err != nil {
		return utils.NewConfigValidationError("capture", err)
	}
	c.Capture.Mode = mode
	if c.Capture.ZScale == 0 {
		return utils.NewConfigValidationFieldRequiredError("capture", "z_scale")
	}
	switch c.Accumulation {
	case AccumulateAuto, AccumulatePerPair, AccumulateMerged:
	default:
		return utils.NewConfigValidationError("",
			errors.Errorf("accumulation must be auto, per_pair or merged, got %q", c.Accumulation))
	}
	if c.Classify.HeaderLines < 0 {
		return utils.NewConfigValidationError("classify", errors.New("header_lines should be >= 0"))
	}
	if c.Cluster.Eps <= 0 {
		return utils.NewConfigValidationError("cluster", errors.Errorf("eps should be > 0, got %v", c.Cluster.Eps))
	}
	if c.Cluster.MinSamples < 0 {
		return utils.NewConfigValidationError("cluster", errors.New("min_samples should be >= 0"))
	}
	if err := c.Cluster.LineFit().Validate(); err != nil {
		return utils.NewConfigValidationError("cluster", err)
	}
	if c.Export.Path == "" {
		return utils.NewConfigValidationFieldRequiredError("export", "path")
	}
	return nil
}
