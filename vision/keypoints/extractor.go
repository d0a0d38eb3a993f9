package keypoints

import (
	"image"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	rutils "go.viam.com/edgeplan/utils"
)

// Feature extraction methods.
const (
	MethodORB   = "orb"
	MethodAKAZE = "akaze"
	MethodSIFT  = "sift"
	MethodSURF  = "surf"
)

// Extractor detects and describes keypoints of a grayscale image.
type Extractor interface {
	Name() string
	Detect(img *image.Gray) (KeyPoints, error)
	// Describe returns the keypoints that could be described and their descriptors, in order.
	Describe(img *image.Gray, kps KeyPoints) (KeyPoints, *Descriptors, error)
}

// DetectAndDescribe runs both stages of an extractor.
func DetectAndDescribe(ext Extractor, img *image.Gray) (KeyPoints, *Descriptors, error) {
	kps, err := ext.Detect(img)
	if err != nil {
		return nil, nil, err
	}
	return ext.Describe(img, kps)
}

// AKAZEConfig are the knobs of the binary rotation invariant detector.
type AKAZEConfig struct {
	Threshold   float64 `json:"akaze_threshold"`
	MaxFeatures int     `json:"max_features"`
}

// SIFTConfig are the knobs of the scale invariant float detector.
type SIFTConfig struct {
	EdgeThreshold float64 `json:"sift_edge_threshold"`
	PeakThreshold float64 `json:"sift_peak_threshold"`
	MaxFeatures   int     `json:"max_features"`
}

// SURFConfig are the knobs of the speeded-up detector.
type SURFConfig struct {
	HessianThreshold float64 `json:"surf_hessian_threshold"`
	Octaves          int     `json:"surf_n_octaves"`
	OctaveLayers     int     `json:"surf_n_octavelayers"`
	Upright          bool    `json:"surf_upright"`
}

// DefaultAKAZEConfig returns the default AKAZE knobs.
func DefaultAKAZEConfig() *AKAZEConfig {
	return &AKAZEConfig{Threshold: 0.001, MaxFeatures: 4000}
}

// DefaultSIFTConfig returns the default SIFT knobs.
func DefaultSIFTConfig() *SIFTConfig {
	return &SIFTConfig{EdgeThreshold: 10, PeakThreshold: 0.1, MaxFeatures: 4000}
}

// DefaultSURFConfig returns the default SURF knobs.
func DefaultSURFConfig() *SURFConfig {
	return &SURFConfig{HessianThreshold: 3000, Octaves: 4, OctaveLayers: 2}
}

// decodeAttributes overlays attrs on the defaults already held by out.
func decodeAttributes(method string, attrs map[string]interface{}, out interface{}) error {
	if len(attrs) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(attrs); err != nil {
		return rutils.NewConfigurationError("invalid attributes for %s: %v", method, err)
	}
	return nil
}

// NewExtractor selects the extraction variant once, from its method name and free-form attributes.
// A method that does not exist or is not compiled in is a configuration error.
func NewExtractor(method string, attrs map[string]interface{}) (Extractor, error) {
	switch name := strings.ToLower(method); name {
	case MethodORB:
		cfg := DefaultORBConfig()
		if err := decodeAttributes(name, attrs, cfg); err != nil {
			return nil, err
		}
		if err := cfg.Validate(name); err != nil {
			return nil, rutils.NewConfigurationError("%v", err)
		}
		return newORBExtractor(cfg), nil
	case MethodAKAZE:
		cfg := DefaultAKAZEConfig()
		if err := decodeAttributes(name, attrs, cfg); err != nil {
			return nil, err
		}
		return newAKAZEExtractor(cfg)
	case MethodSIFT:
		cfg := DefaultSIFTConfig()
		if err := decodeAttributes(name, attrs, cfg); err != nil {
			return nil, err
		}
		return newSIFTExtractor(cfg)
	case MethodSURF:
		cfg := DefaultSURFConfig()
		if err := decodeAttributes(name, attrs, cfg); err != nil {
			return nil, err
		}
		// SURF is patented and absent from every OpenCV build this module links against.
		return nil, rutils.NewConfigurationError("feature method %q is not available", name)
	default:
		return nil, rutils.NewConfigurationError("unknown feature method %q", method)
	}
}
