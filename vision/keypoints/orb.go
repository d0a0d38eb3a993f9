package keypoints

import (
	"image"
	"math"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ORBConfig contains the parameters / configs needed to compute ORB features.
type ORBConfig struct {
	MaxFeatures     int         `json:"max_features"`
	Layers          int         `json:"n_layers"`
	DownscaleFactor float64     `json:"downscale_factor"`
	FastConf        FASTConfig  `json:"fast"`
	BRIEFConf       BRIEFConfig `json:"brief"`
}

// DefaultORBConfig returns the ORB settings used when no attribute overrides them.
func DefaultORBConfig() *ORBConfig {
	return &ORBConfig{
		MaxFeatures:     4000,
		Layers:          4,
		DownscaleFactor: 2,
		FastConf: FASTConfig{
			NMatchesCircle: 9,
			NMSWinSize:     7,
			Threshold:      20,
			Oriented:       true,
		},
		BRIEFConf: BRIEFConfig{
			N:              256,
			Sampling:       uniform,
			UseOrientation: true,
			PatchSize:      31,
		},
	}
}

// Validate ensures all parts of the ORBConfig are valid.
func (config *ORBConfig) Validate(path string) error {
	if config.Layers < 1 {
		return utils.NewConfigValidationError(path, errors.New("n_layers should be >= 1"))
	}
	if config.DownscaleFactor <= 1 {
		return utils.NewConfigValidationError(path, errors.New("downscale_factor should be greater than 1"))
	}
	if config.FastConf.NMatchesCircle < 1 || config.FastConf.NMatchesCircle > len(CircleIdx) {
		return utils.NewConfigValidationError(path, errors.New("fast.n_matches_circle should be in [1, 16]"))
	}
	if config.FastConf.NMSWinSize < 1 {
		return utils.NewConfigValidationError(path, errors.New("fast.nms_win_size should be >= 1"))
	}
	if err := config.BRIEFConf.Validate(); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

// orbExtractor is the native oriented-binary variant.
type orbExtractor struct {
	cfg   *ORBConfig
	pairs *SamplePairs
}

func newORBExtractor(cfg *ORBConfig) *orbExtractor {
	return &orbExtractor{
		cfg:   cfg,
		pairs: GenerateSamplePairs(cfg.BRIEFConf.Sampling, cfg.BRIEFConf.N, cfg.BRIEFConf.PatchSize),
	}
}

func (orb *orbExtractor) Name() string {
	return MethodORB
}

// Detect finds oriented FAST corners on every pyramid level and keeps the strongest ones that can be
// described.
func (orb *orbExtractor) Detect(img *image.Gray) (KeyPoints, error) {
	pyramid, err := GetImagePyramid(img, orb.cfg.Layers, orb.cfg.DownscaleFactor)
	if err != nil {
		return nil, err
	}
	margin := orb.cfg.BRIEFConf.Margin()
	kps := make(KeyPoints, 0)
	for level, levelImg := range pyramid.Images {
		scale := pyramid.Scales[level]
		bnd := levelImg.Bounds()
		inner := image.Rect(bnd.Min.X+margin, bnd.Min.Y+margin, bnd.Max.X-margin, bnd.Max.Y-margin)
		fastKps := NewFASTKeypointsFromImage(levelImg, &orb.cfg.FastConf)
		for i, fp := range fastKps.Points {
			if !fp.Point.In(inner) {
				continue
			}
			angle := -1.
			if fastKps.IsOriented() {
				angle = radiansToDegrees(fastKps.Orientations[i])
			}
			kps = append(kps, KeyPoint{
				X:        float64(fp.Point.X) * scale,
				Y:        float64(fp.Point.Y) * scale,
				Size:     float64(orb.cfg.BRIEFConf.PatchSize) * scale,
				Angle:    angle,
				Response: fp.Score,
				Octave:   level,
			})
		}
	}
	scores := make([]float64, len(kps))
	for i, kp := range kps {
		scores[i] = kp.Response
	}
	best := strongest(scores, orb.cfg.MaxFeatures)
	out := make(KeyPoints, len(best))
	for i, idx := range best {
		out[i] = kps[idx]
	}
	return out, nil
}

// Describe computes rotated BRIEF descriptors at the level each keypoint was detected in. Keypoints
// too close to the border of their level are dropped.
func (orb *orbExtractor) Describe(img *image.Gray, kps KeyPoints) (KeyPoints, *Descriptors, error) {
	pyramid, err := GetImagePyramid(img, orb.cfg.Layers, orb.cfg.DownscaleFactor)
	if err != nil {
		return nil, nil, err
	}
	byLevel := make(map[int][]int)
	for i, kp := range kps {
		level := kp.Octave
		if level < 0 || level >= len(pyramid.Images) {
			return nil, nil, errors.Errorf("keypoint %d has octave %d outside of the %d level pyramid", i, level, len(pyramid.Images))
		}
		byLevel[level] = append(byLevel[level], i)
	}
	descs := make([][]uint64, len(kps))
	valid := make([]bool, len(kps))
	for level, indices := range byLevel {
		scale := pyramid.Scales[level]
		pts := make([]image.Point, len(indices))
		var orientations []float64
		for j, idx := range indices {
			kp := kps[idx]
			pts[j] = image.Point{int(math.Round(kp.X / scale)), int(math.Round(kp.Y / scale))}
			if kp.Angle >= 0 {
				orientations = append(orientations, kp.Angle*math.Pi/180)
			} else {
				orientations = append(orientations, 0)
			}
		}
		levelDescs, levelValid := ComputeBRIEFDescriptors(blurForBRIEF(pyramid.Images[level]), orb.pairs, pts, orientations, &orb.cfg.BRIEFConf)
		for j, idx := range indices {
			descs[idx] = levelDescs[j]
			valid[idx] = levelValid[j]
		}
	}
	outKps := make(KeyPoints, 0, len(kps))
	outDescs := make([][]uint64, 0, len(kps))
	for i := range kps {
		if valid[i] {
			outKps = append(outKps, kps[i])
			outDescs = append(outDescs, descs[i])
		}
	}
	return outKps, NewBinaryDescriptors(outDescs), nil
}
