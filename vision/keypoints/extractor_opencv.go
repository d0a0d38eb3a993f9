//go:build opencv

package keypoints

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// cvFeature is the subset of the OpenCV feature2d API used here.
type cvFeature interface {
	Detect(src gocv.Mat) []gocv.KeyPoint
	Compute(src gocv.Mat, mask gocv.Mat, kps []gocv.KeyPoint) ([]gocv.KeyPoint, gocv.Mat)
	Close() error
}

type cvExtractor struct {
	name        string
	kind        DescriptorKind
	maxFeatures int
	filters     []keypointFilter
	newFeature  func() cvFeature
}

func newAKAZEExtractor(cfg *AKAZEConfig) (Extractor, error) {
	return &cvExtractor{
		name:        MethodAKAZE,
		kind:        Binary,
		maxFeatures: cfg.MaxFeatures,
		filters:     akazeFilters(cfg),
		newFeature: func() cvFeature {
			akaze := gocv.NewAKAZE()
			return &akaze
		},
	}, nil
}

func newSIFTExtractor(cfg *SIFTConfig) (Extractor, error) {
	return &cvExtractor{
		name:        MethodSIFT,
		kind:        Float,
		maxFeatures: cfg.MaxFeatures,
		filters:     siftFilters(cfg),
		newFeature: func() cvFeature {
			sift := gocv.NewSIFT()
			return &sift
		},
	}, nil
}

func (cv *cvExtractor) Name() string {
	return cv.name
}

func (cv *cvExtractor) Detect(img *image.Gray) (KeyPoints, error) {
	src, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return nil, errors.Wrap(err, "cannot convert image")
	}
	defer src.Close()
	feature := cv.newFeature()
	defer feature.Close()

	cvKps := feature.Detect(src)
	kps := make(KeyPoints, len(cvKps))
	for i, kp := range cvKps {
		kps[i] = fromCVKeyPoint(kp)
	}
	kps = filterKeyPoints(img, kps, cv.filters)
	scores := make([]float64, len(kps))
	for i, kp := range kps {
		scores[i] = kp.Response
	}
	best := strongest(scores, cv.maxFeatures)
	out := make(KeyPoints, len(best))
	for i, idx := range best {
		out[i] = kps[idx]
	}
	return out, nil
}

func (cv *cvExtractor) Describe(img *image.Gray, kps KeyPoints) (KeyPoints, *Descriptors, error) {
	src, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot convert image")
	}
	defer src.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	feature := cv.newFeature()
	defer feature.Close()

	cvKps := make([]gocv.KeyPoint, len(kps))
	for i, kp := range kps {
		cvKps[i] = toCVKeyPoint(kp)
	}
	described, descMat := feature.Compute(src, mask, cvKps)
	defer descMat.Close()

	outKps := make(KeyPoints, len(described))
	for i, kp := range described {
		outKps[i] = fromCVKeyPoint(kp)
	}
	rows, cols := descMat.Rows(), descMat.Cols()
	if cv.kind == Float {
		values := make([][]float64, rows)
		for r := 0; r < rows; r++ {
			values[r] = make([]float64, cols)
			for c := 0; c < cols; c++ {
				values[r][c] = float64(descMat.GetFloatAt(r, c))
			}
		}
		return outKps, NewFloatDescriptors(values), nil
	}
	bitsDesc := make([][]uint64, rows)
	for r := 0; r < rows; r++ {
		words := make([]uint64, (cols+7)/8)
		for c := 0; c < cols; c++ {
			words[c/8] |= uint64(descMat.GetUCharAt(r, c)) << (8 * (c % 8))
		}
		bitsDesc[r] = words
	}
	return outKps, NewBinaryDescriptors(bitsDesc), nil
}

func fromCVKeyPoint(kp gocv.KeyPoint) KeyPoint {
	return KeyPoint{X: kp.X, Y: kp.Y, Size: kp.Size, Angle: kp.Angle, Response: kp.Response, Octave: kp.Octave}
}

func toCVKeyPoint(kp KeyPoint) gocv.KeyPoint {
	return gocv.KeyPoint{X: kp.X, Y: kp.Y, Size: kp.Size, Angle: kp.Angle, Response: kp.Response, Octave: kp.Octave}
}
