package keypoints

import (
	"image"
	"math"
	"math/rand"

	"github.com/anthonynsimon/bild/blur"
	"github.com/pkg/errors"
)

// SamplingType stores 0 if a sampling of image points for BRIEF is uniform, 1 if gaussian.
type SamplingType int

const (
	uniform SamplingType = iota // 0
	normal                      // 1
	fixed                       // 2
)

// briefSeed fixes the sample pairs so that descriptors of different images are comparable.
const briefSeed = 0x0b1ef

// SamplePairs are N pairs of points used to create the BRIEF Descriptors of a patch.
type SamplePairs struct {
	P0 []image.Point
	P1 []image.Point
	N  int
}

// GenerateSamplePairs generates n samples for a patch size with the chosen Sampling Type.
func GenerateSamplePairs(dist SamplingType, n, patchSize int) *SamplePairs {
	//nolint:gosec
	rng := rand.New(rand.NewSource(briefSeed))
	// sample positions
	var xs0, ys0, xs1, ys1 []int
	if dist == fixed {
		xs0 = sampleIntegers(rng, patchSize, n, dist)
		ys0 = sampleIntegers(rng, patchSize, n, dist)
		xs1 = sampleIntegers(rng, patchSize, n, dist)
		for i := 0; i < n; i++ {
			ys1 = append(ys1, -ys0[i])
			if i%2 == 0 {
				xs0[i] = 2 * xs0[i] / 3
				xs1[i] = -2 * xs1[i] / 3
				ys1[i] = ys0[i]
			}
		}
	} else {
		xs0 = sampleIntegers(rng, patchSize, n, dist)
		ys0 = sampleIntegers(rng, patchSize, n, dist)
		xs1 = sampleIntegers(rng, patchSize, n, dist)
		ys1 = sampleIntegers(rng, patchSize, n, dist)
	}
	p0 := make([]image.Point, 0, n)
	p1 := make([]image.Point, 0, n)
	for i := 0; i < n; i++ {
		p0 = append(p0, image.Point{X: xs0[i], Y: ys0[i]})
		p1 = append(p1, image.Point{X: xs1[i], Y: ys1[i]})
	}

	return &SamplePairs{P0: p0, P1: p1, N: n}
}

func sampleIntegers(rng *rand.Rand, patchSize, n int, sampling SamplingType) []int {
	vMin := int(math.Round(-(float64(patchSize) - 2) / 2.))
	vMax := int(math.Round(float64(patchSize) / 2.))
	out := make([]int, n)
	switch sampling {
	case normal:
		sigma := float64(vMax-vMin) / 5
		for i := range out {
			v := int(math.Round(rng.NormFloat64() * sigma))
			out[i] = int(math.Max(float64(vMin), math.Min(float64(vMax), float64(v))))
		}
	case fixed:
		step := float64(vMax-vMin) / float64(n)
		for i := range out {
			out[i] = vMin + int(math.Floor(float64(i)*step))
		}
		rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	case uniform:
		fallthrough
	default:
		for i := range out {
			out[i] = vMin + rng.Intn(vMax-vMin+1)
		}
	}
	return out
}

// BRIEFConfig stores the parameters.
type BRIEFConfig struct {
	N              int          `json:"n"` // number of samples taken
	Sampling       SamplingType `json:"sampling"`
	UseOrientation bool         `json:"use_orientation"`
	PatchSize      int          `json:"patch_size"`
}

// Validate checks that descriptors fit in whole 64 bit words.
func (cfg *BRIEFConfig) Validate() error {
	if cfg.N <= 0 || cfg.N%64 != 0 {
		return errors.Errorf("brief.n should be a positive multiple of 64, got %d", cfg.N)
	}
	if cfg.PatchSize < 5 {
		return errors.Errorf("brief.patch_size should be >= 5, got %d", cfg.PatchSize)
	}
	return nil
}

// Margin is the distance to the image border under which a keypoint cannot be described.
func (cfg *BRIEFConfig) Margin() int {
	// rotated samples reach half the patch diagonal
	return int(math.Ceil(float64(cfg.PatchSize)/2*math.Sqrt2)) + 1
}

// blurForBRIEF smooths the image before binary tests.
func blurForBRIEF(img *image.Gray) *image.Gray {
	return rgbaToGray(blur.Gaussian(img, 2))
}

// ComputeBRIEFDescriptors computes BRIEF descriptors on the blurred image at points pts. Orientations
// are in radians and may be nil. The second return flags the points that could be described.
func ComputeBRIEFDescriptors(
	blurred *image.Gray,
	sp *SamplePairs,
	pts []image.Point,
	orientations []float64,
	cfg *BRIEFConfig,
) ([][]uint64, []bool) {
	descs := make([][]uint64, len(pts))
	valid := make([]bool, len(pts))
	bnd := blurred.Bounds()
	margin := cfg.Margin()
	inner := image.Rect(bnd.Min.X+margin, bnd.Min.Y+margin, bnd.Max.X-margin, bnd.Max.Y-margin)
	for k, kp := range pts {
		if !kp.In(inner) {
			continue
		}
		// Divide by 64 since we store a descriptor as a uint64 array.
		descriptor := make([]uint64, sp.N/64)
		cosTheta := 1.0
		sinTheta := 0.0
		// if use orientation and keypoints are oriented, compute rotation matrix
		if cfg.UseOrientation && orientations != nil {
			angle := orientations[k]
			cosTheta = math.Cos(angle)
			sinTheta = math.Sin(angle)
		}
		for i := 0; i < sp.N; i++ {
			x0, y0 := float64(sp.P0[i].X), float64(sp.P0[i].Y)
			x1, y1 := float64(sp.P1[i].X), float64(sp.P1[i].Y)
			// compute rotated sampled coordinates (Identity matrix if no orientation s)
			outx0 := int(math.Round(cosTheta*x0 - sinTheta*y0))
			outy0 := int(math.Round(sinTheta*x0 + cosTheta*y0))
			outx1 := int(math.Round(cosTheta*x1 - sinTheta*y1))
			outy1 := int(math.Round(sinTheta*x1 + cosTheta*y1))
			// fill BRIEF descriptor
			p0Val := blurred.GrayAt(kp.X+outx0, kp.Y+outy0).Y
			p1Val := blurred.GrayAt(kp.X+outx1, kp.Y+outy1).Y
			if p0Val > p1Val {
				// Casting to an int truncates the float, which is what we want.
				descriptorIndex := int64(i / 64)
				numPos := i % 64
				// This flips the bit at numPos to 1.
				descriptor[descriptorIndex] |= (1 << numPos)
			}
		}
		descs[k] = descriptor
		valid[k] = true
	}
	return descs, valid
}
