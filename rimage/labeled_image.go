// Package rimage holds the raster types shared by the reconstruction stages: a color image with an
// optional label channel, per-keypoint samples and capture metadata.
package rimage

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	// registers the QOI decoder, a lossless format keeping the label channel.
	_ "github.com/xfmoulet/qoi"

	rutils "go.viam.com/edgeplan/utils"
)

// MaxLabel is the label value of a fully labelled (edge) pixel.
const MaxLabel = 255

// Sample is the color and label of a single pixel.
type Sample struct {
	R, G, B uint8
	Label   uint8
}

// LabeledImage is an RGB raster with an optional fourth channel carrying a per-pixel label.
// The label is stored in the alpha channel of the underlying NRGBA image. It is never mutated
// after construction.
type LabeledImage struct {
	nrgba    *image.NRGBA
	hasLabel bool
}

// NewLabeledImage wraps img. Images decoded with a non-premultiplied alpha channel carry a label
// channel; every other image gets label 0 everywhere.
func NewLabeledImage(img image.Image) *LabeledImage {
	switch typed := img.(type) {
	case *image.NRGBA:
		return &LabeledImage{nrgba: imaging.Clone(typed), hasLabel: true}
	case *image.NRGBA64:
		return &LabeledImage{nrgba: imaging.Clone(typed), hasLabel: true}
	default:
		return &LabeledImage{nrgba: imaging.Clone(img), hasLabel: false}
	}
}

// NewLabeledImageFromChannels builds a labelled image from a color image and a same-sized label mask.
func NewLabeledImageFromChannels(img image.Image, labels *image.Gray) (*LabeledImage, error) {
	if img.Bounds().Size() != labels.Bounds().Size() {
		return nil, rutils.NewDataError("label mask size %v does not match image size %v",
			labels.Bounds().Size(), img.Bounds().Size())
	}
	nrgba := imaging.Clone(img)
	lb := labels.Bounds()
	for y := 0; y < nrgba.Rect.Dy(); y++ {
		for x := 0; x < nrgba.Rect.Dx(); x++ {
			nrgba.Pix[nrgba.PixOffset(x, y)+3] = labels.GrayAt(lb.Min.X+x, lb.Min.Y+y).Y
		}
	}
	return &LabeledImage{nrgba: nrgba, hasLabel: true}, nil
}

// ReadLabeledImage decodes the image file at path. PNG, JPEG, TIFF, BMP, GIF and QOI are supported.
func ReadLabeledImage(path string) (*LabeledImage, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode image %q", path)
	}
	return NewLabeledImage(img), nil
}

// ColorModel implements image.Image.
func (li *LabeledImage) ColorModel() color.Model {
	return color.NRGBAModel
}

// Bounds implements image.Image. The origin is always (0, 0).
func (li *LabeledImage) Bounds() image.Rectangle {
	return li.nrgba.Rect
}

// At implements image.Image.
func (li *LabeledImage) At(x, y int) color.Color {
	return li.nrgba.NRGBAAt(x, y)
}

// Width returns the horizontal size of the image.
func (li *LabeledImage) Width() int {
	return li.nrgba.Rect.Dx()
}

// Height returns the vertical size of the image.
func (li *LabeledImage) Height() int {
	return li.nrgba.Rect.Dy()
}

// HasLabel reports whether the image carries a label channel.
func (li *LabeledImage) HasLabel() bool {
	return li.hasLabel
}

// Gray returns the luminance of the color channels, ignoring the label channel.
func (li *LabeledImage) Gray() *image.Gray {
	gray := image.NewGray(li.nrgba.Rect)
	for y := 0; y < li.Height(); y++ {
		for x := 0; x < li.Width(); x++ {
			i := li.nrgba.PixOffset(x, y)
			r, g, b := li.nrgba.Pix[i], li.nrgba.Pix[i+1], li.nrgba.Pix[i+2]
			gray.Pix[gray.PixOffset(x, y)] = color.GrayModel.Convert(color.RGBA{r, g, b, 255}).(color.Gray).Y
		}
	}
	return gray
}

// SampleXY returns the color and label at integer pixel coordinates.
func (li *LabeledImage) SampleXY(x, y int) Sample {
	i := li.nrgba.PixOffset(x, y)
	s := Sample{R: li.nrgba.Pix[i], G: li.nrgba.Pix[i+1], B: li.nrgba.Pix[i+2]}
	if li.hasLabel {
		s.Label = li.nrgba.Pix[i+3]
	}
	return s
}

// SampleAt rounds a subpixel location to the nearest pixel, clamped to the image, and samples it.
func (li *LabeledImage) SampleAt(x, y float64) (Sample, error) {
	if math.IsNaN(x) || math.IsNaN(y) {
		return Sample{}, rutils.NewDataError("cannot sample at (%v, %v)", x, y)
	}
	px := rutils.Clamp(int(math.Round(x)), 0, li.Width()-1)
	py := rutils.Clamp(int(math.Round(y)), 0, li.Height()-1)
	return li.SampleXY(px, py), nil
}
