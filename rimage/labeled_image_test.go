package rimage

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/xfmoulet/qoi"
	"go.viam.com/test"

	rutils "go.viam.com/edgeplan/utils"
)

func makeNRGBA(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x), uint8(y), 7, uint8(10 * (x + y))})
		}
	}
	return img
}

func TestSampleAt(t *testing.T) {
	li := NewLabeledImage(makeNRGBA(10, 8))
	test.That(t, li.HasLabel(), test.ShouldBeTrue)
	test.That(t, li.Width(), test.ShouldEqual, 10)
	test.That(t, li.Height(), test.ShouldEqual, 8)

	s, err := li.SampleAt(2.6, 3.4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s, test.ShouldResemble, Sample{R: 3, G: 3, B: 7, Label: 60})

	// rounding past the border clamps to the last pixel
	s, err = li.SampleAt(9.7, 7.6)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.R, test.ShouldEqual, 9)
	test.That(t, s.G, test.ShouldEqual, 7)

	_, err = li.SampleAt(0, nanValue())
	test.That(t, errors.Is(err, rutils.ErrData), test.ShouldBeTrue)
}

func nanValue() float64 {
	zero := 0.0
	return zero / zero
}

func TestNoLabelChannel(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 4, 4))
	rgba.Set(1, 1, color.RGBA{200, 100, 50, 255})
	li := NewLabeledImage(rgba)
	test.That(t, li.HasLabel(), test.ShouldBeFalse)
	test.That(t, li.SampleXY(1, 1), test.ShouldResemble, Sample{R: 200, G: 100, B: 50})
}

func TestLabeledImageFromChannels(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 4, 4))
	mask := image.NewGray(image.Rect(0, 0, 4, 4))
	mask.SetGray(2, 3, color.Gray{MaxLabel})
	li, err := NewLabeledImageFromChannels(rgba, mask)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, li.SampleXY(2, 3).Label, test.ShouldEqual, MaxLabel)
	test.That(t, li.SampleXY(0, 0).Label, test.ShouldEqual, 0)

	_, err = NewLabeledImageFromChannels(rgba, image.NewGray(image.Rect(0, 0, 3, 3)))
	test.That(t, errors.Is(err, rutils.ErrData), test.ShouldBeTrue)
}

func TestReadLabeledImageAndMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0.png")
	test.That(t, imaging.Save(makeNRGBA(12, 9), path), test.ShouldBeNil)

	li, err := ReadLabeledImage(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, li.HasLabel(), test.ShouldBeTrue)
	test.That(t, li.SampleXY(3, 2).Label, test.ShouldEqual, 50)

	// no sidecar and no EXIF block in a PNG
	_, err = LoadMetadata(path, li)
	test.That(t, errors.Is(err, rutils.ErrData), test.ShouldBeTrue)

	sidecar := `{"focal_length": 24, "camera_model": "Canon EOS 6D"}`
	test.That(t, os.WriteFile(SidecarPath(path), []byte(sidecar), 0o600), test.ShouldBeNil)
	md, err := LoadMetadata(path, li)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, md, test.ShouldResemble, Metadata{FocalLength: 24, Width: 12, Height: 9, CameraModel: "Canon EOS 6D"})
}

func TestMetadataValidate(t *testing.T) {
	test.That(t, Metadata{FocalLength: 1, Width: 2, Height: 3}.Validate(), test.ShouldBeNil)
	for _, md := range []Metadata{
		{Width: 2, Height: 3},
		{FocalLength: 1, Height: 3},
		{FocalLength: 1, Width: 2},
	} {
		test.That(t, errors.Is(md.Validate(), rutils.ErrData), test.ShouldBeTrue)
	}
}

func TestReadLabeledImageQOI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "0.qoi")
	f, err := os.Create(path)
	test.That(t, err, test.ShouldBeNil)
	img := image.NewNRGBA(image.Rect(0, 0, 12, 9))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	// the encoder stores premultiplied values, so only black survives a partial label
	img.SetNRGBA(3, 2, color.NRGBA{0, 0, 0, 50})
	test.That(t, qoi.Encode(f, img), test.ShouldBeNil)
	test.That(t, f.Close(), test.ShouldBeNil)

	li, err := ReadLabeledImage(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, li.HasLabel(), test.ShouldBeTrue)
	test.That(t, li.SampleXY(3, 2), test.ShouldResemble, Sample{Label: 50})
	test.That(t, li.SampleXY(5, 5), test.ShouldResemble, Sample{R: 255, G: 255, B: 255, Label: MaxLabel})
}
