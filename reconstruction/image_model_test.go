package reconstruction

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/edgeplan/logging"
	"go.viam.com/edgeplan/rimage"
	"go.viam.com/edgeplan/rimage/transform"
	rutils "go.viam.com/edgeplan/utils"
	"go.viam.com/edgeplan/vision/keypoints"
)

// fixedExtractor returns the same keypoints for every image, each described by its index.
type fixedExtractor struct {
	kps keypoints.KeyPoints
}

func (f *fixedExtractor) Name() string {
	return "fixed"
}

func (f *fixedExtractor) Detect(img *image.Gray) (keypoints.KeyPoints, error) {
	return f.kps, nil
}

func (f *fixedExtractor) Describe(img *image.Gray, kps keypoints.KeyPoints) (keypoints.KeyPoints, *keypoints.Descriptors, error) {
	desc := make([][]float64, len(kps))
	for i := range kps {
		desc[i] = []float64{float64(i)}
	}
	return kps, keypoints.NewFloatDescriptors(desc), nil
}

func labelledRaster(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(10 * x), G: uint8(10 * y), B: 9, A: uint8(100 + x + y)})
		}
	}
	return img
}

func TestNewImageModelFromImage(t *testing.T) {
	ext := &fixedExtractor{kps: keypoints.KeyPoints{{X: 2.4, Y: 3.6}, {X: 7.5, Y: 0.2}}}
	md := rimage.Metadata{FocalLength: 35, Width: 12, Height: 10, CameraModel: "Canon EOS 6D"}
	im, err := NewImageModelFromImage(3, "a.tiff", rimage.NewLabeledImage(labelledRaster(12, 10)), md, ext,
		transform.DefaultCameraTable())
	test.That(t, err, test.ShouldBeNil)

	test.That(t, im.ID, test.ShouldEqual, 3)
	test.That(t, im.CameraModel(), test.ShouldEqual, "Canon EOS 6D")
	test.That(t, im.Descriptors.Len(), test.ShouldEqual, 2)
	test.That(t, im.Samples, test.ShouldHaveLength, 2)
	// rounded keypoint coordinates index the raster
	test.That(t, im.Samples[0], test.ShouldResemble, rimage.Sample{R: 20, G: 40, B: 9, Label: 106})
	test.That(t, im.Samples[1], test.ShouldResemble, rimage.Sample{R: 80, G: 0, B: 9, Label: 108})

	k := im.K()
	test.That(t, k.At(0, 0), test.ShouldEqual, 35.)
	test.That(t, k.At(1, 1), test.ShouldEqual, 35.)
	// the known camera overrides the image centre
	test.That(t, k.At(0, 2), test.ShouldEqual, 2756.)
	test.That(t, k.At(1, 2), test.ShouldEqual, 1774.)
	test.That(t, k.At(2, 2), test.ShouldEqual, 1.)

	md.CameraModel = "unknown"
	im, err = NewImageModelFromImage(0, "b.tiff", rimage.NewLabeledImage(labelledRaster(12, 10)), md, ext, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, im.K().At(0, 2), test.ShouldEqual, 6.)
	test.That(t, im.K().At(1, 2), test.ShouldEqual, 5.)
}

func TestNewImageModelMissingMetadata(t *testing.T) {
	ext := &fixedExtractor{}
	_, err := NewImageModelFromImage(0, "a.tiff", rimage.NewLabeledImage(labelledRaster(4, 4)),
		rimage.Metadata{Width: 4, Height: 4}, ext, nil)
	test.That(t, errors.Is(err, rutils.ErrData), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "focal length")
}

func writeImage(t *testing.T, dir, name string, md rimage.Metadata) string {
	t.Helper()
	path := filepath.Join(dir, name)
	test.That(t, imaging.Save(labelledRaster(12, 10), path), test.ShouldBeNil)
	data := []byte(`{"focal_length": 20, "camera_model": "` + md.CameraModel + `"}`)
	test.That(t, os.WriteFile(rimage.SidecarPath(path), data, 0o600), test.ShouldBeNil)
	return path
}

func TestFindAndLoadImages(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "b.png", rimage.Metadata{CameraModel: "x"})
	writeImage(t, dir, "a.PNG", rimage.Metadata{CameraModel: "y"})
	test.That(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600), test.ShouldBeNil)

	paths, err := FindImages(dir, ".png")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, paths, test.ShouldResemble, []string{filepath.Join(dir, "a.PNG"), filepath.Join(dir, "b.png")})

	plots := t.TempDir()
	ext := &fixedExtractor{kps: keypoints.KeyPoints{{X: 1, Y: 1}}}
	images, err := LoadImages(context.Background(), paths, ext, nil, 2, plots, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, images, test.ShouldHaveLength, 2)
	for i, im := range images {
		test.That(t, im.ID, test.ShouldEqual, i)
		test.That(t, im.Image.HasLabel(), test.ShouldBeTrue)
		test.That(t, im.Metadata.Width, test.ShouldEqual, 12)
		test.That(t, im.Intrinsics.Fx, test.ShouldEqual, 20.)
		_, err := os.Stat(filepath.Join(plots, "keypoints_"+string(rune('0'+i))+".png"))
		test.That(t, err, test.ShouldBeNil)
	}
	test.That(t, images[0].Name, test.ShouldEqual, "a.PNG")
	test.That(t, images[0].CameraModel(), test.ShouldEqual, "y")

	_, err = FindImages(filepath.Join(dir, "missing"), ".png")
	test.That(t, errors.Is(err, rutils.ErrData), test.ShouldBeTrue)
	_, err = LoadImages(context.Background(), nil, ext, nil, 1, "", logging.NewTestLogger(t))
	test.That(t, errors.Is(err, rutils.ErrData), test.ShouldBeTrue)
}

func TestNewImageModelCalibrationFile(t *testing.T) {
	dir := t.TempDir()
	path := writeImage(t, dir, "a.png", rimage.Metadata{CameraModel: "Canon EOS 6D"})
	ext := &fixedExtractor{kps: keypoints.KeyPoints{{X: 1, Y: 1}}}

	im, err := NewImageModel(0, path, ext, transform.DefaultCameraTable())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, im.Intrinsics.Ppx, test.ShouldEqual, 2756.)

	calibration := []byte(`{"fx": 21.5, "fy": 22, "ppx": 6.25, "ppy": 4.75}`)
	test.That(t, os.WriteFile(path+transform.IntrinsicsSuffix, calibration, 0o600), test.ShouldBeNil)
	im, err = NewImageModel(0, path, ext, transform.DefaultCameraTable())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, im.Intrinsics, test.ShouldResemble,
		&transform.PinholeCameraIntrinsics{Width: 12, Height: 10, Fx: 21.5, Fy: 22, Ppx: 6.25, Ppy: 4.75})
	test.That(t, im.Metadata.FocalLength, test.ShouldEqual, 20.)

	calibration = []byte(`{"width_px": 640, "height_px": 480, "fx": 21.5, "fy": 22}`)
	test.That(t, os.WriteFile(path+transform.IntrinsicsSuffix, calibration, 0o600), test.ShouldBeNil)
	_, err = NewImageModel(0, path, ext, nil)
	test.That(t, errors.Is(err, rutils.ErrData), test.ShouldBeTrue)
}
