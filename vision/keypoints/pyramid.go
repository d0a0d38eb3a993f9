package keypoints

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// minPyramidSize is the smallest side of a pyramid level.
const minPyramidSize = 32

// ImagePyramid contains the successive downscaled images and their scale relative to the original image.
type ImagePyramid struct {
	Images []*image.Gray
	Scales []float64
}

// GetImagePyramid builds at most nLayers levels, each downscaled by factor from the previous one.
// Levels smaller than 32 pixels on a side are not built.
func GetImagePyramid(img *image.Gray, nLayers int, factor float64) (*ImagePyramid, error) {
	if nLayers < 1 {
		return nil, errors.New("number of layers should be >= 1")
	}
	if factor <= 1 {
		return nil, errors.New("downscale factor should be greater than 1")
	}
	pyramid := &ImagePyramid{
		Images: []*image.Gray{img},
		Scales: []float64{1},
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	for i := 1; i < nLayers; i++ {
		scale := math.Pow(factor, float64(i))
		nw := int(math.Round(float64(w) / scale))
		nh := int(math.Round(float64(h) / scale))
		if nw < minPyramidSize || nh < minPyramidSize {
			break
		}
		resized := imaging.Resize(img, nw, nh, imaging.Linear)
		pyramid.Images = append(pyramid.Images, nrgbaToGray(resized))
		pyramid.Scales = append(pyramid.Scales, float64(w)/float64(nw))
	}
	return pyramid, nil
}

// nrgbaToGray keeps the red channel of a gray image that went through an NRGBA pipeline.
func nrgbaToGray(img *image.NRGBA) *image.Gray {
	bnd := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bnd.Dx(), bnd.Dy()))
	for y := 0; y < bnd.Dy(); y++ {
		for x := 0; x < bnd.Dx(); x++ {
			gray.Pix[gray.PixOffset(x, y)] = img.Pix[img.PixOffset(bnd.Min.X+x, bnd.Min.Y+y)]
		}
	}
	return gray
}

// rgbaToGray averages the color channels.
func rgbaToGray(img *image.RGBA) *image.Gray {
	bnd := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bnd.Dx(), bnd.Dy()))
	for y := 0; y < bnd.Dy(); y++ {
		for x := 0; x < bnd.Dx(); x++ {
			i := img.PixOffset(bnd.Min.X+x, bnd.Min.Y+y)
			sum := int(img.Pix[i]) + int(img.Pix[i+1]) + int(img.Pix[i+2])
			gray.Pix[gray.PixOffset(x, y)] = uint8(sum / 3)
		}
	}
	return gray
}
