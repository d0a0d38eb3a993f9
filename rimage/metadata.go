package rimage

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rwcarlsen/goexif/exif"
	"go.viam.com/utils"

	rutils "go.viam.com/edgeplan/utils"
)

// Metadata is the capture information needed to build intrinsics.
type Metadata struct {
	FocalLength float64 `json:"focal_length"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	CameraModel string  `json:"camera_model"`
}

// Validate returns a data error naming the first missing field.
func (md Metadata) Validate() error {
	switch {
	case md.FocalLength <= 0:
		return rutils.NewDataError("metadata is missing the focal length")
	case md.Width <= 0:
		return rutils.NewDataError("metadata is missing the image width")
	case md.Height <= 0:
		return rutils.NewDataError("metadata is missing the image height")
	}
	return nil
}

// ReadEXIFMetadata extracts the focal length, pixel dimensions and camera model from EXIF data.
// Fields absent from the EXIF block are left zero.
func ReadEXIFMetadata(r io.Reader) (Metadata, error) {
	x, err := exif.Decode(r)
	if err != nil {
		return Metadata{}, rutils.NewDataError("cannot decode EXIF: %v", err)
	}
	var md Metadata
	if tag, err := x.Get(exif.FocalLength); err == nil {
		if rat, err := tag.Rat(0); err == nil {
			md.FocalLength, _ = rat.Float64()
		}
	}
	if tag, err := x.Get(exif.PixelXDimension); err == nil {
		if v, err := tag.Int(0); err == nil {
			md.Width = v
		}
	}
	if tag, err := x.Get(exif.PixelYDimension); err == nil {
		if v, err := tag.Int(0); err == nil {
			md.Height = v
		}
	}
	if tag, err := x.Get(exif.Model); err == nil {
		if v, err := tag.StringVal(); err == nil {
			md.CameraModel = strings.TrimSpace(strings.Trim(v, "\x00"))
		}
	}
	return md, nil
}

// SidecarPath is the JSON metadata file consulted before EXIF for the image at path.
func SidecarPath(path string) string {
	return path + ".json"
}

// LoadMetadata reads the metadata of the image at path, preferring a JSON sidecar over EXIF.
// Missing dimensions fall back to the decoded raster size.
func LoadMetadata(path string, img *LabeledImage) (Metadata, error) {
	md, err := readSidecar(SidecarPath(path))
	if err != nil {
		if !os.IsNotExist(errors.Cause(err)) {
			return Metadata{}, err
		}
		//nolint:gosec
		f, err := os.Open(path)
		if err != nil {
			return Metadata{}, errors.Wrapf(err, "cannot open %q", path)
		}
		defer utils.UncheckedErrorFunc(f.Close)
		if md, err = ReadEXIFMetadata(f); err != nil {
			return Metadata{}, errors.Wrapf(err, "image %q", path)
		}
	}
	if img != nil {
		if md.Width == 0 {
			md.Width = img.Width()
		}
		if md.Height == 0 {
			md.Height = img.Height()
		}
	}
	if err := md.Validate(); err != nil {
		return Metadata{}, errors.Wrapf(err, "image %q", path)
	}
	return md, nil
}

func readSidecar(path string) (Metadata, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, errors.WithStack(err)
	}
	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return Metadata{}, rutils.NewDataError("cannot parse metadata sidecar %q: %v", path, err)
	}
	return md, nil
}
