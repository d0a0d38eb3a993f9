// Package reconstruction turns every pair of a set of calibrated photographs into labelled 3D points.
package reconstruction

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/edgeplan/logging"
	"go.viam.com/edgeplan/rimage"
	"go.viam.com/edgeplan/rimage/transform"
	rutils "go.viam.com/edgeplan/utils"
	"go.viam.com/edgeplan/vision/keypoints"
)

// ImageModel is a decoded photograph with its intrinsics and its described keypoints. Samples holds
// the color and label under each keypoint, in keypoint order. It is not modified once built.
type ImageModel struct {
	ID          int
	Name        string
	Image       *rimage.LabeledImage
	Metadata    rimage.Metadata
	Intrinsics  *transform.PinholeCameraIntrinsics
	KeyPoints   keypoints.KeyPoints
	Descriptors *keypoints.Descriptors
	Samples     []rimage.Sample
}

// CameraModel returns the camera model string of the capture metadata.
func (im *ImageModel) CameraModel() string {
	return im.Metadata.CameraModel
}

// K returns the 3x3 camera matrix.
func (im *ImageModel) K() *mat.Dense {
	return im.Intrinsics.GetCameraMatrix()
}

// NewImageModel decodes the image at path, loads its metadata and extracts its features. A
// `<path>.intrinsics.json` calibration file, when present, replaces the intrinsics derived from
// the metadata.
func NewImageModel(id int, path string, ext keypoints.Extractor, table transform.CameraTable) (*ImageModel, error) {
	img, err := rimage.ReadLabeledImage(path)
	if err != nil {
		return nil, rutils.NewDataError("%v", err)
	}
	md, err := rimage.LoadMetadata(path, img)
	if err != nil {
		return nil, err
	}
	intrinsics, err := transform.LoadIntrinsicsOverride(path, img.Width(), img.Height())
	if err != nil {
		return nil, err
	}
	if intrinsics == nil {
		return NewImageModelFromImage(id, filepath.Base(path), img, md, ext, table)
	}
	return newImageModel(id, filepath.Base(path), img, md, intrinsics, ext)
}

// NewImageModelFromImage builds an image model from an already decoded raster.
func NewImageModelFromImage(
	id int,
	name string,
	img *rimage.LabeledImage,
	md rimage.Metadata,
	ext keypoints.Extractor,
	table transform.CameraTable,
) (*ImageModel, error) {
	intrinsics, err := transform.NewIntrinsicsFromMetadata(md, table)
	if err != nil {
		return nil, errors.Wrapf(err, "image %q", name)
	}
	return newImageModel(id, name, img, md, intrinsics, ext)
}

func newImageModel(
	id int,
	name string,
	img *rimage.LabeledImage,
	md rimage.Metadata,
	intrinsics *transform.PinholeCameraIntrinsics,
	ext keypoints.Extractor,
) (*ImageModel, error) {
	kps, desc, err := keypoints.DetectAndDescribe(ext, img.Gray())
	if err != nil {
		return nil, errors.Wrapf(err, "cannot extract %s features of image %q", ext.Name(), name)
	}
	samples := make([]rimage.Sample, len(kps))
	for i, kp := range kps {
		if samples[i], err = img.SampleAt(kp.X, kp.Y); err != nil {
			return nil, errors.Wrapf(err, "image %q keypoint %d", name, i)
		}
	}
	return &ImageModel{
		ID:          id,
		Name:        name,
		Image:       img,
		Metadata:    md,
		Intrinsics:  intrinsics,
		KeyPoints:   kps,
		Descriptors: desc,
		Samples:     samples,
	}, nil
}

// FindImages lists the files of dir with the given extension, sorted by name. The extension match
// ignores case.
func FindImages(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, rutils.NewDataError("cannot list images: %v", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadImages builds one image model per path, in parallel. The index of a path is its image ID.
// When plotDir is set, the keypoints of every image are drawn into it.
func LoadImages(
	ctx context.Context,
	paths []string,
	ext keypoints.Extractor,
	table transform.CameraTable,
	workers int,
	plotDir string,
	logger logging.Logger,
) ([]*ImageModel, error) {
	if len(paths) == 0 {
		return nil, rutils.NewDataError("no images to load")
	}
	return rutils.RunIndexedParallel(ctx, len(paths), workers, func(ctx context.Context, i int) (*ImageModel, error) {
		model, err := NewImageModel(i, paths[i], ext, table)
		if err != nil {
			return nil, err
		}
		logger.Infof("image %d %q: %d keypoints", i, model.Name, len(model.KeyPoints))
		if plotDir != "" {
			out := filepath.Join(plotDir, fmt.Sprintf("keypoints_%d.png", i))
			if err := keypoints.PlotKeypoints(model.Image, model.KeyPoints, out); err != nil {
				logger.Warnw("cannot plot keypoints", "image", model.Name, "error", err)
			}
		}
		return model, nil
	})
}
