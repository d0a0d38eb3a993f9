package transform

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/edgeplan/rimage"
	rutils "go.viam.com/edgeplan/utils"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intriniscs are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective projection of a 3D scene to the 2D plane.
// Both focal terms are always equal for images built from capture metadata.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// PrincipalPoint is a calibrated principal point, in pixels.
type PrincipalPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CameraTable maps a camera model string to its calibrated principal point.
type CameraTable map[string]PrincipalPoint

// DefaultCameraTable holds the camera bodies with a known principal point.
func DefaultCameraTable() CameraTable {
	return CameraTable{
		"Canon EOS 6D": {X: 2756, Y: 1774},
	}
}

// Merge returns a copy of the table with the entries of other added, overriding on conflict.
func (t CameraTable) Merge(other CameraTable) CameraTable {
	out := make(CameraTable, len(t)+len(other))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// NewIntrinsicsFromMetadata builds intrinsics from capture metadata. The focal length is used as
// given for both axes. The principal point is the image centre unless the camera model is listed in
// the table.
func NewIntrinsicsFromMetadata(md rimage.Metadata, table CameraTable) (*PinholeCameraIntrinsics, error) {
	if err := md.Validate(); err != nil {
		return nil, err
	}
	params := &PinholeCameraIntrinsics{
		Width:  md.Width,
		Height: md.Height,
		Fx:     md.FocalLength,
		Fy:     md.FocalLength,
		Ppx:    float64(md.Width) / 2,
		Ppy:    float64(md.Height) / 2,
	}
	if pp, ok := table[md.CameraModel]; ok {
		params.Ppx = pp.X
		params.Ppy = pp.Y
	}
	if err := params.CheckValid(); err != nil {
		return nil, rutils.NewDataError("%v", err)
	}
	return params, nil
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Width == 0 || params.Height == 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%#v, %#v)", params.Width, params.Height))
	}
	if params.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fx = %#v", params.Fx))
	}
	if params.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fy = %#v", params.Fy))
	}
	if params.Ppx < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal X point Ppx = %#v", params.Ppx))
	}
	if params.Ppy < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal Y point Ppy = %#v", params.Ppy))
	}
	return nil
}

// IntrinsicsSuffix is appended to an image path to name its optional calibration file.
const IntrinsicsSuffix = ".intrinsics.json"

// NewPinholeCameraIntrinsicsFromJSONFile takes in a file path to a JSON and turns it into PinholeCameraIntrinsics.
func NewPinholeCameraIntrinsicsFromJSONFile(jsonPath string) (*PinholeCameraIntrinsics, error) {
	//nolint:gosec
	jsonFile, err := os.Open(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening JSON file")
	}
	defer utils.UncheckedErrorFunc(jsonFile.Close)
	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return nil, errors.Wrap(err, "error reading JSON data")
	}
	intrinsics := &PinholeCameraIntrinsics{}
	if err := json.Unmarshal(byteValue, intrinsics); err != nil {
		return nil, errors.Wrap(err, "error parsing JSON string")
	}
	return intrinsics, nil
}

// LoadIntrinsicsOverride reads the calibration file of the image at imagePath, if there is one, and
// returns nil when there is none. A calibration without size takes the image size; one with a
// different size, or an invalid one, is a data error.
func LoadIntrinsicsOverride(imagePath string, width, height int) (*PinholeCameraIntrinsics, error) {
	path := imagePath + IntrinsicsSuffix
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	params, err := NewPinholeCameraIntrinsicsFromJSONFile(path)
	if err != nil {
		return nil, rutils.NewDataError("%s: %v", path, err)
	}
	if params.Width == 0 && params.Height == 0 {
		params.Width, params.Height = width, height
	}
	if params.Width != width || params.Height != height {
		return nil, rutils.NewDataError("%s: calibrated for %dx%d, image is %dx%d",
			path, params.Width, params.Height, width, height)
	}
	if err := params.CheckValid(); err != nil {
		return nil, rutils.NewDataError("%s: %v", path, err)
	}
	return params, nil
}

// PixelToPoint transforms a pixel with depth to a 3D point.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	if params == nil {
		return float64(0), float64(0), float64(0)
	}
	xOverZ := (x - params.Ppx) / params.Fx
	yOverZ := (y - params.Ppy) / params.Fy
	return xOverZ * z, yOverZ * z, z
}

// PointToPixel projects a 3D point to a (sub)pixel in the image plane.
func (params *PinholeCameraIntrinsics) PointToPixel(x, y, z float64) (float64, float64) {
	if z != 0. {
		xPx := (x/z)*params.Fx + params.Ppx
		yPx := (y/z)*params.Fy + params.Ppy
		return xPx, yPx
	}
	// if depth is zero at this pixel, return negative coordinates so that the cropping to image bounds will filter it out
	return -1.0, -1.0
}

// Normalize maps pixel coordinates to the normalized image plane (K⁻¹·[u v 1]).
func (params *PinholeCameraIntrinsics) Normalize(pts []r2.Point) []r2.Point {
	out := make([]r2.Point, len(pts))
	for i, pt := range pts {
		x, y, _ := params.PixelToPoint(pt.X, pt.Y, 1)
		out[i] = r2.Point{X: x, Y: y}
	}
	return out
}

// GetCameraMatrix creates a new camera matrix and returns it.
// Camera matrix:
// [[fx 0 ppx],
//
//	[0 fy ppy],
//	[0 0  1]]
func (params *PinholeCameraIntrinsics) GetCameraMatrix() *mat.Dense {
	if params == nil {
		return nil
	}
	cameraMatrix := mat.NewDense(3, 3, nil)
	cameraMatrix.Set(0, 0, params.Fx)
	cameraMatrix.Set(1, 1, params.Fy)
	cameraMatrix.Set(0, 2, params.Ppx)
	cameraMatrix.Set(1, 2, params.Ppy)
	cameraMatrix.Set(2, 2, 1)
	return cameraMatrix
}

// NewIntrinsicsFromCameraMatrix is the inverse of GetCameraMatrix for a given image size.
func NewIntrinsicsFromCameraMatrix(k mat.Matrix, width, height int) (*PinholeCameraIntrinsics, error) {
	if r, c := k.Dims(); r != 3 || c != 3 {
		return nil, errors.Errorf("camera matrix must be 3x3, got %dx%d", r, c)
	}
	if k.At(1, 0) != 0 || k.At(2, 0) != 0 || k.At(2, 1) != 0 || k.At(0, 1) != 0 || k.At(2, 2) != 1 {
		return nil, errors.New("camera matrix must be of the form [[fx,0,px],[0,fy,py],[0,0,1]]")
	}
	params := &PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     k.At(0, 0),
		Fy:     k.At(1, 1),
		Ppx:    k.At(0, 2),
		Ppy:    k.At(1, 2),
	}
	return params, params.CheckValid()
}
