// Package observation validates and packages one camera capture (RGB, optional depth, camera
// model) into the tensors consumed by pose estimation.
package observation

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	"go.viam.com/poseflow/ml"
	"go.viam.com/poseflow/rimage"
	"go.viam.com/poseflow/scene"
)

// File names inside an example directory.
const (
	RGBFile   = "image_rgb.png"
	DepthFile = "image_depth.png"
)

// DepthScale divides raw 16-bit depth values to get meters.
const DepthScale = 10000.0

// ResolutionMismatchError is returned when an image does not have the camera's resolution.
// Images are never cropped or resized to fit.
type ResolutionMismatchError struct {
	Path     string
	Expected scene.Resolution
	Actual   scene.Resolution
}

func (e *ResolutionMismatchError) Error() string {
	return fmt.Sprintf("img dimension and camera resolution don't match for %q: Image%v != Camera%v", e.Path, e.Actual, e.Expected)
}

// CheckResolution returns a *ResolutionMismatchError when width x height differs from expected.
func CheckResolution(path string, expected scene.Resolution, width, height int) error {
	actual := scene.Resolution{Height: height, Width: width}
	if actual != expected {
		return &ResolutionMismatchError{Path: path, Expected: expected, Actual: actual}
	}
	return nil
}

// Observation is one decoded capture. Depth is nil when it was not requested.
type Observation struct {
	RGB    image.Image
	Depth  *rimage.DepthMap
	Camera *scene.CameraData
}

// LoadObservation reads the camera file, image_rgb.png and, when loadDepth is set,
// image_depth.png from exampleDir. Image sizes are checked against the camera resolution
// before images are decoded.
func LoadObservation(exampleDir, cameraFile string, loadDepth bool) (*Observation, error) {
	camera, err := scene.ReadCameraData(filepath.Join(exampleDir, cameraFile))
	if err != nil {
		return nil, err
	}

	rgbPath := filepath.Join(exampleDir, RGBFile)
	if err := checkImageFile(rgbPath, camera.Resolution); err != nil {
		return nil, err
	}
	var depthPath string
	if loadDepth {
		depthPath = filepath.Join(exampleDir, DepthFile)
		if _, err := os.Stat(depthPath); err != nil {
			return nil, errors.Wrapf(err, "depth requested but %q is not readable", depthPath)
		}
		if err := checkImageFile(depthPath, camera.Resolution); err != nil {
			return nil, err
		}
	}

	rgb, err := rimage.ReadImageFromFile(rgbPath)
	if err != nil {
		return nil, err
	}
	obs := &Observation{RGB: rgb, Camera: camera}
	if loadDepth {
		if obs.Depth, err = rimage.ReadDepthMapFromFile(depthPath); err != nil {
			return nil, err
		}
	}
	return obs, nil
}

func checkImageFile(path string, expected scene.Resolution) error {
	w, h, err := rimage.ReadImageSize(path)
	if err != nil {
		return err
	}
	return CheckResolution(path, expected, w, h)
}

// ObservationTensor is the normalized packaging of one capture bound to a device.
type ObservationTensor struct {
	// RGB is [3, H, W] float32 in [0, 1].
	RGB *tensor.Dense
	// Depth is [1, H, W] float32 meters, nil when unavailable.
	Depth      *tensor.Dense
	K          *mat.Dense
	Resolution scene.Resolution
	Device     ml.Device
}

// HasDepth reports whether depth is available.
func (o *ObservationTensor) HasDepth() bool {
	return o.Depth != nil
}

// FromImages converts decoded images into an ObservationTensor on device. Both images must
// match the camera resolution.
func FromImages(rgb image.Image, depth *rimage.DepthMap, camera *scene.CameraData, device ml.Device) (*ObservationTensor, error) {
	if err := CheckResolution(RGBFile, camera.Resolution, rgb.Bounds().Dx(), rgb.Bounds().Dy()); err != nil {
		return nil, err
	}
	if depth != nil {
		if err := CheckResolution(DepthFile, camera.Resolution, depth.Width(), depth.Height()); err != nil {
			return nil, err
		}
	}
	if _, err := camera.Intrinsics(); err != nil {
		return nil, err
	}

	obs := &ObservationTensor{
		RGB:        rimage.ImageToTensor(rgb),
		K:          mat.DenseCopyOf(camera.K),
		Resolution: camera.Resolution,
		Device:     device,
	}
	if depth != nil {
		obs.Depth = rimage.DepthMapToTensor(depth, DepthScale)
	}
	return obs, nil
}

// LoadObservationTensor loads an example directory and converts it in one step.
func LoadObservationTensor(exampleDir, cameraFile string, loadDepth bool, device ml.Device) (*ObservationTensor, error) {
	obs, err := LoadObservation(exampleDir, cameraFile, loadDepth)
	if err != nil {
		return nil, err
	}
	return FromImages(obs.RGB, obs.Depth, obs.Camera, device)
}

// DepthAt returns the depth in meters at pixel (x, y), or 0 when depth is absent or the pixel is
// outside the image.
func (o *ObservationTensor) DepthAt(x, y int) float64 {
	if o.Depth == nil || x < 0 || y < 0 || x >= o.Resolution.Width || y >= o.Resolution.Height {
		return 0
	}
	data, ok := o.Depth.Data().([]float32)
	if !ok {
		return 0
	}
	return float64(data[y*o.Resolution.Width+x])
}
