// Package scene contains the per-request records that describe a camera and the objects it sees.
package scene

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/poseflow/rimage/transform"
	"go.viam.com/poseflow/spatialmath"
)

// Resolution is an image size stored as (height, width).
type Resolution struct {
	Height int
	Width  int
}

// MarshalJSON encodes the resolution as [height, width].
func (r Resolution) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{r.Height, r.Width})
}

// UnmarshalJSON decodes [height, width].
func (r *Resolution) UnmarshalJSON(data []byte) error {
	var hw []int
	if err := json.Unmarshal(data, &hw); err != nil {
		return errors.Wrap(err, "resolution must be [height, width]")
	}
	if len(hw) != 2 {
		return errors.Errorf("resolution must have 2 entries [height, width] but got %d", len(hw))
	}
	r.Height, r.Width = hw[0], hw[1]
	return nil
}

// IsZero reports whether neither dimension is set.
func (r Resolution) IsZero() bool {
	return r.Height == 0 && r.Width == 0
}

func (r Resolution) String() string {
	return fmt.Sprintf("(%d, %d)", r.Height, r.Width)
}

// CameraData is the camera model for one observation: the intrinsic matrix K, the image
// resolution every consumed image must match, and an optional world-from-camera pose.
type CameraData struct {
	Resolution Resolution
	K          *mat.Dense
	TWC        *spatialmath.Transform
}

type cameraJSON struct {
	K          [][]float64            `json:"K"`
	Resolution Resolution             `json:"resolution"`
	TWC        *spatialmath.Transform `json:"TWC,omitempty"`
}

// NewCameraDataFromIntrinsics builds camera data from pinhole intrinsics.
func NewCameraDataFromIntrinsics(params *transform.PinholeCameraIntrinsics) (*CameraData, error) {
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	return &CameraData{
		Resolution: Resolution{Height: params.Height, Width: params.Width},
		K:          params.GetCameraMatrix(),
	}, nil
}

// Intrinsics converts K and the resolution into pinhole intrinsics.
func (c *CameraData) Intrinsics() (*transform.PinholeCameraIntrinsics, error) {
	if c == nil || c.K == nil {
		return nil, transform.NewNoIntrinsicsError("camera data has no K matrix")
	}
	return transform.NewPinholeCameraIntrinsicsFromMatrix(c.K, c.Resolution.Width, c.Resolution.Height)
}

// Validate checks that K is a valid camera matrix for the resolution and that TWC, when set, is rigid.
func (c *CameraData) Validate() error {
	if _, err := c.Intrinsics(); err != nil {
		return err
	}
	if c.TWC != nil {
		if err := c.TWC.CheckRigid(spatialmath.DefaultTransformTolerance); err != nil {
			return errors.Wrap(err, "invalid TWC")
		}
	}
	return nil
}

// WithTWC returns a copy of the camera data with the given world-from-camera pose.
func (c *CameraData) WithTWC(twc spatialmath.Transform) *CameraData {
	return &CameraData{
		Resolution: c.Resolution,
		K:          mat.DenseCopyOf(c.K),
		TWC:        &twc,
	}
}

// MarshalJSON encodes the camera data as {"K": 3x3, "resolution": [H, W], "TWC": 4x4?}.
func (c CameraData) MarshalJSON() ([]byte, error) {
	out := cameraJSON{Resolution: c.Resolution, TWC: c.TWC}
	if c.K != nil {
		r, _ := c.K.Dims()
		out.K = make([][]float64, r)
		for i := range out.K {
			out.K[i] = mat.Row(nil, i, c.K)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the camera JSON layout.
func (c *CameraData) UnmarshalJSON(data []byte) error {
	var in cameraJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if len(in.K) != 3 {
		return errors.Errorf("K must be 3x3 but has %d rows", len(in.K))
	}
	flat := make([]float64, 0, 9)
	for i, row := range in.K {
		if len(row) != 3 {
			return errors.Errorf("K row %d has %d entries, expected 3", i, len(row))
		}
		flat = append(flat, row...)
	}
	c.K = mat.NewDense(3, 3, flat)
	c.Resolution = in.Resolution
	c.TWC = in.TWC
	return nil
}

// ReadCameraData reads and validates a camera JSON file.
func ReadCameraData(path string) (*CameraData, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read camera data %q", path)
	}
	var camera CameraData
	if err := json.Unmarshal(data, &camera); err != nil {
		return nil, errors.Wrapf(err, "cannot parse camera data %q", path)
	}
	if err := camera.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid camera data %q", path)
	}
	return &camera, nil
}
