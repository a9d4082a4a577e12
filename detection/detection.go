// Package detection adapts externally supplied 2D annotations into the detections consumed by
// pose estimation.
package detection

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/poseflow/ml"
	"go.viam.com/poseflow/persistence"
	"go.viam.com/poseflow/scene"
)

// InputsDir is the directory of an example holding input annotations.
const InputsDir = "inputs"

// Detection is one labeled 2D region.
type Detection struct {
	Label string
	BBox  scene.BoundingBox
}

// Detections is a list of detections bound to a device.
type Detections struct {
	Items  []Detection
	Device ml.Device
}

// Len returns the number of detections.
func (d *Detections) Len() int {
	return len(d.Items)
}

// Labels returns the label of every detection, in order.
func (d *Detections) Labels() []string {
	return lo.Map(d.Items, func(det Detection, _ int) string { return det.Label })
}

// FromObjectData converts annotations into detections on device. Every object must have a label
// and a bounding box; the box geometry is not checked.
func FromObjectData(objects []scene.ObjectData, device ml.Device) (*Detections, error) {
	items := make([]Detection, 0, len(objects))
	for i, o := range objects {
		if o.Label == "" {
			return nil, errors.Errorf("annotation %d has no label", i)
		}
		if o.BboxModal == nil {
			return nil, errors.Errorf("annotation %d for label %q has no bbox_modal", i, o.Label)
		}
		items = append(items, Detection{Label: o.Label, BBox: *o.BboxModal})
	}
	return &Detections{Items: items, Device: device}, nil
}

// LoadDetections reads exampleDir/inputs/object_data.json. An empty list yields empty detections.
func LoadDetections(exampleDir string, device ml.Device) (*Detections, error) {
	objects, err := persistence.LoadObjectData(filepath.Join(exampleDir, InputsDir))
	if err != nil {
		return nil, err
	}
	return FromObjectData(objects, device)
}
