package scene

import (
	"math"

	"github.com/pkg/errors"

	"go.viam.com/poseflow/spatialmath"
)

// BoundingBox is an axis aligned box in pixel coordinates: [xmin, ymin, xmax, ymax].
type BoundingBox [4]float64

// Center returns the box center in pixels.
func (b BoundingBox) Center() (float64, float64) {
	return (b[0] + b[2]) / 2, (b[1] + b[3]) / 2
}

// Width returns xmax - xmin.
func (b BoundingBox) Width() float64 {
	return b[2] - b[0]
}

// Height returns ymax - ymin.
func (b BoundingBox) Height() float64 {
	return b[3] - b[1]
}

// Validate checks that every coordinate is finite. Degenerate or inverted boxes are accepted and
// passed through to the estimator unchanged.
func (b BoundingBox) Validate() error {
	for _, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Errorf("bounding box %v has a non-finite coordinate", [4]float64(b))
		}
	}
	return nil
}

// ObjectData is a per-object annotation: the label, an optional modal bounding box and an
// optional camera-from-object pose.
type ObjectData struct {
	Label     string                 `json:"label" jsonschema:"required,description=catalog label of the object"`
	BboxModal *BoundingBox           `json:"bbox_modal" jsonschema:"nullable,description=[xmin ymin xmax ymax] in pixels"`
	TWO       *spatialmath.Transform `json:"TWO" jsonschema:"nullable,description=4x4 camera-from-object transform"`
}

// Validate checks the label and, when present, the bounding box and pose.
func (o ObjectData) Validate() error {
	if o.Label == "" {
		return errors.New("object data label must not be empty")
	}
	if o.BboxModal != nil {
		if err := o.BboxModal.Validate(); err != nil {
			return errors.Wrapf(err, "object %q", o.Label)
		}
	}
	if o.TWO != nil {
		if err := o.TWO.CheckHomogeneous(spatialmath.DefaultTransformTolerance); err != nil {
			return errors.Wrapf(err, "object %q", o.Label)
		}
	}
	return nil
}
