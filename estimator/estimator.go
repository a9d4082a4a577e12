// Package estimator wraps a pose estimation backend behind a facade that validates requests
// against the camera, catalog and render cache it was initialized with.
package estimator

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/poseflow/detection"
	"go.viam.com/poseflow/ml"
	"go.viam.com/poseflow/observation"
	"go.viam.com/poseflow/rendercache"
	"go.viam.com/poseflow/spatialmath"
)

// Request carries everything a backend needs for one inference call besides the observation and
// detections.
type Request struct {
	Preset  Preset
	Renders *rendercache.RenderCache
}

// PoseEstimator estimates one camera-from-object pose per detection. Detections are used as
// initialization; implementations do not run their own detector.
type PoseEstimator interface {
	Estimate(ctx context.Context, obs *observation.ObservationTensor, dets *detection.Detections, req Request) (*PoseEstimates, error)
}

// Info is opaque per-object metadata reported by a backend.
type Info struct {
	HypothesisID      int     `json:"hypothesis_id"`
	CoarseView        int     `json:"coarse_view"`
	RefinerIterations int     `json:"refiner_iterations"`
	Score             float64 `json:"score"`
}

// PoseEstimates holds parallel labels and camera-from-object poses bound to a device.
type PoseEstimates struct {
	Labels []string
	Poses  []spatialmath.Transform
	Infos  []Info
	Device ml.Device
}

// NewEmptyPoseEstimates returns estimates with no objects.
func NewEmptyPoseEstimates(device ml.Device) *PoseEstimates {
	return &PoseEstimates{Labels: []string{}, Poses: []spatialmath.Transform{}, Infos: []Info{}, Device: device}
}

// Len returns the number of estimated objects.
func (p *PoseEstimates) Len() int {
	return len(p.Labels)
}

// ToHost copies labels and poses into host memory.
func (p *PoseEstimates) ToHost() ([]string, []spatialmath.Transform, error) {
	if len(p.Labels) != len(p.Poses) {
		return nil, nil, errors.Errorf("pose estimates have %d labels but %d poses", len(p.Labels), len(p.Poses))
	}
	labels := append([]string(nil), p.Labels...)
	poses := append([]spatialmath.Transform(nil), p.Poses...)
	return labels, poses, nil
}
