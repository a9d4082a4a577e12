package estimator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.opencensus.io/trace"

	"go.viam.com/poseflow/catalog"
	"go.viam.com/poseflow/detection"
	"go.viam.com/poseflow/logging"
	"go.viam.com/poseflow/ml"
	"go.viam.com/poseflow/observation"
	"go.viam.com/poseflow/rendercache"
	"go.viam.com/poseflow/scene"
	"go.viam.com/poseflow/spatialmath"
	"go.viam.com/poseflow/utils"
)

// DefaultBackend is the backend used when none is configured.
const DefaultBackend = "centroid"

// ErrConcurrentInference is returned when Estimate is called on a facade that is already running
// an inference.
var ErrConcurrentInference = errors.New("an inference is already running on this estimator")

// AdmissionLimits bound the work of a single request. Zero means unlimited.
type AdmissionLimits struct {
	MaxDetections  int   `json:"max_detections,omitempty"`
	MaxDeviceBytes int64 `json:"max_device_bytes,omitempty"`
}

// AdmissionError is returned before any backend call when a request exceeds an admission limit.
type AdmissionError struct {
	Limit     string
	Max       int64
	Requested int64
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("request exceeds %s: requested %d, max %d", e.Limit, e.Requested, e.Max)
}

// Options configure a Facade.
type Options struct {
	// Backend names a registered backend; ignored when Estimator is set.
	Backend string
	// Estimator overrides the registry lookup.
	Estimator  PoseEstimator
	Preset     Preset
	Catalog    *catalog.Dataset
	Resolution scene.Resolution
	Device     ml.Device
	ModelsDir  string
	Admission  AdmissionLimits
	Logger     logging.Logger
}

// Facade validates requests and forwards them to a backend.
type Facade struct {
	backend    PoseEstimator
	preset     Preset
	catalog    *catalog.Dataset
	resolution scene.Resolution
	device     ml.Device
	admission  AdmissionLimits
	logger     logging.Logger

	mu      sync.Mutex
	renders *rendercache.RenderCache

	running atomic.Bool
}

// New builds a facade, constructing the configured backend unless one is given.
func New(ctx context.Context, opts Options) (*Facade, error) {
	if opts.Catalog == nil {
		return nil, errors.New("estimator requires a catalog")
	}
	if opts.Logger == nil {
		return nil, errors.New("estimator requires a logger")
	}
	if err := opts.Preset.Validate(); err != nil {
		return nil, err
	}
	if opts.Resolution.Height <= 0 || opts.Resolution.Width <= 0 {
		return nil, errors.Errorf("invalid camera resolution %v", opts.Resolution)
	}
	if opts.Device == "" {
		opts.Device = ml.CPU
	}

	backend := opts.Estimator
	if backend == nil {
		name := opts.Backend
		if name == "" {
			name = DefaultBackend
		}
		constructor, err := LookupBackend(name)
		if err != nil {
			return nil, err
		}
		backend, err = constructor(ctx, BackendConfig{
			Preset:    opts.Preset,
			Catalog:   opts.Catalog,
			ModelsDir: opts.ModelsDir,
			Device:    opts.Device,
		}, opts.Logger.Sublogger(name))
		if err != nil {
			return nil, errors.Wrapf(err, "cannot construct estimator backend %q", name)
		}
	}

	opts.Logger.Infow("estimator ready",
		"preset", opts.Preset.Name,
		"coarse_run_id", opts.Preset.CoarseRunID,
		"refiner_run_id", opts.Preset.RefinerRunID,
		"device", opts.Device,
		"resolution", opts.Resolution.String(),
	)
	return &Facade{
		backend:    backend,
		preset:     opts.Preset,
		catalog:    opts.Catalog,
		resolution: opts.Resolution,
		device:     opts.Device,
		admission:  opts.Admission,
		logger:     opts.Logger,
	}, nil
}

// Preset returns the active preset.
func (f *Facade) Preset() Preset {
	return f.preset
}

// Device returns the device the facade is bound to.
func (f *Facade) Device() ml.Device {
	return f.device
}

// AttachRenders sets the render cache. It can only be called once.
func (f *Facade) AttachRenders(rc *rendercache.RenderCache) error {
	if rc == nil {
		return errors.New("cannot attach a nil render cache")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.renders != nil {
		return errors.New("render cache already attached")
	}
	if missing := lo.Without(f.catalog.Labels(), rc.Labels()...); len(missing) > 0 {
		f.logger.Warnw("catalog labels without renders", "labels", missing)
	}
	f.renders = rc
	return nil
}

func (f *Facade) attachedRenders() *rendercache.RenderCache {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renders
}

// Estimate returns one pose per detection. Requests are checked in order: device, resolution,
// depth, empty detections (returned without calling the backend), unknown labels, admission
// limits and concurrent use.
func (f *Facade) Estimate(ctx context.Context, obs *observation.ObservationTensor, dets *detection.Detections) (*PoseEstimates, error) {
	ctx, span := trace.StartSpan(ctx, "estimator::Estimate")
	defer span.End()

	if err := ml.CheckDevice("observation", f.device, obs.Device); err != nil {
		return nil, err
	}
	if err := ml.CheckDevice("detections", f.device, dets.Device); err != nil {
		return nil, err
	}
	if obs.Resolution != f.resolution {
		return nil, &observation.ResolutionMismatchError{Path: "observation", Expected: f.resolution, Actual: obs.Resolution}
	}
	if f.preset.RequiresDepth && !obs.HasDepth() {
		return nil, errors.Errorf("preset %q requires depth but the observation has none", f.preset.Name)
	}
	if dets.Len() == 0 {
		return NewEmptyPoseEstimates(f.device), nil
	}
	if label, ok := f.catalog.Has(dets.Labels()...); !ok {
		return nil, utils.NewUnknownLabelError(label)
	}
	renders := f.attachedRenders()
	if renders == nil {
		return nil, errors.New("no render cache attached to the estimator")
	}
	if err := f.admit(dets, renders); err != nil {
		return nil, err
	}

	if !f.running.CompareAndSwap(false, true) {
		return nil, ErrConcurrentInference
	}
	defer f.running.Store(false)

	start := time.Now()
	estimates, err := f.backend.Estimate(ctx, obs, dets, Request{Preset: f.preset, Renders: renders})
	if err != nil {
		return nil, errors.Wrap(err, "pose estimation failed")
	}
	if err := checkEstimates(estimates, dets); err != nil {
		return nil, err
	}
	f.logger.CDebugw(ctx, "estimated poses",
		"detections", dets.Len(),
		"preset", f.preset.Name,
		"duration", time.Since(start).String(),
	)
	return estimates, nil
}

// admit estimates device memory as detections x views x per-view bytes.
func (f *Facade) admit(dets *detection.Detections, renders *rendercache.RenderCache) error {
	if limit := f.admission.MaxDetections; limit > 0 && dets.Len() > limit {
		return &AdmissionError{Limit: "max_detections", Max: int64(limit), Requested: int64(dets.Len())}
	}
	var required int64
	for _, label := range dets.Labels() {
		views := renders.Views(label)
		if views == 0 {
			return errors.Errorf("label %q has no renders in the render cache", label)
		}
		required += int64(views) * renders.ViewBytes(label)
	}
	if limit := f.admission.MaxDeviceBytes; limit > 0 && required > limit {
		return &AdmissionError{Limit: "max_device_bytes", Max: limit, Requested: required}
	}
	return nil
}

func checkEstimates(estimates *PoseEstimates, dets *detection.Detections) error {
	if estimates == nil {
		return errors.New("estimator returned no estimates")
	}
	if estimates.Len() != dets.Len() || len(estimates.Poses) != dets.Len() {
		return errors.Errorf("estimator returned %d labels and %d poses for %d detections",
			estimates.Len(), len(estimates.Poses), dets.Len())
	}
	inputs := lo.SliceToMap(dets.Labels(), func(l string) (string, bool) { return l, true })
	for i, label := range estimates.Labels {
		if !inputs[label] {
			return errors.Errorf("estimator returned label %q that was not detected", label)
		}
		if err := estimates.Poses[i].CheckHomogeneous(spatialmath.DefaultTransformTolerance); err != nil {
			return errors.Wrapf(err, "pose %d for %q", i, label)
		}
	}
	return nil
}
