// Package pipeline wires the catalog, render cache, estimator and compositor into a pose
// estimation pipeline built once from a config.
package pipeline

import (
	"context"
	"image"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/poseflow/catalog"
	"go.viam.com/poseflow/config"
	"go.viam.com/poseflow/detection"
	"go.viam.com/poseflow/estimator"
	// register the reference backend.
	_ "go.viam.com/poseflow/estimator/centroid"
	"go.viam.com/poseflow/logging"
	"go.viam.com/poseflow/ml"
	"go.viam.com/poseflow/observation"
	"go.viam.com/poseflow/persistence"
	"go.viam.com/poseflow/render/flat"
	"go.viam.com/poseflow/rendercache"
	"go.viam.com/poseflow/rimage"
	"go.viam.com/poseflow/scene"
	"go.viam.com/poseflow/visualization"
)

// Context is everything built at startup. It does not change after New returns.
type Context struct {
	catalog *catalog.Dataset
	renders *rendercache.RenderCache
	camera  *scene.CameraData
	preset  estimator.Preset
	device  ml.Device
}

// Catalog returns the object catalog.
func (c Context) Catalog() *catalog.Dataset { return c.catalog }

// Renders returns the render cache.
func (c Context) Renders() *rendercache.RenderCache { return c.renders }

// Camera returns a copy of the reference camera.
func (c Context) Camera() *scene.CameraData {
	cp := &scene.CameraData{Resolution: c.camera.Resolution, K: mat.DenseCopyOf(c.camera.K)}
	if c.camera.TWC != nil {
		twc := *c.camera.TWC
		cp.TWC = &twc
	}
	return cp
}

// Preset returns the active model preset.
func (c Context) Preset() estimator.Preset { return c.preset }

// Device returns the inference device.
func (c Context) Device() ml.Device { return c.device }

// Pipeline estimates and visualizes poses for example directories.
type Pipeline struct {
	pc         Context
	cameraFile string
	estimator  *estimator.Facade
	compositor *visualization.Compositor
	logger     logging.Logger
}

// New builds the catalog, loads the render cache and the reference camera, and constructs the
// estimator. Any failure aborts construction.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Pipeline, error) {
	ctx, span := trace.StartSpan(ctx, "pipeline::New")
	defer span.End()

	device, err := ml.ParseDevice(cfg.Device)
	if err != nil {
		return nil, err
	}
	var extra map[string]estimator.Preset
	if cfg.PresetsFile != "" {
		if extra, err = estimator.LoadPresets(cfg.PresetsFile); err != nil {
			return nil, err
		}
	}
	preset, err := estimator.LookupPreset(cfg.Model, extra)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	dataset, err := BuildCatalog(cfg.Catalog, logger.Sublogger("catalog"))
	if err != nil {
		return nil, err
	}
	camera, err := scene.ReadCameraData(cfg.Camera)
	if err != nil {
		return nil, err
	}
	renders, err := rendercache.Load(ctx, cfg.RendersDir, logger.Sublogger("rendercache"))
	if err != nil {
		return nil, err
	}

	facade, err := estimator.New(ctx, estimator.Options{
		Backend:    cfg.Backend,
		Preset:     preset,
		Catalog:    dataset,
		Resolution: camera.Resolution,
		Device:     device,
		ModelsDir:  cfg.ModelsDir,
		Admission:  cfg.Admission,
		Logger:     logger.Sublogger("estimator"),
	})
	if err != nil {
		return nil, err
	}
	if err := facade.AttachRenders(renders); err != nil {
		return nil, err
	}

	meshes := dataset
	if cfg.Visualization.MeshDir != "" {
		if meshes, err = catalog.NewDatasetFromDirectory(cfg.Visualization.MeshDir, logger.Sublogger("catalog")); err != nil {
			return nil, err
		}
	}
	visOpts, err := cfg.Visualization.Options(cfg.CameraFile)
	if err != nil {
		return nil, err
	}
	compositor, err := visualization.NewCompositor(flat.New(meshes, logger.Sublogger("render")), visOpts, logger.Sublogger("visualization"))
	if err != nil {
		return nil, err
	}

	logger.Infow("pipeline ready",
		"objects", dataset.Len(),
		"catalog_version", dataset.Version(),
		"render_labels", len(renders.Labels()),
		"render_bytes", renders.Bytes(),
		"preset", preset.Name,
		"device", device,
		"duration", time.Since(start).String(),
	)
	return &Pipeline{
		pc: Context{
			catalog: dataset,
			renders: renders,
			camera:  camera,
			preset:  preset,
			device:  device,
		},
		cameraFile: cfg.CameraFile,
		estimator:  facade,
		compositor: compositor,
		logger:     logger,
	}, nil
}

// BuildCatalog builds the object catalog described by cfg.
func BuildCatalog(cfg config.CatalogConfig, logger logging.Logger) (*catalog.Dataset, error) {
	if cfg.Mode != config.CatalogModeYCB {
		return catalog.NewDatasetFromDirectory(cfg.Dir, logger)
	}
	labels := catalog.YCBVLabels
	if cfg.LabelList != "" {
		var err error
		if labels, err = catalog.LoadLabelList(cfg.LabelList); err != nil {
			return nil, err
		}
	}
	return catalog.NewYCBDataset(cfg.Dir, labels, logger)
}

// Context returns the startup context.
func (p *Pipeline) Context() Context {
	return p.pc
}

// Inference estimates the pose of a single object in rgb. depth may be nil. Both images must
// have the reference camera resolution.
func (p *Pipeline) Inference(
	ctx context.Context,
	rgb image.Image,
	depth *rimage.DepthMap,
	label string,
	bbox scene.BoundingBox,
) (*estimator.PoseEstimates, error) {
	obs, err := observation.FromImages(rgb, depth, p.pc.camera, p.pc.device)
	if err != nil {
		return nil, err
	}
	dets, err := detection.FromObjectData([]scene.ObjectData{{Label: label, BboxModal: &bbox}}, p.pc.device)
	if err != nil {
		return nil, err
	}
	return p.estimator.Estimate(ctx, obs, dets)
}

// EstimateExample estimates poses for the annotations of exampleDir and saves them to
// exampleDir/outputs/object_data.json. Depth is loaded when the preset requires it.
func (p *Pipeline) EstimateExample(ctx context.Context, exampleDir string) (*estimator.PoseEstimates, error) {
	ctx, span := trace.StartSpan(ctx, "pipeline::EstimateExample")
	defer span.End()

	obs, err := observation.LoadObservationTensor(exampleDir, p.cameraFile, p.pc.preset.RequiresDepth, p.pc.device)
	if err != nil {
		return nil, err
	}
	dets, err := detection.LoadDetections(exampleDir, p.pc.device)
	if err != nil {
		return nil, err
	}
	estimates, err := p.estimator.Estimate(ctx, obs, dets)
	if err != nil {
		return nil, errors.Wrapf(err, "example %q", exampleDir)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	outputs := filepath.Join(exampleDir, persistence.OutputsDir)
	if err := persistence.Save(outputs, estimates); err != nil {
		return nil, err
	}
	p.logger.CDebugw(ctx, "wrote predictions", "path", filepath.Join(outputs, persistence.FileName), "objects", estimates.Len())
	return estimates, nil
}

// Visualize writes the comparison figures of exampleDir.
func (p *Pipeline) Visualize(ctx context.Context, exampleDir string) error {
	return p.compositor.Visualize(ctx, exampleDir)
}
