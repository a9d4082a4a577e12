// Package visualization renders estimated poses over the input image and writes the comparison
// figures of an example.
package visualization

import (
	"context"
	"image/color"
	"path/filepath"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"go.viam.com/poseflow/logging"
	"go.viam.com/poseflow/observation"
	"go.viam.com/poseflow/persistence"
	"go.viam.com/poseflow/render"
	"go.viam.com/poseflow/rimage"
	"go.viam.com/poseflow/scene"
	"go.viam.com/poseflow/spatialmath"
	"go.viam.com/poseflow/utils"
)

// Dir is the directory of an example the figures are written to.
const Dir = "visualizations"

// Figure file names.
const (
	RGBFile            = "rgb.png"
	MeshOverlayFile    = "mesh_overlay.png"
	ContourOverlayFile = "contour_overlay.png"
	AllResultsFile     = "all_results.png"
)

// Options configure a Compositor.
type Options struct {
	CameraFile       string
	OverlayAlpha     float64
	ContourColor     color.Color
	DilateIterations int
}

// DefaultOptions returns the default compositing options.
func DefaultOptions(cameraFile string) Options {
	return Options{
		CameraFile:       cameraFile,
		OverlayAlpha:     0.8,
		ContourColor:     rimage.Green,
		DilateIterations: 1,
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.CameraFile == "" {
		return errors.New("visualization requires a camera file")
	}
	if o.OverlayAlpha < 0 || o.OverlayAlpha > 1 {
		return errors.Errorf("overlay alpha must be within [0, 1], got %v", o.OverlayAlpha)
	}
	if o.DilateIterations < 0 {
		return errors.Errorf("dilate iterations must be >= 0, got %d", o.DilateIterations)
	}
	if o.ContourColor == nil {
		return errors.New("visualization requires a contour color")
	}
	return nil
}

// Compositor renders saved estimates and composes the figures of an example.
type Compositor struct {
	renderer render.SceneRenderer
	plotter  *Plotter
	opts     Options
	logger   logging.Logger
}

// NewCompositor returns a compositor drawing with renderer.
func NewCompositor(renderer render.SceneRenderer, opts Options, logger logging.Logger) (*Compositor, error) {
	if renderer == nil {
		return nil, errors.New("visualization requires a renderer")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Compositor{renderer: renderer, plotter: NewPlotter(), opts: opts, logger: logger}, nil
}

// Visualize reads exampleDir/outputs/object_data.json, renders it from the example camera and
// writes the figures to exampleDir/visualizations. Nothing is written unless every figure is
// rendered and encoded.
func (c *Compositor) Visualize(ctx context.Context, exampleDir string) error {
	ctx, span := trace.StartSpan(ctx, "visualization::Visualize")
	defer span.End()

	obs, err := observation.LoadObservation(exampleDir, c.opts.CameraFile, false)
	if err != nil {
		return err
	}
	camera := obs.Camera.WithTWC(spatialmath.NewIdentityTransform())
	objects, err := persistence.Load(filepath.Join(exampleDir, persistence.OutputsDir, persistence.FileName))
	if err != nil {
		return err
	}

	renderings, err := c.renderer.Render(ctx, objects, []*scene.CameraData{camera},
		[]render.LightData{{Type: render.AmbientLight, Color: color.White}},
		render.RenderOptions{})
	if err != nil {
		return err
	}
	if len(renderings) != 1 || renderings[0].RGB == nil {
		return errors.Errorf("renderer returned %d renderings for 1 camera", len(renderings))
	}
	rendering := renderings[0].RGB

	meshOverlay, err := rimage.Overlay(obs.RGB, rendering, c.opts.OverlayAlpha)
	if err != nil {
		return err
	}
	contour, err := rimage.ContourMask(rendering, c.opts.DilateIterations)
	if err != nil {
		return err
	}
	contourOverlay, err := rimage.PaintMask(obs.RGB, contour, c.opts.ContourColor)
	if err != nil {
		return err
	}

	figRGB := c.plotter.PlotImage(obs.RGB, "RGB")
	figContour := c.plotter.PlotImage(contourOverlay, "Contour overlay")
	figMesh := c.plotter.PlotImage(meshOverlay, "Mesh overlay")

	files := map[string][]byte{}
	for name, fig := range map[string]*Figure{
		RGBFile:            figRGB,
		MeshOverlayFile:    figMesh,
		ContourOverlayFile: figContour,
	} {
		if files[name], err = c.plotter.Export(fig); err != nil {
			return errors.Wrapf(err, "cannot export %s", name)
		}
	}
	if files[AllResultsFile], err = c.plotter.ExportGrid([][]*Figure{{figRGB, figContour, figMesh}}); err != nil {
		return errors.Wrapf(err, "cannot export %s", AllResultsFile)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Join(exampleDir, Dir)
	if err := utils.WriteFilesAtomic(dir, files); err != nil {
		return err
	}
	c.logger.Infow("wrote visualizations", "path", dir, "objects", len(objects))
	return nil
}
