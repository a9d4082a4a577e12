// Package flat is a software scene renderer that fills projected mesh triangles with a flat
// shade, far to near. It produces color and silhouette outputs only.
package flat

import (
	"context"
	"image/color"
	"math"
	"sort"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"go.viam.com/poseflow/catalog"
	"go.viam.com/poseflow/logging"
	"go.viam.com/poseflow/render"
	"go.viam.com/poseflow/rimage"
	"go.viam.com/poseflow/rimage/transform"
	"go.viam.com/poseflow/scene"
	"go.viam.com/poseflow/spatialmath"
)

// DefaultAlbedo is the surface color of every object.
var DefaultAlbedo = color.NRGBA{R: 200, G: 200, B: 200, A: 255}

// Renderer renders catalog meshes. Meshes are loaded on first use and kept.
type Renderer struct {
	dataset *catalog.Dataset
	albedo  color.Color
	logger  logging.Logger

	mu     sync.Mutex
	meshes map[string]*spatialmath.Mesh
}

var _ render.SceneRenderer = (*Renderer)(nil)

// New returns a renderer for the objects of dataset.
func New(dataset *catalog.Dataset, logger logging.Logger) *Renderer {
	return &Renderer{
		dataset: dataset,
		albedo:  DefaultAlbedo,
		logger:  logger,
		meshes:  map[string]*spatialmath.Mesh{},
	}
}

type face struct {
	points []gg.Point
	depth  float64
	color  color.NRGBA
}

type lighting struct {
	ambient     [3]float64
	directional [3]float64
}

// Render implements render.SceneRenderer. Directional lights shine along the camera axis.
func (r *Renderer) Render(
	ctx context.Context,
	objects []scene.ObjectData,
	cameras []*scene.CameraData,
	lights []render.LightData,
	opts render.RenderOptions,
) ([]render.Rendering, error) {
	ctx, span := trace.StartSpan(ctx, "flat::Render")
	defer span.End()

	if opts.RenderDepth || opts.RenderNormals {
		return nil, errors.New("flat renderer cannot render depth or normals")
	}
	light, err := accumulateLights(lights)
	if err != nil {
		return nil, err
	}
	meshes := make([]*spatialmath.Mesh, len(objects))
	for i, obj := range objects {
		if obj.TWO == nil {
			return nil, &render.RenderFailure{Label: obj.Label, Reason: "object has no pose"}
		}
		if meshes[i], err = r.mesh(obj.Label); err != nil {
			return nil, err
		}
	}

	renderings := make([]render.Rendering, 0, len(cameras))
	for i, cam := range cameras {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rendering, err := r.renderCamera(cam, objects, meshes, light, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "camera %d", i)
		}
		renderings = append(renderings, rendering)
	}
	r.logger.Debugw("rendered scene", "objects", len(objects), "cameras", len(cameras))
	return renderings, nil
}

func (r *Renderer) renderCamera(
	cam *scene.CameraData,
	objects []scene.ObjectData,
	meshes []*spatialmath.Mesh,
	light lighting,
	opts render.RenderOptions,
) (render.Rendering, error) {
	if cam == nil || cam.TWC == nil {
		return render.Rendering{}, errors.New("camera has no pose")
	}
	intrinsics, err := cam.Intrinsics()
	if err != nil {
		return render.Rendering{}, err
	}
	tcw := cam.TWC.Inverse()

	var faces []face
	for i, obj := range objects {
		tco := tcw.Compose(*obj.TWO)
		for _, tri := range meshes[i].Transform(tco).Triangles() {
			f, ok := r.project(intrinsics, tri, light)
			if ok {
				faces = append(faces, f)
			}
		}
	}
	sort.SliceStable(faces, func(i, j int) bool { return faces[i].depth > faces[j].depth })

	dc := gg.NewContext(cam.Resolution.Width, cam.Resolution.Height)
	for _, f := range faces {
		rimage.FillPolygon(dc, f.points, f.color)
	}
	rendering := render.Rendering{RGB: imaging.Clone(dc.Image())}
	if opts.RenderMask {
		rendering.Mask = rimage.SilhouetteMask(rendering.RGB)
	}
	return rendering, nil
}

// project drops triangles touching or behind the image plane.
func (r *Renderer) project(
	intrinsics *transform.PinholeCameraIntrinsics,
	tri *spatialmath.Triangle,
	light lighting,
) (face, bool) {
	pts := tri.Points()
	f := face{points: make([]gg.Point, 0, len(pts))}
	for _, p := range pts {
		u, v, ok := intrinsics.ProjectPoint(p)
		if !ok {
			return face{}, false
		}
		f.points = append(f.points, gg.Point{X: u, Y: v})
		f.depth += p.Z / float64(len(pts))
	}
	shade := math.Abs(tri.Normal().Z)
	ar, ag, ab := rimage.ColorToFloats(r.albedo)
	channel := func(albedo float64, k int) uint8 {
		v := albedo * (light.ambient[k] + shade*light.directional[k])
		return uint8(math.Round(255 * math.Min(1, math.Max(0, v))))
	}
	f.color = color.NRGBA{R: channel(ar, 0), G: channel(ag, 1), B: channel(ab, 2), A: 255}
	return f, true
}

func accumulateLights(lights []render.LightData) (lighting, error) {
	var out lighting
	for _, l := range lights {
		if err := l.Validate(); err != nil {
			return lighting{}, err
		}
		r, g, b := rimage.ColorToFloats(l.Color)
		target := &out.ambient
		if l.Type == render.DirectionalLight {
			target = &out.directional
		}
		target[0] += r
		target[1] += g
		target[2] += b
	}
	return out, nil
}

func (r *Renderer) mesh(label string) (*spatialmath.Mesh, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.meshes[label]; ok {
		return m, nil
	}
	obj, ok := r.dataset.Get(label)
	if !ok {
		return nil, &render.RenderFailure{Label: label, Reason: "label is not in the catalog"}
	}
	m, err := obj.LoadMesh()
	if err != nil {
		return nil, &render.RenderFailure{Label: label, Path: obj.MeshPath, Reason: err.Error()}
	}
	r.meshes[label] = m
	return m, nil
}
