// Package centroid implements a lightweight pose estimation backend. Translation comes from
// back-projecting the detection center at a depth inferred from the object size, optionally
// refined against observed depth; rotation comes from the render cache view whose mean
// appearance best matches the detection.
package centroid

import (
	"context"
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/poseflow/catalog"
	"go.viam.com/poseflow/detection"
	"go.viam.com/poseflow/estimator"
	"go.viam.com/poseflow/logging"
	"go.viam.com/poseflow/ml"
	"go.viam.com/poseflow/observation"
	"go.viam.com/poseflow/rimage/transform"
	"go.viam.com/poseflow/scene"
	"go.viam.com/poseflow/spatialmath"
)

// Name is the registered backend name.
const Name = "centroid"

func init() {
	estimator.RegisterBackend(Name, New)
}

// objectModel is the geometry the backend needs per catalog object.
type objectModel struct {
	diameter float64
	corners  []r3.Vector
}

// Backend is the centroid pose estimator.
type Backend struct {
	models map[string]objectModel
	device ml.Device
	logger logging.Logger
}

// New loads every catalog mesh once and keeps its diameter and bounding box corners.
func New(ctx context.Context, cfg estimator.BackendConfig, logger logging.Logger) (estimator.PoseEstimator, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("centroid backend requires a catalog")
	}
	models := make(map[string]objectModel, cfg.Catalog.Len())
	for _, obj := range cfg.Catalog.Objects() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		model, err := loadModel(obj)
		if err != nil {
			return nil, err
		}
		models[obj.Label] = model
	}
	logger.Infow("loaded object models", "objects", len(models), "preset", cfg.Preset.Name)
	return &Backend{models: models, device: cfg.Device, logger: logger}, nil
}

func loadModel(obj catalog.RigidObject) (objectModel, error) {
	mesh, err := obj.LoadMesh()
	if err != nil {
		return objectModel{}, err
	}
	lo, hi := mesh.Bounds()
	diameter := mesh.Diameter()
	if diameter <= 0 {
		return objectModel{}, errors.Errorf("mesh for %q is degenerate", obj.Label)
	}
	var corners []r3.Vector
	for _, x := range []float64{lo.X, hi.X} {
		for _, y := range []float64{lo.Y, hi.Y} {
			for _, z := range []float64{lo.Z, hi.Z} {
				corners = append(corners, r3.Vector{X: x, Y: y, Z: z})
			}
		}
	}
	return objectModel{diameter: diameter, corners: corners}, nil
}

// Estimate implements estimator.PoseEstimator.
func (b *Backend) Estimate(
	ctx context.Context,
	obs *observation.ObservationTensor,
	dets *detection.Detections,
	req estimator.Request,
) (*estimator.PoseEstimates, error) {
	ctx, span := trace.StartSpan(ctx, "centroid::Estimate")
	defer span.End()

	intrinsics, err := transform.NewPinholeCameraIntrinsicsFromMatrix(obs.K, obs.Resolution.Width, obs.Resolution.Height)
	if err != nil {
		return nil, err
	}
	useDepth := req.Preset.DepthRefiner == estimator.DepthRefinerICP && obs.HasDepth()

	out := &estimator.PoseEstimates{Device: b.device}
	for _, det := range dets.Items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		model, ok := b.models[det.Label]
		if !ok {
			return nil, errors.Errorf("no object model for %q", det.Label)
		}

		hyps, err := b.rankViews(obs, det, req)
		if err != nil {
			return nil, err
		}
		best := hyps[0]
		rot := viewpointRotation(fibonacciDirection(best.view, best.views))

		z, iterations := b.estimateDepth(intrinsics, obs, det, model, rot, req.Preset.InferenceParameters.NRefinerIterations, useDepth)
		cx, cy := det.BBox.Center()
		x, y, _ := intrinsics.PixelToPoint(cx, cy, z)
		pose, err := spatialmath.NewTransformFromRotationTranslation(rot, r3.Vector{X: x, Y: y, Z: z})
		if err != nil {
			return nil, err
		}

		out.Labels = append(out.Labels, det.Label)
		out.Poses = append(out.Poses, pose)
		out.Infos = append(out.Infos, estimator.Info{
			HypothesisID:      best.id,
			CoarseView:        best.view,
			RefinerIterations: iterations,
			Score:             best.score,
		})
	}
	return out, nil
}

type hypothesis struct {
	id       int
	view     int
	views    int
	distance float64
	score    float64
}

// rankViews keeps the n_pose_hypotheses views whose mean appearance is closest to the mean color
// inside the detection, best first. Scores are a softmax over negative distances.
func (b *Backend) rankViews(obs *observation.ObservationTensor, det detection.Detection, req estimator.Request) ([]hypothesis, error) {
	renders, ok := req.Renders.Get(det.Label)
	if !ok {
		return nil, errors.Errorf("no renders for %q", det.Label)
	}
	target, err := meanColorInBox(obs, det.BBox)
	if err != nil {
		return nil, err
	}
	data, ok := renders.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("renders for %q are not float32", det.Label)
	}
	shape := renders.Shape()
	views, channels, plane := shape[0], shape[1], shape[2]*shape[3]

	all := make([]hypothesis, views)
	for v := 0; v < views; v++ {
		var dist float64
		for c := 0; c < 3; c++ {
			offset := (v*channels + c) * plane
			var sum float64
			for _, px := range data[offset : offset+plane] {
				sum += float64(px)
			}
			d := sum/float64(plane) - target[c]
			dist += d * d
		}
		all[v] = hypothesis{view: v, views: views, distance: math.Sqrt(dist)}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].distance < all[j].distance })

	n := req.Preset.InferenceParameters.NPoseHypotheses
	if n < 1 {
		n = 1
	}
	if n > len(all) {
		n = len(all)
	}
	hyps := all[:n]
	logits := make([]float64, n)
	for i := range hyps {
		hyps[i].id = i
		logits[i] = -hyps[i].distance
	}
	for i, s := range ml.Softmax(logits) {
		hyps[i].score = s
	}
	return hyps, nil
}

// estimateDepth starts from the depth at which the object diameter spans the detection and
// refines it. With observed depth the median depth inside the box is used; otherwise the depth
// is rescaled so the projected bounding box matches the detection size.
func (b *Backend) estimateDepth(
	intrinsics *transform.PinholeCameraIntrinsics,
	obs *observation.ObservationTensor,
	det detection.Detection,
	model objectModel,
	rot mat.Matrix,
	iterations int,
	useDepth bool,
) (float64, int) {
	size := math.Max(math.Abs(det.BBox.Width()), math.Abs(det.BBox.Height()))
	if size < 1 {
		size = 1
	}
	focal := (intrinsics.Fx + intrinsics.Fy) / 2
	z := focal * model.diameter / size

	if useDepth {
		if median, ok := medianDepthInBox(obs, det.BBox); ok {
			// the visible surface sits in front of the center by about half a bounding box edge
			return median + model.diameter/(2*math.Sqrt(3)), 1
		}
		b.logger.Debugw("no valid depth inside detection, using size prior", "label", det.Label)
	}

	cx, cy := det.BBox.Center()
	done := 0
	for i := 0; i < iterations; i++ {
		x, y, _ := intrinsics.PixelToPoint(cx, cy, z)
		projected, ok := projectedSize(intrinsics, model.corners, rot, r3.Vector{X: x, Y: y, Z: z})
		if !ok || projected <= 0 {
			break
		}
		next := z * projected / size
		done++
		if math.Abs(next-z) < 1e-9 {
			z = next
			break
		}
		z = next
	}
	return z, done
}

func projectedSize(
	intrinsics *transform.PinholeCameraIntrinsics,
	corners []r3.Vector,
	rot mat.Matrix,
	t r3.Vector,
) (float64, bool) {
	minU, minV := math.Inf(1), math.Inf(1)
	maxU, maxV := math.Inf(-1), math.Inf(-1)
	for _, p := range corners {
		q := r3.Vector{
			X: rot.At(0, 0)*p.X + rot.At(0, 1)*p.Y + rot.At(0, 2)*p.Z + t.X,
			Y: rot.At(1, 0)*p.X + rot.At(1, 1)*p.Y + rot.At(1, 2)*p.Z + t.Y,
			Z: rot.At(2, 0)*p.X + rot.At(2, 1)*p.Y + rot.At(2, 2)*p.Z + t.Z,
		}
		u, v, ok := intrinsics.ProjectPoint(q)
		if !ok {
			return 0, false
		}
		minU, maxU = math.Min(minU, u), math.Max(maxU, u)
		minV, maxV = math.Min(minV, v), math.Max(maxV, v)
	}
	return math.Max(maxU-minU, maxV-minV), true
}

func clampBox(res scene.Resolution, box scene.BoundingBox) (int, int, int, int) {
	clamp := func(v float64, hi int) int {
		return int(math.Max(0, math.Min(float64(hi), math.Round(v))))
	}
	return clamp(box[0], res.Width), clamp(box[1], res.Height), clamp(box[2], res.Width), clamp(box[3], res.Height)
}

func meanColorInBox(obs *observation.ObservationTensor, box scene.BoundingBox) ([3]float64, error) {
	var mean [3]float64
	data, ok := obs.RGB.Data().([]float32)
	if !ok {
		return mean, errors.New("observation rgb is not float32")
	}
	x0, y0, x1, y1 := clampBox(obs.Resolution, box)
	if x1 <= x0 || y1 <= y0 {
		// boxes off the image or degenerate fall back to the whole frame
		x0, y0, x1, y1 = 0, 0, obs.Resolution.Width, obs.Resolution.Height
	}
	w := obs.Resolution.Width
	plane := w * obs.Resolution.Height
	count := float64((x1 - x0) * (y1 - y0))
	for c := 0; c < 3; c++ {
		var sum float64
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				sum += float64(data[c*plane+y*w+x])
			}
		}
		mean[c] = sum / count
	}
	return mean, nil
}

func medianDepthInBox(obs *observation.ObservationTensor, box scene.BoundingBox) (float64, bool) {
	x0, y0, x1, y1 := clampBox(obs.Resolution, box)
	var depths stats.Float64Data
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if d := obs.DepthAt(x, y); d > 0 {
				depths = append(depths, d)
			}
		}
	}
	if len(depths) == 0 {
		return 0, false
	}
	median, err := depths.Median()
	if err != nil {
		return 0, false
	}
	return median, true
}
