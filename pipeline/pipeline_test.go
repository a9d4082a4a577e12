package pipeline

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/poseflow/catalog"
	"go.viam.com/poseflow/config"
	"go.viam.com/poseflow/estimator"
	"go.viam.com/poseflow/logging"
	"go.viam.com/poseflow/observation"
	"go.viam.com/poseflow/persistence"
	"go.viam.com/poseflow/scene"
	"go.viam.com/poseflow/spatialmath"
	"go.viam.com/poseflow/testutils"
	"go.viam.com/poseflow/visualization"
)

const detectionInputs = `[{"label": "obj_000001", "bbox_modal": [100, 120, 300, 340]}]`

// setup writes a generic catalog, a render cache and a 640x480 reference camera under a temp
// directory and returns the config reading them.
func setup(t *testing.T, preset string, labels ...string) *config.Config {
	t.Helper()
	root := t.TempDir()
	testutils.WriteGenericCatalog(t, filepath.Join(root, "models"), labels...)
	for _, label := range labels {
		testutils.WriteRenderViews(t, filepath.Join(root, "renders"), label, 2, 8, 8)
	}
	testutils.WriteFile(t, filepath.Join(root, "camera.json"), []byte(testutils.CameraJSON(640, 480, 640)))

	cfg, err := config.FromReader(filepath.Join(root, "poseflow.json"), strings.NewReader(fmt.Sprintf(`{
		"model": %q,
		"catalog": {"dir": "models"},
		"renders_dir": "renders",
		"camera": "camera.json",
		"camera_file": %q
	}`, preset, testutils.CameraFile)), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return cfg
}

func newPipeline(t *testing.T, preset string, labels ...string) *Pipeline {
	t.Helper()
	p, err := New(context.Background(), setup(t, preset, labels...), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return p
}

func TestEstimateExample(t *testing.T) {
	p := newPipeline(t, estimator.DefaultPresetName, "obj_000001", "obj_000002")
	exampleDir := t.TempDir()
	testutils.WriteExample(t, exampleDir, testutils.Example{Width: 640, Height: 480, Depth: 5000, Inputs: detectionInputs})

	estimates, err := p.EstimateExample(context.Background(), exampleDir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, estimates.Len(), test.ShouldEqual, 1)
	test.That(t, estimates.Labels, test.ShouldResemble, []string{"obj_000001"})
	pose := estimates.Poses[0]
	test.That(t, pose[3], test.ShouldResemble, [4]float64{0, 0, 0, 1})
	test.That(t, pose.CheckRigid(1e-6), test.ShouldBeNil)
	test.That(t, pose.Translation().Z, test.ShouldBeGreaterThan, 0.5)

	saved, err := persistence.LoadObjectData(filepath.Join(exampleDir, persistence.OutputsDir))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, saved, test.ShouldHaveLength, 1)
	test.That(t, saved[0].Label, test.ShouldEqual, "obj_000001")
	test.That(t, saved[0].TWO.AlmostEqual(pose, 1e-6), test.ShouldBeTrue)

	test.That(t, p.Visualize(context.Background(), exampleDir), test.ShouldBeNil)
	test.That(t, testutils.ListFiles(t, filepath.Join(exampleDir, visualization.Dir)), test.ShouldHaveLength, 4)
}

func TestEstimateExampleRGB(t *testing.T) {
	p := newPipeline(t, "megapose-1.0-RGB", "obj_000001")
	exampleDir := t.TempDir()
	testutils.WriteExample(t, exampleDir, testutils.Example{Width: 640, Height: 480, Inputs: detectionInputs})

	estimates, err := p.EstimateExample(context.Background(), exampleDir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, estimates.Labels, test.ShouldResemble, []string{"obj_000001"})
	test.That(t, estimates.Poses[0][3], test.ShouldResemble, [4]float64{0, 0, 0, 1})
}

func TestEstimateExampleErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing depth", func(t *testing.T) {
		p := newPipeline(t, estimator.DefaultPresetName, "obj_000001")
		exampleDir := t.TempDir()
		testutils.WriteExample(t, exampleDir, testutils.Example{Width: 640, Height: 480, Inputs: detectionInputs})
		_, err := p.EstimateExample(ctx, exampleDir)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, testutils.ListFiles(t, filepath.Join(exampleDir, persistence.OutputsDir)), test.ShouldBeEmpty)
	})

	p := newPipeline(t, "megapose-1.0-RGB", "obj_000001")

	t.Run("image does not match its camera", func(t *testing.T) {
		exampleDir := t.TempDir()
		testutils.WriteExample(t, exampleDir, testutils.Example{
			Width: 320, Height: 240, CameraWidth: 640, CameraHeight: 480, Inputs: detectionInputs,
		})
		_, err := p.EstimateExample(ctx, exampleDir)
		var mismatch *observation.ResolutionMismatchError
		test.That(t, errors.As(err, &mismatch), test.ShouldBeTrue)
		test.That(t, mismatch.Actual, test.ShouldResemble, scene.Resolution{Height: 240, Width: 320})
		test.That(t, testutils.ListFiles(t, filepath.Join(exampleDir, persistence.OutputsDir)), test.ShouldBeEmpty)
	})

	t.Run("camera does not match the reference camera", func(t *testing.T) {
		exampleDir := t.TempDir()
		testutils.WriteExample(t, exampleDir, testutils.Example{Width: 320, Height: 240, Inputs: detectionInputs})
		_, err := p.EstimateExample(ctx, exampleDir)
		var mismatch *observation.ResolutionMismatchError
		test.That(t, errors.As(err, &mismatch), test.ShouldBeTrue)
		test.That(t, mismatch.Expected, test.ShouldResemble, scene.Resolution{Height: 480, Width: 640})
	})

	t.Run("unknown label", func(t *testing.T) {
		exampleDir := t.TempDir()
		testutils.WriteExample(t, exampleDir, testutils.Example{
			Width: 640, Height: 480, Inputs: `[{"label": "obj_000009", "bbox_modal": [1, 2, 3, 4]}]`,
		})
		_, err := p.EstimateExample(ctx, exampleDir)
		test.That(t, err.Error(), test.ShouldContainSubstring, `"obj_000009"`)
	})

	t.Run("no inputs", func(t *testing.T) {
		exampleDir := t.TempDir()
		testutils.WriteExample(t, exampleDir, testutils.Example{Width: 640, Height: 480})
		_, err := p.EstimateExample(ctx, exampleDir)
		var perr *persistence.PersistenceError
		test.That(t, errors.As(err, &perr), test.ShouldBeTrue)
	})
}

func TestEstimateExampleNoDetections(t *testing.T) {
	p := newPipeline(t, "megapose-1.0-RGB", "obj_000001")
	exampleDir := t.TempDir()
	testutils.WriteExample(t, exampleDir, testutils.Example{Width: 640, Height: 480, Inputs: "[]"})

	estimates, err := p.EstimateExample(context.Background(), exampleDir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, estimates.Len(), test.ShouldEqual, 0)

	saved, err := persistence.LoadObjectData(filepath.Join(exampleDir, persistence.OutputsDir))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, saved, test.ShouldBeEmpty)
}

func TestInference(t *testing.T) {
	p := newPipeline(t, "megapose-1.0-RGB", "obj_000001")
	gray := color.NRGBA{R: 40, G: 40, B: 40, A: 255}

	estimates, err := p.Inference(context.Background(), testutils.SolidImage(640, 480, gray), nil,
		"obj_000001", scene.BoundingBox{100, 120, 300, 340})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, estimates.Labels, test.ShouldResemble, []string{"obj_000001"})
	test.That(t, estimates.Infos[0].CoarseView, test.ShouldEqual, 0)

	_, err = p.Inference(context.Background(), testutils.SolidImage(320, 240, gray), nil,
		"obj_000001", scene.BoundingBox{100, 120, 300, 340})
	var mismatch *observation.ResolutionMismatchError
	test.That(t, errors.As(err, &mismatch), test.ShouldBeTrue)
}

func TestSaveLoadScenario(t *testing.T) {
	dir := t.TempDir()
	two, err := spatialmath.NewTransformFromSlice([]float64{
		0, -1, 0, 0.1,
		1, 0, 0, -0.2,
		0, 0, 1, 0.75,
		0, 0, 0, 1,
	})
	test.That(t, err, test.ShouldBeNil)
	estimates := &estimator.PoseEstimates{Labels: []string{"obj_000002"}, Poses: []spatialmath.Transform{two}}
	test.That(t, persistence.Save(dir, estimates), test.ShouldBeNil)

	loaded, err := persistence.LoadObjectData(dir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded, test.ShouldHaveLength, 1)
	test.That(t, loaded[0].Label, test.ShouldEqual, "obj_000002")
	test.That(t, loaded[0].TWO.AlmostEqual(two, 1e-6), test.ShouldBeTrue)
}

func TestNew(t *testing.T) {
	logger := logging.NewTestLogger(t)
	p := newPipeline(t, "megapose-1.0-RGB", "obj_000001", "obj_000002")
	pc := p.Context()
	test.That(t, pc.Catalog().Labels(), test.ShouldResemble, []string{"obj_000001", "obj_000002"})
	test.That(t, pc.Renders().Views("obj_000002"), test.ShouldEqual, 2)
	test.That(t, pc.Preset().Name, test.ShouldEqual, "megapose-1.0-RGB")
	test.That(t, pc.Device().IsHost(), test.ShouldBeTrue)

	camera := pc.Camera()
	test.That(t, camera.Resolution, test.ShouldResemble, scene.Resolution{Height: 480, Width: 640})
	camera.K.Set(0, 0, 1)
	test.That(t, pc.Camera().K.At(0, 0), test.ShouldEqual, 640.0)

	cfg := setup(t, "megapose-2.0", "obj_000001")
	_, err := New(context.Background(), cfg, logger)
	test.That(t, err.Error(), test.ShouldContainSubstring, `unknown model preset "megapose-2.0"`)

	cfg = setup(t, "megapose-1.0-RGB", "obj_000001")
	test.That(t, os.RemoveAll(cfg.Catalog.Dir), test.ShouldBeNil)
	_, err = New(context.Background(), cfg, logger)
	test.That(t, err, test.ShouldNotBeNil)

	cfg = setup(t, "megapose-1.0-RGB", "obj_000001")
	cfg.Backend = "missing"
	_, err = New(context.Background(), cfg, logger)
	test.That(t, err.Error(), test.ShouldContainSubstring, `unknown estimator backend "missing"`)
}

func TestNewYCB(t *testing.T) {
	logger := logging.NewTestLogger(t)
	cfg := setup(t, "megapose-1.0-RGB", "obj_000001")
	root := filepath.Dir(cfg.Catalog.Dir)
	ycbDir := filepath.Join(root, "ycb")
	testutils.WriteYCBCatalog(t, ycbDir, 2)
	labelList := filepath.Join(root, "labels.yaml")
	testutils.WriteFile(t, labelList, []byte("version: test-v1\nlabels: [obj_000001, obj_000002]\n"))

	cfg.Catalog = config.CatalogConfig{Mode: config.CatalogModeYCB, Dir: ycbDir, LabelList: labelList}
	p, err := New(context.Background(), cfg, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Context().Catalog().Version(), test.ShouldEqual, "test-v1")
	obj, ok := p.Context().Catalog().Get("obj_000002")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, obj.MeshUnits, test.ShouldEqual, catalog.Millimeter)
	test.That(t, filepath.Base(obj.MeshPath), test.ShouldEqual, "obj_000002.ply")

	// the built in list has 21 labels
	cfg.Catalog.LabelList = ""
	_, err = New(context.Background(), cfg, logger)
	var cerr *catalog.CatalogError
	test.That(t, errors.As(err, &cerr), test.ShouldBeTrue)
}
