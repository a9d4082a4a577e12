package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/test"

	"go.viam.com/poseflow/logging"
	"go.viam.com/poseflow/testutils"
)

func TestGenericDataset(t *testing.T) {
	logger := logging.NewTestLogger(t)
	root := t.TempDir()
	testutils.WriteGenericCatalog(t, root, "mug", "bowl", "drill")
	testutils.WriteFile(t, filepath.Join(root, "README.txt"), []byte("not an object"))

	dataset, err := NewDatasetFromDirectory(root, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dataset.Len(), test.ShouldEqual, 3)
	test.That(t, dataset.Labels(), test.ShouldResemble, []string{"bowl", "drill", "mug"})
	test.That(t, dataset.Version(), test.ShouldEqual, GenericVersion)

	for _, o := range dataset.Objects() {
		test.That(t, o.MeshUnits, test.ShouldEqual, Meter)
		_, err := os.Stat(o.MeshPath)
		test.That(t, err, test.ShouldBeNil)
	}

	mug, ok := dataset.Get("mug")
	test.That(t, ok, test.ShouldBeTrue)
	mesh, err := mug.LoadMesh()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mesh.Diameter(), test.ShouldAlmostEqual, 0.1*1.7320508075688772, 1e-6)

	_, ok = dataset.Get("banana")
	test.That(t, ok, test.ShouldBeFalse)
	missing, ok := dataset.Has("mug", "banana")
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, missing, test.ShouldEqual, "banana")
}

func TestGenericDatasetErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)

	t.Run("empty root", func(t *testing.T) {
		_, err := NewDatasetFromDirectory(t.TempDir(), logger)
		var catErr *CatalogError
		test.That(t, errors.As(err, &catErr), test.ShouldBeTrue)
	})

	t.Run("missing root", func(t *testing.T) {
		_, err := NewDatasetFromDirectory(filepath.Join(t.TempDir(), "nope"), logger)
		var catErr *CatalogError
		test.That(t, errors.As(err, &catErr), test.ShouldBeTrue)
	})

	t.Run("every bad directory reported", func(t *testing.T) {
		root := t.TempDir()
		testutils.WriteGenericCatalog(t, root, "good")
		testutils.WriteFile(t, filepath.Join(root, "empty", "notes.txt"), []byte("x"))
		testutils.WriteFile(t, filepath.Join(root, "double", "a.obj"), []byte(testutils.CubeOBJ(1)))
		testutils.WriteFile(t, filepath.Join(root, "double", "b.ply"), []byte(testutils.CubePLY(1)))

		_, err := NewDatasetFromDirectory(root, logger)
		test.That(t, err, test.ShouldNotBeNil)
		errs := multierr.Errors(err)
		test.That(t, errs, test.ShouldHaveLength, 2)

		var catErr *CatalogError
		test.That(t, errors.As(errs[0], &catErr), test.ShouldBeTrue)
		test.That(t, catErr.Label, test.ShouldEqual, "double")
		test.That(t, catErr.Candidates, test.ShouldHaveLength, 2)
		test.That(t, errs[1].Error(), test.ShouldContainSubstring, `label "empty"`)
	})
}

func TestYCBDataset(t *testing.T) {
	logger := logging.NewTestLogger(t)
	root := t.TempDir()
	testutils.WriteYCBCatalog(t, root, len(YCBVLabels.Labels))

	dataset, err := NewYCBDataset(root, YCBVLabels, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dataset.Len(), test.ShouldEqual, 21)
	test.That(t, dataset.Version(), test.ShouldEqual, "ycbv-v1")

	first, ok := dataset.Get("002_master_chef_can")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, filepath.Base(first.MeshPath), test.ShouldEqual, "obj_000001.ply")
	test.That(t, first.MeshUnits, test.ShouldEqual, Millimeter)

	last, ok := dataset.Get("061_foam_brick")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, filepath.Base(last.MeshPath), test.ShouldEqual, "obj_000021.ply")

	mesh, err := last.LoadMesh()
	test.That(t, err, test.ShouldBeNil)
	lo, hi := mesh.Bounds()
	test.That(t, hi.X-lo.X, test.ShouldAlmostEqual, 0.1, 1e-9)
}

func TestYCBDatasetErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	small := LabelList{Version: "test-v1", SortKey: SortByPath, Labels: []string{"a", "b"}}

	root := t.TempDir()
	testutils.WriteYCBCatalog(t, root, 3)
	_, err := NewYCBDataset(root, small, logger)
	var catErr *CatalogError
	test.That(t, errors.As(err, &catErr), test.ShouldBeTrue)
	test.That(t, catErr.Error(), test.ShouldContainSubstring, "found 3 ply meshes")

	root = t.TempDir()
	testutils.WriteYCBCatalog(t, root, 1)
	_, err = NewYCBDataset(root, small, logger)
	test.That(t, errors.As(err, &catErr), test.ShouldBeTrue)

	_, err = NewYCBDataset(t.TempDir(), small, logger)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no ply meshes found")

	_, err = NewYCBDataset(root, LabelList{Version: "x", SortKey: "mtime", Labels: []string{"a"}}, logger)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown sort_key")
}

func TestYCBDatasetPathOrder(t *testing.T) {
	logger := logging.NewTestLogger(t)
	root := t.TempDir()
	for _, name := range []string{"a-b/x.ply", "a/x.ply", "a/b/x.ply"} {
		testutils.WriteFile(t, filepath.Join(root, name), []byte(testutils.CubePLY(100)))
	}
	labels := LabelList{Version: "order-v1", SortKey: SortByPath, Labels: []string{"first", "second", "third"}}
	dataset, err := NewYCBDataset(root, labels, logger)
	test.That(t, err, test.ShouldBeNil)

	first, ok := dataset.Get("first")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, first.MeshPath, test.ShouldEqual, filepath.Join(root, "a", "b", "x.ply"))
	second, ok := dataset.Get("second")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, second.MeshPath, test.ShouldEqual, filepath.Join(root, "a", "x.ply"))
	third, ok := dataset.Get("third")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, third.MeshPath, test.ShouldEqual, filepath.Join(root, "a-b", "x.ply"))

	test.That(t, pathLess("a/x", "a-b/x"), test.ShouldBeTrue)
	test.That(t, pathLess("a-b/x", "a/x"), test.ShouldBeFalse)
}

func TestLoadLabelList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.yaml")
	testutils.WriteFile(t, path, []byte("version: custom-v2\nlabels:\n  - left\n  - right\n"))
	list, err := LoadLabelList(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, list.SortKey, test.ShouldEqual, SortByPath)
	test.That(t, list.Labels, test.ShouldResemble, []string{"left", "right"})

	testutils.WriteFile(t, path, []byte("version: dup\nlabels: [a, a]\n"))
	_, err = LoadLabelList(path)
	test.That(t, err.Error(), test.ShouldContainSubstring, "duplicate labels")
}

func TestNewDatasetDuplicates(t *testing.T) {
	_, err := NewDataset("v", []RigidObject{{Label: "a", MeshPath: "x.ply"}, {Label: "a", MeshPath: "y.ply"}})
	var catErr *CatalogError
	test.That(t, errors.As(err, &catErr), test.ShouldBeTrue)
	test.That(t, catErr.Reason, test.ShouldEqual, "duplicate label")
}
