package catalog

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"go.viam.com/poseflow/logging"
)

// Sort keys for ordering mesh files before assigning labels.
const (
	SortByPath     = "path"
	SortByBasename = "basename"
)

// LabelList maps the Nth mesh file (after sorting by SortKey) to the Nth label.
type LabelList struct {
	Version string   `yaml:"version" json:"version"`
	SortKey string   `yaml:"sort_key" json:"sort_key"`
	Labels  []string `yaml:"labels" json:"labels"`
}

// YCBVLabels is the canonical YCB-Video object list, in model file order.
var YCBVLabels = LabelList{
	Version: "ycbv-v1",
	SortKey: SortByPath,
	Labels: []string{
		"002_master_chef_can",
		"003_cracker_box",
		"004_sugar_box",
		"005_tomato_soup_can",
		"006_mustard_bottle",
		"007_tuna_fish_can",
		"008_pudding_box",
		"009_gelatin_box",
		"010_potted_meat_can",
		"011_banana",
		"019_pitcher_base",
		"021_bleach_cleanser",
		"024_bowl",
		"025_mug",
		"035_power_drill",
		"036_wood_block",
		"037_scissors",
		"040_large_marker",
		"051_large_clamp",
		"052_extra_large_clamp",
		"061_foam_brick",
	},
}

// Validate checks the version, sort key and label uniqueness.
func (l LabelList) Validate() error {
	if l.Version == "" {
		return errors.New("label list must have a version")
	}
	if l.SortKey != SortByPath && l.SortKey != SortByBasename {
		return errors.Errorf("label list %q has unknown sort_key %q, expected %q or %q", l.Version, l.SortKey, SortByPath, SortByBasename)
	}
	if len(l.Labels) == 0 {
		return errors.Errorf("label list %q has no labels", l.Version)
	}
	if dups := lo.FindDuplicates(l.Labels); len(dups) > 0 {
		return errors.Errorf("label list %q has duplicate labels %v", l.Version, dups)
	}
	return nil
}

// LoadLabelList reads a YAML label list.
func LoadLabelList(path string) (LabelList, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return LabelList{}, errors.Wrapf(err, "cannot read label list %q", path)
	}
	var list LabelList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return LabelList{}, errors.Wrapf(err, "cannot parse label list %q", path)
	}
	if list.SortKey == "" {
		list.SortKey = SortByPath
	}
	if err := list.Validate(); err != nil {
		return LabelList{}, errors.Wrapf(err, "invalid label list %q", path)
	}
	return list, nil
}

// pathLess orders paths component by component, so "a/x" sorts before "a-b/x".
func pathLess(a, b string) bool {
	return slices.Compare(strings.Split(filepath.ToSlash(a), "/"), strings.Split(filepath.ToSlash(b), "/")) < 0
}

// NewYCBDataset globs every .ply file under dir recursively, sorts them by the list's sort key
// and assigns the Nth file the Nth label. Meshes are in millimeters. The number of meshes must
// equal the number of labels.
func NewYCBDataset(dir string, labels LabelList, logger logging.Logger) (*Dataset, error) {
	if err := labels.Validate(); err != nil {
		return nil, &CatalogError{Path: dir, Reason: err.Error()}
	}

	var meshes []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".ply" {
			meshes = append(meshes, path)
		}
		return nil
	})
	if err != nil {
		return nil, &CatalogError{Path: dir, Reason: errors.Wrap(err, "cannot walk catalog directory").Error()}
	}
	if len(meshes) == 0 {
		return nil, &CatalogError{Path: dir, Reason: "no ply meshes found"}
	}

	switch labels.SortKey {
	case SortByBasename:
		sort.SliceStable(meshes, func(i, j int) bool {
			bi, bj := filepath.Base(meshes[i]), filepath.Base(meshes[j])
			if bi == bj {
				return meshes[i] < meshes[j]
			}
			return bi < bj
		})
	default:
		sort.SliceStable(meshes, func(i, j int) bool { return pathLess(meshes[i], meshes[j]) })
	}

	if len(meshes) != len(labels.Labels) {
		return nil, &CatalogError{
			Path:       dir,
			Candidates: meshes,
			Reason: errors.Errorf("found %d ply meshes but label list %q has %d labels",
				len(meshes), labels.Version, len(labels.Labels)).Error(),
		}
	}

	objects := make([]RigidObject, 0, len(meshes))
	for i, mesh := range meshes {
		objects = append(objects, RigidObject{Label: labels.Labels[i], MeshPath: mesh, MeshUnits: Millimeter})
	}
	dataset, err := NewDataset(labels.Version, objects)
	if err != nil {
		return nil, err
	}
	logger.Infow("built catalog", "mode", "ycb", "path", dir, "objects", dataset.Len(), "label_list", labels.Version)
	return dataset, nil
}
