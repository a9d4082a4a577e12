package catalog

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/poseflow/logging"
)

// GenericVersion is the dataset version of directory-named catalogs.
const GenericVersion = "generic"

var meshExtensions = map[string]bool{".obj": true, ".ply": true}

// NewDatasetFromDirectory builds a catalog where each immediate subdirectory of dir is one object
// labeled by the directory name and holding exactly one .obj or .ply mesh in meters. Every
// malformed subdirectory is reported in the returned error.
func NewDatasetFromDirectory(dir string, logger logging.Logger) (*Dataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &CatalogError{Path: dir, Reason: errors.Wrap(err, "cannot list catalog directory").Error()}
	}

	var (
		objects []RigidObject
		errs    error
	)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		label := entry.Name()
		objectDir := filepath.Join(dir, label)
		candidates, err := meshCandidates(objectDir)
		if err != nil {
			errs = multierr.Append(errs, &CatalogError{Path: objectDir, Label: label, Reason: err.Error()})
			continue
		}
		switch len(candidates) {
		case 0:
			errs = multierr.Append(errs, &CatalogError{Path: objectDir, Label: label, Reason: "couldn't find an obj or ply mesh"})
		case 1:
			objects = append(objects, RigidObject{Label: label, MeshPath: candidates[0], MeshUnits: Meter})
		default:
			errs = multierr.Append(errs, &CatalogError{
				Path:       objectDir,
				Label:      label,
				Candidates: candidates,
				Reason:     "there are multiple meshes in the directory",
			})
		}
	}
	if errs != nil {
		return nil, errs
	}
	if len(objects) == 0 {
		return nil, &CatalogError{Path: dir, Reason: "no object directories found"}
	}

	dataset, err := NewDataset(GenericVersion, objects)
	if err != nil {
		return nil, err
	}
	logger.Infow("built catalog", "mode", GenericVersion, "path", dir, "objects", dataset.Len())
	return dataset, nil
}

func meshCandidates(objectDir string) ([]string, error) {
	entries, err := os.ReadDir(objectDir)
	if err != nil {
		return nil, err
	}
	var candidates []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if meshExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			candidates = append(candidates, filepath.Join(objectDir, entry.Name()))
		}
	}
	sort.Strings(candidates)
	return candidates, nil
}
