// Package persistence reads and writes object_data.json sidecars.
package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"go.viam.com/poseflow/scene"
	"go.viam.com/poseflow/spatialmath"
	"go.viam.com/poseflow/utils"
)

// FileName is the name of the sidecar inside an inputs or outputs directory.
const FileName = "object_data.json"

// OutputsDir is the directory of an example holding estimated poses.
const OutputsDir = "outputs"

// PersistenceError is returned when a sidecar is missing, malformed or cannot be written.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("object data %q: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Estimates is a set of pose estimates that can be copied to host memory as parallel label and
// pose lists.
type Estimates interface {
	ToHost() ([]string, []spatialmath.Transform, error)
}

// Save copies estimates to the host, pairs labels with poses and writes them to
// dir/object_data.json, creating dir if needed.
func Save(dir string, estimates Estimates) error {
	labels, poses, err := estimates.ToHost()
	if err != nil {
		return &PersistenceError{Path: filepath.Join(dir, FileName), Err: err}
	}
	if len(labels) != len(poses) {
		return &PersistenceError{
			Path: filepath.Join(dir, FileName),
			Err:  errors.Errorf("%d labels but %d poses", len(labels), len(poses)),
		}
	}
	objects := make([]scene.ObjectData, 0, len(labels))
	for i, label := range labels {
		pose := poses[i]
		objects = append(objects, scene.ObjectData{Label: label, TWO: &pose})
	}
	return SaveObjectData(dir, objects)
}

// SaveObjectData writes objects as a JSON array to dir/object_data.json, creating dir if needed.
func SaveObjectData(dir string, objects []scene.ObjectData) error {
	path := filepath.Join(dir, FileName)
	if objects == nil {
		objects = []scene.ObjectData{}
	}
	data, err := json.MarshalIndent(objects, "", "  ")
	if err != nil {
		return &PersistenceError{Path: path, Err: err}
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return &PersistenceError{Path: path, Err: err}
	}
	if err := utils.WriteFileAtomic(path, data); err != nil {
		return &PersistenceError{Path: path, Err: err}
	}
	return nil
}

// Load parses a JSON array of object data.
func Load(path string) ([]scene.ObjectData, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &PersistenceError{Path: path, Err: err}
	}
	var objects []scene.ObjectData
	if err := json.Unmarshal(data, &objects); err != nil {
		return nil, &PersistenceError{Path: path, Err: errors.Wrap(err, "malformed json")}
	}
	for i, o := range objects {
		if err := o.Validate(); err != nil {
			return nil, &PersistenceError{Path: path, Err: errors.Wrapf(err, "entry %d", i)}
		}
	}
	return objects, nil
}

// LoadObjectData reads dir/object_data.json.
func LoadObjectData(dir string) ([]scene.ObjectData, error) {
	return Load(filepath.Join(dir, FileName))
}
