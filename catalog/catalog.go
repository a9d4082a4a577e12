// Package catalog builds the immutable set of rigid objects known to the estimator from a
// directory of CAD meshes.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/poseflow/spatialmath"
)

// MeshUnits is the length unit a mesh file is authored in.
type MeshUnits string

const (
	// Millimeter meshes are scaled by 1e-3 when loaded.
	Millimeter MeshUnits = "mm"
	// Meter meshes are used as is.
	Meter MeshUnits = "m"
)

// Scale returns the factor that converts the unit to meters.
func (u MeshUnits) Scale() float64 {
	if u == Millimeter {
		return 1e-3
	}
	return 1
}

// RigidObject is a catalog entry.
type RigidObject struct {
	Label     string    `json:"label"`
	MeshPath  string    `json:"mesh_path"`
	MeshUnits MeshUnits `json:"mesh_units"`
}

// LoadMesh reads the mesh file and returns it in meters.
func (o RigidObject) LoadMesh() (*spatialmath.Mesh, error) {
	mesh, err := spatialmath.LoadMesh(o.MeshPath)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load mesh for %q", o.Label)
	}
	if scale := o.MeshUnits.Scale(); scale != 1 {
		mesh = mesh.Scale(scale)
	}
	return mesh, nil
}

// CatalogError describes a malformed or ambiguous CAD directory.
type CatalogError struct {
	Path       string
	Label      string
	Candidates []string
	Reason     string
}

func (e *CatalogError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "catalog error at %q", e.Path)
	if e.Label != "" {
		fmt.Fprintf(&b, " for label %q", e.Label)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	if len(e.Candidates) > 0 {
		fmt.Fprintf(&b, " (candidates: %s)", strings.Join(e.Candidates, ", "))
	}
	return b.String()
}

// Dataset is an immutable collection of rigid objects keyed by unique label.
type Dataset struct {
	version string
	objects map[string]RigidObject
	labels  []string
}

// NewDataset builds a dataset, rejecting empty and duplicate labels.
func NewDataset(version string, objects []RigidObject) (*Dataset, error) {
	byLabel := make(map[string]RigidObject, len(objects))
	for _, o := range objects {
		if o.Label == "" {
			return nil, &CatalogError{Path: o.MeshPath, Reason: "empty label"}
		}
		if prev, ok := byLabel[o.Label]; ok {
			return nil, &CatalogError{
				Path:       o.MeshPath,
				Label:      o.Label,
				Candidates: []string{prev.MeshPath, o.MeshPath},
				Reason:     "duplicate label",
			}
		}
		byLabel[o.Label] = o
	}
	labels := lo.Keys(byLabel)
	sort.Strings(labels)
	return &Dataset{version: version, objects: byLabel, labels: labels}, nil
}

// Get returns the object with the given label.
func (d *Dataset) Get(label string) (RigidObject, bool) {
	o, ok := d.objects[label]
	return o, ok
}

// Labels returns the sorted labels.
func (d *Dataset) Labels() []string {
	return append([]string(nil), d.labels...)
}

// Len returns the number of objects.
func (d *Dataset) Len() int {
	return len(d.labels)
}

// Objects returns a copy of the objects sorted by label.
func (d *Dataset) Objects() []RigidObject {
	return lo.Map(d.labels, func(label string, _ int) RigidObject {
		return d.objects[label]
	})
}

// Version identifies how labels were assigned, e.g. "generic" or a label list version.
func (d *Dataset) Version() string {
	return d.version
}

// Has reports whether every label is in the catalog and returns the first unknown one otherwise.
func (d *Dataset) Has(labels ...string) (string, bool) {
	for _, l := range labels {
		if _, ok := d.objects[l]; !ok {
			return l, false
		}
	}
	return "", true
}
