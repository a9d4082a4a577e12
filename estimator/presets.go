package estimator

import (
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// DefaultPresetName is used when no model is configured.
const DefaultPresetName = "megapose-1.0-RGB-multi-hypothesis-icp"

// DepthRefinerICP refines translation against observed depth.
const DepthRefinerICP = "ICP"

// InferenceParameters are fixed per preset.
type InferenceParameters struct {
	NRefinerIterations int `yaml:"n_refiner_iterations" json:"n_refiner_iterations"`
	NPoseHypotheses    int `yaml:"n_pose_hypotheses" json:"n_pose_hypotheses"`
}

// Preset is a named model configuration.
type Preset struct {
	Name                string              `yaml:"name" json:"name"`
	CoarseRunID         string              `yaml:"coarse_run_id" json:"coarse_run_id"`
	RefinerRunID        string              `yaml:"refiner_run_id" json:"refiner_run_id"`
	RequiresDepth       bool                `yaml:"requires_depth" json:"requires_depth"`
	DepthRefiner        string              `yaml:"depth_refiner,omitempty" json:"depth_refiner,omitempty"`
	InferenceParameters InferenceParameters `yaml:"inference_parameters" json:"inference_parameters"`
}

// Validate checks that a preset is usable.
func (p Preset) Validate() error {
	if p.Name == "" {
		return errors.New("preset must have a name")
	}
	if p.InferenceParameters.NRefinerIterations < 0 {
		return errors.Errorf("preset %q: n_refiner_iterations must be >= 0", p.Name)
	}
	if p.InferenceParameters.NPoseHypotheses < 1 {
		return errors.Errorf("preset %q: n_pose_hypotheses must be >= 1", p.Name)
	}
	if p.DepthRefiner != "" && p.DepthRefiner != DepthRefinerICP {
		return errors.Errorf("preset %q: unknown depth_refiner %q", p.Name, p.DepthRefiner)
	}
	if p.DepthRefiner == DepthRefinerICP && !p.RequiresDepth {
		return errors.Errorf("preset %q: depth_refiner %s requires depth", p.Name, p.DepthRefiner)
	}
	return nil
}

const (
	coarseRGB   = "coarse-rgb-906902141"
	refinerRGB  = "refiner-rgb-653307694"
	refinerRGBD = "refiner-rgbd-288182519"
)

// NamedPresets are the built in model configurations.
var NamedPresets = map[string]Preset{
	"megapose-1.0-RGB": {
		Name:                "megapose-1.0-RGB",
		CoarseRunID:         coarseRGB,
		RefinerRunID:        refinerRGB,
		InferenceParameters: InferenceParameters{NRefinerIterations: 5, NPoseHypotheses: 1},
	},
	"megapose-1.0-RGBD": {
		Name:                "megapose-1.0-RGBD",
		CoarseRunID:         coarseRGB,
		RefinerRunID:        refinerRGBD,
		RequiresDepth:       true,
		InferenceParameters: InferenceParameters{NRefinerIterations: 5, NPoseHypotheses: 1},
	},
	"megapose-1.0-RGB-multi-hypothesis": {
		Name:                "megapose-1.0-RGB-multi-hypothesis",
		CoarseRunID:         coarseRGB,
		RefinerRunID:        refinerRGB,
		InferenceParameters: InferenceParameters{NRefinerIterations: 5, NPoseHypotheses: 5},
	},
	DefaultPresetName: {
		Name:                DefaultPresetName,
		CoarseRunID:         coarseRGB,
		RefinerRunID:        refinerRGB,
		RequiresDepth:       true,
		DepthRefiner:        DepthRefinerICP,
		InferenceParameters: InferenceParameters{NRefinerIterations: 5, NPoseHypotheses: 5},
	},
}

type presetsFile struct {
	Presets []Preset `yaml:"presets"`
}

// LoadPresets reads additional presets from a YAML (or JSON) file of the form
// {presets: [{name: ..., ...}]}.
func LoadPresets(path string) (map[string]Preset, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read presets file %q", path)
	}
	var file presetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "cannot parse presets file %q", path)
	}
	presets := make(map[string]Preset, len(file.Presets))
	for _, p := range file.Presets {
		if err := p.Validate(); err != nil {
			return nil, errors.Wrapf(err, "presets file %q", path)
		}
		if _, ok := presets[p.Name]; ok {
			return nil, errors.Errorf("presets file %q defines %q twice", path, p.Name)
		}
		presets[p.Name] = p
	}
	return presets, nil
}

// LookupPreset finds name in extra, then in NamedPresets. An empty name selects the default.
func LookupPreset(name string, extra map[string]Preset) (Preset, error) {
	if name == "" {
		name = DefaultPresetName
	}
	if p, ok := extra[name]; ok {
		return p, nil
	}
	if p, ok := NamedPresets[name]; ok {
		return p, nil
	}
	return Preset{}, errors.Errorf("unknown model preset %q, known presets: %s", name, strings.Join(PresetNames(extra), ", "))
}

// PresetNames returns the sorted names of the built in presets and extra.
func PresetNames(extra map[string]Preset) []string {
	names := lo.Uniq(append(lo.Keys(NamedPresets), lo.Keys(extra)...))
	sort.Strings(names)
	return names
}
