// Package config defines the pose estimation pipeline configuration.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"

	"go.viam.com/poseflow/estimator"
	"go.viam.com/poseflow/ml"
	"go.viam.com/poseflow/rimage"
	"go.viam.com/poseflow/utils"
	"go.viam.com/poseflow/visualization"
)

// Catalog modes.
const (
	CatalogModeGeneric = "generic"
	CatalogModeYCB     = "ycb"
)

// DefaultCameraFile is the camera file name inside an example directory.
const DefaultCameraFile = "camera_data.json"

// Config is the pipeline configuration.
type Config struct {
	ConfigFilePath string `json:"-"`

	Device        string                    `json:"device,omitempty" jsonschema:"description=device selector such as cpu or cuda:0"`
	Model         string                    `json:"model,omitempty" jsonschema:"description=model preset name"`
	PresetsFile   string                    `json:"presets_file,omitempty" jsonschema:"description=YAML file of additional presets"`
	Backend       string                    `json:"backend,omitempty" jsonschema:"description=registered estimator backend"`
	ModelsDir     string                    `json:"models_dir,omitempty"`
	Catalog       CatalogConfig             `json:"catalog" jsonschema:"required"`
	RendersDir    string                    `json:"renders_dir" jsonschema:"required,description=directory of per-label render views"`
	Camera        string                    `json:"camera" jsonschema:"required,description=camera data file fixing the estimator resolution"`
	CameraFile    string                    `json:"camera_file,omitempty" jsonschema:"description=camera file name inside each example"`
	Admission     estimator.AdmissionLimits `json:"admission,omitempty"`
	Visualization VisualizationConfig       `json:"visualization,omitempty"`
}

// CatalogConfig selects how CAD models are discovered.
type CatalogConfig struct {
	Mode      string `json:"mode,omitempty" jsonschema:"enum=generic,enum=ycb"`
	Dir       string `json:"dir" jsonschema:"required"`
	LabelList string `json:"label_list,omitempty" jsonschema:"description=YAML label list for ycb mode"`
}

// VisualizationConfig tunes the compositor. Unset fields keep their defaults.
type VisualizationConfig struct {
	OverlayAlpha     *float64 `json:"overlay_alpha,omitempty" jsonschema:"minimum=0,maximum=1"`
	ContourColor     string   `json:"contour_color,omitempty" jsonschema:"description=hex color such as #00ff00"`
	DilateIterations *int     `json:"dilate_iterations,omitempty" jsonschema:"minimum=0"`
	MeshDir          string   `json:"mesh_dir,omitempty" jsonschema:"description=generic catalog used for rendering; defaults to the catalog"`
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate(path string) error {
	if _, err := ml.ParseDevice(c.Device); err != nil {
		return utils.NewConfigValidationError(joinPath(path, "device"), err)
	}
	if err := c.Catalog.Validate(joinPath(path, "catalog")); err != nil {
		return err
	}
	if c.RendersDir == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "renders_dir")
	}
	if c.Camera == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "camera")
	}
	if c.Admission.MaxDetections < 0 {
		return utils.NewConfigValidationError(joinPath(path, "admission"),
			errors.Errorf("max_detections must be >= 0, got %d", c.Admission.MaxDetections))
	}
	if c.Admission.MaxDeviceBytes < 0 {
		return utils.NewConfigValidationError(joinPath(path, "admission"),
			errors.Errorf("max_device_bytes must be >= 0, got %d", c.Admission.MaxDeviceBytes))
	}
	return c.Visualization.Validate(joinPath(path, "visualization"))
}

// Validate ensures all parts of the config are valid.
func (c *CatalogConfig) Validate(path string) error {
	switch c.Mode {
	case "", CatalogModeGeneric, CatalogModeYCB:
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown catalog mode %q", c.Mode))
	}
	if c.Dir == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "dir")
	}
	if c.LabelList != "" && c.Mode != CatalogModeYCB {
		return utils.NewConfigValidationError(path, errors.New("label_list is only used in ycb mode"))
	}
	return nil
}

// Validate ensures all parts of the config are valid.
func (c *VisualizationConfig) Validate(path string) error {
	if c.OverlayAlpha != nil && (*c.OverlayAlpha < 0 || *c.OverlayAlpha > 1) {
		return utils.NewConfigValidationError(path, errors.Errorf("overlay_alpha must be within [0, 1], got %v", *c.OverlayAlpha))
	}
	if c.DilateIterations != nil && *c.DilateIterations < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("dilate_iterations must be >= 0, got %d", *c.DilateIterations))
	}
	if c.ContourColor != "" {
		if _, err := rimage.NewColorFromHex(c.ContourColor); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	}
	return nil
}

// Options returns the compositor options, applying defaults for unset fields.
func (c *VisualizationConfig) Options(cameraFile string) (visualization.Options, error) {
	opts := visualization.DefaultOptions(cameraFile)
	if c.OverlayAlpha != nil {
		opts.OverlayAlpha = *c.OverlayAlpha
	}
	if c.DilateIterations != nil {
		opts.DilateIterations = *c.DilateIterations
	}
	if c.ContourColor != "" {
		col, err := rimage.NewColorFromHex(c.ContourColor)
		if err != nil {
			return visualization.Options{}, err
		}
		opts.ContourColor = col
	}
	return opts, opts.Validate()
}

// Ensure applies defaults, resolves relative paths against the config file directory and
// validates the config.
func (c *Config) Ensure() error {
	if c.Device == "" {
		c.Device = string(ml.CPU)
	}
	if c.Model == "" {
		c.Model = estimator.DefaultPresetName
	}
	if c.Backend == "" {
		c.Backend = estimator.DefaultBackend
	}
	if c.Catalog.Mode == "" {
		c.Catalog.Mode = CatalogModeGeneric
	}
	if c.CameraFile == "" {
		c.CameraFile = DefaultCameraFile
	}
	if c.ConfigFilePath != "" {
		base := filepath.Dir(c.ConfigFilePath)
		for _, p := range []*string{
			&c.PresetsFile, &c.ModelsDir, &c.Catalog.Dir, &c.Catalog.LabelList, &c.RendersDir, &c.Camera, &c.Visualization.MeshDir,
		} {
			if *p != "" && !filepath.IsAbs(*p) {
				*p = filepath.Join(base, *p)
			}
		}
	}
	return c.Validate("config")
}

// DeviceSelector returns the parsed device.
func (c *Config) DeviceSelector() ml.Device {
	d, err := ml.ParseDevice(c.Device)
	if err != nil {
		return ml.CPU
	}
	return d
}

// Schema returns the JSON schema of the config file.
func Schema() *jsonschema.Schema {
	return jsonschema.Reflect(&Config{})
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return fmt.Sprintf("%s.%s", path, field)
}
