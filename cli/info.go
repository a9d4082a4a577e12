package cli

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/poseflow/config"
	"go.viam.com/poseflow/estimator"
	"go.viam.com/poseflow/pipeline"
	"go.viam.com/poseflow/scene"
)

// CatalogAction is the corresponding Action for 'catalog'.
func CatalogAction(c *cli.Context) error {
	logger := newLogger(c)
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	dataset, err := pipeline.BuildCatalog(cfg.Catalog, logger)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "Catalog %q (%d objects):", dataset.Version(), dataset.Len())
	for _, obj := range dataset.Objects() {
		printf(c.App.Writer, "\t%s\t%s (%s)", obj.Label, obj.MeshPath, obj.MeshUnits)
	}
	return nil
}

// PresetsAction is the corresponding Action for 'presets'. Presets from the configured presets
// file are listed along with the built in ones.
func PresetsAction(c *cli.Context) error {
	var extra map[string]estimator.Preset
	if c.String(configFlag) != "" {
		cfg, err := loadConfig(c, newLogger(c))
		if err != nil {
			return err
		}
		if cfg.PresetsFile != "" {
			if extra, err = estimator.LoadPresets(cfg.PresetsFile); err != nil {
				return err
			}
		}
	}
	for _, name := range estimator.PresetNames(extra) {
		preset, err := estimator.LookupPreset(name, extra)
		if err != nil {
			return err
		}
		depth := ""
		if preset.RequiresDepth {
			depth = ", requires depth"
		}
		printf(c.App.Writer, "%s\t(%d refiner iterations, %d hypotheses%s)", name,
			preset.InferenceParameters.NRefinerIterations, preset.InferenceParameters.NPoseHypotheses, depth)
	}
	return nil
}

// SchemaAction is the corresponding Action for 'schema'.
func SchemaAction(c *cli.Context) error {
	var schema *jsonschema.Schema
	switch which := c.Args().First(); which {
	case "", "config":
		schema = config.Schema()
	case "object-data":
		schema = jsonschema.Reflect(&[]scene.ObjectData{})
	default:
		return errors.Errorf("unknown schema %q, expected config or object-data", which)
	}
	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", out)
	return nil
}
