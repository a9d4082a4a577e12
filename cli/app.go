// Package cli contains the poseflow command line application.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	configFlag    = "config"
	debugFlag     = "debug"
	timeoutFlag   = "timeout"
	visualizeFlag = "visualize"
)

var app = &cli.App{
	Name:            "poseflow",
	Usage:           "estimate 6D object poses in RGB and RGB-D images",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    configFlag,
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE`",
		},
		&cli.BoolFlag{
			Name:    debugFlag,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "run",
			Usage:     "estimate poses for the annotated objects of each example directory",
			ArgsUsage: "EXAMPLE_DIR...",
			Flags: []cli.Flag{
				&cli.DurationFlag{
					Name:  timeoutFlag,
					Usage: "abandon an example after `DURATION`, 0 disables the timeout",
				},
				&cli.BoolFlag{
					Name:  visualizeFlag,
					Usage: "write comparison figures after estimating",
				},
			},
			Action: RunAction,
		},
		{
			Name:      "visualize",
			Usage:     "write comparison figures from the saved predictions of each example directory",
			ArgsUsage: "EXAMPLE_DIR...",
			Action:    VisualizeAction,
		},
		{
			Name:   "catalog",
			Usage:  "list the objects of the configured catalog",
			Action: CatalogAction,
		},
		{
			Name:   "presets",
			Usage:  "list the known model presets",
			Action: PresetsAction,
		},
		{
			Name:      "schema",
			Usage:     "print the JSON schema of the config file or of object_data.json",
			ArgsUsage: "[config|object-data]",
			Action:    SchemaAction,
		},
		{
			Name:   "version",
			Usage:  "print version info for this program",
			Action: VersionAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
