// Package cli contains all business logic needed by the edgeplan command.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Global flags.
	flagConfig = "config"
	flagDebug  = "debug"

	// Command flags.
	flagInput       = "input"
	flagOutput      = "output"
	flagThreshold   = "threshold"
	flagHeaderLines = "header-lines"
	flagMethod      = "method"
	flagMin         = "min"
	flagMax         = "max"
	flagPlot        = "plot"
	flagInteractive = "interactive"
)

var app = &cli.App{
	Name:            "edgeplan",
	Usage:           "reconstruct building edges from labelled photographs",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE`",
		},
		&cli.BoolFlag{
			Name:    flagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:   "run",
			Usage:  "reconstruct, classify, cluster and export the configured images",
			Action: RunAction,
		},
		{
			Name:      "classify",
			Usage:     "copy the points whose label reaches a threshold",
			UsageText: "edgeplan classify [--input merged.txt] [--output edges.txt] [--threshold 230]",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  flagInput,
					Usage: "point file to classify, defaults to merged.txt in the output directory",
				},
				&cli.StringFlag{
					Name:  flagOutput,
					Usage: "destination file, defaults to edges.txt in the output directory",
				},
				&cli.IntFlag{
					Name:  flagThreshold,
					Usage: "minimum label, defaults to the configured threshold",
					Value: -1,
				},
				&cli.IntFlag{
					Name:  flagHeaderLines,
					Usage: "number of leading lines to skip, defaults to the configured count",
					Value: -1,
				},
				&cli.IntFlag{
					Name:  flagMethod,
					Usage: "reconstruction method number, 1 and 3 keep the label in the second to last field",
					Value: -1,
				},
			},
			Action: ClassifyAction,
		},
		{
			Name:  "cluster",
			Usage: "cluster edge points, fit one segment per cluster and export the segments",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  flagInput,
					Usage: "edge points as a text or .las file, defaults to edges.txt in the output directory",
				},
			},
			Action: ClusterAction,
		},
		{
			Name:  "tune",
			Usage: "preview the label range selected by min and max thresholds",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  flagInput,
					Usage: "point file whose labels are previewed, defaults to merged.txt in the output directory",
				},
				&cli.IntFlag{
					Name:  flagMin,
					Usage: "lower threshold",
					Value: 0,
				},
				&cli.IntFlag{
					Name:  flagMax,
					Usage: "upper threshold",
					Value: 255,
				},
				&cli.StringFlag{
					Name:  flagPlot,
					Usage: "histogram `FILE`, defaults to tuning.png in the output directory",
				},
				&cli.BoolFlag{
					Name:  flagInteractive,
					Usage: "read `min max` lines from stdin and redraw after each one",
				},
			},
			Action: TuneAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(in io.Reader, out, errOut io.Writer) *cli.App {
	app.Reader = in
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
