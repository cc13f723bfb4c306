package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/layout-bridge/backend/internal/models"
)

// Version info (set during build)
var Version = "dev"

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "layoutbridge"
	app.Usage = "export vector layouts and place them into a scene"
	app.Version = Version
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "export",
			Usage: "export the groups of one document layer",
			Description: `
Render every top-level group of the selected layer in isolation to a PNG
thumbnail and write export.json describing each group's position, size and
rotation relative to the active artboard.

The document's visibility state is restored after every group.`,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "document, d",
					Usage: "XML document description to export",
				},
				cli.IntFlag{
					Name:  "layer, l",
					Value: 0,
					Usage: "layer index, 0-based",
				},
				cli.IntFlag{
					Name:  "thumb-size, s",
					Value: 128,
					Usage: "thumbnail size in pixels for the longest side",
				},
				cli.StringFlag{
					Name:  "out, o",
					Usage: "output folder for export.json and thumbnails/",
				},
				cli.StringFlag{
					Name:  "catalog",
					Usage: "record the run in this DuckDB export catalog",
				},
			},
			Action: exportCommand,
		},
		{
			Name:      "inspect",
			Usage:     "list the records of an interchange document",
			ArgsUsage: " ",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "interchange, i",
					Usage: "export.json, or the folder holding it",
				},
			},
			Action: inspectCommand,
		},
		{
			Name:  "place",
			Usage: "resolve an interchange document into scene objects",
			Description: `
Load an interchange document, apply optional YAML overrides, and instantiate
every record marked for creation into an in-memory scene as one undo step.
The resulting entities are printed as a table.`,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "interchange, i",
					Usage: "export.json, or the folder holding it",
				},
				cli.StringFlag{
					Name:  "overrides",
					Usage: "YAML overrides and templates document",
				},
				cli.Float64Flag{
					Name:  "scale",
					Value: models.DefaultPositionScale,
					Usage: "world units per document unit",
				},
				cli.BoolTFlag{
					Name:  "flip-y",
					Usage: "negate y so document-down becomes world-down",
				},
				cli.BoolFlag{
					Name:  "local",
					Usage: "interpret positions in the parent's local frame",
				},
				cli.StringFlag{
					Name:  "parent",
					Usage: "create a parent node with this name and place objects under it",
				},
			},
			Action: placeCommand,
		},
	}
	return app
}
