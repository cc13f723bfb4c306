package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/layout-bridge/backend/internal/catalog"
	"github.com/layout-bridge/backend/internal/document"
	"github.com/layout-bridge/backend/internal/exporter"
	"github.com/layout-bridge/backend/internal/importer"
	"github.com/layout-bridge/backend/internal/interchange"
	"github.com/layout-bridge/backend/internal/logging"
	"github.com/layout-bridge/backend/internal/models"
	"github.com/layout-bridge/backend/internal/overrides"
	"github.com/layout-bridge/backend/internal/placement"
	"github.com/layout-bridge/backend/internal/scene"
)

func setupLogging(ctx *cli.Context) *logrus.Logger {
	level := "warn"
	if ctx.GlobalBool("v") {
		level = "info"
	}
	if ctx.GlobalBool("vv") {
		level = "debug"
	}
	return logging.New(level, os.Stderr)
}

type exportArgs struct {
	Document  string
	Layer     int
	ThumbSize int
	Out       string
	Catalog   string
}

func exportCommand(ctx *cli.Context) error {
	return runExport(ctx.App.Writer, setupLogging(ctx), exportArgs{
		Document:  ctx.String("document"),
		Layer:     ctx.Int("layer"),
		ThumbSize: ctx.Int("thumb-size"),
		Out:       ctx.String("out"),
		Catalog:   ctx.String("catalog"),
	})
}

func runExport(w io.Writer, logger logrus.FieldLogger, args exportArgs) error {
	if args.Document == "" {
		return exporter.ErrNoDocument
	}
	doc, err := document.LoadFile(args.Document)
	if err != nil {
		return fmt.Errorf("loading %s: %w", args.Document, err)
	}

	res, err := exporter.New(logger).Run(doc, exporter.Options{
		Layer:     args.Layer,
		ThumbSize: args.ThumbSize,
		OutputDir: args.Out,
	})
	if err != nil {
		return err
	}

	runID := ""
	if args.Catalog != "" {
		ledger, err := catalog.Open(args.Catalog, logger)
		if err != nil {
			return err
		}
		defer ledger.Close()
		if runID, err = ledger.RecordRun(context.Background(), res.Summary, res.Batch); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Layer", "Thumbnail size", "Exported", "Skipped", "Interchange"})
	table.Append([]string{
		res.Summary.Layer,
		fmt.Sprintf("%d", res.Summary.ThumbnailSize),
		fmt.Sprintf("%d", res.Summary.Exported),
		fmt.Sprintf("%d", res.Summary.Skipped),
		res.Summary.InterchangePath,
	})
	table.Render()
	if runID != "" {
		fmt.Fprintf(&buf, "recorded as run %s\n", runID)
	}

	_, err = w.Write(buf.Bytes())
	return err
}

func inspectCommand(ctx *cli.Context) error {
	return runInspect(ctx.App.Writer, setupLogging(ctx), ctx.String("interchange"))
}

func runInspect(w io.Writer, logger logrus.FieldLogger, path string) error {
	loaded, err := importer.New(logger).Load(resolveInterchange(path))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "layer %q, %d object(s)\n", loaded.Batch.Layer, len(loaded.Batch.Objects))

	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader([]string{"Z", "Name", "X", "Y", "Width", "Height", "Rotation", "Thumbnail"})
	for _, v := range loaded.Views {
		thumb := "-"
		if v.Thumbnail != nil {
			thumb = fmt.Sprintf("%s (%dx%d)", v.Object.Thumbnail, v.Thumbnail.Width, v.Thumbnail.Height)
		}
		table.Append([]string{
			fmt.Sprintf("%d", v.Object.ZOrder),
			v.Object.Name,
			interchange.FormatFloat(v.Object.X),
			interchange.FormatFloat(v.Object.Y),
			interchange.FormatFloat(v.Object.Width),
			interchange.FormatFloat(v.Object.Height),
			interchange.FormatFloat(v.Object.Rotation),
			thumb,
		})
	}
	table.Render()

	for _, warning := range loaded.Warnings {
		fmt.Fprintf(&buf, "warning: %s\n", warning)
	}

	_, err = w.Write(buf.Bytes())
	return err
}

type placeArgs struct {
	Interchange string
	Overrides   string
	Scale       float64
	FlipY       bool
	Local       bool
	Parent      string
}

func placeCommand(ctx *cli.Context) error {
	return runPlace(ctx.App.Writer, setupLogging(ctx), placeArgs{
		Interchange: ctx.String("interchange"),
		Overrides:   ctx.String("overrides"),
		Scale:       ctx.Float64("scale"),
		FlipY:       ctx.BoolT("flip-y"),
		Local:       ctx.Bool("local"),
		Parent:      ctx.String("parent"),
	})
}

func runPlace(w io.Writer, logger logrus.FieldLogger, args placeArgs) error {
	loaded, err := importer.New(logger).Load(resolveInterchange(args.Interchange))
	if err != nil {
		return err
	}

	settings := models.PlacementSettings{
		PositionScale: args.Scale,
		FlipY:         args.FlipY,
		UseLocalFrame: args.Local,
		Parent:        args.Parent,
	}
	if args.Overrides != "" {
		doc, err := overrides.ParseFile(args.Overrides)
		if err != nil {
			return err
		}
		if settings, err = doc.Apply(loaded.Views, settings, nil); err != nil {
			return err
		}
	}

	graph := scene.NewGraph()
	if settings.Parent != "" {
		if _, err := graph.AddNode(settings.Parent, "", scene.Vec3{}, 0, scene.Vec3{1, 1, 1}); err != nil {
			return err
		}
	}

	plan := placement.Plan(loaded.Views, settings)
	ids, err := scene.NewInstantiator(graph, logger).Apply(plan)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader([]string{"Name", "Template", "Parent", "World X", "World Y", "World Z", "Rotation", "Sorting order"})
	for _, id := range ids {
		info, err := graph.Entity(id)
		if err != nil {
			return err
		}
		parent := ""
		if info.Parent != "" {
			if p, err := graph.Entity(info.Parent); err == nil {
				parent = p.Name
			}
		}
		order := "-"
		if info.SortingOrder != nil {
			order = fmt.Sprintf("%d", *info.SortingOrder)
		}
		table.Append([]string{
			info.Name,
			info.Template,
			parent,
			fmt.Sprintf("%.4f", info.WorldPosition[0]),
			fmt.Sprintf("%.4f", info.WorldPosition[1]),
			fmt.Sprintf("%.4f", info.WorldPosition[2]),
			fmt.Sprintf("%.2f", info.Rotation),
			order,
		})
	}
	table.SetFooter([]string{"", "", "", "", "", "", "CREATED", fmt.Sprintf("%d", len(ids))})
	table.Render()

	_, err = w.Write(buf.Bytes())
	return err
}

func resolveInterchange(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, interchange.FileName)
	}
	return path
}
