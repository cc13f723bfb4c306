// Package exporter walks the top-level groups of one layer, renders an
// isolated preview of each and writes the interchange document.
package exporter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/layout-bridge/backend/internal/geometry"
	"github.com/layout-bridge/backend/internal/host"
	"github.com/layout-bridge/backend/internal/interchange"
	"github.com/layout-bridge/backend/internal/isolation"
	"github.com/layout-bridge/backend/internal/logging"
	"github.com/layout-bridge/backend/internal/models"
)

// Fatal preconditions. A run failing any of them leaves no side effects.
var (
	ErrNoDocument        = errors.New("no document open")
	ErrNoLayers          = errors.New("the document has no layers")
	ErrLayerOutOfRange   = errors.New("layer index out of range")
	ErrNoGroups          = errors.New("selected layer has no top-level groups")
	ErrNoActiveFrame     = errors.New("document has no active artboard")
	ErrNoOutputFolder    = errors.New("no output folder chosen")
	ErrInvalidThumbSize  = errors.New("thumbnail size must be positive")
	ErrCreateInterchange = errors.New("could not create interchange file")
)

// EventKind tags a progress event.
type EventKind string

const (
	EventStarted  EventKind = "export_started"
	EventExported EventKind = "object_exported"
	EventSkipped  EventKind = "object_skipped"
	EventFinished EventKind = "export_finished"
)

// Event reports progress of a run.
type Event struct {
	Kind   EventKind `json:"kind"`
	Index  int       `json:"index"`
	Total  int       `json:"total"`
	Name   string    `json:"name,omitempty"`
	Reason string    `json:"reason,omitempty"`
}

// Options selects what to export and where.
type Options struct {
	Layer     int
	ThumbSize int
	OutputDir string
	// Progress, when set, receives one event per group plus start and finish.
	Progress func(Event)
}

// Result is the outcome of a successful run.
type Result struct {
	Summary models.ExportSummary
	Batch   models.ExportBatch
}

// Exporter runs exports against a document host.
type Exporter struct {
	base   logrus.FieldLogger
	logger logrus.FieldLogger
}

// New creates an exporter. A nil logger discards output.
func New(logger logrus.FieldLogger) *Exporter {
	return &Exporter{
		base:   logging.OrDiscard(logger),
		logger: logging.WithComponent(logger, "exporter"),
	}
}

// DisplayLayerName returns the layer name, or "Layer <n>" (1-based) when it is empty.
func DisplayLayerName(doc host.Document, layer int) string {
	if name := doc.LayerName(layer); name != "" {
		return name
	}
	return fmt.Sprintf("Layer %d", layer+1)
}

// Run exports every eligible group of opts.Layer. Per-group failures are
// counted as skips; only precondition failures return an error.
func (e *Exporter) Run(h host.ExportHost, opts Options) (*Result, error) {
	frame, err := e.check(h, opts)
	if err != nil {
		return nil, err
	}

	thumbDir := filepath.Join(opts.OutputDir, interchange.ThumbnailDir)
	if err := os.MkdirAll(thumbDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateInterchange, err)
	}
	pending, err := interchange.Create(opts.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateInterchange, err)
	}

	layerName := h.LayerName(opts.Layer)
	groups := h.Groups(opts.Layer)
	log := e.logger.WithFields(logrus.Fields{"layer": layerName, "groups": len(groups)})
	log.Info("export started")

	emit := func(ev Event) {
		ev.Total = len(groups)
		if opts.Progress != nil {
			opts.Progress(ev)
		}
	}
	emit(Event{Kind: EventStarted})

	renderer := isolation.NewRenderer(h, logging.WithComponent(e.base, "isolation"))
	batch := models.ExportBatch{Layer: layerName, Objects: []models.LayoutObject{}}
	used := make(map[string]string)
	skipped := 0

	for _, g := range groups {
		ex, reason := geometry.Extract(h, g, frame)
		if reason != geometry.SkipNone {
			skipped++
			log.WithFields(logrus.Fields{"group": g.Name, "index": g.Index, "reason": string(reason)}).Warn("skipped group")
			emit(Event{Kind: EventSkipped, Index: g.Index, Name: g.Name, Reason: string(reason)})
			continue
		}

		if prev, ok := used[ex.SafeName]; ok {
			log.WithFields(logrus.Fields{"group": ex.Object.Name, "other": prev, "file": ex.SafeName}).
				Warn("thumbnail name collides with an earlier group and will be overwritten")
		}

		_, err := renderer.Run(isolation.Job{
			Layer:     g.Layer,
			Item:      g.Item,
			Bounds:    ex.Bounds,
			ThumbSize: opts.ThumbSize,
			Path:      filepath.Join(thumbDir, ex.SafeName+".png"),
		})
		if err != nil {
			skipped++
			log.WithError(err).WithFields(logrus.Fields{"group": ex.Object.Name, "index": g.Index}).Warn("skipped group")
			emit(Event{Kind: EventSkipped, Index: g.Index, Name: ex.Object.Name, Reason: err.Error()})
			continue
		}

		used[ex.SafeName] = ex.Object.Name
		obj := ex.Object
		obj.Thumbnail = interchange.ThumbnailRef(ex.SafeName)
		batch.Objects = append(batch.Objects, obj)
		emit(Event{Kind: EventExported, Index: g.Index, Name: obj.Name})
	}

	if err := pending.Commit(batch); err != nil {
		return nil, err
	}

	summary := models.ExportSummary{
		Layer:           layerName,
		ThumbnailSize:   opts.ThumbSize,
		Exported:        len(batch.Objects),
		Skipped:         skipped,
		InterchangePath: pending.Path(),
		ThumbnailDir:    thumbDir,
	}
	log.WithFields(logrus.Fields{"exported": summary.Exported, "skipped": summary.Skipped}).Info("export complete")
	emit(Event{Kind: EventFinished})

	return &Result{Summary: summary, Batch: batch}, nil
}

// check validates everything that can abort a run, before anything is mutated.
func (e *Exporter) check(h host.ExportHost, opts Options) (models.Bounds, error) {
	if h == nil {
		return models.Bounds{}, ErrNoDocument
	}
	if h.Layers() == 0 {
		return models.Bounds{}, ErrNoLayers
	}
	if opts.Layer < 0 || opts.Layer >= h.Layers() {
		return models.Bounds{}, fmt.Errorf("%w: %d", ErrLayerOutOfRange, opts.Layer)
	}
	if opts.ThumbSize <= 0 {
		return models.Bounds{}, fmt.Errorf("%w: %d", ErrInvalidThumbSize, opts.ThumbSize)
	}
	if len(h.Groups(opts.Layer)) == 0 {
		return models.Bounds{}, ErrNoGroups
	}
	_, frame, err := h.ActiveFrame()
	if err != nil {
		return models.Bounds{}, fmt.Errorf("%w: %v", ErrNoActiveFrame, err)
	}
	if opts.OutputDir == "" {
		return models.Bounds{}, ErrNoOutputFolder
	}
	return frame, nil
}
