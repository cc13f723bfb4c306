// Package importer loads an interchange document into editable placement views.
package importer

import (
	"fmt"
	"image"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/layout-bridge/backend/internal/interchange"
	"github.com/layout-bridge/backend/internal/logging"
	"github.com/layout-bridge/backend/internal/models"
)

// Loaded is the result of reading one interchange document.
type Loaded struct {
	Path     string
	Batch    *models.ExportBatch
	Views    []*models.PlacementView
	Warnings []string
}

// Importer reads interchange documents.
type Importer struct {
	logger logrus.FieldLogger
}

// New creates an importer. A nil logger discards output.
func New(logger logrus.FieldLogger) *Importer {
	return &Importer{logger: logging.WithComponent(logger, "importer")}
}

// Load parses the document at path and probes every referenced thumbnail.
// A missing or unreadable thumbnail is a warning; the view has no preview.
func (im *Importer) Load(path string) (*Loaded, error) {
	batch, err := interchange.ReadFile(path)
	if err != nil {
		im.logger.WithError(err).WithField("path", path).Error("failed to load interchange document")
		return nil, err
	}

	baseDir := filepath.Dir(path)
	loaded := &Loaded{
		Path:  path,
		Batch: batch,
		Views: make([]*models.PlacementView, 0, len(batch.Objects)),
	}

	for _, obj := range batch.Objects {
		view := models.NewPlacementView(obj)
		if obj.Thumbnail != "" {
			thumb, err := Probe(filepath.Join(baseDir, filepath.FromSlash(obj.Thumbnail)))
			if err != nil {
				msg := fmt.Sprintf("thumbnail for %q: %v", obj.Name, err)
				loaded.Warnings = append(loaded.Warnings, msg)
				im.logger.WithField("object", obj.Name).Warn(msg)
			} else {
				view.Thumbnail = thumb
			}
		}
		loaded.Views = append(loaded.Views, view)
	}

	im.logger.WithFields(logrus.Fields{"path": path, "objects": len(loaded.Views)}).Info("loaded layout objects")
	return loaded, nil
}

// Probe reads the image header at path.
func Probe(path string) (*models.Thumbnail, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &models.Thumbnail{Path: path, Width: cfg.Width, Height: cfg.Height}, nil
}
