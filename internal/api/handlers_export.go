// handlers_export.go - Export run and ledger handlers
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/layout-bridge/backend/internal/catalog"
	"github.com/layout-bridge/backend/internal/exporter"
	"github.com/layout-bridge/backend/internal/logging"
	"github.com/layout-bridge/backend/internal/models"
	"github.com/layout-bridge/backend/internal/storage"
)

// RunLedger records export runs. *catalog.Ledger implements it.
type RunLedger interface {
	RecordRun(ctx context.Context, summary models.ExportSummary, batch models.ExportBatch) (string, error)
	Runs(ctx context.Context, limit int) ([]catalog.Run, error)
	Objects(ctx context.Context, runID string) ([]models.LayoutObject, error)
}

// ExportDefaults are the values used when a request leaves them out.
type ExportDefaults struct {
	ThumbSize  int
	Layer      int
	ExportsDir string
}

// ExportHandlerImpl implements the ExportHandler interface
type ExportHandlerImpl struct {
	store    storage.Store
	ledger   RunLedger
	events   EventPublisher
	exporter *exporter.Exporter
	defaults ExportDefaults
	logger   logrus.FieldLogger

	// one export at a time; a run mutates the document it renders
	mu sync.Mutex
}

// NewExportHandler creates a new export handler. ledger and events may be nil.
func NewExportHandler(store storage.Store, ledger RunLedger, events EventPublisher, defaults ExportDefaults, logger logrus.FieldLogger) ExportHandler {
	return &ExportHandlerImpl{
		store:    store,
		ledger:   ledger,
		events:   events,
		exporter: exporter.New(logger),
		defaults: defaults,
		logger:   logging.WithComponent(logger, "api"),
	}
}

// HandleExport runs an export of one layer of a stored document
func (h *ExportHandlerImpl) HandleExport(c echo.Context) error {
	var req exportRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}

	doc, err := openDocument(h.store, req.DocumentID)
	if err != nil {
		return err
	}

	opts := exporter.Options{
		Layer:     h.defaults.Layer,
		ThumbSize: h.defaults.ThumbSize,
		OutputDir: req.OutputDir,
	}
	if req.Layer != nil {
		opts.Layer = *req.Layer
	}
	if req.ThumbSize != 0 {
		opts.ThumbSize = req.ThumbSize
	}
	if opts.OutputDir == "" {
		stamp := time.Now().Format("20060102-150405")
		opts.OutputDir = filepath.Join(h.defaults.ExportsDir, fmt.Sprintf("%s-%s", req.DocumentID, stamp))
	}
	if h.events != nil {
		opts.Progress = func(ev exporter.Event) {
			h.events.Publish(string(ev.Kind), ev)
		}
	}

	h.mu.Lock()
	res, err := h.exporter.Run(doc, opts)
	h.mu.Unlock()

	if err != nil {
		if statusErr := h.store.SetStatus(req.DocumentID, storage.StatusError); statusErr != nil {
			h.logger.WithError(statusErr).Warn("could not update document status")
		}
		if errors.Is(err, exporter.ErrCreateInterchange) {
			return NewInternalError("export failed", err)
		}
		return NewUnprocessableError("export failed", err)
	}

	if err := h.store.SetStatus(req.DocumentID, storage.StatusExported); err != nil {
		h.logger.WithError(err).Warn("could not update document status")
	}

	resp := exportResponse{Summary: res.Summary}
	if h.ledger != nil {
		runID, err := h.ledger.RecordRun(c.Request().Context(), res.Summary, res.Batch)
		if err != nil {
			// the files are written; a ledger failure does not undo the export
			h.logger.WithError(err).Error("failed to record export run")
		}
		resp.RunID = runID
	}

	return c.JSON(http.StatusOK, resp)
}

// HandleListRuns returns recorded export runs, newest first
func (h *ExportHandlerImpl) HandleListRuns(c echo.Context) error {
	if h.ledger == nil {
		return NewServiceUnavailableError("export catalog is disabled")
	}

	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return NewValidationError("limit")
		}
		limit = n
	}

	runs, err := h.ledger.Runs(c.Request().Context(), limit)
	if err != nil {
		return NewInternalError("failed to list export runs", err)
	}
	return c.JSON(http.StatusOK, runs)
}

// HandleRunObjects returns the records emitted by one export run
func (h *ExportHandlerImpl) HandleRunObjects(c echo.Context) error {
	if h.ledger == nil {
		return NewServiceUnavailableError("export catalog is disabled")
	}

	runID := c.Param("runId")
	objects, err := h.ledger.Objects(c.Request().Context(), runID)
	if err != nil {
		if errors.Is(err, catalog.ErrRunNotFound) {
			return NewNotFoundError("export run", runID)
		}
		return NewInternalError("failed to read export run", err)
	}
	return c.JSON(http.StatusOK, objects)
}

type exportRequest struct {
	DocumentID string `json:"documentId"`
	Layer      *int   `json:"layer,omitempty"`
	ThumbSize  int    `json:"thumbSize,omitempty"`
	OutputDir  string `json:"outputDir,omitempty"`
}

func (r *exportRequest) validate() error {
	if r.DocumentID == "" {
		return NewValidationError("documentId")
	}
	return nil
}

type exportResponse struct {
	RunID   string               `json:"runId,omitempty"`
	Summary models.ExportSummary `json:"summary"`
}
