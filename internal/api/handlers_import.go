// handlers_import.go - Import session handlers
package api

import (
	"bytes"
	"encoding/base64"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/layout-bridge/backend/internal/interchange"
	"github.com/layout-bridge/backend/internal/logging"
	"github.com/layout-bridge/backend/internal/models"
	"github.com/layout-bridge/backend/internal/overrides"
	"github.com/layout-bridge/backend/internal/placement"
	"github.com/layout-bridge/backend/internal/scene"
	"github.com/layout-bridge/backend/internal/session"
)

// ImportHandlerImpl implements the ImportHandler interface
type ImportHandlerImpl struct {
	sessions *session.Manager
	scene    scene.SceneHost
	events   EventPublisher
	logger   logrus.FieldLogger
}

// NewImportHandler creates a new import handler. events may be nil.
func NewImportHandler(sessions *session.Manager, host scene.SceneHost, events EventPublisher, logger logrus.FieldLogger) ImportHandler {
	return &ImportHandlerImpl{
		sessions: sessions,
		scene:    host,
		events:   events,
		logger:   logging.WithComponent(logger, "api"),
	}
}

// HandleLoad reads an interchange document into a new session
func (h *ImportHandlerImpl) HandleLoad(c echo.Context) error {
	var req loadRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}

	sess, err := h.sessions.Load(interchangePath(req.Path))
	if err != nil {
		return importError(err, "")
	}

	h.publish(EventImportLoaded, sess)
	return c.JSON(http.StatusCreated, sess)
}

// HandleListSessions returns every live session
func (h *ImportHandlerImpl) HandleListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sessions.List())
}

// HandleGetSession returns one session with its views
func (h *ImportHandlerImpl) HandleGetSession(c echo.Context) error {
	id := c.Param("sessionId")
	sess, ok := h.sessions.Get(id)
	if !ok {
		return NewNotFoundError("session", id)
	}
	return c.JSON(http.StatusOK, sess)
}

// HandleDeleteSession discards a session and its overrides
func (h *ImportHandlerImpl) HandleDeleteSession(c echo.Context) error {
	id := c.Param("sessionId")
	if !h.sessions.Delete(id) {
		return NewNotFoundError("session", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleReload re-reads the session's document, optionally from a new path.
// A failed reload leaves the session empty and reports the error.
func (h *ImportHandlerImpl) HandleReload(c echo.Context) error {
	id := c.Param("sessionId")

	var req loadRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return NewBadRequestError("invalid JSON body", err)
		}
	}

	path := req.Path
	if path != "" {
		path = interchangePath(path)
	}

	sess, err := h.sessions.Reload(id, path)
	if err != nil {
		return importError(err, id)
	}

	h.publish(EventImportReloaded, sess)
	return c.JSON(http.StatusOK, sess)
}

// HandleUpdateObject patches the view of one record
func (h *ImportHandlerImpl) HandleUpdateObject(c echo.Context) error {
	id := c.Param("sessionId")
	zorder, err := strconv.Atoi(c.Param("zorder"))
	if err != nil {
		return NewValidationError("zorder")
	}

	var patch models.ViewPatch
	if err := c.Bind(&patch); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	view, err := h.sessions.UpdateView(id, zorder, patch)
	if err != nil {
		return importError(err, id)
	}
	return c.JSON(http.StatusOK, view)
}

// HandleSetSettings replaces the session's placement settings
func (h *ImportHandlerImpl) HandleSetSettings(c echo.Context) error {
	id := c.Param("sessionId")

	var settings models.PlacementSettings
	if err := c.Bind(&settings); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if settings.PositionScale == 0 {
		return NewValidationError("positionScale")
	}

	sess, err := h.sessions.SetSettings(id, settings)
	if err != nil {
		return importError(err, id)
	}
	return c.JSON(http.StatusOK, sess)
}

// HandleApplyOverrides applies a base64 YAML overrides document
func (h *ImportHandlerImpl) HandleApplyOverrides(c echo.Context) error {
	id := c.Param("sessionId")

	var req overridesRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	doc, err := overrides.Parse(bytes.NewReader(decoded))
	if err != nil {
		return NewUnprocessableError("invalid overrides document", err)
	}

	sess, err := h.sessions.ApplyOverrides(id, doc)
	if err != nil {
		return importError(err, id)
	}
	return c.JSON(http.StatusOK, sess)
}

// HandleGetPlan resolves the session's views without touching the scene
func (h *ImportHandlerImpl) HandleGetPlan(c echo.Context) error {
	id := c.Param("sessionId")
	plan, err := h.sessions.Plan(id)
	if err != nil {
		return importError(err, id)
	}
	if plan == nil {
		plan = []placement.Placement{}
	}
	return c.JSON(http.StatusOK, plan)
}

// HandleThumbnail serves the preview image of one record
func (h *ImportHandlerImpl) HandleThumbnail(c echo.Context) error {
	id := c.Param("sessionId")
	zorder, err := strconv.Atoi(c.Param("zorder"))
	if err != nil {
		return NewValidationError("zorder")
	}

	thumb, err := h.sessions.Thumbnail(id, zorder)
	if err != nil {
		return importError(err, id)
	}
	return c.File(thumb.Path)
}

// HandleBatchMsgpack returns the loaded batch encoded as msgpack
func (h *ImportHandlerImpl) HandleBatchMsgpack(c echo.Context) error {
	id := c.Param("sessionId")
	sess, ok := h.sessions.Get(id)
	if !ok {
		return NewNotFoundError("session", id)
	}
	if sess.Batch == nil {
		return NewConflictError("session has no loaded document")
	}

	data, err := interchange.MarshalMsgpack(sess.Batch)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleCreate instantiates the session's views into the scene as one undo step
func (h *ImportHandlerImpl) HandleCreate(c echo.Context) error {
	id := c.Param("sessionId")
	created, err := h.sessions.Create(id, h.scene)
	if err != nil {
		return importError(err, id)
	}

	h.logger.WithFields(logrus.Fields{"session": id, "created": created}).Info("layout objects created")
	result := map[string]interface{}{
		"sessionId": id,
		"created":   created,
	}
	h.publish(EventImportCreated, result)
	return c.JSON(http.StatusOK, result)
}

func (h *ImportHandlerImpl) publish(kind string, payload interface{}) {
	if h.events != nil {
		h.events.Publish(kind, payload)
	}
}

// interchangePath accepts either the interchange file or the export folder holding it.
func interchangePath(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, interchange.FileName)
	}
	return path
}

func importError(err error, id string) *APIError {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return NewNotFoundError("session", id)
	case errors.Is(err, session.ErrObjectNotFound):
		return &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, session.ErrNothingLoaded):
		return NewConflictError("session has no loaded document")
	case errors.Is(err, interchange.ErrNotFound):
		return &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, interchange.ErrInvalidFormat),
		errors.Is(err, overrides.ErrUnknownTemplate),
		errors.Is(err, overrides.ErrUnknownObject),
		errors.Is(err, overrides.ErrMissingKey),
		errors.Is(err, scene.ErrEntityNotFound),
		errors.Is(err, scene.ErrParentCycle):
		return NewUnprocessableError("import failed", err)
	default:
		return NewInternalError("import failed", err)
	}
}

type loadRequest struct {
	Path string `json:"path"`
}

func (r *loadRequest) validate() error {
	if r.Path == "" {
		return NewValidationError("path")
	}
	return nil
}

type overridesRequest struct {
	Data string `json:"data"` // Base64-encoded YAML
}

func (r *overridesRequest) validate() error {
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}
