// handlers_scene.go - In-memory scene handlers
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/layout-bridge/backend/internal/scene"
)

// SceneSnapshot is the scene as served to clients.
type SceneSnapshot struct {
	Entities  []scene.EntityInfo `json:"entities" msgpack:"entities"`
	Dirty     bool               `json:"dirty" msgpack:"dirty"`
	UndoDepth int                `json:"undoDepth" msgpack:"undoDepth"`
}

// SceneHandlerImpl implements the SceneHandler interface
type SceneHandlerImpl struct {
	graph  *scene.Graph
	events EventPublisher
}

// NewSceneHandler creates a new scene handler. events may be nil.
func NewSceneHandler(graph *scene.Graph, events EventPublisher) SceneHandler {
	return &SceneHandlerImpl{graph: graph, events: events}
}

func (h *SceneHandlerImpl) snapshot() SceneSnapshot {
	return SceneSnapshot{
		Entities:  h.graph.Entities(),
		Dirty:     h.graph.Dirty(),
		UndoDepth: h.graph.UndoDepth(),
	}
}

// HandleGetScene returns every entity in creation order
func (h *SceneHandlerImpl) HandleGetScene(c echo.Context) error {
	return c.JSON(http.StatusOK, h.snapshot())
}

// HandleGetSceneMsgpack returns the scene encoded as msgpack
func (h *SceneHandlerImpl) HandleGetSceneMsgpack(c echo.Context) error {
	data, err := msgpack.Marshal(h.snapshot())
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleAddEntity adds a plain transform node, typically a parent for placed objects
func (h *SceneHandlerImpl) HandleAddEntity(c echo.Context) error {
	var req addEntityRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}

	scale := req.Scale
	if scale == (scene.Vec3{}) {
		scale = scene.Vec3{1, 1, 1}
	}

	parent := ""
	if req.Parent != "" {
		pid, err := h.graph.Lookup(req.Parent)
		if err != nil {
			return NewUnprocessableError("unknown parent", err)
		}
		parent = pid
	}

	id, err := h.graph.AddNode(req.Name, parent, req.Position, req.Rotation, scale)
	if err != nil {
		if errors.Is(err, scene.ErrEntityNotFound) {
			return NewUnprocessableError("unknown parent", err)
		}
		return NewInternalError("failed to add entity", err)
	}

	info, err := h.graph.Entity(id)
	if err != nil {
		return NewInternalError("failed to read entity", err)
	}
	return c.JSON(http.StatusCreated, info)
}

// HandleUndo reverts the most recent creation group
func (h *SceneHandlerImpl) HandleUndo(c echo.Context) error {
	label, removed, err := h.graph.Undo()
	if err != nil {
		if errors.Is(err, scene.ErrNothingToUndo) {
			return NewConflictError("nothing to undo")
		}
		return NewInternalError("undo failed", err)
	}

	result := map[string]interface{}{
		"label":   label,
		"removed": removed,
	}
	if h.events != nil {
		h.events.Publish(EventSceneUndo, result)
	}
	return c.JSON(http.StatusOK, result)
}

type addEntityRequest struct {
	Name     string     `json:"name"`
	Parent   string     `json:"parent,omitempty"` // entity id or name
	Position scene.Vec3 `json:"position"`
	Rotation float64    `json:"rotation"`
	Scale    scene.Vec3 `json:"scale"`
}

func (r *addEntityRequest) validate() error {
	if r.Name == "" {
		return NewValidationError("name")
	}
	return nil
}
