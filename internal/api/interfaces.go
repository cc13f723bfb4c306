// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// DocumentHandler handles stored source documents
type DocumentHandler interface {
	HandleUploadDocument(c echo.Context) error
	HandleListDocuments(c echo.Context) error
	HandleGetDocument(c echo.Context) error
	HandleDeleteDocument(c echo.Context) error
	HandleGetLayers(c echo.Context) error
}

// ExportHandler handles export runs and the export ledger
type ExportHandler interface {
	HandleExport(c echo.Context) error
	HandleListRuns(c echo.Context) error
	HandleRunObjects(c echo.Context) error
}

// ImportHandler handles import sessions
type ImportHandler interface {
	HandleLoad(c echo.Context) error
	HandleListSessions(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
	HandleReload(c echo.Context) error
	HandleUpdateObject(c echo.Context) error
	HandleSetSettings(c echo.Context) error
	HandleApplyOverrides(c echo.Context) error
	HandleGetPlan(c echo.Context) error
	HandleThumbnail(c echo.Context) error
	HandleBatchMsgpack(c echo.Context) error
	HandleCreate(c echo.Context) error
}

// SceneHandler handles the in-memory scene
type SceneHandler interface {
	HandleGetScene(c echo.Context) error
	HandleGetSceneMsgpack(c echo.Context) error
	HandleAddEntity(c echo.Context) error
	HandleUndo(c echo.Context) error
}

// EventPublisher receives progress events for connected clients.
type EventPublisher interface {
	Publish(kind string, payload interface{})
}
