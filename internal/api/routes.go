// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/layout-bridge/backend/internal/catalog"
	"github.com/layout-bridge/backend/internal/scene"
	"github.com/layout-bridge/backend/internal/session"
	"github.com/layout-bridge/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store    storage.Store
	Sessions *session.Manager
	Scene    *scene.Graph
	Ledger   *catalog.Ledger // nil when the catalog is disabled
	Events   *EventHub
	Export   ExportDefaults
	Logger   logrus.FieldLogger
	Version  string
}

// Handlers holds all handler instances
type Handlers struct {
	Health   HealthHandler
	Document DocumentHandler
	Export   ExportHandler
	Import   ImportHandler
	Scene    SceneHandler
	Events   *EventHub
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	var ledger RunLedger
	if deps.Ledger != nil {
		ledger = deps.Ledger
	}
	var events EventPublisher
	if deps.Events != nil {
		events = deps.Events
	}

	return &Handlers{
		Health:   NewHealthHandler(deps.Version, deps.Ledger != nil),
		Document: NewDocumentHandler(deps.Store),
		Export:   NewExportHandler(deps.Store, ledger, events, deps.Export, deps.Logger),
		Import:   NewImportHandler(deps.Sessions, deps.Scene, events, deps.Logger),
		Scene:    NewSceneHandler(deps.Scene, events),
		Events:   deps.Events,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Source documents
	docGroup := apiGroup.Group("/documents")
	docGroup.POST("", handlers.Document.HandleUploadDocument)
	docGroup.GET("", handlers.Document.HandleListDocuments)
	docGroup.GET("/:id", handlers.Document.HandleGetDocument)
	docGroup.DELETE("/:id", handlers.Document.HandleDeleteDocument)
	docGroup.GET("/:id/layers", handlers.Document.HandleGetLayers)

	// Export runs and ledger
	apiGroup.POST("/export", handlers.Export.HandleExport)
	apiGroup.GET("/exports", handlers.Export.HandleListRuns)
	apiGroup.GET("/exports/:runId/objects", handlers.Export.HandleRunObjects)

	// Import sessions
	importGroup := apiGroup.Group("/import")
	importGroup.POST("", handlers.Import.HandleLoad)
	importGroup.GET("", handlers.Import.HandleListSessions)
	importGroup.GET("/:sessionId", handlers.Import.HandleGetSession)
	importGroup.DELETE("/:sessionId", handlers.Import.HandleDeleteSession)
	importGroup.POST("/:sessionId/reload", handlers.Import.HandleReload)
	importGroup.PUT("/:sessionId/objects/:zorder", handlers.Import.HandleUpdateObject)
	importGroup.PUT("/:sessionId/settings", handlers.Import.HandleSetSettings)
	importGroup.POST("/:sessionId/overrides", handlers.Import.HandleApplyOverrides)
	importGroup.GET("/:sessionId/plan", handlers.Import.HandleGetPlan)
	importGroup.GET("/:sessionId/thumbnails/:zorder", handlers.Import.HandleThumbnail)
	importGroup.GET("/:sessionId/batch/msgpack", handlers.Import.HandleBatchMsgpack)
	importGroup.POST("/:sessionId/create", handlers.Import.HandleCreate)

	// Scene
	sceneGroup := apiGroup.Group("/scene")
	sceneGroup.GET("", handlers.Scene.HandleGetScene)
	sceneGroup.GET("/msgpack", handlers.Scene.HandleGetSceneMsgpack)
	sceneGroup.POST("/entities", handlers.Scene.HandleAddEntity)
	sceneGroup.POST("/undo", handlers.Scene.HandleUndo)

	RegisterWebSocketRoutes(e, handlers)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	if handlers.Events != nil {
		e.GET("/api/ws/events", handlers.Events.HandleEvents)
	}
}

// MiddlewareConfig selects the optional middleware
type MiddlewareConfig struct {
	RequestLogging bool
	EnableCORS     bool
	AllowOrigins   string
	BodyLimit      string
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig) {
	e.HTTPErrorHandler = ErrorHandler

	if cfg.RequestLogging {
		e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Skipper: func(c echo.Context) bool {
				path := c.Request().URL.Path
				return path == "/api/health" || strings.HasPrefix(path, "/api/ws/")
			},
		}))
	}

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	if cfg.EnableCORS {
		origins := strings.Split(cfg.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}
}
