package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/layout-bridge/backend/internal/api"
	"github.com/layout-bridge/backend/internal/catalog"
	"github.com/layout-bridge/backend/internal/config"
	"github.com/layout-bridge/backend/internal/logging"
	"github.com/layout-bridge/backend/internal/scene"
	"github.com/layout-bridge/backend/internal/session"
	"github.com/layout-bridge/backend/internal/storage"
	"github.com/layout-bridge/backend/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	configPath := filepath.Join(filepath.Dir(exePath), config.DefaultFileName)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Advanced.LogLevel, os.Stdout)
	log := logging.WithComponent(logger, "server")
	api.ShowErrorDetails = logger.IsLevelEnabled(logrus.DebugLevel)

	if err := cfg.EnsureDirectories(); err != nil {
		log.WithError(err).Fatal("failed to create directories")
	}

	store, err := storage.NewLocalStore(cfg.Storage.DocumentsDirectory)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize document store")
	}

	var ledger *catalog.Ledger
	if cfg.Storage.EnableCatalog {
		ledger, err = catalog.Open(cfg.Storage.CatalogPath, logger)
		if err != nil {
			log.WithError(err).Warn("export catalog unavailable, continuing without it")
			ledger = nil
		} else {
			defer ledger.Close()
		}
	}

	sessions := session.NewManager(session.Options{
		MaxSessions: cfg.Processing.MaxSessions,
		Settings:    cfg.PlacementSettings(),
		Templates:   cfg.Templates(),
		Logger:      logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background session cleanup
	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := sessions.CleanupOldSessions(cfg.SessionTimeout()); n > 0 {
					log.WithField("removed", n).Info("expired import sessions removed")
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	handlers := api.NewHandlers(&api.Dependencies{
		Store:    store,
		Sessions: sessions,
		Scene:    scene.NewGraph(),
		Ledger:   ledger,
		Events:   api.NewEventHub(cfg.Advanced.WebSocketMaxMessageSize, logger),
		Export: api.ExportDefaults{
			ThumbSize:  cfg.Export.DefaultThumbnailSize,
			Layer:      cfg.Export.DefaultLayer,
			ExportsDir: cfg.Storage.ExportsDirectory,
		},
		Logger:  logger,
		Version: Version,
	})

	e := echo.New()
	e.HideBanner = true
	api.SetupMiddleware(e, api.MiddlewareConfig{
		RequestLogging: cfg.Advanced.EnableRequestLogging,
		EnableCORS:     cfg.Server.EnableCORS,
		AllowOrigins:   cfg.Server.AllowOrigins,
		BodyLimit:      cfg.Server.BodyLimit,
	})
	api.RegisterRoutes(e, handlers)

	if web.HasEmbeddedFiles() {
		if err := web.RegisterStaticRoutes(e); err != nil {
			log.WithError(err).Warn("failed to register status page")
		}
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Layout Bridge Server                            ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.Storage.DataDirectory)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown failed")
	}
}
