// Package config provides XML-based configuration for the layout bridge.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/layout-bridge/backend/internal/models"
)

// DefaultFileName is the config file looked up next to the binary.
const DefaultFileName = "LayoutBridge.config"

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"LayoutBridge"`

	Server     ServerConfig     `xml:"Server"`
	Storage    StorageConfig    `xml:"Storage"`
	Export     ExportConfig     `xml:"Export"`
	Import     ImportConfig     `xml:"Import"`
	Processing ProcessingConfig `xml:"Processing"`
	Advanced   AdvancedConfig   `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains document, export and ledger locations
type StorageConfig struct {
	DataDirectory      string `xml:"DataDirectory"`
	DocumentsDirectory string `xml:"DocumentsDirectory"`
	ExportsDirectory   string `xml:"ExportsDirectory"`
	CatalogPath        string `xml:"CatalogPath"`
	EnableCatalog      bool   `xml:"EnableCatalog"`
}

// ExportConfig contains exporter defaults
type ExportConfig struct {
	DefaultThumbnailSize int    `xml:"DefaultThumbnailSize"`
	AllowedSizes         string `xml:"AllowedThumbnailSizes"`
	DefaultLayer         int    `xml:"DefaultLayer"`
}

// TemplateConfig declares a template available to every import session
type TemplateConfig struct {
	Name   string `xml:"name,attr"`
	Sprite bool   `xml:"sprite,attr"`
}

// ImportConfig contains placement defaults
type ImportConfig struct {
	PositionScale float64          `xml:"PositionScale"`
	FlipY         bool             `xml:"FlipY"`
	UseLocalFrame bool             `xml:"UseLocalFrame"`
	Templates     []TemplateConfig `xml:"Templates>Template"`
}

// ProcessingConfig contains session settings
type ProcessingConfig struct {
	MaxSessions            int `xml:"MaxSessions"`
	SessionTimeoutMinutes  int `xml:"SessionTimeoutMinutes"`
	CleanupIntervalMinutes int `xml:"CleanupIntervalMinutes"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel                string `xml:"LogLevel"`
	EnableRequestLogging    bool   `xml:"EnableRequestLogging"`
	WebSocketMaxMessageSize int    `xml:"WebSocketMaxMessageSizeKB"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 120,
			IdleTimeout:  120,
			BodyLimit:    "64M",
		},
		Storage: StorageConfig{
			DataDirectory:      "./data",
			DocumentsDirectory: "./data/documents",
			ExportsDirectory:   "./data/exports",
			CatalogPath:        "./data/catalog.duckdb",
			EnableCatalog:      true,
		},
		Export: ExportConfig{
			DefaultThumbnailSize: 128,
			AllowedSizes:         "64,128,256",
			DefaultLayer:         0,
		},
		Import: ImportConfig{
			PositionScale: models.DefaultPositionScale,
			FlipY:         true,
			UseLocalFrame: false,
		},
		Processing: ProcessingConfig{
			MaxSessions:            10,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
		},
		Advanced: AdvancedConfig{
			LogLevel:                "info",
			EnableRequestLogging:    true,
			WebSocketMaxMessageSize: 64,
		},
	}
}

// LoadConfig loads configuration from an XML file, creating it with defaults when absent.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Layout Bridge Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks values that would make the exporter or importer misbehave.
func (c *AppConfig) Validate() error {
	if c.Export.DefaultThumbnailSize <= 0 {
		return fmt.Errorf("Export.DefaultThumbnailSize must be positive, got %d", c.Export.DefaultThumbnailSize)
	}
	if _, err := c.ThumbnailSizes(); err != nil {
		return err
	}
	if c.Import.PositionScale == 0 {
		return fmt.Errorf("Import.PositionScale must not be zero")
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// DATA_DIR moves every storage location that still lives under the old data directory.
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		old := c.Storage.DataDirectory
		c.Storage.DataDirectory = dataDir
		rebase := func(p string) string {
			if rel, err := filepath.Rel(old, p); err == nil && !strings.HasPrefix(rel, "..") {
				return filepath.Join(dataDir, rel)
			}
			return p
		}
		c.Storage.DocumentsDirectory = rebase(c.Storage.DocumentsDirectory)
		c.Storage.ExportsDirectory = rebase(c.Storage.ExportsDirectory)
		c.Storage.CatalogPath = rebase(c.Storage.CatalogPath)
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{
		&c.Storage.DataDirectory,
		&c.Storage.DocumentsDirectory,
		&c.Storage.ExportsDirectory,
		&c.Storage.CatalogPath,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// ThumbnailSizes parses the allowed thumbnail sizes.
func (c *AppConfig) ThumbnailSizes() ([]int, error) {
	var sizes []int
	for _, part := range strings.Split(c.Export.AllowedSizes, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid thumbnail size %q", part)
		}
		sizes = append(sizes, n)
	}
	return sizes, nil
}

// PlacementSettings returns the import defaults as placement settings.
func (c *AppConfig) PlacementSettings() models.PlacementSettings {
	return models.PlacementSettings{
		PositionScale: c.Import.PositionScale,
		FlipY:         c.Import.FlipY,
		UseLocalFrame: c.Import.UseLocalFrame,
	}
}

// Templates returns the configured templates.
func (c *AppConfig) Templates() []models.Template {
	out := make([]models.Template, 0, len(c.Import.Templates))
	for _, t := range c.Import.Templates {
		out = append(out, models.Template{Name: t.Name, Sprite: t.Sprite})
	}
	return out
}

// SessionTimeout returns how long idle import sessions are kept.
func (c *AppConfig) SessionTimeout() time.Duration {
	return time.Duration(c.Processing.SessionTimeoutMinutes) * time.Minute
}

// CleanupInterval returns how often idle sessions are swept, at least once a minute.
func (c *AppConfig) CleanupInterval() time.Duration {
	if c.Processing.CleanupIntervalMinutes <= 0 {
		return time.Minute
	}
	return time.Duration(c.Processing.CleanupIntervalMinutes) * time.Minute
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.DocumentsDirectory,
		c.Storage.ExportsDirectory,
	}
	if c.Storage.EnableCatalog && c.Storage.CatalogPath != "" {
		dirs = append(dirs, filepath.Dir(c.Storage.CatalogPath))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
