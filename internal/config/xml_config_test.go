package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layout-bridge/backend/internal/models"
)

func TestLoadConfigCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.NoError(t, err, "default config must be written")

	assert.Equal(t, 8089, cfg.Server.Port)
	assert.Equal(t, 128, cfg.Export.DefaultThumbnailSize)
	assert.Equal(t, filepath.Join(dir, "data", "documents"), cfg.Storage.DocumentsDirectory)

	sizes, err := cfg.ThumbnailSizes()
	require.NoError(t, err)
	assert.Equal(t, []int{64, 128, 256}, sizes)

	s := cfg.PlacementSettings()
	assert.Equal(t, models.DefaultPositionScale, s.PositionScale)
	assert.True(t, s.FlipY)
}

func TestLoadConfigReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	content := `<?xml version="1.0" encoding="UTF-8"?>
<LayoutBridge>
  <Server><Port>9000</Port><BindAddress>127.0.0.1</BindAddress></Server>
  <Storage><DataDirectory>/srv/bridge</DataDirectory><DocumentsDirectory>docs</DocumentsDirectory></Storage>
  <Export><DefaultThumbnailSize>256</DefaultThumbnailSize><AllowedThumbnailSizes>256, 512</AllowedThumbnailSizes></Export>
  <Import>
    <PositionScale>0.01</PositionScale>
    <FlipY>false</FlipY>
    <Templates>
      <Template name="TreeSprite" sprite="true"/>
      <Template name="Marker"/>
    </Templates>
  </Import>
  <Advanced><LogLevel>debug</LogLevel></Advanced>
</LayoutBridge>`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.GetServerAddr())
	assert.Equal(t, "/srv/bridge", cfg.Storage.DataDirectory)
	assert.Equal(t, filepath.Join(dir, "docs"), cfg.Storage.DocumentsDirectory)
	assert.Equal(t, "debug", cfg.Advanced.LogLevel)
	// Unset values keep their defaults.
	assert.Equal(t, 10, cfg.Processing.MaxSessions)

	sizes, err := cfg.ThumbnailSizes()
	require.NoError(t, err)
	assert.Equal(t, []int{256, 512}, sizes)

	assert.Equal(t, []models.Template{{Name: "TreeSprite", Sprite: true}, {Name: "Marker"}}, cfg.Templates())
	assert.False(t, cfg.PlacementSettings().FlipY)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "7777")
	t.Setenv("DATA_DIR", "/var/lib/bridge")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), DefaultFileName))
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "/var/lib/bridge", cfg.Storage.DataDirectory)
	assert.Equal(t, "/var/lib/bridge/documents", cfg.Storage.DocumentsDirectory)
	assert.Equal(t, "/var/lib/bridge/catalog.duckdb", cfg.Storage.CatalogPath)
	assert.Equal(t, "warn", cfg.Advanced.LogLevel)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Export.AllowedSizes = "64,abc"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Export.DefaultThumbnailSize = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Import.PositionScale = 0
	assert.Error(t, cfg.Validate())
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.resolvePaths(dir)

	require.NoError(t, cfg.EnsureDirectories())
	for _, d := range []string{cfg.Storage.DocumentsDirectory, cfg.Storage.ExportsDirectory} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
