package importer

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layout-bridge/backend/internal/interchange"
	"github.com/layout-bridge/backend/internal/models"
	"github.com/layout-bridge/backend/internal/render"
)

func writeExport(t *testing.T) string {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "thumbnails"), 0755))
	require.NoError(t, render.WritePNG(filepath.Join(dir, "thumbnails", "tree.png"), image.NewNRGBA(image.Rect(0, 0, 64, 32))))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "thumbnails", "junk.png"), []byte("not a png"), 0644))

	path, err := interchange.WriteFile(dir, models.ExportBatch{
		Layer: "Props",
		Objects: []models.LayoutObject{
			{Name: "tree", X: 10, Y: 20, Width: 64, Height: 32, ZOrder: 0, Thumbnail: "thumbnails/tree.png"},
			{Name: "rock", ZOrder: 2, Thumbnail: "thumbnails/rock.png"},
			{Name: "junk", ZOrder: 3, Thumbnail: "thumbnails/junk.png"},
		},
	})
	require.NoError(t, err)
	return path
}

func TestLoad(t *testing.T) {
	loaded, err := New(nil).Load(writeExport(t))
	require.NoError(t, err)

	assert.Equal(t, "Props", loaded.Batch.Layer)
	require.Len(t, loaded.Views, 3)

	tree := loaded.Views[0]
	assert.True(t, tree.Create)
	assert.False(t, tree.UseCustomName)
	assert.Equal(t, "tree", tree.CustomName)
	require.NotNil(t, tree.Thumbnail)
	assert.Equal(t, 64, tree.Thumbnail.Width)
	assert.Equal(t, 32, tree.Thumbnail.Height)

	assert.Nil(t, loaded.Views[1].Thumbnail)
	assert.Nil(t, loaded.Views[2].Thumbnail)
	assert.Len(t, loaded.Warnings, 2)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := New(nil).Load(filepath.Join(dir, "export.json"))
	assert.ErrorIs(t, err, interchange.ErrNotFound)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"layer": "x", "objects": 5}`), 0644))
	_, err = New(nil).Load(bad)
	assert.ErrorIs(t, err, interchange.ErrInvalidFormat)
}
