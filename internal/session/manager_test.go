package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layout-bridge/backend/internal/interchange"
	"github.com/layout-bridge/backend/internal/models"
	"github.com/layout-bridge/backend/internal/overrides"
	"github.com/layout-bridge/backend/internal/scene"
)

func writeExport(t *testing.T, dir string) string {
	path, err := interchange.WriteFile(dir, models.ExportBatch{
		Layer: "Props",
		Objects: []models.LayoutObject{
			{Name: "tree", X: 200, Y: 100, ZOrder: 0, Thumbnail: "thumbnails/tree.png"},
			{Name: "rock", X: 400, Y: 300, ZOrder: 2, Thumbnail: "thumbnails/rock.png"},
		},
	})
	require.NoError(t, err)
	return path
}

func TestLoadAndCreate(t *testing.T) {
	m := NewManager(Options{})
	path := writeExport(t, t.TempDir())

	sess, err := m.Load(path)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusLoaded, sess.Status)
	require.Len(t, sess.Views, 2)
	assert.Len(t, sess.Warnings, 2, "missing thumbnails are warnings")
	assert.Equal(t, models.DefaultPositionScale, sess.Settings.PositionScale)

	off := false
	_, err = m.UpdateView(sess.ID, 2, models.ViewPatch{Create: &off})
	require.NoError(t, err)

	g := scene.NewGraph()
	created, err := m.Create(sess.ID, g)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, 1, g.UndoDepth())

	got, ok := m.Get(sess.ID)
	require.True(t, ok)
	assert.Equal(t, models.SessionStatusCreated, got.Status)
	assert.Equal(t, 1, got.Created)
}

func TestGetReturnsCopy(t *testing.T) {
	m := NewManager(Options{})
	sess, err := m.Load(writeExport(t, t.TempDir()))
	require.NoError(t, err)

	sess.Views[0].Create = false
	got, _ := m.Get(sess.ID)
	assert.True(t, got.Views[0].Create)
}

func TestUpdateViewErrors(t *testing.T) {
	m := NewManager(Options{Templates: []models.Template{{Name: "Crate"}}})
	sess, err := m.Load(writeExport(t, t.TempDir()))
	require.NoError(t, err)

	_, err = m.UpdateView("nope", 0, models.ViewPatch{})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = m.UpdateView(sess.ID, 7, models.ViewPatch{})
	assert.ErrorIs(t, err, ErrObjectNotFound)

	missing := "Barrel"
	_, err = m.UpdateView(sess.ID, 0, models.ViewPatch{Template: &missing})
	assert.ErrorIs(t, err, overrides.ErrUnknownTemplate)

	crate := "Crate"
	v, err := m.UpdateView(sess.ID, 0, models.ViewPatch{Template: &crate})
	require.NoError(t, err)
	require.NotNil(t, v.Template)
	assert.Equal(t, "Crate", v.Template.Name)
}

func TestReloadFailureClearsState(t *testing.T) {
	dir := t.TempDir()
	path := writeExport(t, dir)
	m := NewManager(Options{})

	sess, err := m.Load(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))
	got, err := m.Reload(sess.ID, "")
	assert.ErrorIs(t, err, interchange.ErrInvalidFormat)
	assert.Equal(t, models.SessionStatusError, got.Status)
	assert.Nil(t, got.Batch)
	assert.Empty(t, got.Views)
	assert.NotEmpty(t, got.Error)

	_, err = m.Create(sess.ID, scene.NewGraph())
	assert.ErrorIs(t, err, ErrNothingLoaded)

	writeExport(t, dir)
	got, err = m.Reload(sess.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusLoaded, got.Status)
	assert.Len(t, got.Views, 2)
}

func TestApplyOverrides(t *testing.T) {
	m := NewManager(Options{})
	sess, err := m.Load(writeExport(t, t.TempDir()))
	require.NoError(t, err)

	doc, err := overrides.Parse(strings.NewReader(`
templates:
  - name: Sprite
    sprite: true
settings:
  global_template: Sprite
  flip_y: false
objects:
  - name: tree
    use_custom_name: true
    custom_name: Oak
`))
	require.NoError(t, err)

	got, err := m.ApplyOverrides(sess.ID, doc)
	require.NoError(t, err)
	assert.False(t, got.Settings.FlipY)
	require.NotNil(t, got.Settings.GlobalTemplate)
	assert.True(t, got.Views[0].UseCustomName)

	plan, err := m.Plan(sess.ID)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, "Oak", plan[0].Name)
	assert.Equal(t, "Sprite", plan[1].Name)

	sprite := "Sprite"
	_, err = m.UpdateView(sess.ID, 2, models.ViewPatch{Template: &sprite})
	assert.NoError(t, err, "templates from the overrides document become available")
}

func TestMaxSessionsEvictsOldest(t *testing.T) {
	m := NewManager(Options{MaxSessions: 2})
	path := writeExport(t, t.TempDir())

	first, err := m.Load(path)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = m.Load(path)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = m.Load(path)
	require.NoError(t, err)

	assert.Len(t, m.List(), 2)
	_, ok := m.Get(first.ID)
	assert.False(t, ok)
}

func TestCleanupAndDelete(t *testing.T) {
	m := NewManager(Options{})
	sess, err := m.Load(writeExport(t, t.TempDir()))
	require.NoError(t, err)

	assert.Zero(t, m.CleanupOldSessions(time.Hour))
	assert.Equal(t, 1, m.CleanupOldSessions(-time.Second))
	assert.False(t, m.Delete(sess.ID))

	sess, err = m.Load(writeExport(t, t.TempDir()))
	require.NoError(t, err)
	assert.True(t, m.Delete(sess.ID))
}

func TestLoadMissingFile(t *testing.T) {
	m := NewManager(Options{})
	_, err := m.Load(filepath.Join(t.TempDir(), "export.json"))
	assert.ErrorIs(t, err, interchange.ErrNotFound)
	assert.Empty(t, m.List())
}
