package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layout-bridge/backend/internal/models"
	"github.com/layout-bridge/backend/internal/placement"
)

// countingHost wraps a Graph and counts every call that reaches the host.
type countingHost struct {
	*Graph
	calls int
}

func (c *countingHost) Lookup(ref string) (string, error) {
	c.calls++
	return c.Graph.Lookup(ref)
}

func (c *countingHost) CreateEntity(name string, tmpl *models.Template) (string, error) {
	c.calls++
	return c.Graph.CreateEntity(name, tmpl)
}

func (c *countingHost) BeginUndoGroup(label string) {
	c.calls++
	c.Graph.BeginUndoGroup(label)
}

func (c *countingHost) MarkDirty() {
	c.calls++
	c.Graph.MarkDirty()
}

func resolve(t *testing.T, obj models.LayoutObject, s models.PlacementSettings) placement.Placement {
	p, ok := placement.Resolve(models.NewPlacementView(obj), s)
	require.True(t, ok)
	return p
}

func TestApplyEmptyPlanTouchesNothing(t *testing.T) {
	h := &countingHost{Graph: NewGraph()}
	in := NewInstantiator(h, nil)

	v := models.NewPlacementView(models.LayoutObject{Name: "a"})
	v.Create = false
	plan := placement.Plan([]*models.PlacementView{v}, models.DefaultPlacementSettings())

	ids, err := in.Apply(plan)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Zero(t, h.calls)
	assert.False(t, h.Dirty())
	assert.Zero(t, h.UndoDepth())
}

func TestDepthOffsetWithoutTemplate(t *testing.T) {
	g := NewGraph()
	p := resolve(t, models.LayoutObject{Name: "rock", X: 200, Y: 100, ZOrder: 3},
		models.PlacementSettings{PositionScale: 0.01, FlipY: true})

	ids, err := NewInstantiator(g, nil).Apply([]placement.Placement{p})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	e, err := g.Entity(ids[0])
	require.NoError(t, err)
	assert.Equal(t, "rock", e.Name)
	assert.InDelta(t, 2.0, e.WorldPosition[0], 1e-5)
	assert.InDelta(t, -1.0, e.WorldPosition[1], 1e-5)
	assert.InDelta(t, -0.03, e.WorldPosition[2], 1e-6)
	assert.Nil(t, e.SortingOrder)
}

func TestSortingOrderWithSpriteTemplate(t *testing.T) {
	g := NewGraph()
	s := models.DefaultPlacementSettings()
	s.GlobalTemplate = &models.Template{Name: "TreeSprite", Sprite: true}
	p := resolve(t, models.LayoutObject{Name: "oak", ZOrder: 3}, s)

	ids, err := NewInstantiator(g, nil).Apply([]placement.Placement{p})
	require.NoError(t, err)

	e, err := g.Entity(ids[0])
	require.NoError(t, err)
	assert.Equal(t, "TreeSprite", e.Name)
	assert.Equal(t, "TreeSprite", e.Template)
	require.NotNil(t, e.SortingOrder)
	assert.Equal(t, -3, *e.SortingOrder)
	assert.Zero(t, e.WorldPosition[2])
}

func TestRotationIsNegated(t *testing.T) {
	g := NewGraph()
	p := resolve(t, models.LayoutObject{Rotation: 30}, models.DefaultPlacementSettings())

	ids, err := NewInstantiator(g, nil).Apply([]placement.Placement{p})
	require.NoError(t, err)

	e, err := g.Entity(ids[0])
	require.NoError(t, err)
	assert.InDelta(t, -30.0, e.Rotation, 1e-3)
}

func TestParentModes(t *testing.T) {
	obj := models.LayoutObject{Name: "lamp", X: 100, Y: 50}

	tests := []struct {
		name      string
		local     bool
		wantLocal Vec3
		wantWorld Vec3
	}{
		// Parent at (10,0,0), rotated 90 degrees, scaled 2.
		{name: "local frame", local: true, wantLocal: Vec3{1, 0.5, 0}, wantWorld: Vec3{9, 2, 0}},
		{name: "parent space to world", local: false, wantLocal: Vec3{1, 0.5, 0}, wantWorld: Vec3{9, 2, 0}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGraph()
			_, err := g.AddNode("Level", "", Vec3{10, 0, 0}, 90, Vec3{2, 2, 2})
			require.NoError(t, err)

			s := models.PlacementSettings{PositionScale: 0.01, Parent: "Level", UseLocalFrame: tc.local}
			p := resolve(t, obj, s)

			ids, err := NewInstantiator(g, nil).Apply([]placement.Placement{p})
			require.NoError(t, err)

			e, err := g.Entity(ids[0])
			require.NoError(t, err)
			assert.NotEmpty(t, e.Parent)
			for i := 0; i < 2; i++ {
				assert.InDelta(t, tc.wantLocal[i], e.LocalPosition[i], 1e-4)
				assert.InDelta(t, tc.wantWorld[i], e.WorldPosition[i], 1e-4)
			}
			assert.InDelta(t, 0.0, e.WorldPosition[2], 1e-6)
			assert.InDelta(t, 0.0, e.Rotation, 1e-3)
		})
	}
}

func TestUnknownParentAbortsBeforeCreating(t *testing.T) {
	g := NewGraph()
	s := models.DefaultPlacementSettings()
	s.Parent = "missing"
	p := resolve(t, models.LayoutObject{Name: "a"}, s)

	_, err := NewInstantiator(g, nil).Apply([]placement.Placement{p})
	assert.ErrorIs(t, err, ErrEntityNotFound)
	assert.Zero(t, g.Len())
	assert.False(t, g.Dirty())
}

func TestApplyIsOneUndoGroup(t *testing.T) {
	g := NewGraph()
	s := models.DefaultPlacementSettings()
	plan := []placement.Placement{
		resolve(t, models.LayoutObject{Name: "a", ZOrder: 0}, s),
		resolve(t, models.LayoutObject{Name: "b", ZOrder: 1}, s),
		resolve(t, models.LayoutObject{Name: "c", ZOrder: 2}, s),
	}

	ids, err := NewInstantiator(g, nil).Apply(plan)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.True(t, g.Dirty())
	assert.Equal(t, 1, g.UndoDepth())

	label, removed, err := g.Undo()
	require.NoError(t, err)
	assert.Equal(t, UndoLabel, label)
	assert.Equal(t, 3, removed)
	assert.Zero(t, g.Len())

	_, _, err = g.Undo()
	assert.ErrorIs(t, err, ErrNothingToUndo)
}
