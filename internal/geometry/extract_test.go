package geometry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layout-bridge/backend/internal/host"
	"github.com/layout-bridge/backend/internal/models"
)

type stubGeometry struct {
	bounds    models.Bounds
	boundsErr error
	rotation  float64
	rotErr    error
	rotPanic  bool
}

func (s *stubGeometry) GroupBounds(host.Group) (models.Bounds, error) {
	return s.bounds, s.boundsErr
}

func (s *stubGeometry) GroupRotation(host.Group) (float64, error) {
	if s.rotPanic {
		panic("rotation not supported")
	}
	return s.rotation, s.rotErr
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "slash and space", in: "A/B C", want: "A_B_C"},
		{name: "allowed chars kept", in: "tree_01-a", want: "tree_01-a"},
		{name: "dots and quotes", in: `a.b"c`, want: "a_b_c"},
		{name: "non ascii", in: "Ä", want: "_"},
		{name: "empty", in: "", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeName(tc.in))
		})
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Group_2", DisplayName("", 2))
	assert.Equal(t, "Door", DisplayName("Door", 2))
	assert.Equal(t, "Group_2", SanitizeName(DisplayName("", 2)))
}

func TestScalePercent(t *testing.T) {
	assert.InDelta(t, 50.0, ScalePercent(128, 256), 1e-9)
	assert.InDelta(t, 200.0, ScalePercent(128, 64), 1e-9)
}

func TestEligible(t *testing.T) {
	assert.Equal(t, SkipLocked, Eligible(host.Group{Locked: true, Children: 1}))
	assert.Equal(t, SkipHidden, Eligible(host.Group{Hidden: true, Children: 1}))
	assert.Equal(t, SkipEmpty, Eligible(host.Group{}))
	assert.Equal(t, SkipNone, Eligible(host.Group{Children: 3}))
}

func TestExtract(t *testing.T) {
	frame := models.Bounds{Left: 10, Top: 500, Right: 610, Bottom: 0}
	geo := &stubGeometry{
		bounds:   models.Bounds{Left: 110, Top: 400, Right: 210, Bottom: 350},
		rotation: 30,
	}

	ex, reason := Extract(geo, host.Group{Index: 4, Name: "A/B C", Children: 2}, frame)
	require.Equal(t, SkipNone, reason)

	assert.Equal(t, "A/B C", ex.Object.Name)
	assert.Equal(t, "A_B_C", ex.SafeName)
	assert.InDelta(t, 100.0, ex.Object.Width, 1e-9)
	assert.InDelta(t, 50.0, ex.Object.Height, 1e-9)
	// center (160, 375): x = 160-10, y = 500-375
	assert.InDelta(t, 150.0, ex.Object.X, 1e-9)
	assert.InDelta(t, 125.0, ex.Object.Y, 1e-9)
	assert.InDelta(t, 30.0, ex.Object.Rotation, 1e-9)
	assert.Equal(t, 4, ex.Object.ZOrder)
	assert.InDelta(t, 100.0, ex.MaxDim, 1e-9)
	assert.Empty(t, ex.Object.Thumbnail)
}

func TestExtract_Skips(t *testing.T) {
	frame := models.Bounds{}
	g := host.Group{Children: 1}

	_, reason := Extract(&stubGeometry{boundsErr: errors.New("no bounds")}, g, frame)
	assert.Equal(t, SkipNoBounds, reason)

	_, reason = Extract(&stubGeometry{bounds: models.Bounds{Left: 5, Top: 5, Right: 5, Bottom: 5}}, g, frame)
	assert.Equal(t, SkipDegenerate, reason)

	_, reason = Extract(&stubGeometry{}, host.Group{Locked: true, Children: 1}, frame)
	assert.Equal(t, SkipLocked, reason)
}

func TestExtract_RotationFailureDefaultsToZero(t *testing.T) {
	g := host.Group{Children: 1}
	b := models.Bounds{Left: 0, Top: 10, Right: 10, Bottom: 0}

	ex, reason := Extract(&stubGeometry{bounds: b, rotErr: errors.New("unreadable")}, g, models.Bounds{})
	require.Equal(t, SkipNone, reason)
	assert.Zero(t, ex.Object.Rotation)

	ex, reason = Extract(&stubGeometry{bounds: b, rotPanic: true}, g, models.Bounds{})
	require.Equal(t, SkipNone, reason)
	assert.Zero(t, ex.Object.Rotation)
}

func TestExtract_EmptyNameUsesIndex(t *testing.T) {
	geo := &stubGeometry{bounds: models.Bounds{Left: 0, Top: 10, Right: 10, Bottom: 0}}
	ex, reason := Extract(geo, host.Group{Index: 2, Children: 1}, models.Bounds{})
	require.Equal(t, SkipNone, reason)
	assert.Equal(t, "Group_2", ex.Object.Name)
	assert.Equal(t, "Group_2", ex.SafeName)
}
