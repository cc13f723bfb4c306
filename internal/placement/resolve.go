// Package placement resolves interchange records plus user overrides into
// concrete placements: final name, template, position, rotation and stacking.
// Everything here is a pure function of (record, view overrides, settings).
package placement

import "github.com/layout-bridge/backend/internal/models"

// FallbackName is used when neither a template nor the record supplies a name.
const FallbackName = "Object"

// DepthStep is the depth offset per zorder step for entities without a 2D sorting order.
const DepthStep = 0.01

// Placement is one fully resolved instantiation request.
type Placement struct {
	ZOrder   int              `json:"zorder" msgpack:"zorder"`
	Name     string           `json:"name" msgpack:"name"`
	Template *models.Template `json:"template,omitempty" msgpack:"template,omitempty"`
	X        float64          `json:"x" msgpack:"x"`
	Y        float64          `json:"y" msgpack:"y"`

	// Rotation about the view axis in degrees, already converted to the scene's sense.
	Rotation float64 `json:"rotation" msgpack:"rotation"`

	// SortingOrder applies when the entity has a 2D renderer, Depth otherwise.
	SortingOrder int     `json:"sortingOrder" msgpack:"sortingOrder"`
	Depth        float64 `json:"depth" msgpack:"depth"`
	Parent       string  `json:"parent,omitempty" msgpack:"parent,omitempty"`
	LocalFrame   bool    `json:"localFrame" msgpack:"localFrame"`
}

// ChooseTemplate returns the per-view template, else the global one, else nil.
func ChooseTemplate(v *models.PlacementView, s models.PlacementSettings) *models.Template {
	if v.Template != nil {
		return v.Template
	}
	return s.GlobalTemplate
}

// DefaultName is the name an entity gets without a custom name:
// per-view template > global template > record name > FallbackName.
func DefaultName(v *models.PlacementView, s models.PlacementSettings) string {
	if v.Template != nil {
		return v.Template.Name
	}
	if s.GlobalTemplate != nil {
		return s.GlobalTemplate.Name
	}
	if v.Object.Name != "" {
		return v.Object.Name
	}
	return FallbackName
}

// FinalName applies the custom name when it is enabled and non-empty.
func FinalName(v *models.PlacementView, s models.PlacementSettings) string {
	if v.UseCustomName && v.CustomName != "" {
		return v.CustomName
	}
	return DefaultName(v, s)
}

// Position scales the record position into scene units, flipping y when asked.
func Position(obj models.LayoutObject, s models.PlacementSettings) (float64, float64) {
	x := obj.X * s.PositionScale
	y := obj.Y * s.PositionScale
	if s.FlipY {
		y = -y
	}
	return x, y
}

// Resolve turns one view into a placement. ok is false when the view is not to be created.
func Resolve(v *models.PlacementView, s models.PlacementSettings) (p Placement, ok bool) {
	if v == nil || !v.Create {
		return Placement{}, false
	}

	x, y := Position(v.Object, s)
	z := v.Object.ZOrder
	return Placement{
		ZOrder:       z,
		Name:         FinalName(v, s),
		Template:     ChooseTemplate(v, s),
		X:            x,
		Y:            y,
		Rotation:     -v.Object.Rotation,
		SortingOrder: -z,
		Depth:        -float64(z) * DepthStep,
		Parent:       s.Parent,
		LocalFrame:   s.UseLocalFrame,
	}, true
}

// Plan resolves every view in order, dropping the ones not to be created.
func Plan(views []*models.PlacementView, s models.PlacementSettings) []Placement {
	plan := make([]Placement, 0, len(views))
	for _, v := range views {
		if p, ok := Resolve(v, s); ok {
			plan = append(plan, p)
		}
	}
	return plan
}
