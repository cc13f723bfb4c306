package models

// Template is a reusable blueprint that can be instantiated instead of a bare entity.
type Template struct {
	Name string `json:"name" yaml:"name" msgpack:"name"`
	// Sprite marks templates whose instances carry a 2D renderer with a sorting order.
	Sprite bool `json:"sprite" yaml:"sprite" msgpack:"sprite"`
}

// Thumbnail describes a preview image found next to the interchange document.
type Thumbnail struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// PlacementView wraps one LayoutObject with session-only user overrides.
type PlacementView struct {
	Object        LayoutObject `json:"object"`
	Create        bool         `json:"create"`
	UseCustomName bool         `json:"useCustomName"`
	CustomName    string       `json:"customName"`
	Template      *Template    `json:"template,omitempty"`
	Thumbnail     *Thumbnail   `json:"thumbnail,omitempty"`
}

// NewPlacementView returns a view with the defaults a freshly loaded record gets.
func NewPlacementView(obj LayoutObject) *PlacementView {
	return &PlacementView{
		Object:     obj,
		Create:     true,
		CustomName: obj.Name,
	}
}

// ViewPatch is a partial update of a PlacementView. Nil fields are left untouched.
type ViewPatch struct {
	Create        *bool   `json:"create,omitempty" yaml:"create,omitempty"`
	UseCustomName *bool   `json:"useCustomName,omitempty" yaml:"use_custom_name,omitempty"`
	CustomName    *string `json:"customName,omitempty" yaml:"custom_name,omitempty"`
	Template      *string `json:"template,omitempty" yaml:"template,omitempty"` // "" clears the override
}

// PlacementSettings are the global import options applied to every view.
type PlacementSettings struct {
	GlobalTemplate *Template `json:"globalTemplate,omitempty"`
	PositionScale  float64   `json:"positionScale"`
	FlipY          bool      `json:"flipY"`
	UseLocalFrame  bool      `json:"useLocalFrame"`
	Parent         string    `json:"parent,omitempty"` // scene entity id, empty for none
}

// DefaultPositionScale maps 153.6 document units to one world unit.
const DefaultPositionScale = 0.00651041666

// DefaultPlacementSettings returns the importer defaults.
func DefaultPlacementSettings() PlacementSettings {
	return PlacementSettings{
		PositionScale: DefaultPositionScale,
		FlipY:         true,
	}
}
