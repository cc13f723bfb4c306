// Package host declares the capabilities the exporter needs from a vector
// document host. Concrete bindings (the in-memory document adapter, test
// fakes) implement these interfaces; the core never touches host globals.
package host

import "github.com/layout-bridge/backend/internal/models"

// Group identifies one top-level group of a layer.
type Group struct {
	Layer    int // layer index
	Item     int // index among all page items of the layer
	Index    int // enumeration index among the layer's groups, 0 = bottom of stack
	Name     string
	Locked   bool
	Hidden   bool
	Children int // drawable children
}

// Document is the read-only view of the open document.
type Document interface {
	Layers() int
	LayerName(layer int) string
	Groups(layer int) []Group
	// ActiveFrame returns the index and bounds of the active reference frame.
	ActiveFrame() (int, models.Bounds, error)
}

// GeometryHost answers per-group geometry queries.
type GeometryHost interface {
	GroupBounds(g Group) (models.Bounds, error)
	GroupRotation(g Group) (float64, error)
}

// VisibilityHost exposes the mutable visibility state of the document.
type VisibilityHost interface {
	Layers() int
	LayerVisible(layer int) (bool, error)
	SetLayerVisible(layer int, visible bool) error
	Items(layer int) int
	ItemHidden(layer, item int) (bool, error)
	SetItemHidden(layer, item int, hidden bool) error
}

// FrameHost manages reference frames (artboards).
type FrameHost interface {
	Frames() int
	ActiveFrameIndex() (int, error)
	SetActiveFrame(index int) error
	AddFrame(b models.Bounds) (int, error)
	RemoveFrame(index int) error
}

// RenderOptions controls a bitmap render of the active frame.
type RenderOptions struct {
	ScalePercent float64 // uniform horizontal and vertical scale
	Transparent  bool
	ClipToFrame  bool
}

// RenderHost writes a bitmap of the currently visible content.
type RenderHost interface {
	RenderPNG(path string, opts RenderOptions) error
}

// ExportHost is everything one export run needs.
type ExportHost interface {
	Document
	GeometryHost
	VisibilityHost
	FrameHost
	RenderHost
}
