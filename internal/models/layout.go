package models

// Bounds is an axis-aligned rectangle in document space.
// The vertical axis grows upward, so Top >= Bottom for a well-formed box.
type Bounds struct {
	Left   float64 `json:"left" msgpack:"left"`
	Top    float64 `json:"top" msgpack:"top"`
	Right  float64 `json:"right" msgpack:"right"`
	Bottom float64 `json:"bottom" msgpack:"bottom"`
}

// Width returns Right-Left.
func (b Bounds) Width() float64 {
	return b.Right - b.Left
}

// Height returns Top-Bottom.
func (b Bounds) Height() float64 {
	return b.Top - b.Bottom
}

// Union returns the smallest box containing both b and o.
func (b Bounds) Union(o Bounds) Bounds {
	return Bounds{
		Left:   min(b.Left, o.Left),
		Top:    max(b.Top, o.Top),
		Right:  max(b.Right, o.Right),
		Bottom: min(b.Bottom, o.Bottom),
	}
}

// LayoutObject is one record of the interchange document.
// Position is the group center measured from the reference frame's top-left corner,
// with y growing downward from the frame top.
type LayoutObject struct {
	Name      string  `json:"name" msgpack:"name"`
	X         float64 `json:"x" msgpack:"x"`
	Y         float64 `json:"y" msgpack:"y"`
	Width     float64 `json:"width" msgpack:"width"`
	Height    float64 `json:"height" msgpack:"height"`
	Rotation  float64 `json:"rotation" msgpack:"rotation"` // degrees, 0 when unreadable
	ZOrder    int     `json:"zorder" msgpack:"zorder"`     // original enumeration index, 0 = back
	Thumbnail string  `json:"thumbnail" msgpack:"thumbnail"`
}

// ExportBatch is the whole interchange document produced by one export run.
type ExportBatch struct {
	Layer   string         `json:"layer" msgpack:"layer"`
	Objects []LayoutObject `json:"objects" msgpack:"objects"`
}

// ExportSummary reports the outcome of an export run.
type ExportSummary struct {
	Layer           string `json:"layer"`
	ThumbnailSize   int    `json:"thumbnailSize"`
	Exported        int    `json:"exported"`
	Skipped         int    `json:"skipped"`
	InterchangePath string `json:"interchangePath"`
	ThumbnailDir    string `json:"thumbnailDir"`
}
