package document

import (
	"encoding/xml"
	"fmt"
	"image/color"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/layout-bridge/backend/internal/models"
	"github.com/layout-bridge/backend/internal/render"
)

// DocumentXML is the raw structure of a document description.
type DocumentXML struct {
	XMLName   xml.Name          `xml:"Document"`
	Name      string            `xml:"name,attr"`
	Artboards []ArtboardElement `xml:"Artboard"`
	Layers    []LayerElement    `xml:"Layer"`
}

type ArtboardElement struct {
	Left   float64 `xml:"left,attr"`
	Top    float64 `xml:"top,attr"`
	Right  float64 `xml:"right,attr"`
	Bottom float64 `xml:"bottom,attr"`
	Active bool    `xml:"active,attr"`
}

type LayerElement struct {
	Name    string        `xml:"name,attr"`
	Visible *bool         `xml:"visible,attr"`
	Items   []ItemElement `xml:",any"`
}

// ItemElement is either a <Group> holding paths or a loose <Path>.
type ItemElement struct {
	XMLName  xml.Name
	Name     string        `xml:"name,attr"`
	Locked   bool          `xml:"locked,attr"`
	Hidden   bool          `xml:"hidden,attr"`
	Rotation string        `xml:"rotation,attr"`
	Children []PathElement `xml:"Path"`

	PathElement
}

type PathElement struct {
	Left   *float64 `xml:"left,attr"`
	Top    *float64 `xml:"top,attr"`
	Right  *float64 `xml:"right,attr"`
	Bottom *float64 `xml:"bottom,attr"`
	Points string   `xml:"points,attr"`
	Fill   string   `xml:"fill,attr"`
	Hidden bool     `xml:"hidden,attr"`
}

// LoadFile parses the document description at path.
func LoadFile(path string) (*State, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseXML(file)
}

// ParseXML builds a State from a document description.
func ParseXML(r io.Reader) (*State, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var raw DocumentXML
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}

	s := &State{Name: raw.Name}
	for i, ab := range raw.Artboards {
		s.frames = append(s.frames, models.Bounds{Left: ab.Left, Top: ab.Top, Right: ab.Right, Bottom: ab.Bottom})
		if ab.Active {
			s.active = i
		}
	}

	for li, le := range raw.Layers {
		l := &layer{name: le.Name, visible: le.Visible == nil || *le.Visible}
		for ii, ie := range le.Items {
			it, err := parseItem(ie)
			if err != nil {
				return nil, fmt.Errorf("layer %d item %d: %w", li, ii, err)
			}
			l.items = append(l.items, it)
		}
		s.layers = append(s.layers, l)
	}
	return s, nil
}

func parseItem(ie ItemElement) (*item, error) {
	switch ie.XMLName.Local {
	case "Group":
		it := &item{
			name:     ie.Name,
			group:    true,
			locked:   ie.Locked,
			hidden:   ie.Hidden,
			rotation: strings.TrimSpace(ie.Rotation),
		}
		for ci, pe := range ie.Children {
			p, err := parsePath(pe)
			if err != nil {
				return nil, fmt.Errorf("path %d: %w", ci, err)
			}
			it.paths = append(it.paths, p)
		}
		return it, nil
	case "Path":
		p, err := parsePath(ie.PathElement)
		if err != nil {
			return nil, err
		}
		return &item{name: ie.Name, locked: ie.Locked, hidden: ie.Hidden, paths: []path{p}}, nil
	}
	return nil, fmt.Errorf("unknown element <%s>", ie.XMLName.Local)
}

func parsePath(pe PathElement) (path, error) {
	fill, err := ParseColor(pe.Fill)
	if err != nil {
		return path{}, err
	}

	if pe.Points != "" {
		pts, err := parsePoints(pe.Points)
		if err != nil {
			return path{}, err
		}
		return newPath(render.Shape{Points: pts, Fill: fill}, pe.Hidden), nil
	}

	if pe.Left == nil || pe.Top == nil || pe.Right == nil || pe.Bottom == nil {
		return path{}, fmt.Errorf("path needs points or left/top/right/bottom")
	}
	b := models.Bounds{Left: *pe.Left, Top: *pe.Top, Right: *pe.Right, Bottom: *pe.Bottom}
	return newPath(render.RectShape(b, fill), pe.Hidden), nil
}

// parsePoints reads "x,y x,y ..." pairs.
func parsePoints(s string) ([]render.Point, error) {
	var pts []render.Point
	for _, pair := range strings.Fields(s) {
		xs, ys, ok := strings.Cut(pair, ",")
		if !ok {
			return nil, fmt.Errorf("invalid point %q", pair)
		}
		x, err := strconv.ParseFloat(xs, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid point %q: %w", pair, err)
		}
		y, err := strconv.ParseFloat(ys, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid point %q: %w", pair, err)
		}
		pts = append(pts, render.Point{X: x, Y: y})
	}
	if len(pts) < 3 {
		return nil, fmt.Errorf("polygon needs at least 3 points, got %d", len(pts))
	}
	return pts, nil
}

// DefaultFill is used for paths without a fill attribute.
var DefaultFill = color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}

// ParseColor reads #rgb, #rrggbb or #rrggbbaa.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultFill, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
