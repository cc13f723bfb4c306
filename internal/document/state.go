// Package document is an in-memory vector document that implements every
// exporter host capability. It is loaded from an XML description and renders
// its own previews.
package document

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strconv"

	"github.com/layout-bridge/backend/internal/host"
	"github.com/layout-bridge/backend/internal/models"
	"github.com/layout-bridge/backend/internal/render"
)

var (
	ErrNoFrame         = errors.New("document has no active artboard")
	ErrLayerRange      = errors.New("layer index out of range")
	ErrItemRange       = errors.New("item index out of range")
	ErrFrameRange      = errors.New("artboard index out of range")
	ErrNotAGroup       = errors.New("item is not a group")
	ErrRotationUnknown = errors.New("rotation unreadable")
)

type path struct {
	shape  render.Shape
	bounds models.Bounds
	hidden bool
}

func newPath(shape render.Shape, hidden bool) path {
	b := models.Bounds{
		Left: math.Inf(1), Top: math.Inf(-1), Right: math.Inf(-1), Bottom: math.Inf(1),
	}
	for _, p := range shape.Points {
		b = b.Union(models.Bounds{Left: p.X, Top: p.Y, Right: p.X, Bottom: p.Y})
	}
	return path{shape: shape, bounds: b, hidden: hidden}
}

type item struct {
	name     string
	group    bool
	locked   bool
	hidden   bool
	rotation string
	paths    []path
}

type layer struct {
	name    string
	visible bool
	items   []*item
}

// State is a mutable document. It is not safe for concurrent use.
type State struct {
	Name   string
	frames []models.Bounds
	active int
	layers []*layer
}

// Visibility returns every layer visibility flag and every item hidden flag.
func (s *State) Visibility() ([]bool, [][]bool) {
	layers := make([]bool, len(s.layers))
	items := make([][]bool, len(s.layers))
	for i, l := range s.layers {
		layers[i] = l.visible
		items[i] = make([]bool, len(l.items))
		for j, it := range l.items {
			items[i][j] = it.hidden
		}
	}
	return layers, items
}

func (s *State) layer(i int) (*layer, error) {
	if i < 0 || i >= len(s.layers) {
		return nil, fmt.Errorf("%w: %d", ErrLayerRange, i)
	}
	return s.layers[i], nil
}

func (s *State) item(li, ii int) (*item, error) {
	l, err := s.layer(li)
	if err != nil {
		return nil, err
	}
	if ii < 0 || ii >= len(l.items) {
		return nil, fmt.Errorf("%w: %d", ErrItemRange, ii)
	}
	return l.items[ii], nil
}

func (s *State) group(g host.Group) (*item, error) {
	it, err := s.item(g.Layer, g.Item)
	if err != nil {
		return nil, err
	}
	if !it.group {
		return nil, ErrNotAGroup
	}
	return it, nil
}

func (s *State) Layers() int {
	return len(s.layers)
}

func (s *State) LayerName(i int) string {
	l, err := s.layer(i)
	if err != nil {
		return ""
	}
	return l.name
}

// Groups lists the top-level groups of a layer in declaration order, bottom first.
func (s *State) Groups(li int) []host.Group {
	l, err := s.layer(li)
	if err != nil {
		return nil
	}
	var groups []host.Group
	for ii, it := range l.items {
		if !it.group {
			continue
		}
		groups = append(groups, host.Group{
			Layer:    li,
			Item:     ii,
			Index:    len(groups),
			Name:     it.name,
			Locked:   it.locked,
			Hidden:   it.hidden,
			Children: len(it.paths),
		})
	}
	return groups
}

func (s *State) ActiveFrame() (int, models.Bounds, error) {
	if s.active < 0 || s.active >= len(s.frames) {
		return 0, models.Bounds{}, ErrNoFrame
	}
	return s.active, s.frames[s.active], nil
}

// GroupBounds is the union of the group's path bounds.
func (s *State) GroupBounds(g host.Group) (models.Bounds, error) {
	it, err := s.group(g)
	if err != nil {
		return models.Bounds{}, err
	}
	if len(it.paths) == 0 {
		return models.Bounds{}, errors.New("group has no children")
	}
	b := it.paths[0].bounds
	for _, p := range it.paths[1:] {
		b = b.Union(p.bounds)
	}
	return b, nil
}

func (s *State) GroupRotation(g host.Group) (float64, error) {
	it, err := s.group(g)
	if err != nil {
		return 0, err
	}
	if it.rotation == "" {
		return 0, nil
	}
	rot, err := strconv.ParseFloat(it.rotation, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrRotationUnknown, it.rotation)
	}
	return rot, nil
}

func (s *State) LayerVisible(i int) (bool, error) {
	l, err := s.layer(i)
	if err != nil {
		return false, err
	}
	return l.visible, nil
}

func (s *State) SetLayerVisible(i int, visible bool) error {
	l, err := s.layer(i)
	if err != nil {
		return err
	}
	l.visible = visible
	return nil
}

func (s *State) Items(i int) int {
	l, err := s.layer(i)
	if err != nil {
		return 0
	}
	return len(l.items)
}

func (s *State) ItemHidden(li, ii int) (bool, error) {
	it, err := s.item(li, ii)
	if err != nil {
		return false, err
	}
	return it.hidden, nil
}

func (s *State) SetItemHidden(li, ii int, hidden bool) error {
	it, err := s.item(li, ii)
	if err != nil {
		return err
	}
	it.hidden = hidden
	return nil
}

func (s *State) Frames() int {
	return len(s.frames)
}

func (s *State) ActiveFrameIndex() (int, error) {
	if s.active < 0 || s.active >= len(s.frames) {
		return 0, ErrNoFrame
	}
	return s.active, nil
}

func (s *State) SetActiveFrame(i int) error {
	if i < 0 || i >= len(s.frames) {
		return fmt.Errorf("%w: %d", ErrFrameRange, i)
	}
	s.active = i
	return nil
}

func (s *State) AddFrame(b models.Bounds) (int, error) {
	s.frames = append(s.frames, b)
	return len(s.frames) - 1, nil
}

// RemoveFrame deletes an artboard. The active index follows the artboard it pointed at.
func (s *State) RemoveFrame(i int) error {
	if i < 0 || i >= len(s.frames) {
		return fmt.Errorf("%w: %d", ErrFrameRange, i)
	}
	s.frames = append(s.frames[:i], s.frames[i+1:]...)
	if s.active > i || s.active >= len(s.frames) {
		s.active = max(s.active-1, 0)
	}
	return nil
}

// RenderPNG rasterizes every visible path, bottom layer and bottom item first,
// clipped to the active artboard.
func (s *State) RenderPNG(out string, opts host.RenderOptions) error {
	_, frame, err := s.ActiveFrame()
	if err != nil {
		return err
	}

	var shapes []render.Shape
	for _, l := range s.layers {
		if !l.visible {
			continue
		}
		for _, it := range l.items {
			if it.hidden {
				continue
			}
			for _, p := range it.paths {
				if !p.hidden {
					shapes = append(shapes, p.shape)
				}
			}
		}
	}

	img, err := render.Rasterize(frame, shapes, render.Options{
		ScalePercent: opts.ScalePercent,
		Transparent:  opts.Transparent,
		Background:   color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
	})
	if err != nil {
		return err
	}
	return render.WritePNG(out, img)
}

var _ host.ExportHost = (*State)(nil)
