package testutil

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/layout-bridge/backend/internal/host"
	"github.com/layout-bridge/backend/internal/models"
)

// FakeItem is one page item of a FakeLayer.
type FakeItem struct {
	Name        string
	Group       bool
	Hidden      bool
	Locked      bool
	Children    int
	Bounds      models.Bounds
	BoundsErr   error
	Rotation    float64
	RotationErr error
}

// FakeLayer is a document layer of the FakeHost.
type FakeLayer struct {
	Name    string
	Visible bool
	Items   []*FakeItem
}

// RenderCall records one RenderPNG invocation and what was visible at the time.
type RenderCall struct {
	Path         string
	Options      host.RenderOptions
	Frame        models.Bounds
	VisibleItems []string
}

// FakeHost is a scriptable in-memory implementation of host.ExportHost.
type FakeHost struct {
	mu sync.Mutex

	LayerList []*FakeLayer
	FrameList []models.Bounds
	Active    int

	// Failure injection.
	RenderErr       func(path string) error
	RenderPanic     func(path string) bool
	AddFrameErr     error
	LayerVisibleErr func(layer int) error

	Renders []RenderCall
}

// NewFakeHost returns a host with a single active frame.
func NewFakeHost(frame models.Bounds, layers ...*FakeLayer) *FakeHost {
	return &FakeHost{
		LayerList: layers,
		FrameList: []models.Bounds{frame},
	}
}

// Visibility returns every layer visibility flag and every item hidden flag.
func (f *FakeHost) Visibility() ([]bool, [][]bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	layers := make([]bool, len(f.LayerList))
	items := make([][]bool, len(f.LayerList))
	for i, l := range f.LayerList {
		layers[i] = l.Visible
		for _, it := range l.Items {
			items[i] = append(items[i], it.Hidden)
		}
	}
	return layers, items
}

func (f *FakeHost) Layers() int {
	return len(f.LayerList)
}

func (f *FakeHost) LayerName(layer int) string {
	return f.LayerList[layer].Name
}

func (f *FakeHost) Groups(layer int) []host.Group {
	var groups []host.Group
	for i, it := range f.LayerList[layer].Items {
		if !it.Group {
			continue
		}
		groups = append(groups, host.Group{
			Layer:    layer,
			Item:     i,
			Index:    len(groups),
			Name:     it.Name,
			Locked:   it.Locked,
			Hidden:   it.Hidden,
			Children: it.Children,
		})
	}
	return groups
}

func (f *FakeHost) ActiveFrame() (int, models.Bounds, error) {
	if f.Active < 0 || f.Active >= len(f.FrameList) {
		return 0, models.Bounds{}, errors.New("no active frame")
	}
	return f.Active, f.FrameList[f.Active], nil
}

func (f *FakeHost) GroupBounds(g host.Group) (models.Bounds, error) {
	it := f.LayerList[g.Layer].Items[g.Item]
	return it.Bounds, it.BoundsErr
}

func (f *FakeHost) GroupRotation(g host.Group) (float64, error) {
	it := f.LayerList[g.Layer].Items[g.Item]
	return it.Rotation, it.RotationErr
}

func (f *FakeHost) LayerVisible(layer int) (bool, error) {
	if f.LayerVisibleErr != nil {
		if err := f.LayerVisibleErr(layer); err != nil {
			return false, err
		}
	}
	return f.LayerList[layer].Visible, nil
}

func (f *FakeHost) SetLayerVisible(layer int, visible bool) error {
	f.LayerList[layer].Visible = visible
	return nil
}

func (f *FakeHost) Items(layer int) int {
	return len(f.LayerList[layer].Items)
}

func (f *FakeHost) ItemHidden(layer, item int) (bool, error) {
	return f.LayerList[layer].Items[item].Hidden, nil
}

func (f *FakeHost) SetItemHidden(layer, item int, hidden bool) error {
	it := f.LayerList[layer].Items[item]
	if it.Locked {
		return fmt.Errorf("item %q is locked", it.Name)
	}
	it.Hidden = hidden
	return nil
}

func (f *FakeHost) Frames() int {
	return len(f.FrameList)
}

func (f *FakeHost) ActiveFrameIndex() (int, error) {
	return f.Active, nil
}

func (f *FakeHost) SetActiveFrame(index int) error {
	if index < 0 || index >= len(f.FrameList) {
		return fmt.Errorf("frame %d out of range", index)
	}
	f.Active = index
	return nil
}

func (f *FakeHost) AddFrame(b models.Bounds) (int, error) {
	if f.AddFrameErr != nil {
		return 0, f.AddFrameErr
	}
	f.FrameList = append(f.FrameList, b)
	return len(f.FrameList) - 1, nil
}

func (f *FakeHost) RemoveFrame(index int) error {
	if index < 0 || index >= len(f.FrameList) {
		return fmt.Errorf("frame %d out of range", index)
	}
	f.FrameList = append(f.FrameList[:index], f.FrameList[index+1:]...)
	return nil
}

// RenderPNG records the call and writes a placeholder file at path.
func (f *FakeHost) RenderPNG(path string, opts host.RenderOptions) error {
	if f.RenderPanic != nil && f.RenderPanic(path) {
		panic("render crashed: " + path)
	}
	if f.RenderErr != nil {
		if err := f.RenderErr(path); err != nil {
			return err
		}
	}

	var visible []string
	for _, l := range f.LayerList {
		if !l.Visible {
			continue
		}
		for _, it := range l.Items {
			if !it.Hidden {
				visible = append(visible, it.Name)
			}
		}
	}

	f.Renders = append(f.Renders, RenderCall{
		Path:         path,
		Options:      opts,
		Frame:        f.FrameList[f.Active],
		VisibleItems: visible,
	})
	return os.WriteFile(path, []byte("\x89PNG fake"), 0644)
}

var _ host.ExportHost = (*FakeHost)(nil)
