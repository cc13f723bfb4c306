package document

import (
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layout-bridge/backend/internal/host"
	"github.com/layout-bridge/backend/internal/models"
)

const sampleDoc = `<?xml version="1.0"?>
<Document name="park">
  <Artboard left="0" top="1000" right="1000" bottom="0" active="true"/>
  <Layer name="Background" visible="true">
    <Path left="0" top="1000" right="1000" bottom="0" fill="#0000ff"/>
  </Layer>
  <Layer name="">
    <Group name="tree" rotation="15">
      <Path left="100" top="400" right="200" bottom="300" fill="#00ff00"/>
      <Path points="150,450 250,300 150,300" fill="#008800"/>
    </Group>
    <Path name="label" left="0" top="10" right="10" bottom="0"/>
    <Group name="" locked="true">
      <Path left="500" top="500" right="600" bottom="400"/>
    </Group>
    <Group name="bad" rotation="abc">
      <Path left="0" top="0" right="0" bottom="0"/>
    </Group>
  </Layer>
</Document>`

func load(t *testing.T) *State {
	s, err := ParseXML(strings.NewReader(sampleDoc))
	require.NoError(t, err)
	return s
}

func TestParseXML(t *testing.T) {
	s := load(t)

	assert.Equal(t, "park", s.Name)
	assert.Equal(t, 2, s.Layers())
	assert.Equal(t, "Background", s.LayerName(0))
	assert.Equal(t, "", s.LayerName(1))
	assert.Equal(t, 4, s.Items(1))

	idx, frame, err := s.ActiveFrame()
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, models.Bounds{Left: 0, Top: 1000, Right: 1000, Bottom: 0}, frame)

	layers, _ := s.Visibility()
	assert.Equal(t, []bool{true, true}, layers, "visible defaults to true")
}

func TestGroups(t *testing.T) {
	s := load(t)
	groups := s.Groups(1)
	require.Len(t, groups, 3)

	assert.Equal(t, host.Group{Layer: 1, Item: 0, Index: 0, Name: "tree", Children: 2}, groups[0])
	assert.Equal(t, 2, groups[1].Item)
	assert.Equal(t, 1, groups[1].Index)
	assert.True(t, groups[1].Locked)
	assert.Equal(t, 3, groups[2].Item)

	assert.Nil(t, s.Groups(7))
}

func TestGroupGeometry(t *testing.T) {
	s := load(t)
	groups := s.Groups(1)

	b, err := s.GroupBounds(groups[0])
	require.NoError(t, err)
	assert.Equal(t, models.Bounds{Left: 100, Top: 450, Right: 250, Bottom: 300}, b)

	rot, err := s.GroupRotation(groups[0])
	require.NoError(t, err)
	assert.Equal(t, 15.0, rot)

	_, err = s.GroupRotation(groups[2])
	assert.ErrorIs(t, err, ErrRotationUnknown)

	_, err = s.GroupBounds(host.Group{Layer: 1, Item: 1})
	assert.ErrorIs(t, err, ErrNotAGroup)
}

func TestFrames(t *testing.T) {
	s := load(t)

	idx, err := s.AddFrame(models.Bounds{Left: 1, Top: 2, Right: 3, Bottom: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	require.NoError(t, s.SetActiveFrame(idx))

	require.NoError(t, s.RemoveFrame(idx))
	assert.Equal(t, 1, s.Frames())
	active, err := s.ActiveFrameIndex()
	require.NoError(t, err)
	assert.Equal(t, 0, active)

	assert.ErrorIs(t, s.SetActiveFrame(5), ErrFrameRange)
	assert.ErrorIs(t, s.RemoveFrame(5), ErrFrameRange)
}

func TestRenderPNG(t *testing.T) {
	s := load(t)
	out := filepath.Join(t.TempDir(), "all.png")

	require.NoError(t, s.RenderPNG(out, host.RenderOptions{ScalePercent: 10, Transparent: true}))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())

	// Background fills the artboard; the tree sits on top of it.
	r, g, b, _ := img.At(30, 30).RGBA()
	assert.Equal(t, [3]uint32{0, 0, 0xffff}, [3]uint32{r, g, b})
	r, g, b, _ = img.At(12, 65).RGBA()
	assert.Equal(t, [3]uint32{0, 0xffff, 0}, [3]uint32{r, g, b})
}

func TestRenderSkipsHidden(t *testing.T) {
	s := load(t)
	require.NoError(t, s.SetLayerVisible(0, false))
	for i := 0; i < s.Items(1); i++ {
		require.NoError(t, s.SetItemHidden(1, i, true))
	}
	out := filepath.Join(t.TempDir(), "none.png")
	require.NoError(t, s.RenderPNG(out, host.RenderOptions{ScalePercent: 10, Transparent: true}))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	_, _, _, a := img.At(50, 50).RGBA()
	assert.Zero(t, a)
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#f00")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, c)

	c, err = ParseColor("#11223344")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0x11, G: 0x22, B: 0x33, A: 0x44}, c)

	c, err = ParseColor("")
	require.NoError(t, err)
	assert.Equal(t, DefaultFill, c)

	_, err = ParseColor("#zzzzzz")
	assert.Error(t, err)
}

func TestParseXMLErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "malformed", doc: "<Document><Layer>"},
		{name: "unknown item", doc: `<Document><Layer><Circle/></Layer></Document>`},
		{name: "incomplete path", doc: `<Document><Layer><Group><Path left="1"/></Group></Layer></Document>`},
		{name: "short polygon", doc: `<Document><Layer><Group><Path points="0,0 1,1"/></Group></Layer></Document>`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseXML(strings.NewReader(tc.doc))
			assert.Error(t, err)
		})
	}
}
