package exporter

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layout-bridge/backend/internal/document"
	"github.com/layout-bridge/backend/internal/host"
	"github.com/layout-bridge/backend/internal/interchange"
	"github.com/layout-bridge/backend/internal/models"
	"github.com/layout-bridge/backend/internal/testutil"
)

var frame = models.Bounds{Left: 0, Top: 1000, Right: 1000, Bottom: 0}

func box(l, t, r, b float64) models.Bounds {
	return models.Bounds{Left: l, Top: t, Right: r, Bottom: b}
}

// newFake builds a layer with five groups where 1 is locked and 3 fails to render.
func newFake() *testutil.FakeHost {
	h := testutil.NewFakeHost(frame,
		&testutil.FakeLayer{Name: "Background", Visible: true},
		&testutil.FakeLayer{Name: "Props", Visible: true, Items: []*testutil.FakeItem{
			{Name: "tree", Group: true, Children: 1, Bounds: box(100, 400, 200, 300), Rotation: 10},
			{Name: "locked", Group: true, Children: 1, Locked: true, Bounds: box(0, 10, 10, 0)},
			{Name: "loose path"},
			{Name: "", Group: true, Children: 2, Bounds: box(500, 900, 756, 800)},
			{Name: "broken", Group: true, Children: 1, Bounds: box(0, 50, 50, 0)},
			{Name: "A/B C", Group: true, Children: 1, Bounds: box(10, 20, 30, 10)},
		}},
	)
	h.RenderErr = func(path string) error {
		if strings.HasSuffix(path, "broken.png") {
			return errors.New("render failed")
		}
		return nil
	}
	return h
}

func TestRunExportsEligibleGroups(t *testing.T) {
	h := newFake()
	out := t.TempDir()

	var events []Event
	res, err := New(nil).Run(h, Options{Layer: 1, ThumbSize: 128, OutputDir: out, Progress: func(ev Event) {
		events = append(events, ev)
	}})
	require.NoError(t, err)

	assert.Equal(t, "Props", res.Summary.Layer)
	assert.Equal(t, 128, res.Summary.ThumbnailSize)
	assert.Equal(t, 3, res.Summary.Exported)
	assert.Equal(t, 2, res.Summary.Skipped)
	assert.Equal(t, filepath.Join(out, "export.json"), res.Summary.InterchangePath)

	objs := res.Batch.Objects
	require.Len(t, objs, 3)
	assert.Equal(t, "tree", objs[0].Name)
	assert.Equal(t, "Group_2", objs[1].Name)
	assert.Equal(t, "A/B C", objs[2].Name)
	assert.Equal(t, "thumbnails/A_B_C.png", objs[2].Thumbnail)

	tree := objs[0]
	assert.InDelta(t, 150.0, tree.X, 1e-9)
	assert.InDelta(t, 650.0, tree.Y, 1e-9)
	assert.InDelta(t, 100.0, tree.Width, 1e-9)
	assert.InDelta(t, 100.0, tree.Height, 1e-9)
	assert.InDelta(t, 10.0, tree.Rotation, 1e-9)

	assert.Equal(t, EventStarted, events[0].Kind)
	assert.Equal(t, EventFinished, events[len(events)-1].Kind)
	assert.Len(t, events, 2+5)
}

func TestZOrderIsOriginalIndex(t *testing.T) {
	h := newFake()
	res, err := New(nil).Run(h, Options{Layer: 1, ThumbSize: 64, OutputDir: t.TempDir()})
	require.NoError(t, err)

	groups := h.Groups(1)
	byName := make(map[string]int)
	for _, g := range groups {
		byName[g.Name] = g.Index
	}

	prev := -1
	for _, o := range res.Batch.Objects {
		assert.Greater(t, o.ZOrder, prev)
		assert.Less(t, o.ZOrder, len(groups))
		prev = o.ZOrder
	}
	assert.Equal(t, []int{0, 2, 4}, []int{res.Batch.Objects[0].ZOrder, res.Batch.Objects[1].ZOrder, res.Batch.Objects[2].ZOrder})
	assert.Equal(t, byName["tree"], res.Batch.Objects[0].ZOrder)
}

func TestThumbnailExistenceCoupling(t *testing.T) {
	h := newFake()
	out := t.TempDir()
	res, err := New(nil).Run(h, Options{Layer: 1, ThumbSize: 64, OutputDir: out})
	require.NoError(t, err)

	for _, o := range res.Batch.Objects {
		require.NotEmpty(t, o.Thumbnail)
		_, err := os.Stat(filepath.Join(out, o.Thumbnail))
		assert.NoError(t, err, o.Name)
	}

	entries, err := os.ReadDir(filepath.Join(out, "thumbnails"))
	require.NoError(t, err)
	assert.Len(t, entries, len(res.Batch.Objects))

	_, err = os.Stat(filepath.Join(out, "thumbnails", "broken.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunRestoresDocument(t *testing.T) {
	h := newFake()
	h.RenderPanic = func(path string) bool { return strings.HasSuffix(path, "tree.png") }
	layersBefore, itemsBefore := h.Visibility()

	res, err := New(nil).Run(h, Options{Layer: 1, ThumbSize: 64, OutputDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Summary.Skipped)

	layersAfter, itemsAfter := h.Visibility()
	assert.Equal(t, layersBefore, layersAfter)
	assert.Equal(t, itemsBefore, itemsAfter)
	assert.Equal(t, 1, h.Frames())
	assert.Equal(t, 0, h.Active)
}

func TestInterchangeWrittenOnce(t *testing.T) {
	out := t.TempDir()
	res, err := New(nil).Run(newFake(), Options{Layer: 1, ThumbSize: 64, OutputDir: out})
	require.NoError(t, err)

	batch, err := interchange.ReadFile(res.Summary.InterchangePath)
	require.NoError(t, err)
	assert.Equal(t, "Props", batch.Layer)
	assert.Len(t, batch.Objects, 3)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"export.json", "thumbnails"}, names)
}

func TestPreconditions(t *testing.T) {
	fileAsDir := filepath.Join(t.TempDir(), "plain-file")
	require.NoError(t, os.WriteFile(fileAsDir, []byte("x"), 0644))

	noFrame := newFake()
	noFrame.FrameList = nil

	tests := []struct {
		name    string
		host    host.ExportHost
		opts    Options
		wantErr error
	}{
		{name: "no document", host: nil, opts: Options{ThumbSize: 64, OutputDir: t.TempDir()}, wantErr: ErrNoDocument},
		{name: "no layers", host: testutil.NewFakeHost(frame), opts: Options{ThumbSize: 64, OutputDir: t.TempDir()}, wantErr: ErrNoLayers},
		{name: "layer out of range", host: newFake(), opts: Options{Layer: 9, ThumbSize: 64, OutputDir: t.TempDir()}, wantErr: ErrLayerOutOfRange},
		{name: "no groups", host: newFake(), opts: Options{Layer: 0, ThumbSize: 64, OutputDir: t.TempDir()}, wantErr: ErrNoGroups},
		{name: "bad thumb size", host: newFake(), opts: Options{Layer: 1, ThumbSize: 0, OutputDir: t.TempDir()}, wantErr: ErrInvalidThumbSize},
		{name: "no frame", host: noFrame, opts: Options{Layer: 1, ThumbSize: 64, OutputDir: t.TempDir()}, wantErr: ErrNoActiveFrame},
		{name: "no output folder", host: newFake(), opts: Options{Layer: 1, ThumbSize: 64}, wantErr: ErrNoOutputFolder},
		{name: "unwritable output", host: newFake(), opts: Options{Layer: 1, ThumbSize: 64, OutputDir: fileAsDir}, wantErr: ErrCreateInterchange},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := New(nil).Run(tc.host, tc.opts)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Nil(t, res)

			if fake, ok := tc.host.(*testutil.FakeHost); ok && fake != nil {
				assert.Empty(t, fake.Renders)
			}
		})
	}
}

func TestDisplayLayerName(t *testing.T) {
	h := testutil.NewFakeHost(frame, &testutil.FakeLayer{Name: ""}, &testutil.FakeLayer{Name: "Props"})
	assert.Equal(t, "Layer 1", DisplayLayerName(h, 0))
	assert.Equal(t, "Props", DisplayLayerName(h, 1))
}

const parkDoc = `<Document name="park">
  <Artboard left="0" top="768" right="1024" bottom="0" active="true"/>
  <Layer name="Objects">
    <Group name="bench" rotation="-30">
      <Path left="100" top="700" right="300" bottom="600" fill="#884400"/>
    </Group>
    <Group name="pond">
      <Path points="500,300 700,300 700,100 500,100" fill="#3366ff"/>
    </Group>
  </Layer>
</Document>`

func TestRunAgainstDocument(t *testing.T) {
	doc, err := document.ParseXML(strings.NewReader(parkDoc))
	require.NoError(t, err)
	layersBefore, itemsBefore := doc.Visibility()

	out := t.TempDir()
	res, err := New(nil).Run(doc, Options{Layer: 0, ThumbSize: 128, OutputDir: out})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Summary.Exported)
	assert.Equal(t, 0, res.Summary.Skipped)

	bench := res.Batch.Objects[0]
	assert.InDelta(t, 200.0, bench.X, 1e-9)
	assert.InDelta(t, 118.0, bench.Y, 1e-9)
	assert.InDelta(t, -30.0, bench.Rotation, 1e-9)

	f, err := os.Open(filepath.Join(out, bench.Thumbnail))
	require.NoError(t, err)
	defer f.Close()

	layersAfter, itemsAfter := doc.Visibility()
	assert.Equal(t, layersBefore, layersAfter)
	assert.Equal(t, itemsBefore, itemsAfter)
	assert.Equal(t, 1, doc.Frames())
}
