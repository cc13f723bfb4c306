// Package isolation renders one group at a time in isolation: it hides
// everything else, frames the group tightly, renders a preview and then
// restores every piece of visibility state it touched, whatever happened.
package isolation

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/layout-bridge/backend/internal/geometry"
	"github.com/layout-bridge/backend/internal/host"
	"github.com/layout-bridge/backend/internal/logging"
	"github.com/layout-bridge/backend/internal/models"
)

var (
	ErrInvalidThumbSize = errors.New("thumbnail size must be positive")
	ErrDegenerate       = errors.New("degenerate bounds")
	ErrHostPanic        = errors.New("host panicked")
)

// Host is the part of the document host an isolation cycle mutates.
type Host interface {
	host.VisibilityHost
	host.FrameHost
	host.RenderHost
}

// Job describes one group to render.
type Job struct {
	Layer     int           // layer holding the group
	Item      int           // page item index of the group, forced visible
	Bounds    models.Bounds // group bounds, used as the temporary frame
	ThumbSize int           // pixels for the longest side
	Path      string        // output PNG path
}

// Result describes a successful render.
type Result struct {
	ScalePercent float64
	Path         string
}

// Renderer runs isolation cycles against a host. It is not safe for concurrent
// use: exactly one cycle mutates the document at a time.
type Renderer struct {
	host    Host
	logger  logrus.FieldLogger
	state   State
	observe func(State)
}

// NewRenderer creates a renderer for h. A nil logger discards output.
func NewRenderer(h Host, logger logrus.FieldLogger) *Renderer {
	return &Renderer{host: h, logger: logging.OrDiscard(logger), state: Normal}
}

// OnTransition registers fn to be called on every state change.
func (r *Renderer) OnTransition(fn func(State)) {
	r.observe = fn
}

// State returns the current state.
func (r *Renderer) State() State {
	return r.state
}

type cycle struct {
	snap      Snapshot
	prevFrame int
	tmpFrame  int
}

// Run performs one full cycle for job. Validation failures move straight to
// SKIPPED without touching the document. Once isolation has started, the
// cycle always passes through RESTORING, including when the host returns an
// error or panics; the returned error then reports the failure.
func (r *Renderer) Run(job Job) (res Result, err error) {
	r.state = Normal

	if job.ThumbSize <= 0 {
		r.transition(Skipped)
		return Result{}, ErrInvalidThumbSize
	}
	maxDim := geometry.MaxDim(job.Bounds)
	if maxDim <= 0 {
		r.transition(Skipped)
		return Result{}, ErrDegenerate
	}

	prevFrame, err := r.host.ActiveFrameIndex()
	if err != nil {
		r.transition(Skipped)
		return Result{}, fmt.Errorf("reading active frame: %w", err)
	}
	c := &cycle{prevFrame: prevFrame, tmpFrame: -1}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrHostPanic, rec)
			res = Result{}
		}
		r.transition(Restoring)
		if restoreErr := r.restore(c); restoreErr != nil {
			r.logger.WithError(restoreErr).Error("visibility state not fully restored")
		}
		r.transition(Normal)
	}()

	r.transition(Isolating)
	if err = r.isolate(c, job.Layer); err != nil {
		return Result{}, fmt.Errorf("isolating layer %d: %w", job.Layer, err)
	}

	r.transition(Framed)
	if err = r.frame(c, job); err != nil {
		return Result{}, fmt.Errorf("framing group: %w", err)
	}

	r.transition(Rendered)
	scale := geometry.ScalePercent(job.ThumbSize, maxDim)
	opts := host.RenderOptions{
		ScalePercent: scale,
		Transparent:  true,
		ClipToFrame:  true,
	}
	if err = r.host.RenderPNG(job.Path, opts); err != nil {
		return Result{}, fmt.Errorf("rendering %s: %w", job.Path, err)
	}

	return Result{ScalePercent: scale, Path: job.Path}, nil
}

// isolate shows only the target layer and hides every item on it,
// recording each value before overwriting it.
func (r *Renderer) isolate(c *cycle, layer int) error {
	layers := r.host.Layers()
	c.snap.Layers = make([]bool, 0, layers)
	for li := 0; li < layers; li++ {
		visible, err := r.host.LayerVisible(li)
		if err != nil {
			return err
		}
		c.snap.Layers = append(c.snap.Layers, visible)
		if err := r.host.SetLayerVisible(li, li == layer); err != nil {
			return err
		}
	}

	c.snap.Layer = layer
	items := r.host.Items(layer)
	c.snap.Items = make([]bool, 0, items)
	for i := 0; i < items; i++ {
		hidden, err := r.host.ItemHidden(layer, i)
		if err != nil {
			return err
		}
		c.snap.Items = append(c.snap.Items, hidden)
		if err := r.host.SetItemHidden(layer, i, true); err != nil {
			r.logger.WithError(err).WithField("item", i).Debug("could not hide item")
		}
	}
	return nil
}

func (r *Renderer) frame(c *cycle, job Job) error {
	if err := r.host.SetItemHidden(job.Layer, job.Item, false); err != nil {
		r.logger.WithError(err).WithField("item", job.Item).Debug("could not unhide group")
	}

	idx, err := r.host.AddFrame(job.Bounds)
	if err != nil {
		return err
	}
	c.tmpFrame = idx
	return r.host.SetActiveFrame(idx)
}

// restore writes the snapshot back. Every step is attempted even when an
// earlier one fails.
func (r *Renderer) restore(c *cycle) error {
	var errs []error

	layer := c.snap.Layer
	for i, hidden := range c.snap.Items {
		if i >= r.host.Items(layer) {
			break
		}
		errs = append(errs, r.attempt(func() error { return r.host.SetItemHidden(layer, i, hidden) }))
	}

	for li, visible := range c.snap.Layers {
		if li >= r.host.Layers() {
			break
		}
		errs = append(errs, r.attempt(func() error { return r.host.SetLayerVisible(li, visible) }))
	}

	if c.tmpFrame >= 0 && c.tmpFrame < r.host.Frames() {
		errs = append(errs, r.attempt(func() error { return r.host.RemoveFrame(c.tmpFrame) }))
	}
	errs = append(errs, r.attempt(func() error { return r.host.SetActiveFrame(c.prevFrame) }))

	return errors.Join(errs...)
}

func (r *Renderer) attempt(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrHostPanic, rec)
		}
	}()
	return fn()
}

func (r *Renderer) transition(s State) {
	r.logger.WithField("state", s.String()).Debug("isolation transition")
	r.state = s
	if r.observe != nil {
		r.observe(s)
	}
}
