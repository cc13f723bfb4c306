// Package geometry computes the interchange geometry of a document group:
// bounding box, center, frame-relative position, rotation and a file-safe name.
package geometry

import (
	"fmt"
	"math"
	"strings"

	"github.com/layout-bridge/backend/internal/host"
	"github.com/layout-bridge/backend/internal/models"
)

// SkipReason explains why a group produced no record. The empty reason means eligible.
type SkipReason string

const (
	SkipNone       SkipReason = ""
	SkipLocked     SkipReason = "locked"
	SkipHidden     SkipReason = "hidden"
	SkipEmpty      SkipReason = "no drawable children"
	SkipNoBounds   SkipReason = "bounds unavailable"
	SkipDegenerate SkipReason = "degenerate bounds"
)

// Extraction is the geometry of one eligible group. Object.Thumbnail is left empty;
// it is only assigned once the preview has been rendered.
type Extraction struct {
	Object   models.LayoutObject
	SafeName string
	Bounds   models.Bounds
	MaxDim   float64
}

// Eligible reports whether g can be exported at all, judging only its flags.
func Eligible(g host.Group) SkipReason {
	switch {
	case g.Locked:
		return SkipLocked
	case g.Hidden:
		return SkipHidden
	case g.Children <= 0:
		return SkipEmpty
	}
	return SkipNone
}

// Extract computes the record geometry of g relative to the frame whose
// top-left corner is (frame.Left, frame.Top).
func Extract(geo host.GeometryHost, g host.Group, frame models.Bounds) (Extraction, SkipReason) {
	if reason := Eligible(g); reason != SkipNone {
		return Extraction{}, reason
	}

	b, err := geo.GroupBounds(g)
	if err != nil {
		return Extraction{}, SkipNoBounds
	}
	maxDim := MaxDim(b)
	if maxDim <= 0 || math.IsNaN(maxDim) {
		return Extraction{}, SkipDegenerate
	}

	name := DisplayName(g.Name, g.Index)
	x, y := FramePosition(b, frame.Left, frame.Top)

	return Extraction{
		Object: models.LayoutObject{
			Name:     name,
			X:        x,
			Y:        y,
			Width:    b.Width(),
			Height:   b.Height(),
			Rotation: ReadRotation(geo, g),
			ZOrder:   g.Index,
		},
		SafeName: SanitizeName(name),
		Bounds:   b,
		MaxDim:   maxDim,
	}, SkipNone
}

// Center returns the center of b in document space.
func Center(b models.Bounds) (float64, float64) {
	return b.Left + b.Width()/2, b.Top - b.Height()/2
}

// FramePosition converts the center of b into frame-relative coordinates.
// The vertical axis flips: document y grows upward, record y grows downward from the frame top.
func FramePosition(b models.Bounds, frameLeft, frameTop float64) (float64, float64) {
	cx, cy := Center(b)
	return cx - frameLeft, frameTop - cy
}

// MaxDim returns max(|width|, |height|).
func MaxDim(b models.Bounds) float64 {
	return math.Max(math.Abs(b.Width()), math.Abs(b.Height()))
}

// ReadRotation reads the group rotation. Any failure, including a panicking
// host binding, yields 0.
func ReadRotation(geo host.GeometryHost, g host.Group) (rotation float64) {
	defer func() {
		if r := recover(); r != nil {
			rotation = 0
		}
	}()

	rot, err := geo.GroupRotation(g)
	if err != nil || math.IsNaN(rot) || math.IsInf(rot, 0) {
		return 0
	}
	return rot
}

// DisplayName returns name, or Group_<index> when name is empty.
func DisplayName(name string, index int) string {
	if name == "" {
		return fmt.Sprintf("Group_%d", index)
	}
	return name
}

// SanitizeName replaces every rune outside [A-Za-z0-9_-] with an underscore.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if isSafeNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func isSafeNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	}
	return false
}

// ScalePercent is the uniform render scale that fits maxDim into thumbSize pixels.
func ScalePercent(thumbSize int, maxDim float64) float64 {
	return float64(thumbSize) / maxDim * 100
}
