// Package render rasterizes filled document shapes into PNG previews.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"

	"golang.org/x/image/vector"

	"github.com/layout-bridge/backend/internal/models"
)

// Point is a position in document space, y growing upward.
type Point struct {
	X, Y float64
}

// Shape is a closed filled polygon.
type Shape struct {
	Points []Point
	Fill   color.NRGBA
}

// RectShape returns the four-corner polygon of b.
func RectShape(b models.Bounds, fill color.NRGBA) Shape {
	return Shape{
		Points: []Point{
			{b.Left, b.Top}, {b.Right, b.Top}, {b.Right, b.Bottom}, {b.Left, b.Bottom},
		},
		Fill: fill,
	}
}

// Options controls one rasterization.
type Options struct {
	ScalePercent float64
	Transparent  bool
	Background   color.NRGBA // used when Transparent is false
}

// PixelSize returns the output dimensions for frame at scalePercent. Each side is at least one pixel.
func PixelSize(frame models.Bounds, scalePercent float64) (int, int) {
	s := scalePercent / 100
	w := int(math.Ceil(math.Abs(frame.Width())*s - 1e-9))
	h := int(math.Ceil(math.Abs(frame.Height())*s - 1e-9))
	return max(w, 1), max(h, 1)
}

// Rasterize draws shapes in order into an image covering frame. Shapes outside
// the frame are clipped.
func Rasterize(frame models.Bounds, shapes []Shape, opts Options) (*image.NRGBA, error) {
	if opts.ScalePercent <= 0 || math.IsNaN(opts.ScalePercent) || math.IsInf(opts.ScalePercent, 0) {
		return nil, fmt.Errorf("invalid scale %v", opts.ScalePercent)
	}
	w, h := PixelSize(frame, opts.ScalePercent)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if !opts.Transparent {
		draw.Draw(dst, dst.Bounds(), image.NewUniform(opts.Background), image.Point{}, draw.Src)
	}

	s := opts.ScalePercent / 100
	toPixel := func(p Point) (float32, float32) {
		return float32((p.X - frame.Left) * s), float32((frame.Top - p.Y) * s)
	}

	for _, shape := range shapes {
		if len(shape.Points) < 3 {
			continue
		}
		z := vector.NewRasterizer(w, h)
		x, y := toPixel(shape.Points[0])
		z.MoveTo(x, y)
		for _, p := range shape.Points[1:] {
			x, y = toPixel(p)
			z.LineTo(x, y)
		}
		z.ClosePath()
		z.Draw(dst, dst.Bounds(), image.NewUniform(shape.Fill), image.Point{})
	}
	return dst, nil
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}
