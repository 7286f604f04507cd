package extract

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/jackzampolin/docpond/internal/grounding"
)

// Region colors by type; anything unlisted draws yellow.
var overlayColors = map[string]color.RGBA{
	grounding.TypeImage:    {R: 0xE0, G: 0x20, B: 0x20, A: 0xFF},
	grounding.TypeText:     {R: 0x20, G: 0x40, B: 0xE0, A: 0xFF},
	grounding.TypeSubTitle: {R: 0x20, G: 0xA0, B: 0x40, A: 0xFF},
	grounding.TypeTitle:    {R: 0x80, G: 0x20, B: 0xA0, A: 0xFF},
}

var overlayFallback = color.RGBA{R: 0xD0, G: 0xC0, B: 0x20, A: 0xFF}

const overlayStroke = 3

// Overlay renders a debug visualization: every region's box drawn in its
// type color with a "<n>: <type>" label, after the same coordinate scaling
// the extractor applies. Returns the encoded PNG.
//
// Overlay generation is best-effort; callers treat any error as non-fatal.
func Overlay(src image.Image, refs []grounding.Reference) ([]byte, error) {
	if len(refs) == 0 {
		return nil, fmt.Errorf("no references to visualize")
	}

	bounds := src.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, src, bounds.Min, draw.Src)

	sx, sy := Scale(refs, bounds.Dx(), bounds.Dy())

	for i, ref := range refs {
		rect, err := scaledRect(ref.BoundingBox, sx, sy)
		if err != nil {
			// Short boxes are skippable here exactly as in cropping.
			continue
		}

		c, ok := overlayColors[ref.Type]
		if !ok {
			c = overlayFallback
		}

		drawRect(canvas, rect.Intersect(bounds), c)
		drawLabel(canvas, rect.Min.X, rect.Min.Y-4, fmt.Sprintf("%d: %s", i+1, ref.Type), c)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("failed to encode overlay: %w", err)
	}
	return buf.Bytes(), nil
}

func drawRect(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	if r.Empty() {
		return
	}
	for s := 0; s < overlayStroke; s++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			setPixel(dst, x, r.Min.Y+s, c)
			setPixel(dst, x, r.Max.Y-1-s, c)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			setPixel(dst, r.Min.X+s, y, c)
			setPixel(dst, r.Max.X-1-s, y, c)
		}
	}
}

func setPixel(dst *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(dst.Bounds()) {
		dst.SetRGBA(x, y, c)
	}
}

func drawLabel(dst *image.RGBA, x, y int, label string, c color.RGBA) {
	if y < dst.Bounds().Min.Y+basicfont.Face7x13.Height {
		y = dst.Bounds().Min.Y + basicfont.Face7x13.Height
	}
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(label)
}
