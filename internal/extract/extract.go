// Package extract crops image regions out of a rasterized page using the
// bounding boxes parsed from grounded OCR output, and draws a debug overlay
// of every region.
package extract

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder for jpeg page renders
	"image/png"
	"log/slog"

	"github.com/jackzampolin/docpond/internal/grounding"
)

// Sink receives one cropped region. regionIndex is the 0-based ordinal among
// image-typed references only, matching the parser's image index.
type Sink func(regionIndex int, data []byte, width, height int) error

// Extracted describes one successfully persisted crop.
type Extracted struct {
	RegionIndex int `json:"region_index"`
	ByteSize    int `json:"byte_size"`
	Width       int `json:"width"`
	Height      int `json:"height"`
}

// subImager is implemented by the stdlib image types we decode into.
type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Scale reports the per-axis factors for converting the references' boxes
// into pixel space on an image of the given dimensions.
//
// Grounding models may emit boxes normalized to a 0-1000 range or native
// pixel coordinates. If the maximum coordinate across every reference is
// <= 1000 and either source dimension exceeds 1000, the boxes are treated
// as normalized and scaled by dimension/1000 independently per axis. The
// decision is made once per page, over the global max, never per region.
func Scale(refs []grounding.Reference, width, height int) (sx, sy float64) {
	maxCoord := 0
	for _, ref := range refs {
		for _, c := range ref.BoundingBox {
			if c > maxCoord {
				maxCoord = c
			}
		}
	}

	if maxCoord <= 1000 && (width > 1000 || height > 1000) {
		return float64(width) / 1000.0, float64(height) / 1000.0
	}
	return 1.0, 1.0
}

// scaledRect converts one box to a pixel-space rectangle, or an error if the
// box is short or degenerate.
func scaledRect(box []int, sx, sy float64) (image.Rectangle, error) {
	if len(box) < 4 {
		return image.Rectangle{}, fmt.Errorf("bounding box has %d coordinates, need 4", len(box))
	}
	r := image.Rect(
		int(float64(box[0])*sx),
		int(float64(box[1])*sy),
		int(float64(box[2])*sx),
		int(float64(box[3])*sy),
	)
	if r.Dx() == 0 || r.Dy() == 0 {
		return image.Rectangle{}, fmt.Errorf("zero-area box %v", box)
	}
	return r, nil
}

// Images crops every image-typed reference from src and hands each crop to
// sink in encounter order. A region that fails to crop or persist is skipped
// and logged; it never aborts extraction of subsequent regions.
func Images(src image.Image, refs []grounding.Reference, sink Sink, logger *slog.Logger) []Extracted {
	if logger == nil {
		logger = slog.Default()
	}

	bounds := src.Bounds()
	sx, sy := Scale(refs, bounds.Dx(), bounds.Dy())

	var out []Extracted
	regionIndex := -1
	for _, ref := range refs {
		if ref.Type != grounding.TypeImage {
			continue
		}
		regionIndex++

		rect, err := scaledRect(ref.BoundingBox, sx, sy)
		if err != nil {
			logger.Warn("skipping image region", "region_index", regionIndex, "error", err)
			continue
		}
		rect = rect.Intersect(bounds)
		if rect.Empty() {
			logger.Warn("skipping image region outside page bounds", "region_index", regionIndex)
			continue
		}

		si, ok := src.(subImager)
		if !ok {
			logger.Warn("source image type does not support cropping", "region_index", regionIndex)
			continue
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, si.SubImage(rect)); err != nil {
			logger.Warn("failed to encode image region", "region_index", regionIndex, "error", err)
			continue
		}

		if err := sink(regionIndex, buf.Bytes(), rect.Dx(), rect.Dy()); err != nil {
			logger.Warn("failed to persist image region", "region_index", regionIndex, "error", err)
			continue
		}

		out = append(out, Extracted{
			RegionIndex: regionIndex,
			ByteSize:    buf.Len(),
			Width:       rect.Dx(),
			Height:      rect.Dy(),
		})
	}

	return out
}

// Decode decodes a rasterized page image (PNG or anything image registers).
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode page image: %w", err)
	}
	return img, nil
}
