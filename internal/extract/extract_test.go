package extract

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/jackzampolin/docpond/internal/grounding"
)

func testPage(t *testing.T, width, height int) image.Image {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x % 255), G: uint8(y % 255), B: 0x80, A: 0xFF})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestScale(t *testing.T) {
	t.Run("normalized boxes on large page", func(t *testing.T) {
		refs := []grounding.Reference{
			{Type: grounding.TypeImage, BoundingBox: []int{100, 200, 900, 1000}},
		}
		sx, sy := Scale(refs, 2000, 3000)
		if sx != 2.0 || sy != 3.0 {
			t.Errorf("expected per-axis scale 2.0/3.0, got %v/%v", sx, sy)
		}
	})

	t.Run("pixel boxes pass through", func(t *testing.T) {
		refs := []grounding.Reference{
			{Type: grounding.TypeImage, BoundingBox: []int{100, 200, 1500, 1800}},
		}
		sx, sy := Scale(refs, 2000, 3000)
		if sx != 1.0 || sy != 1.0 {
			t.Errorf("expected identity scale, got %v/%v", sx, sy)
		}
	})

	t.Run("small page never scales", func(t *testing.T) {
		refs := []grounding.Reference{
			{Type: grounding.TypeImage, BoundingBox: []int{10, 10, 500, 500}},
		}
		sx, sy := Scale(refs, 800, 600)
		if sx != 1.0 || sy != 1.0 {
			t.Errorf("expected identity scale for small page, got %v/%v", sx, sy)
		}
	})
}

func TestImages(t *testing.T) {
	t.Run("crops image regions in order", func(t *testing.T) {
		src := testPage(t, 400, 400)
		refs := []grounding.Reference{
			{Type: grounding.TypeText, BoundingBox: []int{0, 0, 400, 50}},
			{Type: grounding.TypeImage, BoundingBox: []int{10, 60, 110, 160}},
			{Type: grounding.TypeImage, BoundingBox: []int{200, 200, 300, 350}},
		}

		var got []int
		extracted := Images(src, refs, func(regionIndex int, data []byte, width, height int) error {
			got = append(got, regionIndex)
			if len(data) == 0 {
				t.Errorf("region %d: empty crop data", regionIndex)
			}
			if _, err := Decode(data); err != nil {
				t.Errorf("region %d: crop does not decode: %v", regionIndex, err)
			}
			return nil
		}, nil)

		if len(extracted) != 2 {
			t.Fatalf("expected 2 extracted regions, got %d", len(extracted))
		}
		if got[0] != 0 || got[1] != 1 {
			t.Errorf("unexpected region indices: %v", got)
		}
		if extracted[0].Width != 100 || extracted[0].Height != 100 {
			t.Errorf("unexpected first crop size: %dx%d", extracted[0].Width, extracted[0].Height)
		}
		if extracted[1].Width != 100 || extracted[1].Height != 150 {
			t.Errorf("unexpected second crop size: %dx%d", extracted[1].Width, extracted[1].Height)
		}
	})

	t.Run("skips degenerate boxes", func(t *testing.T) {
		src := testPage(t, 400, 400)
		refs := []grounding.Reference{
			{Type: grounding.TypeImage, BoundingBox: []int{10, 10}},
			{Type: grounding.TypeImage, BoundingBox: []int{50, 50, 50, 200}},
			{Type: grounding.TypeImage, BoundingBox: []int{10, 10, 100, 100}},
		}

		var got []int
		extracted := Images(src, refs, func(regionIndex int, _ []byte, _, _ int) error {
			got = append(got, regionIndex)
			return nil
		}, nil)

		if len(extracted) != 1 {
			t.Fatalf("expected 1 extracted region, got %d", len(extracted))
		}
		// The valid region is the third image-typed reference so keeps index 2.
		if extracted[0].RegionIndex != 2 || got[0] != 2 {
			t.Errorf("expected region index 2, got %d", extracted[0].RegionIndex)
		}
	})

	t.Run("sink failure skips region only", func(t *testing.T) {
		src := testPage(t, 400, 400)
		refs := []grounding.Reference{
			{Type: grounding.TypeImage, BoundingBox: []int{10, 10, 100, 100}},
			{Type: grounding.TypeImage, BoundingBox: []int{110, 110, 200, 200}},
		}

		extracted := Images(src, refs, func(regionIndex int, _ []byte, _, _ int) error {
			if regionIndex == 0 {
				return errors.New("disk full")
			}
			return nil
		}, nil)

		if len(extracted) != 1 || extracted[0].RegionIndex != 1 {
			t.Fatalf("expected only region 1 extracted, got %v", extracted)
		}
	})

	t.Run("normalized boxes crop at pixel scale", func(t *testing.T) {
		src := testPage(t, 2000, 1000)
		refs := []grounding.Reference{
			{Type: grounding.TypeImage, BoundingBox: []int{0, 0, 500, 500}},
		}
		extracted := Images(src, refs, func(int, []byte, int, int) error { return nil }, nil)
		if len(extracted) != 1 {
			t.Fatalf("expected 1 extracted region, got %d", len(extracted))
		}
		if extracted[0].Width != 1000 || extracted[0].Height != 500 {
			t.Errorf("expected 1000x500 crop, got %dx%d", extracted[0].Width, extracted[0].Height)
		}
	})
}

func TestDecode(t *testing.T) {
	data := encodePNG(t, testPage(t, 20, 20))
	img, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 20 {
		t.Errorf("unexpected bounds: %v", img.Bounds())
	}

	if _, err := Decode([]byte("not an image")); err == nil {
		t.Error("expected error for invalid data")
	}
}

func TestOverlay(t *testing.T) {
	src := testPage(t, 300, 300)
	refs := []grounding.Reference{
		{Type: grounding.TypeTitle, BoundingBox: []int{10, 10, 290, 40}},
		{Type: grounding.TypeImage, BoundingBox: []int{20, 60, 150, 200}},
		{Type: grounding.TypeText, BoundingBox: []int{20, 210}},
	}

	data, err := Overlay(src, refs)
	if err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}
	img, err := Decode(data)
	if err != nil {
		t.Fatalf("overlay does not decode: %v", err)
	}
	if img.Bounds() != src.Bounds() {
		t.Errorf("overlay bounds %v differ from source %v", img.Bounds(), src.Bounds())
	}

	if _, err := Overlay(src, nil); err == nil {
		t.Error("expected error for empty reference list")
	}
}
