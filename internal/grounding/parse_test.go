package grounding

import (
	"fmt"
	"strings"
	"testing"
)

func TestParseBoundingBox(t *testing.T) {
	box := ParseBoundingBox("[[53, 123, 477, 435]]")
	want := []int{53, 123, 477, 435}
	if len(box) != len(want) {
		t.Fatalf("expected %d coords, got %d", len(want), len(box))
	}
	for i := range want {
		if box[i] != want[i] {
			t.Errorf("coord %d: expected %d, got %d", i, want[i], box[i])
		}
	}

	if got := ParseBoundingBox("[[12, 34]]"); len(got) != 2 {
		t.Errorf("short payload: expected 2 coords, got %d", len(got))
	}
	if got := ParseBoundingBox("garbage"); len(got) != 0 {
		t.Errorf("empty payload: expected no coords, got %v", got)
	}
}

func TestParse(t *testing.T) {
	t.Run("mixed regions", func(t *testing.T) {
		raw := "<|ref|>title<|/ref|><|det|>[[10, 10, 500, 40]]<|/det|># Chapter One\n" +
			"<|ref|>text<|/ref|><|det|>[[10, 50, 500, 200]]<|/det|>It was a dark night.\n" +
			"<|ref|>image<|/ref|><|det|>[[10, 210, 500, 400]]<|/det|>\n" +
			"<|ref|>text<|/ref|><|det|>[[10, 410, 500, 500]]<|/det|>The storm passed."

		refs, md := Parse(raw, nil)
		if len(refs) != 4 {
			t.Fatalf("expected 4 references, got %d", len(refs))
		}
		if refs[0].Type != TypeTitle || refs[2].Type != TypeImage {
			t.Errorf("unexpected types: %s, %s", refs[0].Type, refs[2].Type)
		}
		if len(refs[1].BoundingBox) != 4 || refs[1].BoundingBox[3] != 200 {
			t.Errorf("unexpected bounding box: %v", refs[1].BoundingBox)
		}
		if refs[1].Content != "It was a dark night." {
			t.Errorf("unexpected content: %q", refs[1].Content)
		}
		if !strings.Contains(md, "# Chapter One") {
			t.Errorf("markdown missing title: %q", md)
		}
		if !strings.Contains(md, "![Image](output/image_0.png)") {
			t.Errorf("markdown missing default image line: %q", md)
		}
	})

	t.Run("resolver supplies image urls", func(t *testing.T) {
		raw := "<|ref|>image<|/ref|><|det|>[[0, 0, 100, 100]]<|/det|>\n" +
			"<|ref|>image<|/ref|><|det|>[[0, 110, 100, 210]]<|/det|>"

		refs, md := Parse(raw, func(i int, _ Reference) string {
			return fmt.Sprintf("/images/img-%d", i)
		})
		if len(refs) != 2 {
			t.Fatalf("expected 2 references, got %d", len(refs))
		}
		if !strings.Contains(md, "![Image](/images/img-0)") || !strings.Contains(md, "![Image](/images/img-1)") {
			t.Errorf("resolver urls missing from markdown: %q", md)
		}
	})

	t.Run("sub_title gains heading prefix", func(t *testing.T) {
		raw := "<|ref|>sub_title<|/ref|><|det|>[[0, 0, 10, 10]]<|/det|>Origins"
		_, md := Parse(raw, nil)
		if !strings.Contains(md, "## Origins") {
			t.Errorf("expected heading prefix, got %q", md)
		}

		raw = "<|ref|>sub_title<|/ref|><|det|>[[0, 0, 10, 10]]<|/det|>### Already Marked"
		_, md = Parse(raw, nil)
		if !strings.Contains(md, "### Already Marked") || strings.Contains(md, "## ###") {
			t.Errorf("pre-marked heading should pass through, got %q", md)
		}
	})

	t.Run("numbered list item rewrite", func(t *testing.T) {
		raw := "<|ref|>text<|/ref|><|det|>[[0, 0, 10, 10]]<|/det|>3 The third point"
		_, md := Parse(raw, nil)
		if !strings.Contains(md, "3. The third point") {
			t.Errorf("expected ordered-item rewrite, got %q", md)
		}
	})

	t.Run("no tags", func(t *testing.T) {
		refs, md := Parse("plain untagged text", nil)
		if refs != nil || md != "" {
			t.Errorf("expected empty result, got %d refs, %q", len(refs), md)
		}
	})
}

func TestImageReferences(t *testing.T) {
	refs := []Reference{
		{Type: TypeText},
		{Type: TypeImage, BoundingBox: []int{1, 2, 3, 4}},
		{Type: TypeTitle},
		{Type: TypeImage, BoundingBox: []int{5, 6, 7, 8}},
	}
	images := ImageReferences(refs)
	if len(images) != 2 {
		t.Fatalf("expected 2 image references, got %d", len(images))
	}
	if images[0].BoundingBox[0] != 1 || images[1].BoundingBox[0] != 5 {
		t.Errorf("image references out of order: %v", images)
	}
}

func TestReconcile(t *testing.T) {
	t.Run("substitutes final urls", func(t *testing.T) {
		md := "intro\n\n![Image](" + Placeholder(0) + ")\n\n![Image](" + Placeholder(1) + ")\n"
		out := Reconcile(md, []string{"/images/a", "/images/b"}, nil)
		if !strings.Contains(out, "![Image](/images/a)") || !strings.Contains(out, "![Image](/images/b)") {
			t.Errorf("expected substituted urls, got %q", out)
		}
		if strings.Contains(out, "__IMAGE_PLACEHOLDER_") {
			t.Errorf("placeholders left behind: %q", out)
		}
	})

	t.Run("removes orphaned placeholders", func(t *testing.T) {
		md := "before\n\n![Image](" + Placeholder(0) + ")\n\n![Image](" + Placeholder(1) + ")\nafter\n"
		out := Reconcile(md, []string{"/images/only"}, nil)
		if !strings.Contains(out, "![Image](/images/only)") {
			t.Errorf("first placeholder not substituted: %q", out)
		}
		if strings.Contains(out, Placeholder(1)) || strings.Contains(out, "![Image]()") {
			t.Errorf("orphan line not removed: %q", out)
		}
		if !strings.Contains(out, "before") || !strings.Contains(out, "after") {
			t.Errorf("surrounding text damaged: %q", out)
		}
	})

	t.Run("round trip with parse", func(t *testing.T) {
		raw := "<|ref|>text<|/ref|><|det|>[[0, 0, 10, 10]]<|/det|>Caption follows.\n" +
			"<|ref|>image<|/ref|><|det|>[[0, 20, 10, 30]]<|/det|>"
		_, md := Parse(raw, PlaceholderResolver())
		if !strings.Contains(md, Placeholder(0)) {
			t.Fatalf("expected placeholder in markdown, got %q", md)
		}
		out := Reconcile(md, []string{"/images/final"}, nil)
		if !strings.Contains(out, "![Image](/images/final)") {
			t.Errorf("round trip failed: %q", out)
		}
	})
}
