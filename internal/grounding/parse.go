// Package grounding parses grounded OCR output: text interleaved with
// <|ref|>type<|/ref|><|det|>[[x1,y1,x2,y2]]<|/det|> tags locating each
// region on the page. It renders Markdown from the parsed regions and
// reconciles deferred image links once extracted images have identifiers.
package grounding

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Region type tags emitted by grounding OCR models.
const (
	TypeText     = "text"
	TypeImage    = "image"
	TypeTitle    = "title"
	TypeSubTitle = "sub_title"
)

// Reference is one parsed region: a type tag, a bounding box, and the free
// text that followed the tag. It exists only within one page-processing
// invocation and is persisted as the page's references payload.
type Reference struct {
	Type        string `json:"type"`
	BoundingBox []int  `json:"bounding_box"`
	Content     string `json:"content"`
}

// URLResolver produces the URL for an image-typed region. imageIndex counts
// image-typed regions only, in encounter order, starting at 0.
type URLResolver func(imageIndex int, ref Reference) string

// tagRe matches one region header. Content runs from the end of a header to
// the start of the next header (or end of input).
var tagRe = regexp.MustCompile(`<\|ref\|>(\w+)<\|/ref\|><\|det\|>(\[\[.*?\]\])<\|/det\|>`)

var (
	numRe         = regexp.MustCompile(`\d+`)
	orderedItemRe = regexp.MustCompile(`^(\d+)\s`)
)

// ParseBoundingBox extracts the decimal integers from a detection payload
// like "[[53, 123, 477, 435]]", in order. Malformed payloads yield fewer
// than four values; callers treat a short box as a per-region failure.
func ParseBoundingBox(det string) []int {
	matches := numRe.FindAllString(det, -1)
	box := make([]int, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		box = append(box, n)
	}
	return box
}

// Parse scans raw OCR output left to right and returns the ordered region
// list plus rendered Markdown. Text outside any tag is discarded.
//
// resolver supplies image URLs; if nil, a deterministic default path
// output/image_{index}.png is used. The number of image-typed references
// always equals the number of image lines in the Markdown, in the same
// relative order.
func Parse(raw string, resolver URLResolver) ([]Reference, string) {
	headers := tagRe.FindAllStringSubmatchIndex(raw, -1)
	if len(headers) == 0 {
		return nil, ""
	}

	references := make([]Reference, 0, len(headers))
	parts := make([]string, 0, len(headers))
	imageIndex := 0

	for i, h := range headers {
		refType := raw[h[2]:h[3]]
		det := raw[h[4]:h[5]]

		contentEnd := len(raw)
		if i+1 < len(headers) {
			contentEnd = headers[i+1][0]
		}
		content := strings.TrimSpace(raw[h[1]:contentEnd])

		ref := Reference{
			Type:        refType,
			BoundingBox: ParseBoundingBox(det),
			Content:     content,
		}
		references = append(references, ref)

		switch refType {
		case TypeImage:
			url := fmt.Sprintf("output/image_%d.png", imageIndex)
			if resolver != nil {
				url = resolver(imageIndex, ref)
			}
			parts = append(parts, fmt.Sprintf("![Image](%s)\n", url))
			imageIndex++

		case TypeSubTitle:
			if strings.HasPrefix(content, "#") {
				parts = append(parts, content+"\n")
			} else {
				parts = append(parts, "## "+content+"\n")
			}

		case TypeText:
			// A bare leading integer is an OCR artifact of a numbered
			// list item; rewrite to "<n>. " markdown form.
			if m := orderedItemRe.FindStringSubmatch(content); m != nil {
				content = m[1] + ". " + content[len(m[0]):]
			}
			parts = append(parts, content+"\n")

		default:
			parts = append(parts, content+"\n")
		}
	}

	return references, strings.Join(parts, "\n")
}

// ImageReferences returns the image-typed references in encounter order.
func ImageReferences(refs []Reference) []Reference {
	var out []Reference
	for _, r := range refs {
		if r.Type == TypeImage {
			out = append(out, r)
		}
	}
	return out
}
