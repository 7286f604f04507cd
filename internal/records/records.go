// Package records defines the persisted Document/Page/ExtractedImage records
// and the store interface the pipeline mutates them through. The database
// itself is an external collaborator; the in-memory store here is the
// reference implementation and the test double.
package records

import (
	"time"
)

// Status is the processing status shared by documents and pages.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is terminal. Terminal statuses only
// change via an explicit reprocess.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Document is one logical scanned book.
type Document struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	PondID   string `json:"pond_id,omitempty"` // owning collection, opaque here
	SourceID string `json:"source_key"`        // storage key of the original PDF

	// PageCount is 0 until the first successful count and immutable after.
	PageCount      int    `json:"page_count"`
	ProcessedPages int    `json:"processed_pages"`
	Status         Status `json:"status"`

	ThumbnailKey string `json:"thumbnail_key,omitempty"`

	// PresetID selects the OCR/layout backend preset, resolved once per document.
	PresetID string `json:"preset_id,omitempty"`

	// TextLayerApplied tracks whether whole-document preprocessing already ran.
	TextLayerApplied bool `json:"text_layer_applied,omitempty"`

	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Progress returns processing progress as a percentage.
func (d *Document) Progress() float64 {
	if d.PageCount == 0 {
		return 0
	}
	return float64(d.ProcessedPages) / float64(d.PageCount) * 100
}

// Page is one page of a Document. (document_id, page_number) is unique.
type Page struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	PageNumber int    `json:"page_number"` // 1-based

	PDFKey     string `json:"pdf_key,omitempty"`
	OverlayKey string `json:"overlay_key,omitempty"`

	RawText  string `json:"raw_text,omitempty"`  // raw backend output
	Markdown string `json:"markdown,omitempty"`  // reconciled markdown
	Layout   []byte `json:"layout,omitempty"`    // parsed grounding references, JSON array
	Status   Status `json:"status"`

	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ExtractedImage is one raster region cropped out of a page.
type ExtractedImage struct {
	ID     string `json:"id"`
	PageID string `json:"page_id"`

	FileKey string `json:"file_key"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Caption string `json:"caption,omitempty"`

	// Metadata stores the originating region index among image-typed regions.
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// URLPath returns the externally addressable reference for the image,
// substituted into markdown by the reconciler.
func (img *ExtractedImage) URLPath() string {
	return "/images/" + img.ID
}
