package records

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("records: not found")

// ErrPageCountSet is returned when attempting to overwrite a document's
// page count after the first successful count.
var ErrPageCountSet = errors.New("records: page count already set")

// Store abstracts record persistence for the pipeline.
//
// The pipeline is the only writer of page records and of document
// status/counters; everything else (titles, ponds, presets) belongs to the
// HTTP layer. Implementations must be safe for concurrent use: sibling page
// jobs update the shared document record concurrently.
type Store interface {
	// Documents
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	ListDocuments(ctx context.Context) ([]*Document, error)
	UpdateDocument(ctx context.Context, id string, mutate func(*Document) error) error
	DeleteDocument(ctx context.Context, id string) error

	// SetPageCount records the page count exactly once. Subsequent calls
	// with the count already set return ErrPageCountSet.
	SetPageCount(ctx context.Context, id string, count int) error

	// Pages
	GetPage(ctx context.Context, id string) (*Page, error)
	ListPages(ctx context.Context, documentID string) ([]*Page, error)

	// GetOrCreatePage returns the page for (documentID, pageNumber),
	// creating it with status pending if absent. Idempotent against
	// retried splits.
	GetOrCreatePage(ctx context.Context, documentID string, pageNumber int) (*Page, bool, error)

	UpdatePage(ctx context.Context, id string, mutate func(*Page) error) error

	// Images
	CreateImage(ctx context.Context, img *ExtractedImage) error
	GetImage(ctx context.Context, id string) (*ExtractedImage, error)
	ListImages(ctx context.Context, pageID string) ([]*ExtractedImage, error)
	DeleteImages(ctx context.Context, pageID string) ([]*ExtractedImage, error)
}
