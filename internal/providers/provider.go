package providers

import (
	"context"
	"encoding/json"
	"time"
)

// DefaultGroundingPrompt is sent to grounding-capable OCR models. The
// <|grounding|> directive makes the model emit bounding-box reference tags
// around each recognized region instead of plain markdown.
const DefaultGroundingPrompt = "<|grounding|>Convert the document to markdown."

// OCRProvider converts a rendered page image into grounded markdown.
// Implementations wrap one remote model endpoint and carry their own rate
// limiting and retry characteristics so the scheduler can pace work per
// provider.
type OCRProvider interface {
	// Name returns the provider identifier (e.g., "ollama", "openai").
	Name() string

	// ProcessImage extracts text from a single page image.
	ProcessImage(ctx context.Context, image []byte, pageNum int) (*OCRResult, error)

	// Rate limiting properties
	RequestsPerSecond() float64
	MaxRetries() int
	RetryDelayBase() time.Duration
}

// LayoutProvider analyzes a whole PDF and returns a structured layout
// description. Separate from OCRProvider because it operates on documents
// rather than page images and returns a JSON payload, not markdown.
type LayoutProvider interface {
	Name() string

	// ProcessPDF runs layout analysis over the full document.
	ProcessPDF(ctx context.Context, pdf []byte) (*LayoutResult, error)

	RequestsPerSecond() float64
}

// TextLayerProvider adds a searchable text layer to a scanned PDF before the
// page pipeline runs. Failures here are advisory: callers proceed with the
// original bytes when the provider errors.
type TextLayerProvider interface {
	Name() string

	// AddTextLayer returns a new PDF with an embedded text layer.
	AddTextLayer(ctx context.Context, pdf []byte, opts TextLayerOptions) ([]byte, error)
}

// TextLayerOptions tunes text layer generation.
type TextLayerOptions struct {
	Languages []string // OCR languages, e.g. ["eng", "deu"]
	Force     bool     // Re-OCR pages that already have text
	Deskew    bool
}

// OCRResult is the outcome of a single page OCR call.
type OCRResult struct {
	Success bool `json:"success"`

	// Text is the raw model output including grounding reference tags.
	Text string `json:"text"`

	// Metadata carries provider-specific details (model, token counts,
	// image dimensions) that get persisted with the page record.
	Metadata map[string]any `json:"metadata,omitempty"`

	ExecutionTime time.Duration `json:"execution_time"`
	ErrorMessage  string        `json:"error_message,omitempty"`
}

// LayoutResult is the outcome of a document layout analysis call.
type LayoutResult struct {
	Success bool `json:"success"`

	// Markdown is the document-level markdown export, when the backend
	// produces one.
	Markdown string `json:"markdown,omitempty"`

	// Layout is the validated raw layout payload.
	Layout json.RawMessage `json:"layout,omitempty"`

	ExecutionTime time.Duration `json:"execution_time"`
	ErrorMessage  string        `json:"error_message,omitempty"`
}
