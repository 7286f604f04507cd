// Package processdoc implements the document processing job: split the
// source PDF into pages, render and OCR each page through a grounding
// backend, extract referenced images, and reconcile the final markdown.
// Pages are independent work units; one failed page never fails the job.
package processdoc

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jackzampolin/docpond/internal/providers"
)

// JobType identifies document processing jobs in the scheduler.
const JobType = "process_document"

// Pipeline stages, in page order. Document-level units (thumbnail, layout)
// run alongside the per-page chain.
const (
	stageSplit     = "split"
	stageRender    = "render"
	stageOCR       = "ocr"
	stageFinalize  = "finalize"
	stageThumbnail = "thumbnail"
	stageLayout    = "layout"
)

// CPU task handler names. Registered once on the scheduler's CPU pool via
// RegisterHandlers.
const (
	TaskSplitPage    = "page_split"
	TaskRenderPage   = "page_render"
	TaskFinalizePage = "page_finalize"
	TaskThumbnail    = "document_thumbnail"
	TaskLayout       = "document_layout"
)

// Payload and output keys shared between the job and its CPU handlers.
const (
	keyPageID  = "page_id"
	keyImage   = "image"
	keyZoom    = "zoom"
	keyText    = "text"
	keyBackend = "backend"
	keyDoOCR   = "do_ocr"
)

// DefaultZoom is the render scale applied when a job does not set one.
const DefaultZoom = 2.0

// Config describes one processing run.
type Config struct {
	DocumentID string `json:"document_id"`

	// Backend names the OCR provider pool. Empty routes to any OCR pool.
	Backend string `json:"backend,omitempty"`

	// Zoom scales page rendering. Zero means DefaultZoom.
	Zoom float64 `json:"zoom,omitempty"`

	// Pages restricts processing to the given 1-based page numbers.
	// Empty means every page. Used by per-page reprocessing.
	Pages []int `json:"pages,omitempty"`

	// ApplyTextLayer runs the text layer provider over the whole PDF before
	// splitting. Failures are logged and processing continues on the
	// original document.
	ApplyTextLayer   bool                       `json:"apply_text_layer,omitempty"`
	TextLayerBackend string                     `json:"text_layer_backend,omitempty"`
	TextLayerOpts    providers.TextLayerOptions `json:"text_layer_opts,omitempty"`

	// RunLayout requests a document-level layout analysis alongside OCR.
	RunLayout     bool   `json:"run_layout,omitempty"`
	LayoutBackend string `json:"layout_backend,omitempty"`
	LayoutDoOCR   bool   `json:"layout_do_ocr,omitempty"`

	// SkipThumbnail suppresses the cover render, used by reprocess runs
	// where the thumbnail already exists.
	SkipThumbnail bool `json:"skip_thumbnail,omitempty"`
}

func (c Config) validate() error {
	if c.DocumentID == "" {
		return fmt.Errorf("document_id is required")
	}
	return nil
}

func (c Config) zoom() float64 {
	if c.Zoom > 0 {
		return c.Zoom
	}
	return DefaultZoom
}

func (c Config) textLayerBackend() string {
	if c.TextLayerBackend != "" {
		return c.TextLayerBackend
	}
	return providers.OCRmyPDFName
}

// pageState tracks one page through the split/render/ocr/finalize chain.
type pageState struct {
	pageNum int
	pageID  string

	// image holds the rendered page between the render and finalize stages.
	// Released once the page reaches a terminal state.
	image []byte

	stage    string
	terminal bool
}

// unitInfo records what an in-flight work unit was for, so OnComplete can
// route its result.
type unitInfo struct {
	stage   string
	pageNum int
}

// Job drives one document through the pipeline. All mutation happens under
// mu; the scheduler only ever delivers one result at a time.
type Job struct {
	mu sync.Mutex

	id       string
	recordID string
	cfg      Config

	started bool
	done    bool

	pages map[int]*pageState
	units map[string]unitInfo

	// docPending counts outstanding document-level units (thumbnail, layout).
	docPending int
}

// New builds an unstarted processing job.
func New(cfg Config) (*Job, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Job{
		id:    uuid.New().String(),
		cfg:   cfg,
		pages: make(map[int]*pageState),
		units: make(map[string]unitInfo),
	}, nil
}

// ID returns the job's scheduler identity.
func (j *Job) ID() string { return j.id }

// SetRecordID binds the job to its persisted record.
func (j *Job) SetRecordID(id string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.recordID = id
	j.id = id
}

// Type returns the job type used for factory lookup on resume.
func (j *Job) Type() string { return JobType }

// Done reports whether every page reached a terminal state and all
// document-level units finished.
func (j *Job) Done() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.done
}
