package processdoc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/jackzampolin/docpond/internal/jobs"
	"github.com/jackzampolin/docpond/internal/records"
	"github.com/jackzampolin/docpond/internal/storage"
	"github.com/jackzampolin/docpond/internal/svcctx"
)

// Start verifies preconditions, optionally applies a text layer to the whole
// PDF, records the page count, and emits the initial work units: a thumbnail
// render, an optional layout analysis, and one split unit per page.
func (j *Job) Start(ctx context.Context) ([]jobs.WorkUnit, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.started {
		return nil, fmt.Errorf("job %s already started", j.id)
	}
	j.started = true

	logger := svcctx.LoggerFrom(ctx).With("job_id", j.id, "document_id", j.cfg.DocumentID)

	doc, source, err := j.checkPreconditions(ctx)
	if err != nil {
		j.failDocument(ctx, err)
		return nil, err
	}

	store := svcctx.RecordsFrom(ctx)
	engine := svcctx.EngineFrom(ctx)

	if j.cfg.ApplyTextLayer && !doc.TextLayerApplied {
		source = j.applyTextLayer(ctx, doc, source)
	}

	pageCount, err := engine.PageCount(source)
	if err != nil {
		err = fmt.Errorf("failed to count pages: %w", err)
		j.failDocument(ctx, err)
		return nil, err
	}
	if pageCount == 0 {
		perr := &PreconditionError{Condition: "document has pages"}
		j.failDocument(ctx, perr)
		return nil, perr
	}
	if err := store.SetPageCount(ctx, doc.ID, pageCount); err != nil && !errors.Is(err, records.ErrPageCountSet) {
		err = fmt.Errorf("failed to set page count: %w", err)
		j.failDocument(ctx, err)
		return nil, err
	}

	if err := store.UpdateDocument(ctx, doc.ID, func(d *records.Document) error {
		d.Status = records.StatusProcessing
		return nil
	}); err != nil {
		return nil, err
	}

	pageNums := j.cfg.Pages
	if len(pageNums) == 0 {
		// Full run. Pages already completed by an interrupted run keep their
		// output; only the rest are processed.
		completed := make(map[int]bool)
		if existing, err := store.ListPages(ctx, doc.ID); err == nil {
			for _, p := range existing {
				if p.Status == records.StatusCompleted {
					completed[p.PageNumber] = true
				}
			}
		}
		for n := 1; n <= pageCount; n++ {
			if !completed[n] {
				pageNums = append(pageNums, n)
			}
		}
		if len(pageNums) == 0 {
			// Everything already done. Recompute the counters and finish.
			if err := records.UpdateDocumentProgress(ctx, store, doc.ID, logger); err != nil {
				return nil, err
			}
			var units []jobs.WorkUnit
			if !j.cfg.SkipThumbnail && doc.ThumbnailKey == "" {
				units = append(units, j.thumbnailUnit())
			}
			j.checkCompletion()
			return units, nil
		}
	}
	sort.Ints(pageNums)

	var units []jobs.WorkUnit
	if !j.cfg.SkipThumbnail {
		units = append(units, j.thumbnailUnit())
	}
	if j.cfg.RunLayout {
		units = append(units, j.layoutUnit())
	}
	for _, n := range pageNums {
		if n < 1 || n > pageCount {
			logger.Warn("skipping out-of-range page", "page", n, "page_count", pageCount)
			continue
		}
		j.pages[n] = &pageState{pageNum: n, stage: stageSplit}
		units = append(units, j.splitUnit(n))
	}
	if len(j.pages) == 0 {
		return nil, &PreconditionError{
			Condition: "at least one page selected",
			Details:   fmt.Sprintf("requested %v of %d pages", j.cfg.Pages, pageCount),
		}
	}

	logger.Info("document processing started",
		"pages", len(j.pages),
		"page_count", pageCount,
		"backend", j.cfg.Backend,
	)
	return units, nil
}

// applyTextLayer runs the configured text layer provider over the source PDF
// and persists the result in place. Any failure leaves the original bytes
// untouched; OCR still works on image-only pages.
func (j *Job) applyTextLayer(ctx context.Context, doc *records.Document, source []byte) []byte {
	logger := svcctx.LoggerFrom(ctx).With("document_id", doc.ID)
	registry := svcctx.RegistryFrom(ctx)
	if registry == nil {
		return source
	}
	provider, err := registry.GetTextLayer(j.cfg.textLayerBackend())
	if err != nil {
		logger.Warn("text layer provider unavailable", "error", err)
		return source
	}

	out, err := provider.AddTextLayer(ctx, source, j.cfg.TextLayerOpts)
	if err != nil {
		logger.Warn("text layer generation failed, continuing with original", "error", err)
		return source
	}

	blobs := svcctx.StorageFrom(ctx)
	key := doc.SourceID
	if key == "" {
		key = storage.SourcePDFKey(doc.ID)
	}
	if _, err := blobs.Save(key, out); err != nil {
		logger.Warn("failed to persist text layered pdf", "error", err)
		return source
	}

	store := svcctx.RecordsFrom(ctx)
	if err := store.UpdateDocument(ctx, doc.ID, func(d *records.Document) error {
		d.TextLayerApplied = true
		return nil
	}); err != nil {
		logger.Warn("failed to mark text layer applied", "error", err)
	}
	logger.Info("text layer applied", "bytes", len(out))
	return out
}

// OnComplete advances the owning page's stage chain, or records document-level
// unit completion. The scheduler delivers results one at a time per job.
func (j *Job) OnComplete(ctx context.Context, result jobs.WorkResult) ([]jobs.WorkUnit, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	info, ok := j.units[result.WorkUnitID]
	if !ok {
		return nil, fmt.Errorf("unknown work unit %s", result.WorkUnitID)
	}
	delete(j.units, result.WorkUnitID)

	logger := svcctx.LoggerFrom(ctx).With("job_id", j.id, "document_id", j.cfg.DocumentID)

	switch info.stage {
	case stageThumbnail, stageLayout:
		j.docPending--
		if !result.Success {
			// Cosmetic and advisory outputs never fail the document.
			logger.Warn("document-level unit failed", "stage", info.stage, "error", result.Error)
		}
		j.checkCompletion()
		return nil, nil
	}

	state, ok := j.pages[info.pageNum]
	if !ok {
		return nil, fmt.Errorf("result for untracked page %d", info.pageNum)
	}

	if !result.Success {
		j.failPage(ctx, state, info.stage, result.Error)
		j.checkCompletion()
		return nil, nil
	}

	var next []jobs.WorkUnit
	switch info.stage {
	case stageSplit:
		pageID, _ := result.CPUResult.Output[keyPageID].(string)
		if pageID == "" {
			j.failPage(ctx, state, info.stage, fmt.Errorf("split produced no page id"))
			break
		}
		state.pageID = pageID
		state.stage = stageRender
		next = append(next, j.renderUnit(state.pageNum, pageID))

	case stageRender:
		image, _ := result.CPUResult.Output[keyImage].([]byte)
		if len(image) == 0 {
			j.failPage(ctx, state, info.stage, fmt.Errorf("render produced no image"))
			break
		}
		state.image = image
		state.stage = stageOCR
		next = append(next, j.ocrUnit(state.pageNum, image))

	case stageOCR:
		if result.OCRResult == nil || result.OCRResult.Text == "" {
			j.failPage(ctx, state, info.stage, fmt.Errorf("ocr produced no text"))
			break
		}
		state.stage = stageFinalize
		next = append(next, j.finalizeUnit(state.pageNum, state.pageID,
			result.OCRResult.Text, state.image, result.OCRResult.Metadata))

	case stageFinalize:
		state.terminal = true
		state.image = nil
		logger.Debug("page completed", "page", state.pageNum)

	default:
		return nil, fmt.Errorf("unknown stage %q", info.stage)
	}

	j.checkCompletion()
	return next, nil
}

// failDocument persists a terminal document failure before Start surfaces
// the error. When the record itself is the thing that could not be found the
// update is a logged no-op.
func (j *Job) failDocument(ctx context.Context, cause error) {
	store := svcctx.RecordsFrom(ctx)
	if store == nil {
		return
	}
	err := store.UpdateDocument(ctx, j.cfg.DocumentID, func(d *records.Document) error {
		d.Status = records.StatusFailed
		if d.Metadata == nil {
			d.Metadata = make(map[string]any)
		}
		d.Metadata["error"] = cause.Error()
		return nil
	})
	if err != nil {
		svcctx.LoggerFrom(ctx).Error("failed to mark document failed",
			"document_id", j.cfg.DocumentID, "error", err)
	}
}

// failPage marks the page record failed and releases its buffered image.
// Caller holds j.mu.
func (j *Job) failPage(ctx context.Context, state *pageState, stage string, cause error) {
	logger := svcctx.LoggerFrom(ctx).With("job_id", j.id, "document_id", j.cfg.DocumentID)
	logger.Error("page failed", "page", state.pageNum, "stage", stage, "error", cause)

	state.terminal = true
	state.image = nil

	store := svcctx.RecordsFrom(ctx)
	if store == nil {
		return
	}

	pageID := state.pageID
	if pageID == "" {
		// Split failed before the page record existed; create it so the
		// failure is visible and counted.
		page, _, err := store.GetOrCreatePage(ctx, j.cfg.DocumentID, state.pageNum)
		if err != nil {
			logger.Error("failed to record page failure", "page", state.pageNum, "error", err)
			return
		}
		pageID = page.ID
	}

	errMsg := "unknown error"
	if cause != nil {
		errMsg = cause.Error()
	}
	err := store.UpdatePage(ctx, pageID, func(p *records.Page) error {
		p.Status = records.StatusFailed
		if p.Metadata == nil {
			p.Metadata = make(map[string]any)
		}
		p.Metadata["error"] = errMsg
		p.Metadata["failed_stage"] = stage
		return nil
	})
	if err != nil {
		logger.Error("failed to mark page failed", "page", state.pageNum, "error", err)
		return
	}
	if err := records.UpdateDocumentProgress(ctx, store, j.cfg.DocumentID, logger); err != nil {
		logger.Error("failed to update document progress", "error", err)
	}
}

// checkCompletion flips done once every page is terminal and no document-level
// units remain. Caller holds j.mu.
func (j *Job) checkCompletion() {
	if j.docPending > 0 {
		return
	}
	for _, state := range j.pages {
		if !state.terminal {
			return
		}
	}
	j.done = true
}

// Status reports progress for the scheduler's job status endpoint.
func (j *Job) Status(ctx context.Context) (map[string]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	terminal := 0
	for _, state := range j.pages {
		if state.terminal {
			terminal++
		}
	}

	status := map[string]string{
		"document_id":    j.cfg.DocumentID,
		"backend":        j.cfg.Backend,
		"zoom":           strconv.FormatFloat(j.cfg.zoom(), 'f', -1, 64),
		"pages_total":    strconv.Itoa(len(j.pages)),
		"pages_terminal": strconv.Itoa(terminal),
	}
	if j.cfg.ApplyTextLayer {
		status["apply_text_layer"] = "true"
		status["text_layer_backend"] = j.cfg.textLayerBackend()
	}
	if j.cfg.RunLayout {
		status["run_layout"] = "true"
		status["layout_backend"] = j.cfg.LayoutBackend
	}
	if len(j.cfg.Pages) > 0 {
		status["page_subset"] = fmt.Sprint(j.cfg.Pages)
	}
	return status, nil
}
