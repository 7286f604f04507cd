package processdoc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jackzampolin/docpond/internal/extract"
	"github.com/jackzampolin/docpond/internal/grounding"
	"github.com/jackzampolin/docpond/internal/jobs"
	"github.com/jackzampolin/docpond/internal/pdf"
	"github.com/jackzampolin/docpond/internal/records"
	"github.com/jackzampolin/docpond/internal/storage"
	"github.com/jackzampolin/docpond/internal/svcctx"
)

// RegisterHandlers installs the pipeline's CPU task handlers on the
// scheduler. Handlers are stateless; every dependency comes from the context
// the scheduler was started with.
func RegisterHandlers(s *jobs.Scheduler) {
	s.RegisterCPUHandler(TaskSplitPage, handleSplitPage)
	s.RegisterCPUHandler(TaskRenderPage, handleRenderPage)
	s.RegisterCPUHandler(TaskFinalizePage, handleFinalizePage)
	s.RegisterCPUHandler(TaskThumbnail, handleThumbnail)
	s.RegisterCPUHandler(TaskLayout, handleLayout)
}

// readSource loads a document's source PDF.
func readSource(ctx context.Context, documentID string) (*records.Document, []byte, error) {
	store := svcctx.RecordsFrom(ctx)
	blobs := svcctx.StorageFrom(ctx)
	if store == nil || blobs == nil {
		return nil, nil, fmt.Errorf("services not available")
	}
	doc, err := store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	key := doc.SourceID
	if key == "" {
		key = storage.SourcePDFKey(doc.ID)
	}
	data, err := storage.ReadAll(blobs, key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read source pdf: %w", err)
	}
	return doc, data, nil
}

// handleSplitPage extracts one page into its own PDF, persists it, and
// ensures the page record exists.
func handleSplitPage(ctx context.Context, req *jobs.CPUWorkRequest) (*jobs.CPUWorkResult, error) {
	engine := svcctx.EngineFrom(ctx)
	store := svcctx.RecordsFrom(ctx)
	blobs := svcctx.StorageFrom(ctx)
	if engine == nil || store == nil || blobs == nil {
		return nil, fmt.Errorf("services not available")
	}

	_, source, err := readSource(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}

	pagePDF, err := engine.ExtractPage(source, req.PageNum)
	if err != nil {
		return nil, fmt.Errorf("failed to extract page %d: %w", req.PageNum, err)
	}
	// Never persist a corrupt split. The page stays absent from storage and
	// fails on its own; siblings are unaffected.
	if err := pdf.Validate(pagePDF); err != nil {
		svcctx.LoggerFrom(ctx).Warn("skipping invalid page split",
			"document_id", req.DocumentID, "page", req.PageNum, "error", err)
		return nil, fmt.Errorf("page %d split invalid: %w", req.PageNum, err)
	}

	key := storage.PagePDFKey(req.DocumentID, req.PageNum)
	if _, err := blobs.Save(key, pagePDF); err != nil {
		return nil, fmt.Errorf("failed to store page pdf: %w", err)
	}

	page, created, err := store.GetOrCreatePage(ctx, req.DocumentID, req.PageNum)
	if err != nil {
		return nil, err
	}
	err = store.UpdatePage(ctx, page.ID, func(p *records.Page) error {
		p.PDFKey = key
		p.Status = records.StatusProcessing
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &jobs.CPUWorkResult{Output: map[string]any{
		keyPageID: page.ID,
		"created": created,
	}}, nil
}

// handleRenderPage rasterizes a split page PDF at the job's zoom.
func handleRenderPage(ctx context.Context, req *jobs.CPUWorkRequest) (*jobs.CPUWorkResult, error) {
	engine := svcctx.EngineFrom(ctx)
	blobs := svcctx.StorageFrom(ctx)
	if engine == nil || blobs == nil {
		return nil, fmt.Errorf("services not available")
	}

	zoom, _ := req.Payload[keyZoom].(float64)
	if zoom <= 0 {
		zoom = DefaultZoom
	}

	pagePDF, err := storage.ReadAll(blobs, storage.PagePDFKey(req.DocumentID, req.PageNum))
	if err != nil {
		return nil, fmt.Errorf("failed to read page pdf: %w", err)
	}

	// Single-page PDF, so always render page 1 of it.
	image, err := engine.RenderPage(ctx, pagePDF, 1, zoom)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", req.PageNum, err)
	}

	return &jobs.CPUWorkResult{Output: map[string]any{keyImage: image}}, nil
}

// handleFinalizePage turns raw grounded OCR output into the page's final
// markdown: parse references, crop and persist image regions, substitute
// placeholders, render the debug overlay, and mark the page completed.
func handleFinalizePage(ctx context.Context, req *jobs.CPUWorkRequest) (*jobs.CPUWorkResult, error) {
	store := svcctx.RecordsFrom(ctx)
	blobs := svcctx.StorageFrom(ctx)
	logger := svcctx.LoggerFrom(ctx).With("document_id", req.DocumentID, "page", req.PageNum)
	if store == nil || blobs == nil {
		return nil, fmt.Errorf("services not available")
	}

	rawText, _ := req.Payload[keyText].(string)
	imageData, _ := req.Payload[keyImage].([]byte)
	ocrMeta, _ := req.Payload["ocr"].(map[string]any)
	if rawText == "" {
		return nil, fmt.Errorf("no ocr text to finalize")
	}

	refs, markdown := grounding.Parse(rawText, grounding.PlaceholderResolver())

	// Replace any extracted images from an earlier run before writing new ones.
	if old, err := store.DeleteImages(ctx, req.PageID); err == nil {
		for _, img := range old {
			if derr := blobs.Delete(img.FileKey); derr != nil {
				logger.Warn("failed to delete stale image blob", "key", img.FileKey, "error", derr)
			}
		}
	}

	var finalRefs []string
	if imageRefs := grounding.ImageReferences(refs); len(imageRefs) > 0 && len(imageData) > 0 {
		src, err := extract.Decode(imageData)
		if err != nil {
			logger.Warn("failed to decode page render, skipping image extraction", "error", err)
		} else {
			sink := func(regionIndex int, data []byte, width, height int) error {
				img := &records.ExtractedImage{
					ID:     uuid.New().String(),
					PageID: req.PageID,
					Width:  width,
					Height: height,
					Metadata: map[string]any{
						"region_index": regionIndex,
					},
				}
				img.FileKey = storage.ExtractedImageKey(req.DocumentID, req.PageNum, img.ID)
				if _, err := blobs.Save(img.FileKey, data); err != nil {
					return err
				}
				if err := store.CreateImage(ctx, img); err != nil {
					return err
				}
				finalRefs = append(finalRefs, img.URLPath())
				return nil
			}
			extract.Images(src, refs, sink, logger)
		}
	}

	markdown = grounding.Reconcile(markdown, finalRefs, logger)

	var refsJSON []byte
	if len(refs) > 0 {
		encoded, err := json.Marshal(refs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode references: %w", err)
		}
		refsJSON = encoded
	}

	var overlayKey string
	if len(refs) > 0 && len(imageData) > 0 {
		if src, err := extract.Decode(imageData); err == nil {
			if overlay, err := extract.Overlay(src, refs); err == nil {
				overlayKey = storage.PageOverlayKey(req.DocumentID, req.PageNum)
				if _, err := blobs.Save(overlayKey, overlay); err != nil {
					logger.Warn("failed to store overlay", "error", err)
					overlayKey = ""
				}
			} else {
				logger.Warn("failed to render overlay", "error", err)
			}
		}
	}

	err := store.UpdatePage(ctx, req.PageID, func(p *records.Page) error {
		p.RawText = rawText
		p.Markdown = markdown
		if overlayKey != "" {
			p.OverlayKey = overlayKey
		}
		p.Status = records.StatusCompleted
		if refsJSON != nil {
			p.Layout = refsJSON
		}
		if p.Metadata == nil {
			p.Metadata = make(map[string]any)
		}
		delete(p.Metadata, "error")
		delete(p.Metadata, "failed_stage")
		for k, v := range ocrMeta {
			p.Metadata[k] = v
		}
		p.Metadata["reference_count"] = len(refs)
		p.Metadata["image_count"] = len(finalRefs)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := records.UpdateDocumentProgress(ctx, store, req.DocumentID, logger); err != nil {
		logger.Error("failed to update document progress", "error", err)
	}

	return &jobs.CPUWorkResult{Output: map[string]any{
		"references": len(refs),
		"images":     len(finalRefs),
	}}, nil
}

// handleThumbnail renders the first page as the document cover.
func handleThumbnail(ctx context.Context, req *jobs.CPUWorkRequest) (*jobs.CPUWorkResult, error) {
	engine := svcctx.EngineFrom(ctx)
	store := svcctx.RecordsFrom(ctx)
	blobs := svcctx.StorageFrom(ctx)
	if engine == nil || store == nil || blobs == nil {
		return nil, fmt.Errorf("services not available")
	}

	_, source, err := readSource(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}

	zoom, _ := req.Payload[keyZoom].(float64)
	if zoom <= 0 {
		zoom = DefaultZoom
	}
	cover, err := engine.RenderPage(ctx, source, 1, zoom)
	if err != nil {
		return nil, fmt.Errorf("failed to render cover: %w", err)
	}

	key := storage.ThumbnailKey(req.DocumentID)
	if _, err := blobs.Save(key, cover); err != nil {
		return nil, fmt.Errorf("failed to store thumbnail: %w", err)
	}

	err = store.UpdateDocument(ctx, req.DocumentID, func(d *records.Document) error {
		d.ThumbnailKey = key
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &jobs.CPUWorkResult{Output: map[string]any{"thumbnail_key": key}}, nil
}

// handleLayout runs whole-document layout analysis and stores the result
// alongside the source PDF.
func handleLayout(ctx context.Context, req *jobs.CPUWorkRequest) (*jobs.CPUWorkResult, error) {
	registry := svcctx.RegistryFrom(ctx)
	store := svcctx.RecordsFrom(ctx)
	blobs := svcctx.StorageFrom(ctx)
	if registry == nil || store == nil || blobs == nil {
		return nil, fmt.Errorf("services not available")
	}

	backend, _ := req.Payload[keyBackend].(string)
	provider, err := registry.GetLayout(backend)
	if err != nil {
		return nil, err
	}

	_, source, err := readSource(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}

	result, err := provider.ProcessPDF(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("layout analysis failed: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("layout analysis failed: %s", result.ErrorMessage)
	}

	layoutKey := storage.DocumentPrefix(req.DocumentID) + "/layout.json"
	if _, err := blobs.Save(layoutKey, result.Layout); err != nil {
		return nil, fmt.Errorf("failed to store layout: %w", err)
	}
	markdownKey := storage.DocumentPrefix(req.DocumentID) + "/layout.md"
	if _, err := blobs.Save(markdownKey, []byte(result.Markdown)); err != nil {
		return nil, fmt.Errorf("failed to store layout markdown: %w", err)
	}

	err = store.UpdateDocument(ctx, req.DocumentID, func(d *records.Document) error {
		if d.Metadata == nil {
			d.Metadata = make(map[string]any)
		}
		d.Metadata["layout_key"] = layoutKey
		d.Metadata["layout_markdown_key"] = markdownKey
		d.Metadata["layout_backend"] = provider.Name()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &jobs.CPUWorkResult{Output: map[string]any{"layout_key": layoutKey}}, nil
}
