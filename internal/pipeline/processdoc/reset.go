package processdoc

import (
	"context"
	"fmt"

	"github.com/jackzampolin/docpond/internal/records"
	"github.com/jackzampolin/docpond/internal/svcctx"
)

// ResetPage clears a page's OCR output so it can be processed again: deletes
// its extracted images and their blobs, wipes the text fields, and returns
// the page to pending. The document counters are recomputed afterwards.
func ResetPage(ctx context.Context, pageID string) (*records.Page, error) {
	store := svcctx.RecordsFrom(ctx)
	blobs := svcctx.StorageFrom(ctx)
	logger := svcctx.LoggerFrom(ctx)
	if store == nil || blobs == nil {
		return nil, fmt.Errorf("services not available")
	}

	page, err := store.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}

	removed, err := store.DeleteImages(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete extracted images: %w", err)
	}
	for _, img := range removed {
		if err := blobs.Delete(img.FileKey); err != nil {
			logger.Warn("failed to delete image blob", "key", img.FileKey, "error", err)
		}
	}
	if page.OverlayKey != "" {
		if err := blobs.Delete(page.OverlayKey); err != nil {
			logger.Warn("failed to delete overlay blob", "key", page.OverlayKey, "error", err)
		}
	}

	err = store.UpdatePage(ctx, pageID, func(p *records.Page) error {
		p.RawText = ""
		p.Markdown = ""
		p.Layout = nil
		p.OverlayKey = ""
		p.Status = records.StatusPending
		delete(p.Metadata, "error")
		delete(p.Metadata, "failed_stage")
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := records.UpdateDocumentProgress(ctx, store, page.DocumentID, logger); err != nil {
		logger.Error("failed to update document progress", "document_id", page.DocumentID, "error", err)
	}
	return store.GetPage(ctx, pageID)
}

// ResetDocument resets every page of a document. Returns the number of pages
// reset.
func ResetDocument(ctx context.Context, documentID string) (int, error) {
	store := svcctx.RecordsFrom(ctx)
	if store == nil {
		return 0, fmt.Errorf("services not available")
	}

	pages, err := store.ListPages(ctx, documentID)
	if err != nil {
		return 0, err
	}
	for _, p := range pages {
		if _, err := ResetPage(ctx, p.ID); err != nil {
			return 0, fmt.Errorf("failed to reset page %d: %w", p.PageNumber, err)
		}
	}

	err = store.UpdateDocument(ctx, documentID, func(d *records.Document) error {
		d.Status = records.StatusPending
		d.ProcessedPages = 0
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(pages), nil
}
