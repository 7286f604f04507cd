package records

import (
	"context"
	"fmt"
	"log/slog"
)

// UpdateDocumentProgress recomputes a document's processed-page count and
// status from the full set of its pages' statuses.
//
// It is called after every page reaches a terminal state and is deliberately
// a full recompute rather than a counter increment: sibling page jobs invoke
// it concurrently, and recomputing from scratch makes the race harmless
// (last write is consistent with some valid snapshot).
func UpdateDocumentProgress(ctx context.Context, store Store, documentID string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	pages, err := store.ListPages(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to list pages for %s: %w", documentID, err)
	}

	completed := 0
	terminal := 0
	failed := 0
	for _, p := range pages {
		switch p.Status {
		case StatusCompleted:
			completed++
			terminal++
		case StatusFailed:
			failed++
			terminal++
		}
	}

	err = store.UpdateDocument(ctx, documentID, func(doc *Document) error {
		doc.ProcessedPages = completed

		switch {
		case doc.PageCount > 0 && completed == doc.PageCount:
			doc.Status = StatusCompleted
		case doc.PageCount > 0 && terminal == doc.PageCount && failed > 0:
			doc.Status = StatusFailed
		default:
			doc.Status = StatusProcessing
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update document %s: %w", documentID, err)
	}

	logger.Debug("document progress updated",
		"document_id", documentID,
		"completed", completed,
		"failed", failed,
	)
	return nil
}
