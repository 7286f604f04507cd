package records

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStoreDocuments(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	doc := &Document{ID: "doc-1", Title: "Field Notes", Status: StatusPending}
	if err := store.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}

	t.Run("get returns a copy", func(t *testing.T) {
		got, err := store.GetDocument(ctx, "doc-1")
		if err != nil {
			t.Fatalf("GetDocument failed: %v", err)
		}
		got.Title = "mutated"
		again, _ := store.GetDocument(ctx, "doc-1")
		if again.Title != "Field Notes" {
			t.Errorf("caller mutation leaked into store: %q", again.Title)
		}
	})

	t.Run("update mutates through callback", func(t *testing.T) {
		err := store.UpdateDocument(ctx, "doc-1", func(d *Document) error {
			d.Status = StatusProcessing
			return nil
		})
		if err != nil {
			t.Fatalf("UpdateDocument failed: %v", err)
		}
		got, _ := store.GetDocument(ctx, "doc-1")
		if got.Status != StatusProcessing {
			t.Errorf("expected processing, got %s", got.Status)
		}
		if got.UpdatedAt.Before(got.CreatedAt) {
			t.Error("UpdatedAt not refreshed")
		}
	})

	t.Run("missing document", func(t *testing.T) {
		if _, err := store.GetDocument(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("delete removes document", func(t *testing.T) {
		other := &Document{ID: "doc-gone", Status: StatusPending}
		if err := store.CreateDocument(ctx, other); err != nil {
			t.Fatalf("CreateDocument failed: %v", err)
		}
		if err := store.DeleteDocument(ctx, "doc-gone"); err != nil {
			t.Fatalf("DeleteDocument failed: %v", err)
		}
		if _, err := store.GetDocument(ctx, "doc-gone"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})
}

func TestSetPageCount(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.CreateDocument(ctx, &Document{ID: "doc-1", Status: StatusPending}); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}

	if err := store.SetPageCount(ctx, "doc-1", 12); err != nil {
		t.Fatalf("SetPageCount failed: %v", err)
	}
	doc, _ := store.GetDocument(ctx, "doc-1")
	if doc.PageCount != 12 {
		t.Errorf("expected page count 12, got %d", doc.PageCount)
	}

	if err := store.SetPageCount(ctx, "doc-1", 20); !errors.Is(err, ErrPageCountSet) {
		t.Errorf("expected ErrPageCountSet, got %v", err)
	}
	doc, _ = store.GetDocument(ctx, "doc-1")
	if doc.PageCount != 12 {
		t.Errorf("page count overwritten to %d", doc.PageCount)
	}
}

func TestGetOrCreatePage(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.CreateDocument(ctx, &Document{ID: "doc-1", Status: StatusPending}); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}

	page, created, err := store.GetOrCreatePage(ctx, "doc-1", 3)
	if err != nil {
		t.Fatalf("GetOrCreatePage failed: %v", err)
	}
	if !created {
		t.Error("expected created=true on first call")
	}
	if page.PageNumber != 3 || page.DocumentID != "doc-1" || page.Status != StatusPending {
		t.Errorf("unexpected page: %+v", page)
	}

	again, created, err := store.GetOrCreatePage(ctx, "doc-1", 3)
	if err != nil {
		t.Fatalf("second GetOrCreatePage failed: %v", err)
	}
	if created {
		t.Error("expected created=false on retry")
	}
	if again.ID != page.ID {
		t.Errorf("retry produced new page id %s, want %s", again.ID, page.ID)
	}

	pages, err := store.ListPages(ctx, "doc-1")
	if err != nil {
		t.Fatalf("ListPages failed: %v", err)
	}
	if len(pages) != 1 {
		t.Errorf("expected 1 page, got %d", len(pages))
	}
}

func TestListPagesOrdered(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.CreateDocument(ctx, &Document{ID: "doc-1", Status: StatusPending}); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	for _, n := range []int{4, 1, 3, 2} {
		if _, _, err := store.GetOrCreatePage(ctx, "doc-1", n); err != nil {
			t.Fatalf("GetOrCreatePage(%d) failed: %v", n, err)
		}
	}

	pages, err := store.ListPages(ctx, "doc-1")
	if err != nil {
		t.Fatalf("ListPages failed: %v", err)
	}
	for i, p := range pages {
		if p.PageNumber != i+1 {
			t.Errorf("position %d: expected page %d, got %d", i, i+1, p.PageNumber)
		}
	}
}

func TestImages(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.CreateDocument(ctx, &Document{ID: "doc-1"}); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	p1, _, err := store.GetOrCreatePage(ctx, "doc-1", 1)
	if err != nil {
		t.Fatalf("GetOrCreatePage failed: %v", err)
	}
	p2, _, err := store.GetOrCreatePage(ctx, "doc-1", 2)
	if err != nil {
		t.Fatalf("GetOrCreatePage failed: %v", err)
	}

	img := &ExtractedImage{ID: "img-1", PageID: p1.ID, FileKey: "k1", Width: 100, Height: 80}
	if err := store.CreateImage(ctx, img); err != nil {
		t.Fatalf("CreateImage failed: %v", err)
	}
	if err := store.CreateImage(ctx, &ExtractedImage{ID: "img-2", PageID: p1.ID, FileKey: "k2"}); err != nil {
		t.Fatalf("CreateImage failed: %v", err)
	}
	if err := store.CreateImage(ctx, &ExtractedImage{ID: "img-3", PageID: p2.ID, FileKey: "k3"}); err != nil {
		t.Fatalf("CreateImage failed: %v", err)
	}

	got, err := store.GetImage(ctx, "img-1")
	if err != nil {
		t.Fatalf("GetImage failed: %v", err)
	}
	if got.Width != 100 || got.FileKey != "k1" {
		t.Errorf("unexpected image: %+v", got)
	}
	if _, err := store.GetImage(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	images, err := store.ListImages(ctx, p1.ID)
	if err != nil {
		t.Fatalf("ListImages failed: %v", err)
	}
	if len(images) != 2 {
		t.Errorf("expected 2 images for first page, got %d", len(images))
	}

	deleted, err := store.DeleteImages(ctx, p1.ID)
	if err != nil {
		t.Fatalf("DeleteImages failed: %v", err)
	}
	if len(deleted) != 2 {
		t.Errorf("expected 2 deleted, got %d", len(deleted))
	}
	if remaining, _ := store.ListImages(ctx, p1.ID); len(remaining) != 0 {
		t.Errorf("expected no images left, got %d", len(remaining))
	}
	if others, _ := store.ListImages(ctx, p2.ID); len(others) != 1 {
		t.Errorf("second page images disturbed: got %d", len(others))
	}
}

func TestURLPath(t *testing.T) {
	img := &ExtractedImage{ID: "abc"}
	if got := img.URLPath(); got != "/images/abc" {
		t.Errorf("unexpected url path: %q", got)
	}
}

func TestUpdateDocumentProgress(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, pageCount int, statuses []Status) Store {
		t.Helper()
		store := NewMemoryStore()
		doc := &Document{ID: "doc-1", Status: StatusProcessing, PageCount: pageCount}
		if err := store.CreateDocument(ctx, doc); err != nil {
			t.Fatalf("CreateDocument failed: %v", err)
		}
		// PageCount is set directly above; write pages with the given statuses.
		for i, s := range statuses {
			page, _, err := store.GetOrCreatePage(ctx, "doc-1", i+1)
			if err != nil {
				t.Fatalf("GetOrCreatePage failed: %v", err)
			}
			status := s
			if err := store.UpdatePage(ctx, page.ID, func(p *Page) error {
				p.Status = status
				return nil
			}); err != nil {
				t.Fatalf("UpdatePage failed: %v", err)
			}
		}
		return store
	}

	t.Run("all completed", func(t *testing.T) {
		store := setup(t, 3, []Status{StatusCompleted, StatusCompleted, StatusCompleted})
		if err := UpdateDocumentProgress(ctx, store, "doc-1", nil); err != nil {
			t.Fatalf("UpdateDocumentProgress failed: %v", err)
		}
		doc, _ := store.GetDocument(ctx, "doc-1")
		if doc.Status != StatusCompleted || doc.ProcessedPages != 3 {
			t.Errorf("expected completed/3, got %s/%d", doc.Status, doc.ProcessedPages)
		}
	})

	t.Run("terminal with failures", func(t *testing.T) {
		store := setup(t, 3, []Status{StatusCompleted, StatusFailed, StatusCompleted})
		if err := UpdateDocumentProgress(ctx, store, "doc-1", nil); err != nil {
			t.Fatalf("UpdateDocumentProgress failed: %v", err)
		}
		doc, _ := store.GetDocument(ctx, "doc-1")
		if doc.Status != StatusFailed || doc.ProcessedPages != 2 {
			t.Errorf("expected failed/2, got %s/%d", doc.Status, doc.ProcessedPages)
		}
	})

	t.Run("still in flight", func(t *testing.T) {
		store := setup(t, 3, []Status{StatusCompleted, StatusProcessing})
		if err := UpdateDocumentProgress(ctx, store, "doc-1", nil); err != nil {
			t.Fatalf("UpdateDocumentProgress failed: %v", err)
		}
		doc, _ := store.GetDocument(ctx, "doc-1")
		if doc.Status != StatusProcessing || doc.ProcessedPages != 1 {
			t.Errorf("expected processing/1, got %s/%d", doc.Status, doc.ProcessedPages)
		}
	})
}

func TestDocumentProgress(t *testing.T) {
	doc := &Document{PageCount: 0}
	if got := doc.Progress(); got != 0 {
		t.Errorf("expected 0 for unknown count, got %v", got)
	}
	doc = &Document{PageCount: 4, ProcessedPages: 1}
	if got := doc.Progress(); got != 25 {
		t.Errorf("expected 25, got %v", got)
	}
}
