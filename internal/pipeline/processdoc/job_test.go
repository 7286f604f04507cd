package processdoc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/docpond/internal/grounding"
	"github.com/jackzampolin/docpond/internal/jobs"
	"github.com/jackzampolin/docpond/internal/providers"
	"github.com/jackzampolin/docpond/internal/records"
	"github.com/jackzampolin/docpond/internal/storage"
	"github.com/jackzampolin/docpond/internal/svcctx"
)

// fakeEngine is a pdf.Engine that fabricates pages without poppler.
type fakeEngine struct {
	pages      int
	renderFail bool
	badSplits  map[int]bool // pages whose split comes back empty
}

func (e *fakeEngine) PageCount(pdf []byte) (int, error) {
	return e.pages, nil
}

func (e *fakeEngine) ExtractPage(pdf []byte, pageNum int) ([]byte, error) {
	if e.badSplits[pageNum] {
		return []byte{}, nil
	}
	return []byte(fmt.Sprintf("%%PDF-1.4 page %d", pageNum)), nil
}

func (e *fakeEngine) RenderPage(ctx context.Context, pdf []byte, pageNum int, zoom float64) ([]byte, error) {
	if e.renderFail {
		return nil, fmt.Errorf("render backend unavailable")
	}
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0x40, A: 0xFF})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type testEnv struct {
	store    *records.MemoryStore
	blobs    *storage.FsStore
	engine   *fakeEngine
	manager  *jobs.Manager
	sched    *jobs.Scheduler
	mock     *providers.MockOCRClient
	services *svcctx.Services
	ctx      context.Context
}

func newTestEnv(t *testing.T, pages int) *testEnv {
	t.Helper()

	env := &testEnv{
		store:   records.NewMemoryStore(),
		blobs:   storage.NewMemory(),
		engine:  &fakeEngine{pages: pages},
		manager: jobs.NewManager(),
		mock:    providers.NewMockOCRClient(),
	}

	registry := providers.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry.SetLogger(logger)
	registry.RegisterOCR("mock", env.mock)

	env.sched = jobs.NewScheduler(jobs.SchedulerConfig{Manager: env.manager, Logger: logger})
	if err := env.sched.InitFromRegistry(registry); err != nil {
		t.Fatalf("InitFromRegistry failed: %v", err)
	}
	env.sched.InitCPUPool(2)
	RegisterHandlers(env.sched)

	env.services = &svcctx.Services{
		Records:    env.store,
		Storage:    env.blobs,
		Engine:     env.engine,
		JobManager: env.manager,
		Registry:   registry,
		Scheduler:  env.sched,
		Logger:     logger,
	}
	baseCtx, cancel := context.WithCancel(svcctx.WithServices(context.Background(), env.services))
	t.Cleanup(cancel)
	env.ctx = baseCtx
	go env.sched.Start(baseCtx)

	return env
}

// createDocument stores a document record and its source PDF blob.
func (env *testEnv) createDocument(t *testing.T) *records.Document {
	t.Helper()
	doc := &records.Document{
		ID:    uuid.New().String(),
		Title: "test book",
	}
	doc.SourceID = storage.SourcePDFKey(doc.ID)
	if _, err := env.blobs.Save(doc.SourceID, []byte("%PDF-1.4 test document")); err != nil {
		t.Fatalf("failed to store source pdf: %v", err)
	}
	if err := env.store.CreateDocument(env.ctx, doc); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	return doc
}

func (env *testEnv) waitForJob(t *testing.T, jobID string) {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		record, err := env.manager.Get(env.ctx, jobID)
		if err == nil && record.Status == jobs.StatusCompleted {
			return
		}
		if err == nil && record.Status == jobs.StatusFailed {
			t.Fatalf("job failed: %s", record.Error)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not complete before timeout")
}

// groundedText fabricates grounding backend output with one text region and
// one image region.
func groundedText(caption string) string {
	return "<|ref|>title<|/ref|><|det|>[[10, 5, 190, 25]]<|/det|># " + caption + "\n" +
		"<|ref|>text<|/ref|><|det|>[[10, 30, 190, 90]]<|/det|>Body of " + caption + ".\n" +
		"<|ref|>image<|/ref|><|det|>[[20, 100, 120, 180]]<|/det|>"
}

func TestProcessDocument(t *testing.T) {
	env := newTestEnv(t, 2)
	doc := env.createDocument(t)
	env.mock.TextForPage = map[int]string{
		1: groundedText("Page One"),
		2: groundedText("Page Two"),
	}

	job, err := New(Config{DocumentID: doc.ID, Backend: "mock"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := env.sched.Submit(env.ctx, job); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	env.waitForJob(t, job.ID())

	got, err := env.store.GetDocument(env.ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if got.Status != records.StatusCompleted {
		t.Errorf("expected completed document, got %s", got.Status)
	}
	if got.PageCount != 2 || got.ProcessedPages != 2 {
		t.Errorf("unexpected counters: count=%d processed=%d", got.PageCount, got.ProcessedPages)
	}
	if got.ThumbnailKey == "" || !env.blobs.Exists(got.ThumbnailKey) {
		t.Error("thumbnail not rendered")
	}

	pages, err := env.store.ListPages(env.ctx, doc.ID)
	if err != nil {
		t.Fatalf("ListPages failed: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	for _, page := range pages {
		if page.Status != records.StatusCompleted {
			t.Errorf("page %d not completed: %s", page.PageNumber, page.Status)
		}
		if page.RawText == "" {
			t.Errorf("page %d missing raw text", page.PageNumber)
		}
		if !strings.Contains(page.Markdown, "# Page") {
			t.Errorf("page %d markdown missing title: %q", page.PageNumber, page.Markdown)
		}
		if strings.Contains(page.Markdown, "__IMAGE_PLACEHOLDER_") {
			t.Errorf("page %d has unreconciled placeholders: %q", page.PageNumber, page.Markdown)
		}
		if page.PDFKey == "" || !env.blobs.Exists(page.PDFKey) {
			t.Errorf("page %d pdf not stored", page.PageNumber)
		}
		if page.OverlayKey == "" || !env.blobs.Exists(page.OverlayKey) {
			t.Errorf("page %d overlay not stored", page.PageNumber)
		}
		if page.Metadata["image_count"] != 1 {
			t.Errorf("page %d unexpected image_count: %v", page.PageNumber, page.Metadata["image_count"])
		}

		images, err := env.store.ListImages(env.ctx, page.ID)
		if err != nil {
			t.Fatalf("ListImages failed: %v", err)
		}
		if len(images) != 1 {
			t.Fatalf("page %d: expected 1 extracted image, got %d", page.PageNumber, len(images))
		}
		img := images[0]
		if !env.blobs.Exists(img.FileKey) {
			t.Errorf("image blob missing: %s", img.FileKey)
		}
		if !strings.Contains(page.Markdown, img.URLPath()) {
			t.Errorf("markdown does not reference %s: %q", img.URLPath(), page.Markdown)
		}
	}

	if env.mock.RequestCount() != 2 {
		t.Errorf("expected 2 OCR calls, got %d", env.mock.RequestCount())
	}
}

func TestProcessDocumentPageFailureIsolation(t *testing.T) {
	env := newTestEnv(t, 2)
	doc := env.createDocument(t)
	// Page 2's backend output is empty, which fails that page only.
	env.mock.TextForPage = map[int]string{
		1: groundedText("Page One"),
		2: "",
	}

	job, err := New(Config{DocumentID: doc.ID, Backend: "mock"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := env.sched.Submit(env.ctx, job); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	env.waitForJob(t, job.ID())

	got, _ := env.store.GetDocument(env.ctx, doc.ID)
	if got.Status != records.StatusFailed {
		t.Errorf("document with a failed page should be failed, got %s", got.Status)
	}
	if got.ProcessedPages != 1 {
		t.Errorf("expected 1 processed page, got %d", got.ProcessedPages)
	}

	pages, _ := env.store.ListPages(env.ctx, doc.ID)
	byNum := map[int]*records.Page{}
	for _, p := range pages {
		byNum[p.PageNumber] = p
	}
	if byNum[1].Status != records.StatusCompleted {
		t.Errorf("page 1 should complete, got %s", byNum[1].Status)
	}
	if byNum[2].Status != records.StatusFailed {
		t.Errorf("page 2 should fail, got %s", byNum[2].Status)
	}
	if byNum[2].Metadata["failed_stage"] != "ocr" {
		t.Errorf("unexpected failed stage: %v", byNum[2].Metadata["failed_stage"])
	}
}

func TestProcessDocumentPageSubset(t *testing.T) {
	env := newTestEnv(t, 3)
	doc := env.createDocument(t)
	env.mock.TextForPage = map[int]string{2: groundedText("Page Two")}

	job, err := New(Config{DocumentID: doc.ID, Backend: "mock", Pages: []int{2}, SkipThumbnail: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := env.sched.Submit(env.ctx, job); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	env.waitForJob(t, job.ID())

	pages, _ := env.store.ListPages(env.ctx, doc.ID)
	if len(pages) != 1 || pages[0].PageNumber != 2 {
		t.Fatalf("expected only page 2 processed, got %d pages", len(pages))
	}

	got, _ := env.store.GetDocument(env.ctx, doc.ID)
	if got.ThumbnailKey != "" {
		t.Error("thumbnail should be skipped")
	}
	// 1 of 3 pages complete, so the document is still in flight.
	if got.Status != records.StatusProcessing {
		t.Errorf("expected processing, got %s", got.Status)
	}
	if env.mock.RequestCount() != 1 {
		t.Errorf("expected 1 OCR call, got %d", env.mock.RequestCount())
	}
}

func TestProcessDocumentPreconditions(t *testing.T) {
	env := newTestEnv(t, 1)

	t.Run("missing document", func(t *testing.T) {
		job, err := New(Config{DocumentID: "nope"})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if err := env.sched.Submit(env.ctx, job); err == nil {
			t.Error("expected submit error for missing document")
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		doc := env.createDocument(t)
		job, err := New(Config{DocumentID: doc.ID, Backend: "absent"})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if err := env.sched.Submit(env.ctx, job); err == nil {
			t.Error("expected submit error for unknown backend")
		}
	})

	t.Run("invalid source bytes", func(t *testing.T) {
		doc := &records.Document{ID: uuid.New().String()}
		doc.SourceID = storage.SourcePDFKey(doc.ID)
		if _, err := env.blobs.Save(doc.SourceID, []byte("not a pdf")); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if err := env.store.CreateDocument(env.ctx, doc); err != nil {
			t.Fatalf("CreateDocument failed: %v", err)
		}
		job, err := New(Config{DocumentID: doc.ID})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if err := env.sched.Submit(env.ctx, job); err == nil {
			t.Error("expected submit error for non-pdf source")
		}
	})

	t.Run("empty config", func(t *testing.T) {
		if _, err := New(Config{}); err == nil {
			t.Error("expected validation error")
		}
	})
}

func TestStartFailureMarksDocumentFailed(t *testing.T) {
	env := newTestEnv(t, 1)

	// Record exists but the source blob was never stored, so the job cannot
	// start. The document must end up failed rather than stuck pending.
	doc := &records.Document{ID: uuid.New().String(), Title: "no source"}
	doc.SourceID = storage.SourcePDFKey(doc.ID)
	if err := env.store.CreateDocument(env.ctx, doc); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}

	job, err := New(Config{DocumentID: doc.ID, Backend: "mock"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := env.sched.Submit(env.ctx, job); err == nil {
		t.Fatal("expected submit error for missing source pdf")
	}

	got, err := env.store.GetDocument(env.ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if got.Status != records.StatusFailed {
		t.Errorf("expected failed document, got %s", got.Status)
	}
	if msg, _ := got.Metadata["error"].(string); msg == "" {
		t.Error("failure cause not recorded on document")
	}
}

func TestInvalidPageSplitNotPersisted(t *testing.T) {
	env := newTestEnv(t, 2)
	env.engine.badSplits = map[int]bool{2: true}
	doc := env.createDocument(t)
	env.mock.TextForPage = map[int]string{1: groundedText("Page One")}

	job, err := New(Config{DocumentID: doc.ID, Backend: "mock", SkipThumbnail: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := env.sched.Submit(env.ctx, job); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	env.waitForJob(t, job.ID())

	if env.blobs.Exists(storage.PagePDFKey(doc.ID, 2)) {
		t.Error("invalid page split was persisted")
	}

	pages, _ := env.store.ListPages(env.ctx, doc.ID)
	byNum := map[int]*records.Page{}
	for _, p := range pages {
		byNum[p.PageNumber] = p
	}
	if byNum[1] == nil || byNum[1].Status != records.StatusCompleted {
		t.Error("page 1 should complete despite page 2's bad split")
	}
	if byNum[2] == nil || byNum[2].Status != records.StatusFailed {
		t.Fatal("page 2 should fail on an invalid split")
	}
	if byNum[2].Metadata["failed_stage"] != "split" {
		t.Errorf("unexpected failed stage: %v", byNum[2].Metadata["failed_stage"])
	}
	if byNum[2].PDFKey != "" {
		t.Errorf("failed page should have no pdf key, got %q", byNum[2].PDFKey)
	}
}

func TestPageReferencesPersisted(t *testing.T) {
	env := newTestEnv(t, 1)
	doc := env.createDocument(t)
	env.mock.TextForPage = map[int]string{1: groundedText("Page One")}

	job, err := New(Config{DocumentID: doc.ID, Backend: "mock"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := env.sched.Submit(env.ctx, job); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	env.waitForJob(t, job.ID())

	pages, _ := env.store.ListPages(env.ctx, doc.ID)
	page := pages[0]
	if len(page.Layout) == 0 {
		t.Fatal("references not persisted on page")
	}
	var refs []grounding.Reference
	if err := json.Unmarshal(page.Layout, &refs); err != nil {
		t.Fatalf("page layout is not a reference array: %v", err)
	}
	if len(refs) != 3 {
		t.Fatalf("expected 3 references, got %d", len(refs))
	}
	for i, want := range []string{"title", "text", "image"} {
		if refs[i].Type != want {
			t.Errorf("reference %d: expected type %q, got %q", i, want, refs[i].Type)
		}
	}
	wantBox := []int{10, 5, 190, 25}
	if len(refs[0].BoundingBox) != len(wantBox) {
		t.Fatalf("unexpected title bounding box: %v", refs[0].BoundingBox)
	}
	for i, v := range wantBox {
		if refs[0].BoundingBox[i] != v {
			t.Errorf("title bounding box mismatch: %v", refs[0].BoundingBox)
			break
		}
	}
	if page.Metadata["reference_count"] != len(refs) {
		t.Errorf("reference_count %v does not match persisted references %d",
			page.Metadata["reference_count"], len(refs))
	}
}

// flakyStore drops the first few document lookups, as a records backend that
// is briefly unavailable would.
type flakyStore struct {
	*records.MemoryStore
	failures atomic.Int32
}

func (s *flakyStore) GetDocument(ctx context.Context, id string) (*records.Document, error) {
	if s.failures.Add(-1) >= 0 {
		return nil, fmt.Errorf("records lookup timed out")
	}
	return s.MemoryStore.GetDocument(ctx, id)
}

func TestTransientLookupFailureRetried(t *testing.T) {
	env := newTestEnv(t, 1)
	doc := env.createDocument(t)
	env.mock.TextForPage = map[int]string{1: groundedText("Page One")}

	flaky := &flakyStore{MemoryStore: env.store}
	flaky.failures.Store(2)
	svcs := *env.services
	svcs.Records = flaky
	ctx := svcctx.WithServices(context.Background(), &svcs)

	job, err := New(Config{DocumentID: doc.ID, Backend: "mock"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := env.sched.Submit(ctx, job); err != nil {
		t.Fatalf("submit should survive transient lookup failures: %v", err)
	}
	env.waitForJob(t, job.ID())

	if flaky.failures.Load() >= 0 {
		t.Error("flaky lookups were never exercised")
	}
	got, _ := env.store.GetDocument(env.ctx, doc.ID)
	if got.Status != records.StatusCompleted {
		t.Errorf("expected completed document, got %s", got.Status)
	}
}

func TestResetPage(t *testing.T) {
	env := newTestEnv(t, 1)
	doc := env.createDocument(t)
	env.mock.TextForPage = map[int]string{1: groundedText("Page One")}

	job, err := New(Config{DocumentID: doc.ID, Backend: "mock"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := env.sched.Submit(env.ctx, job); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	env.waitForJob(t, job.ID())

	pages, _ := env.store.ListPages(env.ctx, doc.ID)
	page := pages[0]
	images, _ := env.store.ListImages(env.ctx, page.ID)
	if len(images) != 1 {
		t.Fatalf("precondition: expected 1 image, got %d", len(images))
	}
	imageKey := images[0].FileKey
	overlayKey := page.OverlayKey

	reset, err := ResetPage(env.ctx, page.ID)
	if err != nil {
		t.Fatalf("ResetPage failed: %v", err)
	}
	if reset.Status != records.StatusPending {
		t.Errorf("expected pending, got %s", reset.Status)
	}
	if reset.RawText != "" || reset.Markdown != "" || reset.OverlayKey != "" {
		t.Errorf("page output not cleared: %+v", reset)
	}
	if remaining, _ := env.store.ListImages(env.ctx, page.ID); len(remaining) != 0 {
		t.Errorf("extracted images not deleted: %d left", len(remaining))
	}
	if env.blobs.Exists(imageKey) {
		t.Error("image blob not deleted")
	}
	if env.blobs.Exists(overlayKey) {
		t.Error("overlay blob not deleted")
	}

	got, _ := env.store.GetDocument(env.ctx, doc.ID)
	if got.ProcessedPages != 0 {
		t.Errorf("document counters not recomputed: %d", got.ProcessedPages)
	}
}

func TestResetDocumentAndReprocess(t *testing.T) {
	env := newTestEnv(t, 2)
	doc := env.createDocument(t)
	env.mock.TextForPage = map[int]string{
		1: groundedText("Page One"),
		2: groundedText("Page Two"),
	}

	job, err := New(Config{DocumentID: doc.ID, Backend: "mock"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := env.sched.Submit(env.ctx, job); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	env.waitForJob(t, job.ID())

	n, err := ResetDocument(env.ctx, doc.ID)
	if err != nil {
		t.Fatalf("ResetDocument failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 pages reset, got %d", n)
	}
	got, _ := env.store.GetDocument(env.ctx, doc.ID)
	if got.Status != records.StatusPending || got.ProcessedPages != 0 {
		t.Errorf("document not reset: %s/%d", got.Status, got.ProcessedPages)
	}

	// A fresh run after reset processes every page again.
	rerun, err := New(Config{DocumentID: doc.ID, Backend: "mock", SkipThumbnail: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := env.sched.Submit(env.ctx, rerun); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	env.waitForJob(t, rerun.ID())

	got, _ = env.store.GetDocument(env.ctx, doc.ID)
	if got.Status != records.StatusCompleted || got.ProcessedPages != 2 {
		t.Errorf("reprocess incomplete: %s/%d", got.Status, got.ProcessedPages)
	}
	if env.mock.RequestCount() != 4 {
		t.Errorf("expected 4 OCR calls total, got %d", env.mock.RequestCount())
	}
}

func TestResumeSkipsCompletedPages(t *testing.T) {
	env := newTestEnv(t, 2)
	doc := env.createDocument(t)
	env.mock.TextForPage = map[int]string{
		1: groundedText("Page One"),
		2: groundedText("Page Two"),
	}

	// First run completes everything.
	job, err := New(Config{DocumentID: doc.ID, Backend: "mock"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := env.sched.Submit(env.ctx, job); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	env.waitForJob(t, job.ID())
	calls := env.mock.RequestCount()

	// A second full run finds all pages completed and does no OCR work.
	again, err := New(Config{DocumentID: doc.ID, Backend: "mock"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := env.sched.Submit(env.ctx, again); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	env.waitForJob(t, again.ID())

	if env.mock.RequestCount() != calls {
		t.Errorf("completed pages were reprocessed: %d extra calls", env.mock.RequestCount()-calls)
	}
	got, _ := env.store.GetDocument(env.ctx, doc.ID)
	if got.Status != records.StatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
}

func TestFactoryRebuildsConfig(t *testing.T) {
	factory := NewFactory()

	job, err := factory("record-1", map[string]any{
		"document_id":      "doc-1",
		"backend":          "ollama",
		"zoom":             "3",
		"apply_text_layer": "true",
		"run_layout":       "true",
		"layout_backend":   "docling",
	})
	if err != nil {
		t.Fatalf("factory failed: %v", err)
	}
	if job.ID() != "record-1" || job.Type() != JobType {
		t.Errorf("unexpected identity: %s/%s", job.ID(), job.Type())
	}

	pd := job.(*Job)
	if pd.cfg.DocumentID != "doc-1" || pd.cfg.Backend != "ollama" || pd.cfg.Zoom != 3 {
		t.Errorf("config not rebuilt: %+v", pd.cfg)
	}
	if !pd.cfg.ApplyTextLayer || !pd.cfg.RunLayout || pd.cfg.LayoutBackend != "docling" {
		t.Errorf("flags not rebuilt: %+v", pd.cfg)
	}

	if _, err := factory("record-2", map[string]any{}); err == nil {
		t.Error("expected error without document_id")
	}
}

func TestJobStatusFields(t *testing.T) {
	job, err := New(Config{
		DocumentID:     "doc-1",
		Backend:        "mock",
		ApplyTextLayer: true,
		RunLayout:      true,
		LayoutBackend:  "docling",
		Pages:          []int{3, 4},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	status, err := job.Status(context.Background())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status["document_id"] != "doc-1" || status["backend"] != "mock" {
		t.Errorf("unexpected identity fields: %v", status)
	}
	if status["zoom"] != "2" {
		t.Errorf("unexpected zoom: %q", status["zoom"])
	}
	if status["apply_text_layer"] != "true" || status["run_layout"] != "true" {
		t.Errorf("flags missing: %v", status)
	}
	if status["page_subset"] == "" {
		t.Error("page subset missing")
	}
}
