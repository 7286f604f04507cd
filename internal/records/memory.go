package records

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store implementation.
// It backs single-process deployments and unit tests.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string]*Document
	pages  map[string]*Page
	images map[string]*ExtractedImage

	// pageIndex maps documentID -> pageNumber -> pageID, enforcing the
	// (document, page_number) uniqueness invariant.
	pageIndex map[string]map[int]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:      make(map[string]*Document),
		pages:     make(map[string]*Page),
		images:    make(map[string]*ExtractedImage),
		pageIndex: make(map[string]map[int]string),
	}
}

func (m *MemoryStore) CreateDocument(ctx context.Context, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.Status == "" {
		doc.Status = StatusPending
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if _, exists := m.docs[doc.ID]; exists {
		return fmt.Errorf("document %s already exists", doc.ID)
	}
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *MemoryStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	cp := *doc
	return &cp, nil
}

func (m *MemoryStore) ListDocuments(ctx context.Context) ([]*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Document, 0, len(m.docs))
	for _, doc := range m.docs {
		cp := *doc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) UpdateDocument(ctx context.Context, id string, mutate func(*Document) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok {
		return fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	if err := mutate(doc); err != nil {
		return err
	}
	doc.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) DeleteDocument(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[id]; !ok {
		return fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	delete(m.docs, id)
	for num, pageID := range m.pageIndex[id] {
		for imgID, img := range m.images {
			if img.PageID == pageID {
				delete(m.images, imgID)
			}
		}
		delete(m.pages, pageID)
		delete(m.pageIndex[id], num)
	}
	delete(m.pageIndex, id)
	return nil
}

func (m *MemoryStore) SetPageCount(ctx context.Context, id string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok {
		return fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	if doc.PageCount != 0 {
		if doc.PageCount == count {
			return nil
		}
		return ErrPageCountSet
	}
	doc.PageCount = count
	doc.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) GetPage(ctx context.Context, id string) (*Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	page, ok := m.pages[id]
	if !ok {
		return nil, fmt.Errorf("%w: page %s", ErrNotFound, id)
	}
	cp := *page
	return &cp, nil
}

func (m *MemoryStore) ListPages(ctx context.Context, documentID string) ([]*Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Page
	for _, page := range m.pages {
		if page.DocumentID == documentID {
			cp := *page
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PageNumber < out[j].PageNumber })
	return out, nil
}

func (m *MemoryStore) GetOrCreatePage(ctx context.Context, documentID string, pageNumber int) (*Page, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[documentID]; !ok {
		return nil, false, fmt.Errorf("%w: document %s", ErrNotFound, documentID)
	}

	idx, ok := m.pageIndex[documentID]
	if !ok {
		idx = make(map[int]string)
		m.pageIndex[documentID] = idx
	}

	if pageID, ok := idx[pageNumber]; ok {
		cp := *m.pages[pageID]
		return &cp, false, nil
	}

	now := time.Now().UTC()
	page := &Page{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		PageNumber: pageNumber,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.pages[page.ID] = page
	idx[pageNumber] = page.ID

	cp := *page
	return &cp, true, nil
}

func (m *MemoryStore) UpdatePage(ctx context.Context, id string, mutate func(*Page) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	page, ok := m.pages[id]
	if !ok {
		return fmt.Errorf("%w: page %s", ErrNotFound, id)
	}
	if err := mutate(page); err != nil {
		return err
	}
	page.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) CreateImage(ctx context.Context, img *ExtractedImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if img.ID == "" {
		img.ID = uuid.New().String()
	}
	img.CreatedAt = time.Now().UTC()

	if _, ok := m.pages[img.PageID]; !ok {
		return fmt.Errorf("%w: page %s", ErrNotFound, img.PageID)
	}
	cp := *img
	m.images[img.ID] = &cp
	return nil
}

func (m *MemoryStore) GetImage(ctx context.Context, id string) (*ExtractedImage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	img, ok := m.images[id]
	if !ok {
		return nil, fmt.Errorf("%w: image %s", ErrNotFound, id)
	}
	cp := *img
	return &cp, nil
}

func (m *MemoryStore) ListImages(ctx context.Context, pageID string) ([]*ExtractedImage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*ExtractedImage
	for _, img := range m.images {
		if img.PageID == pageID {
			cp := *img
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) DeleteImages(ctx context.Context, pageID string) ([]*ExtractedImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []*ExtractedImage
	for id, img := range m.images {
		if img.PageID == pageID {
			cp := *img
			removed = append(removed, &cp)
			delete(m.images, id)
		}
	}
	return removed, nil
}
