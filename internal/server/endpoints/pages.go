package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docpond/internal/api"
	"github.com/jackzampolin/docpond/internal/records"
	"github.com/jackzampolin/docpond/internal/storage"
	"github.com/jackzampolin/docpond/internal/svcctx"
)

// PageSummary is the list-view shape for one page.
type PageSummary struct {
	ID         string    `json:"id"`
	PageNumber int       `json:"page_number"`
	Status     string    `json:"status"`
	HasText    bool      `json:"has_text"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ListPagesResponse is the response for listing a document's pages.
type ListPagesResponse struct {
	DocumentID string        `json:"document_id"`
	Pages      []PageSummary `json:"pages"`
	Total      int           `json:"total"`
}

// PageResponse is the detail shape for one page.
type PageResponse struct {
	ID         string           `json:"id"`
	DocumentID string           `json:"document_id"`
	PageNumber int              `json:"page_number"`
	Status     string           `json:"status"`
	RawText    string           `json:"raw_text,omitempty"`
	Markdown   string           `json:"markdown,omitempty"`
	Layout     json.RawMessage  `json:"layout,omitempty"`
	HasOverlay bool             `json:"has_overlay"`
	Images     []ImageReference `json:"images,omitempty"`
	Metadata   map[string]any   `json:"metadata,omitempty"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// ImageReference points at one extracted image.
type ImageReference struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ListPagesEndpoint handles GET /v1/documents/{id}/pages.
type ListPagesEndpoint struct{}

var _ api.Endpoint = (*ListPagesEndpoint)(nil)

func (e *ListPagesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/documents/{id}/pages", e.handler
}

func (e *ListPagesEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List pages
//	@Description	List a document's pages with per-page status
//	@Tags			pages
//	@Produce		json
//	@Param			id	path		string	true	"Document ID"
//	@Success		200	{object}	ListPagesResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/v1/documents/{id}/pages [get]
func (e *ListPagesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.RecordsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "records store not initialized")
		return
	}

	docID := r.PathValue("id")
	if _, err := store.GetDocument(r.Context(), docID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	pages, err := store.ListPages(r.Context(), docID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := ListPagesResponse{DocumentID: docID, Pages: make([]PageSummary, 0, len(pages))}
	for _, p := range pages {
		resp.Pages = append(resp.Pages, PageSummary{
			ID:         p.ID,
			PageNumber: p.PageNumber,
			Status:     string(p.Status),
			HasText:    p.Markdown != "",
			UpdatedAt:  p.UpdatedAt,
		})
	}
	resp.Total = len(resp.Pages)
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListPagesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "pages <document-id>",
		Short: "List a document's pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListPagesResponse
			if err := client.Get(cmd.Context(), "/v1/documents/"+args[0]+"/pages", &resp); err != nil {
				return err
			}
			for _, p := range resp.Pages {
				fmt.Printf("%4d  %-10s  %s\n", p.PageNumber, p.Status, p.ID)
			}
			return nil
		},
	}
}

// GetPageEndpoint handles GET /v1/pages/{id}.
type GetPageEndpoint struct{}

var _ api.Endpoint = (*GetPageEndpoint)(nil)

func (e *GetPageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/pages/{id}", e.handler
}

func (e *GetPageEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get page
//	@Description	Get one page with its markdown, raw OCR text, and images
//	@Tags			pages
//	@Produce		json
//	@Param			id	path		string	true	"Page ID"
//	@Success		200	{object}	PageResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/v1/pages/{id} [get]
func (e *GetPageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.RecordsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "records store not initialized")
		return
	}

	page, err := store.GetPage(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	resp := PageResponse{
		ID:         page.ID,
		DocumentID: page.DocumentID,
		PageNumber: page.PageNumber,
		Status:     string(page.Status),
		RawText:    page.RawText,
		Markdown:   page.Markdown,
		Layout:     page.Layout,
		HasOverlay: page.OverlayKey != "",
		Metadata:   page.Metadata,
		UpdatedAt:  page.UpdatedAt,
	}

	images, err := store.ListImages(r.Context(), page.ID)
	if err == nil {
		for _, img := range images {
			resp.Images = append(resp.Images, ImageReference{
				ID:     img.ID,
				URL:    img.URLPath(),
				Width:  img.Width,
				Height: img.Height,
			})
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *GetPageEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "page <id>",
		Short: "Get one page's markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp PageResponse
			if err := client.Get(cmd.Context(), "/v1/pages/"+args[0], &resp); err != nil {
				return err
			}
			fmt.Println(resp.Markdown)
			return nil
		},
	}
}

// PageOverlayEndpoint handles GET /v1/pages/{id}/overlay.
type PageOverlayEndpoint struct{}

var _ api.Endpoint = (*PageOverlayEndpoint)(nil)

func (e *PageOverlayEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/pages/{id}/overlay", e.handler
}

func (e *PageOverlayEndpoint) RequiresInit() bool { return true }

func (e *PageOverlayEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.RecordsFrom(r.Context())
	blobs := svcctx.StorageFrom(r.Context())
	if store == nil || blobs == nil {
		writeError(w, http.StatusServiceUnavailable, "services not initialized")
		return
	}

	page, err := store.GetPage(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if page.OverlayKey == "" {
		writeError(w, http.StatusNotFound, "no overlay for page")
		return
	}

	serveBlob(w, r, blobs, page.OverlayKey, "image/png")
}

func (e *PageOverlayEndpoint) Command(_ func() string) *cobra.Command {
	return nil
}

// serveBlob streams one storage object with the given content type.
func serveBlob(w http.ResponseWriter, r *http.Request, blobs storage.Store, key, contentType string) {
	rc, err := blobs.Open(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "object not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	if _, err := io.Copy(w, rc); err != nil {
		svcctx.LoggerFrom(r.Context()).Warn("failed to stream blob", "key", key, "error", err)
	}
}
