package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docpond/internal/api"
	"github.com/jackzampolin/docpond/internal/records"
	"github.com/jackzampolin/docpond/internal/svcctx"
)

// DocumentResponse is the JSON shape for one document.
type DocumentResponse struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Status           string    `json:"status"`
	PageCount        int       `json:"page_count"`
	ProcessedPages   int       `json:"processed_pages"`
	Progress         float64   `json:"progress"`
	PresetID         string    `json:"preset_id,omitempty"`
	TextLayerApplied bool      `json:"text_layer_applied,omitempty"`
	HasThumbnail     bool      `json:"has_thumbnail"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func documentResponse(doc *records.Document) DocumentResponse {
	return DocumentResponse{
		ID:               doc.ID,
		Title:            doc.Title,
		Status:           string(doc.Status),
		PageCount:        doc.PageCount,
		ProcessedPages:   doc.ProcessedPages,
		Progress:         doc.Progress(),
		PresetID:         doc.PresetID,
		TextLayerApplied: doc.TextLayerApplied,
		HasThumbnail:     doc.ThumbnailKey != "",
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
}

// ListDocumentsResponse is the response for listing documents.
type ListDocumentsResponse struct {
	Documents []DocumentResponse `json:"documents"`
	Total     int                `json:"total"`
}

// ListDocumentsEndpoint handles GET /v1/documents.
type ListDocumentsEndpoint struct{}

var _ api.Endpoint = (*ListDocumentsEndpoint)(nil)

func (e *ListDocumentsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/documents", e.handler
}

func (e *ListDocumentsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List documents
//	@Description	List all documents with processing progress
//	@Tags			documents
//	@Produce		json
//	@Success		200	{object}	ListDocumentsResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/v1/documents [get]
func (e *ListDocumentsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.RecordsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "records store not initialized")
		return
	}

	docs, err := store.ListDocuments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := ListDocumentsResponse{Documents: make([]DocumentResponse, 0, len(docs))}
	for _, doc := range docs {
		resp.Documents = append(resp.Documents, documentResponse(doc))
	}
	resp.Total = len(resp.Documents)
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListDocumentsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "documents",
		Short: "List documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListDocumentsResponse
			if err := client.Get(cmd.Context(), "/v1/documents", &resp); err != nil {
				return err
			}
			if resp.Total == 0 {
				fmt.Println("No documents")
				return nil
			}
			for _, d := range resp.Documents {
				fmt.Printf("%-36s  %-10s  %5.1f%%  %s\n", d.ID, d.Status, d.Progress, d.Title)
			}
			return nil
		},
	}
}

// GetDocumentEndpoint handles GET /v1/documents/{id}.
type GetDocumentEndpoint struct{}

var _ api.Endpoint = (*GetDocumentEndpoint)(nil)

func (e *GetDocumentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/documents/{id}", e.handler
}

func (e *GetDocumentEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get document
//	@Description	Get one document with processing progress
//	@Tags			documents
//	@Produce		json
//	@Param			id	path		string	true	"Document ID"
//	@Success		200	{object}	DocumentResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/v1/documents/{id} [get]
func (e *GetDocumentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.RecordsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "records store not initialized")
		return
	}

	doc, err := store.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, documentResponse(doc))
}

func (e *GetDocumentEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "document <id>",
		Short: "Get one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp DocumentResponse
			if err := client.Get(cmd.Context(), "/v1/documents/"+args[0], &resp); err != nil {
				return err
			}
			fmt.Printf("ID:       %s\n", resp.ID)
			fmt.Printf("Title:    %s\n", resp.Title)
			fmt.Printf("Status:   %s\n", resp.Status)
			fmt.Printf("Progress: %.1f%% (%d/%d pages)\n", resp.Progress, resp.ProcessedPages, resp.PageCount)
			return nil
		},
	}
}

// ThumbnailEndpoint handles GET /v1/documents/{id}/thumbnail.
type ThumbnailEndpoint struct{}

var _ api.Endpoint = (*ThumbnailEndpoint)(nil)

func (e *ThumbnailEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/documents/{id}/thumbnail", e.handler
}

func (e *ThumbnailEndpoint) RequiresInit() bool { return true }

func (e *ThumbnailEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.RecordsFrom(r.Context())
	blobs := svcctx.StorageFrom(r.Context())
	if store == nil || blobs == nil {
		writeError(w, http.StatusServiceUnavailable, "services not initialized")
		return
	}

	doc, err := store.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if doc.ThumbnailKey == "" {
		writeError(w, http.StatusNotFound, "no thumbnail for document")
		return
	}

	serveBlob(w, r, blobs, doc.ThumbnailKey, "image/png")
}

func (e *ThumbnailEndpoint) Command(_ func() string) *cobra.Command {
	return nil
}
