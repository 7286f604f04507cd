package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docpond/internal/api"
	"github.com/jackzampolin/docpond/internal/pipeline/processdoc"
	"github.com/jackzampolin/docpond/internal/svcctx"
)

// ReprocessResponse is the response for reprocess operations.
type ReprocessResponse struct {
	DocumentID string `json:"document_id"`
	PagesReset int    `json:"pages_reset"`
	JobID      string `json:"job_id"`
}

// ReprocessDocumentEndpoint handles POST /v1/documents/{id}/reprocess: clear
// every page's output and run the document again.
type ReprocessDocumentEndpoint struct{}

var _ api.Endpoint = (*ReprocessDocumentEndpoint)(nil)

func (e *ReprocessDocumentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/v1/documents/{id}/reprocess", e.handler
}

func (e *ReprocessDocumentEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Reprocess document
//	@Description	Reset all page output and run OCR again
//	@Tags			documents
//	@Produce		json
//	@Param			id	path		string	true	"Document ID"
//	@Success		202	{object}	ReprocessResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/v1/documents/{id}/reprocess [post]
func (e *ReprocessDocumentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.RecordsFrom(r.Context())
	scheduler := svcctx.SchedulerFrom(r.Context())
	if store == nil || scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "services not initialized")
		return
	}

	docID := r.PathValue("id")
	doc, err := store.GetDocument(r.Context(), docID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	reset, err := processdoc.ResetDocument(r.Context(), docID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	cfg, _, err := buildJobConfig(r.Context(), jobRequest{
		Backend: r.URL.Query().Get("backend"),
		Zoom:    r.URL.Query().Get("zoom"),
		Preset:  doc.PresetID,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg.DocumentID = docID
	cfg.SkipThumbnail = doc.ThumbnailKey != ""

	job, err := processdoc.New(cfg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := scheduler.Submit(r.Context(), job); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to submit job: %v", err))
		return
	}

	writeJSON(w, http.StatusAccepted, ReprocessResponse{
		DocumentID: docID,
		PagesReset: reset,
		JobID:      job.ID(),
	})
}

func (e *ReprocessDocumentEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess <document-id>",
		Short: "Reset and reprocess a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ReprocessResponse
			if err := client.Post(cmd.Context(), "/v1/documents/"+args[0]+"/reprocess", nil, &resp); err != nil {
				return err
			}
			fmt.Printf("Reset %d pages, job %s\n", resp.PagesReset, resp.JobID)
			return nil
		},
	}
}

// ReprocessPageEndpoint handles POST /v1/pages/{id}/reprocess: reset one page
// and run it alone.
type ReprocessPageEndpoint struct{}

var _ api.Endpoint = (*ReprocessPageEndpoint)(nil)

func (e *ReprocessPageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/v1/pages/{id}/reprocess", e.handler
}

func (e *ReprocessPageEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Reprocess page
//	@Description	Reset one page's output and run OCR for it again
//	@Tags			pages
//	@Produce		json
//	@Param			id	path		string	true	"Page ID"
//	@Success		202	{object}	ReprocessResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/v1/pages/{id}/reprocess [post]
func (e *ReprocessPageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	scheduler := svcctx.SchedulerFrom(r.Context())
	if scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "services not initialized")
		return
	}

	page, err := processdoc.ResetPage(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	cfg, _, err := buildJobConfig(r.Context(), jobRequest{
		Backend: r.URL.Query().Get("backend"),
		Zoom:    r.URL.Query().Get("zoom"),
		Pages:   []int{page.PageNumber},
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg.DocumentID = page.DocumentID
	cfg.SkipThumbnail = true

	job, err := processdoc.New(cfg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := scheduler.Submit(r.Context(), job); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to submit job: %v", err))
		return
	}

	writeJSON(w, http.StatusAccepted, ReprocessResponse{
		DocumentID: page.DocumentID,
		PagesReset: 1,
		JobID:      job.ID(),
	})
}

func (e *ReprocessPageEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess-page <page-id>",
		Short: "Reset and reprocess one page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ReprocessResponse
			if err := client.Post(cmd.Context(), "/v1/pages/"+args[0]+"/reprocess", nil, &resp); err != nil {
				return err
			}
			fmt.Printf("Job %s\n", resp.JobID)
			return nil
		},
	}
}
