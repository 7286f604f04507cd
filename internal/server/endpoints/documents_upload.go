package endpoints

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/docpond/internal/api"
	"github.com/jackzampolin/docpond/internal/pdf"
	"github.com/jackzampolin/docpond/internal/pipeline/processdoc"
	"github.com/jackzampolin/docpond/internal/presets"
	"github.com/jackzampolin/docpond/internal/providers"
	"github.com/jackzampolin/docpond/internal/records"
	"github.com/jackzampolin/docpond/internal/storage"
	"github.com/jackzampolin/docpond/internal/svcctx"
)

// UploadResponse is the response for document creation.
type UploadResponse struct {
	Document DocumentResponse `json:"document"`
	JobID    string           `json:"job_id"`
}

// UploadDocumentEndpoint handles POST /v1/documents with a multipart PDF
// upload. The document record is created, the PDF is stored, and a processing
// job is submitted.
type UploadDocumentEndpoint struct{}

var _ api.Endpoint = (*UploadDocumentEndpoint)(nil)

func (e *UploadDocumentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/v1/documents", e.handler
}

func (e *UploadDocumentEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Upload a document
//	@Description	Upload a scanned PDF and start OCR processing
//	@Tags			documents
//	@Accept			mpfd
//	@Produce		json
//	@Param			file	formData	file	true	"PDF to process"
//	@Param			title	formData	string	false	"Document title (derived from filename if omitted)"
//	@Param			backend	formData	string	false	"OCR backend name"
//	@Param			zoom	formData	number	false	"Render zoom factor"
//	@Param			preset	formData	string	false	"Preset ID to apply"
//	@Success		202		{object}	UploadResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/v1/documents [post]
func (e *UploadDocumentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	const maxMemory = 500 << 20 // 500MB
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	fh := files[0]

	src, err := fh.Open()
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to open upload: %v", err))
		return
	}
	data, err := io.ReadAll(src)
	src.Close()
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read upload: %v", err))
		return
	}
	if err := pdf.Validate(data); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	store := svcctx.RecordsFrom(r.Context())
	blobs := svcctx.StorageFrom(r.Context())
	scheduler := svcctx.SchedulerFrom(r.Context())
	if store == nil || blobs == nil || scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "services not initialized")
		return
	}

	title := r.FormValue("title")
	if title == "" {
		title = strings.TrimSuffix(fh.Filename, filepath.Ext(fh.Filename))
	}

	cfg, presetID, err := buildJobConfig(r.Context(), jobRequest{
		Backend: r.FormValue("backend"),
		Zoom:    r.FormValue("zoom"),
		Preset:  r.FormValue("preset"),
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc := &records.Document{
		ID:       uuid.New().String(),
		Title:    title,
		Status:   records.StatusPending,
		PresetID: presetID,
	}
	doc.SourceID = storage.SourcePDFKey(doc.ID)

	if _, err := blobs.Save(doc.SourceID, data); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to store pdf: %v", err))
		return
	}
	if err := store.CreateDocument(r.Context(), doc); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	cfg.DocumentID = doc.ID
	job, err := processdoc.New(cfg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := scheduler.Submit(r.Context(), job); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to submit job: %v", err))
		return
	}

	doc, _ = store.GetDocument(r.Context(), doc.ID)
	writeJSON(w, http.StatusAccepted, UploadResponse{
		Document: documentResponse(doc),
		JobID:    job.ID(),
	})
}

func (e *UploadDocumentEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		title   string
		backend string
		zoom    float64
		preset  string
	)
	cmd := &cobra.Command{
		Use:   "upload <pdf>",
		Short: "Upload a PDF and start processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			fields := map[string]string{
				"title":   title,
				"backend": backend,
				"preset":  preset,
			}
			if zoom > 0 {
				fields["zoom"] = strconv.FormatFloat(zoom, 'f', -1, 64)
			}
			var resp UploadResponse
			if err := client.PostFile(cmd.Context(), "/v1/documents", "file", args[0], fields, &resp); err != nil {
				return err
			}
			fmt.Printf("Document: %s\n", resp.Document.ID)
			fmt.Printf("Job:      %s\n", resp.JobID)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "document title")
	cmd.Flags().StringVar(&backend, "backend", "", "OCR backend name")
	cmd.Flags().Float64Var(&zoom, "zoom", 0, "render zoom factor")
	cmd.Flags().StringVar(&preset, "preset", "", "preset ID to apply")
	return cmd
}

// jobRequest carries the raw per-request processing options.
type jobRequest struct {
	Backend string
	Zoom    string
	Preset  string
	Pages   []int
}

// buildJobConfig resolves request options against the server config and an
// optional preset into a processing job config.
func buildJobConfig(ctx context.Context, req jobRequest) (processdoc.Config, string, error) {
	cfg := processdoc.Config{
		Backend: req.Backend,
		Pages:   req.Pages,
	}

	if cm := svcctx.ConfigFrom(ctx); cm != nil {
		c := cm.Get()
		if cfg.Backend == "" {
			cfg.Backend = c.DefaultBackend()
		}
		cfg.Zoom = c.Defaults.Zoom
		if c.TextLayer.Enabled {
			cfg.ApplyTextLayer = true
			cfg.TextLayerOpts = providers.TextLayerOptions{Languages: c.TextLayer.Languages}
		}
	}

	if req.Zoom != "" {
		z, err := strconv.ParseFloat(req.Zoom, 64)
		if err != nil || z <= 0 {
			return cfg, "", fmt.Errorf("invalid zoom %q", req.Zoom)
		}
		cfg.Zoom = z
	}

	var presetID string
	if req.Preset != "" {
		ps := svcctx.PresetsFrom(ctx)
		if ps == nil {
			return cfg, "", fmt.Errorf("preset store not initialized")
		}
		p, err := ps.Get(req.Preset)
		if err != nil {
			return cfg, "", fmt.Errorf("preset %s: %w", req.Preset, err)
		}
		applyPreset(&cfg, p)
		presetID = p.ID
	}

	return cfg, presetID, nil
}

// applyPreset maps a stored preset onto the job config.
func applyPreset(cfg *processdoc.Config, p *presets.Preset) {
	switch p.Kind {
	case presets.KindLayout:
		cfg.RunLayout = true
		cfg.LayoutBackend = providers.DoclingName
		if p.Layout != nil {
			cfg.LayoutDoOCR = p.Layout.ForceOCR
		}
	case presets.KindTextLayer:
		cfg.ApplyTextLayer = true
		if p.TextLayer != nil {
			cfg.TextLayerOpts = providers.TextLayerOptions{
				Languages: strings.Split(p.TextLayer.Language, "+"),
				Force:     p.TextLayer.ForceOCR,
				Deskew:    p.TextLayer.Deskew,
			}
		}
	}
}
