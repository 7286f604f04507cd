package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docpond/internal/api"
	"github.com/jackzampolin/docpond/internal/svcctx"
)

// ImageEndpoint handles GET /images/{id}, the URL form substituted into
// reconciled markdown.
type ImageEndpoint struct{}

var _ api.Endpoint = (*ImageEndpoint)(nil)

func (e *ImageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/images/{id}", e.handler
}

func (e *ImageEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get extracted image
//	@Description	Serve one image region cropped out of a page
//	@Tags			images
//	@Produce		image/png
//	@Param			id	path		string	true	"Image ID"
//	@Success		200	{file}		binary
//	@Failure		404	{object}	ErrorResponse
//	@Router			/images/{id} [get]
func (e *ImageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.RecordsFrom(r.Context())
	blobs := svcctx.StorageFrom(r.Context())
	if store == nil || blobs == nil {
		writeError(w, http.StatusServiceUnavailable, "services not initialized")
		return
	}

	img, err := store.GetImage(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	serveBlob(w, r, blobs, img.FileKey, "image/png")
}

func (e *ImageEndpoint) Command(_ func() string) *cobra.Command {
	return nil
}
