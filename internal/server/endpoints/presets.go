package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docpond/internal/api"
	"github.com/jackzampolin/docpond/internal/presets"
	"github.com/jackzampolin/docpond/internal/svcctx"
)

// ListPresetsResponse is the response for listing presets.
type ListPresetsResponse struct {
	Presets []*presets.Preset `json:"presets"`
	Total   int               `json:"total"`
}

// ListPresetsEndpoint handles GET /v1/presets, optionally filtered by
// ?kind=layout|textlayer.
type ListPresetsEndpoint struct{}

var _ api.Endpoint = (*ListPresetsEndpoint)(nil)

func (e *ListPresetsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/presets", e.handler
}

func (e *ListPresetsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List presets
//	@Description	List processing presets, optionally filtered by kind
//	@Tags			presets
//	@Produce		json
//	@Param			kind	query		string	false	"Preset kind (layout or textlayer)"
//	@Success		200		{object}	ListPresetsResponse
//	@Failure		400		{object}	ErrorResponse
//	@Router			/v1/presets [get]
func (e *ListPresetsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.PresetsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "preset store not initialized")
		return
	}

	var (
		list []*presets.Preset
		err  error
	)
	if kind := r.URL.Query().Get("kind"); kind != "" {
		k := presets.Kind(kind)
		if !k.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown preset kind %q", kind))
			return
		}
		list, err = store.ListKind(k)
	} else {
		list, err = store.List()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ListPresetsResponse{Presets: list, Total: len(list)})
}

func (e *ListPresetsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List processing presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/v1/presets"
			if kind != "" {
				path += "?kind=" + kind
			}
			var resp ListPresetsResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			for _, p := range resp.Presets {
				def := " "
				if p.Default {
					def = "*"
				}
				fmt.Printf("%s %-36s  %-9s  %s\n", def, p.ID, p.Kind, p.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "filter by preset kind")
	return cmd
}

// CreatePresetRequest is the request body for creating a preset.
type CreatePresetRequest struct {
	Name      string                    `json:"name"`
	Kind      presets.Kind              `json:"kind"`
	Default   bool                      `json:"default"`
	Layout    *presets.LayoutOptions    `json:"layout,omitempty"`
	TextLayer *presets.TextLayerOptions `json:"text_layer,omitempty"`
}

// CreatePresetEndpoint handles POST /v1/presets.
type CreatePresetEndpoint struct{}

var _ api.Endpoint = (*CreatePresetEndpoint)(nil)

func (e *CreatePresetEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/v1/presets", e.handler
}

func (e *CreatePresetEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Create preset
//	@Description	Create a processing preset; marking it default clears the previous default of the same kind
//	@Tags			presets
//	@Accept			json
//	@Produce		json
//	@Param			preset	body		CreatePresetRequest	true	"Preset to create"
//	@Success		201		{object}	presets.Preset
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Router			/v1/presets [post]
func (e *CreatePresetEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.PresetsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "preset store not initialized")
		return
	}

	var req CreatePresetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}

	created, err := store.Create(&presets.Preset{
		Name:      req.Name,
		Kind:      req.Kind,
		Default:   req.Default,
		Layout:    req.Layout,
		TextLayer: req.TextLayer,
	})
	if err != nil {
		switch {
		case errors.Is(err, presets.ErrNameTaken):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (e *CreatePresetEndpoint) Command(_ func() string) *cobra.Command {
	return nil
}

// GetPresetEndpoint handles GET /v1/presets/{id}.
type GetPresetEndpoint struct{}

var _ api.Endpoint = (*GetPresetEndpoint)(nil)

func (e *GetPresetEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/presets/{id}", e.handler
}

func (e *GetPresetEndpoint) RequiresInit() bool { return true }

func (e *GetPresetEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.PresetsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "preset store not initialized")
		return
	}

	p, err := store.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (e *GetPresetEndpoint) Command(_ func() string) *cobra.Command {
	return nil
}

// DeletePresetEndpoint handles DELETE /v1/presets/{id}.
type DeletePresetEndpoint struct{}

var _ api.Endpoint = (*DeletePresetEndpoint)(nil)

func (e *DeletePresetEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/v1/presets/{id}", e.handler
}

func (e *DeletePresetEndpoint) RequiresInit() bool { return true }

func (e *DeletePresetEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.PresetsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "preset store not initialized")
		return
	}

	if err := store.Delete(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *DeletePresetEndpoint) Command(_ func() string) *cobra.Command {
	return nil
}

// SetDefaultPresetEndpoint handles POST /v1/presets/{id}/default.
type SetDefaultPresetEndpoint struct{}

var _ api.Endpoint = (*SetDefaultPresetEndpoint)(nil)

func (e *SetDefaultPresetEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/v1/presets/{id}/default", e.handler
}

func (e *SetDefaultPresetEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Set default preset
//	@Description	Make this preset the default for its kind, clearing the previous default
//	@Tags			presets
//	@Produce		json
//	@Param			id	path		string	true	"Preset ID"
//	@Success		200	{object}	presets.Preset
//	@Failure		404	{object}	ErrorResponse
//	@Router			/v1/presets/{id}/default [post]
func (e *SetDefaultPresetEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.PresetsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "preset store not initialized")
		return
	}

	p, err := store.SetDefault(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (e *SetDefaultPresetEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "preset-default <id>",
		Short: "Make a preset the default for its kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp presets.Preset
			if err := client.Post(cmd.Context(), "/v1/presets/"+args[0]+"/default", nil, &resp); err != nil {
				return err
			}
			fmt.Printf("Default %s preset: %s\n", resp.Kind, resp.Name)
			return nil
		},
	}
}
