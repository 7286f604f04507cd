package endpoints

import (
	"github.com/jackzampolin/docpond/internal/api"
	"github.com/jackzampolin/docpond/internal/doclingsrv"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	DoclingManager *doclingsrv.Manager
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&StatusEndpoint{DoclingManager: cfg.DoclingManager},

		// Document endpoints
		&UploadDocumentEndpoint{},
		&ListDocumentsEndpoint{},
		&GetDocumentEndpoint{},
		&ThumbnailEndpoint{},
		&ReprocessDocumentEndpoint{},

		// Page endpoints
		&ListPagesEndpoint{},
		&GetPageEndpoint{},
		&PageOverlayEndpoint{},
		&ReprocessPageEndpoint{},

		// Extracted images
		&ImageEndpoint{},

		// Preset endpoints
		&ListPresetsEndpoint{},
		&CreatePresetEndpoint{},
		&GetPresetEndpoint{},
		&DeletePresetEndpoint{},
		&SetDefaultPresetEndpoint{},

		// Job endpoints
		&ListJobsEndpoint{},
		&GetJobEndpoint{},
	}
}
