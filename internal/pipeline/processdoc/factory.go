package processdoc

import (
	"fmt"
	"strconv"

	"github.com/jackzampolin/docpond/internal/jobs"
)

// NewFactory returns the job factory used to resume interrupted processing
// runs. The job record's metadata is the status map the job reported at
// submission.
func NewFactory() jobs.JobFactory {
	return func(recordID string, metadata map[string]any) (jobs.Job, error) {
		docID := metaString(metadata, "document_id")
		if docID == "" {
			return nil, fmt.Errorf("job %s has no document_id", recordID)
		}

		cfg := Config{
			DocumentID: docID,
			Backend:    metaString(metadata, "backend"),
		}
		if z := metaString(metadata, "zoom"); z != "" {
			if f, err := strconv.ParseFloat(z, 64); err == nil {
				cfg.Zoom = f
			}
		}
		if metaString(metadata, "apply_text_layer") == "true" {
			cfg.ApplyTextLayer = true
			cfg.TextLayerBackend = metaString(metadata, "text_layer_backend")
		}
		if metaString(metadata, "run_layout") == "true" {
			cfg.RunLayout = true
			cfg.LayoutBackend = metaString(metadata, "layout_backend")
		}

		job, err := New(cfg)
		if err != nil {
			return nil, err
		}
		job.SetRecordID(recordID)
		return job, nil
	}
}

func metaString(metadata map[string]any, key string) string {
	v, _ := metadata[key].(string)
	return v
}
