package processdoc

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/docpond/internal/pdf"
	"github.com/jackzampolin/docpond/internal/records"
	"github.com/jackzampolin/docpond/internal/storage"
	"github.com/jackzampolin/docpond/internal/svcctx"
)

const (
	lookupAttempts = 3
	lookupDelay    = 100 * time.Millisecond
)

// PreconditionError reports a requirement that was not met before the job
// could start. It fails the job immediately without emitting work units.
type PreconditionError struct {
	Condition string
	Details   string
}

func (e *PreconditionError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("precondition failed: %s", e.Condition)
	}
	return fmt.Sprintf("precondition failed: %s (%s)", e.Condition, e.Details)
}

// checkPreconditions verifies the services and inputs the job depends on and
// returns the document record and its source PDF bytes.
func (j *Job) checkPreconditions(ctx context.Context) (*records.Document, []byte, error) {
	store := svcctx.RecordsFrom(ctx)
	if store == nil {
		return nil, nil, &PreconditionError{Condition: "records store available"}
	}
	blobs := svcctx.StorageFrom(ctx)
	if blobs == nil {
		return nil, nil, &PreconditionError{Condition: "blob storage available"}
	}
	if svcctx.EngineFrom(ctx) == nil {
		return nil, nil, &PreconditionError{Condition: "pdf engine available"}
	}

	// Lookups go through a short bounded retry so a store that is briefly
	// unavailable at submit time does not fail the whole document.
	doc, err := retry.DoWithData(func() (*records.Document, error) {
		return store.GetDocument(ctx, j.cfg.DocumentID)
	}, retry.Context(ctx), retry.Attempts(lookupAttempts),
		retry.Delay(lookupDelay), retry.LastErrorOnly(true))
	if err != nil {
		return nil, nil, &PreconditionError{
			Condition: "document exists",
			Details:   fmt.Sprintf("document %s: %v", j.cfg.DocumentID, err),
		}
	}

	sourceKey := doc.SourceID
	if sourceKey == "" {
		sourceKey = storage.SourcePDFKey(doc.ID)
	}
	data, err := retry.DoWithData(func() ([]byte, error) {
		return storage.ReadAll(blobs, sourceKey)
	}, retry.Context(ctx), retry.Attempts(lookupAttempts),
		retry.Delay(lookupDelay), retry.LastErrorOnly(true))
	if err != nil {
		return nil, nil, &PreconditionError{
			Condition: "source pdf stored",
			Details:   fmt.Sprintf("key %s: %v", sourceKey, err),
		}
	}
	if err := pdf.Validate(data); err != nil {
		return nil, nil, &PreconditionError{
			Condition: "source is a pdf",
			Details:   err.Error(),
		}
	}

	if j.cfg.Backend != "" {
		registry := svcctx.RegistryFrom(ctx)
		if registry == nil || !registry.HasOCR(j.cfg.Backend) {
			return nil, nil, &PreconditionError{
				Condition: "ocr backend registered",
				Details:   j.cfg.Backend,
			}
		}
	}

	return doc, data, nil
}
