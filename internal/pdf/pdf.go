// Package pdf wraps the PDF collaborators the pipeline needs: page counting,
// single-page extraction, and rasterization. Counting and extraction use
// pdfcpu; rasterization shells out to pdftoppm (poppler-utils), which must be
// on PATH for production use.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Engine is the rasterization/splitting collaborator.
type Engine interface {
	// PageCount returns the number of pages in the PDF.
	PageCount(pdf []byte) (int, error)

	// ExtractPage returns a new single-page PDF containing pageNum (1-based).
	ExtractPage(pdf []byte, pageNum int) ([]byte, error)

	// RenderPage rasterizes pageNum (1-based) to PNG at the given zoom
	// factor (1.0 = 72 DPI).
	RenderPage(ctx context.Context, pdf []byte, pageNum int, zoom float64) ([]byte, error)
}

var pdfMagic = []byte("%PDF")

// Validate checks that data is non-empty and carries a PDF signature.
func Validate(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty PDF")
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return fmt.Errorf("missing %%PDF signature")
	}
	return nil
}

// PopplerEngine implements Engine with pdfcpu and pdftoppm.
type PopplerEngine struct{}

// NewEngine returns the production engine.
func NewEngine() *PopplerEngine {
	return &PopplerEngine{}
}

// PageCount returns the number of pages in the PDF.
func (e *PopplerEngine) PageCount(pdf []byte) (int, error) {
	count, err := api.PageCount(bytes.NewReader(pdf), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return count, nil
}

// ExtractPage returns a single-page PDF for pageNum.
func (e *PopplerEngine) ExtractPage(pdf []byte, pageNum int) ([]byte, error) {
	var out bytes.Buffer
	pages := []string{fmt.Sprintf("%d", pageNum)}
	if err := api.Trim(bytes.NewReader(pdf), &out, pages, nil); err != nil {
		return nil, fmt.Errorf("failed to extract page %d: %w", pageNum, err)
	}
	return out.Bytes(), nil
}

// RenderPage renders a single page using pdftoppm.
func (e *PopplerEngine) RenderPage(ctx context.Context, pdf []byte, pageNum int, zoom float64) ([]byte, error) {
	if zoom <= 0 {
		zoom = 1.0
	}

	tmpDir, err := os.MkdirTemp("", "docpond-render-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "page.pdf")
	if err := os.WriteFile(pdfPath, pdf, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write temp PDF: %w", err)
	}

	// -singlefile drops the page-number suffix from the output name.
	outputPrefix := filepath.Join(tmpDir, "render")
	pageStr := fmt.Sprintf("%d", pageNum)
	dpi := fmt.Sprintf("%d", int(72*zoom))
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", dpi,
		"-singlefile",
		pdfPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	data, err := os.ReadFile(outputPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}
	return data, nil
}
