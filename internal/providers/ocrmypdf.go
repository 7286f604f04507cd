package providers

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const OCRmyPDFName = "ocrmypdf"

// OCRmyPDFConfig holds configuration for the ocrmypdf text layer provider.
type OCRmyPDFConfig struct {
	Binary  string        // Defaults to "ocrmypdf" on PATH
	Timeout time.Duration // Per-document timeout
	Jobs    int           // Parallel OCR jobs within one invocation
}

// OCRmyPDFProvider implements TextLayerProvider by shelling out to the
// ocrmypdf CLI. Requires ocrmypdf (and tesseract) on PATH.
type OCRmyPDFProvider struct {
	binary  string
	timeout time.Duration
	jobs    int
}

// NewOCRmyPDFProvider creates a new ocrmypdf provider.
func NewOCRmyPDFProvider(cfg OCRmyPDFConfig) *OCRmyPDFProvider {
	if cfg.Binary == "" {
		cfg.Binary = "ocrmypdf"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Minute
	}
	return &OCRmyPDFProvider{
		binary:  cfg.Binary,
		timeout: cfg.Timeout,
		jobs:    cfg.Jobs,
	}
}

// Name returns the provider identifier.
func (p *OCRmyPDFProvider) Name() string {
	return OCRmyPDFName
}

// Available reports whether the ocrmypdf binary can be found.
func (p *OCRmyPDFProvider) Available() bool {
	_, err := exec.LookPath(p.binary)
	return err == nil
}

// AddTextLayer runs ocrmypdf over the document and returns the output PDF.
func (p *OCRmyPDFProvider) AddTextLayer(ctx context.Context, pdf []byte, opts TextLayerOptions) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "ocrmypdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	inPath := filepath.Join(tmpDir, "input.pdf")
	outPath := filepath.Join(tmpDir, "output.pdf")
	if err := os.WriteFile(inPath, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write input PDF: %w", err)
	}

	args := []string{"--output-type", "pdf"}
	if len(opts.Languages) > 0 {
		args = append(args, "--language", strings.Join(opts.Languages, "+"))
	}
	if opts.Force {
		args = append(args, "--force-ocr")
	} else {
		args = append(args, "--skip-text")
	}
	if opts.Deskew {
		args = append(args, "--deskew")
	}
	if p.jobs > 0 {
		args = append(args, "--jobs", fmt.Sprintf("%d", p.jobs))
	}
	args = append(args, inPath, outPath)

	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, p.binary, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ocrmypdf failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	result, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ocrmypdf output: %w", err)
	}
	return result, nil
}
