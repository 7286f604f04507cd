package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	DoclingName    = "docling"
	DoclingBaseURL = "http://localhost:5001"
)

// doclingDocumentSchema is the shape we require of the layout payload before
// persisting it. The serve API returns much more; this pins down the parts
// downstream consumers read.
const doclingDocumentSchema = `{
  "type": "object",
  "required": ["schema_name", "version"],
  "properties": {
    "schema_name": {"type": "string"},
    "version": {"type": "string"},
    "texts": {"type": "array"},
    "pictures": {"type": "array"},
    "tables": {"type": "array"}
  }
}`

// DoclingConfig holds configuration for the docling-serve layout client.
type DoclingConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64      // Requests per second
	DoOCR     bool         // Run docling's own OCR during conversion
	Client    *http.Client // Optional (tests)
}

// DoclingClient implements LayoutProvider against a docling-serve instance.
type DoclingClient struct {
	baseURL   string
	rateLimit float64
	doOCR     bool
	client    *http.Client
	schema    *jsonschema.Schema
}

// NewDoclingClient creates a new docling-serve client.
func NewDoclingClient(cfg DoclingConfig) (*DoclingClient, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DoclingBaseURL
	}
	if cfg.Timeout == 0 {
		// Whole-document conversion; generous by default.
		cfg.Timeout = 900 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 0.5
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("docling.json", strings.NewReader(doclingDocumentSchema)); err != nil {
		return nil, fmt.Errorf("failed to load docling schema: %w", err)
	}
	schema, err := compiler.Compile("docling.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile docling schema: %w", err)
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &DoclingClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		rateLimit: cfg.RateLimit,
		doOCR:     cfg.DoOCR,
		client:    client,
		schema:    schema,
	}, nil
}

// Name returns the provider identifier.
func (c *DoclingClient) Name() string {
	return DoclingName
}

// RequestsPerSecond returns the configured rate limit.
func (c *DoclingClient) RequestsPerSecond() float64 {
	return c.rateLimit
}

// HealthCheck verifies the docling-serve instance is reachable.
func (c *DoclingClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("docling health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("docling health check returned status %d", resp.StatusCode)
	}
	return nil
}

// ProcessPDF converts the document and returns the validated layout payload.
func (c *DoclingClient) ProcessPDF(ctx context.Context, pdf []byte) (*LayoutResult, error) {
	start := time.Now()

	reqBody := doclingConvertRequest{
		Sources: []doclingSource{
			{
				Kind:         "file",
				Base64String: base64.StdEncoding.EncodeToString(pdf),
				Filename:     "document.pdf",
			},
		},
		Options: doclingConvertOptions{
			ToFormats: []string{"md", "json"},
			DoOCR:     c.doOCR,
		},
	}

	resp, err := c.doRequest(ctx, "/v1alpha/convert/source", reqBody)
	if err != nil {
		return &LayoutResult{
			Success:       false,
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
		}, err
	}

	if resp.Status != "" && resp.Status != "success" {
		err := fmt.Errorf("docling conversion status %q: %s", resp.Status, strings.Join(resp.Errors, "; "))
		return &LayoutResult{
			Success:       false,
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
		}, err
	}

	if len(resp.Document.JSONContent) > 0 {
		if err := c.validateLayout(resp.Document.JSONContent); err != nil {
			return &LayoutResult{
				Success:       false,
				ErrorMessage:  err.Error(),
				ExecutionTime: time.Since(start),
			}, err
		}
	}

	return &LayoutResult{
		Success:       true,
		Markdown:      resp.Document.MDContent,
		Layout:        resp.Document.JSONContent,
		ExecutionTime: time.Since(start),
	}, nil
}

// validateLayout checks the payload against the pinned document schema.
func (c *DoclingClient) validateLayout(raw json.RawMessage) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("layout payload is not valid JSON: %w", err)
	}
	if err := c.schema.Validate(doc); err != nil {
		return fmt.Errorf("layout payload failed schema validation: %w", err)
	}
	return nil
}

// doRequest makes an HTTP request to the docling-serve API.
func (c *DoclingClient) doRequest(ctx context.Context, path string, body any) (*doclingConvertResponse, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("docling error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var convResp doclingConvertResponse
	if err := json.Unmarshal(respBody, &convResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &convResp, nil
}

// docling-serve API types

type doclingConvertRequest struct {
	Sources []doclingSource       `json:"sources"`
	Options doclingConvertOptions `json:"options"`
}

type doclingSource struct {
	Kind         string `json:"kind"`
	Base64String string `json:"base64_string"`
	Filename     string `json:"filename"`
}

type doclingConvertOptions struct {
	ToFormats []string `json:"to_formats"`
	DoOCR     bool     `json:"do_ocr"`
}

type doclingConvertResponse struct {
	Status   string          `json:"status"`
	Errors   []string        `json:"errors,omitempty"`
	Document doclingDocument `json:"document"`
}

type doclingDocument struct {
	MDContent   string          `json:"md_content,omitempty"`
	JSONContent json.RawMessage `json:"json_content,omitempty"`
}
