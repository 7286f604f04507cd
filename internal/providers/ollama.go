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
)

const (
	OllamaOCRName    = "ollama"
	OllamaOCRBaseURL = "http://localhost:11434"
	OllamaOCRModel   = "deepseek-ocr"
)

// OllamaOCRConfig holds configuration for the Ollama OCR client.
type OllamaOCRConfig struct {
	BaseURL   string
	Model     string
	Prompt    string        // Defaults to the grounding prompt
	Timeout   time.Duration // Per-request HTTP timeout
	RateLimit float64       // Requests per second
	KeepAlive string        // Ollama keep_alive, e.g. "10m"
}

// OllamaOCRClient implements OCRProvider against a local Ollama server
// running a grounding-capable vision model.
type OllamaOCRClient struct {
	baseURL   string
	model     string
	prompt    string
	keepAlive string
	rateLimit float64
	client    *http.Client
}

// NewOllamaOCRClient creates a new Ollama OCR client.
func NewOllamaOCRClient(cfg OllamaOCRConfig) *OllamaOCRClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OllamaOCRBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = OllamaOCRModel
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultGroundingPrompt
	}
	if cfg.Timeout == 0 {
		// Local models can take minutes on dense pages.
		cfg.Timeout = 600 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1.0
	}

	return &OllamaOCRClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		model:     cfg.Model,
		prompt:    cfg.Prompt,
		keepAlive: cfg.KeepAlive,
		rateLimit: cfg.RateLimit,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name returns the provider identifier.
func (c *OllamaOCRClient) Name() string {
	return OllamaOCRName
}

// RequestsPerSecond returns the configured rate limit.
func (c *OllamaOCRClient) RequestsPerSecond() float64 {
	return c.rateLimit
}

// MaxRetries returns the maximum retry attempts.
func (c *OllamaOCRClient) MaxRetries() int {
	return 2
}

// RetryDelayBase returns the base delay for exponential backoff.
func (c *OllamaOCRClient) RetryDelayBase() time.Duration {
	return 5 * time.Second
}

// ProcessImage extracts grounded markdown from a page image.
func (c *OllamaOCRClient) ProcessImage(ctx context.Context, image []byte, pageNum int) (*OCRResult, error) {
	start := time.Now()

	reqBody := ollamaChatRequest{
		Model: c.model,
		Messages: []ollamaChatMessage{
			{
				Role:    "user",
				Content: c.prompt,
				Images:  []string{base64.StdEncoding.EncodeToString(image)},
			},
		},
		Stream:    false,
		KeepAlive: c.keepAlive,
	}

	resp, err := c.doRequest(ctx, "/api/chat", reqBody)
	if err != nil {
		return &OCRResult{
			Success:       false,
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
		}, err
	}

	text := resp.Message.Content
	if strings.TrimSpace(text) == "" {
		err := fmt.Errorf("empty response from model %s", c.model)
		return &OCRResult{
			Success:       false,
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
		}, err
	}

	metadata := map[string]any{
		"model_used":  resp.Model,
		"page_number": pageNum,
	}
	if resp.EvalCount > 0 {
		metadata["eval_count"] = resp.EvalCount
		metadata["prompt_eval_count"] = resp.PromptEvalCount
	}
	if resp.TotalDuration > 0 {
		metadata["model_duration_ms"] = resp.TotalDuration / int64(time.Millisecond)
	}

	return &OCRResult{
		Success:       true,
		Text:          text,
		Metadata:      metadata,
		ExecutionTime: time.Since(start),
	}, nil
}

// doRequest makes an HTTP request to the Ollama API.
func (c *OllamaOCRClient) doRequest(ctx context.Context, path string, body any) (*ollamaChatResponse, error) {
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
		var errResp ollamaErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &chatResp, nil
}

// Ollama API types

type ollamaChatRequest struct {
	Model     string              `json:"model"`
	Messages  []ollamaChatMessage `json:"messages"`
	Stream    bool                `json:"stream"`
	KeepAlive string              `json:"keep_alive,omitempty"`
}

type ollamaChatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatResponse struct {
	Model           string            `json:"model"`
	Message         ollamaChatMessage `json:"message"`
	Done            bool              `json:"done"`
	TotalDuration   int64             `json:"total_duration,omitempty"`
	EvalCount       int               `json:"eval_count,omitempty"`
	PromptEvalCount int               `json:"prompt_eval_count,omitempty"`
}

type ollamaErrorResponse struct {
	Error string `json:"error"`
}
