package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIOCRName         = "openai"
	openAIOCRDefaultModel = "gpt-4o-mini"
)

// OpenAIOCRConfig holds configuration for the OpenAI vision OCR client.
// BaseURL makes it usable against any OpenAI-compatible serving stack
// (vLLM, LM Studio) hosting a grounding model.
type OpenAIOCRConfig struct {
	APIKey     string
	Model      string
	Prompt     string
	BaseURL    string
	MaxTokens  int
	RateLimit  float64 // Requests per second
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
	HTTPClient *http.Client // Optional (tests)
}

// OpenAIOCRClient implements OCRProvider using the official OpenAI SDK
// chat completions API with an image content part.
type OpenAIOCRClient struct {
	apiKey     string
	model      string
	prompt     string
	maxTokens  int
	rateLimit  float64
	maxRetries int
	retryDelay time.Duration
	client     openai.Client
}

// NewOpenAIOCRClient creates a new OpenAI vision OCR client.
func NewOpenAIOCRClient(cfg OpenAIOCRConfig) *OpenAIOCRClient {
	if cfg.Model == "" {
		cfg.Model = openAIOCRDefaultModel
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultGroundingPrompt
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 4.0
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIOCRClient{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		prompt:     cfg.Prompt,
		maxTokens:  cfg.MaxTokens,
		rateLimit:  cfg.RateLimit,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		client:     openai.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (c *OpenAIOCRClient) Name() string {
	return OpenAIOCRName
}

// RequestsPerSecond returns the configured rate limit.
func (c *OpenAIOCRClient) RequestsPerSecond() float64 {
	return c.rateLimit
}

// MaxRetries returns the maximum retry attempts.
func (c *OpenAIOCRClient) MaxRetries() int {
	return c.maxRetries
}

// RetryDelayBase returns the base delay for exponential backoff.
func (c *OpenAIOCRClient) RetryDelayBase() time.Duration {
	return c.retryDelay
}

// ProcessImage extracts grounded markdown from a page image.
func (c *OpenAIOCRClient) ProcessImage(ctx context.Context, image []byte, pageNum int) (*OCRResult, error) {
	start := time.Now()

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(c.prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL,
				}),
			}),
		},
		MaxTokens: openai.Int(int64(c.maxTokens)),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return &OCRResult{
			Success:       false,
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
		}, fmt.Errorf("openai chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices in completion response")
		return &OCRResult{
			Success:       false,
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
		}, err
	}

	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		err := fmt.Errorf("empty completion from model %s", c.model)
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
	if resp.Usage.TotalTokens > 0 {
		metadata["prompt_tokens"] = resp.Usage.PromptTokens
		metadata["completion_tokens"] = resp.Usage.CompletionTokens
	}

	return &OCRResult{
		Success:       true,
		Text:          text,
		Metadata:      metadata,
		ExecutionTime: time.Since(start),
	}, nil
}
