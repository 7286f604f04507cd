package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

const MockOCRName = "mock"

// MockOCRClient is an OCRProvider for testing.
type MockOCRClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string

	// TextForPage overrides ResponseText per page number when set.
	TextForPage map[int]string

	// Rate limiting
	RPS        float64
	Retries    int
	RetryDelay time.Duration

	// State
	requestCount atomic.Int64
}

// NewMockOCRClient creates a mock OCR client with sensible defaults.
func NewMockOCRClient() *MockOCRClient {
	return &MockOCRClient{
		Latency:      time.Millisecond,
		ResponseText: "mock page text",
		RPS:          100,
		Retries:      1,
		RetryDelay:   time.Millisecond,
	}
}

// Name returns the provider identifier.
func (c *MockOCRClient) Name() string {
	return MockOCRName
}

// RequestsPerSecond returns the configured rate limit.
func (c *MockOCRClient) RequestsPerSecond() float64 {
	return c.RPS
}

// MaxRetries returns the maximum retry attempts.
func (c *MockOCRClient) MaxRetries() int {
	return c.Retries
}

// RetryDelayBase returns the base delay between retries.
func (c *MockOCRClient) RetryDelayBase() time.Duration {
	return c.RetryDelay
}

// RequestCount returns the number of ProcessImage calls so far.
func (c *MockOCRClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// ProcessImage returns the configured response.
func (c *MockOCRClient) ProcessImage(ctx context.Context, image []byte, pageNum int) (*OCRResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	if c.Latency > 0 {
		select {
		case <-ctx.Done():
			return &OCRResult{
				Success:       false,
				ErrorMessage:  ctx.Err().Error(),
				ExecutionTime: time.Since(start),
			}, ctx.Err()
		case <-time.After(c.Latency):
		}
	}

	if c.ShouldFail || (c.FailAfter > 0 && count > int64(c.FailAfter)) {
		err := fmt.Errorf("mock OCR failure on page %d", pageNum)
		return &OCRResult{
			Success:       false,
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
		}, err
	}

	text := c.ResponseText
	if override, ok := c.TextForPage[pageNum]; ok {
		text = override
	}

	return &OCRResult{
		Success: true,
		Text:    text,
		Metadata: map[string]any{
			"model_used":  MockOCRName,
			"page_number": pageNum,
		},
		ExecutionTime: time.Since(start),
	}, nil
}

// MockLayoutClient is a LayoutProvider for testing.
type MockLayoutClient struct {
	ShouldFail bool
	Markdown   string
	Layout     json.RawMessage
}

func (c *MockLayoutClient) Name() string               { return MockOCRName }
func (c *MockLayoutClient) RequestsPerSecond() float64 { return 100 }

// ProcessPDF returns the configured layout payload.
func (c *MockLayoutClient) ProcessPDF(ctx context.Context, pdf []byte) (*LayoutResult, error) {
	if c.ShouldFail {
		err := fmt.Errorf("mock layout failure")
		return &LayoutResult{Success: false, ErrorMessage: err.Error()}, err
	}
	return &LayoutResult{
		Success:  true,
		Markdown: c.Markdown,
		Layout:   c.Layout,
	}, nil
}

// MockTextLayerClient is a TextLayerProvider for testing.
type MockTextLayerClient struct {
	ShouldFail bool
	Output     []byte // Returned as-is; input echoed back when nil
	Calls      atomic.Int64
}

func (c *MockTextLayerClient) Name() string { return MockOCRName }

// AddTextLayer echoes input or returns the configured output.
func (c *MockTextLayerClient) AddTextLayer(ctx context.Context, pdf []byte, opts TextLayerOptions) ([]byte, error) {
	c.Calls.Add(1)
	if c.ShouldFail {
		return nil, fmt.Errorf("mock text layer failure")
	}
	if c.Output != nil {
		return c.Output, nil
	}
	return pdf, nil
}
