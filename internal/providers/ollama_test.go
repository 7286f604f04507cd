package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaProcessImage(t *testing.T) {
	image := []byte("fake-png-bytes")

	t.Run("successful request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/chat" {
				t.Errorf("expected path /api/chat, got %s", r.URL.Path)
			}
			if r.Method != "POST" {
				t.Errorf("expected POST, got %s", r.Method)
			}
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected application/json, got %s", ct)
			}

			var req ollamaChatRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("failed to decode request: %v", err)
			}
			if req.Model != "deepseek-ocr" {
				t.Errorf("expected default model, got %s", req.Model)
			}
			if req.Stream {
				t.Error("streaming should be disabled")
			}
			if len(req.Messages) != 1 || len(req.Messages[0].Images) != 1 {
				t.Fatalf("expected one message with one image, got %+v", req.Messages)
			}
			if req.Messages[0].Images[0] != base64.StdEncoding.EncodeToString(image) {
				t.Error("image not base64 encoded as expected")
			}

			json.NewEncoder(w).Encode(ollamaChatResponse{
				Model: "deepseek-ocr",
				Message: ollamaChatMessage{
					Role:    "assistant",
					Content: "<|ref|>text<|/ref|><|det|>[[1, 2, 3, 4]]<|/det|>Hello.",
				},
				Done:            true,
				TotalDuration:   2_000_000_000,
				EvalCount:       512,
				PromptEvalCount: 64,
			})
		}))
		defer server.Close()

		client := NewOllamaOCRClient(OllamaOCRConfig{BaseURL: server.URL})
		result, err := client.ProcessImage(context.Background(), image, 7)
		if err != nil {
			t.Fatalf("ProcessImage failed: %v", err)
		}
		if !result.Success {
			t.Error("expected success")
		}
		if result.Text == "" {
			t.Error("expected text in result")
		}
		if result.Metadata["model_used"] != "deepseek-ocr" {
			t.Errorf("unexpected model_used: %v", result.Metadata["model_used"])
		}
		if result.Metadata["page_number"] != 7 {
			t.Errorf("unexpected page_number: %v", result.Metadata["page_number"])
		}
		if result.Metadata["eval_count"] != 512 {
			t.Errorf("unexpected eval_count: %v", result.Metadata["eval_count"])
		}
		if result.Metadata["model_duration_ms"] != int64(2000) {
			t.Errorf("unexpected model_duration_ms: %v", result.Metadata["model_duration_ms"])
		}
	})

	t.Run("empty model response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(ollamaChatResponse{
				Model:   "deepseek-ocr",
				Message: ollamaChatMessage{Role: "assistant", Content: "   "},
				Done:    true,
			})
		}))
		defer server.Close()

		client := NewOllamaOCRClient(OllamaOCRConfig{BaseURL: server.URL})
		result, err := client.ProcessImage(context.Background(), image, 1)
		if err == nil {
			t.Fatal("expected error for empty response")
		}
		if result.Success {
			t.Error("expected failure result")
		}
		if result.ErrorMessage == "" {
			t.Error("expected error message in result")
		}
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(ollamaErrorResponse{Error: "model not found"})
		}))
		defer server.Close()

		client := NewOllamaOCRClient(OllamaOCRConfig{BaseURL: server.URL})
		result, err := client.ProcessImage(context.Background(), image, 1)
		if err == nil {
			t.Fatal("expected error for 500 response")
		}
		if result.Success {
			t.Error("expected failure result")
		}
	})
}

func TestOllamaDefaults(t *testing.T) {
	client := NewOllamaOCRClient(OllamaOCRConfig{})
	if client.Name() != OllamaOCRName {
		t.Errorf("unexpected name: %s", client.Name())
	}
	if client.RequestsPerSecond() != 1.0 {
		t.Errorf("unexpected default rate limit: %v", client.RequestsPerSecond())
	}
	if client.MaxRetries() != 2 {
		t.Errorf("unexpected max retries: %d", client.MaxRetries())
	}
	if client.baseURL != OllamaOCRBaseURL {
		t.Errorf("unexpected default base url: %s", client.baseURL)
	}

	trimmed := NewOllamaOCRClient(OllamaOCRConfig{BaseURL: "http://host:1234///"})
	if trimmed.baseURL != "http://host:1234" {
		t.Errorf("trailing slashes not trimmed: %s", trimmed.baseURL)
	}
}
