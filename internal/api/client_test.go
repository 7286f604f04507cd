package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestClientGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/v1/things" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"alpha","count":3}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	var out struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	if err := client.Get(context.Background(), "/v1/things", &out); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if out.Name != "alpha" || out.Count != 3 {
		t.Errorf("unexpected response: %+v", out)
	}
}

func TestClientPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %s", ct)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		if body["name"] != "beta" {
			t.Errorf("unexpected body: %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"p-1"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	var out struct {
		ID string `json:"id"`
	}
	err := client.Post(context.Background(), "/v1/things", map[string]string{"name": "beta"}, &out)
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if out.ID != "p-1" {
		t.Errorf("unexpected id %q", out.ID)
	}
}

func TestClientErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"document not found"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.Get(context.Background(), "/v1/things/absent", nil)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "document not found") {
		t.Errorf("error body not surfaced: %v", err)
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("status code not surfaced: %v", err)
	}
}

func TestClientErrorNonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream broke"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.Get(context.Background(), "/", nil)
	if err == nil || !strings.Contains(err.Error(), "upstream broke") {
		t.Errorf("raw body not surfaced: %v", err)
	}
}

func TestClientDelete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if err := client.Delete(context.Background(), "/v1/things/p-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
}

func TestClientPostFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 content"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		files := r.MultipartForm.File["file"]
		if len(files) != 1 || files[0].Filename != "scan.pdf" {
			t.Errorf("unexpected files: %v", files)
		}
		if got := r.FormValue("title"); got != "my scan" {
			t.Errorf("unexpected title %q", got)
		}
		// Empty fields are dropped client-side.
		if _, ok := r.MultipartForm.Value["backend"]; ok {
			t.Error("empty field should be omitted")
		}
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	var out struct {
		OK bool `json:"ok"`
	}
	err := client.PostFile(context.Background(), "/v1/documents", "file", path,
		map[string]string{"title": "my scan", "backend": ""}, &out)
	if err != nil {
		t.Fatalf("PostFile failed: %v", err)
	}
	if !out.OK {
		t.Errorf("unexpected response: %+v", out)
	}
}

func TestOutputTo(t *testing.T) {
	data := map[string]any{"name": "alpha", "count": 2}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := OutputTo(&buf, OutputFormatJSON, data); err != nil {
			t.Fatalf("OutputTo failed: %v", err)
		}
		var round map[string]any
		if err := json.Unmarshal(buf.Bytes(), &round); err != nil {
			t.Fatalf("output is not valid json: %v", err)
		}
		if round["name"] != "alpha" {
			t.Errorf("unexpected output: %v", round)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := OutputTo(&buf, OutputFormatYAML, data); err != nil {
			t.Fatalf("OutputTo failed: %v", err)
		}
		if !strings.Contains(buf.String(), "name: alpha") {
			t.Errorf("unexpected yaml: %q", buf.String())
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if err := OutputTo(io.Discard, OutputFormat("xml"), data); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}
