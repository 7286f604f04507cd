package providers

import (
	"testing"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	mock := NewMockOCRClient()
	r.RegisterOCR("mock", mock)

	got, err := r.GetOCR("mock")
	if err != nil {
		t.Fatalf("GetOCR failed: %v", err)
	}
	if got.Name() != "mock" {
		t.Errorf("unexpected provider: %s", got.Name())
	}

	if !r.HasOCR("mock") {
		t.Error("HasOCR should report registered provider")
	}
	if r.HasOCR("absent") {
		t.Error("HasOCR should not report unknown provider")
	}
	if _, err := r.GetOCR("absent"); err == nil {
		t.Error("expected error for unknown provider")
	}

	names := r.ListOCR()
	if len(names) != 1 || names[0] != "mock" {
		t.Errorf("unexpected names: %v", names)
	}
}

func TestNewRegistryFromConfig(t *testing.T) {
	cfg := RegistryConfig{
		OCRBackends: map[string]OCRBackendConfig{
			"local": {
				Type:      "ollama",
				Model:     "deepseek-ocr",
				BaseURL:   "http://localhost:11434",
				RateLimit: 1.0,
				Enabled:   true,
			},
			"cloud": {
				Type:      "openai",
				Model:     "gpt-4o",
				APIKey:    "sk-test",
				RateLimit: 2.0,
				Enabled:   true,
			},
			"disabled": {
				Type:    "ollama",
				Enabled: false,
			},
		},
		Docling:   DoclingBackendConfig{BaseURL: "http://localhost:5001", Enabled: true},
		TextLayer: TextLayerBackendConfig{Binary: "ocrmypdf", Enabled: true},
	}

	r := NewRegistryFromConfig(cfg, nil)

	if !r.HasOCR("local") || !r.HasOCR("cloud") {
		t.Errorf("expected local and cloud registered, got %v", r.ListOCR())
	}
	if r.HasOCR("disabled") {
		t.Error("disabled backend should not be registered")
	}
	if _, err := r.GetLayout(DoclingName); err != nil {
		t.Errorf("expected docling layout provider: %v", err)
	}
	if _, err := r.GetTextLayer(OCRmyPDFName); err != nil {
		t.Errorf("expected ocrmypdf text layer provider: %v", err)
	}
}

func TestRegistryReload(t *testing.T) {
	cfg := RegistryConfig{
		OCRBackends: map[string]OCRBackendConfig{
			"local": {Type: "ollama", BaseURL: "http://localhost:11434", RateLimit: 1.0, Enabled: true},
		},
		Docling: DoclingBackendConfig{Enabled: true},
	}
	r := NewRegistryFromConfig(cfg, nil)

	t.Run("unchanged backend keeps instance", func(t *testing.T) {
		before, _ := r.GetOCR("local")
		r.Reload(cfg)
		after, _ := r.GetOCR("local")
		if before != after {
			t.Error("unchanged backend should not be recreated")
		}
	})

	t.Run("changed settings recreate provider", func(t *testing.T) {
		before, _ := r.GetOCR("local")
		changed := cfg
		changed.OCRBackends = map[string]OCRBackendConfig{
			"local": {Type: "ollama", BaseURL: "http://otherhost:11434", RateLimit: 1.0, Enabled: true},
		}
		r.Reload(changed)
		after, _ := r.GetOCR("local")
		if before == after {
			t.Error("changed backend should be recreated")
		}
	})

	t.Run("removed backend unregistered", func(t *testing.T) {
		r.Reload(RegistryConfig{})
		if r.HasOCR("local") {
			t.Error("removed backend still registered")
		}
		if _, err := r.GetLayout(DoclingName); err == nil {
			t.Error("disabled docling still registered")
		}
	})
}

func TestRegistryOCRProvidersSnapshot(t *testing.T) {
	r := NewRegistry()
	r.RegisterOCR("a", NewMockOCRClient())
	r.RegisterOCR("b", NewMockOCRClient())

	snapshot := r.OCRProviders()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(snapshot))
	}
	delete(snapshot, "a")
	if !r.HasOCR("a") {
		t.Error("mutating the snapshot must not affect the registry")
	}
}
