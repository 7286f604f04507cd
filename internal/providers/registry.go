package providers

import (
	"fmt"
	"log/slog"
	"sync"
)

// Registry holds references to OCR, layout, and text layer providers. It
// supports config-driven instantiation, hot-reload, and thread-safe access.
type Registry struct {
	mu         sync.RWMutex
	ocr        map[string]OCRProvider
	layout     map[string]LayoutProvider
	textLayers map[string]TextLayerProvider
	logger     *slog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		ocr:        make(map[string]OCRProvider),
		layout:     make(map[string]LayoutProvider),
		textLayers: make(map[string]TextLayerProvider),
		logger:     slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// RegisterOCR registers an OCR provider by name.
func (r *Registry) RegisterOCR(name string, provider OCRProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ocr[name] = provider
	if r.logger != nil {
		r.logger.Info("registered OCR provider", "name", name)
	}
}

// RegisterLayout registers a layout provider by name.
func (r *Registry) RegisterLayout(name string, provider LayoutProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layout[name] = provider
	if r.logger != nil {
		r.logger.Info("registered layout provider", "name", name)
	}
}

// RegisterTextLayer registers a text layer provider by name.
func (r *Registry) RegisterTextLayer(name string, provider TextLayerProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.textLayers[name] = provider
	if r.logger != nil {
		r.logger.Info("registered text layer provider", "name", name)
	}
}

// GetOCR returns an OCR provider by name.
func (r *Registry) GetOCR(name string) (OCRProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.ocr[name]
	if !ok {
		return nil, fmt.Errorf("OCR provider not found: %s", name)
	}
	return provider, nil
}

// GetLayout returns a layout provider by name.
func (r *Registry) GetLayout(name string) (LayoutProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.layout[name]
	if !ok {
		return nil, fmt.Errorf("layout provider not found: %s", name)
	}
	return provider, nil
}

// GetTextLayer returns a text layer provider by name.
func (r *Registry) GetTextLayer(name string) (TextLayerProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.textLayers[name]
	if !ok {
		return nil, fmt.Errorf("text layer provider not found: %s", name)
	}
	return provider, nil
}

// HasOCR checks if an OCR provider is registered.
func (r *Registry) HasOCR(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ocr[name]
	return ok
}

// ListOCR returns all registered OCR provider names.
func (r *Registry) ListOCR() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ocr))
	for name := range r.ocr {
		names = append(names, name)
	}
	return names
}

// OCRProviders returns a map of all registered OCR providers.
// Used by the scheduler to create one rate-limited worker per provider.
func (r *Registry) OCRProviders() map[string]OCRProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]OCRProvider, len(r.ocr))
	for name, provider := range r.ocr {
		result[name] = provider
	}
	return result
}

// RegistryConfig defines the providers to instantiate from config.
type RegistryConfig struct {
	// OCRBackends maps provider names to their config.
	OCRBackends map[string]OCRBackendConfig

	// Docling, when enabled, registers the docling-serve layout backend.
	Docling DoclingBackendConfig

	// TextLayer, when enabled, registers the ocrmypdf text layer backend.
	TextLayer TextLayerBackendConfig
}

// OCRBackendConfig matches config.BackendCfg with resolved API key.
type OCRBackendConfig struct {
	Type      string  // "ollama", "openai"
	Model     string
	Prompt    string
	BaseURL   string
	APIKey    string  // Resolved API key
	RateLimit float64 // Requests per second
	Enabled   bool
}

// DoclingBackendConfig configures the docling-serve layout backend.
type DoclingBackendConfig struct {
	BaseURL string
	DoOCR   bool
	Enabled bool
}

// TextLayerBackendConfig configures the ocrmypdf text layer backend.
type TextLayerBackendConfig struct {
	Binary    string
	Languages []string
	Enabled   bool
}

// NewRegistryFromConfig creates a registry with providers based on
// configuration. Only enabled backends are registered.
func NewRegistryFromConfig(cfg RegistryConfig, logger *slog.Logger) *Registry {
	r := NewRegistry()
	if logger != nil {
		r.logger = logger
	}
	r.Reload(cfg)
	return r
}

// Reload updates the registry based on new configuration. Backends that are
// no longer configured are unregistered; backends with changed settings are
// recreated.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wantOCR := make(map[string]bool)
	for name, backendCfg := range cfg.OCRBackends {
		if !backendCfg.Enabled {
			continue
		}
		wantOCR[name] = true

		existing, hasExisting := r.ocr[name]
		if hasExisting && !needsOCRUpdate(existing, backendCfg) {
			continue
		}
		provider := createOCRProvider(backendCfg)
		if provider == nil {
			if r.logger != nil {
				r.logger.Warn("unknown OCR backend type", "name", name, "type", backendCfg.Type)
			}
			continue
		}
		r.ocr[name] = provider
		if r.logger != nil {
			if hasExisting {
				r.logger.Info("updated OCR provider", "name", name, "type", backendCfg.Type)
			} else {
				r.logger.Info("registered OCR provider", "name", name, "type", backendCfg.Type)
			}
		}
	}
	for name := range r.ocr {
		if !wantOCR[name] {
			delete(r.ocr, name)
			if r.logger != nil {
				r.logger.Info("unregistered OCR provider", "name", name)
			}
		}
	}

	if cfg.Docling.Enabled {
		client, err := NewDoclingClient(DoclingConfig{
			BaseURL: cfg.Docling.BaseURL,
			DoOCR:   cfg.Docling.DoOCR,
		})
		if err != nil {
			if r.logger != nil {
				r.logger.Error("failed to create docling client", "error", err)
			}
		} else {
			r.layout[DoclingName] = client
		}
	} else {
		delete(r.layout, DoclingName)
	}

	if cfg.TextLayer.Enabled {
		r.textLayers[OCRmyPDFName] = NewOCRmyPDFProvider(OCRmyPDFConfig{
			Binary: cfg.TextLayer.Binary,
		})
	} else {
		delete(r.textLayers, OCRmyPDFName)
	}
}

// createOCRProvider creates an OCR provider based on backend type.
func createOCRProvider(cfg OCRBackendConfig) OCRProvider {
	switch cfg.Type {
	case "ollama":
		return NewOllamaOCRClient(OllamaOCRConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Prompt:    cfg.Prompt,
			RateLimit: cfg.RateLimit,
		})
	case "openai":
		return NewOpenAIOCRClient(OpenAIOCRConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			Prompt:    cfg.Prompt,
			BaseURL:   cfg.BaseURL,
			RateLimit: cfg.RateLimit,
		})
	default:
		return nil
	}
}

// needsOCRUpdate checks if an OCR provider needs to be recreated.
func needsOCRUpdate(provider OCRProvider, cfg OCRBackendConfig) bool {
	switch p := provider.(type) {
	case *OllamaOCRClient:
		return p.baseURL != normalizedBaseURL(cfg.BaseURL, OllamaOCRBaseURL) ||
			p.model != defaultString(cfg.Model, OllamaOCRModel) ||
			p.rateLimit != cfg.RateLimit
	case *OpenAIOCRClient:
		return p.apiKey != cfg.APIKey ||
			p.model != defaultString(cfg.Model, openAIOCRDefaultModel) ||
			p.rateLimit != cfg.RateLimit
	default:
		return true
	}
}

func normalizedBaseURL(url, fallback string) string {
	if url == "" {
		url = fallback
	}
	for len(url) > 0 && url[len(url)-1] == '/' {
		url = url[:len(url)-1]
	}
	return url
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
