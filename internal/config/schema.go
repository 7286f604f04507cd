package config

// Config holds docpond configuration.
// Stored at: ~/.docpond/config.yaml
type Config struct {
	Backends  map[string]BackendCfg `mapstructure:"backends" yaml:"backends"`
	Defaults  DefaultsCfg           `mapstructure:"defaults" yaml:"defaults"`
	Server    ServerCfg             `mapstructure:"server" yaml:"server"`
	Docling   DoclingCfg            `mapstructure:"docling" yaml:"docling"`
	TextLayer TextLayerCfg          `mapstructure:"text_layer" yaml:"text_layer"`
}

// BackendCfg configures an OCR backend.
type BackendCfg struct {
	Type      string  `mapstructure:"type" yaml:"type"`             // "ollama", "openai"
	Model     string  `mapstructure:"model" yaml:"model"`           // Model name
	Prompt    string  `mapstructure:"prompt" yaml:"prompt"`         // Override grounding prompt
	BaseURL   string  `mapstructure:"base_url" yaml:"base_url"`     // API base URL
	APIKey    string  `mapstructure:"api_key" yaml:"api_key"`       // API key (supports ${ENV_VAR} syntax)
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per second
	Enabled   bool    `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies default pipeline selections.
type DefaultsCfg struct {
	Backend    string  `mapstructure:"backend" yaml:"backend"`         // Default OCR backend name
	Zoom       float64 `mapstructure:"zoom" yaml:"zoom"`               // Page render zoom factor
	MaxWorkers int     `mapstructure:"max_workers" yaml:"max_workers"` // Max concurrent CPU workers
}

// ServerCfg holds HTTP server configuration.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// DoclingCfg holds docling-serve layout backend configuration.
type DoclingCfg struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Managed controls whether docpond runs the container itself.
	Managed bool `mapstructure:"managed" yaml:"managed"`
	// ContainerName is the Docker container name (default: docpond-docling)
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	// Image is the Docker image to use (default: quay.io/docling-project/docling-serve:latest)
	Image string `mapstructure:"image" yaml:"image"`
	// Port is the host port to bind (default: 5001)
	Port string `mapstructure:"port" yaml:"port"`
	// BaseURL overrides the endpoint when Managed is false.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	DoOCR   bool   `mapstructure:"do_ocr" yaml:"do_ocr"`
}

// TextLayerCfg holds ocrmypdf text layer configuration.
type TextLayerCfg struct {
	Enabled   bool     `mapstructure:"enabled" yaml:"enabled"`
	Binary    string   `mapstructure:"binary" yaml:"binary"`
	Languages []string `mapstructure:"languages" yaml:"languages"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Backends: map[string]BackendCfg{
			"ollama": {
				Type:      "ollama",
				Model:     "deepseek-ocr",
				BaseURL:   "http://localhost:11434",
				RateLimit: 1.0,
				Enabled:   true,
			},
			"openai": {
				Type:      "openai",
				Model:     "gpt-4o-mini",
				APIKey:    "${OPENAI_API_KEY}",
				RateLimit: 4.0,
				Enabled:   false,
			},
		},
		Defaults: DefaultsCfg{
			Backend:    "ollama",
			Zoom:       2.0,
			MaxWorkers: 4,
		},
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: 8141,
		},
		Docling: DoclingCfg{
			Enabled:       false,
			Managed:       true,
			ContainerName: "docpond-docling",
			Image:         "quay.io/docling-project/docling-serve:latest",
			Port:          "5001",
		},
		TextLayer: TextLayerCfg{
			Enabled:   false,
			Binary:    "ocrmypdf",
			Languages: []string{"eng"},
		},
	}
}

// GetBackend returns a backend config by name.
func (c *Config) GetBackend(name string) (BackendCfg, bool) {
	cfg, ok := c.Backends[name]
	return cfg, ok
}

// EnabledBackends returns all enabled OCR backends.
func (c *Config) EnabledBackends() map[string]BackendCfg {
	result := make(map[string]BackendCfg)
	for name, cfg := range c.Backends {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// DefaultBackend returns the configured default backend name, falling back to
// the first enabled backend when unset or unknown.
func (c *Config) DefaultBackend() string {
	if cfg, ok := c.Backends[c.Defaults.Backend]; ok && cfg.Enabled {
		return c.Defaults.Backend
	}
	for name, cfg := range c.Backends {
		if cfg.Enabled {
			return name
		}
	}
	return ""
}
