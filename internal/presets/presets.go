package presets

import (
	"time"
)

// Kind distinguishes what part of the pipeline a preset configures.
type Kind string

const (
	// KindLayout presets configure docling layout analysis.
	KindLayout Kind = "layout"
	// KindTextLayer presets configure ocrmypdf text layer generation.
	KindTextLayer Kind = "textlayer"
)

// Valid reports whether k is a known preset kind.
func (k Kind) Valid() bool {
	return k == KindLayout || k == KindTextLayer
}

// Preset is a named, reusable bundle of processing options. At most one
// preset per kind carries the Default flag.
type Preset struct {
	ID        string    `yaml:"id" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	Kind      Kind      `yaml:"kind" json:"kind"`
	Default   bool      `yaml:"default" json:"default"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`

	// Exactly one of the option blocks is set, matching Kind.
	Layout    *LayoutOptions    `yaml:"layout,omitempty" json:"layout,omitempty"`
	TextLayer *TextLayerOptions `yaml:"text_layer,omitempty" json:"text_layer,omitempty"`
}

// LayoutOptions configures docling layout analysis.
type LayoutOptions struct {
	Pipeline     string         `yaml:"pipeline" json:"pipeline"` // "standard" or "vlm"
	OCREngine    string         `yaml:"ocr_engine" json:"ocr_engine"`
	ForceOCR     bool           `yaml:"force_ocr" json:"force_ocr"`
	OCRLanguages []string       `yaml:"ocr_languages,omitempty" json:"ocr_languages,omitempty"`
	VLMModel     string         `yaml:"vlm_model,omitempty" json:"vlm_model,omitempty"`
	TableMode    string         `yaml:"table_mode,omitempty" json:"table_mode,omitempty"` // "fast" or "accurate"
	Advanced     map[string]any `yaml:"advanced,omitempty" json:"advanced,omitempty"`
}

// TextLayerOptions configures ocrmypdf text layer generation.
type TextLayerOptions struct {
	Language string `yaml:"language" json:"language"` // e.g. "eng", "eng+nld"
	ForceOCR bool   `yaml:"force_ocr" json:"force_ocr"`
	SkipText bool   `yaml:"skip_text" json:"skip_text"`
	Deskew   bool   `yaml:"deskew" json:"deskew"`
	Clean    bool   `yaml:"clean" json:"clean"`
	Optimize int    `yaml:"optimize" json:"optimize"` // 0..3
}

// DefaultLayoutPreset returns the seeded layout preset.
func DefaultLayoutPreset() *Preset {
	return &Preset{
		Name:    "default",
		Kind:    KindLayout,
		Default: true,
		Layout: &LayoutOptions{
			Pipeline:     "standard",
			OCREngine:    "auto",
			ForceOCR:     true,
			OCRLanguages: []string{"en"},
			TableMode:    "accurate",
		},
	}
}

// DefaultTextLayerPreset returns the seeded text layer preset.
func DefaultTextLayerPreset() *Preset {
	return &Preset{
		Name:    "default",
		Kind:    KindTextLayer,
		Default: true,
		TextLayer: &TextLayerOptions{
			Language: "eng",
			SkipText: true,
			Optimize: 1,
		},
	}
}
