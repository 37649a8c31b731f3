package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"firestige.xyz/pktforge/internal/core"
	"firestige.xyz/pktforge/internal/core/header"
)

// Template describes a packet as an ordered layer stack plus payload.
// Layer fields stay untyped here; internal/forge decodes them per kind.
type Template struct {
	Name    string         `json:"name" yaml:"name"`
	Layers  []LayerConfig  `json:"layers" yaml:"layers"`
	Payload PayloadSection `json:"payload" yaml:"payload"`
	Count   int            `json:"count" yaml:"count"` // packets to emit (default 1)
	// Raw skips length and checksum computation. Explicit field values
	// are written as given.
	Raw bool `json:"raw" yaml:"raw"`
}

// LayerConfig is one header of a template.
type LayerConfig struct {
	Type   string         `json:"type" yaml:"type"`
	Fields map[string]any `json:"fields" yaml:"fields"`
}

// PayloadSection selects at most one payload source.
type PayloadSection struct {
	Hex  string `json:"hex" yaml:"hex"`
	Text string `json:"text" yaml:"text"`
	// Generated payload, see internal/payload.
	Kind  string `json:"kind" yaml:"kind"`
	Size  int    `json:"size" yaml:"size"`
	Start uint8  `json:"start" yaml:"start"`
	Chars string `json:"chars" yaml:"chars"`

	Period int    `json:"period" yaml:"period"`
	Host   string `json:"host" yaml:"host"`
	Path   string `json:"path" yaml:"path"`
	Domain string `json:"domain" yaml:"domain"`
	ID     uint16 `json:"id" yaml:"id"`
}

// Bytes decodes the hex payload, ignoring whitespace and ':' separators.
func (p PayloadSection) Bytes() ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':':
			return -1
		}
		return r
	}, p.Hex)
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("payload hex: %w: %v", core.ErrInvalidField, err)
	}
	return b, nil
}

// Validate checks the template and applies defaults.
func (t *Template) Validate() error {
	if len(t.Layers) == 0 {
		return core.ErrEmptyTemplate
	}
	for i, l := range t.Layers {
		if l.Type == "" {
			return fmt.Errorf("layer[%d]: type is required: %w", i, core.ErrUnknownLayer)
		}
		if _, err := header.ParseKind(l.Type); err != nil {
			return fmt.Errorf("layer[%d]: %w", i, err)
		}
	}
	if t.Count < 0 {
		return fmt.Errorf("count %d: %w", t.Count, core.ErrInvalidField)
	}
	if t.Count == 0 {
		t.Count = 1
	}

	p := t.Payload
	sources := 0
	for _, set := range []bool{p.Hex != "", p.Text != "", p.Kind != ""} {
		if set {
			sources++
		}
	}
	if sources > 1 {
		return fmt.Errorf("payload: hex, text and kind are mutually exclusive: %w", core.ErrInvalidField)
	}
	if p.Hex != "" {
		if _, err := p.Bytes(); err != nil {
			return err
		}
	}
	if p.Size < 0 {
		return fmt.Errorf("payload size %d: %w", p.Size, core.ErrInvalidField)
	}
	if p.Period < 0 {
		return fmt.Errorf("payload period %d: %w", p.Period, core.ErrInvalidField)
	}
	return nil
}

// ParseTemplate parses a template from JSON.
func ParseTemplate(data []byte) (*Template, error) {
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// ParseTemplateYAML parses a template from YAML.
func ParseTemplateYAML(data []byte) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// ParseTemplateAuto picks JSON or YAML from the file extension, defaulting
// to YAML.
func ParseTemplateAuto(data []byte, filename string) (*Template, error) {
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		return ParseTemplate(data)
	}
	return ParseTemplateYAML(data)
}

// LoadTemplate reads and parses the template at path.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}
	t, err := ParseTemplateAuto(data, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if t.Name == "" {
		t.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return t, nil
}
