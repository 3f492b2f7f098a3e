// Package templatepacks loads JSON template-pack bundles: manifests for
// growth templates and systems that let one binary run different domains
// ("worlds") without a recompile (spec.md §4.4, SPEC_FULL.md §10.3).
package templatepacks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// ParameterManifest documents one tunable a growth template exposes.
type ParameterManifest struct {
	Value       float64 `json:"value"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Description string  `json:"description,omitempty"`
}

// TemplateManifest is one growth template's static declaration (spec §4.4:
// "id, name, ... plus metadata: parameters, pressureModifiers, produces").
type TemplateManifest struct {
	ID                string                       `json:"id"`
	Name              string                       `json:"name"`
	Produces          []string                     `json:"produces"`
	Parameters        map[string]ParameterManifest `json:"parameters,omitempty"`
	PressureModifiers map[string]float64           `json:"pressureModifiers,omitempty"`
}

// SystemManifest is one system's static declaration (spec §4.5: "a system
// may be marked always-run; others roll against a per-system base
// probability").
type SystemManifest struct {
	ID         string  `json:"id"`
	BaseWeight float64 `json:"baseWeight"`
	AlwaysRun  bool    `json:"alwaysRun"`
}

// Pack is one loaded, validated template pack.
type Pack struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Version   string              `json:"version"`
	Templates []TemplateManifest  `json:"templates"`
	Systems   []SystemManifest    `json:"systems"`
}

// manifestSchema is the JSON Schema every pack bundle must satisfy before
// it is compiled against the Go-registered template/system implementations
// (SPEC_FULL.md §11: "validates a loaded pack's parameter/produces
// manifests against a JSON Schema before compiling it").
var manifestSchema = &jsonschema.Schema{
	Type:     "object",
	Required: []string{"id", "name", "version", "templates"},
	Properties: map[string]*jsonschema.Schema{
		"id":      {Type: "string"},
		"name":    {Type: "string"},
		"version": {Type: "string"},
		"templates": {
			Type: "array",
			Items: &jsonschema.Schema{
				Type:     "object",
				Required: []string{"id", "name", "produces"},
			},
		},
		"systems": {
			Type: "array",
			Items: &jsonschema.Schema{
				Type:     "object",
				Required: []string{"id", "baseWeight"},
			},
		},
	},
}

// Load parses and schema-validates a template pack bundle.
func Load(ctx context.Context, data []byte) (*Pack, error) {
	resolved, err := manifestSchema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("templatepacks: resolve schema: %w", err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("templatepacks: parse bundle: %w", err)
	}
	if err := resolved.Validate(raw); err != nil {
		return nil, fmt.Errorf("templatepacks: bundle failed schema validation: %w", err)
	}

	var pack Pack
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("templatepacks: decode bundle: %w", err)
	}
	return &pack, nil
}

// TemplateByID returns the manifest for a given template id, or false.
func (p *Pack) TemplateByID(id string) (TemplateManifest, bool) {
	for _, t := range p.Templates {
		if t.ID == id {
			return t, true
		}
	}
	return TemplateManifest{}, false
}

// SystemByID returns the manifest for a given system id, or false.
func (p *Pack) SystemByID(id string) (SystemManifest, bool) {
	for _, s := range p.Systems {
		if s.ID == id {
			return s, true
		}
	}
	return SystemManifest{}, false
}
