// File: internal/model/model.go

// Package model parses, validates, and resolves DIVANet model-definition
// documents: a scaling table plus an ordered layer list for the backbone
// and head of a classification network, each layer encoded as a
// [from, repeats, module, args] tuple.
package model

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Module names accepted in a layer tuple.
const (
	ModuleConv     = "Conv"
	ModulePoolConv = "Pool_Conv"
	ModuleC1       = "C1"
	ModuleC2       = "C2"
	ModuleC2f      = "C2f"
	ModuleC3       = "C3"
	ModuleC2fKAN   = "C2f_KAN"
	ModuleC3KAN    = "C3_KAN"
	ModuleCBAM     = "CBAM"
	ModuleClassify = "Classify"
)

var knownModules = map[string]bool{
	ModuleConv:     true,
	ModulePoolConv: true,
	ModuleC1:       true,
	ModuleC2:       true,
	ModuleC2f:      true,
	ModuleC3:       true,
	ModuleC2fKAN:   true,
	ModuleC3KAN:    true,
	ModuleCBAM:     true,
	ModuleClassify: true,
}

// ScaleCodes are the size variants every definition must provide, from
// nano to extra large.
var ScaleCodes = []string{"n", "s", "m", "l", "x"}

// Definition is a parsed model-definition document.
type Definition struct {
	NC       int                   `yaml:"nc"`
	Scales   map[string]ScaleEntry `yaml:"scales"`
	Backbone []LayerSpec           `yaml:"backbone"`
	Head     []LayerSpec           `yaml:"head"`
}

// ScaleEntry is one row of the scaling table. Its YAML form is a
// three-element flow sequence: [depth, width, max_channels].
type ScaleEntry struct {
	Depth       float64
	Width       float64
	MaxChannels int
}

// UnmarshalYAML decodes the [depth, width, max_channels] tuple.
func (s *ScaleEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode || len(node.Content) != 3 {
		return fmt.Errorf("scale entry must be a [depth, width, max_channels] tuple")
	}
	if err := node.Content[0].Decode(&s.Depth); err != nil {
		return fmt.Errorf("scale depth: %w", err)
	}
	if err := node.Content[1].Decode(&s.Width); err != nil {
		return fmt.Errorf("scale width: %w", err)
	}
	if err := node.Content[2].Decode(&s.MaxChannels); err != nil {
		return fmt.Errorf("scale max_channels: %w", err)
	}
	return nil
}

// MarshalYAML re-serializes the entry in flow style so a round trip
// preserves the tuple shape.
func (s ScaleEntry) MarshalYAML() (any, error) {
	var node yaml.Node
	if err := node.Encode([]any{s.Depth, s.Width, s.MaxChannels}); err != nil {
		return nil, err
	}
	node.Style = yaml.FlowStyle
	return &node, nil
}

func (s ScaleEntry) validate() error {
	if s.Depth <= 0 {
		return fmt.Errorf("depth must be greater than zero, got %v", s.Depth)
	}
	if s.Width <= 0 {
		return fmt.Errorf("width must be greater than zero, got %v", s.Width)
	}
	if s.MaxChannels <= 0 {
		return fmt.Errorf("max_channels must be greater than zero, got %d", s.MaxChannels)
	}
	return nil
}

// LayerSpec is one layer of the backbone or head. Its YAML form is a
// four-element flow sequence: [from, repeats, module, args]. From is -1
// for the previous layer or the global index of an earlier layer; args
// holds scalars only.
type LayerSpec struct {
	From    int
	Repeats int
	Module  string
	Args    []any
}

// UnmarshalYAML decodes the [from, repeats, module, args] tuple.
func (l *LayerSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode || len(node.Content) != 4 {
		return fmt.Errorf("layer entry must be a [from, repeats, module, args] tuple")
	}
	if err := node.Content[0].Decode(&l.From); err != nil {
		return fmt.Errorf("layer from: %w", err)
	}
	if err := node.Content[1].Decode(&l.Repeats); err != nil {
		return fmt.Errorf("layer repeats: %w", err)
	}
	if err := node.Content[2].Decode(&l.Module); err != nil {
		return fmt.Errorf("layer module: %w", err)
	}

	argsNode := node.Content[3]
	if argsNode.Kind != yaml.SequenceNode {
		return fmt.Errorf("layer args must be a sequence of scalars")
	}
	l.Args = make([]any, 0, len(argsNode.Content))
	for i, el := range argsNode.Content {
		if el.Kind != yaml.ScalarNode {
			return fmt.Errorf("layer arg %d must be a scalar", i)
		}
		var v any
		if err := el.Decode(&v); err != nil {
			return fmt.Errorf("layer arg %d: %w", i, err)
		}
		l.Args = append(l.Args, v)
	}
	return nil
}

// MarshalYAML re-serializes the layer in flow style.
func (l LayerSpec) MarshalYAML() (any, error) {
	args := l.Args
	if args == nil {
		args = []any{}
	}
	var node yaml.Node
	if err := node.Encode([]any{l.From, l.Repeats, l.Module, args}); err != nil {
		return nil, err
	}
	node.Style = yaml.FlowStyle
	return &node, nil
}

// Parse decodes a model-definition document. Decoding is strict: unknown
// top-level keys are rejected so typos fail fast instead of silently
// dropping a section.
func Parse(data []byte) (*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing model definition: document is empty")
		}
		return nil, fmt.Errorf("parsing model definition: %w", err)
	}
	return &def, nil
}

// Load reads and parses the model-definition document at path.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model definition: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Validate enforces the document invariants: a positive class count, a
// complete scaling table, and layer tuples whose from references resolve
// to -1 or an already-declared layer. Layer indexing is global: the head
// continues where the backbone stops.
func (d *Definition) Validate() error {
	if d.NC <= 0 {
		return fmt.Errorf("nc must be a positive class count, got %d", d.NC)
	}
	for _, code := range ScaleCodes {
		entry, ok := d.Scales[code]
		if !ok {
			return fmt.Errorf("scales: missing scale code %q", code)
		}
		if err := entry.validate(); err != nil {
			return fmt.Errorf("scales.%s: %w", code, err)
		}
	}
	for code := range d.Scales {
		if !isScaleCode(code) {
			return fmt.Errorf("scales: unknown scale code %q", code)
		}
	}
	if len(d.Backbone) == 0 {
		return fmt.Errorf("backbone must define at least one layer")
	}
	if len(d.Head) == 0 {
		return fmt.Errorf("head must define at least one layer")
	}
	if err := validateLayers("backbone", 0, d.Backbone); err != nil {
		return err
	}
	return validateLayers("head", len(d.Backbone), d.Head)
}

func validateLayers(section string, offset int, layers []LayerSpec) error {
	for i, layer := range layers {
		index := offset + i
		if layer.From != -1 && (layer.From < 0 || layer.From >= index) {
			return fmt.Errorf("%s layer %d: from %d must be -1 or the index of a previously defined layer",
				section, i, layer.From)
		}
		if layer.Repeats < 0 {
			return fmt.Errorf("%s layer %d: repeats must not be negative, got %d", section, i, layer.Repeats)
		}
		if !knownModules[layer.Module] {
			return fmt.Errorf("%s layer %d: unknown module %q", section, i, layer.Module)
		}
	}
	return nil
}

func isScaleCode(code string) bool {
	for _, c := range ScaleCodes {
		if c == code {
			return true
		}
	}
	return false
}
