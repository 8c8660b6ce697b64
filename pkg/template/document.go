// Package template models synthesized CloudFormation-shaped documents (JSON
// or YAML) so validation rules can query resource types, property bags, and
// outputs without caring which framework produced the file.
package template

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

type (
	Document struct {
		Path        string               `json:"-" yaml:"-"`
		Version     string               `json:"AWSTemplateFormatVersion,omitempty" yaml:"AWSTemplateFormatVersion,omitempty"`
		Description string               `json:"Description,omitempty" yaml:"Description,omitempty"`
		Parameters  map[string]Parameter `json:"Parameters,omitempty" yaml:"Parameters,omitempty"`
		Mappings    map[string]any       `json:"Mappings,omitempty" yaml:"Mappings,omitempty"`
		Conditions  map[string]any       `json:"Conditions,omitempty" yaml:"Conditions,omitempty"`
		Resources   map[string]Resource  `json:"Resources" yaml:"Resources"`
		Outputs     map[string]Output    `json:"Outputs,omitempty" yaml:"Outputs,omitempty"`
	}

	Parameter struct {
		Type        string `json:"Type" yaml:"Type"`
		Default     any    `json:"Default,omitempty" yaml:"Default,omitempty"`
		Description string `json:"Description,omitempty" yaml:"Description,omitempty"`
	}

	Resource struct {
		Type       string         `json:"Type" yaml:"Type"`
		Properties map[string]any `json:"Properties,omitempty" yaml:"Properties,omitempty"`
		DependsOn  StringList     `json:"DependsOn,omitempty" yaml:"DependsOn,omitempty"`
		Condition  string         `json:"Condition,omitempty" yaml:"Condition,omitempty"`
		Metadata   map[string]any `json:"Metadata,omitempty" yaml:"Metadata,omitempty"`
	}

	Output struct {
		Description string  `json:"Description,omitempty" yaml:"Description,omitempty"`
		Value       any     `json:"Value" yaml:"Value"`
		Export      *Export `json:"Export,omitempty" yaml:"Export,omitempty"`
	}

	Export struct {
		Name any `json:"Name" yaml:"Name"`
	}

	// StringList accepts both the scalar and list spellings CloudFormation
	// allows for DependsOn.
	StringList []string
)

func (l *StringList) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*l = StringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("DependsOn must be a string or list of strings: %w", err)
	}
	*l = many
	return nil
}

func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	var single string
	if err := node.Decode(&single); err == nil {
		*l = StringList{single}
		return nil
	}
	var many []string
	if err := node.Decode(&many); err != nil {
		return fmt.Errorf("DependsOn must be a string or list of strings: %w", err)
	}
	*l = many
	return nil
}

// Read parses a synthesized template. The format follows the extension:
// .json, or .yaml/.yml/.template treated as YAML (YAML is a superset of JSON,
// so CDK .template.json output also loads through either path).
func Read(fpath string) (*Document, error) {
	buf, err := os.ReadFile(fpath)
	if err != nil {
		return nil, err
	}

	doc := &Document{}
	switch filepath.Ext(fpath) {
	case ".json":
		err = json.Unmarshal(buf, doc)
	case ".yaml", ".yml", ".template":
		err = yaml.Unmarshal(buf, doc)
	default:
		return nil, fmt.Errorf("unsupported template extension %q", filepath.Ext(fpath))
	}
	if err != nil {
		return nil, fmt.Errorf("could not parse template %s: %w", fpath, err)
	}
	if len(doc.Resources) == 0 {
		return nil, fmt.Errorf("template %s declares no resources", fpath)
	}

	doc.Path = fpath
	return doc, nil
}

// DecodeProperties maps a resource's untyped property bag onto a typed view.
// Unused template keys are ignored so views can stay minimal.
func DecodeProperties(r Resource, out any) error {
	return mapstructure.Decode(r.Properties, out)
}
