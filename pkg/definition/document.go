// Package definition parses, validates and compiles process definition resources.
package definition

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// Resource is one deployable document, in JSON or YAML.
type Resource struct {
	Name    string
	Content []byte
}

// ReadResource loads a resource from disk, named after its base file name.
func ReadResource(path string) (Resource, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Resource{}, fmt.Errorf("failed to read resource %s: %w", path, err)
	}

	return Resource{Name: filepath.Base(path), Content: content}, nil
}

// Document is the authored form of a process definition.
type Document struct {
	Key         string               `json:"key"`
	Name        string               `json:"name,omitempty"`
	Nodes       []NodeDocument       `json:"nodes"`
	Transitions []TransitionDocument `json:"transitions,omitempty"`
}

// NodeDocument is the authored form of a node.
type NodeDocument struct {
	ID              string          `json:"id"`
	Type            models.NodeType `json:"type"`
	Name            string          `json:"name,omitempty"`
	Assignee        string          `json:"assignee,omitempty"`
	CandidateUsers  ExpressionList  `json:"candidateUsers,omitempty"`
	CandidateGroups ExpressionList  `json:"candidateGroups,omitempty"`
	Listeners       []string        `json:"listeners,omitempty"`
	Default         string          `json:"default,omitempty"`
}

// TransitionDocument is the authored form of a transition.
type TransitionDocument struct {
	ID        string `json:"id,omitempty"`
	From      string `json:"from"`
	To        string `json:"to"`
	Condition string `json:"condition,omitempty"`
}

// ExpressionList accepts either a single expression or a list of expressions.
type ExpressionList []string

func (l *ExpressionList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = ExpressionList{single}

		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("expected a string or a list of strings: %w", err)
	}

	*l = list

	return nil
}

// Parse decodes a resource and validates it against the definition schema.
// YAML is a superset of JSON, so both formats go through the YAML decoder.
func Parse(resource Resource) (*Document, error) {
	var raw any
	if err := yaml.Unmarshal(resource.Content, &raw); err != nil {
		return nil, invalid(resource.Name, "failed to decode: %v", err)
	}

	if raw == nil {
		return nil, invalid(resource.Name, "empty resource")
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, invalid(resource.Name, "failed to convert to JSON: %v", err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, invalid(resource.Name, "schema validation failed: %v", err)
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}

		return nil, invalid(resource.Name, "validation errors: %s", strings.Join(errs, "; "))
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, invalid(resource.Name, "failed to decode: %v", err)
	}

	return &doc, nil
}

func invalid(resource, format string, args ...any) error {
	return fmt.Errorf("%w: resource %s: %s", models.ErrInvalidDefinition, resource, fmt.Sprintf(format, args...))
}
