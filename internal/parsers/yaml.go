package parsers

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/Benny93/typegraph-go/internal/schema"
)

// YAMLParser decodes YAML schema documents.
type YAMLParser struct{}

// NewYAMLParser creates a new YAML parser.
func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

// Format returns the format this parser handles.
func (p *YAMLParser) Format() string {
	return "yaml"
}

// Parse decodes a document with a top-level "types" sequence.
func (p *YAMLParser) Parse(filePath string, content []byte) (*schema.Schema, error) {
	var doc wireSchema
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML schema %s: %w", filePath, err)
	}
	s, err := doc.build()
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", filePath, err)
	}
	return s, nil
}
