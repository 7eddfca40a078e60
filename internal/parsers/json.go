package parsers

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/Benny93/typegraph-go/internal/schema"
)

// JSONParser decodes JSON schema documents.
type JSONParser struct{}

// NewJSONParser creates a new JSON parser.
func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

// Format returns the format this parser handles.
func (p *JSONParser) Format() string {
	return "json"
}

// Parse decodes a {"types": [...]} document. Enum and default values keep
// their numbers as json.Number.
func (p *JSONParser) Parse(filePath string, content []byte) (*schema.Schema, error) {
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()

	var doc wireSchema
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing JSON schema %s: %w", filePath, err)
	}
	s, err := doc.build()
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", filePath, err)
	}
	return s, nil
}
