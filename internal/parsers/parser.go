// Package parsers decodes serialized schema files into a schema.Schema.
package parsers

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Benny93/typegraph-go/internal/schema"
)

// ErrUnsupportedFormat is returned by ForPath for unknown file extensions.
var ErrUnsupportedFormat = errors.New("unsupported schema format")

// Parser decodes one serialization format.
type Parser interface {
	// Parse decodes content read from filePath. The returned schema has
	// passed schema.Validate.
	Parse(filePath string, content []byte) (*schema.Schema, error)

	// Format returns the format name ("json", "yaml").
	Format() string
}

// ForPath selects a parser by file extension.
func ForPath(path string) (Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return NewJSONParser(), nil
	case ".yaml", ".yml":
		return NewYAMLParser(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}
}

// Formats lists the extensions ForPath understands.
func Formats() []string {
	return []string{".json", ".yaml", ".yml"}
}
