// Package typegraph provides the realized, fully linked type graph built from
// a flat schema, together with its identity model (TypeKey, RelativePath) and
// path navigation (PathSegment).
package typegraph

import (
	"fmt"
	"strconv"
	"strings"
)

// TypeKey identifies one realized node: the schema index it was built from and
// the ordinal distinguishing repeated registrations of that index.
type TypeKey struct {
	Index   uint32
	Ordinal uint32
}

// String renders the key as "<index>#<ordinal>".
func (k TypeKey) String() string {
	return strconv.FormatUint(uint64(k.Index), 10) + "#" + strconv.FormatUint(uint64(k.Ordinal), 10)
}

// ParseTypeKey parses the String form of a key.
func ParseTypeKey(s string) (TypeKey, error) {
	idx, ord, ok := strings.Cut(s, "#")
	if !ok {
		return TypeKey{}, fmt.Errorf("invalid type key %q: missing '#'", s)
	}
	i, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return TypeKey{}, fmt.Errorf("invalid type key %q: %w", s, err)
	}
	o, err := strconv.ParseUint(ord, 10, 32)
	if err != nil {
		return TypeKey{}, fmt.Errorf("invalid type key %q: %w", s, err)
	}
	return TypeKey{Index: uint32(i), Ordinal: uint32(o)}, nil
}

// TypeKeyEx is a key still to be resolved: the schema index plus the
// duplication key the occurrence was expanded with.
type TypeKeyEx[K comparable] struct {
	Index uint32
	Dup   K
}
