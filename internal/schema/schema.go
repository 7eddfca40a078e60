// Package schema defines the flat, serialized schema consumed by the
// typegraph engine.
//
// A schema is an ordered array of tagged nodes. Nodes reference each other by
// plain uint32 indices into that array; reference cycles are legal. The array
// is read-only once built.
package schema

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrIndexOutOfRange reports an edge pointing outside the node array.
	ErrIndexOutOfRange = errors.New("schema: index out of range")

	// ErrMalformed reports a schema violating its own reference integrity.
	ErrMalformed = errors.New("schema: malformed")
)

// Kind is the tag of a schema node.
type Kind string

const (
	KindBoolean  Kind = "boolean"
	KindInteger  Kind = "integer"
	KindFloat    Kind = "float"
	KindString   Kind = "string"
	KindFile     Kind = "file"
	KindOptional Kind = "optional"
	KindList     Kind = "list"
	KindObject   Kind = "object"
	KindUnion    Kind = "union"
	KindEither   Kind = "either"
	KindFunction Kind = "function"
)

// Base holds the attributes shared by every node.
type Base struct {
	Title       string
	Description string

	// Enum lists the allowed JSON values. Nil means no enum constraint.
	Enum []any
}

// Node is a single schema node. The set of implementations is closed.
type Node interface {
	Kind() Kind
	NodeBase() *Base
	isNode()
}

// Boolean is a boolean node.
type Boolean struct {
	Base
}

// Integer is an integer node with optional numeric refinements.
type Integer struct {
	Base
	Minimum          *int64
	Maximum          *int64
	ExclusiveMinimum *int64
	ExclusiveMaximum *int64
	MultipleOf       *int64
}

// Float is a floating point node with optional numeric refinements.
type Float struct {
	Base
	Minimum          *float64
	Maximum          *float64
	ExclusiveMinimum *float64
	ExclusiveMaximum *float64
	MultipleOf       *float64
}

// String is a string node.
type String struct {
	Base
	Pattern   *string
	Format    *string
	MinLength *uint32
	MaxLength *uint32
}

// File is a file upload node. Nil MimeTypes means any mime type.
type File struct {
	Base
	MinSize   *uint64
	MaxSize   *uint64
	MimeTypes []string
}

// Optional wraps a nullable item.
type Optional struct {
	Base
	Item         uint32
	DefaultValue any
}

// List is a homogeneous list.
type List struct {
	Base
	Items       uint32
	MinItems    *uint32
	MaxItems    *uint32
	UniqueItems *bool
}

// Property is a named object member, kept in declaration order.
type Property struct {
	Name  string
	Index uint32
}

// Object is a record with ordered properties.
type Object struct {
	Base
	Properties []Property
	Required   []string
}

// Union is an inclusive sum (any_of).
type Union struct {
	Base
	AnyOf []uint32
}

// Either is an exclusive sum (one_of).
type Either struct {
	Base
	OneOf []uint32
}

// Function exposes a materializer with an input object and an output type.
type Function struct {
	Base
	Input        uint32
	Output       uint32
	Materializer uint32
	Injections   *InjectionNode
	Outjections  *InjectionNode
	RateWeight   *uint32
}

func (*Boolean) Kind() Kind  { return KindBoolean }
func (*Integer) Kind() Kind  { return KindInteger }
func (*Float) Kind() Kind    { return KindFloat }
func (*String) Kind() Kind   { return KindString }
func (*File) Kind() Kind     { return KindFile }
func (*Optional) Kind() Kind { return KindOptional }
func (*List) Kind() Kind     { return KindList }
func (*Object) Kind() Kind   { return KindObject }
func (*Union) Kind() Kind    { return KindUnion }
func (*Either) Kind() Kind   { return KindEither }
func (*Function) Kind() Kind { return KindFunction }

func (n *Boolean) NodeBase() *Base  { return &n.Base }
func (n *Integer) NodeBase() *Base  { return &n.Base }
func (n *Float) NodeBase() *Base    { return &n.Base }
func (n *String) NodeBase() *Base   { return &n.Base }
func (n *File) NodeBase() *Base     { return &n.Base }
func (n *Optional) NodeBase() *Base { return &n.Base }
func (n *List) NodeBase() *Base     { return &n.Base }
func (n *Object) NodeBase() *Base   { return &n.Base }
func (n *Union) NodeBase() *Base    { return &n.Base }
func (n *Either) NodeBase() *Base   { return &n.Base }
func (n *Function) NodeBase() *Base { return &n.Base }

func (*Boolean) isNode()  {}
func (*Integer) isNode()  {}
func (*Float) isNode()    {}
func (*String) isNode()   {}
func (*File) isNode()     {}
func (*Optional) isNode() {}
func (*List) isNode()     {}
func (*Object) isNode()   {}
func (*Union) isNode()    {}
func (*Either) isNode()   {}
func (*Function) isNode() {}

// Property returns the index of the named property.
func (n *Object) Property(name string) (uint32, bool) {
	for _, p := range n.Properties {
		if p.Name == name {
			return p.Index, true
		}
	}
	return 0, false
}

// IsRequired reports whether name is listed in the required set.
func (n *Object) IsRequired(name string) bool {
	return slices.Contains(n.Required, name)
}

// Schema is the immutable node array.
type Schema struct {
	Types []Node
}

// New creates a schema from the given nodes.
func New(nodes ...Node) *Schema {
	return &Schema{Types: nodes}
}

// Len returns the number of nodes.
func (s *Schema) Len() int {
	return len(s.Types)
}

// Node returns the node at idx.
func (s *Schema) Node(idx uint32) (Node, error) {
	if int(idx) >= len(s.Types) {
		return nil, fmt.Errorf("%w: %d (schema has %d nodes)", ErrIndexOutOfRange, idx, len(s.Types))
	}
	return s.Types[idx], nil
}

// Children returns the raw outgoing edges of the node at idx, in declaration
// order.
func (s *Schema) Children(idx uint32) ([]uint32, error) {
	n, err := s.Node(idx)
	if err != nil {
		return nil, err
	}
	return edges(n), nil
}

func edges(n Node) []uint32 {
	switch n := n.(type) {
	case *Optional:
		return []uint32{n.Item}
	case *List:
		return []uint32{n.Items}
	case *Object:
		out := make([]uint32, 0, len(n.Properties))
		for _, p := range n.Properties {
			out = append(out, p.Index)
		}
		return out
	case *Union:
		return slices.Clone(n.AnyOf)
	case *Either:
		return slices.Clone(n.OneOf)
	case *Function:
		return []uint32{n.Input, n.Output}
	default:
		return nil
	}
}

// Validate checks reference integrity: every edge is in range, required
// names exist, and function inputs are objects.
func (s *Schema) Validate() error {
	for i, n := range s.Types {
		if n == nil {
			return fmt.Errorf("%w: node %d is nil", ErrMalformed, i)
		}
		for _, e := range edges(n) {
			if int(e) >= len(s.Types) {
				return fmt.Errorf("%w: node %d (%s) references %d: %w", ErrMalformed, i, n.Kind(), e, ErrIndexOutOfRange)
			}
		}
		switch n := n.(type) {
		case *Object:
			seen := make(map[string]bool, len(n.Properties))
			for _, p := range n.Properties {
				if seen[p.Name] {
					return fmt.Errorf("%w: node %d has duplicate property %q", ErrMalformed, i, p.Name)
				}
				seen[p.Name] = true
			}
			for _, r := range n.Required {
				if !seen[r] {
					return fmt.Errorf("%w: node %d requires unknown property %q", ErrMalformed, i, r)
				}
			}
		case *Function:
			if _, ok := s.Types[n.Input].(*Object); !ok {
				return fmt.Errorf("%w: function %d input %d is %s, expected object", ErrMalformed, i, n.Input, s.Types[n.Input].Kind())
			}
		}
	}
	return nil
}
