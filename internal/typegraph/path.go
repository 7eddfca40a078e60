package typegraph

import (
	"fmt"
	"strconv"

	"github.com/Benny93/typegraph-go/internal/schema"
)

// ErrorKind classifies path navigation failures.
type ErrorKind int

const (
	// InvalidPath means the segment does not apply to the node kind.
	InvalidPath ErrorKind = iota
	// NotFound means the property or variant does not exist.
	NotFound
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidPath:
		return "invalid path"
	case NotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// PathError reports a segment that could not be applied.
type PathError struct {
	Kind    ErrorKind
	Segment PathSegment
	Actual  schema.Kind
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: cannot apply %s on %s", e.Kind, e.Segment, e.Actual)
}

// PathSegment is one step through a type graph, a raw schema or an injection
// tree. Implementations: ObjectProp, ListItem, OptionalItem, UnionVariant.
type PathSegment interface {
	// Apply navigates the realized graph one step.
	Apply(t Type) (Type, error)
	// ApplyOnSchemaNode navigates raw schema indices one step.
	ApplyOnSchemaNode(s *schema.Schema, idx uint32) (uint32, error)
	// ApplyOnInjection narrows an injection tree one step.
	ApplyOnInjection(n *schema.InjectionNode) *schema.InjectionNode

	String() string
	key() string
}

// ObjectProp selects an object property.
type ObjectProp struct {
	Name string
}

// ListItem selects a list's element type.
type ListItem struct{}

// OptionalItem selects an optional's wrapped type.
type OptionalItem struct{}

// UnionVariant selects a union or either member by position.
type UnionVariant struct {
	Ordinal int
}

func (s ObjectProp) String() string   { return s.Name }
func (ListItem) String() string       { return "[]" }
func (OptionalItem) String() string   { return "?" }
func (s UnionVariant) String() string { return "|" + strconv.Itoa(s.Ordinal) }

func (s ObjectProp) key() string   { return "." + s.Name }
func (ListItem) key() string       { return "[]" }
func (OptionalItem) key() string   { return "?" }
func (s UnionVariant) key() string { return "|" + strconv.Itoa(s.Ordinal) }

func (s ObjectProp) Apply(t Type) (Type, error) {
	obj, ok := t.(*Object)
	if !ok {
		return nil, &PathError{Kind: InvalidPath, Segment: s, Actual: t.Kind()}
	}
	p, found, err := obj.Property(s.Name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &PathError{Kind: NotFound, Segment: s, Actual: t.Kind()}
	}
	return p.Type, nil
}

func (s ListItem) Apply(t Type) (Type, error) {
	l, ok := t.(*List)
	if !ok {
		return nil, &PathError{Kind: InvalidPath, Segment: s, Actual: t.Kind()}
	}
	return l.Item()
}

func (s OptionalItem) Apply(t Type) (Type, error) {
	o, ok := t.(*Optional)
	if !ok {
		return nil, &PathError{Kind: InvalidPath, Segment: s, Actual: t.Kind()}
	}
	return o.Item()
}

func (s UnionVariant) Apply(t Type) (Type, error) {
	u, ok := t.(*Union)
	if !ok {
		return nil, &PathError{Kind: InvalidPath, Segment: s, Actual: t.Kind()}
	}
	variants, err := u.Variants()
	if err != nil {
		return nil, err
	}
	if s.Ordinal < 0 || s.Ordinal >= len(variants) {
		return nil, &PathError{Kind: NotFound, Segment: s, Actual: t.Kind()}
	}
	return variants[s.Ordinal], nil
}

func (s ObjectProp) ApplyOnSchemaNode(sc *schema.Schema, idx uint32) (uint32, error) {
	n, err := sc.Node(idx)
	if err != nil {
		return 0, err
	}
	obj, ok := n.(*schema.Object)
	if !ok {
		return 0, &PathError{Kind: InvalidPath, Segment: s, Actual: n.Kind()}
	}
	child, found := obj.Property(s.Name)
	if !found {
		return 0, &PathError{Kind: NotFound, Segment: s, Actual: n.Kind()}
	}
	return child, nil
}

func (s ListItem) ApplyOnSchemaNode(sc *schema.Schema, idx uint32) (uint32, error) {
	n, err := sc.Node(idx)
	if err != nil {
		return 0, err
	}
	l, ok := n.(*schema.List)
	if !ok {
		return 0, &PathError{Kind: InvalidPath, Segment: s, Actual: n.Kind()}
	}
	return l.Items, nil
}

func (s OptionalItem) ApplyOnSchemaNode(sc *schema.Schema, idx uint32) (uint32, error) {
	n, err := sc.Node(idx)
	if err != nil {
		return 0, err
	}
	o, ok := n.(*schema.Optional)
	if !ok {
		return 0, &PathError{Kind: InvalidPath, Segment: s, Actual: n.Kind()}
	}
	return o.Item, nil
}

func (s UnionVariant) ApplyOnSchemaNode(sc *schema.Schema, idx uint32) (uint32, error) {
	n, err := sc.Node(idx)
	if err != nil {
		return 0, err
	}
	var variants []uint32
	switch n := n.(type) {
	case *schema.Union:
		variants = n.AnyOf
	case *schema.Either:
		variants = n.OneOf
	default:
		return 0, &PathError{Kind: InvalidPath, Segment: s, Actual: n.Kind()}
	}
	if s.Ordinal < 0 || s.Ordinal >= len(variants) {
		return 0, &PathError{Kind: NotFound, Segment: s, Actual: n.Kind()}
	}
	return variants[s.Ordinal], nil
}

// Injections only branch on object properties.
func (s ObjectProp) ApplyOnInjection(n *schema.InjectionNode) *schema.InjectionNode {
	return n.Child(s.Name)
}

func (ListItem) ApplyOnInjection(n *schema.InjectionNode) *schema.InjectionNode     { return n }
func (OptionalItem) ApplyOnInjection(n *schema.InjectionNode) *schema.InjectionNode { return n }
func (UnionVariant) ApplyOnInjection(n *schema.InjectionNode) *schema.InjectionNode { return n }
