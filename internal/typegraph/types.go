package typegraph

import (
	"fmt"

	"github.com/Benny93/typegraph-go/internal/schema"
)

// Type is a realized node of the type graph. The set of implementations is
// closed: Boolean, Integer, Float, String, File, Optional, List, Object,
// Union and Function.
type Type interface {
	Kind() schema.Kind
	Base() *TypeBase
	isType()
}

// TypeBase carries the attributes every realized node has.
type TypeBase struct {
	Schema    schema.Base
	Key       TypeKey
	Injection *schema.InjectionNode

	parent WeakType
}

// NewBase assembles a TypeBase. parent may be the zero WeakType for roots.
func NewBase(key TypeKey, sb schema.Base, parent WeakType, injection *schema.InjectionNode) TypeBase {
	return TypeBase{Schema: sb, Key: key, Injection: injection, parent: parent}
}

// Parent returns the node this one was first expanded from.
func (b *TypeBase) Parent() (Type, bool) {
	return b.parent.Upgrade()
}

// Title returns the schema title.
func (b *TypeBase) Title() string {
	return b.Schema.Title
}

// Boolean is a realized boolean.
type Boolean struct {
	TypeBase
}

// Integer is a realized integer.
type Integer struct {
	TypeBase
	Data *schema.Integer
}

// Float is a realized float.
type Float struct {
	TypeBase
	Data *schema.Float
}

// String is a realized string.
type String struct {
	TypeBase
	Data *schema.String
}

// File is a realized file.
type File struct {
	TypeBase
	Data *schema.File
}

// Optional is a realized optional wrapper.
type Optional struct {
	TypeBase
	DefaultValue any

	item Once[Type]
}

// List is a realized list.
type List struct {
	TypeBase
	Data *schema.List

	item Once[Type]
}

// ObjectProperty is one linked object member.
type ObjectProperty struct {
	Name       string
	Type       Type
	Injection  *schema.InjectionNode
	Outjection *schema.InjectionNode
	Required   bool
}

// Object is a realized object. Namespace objects carry their path from the
// graph root; value objects have a nil Namespace.
type Object struct {
	TypeBase
	Namespace []string

	properties Once[[]ObjectProperty]
}

// Union is a realized sum type. Either marks an exclusive (one_of) union.
type Union struct {
	TypeBase
	Either bool

	variants Once[[]Type]
}

// Function is a realized function with its input object and output type.
type Function struct {
	TypeBase
	Data *schema.Function

	input  Once[*Object]
	output Once[Type]
}

func (*Boolean) Kind() schema.Kind  { return schema.KindBoolean }
func (*Integer) Kind() schema.Kind  { return schema.KindInteger }
func (*Float) Kind() schema.Kind    { return schema.KindFloat }
func (*String) Kind() schema.Kind   { return schema.KindString }
func (*File) Kind() schema.Kind     { return schema.KindFile }
func (*Optional) Kind() schema.Kind { return schema.KindOptional }
func (*List) Kind() schema.Kind     { return schema.KindList }
func (*Object) Kind() schema.Kind   { return schema.KindObject }
func (*Function) Kind() schema.Kind { return schema.KindFunction }

func (t *Union) Kind() schema.Kind {
	if t.Either {
		return schema.KindEither
	}
	return schema.KindUnion
}

func (t *Boolean) Base() *TypeBase  { return &t.TypeBase }
func (t *Integer) Base() *TypeBase  { return &t.TypeBase }
func (t *Float) Base() *TypeBase    { return &t.TypeBase }
func (t *String) Base() *TypeBase   { return &t.TypeBase }
func (t *File) Base() *TypeBase     { return &t.TypeBase }
func (t *Optional) Base() *TypeBase { return &t.TypeBase }
func (t *List) Base() *TypeBase     { return &t.TypeBase }
func (t *Object) Base() *TypeBase   { return &t.TypeBase }
func (t *Union) Base() *TypeBase    { return &t.TypeBase }
func (t *Function) Base() *TypeBase { return &t.TypeBase }

func (*Boolean) isType()  {}
func (*Integer) isType()  {}
func (*Float) isType()    {}
func (*String) isType()   {}
func (*File) isType()     {}
func (*Optional) isType() {}
func (*List) isType()     {}
func (*Object) isType()   {}
func (*Union) isType()    {}
func (*Function) isType() {}

func notLinked(t Type, slot string) error {
	return fmt.Errorf("%w: %s of %s %s", ErrNotLinked, slot, t.Kind(), t.Base().Key)
}

// Item returns the wrapped type.
func (t *Optional) Item() (Type, error) {
	v, ok := t.item.Get()
	if !ok {
		return nil, notLinked(t, "item")
	}
	return v, nil
}

// LinkItem fills the item slot.
func (t *Optional) LinkItem(item Type) error {
	return t.item.Set(item)
}

// Item returns the element type.
func (t *List) Item() (Type, error) {
	v, ok := t.item.Get()
	if !ok {
		return nil, notLinked(t, "item")
	}
	return v, nil
}

// LinkItem fills the item slot.
func (t *List) LinkItem(item Type) error {
	return t.item.Set(item)
}

// IsNamespace reports whether the object is a namespace member of the graph.
func (t *Object) IsNamespace() bool {
	return t.Namespace != nil
}

// Properties returns the members in schema order.
func (t *Object) Properties() ([]ObjectProperty, error) {
	v, ok := t.properties.Get()
	if !ok {
		return nil, notLinked(t, "properties")
	}
	return v, nil
}

// Property returns the named member.
func (t *Object) Property(name string) (ObjectProperty, bool, error) {
	props, err := t.Properties()
	if err != nil {
		return ObjectProperty{}, false, err
	}
	for _, p := range props {
		if p.Name == name {
			return p, true, nil
		}
	}
	return ObjectProperty{}, false, nil
}

// LinkProperties fills the properties slot.
func (t *Object) LinkProperties(props []ObjectProperty) error {
	return t.properties.Set(props)
}

// Variants returns the union members in schema order.
func (t *Union) Variants() ([]Type, error) {
	v, ok := t.variants.Get()
	if !ok {
		return nil, notLinked(t, "variants")
	}
	return v, nil
}

// LinkVariants fills the variants slot.
func (t *Union) LinkVariants(variants []Type) error {
	return t.variants.Set(variants)
}

// Input returns the input object.
func (t *Function) Input() (*Object, error) {
	v, ok := t.input.Get()
	if !ok {
		return nil, notLinked(t, "input")
	}
	return v, nil
}

// Output returns the output type.
func (t *Function) Output() (Type, error) {
	v, ok := t.output.Get()
	if !ok {
		return nil, notLinked(t, "output")
	}
	return v, nil
}

// LinkInput fills the input slot.
func (t *Function) LinkInput(input *Object) error {
	return t.input.Set(input)
}

// LinkOutput fills the output slot.
func (t *Function) LinkOutput(output Type) error {
	return t.output.Set(output)
}

// IsLinked reports whether every child slot of t has been written.
func IsLinked(t Type) bool {
	switch t := t.(type) {
	case *Optional:
		return t.item.IsSet()
	case *List:
		return t.item.IsSet()
	case *Object:
		return t.properties.IsSet()
	case *Union:
		return t.variants.IsSet()
	case *Function:
		return t.input.IsSet() && t.output.IsSet()
	default:
		return true
	}
}
