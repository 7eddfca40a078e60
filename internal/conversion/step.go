package conversion

import (
	"fmt"
	"slices"
	"weak"

	"github.com/Benny93/typegraph-go/internal/schema"
	"github.com/Benny93/typegraph-go/internal/typegraph"
)

// Step is one pending occurrence of a schema node.
type Step[K comparable] struct {
	Index        uint32
	RelativePath typegraph.RelativePath
	Dup          K
	Parent       typegraph.WeakType
	Injection    *schema.InjectionNode
}

// RootStep seeds conversion at the namespace root.
func RootStep[K comparable](root uint32, gen DuplicationKeyGenerator[K]) Step[K] {
	return Step[K]{
		Index:        root,
		RelativePath: typegraph.NsObjectPath{Path: []string{}},
		Dup:          gen.ForNamespace(),
	}
}

// stepResult is what processing a step yields. A short-circuited step
// carries only the key it aliased.
type stepResult[K comparable] struct {
	Key          typegraph.TypeKey
	Type         typegraph.Type
	ShortCircuit bool
	Children     []Step[K]
	Link         LinkStep[K]
}

type converter[K comparable] struct {
	schema *schema.Schema
	m      *ConversionMap[K]
	gen    DuplicationKeyGenerator[K]
}

func (c *converter[K]) convert(st Step[K]) (stepResult[K], error) {
	node, err := c.schema.Node(st.Index)
	if err != nil {
		return stepResult[K]{}, fmt.Errorf("%w: %w", ErrMalformedSchema, err)
	}

	switch rp := st.RelativePath.(type) {
	case typegraph.NsObjectPath:
		obj, ok := node.(*schema.Object)
		if !ok {
			return stepResult[K]{}, fmt.Errorf("%w: namespace %s is %s, expected object", ErrMalformedSchema, rp, node.Kind())
		}
		return c.convertNamespace(st, rp, obj)
	case typegraph.FunctionPath:
		fn, ok := node.(*schema.Function)
		if !ok {
			return stepResult[K]{}, fmt.Errorf("%w: function path %s targets %s", ErrInvariant, rp, node.Kind())
		}
		return c.convertFunction(st, rp, fn)
	default:
		if _, ok := typegraph.ValuePath(rp); !ok {
			return stepResult[K]{}, fmt.Errorf("%w: unsupported relative path %T", ErrInvariant, rp)
		}
		if node.Kind() == schema.KindFunction {
			return stepResult[K]{}, fmt.Errorf("%w: function in value position at %s", ErrMalformedSchema, rp)
		}
		return c.convertValue(st, node)
	}
}

// checkRole rejects an object reached both as a namespace member and as a
// value. The schema is at fault, not the driver.
func (c *converter[K]) checkRole(idx uint32, conflicting ItemState, rp typegraph.RelativePath) error {
	if item, ok := c.m.Item(idx); ok && item.State == conflicting {
		return fmt.Errorf("%w: index %d at %s is already used as a %s", ErrMalformedSchema, idx, rp, conflicting)
	}
	return nil
}

func (c *converter[K]) convertNamespace(st Step[K], rp typegraph.NsObjectPath, node *schema.Object) (stepResult[K], error) {
	if err := c.checkRole(st.Index, ValueItem, rp); err != nil {
		return stepResult[K]{}, err
	}
	key, err := c.m.NextTypeKey(st.Index)
	if err != nil {
		return stepResult[K]{}, err
	}
	obj := &typegraph.Object{
		TypeBase:  typegraph.NewBase(key, node.Base, st.Parent, nil),
		Namespace: rp.Path,
	}
	if err := c.m.Register(rp, obj, st.Dup); err != nil {
		return stepResult[K]{}, err
	}

	parent := typegraph.Weak(obj)
	link := &linkObject[K]{target: obj, props: make([]propertyRef[K], 0, len(node.Properties))}
	children := make([]Step[K], 0, len(node.Properties))
	for _, p := range node.Properties {
		member, err := c.schema.Node(p.Index)
		if err != nil {
			return stepResult[K]{}, fmt.Errorf("%w: property %q of %s: %w", ErrMalformedSchema, p.Name, rp, err)
		}
		path := append(slices.Clip(rp.Path), p.Name)

		child := Step[K]{Index: p.Index, Parent: parent}
		switch member.Kind() {
		case schema.KindObject:
			child.RelativePath = typegraph.NsObjectPath{Path: path}
		case schema.KindFunction:
			child.RelativePath = typegraph.FunctionPath{Index: p.Index}
		default:
			child.Dup = c.gen.ForNamespace()
			child.RelativePath = typegraph.NsValuePath{
				Namespace: path,
				ValueTypePath: typegraph.ValueTypePath{
					OwnerIndex: st.Index,
					Start:      p.Index,
					Branch:     typegraph.NamespaceValue,
				},
			}
		}
		children = append(children, child)
		link.props = append(link.props, propertyRef[K]{
			name:     p.Name,
			key:      typegraph.TypeKeyEx[K]{Index: p.Index, Dup: child.Dup},
			required: node.IsRequired(p.Name),
		})
	}
	return stepResult[K]{Key: key, Type: obj, Children: children, Link: link}, nil
}

func (c *converter[K]) convertFunction(st Step[K], rp typegraph.FunctionPath, node *schema.Function) (stepResult[K], error) {
	input, err := c.schema.Node(node.Input)
	if err != nil {
		return stepResult[K]{}, fmt.Errorf("%w: input of %s: %w", ErrMalformedSchema, rp, err)
	}
	if input.Kind() != schema.KindObject {
		return stepResult[K]{}, fmt.Errorf("%w: input of %s is %s, expected object", ErrMalformedSchema, rp, input.Kind())
	}

	key, err := c.m.NextTypeKey(st.Index)
	if err != nil {
		return stepResult[K]{}, err
	}
	fn := &typegraph.Function{
		TypeBase: typegraph.NewBase(key, node.Base, st.Parent, nil),
		Data:     node,
	}
	if err := c.m.Register(rp, fn, st.Dup); err != nil {
		return stepResult[K]{}, err
	}

	owner := weak.Make(fn)
	parent := typegraph.Weak(fn)
	in := Step[K]{
		Index: node.Input,
		RelativePath: typegraph.InputPath{ValueTypePath: typegraph.ValueTypePath{
			Owner: owner, OwnerIndex: st.Index, Start: node.Input, Branch: typegraph.InputValue,
		}},
		Dup:       c.gen.ForFnInput(fn),
		Parent:    parent,
		Injection: node.Injections,
	}
	out := Step[K]{
		Index: node.Output,
		RelativePath: typegraph.OutputPath{ValueTypePath: typegraph.ValueTypePath{
			Owner: owner, OwnerIndex: st.Index, Start: node.Output, Branch: typegraph.OutputValue,
		}},
		Dup:       c.gen.ForFnOutput(fn),
		Parent:    parent,
		Injection: node.Outjections,
	}
	link := &linkFunction[K]{
		target: fn,
		input:  typegraph.TypeKeyEx[K]{Index: in.Index, Dup: in.Dup},
		output: typegraph.TypeKeyEx[K]{Index: out.Index, Dup: out.Dup},
	}
	return stepResult[K]{Key: key, Type: fn, Children: []Step[K]{in, out}, Link: link}, nil
}

func (c *converter[K]) convertValue(st Step[K], node schema.Node) (stepResult[K], error) {
	if key, ok := c.m.FindValue(st.Index, st.Dup); ok {
		if err := c.m.Append(key, st.RelativePath); err != nil {
			return stepResult[K]{}, err
		}
		return stepResult[K]{Key: key, ShortCircuit: true}, nil
	}
	if err := c.checkRole(st.Index, NamespaceItem, st.RelativePath); err != nil {
		return stepResult[K]{}, err
	}

	key, err := c.m.NextTypeKey(st.Index)
	if err != nil {
		return stepResult[K]{}, err
	}
	base := typegraph.NewBase(key, *node.NodeBase(), st.Parent, st.Injection)

	var (
		t        typegraph.Type
		parent   typegraph.WeakType
		segments []typegraph.PathSegment
		targets  []uint32
	)
	switch node := node.(type) {
	case *schema.Boolean:
		t = &typegraph.Boolean{TypeBase: base}
	case *schema.Integer:
		t = &typegraph.Integer{TypeBase: base, Data: node}
	case *schema.Float:
		t = &typegraph.Float{TypeBase: base, Data: node}
	case *schema.String:
		t = &typegraph.String{TypeBase: base, Data: node}
	case *schema.File:
		t = &typegraph.File{TypeBase: base, Data: node}
	case *schema.Optional:
		opt := &typegraph.Optional{TypeBase: base, DefaultValue: node.DefaultValue}
		t, parent = opt, typegraph.Weak(opt)
		segments = []typegraph.PathSegment{typegraph.OptionalItem{}}
		targets = []uint32{node.Item}
	case *schema.List:
		list := &typegraph.List{TypeBase: base, Data: node}
		t, parent = list, typegraph.Weak(list)
		segments = []typegraph.PathSegment{typegraph.ListItem{}}
		targets = []uint32{node.Items}
	case *schema.Union:
		u := &typegraph.Union{TypeBase: base}
		t, parent = u, typegraph.Weak(u)
		segments, targets = variantSegments(node.AnyOf)
	case *schema.Either:
		u := &typegraph.Union{TypeBase: base, Either: true}
		t, parent = u, typegraph.Weak(u)
		segments, targets = variantSegments(node.OneOf)
	case *schema.Object:
		obj := &typegraph.Object{TypeBase: base}
		t, parent = obj, typegraph.Weak(obj)
		for _, p := range node.Properties {
			segments = append(segments, typegraph.ObjectProp{Name: p.Name})
			targets = append(targets, p.Index)
		}
	default:
		return stepResult[K]{}, fmt.Errorf("%w: unsupported %s at %d", ErrMalformedSchema, node.Kind(), st.Index)
	}

	if err := c.m.Register(st.RelativePath, t, st.Dup); err != nil {
		return stepResult[K]{}, err
	}
	if len(segments) == 0 && parent.IsZero() {
		return stepResult[K]{Key: key, Type: t}, nil
	}

	children := make([]Step[K], 0, len(segments))
	keys := make([]typegraph.TypeKeyEx[K], 0, len(segments))
	for i, seg := range segments {
		rp, err := typegraph.ExtendValue(st.RelativePath, seg)
		if err != nil {
			return stepResult[K]{}, fmt.Errorf("%w: %w", ErrInvariant, err)
		}
		dup := c.gen.ApplyPathSegment(st.Dup, seg)
		children = append(children, Step[K]{
			Index:        targets[i],
			RelativePath: rp,
			Dup:          dup,
			Parent:       parent,
			Injection:    seg.ApplyOnInjection(st.Injection),
		})
		keys = append(keys, typegraph.TypeKeyEx[K]{Index: targets[i], Dup: dup})
	}

	var link LinkStep[K]
	switch t := t.(type) {
	case *typegraph.Optional:
		link = &linkOptional[K]{target: t, item: keys[0]}
	case *typegraph.List:
		link = &linkList[K]{target: t, item: keys[0]}
	case *typegraph.Union:
		link = &linkUnion[K]{target: t, variants: keys}
	case *typegraph.Object:
		obj := node.(*schema.Object)
		vp, _ := typegraph.ValuePath(st.RelativePath)
		lo := &linkObject[K]{target: t, props: make([]propertyRef[K], len(keys))}
		for i, p := range obj.Properties {
			ref := propertyRef[K]{name: p.Name, key: keys[i], required: obj.IsRequired(p.Name)}
			if vp.Branch == typegraph.OutputValue {
				ref.outjection = children[i].Injection
			} else {
				ref.injection = children[i].Injection
			}
			lo.props[i] = ref
		}
		link = lo
	}
	return stepResult[K]{Key: key, Type: t, Children: children, Link: link}, nil
}

func variantSegments(variants []uint32) ([]typegraph.PathSegment, []uint32) {
	segs := make([]typegraph.PathSegment, len(variants))
	for i := range variants {
		segs[i] = typegraph.UnionVariant{Ordinal: i}
	}
	return segs, slices.Clone(variants)
}
