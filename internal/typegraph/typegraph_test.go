package typegraph

import (
	"errors"
	"testing"
	"weak"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/typegraph-go/internal/schema"
)

func TestTypeKey(t *testing.T) {
	t.Parallel()

	t.Run("RoundTrip", func(t *testing.T) {
		t.Parallel()
		k := TypeKey{Index: 12, Ordinal: 3}
		assert.Equal(t, "12#3", k.String())

		parsed, err := ParseTypeKey("12#3")
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	})

	t.Run("Invalid", func(t *testing.T) {
		t.Parallel()
		for _, s := range []string{"", "12", "a#1", "1#b", "1#-2"} {
			_, err := ParseTypeKey(s)
			assert.Error(t, err, s)
		}
	})
}

func TestOnce(t *testing.T) {
	t.Parallel()

	var o Once[int]
	_, ok := o.Get()
	assert.False(t, ok)
	assert.False(t, o.IsSet())

	require.NoError(t, o.Set(4))
	v, ok := o.Get()
	assert.True(t, ok)
	assert.Equal(t, 4, v)

	assert.ErrorIs(t, o.Set(5), ErrAlreadySet)
	v, _ = o.Get()
	assert.Equal(t, 4, v)
}

func TestWeakType(t *testing.T) {
	t.Parallel()

	var zero WeakType
	assert.True(t, zero.IsZero())
	_, ok := zero.Upgrade()
	assert.False(t, ok)

	obj := &Object{TypeBase: NewBase(TypeKey{Index: 1}, schema.Base{}, WeakType{}, nil)}
	w := Weak(obj)
	got, ok := w.Upgrade()
	require.True(t, ok)
	assert.Same(t, obj, got)

	child := &Boolean{TypeBase: NewBase(TypeKey{Index: 2}, schema.Base{}, w, nil)}
	parent, ok := child.Parent()
	require.True(t, ok)
	assert.Same(t, obj, parent)
}

func linkedGraph(t *testing.T) *Object {
	t.Helper()

	str := &String{TypeBase: NewBase(TypeKey{Index: 0}, schema.Base{}, WeakType{}, nil)}
	list := &List{TypeBase: NewBase(TypeKey{Index: 1}, schema.Base{}, WeakType{}, nil)}
	opt := &Optional{TypeBase: NewBase(TypeKey{Index: 2}, schema.Base{}, WeakType{}, nil)}
	union := &Union{TypeBase: NewBase(TypeKey{Index: 3}, schema.Base{}, WeakType{}, nil), Either: true}
	obj := &Object{TypeBase: NewBase(TypeKey{Index: 4}, schema.Base{}, WeakType{}, nil)}

	require.NoError(t, list.LinkItem(str))
	require.NoError(t, opt.LinkItem(str))
	require.NoError(t, union.LinkVariants([]Type{str, list}))
	require.NoError(t, obj.LinkProperties([]ObjectProperty{
		{Name: "l", Type: list, Required: true},
		{Name: "o", Type: opt},
		{Name: "u", Type: union},
	}))
	return obj
}

func TestPathSegment_Apply(t *testing.T) {
	t.Parallel()

	obj := linkedGraph(t)

	t.Run("Chain", func(t *testing.T) {
		t.Parallel()
		path := ValueTypePath{Path: []PathSegment{ObjectProp{Name: "u"}, UnionVariant{Ordinal: 1}, ListItem{}}}
		nodes, err := path.Walk(obj)
		require.NoError(t, err)
		require.Len(t, nodes, 4)
		assert.Equal(t, schema.KindEither, nodes[1].Kind())
		assert.Equal(t, schema.KindList, nodes[2].Kind())
		assert.Equal(t, schema.KindString, nodes[3].Kind())
	})

	t.Run("KindMismatch", func(t *testing.T) {
		t.Parallel()
		_, err := ListItem{}.Apply(obj)
		var pe *PathError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, InvalidPath, pe.Kind)
		assert.Equal(t, schema.KindObject, pe.Actual)
		assert.Equal(t, ListItem{}, pe.Segment)
	})

	t.Run("MissingProperty", func(t *testing.T) {
		t.Parallel()
		_, err := ObjectProp{Name: "zzz"}.Apply(obj)
		var pe *PathError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, NotFound, pe.Kind)
	})

	t.Run("VariantOutOfRange", func(t *testing.T) {
		t.Parallel()
		u, err := ObjectProp{Name: "u"}.Apply(obj)
		require.NoError(t, err)
		_, err = UnionVariant{Ordinal: 5}.Apply(u)
		var pe *PathError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, NotFound, pe.Kind)
	})

	t.Run("NotLinked", func(t *testing.T) {
		t.Parallel()
		empty := &List{TypeBase: NewBase(TypeKey{Index: 9}, schema.Base{}, WeakType{}, nil)}
		_, err := ListItem{}.Apply(empty)
		assert.True(t, errors.Is(err, ErrNotLinked))
		assert.False(t, IsLinked(empty))
	})
}

func TestPathSegment_ApplyOnSchemaNode(t *testing.T) {
	t.Parallel()

	s := schema.New(
		&schema.String{},
		&schema.List{Items: 0},
		&schema.Optional{Item: 1},
		&schema.Either{OneOf: []uint32{0, 2}},
		&schema.Object{Properties: []schema.Property{{Name: "e", Index: 3}}},
	)

	path := ValueTypePath{Start: 4, Path: []PathSegment{
		ObjectProp{Name: "e"}, UnionVariant{Ordinal: 1}, OptionalItem{}, ListItem{},
	}}
	indices, err := path.ToIndices(s)
	require.NoError(t, err)
	assert.Equal(t, []uint32{4, 3, 2, 1, 0}, indices)

	_, err = OptionalItem{}.ApplyOnSchemaNode(s, 0)
	var pe *PathError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, InvalidPath, pe.Kind)
	assert.Equal(t, schema.KindString, pe.Actual)

	_, err = UnionVariant{Ordinal: 2}.ApplyOnSchemaNode(s, 3)
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, NotFound, pe.Kind)

	_, err = ListItem{}.ApplyOnSchemaNode(s, 42)
	assert.ErrorIs(t, err, schema.ErrIndexOutOfRange)
}

func TestPathSegment_ApplyOnInjection(t *testing.T) {
	t.Parallel()

	tree := schema.Parent(map[string]*schema.InjectionNode{
		"a": schema.Leaf(schema.InjectContext, "user"),
	})

	assert.Same(t, tree.Children["a"], ObjectProp{Name: "a"}.ApplyOnInjection(tree))
	assert.Nil(t, ObjectProp{Name: "b"}.ApplyOnInjection(tree))
	assert.Same(t, tree, ListItem{}.ApplyOnInjection(tree))
	assert.Same(t, tree, OptionalItem{}.ApplyOnInjection(tree))
	assert.Same(t, tree, UnionVariant{Ordinal: 0}.ApplyOnInjection(tree))
	assert.Nil(t, ListItem{}.ApplyOnInjection(nil))
}

func TestRelativePath_Keys(t *testing.T) {
	t.Parallel()

	base := ValueTypePath{OwnerIndex: 3, Start: 4, Branch: InputValue}
	a := InputPath{base.Extend(ObjectProp{Name: "x"})}
	b := OutputPath{base.Extend(ObjectProp{Name: "x"})}
	c := InputPath{base.Extend(ObjectProp{Name: "x"}).Extend(ListItem{})}

	all := []RelativePath{
		FunctionPath{Index: 3},
		NsObjectPath{Path: []string{"a", "b"}},
		NsObjectPath{},
		NsObjectPath{Path: []string{""}},
		NsObjectPath{Path: []string{"", ""}},
		a, b, c,
		NsValuePath{Namespace: []string{"x"}},
		NsValuePath{},
		NsValuePath{Namespace: []string{""}},
		InputPath{base.Extend(ObjectProp{Name: "[]"})},
		InputPath{base.Extend(ListItem{})},
	}
	keys := make(map[string]bool)
	for _, rp := range all {
		keys[rp.Key()] = true
	}
	assert.Len(t, keys, len(all))
	assert.Equal(t, a.Key(), InputPath{base.Extend(ObjectProp{Name: "x"})}.Key())

	assert.Equal(t, "input(3):/x/[]", c.String())
	assert.Equal(t, "namespace:/a/b", NsObjectPath{Path: []string{"a", "b"}}.String())

	// Extend never aliases the parent's backing array.
	p1 := base.Extend(ObjectProp{Name: "p"})
	q1 := p1.Extend(ListItem{})
	q2 := p1.Extend(OptionalItem{})
	assert.Equal(t, ListItem{}, q1.Path[1])
	assert.Equal(t, OptionalItem{}, q2.Path[1])
}

func TestRelativePath_ExtendValue(t *testing.T) {
	t.Parallel()

	_, err := ExtendValue(FunctionPath{Index: 1}, ListItem{})
	assert.Error(t, err)

	rp, err := ExtendValue(NsValuePath{Namespace: []string{"x"}}, ListItem{})
	require.NoError(t, err)
	vp, ok := ValuePath(rp)
	require.True(t, ok)
	assert.Len(t, vp.Path, 1)

	_, ok = ValuePath(NsObjectPath{})
	assert.False(t, ok)
}

func TestValueTypePath_Owner(t *testing.T) {
	t.Parallel()

	fn := &Function{TypeBase: NewBase(TypeKey{Index: 1}, schema.Base{}, WeakType{}, nil)}
	vp := ValueTypePath{Owner: weak.Make(fn), OwnerIndex: 1}
	got, ok := vp.OwnerFunction()
	require.True(t, ok)
	assert.Same(t, fn, got)

	_, ok = ValueTypePath{}.OwnerFunction()
	assert.False(t, ok)
}
