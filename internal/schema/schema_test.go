package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_Node(t *testing.T) {
	t.Parallel()

	s := New(&String{}, &List{Items: 0})

	t.Run("InRange", func(t *testing.T) {
		t.Parallel()
		n, err := s.Node(1)
		require.NoError(t, err)
		assert.Equal(t, KindList, n.Kind())
	})

	t.Run("OutOfRange", func(t *testing.T) {
		t.Parallel()
		_, err := s.Node(2)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
	})
}

func TestSchema_Children(t *testing.T) {
	t.Parallel()

	s := New(
		&Object{Properties: []Property{{Name: "b", Index: 2}, {Name: "a", Index: 1}}},
		&Integer{},
		&Union{AnyOf: []uint32{1, 3}},
		&Boolean{},
	)

	children, err := s.Children(0)
	require.NoError(t, err)
	assert.Equal(t, []uint32{2, 1}, children)

	children, err = s.Children(2)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 3}, children)

	children, err = s.Children(3)
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestSchema_Validate(t *testing.T) {
	t.Parallel()

	t.Run("Valid", func(t *testing.T) {
		t.Parallel()
		s := New(
			&Object{Properties: []Property{{Name: "f", Index: 1}}},
			&Function{Input: 2, Output: 3},
			&Object{},
			&Integer{},
		)
		assert.NoError(t, s.Validate())
	})

	t.Run("DanglingEdge", func(t *testing.T) {
		t.Parallel()
		s := New(&List{Items: 7})
		err := s.Validate()
		assert.ErrorIs(t, err, ErrMalformed)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
	})

	t.Run("UnknownRequired", func(t *testing.T) {
		t.Parallel()
		s := New(&Object{Required: []string{"missing"}})
		assert.ErrorIs(t, s.Validate(), ErrMalformed)
	})

	t.Run("DuplicateProperty", func(t *testing.T) {
		t.Parallel()
		s := New(&Object{Properties: []Property{{Name: "a", Index: 1}, {Name: "a", Index: 1}}}, &Integer{})
		assert.ErrorIs(t, s.Validate(), ErrMalformed)
	})

	t.Run("NonObjectInput", func(t *testing.T) {
		t.Parallel()
		s := New(&Function{Input: 1, Output: 1}, &Integer{})
		assert.ErrorIs(t, s.Validate(), ErrMalformed)
	})
}

func TestObject_Lookups(t *testing.T) {
	t.Parallel()

	o := &Object{
		Properties: []Property{{Name: "id", Index: 1}, {Name: "name", Index: 2}},
		Required:   []string{"id"},
	}

	idx, ok := o.Property("name")
	assert.True(t, ok)
	assert.Equal(t, uint32(2), idx)

	_, ok = o.Property("nope")
	assert.False(t, ok)

	assert.True(t, o.IsRequired("id"))
	assert.False(t, o.IsRequired("name"))
}

func TestInjectionNode(t *testing.T) {
	t.Parallel()

	tree := Parent(map[string]*InjectionNode{
		"user":  Leaf(InjectContext, "user_id"),
		"inner": Parent(map[string]*InjectionNode{"x": Leaf(InjectStatic, 1)}),
	})

	assert.False(t, tree.IsLeaf())
	assert.True(t, tree.Child("user").IsLeaf())
	assert.Nil(t, tree.Child("user").Child("anything"))
	assert.Nil(t, tree.Child("missing"))
	assert.Equal(t, []string{"inner", "user"}, tree.Names())

	var nilNode *InjectionNode
	assert.Nil(t, nilNode.Child("x"))
	assert.False(t, nilNode.IsLeaf())
}

func TestMerge(t *testing.T) {
	t.Parallel()

	a := New(&Integer{}, &List{Items: 0})
	b := New(
		&Object{Properties: []Property{{Name: "x", Index: 1}}},
		&Optional{Item: 2},
		&Either{OneOf: []uint32{0, 1}},
	)

	merged, off := Merge(a, b)

	assert.Equal(t, uint32(2), off)
	assert.Equal(t, 5, merged.Len())
	require.NoError(t, merged.Validate())

	obj := merged.Types[2].(*Object)
	assert.Equal(t, uint32(3), obj.Properties[0].Index)
	assert.Equal(t, uint32(4), merged.Types[3].(*Optional).Item)
	assert.Equal(t, []uint32{2, 3}, merged.Types[4].(*Either).OneOf)

	// b itself is untouched
	assert.Equal(t, uint32(1), b.Types[0].(*Object).Properties[0].Index)
	assert.Equal(t, []uint32{0, 1}, b.Types[2].(*Either).OneOf)
}
