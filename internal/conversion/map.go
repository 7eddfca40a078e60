package conversion

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Benny93/typegraph-go/internal/typegraph"
)

var (
	// ErrInvariant reports a broken conversion invariant. It signals a bug
	// in the driver or the key generator, not a user error.
	ErrInvariant = errors.New("conversion: invariant violated")

	// ErrMalformedSchema reports a schema the engine cannot convert.
	ErrMalformedSchema = errors.New("conversion: malformed schema")
)

// ItemState is the registration state of one schema index.
type ItemState int

const (
	Unset ItemState = iota
	NamespaceItem
	FunctionItem
	ValueItem
)

func (s ItemState) String() string {
	switch s {
	case Unset:
		return "unset"
	case NamespaceItem:
		return "namespace"
	case FunctionItem:
		return "function"
	case ValueItem:
		return "value"
	default:
		return "unknown"
	}
}

// MapValueItem is one realized occurrence of a value-kind schema index.
type MapValueItem[K comparable] struct {
	Dup           K
	Type          typegraph.Type
	Kind          typegraph.ValueTypeKind
	RelativePaths []typegraph.RelativePath
}

// MapItem is the state of one schema index.
type MapItem[K comparable] struct {
	State     ItemState
	Namespace *typegraph.Object
	NsPath    []string
	Function  *typegraph.Function
	Values    []MapValueItem[K]
}

// ConversionMap registers every realized node by TypeKey and every relative
// path by the key it resolved to.
type ConversionMap[K comparable] struct {
	direct  []MapItem[K]
	reverse map[string]typegraph.TypeKey
	order   []typegraph.TypeKey
}

// NewConversionMap creates a map for a schema of size nodes.
func NewConversionMap[K comparable](size int) *ConversionMap[K] {
	return &ConversionMap[K]{
		direct:  make([]MapItem[K], size),
		reverse: make(map[string]typegraph.TypeKey),
	}
}

func (m *ConversionMap[K]) slot(idx uint32) (*MapItem[K], error) {
	if int(idx) >= len(m.direct) {
		return nil, fmt.Errorf("%w: index %d outside map of %d", ErrInvariant, idx, len(m.direct))
	}
	return &m.direct[idx], nil
}

// Register records t under rp. Namespace and function slots are written
// once; value slots grow by one ordinal per registration.
func (m *ConversionMap[K]) Register(rp typegraph.RelativePath, t typegraph.Type, dup K) error {
	key := t.Base().Key
	item, err := m.slot(key.Index)
	if err != nil {
		return err
	}
	if prev, ok := m.reverse[rp.Key()]; ok {
		return fmt.Errorf("%w: duplicate relative path %s (already %s)", ErrInvariant, rp, prev)
	}

	switch rp := rp.(type) {
	case typegraph.FunctionPath:
		fn, ok := t.(*typegraph.Function)
		if !ok {
			return fmt.Errorf("%w: function path %s registers %s", ErrInvariant, rp, t.Kind())
		}
		if item.State != Unset {
			return fmt.Errorf("%w: duplicate function registration at %d (slot is %s)", ErrInvariant, key.Index, item.State)
		}
		if key.Ordinal != 0 {
			return fmt.Errorf("%w: function %d registered with ordinal %d", ErrInvariant, key.Index, key.Ordinal)
		}
		item.State = FunctionItem
		item.Function = fn

	case typegraph.NsObjectPath:
		obj, ok := t.(*typegraph.Object)
		if !ok {
			return fmt.Errorf("%w: namespace path %s registers %s", ErrInvariant, rp, t.Kind())
		}
		if item.State != Unset {
			return fmt.Errorf("%w: duplicate namespace registration at %d (slot is %s)", ErrInvariant, key.Index, item.State)
		}
		if key.Ordinal != 0 {
			return fmt.Errorf("%w: namespace %d registered with ordinal %d", ErrInvariant, key.Index, key.Ordinal)
		}
		item.State = NamespaceItem
		item.Namespace = obj
		item.NsPath = rp.Path

	default:
		vp, ok := typegraph.ValuePath(rp)
		if !ok {
			return fmt.Errorf("%w: unsupported relative path %T", ErrInvariant, rp)
		}
		if item.State != Unset && item.State != ValueItem {
			return fmt.Errorf("%w: value registration at %d mixes with %s", ErrInvariant, key.Index, item.State)
		}
		if int(key.Ordinal) != len(item.Values) {
			return fmt.Errorf("%w: value %d registered with ordinal %d, expected %d", ErrInvariant, key.Index, key.Ordinal, len(item.Values))
		}
		item.State = ValueItem
		item.Values = append(item.Values, MapValueItem[K]{
			Dup:           dup,
			Type:          t,
			Kind:          vp.Branch,
			RelativePaths: []typegraph.RelativePath{rp},
		})
	}

	m.reverse[rp.Key()] = key
	m.order = append(m.order, key)
	return nil
}

// Append aliases rp onto the existing value entry at key.
func (m *ConversionMap[K]) Append(key typegraph.TypeKey, rp typegraph.RelativePath) error {
	item, err := m.slot(key.Index)
	if err != nil {
		return err
	}
	if item.State != ValueItem {
		return fmt.Errorf("%w: cannot alias %s onto %s slot %d", ErrInvariant, rp, item.State, key.Index)
	}
	if int(key.Ordinal) >= len(item.Values) {
		return fmt.Errorf("%w: alias ordinal %s out of range", ErrInvariant, key)
	}
	if _, ok := typegraph.ValuePath(rp); !ok {
		return fmt.Errorf("%w: cannot alias non-value path %s", ErrInvariant, rp)
	}
	if prev, ok := m.reverse[rp.Key()]; ok {
		return fmt.Errorf("%w: duplicate relative path %s (already %s)", ErrInvariant, rp, prev)
	}
	v := &item.Values[key.Ordinal]
	v.RelativePaths = append(v.RelativePaths, rp)
	m.reverse[rp.Key()] = key
	return nil
}

// Get returns the node registered under key.
func (m *ConversionMap[K]) Get(key typegraph.TypeKey) (typegraph.Type, bool) {
	if int(key.Index) >= len(m.direct) {
		return nil, false
	}
	item := &m.direct[key.Index]
	switch item.State {
	case NamespaceItem:
		return item.Namespace, key.Ordinal == 0
	case FunctionItem:
		return item.Function, key.Ordinal == 0
	case ValueItem:
		if int(key.Ordinal) < len(item.Values) {
			return item.Values[key.Ordinal].Type, true
		}
	}
	return nil, false
}

// Resolve finds the node for a pending child key. Namespace and function
// slots hold a single node and ignore the duplication key.
func (m *ConversionMap[K]) Resolve(kx typegraph.TypeKeyEx[K]) (typegraph.Type, bool) {
	if int(kx.Index) >= len(m.direct) {
		return nil, false
	}
	item := &m.direct[kx.Index]
	switch item.State {
	case NamespaceItem:
		return item.Namespace, true
	case FunctionItem:
		return item.Function, true
	case ValueItem:
		for _, v := range item.Values {
			if v.Dup == kx.Dup {
				return v.Type, true
			}
		}
	}
	return nil, false
}

// NextTypeKey returns the key the next registration of idx would receive.
func (m *ConversionMap[K]) NextTypeKey(idx uint32) (typegraph.TypeKey, error) {
	item, err := m.slot(idx)
	if err != nil {
		return typegraph.TypeKey{}, err
	}
	switch item.State {
	case Unset:
		return typegraph.TypeKey{Index: idx}, nil
	case ValueItem:
		return typegraph.TypeKey{Index: idx, Ordinal: uint32(len(item.Values))}, nil
	default:
		return typegraph.TypeKey{}, fmt.Errorf("%w: index %d is already a %s", ErrInvariant, idx, item.State)
	}
}

// FindValue returns the key of the value occurrence of idx registered with
// dup.
func (m *ConversionMap[K]) FindValue(idx uint32, dup K) (typegraph.TypeKey, bool) {
	if int(idx) >= len(m.direct) {
		return typegraph.TypeKey{}, false
	}
	item := &m.direct[idx]
	if item.State != ValueItem {
		return typegraph.TypeKey{}, false
	}
	for i, v := range item.Values {
		if v.Dup == dup {
			return typegraph.TypeKey{Index: idx, Ordinal: uint32(i)}, true
		}
	}
	return typegraph.TypeKey{}, false
}

// Lookup returns the key a relative path resolved to, aliases included.
func (m *ConversionMap[K]) Lookup(rp typegraph.RelativePath) (typegraph.TypeKey, bool) {
	k, ok := m.reverse[rp.Key()]
	return k, ok
}

// Item returns the state of idx.
func (m *ConversionMap[K]) Item(idx uint32) (MapItem[K], bool) {
	if int(idx) >= len(m.direct) {
		return MapItem[K]{}, false
	}
	return m.direct[idx], true
}

// Paths returns every relative path that resolved to key.
func (m *ConversionMap[K]) Paths(key typegraph.TypeKey) []typegraph.RelativePath {
	if int(key.Index) >= len(m.direct) {
		return nil
	}
	item := &m.direct[key.Index]
	switch item.State {
	case NamespaceItem:
		return []typegraph.RelativePath{typegraph.NsObjectPath{Path: item.NsPath}}
	case FunctionItem:
		return []typegraph.RelativePath{typegraph.FunctionPath{Index: key.Index}}
	case ValueItem:
		if int(key.Ordinal) < len(item.Values) {
			return slices.Clone(item.Values[key.Ordinal].RelativePaths)
		}
	}
	return nil
}

// Keys returns every realized key in registration order.
func (m *ConversionMap[K]) Keys() []typegraph.TypeKey {
	return slices.Clone(m.order)
}

// Len returns the number of realized nodes.
func (m *ConversionMap[K]) Len() int {
	return len(m.order)
}

// Aliases returns the number of relative paths registered beyond the first
// for each key.
func (m *ConversionMap[K]) Aliases() int {
	return len(m.reverse) - len(m.order)
}

// Unvisited returns the schema indices never realized, in ascending order.
func (m *ConversionMap[K]) Unvisited() []uint32 {
	var out []uint32
	for i := range m.direct {
		if m.direct[i].State == Unset {
			out = append(out, uint32(i))
		}
	}
	return out
}
