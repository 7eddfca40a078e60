package typegraph

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"weak"

	"github.com/Benny93/typegraph-go/internal/schema"
)

// ValueTypeKind tells which branch a value type hangs off.
type ValueTypeKind int

const (
	InputValue ValueTypeKind = iota
	OutputValue
	NamespaceValue
)

func (k ValueTypeKind) String() string {
	switch k {
	case InputValue:
		return "input"
	case OutputValue:
		return "output"
	case NamespaceValue:
		return "namespace"
	default:
		return "unknown"
	}
}

// ValueTypePath locates a value type relative to the function (or namespace
// member) owning it.
type ValueTypePath struct {
	// Owner is a non-owning reference to the function; zero for namespace values.
	Owner weak.Pointer[Function]
	// OwnerIndex is the schema index of the owning function or namespace object.
	OwnerIndex uint32
	// Start is the schema index the path is rooted at.
	Start  uint32
	Branch ValueTypeKind
	Path   []PathSegment
}

// OwnerFunction upgrades the owner reference.
func (p ValueTypePath) OwnerFunction() (*Function, bool) {
	fn := p.Owner.Value()
	return fn, fn != nil
}

// Extend returns a copy of p with seg appended.
func (p ValueTypePath) Extend(seg PathSegment) ValueTypePath {
	out := p
	out.Path = append(slices.Clip(p.Path), seg)
	return out
}

// ToIndices replays the path on the raw schema and returns every index
// visited, starting with Start.
func (p ValueTypePath) ToIndices(s *schema.Schema) ([]uint32, error) {
	out := make([]uint32, 0, len(p.Path)+1)
	cur := p.Start
	out = append(out, cur)
	for _, seg := range p.Path {
		next, err := seg.ApplyOnSchemaNode(s, cur)
		if err != nil {
			return nil, fmt.Errorf("at index %d: %w", cur, err)
		}
		out = append(out, next)
		cur = next
	}
	return out, nil
}

// Walk replays the path on the realized graph from start and returns every
// node visited, start included.
func (p ValueTypePath) Walk(start Type) ([]Type, error) {
	out := make([]Type, 0, len(p.Path)+1)
	cur := start
	out = append(out, cur)
	for _, seg := range p.Path {
		next, err := seg.Apply(cur)
		if err != nil {
			return nil, err
		}
		out = append(out, next)
		cur = next
	}
	return out, nil
}

func (p ValueTypePath) segmentKey() string {
	var b strings.Builder
	for _, seg := range p.Path {
		b.WriteByte(0)
		b.WriteString(seg.key())
	}
	return b.String()
}

func (p ValueTypePath) segmentString() string {
	parts := make([]string, len(p.Path))
	for i, seg := range p.Path {
		parts[i] = seg.String()
	}
	return "/" + strings.Join(parts, "/")
}

// RelativePath is the semantic address that justified creating a node.
// Implementations: FunctionPath, NsObjectPath, InputPath, OutputPath and
// NsValuePath.
type RelativePath interface {
	// Key is a canonical string usable as a map key.
	Key() string
	String() string
	isRelativePath()
}

// FunctionPath addresses a function node itself.
type FunctionPath struct {
	Index uint32
}

// NsObjectPath addresses a namespace object from the graph root.
type NsObjectPath struct {
	Path []string
}

// InputPath addresses a value inside a function's input.
type InputPath struct {
	ValueTypePath
}

// OutputPath addresses a value inside a function's output.
type OutputPath struct {
	ValueTypePath
}

// NsValuePath addresses a value hanging directly off a namespace member.
type NsValuePath struct {
	Namespace []string
	ValueTypePath
}

func (FunctionPath) isRelativePath() {}
func (NsObjectPath) isRelativePath() {}
func (InputPath) isRelativePath()    {}
func (OutputPath) isRelativePath()   {}
func (NsValuePath) isRelativePath()  {}

func (p FunctionPath) Key() string {
	return "fn:" + strconv.FormatUint(uint64(p.Index), 10)
}

func (p NsObjectPath) Key() string {
	return "ns:" + namespaceKey(p.Path)
}

func (p InputPath) Key() string {
	return "in:" + strconv.FormatUint(uint64(p.OwnerIndex), 10) + ":" + p.segmentKey()
}

func (p OutputPath) Key() string {
	return "out:" + strconv.FormatUint(uint64(p.OwnerIndex), 10) + ":" + p.segmentKey()
}

func (p NsValuePath) Key() string {
	return "nsv:" + namespaceKey(p.Namespace) + ":" + p.segmentKey()
}

// namespaceKey separates every name, so the root and a member named "" differ.
func namespaceKey(path []string) string {
	var b strings.Builder
	for _, name := range path {
		b.WriteByte(0)
		b.WriteString(name)
	}
	return b.String()
}

func (p FunctionPath) String() string {
	return fmt.Sprintf("function(%d)", p.Index)
}

func (p NsObjectPath) String() string {
	return "namespace:/" + strings.Join(p.Path, "/")
}

func (p InputPath) String() string {
	return fmt.Sprintf("input(%d):%s", p.OwnerIndex, p.segmentString())
}

func (p OutputPath) String() string {
	return fmt.Sprintf("output(%d):%s", p.OwnerIndex, p.segmentString())
}

func (p NsValuePath) String() string {
	return "value:/" + strings.Join(p.Namespace, "/") + ":" + p.segmentString()
}

// ValuePath returns the value path carried by rp, if any.
func ValuePath(rp RelativePath) (ValueTypePath, bool) {
	switch rp := rp.(type) {
	case InputPath:
		return rp.ValueTypePath, true
	case OutputPath:
		return rp.ValueTypePath, true
	case NsValuePath:
		return rp.ValueTypePath, true
	default:
		return ValueTypePath{}, false
	}
}

// ExtendValue appends seg to a value-kind relative path. Function and
// namespace paths cannot be extended.
func ExtendValue(rp RelativePath, seg PathSegment) (RelativePath, error) {
	switch rp := rp.(type) {
	case InputPath:
		return InputPath{rp.Extend(seg)}, nil
	case OutputPath:
		return OutputPath{rp.Extend(seg)}, nil
	case NsValuePath:
		return NsValuePath{Namespace: rp.Namespace, ValueTypePath: rp.Extend(seg)}, nil
	default:
		return nil, fmt.Errorf("cannot extend %s with %s", rp, seg)
	}
}
