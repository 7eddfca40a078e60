package schema

import "sort"

// InjectionSource names where an injected value comes from.
type InjectionSource string

const (
	InjectStatic  InjectionSource = "static"
	InjectContext InjectionSource = "context"
	InjectSecret  InjectionSource = "secret"
	InjectParent  InjectionSource = "parent"
	InjectRandom  InjectionSource = "random"
)

// Injection configures a value supplied by the runtime instead of the caller.
type Injection struct {
	Source InjectionSource
	Data   any
}

// InjectionNode is one level of an injection tree. A leaf carries an
// Injection; a parent branches on object property names.
type InjectionNode struct {
	Injection *Injection
	Children  map[string]*InjectionNode
}

// Leaf builds a leaf node.
func Leaf(source InjectionSource, data any) *InjectionNode {
	return &InjectionNode{Injection: &Injection{Source: source, Data: data}}
}

// Parent builds a parent node.
func Parent(children map[string]*InjectionNode) *InjectionNode {
	return &InjectionNode{Children: children}
}

// IsLeaf reports whether the node carries an injection.
func (n *InjectionNode) IsLeaf() bool {
	return n != nil && n.Injection != nil
}

// Child returns the subtree for the named property, or nil.
func (n *InjectionNode) Child(name string) *InjectionNode {
	if n == nil || n.IsLeaf() {
		return nil
	}
	return n.Children[name]
}

// Names returns the child names in sorted order.
func (n *InjectionNode) Names() []string {
	if n == nil {
		return nil
	}
	names := make([]string, 0, len(n.Children))
	for k := range n.Children {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
