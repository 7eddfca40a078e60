package conversion

import (
	"github.com/Benny93/typegraph-go/internal/schema"
	"github.com/Benny93/typegraph-go/internal/typegraph"
)

// DuplicationKeyGenerator decides when two traversals reaching the same
// schema index share one realized node. Equal keys share, distinct keys
// duplicate.
type DuplicationKeyGenerator[K comparable] interface {
	// ForNamespace is the key for values hanging directly off namespaces.
	ForNamespace() K
	// ForFnInput is the key for the root of a function's input.
	ForFnInput(fn *typegraph.Function) K
	// ForFnOutput is the key for the root of a function's output.
	ForFnOutput(fn *typegraph.Function) K
	// ApplyPathSegment derives a child's key from its parent's.
	ApplyPathSegment(parent K, seg typegraph.PathSegment) K
}

// DefaultKey groups occurrences by branch and by the injection subtree they
// see. The injection is compared by pointer.
type DefaultKey struct {
	Branch    typegraph.ValueTypeKind
	Injection *schema.InjectionNode
}

// DefaultKeyGenerator shares nodes reached on the same branch under the same
// injection configuration.
type DefaultKeyGenerator struct{}

var _ DuplicationKeyGenerator[DefaultKey] = DefaultKeyGenerator{}

func (DefaultKeyGenerator) ForNamespace() DefaultKey {
	return DefaultKey{Branch: typegraph.NamespaceValue}
}

func (DefaultKeyGenerator) ForFnInput(fn *typegraph.Function) DefaultKey {
	return DefaultKey{Branch: typegraph.InputValue, Injection: fn.Data.Injections}
}

func (DefaultKeyGenerator) ForFnOutput(fn *typegraph.Function) DefaultKey {
	return DefaultKey{Branch: typegraph.OutputValue, Injection: fn.Data.Outjections}
}

func (DefaultKeyGenerator) ApplyPathSegment(parent DefaultKey, seg typegraph.PathSegment) DefaultKey {
	return DefaultKey{Branch: parent.Branch, Injection: seg.ApplyOnInjection(parent.Injection)}
}

// BranchKeyGenerator shares every occurrence on the same branch, ignoring
// injections.
type BranchKeyGenerator struct{}

var _ DuplicationKeyGenerator[typegraph.ValueTypeKind] = BranchKeyGenerator{}

func (BranchKeyGenerator) ForNamespace() typegraph.ValueTypeKind {
	return typegraph.NamespaceValue
}

func (BranchKeyGenerator) ForFnInput(*typegraph.Function) typegraph.ValueTypeKind {
	return typegraph.InputValue
}

func (BranchKeyGenerator) ForFnOutput(*typegraph.Function) typegraph.ValueTypeKind {
	return typegraph.OutputValue
}

func (BranchKeyGenerator) ApplyPathSegment(parent typegraph.ValueTypeKind, _ typegraph.PathSegment) typegraph.ValueTypeKind {
	return parent
}
