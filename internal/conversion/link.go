package conversion

import (
	"fmt"

	"github.com/Benny93/typegraph-go/internal/schema"
	"github.com/Benny93/typegraph-go/internal/typegraph"
)

// LinkStep fills the child slots of one composite node once every node has
// been built.
type LinkStep[K comparable] interface {
	Link(m *ConversionMap[K]) error
}

func resolve[K comparable](m *ConversionMap[K], owner typegraph.Type, kx typegraph.TypeKeyEx[K]) (typegraph.Type, error) {
	t, ok := m.Resolve(kx)
	if !ok {
		return nil, fmt.Errorf("%w: unresolved child %d of %s %s", ErrInvariant, kx.Index, owner.Kind(), owner.Base().Key)
	}
	return t, nil
}

func linkErr(owner typegraph.Type, slot string, err error) error {
	return fmt.Errorf("linking %s of %s %s: %w", slot, owner.Kind(), owner.Base().Key, err)
}

type linkOptional[K comparable] struct {
	target *typegraph.Optional
	item   typegraph.TypeKeyEx[K]
}

func (l *linkOptional[K]) Link(m *ConversionMap[K]) error {
	item, err := resolve(m, l.target, l.item)
	if err != nil {
		return err
	}
	if err := l.target.LinkItem(item); err != nil {
		return linkErr(l.target, "item", err)
	}
	return nil
}

type linkList[K comparable] struct {
	target *typegraph.List
	item   typegraph.TypeKeyEx[K]
}

func (l *linkList[K]) Link(m *ConversionMap[K]) error {
	item, err := resolve(m, l.target, l.item)
	if err != nil {
		return err
	}
	if err := l.target.LinkItem(item); err != nil {
		return linkErr(l.target, "item", err)
	}
	return nil
}

type linkUnion[K comparable] struct {
	target   *typegraph.Union
	variants []typegraph.TypeKeyEx[K]
}

func (l *linkUnion[K]) Link(m *ConversionMap[K]) error {
	variants := make([]typegraph.Type, 0, len(l.variants))
	for _, kx := range l.variants {
		v, err := resolve(m, l.target, kx)
		if err != nil {
			return err
		}
		variants = append(variants, v)
	}
	if err := l.target.LinkVariants(variants); err != nil {
		return linkErr(l.target, "variants", err)
	}
	return nil
}

type propertyRef[K comparable] struct {
	name       string
	key        typegraph.TypeKeyEx[K]
	injection  *schema.InjectionNode
	outjection *schema.InjectionNode
	required   bool
}

type linkObject[K comparable] struct {
	target *typegraph.Object
	props  []propertyRef[K]
}

func (l *linkObject[K]) Link(m *ConversionMap[K]) error {
	props := make([]typegraph.ObjectProperty, 0, len(l.props))
	for _, p := range l.props {
		t, err := resolve(m, l.target, p.key)
		if err != nil {
			return fmt.Errorf("property %q: %w", p.name, err)
		}
		props = append(props, typegraph.ObjectProperty{
			Name:       p.name,
			Type:       t,
			Injection:  p.injection,
			Outjection: p.outjection,
			Required:   p.required,
		})
	}
	if err := l.target.LinkProperties(props); err != nil {
		return linkErr(l.target, "properties", err)
	}
	return nil
}

type linkFunction[K comparable] struct {
	target *typegraph.Function
	input  typegraph.TypeKeyEx[K]
	output typegraph.TypeKeyEx[K]
}

func (l *linkFunction[K]) Link(m *ConversionMap[K]) error {
	in, err := resolve(m, l.target, l.input)
	if err != nil {
		return err
	}
	obj, ok := in.(*typegraph.Object)
	if !ok {
		return fmt.Errorf("%w: input of function %s resolved to %s", ErrInvariant, l.target.Key, in.Kind())
	}
	out, err := resolve(m, l.target, l.output)
	if err != nil {
		return err
	}
	if err := l.target.LinkInput(obj); err != nil {
		return linkErr(l.target, "input", err)
	}
	if err := l.target.LinkOutput(out); err != nil {
		return linkErr(l.target, "output", err)
	}
	return nil
}
