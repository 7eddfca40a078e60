package schema

import "slices"

// Merge concatenates b after a and returns the combined schema together with
// the offset added to every index of b. Nodes are shallow-copied; edges of b
// are shifted so the result is self-consistent.
func Merge(a, b *Schema) (*Schema, uint32) {
	offset := uint32(a.Len())
	out := make([]Node, 0, a.Len()+b.Len())
	out = append(out, a.Types...)
	for _, n := range b.Types {
		out = append(out, shift(n, offset))
	}
	return &Schema{Types: out}, offset
}

func shift(n Node, off uint32) Node {
	add := func(ids []uint32) []uint32 {
		out := slices.Clone(ids)
		for i := range out {
			out[i] += off
		}
		return out
	}
	switch n := n.(type) {
	case *Optional:
		c := *n
		c.Item += off
		return &c
	case *List:
		c := *n
		c.Items += off
		return &c
	case *Object:
		c := *n
		c.Properties = make([]Property, len(n.Properties))
		for i, p := range n.Properties {
			c.Properties[i] = Property{Name: p.Name, Index: p.Index + off}
		}
		return &c
	case *Union:
		c := *n
		c.AnyOf = add(n.AnyOf)
		return &c
	case *Either:
		c := *n
		c.OneOf = add(n.OneOf)
		return &c
	case *Function:
		c := *n
		c.Input += off
		c.Output += off
		return &c
	default:
		return n
	}
}
