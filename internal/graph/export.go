package graph

import (
	"fmt"
	"strings"

	"github.com/Benny93/typegraph-go/internal/conversion"
	"github.com/Benny93/typegraph-go/internal/typegraph"
)

// Export flattens a conversion result into a Graph. The typegraph must be
// fully linked.
func Export[K comparable](res *conversion.Result[K]) (*Graph, error) {
	g := New()
	for _, key := range res.Map.Keys() {
		t, ok := res.Map.Get(key)
		if !ok {
			return nil, fmt.Errorf("exporting %s: key not in conversion map", key)
		}

		paths := res.Map.Paths(key)
		node := &GraphNode{
			ID:          key.String(),
			Label:       LabelOf(t),
			Name:        t.Base().Title(),
			Description: t.Base().Schema.Description,
			SchemaIndex: key.Index,
			Ordinal:     key.Ordinal,
			Paths:       make([]string, len(paths)),
			Properties:  nodeProperties(t),
		}
		for i, rp := range paths {
			node.Paths[i] = rp.String()
		}
		g.AddNode(node)

		rels, err := relationships(t)
		if err != nil {
			return nil, fmt.Errorf("exporting %s: %w", key, err)
		}
		for _, rel := range rels {
			g.AddRelationship(rel)
		}
	}
	return g, nil
}

// LabelOf returns the node label of a realized type.
func LabelOf(t typegraph.Type) NodeLabel {
	if obj, ok := t.(*typegraph.Object); ok && obj.IsNamespace() {
		return NodeNamespace
	}
	return NodeLabel(t.Kind())
}

func relationships(t typegraph.Type) ([]*GraphRelationship, error) {
	source := t.Base().Key.String()
	edge := func(relType RelType, position int, child typegraph.Type, props map[string]any) *GraphRelationship {
		return &GraphRelationship{
			ID:         GenerateRelID(relType, source, position),
			Type:       relType,
			Source:     source,
			Target:     child.Base().Key.String(),
			Position:   position,
			Properties: props,
		}
	}

	switch t := t.(type) {
	case *typegraph.Optional:
		item, err := t.Item()
		if err != nil {
			return nil, err
		}
		return []*GraphRelationship{edge(RelItem, 0, item, nil)}, nil

	case *typegraph.List:
		item, err := t.Item()
		if err != nil {
			return nil, err
		}
		return []*GraphRelationship{edge(RelItem, 0, item, nil)}, nil

	case *typegraph.Object:
		props, err := t.Properties()
		if err != nil {
			return nil, err
		}
		out := make([]*GraphRelationship, len(props))
		for i, p := range props {
			meta := map[string]any{"name": p.Name, "required": p.Required}
			if p.Injection != nil {
				meta["injected"] = true
			}
			if p.Outjection != nil {
				meta["outjected"] = true
			}
			out[i] = edge(RelProperty, i, p.Type, meta)
		}
		return out, nil

	case *typegraph.Union:
		variants, err := t.Variants()
		if err != nil {
			return nil, err
		}
		out := make([]*GraphRelationship, len(variants))
		for i, v := range variants {
			out[i] = edge(RelVariant, i, v, nil)
		}
		return out, nil

	case *typegraph.Function:
		input, err := t.Input()
		if err != nil {
			return nil, err
		}
		output, err := t.Output()
		if err != nil {
			return nil, err
		}
		return []*GraphRelationship{edge(RelInput, 0, input, nil), edge(RelOutput, 0, output, nil)}, nil
	}
	return nil, nil
}

func set[T any](m map[string]any, key string, p *T) {
	if p != nil {
		m[key] = *p
	}
}

func nodeProperties(t typegraph.Type) map[string]any {
	m := make(map[string]any)
	base := t.Base()
	if base.Schema.Enum != nil {
		m["enum"] = base.Schema.Enum
	}
	if base.Injection.IsLeaf() {
		m["injection"] = string(base.Injection.Injection.Source)
	}

	switch t := t.(type) {
	case *typegraph.Integer:
		set(m, "minimum", t.Data.Minimum)
		set(m, "maximum", t.Data.Maximum)
		set(m, "exclusive_minimum", t.Data.ExclusiveMinimum)
		set(m, "exclusive_maximum", t.Data.ExclusiveMaximum)
		set(m, "multiple_of", t.Data.MultipleOf)
	case *typegraph.Float:
		set(m, "minimum", t.Data.Minimum)
		set(m, "maximum", t.Data.Maximum)
		set(m, "exclusive_minimum", t.Data.ExclusiveMinimum)
		set(m, "exclusive_maximum", t.Data.ExclusiveMaximum)
		set(m, "multiple_of", t.Data.MultipleOf)
	case *typegraph.String:
		set(m, "pattern", t.Data.Pattern)
		set(m, "format", t.Data.Format)
		set(m, "min_length", t.Data.MinLength)
		set(m, "max_length", t.Data.MaxLength)
	case *typegraph.File:
		set(m, "min_size", t.Data.MinSize)
		set(m, "max_size", t.Data.MaxSize)
		if t.Data.MimeTypes != nil {
			m["mime_types"] = t.Data.MimeTypes
		}
	case *typegraph.Optional:
		if t.DefaultValue != nil {
			m["default_value"] = t.DefaultValue
		}
	case *typegraph.List:
		set(m, "min_items", t.Data.MinItems)
		set(m, "max_items", t.Data.MaxItems)
		set(m, "unique_items", t.Data.UniqueItems)
	case *typegraph.Object:
		if t.IsNamespace() {
			m["namespace"] = strings.Join(t.Namespace, ".")
		}
	case *typegraph.Function:
		m["materializer"] = t.Data.Materializer
		set(m, "rate_weight", t.Data.RateWeight)
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
