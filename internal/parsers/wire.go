package parsers

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/Benny93/typegraph-go/internal/schema"
)

// wireSchema is the on-disk document shared by the JSON and YAML parsers.
type wireSchema struct {
	Types []wireNode `json:"types" yaml:"types"`
}

type wireNode struct {
	Type        string `json:"type" yaml:"type"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Enum        []any  `json:"enum" yaml:"enum"`

	// integer, float
	Minimum          *wireNumber `json:"minimum" yaml:"minimum"`
	Maximum          *wireNumber `json:"maximum" yaml:"maximum"`
	ExclusiveMinimum *wireNumber `json:"exclusive_minimum" yaml:"exclusive_minimum"`
	ExclusiveMaximum *wireNumber `json:"exclusive_maximum" yaml:"exclusive_maximum"`
	MultipleOf       *wireNumber `json:"multiple_of" yaml:"multiple_of"`

	// string
	Pattern   *string `json:"pattern" yaml:"pattern"`
	Format    *string `json:"format" yaml:"format"`
	MinLength *uint32 `json:"min_length" yaml:"min_length"`
	MaxLength *uint32 `json:"max_length" yaml:"max_length"`

	// file
	MinSize   *uint64  `json:"min_size" yaml:"min_size"`
	MaxSize   *uint64  `json:"max_size" yaml:"max_size"`
	MimeTypes []string `json:"mime_types" yaml:"mime_types"`

	// optional
	Item         *uint32 `json:"item" yaml:"item"`
	DefaultValue any     `json:"default_value" yaml:"default_value"`

	// list
	Items       *uint32 `json:"items" yaml:"items"`
	MinItems    *uint32 `json:"min_items" yaml:"min_items"`
	MaxItems    *uint32 `json:"max_items" yaml:"max_items"`
	UniqueItems *bool   `json:"unique_items" yaml:"unique_items"`

	// object
	Properties wireProperties `json:"properties" yaml:"properties"`
	Required   []string       `json:"required" yaml:"required"`

	// union, either
	AnyOf []uint32 `json:"any_of" yaml:"any_of"`
	OneOf []uint32 `json:"one_of" yaml:"one_of"`

	// function
	Input        *uint32        `json:"input" yaml:"input"`
	Output       *uint32        `json:"output" yaml:"output"`
	Materializer uint32         `json:"materializer" yaml:"materializer"`
	Injections   *wireInjection `json:"injections" yaml:"injections"`
	Outjections  *wireInjection `json:"outjections" yaml:"outjections"`
	RateWeight   *uint32        `json:"rate_weight" yaml:"rate_weight"`
}

type wireInjection struct {
	Injection *struct {
		Source string `json:"source" yaml:"source"`
		Data   any    `json:"data" yaml:"data"`
	} `json:"injection" yaml:"injection"`
	Children map[string]*wireInjection `json:"children" yaml:"children"`
}

// wireNumber keeps the literal text of a numeric bound so integers are
// never routed through float64.
type wireNumber string

func (n *wireNumber) UnmarshalJSON(b []byte) error {
	s := string(b)
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return fmt.Errorf("invalid number %s", s)
	}
	*n = wireNumber(s)
	return nil
}

func (n *wireNumber) UnmarshalYAML(v *yaml.Node) error {
	if v.Kind != yaml.ScalarNode || (v.ShortTag() != "!!int" && v.ShortTag() != "!!float") {
		return fmt.Errorf("line %d: expected a number, got %q", v.Line, v.Value)
	}
	*n = wireNumber(v.Value)
	return nil
}

func (n *wireNumber) asInt() (*int64, error) {
	if n == nil {
		return nil, nil
	}
	v, err := strconv.ParseInt(string(*n), 0, 64)
	if err != nil {
		return nil, fmt.Errorf("expected an integer, got %s", string(*n))
	}
	return &v, nil
}

func (n *wireNumber) asFloat() (*float64, error) {
	if n == nil {
		return nil, nil
	}
	v, err := strconv.ParseFloat(string(*n), 64)
	if err != nil {
		return nil, fmt.Errorf("expected a float, got %s", string(*n))
	}
	return &v, nil
}

// wireProperties keeps object properties in document order.
type wireProperties []schema.Property

func (p *wireProperties) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*p = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("properties: expected an object, got %v", tok)
	}
	out := wireProperties{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("properties: expected a name, got %v", keyTok)
		}
		valTok, err := dec.Token()
		if err != nil {
			return err
		}
		num, ok := valTok.(json.Number)
		if !ok {
			return fmt.Errorf("property %q: expected a type index, got %v", name, valTok)
		}
		idx, err := strconv.ParseUint(string(num), 10, 32)
		if err != nil {
			return fmt.Errorf("property %q: invalid type index %s", name, num)
		}
		out = append(out, schema.Property{Name: name, Index: uint32(idx)})
	}
	*p = out
	return nil
}

func (p *wireProperties) UnmarshalYAML(v *yaml.Node) error {
	if v.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: properties must be a mapping", v.Line)
	}
	out := make(wireProperties, 0, len(v.Content)/2)
	for i := 0; i+1 < len(v.Content); i += 2 {
		var idx uint32
		if err := v.Content[i+1].Decode(&idx); err != nil {
			return fmt.Errorf("property %q: %w", v.Content[i].Value, err)
		}
		out = append(out, schema.Property{Name: v.Content[i].Value, Index: idx})
	}
	*p = out
	return nil
}

func (w *wireSchema) build() (*schema.Schema, error) {
	nodes := make([]schema.Node, len(w.Types))
	for i := range w.Types {
		n, err := w.Types[i].build()
		if err != nil {
			return nil, fmt.Errorf("%w: node %d (%s): %w", schema.ErrMalformed, i, w.Types[i].Type, err)
		}
		nodes[i] = n
	}
	s := schema.New(nodes...)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (w *wireNode) build() (schema.Node, error) {
	base := schema.Base{Title: w.Title, Description: w.Description, Enum: w.Enum}

	switch schema.Kind(w.Type) {
	case schema.KindBoolean:
		return &schema.Boolean{Base: base}, nil

	case schema.KindInteger:
		n := &schema.Integer{Base: base}
		for _, f := range []struct {
			dst **int64
			src *wireNumber
		}{
			{&n.Minimum, w.Minimum},
			{&n.Maximum, w.Maximum},
			{&n.ExclusiveMinimum, w.ExclusiveMinimum},
			{&n.ExclusiveMaximum, w.ExclusiveMaximum},
			{&n.MultipleOf, w.MultipleOf},
		} {
			v, err := f.src.asInt()
			if err != nil {
				return nil, err
			}
			*f.dst = v
		}
		return n, nil

	case schema.KindFloat:
		n := &schema.Float{Base: base}
		for _, f := range []struct {
			dst **float64
			src *wireNumber
		}{
			{&n.Minimum, w.Minimum},
			{&n.Maximum, w.Maximum},
			{&n.ExclusiveMinimum, w.ExclusiveMinimum},
			{&n.ExclusiveMaximum, w.ExclusiveMaximum},
			{&n.MultipleOf, w.MultipleOf},
		} {
			v, err := f.src.asFloat()
			if err != nil {
				return nil, err
			}
			*f.dst = v
		}
		return n, nil

	case schema.KindString:
		return &schema.String{
			Base:      base,
			Pattern:   w.Pattern,
			Format:    w.Format,
			MinLength: w.MinLength,
			MaxLength: w.MaxLength,
		}, nil

	case schema.KindFile:
		return &schema.File{Base: base, MinSize: w.MinSize, MaxSize: w.MaxSize, MimeTypes: w.MimeTypes}, nil

	case schema.KindOptional:
		if w.Item == nil {
			return nil, fmt.Errorf("missing %q", "item")
		}
		return &schema.Optional{Base: base, Item: *w.Item, DefaultValue: w.DefaultValue}, nil

	case schema.KindList:
		if w.Items == nil {
			return nil, fmt.Errorf("missing %q", "items")
		}
		return &schema.List{
			Base:        base,
			Items:       *w.Items,
			MinItems:    w.MinItems,
			MaxItems:    w.MaxItems,
			UniqueItems: w.UniqueItems,
		}, nil

	case schema.KindObject:
		props := []schema.Property(w.Properties)
		if props == nil {
			props = []schema.Property{}
		}
		return &schema.Object{Base: base, Properties: props, Required: w.Required}, nil

	case schema.KindUnion:
		if len(w.AnyOf) == 0 {
			return nil, fmt.Errorf("missing %q", "any_of")
		}
		return &schema.Union{Base: base, AnyOf: w.AnyOf}, nil

	case schema.KindEither:
		if len(w.OneOf) == 0 {
			return nil, fmt.Errorf("missing %q", "one_of")
		}
		return &schema.Either{Base: base, OneOf: w.OneOf}, nil

	case schema.KindFunction:
		if w.Input == nil || w.Output == nil {
			return nil, fmt.Errorf("missing %q or %q", "input", "output")
		}
		return &schema.Function{
			Base:         base,
			Input:        *w.Input,
			Output:       *w.Output,
			Materializer: w.Materializer,
			Injections:   w.Injections.build(),
			Outjections:  w.Outjections.build(),
			RateWeight:   w.RateWeight,
		}, nil

	case "":
		return nil, fmt.Errorf("missing %q", "type")
	default:
		return nil, fmt.Errorf("unknown type %q", w.Type)
	}
}

func (w *wireInjection) build() *schema.InjectionNode {
	if w == nil {
		return nil
	}
	if w.Injection != nil {
		return schema.Leaf(schema.InjectionSource(w.Injection.Source), w.Injection.Data)
	}
	children := make(map[string]*schema.InjectionNode, len(w.Children))
	for name, c := range w.Children {
		children[name] = c.build()
	}
	return schema.Parent(children)
}
