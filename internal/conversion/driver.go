// Package conversion expands a flat schema into a linked typegraph.
//
// Conversion runs in two phases. The expand phase drains a FIFO queue of
// steps, registering one node per distinct (index, duplication key) pair in a
// ConversionMap and recording a LinkStep per composite node. The link phase
// then fills every write-once child slot by key lookup, which is what lets
// cyclic schemas become real pointer cycles.
package conversion

import (
	"fmt"

	"github.com/Benny93/typegraph-go/internal/schema"
	"github.com/Benny93/typegraph-go/internal/typegraph"
)

// Event describes one processed step.
type Event struct {
	Index        uint32
	Path         typegraph.RelativePath
	Key          typegraph.TypeKey
	Kind         schema.Kind
	ShortCircuit bool
}

// Tracer observes the expand phase.
type Tracer func(Event)

// Option configures ConvertFrom.
type Option func(*config)

type config struct {
	tracer Tracer
}

// WithTracer installs a step observer.
func WithTracer(t Tracer) Option {
	return func(c *config) {
		c.tracer = t
	}
}

// Stats summarizes one conversion.
type Stats struct {
	Steps         int
	ShortCircuits int
	Nodes         int
	Links         int
}

// Result is a converted schema.
type Result[K comparable] struct {
	Root  *typegraph.Object
	Map   *ConversionMap[K]
	Stats Stats
}

// Convert expands s from index 0 with the default key generator.
func Convert(s *schema.Schema) (*Result[DefaultKey], error) {
	return ConvertFrom(s, 0, DefaultKeyGenerator{})
}

// ConvertFrom expands s from root using gen. The root must be an object; it
// becomes the namespace root of the graph. Any error aborts the conversion.
func ConvertFrom[K comparable](s *schema.Schema, root uint32, gen DuplicationKeyGenerator[K], opts ...Option) (*Result[K], error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	rootNode, err := s.Node(root)
	if err != nil {
		return nil, fmt.Errorf("%w: root: %w", ErrMalformedSchema, err)
	}
	if rootNode.Kind() != schema.KindObject {
		return nil, fmt.Errorf("%w: root %d is %s, expected object", ErrMalformedSchema, root, rootNode.Kind())
	}

	c := &converter[K]{schema: s, m: NewConversionMap[K](s.Len()), gen: gen}
	var (
		stats Stats
		links []LinkStep[K]
		queue = []Step[K]{RootStep(root, gen)}
	)
	for head := 0; head < len(queue); head++ {
		st := queue[head]
		res, err := c.convert(st)
		if err != nil {
			return nil, fmt.Errorf("converting index %d at %s: %w", st.Index, st.RelativePath, err)
		}
		stats.Steps++
		if res.ShortCircuit {
			stats.ShortCircuits++
		} else {
			stats.Nodes++
		}
		if cfg.tracer != nil {
			ev := Event{Index: st.Index, Path: st.RelativePath, Key: res.Key, ShortCircuit: res.ShortCircuit}
			if res.Type != nil {
				ev.Kind = res.Type.Kind()
			}
			cfg.tracer(ev)
		}
		queue = append(queue, res.Children...)
		if res.Link != nil {
			links = append(links, res.Link)
		}
		queue[head] = Step[K]{}
	}

	for _, l := range links {
		if err := l.Link(c.m); err != nil {
			return nil, err
		}
		stats.Links++
	}

	t, ok := c.m.Get(typegraph.TypeKey{Index: root})
	if !ok {
		return nil, fmt.Errorf("%w: root %d was not registered", ErrInvariant, root)
	}
	return &Result[K]{Root: t.(*typegraph.Object), Map: c.m, Stats: stats}, nil
}
