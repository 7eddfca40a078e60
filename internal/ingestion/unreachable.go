package ingestion

import (
	"fmt"

	"github.com/Benny93/typegraph-go/internal/schema"
)

// Reason tells why a schema node was never realized.
type Reason string

const (
	// ReasonOrphan marks nodes no other node references.
	ReasonOrphan Reason = "orphan"
	// ReasonDetached marks nodes referenced only by unreachable nodes.
	ReasonDetached Reason = "detached"
)

// Unreachable is a schema node the conversion never reached from the root.
type Unreachable struct {
	Index     uint32
	Kind      schema.Kind
	Title     string
	Reason    Reason
	Referrers []uint32
}

func (u Unreachable) String() string {
	if u.Title != "" {
		return fmt.Sprintf("%d (%s %q): %s", u.Index, u.Kind, u.Title, u.Reason)
	}
	return fmt.Sprintf("%d (%s): %s", u.Index, u.Kind, u.Reason)
}

// FindUnreachable classifies the unvisited indices of a conversion.
//
// Conversion follows every edge of every node it realizes, so a referrer of
// an unvisited node is itself unvisited. Such nodes are detached; nodes with
// no referrer at all are orphans.
func FindUnreachable(s *schema.Schema, unvisited []uint32) ([]Unreachable, error) {
	if len(unvisited) == 0 {
		return nil, nil
	}

	referrers := make(map[uint32][]uint32)
	for i := range s.Types {
		children, err := s.Children(uint32(i))
		if err != nil {
			return nil, fmt.Errorf("scanning references: %w", err)
		}
		for _, c := range children {
			refs := referrers[c]
			if len(refs) == 0 || refs[len(refs)-1] != uint32(i) {
				referrers[c] = append(refs, uint32(i))
			}
		}
	}

	out := make([]Unreachable, 0, len(unvisited))
	for _, idx := range unvisited {
		n, err := s.Node(idx)
		if err != nil {
			return nil, fmt.Errorf("scanning references: %w", err)
		}
		u := Unreachable{
			Index:     idx,
			Kind:      n.Kind(),
			Title:     n.NodeBase().Title,
			Reason:    ReasonOrphan,
			Referrers: referrers[idx],
		}
		if len(u.Referrers) > 0 {
			u.Reason = ReasonDetached
		}
		out = append(out, u)
	}
	return out, nil
}
