package graph

import (
	"cmp"
	"slices"
	"sync"
)

// Graph is an in-memory index over an exported type graph.
//
// Nodes and relationships are keyed by ID. Secondary indexes on label,
// relationship type and adjacency keep lookups proportional to the result.
// Removing a node cascades to the relationships it takes part in. Every list
// returned is sorted: nodes by type key, relationships by position.
type Graph struct {
	mu            sync.RWMutex
	nodes         map[string]*GraphNode
	relationships map[string]*GraphRelationship

	byLabel   map[NodeLabel]map[string]*GraphNode
	byRelType map[RelType]map[string]*GraphRelationship
	outgoing  map[string]map[string]*GraphRelationship
	incoming  map[string]map[string]*GraphRelationship
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:         make(map[string]*GraphNode),
		relationships: make(map[string]*GraphRelationship),
		byLabel:       make(map[NodeLabel]map[string]*GraphNode),
		byRelType:     make(map[RelType]map[string]*GraphRelationship),
		outgoing:      make(map[string]map[string]*GraphRelationship),
		incoming:      make(map[string]map[string]*GraphRelationship),
	}
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// RelationshipCount returns the number of relationships.
func (g *Graph) RelationshipCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.relationships)
}

// CountNodesByLabel returns the number of nodes with the given label.
func (g *Graph) CountNodesByLabel(label NodeLabel) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byLabel[label])
}

// AddNode adds a node, replacing any node with the same ID.
func (g *Graph) AddNode(node *GraphNode) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.nodes[node.ID]; ok && old.Label != node.Label {
		delete(g.byLabel[old.Label], node.ID)
	}
	g.nodes[node.ID] = node
	index(g.byLabel, node.Label, node.ID, node)
}

// GetNode returns the node with the given ID, or nil.
func (g *Graph) GetNode(id string) *GraphNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// RemoveNode removes a node and every relationship touching it.
func (g *Graph) RemoveNode(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[id]
	if !ok {
		return false
	}
	delete(g.nodes, id)
	delete(g.byLabel[node.Label], id)

	for _, rel := range g.outgoing[id] {
		g.unindexRel(rel)
	}
	for _, rel := range g.incoming[id] {
		g.unindexRel(rel)
	}
	delete(g.outgoing, id)
	delete(g.incoming, id)
	return true
}

// AddRelationship adds a relationship, replacing any with the same ID.
func (g *Graph) AddRelationship(rel *GraphRelationship) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.relationships[rel.ID]; ok {
		g.unindexRel(old)
	}
	g.relationships[rel.ID] = rel
	index(g.byRelType, rel.Type, rel.ID, rel)
	index(g.outgoing, rel.Source, rel.ID, rel)
	index(g.incoming, rel.Target, rel.ID, rel)
}

// Must be called with the write lock held.
func (g *Graph) unindexRel(rel *GraphRelationship) {
	delete(g.relationships, rel.ID)
	delete(g.byRelType[rel.Type], rel.ID)
	delete(g.outgoing[rel.Source], rel.ID)
	delete(g.incoming[rel.Target], rel.ID)
}

func index[K comparable, V any](m map[K]map[string]V, k K, id string, v V) {
	if m[k] == nil {
		m[k] = make(map[string]V)
	}
	m[k][id] = v
}

// Nodes returns every node.
func (g *Graph) Nodes() []*GraphNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedNodes(g.nodes)
}

// Relationships returns every relationship, grouped by source.
func (g *Graph) Relationships() []*GraphRelationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedRels(g.relationships, g.nodes)
}

// GetNodesByLabel returns all nodes with the given label.
func (g *Graph) GetNodesByLabel(label NodeLabel) []*GraphNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedNodes(g.byLabel[label])
}

// GetRelationshipsByType returns all relationships of the given type.
func (g *Graph) GetRelationshipsByType(relType RelType) []*GraphRelationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedRels(g.byRelType[relType], g.nodes)
}

// GetOutgoing returns the relationships leaving id. If relType is given, only
// relationships of that type are returned.
func (g *Graph) GetOutgoing(id string, relType ...RelType) []*GraphRelationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return filterRels(sortedRels(g.outgoing[id], g.nodes), relType)
}

// GetIncoming returns the relationships targeting id.
func (g *Graph) GetIncoming(id string, relType ...RelType) []*GraphRelationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return filterRels(sortedRels(g.incoming[id], g.nodes), relType)
}

// Children returns the targets of the relationships leaving id, in slot
// order. A node reachable through two slots is listed twice.
func (g *Graph) Children(id string) []*GraphNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []*GraphNode
	for _, rel := range sortedRels(g.outgoing[id], g.nodes) {
		if n, ok := g.nodes[rel.Target]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Parents returns the distinct sources of the relationships targeting id.
func (g *Graph) Parents(id string) []*GraphNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	seen := make(map[string]*GraphNode)
	for _, rel := range g.incoming[id] {
		if n, ok := g.nodes[rel.Source]; ok {
			seen[n.ID] = n
		}
	}
	return sortedNodes(seen)
}

// HasIncoming reports whether id is the target of any relationship.
func (g *Graph) HasIncoming(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.incoming[id]) > 0
}

// Stats returns node counts per label plus the totals.
func (g *Graph) Stats() map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := map[string]int{
		"nodes":         len(g.nodes),
		"relationships": len(g.relationships),
	}
	for label, nodes := range g.byLabel {
		if len(nodes) > 0 {
			out[string(label)] = len(nodes)
		}
	}
	return out
}

// CompareNodes orders nodes by schema index, then ordinal.
func CompareNodes(a, b *GraphNode) int {
	return cmp.Or(
		cmp.Compare(a.SchemaIndex, b.SchemaIndex),
		cmp.Compare(a.Ordinal, b.Ordinal),
		cmp.Compare(a.ID, b.ID),
	)
}

func sortedNodes(m map[string]*GraphNode) []*GraphNode {
	if len(m) == 0 {
		return nil
	}
	out := make([]*GraphNode, 0, len(m))
	for _, n := range m {
		out = append(out, n)
	}
	slices.SortFunc(out, CompareNodes)
	return out
}

func sortedRels(m map[string]*GraphRelationship, nodes map[string]*GraphNode) []*GraphRelationship {
	if len(m) == 0 {
		return nil
	}
	out := make([]*GraphRelationship, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *GraphRelationship) int {
		if a.Source != b.Source {
			sa, sb := nodes[a.Source], nodes[b.Source]
			if sa != nil && sb != nil {
				return CompareNodes(sa, sb)
			}
			return cmp.Compare(a.Source, b.Source)
		}
		return CompareSlots(a, b)
	})
	return out
}

// CompareSlots orders relationships of one source in slot order: input,
// output, then the positional slots.
func CompareSlots(a, b *GraphRelationship) int {
	return cmp.Or(
		cmp.Compare(relOrder(a.Type), relOrder(b.Type)),
		cmp.Compare(a.Position, b.Position),
		cmp.Compare(a.ID, b.ID),
	)
}

func relOrder(t RelType) int {
	switch t {
	case RelInput:
		return 0
	case RelOutput:
		return 1
	default:
		return 2
	}
}

func filterRels(rels []*GraphRelationship, relType []RelType) []*GraphRelationship {
	if len(relType) == 0 || relType[0] == "" {
		return rels
	}
	out := make([]*GraphRelationship, 0, len(rels))
	for _, r := range rels {
		if r.Type == relType[0] {
			out = append(out, r)
		}
	}
	return out
}
