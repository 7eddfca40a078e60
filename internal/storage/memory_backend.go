package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/Benny93/typegraph-go/internal/graph"
)

// ErrReadOnly is returned by writes on a backend opened read only.
var ErrReadOnly = errors.New("storage is read only")

// MemoryBackend is an in-memory Backend. It is used by tests and by the MCP
// server when serving schemas converted on the fly.
type MemoryBackend struct {
	mu       sync.RWMutex
	g        *graph.Graph
	snapshot *Snapshot
	fts      *ftsIndex
	readOnly bool
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{g: graph.New(), fts: newFTSIndex()}
}

// Initialize implements Backend. The path is ignored.
func (m *MemoryBackend) Initialize(_ string, readOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readOnly = readOnly
	return nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.g = graph.New()
	m.fts = newFTSIndex()
	m.snapshot = nil
	return nil
}

// BulkLoad implements Backend. The graph is held by reference.
func (m *MemoryBackend) BulkLoad(ctx context.Context, g *graph.Graph) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readOnly {
		return ErrReadOnly
	}

	fts := newFTSIndex()
	for _, node := range g.Nodes() {
		fts.add(node)
	}
	m.g = g
	m.fts = fts
	return nil
}

// SaveSchema implements Backend.
func (m *MemoryBackend) SaveSchema(ctx context.Context, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readOnly {
		return ErrReadOnly
	}
	cp := *snap
	m.snapshot = &cp
	return nil
}

// LoadSchema implements Backend.
func (m *MemoryBackend) LoadSchema(_ context.Context) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snapshot == nil {
		return nil, nil
	}
	cp := *m.snapshot
	return &cp, nil
}

// GetNode implements Backend.
func (m *MemoryBackend) GetNode(_ context.Context, nodeID string) (*graph.GraphNode, error) {
	return m.graph().GetNode(nodeID), nil
}

// GetNodesByLabel implements Backend.
func (m *MemoryBackend) GetNodesByLabel(_ context.Context, label graph.NodeLabel) ([]*graph.GraphNode, error) {
	return m.graph().GetNodesByLabel(label), nil
}

// GetChildren implements Backend.
func (m *MemoryBackend) GetChildren(_ context.Context, nodeID string) ([]Neighbor, error) {
	return m.children(nodeID)
}

// GetParents implements Backend.
func (m *MemoryBackend) GetParents(_ context.Context, nodeID string) ([]Neighbor, error) {
	return m.parents(nodeID)
}

// Traverse implements Backend.
func (m *MemoryBackend) Traverse(ctx context.Context, startID string, depth int, direction Direction) ([]*graph.GraphNode, error) {
	if direction == DirectionParents {
		return traverse(ctx, startID, depth, m.parents)
	}
	return traverse(ctx, startID, depth, m.children)
}

// FTSSearch implements Backend.
func (m *MemoryBackend) FTSSearch(_ context.Context, query string, limit int) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fts.search(query, limit, m.g.GetNode), nil
}

// Stats implements Backend.
func (m *MemoryBackend) Stats(_ context.Context) (map[string]int, error) {
	return m.graph().Stats(), nil
}

func (m *MemoryBackend) graph() *graph.Graph {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.g
}

func (m *MemoryBackend) children(id string) ([]Neighbor, error) {
	g := m.graph()
	var out []Neighbor
	for _, rel := range g.GetOutgoing(id) {
		if n := g.GetNode(rel.Target); n != nil {
			out = append(out, Neighbor{Relationship: rel, Node: n})
		}
	}
	return out, nil
}

func (m *MemoryBackend) parents(id string) ([]Neighbor, error) {
	g := m.graph()
	var out []Neighbor
	for _, rel := range g.GetIncoming(id) {
		if n := g.GetNode(rel.Source); n != nil {
			out = append(out, Neighbor{Relationship: rel, Node: n})
		}
	}
	return out, nil
}
