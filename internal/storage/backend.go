// Package storage persists exported type graphs together with the schema
// snapshot they were converted from.
//
// It defines the Backend interface all storage implementations satisfy,
// along with the types shared across backends.
package storage

import (
	"context"
	"time"

	"github.com/Benny93/typegraph-go/internal/graph"
)

// MaxTraverseDepth caps Traverse.
const MaxTraverseDepth = 10

// SearchResult is one full-text match.
type SearchResult struct {
	// NodeID is the type key of the matching node.
	NodeID string

	// Score is the relevance score (higher is better).
	Score float64

	// NodeName is the schema title of the node.
	NodeName string

	// Label is the node label.
	Label string

	// Snippet is the first relative path of the node.
	Snippet string
}

// Direction selects the edges followed by Traverse.
type Direction string

const (
	DirectionChildren Direction = "children"
	DirectionParents  Direction = "parents"
)

// Neighbor is an adjacent node together with the edge leading to it.
type Neighbor struct {
	Relationship *graph.GraphRelationship
	Node         *graph.GraphNode
}

// Snapshot is the raw schema a stored graph was converted from.
type Snapshot struct {
	// Path is the schema file the snapshot was read from.
	Path string `json:"path"`

	// Format is the parser format ("json", "yaml").
	Format string `json:"format"`

	// Content is the file content as read.
	Content []byte `json:"content"`

	// Root is the schema index the conversion started at.
	Root uint32 `json:"root"`

	// Generator names the duplication key generator used.
	Generator string `json:"generator"`

	// CreatedAt is when the snapshot was stored.
	CreatedAt time.Time `json:"created_at"`
}

// Backend defines the interface for storage implementations.
//
// Implementations must be safe for concurrent use.
type Backend interface {
	// Initialize opens or creates the store at path. If readOnly is true,
	// writes fail.
	Initialize(path string, readOnly bool) error

	// Close releases all resources held by the backend.
	Close() error

	// BulkLoad replaces the stored graph with the contents of g. The schema
	// snapshot is kept.
	BulkLoad(ctx context.Context, g *graph.Graph) error

	// SaveSchema replaces the stored schema snapshot.
	SaveSchema(ctx context.Context, snap *Snapshot) error

	// LoadSchema returns the stored snapshot, or nil if none was saved.
	LoadSchema(ctx context.Context) (*Snapshot, error)

	// GetNode returns a single node by ID, or nil if not found.
	GetNode(ctx context.Context, nodeID string) (*graph.GraphNode, error)

	// GetNodesByLabel returns all nodes with the given label, ordered by key.
	GetNodesByLabel(ctx context.Context, label graph.NodeLabel) ([]*graph.GraphNode, error)

	// GetChildren returns the children of a node in slot order.
	GetChildren(ctx context.Context, nodeID string) ([]Neighbor, error)

	// GetParents returns the nodes linking to the given node.
	GetParents(ctx context.Context, nodeID string) ([]Neighbor, error)

	// Traverse walks breadth first from startID up to depth edges away,
	// excluding the start node. Depth is capped at MaxTraverseDepth.
	Traverse(ctx context.Context, startID string, depth int, direction Direction) ([]*graph.GraphNode, error)

	// FTSSearch searches node titles, descriptions and relative paths.
	FTSSearch(ctx context.Context, query string, limit int) ([]SearchResult, error)

	// Stats returns the stored node count per label plus totals under
	// "nodes" and "relationships".
	Stats(ctx context.Context) (map[string]int, error)
}

// traverse is the breadth first walk shared by the backends. It holds no
// lock; neighbors synchronizes itself.
func traverse(ctx context.Context, startID string, depth int, neighbors func(id string) ([]Neighbor, error)) ([]*graph.GraphNode, error) {
	if depth > MaxTraverseDepth {
		depth = MaxTraverseDepth
	}

	type item struct {
		id    string
		depth int
	}
	visited := map[string]bool{startID: true}
	queue := []item{{id: startID}}
	var result []*graph.GraphNode

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := queue[0]
		queue = queue[1:]
		if current.depth >= depth {
			continue
		}
		next, err := neighbors(current.id)
		if err != nil {
			return nil, err
		}
		for _, n := range next {
			if visited[n.Node.ID] {
				continue
			}
			visited[n.Node.ID] = true
			result = append(result, n.Node)
			queue = append(queue, item{id: n.Node.ID, depth: current.depth + 1})
		}
	}
	return result, nil
}
