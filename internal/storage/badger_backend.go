package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/Benny93/typegraph-go/internal/graph"
)

// Key prefixes for different data types
const (
	prefixNode     = "n:"     // node data
	prefixRel      = "r:"     // relationship data
	prefixIndex    = "i:"     // adjacency indexes
	prefixIncoming = "i:in:"  // incoming relationships
	prefixOutgoing = "i:out:" // outgoing relationships
	keySchema      = "s:schema"
)

// BadgerBackend is a BadgerDB-backed storage implementation.
//
// Node and relationship records are stored as JSON. Adjacency is kept in two
// index keyspaces, i:out:{source}:{rel} and i:in:{target}:{rel}, whose values
// are relationship IDs. The full-text index lives in memory and is rebuilt
// from the node records on Initialize.
type BadgerBackend struct {
	db       *badger.DB
	mu       sync.RWMutex
	fts      *ftsIndex
	counts   map[string]int
	readOnly bool
}

// NewBadgerBackend creates a new BadgerDB backend.
func NewBadgerBackend() *BadgerBackend {
	return &BadgerBackend{}
}

// Initialize opens or creates the BadgerDB database at the given path.
func (b *BadgerBackend) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR)
	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}
	b.db = db
	b.readOnly = readOnly

	if err := b.rebuildIndex(); err != nil {
		_ = db.Close()
		b.db = nil
		return err
	}
	return nil
}

// rebuildIndex recomputes the FTS index and counts from the database.
// Must be called with the write lock held.
func (b *BadgerBackend) rebuildIndex() error {
	fts := newFTSIndex()
	counts := map[string]int{"nodes": 0, "relationships": 0}

	err := b.db.View(func(txn *badger.Txn) error {
		err := scan(txn, prefixNode, func(val []byte) error {
			var node graph.GraphNode
			if err := json.Unmarshal(val, &node); err != nil {
				return fmt.Errorf("unmarshaling node: %w", err)
			}
			fts.add(&node)
			counts["nodes"]++
			counts[string(node.Label)]++
			return nil
		})
		if err != nil {
			return err
		}
		return scanKeys(txn, prefixRel, func() { counts["relationships"]++ })
	})
	if err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}

	b.fts = fts
	b.counts = counts
	return nil
}

// Close releases all resources held by the backend.
func (b *BadgerBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

// BulkLoad replaces the stored graph with the contents of g.
func (b *BadgerBackend) BulkLoad(ctx context.Context, g *graph.Graph) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.writable(); err != nil {
		return err
	}
	if err := b.db.DropPrefix([]byte(prefixNode), []byte(prefixRel), []byte(prefixIndex)); err != nil {
		return fmt.Errorf("clearing graph: %w", err)
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	fts := newFTSIndex()
	counts := map[string]int{"nodes": 0, "relationships": 0}

	for _, node := range g.Nodes() {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := json.Marshal(node)
		if err != nil {
			return fmt.Errorf("marshaling node: %w", err)
		}
		if err := wb.Set(nodeKey(node.ID), data); err != nil {
			return fmt.Errorf("setting node: %w", err)
		}
		fts.add(node)
		counts["nodes"]++
		counts[string(node.Label)]++
	}

	for _, rel := range g.Relationships() {
		data, err := json.Marshal(rel)
		if err != nil {
			return fmt.Errorf("marshaling relationship: %w", err)
		}
		if err := wb.Set(relKey(rel.ID), data); err != nil {
			return fmt.Errorf("setting relationship: %w", err)
		}
		if err := wb.Set(outKey(rel.Source, rel.ID), []byte(rel.ID)); err != nil {
			return fmt.Errorf("setting outgoing index: %w", err)
		}
		if err := wb.Set(inKey(rel.Target, rel.ID), []byte(rel.ID)); err != nil {
			return fmt.Errorf("setting incoming index: %w", err)
		}
		counts["relationships"]++
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flushing graph: %w", err)
	}
	b.fts = fts
	b.counts = counts
	return nil
}

// SaveSchema stores the schema snapshot under a single key.
func (b *BadgerBackend) SaveSchema(_ context.Context, snap *Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.writable(); err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keySchema), data)
	}); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

// LoadSchema returns the stored snapshot, or nil if none was saved.
func (b *BadgerBackend) LoadSchema(_ context.Context) (*Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.open(); err != nil {
		return nil, err
	}
	var snap *Snapshot
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keySchema))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		snap = &Snapshot{}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, snap)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	return snap, nil
}

// GetNode returns a single node by ID, or nil if not found.
func (b *BadgerBackend) GetNode(_ context.Context, nodeID string) (*graph.GraphNode, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.open(); err != nil {
		return nil, err
	}
	var node *graph.GraphNode
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		node, err = getNode(txn, nodeID)
		return err
	})
	return node, err
}

// GetNodesByLabel returns all nodes with the given label.
func (b *BadgerBackend) GetNodesByLabel(ctx context.Context, label graph.NodeLabel) ([]*graph.GraphNode, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.open(); err != nil {
		return nil, err
	}
	var nodes []*graph.GraphNode
	err := b.db.View(func(txn *badger.Txn) error {
		return scan(txn, prefixNode, func(val []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var node graph.GraphNode
			if err := json.Unmarshal(val, &node); err != nil {
				return fmt.Errorf("unmarshaling node: %w", err)
			}
			if node.Label == label {
				nodes = append(nodes, &node)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(nodes, graph.CompareNodes)
	return nodes, nil
}

// GetChildren returns the children of a node in slot order.
func (b *BadgerBackend) GetChildren(_ context.Context, nodeID string) ([]Neighbor, error) {
	return b.neighbors(nodeID, DirectionChildren)
}

// GetParents returns the nodes linking to nodeID.
func (b *BadgerBackend) GetParents(_ context.Context, nodeID string) ([]Neighbor, error) {
	return b.neighbors(nodeID, DirectionParents)
}

// Traverse walks the graph breadth first from startID.
func (b *BadgerBackend) Traverse(ctx context.Context, startID string, depth int, direction Direction) ([]*graph.GraphNode, error) {
	return traverse(ctx, startID, depth, func(id string) ([]Neighbor, error) {
		return b.neighbors(id, direction)
	})
}

func (b *BadgerBackend) neighbors(nodeID string, direction Direction) ([]Neighbor, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.open(); err != nil {
		return nil, err
	}

	prefix := prefixOutgoing + nodeID + ":"
	if direction == DirectionParents {
		prefix = prefixIncoming + nodeID + ":"
	}

	var out []Neighbor
	err := b.db.View(func(txn *badger.Txn) error {
		var relIDs []string
		if err := scan(txn, prefix, func(val []byte) error {
			relIDs = append(relIDs, string(val))
			return nil
		}); err != nil {
			return err
		}

		for _, relID := range relIDs {
			rel, err := getRel(txn, relID)
			if err != nil {
				return err
			}
			if rel == nil {
				continue
			}
			other := rel.Target
			if direction == DirectionParents {
				other = rel.Source
			}
			node, err := getNode(txn, other)
			if err != nil {
				return err
			}
			if node != nil {
				out = append(out, Neighbor{Relationship: rel, Node: node})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading neighbors of %s: %w", nodeID, err)
	}

	if direction == DirectionParents {
		slices.SortFunc(out, func(a, b Neighbor) int {
			if c := graph.CompareNodes(a.Node, b.Node); c != 0 {
				return c
			}
			return graph.CompareSlots(a.Relationship, b.Relationship)
		})
	} else {
		slices.SortFunc(out, func(a, b Neighbor) int {
			return graph.CompareSlots(a.Relationship, b.Relationship)
		})
	}
	return out, nil
}

// FTSSearch searches node titles, descriptions and relative paths.
func (b *BadgerBackend) FTSSearch(_ context.Context, query string, limit int) ([]SearchResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.open(); err != nil {
		return nil, err
	}
	var lookupErr error
	results := b.fts.search(query, limit, func(id string) *graph.GraphNode {
		var node *graph.GraphNode
		err := b.db.View(func(txn *badger.Txn) error {
			var err error
			node, err = getNode(txn, id)
			return err
		})
		if err != nil && lookupErr == nil {
			lookupErr = err
		}
		return node
	})
	if lookupErr != nil {
		return nil, lookupErr
	}
	return results, nil
}

// Stats returns the node count per label plus totals.
func (b *BadgerBackend) Stats(_ context.Context) (map[string]int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.open(); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(b.counts))
	for k, v := range b.counts {
		if v > 0 || k == "nodes" || k == "relationships" {
			out[k] = v
		}
	}
	return out, nil
}

// open reports an error if the backend is not initialized.
func (b *BadgerBackend) open() error {
	if b.db == nil {
		return errors.New("badger backend not initialized")
	}
	return nil
}

func (b *BadgerBackend) writable() error {
	if err := b.open(); err != nil {
		return err
	}
	if b.readOnly {
		return ErrReadOnly
	}
	return nil
}

func getNode(txn *badger.Txn, nodeID string) (*graph.GraphNode, error) {
	item, err := txn.Get(nodeKey(nodeID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting node: %w", err)
	}
	var node graph.GraphNode
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &node)
	}); err != nil {
		return nil, fmt.Errorf("unmarshaling node: %w", err)
	}
	return &node, nil
}

func getRel(txn *badger.Txn, relID string) (*graph.GraphRelationship, error) {
	item, err := txn.Get(relKey(relID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting relationship: %w", err)
	}
	var rel graph.GraphRelationship
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rel)
	}); err != nil {
		return nil, fmt.Errorf("unmarshaling relationship: %w", err)
	}
	return &rel, nil
}

// scan calls fn with the value of every key under prefix.
func scan(txn *badger.Txn, prefix string, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

// scanKeys calls fn once per key under prefix without fetching values.
func scanKeys(txn *badger.Txn, prefix string, fn func()) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		fn()
	}
	return nil
}

func nodeKey(nodeID string) []byte { return []byte(prefixNode + nodeID) }

func relKey(relID string) []byte { return []byte(prefixRel + relID) }

func outKey(source, relID string) []byte {
	return []byte(prefixOutgoing + source + ":" + relID)
}

func inKey(target, relID string) []byte {
	return []byte(prefixIncoming + target + ":" + relID)
}
