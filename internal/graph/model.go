// Package graph provides the exported form of a realized type graph.
//
// Every realized node becomes a GraphNode keyed by its type key ("3#0") and
// every linked child slot becomes a GraphRelationship. The exported graph is
// plain data: it can be indexed in memory, persisted and queried without
// holding the linked typegraph alive.
package graph

import (
	"fmt"

	"github.com/Benny93/typegraph-go/internal/typegraph"
)

// NodeLabel represents the kind of a graph node.
type NodeLabel string

const (
	NodeBoolean   NodeLabel = "boolean"
	NodeInteger   NodeLabel = "integer"
	NodeFloat     NodeLabel = "float"
	NodeString    NodeLabel = "string"
	NodeFile      NodeLabel = "file"
	NodeOptional  NodeLabel = "optional"
	NodeList      NodeLabel = "list"
	NodeObject    NodeLabel = "object"
	NodeNamespace NodeLabel = "namespace"
	NodeUnion     NodeLabel = "union"
	NodeEither    NodeLabel = "either"
	NodeFunction  NodeLabel = "function"
)

// Labels lists every node label in a stable order.
func Labels() []NodeLabel {
	return []NodeLabel{
		NodeNamespace, NodeFunction, NodeObject, NodeList, NodeOptional,
		NodeUnion, NodeEither, NodeString, NodeInteger, NodeFloat,
		NodeBoolean, NodeFile,
	}
}

// RelType represents the child slot a relationship was linked from.
type RelType string

const (
	RelProperty RelType = "property"
	RelItem     RelType = "item"
	RelVariant  RelType = "variant"
	RelInput    RelType = "input"
	RelOutput   RelType = "output"
)

// GraphNode is one realized type.
type GraphNode struct {
	// ID is the type key string, "<index>#<ordinal>".
	ID string `json:"id"`

	Label       NodeLabel `json:"label"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`

	// SchemaIndex and Ordinal are the two halves of the type key.
	SchemaIndex uint32 `json:"schema_index"`
	Ordinal     uint32 `json:"ordinal"`

	// Paths are the relative paths that resolved to this node, the first one
	// being the path it was created for.
	Paths []string `json:"paths,omitempty"`

	// Properties holds kind specific metadata (constraints, namespace path,
	// materializer).
	Properties map[string]any `json:"properties,omitempty"`
}

// Key parses the node ID.
func (n *GraphNode) Key() (typegraph.TypeKey, error) {
	return typegraph.ParseTypeKey(n.ID)
}

// GraphRelationship is a directed parent to child edge.
type GraphRelationship struct {
	ID     string  `json:"id"`
	Type   RelType `json:"type"`
	Source string  `json:"source"`
	Target string  `json:"target"`

	// Position orders siblings: property declaration order or variant ordinal.
	Position int `json:"position"`

	// Properties holds edge metadata such as the property name and whether it
	// is required or injected.
	Properties map[string]any `json:"properties,omitempty"`
}

// Name returns the property name of a property edge, or "".
func (r *GraphRelationship) Name() string {
	if s, ok := r.Properties["name"].(string); ok {
		return s
	}
	return ""
}

// GenerateRelID creates a deterministic relationship ID.
// Format: {type}:{source}:{position}
func GenerateRelID(relType RelType, source string, position int) string {
	return fmt.Sprintf("%s:%s:%d", relType, source, position)
}
