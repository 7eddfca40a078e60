// Package mcp provides the MCP (Model Context Protocol) server for typegraph.
//
// The server answers questions about the stored type graph: full-text search
// over titles and relative paths, node inspection, traversal and subtype
// checks between schema indices of the stored schema.
package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/jsonschema-go/jsonschema"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Benny93/typegraph-go/internal/graph"
	"github.com/Benny93/typegraph-go/internal/ingestion"
	"github.com/Benny93/typegraph-go/internal/schema"
	"github.com/Benny93/typegraph-go/internal/storage"
	"github.com/Benny93/typegraph-go/internal/validator"
)

// Version is reported to MCP clients.
var Version = "dev"

const schemaCacheSize = 16

// Server represents the MCP server.
type Server struct {
	storage storage.Backend
	schemas *lru.Cache[string, *schema.Schema]
	server  *mcp.Server
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server over store.
func NewServer(store storage.Backend) *Server {
	cache, err := lru.New[string, *schema.Schema](schemaCacheSize)
	if err != nil {
		// Only reachable with a non-positive size.
		panic(err)
	}
	s := &Server{
		storage: store,
		schemas: cache,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "typegraph",
			Version: Version,
		}, nil),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "typegraph_query",
			Description: "Full-text search over type titles, descriptions and relative paths. Returns ranked type keys.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query": {Type: "string", Description: "Search text, e.g. a title or a path segment"},
					"limit": {Type: "integer", Description: "Maximum number of results"},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "typegraph_inspect",
			Description: "Show a realized type: kind, constraints, relative paths, children and parents.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"key": {Type: "string", Description: `Type key "<index>#<ordinal>" or a title`},
				},
				Required: []string{"key"},
			},
		},
		{
			Name:        "typegraph_traverse",
			Description: "List the types reachable from a type, breadth first.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"key":       {Type: "string", Description: "Start type key"},
					"depth":     {Type: "integer", Description: "Maximum depth"},
					"direction": {Type: "string", Enum: []any{"children", "parents"}, Description: "Edges to follow"},
				},
				Required: []string{"key"},
			},
		},
		{
			Name:        "typegraph_check",
			Description: "Check whether one schema index is a structural subtype of another in the stored schema.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"sub": {Type: "integer", Description: "Schema index of the candidate subtype"},
					"sup": {Type: "integer", Description: "Schema index of the supertype"},
				},
				Required: []string{"sub", "sup"},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "typegraph://overview",
			Name:        "Type Graph Overview",
			Description: "Node counts per kind and the stored schema snapshot",
			MimeType:    "text/markdown",
		},
		{
			URI:         "typegraph://kinds",
			Name:        "Node Kinds",
			Description: "Node labels and relationship types of the exported graph",
			MimeType:    "text/markdown",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "typegraph_query":
		query, _ := args["query"].(string)
		return s.handleQuery(ctx, query, intArg(args, "limit", 20))
	case "typegraph_inspect":
		key, _ := args["key"].(string)
		return s.handleInspect(ctx, key)
	case "typegraph_traverse":
		key, _ := args["key"].(string)
		direction, _ := args["direction"].(string)
		return s.handleTraverse(ctx, key, intArg(args, "depth", 3), storage.Direction(direction))
	case "typegraph_check":
		sub, okSub := args["sub"].(float64)
		sup, okSup := args["sup"].(float64)
		if !okSub || !okSup || sub < 0 || sup < 0 {
			return "", fmt.Errorf("sub and sup must be schema indices")
		}
		return s.handleCheck(ctx, uint32(sub), uint32(sup))
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "typegraph://overview":
		return s.getOverview(ctx)
	case "typegraph://kinds":
		return getKinds(), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run serves MCP requests on t until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	return s.server.Run(ctx, t)
}

// RunStdio serves MCP requests on stdin and stdout.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}

// Connect starts a session on t without blocking.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

func (s *Server) registerTools() {
	for _, tool := range s.ListTools() {
		name := tool.Name
		s.server.AddTool(&mcp.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := map[string]any{}
			if len(req.Params.Arguments) > 0 {
				if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
					return errorResult(fmt.Errorf("decoding arguments: %w", err)), nil
				}
			}
			text, err := s.CallTool(ctx, name, args)
			if err != nil {
				return errorResult(err), nil
			}
			return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}, nil
		})
	}
}

func (s *Server) registerResources() {
	for _, res := range s.ListResources() {
		uri, mime := res.URI, res.MimeType
		s.server.AddResource(&mcp.Resource{
			URI:         res.URI,
			Name:        res.Name,
			Description: res.Description,
			MIMEType:    res.MimeType,
		}, func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			text, err := s.ReadResource(ctx, uri)
			if err != nil {
				return nil, err
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: mime, Text: text}},
			}, nil
		})
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		IsError: true,
	}
}

func intArg(args map[string]any, key string, def int) int {
	if v, ok := args[key].(float64); ok && v > 0 {
		return int(v)
	}
	return def
}

// Tool handlers

func (s *Server) handleQuery(ctx context.Context, query string, limit int) (string, error) {
	if query == "" {
		return "", fmt.Errorf("query is required")
	}
	results, err := s.storage.FTSSearch(ctx, query, limit)
	if err != nil {
		return "", fmt.Errorf("searching: %w", err)
	}
	if len(results) == 0 {
		return fmt.Sprintf("No types match %q.", query), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Types matching %q\n\n", query)
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. `%s` %s", i+1, r.NodeID, r.Label)
		if r.NodeName != "" {
			fmt.Fprintf(&sb, " %q", r.NodeName)
		}
		fmt.Fprintf(&sb, " (score %.0f)\n", r.Score)
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "   %s\n", r.Snippet)
		}
	}
	return sb.String(), nil
}

// resolveKey accepts a type key or falls back to the best title match.
func (s *Server) resolveKey(ctx context.Context, key string) (*graph.GraphNode, error) {
	if key == "" {
		return nil, fmt.Errorf("key is required")
	}
	node, err := s.storage.GetNode(ctx, key)
	if err != nil {
		return nil, err
	}
	if node != nil {
		return node, nil
	}

	results, err := s.storage.FTSSearch(ctx, key, 10)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		if r.NodeName == key {
			return s.storage.GetNode(ctx, r.NodeID)
		}
	}
	return nil, fmt.Errorf("no type %q in the graph", key)
}

func (s *Server) handleInspect(ctx context.Context, key string) (string, error) {
	node, err := s.resolveKey(ctx, key)
	if err != nil {
		return "", err
	}
	children, err := s.storage.GetChildren(ctx, node.ID)
	if err != nil {
		return "", err
	}
	parents, err := s.storage.GetParents(ctx, node.ID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n\n", describe(node))
	if node.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", node.Description)
	}
	if len(node.Paths) > 0 {
		sb.WriteString("**Paths:**\n")
		for _, p := range node.Paths {
			fmt.Fprintf(&sb, "- %s\n", p)
		}
		sb.WriteString("\n")
	}
	if len(node.Properties) > 0 {
		sb.WriteString("**Properties:**\n")
		keys := make([]string, 0, len(node.Properties))
		for k := range node.Properties {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "- %s: %v\n", k, node.Properties[k])
		}
		sb.WriteString("\n")
	}
	writeNeighbors(&sb, "Children", children)
	writeNeighbors(&sb, "Parents", parents)
	return sb.String(), nil
}

func writeNeighbors(sb *strings.Builder, heading string, ns []storage.Neighbor) {
	if len(ns) == 0 {
		return
	}
	fmt.Fprintf(sb, "**%s (%d):**\n", heading, len(ns))
	for _, n := range ns {
		slot := string(n.Relationship.Type)
		if name := n.Relationship.Name(); name != "" {
			slot += " `" + name + "`"
		}
		fmt.Fprintf(sb, "- %s: %s\n", slot, describe(n.Node))
	}
	sb.WriteString("\n")
}

func describe(n *graph.GraphNode) string {
	if n.Name != "" {
		return fmt.Sprintf("`%s` %s %q", n.ID, n.Label, n.Name)
	}
	return fmt.Sprintf("`%s` %s", n.ID, n.Label)
}

func (s *Server) handleTraverse(ctx context.Context, key string, depth int, direction storage.Direction) (string, error) {
	node, err := s.resolveKey(ctx, key)
	if err != nil {
		return "", err
	}
	if direction == "" {
		direction = storage.DirectionChildren
	}
	if direction != storage.DirectionChildren && direction != storage.DirectionParents {
		return "", fmt.Errorf("direction must be children or parents, got %q", direction)
	}

	nodes, err := s.storage.Traverse(ctx, node.ID, depth, direction)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s of %s (depth %d)\n\n", direction, describe(node), min(depth, storage.MaxTraverseDepth))
	if len(nodes) == 0 {
		sb.WriteString("None.\n")
	}
	for _, n := range nodes {
		fmt.Fprintf(&sb, "- %s\n", describe(n))
	}
	return sb.String(), nil
}

func (s *Server) handleCheck(ctx context.Context, sub, sup uint32) (string, error) {
	sch, err := s.storedSchema(ctx)
	if err != nil {
		return "", err
	}
	if _, err := sch.Node(sub); err != nil {
		return "", err
	}
	if _, err := sch.Node(sup); err != nil {
		return "", err
	}

	var errs validator.ErrorCollector
	validator.EnsureSubtypeOf(sch, sub, sup, &errs)
	if errs.IsEmpty() {
		return fmt.Sprintf("%d is a subtype of %d.", sub, sup), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d is not a subtype of %d:\n\n", sub, sup)
	for _, line := range errs.Errors() {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// storedSchema parses the stored snapshot, caching by content.
func (s *Server) storedSchema(ctx context.Context) (*schema.Schema, error) {
	snap, err := s.storage.LoadSchema(ctx)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("no schema stored. Run 'typegraph convert' first")
	}

	sum := sha256.Sum256(snap.Content)
	key := snap.Path + "@" + hex.EncodeToString(sum[:])
	if sch, ok := s.schemas.Get(key); ok {
		return sch, nil
	}
	loaded, err := ingestion.ParseSchema(snap.Path, snap.Content)
	if err != nil {
		return nil, err
	}
	s.schemas.Add(key, loaded.Schema)
	return loaded.Schema, nil
}

// Resource handlers

func (s *Server) getOverview(ctx context.Context) (string, error) {
	stats, err := s.storage.Stats(ctx)
	if err != nil {
		return "", err
	}
	snap, err := s.storage.LoadSchema(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("# Type Graph Overview\n\n")
	if snap != nil {
		fmt.Fprintf(&sb, "**Schema:** %s (%s, root %d, %s keys)\n", snap.Path, snap.Format, snap.Root, snap.Generator)
		fmt.Fprintf(&sb, "**Stored:** %s\n", snap.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(&sb, "**Nodes:** %d\n", stats["nodes"])
	fmt.Fprintf(&sb, "**Relationships:** %d\n", stats["relationships"])
	sb.WriteString("\n## Nodes by kind\n\n")
	for _, label := range graph.Labels() {
		if n := stats[string(label)]; n > 0 {
			fmt.Fprintf(&sb, "- %s: %d\n", label, n)
		}
	}
	return sb.String(), nil
}

func getKinds() string {
	var sb strings.Builder
	sb.WriteString("# Type Graph Kinds\n\n")
	sb.WriteString("Node IDs are type keys `<schema index>#<ordinal>`. The ordinal tells apart\n")
	sb.WriteString("realizations of one schema node reached under different duplication keys.\n\n")
	sb.WriteString("## Node Labels\n\n")
	sb.WriteString("| Label | Description |\n")
	sb.WriteString("|-------|-------------|\n")
	sb.WriteString("| `namespace` | Object reached from the root through namespaces only |\n")
	sb.WriteString("| `function` | Exposed function with an input and an output |\n")
	sb.WriteString("| `object` | Value object with named properties |\n")
	sb.WriteString("| `list` | Homogeneous list |\n")
	sb.WriteString("| `optional` | Nullable wrapper, may carry a default value |\n")
	sb.WriteString("| `union` | Value matching any variant |\n")
	sb.WriteString("| `either` | Value matching exactly one variant |\n")
	sb.WriteString("| `string`, `integer`, `float`, `boolean`, `file` | Scalars with constraints |\n")
	sb.WriteString("\n## Relationship Types\n\n")
	sb.WriteString("| Type | Source → Target | Properties |\n")
	sb.WriteString("|------|-----------------|------------|\n")
	sb.WriteString("| `property` | Object/Namespace → member | name, required, injected, outjected |\n")
	sb.WriteString("| `item` | List/Optional → item | - |\n")
	sb.WriteString("| `variant` | Union/Either → variant | - |\n")
	sb.WriteString("| `input` | Function → input object | - |\n")
	sb.WriteString("| `output` | Function → output | - |\n")
	return sb.String()
}
