// Package cmd provides CLI command implementations for typegraph.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/Benny93/typegraph-go/internal/graph"
	"github.com/Benny93/typegraph-go/internal/ingestion"
	"github.com/Benny93/typegraph-go/internal/storage"
	"github.com/Benny93/typegraph-go/internal/validator"
	"github.com/Benny93/typegraph-go/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	// ErrNotSubtype is returned by check when the subtype relation fails.
	ErrNotSubtype = errors.New("not a subtype")

	// ErrBreakingChange is returned by diff when the new schema breaks
	// callers of the old one.
	ErrBreakingChange = errors.New("breaking change")
)

// Globals are flags shared by every command.
type Globals struct {
	Dir       string `env:"TYPEGRAPH_DIR" default:".typegraph" help:"Index directory"`
	Generator string `env:"TYPEGRAPH_GENERATOR" default:"default" enum:"default,branch" help:"Duplication key generator (default|branch)"`
	Root      uint32 `env:"TYPEGRAPH_ROOT" default:"0" help:"Schema index of the namespace root"`
	Verbose   bool   `short:"v" help:"Enable verbose output"`
	Quiet     bool   `short:"q" help:"Suppress non-essential output"`

	out io.Writer
}

func (g *Globals) stdout() io.Writer {
	if g.out == nil {
		return os.Stdout
	}
	return g.out
}

func (g *Globals) logger() *consoleLogger {
	return &consoleLogger{out: g.stdout(), verbose: g.Verbose, quiet: g.Quiet}
}

func (g *Globals) options() ingestion.Options {
	log := g.logger()
	opts := ingestion.Options{Root: g.Root, Generator: g.Generator, Logger: log}
	if g.Verbose {
		opts.Tracer = log.tracer()
	}
	return opts
}

func (g *Globals) progress() ingestion.ProgressCallback {
	if g.Quiet {
		return nil
	}
	w := g.stdout()
	return func(phase string, pct float64) {
		fmt.Fprintf(w, "\r\033[K%s (%.0f%%)", phase, pct*100)
	}
}

func (g *Globals) dbPath() string {
	return filepath.Join(g.Dir, "badger")
}

// ConvertCmd converts a schema into a type graph and stores it.
type ConvertCmd struct {
	Schema  string `arg:"" type:"existingfile" help:"Schema file (.json, .yaml)"`
	NoStore bool   `help:"Convert and report without writing the index"`
}

// Run executes the convert command.
func (c *ConvertCmd) Run(g *Globals) error {
	ctx := context.Background()
	w := g.stdout()

	var store storage.Backend
	if !c.NoStore {
		badger, err := openStorage(g)
		if err != nil {
			return err
		}
		defer func() { _ = badger.Close() }()
		store = badger
	}

	if !g.Quiet {
		green.Fprintf(w, "Converting %s\n", c.Schema)
	}
	_, result, err := ingestion.RunPipeline(ctx, c.Schema, store, g.options(), g.progress())
	if !g.Quiet {
		fmt.Fprintln(w)
	}
	if err != nil {
		return fmt.Errorf("running pipeline: %w", err)
	}

	green.Fprintln(w, "✓ Conversion complete")
	fmt.Fprintf(w, "  Types:          %d\n", result.Nodes)
	fmt.Fprintf(w, "  Relationships:  %d\n", result.Relationships)
	fmt.Fprintf(w, "  Type keys:      %d\n", result.Keys)
	fmt.Fprintf(w, "  Aliases:        %d\n", result.Aliases)
	fmt.Fprintf(w, "  Short-circuits: %d\n", result.ShortCircuits)
	fmt.Fprintf(w, "  Unreachable:    %d\n", len(result.Unreachable))
	fmt.Fprintf(w, "  Duration:       %.2fs\n", result.DurationSecs)
	return nil
}

// CheckCmd checks the subtype relation between two schema indices.
type CheckCmd struct {
	Schema string `arg:"" type:"existingfile" help:"Schema file"`
	Sub    uint32 `required:"" help:"Schema index of the candidate subtype"`
	Sup    uint32 `required:"" help:"Schema index of the supertype"`
}

// Run executes the check command.
func (c *CheckCmd) Run(g *Globals) error {
	w := g.stdout()
	loaded, err := ingestion.LoadSchemaFile(c.Schema)
	if err != nil {
		return err
	}
	if err := loaded.Schema.Validate(); err != nil {
		return err
	}
	for _, idx := range []uint32{c.Sub, c.Sup} {
		if _, err := loaded.Schema.Node(idx); err != nil {
			return err
		}
	}

	var errs validator.ErrorCollector
	validator.EnsureSubtypeOf(loaded.Schema, c.Sub, c.Sup, &errs)
	if errs.IsEmpty() {
		green.Fprintf(w, "✓ %d is a subtype of %d\n", c.Sub, c.Sup)
		return nil
	}
	red.Fprintf(w, "✗ %d is not a subtype of %d\n", c.Sub, c.Sup)
	printDiagnostics(w, "  ", &errs)
	return fmt.Errorf("%d to %d: %w", c.Sub, c.Sup, ErrNotSubtype)
}

// DiffCmd checks that a schema can replace an older version of itself.
type DiffCmd struct {
	Schema  string `arg:"" type:"existingfile" help:"New schema file"`
	Against string `xor:"base" help:"Git revision holding the old version of the same file"`
	Old     string `xor:"base" type:"existingfile" help:"Old schema file"`
	Repo    string `default:"." help:"Path inside the git repository used with --against"`
}

// Run executes the diff command.
func (c *DiffCmd) Run(g *Globals) error {
	w := g.stdout()
	if (c.Against == "") == (c.Old == "") {
		return fmt.Errorf("exactly one of --against or --old is required")
	}

	newer, err := ingestion.LoadSchemaFile(c.Schema)
	if err != nil {
		return err
	}

	var older *ingestion.Loaded
	base := c.Old
	if c.Against != "" {
		abs, absErr := filepath.Abs(c.Schema)
		if absErr != nil {
			return fmt.Errorf("resolving %s: %w", c.Schema, absErr)
		}
		older, err = ingestion.LoadSchemaAtRevision(c.Repo, c.Against, abs)
		base = c.Schema + "@" + c.Against
	} else {
		older, err = ingestion.LoadSchemaFile(c.Old)
	}
	if err != nil {
		return err
	}

	report, err := validator.CheckEvolution(older.Schema, newer.Schema)
	if err != nil {
		return fmt.Errorf("comparing schemas: %w", err)
	}

	bold.Fprintf(w, "%s → %s\n", base, c.Schema)
	printReport(w, report)
	if report.Compatible() {
		green.Fprintln(w, "✓ Compatible")
		return nil
	}
	red.Fprintf(w, "✗ %d removed, %d changed incompatibly\n", len(report.Removed), len(report.Breaking()))
	return ErrBreakingChange
}

// InspectCmd shows one stored type with its neighbours.
type InspectCmd struct {
	Key string `arg:"" help:"Type key (<index>#<ordinal>) or title"`
}

// Run executes the inspect command.
func (c *InspectCmd) Run(g *Globals) error {
	ctx := context.Background()
	w := g.stdout()
	store, err := loadStorage(g)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	node, err := findType(ctx, store, c.Key)
	if err != nil {
		return err
	}
	if node == nil {
		fmt.Fprintf(w, "Type '%s' not found in the graph.\n", c.Key)
		return nil
	}

	bold.Fprintf(w, "%s %s", node.ID, node.Label)
	if node.Name != "" {
		fmt.Fprintf(w, " %q", node.Name)
	}
	fmt.Fprintln(w)
	if node.Description != "" {
		faint.Fprintf(w, "%s\n", node.Description)
	}
	for _, p := range node.Paths {
		fmt.Fprintf(w, "  at %s\n", p)
	}
	for _, k := range slices.Sorted(maps.Keys(node.Properties)) {
		fmt.Fprintf(w, "  %s: %v\n", k, node.Properties[k])
	}

	children, err := store.GetChildren(ctx, node.ID)
	if err != nil {
		return err
	}
	parents, err := store.GetParents(ctx, node.ID)
	if err != nil {
		return err
	}
	printNeighbors(w, "Children", children)
	printNeighbors(w, "Parents", parents)
	return nil
}

func printNeighbors(w io.Writer, heading string, ns []storage.Neighbor) {
	if len(ns) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s (%d):\n", heading, len(ns))
	for _, n := range ns {
		slot := string(n.Relationship.Type)
		if name := n.Relationship.Name(); name != "" {
			slot += " " + name
		}
		fmt.Fprintf(w, "  %-16s %s %s", slot, n.Node.ID, n.Node.Label)
		if n.Node.Name != "" {
			fmt.Fprintf(w, " %q", n.Node.Name)
		}
		fmt.Fprintln(w)
	}
}

// QueryCmd searches the stored type graph.
type QueryCmd struct {
	Query string `arg:"" help:"Search query"`
	Limit int    `short:"n" default:"20" help:"Maximum results"`
}

// Run executes the query command.
func (c *QueryCmd) Run(g *Globals) error {
	ctx := context.Background()
	w := g.stdout()
	store, err := loadStorage(g)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	results, err := store.FTSSearch(ctx, c.Query, c.Limit)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if len(results) == 0 {
		fmt.Fprintln(w, "No results found")
		return nil
	}

	for i, r := range results {
		fmt.Fprintf(w, "%d. %s %s", i+1, r.NodeID, r.Label)
		if r.NodeName != "" {
			fmt.Fprintf(w, " %q", r.NodeName)
		}
		faint.Fprintf(w, " (score %.0f)\n", r.Score)
		if r.Snippet != "" {
			fmt.Fprintf(w, "   %s\n", r.Snippet)
		}
	}
	return nil
}

// WatchCmd rebuilds the index whenever the schema file changes.
type WatchCmd struct {
	Schema   string        `arg:"" type:"existingfile" help:"Schema file to watch"`
	Debounce time.Duration `default:"500ms" help:"Quiet period before rebuilding"`
}

// Run executes the watch command.
func (c *WatchCmd) Run(g *Globals) error {
	w := g.stdout()
	store, err := openStorage(g)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signalContext()
	defer cancel()

	opts := g.options()
	opts.Debounce = c.Debounce

	// An initial build so the index matches the file before the first edit.
	printWatchEvent(w, ingestion.Reindex(ctx, c.Schema, store, opts))

	fmt.Fprintf(w, "Watching %s for changes (Ctrl+C to stop)\n", c.Schema)
	err = ingestion.WatchSchema(ctx, c.Schema, store, opts, func(ev *ingestion.WatchEvent) {
		printWatchEvent(w, ev)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch error: %w", err)
	}

	fmt.Fprintln(w, "Watch mode stopped.")
	return nil
}

func printWatchEvent(w io.Writer, ev *ingestion.WatchEvent) {
	stamp := time.Now().Format("15:04:05")
	if ev.Err != nil {
		red.Fprintf(w, "[%s] ✗ %s: %v\n", stamp, ev.Path, ev.Err)
		return
	}
	green.Fprintf(w, "[%s] ✓ %s: %d types, %d relationships\n", stamp, ev.Path, ev.Result.Nodes, ev.Result.Relationships)
	if ev.Report != nil && !ev.Report.Compatible() {
		yellow.Fprintln(w, "  breaking change against the previous version:")
		printReport(w, ev.Report)
	}
}

// MCPCmd starts the MCP server.
type MCPCmd struct {
	Watch string `type:"existingfile" help:"Schema file to keep re-indexing while serving"`
}

// Run executes the mcp command.
func (c *MCPCmd) Run(g *Globals) error {
	ctx, cancel := signalContext()
	defer cancel()

	var (
		store *storage.BadgerBackend
		err   error
	)
	if c.Watch != "" {
		store, err = openStorage(g)
	} else {
		store, err = loadStorage(g)
	}
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	// Stdout carries JSON-RPC only.
	if c.Watch != "" {
		opts := g.options()
		opts.Logger = &consoleLogger{out: os.Stderr, quiet: true}
		opts.Tracer = nil
		go func() {
			ingestion.Reindex(ctx, c.Watch, store, opts)
			err := ingestion.WatchSchema(ctx, c.Watch, store, opts, func(ev *ingestion.WatchEvent) {
				if ev.Err != nil {
					fmt.Fprintf(os.Stderr, "reindex %s: %v\n", ev.Path, ev.Err)
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)
			}
		}()
	}

	mcp.Version = Version
	server := mcp.NewServer(store)
	return server.RunStdio(ctx)
}

// StatusCmd shows the stored index.
type StatusCmd struct{}

// Run executes the status command.
func (c *StatusCmd) Run(g *Globals) error {
	ctx := context.Background()
	w := g.stdout()
	store, err := loadStorage(g)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	snap, err := store.LoadSchema(ctx)
	if err != nil {
		return err
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Index status for %s\n", g.Dir)
	if snap != nil {
		fmt.Fprintf(w, "  Schema:         %s (%s)\n", snap.Path, snap.Format)
		fmt.Fprintf(w, "  Root:           %d\n", snap.Root)
		fmt.Fprintf(w, "  Generator:      %s\n", snap.Generator)
		fmt.Fprintf(w, "  Converted:      %s\n", snap.CreatedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "  Types:          %d\n", stats["nodes"])
	fmt.Fprintf(w, "  Relationships:  %d\n", stats["relationships"])
	for _, label := range graph.Labels() {
		if n := stats[string(label)]; n > 0 {
			fmt.Fprintf(w, "    %-12s %d\n", label, n)
		}
	}
	return nil
}

// CleanCmd deletes the index.
type CleanCmd struct {
	Force bool `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run(g *Globals) error {
	w := g.stdout()
	if _, err := os.Stat(g.Dir); os.IsNotExist(err) {
		return fmt.Errorf("no index found at %s. Nothing to clean", g.Dir)
	}

	if !c.Force {
		fmt.Fprintf(w, "Delete index at %s? [y/N] ", g.Dir)
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(w, "Aborted")
			return nil
		}
	}

	if err := os.RemoveAll(g.Dir); err != nil {
		return fmt.Errorf("deleting index: %w", err)
	}

	green.Fprintf(w, "Deleted %s\n", g.Dir)
	return nil
}

// Helper functions

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// openStorage opens the index for writing, creating it if needed.
func openStorage(g *Globals) (*storage.BadgerBackend, error) {
	if err := os.MkdirAll(g.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", g.Dir, err)
	}
	store := storage.NewBadgerBackend()
	if err := store.Initialize(g.dbPath(), false); err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, nil
}

// loadStorage opens an existing index read only.
func loadStorage(g *Globals) (*storage.BadgerBackend, error) {
	if _, err := os.Stat(g.dbPath()); os.IsNotExist(err) {
		return nil, fmt.Errorf("no index found at %s. Run 'typegraph convert' first", g.Dir)
	}

	store := storage.NewBadgerBackend()
	if err := store.Initialize(g.dbPath(), true); err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, nil
}

// findType resolves a type key, falling back to an exact title match and then
// to the best search hit.
func findType(ctx context.Context, store storage.Backend, key string) (*graph.GraphNode, error) {
	node, err := store.GetNode(ctx, key)
	if err != nil || node != nil {
		return node, err
	}

	results, err := store.FTSSearch(ctx, key, 10)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		if r.NodeName == key {
			return store.GetNode(ctx, r.NodeID)
		}
	}
	if len(results) > 0 {
		return store.GetNode(ctx, results[0].NodeID)
	}
	return nil, nil
}

// CLI is the root Kong command structure.
type CLI struct {
	Globals

	Version kong.VersionFlag `help:"Show version information"`

	// Commands
	Convert ConvertCmd `cmd:"" help:"Convert a schema into a type graph and index it"`
	Check   CheckCmd   `cmd:"" help:"Check that one schema index is a subtype of another"`
	Diff    DiffCmd    `cmd:"" help:"Check that a schema can replace an older version"`
	Inspect InspectCmd `cmd:"" help:"Show a stored type with its children and parents"`
	Query   QueryCmd   `cmd:"" help:"Search the stored type graph"`
	Watch   WatchCmd   `cmd:"" help:"Re-index a schema file on every change"`
	MCP     MCPCmd     `cmd:"" help:"Start MCP server (stdio transport)"`
	Status  StatusCmd  `cmd:"" help:"Show the stored index"`
	Clean   CleanCmd   `cmd:"" help:"Delete the index"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// SetOutput redirects command output, which defaults to stdout.
func (c *CLI) SetOutput(w io.Writer) {
	c.out = w
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	parser, err := kong.New(c,
		kong.Name("typegraph"),
		kong.Description("Structural type graphs and subtype checks for typegraph schemas"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		var perr *kong.ParseError
		if errors.As(err, &perr) && perr.Context != nil {
			_ = perr.Context.PrintUsage(true)
		}
		return err
	}
	return kongCtx.Run(&c.Globals)
}

// LoadEnv loads environment files, .env when none are given. Missing files
// are skipped; unreadable or malformed ones are reported.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}
