// Package ingestion turns schema files into stored type graphs.
//
// RunPipeline loads a schema, converts it into a linked typegraph, exports
// the graph and hands it to a storage backend. WatchSchema reruns the
// pipeline whenever the file changes and checks the new version against the
// stored one.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Benny93/typegraph-go/internal/conversion"
	"github.com/Benny93/typegraph-go/internal/graph"
	"github.com/Benny93/typegraph-go/internal/parsers"
	"github.com/Benny93/typegraph-go/internal/schema"
	"github.com/Benny93/typegraph-go/internal/storage"
	"github.com/Benny93/typegraph-go/internal/typegraph"
)

// Key generator names accepted by Options.Generator.
const (
	GeneratorDefault = "default"
	GeneratorBranch  = "branch"
)

// ErrUnknownGenerator is returned for an unrecognized Options.Generator.
var ErrUnknownGenerator = errors.New("unknown key generator")

// Options configures a pipeline run.
type Options struct {
	// Root is the schema index of the namespace root.
	Root uint32

	// Generator selects the duplication key generator, GeneratorDefault when
	// empty.
	Generator string

	// Tracer observes every conversion step.
	Tracer conversion.Tracer

	// Logger receives diagnostics. Nil discards them.
	Logger Logger

	// Debounce is the quiet period WatchSchema waits for after a change.
	// Zero means DefaultDebounce.
	Debounce time.Duration
}

func (o Options) logger() Logger {
	if o.Logger == nil {
		return noopLogger{}
	}
	return o.Logger
}

func (o Options) generator() string {
	if o.Generator == "" {
		return GeneratorDefault
	}
	return o.Generator
}

// PipelineResult summarizes a pipeline run.
type PipelineResult struct {
	Nodes         int
	Relationships int

	// Keys is the number of distinct type keys, Aliases the number of extra
	// relative paths that resolved to an existing key.
	Keys    int
	Aliases int

	ShortCircuits int
	Unreachable   []Unreachable
	DurationSecs  float64
}

// ProgressCallback is called with phase name and progress (0.0-1.0).
type ProgressCallback func(phase string, progress float64)

// Pipeline phases, in order.
const (
	PhaseLoading     = "Loading schema"
	PhaseValidating  = "Validating references"
	PhaseExpanding   = "Expanding types"
	PhaseLinking     = "Linking"
	PhaseExporting   = "Exporting graph"
	PhaseUnreachable = "Detecting unreachable nodes"
	PhaseStoring     = "Loading to storage"
)

// Loaded is a parsed schema file.
type Loaded struct {
	Path    string
	Format  string
	Content []byte
	Schema  *schema.Schema
}

// LoadSchemaFile reads and parses the schema file at path.
func LoadSchemaFile(path string) (*Loaded, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}
	return ParseSchema(path, content)
}

// ParseSchema parses content with the parser selected by path.
func ParseSchema(path string, content []byte) (*Loaded, error) {
	p, err := parsers.ForPath(path)
	if err != nil {
		return nil, err
	}
	s, err := p.Parse(path, content)
	if err != nil {
		return nil, err
	}
	return &Loaded{Path: path, Format: p.Format(), Content: content, Schema: s}, nil
}

// RunPipeline runs the full pipeline on the schema file at path. If store is
// nil the graph is built but not persisted.
func RunPipeline(
	ctx context.Context,
	path string,
	store storage.Backend,
	opts Options,
	progress ProgressCallback,
) (*graph.Graph, *PipelineResult, error) {
	report := reporter(progress)

	report(PhaseLoading, 0.0)
	loaded, err := LoadSchemaFile(path)
	if err != nil {
		return nil, nil, err
	}
	report(PhaseLoading, 1.0)
	opts.logger().Debugf("loaded %s: %d nodes (%s)", path, loaded.Schema.Len(), loaded.Format)

	return runLoaded(ctx, loaded, store, opts, progress)
}

func runLoaded(ctx context.Context, loaded *Loaded, store storage.Backend, opts Options, progress ProgressCallback) (*graph.Graph, *PipelineResult, error) {
	report := reporter(progress)
	g, result, err := Build(ctx, loaded.Schema, opts, progress)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return g, result, nil
	}

	start := time.Now()
	report(PhaseStoring, 0.0)
	if err := store.BulkLoad(ctx, g); err != nil {
		return nil, nil, fmt.Errorf("bulk load: %w", err)
	}
	snap := &storage.Snapshot{
		Path:      loaded.Path,
		Format:    loaded.Format,
		Content:   loaded.Content,
		Root:      opts.Root,
		Generator: opts.generator(),
		CreatedAt: time.Now().UTC(),
	}
	if err := store.SaveSchema(ctx, snap); err != nil {
		return nil, nil, fmt.Errorf("saving schema snapshot: %w", err)
	}
	report(PhaseStoring, 1.0)
	result.DurationSecs += time.Since(start).Seconds()
	return g, result, nil
}

// Build converts an in-memory schema and exports its graph. It runs every
// phase of RunPipeline except loading and storing.
func Build(ctx context.Context, s *schema.Schema, opts Options, progress ProgressCallback) (*graph.Graph, *PipelineResult, error) {
	start := time.Now()
	report := reporter(progress)
	log := opts.logger()

	report(PhaseValidating, 0.0)
	if err := s.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validating schema: %w", err)
	}
	report(PhaseValidating, 1.0)

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var (
		g   *graph.Graph
		res *PipelineResult
		err error
	)
	switch opts.generator() {
	case GeneratorDefault:
		g, res, err = build[conversion.DefaultKey](s, conversion.DefaultKeyGenerator{}, opts, report)
	case GeneratorBranch:
		g, res, err = build[typegraph.ValueTypeKind](s, conversion.BranchKeyGenerator{}, opts, report)
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownGenerator, opts.Generator)
	}
	if err != nil {
		return nil, nil, err
	}

	for _, u := range res.Unreachable {
		log.Warnf("unreachable: %s", u)
	}
	res.DurationSecs = time.Since(start).Seconds()
	log.Infof("converted %d keys (%d aliases, %d short circuits)", res.Keys, res.Aliases, res.ShortCircuits)
	return g, res, nil
}

func build[K comparable](s *schema.Schema, gen conversion.DuplicationKeyGenerator[K], opts Options, report ProgressCallback) (*graph.Graph, *PipelineResult, error) {
	var convOpts []conversion.Option
	total := float64(s.Len())
	steps := 0
	convOpts = append(convOpts, conversion.WithTracer(func(ev conversion.Event) {
		steps++
		if total > 0 {
			report(PhaseExpanding, min(float64(steps)/total, 0.99))
		}
		if opts.Tracer != nil {
			opts.Tracer(ev)
		}
	}))

	report(PhaseExpanding, 0.0)
	res, err := conversion.ConvertFrom(s, opts.Root, gen, convOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("converting schema: %w", err)
	}
	report(PhaseExpanding, 1.0)
	// Links are resolved by ConvertFrom once expansion drains.
	report(PhaseLinking, 1.0)

	report(PhaseExporting, 0.0)
	g, err := graph.Export(res)
	if err != nil {
		return nil, nil, fmt.Errorf("exporting graph: %w", err)
	}
	report(PhaseExporting, 1.0)

	report(PhaseUnreachable, 0.0)
	unreachable, err := FindUnreachable(s, res.Map.Unvisited())
	if err != nil {
		return nil, nil, err
	}
	report(PhaseUnreachable, 1.0)

	return g, &PipelineResult{
		Nodes:         g.NodeCount(),
		Relationships: g.RelationshipCount(),
		Keys:          res.Map.Len(),
		Aliases:       res.Map.Aliases(),
		ShortCircuits: res.Stats.ShortCircuits,
		Unreachable:   unreachable,
	}, nil
}

func reporter(progress ProgressCallback) ProgressCallback {
	if progress == nil {
		return func(string, float64) {}
	}
	return progress
}
