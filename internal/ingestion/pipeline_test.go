package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/typegraph-go/internal/conversion"
	"github.com/Benny93/typegraph-go/internal/graph"
	"github.com/Benny93/typegraph-go/internal/parsers"
	"github.com/Benny93/typegraph-go/internal/schema"
	"github.com/Benny93/typegraph-go/internal/storage"
)

// userSchemaV1 exposes getUser; indices 6 and 7 are unreachable.
const userSchemaV1 = `{
  "types": [
    {"type": "object", "title": "Query", "properties": {"getUser": 1}},
    {"type": "function", "input": 2, "output": 3, "materializer": 0},
    {"type": "object", "title": "UserInput", "properties": {"id": 4}, "required": ["id"]},
    {"type": "object", "title": "User", "properties": {"id": 4, "name": 5}, "required": ["id", "name"]},
    {"type": "integer", "title": "UserId", "minimum": 1},
    {"type": "string", "title": "Name"},
    {"type": "boolean", "title": "Legacy"},
    {"type": "optional", "item": 6}
  ]
}`

// userSchemaV2 makes a new input property required.
const userSchemaV2 = `{
  "types": [
    {"type": "object", "title": "Query", "properties": {"getUser": 1}},
    {"type": "function", "input": 2, "output": 3, "materializer": 0},
    {"type": "object", "title": "UserInput", "properties": {"id": 4, "email": 5}, "required": ["id", "email"]},
    {"type": "object", "title": "User", "properties": {"id": 4, "name": 5}, "required": ["id", "name"]},
    {"type": "integer", "title": "UserId", "minimum": 1},
    {"type": "string", "title": "Name"},
    {"type": "boolean", "title": "Legacy"},
    {"type": "optional", "item": 6}
  ]
}`

func writeSchema(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunPipeline(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := writeSchema(t, t.TempDir(), "users.json", userSchemaV1)
	store := storage.NewMemoryBackend()

	var phases []string
	progress := func(phase string, _ float64) {
		if len(phases) == 0 || phases[len(phases)-1] != phase {
			phases = append(phases, phase)
		}
	}

	g, result, err := RunPipeline(ctx, path, store, Options{}, progress)
	require.NoError(t, err)

	t.Run("Phases", func(t *testing.T) {
		assert.Equal(t, []string{
			PhaseLoading, PhaseValidating, PhaseExpanding, PhaseLinking,
			PhaseExporting, PhaseUnreachable, PhaseStoring,
		}, phases)
	})

	t.Run("Result", func(t *testing.T) {
		assert.Equal(t, 7, result.Nodes)
		assert.Equal(t, 7, result.Keys)
		assert.Equal(t, 6, result.Relationships)
		assert.Equal(t, 0, result.Aliases)
		require.Len(t, result.Unreachable, 2)
		assert.Equal(t, uint32(6), result.Unreachable[0].Index)
		assert.Equal(t, ReasonDetached, result.Unreachable[0].Reason)
		assert.Equal(t, uint32(7), result.Unreachable[1].Index)
		assert.Equal(t, ReasonOrphan, result.Unreachable[1].Reason)
		assert.GreaterOrEqual(t, result.DurationSecs, 0.0)
	})

	t.Run("Graph", func(t *testing.T) {
		assert.Equal(t, 2, g.CountNodesByLabel(graph.NodeInteger))
		in := g.GetNode("4#0")
		require.NotNil(t, in)
		assert.Equal(t, []string{"input(1):/id"}, in.Paths)
		out := g.GetNode("4#1")
		require.NotNil(t, out)
		assert.Equal(t, []string{"output(1):/id"}, out.Paths)
	})

	t.Run("Stored", func(t *testing.T) {
		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 7, stats["nodes"])

		snap, err := store.LoadSchema(ctx)
		require.NoError(t, err)
		require.NotNil(t, snap)
		assert.Equal(t, path, snap.Path)
		assert.Equal(t, "json", snap.Format)
		assert.Equal(t, GeneratorDefault, snap.Generator)
		assert.Equal(t, userSchemaV1, string(snap.Content))
	})
}

func TestRunPipeline_BranchGenerator(t *testing.T) {
	t.Parallel()

	path := writeSchema(t, t.TempDir(), "users.json", userSchemaV1)
	_, result, err := RunPipeline(context.Background(), path, nil, Options{Generator: GeneratorBranch}, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, result.Keys)
}

func TestRunPipeline_Tracer(t *testing.T) {
	t.Parallel()

	path := writeSchema(t, t.TempDir(), "users.json", userSchemaV1)
	var kinds []schema.Kind
	opts := Options{Tracer: func(ev conversion.Event) { kinds = append(kinds, ev.Kind) }}
	_, _, err := RunPipeline(context.Background(), path, nil, opts, nil)
	require.NoError(t, err)
	require.NotEmpty(t, kinds)
	assert.Equal(t, schema.KindObject, kinds[0])
	assert.True(t, slices.Contains(kinds, schema.KindFunction))
}

func TestRunPipeline_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	valid := writeSchema(t, dir, "users.json", userSchemaV1)

	tests := []struct {
		name string
		path string
		opts Options
		is   error
	}{
		{name: "UnknownGenerator", path: valid, opts: Options{Generator: "nope"}, is: ErrUnknownGenerator},
		{name: "UnsupportedFormat", path: writeSchema(t, dir, "users.toml", ""), is: parsers.ErrUnsupportedFormat},
		{name: "RootNotObject", path: valid, opts: Options{Root: 4}, is: conversion.ErrMalformedSchema},
		{
			name: "DanglingReference",
			path: writeSchema(t, dir, "bad.json", `{"types": [{"type": "object", "properties": {"a": 9}}]}`),
			is:   schema.ErrMalformed,
		},
		{name: "Missing", path: filepath.Join(dir, "missing.json"), is: os.ErrNotExist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := storage.NewMemoryBackend()
			_, _, err := RunPipeline(context.Background(), tt.path, store, tt.opts, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.is)

			snap, err := store.LoadSchema(context.Background())
			require.NoError(t, err)
			assert.Nil(t, snap)
		})
	}
}

func TestFindUnreachable(t *testing.T) {
	t.Parallel()

	s := schema.New(
		&schema.Object{Properties: []schema.Property{}},
		&schema.List{Base: schema.Base{Title: "Tags"}, Items: 2},
		&schema.String{},
		&schema.Optional{Item: 2},
	)

	t.Run("None", func(t *testing.T) {
		t.Parallel()
		out, err := FindUnreachable(s, nil)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("Classified", func(t *testing.T) {
		t.Parallel()
		out, err := FindUnreachable(s, []uint32{1, 2, 3})
		require.NoError(t, err)
		require.Len(t, out, 3)

		assert.Equal(t, ReasonOrphan, out[0].Reason)
		assert.Equal(t, `1 (list "Tags"): orphan`, out[0].String())

		assert.Equal(t, ReasonDetached, out[1].Reason)
		assert.Equal(t, []uint32{1, 3}, out[1].Referrers)
		assert.Equal(t, "2 (string): detached", out[1].String())

		assert.Equal(t, ReasonOrphan, out[2].Reason)
	})

	t.Run("OutOfRange", func(t *testing.T) {
		t.Parallel()
		_, err := FindUnreachable(s, []uint32{9})
		assert.ErrorIs(t, err, schema.ErrIndexOutOfRange)
	})
}
