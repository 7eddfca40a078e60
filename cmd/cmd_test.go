package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/typegraph-go/internal/ingestion"
	"github.com/Benny93/typegraph-go/internal/validator"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// usersV1 exposes getUser; indices 6 and 7 are unreachable.
const usersV1 = `{
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

// usersV2 makes a new input property required.
const usersV2 = `{
  "types": [
    {"type": "object", "title": "Query", "properties": {"getUser": 1}},
    {"type": "function", "input": 2, "output": 3, "materializer": 0},
    {"type": "object", "title": "UserInput", "properties": {"id": 4, "email": 5}, "required": ["id", "email"]},
    {"type": "object", "title": "User", "properties": {"id": 4, "name": 5}, "required": ["id", "name"]},
    {"type": "integer", "title": "UserId", "minimum": 1},
    {"type": "string", "title": "Name"}
  ]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testGlobals(t *testing.T) (*Globals, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return &Globals{
		Dir:       filepath.Join(t.TempDir(), ".typegraph"),
		Generator: "default",
		Quiet:     true,
		out:       &buf,
	}, &buf
}

// convertFixture indexes usersV1 and returns globals pointing at the index.
func convertFixture(t *testing.T) (*Globals, *bytes.Buffer) {
	t.Helper()
	g, buf := testGlobals(t)
	path := writeFile(t, t.TempDir(), "users.json", usersV1)
	require.NoError(t, (&ConvertCmd{Schema: path}).Run(g))
	buf.Reset()
	return g, buf
}

func TestConvertCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("StoresIndex", func(t *testing.T) {
		t.Parallel()
		g, buf := testGlobals(t)
		g.Quiet = false
		path := writeFile(t, t.TempDir(), "users.json", usersV1)

		require.NoError(t, (&ConvertCmd{Schema: path}).Run(g))
		out := buf.String()
		assert.Contains(t, out, "Converting "+path)
		assert.Contains(t, out, "✓ Conversion complete")
		assert.Regexp(t, `Types:\s+7\n`, out)
		assert.Regexp(t, `Unreachable:\s+2\n`, out)
		assert.Contains(t, out, "warning: ")

		_, err := os.Stat(g.dbPath())
		assert.NoError(t, err)
	})

	t.Run("NoStore", func(t *testing.T) {
		t.Parallel()
		g, _ := testGlobals(t)
		path := writeFile(t, t.TempDir(), "users.json", usersV1)

		require.NoError(t, (&ConvertCmd{Schema: path, NoStore: true}).Run(g))
		_, err := os.Stat(g.Dir)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("VerboseTraces", func(t *testing.T) {
		t.Parallel()
		g, buf := testGlobals(t)
		g.Quiet = false
		g.Verbose = true
		path := writeFile(t, t.TempDir(), "users.json", usersV1)

		require.NoError(t, (&ConvertCmd{Schema: path, NoStore: true}).Run(g))
		assert.Contains(t, buf.String(), "function")
		assert.Contains(t, buf.String(), "1#0")
	})

	t.Run("BranchGenerator", func(t *testing.T) {
		t.Parallel()
		g, buf := testGlobals(t)
		g.Generator = "branch"
		path := writeFile(t, t.TempDir(), "users.json", usersV1)

		require.NoError(t, (&ConvertCmd{Schema: path, NoStore: true}).Run(g))
		assert.Regexp(t, `Type keys:\s+7\n`, buf.String())
	})

	t.Run("BrokenSchema", func(t *testing.T) {
		t.Parallel()
		g, _ := testGlobals(t)
		path := writeFile(t, t.TempDir(), "broken.json", `{"types": [{"type": "list", "items": 9}]}`)

		err := (&ConvertCmd{Schema: path, NoStore: true}).Run(g)
		assert.Error(t, err)
	})
}

func TestCheckCmd_Run(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "users.json", usersV1)

	t.Run("Holds", func(t *testing.T) {
		t.Parallel()
		g, buf := testGlobals(t)
		require.NoError(t, (&CheckCmd{Schema: path, Sub: 4, Sup: 4}).Run(g))
		assert.Contains(t, buf.String(), "✓ 4 is a subtype of 4")
	})

	t.Run("Fails", func(t *testing.T) {
		t.Parallel()
		g, buf := testGlobals(t)
		err := (&CheckCmd{Schema: path, Sub: 2, Sup: 3}).Run(g)
		require.ErrorIs(t, err, ErrNotSubtype)
		assert.Contains(t, buf.String(), "✗ 2 is not a subtype of 3")
		assert.Contains(t, buf.String(), "  property 'name' is missing")
	})

	t.Run("OutOfRange", func(t *testing.T) {
		t.Parallel()
		g, _ := testGlobals(t)
		err := (&CheckCmd{Schema: path, Sub: 2, Sup: 99}).Run(g)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotSubtype)
	})
}

func TestDiffCmd_Run(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	v1 := writeFile(t, dir, "v1.json", usersV1)
	v2 := writeFile(t, dir, "v2.json", usersV2)

	t.Run("Compatible", func(t *testing.T) {
		t.Parallel()
		g, buf := testGlobals(t)
		require.NoError(t, (&DiffCmd{Schema: v1, Old: v1}).Run(g))
		assert.Contains(t, buf.String(), "= getUser")
		assert.Contains(t, buf.String(), "✓ Compatible")
	})

	t.Run("Breaking", func(t *testing.T) {
		t.Parallel()
		g, buf := testGlobals(t)
		err := (&DiffCmd{Schema: v2, Old: v1}).Run(g)
		require.ErrorIs(t, err, ErrBreakingChange)
		out := buf.String()
		assert.Contains(t, out, "~ getUser")
		assert.Contains(t, out, "input no longer accepts old arguments:")
		assert.Contains(t, out, "property 'email' is missing")
	})

	t.Run("Removed", func(t *testing.T) {
		t.Parallel()
		g, buf := testGlobals(t)
		empty := writeFile(t, t.TempDir(), "empty.json", `{"types": [{"type": "object", "title": "Query", "properties": {}}]}`)
		err := (&DiffCmd{Schema: empty, Old: v1}).Run(g)
		require.ErrorIs(t, err, ErrBreakingChange)
		assert.Contains(t, buf.String(), "- getUser")
		assert.Contains(t, buf.String(), "1 removed, 0 changed incompatibly")
	})

	t.Run("NeedsBase", func(t *testing.T) {
		t.Parallel()
		g, _ := testGlobals(t)
		assert.Error(t, (&DiffCmd{Schema: v1}).Run(g))
		assert.Error(t, (&DiffCmd{Schema: v1, Old: v1, Against: "HEAD"}).Run(g))
	})

	t.Run("AgainstRevision", func(t *testing.T) {
		t.Parallel()
		repoDir := t.TempDir()
		repo, err := git.PlainInit(repoDir, false)
		require.NoError(t, err)
		wt, err := repo.Worktree()
		require.NoError(t, err)

		path := writeFile(t, repoDir, "users.json", usersV1)
		_, err = wt.Add("users.json")
		require.NoError(t, err)
		_, err = wt.Commit("v1", &git.CommitOptions{
			Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
		})
		require.NoError(t, err)
		writeFile(t, repoDir, "users.json", usersV2)

		g, buf := testGlobals(t)
		err = (&DiffCmd{Schema: path, Against: "HEAD", Repo: repoDir}).Run(g)
		require.ErrorIs(t, err, ErrBreakingChange)
		assert.Contains(t, buf.String(), "users.json@HEAD")
	})
}

func TestStoredCommands(t *testing.T) {
	t.Parallel()

	g, buf := convertFixture(t)

	// Read-only opens of one badger directory are not run concurrently.
	t.Run("Status", func(t *testing.T) {
		buf.Reset()
		require.NoError(t, (&StatusCmd{}).Run(g))
		out := buf.String()
		assert.Contains(t, out, "Index status for "+g.Dir)
		assert.Contains(t, out, "users.json (json)")
		assert.Regexp(t, `Generator:\s+default\n`, out)
		assert.Regexp(t, `Types:\s+7\n`, out)
		assert.Regexp(t, `object\s+2\n`, out)
	})

	t.Run("Query", func(t *testing.T) {
		buf.Reset()
		require.NoError(t, (&QueryCmd{Query: "UserId", Limit: 5}).Run(g))
		assert.Contains(t, buf.String(), `4#0 integer "UserId"`)
		assert.Contains(t, buf.String(), "input(1):/id")
	})

	t.Run("QueryNoResults", func(t *testing.T) {
		buf.Reset()
		require.NoError(t, (&QueryCmd{Query: "invoice", Limit: 5}).Run(g))
		assert.Equal(t, "No results found\n", buf.String())
	})

	t.Run("InspectByTitle", func(t *testing.T) {
		buf.Reset()
		require.NoError(t, (&InspectCmd{Key: "UserInput"}).Run(g))
		out := buf.String()
		assert.Contains(t, out, `2#0 object "UserInput"`)
		assert.Contains(t, out, "Children (1):")
		assert.Contains(t, out, "property id")
		assert.Contains(t, out, "Parents (1):")
	})

	t.Run("InspectByKey", func(t *testing.T) {
		buf.Reset()
		require.NoError(t, (&InspectCmd{Key: "4#1"}).Run(g))
		assert.Contains(t, buf.String(), "at output(1):/id")
		assert.Contains(t, buf.String(), "minimum: 1")
	})

	t.Run("InspectMissing", func(t *testing.T) {
		buf.Reset()
		require.NoError(t, (&InspectCmd{Key: "Invoice"}).Run(g))
		assert.Contains(t, buf.String(), "Type 'Invoice' not found")
	})
}

func TestCommandsWithoutIndex(t *testing.T) {
	t.Parallel()

	g, _ := testGlobals(t)
	assert.ErrorContains(t, (&StatusCmd{}).Run(g), "no index found")
	assert.ErrorContains(t, (&QueryCmd{Query: "user"}).Run(g), "no index found")
	assert.ErrorContains(t, (&InspectCmd{Key: "0#0"}).Run(g), "no index found")
	assert.ErrorContains(t, (&CleanCmd{Force: true}).Run(g), "Nothing to clean")
}

func TestCleanCmd_Run(t *testing.T) {
	t.Parallel()

	g, buf := convertFixture(t)
	require.NoError(t, (&CleanCmd{Force: true}).Run(g))
	assert.Contains(t, buf.String(), "Deleted "+g.Dir)

	_, err := os.Stat(g.Dir)
	assert.True(t, os.IsNotExist(err))
}

func TestStorageHelpers(t *testing.T) {
	t.Parallel()

	g, _ := testGlobals(t)

	_, err := loadStorage(g)
	require.Error(t, err)

	store, err := openStorage(g)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	loaded, err := loadStorage(g)
	require.NoError(t, err)
	defer loaded.Close()

	snap, err := loaded.LoadSchema(t.Context())
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestFindType(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	g, _ := convertFixture(t)
	store, err := loadStorage(g)
	require.NoError(t, err)
	defer store.Close()

	tests := []struct {
		key  string
		want string
	}{
		{key: "3#0", want: "3#0"},
		{key: "User", want: "3#0"},
		{key: "Name", want: "5#0"},
		{key: "Invoice", want: ""},
	}
	for _, tt := range tests {
		node, err := findType(ctx, store, tt.key)
		require.NoError(t, err)
		if tt.want == "" {
			assert.Nil(t, node, tt.key)
			continue
		}
		require.NotNil(t, node, tt.key)
		assert.Equal(t, tt.want, node.ID, tt.key)
	}

}

func TestExecute(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	path := writeFile(t, t.TempDir(), "users.json", usersV1)

	run := func(args ...string) (string, error) {
		var buf bytes.Buffer
		cli := NewCLI()
		cli.SetOutput(&buf)
		err := cli.Execute(args)
		return buf.String(), err
	}

	t.Run("ConvertThenStatus", func(t *testing.T) {
		_, err := run("--dir", dir, "-q", "convert", path)
		require.NoError(t, err)

		out, err := run("--dir", dir, "status")
		require.NoError(t, err)
		assert.Regexp(t, `Types:\s+7\n`, out)
	})

	t.Run("EnvironmentDefaults", func(t *testing.T) {
		t.Setenv("TYPEGRAPH_DIR", dir)
		t.Setenv("TYPEGRAPH_GENERATOR", "branch")

		out, err := run("status")
		require.NoError(t, err)
		assert.Contains(t, out, "Index status for "+dir)
	})

	t.Run("Check", func(t *testing.T) {
		out, err := run("check", path, "--sub", "2", "--sup", "3")
		require.ErrorIs(t, err, ErrNotSubtype)
		assert.Contains(t, out, "property 'name' is missing")
	})

	t.Run("ParseError", func(t *testing.T) {
		_, err := run("frobnicate")
		assert.Error(t, err)
	})

	t.Run("BadGenerator", func(t *testing.T) {
		_, err := run("--generator", "random", "status")
		assert.Error(t, err)
	})
}

func TestPrintWatchEvent(t *testing.T) {
	t.Parallel()

	t.Run("Error", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		printWatchEvent(&buf, &ingestion.WatchEvent{Path: "users.json", Err: errors.New("boom")})
		assert.Contains(t, buf.String(), "✗ users.json: boom")
	})

	t.Run("Breaking", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		report := &validator.EvolutionReport{Removed: []string{"getUser"}}
		printWatchEvent(&buf, &ingestion.WatchEvent{
			Path:   "users.json",
			Result: &ingestion.PipelineResult{Nodes: 3, Relationships: 2},
			Report: report,
		})
		out := buf.String()
		assert.Contains(t, out, "✓ users.json: 3 types, 2 relationships")
		assert.Contains(t, out, "breaking change against the previous version:")
		assert.Contains(t, out, "  - getUser")
	})
}

func TestLoadEnv(t *testing.T) {
	// t.Setenv forbids t.Parallel.
	dir := t.TempDir()

	t.Run("Missing", func(t *testing.T) {
		assert.NoError(t, LoadEnv(filepath.Join(dir, "absent.env")))
	})

	t.Run("Loads", func(t *testing.T) {
		t.Setenv("TYPEGRAPH_TEST_DIR", "")
		path := writeFile(t, dir, "ok.env", "TYPEGRAPH_TEST_DIR=/tmp/graphs\n")
		require.NoError(t, os.Unsetenv("TYPEGRAPH_TEST_DIR"))
		require.NoError(t, LoadEnv(path))
		assert.Equal(t, "/tmp/graphs", os.Getenv("TYPEGRAPH_TEST_DIR"))
	})

	t.Run("Malformed", func(t *testing.T) {
		path := writeFile(t, dir, "bad.env", "TYPEGRAPH_TEST_QUOTE=\"unterminated\n")
		err := LoadEnv(path)
		require.Error(t, err)
		assert.ErrorContains(t, err, "loading "+path)
	})
}
