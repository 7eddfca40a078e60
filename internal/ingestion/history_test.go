package ingestion

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/typegraph-go/internal/schema"
)

func commitFile(t *testing.T, wt *git.Worktree, dir, name, content, msg string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	_, err := wt.Add(name)
	require.NoError(t, err)
	_, err = wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
}

func TestLoadSchemaAtRevision(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	commitFile(t, wt, dir, "users.json", userSchemaV1, "v1")
	commitFile(t, wt, dir, "users.json", userSchemaV2, "v2")

	inputProps := func(l *Loaded) int {
		n, err := l.Schema.Node(2)
		require.NoError(t, err)
		return len(n.(*schema.Object).Properties)
	}

	t.Run("Head", func(t *testing.T) {
		t.Parallel()
		l, err := LoadSchemaAtRevision(dir, "HEAD", "users.json")
		require.NoError(t, err)
		assert.Equal(t, 2, inputProps(l))
		assert.Equal(t, "json", l.Format)
	})

	t.Run("Parent", func(t *testing.T) {
		t.Parallel()
		l, err := LoadSchemaAtRevision(dir, "HEAD~1", "users.json")
		require.NoError(t, err)
		assert.Equal(t, 1, inputProps(l))
	})

	t.Run("AbsolutePath", func(t *testing.T) {
		t.Parallel()
		l, err := LoadSchemaAtRevision(dir, "HEAD~1", filepath.Join(dir, "users.json"))
		require.NoError(t, err)
		assert.Equal(t, 1, inputProps(l))
	})

	t.Run("UnknownRevision", func(t *testing.T) {
		t.Parallel()
		_, err := LoadSchemaAtRevision(dir, "nope", "users.json")
		assert.Error(t, err)
	})

	t.Run("UnknownFile", func(t *testing.T) {
		t.Parallel()
		_, err := LoadSchemaAtRevision(dir, "HEAD", "other.json")
		assert.Error(t, err)
	})

	t.Run("NotARepository", func(t *testing.T) {
		t.Parallel()
		_, err := LoadSchemaAtRevision(t.TempDir(), "HEAD", "users.json")
		assert.ErrorIs(t, err, git.ErrRepositoryNotExists)
	})
}
