package ingestion

import (
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// LoadSchemaAtRevision reads a schema file as it was at rev in the git
// repository containing repoPath. rev is anything git rev-parse accepts that
// names a commit (HEAD~1, a branch, a tag, a hash). A relative file is taken
// relative to repoPath.
func LoadSchemaAtRevision(repoPath, rev, file string) (*Loaded, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening git repository: %w", err)
	}

	inRepo, err := repoRelative(repo, repoPath, file)
	if err != nil {
		return nil, err
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", rev, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("reading commit %s: %w", hash, err)
	}
	f, err := commit.File(inRepo)
	if err != nil {
		return nil, fmt.Errorf("reading %s at %s: %w", inRepo, rev, err)
	}
	content, err := f.Contents()
	if err != nil {
		return nil, fmt.Errorf("reading %s at %s: %w", inRepo, rev, err)
	}
	return ParseSchema(file, []byte(content))
}

// repoRelative converts file to a slash separated path relative to the
// worktree root.
func repoRelative(repo *git.Repository, repoPath, file string) (string, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("opening worktree: %w", err)
	}
	root, err := filepath.EvalSymlinks(wt.Filesystem.Root())
	if err != nil {
		return "", fmt.Errorf("resolving worktree root: %w", err)
	}

	abs := file
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(repoPath, file)
	}
	abs, err = filepath.Abs(abs)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", file, err)
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		abs = filepath.Join(dir, filepath.Base(abs))
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", fmt.Errorf("%s is outside the repository: %w", file, err)
	}
	return filepath.ToSlash(rel), nil
}
