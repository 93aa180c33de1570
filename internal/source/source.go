// Package source loads contract sources from disk or from a git revision.
package source

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Read returns the contents of path. With a non-empty rev the file is read
// from that revision of the git repository containing path instead of the
// working tree.
func Read(path, rev string) (string, error) {
	if rev == "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return ReadAt(path, rev)
}

// ReadAt returns the contents of path as committed at rev. rev may be a tag,
// a branch or anything ResolveRevision accepts.
func ReadAt(path, rev string) (string, error) {
	abs, err := absPath(path)
	if err != nil {
		return "", err
	}

	repo, err := git.PlainOpenWithOptions(filepath.Dir(abs), &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("failed to open repository for %s: %w", path, err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return "", err
	}
	root, err := absPath(worktree.Filesystem.Root())
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}

	hash, err := resolve(repo, rev)
	if err != nil {
		return "", err
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return "", fmt.Errorf("failed to load commit %s: %w", hash, err)
	}
	file, err := commit.File(filepath.ToSlash(rel))
	if err != nil {
		return "", fmt.Errorf("%s at %s: %w", rel, rev, err)
	}
	return file.Contents()
}

// resolve tries rev as a tag, then a branch, then as given.
func resolve(repo *git.Repository, rev string) (*plumbing.Hash, error) {
	candidates := []plumbing.Revision{
		plumbing.Revision(plumbing.NewTagReferenceName(rev)),
		plumbing.Revision(plumbing.NewBranchReferenceName(rev)),
		plumbing.Revision(rev),
	}
	for _, c := range candidates {
		if hash, err := repo.ResolveRevision(c); err == nil {
			return hash, nil
		}
	}
	return nil, fmt.Errorf("revision not found: %s", rev)
}

func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	// the file may exist only at the revision
	dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		return abs, nil
	}
	return filepath.Join(dir, filepath.Base(abs)), nil
}
