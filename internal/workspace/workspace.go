// Package workspace owns the on-disk layout of repositories:
//
//	<root>/
//	  <owner>/
//	    <repo>/
//	      config.toml
//	      staging/<filename>
//	      commits/<commitID>/
//	        <filename>
//	        commit.json
//
// It knows nothing about remotes; callers compose these paths with an object store.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// StagingDirName is the mutable pre-commit area.
	StagingDirName = "staging"
	// CommitsDirName holds one immutable directory per commit.
	CommitsDirName = "commits"
	// MetadataFileName is the sidecar written into every commit directory.
	MetadataFileName = "commit.json"
	// ConfigFileName records the bucket the workspace mirrors to.
	ConfigFileName = "config.toml"

	tempPrefix = ".tmp-"
)

// Layout resolves workspace paths under a single root directory.
type Layout struct {
	root string
}

// NewLayout creates a Layout rooted at root.
func NewLayout(root string) *Layout {
	return &Layout{root: root}
}

// Root returns the directory containing every user's workspaces.
func (l *Layout) Root() string {
	return l.root
}

// UserDir returns <root>/<owner>.
func (l *Layout) UserDir(owner string) string {
	return filepath.Join(l.root, owner)
}

// RepoDir returns <root>/<owner>/<repo>.
func (l *Layout) RepoDir(owner, repo string) string {
	return filepath.Join(l.root, owner, repo)
}

// StagingDir returns the staging area of a repository.
func (l *Layout) StagingDir(owner, repo string) string {
	return filepath.Join(l.RepoDir(owner, repo), StagingDirName)
}

// CommitsDir returns the directory holding all commits of a repository.
func (l *Layout) CommitsDir(owner, repo string) string {
	return filepath.Join(l.RepoDir(owner, repo), CommitsDirName)
}

// CommitDir returns the directory of a single commit.
func (l *Layout) CommitDir(owner, repo, commitID string) string {
	return filepath.Join(l.CommitsDir(owner, repo), commitID)
}

// TempCommitDir returns the directory a commit is assembled in before it is
// renamed into place. It lives next to the final directory so the rename
// never crosses filesystems.
func (l *Layout) TempCommitDir(owner, repo, commitID string) string {
	return filepath.Join(l.CommitsDir(owner, repo), tempPrefix+commitID)
}

// ConfigPath returns the path of the workspace config file.
func (l *Layout) ConfigPath(owner, repo string) string {
	return filepath.Join(l.RepoDir(owner, repo), ConfigFileName)
}

// IsTemp reports whether a directory entry is an in-progress artifact.
func IsTemp(name string) bool {
	return strings.HasPrefix(name, tempPrefix)
}

// ValidSegment reports whether s can be used as a single path component:
// non-empty, no separators, and not a relative reference.
func ValidSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	if strings.ContainsAny(s, `/\`) {
		return false
	}
	if strings.ContainsRune(s, 0) {
		return false
	}
	return true
}

// Exists reports whether the repository directory is present.
func (l *Layout) Exists(owner, repo string) (bool, error) {
	info, err := os.Stat(l.RepoDir(owner, repo))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat workspace: %w", err)
	}
	return info.IsDir(), nil
}
