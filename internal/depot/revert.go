package depot

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/otiai10/copy"

	"depot/internal/workspace"
)

// RevertResult reports where a revert restored files to.
type RevertResult struct {
	CommitID string
	Target   string
	Files    []string // files written
	Skipped  []string // files whose name is taken by a directory in Target
}

// Revert copies the files of a local commit into the owner directory that
// contains the repository (<root>/<owner>/), overwriting files of the same
// name. A file whose name is taken by a directory there, such as a
// repository of the same owner, is skipped. Staging and the commit history
// are not touched.
func (s *Service) Revert(ctx context.Context, owner, repo, commitID string) (*RevertResult, error) {
	const op Op = "depot.Revert"

	if err := checkSegments(op, map[string]string{"owner": owner, "repository": repo, "commit": commitID}, "owner", "repository", "commit"); err != nil {
		return nil, err
	}

	unlock := s.locks.lockRepos(owner, repo)
	defer unlock()

	var result *RevertResult
	err := s.track("Revert", owner, repo, commitID, func() error {
		src := s.layout.CommitDir(owner, repo, commitID)
		info, err := os.Stat(src)
		if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
			s.logger.Error("commit not found", "repo", repoIdent(owner, repo), "commit", commitID)
			return E(op, NotFound, commitID)
		}
		if err != nil {
			return E(op, IOError, commitID, err)
		}

		c, err := s.readCommit(src, commitID)
		if err != nil {
			return E(op, IOError, commitID, err)
		}

		target := s.layout.UserDir(owner)
		var skipped []string
		opts := copy.Options{
			Skip: func(srcinfo os.FileInfo, path, dest string) (bool, error) {
				if srcinfo.IsDir() {
					return false, nil
				}
				if path == filepath.Join(src, workspace.MetadataFileName) {
					return true, nil
				}
				info, err := os.Lstat(dest)
				if err == nil && info.IsDir() {
					s.logger.Warn("revert target is a directory, skipping", "repo", repoIdent(owner, repo), "commit", commitID, "path", dest)
					skipped = append(skipped, filepath.Base(path))
					return true, nil
				}
				return false, nil
			},
			OnSymlink: func(string) copy.SymlinkAction {
				return copy.Skip
			},
		}
		if err := copy.Copy(src, target, opts); err != nil {
			s.logger.Error("revert copy failed", "repo", repoIdent(owner, repo), "commit", commitID, "error", err)
			return E(op, IOError, commitID, err)
		}

		files := make([]string, 0, len(c.Files))
		for _, name := range c.Files {
			if !slices.Contains(skipped, name) {
				files = append(files, name)
			}
		}

		s.logger.Info("commit reverted", "repo", repoIdent(owner, repo), "commit", commitID, "target", target,
			"files", len(files), "skipped", len(skipped))
		result = &RevertResult{CommitID: commitID, Target: target, Files: files, Skipped: skipped}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
