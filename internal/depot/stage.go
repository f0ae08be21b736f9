package depot

import (
	"context"
	"os"
	"path/filepath"

	"depot/internal/workspace"
)

// StageFile copies sourcePath into the repository's staging area as
// displayName and then removes sourcePath.
//
// The staging directory is created if needed, so staging many files into a
// fresh repository never fails on an existing directory. A file already
// staged under displayName is replaced (last write wins). Failure to remove
// the source afterwards is logged and not returned.
func (s *Service) StageFile(ctx context.Context, owner, repo, sourcePath, displayName string) error {
	const op Op = "depot.StageFile"

	if err := checkRepo(op, owner, repo); err != nil {
		return err
	}
	if err := checkSegments(op, map[string]string{"name": displayName}, "name"); err != nil {
		return err
	}
	if displayName == workspace.MetadataFileName {
		return E(op, InvalidArgument, "name="+displayName, errReserved)
	}
	if workspace.IsTemp(displayName) {
		return E(op, InvalidArgument, "name="+displayName, errTempName)
	}
	if sourcePath == "" {
		return E(op, InvalidArgument, "source", errMissing)
	}

	unlock := s.locks.lockRepos(owner, repo)
	defer unlock()

	return s.track("StageFile", owner, repo, displayName, func() error {
		stagingDir := s.layout.StagingDir(owner, repo)
		if err := os.MkdirAll(stagingDir, 0755); err != nil {
			s.logger.Error("creating staging directory failed", "repo", repoIdent(owner, repo), "error", err)
			return E(op, IOError, repoIdent(owner, repo), err)
		}

		size, err := workspace.CopyFile(sourcePath, filepath.Join(stagingDir, displayName))
		if err != nil {
			s.logger.Error("staging file failed", "repo", repoIdent(owner, repo), "name", displayName, "error", err)
			return E(op, IOError, displayName, err)
		}

		if err := os.Remove(sourcePath); err != nil {
			s.logger.Warn("removing staged source failed", "source", sourcePath, "error", err)
		}

		s.logger.Debug("file staged", "repo", repoIdent(owner, repo), "name", displayName, "size", size)
		return nil
	})
}

// ListStaged returns the names of the files currently staged, sorted.
// A repository that has never staged anything yields an empty list.
func (s *Service) ListStaged(ctx context.Context, owner, repo string) ([]string, error) {
	const op Op = "depot.ListStaged"

	if err := checkRepo(op, owner, repo); err != nil {
		return nil, err
	}

	names, err := workspace.ListFiles(s.layout.StagingDir(owner, repo))
	if err != nil {
		return nil, E(op, IOError, repoIdent(owner, repo), err)
	}
	return names, nil
}
