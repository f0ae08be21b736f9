package depot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"depot/internal/workspace"
)

var (
	errSameName     = errors.New("old and new names are the same")
	errTargetExists = errors.New("target already exists")
)

// CreateWorkspace creates the local directory of a repository with an empty
// commits directory and its config file. Nothing is created remotely.
func (s *Service) CreateWorkspace(ctx context.Context, owner, repo string) error {
	const op Op = "depot.CreateWorkspace"

	if err := checkRepo(op, owner, repo); err != nil {
		return err
	}

	unlock := s.locks.lockRepos(owner, repo)
	defer unlock()

	return s.track("CreateWorkspace", owner, repo, "", func() error {
		if err := os.MkdirAll(s.layout.CommitsDir(owner, repo), 0755); err != nil {
			return E(op, IOError, repoIdent(owner, repo), err)
		}
		cfg := workspace.RepoConfig{Bucket: s.bucket, Owner: owner, Repository: repo}
		if err := workspace.WriteRepoConfig(s.layout.ConfigPath(owner, repo), cfg); err != nil {
			return E(op, IOError, repoIdent(owner, repo), err)
		}
		s.logger.Info("workspace created", "repo", repoIdent(owner, repo))
		return nil
	})
}

// DeleteWorkspace removes a repository locally and every remote object
// under <owner>/<repo>/. Each step runs even if an earlier one failed.
func (s *Service) DeleteWorkspace(ctx context.Context, owner, repo string) error {
	const op Op = "depot.DeleteWorkspace"

	if err := checkRepo(op, owner, repo); err != nil {
		return err
	}

	unlock := s.locks.lockRepos(owner, repo)
	defer unlock()

	return s.track("DeleteWorkspace", owner, repo, "", func() error {
		var errs []error
		if err := os.RemoveAll(s.layout.RepoDir(owner, repo)); err != nil {
			errs = append(errs, fmt.Errorf("removing local workspace: %w", err))
		}
		errs = append(errs, s.deleteRemotePrefix(ctx, remoteRepoPrefix(owner, repo))...)

		if err := s.journal.DeleteRepository(owner, repo); err != nil {
			s.logger.Warn("dropping journal rows failed", "repo", repoIdent(owner, repo), "error", err)
		}
		return s.lifecycleOutcome(op, repoIdent(owner, repo), errs)
	})
}

// RenameWorkspace renames a repository locally and moves its remote objects
// from <owner>/<old>/ to <owner>/<new>/. When nothing exists remotely an
// empty marker object is written at the new prefix. The config file is
// moved as-is.
func (s *Service) RenameWorkspace(ctx context.Context, owner, oldName, newName string) error {
	const op Op = "depot.RenameWorkspace"

	if err := checkSegments(op, map[string]string{"owner": owner, "old": oldName, "new": newName}, "owner", "old", "new"); err != nil {
		return err
	}
	if oldName == newName {
		return E(op, InvalidArgument, repoIdent(owner, newName), errSameName)
	}

	unlock := s.locks.lockRepos(owner, oldName, newName)
	defer unlock()

	return s.track("RenameWorkspace", owner, oldName, newName, func() error {
		if err := s.checkAbsent(op, s.layout.RepoDir(owner, newName), repoIdent(owner, newName)); err != nil {
			return err
		}

		var errs []error
		if err := os.Rename(s.layout.RepoDir(owner, oldName), s.layout.RepoDir(owner, newName)); err != nil {
			errs = append(errs, fmt.Errorf("renaming local workspace: %w", err))
		}
		errs = append(errs, s.moveRemotePrefix(ctx, remoteRepoPrefix(owner, oldName), remoteRepoPrefix(owner, newName))...)

		if err := s.journal.RenameRepository(owner, oldName, newName); err != nil {
			s.logger.Warn("renaming journal rows failed", "repo", repoIdent(owner, oldName), "error", err)
		}
		return s.lifecycleOutcome(op, repoIdent(owner, oldName), errs)
	})
}

// DeleteUser removes every repository of an owner, locally and remotely.
func (s *Service) DeleteUser(ctx context.Context, owner string) error {
	const op Op = "depot.DeleteUser"

	if err := checkSegments(op, map[string]string{"owner": owner}, "owner"); err != nil {
		return err
	}

	unlock := s.locks.lockUsers(owner)
	defer unlock()

	return s.track("DeleteUser", owner, "", "", func() error {
		var errs []error
		if err := os.RemoveAll(s.layout.UserDir(owner)); err != nil {
			errs = append(errs, fmt.Errorf("removing local user directory: %w", err))
		}
		errs = append(errs, s.deleteRemotePrefix(ctx, remoteUserPrefix(owner))...)

		if err := s.journal.DeleteUser(owner); err != nil {
			s.logger.Warn("dropping journal rows failed", "owner", owner, "error", err)
		}
		return s.lifecycleOutcome(op, owner, errs)
	})
}

// RenameUser renames an owner locally and moves every remote object from
// <old>/ to <new>/.
func (s *Service) RenameUser(ctx context.Context, oldOwner, newOwner string) error {
	const op Op = "depot.RenameUser"

	if err := checkSegments(op, map[string]string{"old": oldOwner, "new": newOwner}, "old", "new"); err != nil {
		return err
	}
	if oldOwner == newOwner {
		return E(op, InvalidArgument, newOwner, errSameName)
	}

	unlock := s.locks.lockUsers(oldOwner, newOwner)
	defer unlock()

	return s.track("RenameUser", oldOwner, "", newOwner, func() error {
		if err := s.checkAbsent(op, s.layout.UserDir(newOwner), newOwner); err != nil {
			return err
		}

		var errs []error
		if err := os.Rename(s.layout.UserDir(oldOwner), s.layout.UserDir(newOwner)); err != nil {
			errs = append(errs, fmt.Errorf("renaming local user directory: %w", err))
		}
		errs = append(errs, s.moveRemotePrefix(ctx, remoteUserPrefix(oldOwner), remoteUserPrefix(newOwner))...)

		if err := s.journal.RenameUser(oldOwner, newOwner); err != nil {
			s.logger.Warn("renaming journal rows failed", "owner", oldOwner, "error", err)
		}
		return s.lifecycleOutcome(op, oldOwner, errs)
	})
}

// checkAbsent refuses to rename onto an existing local directory.
func (s *Service) checkAbsent(op Op, path, ident string) error {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return E(op, InvalidArgument, ident, errTargetExists)
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return E(op, IOError, ident, err)
	}
}

func (s *Service) deleteRemotePrefix(ctx context.Context, prefix string) []error {
	objects, err := s.store.List(ctx, prefix)
	if err != nil {
		s.logger.Error("listing remote objects failed", "prefix", prefix, "error", err)
		return []error{fmt.Errorf("listing %s: %w", prefix, err)}
	}

	var errs []error
	for _, obj := range objects {
		if err := s.store.Delete(ctx, obj.Key); err != nil {
			s.logger.Error("deleting remote object failed", "key", obj.Key, "error", err)
			errs = append(errs, fmt.Errorf("deleting %s: %w", obj.Key, err))
		}
	}
	s.logger.Debug("remote prefix deleted", "prefix", prefix, "objects", len(objects), "failed", len(errs))
	return errs
}

// moveRemotePrefix copies every object under oldPrefix to the same relative
// key under newPrefix, then deletes the originals that were copied.
func (s *Service) moveRemotePrefix(ctx context.Context, oldPrefix, newPrefix string) []error {
	objects, err := s.store.List(ctx, oldPrefix)
	if err != nil {
		s.logger.Error("listing remote objects failed", "prefix", oldPrefix, "error", err)
		return []error{fmt.Errorf("listing %s: %w", oldPrefix, err)}
	}

	if len(objects) == 0 {
		if err := s.store.Put(ctx, newPrefix, bytes.NewReader(nil), 0); err != nil {
			s.logger.Error("writing remote marker failed", "key", newPrefix, "error", err)
			return []error{fmt.Errorf("writing marker %s: %w", newPrefix, err)}
		}
		return nil
	}

	var errs []error
	copied := make([]string, 0, len(objects))
	for _, obj := range objects {
		dst := newPrefix + strings.TrimPrefix(obj.Key, oldPrefix)
		if err := s.store.Copy(ctx, obj.Key, dst); err != nil {
			s.logger.Error("copying remote object failed", "src", obj.Key, "dst", dst, "error", err)
			errs = append(errs, fmt.Errorf("copying %s: %w", obj.Key, err))
			continue
		}
		copied = append(copied, obj.Key)
	}
	for _, key := range copied {
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Error("deleting remote object failed", "key", key, "error", err)
			errs = append(errs, fmt.Errorf("deleting %s: %w", key, err))
		}
	}
	return errs
}

func (s *Service) lifecycleOutcome(op Op, ident string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return E(op, PartialFailure, ident, errors.Join(errs...))
}
