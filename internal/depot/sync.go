package depot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"depot/internal/workspace"
)

// SyncResult reports what a push or pull transferred.
type SyncResult struct {
	Commits []string // commit ids with at least one object transferred
	Objects []string // object keys transferred
	Failed  []string // object keys that could not be transferred
}

func (r *SyncResult) addCommit(id string) {
	if n := len(r.Commits); n > 0 && r.Commits[n-1] == id {
		return
	}
	r.Commits = append(r.Commits, id)
}

// outcome classifies a finished transfer: nil when nothing failed,
// RemoteError when nothing succeeded, PartialFailure otherwise.
func (r *SyncResult) outcome(op Op, ident string, errs []error) error {
	if len(r.Failed) == 0 {
		return nil
	}
	kind := PartialFailure
	if len(r.Objects) == 0 {
		kind = RemoteError
	}
	return E(op, kind, ident, errors.Join(errs...))
}

var errUnsafeKey = errors.New("object key does not map to a commit file")

// Push uploads every local commit of a repository, oldest first, to
// <owner>/<repo>/commits/<id>/<file>, metadata included. Objects already
// present remotely are overwritten. A repository without local commits
// pushes nothing and succeeds.
//
// Each file is attempted even after earlier failures. A commit whose objects
// all uploaded is marked pushed in the journal.
func (s *Service) Push(ctx context.Context, owner, repo string) (*SyncResult, error) {
	const op Op = "depot.Push"

	if err := checkRepo(op, owner, repo); err != nil {
		return nil, err
	}

	unlock := s.locks.lockRepos(owner, repo)
	defer unlock()

	result := &SyncResult{}
	err := s.track("Push", owner, repo, "", func() error {
		return s.push(ctx, op, owner, repo, result)
	})
	return result, err
}

func (s *Service) push(ctx context.Context, op Op, owner, repo string, result *SyncResult) error {
	ident := repoIdent(owner, repo)

	commits, err := s.localCommits(owner, repo)
	if err != nil {
		return E(op, IOError, ident, err)
	}
	SortCommits(commits)

	var errs []error
	for i := len(commits) - 1; i >= 0; i-- {
		c := commits[i]
		dir := s.layout.CommitDir(owner, repo, c.ID)

		names := append([]string(nil), c.Files...)
		if _, err := os.Stat(filepath.Join(dir, workspace.MetadataFileName)); err == nil {
			names = append(names, workspace.MetadataFileName)
		}

		clean := true
		for _, name := range names {
			key := remoteKey(owner, repo, c.ID, name)
			if err := s.upload(ctx, filepath.Join(dir, name), key); err != nil {
				s.logger.Error("upload failed", "repo", ident, "key", key, "error", err)
				result.Failed = append(result.Failed, key)
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				clean = false
				continue
			}
			result.Objects = append(result.Objects, key)
			result.addCommit(c.ID)
		}

		if clean {
			if err := s.journal.MarkCommitPushed(owner, repo, c.ID, s.clock.Now().UTC()); err != nil {
				s.logger.Warn("marking commit pushed failed", "repo", ident, "commit", c.ID, "error", err)
			}
		}
	}

	s.logger.Info("push finished", "repo", ident, "objects", len(result.Objects), "failed", len(result.Failed))
	return result.outcome(op, ident, errs)
}

func (s *Service) upload(ctx context.Context, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	return s.store.Put(ctx, key, f, info.Size())
}

// Pull downloads every object under <owner>/<repo>/commits/ into the local
// commits directory, creating directories as needed and overwriting local
// files of the same name. Local files absent remotely are left alone.
//
// A failed listing aborts with RemoteError; an empty listing is NotFound.
// Directory markers are skipped, and keys that do not name a file directly
// inside a commit directory are rejected as failures.
func (s *Service) Pull(ctx context.Context, owner, repo string) (*SyncResult, error) {
	const op Op = "depot.Pull"

	if err := checkRepo(op, owner, repo); err != nil {
		return nil, err
	}

	unlock := s.locks.lockRepos(owner, repo)
	defer unlock()

	result := &SyncResult{}
	err := s.track("Pull", owner, repo, "", func() error {
		return s.pull(ctx, op, owner, repo, result)
	})
	return result, err
}

func (s *Service) pull(ctx context.Context, op Op, owner, repo string, result *SyncResult) error {
	ident := repoIdent(owner, repo)
	prefix := remoteCommitsPrefix(owner, repo)

	objects, err := s.store.List(ctx, prefix)
	if err != nil {
		return E(op, RemoteError, prefix, err)
	}
	if len(objects) == 0 {
		return E(op, NotFound, prefix)
	}

	var errs []error
	pulled := make(map[string]bool)
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}

		commitID, name, ok := splitCommitKey(prefix, obj.Key)
		if !ok {
			s.logger.Warn("skipping unsafe object key", "repo", ident, "key", obj.Key)
			result.Failed = append(result.Failed, obj.Key)
			errs = append(errs, fmt.Errorf("%s: %w", obj.Key, errUnsafeKey))
			continue
		}

		dir := s.layout.CommitDir(owner, repo, commitID)
		if err := os.MkdirAll(dir, 0755); err != nil {
			result.Failed = append(result.Failed, obj.Key)
			errs = append(errs, fmt.Errorf("%s: %w", obj.Key, err))
			continue
		}

		if err := s.download(ctx, obj.Key, filepath.Join(dir, name)); err != nil {
			s.logger.Error("download failed", "repo", ident, "key", obj.Key, "error", err)
			result.Failed = append(result.Failed, obj.Key)
			errs = append(errs, fmt.Errorf("%s: %w", obj.Key, err))
			continue
		}
		result.Objects = append(result.Objects, obj.Key)
		result.addCommit(commitID)
		pulled[commitID] = true
	}

	for id := range pulled {
		s.indexPulledCommit(owner, repo, id)
	}

	s.logger.Info("pull finished", "repo", ident, "objects", len(result.Objects), "failed", len(result.Failed))
	return result.outcome(op, ident, errs)
}

// splitCommitKey maps <prefix><commitID>/<name> to its two segments.
func splitCommitKey(prefix, key string) (commitID, name string, ok bool) {
	rel, found := strings.CutPrefix(key, prefix)
	if !found {
		return "", "", false
	}
	commitID, name, found = strings.Cut(rel, "/")
	if !found {
		return "", "", false
	}
	if !workspace.ValidSegment(commitID) || workspace.IsTemp(commitID) {
		return "", "", false
	}
	if !workspace.ValidSegment(name) || workspace.IsTemp(name) {
		return "", "", false
	}
	return commitID, name, true
}

// download streams key into path, replacing path atomically.
func (s *Service) download(ctx context.Context, key, path string) error {
	pr, pw := io.Pipe()
	getErr := make(chan error, 1)
	go func() {
		err := s.store.Get(ctx, key, pw)
		pw.CloseWithError(err)
		getErr <- err
	}()

	_, werr := workspace.WriteFile(path, pr)
	pr.CloseWithError(werr)
	if gerr := <-getErr; gerr != nil && !errors.Is(gerr, io.ErrClosedPipe) {
		return gerr
	}
	return werr
}

func (s *Service) indexPulledCommit(owner, repo, commitID string) {
	c, err := s.readCommit(s.layout.CommitDir(owner, repo, commitID), commitID)
	if err != nil {
		return
	}
	rec := commitRecord(owner, repo, c)
	if err := s.journal.RecordCommit(rec); err != nil {
		s.logger.Warn("indexing pulled commit failed", "repo", repoIdent(owner, repo), "commit", commitID, "error", err)
		return
	}
	if err := s.journal.MarkCommitPushed(owner, repo, commitID, s.clock.Now().UTC()); err != nil {
		s.logger.Warn("marking pulled commit failed", "repo", repoIdent(owner, repo), "commit", commitID, "error", err)
	}
}
