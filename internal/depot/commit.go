package depot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"depot/internal/model"
	"depot/internal/workspace"
)

// Commit is an immutable snapshot of a repository's staged files.
type Commit struct {
	ID        string
	Message   string
	Timestamp time.Time
	Files     []string // sorted, excludes the metadata file
}

var errCommitExists = errors.New("commit directory already exists")

// Commit snapshots every staged file into a new commit directory, writes
// its metadata and then clears the files it captured from staging.
//
// The commit is assembled in a temporary directory and renamed into place
// once complete, so a failure never leaves a partial commit behind and never
// touches staging. An empty staging area yields a commit with no files.
func (s *Service) Commit(ctx context.Context, owner, repo, message string) (*Commit, error) {
	const op Op = "depot.Commit"

	if err := checkRepo(op, owner, repo); err != nil {
		return nil, err
	}

	unlock := s.locks.lockRepos(owner, repo)
	defer unlock()

	var commit *Commit
	err := s.track("Commit", owner, repo, message, func() error {
		var err error
		commit, err = s.commit(op, owner, repo, message)
		return err
	})
	if err != nil {
		return nil, err
	}
	return commit, nil
}

func (s *Service) commit(op Op, owner, repo, message string) (*Commit, error) {
	id := s.idgen.New()
	if !workspace.ValidSegment(id) || workspace.IsTemp(id) {
		return nil, E(op, "id="+id, fmt.Errorf("generated commit id is not a valid directory name"))
	}
	ident := repoIdent(owner, repo)

	commitsDir := s.layout.CommitsDir(owner, repo)
	if err := os.MkdirAll(commitsDir, 0755); err != nil {
		return nil, E(op, IOError, ident, err)
	}

	finalDir := s.layout.CommitDir(owner, repo, id)
	if _, err := os.Lstat(finalDir); err == nil {
		return nil, E(op, IOError, id, errCommitExists)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, E(op, IOError, id, err)
	}

	tmpDir := s.layout.TempCommitDir(owner, repo, id)
	if err := os.Mkdir(tmpDir, 0755); err != nil {
		return nil, E(op, IOError, id, err)
	}

	stagingDir := s.layout.StagingDir(owner, repo)
	staged, err := workspace.ListFiles(stagingDir)
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, E(op, IOError, ident, err)
	}

	for _, name := range staged {
		if _, err := workspace.CopyFile(filepath.Join(stagingDir, name), filepath.Join(tmpDir, name)); err != nil {
			s.logger.Error("copying staged file into commit failed", "repo", ident, "commit", id, "name", name, "error", err)
			os.RemoveAll(tmpDir)
			return nil, E(op, IOError, name, err)
		}
	}

	meta := workspace.Metadata{
		ID:        id,
		Message:   message,
		Timestamp: s.clock.Now().UTC(),
	}
	if err := workspace.WriteMetadata(tmpDir, meta); err != nil {
		os.RemoveAll(tmpDir)
		return nil, E(op, IOError, id, err)
	}

	if err := os.Rename(tmpDir, finalDir); err != nil {
		os.RemoveAll(tmpDir)
		return nil, E(op, IOError, id, err)
	}

	// Only the captured files leave staging; anything staged meanwhile stays.
	for _, name := range staged {
		if err := os.Remove(filepath.Join(stagingDir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("clearing staged file failed", "repo", ident, "name", name, "error", err)
		}
	}

	files := staged
	if files == nil {
		files = []string{}
	}
	c := &Commit{ID: id, Message: message, Timestamp: meta.Timestamp, Files: files}

	if err := s.journal.RecordCommit(commitRecord(owner, repo, c)); err != nil {
		s.logger.Warn("indexing commit failed", "repo", ident, "commit", id, "error", err)
	}

	s.logger.Info("commit created", "repo", ident, "commit", id, "files", len(staged))
	return c, nil
}

func commitRecord(owner, repo string, c *Commit) *model.CommitRecord {
	return &model.CommitRecord{
		ID:         c.ID,
		Owner:      owner,
		Repository: repo,
		Message:    c.Message,
		CreatedAt:  c.Timestamp,
		FileCount:  len(c.Files),
	}
}

// ListCommits returns the local commits of a repository, newest first.
// A commit whose metadata file is missing or unreadable is listed with a zero
// timestamp so it sorts as the oldest.
func (s *Service) ListCommits(ctx context.Context, owner, repo string) ([]*Commit, error) {
	const op Op = "depot.ListCommits"

	if err := checkRepo(op, owner, repo); err != nil {
		return nil, err
	}

	commits, err := s.localCommits(owner, repo)
	if err != nil {
		return nil, E(op, IOError, repoIdent(owner, repo), err)
	}
	SortCommits(commits)
	return commits, nil
}

// GetCommit returns a single local commit.
func (s *Service) GetCommit(ctx context.Context, owner, repo, commitID string) (*Commit, error) {
	const op Op = "depot.GetCommit"

	if err := checkSegments(op, map[string]string{"owner": owner, "repository": repo, "commit": commitID}, "owner", "repository", "commit"); err != nil {
		return nil, err
	}

	dir := s.layout.CommitDir(owner, repo, commitID)
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return nil, E(op, NotFound, commitID)
	}
	if err != nil {
		return nil, E(op, IOError, commitID, err)
	}

	c, err := s.readCommit(dir, commitID)
	if err != nil {
		return nil, E(op, IOError, commitID, err)
	}
	return c, nil
}

func (s *Service) localCommits(owner, repo string) ([]*Commit, error) {
	commitsDir := s.layout.CommitsDir(owner, repo)
	ids, err := workspace.ListDirs(commitsDir)
	if err != nil {
		return nil, err
	}

	commits := make([]*Commit, 0, len(ids))
	for _, id := range ids {
		c, err := s.readCommit(filepath.Join(commitsDir, id), id)
		if err != nil {
			return nil, err
		}
		commits = append(commits, c)
	}
	return commits, nil
}

// readCommit loads a commit directory. The directory name is the commit id.
func (s *Service) readCommit(dir, id string) (*Commit, error) {
	names, err := workspace.ListFiles(dir)
	if err != nil {
		return nil, err
	}

	c := &Commit{ID: id, Files: make([]string, 0, len(names))}
	for _, name := range names {
		if name == workspace.MetadataFileName {
			continue
		}
		c.Files = append(c.Files, name)
	}

	meta, err := workspace.ReadMetadata(dir)
	if err != nil {
		s.logger.Debug("commit metadata unavailable", "commit", id, "error", err)
		return c, nil
	}
	c.Message = meta.Message
	c.Timestamp = meta.Timestamp
	return c, nil
}
