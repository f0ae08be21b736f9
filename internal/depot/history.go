package depot

import (
	"context"

	"depot/internal/model"
)

// RepoStatus summarizes the local state of a repository.
type RepoStatus struct {
	Owner      string
	Repository string
	Staged     []string
	Commits    []*Commit // newest first
	Unpushed   []string  // ids of local commits the journal has not seen pushed
}

// GetHistory returns the most recent journaled operations, newest first.
func (s *Service) GetHistory(ctx context.Context, limit int) ([]*model.Operation, error) {
	const op Op = "depot.GetHistory"

	if limit <= 0 {
		limit = 20
	}
	ops, err := s.journal.ListOperations(limit)
	if err != nil {
		return nil, E(op, IOError, err)
	}
	return ops, nil
}

// Status reports staged files, local commits and which of them are not yet pushed.
func (s *Service) Status(ctx context.Context, owner, repo string) (*RepoStatus, error) {
	const op Op = "depot.Status"

	if err := checkRepo(op, owner, repo); err != nil {
		return nil, err
	}

	exists, err := s.layout.Exists(owner, repo)
	if err != nil {
		return nil, E(op, IOError, repoIdent(owner, repo), err)
	}
	if !exists {
		return nil, E(op, NotFound, repoIdent(owner, repo))
	}

	staged, err := s.ListStaged(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	commits, err := s.ListCommits(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	pushed := make(map[string]bool)
	records, err := s.journal.ListCommitRecords(owner, repo)
	if err != nil {
		s.logger.Warn("reading commit index failed", "repo", repoIdent(owner, repo), "error", err)
	}
	for _, rec := range records {
		pushed[rec.ID] = rec.PushedAt.Valid
	}

	st := &RepoStatus{Owner: owner, Repository: repo, Staged: staged, Commits: commits}
	for _, c := range commits {
		if !pushed[c.ID] {
			st.Unpushed = append(st.Unpushed, c.ID)
		}
	}
	return st, nil
}
