package depot

import (
	"depot/internal/workspace"
)

// Service is the orchestration layer over the local workspaces and the
// remote mirror. It implements staging, commit, push/pull, archive download,
// revert and the workspace lifecycle.
//
// Every mutating operation holds the repository's lock for its whole
// duration, so operations on the same repository never interleave.
type Service struct {
	layout  *workspace.Layout
	bucket  string
	store   ObjectStore
	journal Journal
	logger  Logger
	clock   Clock
	idgen   IDGenerator
	locks   *lockTable
}

// NewService creates a Service with the provided dependencies. bucket is the
// name recorded in each workspace's config file; store must already be bound
// to that bucket.
func NewService(layout *workspace.Layout, bucket string, store ObjectStore, journal Journal, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		layout:  layout,
		bucket:  bucket,
		store:   store,
		journal: journal,
		logger:  logger,
		clock:   clock,
		idgen:   idgen,
		locks:   newLockTable(),
	}
}

// Layout returns the local workspace layout the service operates on.
func (s *Service) Layout() *workspace.Layout {
	return s.layout
}

// checkSegments returns an InvalidArgument error naming the first value
// that is not a usable path segment.
func checkSegments(op Op, names map[string]string, order ...string) error {
	for _, field := range order {
		v := names[field]
		if v == "" {
			return E(op, InvalidArgument, field, errMissing)
		}
		if !workspace.ValidSegment(v) {
			return E(op, InvalidArgument, field+"="+v, errMalformed)
		}
	}
	return nil
}

func checkRepo(op Op, owner, repo string) error {
	return checkSegments(op, map[string]string{"owner": owner, "repository": repo}, "owner", "repository")
}

// track records op in the journal around fn. Journal failures are logged
// and never fail the operation itself.
func (s *Service) track(operation, owner, repo, params string, fn func() error) error {
	id, jerr := s.journal.StartOperation(operation, owner, repo, params)
	if jerr != nil {
		s.logger.Warn("journal start failed", "operation", operation, "error", jerr)
	}

	err := fn()

	if jerr == nil {
		status, msg := "success", ""
		if err != nil {
			status, msg = "error", err.Error()
		}
		if ferr := s.journal.FinishOperation(id, status, msg); ferr != nil {
			s.logger.Warn("journal finish failed", "operation", operation, "error", ferr)
		}
	}
	return err
}

// Remote key scheme, shared by push, pull, archive and lifecycle:
//
//	<owner>/<repo>/commits/<commitID>/<filename>

func remoteUserPrefix(owner string) string {
	return owner + "/"
}

func remoteRepoPrefix(owner, repo string) string {
	return owner + "/" + repo + "/"
}

func remoteCommitsPrefix(owner, repo string) string {
	return remoteRepoPrefix(owner, repo) + workspace.CommitsDirName + "/"
}

func remoteCommitPrefix(owner, repo, commitID string) string {
	return remoteCommitsPrefix(owner, repo) + commitID + "/"
}

func remoteKey(owner, repo, commitID, name string) string {
	return remoteCommitPrefix(owner, repo, commitID) + name
}
