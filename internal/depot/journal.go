package depot

import (
	"time"

	"depot/internal/model"
)

// Journal records what the service did: one row per mutating operation and
// one row per commit. It is bookkeeping only; the workspace on disk and the
// remote mirror remain the source of truth.
type Journal interface {
	// StartOperation records the start of an operation and returns its ID.
	StartOperation(operation, owner, repository, parameters string) (int64, error)

	// FinishOperation records the outcome of an operation.
	FinishOperation(id int64, status string, errMsg string) error

	// ListOperations returns the most recent operations, newest first.
	ListOperations(limit int) ([]*model.Operation, error)

	// RecordCommit adds a commit to the commit index.
	RecordCommit(rec *model.CommitRecord) error

	// MarkCommitPushed sets the pushed-at time of an indexed commit.
	MarkCommitPushed(owner, repository, commitID string, at time.Time) error

	// ListCommitRecords returns the indexed commits of a repository, oldest first.
	ListCommitRecords(owner, repository string) ([]*model.CommitRecord, error)

	// RenameRepository moves index rows from one repository name to another.
	RenameRepository(owner, oldName, newName string) error

	// DeleteRepository removes the index rows of a repository.
	DeleteRepository(owner, repository string) error

	// RenameUser moves index rows from one owner to another.
	RenameUser(oldOwner, newOwner string) error

	// DeleteUser removes the index rows of every repository of an owner.
	DeleteUser(owner string) error

	// Close closes the underlying storage.
	Close() error
}
