package model

import (
	"database/sql"
	"time"
)

// Operation is one row of the operation journal.
type Operation struct {
	ID         int64        // Auto-increment
	Operation  string       // e.g. "Commit", "Push", "RenameWorkspace"
	Owner      string       // Owner the operation ran against
	Repository string       // Repository name, empty for user-level operations
	Parameters string       // Free-form, e.g. the commit message or new name
	Status     string       // "running", "success" or "error"
	Error      string       // Error text when Status == "error"
	StartedAt  time.Time    // When the operation began
	FinishedAt sql.NullTime // When it ended, if it has
}

// CommitRecord indexes one commit of a repository.
type CommitRecord struct {
	ID         string       // Commit ID, also the commit directory name
	Owner      string       // Repository owner
	Repository string       // Repository name
	Message    string       // Commit message, verbatim
	CreatedAt  time.Time    // Commit timestamp
	FileCount  int          // Files captured from staging
	PushedAt   sql.NullTime // Last successful push of this commit
}
