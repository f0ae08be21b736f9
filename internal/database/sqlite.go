package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"depot/internal/database/migrations"
	"depot/internal/depot"
	"depot/internal/model"
)

// SQLiteDatabase implements depot.Journal using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewSQLiteDatabase opens the database at path and migrates it to the
// latest schema. path can be a file path or ":memory:".
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating journal: %w", err)
	}

	return &SQLiteDatabase{
		db:   db,
		path: path,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// OpenConnection opens and configures a SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		// The HTTP server journals from concurrent requests.
		dsn = path + "?_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to ":memory:" would see its own empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Operation journal

func (s *SQLiteDatabase) StartOperation(operation, owner, repository, parameters string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO operations (operation, owner, repository, parameters, status, started_at)
		 VALUES (?, ?, ?, ?, 'running', ?)`,
		operation, owner, repository, parameters, s.now())
	if err != nil {
		return 0, fmt.Errorf("starting operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading operation id: %w", err)
	}
	return id, nil
}

func (s *SQLiteDatabase) FinishOperation(id int64, status string, errMsg string) error {
	_, err := s.db.Exec(
		`UPDATE operations SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, errMsg, s.now(), id)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListOperations(limit int) ([]*model.Operation, error) {
	rows, err := s.db.Query(
		`SELECT id, operation, owner, repository, parameters, status, error, started_at, finished_at
		 FROM operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*model.Operation
	for rows.Next() {
		op := &model.Operation{}
		if err := rows.Scan(&op.ID, &op.Operation, &op.Owner, &op.Repository, &op.Parameters,
			&op.Status, &op.Error, &op.StartedAt, &op.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// Commit index

// RecordCommit inserts rec, or refreshes message, time and file count of an
// already indexed commit without touching its pushed-at time.
func (s *SQLiteDatabase) RecordCommit(rec *model.CommitRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO commits (id, owner, repository, message, created_at, file_count, pushed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (owner, repository, id) DO UPDATE SET
		   message = excluded.message,
		   created_at = excluded.created_at,
		   file_count = excluded.file_count`,
		rec.ID, rec.Owner, rec.Repository, rec.Message, rec.CreatedAt, rec.FileCount, rec.PushedAt)
	if err != nil {
		return fmt.Errorf("recording commit: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) MarkCommitPushed(owner, repository, commitID string, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE commits SET pushed_at = ? WHERE owner = ? AND repository = ? AND id = ?`,
		at, owner, repository, commitID)
	if err != nil {
		return fmt.Errorf("marking commit pushed: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListCommitRecords(owner, repository string) ([]*model.CommitRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, owner, repository, message, created_at, file_count, pushed_at
		 FROM commits WHERE owner = ? AND repository = ? ORDER BY created_at, id`,
		owner, repository)
	if err != nil {
		return nil, fmt.Errorf("listing commits: %w", err)
	}
	defer rows.Close()

	var recs []*model.CommitRecord
	for rows.Next() {
		rec := &model.CommitRecord{}
		if err := rows.Scan(&rec.ID, &rec.Owner, &rec.Repository, &rec.Message,
			&rec.CreatedAt, &rec.FileCount, &rec.PushedAt); err != nil {
			return nil, fmt.Errorf("scanning commit: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing commits: %w", err)
	}
	return recs, nil
}

// Lifecycle bookkeeping

func (s *SQLiteDatabase) RenameRepository(owner, oldName, newName string) error {
	return s.inTx("renaming repository", func(tx *sql.Tx) error {
		if _, err := tx.Exec(`UPDATE operations SET repository = ? WHERE owner = ? AND repository = ?`,
			newName, owner, oldName); err != nil {
			return err
		}
		_, err := tx.Exec(`UPDATE OR REPLACE commits SET repository = ? WHERE owner = ? AND repository = ?`,
			newName, owner, oldName)
		return err
	})
}

// DeleteRepository drops the commit index of a repository. Operation rows
// stay as history.
func (s *SQLiteDatabase) DeleteRepository(owner, repository string) error {
	_, err := s.db.Exec(`DELETE FROM commits WHERE owner = ? AND repository = ?`, owner, repository)
	if err != nil {
		return fmt.Errorf("deleting repository: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) RenameUser(oldOwner, newOwner string) error {
	return s.inTx("renaming user", func(tx *sql.Tx) error {
		if _, err := tx.Exec(`UPDATE operations SET owner = ? WHERE owner = ?`, newOwner, oldOwner); err != nil {
			return err
		}
		_, err := tx.Exec(`UPDATE OR REPLACE commits SET owner = ? WHERE owner = ?`, newOwner, oldOwner)
		return err
	})
}

// DeleteUser drops the commit index of every repository of owner.
func (s *SQLiteDatabase) DeleteUser(owner string) error {
	_, err := s.db.Exec(`DELETE FROM commits WHERE owner = ?`, owner)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) inTx(what string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%s: beginning transaction: %w", what, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("%s: %w", what, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: committing: %w", what, err)
	}
	return nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ depot.Journal = (*SQLiteDatabase)(nil)
