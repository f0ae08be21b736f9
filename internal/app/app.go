package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"depot/internal/config"
	"depot/internal/database"
	"depot/internal/depot"
	"depot/internal/objectstore"
	"depot/internal/workspace"
)

// App is the application layer between the CLI (or HTTP server) and
// depot.Service. It constructs all dependencies from config, exposes the
// operations that need raw path handling, and closes the journal on Close.
type App struct {
	cfg     *config.Config
	journal *database.SQLiteDatabase
	store   depot.ObjectStore
	service *depot.Service
	logger  *slog.Logger
	inv     *Invocation
	logFile *os.File
}

// NewApp creates a fully wired App from the given config.
// command identifies the CLI command being run (e.g. "push", "serve").
// The caller must call Close when done.
func NewApp(ctx context.Context, cfg *config.Config, command string) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	store, err := objectstore.NewFromConfig(ctx, cfg.ObjectStore)
	if err != nil {
		return nil, fmt.Errorf("creating object store: %w", err)
	}
	if err := store.ValidateSetup(ctx); err != nil {
		return nil, fmt.Errorf("object store not usable: %w", err)
	}

	journal, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if err := journal.CheckMigrations(); err != nil {
		journal.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	inv := NewInvocation(command, time.Now())
	logger, logFile, err := newLogger(cfg.LogDir, inv.ID, level)
	if err != nil {
		journal.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	var ids depot.IDGenerator = depot.UUIDGenerator{}
	if cfg.CommitIDs == "ulid" {
		ids = depot.NewULIDGenerator()
	}

	layout := workspace.NewLayout(cfg.WorkspaceRoot)
	svc := depot.NewService(layout, cfg.ObjectStore.Bucket, store, journal, &slogAdapter{l: logger}, depot.RealClock{}, ids)

	logger.Debug("app started", "command", command, "store", cfg.ObjectStore.Type, "root", cfg.WorkspaceRoot)

	return &App{
		cfg:     cfg,
		journal: journal,
		store:   store,
		service: svc,
		logger:  logger,
		inv:     inv,
		logFile: logFile,
	}, nil
}

// Service returns the wired depot service.
func (a *App) Service() *depot.Service { return a.service }

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Config returns the config the app was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Record notes the outcome of the command and returns err unchanged.
func (a *App) Record(err error) error {
	return a.inv.Fail(err)
}

// StageFile resolves rawPath and stages it as name (the base name of rawPath
// when empty). The service consumes its source file; with keep set, a
// scratch copy is staged instead so rawPath survives.
func (a *App) StageFile(ctx context.Context, owner, repo, rawPath, name string, keep bool) (string, error) {
	src, err := filepath.Abs(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	if name == "" {
		name = filepath.Base(src)
	}

	if keep {
		tmpDir, err := os.MkdirTemp("", "depot-stage-*")
		if err != nil {
			return "", fmt.Errorf("creating scratch directory: %w", err)
		}
		defer os.RemoveAll(tmpDir)

		scratch := filepath.Join(tmpDir, "upload")
		if _, err := workspace.CopyFile(src, scratch); err != nil {
			return "", fmt.Errorf("copying %s: %w", src, err)
		}
		src = scratch
	}

	if err := a.service.StageFile(ctx, owner, repo, src, name); err != nil {
		return "", err
	}
	return name, nil
}

// BackupJournal writes a consistent copy of the journal database to destPath.
func (a *App) BackupJournal(destPath string) error {
	dest, err := filepath.Abs(destPath)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("backup target already exists: %s", dest)
	}
	if err := a.journal.BackupTo(dest); err != nil {
		return err
	}
	a.logger.Info("journal backed up", "path", dest)
	return nil
}

// Close logs how the command ended and closes all resources.
func (a *App) Close() error {
	a.logger.Debug("app finished", "command", a.inv.Command, "status", a.inv.Status,
		"elapsed", a.inv.Elapsed(time.Now()).Round(time.Millisecond))

	var firstErr error
	if err := a.journal.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
