package depot_test

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"depot/internal/depot"
	"depot/internal/testutil"
	"depot/internal/workspace"
)

func TestService_Revert(t *testing.T) {
	ctx := context.Background()

	t.Run("restores files into the owner directory", func(t *testing.T) {
		ts := newService(t)
		c := commitFiles(t, ts, "alice", "notes", "m", map[string]string{"a.txt": "alpha", "b.txt": "beta"})

		res, err := ts.Revert(ctx, "alice", "notes", c.ID)
		if err != nil {
			t.Fatalf("Revert() error = %v", err)
		}

		userDir := ts.Layout.UserDir("alice")
		if res.Target != userDir {
			t.Errorf("Target = %q, want %q", res.Target, userDir)
		}
		if !reflect.DeepEqual(res.Files, []string{"a.txt", "b.txt"}) {
			t.Errorf("Files = %v", res.Files)
		}
		if got := testutil.ReadFile(t, filepath.Join(userDir, "a.txt")); got != "alpha" {
			t.Errorf("a.txt = %q", got)
		}
		if testutil.Exists(t, filepath.Join(userDir, workspace.MetadataFileName)) {
			t.Error("commit metadata was restored")
		}
	})

	t.Run("overwrites existing files", func(t *testing.T) {
		ts := newService(t)
		c := commitFiles(t, ts, "alice", "notes", "m", map[string]string{"a.txt": "committed"})
		target := filepath.Join(ts.Layout.UserDir("alice"), "a.txt")
		testutil.WriteFile(t, target, "edited")

		if _, err := ts.Revert(ctx, "alice", "notes", c.ID); err != nil {
			t.Fatalf("Revert() error = %v", err)
		}
		if got := testutil.ReadFile(t, target); got != "committed" {
			t.Errorf("a.txt = %q, want committed", got)
		}
	})

	t.Run("leaves staging and history alone", func(t *testing.T) {
		ts := newService(t)
		c := commitFiles(t, ts, "alice", "notes", "m", map[string]string{"a.txt": "1"})
		stageContent(t, ts, "alice", "notes", "pending", "p")

		if _, err := ts.Revert(ctx, "alice", "notes", c.ID); err != nil {
			t.Fatalf("Revert() error = %v", err)
		}
		staged, _ := ts.ListStaged(ctx, "alice", "notes")
		if !reflect.DeepEqual(staged, []string{"pending"}) {
			t.Errorf("staging = %v, want [pending]", staged)
		}
		commits, _ := ts.ListCommits(ctx, "alice", "notes")
		if len(commits) != 1 {
			t.Errorf("commits = %d, want 1", len(commits))
		}
	})

	t.Run("unknown commit writes nothing", func(t *testing.T) {
		ts := newService(t)
		commitFiles(t, ts, "alice", "notes", "m", map[string]string{"a.txt": "1"})

		_, err := ts.Revert(ctx, "alice", "notes", "missing")
		wantKind(t, err, depot.ErrNotFound)
		if testutil.Exists(t, filepath.Join(ts.Layout.UserDir("alice"), "a.txt")) {
			t.Error("file restored for unknown commit")
		}
	})

	t.Run("skips names taken by repository directories", func(t *testing.T) {
		ts := newService(t)
		if err := ts.CreateWorkspace(ctx, "alice", "other"); err != nil {
			t.Fatalf("CreateWorkspace() error = %v", err)
		}
		c := commitFiles(t, ts, "alice", "notes", "m", map[string]string{
			"a.txt": "alpha",
			"notes": "shadows own repo",
			"other": "shadows sibling",
		})

		res, err := ts.Revert(ctx, "alice", "notes", c.ID)
		if err != nil {
			t.Fatalf("Revert() error = %v", err)
		}
		if !reflect.DeepEqual(res.Files, []string{"a.txt"}) {
			t.Errorf("Files = %v, want [a.txt]", res.Files)
		}
		if !reflect.DeepEqual(res.Skipped, []string{"notes", "other"}) {
			t.Errorf("Skipped = %v, want [notes other]", res.Skipped)
		}

		userDir := ts.Layout.UserDir("alice")
		if got := testutil.ReadFile(t, filepath.Join(userDir, "a.txt")); got != "alpha" {
			t.Errorf("a.txt = %q", got)
		}
		commits, err := ts.ListCommits(ctx, "alice", "notes")
		if err != nil || len(commits) != 1 {
			t.Errorf("ListCommits() = %d commits, %v; want 1, nil", len(commits), err)
		}
		if !testutil.Exists(t, ts.Layout.ConfigPath("alice", "other")) {
			t.Error("sibling workspace damaged")
		}
	})

	t.Run("invalid commit id", func(t *testing.T) {
		ts := newService(t)
		_, err := ts.Revert(ctx, "alice", "notes", "../notes")
		wantKind(t, err, depot.ErrInvalidArgument)
	})
}
