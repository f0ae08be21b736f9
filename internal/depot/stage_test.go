package depot_test

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"depot/internal/depot"
	"depot/internal/testutil"
)

func TestService_StageFile(t *testing.T) {
	ctx := context.Background()

	t.Run("copies into staging and removes the source", func(t *testing.T) {
		ts := newService(t)
		src := filepath.Join(t.TempDir(), "upload.tmp")
		testutil.WriteFile(t, src, "hello")

		if err := ts.StageFile(ctx, "alice", "notes", src, "hello.txt"); err != nil {
			t.Fatalf("StageFile() error = %v", err)
		}

		staged := filepath.Join(ts.Layout.StagingDir("alice", "notes"), "hello.txt")
		if got := testutil.ReadFile(t, staged); got != "hello" {
			t.Errorf("staged content = %q, want %q", got, "hello")
		}
		if testutil.Exists(t, src) {
			t.Error("source file still exists after staging")
		}
	})

	t.Run("staging many files into a fresh repository", func(t *testing.T) {
		ts := newService(t)
		for _, name := range []string{"a", "b", "c", "d"} {
			stageContent(t, ts, "alice", "fresh", name, name)
		}

		got, err := ts.ListStaged(ctx, "alice", "fresh")
		if err != nil {
			t.Fatalf("ListStaged() error = %v", err)
		}
		if want := []string{"a", "b", "c", "d"}; !reflect.DeepEqual(got, want) {
			t.Errorf("ListStaged() = %v, want %v", got, want)
		}
	})

	t.Run("same name replaces the staged file", func(t *testing.T) {
		ts := newService(t)
		stageContent(t, ts, "alice", "notes", "f", "one")
		stageContent(t, ts, "alice", "notes", "f", "two")

		staged := filepath.Join(ts.Layout.StagingDir("alice", "notes"), "f")
		if got := testutil.ReadFile(t, staged); got != "two" {
			t.Errorf("staged content = %q, want %q", got, "two")
		}
	})

	t.Run("missing source is an i/o error", func(t *testing.T) {
		ts := newService(t)
		err := ts.StageFile(ctx, "alice", "notes", filepath.Join(t.TempDir(), "nope"), "f")
		wantKind(t, err, depot.ErrIO)
	})

	t.Run("rejects invalid arguments", func(t *testing.T) {
		ts := newService(t)
		src := filepath.Join(t.TempDir(), "src")
		testutil.WriteFile(t, src, "x")

		tests := []struct {
			name                      string
			owner, repo, source, file string
		}{
			{"empty owner", "", "notes", src, "f"},
			{"empty repository", "alice", "", src, "f"},
			{"traversal in repository", "alice", "..", src, "f"},
			{"slash in name", "alice", "notes", src, "a/b"},
			{"reserved name", "alice", "notes", src, "commit.json"},
			{"temp prefix name", "alice", "notes", src, ".tmp-report"},
			{"empty source", "alice", "notes", "", "f"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := ts.StageFile(ctx, tt.owner, tt.repo, tt.source, tt.file)
				wantKind(t, err, depot.ErrInvalidArgument)
			})
		}
		if !testutil.Exists(t, src) {
			t.Error("source removed by a rejected call")
		}
	})
}

func TestService_ListStaged_Empty(t *testing.T) {
	ts := newService(t)
	got, err := ts.ListStaged(context.Background(), "alice", "never")
	if err != nil {
		t.Fatalf("ListStaged() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ListStaged() = %v, want empty", got)
	}
}
