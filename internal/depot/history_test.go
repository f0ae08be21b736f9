package depot_test

import (
	"context"
	"reflect"
	"testing"

	"depot/internal/depot"
)

func TestService_GetHistory(t *testing.T) {
	ctx := context.Background()
	ts := newService(t)

	commitFiles(t, ts, "alice", "notes", "first", map[string]string{"f": "1"})
	if _, err := ts.Pull(ctx, "alice", "ghost"); err == nil {
		t.Fatal("Pull() of empty remote expected error")
	}

	ops, err := ts.GetHistory(ctx, 0)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(ops) != 3 {
		t.Fatalf("operations = %d, want 3", len(ops))
	}

	latest, commit, stage := ops[0], ops[1], ops[2]
	if latest.Operation != "Pull" || latest.Status != "error" || latest.Error == "" {
		t.Errorf("latest = %+v, want failed Pull", latest)
	}
	if commit.Operation != "Commit" || commit.Status != "success" || commit.Parameters != "first" {
		t.Errorf("commit = %+v, want successful Commit", commit)
	}
	if stage.Operation != "StageFile" || stage.Owner != "alice" || stage.Repository != "notes" {
		t.Errorf("stage = %+v, want StageFile on alice/notes", stage)
	}
	if !commit.FinishedAt.Valid {
		t.Error("finished operation has no finish time")
	}

	limited, err := ts.GetHistory(ctx, 1)
	if err != nil {
		t.Fatalf("GetHistory(1) error = %v", err)
	}
	if len(limited) != 1 || limited[0].Operation != "Pull" {
		t.Errorf("GetHistory(1) = %+v", limited)
	}
}

func TestService_Status(t *testing.T) {
	ctx := context.Background()
	ts := newService(t)

	pushed := commitFiles(t, ts, "alice", "notes", "pushed", map[string]string{"a": "1"})
	if _, err := ts.Push(ctx, "alice", "notes"); err != nil {
		t.Fatal(err)
	}
	local := commitFiles(t, ts, "alice", "notes", "local", map[string]string{"b": "2"})
	stageContent(t, ts, "alice", "notes", "c", "3")

	st, err := ts.Status(ctx, "alice", "notes")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !reflect.DeepEqual(st.Staged, []string{"c"}) {
		t.Errorf("Staged = %v", st.Staged)
	}
	if len(st.Commits) != 2 || st.Commits[0].ID != local.ID || st.Commits[1].ID != pushed.ID {
		t.Errorf("Commits not newest first: %+v", st.Commits)
	}
	if !reflect.DeepEqual(st.Unpushed, []string{local.ID}) {
		t.Errorf("Unpushed = %v, want [%s]", st.Unpushed, local.ID)
	}

	_, err = ts.Status(ctx, "alice", "ghost")
	wantKind(t, err, depot.ErrNotFound)
}
