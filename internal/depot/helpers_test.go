package depot_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"depot/internal/depot"
	"depot/internal/testutil"
)

func newService(t *testing.T) *testutil.TestService {
	t.Helper()
	return testutil.NewTestService(t, testutil.ServiceOptions{})
}

// stageContent writes content to a scratch file and stages it as name.
func stageContent(t *testing.T, ts *testutil.TestService, owner, repo, name, content string) {
	t.Helper()
	src := filepath.Join(t.TempDir(), "src-"+name)
	testutil.WriteFile(t, src, content)
	if err := ts.StageFile(context.Background(), owner, repo, src, name); err != nil {
		t.Fatalf("StageFile(%q) error = %v", name, err)
	}
}

// commitFiles stages files and commits them, advancing the clock first so
// successive commits get distinct timestamps.
func commitFiles(t *testing.T, ts *testutil.TestService, owner, repo, message string, files map[string]string) *depot.Commit {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stageContent(t, ts, owner, repo, name, files[name])
	}
	if ts.Clock != nil {
		ts.Clock.Advance(time.Minute)
	}
	c, err := ts.Commit(context.Background(), owner, repo, message)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	return c
}

func remoteContent(t *testing.T, store depot.ObjectStore, key string) string {
	t.Helper()
	var buf bytes.Buffer
	if err := store.Get(context.Background(), key, &buf); err != nil {
		t.Fatalf("Get(%q) error = %v", key, err)
	}
	return buf.String()
}

func remoteKeys(t *testing.T, store depot.ObjectStore, prefix string) []string {
	t.Helper()
	objects, err := store.List(context.Background(), prefix)
	if err != nil {
		t.Fatalf("List(%q) error = %v", prefix, err)
	}
	keys := make([]string, 0, len(objects))
	for _, o := range objects {
		keys = append(keys, o.Key)
	}
	return keys
}

func wantKind(t *testing.T, err error, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v (kind %v), want kind of %v", err, depot.KindOf(err), target)
	}
}
