package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"depot/internal/depot"
	"depot/internal/workspace"
)

// ServiceOptions overrides the dependencies of NewTestService. Zero fields
// get test defaults.
type ServiceOptions struct {
	Root  string
	Store depot.ObjectStore
	Clock depot.Clock
	IDs   depot.IDGenerator
}

// TestService bundles a Service with the collaborators tests inspect.
type TestService struct {
	*depot.Service
	Root    string
	Layout  *workspace.Layout
	Store   depot.ObjectStore
	Journal depot.Journal
	Clock   *StubClock // nil when a non-stub clock was supplied
}

// NewTestService builds a Service over a temp workspace root, an in-memory
// store and an in-memory journal.
func NewTestService(t *testing.T, opts ServiceOptions) *TestService {
	t.Helper()

	if opts.Root == "" {
		opts.Root = t.TempDir()
	}
	if opts.Store == nil {
		opts.Store = NewTestStore()
	}
	if opts.Clock == nil {
		opts.Clock = FixedClock()
	}
	stub, _ := opts.Clock.(*StubClock)
	if opts.IDs == nil {
		opts.IDs = NewStubIDGenerator()
	}

	layout := workspace.NewLayout(opts.Root)
	journal := NewTestDatabase(t)
	svc := depot.NewService(layout, "test-bucket", opts.Store, journal, depot.NewNopLogger(), opts.Clock, opts.IDs)

	return &TestService{
		Service: svc,
		Root:    opts.Root,
		Layout:  layout,
		Store:   opts.Store,
		Journal: journal,
		Clock:   stub,
	}
}

// WriteFile creates path with content, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// ReadFile returns the content of path.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

// Exists reports whether path exists.
func Exists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	if err == nil {
		return true
	}
	if !os.IsNotExist(err) {
		t.Fatalf("stat %s: %v", path, err)
	}
	return false
}
