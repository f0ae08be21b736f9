package testutil

import (
	"context"
	"errors"
	"io"
	"sync"

	"depot/internal/depot"
	"depot/internal/objectstore"
)

// ErrInjected is the error returned by FaultyStore for injected failures.
var ErrInjected = errors.New("injected store failure")

// NewTestStore creates a new in-memory object store for testing.
func NewTestStore() *objectstore.MemoryStore {
	return objectstore.NewMemoryStore("test-bucket")
}

// FaultyStore wraps an ObjectStore and fails selected calls. Keys are
// matched exactly; "*" matches every key.
type FaultyStore struct {
	depot.ObjectStore

	mu       sync.Mutex
	get      map[string]bool
	put      map[string]bool
	del      map[string]bool
	cp       map[string]bool
	failList bool
}

// NewFaultyStore wraps inner with no failures configured.
func NewFaultyStore(inner depot.ObjectStore) *FaultyStore {
	return &FaultyStore{
		ObjectStore: inner,
		get:         make(map[string]bool),
		put:         make(map[string]bool),
		del:         make(map[string]bool),
		cp:          make(map[string]bool),
	}
}

func (f *FaultyStore) FailGet(keys ...string)    { f.add(f.get, keys) }
func (f *FaultyStore) FailPut(keys ...string)    { f.add(f.put, keys) }
func (f *FaultyStore) FailDelete(keys ...string) { f.add(f.del, keys) }

// FailCopy fails copies whose source key matches.
func (f *FaultyStore) FailCopy(keys ...string) { f.add(f.cp, keys) }

// FailList makes List and ListPrefixes fail.
func (f *FaultyStore) FailList() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failList = true
}

func (f *FaultyStore) add(set map[string]bool, keys []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		set[k] = true
	}
}

func (f *FaultyStore) fails(set map[string]bool, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return set["*"] || set[key]
}

func (f *FaultyStore) Get(ctx context.Context, key string, w io.Writer) error {
	if f.fails(f.get, key) {
		return ErrInjected
	}
	return f.ObjectStore.Get(ctx, key, w)
}

func (f *FaultyStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	if f.fails(f.put, key) {
		return ErrInjected
	}
	return f.ObjectStore.Put(ctx, key, r, size)
}

func (f *FaultyStore) Delete(ctx context.Context, key string) error {
	if f.fails(f.del, key) {
		return ErrInjected
	}
	return f.ObjectStore.Delete(ctx, key)
}

func (f *FaultyStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	if f.fails(f.cp, srcKey) {
		return ErrInjected
	}
	return f.ObjectStore.Copy(ctx, srcKey, dstKey)
}

func (f *FaultyStore) List(ctx context.Context, prefix string) ([]depot.ObjectInfo, error) {
	f.mu.Lock()
	fail := f.failList
	f.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return f.ObjectStore.List(ctx, prefix)
}

func (f *FaultyStore) ListPrefixes(ctx context.Context, prefix, delimiter string) ([]string, error) {
	f.mu.Lock()
	fail := f.failList
	f.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return f.ObjectStore.ListPrefixes(ctx, prefix, delimiter)
}

var _ depot.ObjectStore = (*FaultyStore)(nil)
