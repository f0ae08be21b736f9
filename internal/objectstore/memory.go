package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"depot/internal/depot"
)

type memoryObject struct {
	data     []byte
	modified time.Time
}

// MemoryStore is an in-memory implementation of depot.ObjectStore, useful
// for tests and for running the service without a remote.
// It is safe for concurrent use.
type MemoryStore struct {
	bucket  string
	objects map[string]memoryObject
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{
		bucket:  bucket,
		objects: make(map[string]memoryObject),
	}
}

// Put stores the contents of r under key, replacing any existing object.
// A negative size skips the length check.
func (m *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = memoryObject{data: data, modified: time.Now().UTC()}
	return nil
}

// Get writes the object stored under key to w.
func (m *MemoryStore) Get(ctx context.Context, key string, w io.Writer) error {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%s: %w", key, depot.ErrObjectNotFound)
	}
	if _, err := io.Copy(w, bytes.NewReader(obj.data)); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	return nil
}

// List returns every object whose key starts with prefix, sorted by key.
func (m *MemoryStore) List(ctx context.Context, prefix string) ([]depot.ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []depot.ObjectInfo
	for key, obj := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, depot.ObjectInfo{Key: key, Size: int64(len(obj.data)), LastModified: obj.modified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// ListPrefixes returns the distinct common prefixes one delimiter below prefix.
func (m *MemoryStore) ListPrefixes(ctx context.Context, prefix, delimiter string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	for key := range m.objects {
		if p, ok := commonPrefix(key, prefix, delimiter); ok {
			seen[p] = true
		}
	}
	return sortedKeys(seen), nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, key)
	return nil
}

// Copy duplicates srcKey to dstKey.
func (m *MemoryStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[srcKey]
	if !ok {
		return fmt.Errorf("%s: %w", srcKey, depot.ErrObjectNotFound)
	}
	m.objects[dstKey] = memoryObject{data: bytes.Clone(obj.data), modified: time.Now().UTC()}
	return nil
}

// ValidateSetup always succeeds for the in-memory store.
func (m *MemoryStore) ValidateSetup(ctx context.Context) error {
	return nil
}

// commonPrefix returns the part of key up to and including the first
// delimiter after prefix.
func commonPrefix(key, prefix, delimiter string) (string, bool) {
	rest, ok := strings.CutPrefix(key, prefix)
	if !ok || delimiter == "" {
		return "", false
	}
	i := strings.Index(rest, delimiter)
	if i < 0 {
		return "", false
	}
	return prefix + rest[:i+len(delimiter)], true
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var _ depot.ObjectStore = (*MemoryStore)(nil)
