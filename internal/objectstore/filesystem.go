package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"depot/internal/depot"
)

// FileSystemStore is a directory-backed implementation of depot.ObjectStore.
// Object keys map to relative paths under the root:
//
//	<root>/
//	  <owner>/<repo>/commits/<id>/<file>
//
// A key ending in "/" is a directory marker: putting one creates the
// directory, and an empty directory is listed as its marker key.
type FileSystemStore struct {
	bucket string
	root   string
}

// NewFileSystemStore creates a store rooted at root, creating the directory if needed.
func NewFileSystemStore(bucket, root string) (*FileSystemStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}
	return &FileSystemStore{bucket: bucket, root: root}, nil
}

// path maps a key to its location on disk.
func (s *FileSystemStore) path(key string) (string, error) {
	rel := strings.TrimSuffix(key, "/")
	if !fs.ValidPath(rel) || rel == "." {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(rel)), nil
}

// Put stores the contents of r under key using an atomic write.
func (s *FileSystemStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	if strings.HasSuffix(key, "/") {
		if _, err := io.Copy(io.Discard, r); err != nil {
			return fmt.Errorf("failed to read marker body: %w", err)
		}
		return os.MkdirAll(p, 0755)
	}

	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}
	return writeFile(p, r, size)
}

// Get writes the object stored under key to w.
func (s *FileSystemStore) Get(ctx context.Context, key string, w io.Writer) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", key, depot.ErrObjectNotFound)
		}
		return fmt.Errorf("failed to open object: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat object: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s: %w", key, depot.ErrObjectNotFound)
	}

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	return nil
}

// List returns every object whose key starts with prefix, sorted by key.
func (s *FileSystemStore) List(ctx context.Context, prefix string) ([]depot.ObjectInfo, error) {
	start := s.root
	if i := strings.LastIndex(prefix, "/"); i > 0 {
		p, err := s.path(prefix[:i])
		if err != nil {
			return nil, err
		}
		start = p
	}

	var out []depot.ObjectInfo
	err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if strings.HasPrefix(d.Name(), ".tmp-") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)

		if d.IsDir() {
			if p == s.root {
				return nil
			}
			empty, err := isEmptyDir(p)
			if err != nil || !empty {
				return err
			}
			key += "/"
			if strings.HasPrefix(key, prefix) {
				out = append(out, depot.ObjectInfo{Key: key})
			}
			return nil
		}

		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, depot.ObjectInfo{Key: key, Size: info.Size(), LastModified: info.ModTime().UTC()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %q: %w", prefix, err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// ListPrefixes returns the distinct common prefixes one delimiter below prefix.
func (s *FileSystemStore) ListPrefixes(ctx context.Context, prefix, delimiter string) ([]string, error) {
	objects, err := s.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, obj := range objects {
		if p, ok := commonPrefix(obj.Key, prefix, delimiter); ok {
			seen[p] = true
		}
	}
	return sortedKeys(seen), nil
}

// Delete removes key and prunes any parent directories left empty.
// Deleting a missing key is not an error.
func (s *FileSystemStore) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	for dir := filepath.Dir(p); dir != s.root && strings.HasPrefix(dir, s.root); dir = filepath.Dir(dir) {
		if empty, err := isEmptyDir(dir); err != nil || !empty {
			break
		}
		if err := os.Remove(dir); err != nil {
			break
		}
	}
	return nil
}

// Copy duplicates srcKey to dstKey.
func (s *FileSystemStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	if strings.HasSuffix(srcKey, "/") {
		return s.Put(ctx, dstKey, strings.NewReader(""), 0)
	}

	src, err := s.path(srcKey)
	if err != nil {
		return err
	}
	f, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", srcKey, depot.ErrObjectNotFound)
		}
		return fmt.Errorf("failed to open object: %w", err)
	}
	defer f.Close()

	return s.Put(ctx, dstKey, f, -1)
}

// ValidateSetup verifies that the store root is an accessible directory.
func (s *FileSystemStore) ValidateSetup(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("store root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("store root is not a directory: %s", s.root)
	}

	check, err := os.CreateTemp(s.root, ".tmp-check-*")
	if err != nil {
		return fmt.Errorf("store root not writable: %w", err)
	}
	check.Close()
	return os.Remove(check.Name())
}

// writeFile writes r to destPath through a temp file and rename. A negative
// expectedSize skips the length check.
func writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if expectedSize >= 0 && written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

func isEmptyDir(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}

var _ depot.ObjectStore = (*FileSystemStore)(nil)
