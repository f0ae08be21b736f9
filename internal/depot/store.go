package depot

import (
	"context"
	"io"
	"time"
)

// ObjectStore is the gateway to the remote blob store holding every
// workspace's Remote Mirror. Implementations are bound to one bucket and
// address objects by key only. All operations stream through
// io.Reader/io.Writer so large files are never held in memory.
type ObjectStore interface {
	// Get writes the body of key to w.
	// Returns an error wrapping ErrObjectNotFound if the key does not exist.
	Get(ctx context.Context, key string, w io.Writer) error

	// Put stores size bytes read from r under key, replacing any existing object.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// List returns every object whose key starts with prefix, sorted by key.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// ListPrefixes returns the distinct common prefixes one delimiter-separated
	// level below prefix (S3's CommonPrefixes). Each entry ends with delimiter.
	ListPrefixes(ctx context.Context, prefix, delimiter string) ([]string, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Copy duplicates srcKey to dstKey within the bucket.
	Copy(ctx context.Context, srcKey, dstKey string) error

	// ValidateSetup verifies that the store is reachable and configured.
	ValidateSetup(ctx context.Context) error
}

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}
