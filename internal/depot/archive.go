package depot

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"depot/internal/workspace"
)

// ArchiveResult describes a zip archive written by DownloadLatest or
// DownloadCommit.
type ArchiveResult struct {
	CommitID string
	Entries  []string // entry names written, in listing order
	Skipped  []string // object keys that could not be fetched
}

// DownloadLatest writes the most recent remote commit of a repository to w
// as a zip archive. The latest commit is chosen by timestamp, read from each
// remote commit's metadata, with the commit id as tie-break.
func (s *Service) DownloadLatest(ctx context.Context, owner, repo string, w io.Writer) (*ArchiveResult, error) {
	const op Op = "depot.DownloadLatest"

	if err := checkRepo(op, owner, repo); err != nil {
		return nil, err
	}

	commitID, err := s.latestRemoteCommit(ctx, op, owner, repo)
	if err != nil {
		return nil, err
	}
	return s.archive(ctx, op, owner, repo, commitID, w)
}

// DownloadCommit writes one remote commit of a repository to w as a zip archive.
func (s *Service) DownloadCommit(ctx context.Context, owner, repo, commitID string, w io.Writer) (*ArchiveResult, error) {
	const op Op = "depot.DownloadCommit"

	if err := checkSegments(op, map[string]string{"owner": owner, "repository": repo, "commit": commitID}, "owner", "repository", "commit"); err != nil {
		return nil, err
	}
	return s.archive(ctx, op, owner, repo, commitID, w)
}

func (s *Service) latestRemoteCommit(ctx context.Context, op Op, owner, repo string) (string, error) {
	prefix := remoteCommitsPrefix(owner, repo)

	prefixes, err := s.store.ListPrefixes(ctx, prefix, "/")
	if err != nil {
		return "", E(op, RemoteError, prefix, err)
	}

	var (
		bestID   string
		bestTime time.Time
		found    bool
	)
	for _, p := range prefixes {
		id := strings.TrimSuffix(strings.TrimPrefix(p, prefix), "/")
		if !workspace.ValidSegment(id) || workspace.IsTemp(id) {
			continue
		}
		ts := s.remoteTimestamp(ctx, owner, repo, id)
		if !found || compareCommits(ts, id, bestTime, bestID) > 0 {
			bestID, bestTime, found = id, ts, true
		}
	}
	if !found {
		return "", E(op, NotFound, prefix)
	}

	s.logger.Debug("latest remote commit selected", "repo", repoIdent(owner, repo), "commit", bestID)
	return bestID, nil
}

// remoteTimestamp returns the timestamp recorded in a remote commit's
// metadata, or the zero time when it cannot be read.
func (s *Service) remoteTimestamp(ctx context.Context, owner, repo, commitID string) time.Time {
	var buf bytes.Buffer
	key := remoteKey(owner, repo, commitID, workspace.MetadataFileName)
	if err := s.store.Get(ctx, key, &buf); err != nil {
		s.logger.Debug("remote commit metadata unavailable", "key", key, "error", err)
		return time.Time{}
	}
	meta, err := workspace.DecodeMetadata(buf.Bytes())
	if err != nil {
		s.logger.Warn("remote commit metadata unreadable", "key", key, "error", err)
		return time.Time{}
	}
	return meta.Timestamp
}

func (s *Service) archive(ctx context.Context, op Op, owner, repo, commitID string, w io.Writer) (*ArchiveResult, error) {
	prefix := remoteCommitPrefix(owner, repo, commitID)

	objects, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, E(op, RemoteError, prefix, err)
	}

	result := &ArchiveResult{CommitID: commitID}
	var wanted []ObjectInfo
	for _, obj := range objects {
		name := strings.TrimPrefix(obj.Key, prefix)
		if strings.HasSuffix(obj.Key, "/") || name == workspace.MetadataFileName {
			continue
		}
		if !fs.ValidPath(name) {
			s.logger.Warn("skipping unsafe archive entry", "key", obj.Key)
			result.Skipped = append(result.Skipped, obj.Key)
			continue
		}
		wanted = append(wanted, obj)
	}
	if len(wanted) == 0 {
		return nil, E(op, NotFound, commitID)
	}

	spool, err := os.CreateTemp("", "depot-archive-*")
	if err != nil {
		return nil, E(op, IOError, commitID, err)
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()

	zw := zip.NewWriter(w)
	for _, obj := range wanted {
		name := strings.TrimPrefix(obj.Key, prefix)

		if err := fetchInto(ctx, s.store, obj.Key, spool); err != nil {
			s.logger.Error("fetching archive entry failed", "key", obj.Key, "error", err)
			result.Skipped = append(result.Skipped, obj.Key)
			continue
		}

		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: obj.LastModified}
		entry, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, E(op, IOError, name, err)
		}
		if _, err := io.Copy(entry, spool); err != nil {
			return nil, E(op, IOError, name, err)
		}
		result.Entries = append(result.Entries, name)
	}
	if err := zw.Close(); err != nil {
		return nil, E(op, IOError, commitID, err)
	}

	if len(result.Entries) == 0 {
		return result, E(op, RemoteError, commitID, errAllEntriesFailed)
	}

	s.logger.Info("archive written", "repo", repoIdent(owner, repo), "commit", commitID,
		"entries", len(result.Entries), "skipped", len(result.Skipped))
	return result, nil
}

// fetchInto replaces the contents of spool with the object and rewinds it.
func fetchInto(ctx context.Context, store ObjectStore, key string, spool *os.File) error {
	if err := spool.Truncate(0); err != nil {
		return err
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := store.Get(ctx, key, spool); err != nil {
		return err
	}
	_, err := spool.Seek(0, io.SeekStart)
	return err
}
