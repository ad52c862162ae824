// Package file provides a RemoteStore over a local directory. Each path is
// one file under the root; revisions are content digests, so they are only
// meaningful to processes sharing the directory.
package file

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"

	"github.com/mesh-intelligence/planner/pkg/types"
)

const lockRetryDelay = 50 * time.Millisecond

// Store keeps blobs as files under a root directory. Put serializes writers
// with an exclusive lock on "<file>.lock" and replaces the file atomically.
type Store struct {
	root   string
	logger *log.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns a Store rooted at dir, creating the directory if needed.
func New(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
	}
	s := &Store{root: dir, logger: log.New(io.Discard, "", 0)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the directory holding the blobs.
func (s *Store) Root() string {
	return s.root
}

// Revision returns the revision token for content: the hex SHA-256 digest.
func Revision(content []byte) types.Revision {
	sum := sha256.Sum256(content)
	return types.Revision(hex.EncodeToString(sum[:]))
}

// Get implements types.RemoteStore.
func (s *Store) Get(ctx context.Context, path string) ([]byte, types.Revision, error) {
	name, err := s.resolve(path)
	if err != nil {
		return nil, "", err
	}
	if err := ctx.Err(); err != nil {
		return nil, "", &types.TransportError{Op: "get", Path: path, Err: err}
	}
	data, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("get %s: %w", path, types.ErrPathNotFound)
	}
	if err != nil {
		return nil, "", &types.TransportError{Op: "get", Path: path, Err: err}
	}
	return data, Revision(data), nil
}

// Put implements types.RemoteStore.
func (s *Store) Put(ctx context.Context, path string, content []byte, expected types.Revision) (types.Revision, error) {
	name, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return "", &types.TransportError{Op: "put", Path: path, Err: err}
	}

	lock := flock.New(name + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return "", &types.TransportError{Op: "put", Path: path, Err: fmt.Errorf("acquiring lock: %w", err)}
	}
	if !locked {
		return "", &types.TransportError{Op: "put", Path: path, Err: errors.New("lock not acquired")}
	}
	defer func() { _ = lock.Unlock() }()

	current := types.AbsentRevision
	data, err := os.ReadFile(name)
	switch {
	case err == nil:
		current = Revision(data)
	case !errors.Is(err, fs.ErrNotExist):
		return "", &types.TransportError{Op: "put", Path: path, Err: err}
	}
	if current != expected {
		return "", &types.ConflictError{Path: path, Expected: expected, Current: current}
	}

	if err := writeAtomic(name, content); err != nil {
		return "", &types.TransportError{Op: "put", Path: path, Err: err}
	}
	rev := Revision(content)
	s.logger.Printf("put %s: %s -> %s", path, expected, rev)
	return rev, nil
}

// Watch calls fn with the new revision each time the file at path changes,
// until ctx is done. Writes that leave the content unchanged are skipped.
func (s *Store) Watch(ctx context.Context, path string, fn func(types.Revision)) error {
	name, err := s.resolve(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	// Atomic replacement swaps the inode, so watch the directory.
	if err := w.Add(filepath.Dir(name)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(name), err)
	}

	last := s.revisionOf(name)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			rev := s.revisionOf(name)
			if rev == last {
				continue
			}
			last = rev
			fn(rev)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Printf("watch %s: %v", path, err)
		}
	}
}

func (s *Store) revisionOf(name string) types.Revision {
	data, err := os.ReadFile(name)
	if err != nil {
		return types.AbsentRevision
	}
	return Revision(data)
}

// resolve maps a remote path to a file under the root. Paths must be
// relative and stay inside the root.
func (s *Store) resolve(path string) (string, error) {
	if !filepath.IsLocal(path) {
		return "", fmt.Errorf("invalid path %q: must be relative and inside %s", path, s.root)
	}
	return filepath.Join(s.root, filepath.FromSlash(path)), nil
}

// writeAtomic writes data to a temp file in the same directory, syncs it
// and renames it over path.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".blob-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
