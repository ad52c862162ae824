// Package memory provides an in-process RemoteStore. It backs tests and
// dry runs and can inject transport failures.
package memory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/mesh-intelligence/planner/pkg/types"
)

type blob struct {
	content  []byte
	revision types.Revision
}

// fault is a queued Put failure. When applied is set the write lands
// before the error is returned, which models a response lost in transit.
type fault struct {
	err     error
	applied bool
}

// Store is a mutex-guarded map of path to blob.
type Store struct {
	mu     sync.Mutex
	blobs  map[string]blob
	faults []fault
	gets   int
	puts   int
}

// New returns an empty Store.
func New() *Store {
	return &Store{blobs: make(map[string]blob)}
}

// Revision returns the revision token for content: the hex SHA-256 digest.
func Revision(content []byte) types.Revision {
	sum := sha256.Sum256(content)
	return types.Revision(hex.EncodeToString(sum[:]))
}

// Get implements types.RemoteStore.
func (s *Store) Get(ctx context.Context, path string) ([]byte, types.Revision, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", &types.TransportError{Op: "get", Path: path, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	b, ok := s.blobs[path]
	if !ok {
		return nil, "", fmt.Errorf("get %s: %w", path, types.ErrPathNotFound)
	}
	return bytes.Clone(b.content), b.revision, nil
}

// Put implements types.RemoteStore.
func (s *Store) Put(ctx context.Context, path string, content []byte, expected types.Revision) (types.Revision, error) {
	if err := ctx.Err(); err != nil {
		return "", &types.TransportError{Op: "put", Path: path, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++

	var f *fault
	if len(s.faults) > 0 {
		f = &s.faults[0]
		s.faults = s.faults[1:]
		if !f.applied {
			return "", &types.TransportError{Op: "put", Path: path, Err: f.err}
		}
	}

	current := s.blobs[path].revision
	if current != expected {
		return "", &types.ConflictError{Path: path, Expected: expected, Current: current}
	}
	rev := Revision(content)
	s.blobs[path] = blob{content: bytes.Clone(content), revision: rev}

	if f != nil {
		return "", &types.TransportError{Op: "put", Path: path, Err: f.err}
	}
	return rev, nil
}

// Set stores content at path without a revision check, as another writer
// would, and returns the new revision.
func (s *Store) Set(path string, content []byte) types.Revision {
	s.mu.Lock()
	defer s.mu.Unlock()
	rev := Revision(content)
	s.blobs[path] = blob{content: bytes.Clone(content), revision: rev}
	return rev
}

// Content returns the stored blob, if any.
func (s *Store) Content(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[path]
	return bytes.Clone(b.content), ok
}

// FailNextPut makes the next Put fail with a *TransportError wrapping err.
// With applied set the write still lands first.
func (s *Store) FailNextPut(err error, applied bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, fault{err: err, applied: applied})
}

// Calls returns the number of Get and Put calls made so far.
func (s *Store) Calls() (gets, puts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets, s.puts
}
