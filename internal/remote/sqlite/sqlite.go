// Package sqlite provides a RemoteStore backed by a SQLite database. Blobs
// live in a single table keyed by path; Put is a conditional statement on
// the stored revision, so concurrent processes sharing the file get the
// same compare-and-swap guarantee as the HTTP backend.
package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/planner/pkg/types"
)

// Store is a RemoteStore over a SQLite database file.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
	logger *log.Logger
	now    func() time.Time
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

// HistoryEntry records one successful Put.
type HistoryEntry struct {
	Revision  types.Revision
	Previous  types.Revision
	WrittenAt time.Time
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying schema: %w", err)
		}
	}
	s := &Store{
		db:     db,
		logger: log.New(io.Discard, "", 0),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the database. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Revision returns the revision token for content: the hex SHA-256 digest.
func Revision(content []byte) types.Revision {
	sum := sha256.Sum256(content)
	return types.Revision(hex.EncodeToString(sum[:]))
}

// Get implements types.RemoteStore.
func (s *Store) Get(ctx context.Context, path string) ([]byte, types.Revision, error) {
	var (
		content  []byte
		revision string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT content, revision FROM blobs WHERE path = ?`, path,
	).Scan(&content, &revision)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("get %s: %w", path, types.ErrPathNotFound)
	}
	if err != nil {
		return nil, "", &types.TransportError{Op: "get", Path: path, Err: err}
	}
	return content, types.Revision(revision), nil
}

// Put implements types.RemoteStore.
func (s *Store) Put(ctx context.Context, path string, content []byte, expected types.Revision) (types.Revision, error) {
	rev := Revision(content)
	now := s.now().UTC().Format(time.RFC3339Nano)
	if content == nil {
		content = []byte{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", &types.TransportError{Op: "put", Path: path, Err: err}
	}
	defer tx.Rollback()

	var res sql.Result
	if expected.IsAbsent() {
		res, err = tx.ExecContext(ctx,
			`INSERT INTO blobs (path, content, revision, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(path) DO NOTHING`,
			path, content, string(rev), now)
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE blobs SET content = ?, revision = ?, updated_at = ?
			 WHERE path = ? AND revision = ?`,
			content, string(rev), now, path, string(expected))
	}
	if err != nil {
		return "", &types.TransportError{Op: "put", Path: path, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", &types.TransportError{Op: "put", Path: path, Err: err}
	}
	if n == 0 {
		return "", &types.ConflictError{Path: path, Expected: expected, Current: s.currentRevision(ctx, tx, path)}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO blob_history (path, revision, previous, written_at) VALUES (?, ?, ?, ?)`,
		path, string(rev), string(expected), now); err != nil {
		return "", &types.TransportError{Op: "put", Path: path, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return "", &types.TransportError{Op: "put", Path: path, Err: err}
	}
	s.logger.Printf("put %s: %s -> %s", path, expected, rev)
	return rev, nil
}

// History returns the successful writes to path, oldest first.
func (s *Store) History(ctx context.Context, path string) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT revision, previous, written_at FROM blob_history WHERE path = ? ORDER BY written_at, rowid`,
		path)
	if err != nil {
		return nil, &types.TransportError{Op: "history", Path: path, Err: err}
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var (
			rev, prev, at string
		)
		if err := rows.Scan(&rev, &prev, &at); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		writtenAt, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parsing history time %q: %w", at, err)
		}
		out = append(out, HistoryEntry{
			Revision:  types.Revision(rev),
			Previous:  types.Revision(prev),
			WrittenAt: writtenAt,
		})
	}
	return out, rows.Err()
}

func (s *Store) currentRevision(ctx context.Context, tx *sql.Tx, path string) types.Revision {
	var rev string
	if err := tx.QueryRowContext(ctx, `SELECT revision FROM blobs WHERE path = ?`, path).Scan(&rev); err != nil {
		return types.AbsentRevision
	}
	return types.Revision(rev)
}
