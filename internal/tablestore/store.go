// Package tablestore binds a table schema to a path on a RemoteStore. It
// owns the mapping between a types.Table and its canonical CSV form, and
// turns remote reads and conditional writes into table loads and saves.
package tablestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"slices"

	"github.com/mesh-intelligence/planner/pkg/types"
)

// Store loads and saves one table at one remote path.
type Store struct {
	schema types.Schema
	remote types.RemoteStore
	path   string
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

// New creates a Store for the schema at path on remote.
func New(schema types.Schema, remote types.RemoteStore, path string, opts ...Option) *Store {
	s := &Store{
		schema: schema,
		remote: remote,
		path:   path,
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schema returns the schema tables are parsed with.
func (s *Store) Schema() types.Schema {
	return s.schema
}

// Path returns the remote path.
func (s *Store) Path() string {
	return s.path
}

// Load reads and parses the table. A missing path yields an empty table
// and the absent revision. Unparsable content yields a *CorruptDataError.
// Transport errors propagate unchanged.
func (s *Store) Load(ctx context.Context) (*types.Table, types.Revision, error) {
	data, rev, err := s.remote.Get(ctx, s.path)
	if errors.Is(err, types.ErrPathNotFound) {
		s.logger.Printf("load %s: not found, starting empty %s table", s.path, s.schema.Name)
		return types.NewTable(s.schema), types.AbsentRevision, nil
	}
	if err != nil {
		return nil, "", err
	}
	t, err := parse(s.schema, s.path, data)
	if err != nil {
		return nil, "", err
	}
	s.logger.Printf("load %s: %d records at %s", s.path, t.Len(), rev)
	return t, rev, nil
}

// Serialize renders t in canonical form. The table must use this store's
// columns.
func (s *Store) Serialize(t *types.Table) ([]byte, error) {
	if !slices.Equal(t.Schema().FieldNames(), s.schema.FieldNames()) {
		return nil, fmt.Errorf("serialize %s: table columns %v do not match schema %v",
			s.path, t.Schema().FieldNames(), s.schema.FieldNames())
	}
	return Serialize(t)
}

// Save serializes t and writes it only if the remote is still at expected.
// ConflictError and TransportError propagate unchanged.
func (s *Store) Save(ctx context.Context, t *types.Table, expected types.Revision) (types.Revision, error) {
	data, err := s.Serialize(t)
	if err != nil {
		return "", err
	}
	rev, err := s.remote.Put(ctx, s.path, data, expected)
	if err != nil {
		return "", err
	}
	s.logger.Printf("save %s: %d records, %s -> %s", s.path, t.Len(), expected, rev)
	return rev, nil
}
