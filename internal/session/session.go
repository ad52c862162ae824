// Package session connects the CLI to a configured remote. A Session is
// attached to one backend at a time and hands out one sync controller per
// standard table.
package session

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"

	"github.com/mesh-intelligence/planner/internal/remote/file"
	"github.com/mesh-intelligence/planner/internal/remote/github"
	"github.com/mesh-intelligence/planner/internal/remote/sqlite"
	tablesync "github.com/mesh-intelligence/planner/internal/sync"
	"github.com/mesh-intelligence/planner/internal/tablestore"
	"github.com/mesh-intelligence/planner/pkg/types"
)

// Lifecycle errors.
var (
	ErrDetached        = errors.New("session is detached")
	ErrAlreadyAttached = errors.New("session is already attached")
	ErrTokenMissing    = errors.New("github token not set")
)

// Session owns the remote connection and the per-table controllers.
type Session struct {
	mu          sync.Mutex
	attached    bool
	config      types.Config
	remote      types.RemoteStore
	closer      io.Closer
	controllers map[string]*tablesync.Controller

	logger   *log.Logger
	override types.RemoteStore
	getenv   func(string) string
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger passed to every component.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRemote makes Attach use r instead of building the configured backend.
func WithRemote(r types.RemoteStore) Option {
	return func(s *Session) { s.override = r }
}

// WithGetenv replaces os.Getenv for reading the GitHub token.
func WithGetenv(fn func(string) string) Option {
	return func(s *Session) {
		if fn != nil {
			s.getenv = fn
		}
	}
}

// New returns a detached Session.
func New(opts ...Option) *Session {
	s := &Session{
		logger: log.New(io.Discard, "", 0),
		getenv: os.Getenv,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach validates config and opens its backend.
func (s *Session) Attach(config types.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
		return ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	remote, closer, err := s.open(config)
	if err != nil {
		return err
	}
	s.config = config
	s.remote = remote
	s.closer = closer
	s.controllers = make(map[string]*tablesync.Controller)
	s.attached = true
	s.logger.Printf("attached to %s backend", config.Backend)
	return nil
}

func (s *Session) open(config types.Config) (types.RemoteStore, io.Closer, error) {
	if s.override != nil {
		return s.override, nil, nil
	}
	switch config.Backend {
	case types.BackendGitHub:
		gh := config.GitHub
		tokenEnv := gh.TokenEnv
		if tokenEnv == "" {
			tokenEnv = types.DefaultTokenEnv
		}
		token := s.getenv(tokenEnv)
		if token == "" {
			return nil, nil, fmt.Errorf("%w: export %s", ErrTokenMissing, tokenEnv)
		}
		baseURL := gh.APIURL
		if baseURL == "" {
			baseURL = github.DefaultBaseURL
		}
		return github.New(gh.Owner, gh.Repo,
			github.WithBaseURL(baseURL),
			github.WithBranch(gh.Branch),
			github.WithToken(token),
			github.WithMessage(gh.Message),
			github.WithHTTPClient(&http.Client{Timeout: config.HTTP.Timeout}),
			github.WithLogger(s.logger),
		), nil, nil
	case types.BackendFile:
		fs, err := file.New(config.File.Dir, file.WithLogger(s.logger))
		if err != nil {
			return nil, nil, err
		}
		return fs, nil, nil
	case types.BackendSQLite:
		db, err := sqlite.Open(config.SQLite.Path, sqlite.WithLogger(s.logger))
		if err != nil {
			return nil, nil, err
		}
		return db, db, nil
	default:
		return nil, nil, types.ErrBackendUnknown
	}
}

// Detach releases the backend. Detach is idempotent.
func (s *Session) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return nil
	}
	s.attached = false
	s.controllers = nil
	s.remote = nil
	if s.closer != nil {
		err := s.closer.Close()
		s.closer = nil
		return err
	}
	return nil
}

// Config returns the attached configuration.
func (s *Session) Config() types.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Remote returns the attached remote store.
func (s *Session) Remote() (types.RemoteStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return nil, ErrDetached
	}
	return s.remote, nil
}

// Table returns the controller for a standard table, creating it on first
// use. Returns ErrTableNotFound for other names.
func (s *Session) Table(name string) (*tablesync.Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return nil, ErrDetached
	}
	if c, ok := s.controllers[name]; ok {
		return c, nil
	}
	schema, err := s.config.Schema(name)
	if err != nil {
		return nil, err
	}
	path, err := s.config.TablePath(name)
	if err != nil {
		return nil, err
	}
	store := tablestore.New(schema, s.remote, path, tablestore.WithLogger(s.logger))
	c := tablesync.New(store,
		tablesync.WithMaxAttempts(s.config.Sync.MaxAttempts),
		tablesync.WithLogger(s.logger),
	)
	s.controllers[name] = c
	return c, nil
}
