package types

import (
	"errors"
	"time"
)

// Config selects the remote backend and the sync parameters.
type Config struct {
	Backend string       `json:"backend" yaml:"backend"`
	GitHub  GitHubConfig `json:"github" yaml:"github"`
	File    FileConfig   `json:"file" yaml:"file"`
	SQLite  SQLiteConfig `json:"sqlite" yaml:"sqlite"`
	Sync    SyncConfig   `json:"sync" yaml:"sync"`
	HTTP    HTTPConfig   `json:"http" yaml:"http"`
	Tables  TablesConfig `json:"tables" yaml:"tables"`
	Log     LogConfig    `json:"log" yaml:"log"`
}

// GitHubConfig addresses a repository through the contents API. The token
// itself is never stored in config; TokenEnv names the variable holding it.
type GitHubConfig struct {
	Owner    string `json:"owner" yaml:"owner"`
	Repo     string `json:"repo" yaml:"repo"`
	Branch   string `json:"branch,omitempty" yaml:"branch,omitempty"`
	APIURL   string `json:"api_url,omitempty" yaml:"api_url,omitempty"`
	TokenEnv string `json:"token_env,omitempty" yaml:"token_env,omitempty"`
	Message  string `json:"message,omitempty" yaml:"message,omitempty"`
}

// FileConfig points at a local directory holding one file per table.
type FileConfig struct {
	Dir string `json:"dir" yaml:"dir"`
}

// SQLiteConfig points at a local SQLite database holding table blobs.
type SQLiteConfig struct {
	Path string `json:"path" yaml:"path"`
}

// SyncConfig bounds the conflict retry loop.
type SyncConfig struct {
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`
}

// HTTPConfig holds transport settings. A zero Timeout means no timeout.
type HTTPConfig struct {
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// TablesConfig maps the standard tables to remote paths.
type TablesConfig struct {
	GuestsPath    string   `json:"guests_path" yaml:"guests_path"`
	TasksPath     string   `json:"tasks_path" yaml:"tasks_path"`
	StatusOptions []string `json:"status_options,omitempty" yaml:"status_options,omitempty"`
}

// LogConfig selects where the CLI writes its log. Empty File discards logs.
type LogConfig struct {
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// Supported backend names.
const (
	BackendGitHub = "github"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Defaults applied by the CLI config loader.
const (
	DefaultMaxAttempts = 3
	DefaultGuestsPath  = "guests.csv"
	DefaultTasksPath   = "tasks.csv"
	DefaultTokenEnv    = "PLANNER_GITHUB_TOKEN"
	DefaultAPIURL      = "https://api.github.com"
)

// Config validation errors.
var (
	ErrBackendEmpty       = errors.New("backend must not be empty")
	ErrBackendUnknown     = errors.New("unknown backend")
	ErrGitHubRepoMissing  = errors.New("github backend needs owner and repo")
	ErrFileDirMissing     = errors.New("file backend needs a directory")
	ErrSQLitePathMissing  = errors.New("sqlite backend needs a database path")
	ErrMaxAttemptsInvalid = errors.New("sync max attempts must be positive")
	ErrTablePathMissing   = errors.New("table path must not be empty")
	ErrTimeoutInvalid     = errors.New("http timeout must not be negative")
	ErrTableNotFound      = errors.New("table not found")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendGitHub: true,
	BackendFile:   true,
	BackendSQLite: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel
// error from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	switch c.Backend {
	case BackendGitHub:
		if c.GitHub.Owner == "" || c.GitHub.Repo == "" {
			return ErrGitHubRepoMissing
		}
	case BackendFile:
		if c.File.Dir == "" {
			return ErrFileDirMissing
		}
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return ErrSQLitePathMissing
		}
	}
	if c.Sync.MaxAttempts <= 0 {
		return ErrMaxAttemptsInvalid
	}
	if c.HTTP.Timeout < 0 {
		return ErrTimeoutInvalid
	}
	if c.Tables.GuestsPath == "" || c.Tables.TasksPath == "" {
		return ErrTablePathMissing
	}
	return nil
}

// TablePath returns the remote path configured for a standard table.
func (c Config) TablePath(name string) (string, error) {
	switch name {
	case GuestsTable:
		return c.Tables.GuestsPath, nil
	case TasksTable:
		return c.Tables.TasksPath, nil
	default:
		return "", ErrTableNotFound
	}
}

// Schema returns the schema of a standard table with config overrides
// applied.
func (c Config) Schema(name string) (Schema, error) {
	s, err := StandardSchema(name)
	if err != nil {
		return Schema{}, err
	}
	if name == TasksTable && len(c.Tables.StatusOptions) > 0 {
		s = s.WithOptions(TaskStatus, c.Tables.StatusOptions)
	}
	return s, s.Validate()
}
