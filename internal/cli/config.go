package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/planner/internal/paths"
	"github.com/mesh-intelligence/planner/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "PLANNER"

	defaultBackend    = types.BackendFile
	defaultSQLiteFile = "planner.db"
	defaultMessage    = "planner: update %s"
)

// Config keys.
const (
	cfgKeyBackend        = "backend"
	cfgKeyGitHubOwner    = "github.owner"
	cfgKeyGitHubRepo     = "github.repo"
	cfgKeyGitHubBranch   = "github.branch"
	cfgKeyGitHubAPIURL   = "github.api_url"
	cfgKeyGitHubTokenEnv = "github.token_env"
	cfgKeyGitHubMessage  = "github.message"
	cfgKeyFileDir        = "file.dir"
	cfgKeySQLitePath     = "sqlite.path"
	cfgKeyMaxAttempts    = "sync.max_attempts"
	cfgKeyHTTPTimeout    = "http.timeout"
	cfgKeyLogFile        = "log.file"
	cfgKeyGuestsPath     = "tables.guests.path"
	cfgKeyTasksPath      = "tables.tasks.path"
	cfgKeyStatusOptions  = "tables.tasks.status_options"
)

// loadConfig reads config.yaml from configDir with PLANNER_* environment
// overrides (PLANNER_GITHUB_OWNER for github.owner, and so on). A missing
// file is not an error; every key has a default. Relative local paths are
// resolved against configDir.
func loadConfig(configDir string) (types.Config, error) {
	v := viper.New()
	v.SetDefault(cfgKeyBackend, defaultBackend)
	v.SetDefault(cfgKeyGitHubAPIURL, types.DefaultAPIURL)
	v.SetDefault(cfgKeyGitHubTokenEnv, types.DefaultTokenEnv)
	v.SetDefault(cfgKeyGitHubMessage, defaultMessage)
	v.SetDefault(cfgKeyMaxAttempts, types.DefaultMaxAttempts)
	v.SetDefault(cfgKeyHTTPTimeout, 30*time.Second)
	v.SetDefault(cfgKeyGuestsPath, types.DefaultGuestsPath)
	v.SetDefault(cfgKeyTasksPath, types.DefaultTasksPath)

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := types.Config{
		Backend: v.GetString(cfgKeyBackend),
		GitHub: types.GitHubConfig{
			Owner:    v.GetString(cfgKeyGitHubOwner),
			Repo:     v.GetString(cfgKeyGitHubRepo),
			Branch:   v.GetString(cfgKeyGitHubBranch),
			APIURL:   v.GetString(cfgKeyGitHubAPIURL),
			TokenEnv: v.GetString(cfgKeyGitHubTokenEnv),
			Message:  v.GetString(cfgKeyGitHubMessage),
		},
		Sync: types.SyncConfig{MaxAttempts: v.GetInt(cfgKeyMaxAttempts)},
		HTTP: types.HTTPConfig{Timeout: v.GetDuration(cfgKeyHTTPTimeout)},
		Tables: types.TablesConfig{
			GuestsPath:    v.GetString(cfgKeyGuestsPath),
			TasksPath:     v.GetString(cfgKeyTasksPath),
			StatusOptions: v.GetStringSlice(cfgKeyStatusOptions),
		},
	}

	dataDir, err := paths.ResolveDataDir("", v.GetString(cfgKeyFileDir), configDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.File.Dir = dataDir

	sqlitePath := v.GetString(cfgKeySQLitePath)
	if sqlitePath == "" {
		sqlitePath = filepath.Join(dataDir, defaultSQLiteFile)
	}
	if cfg.SQLite.Path, err = paths.ResolveRelative(sqlitePath, configDir); err != nil {
		return types.Config{}, err
	}

	if logFile := v.GetString(cfgKeyLogFile); logFile != "" {
		if cfg.Log.File, err = paths.ResolveRelative(logFile, configDir); err != nil {
			return types.Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("invalid config %s: %w",
			filepath.Join(configDir, paths.ConfigFileName), err)
	}
	return cfg, nil
}
