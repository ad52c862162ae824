package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/planner/internal/paths"
	"github.com/mesh-intelligence/planner/pkg/types"
)

// configFile is the structure written to config.yaml.
type configFile struct {
	Backend string         `yaml:"backend"`
	GitHub  *githubSection `yaml:"github,omitempty"`
	File    *dirSection    `yaml:"file,omitempty"`
	SQLite  *pathSection   `yaml:"sqlite,omitempty"`
	Sync    syncSection    `yaml:"sync"`
	Tables  tablesSection  `yaml:"tables"`
}

type githubSection struct {
	Owner    string `yaml:"owner"`
	Repo     string `yaml:"repo"`
	Branch   string `yaml:"branch,omitempty"`
	TokenEnv string `yaml:"token_env"`
}

type dirSection struct {
	Dir string `yaml:"dir"`
}

type pathSection struct {
	Path string `yaml:"path"`
}

type syncSection struct {
	MaxAttempts int `yaml:"max_attempts"`
}

type tablesSection struct {
	Guests pathSection  `yaml:"guests"`
	Tasks  tasksSection `yaml:"tasks"`
}

type tasksSection struct {
	Path          string   `yaml:"path"`
	StatusOptions []string `yaml:"status_options"`
}

type initFlags struct {
	backend string
	owner   string
	repo    string
	branch  string
}

func newInitCmd(a *app) *cobra.Command {
	var f initFlags
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the configuration and prepare the backend",
		Long: "Init writes config.yaml into the configuration directory if it does not\n" +
			"exist yet, then attaches to the configured backend once to check it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, a, f)
		},
	}
	cmd.Flags().StringVar(&f.backend, "backend", types.BackendFile, "backend: file, sqlite or github")
	cmd.Flags().StringVar(&f.owner, "owner", "", "GitHub repository owner (github backend)")
	cmd.Flags().StringVar(&f.repo, "repo", "", "GitHub repository name (github backend)")
	cmd.Flags().StringVar(&f.branch, "branch", "", "GitHub branch (default: the repository's default branch)")
	return cmd
}

func runInit(cmd *cobra.Command, a *app, f initFlags) error {
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysErr(fmt.Errorf("resolve config dir: %w", err))
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return sysErr(fmt.Errorf("create config directory: %w", err))
	}

	configPath := filepath.Join(configDir, paths.ConfigFileName)
	created, err := writeConfigIfMissing(configPath, f)
	if err != nil {
		return err
	}

	if err := a.attach(cmd); err != nil {
		return err
	}
	defer a.detach()

	out := cmd.OutOrStdout()
	if created {
		fmt.Fprintf(out, "Wrote %s\n", configPath)
	} else {
		fmt.Fprintf(out, "Using existing %s\n", configPath)
	}
	fmt.Fprintf(out, "Planner initialized (%s backend)\n", a.cfg.Backend)
	return nil
}

// writeConfigIfMissing creates config.yaml from the init flags if the file
// does not exist. It reports whether it wrote the file.
func writeConfigIfMissing(path string, f initFlags) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, sysErr(fmt.Errorf("stat config file: %w", err))
	}

	cfg := configFile{
		Backend: f.backend,
		Sync:    syncSection{MaxAttempts: types.DefaultMaxAttempts},
		Tables: tablesSection{
			Guests: pathSection{Path: types.DefaultGuestsPath},
			Tasks: tasksSection{
				Path:          types.DefaultTasksPath,
				StatusOptions: types.DefaultStatusOptions,
			},
		},
	}
	switch f.backend {
	case types.BackendGitHub:
		if f.owner == "" || f.repo == "" {
			return false, fmt.Errorf("init: --owner and --repo are required for the github backend")
		}
		cfg.GitHub = &githubSection{
			Owner:    f.owner,
			Repo:     f.repo,
			Branch:   f.branch,
			TokenEnv: types.DefaultTokenEnv,
		}
	case types.BackendFile:
		cfg.File = &dirSection{Dir: "data"}
	case types.BackendSQLite:
		cfg.SQLite = &pathSection{Path: defaultSQLiteFile}
	default:
		return false, fmt.Errorf("init: %w %q (valid: file, sqlite, github)", types.ErrBackendUnknown, f.backend)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	data = append([]byte("# Planner configuration\n"), data...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, sysErr(fmt.Errorf("write config: %w", err))
	}
	return true, nil
}
