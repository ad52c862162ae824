// Package paths resolves configuration and data directory locations.
package paths

import (
	"os"
	"path/filepath"
)

// CWD-relative directory names used when nothing overrides them.
const (
	DefaultConfigDirName = ".planner"
	DefaultDataDirName   = ".planner-data"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "PLANNER_CONFIG_DIR"
	EnvDataDir   = "PLANNER_DATA_DIR"
)

// ConfigFileName is the name of the configuration file inside the config
// directory.
const ConfigFileName = "config.yaml"

// ResolveConfigDir returns the configuration directory following the
// precedence chain: flag > PLANNER_CONFIG_DIR env > $(CWD)/.planner.
// The result is always absolute.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultConfigDirName), nil
}

// ResolveDataDir returns the directory local backends keep their data in,
// following the precedence chain: flag > configValue > PLANNER_DATA_DIR env
// > $(CWD)/.planner-data.
//
// A relative configValue is taken relative to configDir so that a config
// file keeps working from any working directory.
func ResolveDataDir(flag, configValue, configDir string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configValue != "" {
		return ResolveRelative(configValue, configDir)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}

// ResolveRelative returns p unchanged when absolute, otherwise joined to
// base. An empty base means the working directory.
func ResolveRelative(p, base string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	if base == "" {
		return filepath.Abs(p)
	}
	return filepath.Join(base, p), nil
}
